package export

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/benvon/wordtag/internal/models"
	"github.com/benvon/wordtag/internal/tagset"
)

// ErrWriteFailed wraps every I/O failure while exporting counts
var ErrWriteFailed = errors.New("could not write to the file")

// ErrUnknownFormat is returned for an export format other than txt or csv
var ErrUnknownFormat = errors.New("unknown export format")

// Format selects the export encoding
type Format string

const (
	FormatText Format = "txt"
	FormatCSV  Format = "csv"
)

// ParseFormat accepts "txt"/"text" and "csv", case-insensitively
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "txt", "text", "":
		return FormatText, nil
	case "csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// ContentType returns the MIME type used when serving the export over HTTP
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "text/plain; charset=utf-8"
}

// Extension returns the file extension including the dot
func (f Format) Extension() string {
	return "." + string(f)
}

// Write encodes counts in the given format
func Write(w io.Writer, format Format, counts models.TagCounts) error {
	switch format {
	case FormatText:
		return WriteText(w, counts)
	case FormatCSV:
		return WriteCSV(w, counts)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, string(format))
	}
}

// WriteText writes one "<Name> <Code> <count>" line per tag, sorted by name
func WriteText(w io.Writer, counts models.TagCounts) error {
	bw := bufio.NewWriter(w)
	for _, row := range tagset.TagRows(counts) {
		if _, err := fmt.Fprintf(bw, "%s %s %s\n", row.Name, row.Code, row.Formatted()); err != nil {
			return fmt.Errorf("%w: %w", ErrWriteFailed, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

// WriteCSV writes one (name, code, count) record per tag with no header
func WriteCSV(w io.Writer, counts models.TagCounts) error {
	cw := csv.NewWriter(w)
	for _, row := range tagset.TagRows(counts) {
		if err := cw.Write([]string{row.Name, row.Code, row.Formatted()}); err != nil {
			return fmt.Errorf("%w: %w", ErrWriteFailed, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

// ToFile exports counts to path. With appendMode the rows are added after
// any existing content, otherwise the file is truncated.
func ToFile(path string, format Format, counts models.TagCounts, appendMode bool) (err error) {
	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("%w: %w", ErrWriteFailed, closeErr)
		}
	}()

	return Write(f, format, counts)
}
