package commands

import (
	"fmt"

	"github.com/benvon/wordtag/internal/export"
	"github.com/benvon/wordtag/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		format     string
		outPath    string
		appendMode bool
		averages   bool
	)

	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Tag a text and write the per-tag counts as txt or csv",
		Long: "Tag a text file (or stdin) and write one row per Penn Treebank tag, 36 in\n" +
			"all, with its name, code and count. Word and sentence totals are not\n" +
			"exported. Without --out the export is written to stdout.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			if appendMode && outPath == "" {
				return fmt.Errorf("--append requires --out")
			}

			text, err := a.readInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			res, err := a.aggregate(cmd.Context(), text, averages)
			if err != nil {
				return fmt.Errorf("tag text: %w", err)
			}

			if outPath == "" {
				return export.Write(cmd.OutOrStdout(), f, res.Counts)
			}

			if err := export.ToFile(outPath, f, res.Counts, appendMode); err != nil {
				return err
			}
			a.logger.Info("export_written",
				zap.String("path", logger.SanitizePath(outPath)),
				zap.String("format", string(f)),
				zap.Bool("append", appendMode),
			)
			_, err = fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", outPath)
			return err
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "txt", "Export format: txt or csv")
	cmd.Flags().StringVar(&outPath, "out", "", "Write to this file instead of stdout")
	cmd.Flags().BoolVar(&appendMode, "append", false, "Append to --out instead of replacing it")
	cmd.Flags().BoolVar(&averages, "averages", false, "Export values per sentence instead of totals")
	return cmd
}
