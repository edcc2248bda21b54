package commands

import (
	"fmt"
	"io"

	"github.com/benvon/wordtag/internal/tagset"
	"github.com/spf13/cobra"
)

// tagOutput is the json/yaml shape of a tag result
type tagOutput struct {
	Rendered   string       `json:"rendered,omitempty" yaml:"rendered,omitempty"`
	Averaged   bool         `json:"averaged" yaml:"averaged"`
	TokenCount int          `json:"token_count" yaml:"token_count"`
	Rows       []tagset.Row `json:"rows" yaml:"rows"`
}

func newTagCmd(a *app) *cobra.Command {
	var (
		averages bool
		full     bool
		rendered bool
		output   string
	)

	cmd := &cobra.Command{
		Use:   "tag [file]",
		Short: "Tag a text and print tag counts",
		Long: "Tag a text file (or stdin) and print the category summary. Use --full for\n" +
			"one row per tag and --averages for per-sentence values.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}

			text, err := a.readInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			res, err := a.aggregate(cmd.Context(), text, averages)
			if err != nil {
				return fmt.Errorf("tag text: %w", err)
			}

			rows := tagset.SummaryView(res.Counts)
			if full {
				rows = tagset.FullView(res.Counts)
			}

			out := tagOutput{
				Averaged:   res.Averaged,
				TokenCount: res.TokenCount(),
				Rows:       rows,
			}
			if rendered {
				out.Rendered = res.Rendered
			}

			return render(cmd.OutOrStdout(), output, out, func(w io.Writer) error {
				if rendered {
					if _, err := fmt.Fprintf(w, "%s\n\n", res.Rendered); err != nil {
						return err
					}
				}
				return writeRows(w, rows)
			})
		},
	}

	cmd.Flags().BoolVar(&averages, "averages", false, "Report values per sentence instead of totals")
	cmd.Flags().BoolVar(&full, "full", false, "Print one row per tag instead of the category summary")
	cmd.Flags().BoolVar(&rendered, "rendered", false, "Also print the tagged text")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format: table, json or yaml")
	return cmd
}
