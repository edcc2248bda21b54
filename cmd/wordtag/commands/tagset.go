package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/benvon/wordtag/internal/tagset"
	"github.com/spf13/cobra"
)

type tagsetOutput struct {
	Tags       []tagset.Tag      `json:"tags" yaml:"tags"`
	Categories []tagset.Category `json:"categories" yaml:"categories"`
}

func newTagsetCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "tagset",
		Short: "List the Penn Treebank tags and the summary categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}

			out := tagsetOutput{Tags: tagset.Tags(), Categories: tagset.Categories()}
			return render(cmd.OutOrStdout(), output, out, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "CODE\tNAME")
				for _, tag := range out.Tags {
					fmt.Fprintf(tw, "%s\t%s\n", tag.Code, tag.Name)
				}
				fmt.Fprintln(tw)
				fmt.Fprintln(tw, "CATEGORY\tTAGS")
				for _, c := range out.Categories {
					fmt.Fprintf(tw, "%s\t%s\n", c.Name, strings.Join(c.Tags, ", "))
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format: table, json or yaml")
	return cmd
}
