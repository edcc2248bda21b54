package commands

import (
	"fmt"
	"io"

	"github.com/benvon/wordtag/internal/version"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			info := version.Get()
			return render(cmd.OutOrStdout(), output, info, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "wordtag %s (%s)\n", info.Version, info.Commit)
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format: table, json or yaml")
	return cmd
}
