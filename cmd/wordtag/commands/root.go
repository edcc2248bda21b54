package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/benvon/wordtag/internal/analysis"
	"github.com/benvon/wordtag/internal/config"
	"github.com/benvon/wordtag/internal/logger"
	"github.com/benvon/wordtag/internal/tagger"
	"github.com/benvon/wordtag/internal/textload"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app is the state shared by all subcommands
type app struct {
	debug      bool
	cfg        *config.Config
	logger     *zap.Logger
	loadTagger tagger.LoadFunc
}

// NewRootCmd creates the wordtag command tree. loadTagger is called once per
// invocation that needs the tagger.
func NewRootCmd(loadTagger tagger.LoadFunc) *cobra.Command {
	a := &app{loadTagger: loadTagger, logger: zap.NewNop()}

	rootCmd := &cobra.Command{
		Use:   "wordtag",
		Short: "Part-of-speech tag statistics for English text",
		Long: "Tags every token of a text with its Penn Treebank part of speech and\n" +
			"reports how often each tag occurs, in total or per sentence.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadLocal()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			a.cfg = cfg

			l, err := logger.NewCLILogger(a.debug)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			a.logger = l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync(a.logger)
		},
	}
	rootCmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Log debug output to stderr")

	rootCmd.AddCommand(newTagCmd(a))
	rootCmd.AddCommand(newExportCmd(a))
	rootCmd.AddCommand(newTagsetCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// readInput loads the text from the file argument, or stdin when there is
// none or it is "-"
func (a *app) readInput(in io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		a.logger.Debug("reading_input_file", zap.String("path", logger.SanitizePath(args[0])))
		return textload.ReadFile(args[0], a.cfg.MaxTextBytes)
	}
	return textload.Read(in, a.cfg.MaxTextBytes)
}

// aggregate loads the tagger synchronously and aggregates text
func (a *app) aggregate(ctx context.Context, text string, useAverages bool) (*analysis.Result, error) {
	gate := tagger.NewGate(a.logger)
	gate.Load(ctx, a.loadTagger)
	if err := gate.Err(); err != nil {
		return nil, err
	}
	return analysis.NewService(gate, a.logger).Aggregate(ctx, text, useAverages)
}
