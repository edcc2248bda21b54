package main

import (
	"fmt"
	"os"

	"github.com/benvon/wordtag/cmd/wordtag/commands"
	"github.com/benvon/wordtag/internal/tagger"
)

func main() {
	rootCmd := commands.NewRootCmd(tagger.LoadProse)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
