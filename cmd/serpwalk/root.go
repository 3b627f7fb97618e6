package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var errNoQueries = errors.New("no query has been passed: provide at least one search query")

// NewRootCmd creates the serpwalk command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serpwalk [query...]",
		Short: "Run Google searches through Multilogin profiles",
		Long: `serpwalk runs each query in its own Multilogin quick profile behind a
fresh residential proxy, types it like a person would, waits out reCAPTCHA
challenges and stores the organic results.

Settings come from config.json (or $SERPWALK_CONFIG) and the environment:
EMAIL, PASSWORD or TOKEN, MLX_BASE, MLX_LAUNCHER, MLX_PROXY, LOCALHOST and
LOG_LEVEL. A .env file in the working directory is loaded first. Set
REPORT.PATH in the config file to also write a JSON run report.

Examples:
  serpwalk "open source rust"
  SERPWALK_CONFIG=prod.json serpwalk "go generics" "rust async"`,
		Args:          cobra.ArbitraryArgs,
		RunE:          runRootCmd,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	return cmd
}

// queriesFrom drops blank arguments.
func queriesFrom(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if q := strings.TrimSpace(a); q != "" {
			out = append(out, q)
		}
	}
	return out
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
