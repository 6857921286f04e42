package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	verbose    bool
	configPath string
	format     string
}

// newRootCommand creates the root CLI command with all subcommands registered.
func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Match bank statement lines to invoices",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			_ = godotenv.Load()
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default is $ECHO_CONFIG or ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.format, "format", formatJSON, "output format: json or table")

	rootCmd.AddCommand(
		newParseCommand(opts),
		newDuplicatesCommand(opts),
		newMatchCommand(opts),
	)

	return rootCmd
}

// logger writes human-readable logs to w through the charmbracelet handler.
func (o *rootOptions) logger(w io.Writer) *slog.Logger {
	level := log.InfoLevel
	if o.verbose {
		level = log.DebugLevel
	}
	handler := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          "reconcile",
		Level:           level,
	})
	return slog.New(handler)
}

func (o *rootOptions) configFile() string {
	if o.configPath != "" {
		return o.configPath
	}
	return os.Getenv("ECHO_CONFIG")
}
