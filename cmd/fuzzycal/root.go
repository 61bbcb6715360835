package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/logger"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

type rootOptions struct {
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "fuzzycal",
		Short: "Calibrate fuzzy inference emission schemes with simulated annealing",
		Long: `fuzzycal tunes the rule consequents of a fuzzy inference scheme against
observed emission data. Run one calibration job from the command line, or
serve calibration runs over gRPC and HTTP.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogger(opts.logLevel, opts.logFormat)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "log format (text, json)")

	cmd.AddCommand(
		newServeCmd(),
		newCalibrateCmd(),
		newEvaluateCmd(),
		newVersionCmd(),
	)
	return cmd
}

// setupLogger installs the default logger on stderr so command output stays
// machine readable.
func setupLogger(level, format string) {
	if format == "json" {
		logger.SetDefault(logger.New(level, os.Stderr))
	} else {
		logger.SetDefault(logger.NewText(level, os.Stderr))
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the fuzzycal version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("fuzzycal %s\n", version)
		},
	}
}
