// Package cmd provides the CLI commands for datachat.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jaewoo-dev/datachat/internal/config"
	"github.com/jaewoo-dev/datachat/internal/logging"
)

var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the datachat CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "datachat",
		Short: "Chat with your tabular data: hybrid retrieval plus constrained SQL",
		Long: `datachat ingests CSV and text files into per-session indexes and answers
questions by routing them through intent classification, hybrid (vector +
full-text) retrieval, a constrained read-only SQL agent, and a statistics
engine.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(*cobra.Command, []string) {
		if loggingCleanup != nil {
			loggingCleanup()
			loggingCleanup = nil
		}
	}

	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newColumnsCmd())
	cmd.AddCommand(newSessionsCmd())
	cmd.AddCommand(newChatsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func setupLogging(*cobra.Command, []string) error {
	cfg, err := config.Get()
	if err != nil {
		return err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.FilePath = cfg.Logging.File
	logCfg.MaxSizeMB = cfg.Logging.MaxSizeMB
	if cfg.Logging.Stderr {
		logCfg.Stderr = true
	}
	if debugMode {
		logCfg.Level = "debug"
		logCfg.Stderr = true
	}

	cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return err
	}
	loggingCleanup = cleanup
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
