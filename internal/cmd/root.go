package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for stagehand
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stagehand",
		Short: "Task orchestration engine for an AI coding assistant",
		Long: `Stagehand turns a natural-language request into a multi-step execution
plan, runs the plan against file, shell and code-analysis tools, recovers
from step failures, and replans when an attempt goes off the rails.

Each completed run is summarized (success counts, model cost, advice) and
recorded in a local history database.

Configuration is loaded from .stagehand/config.yaml if present.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	// Add subcommands
	cmd.AddCommand(NewOrchestrateCommand())
	cmd.AddCommand(NewHistoryCommand())
	cmd.AddCommand(NewToolsCommand())

	return cmd
}
