package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/johnstilia/commitron/pkg/ui"
	"github.com/spf13/cobra"
)

// Flags that are used across commands
var (
	configPath string
	debug      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "commitron",
	Short: "AI-powered commit message generator",
	Long:  `Commitron is a CLI tool that generates AI-powered commit messages based on your staged changes in a git repository.`,
	// Errors are printed by main together with their hints
	SilenceErrors: true,
	SilenceUsage:  true,
	// Run the generate command when no command is specified
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGenerate(cmd, args)
	},
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the configuration file (default: ~/.commitronrc)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Log prompts, budgets and session activity to stderr")

	bindGenerateFlags(rootCmd)

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if errors.Is(err, context.Canceled) {
		ui.Note(os.Stderr, "Interrupted. No commit was created.")
		os.Exit(130)
	}
	if err != nil {
		ui.Error(os.Stderr, err, errors.GetAllHints(err))
		os.Exit(1)
	}
}
