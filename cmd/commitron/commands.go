package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/johnstilia/commitron/pkg/ai"
	"github.com/johnstilia/commitron/pkg/config"
	"github.com/johnstilia/commitron/pkg/diff"
	"github.com/johnstilia/commitron/pkg/git"
	"github.com/johnstilia/commitron/pkg/logger"
	"github.com/johnstilia/commitron/pkg/regen"
	"github.com/johnstilia/commitron/pkg/ui"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "0.1.0"

// Command-specific flags
var (
	dryRun      bool
	assumeYes   bool
	instruction string
	premium     bool
	modelFlag   string
	force       bool
)

// generateCmd represents the generate command
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a commit message using AI",
	RunE:  runGenerate,
}

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		targetPath := configPath
		if targetPath == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return errors.Wrap(err, "get home directory")
			}
			targetPath = filepath.Join(homeDir, config.HomeFileName)
		}

		if _, err := os.Stat(targetPath); err == nil && !force {
			return errors.WithHint(
				errors.Newf("configuration file already exists at %s", targetPath),
				"use --force to overwrite it",
			)
		}

		if err := config.SaveExampleConfig(targetPath); err != nil {
			return errors.Wrapf(err, "create configuration file %s", targetPath)
		}

		out := cmd.OutOrStdout()
		ui.Success(out, "Configuration ready")
		ui.Note(out, "File created at: "+targetPath)
		ui.Note(out, "Edit this file to configure your AI provider and settings.")
		return nil
	},
}

// schemaCmd prints the JSON schema of the configuration file
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := config.Schema()
		if err != nil {
			return errors.Wrap(err, "build schema")
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	},
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "commitron v%s\n", version)
	},
}

func init() {
	bindGenerateFlags(generateCmd)

	// Add flags to init command
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration file")
}

// bindGenerateFlags registers the generate flags on cmd. The root command
// shares them because it runs generate by default.
func bindGenerateFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "d", false, "Preview the commit message without creating a commit")
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Commit the first generated message without asking")
	cmd.Flags().StringVarP(&instruction, "instruction", "i", "", "Extra instruction for the first generation")
	cmd.Flags().BoolVar(&premium, "premium", false, "Run the first generation with the premium model")
	cmd.Flags().StringVar(&modelFlag, "model", "", "Override the default model")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	stderr := cmd.ErrOrStderr()

	repo := git.NewRepo("")
	if !repo.IsGitRepo(ctx) {
		return errors.WithHint(errors.New("not a git repository"), "run commitron inside a git working tree")
	}

	root, err := repo.RepoRoot(ctx)
	if err != nil {
		return errors.Wrap(err, "find repository root")
	}

	cfg, warnings, err := config.Load(config.LoadOptions{
		Path:     configPath,
		RepoRoot: root,
		DotEnv:   true,
	})
	if err != nil {
		return errors.Wrap(err, "load configuration")
	}
	if modelFlag != "" {
		cfg.AI.Model = modelFlag
	}

	logger.Setup(stderr, cfg.AI.Debug || debug, os.Getenv(logger.EnvFormat))
	for _, w := range warnings {
		slog.Warn("invalid configuration value", "detail", w)
	}

	snap, err := stagedSnapshot(ctx, repo, cfg, stderr)
	if err != nil {
		return err
	}
	ui.StagedFiles(stderr, snap.Branch, snap.Files)

	prepared := diff.Prepare(diff.RawDiff{Diff: snap.Diff, Files: snap.Files, Stat: snap.Stat}, cfg)
	if prepared.Content == "" {
		return errors.WithHint(
			errors.New("nothing left to describe"),
			"the staged changes carry no diff text, e.g. only mode changes",
		)
	}

	backend, err := ai.NewOpenAIBackend(cfg)
	if err != nil {
		return err
	}
	gen := ai.NewGenerator(backend, cfg)
	defer gen.Stop(ctx)

	base := ai.Request{
		Diff: prepared,
		Context: ai.PromptContext{
			RecentCommits: snap.RecentCommits,
			Branch:        snap.Branch,
		},
		Instruction: instruction,
		Stat:        snap.Stat,
	}
	if premium {
		if cfg.AI.PremiumModel == "" {
			return errors.WithHint(regen.ErrNoPremiumModel, "set ai.premium_model or COMMITRON_PREMIUM_MODEL")
		}
		base.ModelOverride = cfg.AI.PremiumModel
	}

	if dryRun || assumeYes || !isTerminal(os.Stdin) || !isTerminal(os.Stderr) {
		return generateDirect(ctx, gen, repo, base, cmd.OutOrStdout(), stderr)
	}
	return generateInteractive(ctx, gen, repo, base, cfg, snap, stderr)
}

// stagedSnapshot reads the staged change set, staging modified tracked files
// first when nothing is staged yet.
func stagedSnapshot(ctx context.Context, repo *git.Repo, cfg *config.Config, w io.Writer) (*git.Snapshot, error) {
	staged, err := repo.GetStagedFiles(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list staged files")
	}

	if len(staged) == 0 {
		ui.Note(w, "No staged files found. Staging all modified files...")
		added, err := repo.StageAllModified(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "stage modified files")
		}
		if len(added) == 0 {
			return nil, errors.WithHint(
				errors.New("no modified files found"),
				"make some changes before running commitron",
			)
		}
		ui.Success(w, fmt.Sprintf("Staged %d files", len(added)))
	}

	return repo.Snapshot(ctx, cfg.Commit.RecentCommits)
}

// generateDirect runs one generation without the interactive view. Output
// streams to stderr; the final message goes to stdout.
func generateDirect(ctx context.Context, gen *ai.Generator, repo *git.Repo, base ai.Request, stdout, stderr io.Writer) error {
	req := base
	streamed := false
	req.OnChunk = func(text string) {
		streamed = true
		fmt.Fprint(stderr, text)
	}

	msg, err := gen.Generate(ctx, req)
	if streamed {
		fmt.Fprintln(stderr)
	}
	if err != nil {
		return errors.Wrap(err, "generate commit message")
	}

	ui.CommitMessage(stdout, "Generated commit message", msg.FullMessage)

	if dryRun {
		ui.Note(stderr, "Dry run completed. No commit was created.")
		return nil
	}
	if !assumeYes {
		ui.Note(stderr, "No terminal attached. Pass --yes to commit without confirmation.")
		return nil
	}

	if err := repo.Commit(ctx, msg.FullMessage); err != nil {
		return errors.Wrap(err, "create commit")
	}
	ui.Success(stderr, "Commit created")
	return nil
}

// generateInteractive hands control to the regeneration view and reports how it ended
func generateInteractive(ctx context.Context, gen *ai.Generator, repo *git.Repo, base ai.Request, cfg *config.Config, snap *git.Snapshot, w io.Writer) error {
	final, err := ui.Run(ctx, snap.Branch, snap.Files, func(observe func(regen.Snapshot)) *regen.Machine {
		return regen.New(gen, repo, base,
			regen.WithPremiumModel(cfg.AI.PremiumModel),
			regen.WithObserver(observe),
		)
	})
	if err != nil {
		return err
	}

	switch final.State {
	case regen.StateCommitted:
		ui.CommitMessage(w, "Committed", final.Message.FullMessage)
		ui.Success(w, "Commit created")
	default:
		ui.Note(w, "Cancelled. No commit was created.")
	}
	return nil
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}
