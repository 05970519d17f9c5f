// Package git reads staged changes and records commits through the git CLI.
package git

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Repo runs git commands in a working tree
type Repo struct {
	Dir string // Working directory, empty for the process directory
}

// NewRepo returns a repo rooted at dir
func NewRepo(dir string) *Repo {
	return &Repo{Dir: dir}
}

func (r *Repo) command(ctx context.Context, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.Dir
	return cmd
}

func (r *Repo) run(ctx context.Context, args ...string) (string, error) {
	cmd := r.command(ctx, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", errors.Wrapf(err, "git %s: %s", args[0], msg)
		}
		return "", errors.Wrapf(err, "git %s", args[0])
	}
	return out.String(), nil
}

func splitLines(s string) []string {
	var result []string
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		// Filter out empty strings in case there is no output
		if line = strings.TrimSpace(line); line != "" {
			result = append(result, line)
		}
	}
	return result
}

// IsGitRepo checks if the directory is inside a git work tree
func (r *Repo) IsGitRepo(ctx context.Context) bool {
	return r.command(ctx, "rev-parse", "--is-inside-work-tree").Run() == nil
}

// RepoRoot returns the top-level directory of the work tree
func (r *Repo) RepoRoot(ctx context.Context) (string, error) {
	out, err := r.run(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// GetStagedFiles returns a list of staged files
func (r *Repo) GetStagedFiles(ctx context.Context) ([]string, error) {
	out, err := r.run(ctx, "diff", "--name-only", "--cached")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// GetStagedChanges returns the diff of staged changes
func (r *Repo) GetStagedChanges(ctx context.Context) (string, error) {
	return r.run(ctx, "diff", "--cached", "--no-color", "--no-ext-diff")
}

// GetStagedStat returns the "--stat" summary of staged changes
func (r *Repo) GetStagedStat(ctx context.Context) (string, error) {
	return r.run(ctx, "diff", "--cached", "--no-color", "--stat=200")
}

// GetModifiedFiles returns tracked files with unstaged modifications
func (r *Repo) GetModifiedFiles(ctx context.Context) ([]string, error) {
	out, err := r.run(ctx, "diff", "--name-only")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// StageAllModified stages every tracked file with unstaged modifications and
// returns the staged paths.
func (r *Repo) StageAllModified(ctx context.Context) ([]string, error) {
	files, err := r.GetModifiedFiles(ctx)
	if err != nil || len(files) == 0 {
		return nil, err
	}
	if _, err := r.run(ctx, append([]string{"add", "--"}, files...)...); err != nil {
		return nil, err
	}
	return files, nil
}

// CurrentBranch returns the checked out branch, empty when HEAD is detached
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	out, err := r.run(ctx, "branch", "--show-current")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// RecentCommits returns the subjects of the last n commits, newest first
func (r *Repo) RecentCommits(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	out, err := r.run(ctx, "log", "-n", strconv.Itoa(n), "--no-merges", "--pretty=format:%s")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// Commit creates a new commit with the given message
func (r *Repo) Commit(ctx context.Context, message string) error {
	if strings.TrimSpace(message) == "" {
		return errors.New("commit message cannot be empty")
	}

	// Write commit message to temporary file
	tmpFile, err := os.CreateTemp("", "commitron-msg-")
	if err != nil {
		return errors.Wrap(err, "create message file")
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.WriteString(message); err != nil {
		tmpFile.Close()
		return errors.Wrap(err, "write message file")
	}
	if err := tmpFile.Close(); err != nil {
		return errors.Wrap(err, "close message file")
	}

	// Create commit using the temp file
	_, err = r.run(ctx, "commit", "-F", tmpFile.Name())
	return err
}
