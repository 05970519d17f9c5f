package git

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
)

// Snapshot is everything read from the repository for one invocation
type Snapshot struct {
	Diff          string
	Files         []string
	Stat          string
	Branch        string
	RecentCommits []string
}

// Snapshot reads the staged diff, file list and stat summary together with
// the branch and the last recent commit subjects. Failing to read the branch
// or the history is not fatal.
func (r *Repo) Snapshot(ctx context.Context, recent int) (*Snapshot, error) {
	var snap Snapshot

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		diff, err := r.GetStagedChanges(gCtx)
		if err != nil {
			return errors.Wrap(err, "read staged diff")
		}
		snap.Diff = diff
		return nil
	})
	g.Go(func() error {
		files, err := r.GetStagedFiles(gCtx)
		if err != nil {
			return errors.Wrap(err, "list staged files")
		}
		snap.Files = files
		return nil
	})
	g.Go(func() error {
		stat, err := r.GetStagedStat(gCtx)
		if err != nil {
			return errors.Wrap(err, "read staged stat")
		}
		snap.Stat = stat
		return nil
	})
	g.Go(func() error {
		branch, err := r.CurrentBranch(gCtx)
		if err != nil {
			slog.Debug("could not read branch", "error", err)
			return nil
		}
		snap.Branch = branch
		return nil
	})
	g.Go(func() error {
		commits, err := r.RecentCommits(gCtx, recent)
		if err != nil {
			// a repository without commits has no history yet
			slog.Debug("could not read recent commits", "error", err)
			return nil
		}
		snap.RecentCommits = commits
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &snap, nil
}
