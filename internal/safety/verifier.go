// Package safety gates every history rewrite: a commit that has reached the
// upstream is never rewritten, and a dirty working tree is reported before
// any rebase starts.
package safety

import (
	"context"
	"strings"

	"github.com/Iron-Ham/gittimemachine/internal/errors"
	"github.com/Iron-Ham/gittimemachine/internal/git"
	"github.com/Iron-Ham/gittimemachine/internal/logging"
)

// Options controls a Verifier.
type Options struct {
	// StrictRemotes treats a commit contained in any remote-tracking branch
	// as pushed, not only the upstream of the current branch.
	StrictRemotes bool
}

// Verifier answers eligibility and cleanliness questions. Upstream is
// resolved on every call so answers never outlive a rewrite.
type Verifier struct {
	repo     *git.Repository
	branches *git.BranchResolver
	logger   *logging.Logger
	opts     Options
}

// NewVerifier creates a Verifier.
func NewVerifier(repo *git.Repository, branches *git.BranchResolver, logger *logging.Logger, opts Options) *Verifier {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Verifier{
		repo:     repo,
		branches: branches,
		logger:   logger.WithPhase("safety"),
		opts:     opts,
	}
}

// IsEligibleForEdit reports whether hash may be rewritten. A commit is
// ineligible when the upstream of the current branch (or, with
// StrictRemotes, any remote-tracking branch) contains it.
func (v *Verifier) IsEligibleForEdit(ctx context.Context, hash string) (bool, error) {
	eligible, _, err := v.eligibility(ctx, hash)
	return eligible, err
}

// IsWorkingTreeClean reports whether git status shows no changes.
func (v *Verifier) IsWorkingTreeClean(ctx context.Context) (bool, error) {
	entries, err := v.statusEntries(ctx)
	if err != nil {
		return false, err
	}
	return len(entries) == 0, nil
}

// Check verifies every hash and the working tree. The first ineligible
// commit yields *errors.IneligibleCommitError. A dirty tree yields
// *errors.DirtyWorkingTreeError unless allowDirty is set. Eligibility is
// checked first because it has no override.
func (v *Verifier) Check(ctx context.Context, hashes []string, allowDirty bool) error {
	for _, hash := range hashes {
		eligible, upstream, err := v.eligibility(ctx, hash)
		if err != nil {
			return err
		}
		if !eligible {
			v.logger.Warn("refusing to rewrite pushed commit", "commit", hash, "upstream", upstream)
			return errors.NewIneligibleCommitError(hash, upstream)
		}
	}

	if v.repo.GitDirEntryExists("rebase-merge") || v.repo.GitDirEntryExists("rebase-apply") {
		return errors.NewGitError("cannot rewrite history", errors.ErrRebaseInProgress).
			WithRepository(v.repo.Root())
	}

	entries, err := v.statusEntries(ctx)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		if allowDirty {
			v.logger.Warn("proceeding with dirty working tree", "changes", len(entries))
			return nil
		}
		return errors.NewDirtyWorkingTreeError(entries)
	}
	return nil
}

// eligibility returns the verdict and the remote branch that contains the
// commit, if any.
func (v *Verifier) eligibility(ctx context.Context, hash string) (bool, string, error) {
	var upstream string
	if !v.opts.StrictRemotes {
		branch, err := v.branches.CurrentBranch(ctx)
		if err != nil {
			return false, "", err
		}
		up, ok, err := v.branches.Upstream(ctx, branch)
		if err != nil {
			return false, "", err
		}
		if !ok {
			return true, "", nil
		}
		upstream = up.Name()
	}

	out, err := v.repo.Run(ctx, git.Git("branch", "-r", "--contains", hash))
	if err != nil {
		return false, "", errors.NewGitError("failed to check remote branches", err).
			WithRepository(v.repo.Root()).
			WithGitOutput(git.Stderr(err))
	}

	for _, name := range RemoteBranches(out) {
		if v.opts.StrictRemotes || name == upstream {
			return false, name, nil
		}
	}
	return true, "", nil
}

func (v *Verifier) statusEntries(ctx context.Context) ([]string, error) {
	out, err := v.repo.Run(ctx, git.Git("status", "--porcelain"))
	if err != nil {
		return nil, errors.NewGitError("failed to read working tree status", err).
			WithRepository(v.repo.Root()).
			WithGitOutput(git.Stderr(err))
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// RemoteBranches parses `git branch -r` output into branch names. Symbolic
// entries such as "origin/HEAD -> origin/main" contribute their target.
func RemoteBranches(out string) []string {
	var names []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "*"))
		if line == "" {
			continue
		}
		if _, target, ok := strings.Cut(line, " -> "); ok {
			line = strings.TrimSpace(target)
		}
		names = append(names, line)
	}
	return names
}
