package git

import (
	"context"
	"strings"

	"github.com/Iron-Ham/gittimemachine/internal/errors"
)

// Upstream describes the configured tracking branch of a local branch.
type Upstream struct {
	Remote string // e.g. "origin"
	Branch string // remote branch name, e.g. "main"
}

// Name returns the remote-tracking name, e.g. "origin/main".
func (u Upstream) Name() string {
	return u.Remote + "/" + u.Branch
}

// TrackingRef returns the full remote-tracking ref, e.g. "refs/remotes/origin/main".
func (u Upstream) TrackingRef() string {
	return "refs/remotes/" + u.Name()
}

// BranchResolver answers branch and upstream questions. It holds no state
// between calls: every answer reflects the repository at call time.
type BranchResolver struct {
	repo *Repository
}

// NewBranchResolver creates a BranchResolver.
func NewBranchResolver(repo *Repository) *BranchResolver {
	return &BranchResolver{repo: repo}
}

// CurrentBranch returns the checked-out branch name. A detached HEAD is
// reported as errors.ErrDetachedHead.
func (b *BranchResolver) CurrentBranch(ctx context.Context) (string, error) {
	out, err := b.repo.Run(ctx, Git("rev-parse", "--abbrev-ref", "HEAD"))
	if err != nil {
		return "", errors.NewGitError("failed to get current branch", err).
			WithRepository(b.repo.Root()).
			WithGitOutput(Stderr(err))
	}
	if out == "HEAD" || out == "" {
		return "", errors.NewGitError("cannot rewrite history", errors.ErrDetachedHead).
			WithRepository(b.repo.Root())
	}
	return out, nil
}

// Upstream returns the upstream of branch from branch.<name>.remote and
// branch.<name>.merge. ok is false when either key is missing or the
// configured remote no longer exists.
func (b *BranchResolver) Upstream(ctx context.Context, branch string) (up Upstream, ok bool, err error) {
	remote, found, err := b.configValue(ctx, "branch."+branch+".remote")
	if err != nil || !found {
		return Upstream{}, false, err
	}
	merge, found, err := b.configValue(ctx, "branch."+branch+".merge")
	if err != nil || !found {
		return Upstream{}, false, err
	}

	exists, err := b.RemoteExists(ctx, remote)
	if err != nil || !exists {
		return Upstream{}, false, err
	}

	return Upstream{
		Remote: remote,
		Branch: strings.TrimPrefix(merge, "refs/heads/"),
	}, true, nil
}

// RemoteExists reports whether remote is configured.
func (b *BranchResolver) RemoteExists(ctx context.Context, remote string) (bool, error) {
	out, err := b.repo.Run(ctx, Git("remote"))
	if err != nil {
		return false, errors.NewGitError("failed to list remotes", err).WithRepository(b.repo.Root())
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == remote {
			return true, nil
		}
	}
	return false, nil
}

// TrackingRefExists reports whether the upstream's remote-tracking ref
// resolves locally.
func (b *BranchResolver) TrackingRefExists(ctx context.Context, up Upstream) (bool, error) {
	_, found, err := b.repo.ResolveRef(ctx, up.TrackingRef())
	return found, err
}

// Fetch updates remote-tracking refs for remote.
func (b *BranchResolver) Fetch(ctx context.Context, remote string) error {
	if _, err := b.repo.Run(ctx, Git("fetch", "--quiet", remote)); err != nil {
		return errors.NewGitError("failed to fetch", err).
			WithRepository(b.repo.Root()).
			WithGitOutput(Stderr(err))
	}
	return nil
}

// configValue reads a single git config key. A missing key (exit 1) is
// reported with found=false.
func (b *BranchResolver) configValue(ctx context.Context, key string) (string, bool, error) {
	out, err := b.repo.Run(ctx, Git("config", "--get", key))
	if err != nil {
		if ExitCode(err) == 1 {
			return "", false, nil
		}
		return "", false, errors.NewGitError("failed to read git config", err).WithRepository(b.repo.Root())
	}
	if out == "" {
		return "", false, nil
	}
	return out, true, nil
}
