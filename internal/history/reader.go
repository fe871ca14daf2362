package history

import (
	"context"
	"strconv"

	"github.com/Iron-Ham/gittimemachine/internal/errors"
	"github.com/Iron-Ham/gittimemachine/internal/git"
	"github.com/Iron-Ham/gittimemachine/internal/logging"
)

// Options controls a Reader.
type Options struct {
	// Fetch refreshes the upstream before listing. Failures are logged.
	Fetch bool
	// MaxCommits limits the listing; 0 means unlimited.
	MaxCommits int
}

// Reader lists local-only commits of the current branch.
type Reader struct {
	repo     *git.Repository
	branches *git.BranchResolver
	logger   *logging.Logger
	opts     Options
}

// NewReader creates a Reader.
func NewReader(repo *git.Repository, branches *git.BranchResolver, logger *logging.Logger, opts Options) *Reader {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Reader{
		repo:     repo,
		branches: branches,
		logger:   logger.WithPhase("scan"),
		opts:     opts,
	}
}

// Scan resolves the current branch and its upstream, then lists commits
// reachable from HEAD but not from the upstream tracking ref, newest first.
// Without a usable upstream every commit on the branch is listed.
func (r *Reader) Scan(ctx context.Context) (*ScanResult, error) {
	branch, err := r.branches.CurrentBranch(ctx)
	if err != nil {
		return nil, err
	}

	result := &ScanResult{BranchSnapshot: BranchSnapshot{CurrentBranch: branch}}

	up, ok, err := r.branches.Upstream(ctx, branch)
	if err != nil {
		return nil, err
	}
	if !ok {
		r.logger.Debug("no upstream configured, listing all commits", "branch", branch)
		commits, err := r.list(ctx, "HEAD")
		if err != nil {
			return nil, err
		}
		result.Commits = commits
		return result, nil
	}

	if r.opts.Fetch {
		if err := r.branches.Fetch(ctx, up.Remote); err != nil {
			r.logger.Warn("fetch failed, using existing tracking ref", "remote", up.Remote, "error", err)
		}
	}

	exists, err := r.branches.TrackingRefExists(ctx, up)
	if err != nil || !exists {
		r.logger.Warn("tracking ref not resolvable, listing all commits",
			"upstream", up.Name(), "error", err)
		commits, err := r.list(ctx, "HEAD")
		if err != nil {
			return nil, err
		}
		result.Commits = commits
		return result, nil
	}

	result.HasUpstream = true
	result.UpstreamBranch = up.Name()

	commits, err := r.list(ctx, up.TrackingRef()+"..HEAD")
	if err != nil {
		// The tracking ref can disappear between the check and the listing
		r.logger.Warn("listing against upstream failed, listing all commits",
			"upstream", up.Name(), "error", err)
		commits, err = r.list(ctx, "HEAD")
		if err != nil {
			return nil, err
		}
	}
	result.Commits = commits
	return result, nil
}

// ListLocalCommits returns the commits of Scan without the branch snapshot.
func (r *Reader) ListLocalCommits(ctx context.Context) ([]CommitRecord, error) {
	result, err := r.Scan(ctx)
	if err != nil {
		return nil, err
	}
	return result.Commits, nil
}

func (r *Reader) list(ctx context.Context, revRange string) ([]CommitRecord, error) {
	args := []string{"log", "-z", "--topo-order", LogFormat, LogDateFormat}
	if r.opts.MaxCommits > 0 {
		args = append(args, "-n", strconv.Itoa(r.opts.MaxCommits))
	}
	args = append(args, revRange, "--")

	out, err := r.repo.Run(ctx, git.Git(args...))
	if err != nil {
		return nil, errors.NewGitError("failed to read commit log", err).
			WithRepository(r.repo.Root()).
			WithGitOutput(git.Stderr(err))
	}

	records, dropped := ParseLog(out)
	if dropped > 0 {
		r.logger.Debug("dropped malformed log records", "count", dropped)
	}
	return records, nil
}
