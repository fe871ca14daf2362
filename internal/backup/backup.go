// Package backup manages the branch pointers created before every rewrite
// and the hard reset that restores one of them.
package backup

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Iron-Ham/gittimemachine/internal/errors"
	"github.com/Iron-Ham/gittimemachine/internal/git"
	"github.com/Iron-Ham/gittimemachine/internal/logging"
)

// DefaultPrefix is used when no prefix is configured.
const DefaultPrefix = "backup"

// Pointer is a backup branch and the commit it was created at.
type Pointer struct {
	Branch    string
	Commit    string
	CreatedAt time.Time
}

// RebaseAborter aborts a rebase left behind by an interrupted rewrite.
type RebaseAborter interface {
	AbortIfInProgress(ctx context.Context) error
}

// Manager creates, lists and restores backup branches. Backups are never
// deleted here.
type Manager struct {
	repo     *git.Repository
	branches *git.BranchResolver
	aborter  RebaseAborter
	logger   *logging.Logger
	now      func() time.Time
}

// NewManager creates a Manager. aborter may be nil.
func NewManager(repo *git.Repository, branches *git.BranchResolver, aborter RebaseAborter, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Manager{
		repo:     repo,
		branches: branches,
		aborter:  aborter,
		logger:   logger.WithPhase("backup"),
		now:      time.Now,
	}
}


// BranchName returns <branch>-<prefix>-<epoch-ms>.
func BranchName(branch, prefix string, at time.Time) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return fmt.Sprintf("%s-%s-%d", branch, prefix, at.UnixMilli())
}

// CreateBackup creates a branch at HEAD and confirms it resolves to the
// same commit. Every failure, including a name collision, is reported as
// *errors.BackupCreationFailedError.
func (m *Manager) CreateBackup(ctx context.Context, prefix string) (Pointer, error) {
	branch, err := m.branches.CurrentBranch(ctx)
	if err != nil {
		return Pointer{}, errors.NewBackupCreationFailedError("", err)
	}
	head, err := m.repo.Head(ctx)
	if err != nil {
		return Pointer{}, errors.NewBackupCreationFailedError("", err)
	}

	now := m.now()
	name := BranchName(branch, prefix, now)

	if _, err := m.repo.Run(ctx, git.Git("branch", name, head)); err != nil {
		cause := error(err)
		if strings.Contains(git.Stderr(err), "already exists") {
			cause = errors.NewAlreadyExistsError("backup branch", name)
		}
		return Pointer{}, errors.NewBackupCreationFailedError(name, cause)
	}

	got, found, err := m.repo.ResolveRef(ctx, "refs/heads/"+name)
	if err != nil {
		return Pointer{}, errors.NewBackupCreationFailedError(name, err)
	}
	if !found {
		return Pointer{}, errors.NewBackupCreationFailedError(name, errors.NewNotFoundError("backup branch", name))
	}
	if got != head {
		return Pointer{}, errors.NewBackupCreationFailedError(name,
			fmt.Errorf("backup points at %s, expected %s", got, head))
	}

	m.logger.Info("created backup branch", "branch", name, "commit", head)
	return Pointer{Branch: name, Commit: head, CreatedAt: time.UnixMilli(now.UnixMilli())}, nil
}

// Restore hard-resets the current branch to backup. It discards uncommitted
// changes, so confirmed must be true. A rebase left in progress is aborted
// first.
func (m *Manager) Restore(ctx context.Context, backup string, confirmed bool) error {
	if !confirmed {
		return errors.ErrConfirmationRequired
	}

	target, found, err := m.repo.ResolveRef(ctx, "refs/heads/"+backup)
	if err != nil {
		return err
	}
	if !found {
		return errors.NewNotFoundError("backup branch", backup)
	}

	if m.aborter != nil {
		if err := m.aborter.AbortIfInProgress(ctx); err != nil {
			m.logger.Warn("failed to abort rebase before restore", "error", err)
		}
	}

	if _, err := m.repo.Run(ctx, git.Git("reset", "--hard", target)); err != nil {
		return errors.NewGitError("failed to restore backup", err).
			WithBranch(backup).
			WithRepository(m.repo.Root()).
			WithGitOutput(git.Stderr(err))
	}

	m.logger.Info("restored backup branch", "branch", backup, "commit", target)
	return nil
}

// List returns the backups of the current branch, newest first. Branches
// matching the prefix but lacking a millisecond suffix are ignored.
func (m *Manager) List(ctx context.Context, prefix string) ([]Pointer, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	branch, err := m.branches.CurrentBranch(ctx)
	if err != nil {
		return nil, err
	}

	stem := branch + "-" + prefix + "-"
	refs, err := m.repo.Branches(ctx, stem)
	if err != nil {
		return nil, err
	}

	pointers := make([]Pointer, 0, len(refs))
	for _, ref := range refs {
		ms, err := strconv.ParseInt(strings.TrimPrefix(ref.Name, stem), 10, 64)
		if err != nil {
			continue
		}
		pointers = append(pointers, Pointer{
			Branch:    ref.Name,
			Commit:    ref.Hash,
			CreatedAt: time.UnixMilli(ms),
		})
	}

	sort.SliceStable(pointers, func(i, j int) bool {
		return pointers[i].CreatedAt.After(pointers[j].CreatedAt)
	})
	return pointers, nil
}
