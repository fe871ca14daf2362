// Package rebase rewrites a single historical commit through a scripted
// interactive rebase, or the tip commit through an amend.
//
// The rebase todo list and commit messages are supplied by small shell
// scripts passed as GIT_SEQUENCE_EDITOR and GIT_EDITOR. Nothing is patched
// inside git itself. Any failure leaves the repository with no rebase in
// progress.
package rebase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Iron-Ham/gittimemachine/internal/errors"
	"github.com/Iron-Ham/gittimemachine/internal/git"
	"github.com/Iron-Ham/gittimemachine/internal/logging"
)

// Changes describes the new metadata for one commit. Nil fields are left
// as they are, except CommitTime: a nil CommitTime lets git stamp the
// current time on the rewritten commit.
type Changes struct {
	Message    *string
	AuthorTime *time.Time
	CommitTime *time.Time
}

// IsEmpty reports whether no field is set.
func (c Changes) IsEmpty() bool {
	return c.Message == nil && c.AuthorTime == nil && c.CommitTime == nil
}

// Options controls a Driver.
type Options struct {
	// PreserveCommitterDates restores the original committer date of every
	// commit replayed after the target.
	PreserveCommitterDates bool
	// ScriptDir is where temporary scripts are written. Empty means os.TempDir().
	ScriptDir string
}

// Driver performs one rewrite at a time. It is not safe for concurrent use.
type Driver struct {
	repo   *git.Repository
	logger *logging.Logger
	opts   Options
}

// NewDriver creates a Driver.
func NewDriver(repo *git.Repository, logger *logging.Logger, opts Options) *Driver {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Driver{repo: repo, logger: logger.WithPhase("rebase"), opts: opts}
}

// rebaseConfig keeps todo lines in their long form and keeps "#" lines in
// supplied messages.
var rebaseConfig = []string{
	"-c", "rebase.abbreviateCommands=false",
	"-c", "commit.cleanup=whitespace",
}

// FormatDate renders t as a git date that keeps its zone offset.
func FormatDate(t time.Time) string {
	return fmt.Sprintf("@%d %s", t.Unix(), t.Format("-0700"))
}

// InProgress reports whether a rebase state directory exists.
func (d *Driver) InProgress() bool {
	return d.repo.GitDirEntryExists("rebase-merge") || d.repo.GitDirEntryExists("rebase-apply")
}

// AbortIfInProgress runs `git rebase --abort` when a rebase is in progress.
// A failed abort leaves the repository mid-rebase and is critical.
func (d *Driver) AbortIfInProgress(ctx context.Context) error {
	if !d.InProgress() {
		return nil
	}
	d.logger.Warn("aborting rebase in progress")
	if _, err := d.repo.Run(ctx, git.Git("rebase", "--abort")); err != nil {
		return errors.NewGitError("failed to abort rebase", err).
			WithRepository(d.repo.Root()).
			WithGitOutput(git.Stderr(err)).
			WithSeverity(errors.SeverityCritical)
	}
	return nil
}

// Amend rewrites HEAD in a single commit --amend. Staged changes are not
// folded into the commit.
func (d *Driver) Amend(ctx context.Context, ch Changes) error {
	if ch.IsEmpty() {
		return nil
	}
	scripts := NewScriptManager(d.opts.ScriptDir, d.logger)
	defer scripts.Cleanup()

	cmd, err := amendCommandFor(scripts, ch)
	if err != nil {
		return errors.NewRewriteCommandFailedError("amend", err)
	}
	if _, err := d.repo.Run(ctx, cmd); err != nil {
		return errors.NewRewriteCommandFailedError("amend", err)
	}
	return nil
}

// Reword replaces the message of a historical commit using the reword
// action. commitTime, when set, becomes the rewritten commit's date.
func (d *Driver) Reword(ctx context.Context, hash, message string, commitTime *time.Time) error {
	return d.Edit(ctx, hash, Changes{Message: &message, CommitTime: commitTime})
}

// Retime changes the timestamps of a historical commit using the edit
// action and an amend at the stop.
func (d *Driver) Retime(ctx context.Context, hash string, authorTime, commitTime *time.Time) error {
	return d.Edit(ctx, hash, Changes{AuthorTime: authorTime, CommitTime: commitTime})
}

// Edit applies ch to the historical commit hash in one rebase. A message
// only change uses the reword action; anything touching the author date
// stops at the commit and amends it.
func (d *Driver) Edit(ctx context.Context, hash string, ch Changes) error {
	if ch.IsEmpty() {
		return nil
	}
	logger := d.logger.WithCommit(hash)

	if d.InProgress() {
		return errors.NewGitError("cannot start rebase", errors.ErrRebaseInProgress).
			WithRepository(d.repo.Root())
	}
	if err := d.CheckTarget(ctx, hash); err != nil {
		return err
	}

	dates, err := d.replayedDates(ctx, hash)
	if err != nil {
		return errors.NewRewriteCommandFailedError("rebase", err).WithCommit(hash)
	}

	scripts := NewScriptManager(d.opts.ScriptDir, d.logger)
	defer scripts.Cleanup()

	reword := ch.AuthorTime == nil && ch.Message != nil
	if reword {
		err = d.reword(ctx, scripts, hash, ch, dates)
	} else {
		err = d.editAndAmend(ctx, scripts, hash, ch, dates)
	}
	if err != nil {
		if abortErr := d.AbortIfInProgress(context.WithoutCancel(ctx)); abortErr != nil {
			logger.Error("rebase abort failed", "error", abortErr)
		}
		return err
	}

	if d.InProgress() {
		if abortErr := d.AbortIfInProgress(context.WithoutCancel(ctx)); abortErr != nil {
			logger.Error("rebase abort failed", "error", abortErr)
		}
		return errors.NewRewriteCommandFailedError("rebase", fmt.Errorf("rebase did not complete")).WithCommit(hash)
	}

	logger.Info("rewrote commit", "reword", reword)
	return nil
}

func (d *Driver) reword(ctx context.Context, scripts *ScriptManager, hash string, ch Changes, dates map[string]string) error {
	var targetDate string
	if ch.CommitTime != nil {
		targetDate = FormatDate(*ch.CommitTime)
	}

	seq, err := scripts.WriteScript("todo", todoScript(hash, "reword", targetDate, dates))
	if err != nil {
		return errors.NewRewriteCommandFailedError("reword", err).WithCommit(hash)
	}
	msgFile, err := scripts.WriteFile("message", *ch.Message+"\n")
	if err != nil {
		return errors.NewRewriteCommandFailedError("reword", err).WithCommit(hash)
	}
	editor, err := scripts.WriteScript("editor", messageScript(msgFile))
	if err != nil {
		return errors.NewRewriteCommandFailedError("reword", err).WithCommit(hash)
	}

	cmd := rebaseCommand(hash).
		WithEnv("GIT_SEQUENCE_EDITOR", ShellQuote(seq)).
		WithEnv("GIT_EDITOR", ShellQuote(editor))
	if _, err := d.repo.Run(ctx, cmd); err != nil {
		return errors.NewRewriteCommandFailedError("reword", err).WithCommit(hash)
	}
	return nil
}

func (d *Driver) editAndAmend(ctx context.Context, scripts *ScriptManager, hash string, ch Changes, dates map[string]string) error {
	seq, err := scripts.WriteScript("todo", todoScript(hash, "edit", "", dates))
	if err != nil {
		return errors.NewRewriteCommandFailedError("edit", err).WithCommit(hash)
	}

	cmd := rebaseCommand(hash).
		WithEnv("GIT_SEQUENCE_EDITOR", ShellQuote(seq)).
		WithEnv("GIT_EDITOR", "true")
	if _, err := d.repo.Run(ctx, cmd); err != nil {
		return errors.NewRewriteCommandFailedError("edit", err).WithCommit(hash)
	}
	if !d.InProgress() {
		return errors.NewRewriteCommandFailedError("edit",
			fmt.Errorf("rebase did not stop at %s", hash)).WithCommit(hash)
	}

	amend, err := amendCommandFor(scripts, ch)
	if err != nil {
		return errors.NewRewriteCommandFailedError("amend", err).WithCommit(hash)
	}
	if _, err := d.repo.Run(ctx, amend); err != nil {
		return errors.NewRewriteCommandFailedError("amend", err).WithCommit(hash)
	}

	cont := git.Git(append(append([]string{}, rebaseConfig...), "rebase", "--continue")...).
		WithEnv("GIT_EDITOR", "true")
	if _, err := d.repo.Run(ctx, cont); err != nil {
		return errors.NewRewriteCommandFailedError("continue", err).WithCommit(hash)
	}
	return nil
}

// CheckTarget refuses targets the rebase path cannot handle: commits not
// on the current branch, the root commit, and ranges containing merges.
func (d *Driver) CheckTarget(ctx context.Context, hash string) error {
	if _, err := d.repo.Run(ctx, git.Git("merge-base", "--is-ancestor", hash, "HEAD")); err != nil {
		if git.ExitCode(err) == 1 {
			return errors.NewNotFoundError("commit on current branch", hash)
		}
		return errors.NewRewriteCommandFailedError("rebase", err).WithCommit(hash)
	}

	if _, err := d.repo.Run(ctx, git.Git("rev-parse", "--verify", "--quiet", hash+"^")); err != nil {
		if git.ExitCode(err) == 1 {
			return errors.NewUnsupportedOperationError("rewriting the root commit", hash, errors.ErrRootCommit)
		}
		return errors.NewRewriteCommandFailedError("rebase", err).WithCommit(hash)
	}

	out, err := d.repo.Run(ctx, git.Git("rev-list", "--merges", "--count", hash+"^..HEAD"))
	if err != nil {
		return errors.NewRewriteCommandFailedError("rebase", err).WithCommit(hash)
	}
	if n, _ := strconv.Atoi(out); n > 0 {
		return errors.NewUnsupportedOperationError("rewriting history that contains merge commits", hash, nil)
	}
	return nil
}

// replayedDates maps every commit after hash up to HEAD to its committer
// date, or returns nil when committer dates are not preserved.
func (d *Driver) replayedDates(ctx context.Context, hash string) (map[string]string, error) {
	if !d.opts.PreserveCommitterDates {
		return nil, nil
	}
	out, err := d.repo.Run(ctx, git.Git("log", "--format=%H %ct %cd", "--date=format:%z", hash+"..HEAD"))
	if err != nil {
		return nil, err
	}

	dates := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 3 {
			continue
		}
		dates[fields[0]] = "@" + fields[1] + " " + fields[2]
	}
	return dates, nil
}

func rebaseCommand(hash string) git.Command {
	args := append([]string{}, rebaseConfig...)
	args = append(args, "rebase", "-i", "--no-autosquash", "--autostash", hash+"^")
	return git.Git(args...)
}

// amendCommandFor builds the commit --amend for ch, writing the message to
// a file so it never passes through argv.
func amendCommandFor(scripts *ScriptManager, ch Changes) (git.Command, error) {
	args := []string{"-c", "commit.cleanup=whitespace", "commit", "--amend", "--only", "--allow-empty", "--no-verify", "--quiet"}
	if ch.Message != nil {
		path, err := scripts.WriteFile("message", *ch.Message+"\n")
		if err != nil {
			return git.Command{}, err
		}
		args = append(args, "-F", path)
	} else {
		args = append(args, "--no-edit")
	}
	if ch.AuthorTime != nil {
		args = append(args, "--date="+FormatDate(*ch.AuthorTime))
	}

	cmd := git.Git(args...)
	if ch.CommitTime != nil {
		cmd = cmd.WithEnv("GIT_COMMITTER_DATE", FormatDate(*ch.CommitTime))
	}
	return cmd, nil
}
