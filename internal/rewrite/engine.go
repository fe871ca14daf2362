// Package rewrite orchestrates history edits: it verifies safety, creates a
// backup branch, and applies edit requests oldest first while tracking each
// target across the hash changes earlier edits cause.
package rewrite

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/gittimemachine/internal/backup"
	"github.com/Iron-Ham/gittimemachine/internal/errors"
	"github.com/Iron-Ham/gittimemachine/internal/git"
	"github.com/Iron-Ham/gittimemachine/internal/history"
	"github.com/Iron-Ham/gittimemachine/internal/logging"
	"github.com/Iron-Ham/gittimemachine/internal/rebase"
	"github.com/Iron-Ham/gittimemachine/internal/safety"
)

// Options configures an Engine.
type Options struct {
	BackupPrefix           string
	Fetch                  bool
	MaxCommits             int
	StrictRemotes          bool
	SyncCommitDate         bool
	PreserveCommitterDates bool
	ScriptDir              string
}

// RunOptions configures one session.
type RunOptions struct {
	// AllowDirty proceeds past a dirty working tree.
	AllowDirty bool
	Progress   ProgressFunc
}

// Engine is the entry point used by the CLI. Only one session runs at a
// time; a concurrent EditOne, EditBulk or Restore fails with
// errors.ErrSessionInProgress.
type Engine struct {
	mu sync.Mutex

	repo     *git.Repository
	branches *git.BranchResolver
	display  *history.Reader
	tracker  *history.Reader
	verifier *safety.Verifier
	backups  *backup.Manager
	driver   *rebase.Driver
	policy   DatePolicy
	opts     Options
	logger   *logging.Logger

	newID func() string
	now   func() time.Time
}

// New wires the engine's components around repo.
func New(repo *git.Repository, opts Options, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if opts.BackupPrefix == "" {
		opts.BackupPrefix = backup.DefaultPrefix
	}

	branches := git.NewBranchResolver(repo)
	driver := rebase.NewDriver(repo, logger, rebase.Options{
		PreserveCommitterDates: opts.PreserveCommitterDates,
		ScriptDir:              opts.ScriptDir,
	})

	return &Engine{
		repo:     repo,
		branches: branches,
		display:  history.NewReader(repo, branches, logger, history.Options{Fetch: opts.Fetch, MaxCommits: opts.MaxCommits}),
		// Identity tracking needs every local commit and stable ordinals
		tracker:  history.NewReader(repo, branches, logger, history.Options{}),
		verifier: safety.NewVerifier(repo, branches, logger, safety.Options{StrictRemotes: opts.StrictRemotes}),
		backups:  backup.NewManager(repo, branches, driver, logger),
		driver:   driver,
		policy: DatePolicy{
			SyncCommitDate:         opts.SyncCommitDate,
			PreserveCommitterDates: opts.PreserveCommitterDates,
		},
		opts:   opts,
		logger: logger,
		newID:  func() string { return uuid.New().String() },
		now:    time.Now,
	}
}

// Scan lists local-only commits with the branch snapshot.
func (e *Engine) Scan(ctx context.Context) (*history.ScanResult, error) {
	return e.display.Scan(ctx)
}

// ListBackups lists the backup branches of the current branch, newest first.
func (e *Engine) ListBackups(ctx context.Context) ([]backup.Pointer, error) {
	return e.backups.List(ctx, e.opts.BackupPrefix)
}

// Restore hard-resets the current branch to a backup branch.
func (e *Engine) Restore(ctx context.Context, branch string, confirmed bool) error {
	if !e.mu.TryLock() {
		return errors.ErrSessionInProgress
	}
	defer e.mu.Unlock()
	return e.backups.Restore(ctx, branch, confirmed)
}

// EditOne applies a single request.
func (e *Engine) EditOne(ctx context.Context, req EditRequest, ro RunOptions) (*Result, error) {
	return e.EditBulk(ctx, []EditRequest{req}, ro)
}

// target is a request bound to the commit it was made for.
type target struct {
	req      EditRequest
	original history.CommitRecord
	id       identity
}

// prepared is the validated, ordered input of a session.
type prepared struct {
	scan    *history.ScanResult
	targets []target
}

// prepare validates reqs, resolves their hashes against a fresh scan,
// merges duplicates and orders them oldest author time first. It performs
// no writes.
func (e *Engine) prepare(ctx context.Context, reqs []EditRequest) (*prepared, error) {
	for _, r := range reqs {
		if r.IsNoop() {
			continue
		}
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}

	if e.opts.Fetch {
		e.fetchUpstream(ctx)
	}
	scan, err := e.tracker.Scan(ctx)
	if err != nil {
		return nil, err
	}
	oldest := scan.OldestFirst()

	expanded := make([]EditRequest, 0, len(reqs))
	for _, r := range reqs {
		if r.IsNoop() {
			continue
		}
		full, err := e.expandHash(ctx, oldest, r.Hash)
		if err != nil {
			return nil, err
		}
		r.Hash = full
		expanded = append(expanded, r)
	}

	normalized, err := normalizeRequests(expanded)
	if err != nil {
		return nil, err
	}

	targets := make([]target, 0, len(normalized))
	for _, r := range normalized {
		ord := ordinalOf(oldest, r.Hash)
		if ord < 0 {
			// Known to git but not local-only: let the verifier explain why
			continue
		}
		c := oldest[ord]
		targets = append(targets, target{
			req:      r,
			original: c,
			id:       identity{original: c.Hash, subject: c.Subject, ordinal: ord},
		})
	}

	sort.SliceStable(targets, func(i, j int) bool {
		ai, aj := targets[i].original.AuthorTime, targets[j].original.AuthorTime
		if !ai.Equal(aj) {
			return ai.Before(aj)
		}
		return targets[i].id.ordinal < targets[j].id.ordinal
	})

	if len(targets) != len(normalized) {
		if err := e.verifier.Check(ctx, hashesOf(normalized), true); err != nil {
			return nil, err
		}
		for _, r := range normalized {
			if ordinalOf(oldest, r.Hash) < 0 {
				return nil, errors.NewNotFoundError("local commit", r.Hash)
			}
		}
	}

	return &prepared{scan: scan, targets: targets}, nil
}

// expandHash resolves an abbreviated hash against the local-only commits,
// then against the whole repository.
func (e *Engine) expandHash(ctx context.Context, commits []history.CommitRecord, hash string) (string, error) {
	rev := strings.TrimSpace(hash)
	hash = strings.ToLower(rev)
	var match string
	for _, c := range commits {
		if c.Hash == hash {
			return hash, nil
		}
		if len(hash) >= 4 && strings.HasPrefix(c.Hash, hash) {
			if match != "" {
				return "", errors.NewValidationError("ambiguous commit hash").WithField("hash").WithValue(hash)
			}
			match = c.Hash
		}
	}
	if match != "" {
		return match, nil
	}

	// Not a local hash prefix: any revision git understands, such as HEAD~1
	out, err := e.repo.Run(ctx, git.Git("rev-parse", "--verify", "--quiet", rev+"^{commit}"))
	if err != nil || out == "" {
		return "", errors.NewNotFoundError("commit", rev)
	}
	return out, nil
}

func (e *Engine) fetchUpstream(ctx context.Context) {
	branch, err := e.branches.CurrentBranch(ctx)
	if err != nil {
		return
	}
	up, ok, err := e.branches.Upstream(ctx, branch)
	if err != nil || !ok {
		return
	}
	if err := e.branches.Fetch(ctx, up.Remote); err != nil {
		e.logger.Warn("fetch failed, checking against existing tracking ref", "remote", up.Remote, "error", err)
	}
}

// Preview computes what EditBulk would do without writing anything.
func (e *Engine) Preview(ctx context.Context, reqs []EditRequest) (*Plan, error) {
	p, err := e.prepare(ctx, reqs)
	if err != nil {
		return nil, err
	}
	if err := e.verifier.Check(ctx, p.hashes(), true); err != nil {
		return nil, err
	}

	head, _ := p.scan.Head()
	plan := &Plan{BranchSnapshot: p.scan.BranchSnapshot}
	for _, t := range p.targets {
		ch := e.policy.Changes(t.req, t.original)
		if ch.IsEmpty() {
			plan.Unchanged++
			continue
		}
		plan.Edits = append(plan.Edits, PlannedEdit{
			Target:        t.original,
			Request:       t.req,
			Method:        methodFor(ch, t.original.Hash == head.Hash),
			NewMessage:    ch.Message,
			NewAuthorTime: ch.AuthorTime,
			NewCommitTime: ch.CommitTime,
		})
	}
	return plan, nil
}

// EditBulk applies reqs in one session: safety check, backup, then each
// request oldest first with a rescan after every rewrite. On failure any
// rebase in progress is aborted and the returned
// *errors.RewriteCommandFailedError names the backup branch.
func (e *Engine) EditBulk(ctx context.Context, reqs []EditRequest, ro RunOptions) (*Result, error) {
	if !e.mu.TryLock() {
		return nil, errors.ErrSessionInProgress
	}
	defer e.mu.Unlock()

	p, err := e.prepare(ctx, reqs)
	if err != nil {
		return nil, err
	}

	session := newSession(e.newID(), e.now())
	logger := e.logger.WithSession(session.ID)
	for _, t := range p.targets {
		session.Requests = append(session.Requests, t.req)
	}

	if len(p.targets) == 0 {
		logger.Info("nothing to rewrite")
		session.State = StateDone
		return &Result{Session: session, Scan: p.scan}, nil
	}

	if err := e.verifier.Check(ctx, p.hashes(), ro.AllowDirty); err != nil {
		return nil, err
	}
	head, _ := p.scan.Head()
	for _, t := range p.targets {
		if t.original.Hash == head.Hash {
			continue
		}
		if err := e.driver.CheckTarget(ctx, t.original.Hash); err != nil {
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Join(errors.ErrCanceled, err)
	}

	ptr, err := e.backups.CreateBackup(ctx, e.opts.BackupPrefix)
	if err != nil {
		session.State = StateAborted
		return nil, err
	}
	session.Backup = ptr
	if err := session.transition(StateBackedUp); err != nil {
		return nil, err
	}
	logger.Info("session started", "requests", len(p.targets), "backup", ptr.Branch)

	// Not cancellable once the backup exists
	wctx := context.WithoutCancel(ctx)

	final, err := e.apply(wctx, session, p, ro.Progress, logger)
	if err != nil {
		if abortErr := e.driver.AbortIfInProgress(wctx); abortErr != nil {
			logger.Error("rebase abort failed", "error", abortErr)
		}
		session.State = StateAborted
		logger.Error("session aborted", "error", err, "backup", ptr.Branch)
		return &Result{Session: session}, wrapFailure(err, ptr.Branch)
	}

	if err := session.transition(StateDone); err != nil {
		return nil, err
	}
	logger.Info("session finished", "applied", session.Applied, "skipped", session.Skipped)
	return &Result{Session: session, Scan: final}, nil
}

func (e *Engine) apply(ctx context.Context, session *Session, p *prepared, progress ProgressFunc, logger *logging.Logger) (*history.ScanResult, error) {
	scan := p.scan
	current := scan.OldestFirst()
	previousLen := len(current)
	total := len(p.targets)

	for i := range p.targets {
		t := &p.targets[i]
		if err := session.transition(StateRewriting); err != nil {
			return nil, err
		}
		session.Current = i

		commit, err := resolve(t.id, current, previousLen)
		if err != nil {
			return nil, err
		}
		if progress != nil {
			progress(i+1, total, commit)
		}

		ch := e.policy.Changes(t.req, commit)
		if ch.IsEmpty() {
			session.Skipped++
			session.Rewritten[t.id.original] = commit.Hash
			continue
		}

		head, _ := scan.Head()
		method := methodFor(ch, commit.Hash == head.Hash)
		logger.Debug("applying edit", "commit", commit.Hash, "method", string(method), "index", i+1, "total", total)

		if method == MethodAmend {
			err = e.driver.Amend(ctx, ch)
		} else {
			err = e.driver.Edit(ctx, commit.Hash, ch)
		}
		if err != nil {
			var rwErr *errors.RewriteCommandFailedError
			if errors.As(err, &rwErr) && rwErr.Hash == "" {
				rwErr.WithCommit(commit.Hash)
			}
			return nil, err
		}
		session.Applied++

		if ch.Message != nil {
			t.id.subject = history.SubjectOf(*ch.Message)
		}
		t.id.edited = true

		previousLen = len(current)
		scan, err = e.tracker.Scan(ctx)
		if err != nil {
			return nil, err
		}
		current = scan.OldestFirst()

		rewritten, err := resolve(t.id, current, previousLen)
		if err != nil {
			return nil, err
		}
		session.Rewritten[t.id.original] = rewritten.Hash
		previousLen = len(current)
	}
	return scan, nil
}

func (p *prepared) hashes() []string {
	out := make([]string, len(p.targets))
	for i, t := range p.targets {
		out[i] = t.original.Hash
	}
	return out
}

func hashesOf(reqs []EditRequest) []string {
	out := make([]string, len(reqs))
	for i, r := range reqs {
		out[i] = r.Hash
	}
	return out
}

// wrapFailure returns err as a RewriteCommandFailedError carrying backup.
func wrapFailure(err error, backupBranch string) error {
	var rwErr *errors.RewriteCommandFailedError
	if errors.As(err, &rwErr) {
		return rwErr.WithBackupBranch(backupBranch)
	}
	return errors.NewRewriteCommandFailedError("rewrite", err).WithBackupBranch(backupBranch)
}
