package rewrite_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/gittimemachine/internal/errors"
	"github.com/Iron-Ham/gittimemachine/internal/git"
	"github.com/Iron-Ham/gittimemachine/internal/history"
	"github.com/Iron-Ham/gittimemachine/internal/rewrite"
	"github.com/Iron-Ham/gittimemachine/internal/testutil"
)

func newEngine(t *testing.T, dir string) *rewrite.Engine {
	t.Helper()
	testutil.SkipIfNoShell(t)
	repo, err := git.Open(context.Background(), dir, git.OpenOptions{})
	require.NoError(t, err)
	return rewrite.New(repo, rewrite.Options{
		SyncCommitDate:         true,
		PreserveCommitterDates: true,
		ScriptDir:              t.TempDir(),
	}, nil)
}

func strPtr(s string) *string { return &s }

func backupBranches(t *testing.T, dir string) []string {
	t.Helper()
	out := testutil.Git(t, dir, "branch", "--list", "--format=%(refname:short)", "*-backup-*")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

// snapshot records the authored metadata of every commit, oldest first.
type snapshot struct {
	message    string
	authorTime int64
	commitTime int64
}

func takeSnapshot(t *testing.T, dir string) []snapshot {
	t.Helper()
	hashes := testutil.RevList(t, dir, "--reverse", "HEAD")
	out := make([]snapshot, len(hashes))
	for i, h := range hashes {
		out[i] = snapshot{
			message:    testutil.CommitMessage(t, dir, h),
			authorTime: testutil.AuthorTime(t, dir, h),
			commitTime: testutil.CommitTime(t, dir, h),
		}
	}
	return out
}

func TestEngine_EditMiddleCommit(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir := testutil.SetupTestRepo(t)
	hashes := testutil.CommitSeries(t, dir, "C1", "C2", "C3")
	before := takeSnapshot(t, dir)

	e := newEngine(t, dir)
	res, err := e.EditOne(context.Background(), rewrite.EditRequest{
		Hash:       hashes[1][:8],
		NewMessage: strPtr("C2 improved"),
	}, rewrite.RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, rewrite.StateDone, res.Session.State)
	assert.Equal(t, 1, res.Session.Applied)
	assert.NotEmpty(t, res.Session.ID)
	assert.Equal(t, hashes[2], res.Session.Backup.Commit)

	assert.Equal(t, hashes[0], testutil.RevParse(t, dir, "HEAD~2"))
	assert.Equal(t, "C2 improved", testutil.Subject(t, dir, "HEAD~1"))
	assert.Equal(t, "C3", testutil.Subject(t, dir, "HEAD"))
	assert.Equal(t, testutil.RevParse(t, dir, "HEAD~1"), res.Session.Rewritten[hashes[1]])

	after := takeSnapshot(t, dir)
	require.Len(t, after, len(before))
	for i := range before {
		if i == 2 {
			assert.Equal(t, before[i].authorTime, after[i].authorTime)
			assert.Equal(t, before[i].commitTime, after[i].commitTime)
			continue
		}
		assert.Equal(t, before[i], after[i], "commit %d", i)
	}

	// The returned scan reflects the new history
	head, ok := res.Scan.Head()
	require.True(t, ok)
	assert.Equal(t, testutil.HeadHash(t, dir), head.Hash)

	// The backup still points at the original tip
	assert.Equal(t, hashes[2], testutil.RevParse(t, dir, res.Session.Backup.Branch))
}

func TestEngine_HeadAmend(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir := testutil.SetupTestRepo(t)
	testutil.CommitSeries(t, dir, "Tip")
	authorBefore := testutil.AuthorTime(t, dir, "HEAD")
	e := newEngine(t, dir)

	_, err := e.EditOne(context.Background(), rewrite.EditRequest{
		Hash:       testutil.HeadHash(t, dir),
		NewMessage: strPtr("Tip reworded"),
	}, rewrite.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Tip reworded", testutil.Subject(t, dir, "HEAD"))
	assert.Equal(t, authorBefore, testutil.AuthorTime(t, dir, "HEAD"))

	at := time.Date(2022, 12, 24, 18, 0, 0, 0, time.UTC)
	_, err = e.EditOne(context.Background(), rewrite.EditRequest{
		Hash:          testutil.HeadHash(t, dir),
		NewAuthorTime: &at,
	}, rewrite.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Tip reworded", testutil.Subject(t, dir, "HEAD"))
	assert.Equal(t, at.Unix(), testutil.AuthorTime(t, dir, "HEAD"))
	// Commit date follows the author date
	assert.Equal(t, at.Unix(), testutil.CommitTime(t, dir, "HEAD"))
}

func TestEngine_BulkChangesExactlyN(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir := testutil.SetupTestRepo(t)
	hashes := testutil.CommitSeries(t, dir, "one", "two", "three", "four", "five")
	before := takeSnapshot(t, dir)

	at := time.Date(2024, 3, 1, 13, 30, 0, 0, time.UTC)
	reqs := []rewrite.EditRequest{
		// Deliberately newest first: the engine reorders
		{Hash: hashes[4], NewMessage: strPtr("five, edited")},
		{Hash: hashes[3]},
		{Hash: hashes[2], NewAuthorTime: &at},
		{Hash: hashes[0], NewMessage: strPtr("one, edited\n\nwith a body")},
	}

	var seen []string
	e := newEngine(t, dir)
	res, err := e.EditBulk(context.Background(), reqs, rewrite.RunOptions{
		Progress: func(current, total int, target history.CommitRecord) {
			assert.Equal(t, 3, total)
			seen = append(seen, target.Subject)
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "three", "five"}, seen)
	assert.Equal(t, 3, res.Session.Applied)

	after := takeSnapshot(t, dir)
	require.Len(t, after, len(before))
	changed := 0
	for i := range before {
		if before[i] != after[i] {
			changed++
		}
	}
	assert.Equal(t, 3, changed)

	assert.Equal(t, "one, edited\n\nwith a body", after[1].message)
	assert.Equal(t, at.Unix(), after[3].authorTime)
	assert.Equal(t, "five, edited", after[5].message)
	assert.Len(t, backupBranches(t, dir), 1)
}

func TestEngine_DuplicateSubjects(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir := testutil.SetupTestRepo(t)
	hashes := testutil.CommitSeries(t, dir, "fix", "fix", "fix")

	e := newEngine(t, dir)
	_, err := e.EditBulk(context.Background(), []rewrite.EditRequest{
		{Hash: hashes[2], NewMessage: strPtr("fix third")},
		{Hash: hashes[0], NewMessage: strPtr("fix first")},
	}, rewrite.RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, "fix first", testutil.Subject(t, dir, "HEAD~2"))
	assert.Equal(t, "fix", testutil.Subject(t, dir, "HEAD~1"))
	assert.Equal(t, "fix third", testutil.Subject(t, dir, "HEAD"))
}

func TestEngine_FailureRestoresCleanState(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir := testutil.SetupTestRepo(t)
	hashes := testutil.CommitSeries(t, dir, "one", "two", "three")
	head := testutil.HeadHash(t, dir)

	hook := filepath.Join(testutil.GitDir(t, dir), "hooks", "prepare-commit-msg")
	require.NoError(t, os.MkdirAll(filepath.Dir(hook), 0o755))
	require.NoError(t, os.WriteFile(hook, []byte("#!/bin/sh\nexit 1\n"), 0o755))

	e := newEngine(t, dir)
	res, err := e.EditBulk(context.Background(), []rewrite.EditRequest{
		{Hash: hashes[0], NewMessage: strPtr("one, edited")},
		{Hash: hashes[1], NewMessage: strPtr("two, edited")},
	}, rewrite.RunOptions{})
	require.Error(t, err)

	var rwErr *errors.RewriteCommandFailedError
	require.True(t, errors.As(err, &rwErr))
	require.NotEmpty(t, rwErr.BackupBranch)
	assert.Equal(t, hashes[0], rwErr.Hash)

	branch, ok := errors.BackupBranchOf(err)
	require.True(t, ok)
	assert.Equal(t, rwErr.BackupBranch, branch)

	assert.Equal(t, rewrite.StateAborted, res.Session.State)
	assert.False(t, testutil.RebaseInProgress(t, dir))
	assert.Equal(t, head, testutil.RevParse(t, dir, rwErr.BackupBranch))
	assert.Equal(t, head, testutil.HeadHash(t, dir))
}

func TestEngine_RejectsBeforeWriting(t *testing.T) {
	testutil.SkipIfNoGit(t)
	ctx := context.Background()

	t.Run("empty message", func(t *testing.T) {
		dir := testutil.SetupTestRepo(t)
		hashes := testutil.CommitSeries(t, dir, "one", "two")
		head := testutil.HeadHash(t, dir)

		_, err := newEngine(t, dir).EditBulk(ctx, []rewrite.EditRequest{
			{Hash: hashes[0], NewMessage: strPtr("fine")},
			{Hash: hashes[1], NewMessage: strPtr("  \n")},
		}, rewrite.RunOptions{})
		var vErr *errors.ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Empty(t, backupBranches(t, dir))
		assert.Equal(t, head, testutil.HeadHash(t, dir))
	})

	t.Run("pushed commit", func(t *testing.T) {
		dir, _ := testutil.SetupTestRepoWithRemote(t)
		pushed := testutil.HeadHash(t, dir)
		testutil.CommitSeries(t, dir, "local")

		_, err := newEngine(t, dir).EditOne(ctx, rewrite.EditRequest{
			Hash:       pushed,
			NewMessage: strPtr("rewrite history"),
		}, rewrite.RunOptions{})
		var inel *errors.IneligibleCommitError
		require.True(t, errors.As(err, &inel))
		assert.Equal(t, "origin/main", inel.Upstream)
		assert.Empty(t, backupBranches(t, dir))
	})

	t.Run("dirty tree", func(t *testing.T) {
		dir := testutil.SetupTestRepo(t)
		hashes := testutil.CommitSeries(t, dir, "one")
		require.NoError(t, os.WriteFile(filepath.Join(dir, "file1.txt"), []byte("dirty\n"), 0o644))

		e := newEngine(t, dir)
		_, err := e.EditOne(ctx, rewrite.EditRequest{Hash: hashes[0], NewMessage: strPtr("x")}, rewrite.RunOptions{})
		var dirty *errors.DirtyWorkingTreeError
		require.True(t, errors.As(err, &dirty))
		assert.Empty(t, backupBranches(t, dir))

		_, err = e.EditOne(ctx, rewrite.EditRequest{Hash: hashes[0], NewMessage: strPtr("x")}, rewrite.RunOptions{AllowDirty: true})
		require.NoError(t, err)
		assert.Equal(t, "x", testutil.Subject(t, dir, "HEAD"))
		assert.True(t, testutil.HasUncommittedChanges(t, dir))
	})

	t.Run("root commit", func(t *testing.T) {
		dir := testutil.SetupTestRepo(t)
		root := testutil.HeadHash(t, dir)
		testutil.CommitSeries(t, dir, "one")

		_, err := newEngine(t, dir).EditOne(ctx, rewrite.EditRequest{Hash: root, NewMessage: strPtr("x")}, rewrite.RunOptions{})
		var unsupported *errors.UnsupportedOperationError
		require.True(t, errors.As(err, &unsupported))
		assert.Empty(t, backupBranches(t, dir))
	})

	t.Run("canceled", func(t *testing.T) {
		dir := testutil.SetupTestRepo(t)
		hashes := testutil.CommitSeries(t, dir, "one", "two")

		// A canceled context stops the session before the backup
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := newEngine(t, dir).EditOne(cctx, rewrite.EditRequest{Hash: hashes[0], NewMessage: strPtr("x")}, rewrite.RunOptions{})
		require.Error(t, err)
		assert.Empty(t, backupBranches(t, dir))
		assert.Equal(t, "one", testutil.Subject(t, dir, "HEAD~1"))
	})
}

func TestEngine_NoopRequests(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir := testutil.SetupTestRepo(t)
	hashes := testutil.CommitSeries(t, dir, "one")
	head := testutil.HeadHash(t, dir)

	res, err := newEngine(t, dir).EditBulk(context.Background(), []rewrite.EditRequest{
		{Hash: hashes[0]},
	}, rewrite.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, rewrite.StateDone, res.Session.State)
	assert.Empty(t, backupBranches(t, dir))

	// Same message: backed up but nothing rewritten
	res, err = newEngine(t, dir).EditOne(context.Background(), rewrite.EditRequest{
		Hash:       hashes[0],
		NewMessage: strPtr("one"),
	}, rewrite.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Session.Skipped)
	assert.Equal(t, head, testutil.HeadHash(t, dir))
}

func TestEngine_SessionInProgress(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir := testutil.SetupTestRepo(t)
	hashes := testutil.CommitSeries(t, dir, "one", "two")
	e := newEngine(t, dir)

	var nestedErr, restoreErr error
	_, err := e.EditOne(context.Background(), rewrite.EditRequest{
		Hash:       hashes[0],
		NewMessage: strPtr("one, edited"),
	}, rewrite.RunOptions{
		Progress: func(int, int, history.CommitRecord) {
			_, nestedErr = e.EditOne(context.Background(), rewrite.EditRequest{Hash: hashes[1], NewMessage: strPtr("y")}, rewrite.RunOptions{})
			restoreErr = e.Restore(context.Background(), "anything", true)
		},
	})
	require.NoError(t, err)
	assert.ErrorIs(t, nestedErr, errors.ErrSessionInProgress)
	assert.ErrorIs(t, restoreErr, errors.ErrSessionInProgress)
	assert.Equal(t, "two", testutil.Subject(t, dir, "HEAD"))
}

func TestEngine_PreviewAndRestore(t *testing.T) {
	testutil.SkipIfNoGit(t)
	ctx := context.Background()
	dir := testutil.SetupTestRepo(t)
	hashes := testutil.CommitSeries(t, dir, "one", "two")
	head := testutil.HeadHash(t, dir)
	e := newEngine(t, dir)

	at := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	reqs := []rewrite.EditRequest{
		{Hash: hashes[1], NewMessage: strPtr("two, edited")},
		{Hash: hashes[0], NewAuthorTime: &at},
		{Hash: hashes[0][:7], NewMessage: strPtr("one")},
	}

	plan, err := e.Preview(ctx, reqs)
	require.NoError(t, err)
	require.Len(t, plan.Edits, 2)
	assert.Equal(t, "main", plan.CurrentBranch)
	assert.Equal(t, hashes[0], plan.Edits[0].Target.Hash)
	assert.Equal(t, rewrite.MethodEdit, plan.Edits[0].Method)
	assert.Nil(t, plan.Edits[0].NewMessage)
	assert.Equal(t, at.Unix(), plan.Edits[0].NewCommitTime.Unix())
	assert.Equal(t, rewrite.MethodAmend, plan.Edits[1].Method)
	assert.Equal(t, head, testutil.HeadHash(t, dir))
	assert.Empty(t, backupBranches(t, dir))

	res, err := e.EditBulk(ctx, reqs, rewrite.RunOptions{})
	require.NoError(t, err)
	require.NotEqual(t, head, testutil.HeadHash(t, dir))

	backups, err := e.ListBackups(ctx)
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Equal(t, res.Session.Backup.Branch, backups[0].Branch)

	assert.ErrorIs(t, e.Restore(ctx, backups[0].Branch, false), errors.ErrConfirmationRequired)
	require.NoError(t, e.Restore(ctx, backups[0].Branch, true))
	assert.Equal(t, head, testutil.HeadHash(t, dir))
}

func TestEngine_Scan(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir, _ := testutil.SetupTestRepoWithRemote(t)
	testutil.CommitSeries(t, dir, "local one", "local two")

	scan, err := newEngine(t, dir).Scan(context.Background())
	require.NoError(t, err)
	assert.True(t, scan.HasUpstream)
	assert.Equal(t, "origin/main", scan.UpstreamBranch)
	require.Len(t, scan.Commits, 2)
	assert.Equal(t, "local two", scan.Commits[0].Subject)
}

func TestEngine_AcceptsRevisionNames(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir := testutil.SetupTestRepo(t)
	testutil.CommitSeries(t, dir, "one", "two")

	e := newEngine(t, dir)
	res, err := e.EditOne(context.Background(), rewrite.EditRequest{
		Hash:       "HEAD~1",
		NewMessage: strPtr("one, via HEAD~1"),
	}, rewrite.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Session.Applied)
	assert.Equal(t, "one, via HEAD~1", testutil.Subject(t, dir, "HEAD~1"))

	_, err = e.EditOne(context.Background(), rewrite.EditRequest{
		Hash:       "no-such-branch",
		NewMessage: strPtr("x"),
	}, rewrite.RunOptions{})
	var notFound *errors.NotFoundError
	require.True(t, errors.As(err, &notFound))
}

func TestEngine_KeepsRecordedZoneOffsets(t *testing.T) {
	testutil.SkipIfNoGit(t)
	t.Setenv("TZ", "UTC")

	dir := testutil.SetupTestRepo(t)
	tokyo := time.FixedZone("JST", 9*3600)
	var hashes []string
	for i, msg := range []string{"Z1", "Z2", "Z3"} {
		at := testutil.BaseTime.Add(time.Duration(i+1) * time.Hour).In(tokyo)
		hashes = append(hashes, testutil.CommitAt(t, dir, msg+".txt", msg+"\n", msg, at))
	}
	before := takeSnapshot(t, dir)

	e := newEngine(t, dir)
	_, err := e.EditBulk(context.Background(), []rewrite.EditRequest{
		{Hash: hashes[1], NewMessage: strPtr("Z2 reworded")},
		{Hash: hashes[2], NewMessage: strPtr("Z3 reworded")},
	}, rewrite.RunOptions{})
	require.NoError(t, err)

	after := takeSnapshot(t, dir)
	require.Len(t, after, len(before))
	for i := range after {
		assert.Equal(t, before[i].authorTime, after[i].authorTime, "commit %d author time", i)
		assert.Equal(t, before[i].commitTime, after[i].commitTime, "commit %d commit time", i)
	}

	for _, rev := range []string{"HEAD", "HEAD~1", "HEAD~2"} {
		assert.Equal(t, "+0900", testutil.Git(t, dir, "log", "-1", "--format=%ad", "--date=format:%z", rev), "%s author zone", rev)
		assert.Equal(t, "+0900", testutil.Git(t, dir, "log", "-1", "--format=%cd", "--date=format:%z", rev), "%s committer zone", rev)
	}
	assert.Equal(t, "Z2 reworded", testutil.Subject(t, dir, "HEAD~1"))
	assert.Equal(t, "Z3 reworded", testutil.Subject(t, dir, "HEAD"))
}
