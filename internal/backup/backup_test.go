package backup_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/gittimemachine/internal/backup"
	"github.com/Iron-Ham/gittimemachine/internal/errors"
	"github.com/Iron-Ham/gittimemachine/internal/git"
	"github.com/Iron-Ham/gittimemachine/internal/git/gittest"
	"github.com/Iron-Ham/gittimemachine/internal/testutil"
)

type fakeAborter struct {
	calls int
	err   error
}

func (f *fakeAborter) AbortIfInProgress(context.Context) error {
	f.calls++
	return f.err
}

func openManager(t *testing.T, dir string, aborter backup.RebaseAborter) *backup.Manager {
	t.Helper()
	repo, err := git.Open(context.Background(), dir, git.OpenOptions{})
	require.NoError(t, err)
	return backup.NewManager(repo, git.NewBranchResolver(repo), aborter, nil)
}

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func TestBranchName(t *testing.T) {
	at := time.UnixMilli(1700000000123)

	assert.Equal(t, "main-backup-1700000000123", backup.BranchName("main", "", at))
	assert.Equal(t, "feature/x-undo-1700000000123", backup.BranchName("feature/x", "undo", at))
}

func TestManager_CreateBackup(t *testing.T) {
	testutil.SkipIfNoGit(t)
	ctx := context.Background()
	dir := testutil.SetupTestRepo(t)
	testutil.CommitSeries(t, dir, "one", "two")
	head := testutil.HeadHash(t, dir)

	m := openManager(t, dir, nil)
	backup.SetClock(m, fixedClock(1700000000123))

	ptr, err := m.CreateBackup(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "main-backup-1700000000123", ptr.Branch)
	assert.Equal(t, head, ptr.Commit)
	assert.Equal(t, int64(1700000000123), ptr.CreatedAt.UnixMilli())
	assert.Equal(t, head, testutil.RevParse(t, dir, ptr.Branch))

	// HEAD and the checked-out branch are untouched
	assert.Equal(t, "main", testutil.GetCurrentBranch(t, dir))
	assert.Equal(t, head, testutil.HeadHash(t, dir))

	t.Run("name collision", func(t *testing.T) {
		_, err := m.CreateBackup(ctx, "")
		require.Error(t, err)

		var bErr *errors.BackupCreationFailedError
		require.True(t, errors.As(err, &bErr))
		assert.Equal(t, "main-backup-1700000000123", bErr.Branch)
		assert.Equal(t, errors.SeverityCritical, errors.GetSeverity(err))

		var exists *errors.AlreadyExistsError
		assert.True(t, errors.As(err, &exists))
	})
}

func TestManager_CreateBackupFailures(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		setup func(gw *gittest.Gateway)
	}{
		{
			name: "detached head",
			setup: func(gw *gittest.Gateway) {
				gw.On("rev-parse --abbrev-ref HEAD", "HEAD", nil)
			},
		},
		{
			name: "branch command fails",
			setup: func(gw *gittest.Gateway) {
				gw.On("rev-parse --abbrev-ref HEAD", "main", nil)
				gw.On("rev-parse HEAD", "abc", nil)
				gw.Fail("branch main-backup-5 abc", 128, "fatal: cannot lock ref")
			},
		},
		{
			name: "branch not visible afterwards",
			setup: func(gw *gittest.Gateway) {
				gw.On("rev-parse --abbrev-ref HEAD", "main", nil)
				gw.On("rev-parse HEAD", "abc", nil)
				gw.Fail("rev-parse --verify --quiet refs/heads/main-backup-5^{commit}", 1, "")
			},
		},
		{
			name: "branch points elsewhere",
			setup: func(gw *gittest.Gateway) {
				gw.On("rev-parse --abbrev-ref HEAD", "main", nil)
				gw.On("rev-parse HEAD", "abc", nil)
				gw.On("rev-parse --verify --quiet refs/heads/main-backup-5^{commit}", "def", nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := gittest.New()
			tt.setup(gw)
			dir := t.TempDir()
			repo := git.NewRepository(dir, filepath.Join(dir, ".git"), gw, nil)
			m := backup.NewManager(repo, git.NewBranchResolver(repo), nil, nil)
			backup.SetClock(m, fixedClock(5))

			_, err := m.CreateBackup(ctx, "")
			require.Error(t, err)
			var bErr *errors.BackupCreationFailedError
			assert.True(t, errors.As(err, &bErr))
		})
	}
}

func TestManager_Restore(t *testing.T) {
	testutil.SkipIfNoGit(t)
	ctx := context.Background()
	dir := testutil.SetupTestRepo(t)
	original := testutil.CommitSeries(t, dir, "one")[0]

	aborter := &fakeAborter{}
	m := openManager(t, dir, aborter)
	ptr, err := m.CreateBackup(ctx, "")
	require.NoError(t, err)

	testutil.Git(t, dir, "commit", "-q", "--amend", "-m", "rewritten")
	testutil.CommitSeries(t, dir, "extra")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("dirty\n"), 0o644))
	require.NotEqual(t, original, testutil.HeadHash(t, dir))

	t.Run("requires confirmation", func(t *testing.T) {
		err := m.Restore(ctx, ptr.Branch, false)
		assert.ErrorIs(t, err, errors.ErrConfirmationRequired)
		assert.Zero(t, aborter.calls)
	})

	t.Run("unknown branch", func(t *testing.T) {
		err := m.Restore(ctx, "main-backup-1", true)
		var nf *errors.NotFoundError
		require.True(t, errors.As(err, &nf))
		assert.Equal(t, "main-backup-1", nf.ResourceID)
	})

	t.Run("resets to backup", func(t *testing.T) {
		require.NoError(t, m.Restore(ctx, ptr.Branch, true))
		assert.Equal(t, original, testutil.HeadHash(t, dir))
		assert.Equal(t, "main", testutil.GetCurrentBranch(t, dir))
		assert.False(t, testutil.HasUncommittedChanges(t, dir))
		assert.Equal(t, 1, aborter.calls)
	})
}

func TestManager_RestoreAbortFailureIsLogged(t *testing.T) {
	testutil.SkipIfNoGit(t)
	ctx := context.Background()
	dir := testutil.SetupTestRepo(t)

	aborter := &fakeAborter{err: errors.New("abort failed")}
	m := openManager(t, dir, aborter)
	ptr, err := m.CreateBackup(ctx, "undo")
	require.NoError(t, err)

	assert.NoError(t, m.Restore(ctx, ptr.Branch, true))
	assert.Equal(t, 1, aborter.calls)
}

func TestManager_List(t *testing.T) {
	testutil.SkipIfNoGit(t)
	ctx := context.Background()
	dir := testutil.SetupTestRepo(t)
	head := testutil.HeadHash(t, dir)

	testutil.Git(t, dir, "branch", "main-backup-1000")
	testutil.Git(t, dir, "branch", "main-backup-3000")
	testutil.Git(t, dir, "branch", "main-backup-2000")
	testutil.Git(t, dir, "branch", "main-backup-latest")
	testutil.Git(t, dir, "branch", "main-undo-4000")
	testutil.Git(t, dir, "branch", "other-backup-5000")

	m := openManager(t, dir, nil)

	got, err := m.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "main-backup-3000", got[0].Branch)
	assert.Equal(t, "main-backup-2000", got[1].Branch)
	assert.Equal(t, "main-backup-1000", got[2].Branch)
	assert.Equal(t, head, got[0].Commit)
	assert.Equal(t, int64(3000), got[0].CreatedAt.UnixMilli())

	undo, err := m.List(ctx, "undo")
	require.NoError(t, err)
	require.Len(t, undo, 1)
	assert.Equal(t, "main-undo-4000", undo[0].Branch)
}
