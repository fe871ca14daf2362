package git

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/gittimemachine/internal/errors"
	"github.com/Iron-Ham/gittimemachine/internal/testutil"
)

func TestCommand(t *testing.T) {
	cmd := Git("commit", "--amend").WithEnv("GIT_COMMITTER_DATE", "@1 +0000")

	assert.Equal(t, "git commit --amend", cmd.String())
	assert.Equal(t, map[string]string{"GIT_COMMITTER_DATE": "@1 +0000"}, cmd.Env)

	// WithEnv must not alias the receiver's map
	other := cmd.WithEnv("GIT_EDITOR", "true")
	assert.Len(t, cmd.Env, 1)
	assert.Len(t, other.Env, 2)
}

func TestMergeEnv(t *testing.T) {
	tests := []struct {
		name      string
		base      []string
		overrides []map[string]string
		want      []string
	}{
		{
			name: "no overrides returns base",
			base: []string{"A=1", "B=2"},
			want: []string{"A=1", "B=2"},
		},
		{
			name:      "override replaces inherited key",
			base:      []string{"A=1", "GIT_EDITOR=vim"},
			overrides: []map[string]string{{"GIT_EDITOR": "/tmp/e.sh"}},
			want:      []string{"A=1", "GIT_EDITOR=/tmp/e.sh"},
		},
		{
			name:      "later maps win and keys are sorted",
			base:      []string{"PATH=/bin"},
			overrides: []map[string]string{{"Z": "1", "A": "1"}, {"A": "2"}},
			want:      []string{"PATH=/bin", "A=2", "Z=1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mergeEnv(tt.base, tt.overrides...))
		})
	}
}

func TestExitCodeAndStderr(t *testing.T) {
	err := errors.NewCommandError([]string{"config", "--get", "x"}, "boom\n", 1)

	assert.Equal(t, 1, ExitCode(err))
	assert.Equal(t, "boom", Stderr(err))
	assert.Equal(t, -1, ExitCode(errors.New("plain")))
	assert.Empty(t, Stderr(nil))
}

func TestCLIGateway_Run(t *testing.T) {
	testutil.SkipIfNoGit(t)
	repoDir := testutil.SetupTestRepo(t)
	gw := NewCLIGateway("", repoDir, nil)
	ctx := context.Background()

	t.Run("returns trimmed stdout", func(t *testing.T) {
		out, err := gw.Run(ctx, Git("rev-parse", "--abbrev-ref", "HEAD"))
		require.NoError(t, err)
		assert.Equal(t, "main", out)
	})

	t.Run("applies env overrides", func(t *testing.T) {
		out, err := gw.Run(ctx, Git("var", "GIT_COMMITTER_IDENT").WithEnv("GIT_COMMITTER_NAME", "Override"))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(out, "Override <"), "got %q", out)
	})

	t.Run("failure carries command and stderr", func(t *testing.T) {
		_, err := gw.Run(ctx, Git("rev-parse", "--verify", "does-not-exist"))
		require.Error(t, err)

		var cmdErr *errors.CommandError
		require.True(t, errors.As(err, &cmdErr))
		assert.Equal(t, "git rev-parse --verify does-not-exist", cmdErr.Command())
		assert.NotZero(t, cmdErr.ExitCode)
		assert.NotEmpty(t, cmdErr.Stderr)
	})

	t.Run("missing binary", func(t *testing.T) {
		bad := NewCLIGateway("git-does-not-exist-anywhere", repoDir, nil)
		_, err := bad.Run(ctx, Git("status"))
		require.Error(t, err)
		assert.Equal(t, -1, ExitCode(err))
	})

	assert.Equal(t, repoDir, gw.Dir())
}
