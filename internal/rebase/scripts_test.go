package rebase

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/gittimemachine/internal/testutil"
)

const (
	fullA = "aaaaaaa1111111111111111111111111111111111"
	fullB = "bbbbbbb2222222222222222222222222222222222"
	fullC = "ccccccc3333333333333333333333333333333333"
)

// runTodo applies a generated sequence editor to todo and returns the
// rewritten file and whether the script succeeded.
func runTodo(t *testing.T, script, todo string) (string, bool) {
	t.Helper()
	testutil.SkipIfNoShell(t)

	s := NewScriptManager(t.TempDir(), nil)
	t.Cleanup(s.Cleanup)
	path, err := s.WriteScript("todo", script)
	require.NoError(t, err)

	todoPath := filepath.Join(t.TempDir(), "git-rebase-todo")
	require.NoError(t, os.WriteFile(todoPath, []byte(todo), 0o644))

	err = exec.Command("sh", "-c", ShellQuote(path)+" "+ShellQuote(todoPath)).Run()
	out, readErr := os.ReadFile(todoPath)
	require.NoError(t, readErr)

	_, statErr := os.Stat(todoPath + ".tmp")
	assert.True(t, os.IsNotExist(statErr), "temporary todo file left behind")
	return string(out), err == nil
}

func TestTodoScript_MarksOnlyTarget(t *testing.T) {
	todo := strings.Join([]string{
		"pick aaaaaaa First",
		"pick bbbbbbb Second",
		"pick ccccccc Third",
		"",
		"# Rebase 0000000..ccccccc onto 0000000 (3 commands)",
		"# pick <commit> = use commit",
		"",
	}, "\n")

	got, ok := runTodo(t, todoScript(fullA, "edit", "", nil), todo)
	require.True(t, ok)
	assert.Equal(t, strings.Replace(todo, "pick aaaaaaa First", "edit aaaaaaa First", 1), got)
}

func TestTodoScript_LongerAbbreviation(t *testing.T) {
	todo := "pick aaaaaaa111 First\npick bbbbbbb222 Second\n"

	got, ok := runTodo(t, todoScript(fullB, "reword", "", nil), todo)
	require.True(t, ok)
	assert.Equal(t, "pick aaaaaaa111 First\nreword bbbbbbb222 Second\n", got)
}

func TestTodoScript_NoMatchFails(t *testing.T) {
	todo := "pick bbbbbbb Second\npick ccccccc Third\n"

	got, ok := runTodo(t, todoScript(fullA, "edit", "", nil), todo)
	assert.False(t, ok)
	assert.Equal(t, todo, got)
}

func TestTodoScript_AmbiguousMatchFails(t *testing.T) {
	todo := "pick aaaa First\npick aaaaaaa Again\n"

	_, ok := runTodo(t, todoScript(fullA, "edit", "", nil), todo)
	assert.False(t, ok)
}

func TestTodoScript_IgnoresComments(t *testing.T) {
	todo := "# pick aaaaaaa not a command\npick aaaaaaa First\n"

	got, ok := runTodo(t, todoScript(fullA, "edit", "", nil), todo)
	require.True(t, ok)
	assert.Equal(t, "# pick aaaaaaa not a command\nedit aaaaaaa First\n", got)
}

func TestTodoScript_PreservesDates(t *testing.T) {
	todo := "pick aaaaaaa First\npick bbbbbbb Second\npick ccccccc Third\n"
	dates := map[string]string{
		fullB: "@1700000000 +0100",
		fullC: "@1700003600 -0500",
	}

	got, ok := runTodo(t, todoScript(fullA, "reword", "@1690000000 +0000", dates), todo)
	require.True(t, ok)

	want := strings.Join([]string{
		"reword aaaaaaa First",
		`exec GIT_COMMITTER_DATE="@1690000000 +0000" ` + amendCommand,
		"pick bbbbbbb Second",
		`exec GIT_COMMITTER_DATE="@1700000000 +0100" ` + amendCommand,
		"pick ccccccc Third",
		`exec GIT_COMMITTER_DATE="@1700003600 -0500" ` + amendCommand,
		"",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestMessageScript(t *testing.T) {
	testutil.SkipIfNoShell(t)

	dir := t.TempDir()
	s := NewScriptManager(dir, nil)
	msg, err := s.WriteFile("message", "It's a \"message\"\n\n# kept\n")
	require.NoError(t, err)
	editor, err := s.WriteScript("editor", messageScript(msg))
	require.NoError(t, err)

	target := filepath.Join(dir, "COMMIT_EDITMSG")
	require.NoError(t, os.WriteFile(target, []byte("old\n"), 0o644))
	require.NoError(t, exec.Command("sh", "-c", ShellQuote(editor)+" "+ShellQuote(target)).Run())

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "It's a \"message\"\n\n# kept\n", string(got))
}

func TestScriptManager(t *testing.T) {
	dir := t.TempDir()
	s := NewScriptManager(dir, nil)

	script, err := s.WriteScript("todo", "exit 0\n")
	require.NoError(t, err)
	data, err := s.WriteFile("message", "hello")
	require.NoError(t, err)

	assert.NotEqual(t, script, data)
	assert.True(t, strings.HasPrefix(filepath.Base(script), "gittimemachine-todo-"))
	assert.True(t, strings.HasPrefix(filepath.Base(data), "gittimemachine-message-"))

	info, err := os.Stat(script)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())

	content, err := os.ReadFile(script)
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\nexit 0\n", string(content))

	assert.Len(t, s.writtenFiles(), 2)
	s.Cleanup()
	assert.Empty(t, s.writtenFiles())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// A second cleanup is a no-op
	s.Cleanup()
}

func TestShellQuote(t *testing.T) {
	assert.Equal(t, `'plain'`, ShellQuote("plain"))
	assert.Equal(t, `'/tmp/with space'`, ShellQuote("/tmp/with space"))
	assert.Equal(t, `'it'\''s'`, ShellQuote("it's"))
}
