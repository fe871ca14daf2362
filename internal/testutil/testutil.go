// Package testutil provides fixture repositories for gittimemachine tests.
package testutil

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

// BaseTime is the author and committer time of the initial fixture commit.
// Later fixture commits default to BaseTime plus one hour per commit.
var BaseTime = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

// SetupTestRepo creates a temporary git repository on branch main with a
// single "Initial commit" authored at BaseTime.
func SetupTestRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()

	mustGit(t, dir, time.Time{}, "init", "-q")
	mustGit(t, dir, time.Time{}, "config", "user.email", "test@gittimemachine.dev")
	mustGit(t, dir, time.Time{}, "config", "user.name", "Time Machine Test")
	mustGit(t, dir, time.Time{}, "config", "commit.gpgsign", "false")
	mustGit(t, dir, time.Time{}, "config", "core.autocrlf", "false")

	CommitAt(t, dir, "README.md", "# Test Repository\n", "Initial commit", BaseTime)

	// Some systems default to master
	mustGit(t, dir, time.Time{}, "branch", "-M", "main")

	return dir
}

// SetupTestRepoWithRemote creates a repository whose main branch is pushed
// to a bare remote named origin with upstream tracking configured.
func SetupTestRepoWithRemote(t *testing.T) (repoDir, remoteDir string) {
	t.Helper()

	remoteDir = t.TempDir()
	mustGit(t, remoteDir, time.Time{}, "init", "-q", "--bare")

	repoDir = SetupTestRepo(t)
	mustGit(t, repoDir, time.Time{}, "remote", "add", "origin", remoteDir)
	mustGit(t, repoDir, time.Time{}, "push", "-q", "-u", "origin", "main")

	return repoDir, remoteDir
}

// CommitAt writes path and commits it with author and committer time set
// to at. It returns the new commit hash.
func CommitAt(t *testing.T, repoDir, path, content, message string, at time.Time) string {
	t.Helper()

	fullPath := filepath.Join(repoDir, path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
	mustGit(t, repoDir, at, "add", path)
	mustGit(t, repoDir, at, "commit", "-q", "-m", message)
	return HeadHash(t, repoDir)
}

// CommitFile commits path one hour after the current HEAD's author time.
func CommitFile(t *testing.T, repoDir, path, content, message string) string {
	t.Helper()

	next := time.Unix(AuthorTime(t, repoDir, "HEAD"), 0).UTC().Add(time.Hour)
	return CommitAt(t, repoDir, path, content, message, next)
}

// CommitSeries creates one commit per message on top of HEAD, each touching
// its own file, and returns the hashes oldest first.
func CommitSeries(t *testing.T, repoDir string, messages ...string) []string {
	t.Helper()

	hashes := make([]string, 0, len(messages))
	for i, msg := range messages {
		hashes = append(hashes, CommitFile(t, repoDir, fmt.Sprintf("file%d.txt", i+1), msg+"\n", msg))
	}
	return hashes
}

// Push pushes the current branch to origin.
func Push(t *testing.T, repoDir string) {
	t.Helper()
	mustGit(t, repoDir, time.Time{}, "push", "-q", "origin", "HEAD")
}

// Git runs git in repoDir and returns trimmed stdout, failing the test on error.
func Git(t *testing.T, repoDir string, args ...string) string {
	t.Helper()
	return mustGit(t, repoDir, time.Time{}, args...)
}

// HeadHash returns the full hash of HEAD.
func HeadHash(t *testing.T, repoDir string) string {
	t.Helper()
	return Git(t, repoDir, "rev-parse", "HEAD")
}

// RevParse resolves rev to a full hash.
func RevParse(t *testing.T, repoDir, rev string) string {
	t.Helper()
	return Git(t, repoDir, "rev-parse", rev)
}

// CommitMessage returns the full message of rev without trailing newlines.
func CommitMessage(t *testing.T, repoDir, rev string) string {
	t.Helper()
	return strings.TrimRight(Git(t, repoDir, "log", "-1", "--format=%B", rev), "\n")
}

// Subject returns the first line of rev's message.
func Subject(t *testing.T, repoDir, rev string) string {
	t.Helper()
	return Git(t, repoDir, "log", "-1", "--format=%s", rev)
}

// AuthorTime returns rev's author time in epoch seconds.
func AuthorTime(t *testing.T, repoDir, rev string) int64 {
	t.Helper()
	return parseEpoch(t, Git(t, repoDir, "log", "-1", "--format=%at", rev))
}

// CommitTime returns rev's committer time in epoch seconds.
func CommitTime(t *testing.T, repoDir, rev string) int64 {
	t.Helper()
	return parseEpoch(t, Git(t, repoDir, "log", "-1", "--format=%ct", rev))
}

// RevList returns the hashes selected by args, newest first.
func RevList(t *testing.T, repoDir string, args ...string) []string {
	t.Helper()
	out := Git(t, repoDir, append([]string{"rev-list"}, args...)...)
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

// GetCurrentBranch returns the current branch name.
func GetCurrentBranch(t *testing.T, repoDir string) string {
	t.Helper()
	return Git(t, repoDir, "rev-parse", "--abbrev-ref", "HEAD")
}

// HasUncommittedChanges returns true if the repository has uncommitted changes.
func HasUncommittedChanges(t *testing.T, repoDir string) bool {
	t.Helper()
	return Git(t, repoDir, "status", "--porcelain") != ""
}

// GitDir returns the absolute git directory of repoDir.
func GitDir(t *testing.T, repoDir string) string {
	t.Helper()
	return Git(t, repoDir, "rev-parse", "--absolute-git-dir")
}

// RebaseInProgress reports whether a rebase state directory exists.
func RebaseInProgress(t *testing.T, repoDir string) bool {
	t.Helper()
	gitDir := GitDir(t, repoDir)
	for _, name := range []string{"rebase-merge", "rebase-apply"} {
		if _, err := os.Stat(filepath.Join(gitDir, name)); err == nil {
			return true
		}
	}
	return false
}

// SkipIfNoGit skips the test if git is not installed.
func SkipIfNoGit(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH, skipping test")
	}
}

// SkipIfNoShell skips the test if the POSIX tools used by editor scripts
// are not installed.
func SkipIfNoShell(t *testing.T) {
	t.Helper()

	for _, tool := range []string{"sh", "awk", "cat"} {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not found in PATH, skipping test", tool)
		}
	}
}

func mustGit(t *testing.T, dir string, at time.Time, args ...string) string {
	t.Helper()

	out, err := runGit(dir, at, args...)
	if err != nil {
		t.Fatalf("%v", err)
	}
	return out
}

// runGit runs git with a fixed identity. A non-zero at pins both dates,
// keeping the zone offset of at.
func runGit(dir string, at time.Time, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=Time Machine Test",
		"GIT_AUTHOR_EMAIL=test@gittimemachine.dev",
		"GIT_COMMITTER_NAME=Time Machine Test",
		"GIT_COMMITTER_EMAIL=test@gittimemachine.dev",
		"GIT_CONFIG_NOSYSTEM=1",
	)
	if !at.IsZero() {
		stamp := fmt.Sprintf("@%d %s", at.Unix(), at.Format("-0700"))
		cmd.Env = append(cmd.Env, "GIT_AUTHOR_DATE="+stamp, "GIT_COMMITTER_DATE="+stamp)
	}

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", &gitError{args: args, output: stderr.String(), err: err}
	}
	return strings.TrimSpace(stdout.String()), nil
}

type gitError struct {
	args   []string
	output string
	err    error
}

func (e *gitError) Error() string {
	return "git " + strings.Join(e.args, " ") + ": " + e.err.Error() + "\n" + e.output
}

func (e *gitError) Unwrap() error {
	return e.err
}

func parseEpoch(t *testing.T, s string) int64 {
	t.Helper()
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		t.Fatalf("failed to parse timestamp %q: %v", s, err)
	}
	return n
}
