package rebase

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Iron-Ham/gittimemachine/internal/logging"
)

// ScriptManager writes the temporary editor scripts and message files used
// by one rewrite and removes them again. Names carry a nanosecond stamp so
// two processes never share a file.
type ScriptManager struct {
	dir    string
	logger *logging.Logger

	mu    sync.Mutex
	files []string
}

// NewScriptManager creates a ScriptManager writing into dir. An empty dir
// means os.TempDir().
func NewScriptManager(dir string, logger *logging.Logger) *ScriptManager {
	if dir == "" {
		dir = os.TempDir()
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &ScriptManager{dir: dir, logger: logger}
}

// WriteScript writes an executable shell script and returns its path.
func (s *ScriptManager) WriteScript(kind, body string) (string, error) {
	return s.write(kind, "#!/bin/sh\n"+body, 0o700)
}

// WriteFile writes a plain data file, such as a commit message.
func (s *ScriptManager) WriteFile(kind, content string) (string, error) {
	return s.write(kind, content, 0o600)
}

func (s *ScriptManager) write(kind, content string, mode os.FileMode) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, fmt.Sprintf("gittimemachine-%s-%d", kind, time.Now().UnixNano()))
	for i := 1; fileExists(path); i++ {
		path = filepath.Join(s.dir, fmt.Sprintf("gittimemachine-%s-%d-%d", kind, time.Now().UnixNano(), i))
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode)
	if err != nil {
		return "", fmt.Errorf("failed to create %s file: %w", kind, err)
	}
	s.files = append(s.files, path)

	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("failed to write %s file: %w", kind, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", kind, err)
	}
	// Chmod explicitly: the umask may have stripped the execute bit
	if err := os.Chmod(path, mode); err != nil {
		return "", fmt.Errorf("failed to chmod %s file: %w", kind, err)
	}
	return path, nil
}

// writtenFiles returns the paths written so far.
func (s *ScriptManager) writtenFiles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.files))
	copy(out, s.files)
	return out
}

// Cleanup removes every file written by this manager. Failures are logged.
func (s *ScriptManager) Cleanup() {
	s.mu.Lock()
	files := s.files
	s.files = nil
	s.mu.Unlock()

	for _, path := range files {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove temporary file", "path", path, "error", err)
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// ShellQuote quotes s for POSIX sh.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// amendCommand is the exec line that restores a replayed commit's
// committer date.
const amendCommand = "git commit --amend --only --no-edit --allow-empty --no-verify --quiet"

// todoScript builds the sequence editor. It rewrites the single pick line
// whose abbreviated hash is a prefix of target to action and fails unless
// exactly one line matched. When targetDate is set an exec line after the
// target pins its committer date. dates maps the full hash of every
// replayed commit to the committer date to restore after it is picked.
//
// All values are hex hashes or git date strings, so they can be embedded
// in the awk program without escaping.
func todoScript(target, action, targetDate string, dates map[string]string) string {
	hashes := make([]string, 0, len(dates))
	for h := range dates {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)

	var b strings.Builder
	b.WriteString("todo=\"$1\"\n")
	b.WriteString("awk -v h=" + target + " -v a=" + action + " -v td=\"" + targetDate + "\" '\n")
	b.WriteString("BEGIN {\n")
	for _, h := range hashes {
		fmt.Fprintf(&b, "\tdates[\"%s\"] = \"%s\"\n", h, dates[h])
	}
	b.WriteString("}\n")
	b.WriteString("function lookup(abbr,    k) {\n")
	b.WriteString("\tfor (k in dates) if (index(k, abbr) == 1) return dates[k]\n")
	b.WriteString("\treturn \"\"\n")
	b.WriteString("}\n")
	b.WriteString("($1 == \"pick\" || $1 == \"p\") && length($2) >= 4 {\n")
	b.WriteString("\tif (index(h, $2) == 1) {\n")
	b.WriteString("\t\tsub(/^(pick|p) /, a \" \")\n")
	b.WriteString("\t\tn++\n")
	b.WriteString("\t\tprint\n")
	b.WriteString("\t\tif (td != \"\") print \"exec GIT_COMMITTER_DATE=\\\"\" td \"\\\" " + amendCommand + "\"\n")
	b.WriteString("\t\tnext\n")
	b.WriteString("\t}\n")
	b.WriteString("\tprint\n")
	b.WriteString("\td = lookup($2)\n")
	b.WriteString("\tif (d != \"\") print \"exec GIT_COMMITTER_DATE=\\\"\" d \"\\\" " + amendCommand + "\"\n")
	b.WriteString("\tnext\n")
	b.WriteString("}\n")
	b.WriteString("{ print }\n")
	b.WriteString("END { if (n != 1) exit 1 }\n")
	b.WriteString("' \"$todo\" > \"$todo.tmp\" || { rm -f \"$todo.tmp\"; exit 1; }\n")
	b.WriteString("mv \"$todo.tmp\" \"$todo\"\n")
	return b.String()
}

// messageScript builds the commit message editor: it replaces the file git
// hands it with the prepared message.
func messageScript(messageFile string) string {
	return "cat " + ShellQuote(messageFile) + " > \"$1\"\n"
}
