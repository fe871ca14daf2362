// Package git is the single point of contact between gittimemachine and the
// git executable. Every other package issues git commands through a Gateway
// so that tests can substitute a recording fake and so that logging and
// error shaping happen in one place.
package git

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/Iron-Ham/gittimemachine/internal/errors"
	"github.com/Iron-Ham/gittimemachine/internal/logging"
)

// -----------------------------------------------------------------------------
// Command
// -----------------------------------------------------------------------------

// Command is a single git invocation. Args exclude the binary name. Env
// entries override the inherited process environment for this call only.
type Command struct {
	Args []string
	Env  map[string]string
}

// Git builds a Command from arguments.
func Git(args ...string) Command {
	return Command{Args: args}
}

// WithEnv returns a copy of c with an additional environment override.
func (c Command) WithEnv(key, value string) Command {
	env := make(map[string]string, len(c.Env)+1)
	for k, v := range c.Env {
		env[k] = v
	}
	env[key] = value
	return Command{Args: c.Args, Env: env}
}

// String renders the command line for logs and error messages.
func (c Command) String() string {
	return "git " + strings.Join(c.Args, " ")
}

// -----------------------------------------------------------------------------
// Gateway
// -----------------------------------------------------------------------------

// Gateway runs git commands against one repository.
type Gateway interface {
	// Run executes cmd and returns stdout with surrounding whitespace
	// trimmed. A non-zero exit yields *errors.CommandError carrying stderr.
	Run(ctx context.Context, cmd Command) (string, error)
}

// CLIGateway executes git through os/exec in a fixed working directory.
type CLIGateway struct {
	binary string
	dir    string
	logger *logging.Logger
}

// NewCLIGateway creates a gateway rooted at dir. An empty binary means "git".
func NewCLIGateway(binary, dir string, logger *logging.Logger) *CLIGateway {
	if binary == "" {
		binary = "git"
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &CLIGateway{binary: binary, dir: dir, logger: logger}
}

// Dir returns the working directory commands run in.
func (g *CLIGateway) Dir() string {
	return g.dir
}

// Run implements Gateway.
func (g *CLIGateway) Run(ctx context.Context, cmd Command) (string, error) {
	c := exec.CommandContext(ctx, g.binary, cmd.Args...)
	c.Dir = g.dir
	c.Env = mergeEnv(os.Environ(), baseEnv, cmd.Env)

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	err := c.Run()
	elapsed := time.Since(start)

	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		g.logger.Debug("git command failed",
			"command", cmd.String(),
			"exit_code", exitCode,
			"stderr", strings.TrimSpace(stderr.String()),
			"duration_ms", elapsed.Milliseconds(),
		)
		return "", errors.NewCommandError(cmd.Args, stderr.String(), exitCode).WithCause(err)
	}

	g.logger.Debug("git command",
		"command", cmd.String(),
		"duration_ms", elapsed.Milliseconds(),
	)
	return strings.TrimSpace(stdout.String()), nil
}

// baseEnv keeps git from blocking on credential or editor prompts.
var baseEnv = map[string]string{
	"GIT_TERMINAL_PROMPT": "0",
}

// mergeEnv applies overrides on top of base in order; later maps win.
// The result is deterministic so it can be asserted in tests.
func mergeEnv(base []string, overrides ...map[string]string) []string {
	merged := make(map[string]string)
	for _, o := range overrides {
		for k, v := range o {
			merged[k] = v
		}
	}
	if len(merged) == 0 {
		return base
	}

	out := make([]string, 0, len(base)+len(merged))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, ok := merged[key]; ok {
			continue
		}
		out = append(out, kv)
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+merged[k])
	}
	return out
}

// ExitCode returns the exit code carried by a gateway error, or -1.
func ExitCode(err error) int {
	var cmdErr *errors.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.ExitCode
	}
	return -1
}

// Stderr returns the stderr carried by a gateway error, if any.
func Stderr(err error) string {
	var cmdErr *errors.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Stderr
	}
	return ""
}

// Compile-time interface check
var _ Gateway = (*CLIGateway)(nil)
