// Package gittest provides a recording fake of git.Gateway for unit tests.
package gittest

import (
	"context"
	"strings"
	"sync"

	"github.com/Iron-Ham/gittimemachine/internal/errors"
	"github.com/Iron-Ham/gittimemachine/internal/git"
)

// Response is the canned result for one command line.
type Response struct {
	Output string
	Err    error
}

// Gateway records every command and answers from canned responses keyed by
// the space-joined argument list. Unknown commands succeed with empty output
// unless Strict is set.
type Gateway struct {
	mu        sync.Mutex
	responses map[string][]Response
	calls     []git.Command

	// Strict makes unknown commands fail with exit code 1.
	Strict bool
	// Hook, when set, runs before canned responses. Returning handled=true
	// short-circuits the lookup.
	Hook func(cmd git.Command) (resp Response, handled bool)
}

// New creates an empty fake gateway.
func New() *Gateway {
	return &Gateway{responses: make(map[string][]Response)}
}

// On queues a response for args. Multiple responses for the same args are
// returned in order; the last one repeats.
func (g *Gateway) On(args string, output string, err error) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.responses[args] = append(g.responses[args], Response{Output: output, Err: err})
	return g
}

// Fail queues a CommandError with the given exit code and stderr.
func (g *Gateway) Fail(args string, exitCode int, stderr string) *Gateway {
	return g.On(args, "", errors.NewCommandError(strings.Fields(args), stderr, exitCode))
}

// Run implements git.Gateway.
func (g *Gateway) Run(_ context.Context, cmd git.Command) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, cmd)
	hook := g.Hook
	g.mu.Unlock()

	if hook != nil {
		if resp, handled := hook(cmd); handled {
			return resp.Output, resp.Err
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	key := strings.Join(cmd.Args, " ")
	queue, ok := g.responses[key]
	if !ok || len(queue) == 0 {
		if g.Strict {
			return "", errors.NewCommandError(cmd.Args, "unexpected command", 1)
		}
		return "", nil
	}
	resp := queue[0]
	if len(queue) > 1 {
		g.responses[key] = queue[1:]
	}
	return resp.Output, resp.Err
}

// Calls returns a copy of the recorded commands.
func (g *Gateway) Calls() []git.Command {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]git.Command, len(g.calls))
	copy(out, g.calls)
	return out
}

// CallArgs returns the recorded commands as space-joined argument strings.
func (g *Gateway) CallArgs() []string {
	calls := g.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = strings.Join(c.Args, " ")
	}
	return out
}

// Called reports whether a command with exactly these args was recorded.
func (g *Gateway) Called(args string) bool {
	for _, c := range g.CallArgs() {
		if c == args {
			return true
		}
	}
	return false
}

// CalledPrefix reports whether any recorded command starts with prefix.
func (g *Gateway) CalledPrefix(prefix string) bool {
	for _, c := range g.CallArgs() {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

var _ git.Gateway = (*Gateway)(nil)
