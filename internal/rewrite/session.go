package rewrite

import (
	"time"

	"github.com/Iron-Ham/gittimemachine/internal/backup"
	"github.com/Iron-Ham/gittimemachine/internal/history"
)

// ProgressFunc is called before each request is applied. current counts
// from 1. It is advisory and must not block for long.
type ProgressFunc func(current, total int, target history.CommitRecord)

// Session is one run of EditOne or EditBulk.
type Session struct {
	ID        string
	State     State
	StartedAt time.Time

	// Requests are the normalized requests, oldest target first.
	Requests []EditRequest
	// Backup is the branch created before the first write.
	Backup backup.Pointer
	// Current is the index of the request in flight while rewriting.
	Current int
	// Applied counts requests that changed a commit.
	Applied int
	// Skipped counts requests whose values already matched the commit.
	Skipped int
	// Rewritten maps each original target hash to its final hash.
	Rewritten map[string]string
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		State:     StateIdle,
		StartedAt: now,
		Rewritten: make(map[string]string),
	}
}

func (s *Session) transition(to State) error {
	if !CanTransition(s.State, to) {
		return transitionError(s.State, to)
	}
	s.State = to
	return nil
}

// Result is what a finished session returns.
type Result struct {
	Session *Session
	// Scan is a fresh scan taken after the last rewrite.
	Scan *history.ScanResult
}

// PlannedEdit is one entry of a preview.
type PlannedEdit struct {
	Target  history.CommitRecord
	Request EditRequest
	Method  Method
	// NewMessage, NewAuthorTime and NewCommitTime are the values that would
	// be written. A nil commit time means git stamps the current time.
	NewMessage    *string
	NewAuthorTime *time.Time
	NewCommitTime *time.Time
}

// Plan is the ordered preview of a session.
type Plan struct {
	history.BranchSnapshot
	Edits []PlannedEdit
	// Unchanged counts requests dropped because nothing would change.
	Unchanged int
}
