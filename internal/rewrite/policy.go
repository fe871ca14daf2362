package rewrite

import (
	"time"

	"github.com/Iron-Ham/gittimemachine/internal/history"
	"github.com/Iron-Ham/gittimemachine/internal/rebase"
)

// DatePolicy decides the committer date of a rewritten commit when the
// request does not give one.
type DatePolicy struct {
	// SyncCommitDate makes the commit date follow a new author date.
	SyncCommitDate bool
	// PreserveCommitterDates keeps the original commit date otherwise.
	PreserveCommitterDates bool
}

// Changes turns req into the metadata to write on target. Fields equal to
// the current value are dropped; the result is empty when nothing would
// change. The commit date is, in order: the requested one, the new author
// date when syncing, the original one when preserving, or git's default.
func (p DatePolicy) Changes(req EditRequest, target history.CommitRecord) rebase.Changes {
	var ch rebase.Changes

	if req.NewMessage != nil && *req.NewMessage != target.Message {
		msg := *req.NewMessage
		ch.Message = &msg
	}
	if req.NewAuthorTime != nil && req.NewAuthorTime.Unix() != target.AuthorTimestamp() {
		at := *req.NewAuthorTime
		ch.AuthorTime = &at
	}
	explicitCommit := req.NewCommitTime != nil && req.NewCommitTime.Unix() != target.CommitTimestamp()
	if ch.Message == nil && ch.AuthorTime == nil && !explicitCommit {
		return rebase.Changes{}
	}

	var ct *time.Time
	switch {
	case req.NewCommitTime != nil:
		t := *req.NewCommitTime
		ct = &t
	case ch.AuthorTime != nil && p.SyncCommitDate:
		t := *ch.AuthorTime
		ct = &t
	case p.PreserveCommitterDates:
		t := target.CommitTime
		ct = &t
	}
	ch.CommitTime = ct
	return ch
}

// Method names how a change is applied.
type Method string

const (
	MethodAmend  Method = "amend"
	MethodReword Method = "reword"
	MethodEdit   Method = "edit"
)

// methodFor returns how ch is applied to a commit that is or is not HEAD.
func methodFor(ch rebase.Changes, isHead bool) Method {
	switch {
	case isHead:
		return MethodAmend
	case ch.AuthorTime == nil && ch.Message != nil:
		return MethodReword
	default:
		return MethodEdit
	}
}
