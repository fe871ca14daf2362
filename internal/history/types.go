// Package history lists the commits that exist only on the local branch and
// describes the branch they were read from.
package history

import "time"

// CommitRecord is one commit as read from the log. Hash is the identity;
// ShortHash exists for display only.
type CommitRecord struct {
	Hash        string    // Full 40-char SHA
	ShortHash   string    // 7-char prefix of Hash
	AuthorName  string
	AuthorEmail string
	AuthorTime  time.Time // second precision
	CommitTime  time.Time // second precision
	Subject     string    // First line of Message
	Message     string    // Full message, trailing newlines removed
}

// AuthorTimestamp returns the author time in epoch seconds.
func (c CommitRecord) AuthorTimestamp() int64 {
	return c.AuthorTime.Unix()
}

// CommitTimestamp returns the committer time in epoch seconds.
func (c CommitRecord) CommitTimestamp() int64 {
	return c.CommitTime.Unix()
}

// BranchSnapshot describes the branch a scan was taken from. It is valid
// only for the scan that produced it.
type BranchSnapshot struct {
	CurrentBranch  string
	UpstreamBranch string // e.g. "origin/main"; empty when HasUpstream is false
	HasUpstream    bool
}

// ScanResult is the output of a scan: local-only commits newest first and
// the branch they belong to.
type ScanResult struct {
	Commits []CommitRecord
	BranchSnapshot
}

// Head returns the newest commit, if any.
func (r *ScanResult) Head() (CommitRecord, bool) {
	if len(r.Commits) == 0 {
		return CommitRecord{}, false
	}
	return r.Commits[0], true
}

// OldestFirst returns the commits in reverse log order.
func (r *ScanResult) OldestFirst() []CommitRecord {
	out := make([]CommitRecord, len(r.Commits))
	for i, c := range r.Commits {
		out[len(r.Commits)-1-i] = c
	}
	return out
}
