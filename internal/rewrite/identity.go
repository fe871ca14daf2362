package rewrite

import (
	"github.com/Iron-Ham/gittimemachine/internal/errors"
	"github.com/Iron-Ham/gittimemachine/internal/history"
)

// identity is the stable key of a request target. Hashes change with every
// rewrite; the subject and the position counted from the oldest local-only
// commit do not, unless the target itself was edited.
type identity struct {
	original string // hash at selection time
	subject  string
	ordinal  int
	// edited is set once the target has been rewritten; its subject may
	// then differ from what git stored if git normalized the message.
	edited bool
}

// resolve finds id in commits (oldest first). Order of preference:
//  1. the commit at the same ordinal with the same subject
//  2. the only commit with the same subject
//  3. the commit at the same ordinal, if the list length is unchanged and
//     the target was already edited
//
// Anything else is ambiguous.
func resolve(id identity, commits []history.CommitRecord, previousLen int) (history.CommitRecord, error) {
	if id.ordinal >= 0 && id.ordinal < len(commits) && commits[id.ordinal].Subject == id.subject {
		return commits[id.ordinal], nil
	}

	var matches []history.CommitRecord
	for _, c := range commits {
		if c.Subject == id.subject {
			matches = append(matches, c)
		}
	}
	if len(matches) == 1 {
		return matches[0], nil
	}

	if id.edited && len(commits) == previousLen && id.ordinal >= 0 && id.ordinal < len(commits) {
		return commits[id.ordinal], nil
	}

	return history.CommitRecord{}, errors.NewIdentityResolutionAmbiguousError(id.original, id.subject, id.ordinal, len(matches))
}

// ordinalOf returns the position of hash in commits (oldest first).
func ordinalOf(commits []history.CommitRecord, hash string) int {
	for i, c := range commits {
		if c.Hash == hash {
			return i
		}
	}
	return -1
}
