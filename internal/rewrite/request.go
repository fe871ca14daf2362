package rewrite

import (
	"strings"
	"time"

	"github.com/Iron-Ham/gittimemachine/internal/errors"
)

// EditRequest asks for new metadata on one commit. Hash is the commit's
// hash when it was selected; the engine re-resolves it as earlier rewrites
// shift hashes.
type EditRequest struct {
	Hash          string
	NewMessage    *string
	NewAuthorTime *time.Time
	NewCommitTime *time.Time
}

// IsNoop reports whether the request changes nothing.
func (r EditRequest) IsNoop() bool {
	return r.NewMessage == nil && r.NewAuthorTime == nil && r.NewCommitTime == nil
}

// Validate rejects an empty or whitespace-only message.
func (r EditRequest) Validate() error {
	if r.Hash == "" {
		return errors.NewValidationError("commit hash is required").WithField("hash")
	}
	if r.NewMessage != nil && strings.TrimSpace(*r.NewMessage) == "" {
		return errors.NewValidationError("commit message cannot be empty").
			WithField("message").
			WithValue(r.Hash)
	}
	return nil
}

// normalizeRequests validates every request, drops no-ops and merges
// requests for the same hash in order (later fields win). The result keeps
// the order in which each hash first appeared.
func normalizeRequests(reqs []EditRequest) ([]EditRequest, error) {
	for _, r := range reqs {
		if r.IsNoop() {
			continue
		}
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}

	index := make(map[string]int)
	var out []EditRequest
	for _, r := range reqs {
		if r.IsNoop() {
			continue
		}
		if r.NewMessage != nil {
			msg := strings.TrimRight(*r.NewMessage, " \t\r\n")
			r.NewMessage = &msg
		}

		i, seen := index[r.Hash]
		if !seen {
			index[r.Hash] = len(out)
			out = append(out, r)
			continue
		}
		merged := &out[i]
		if r.NewMessage != nil {
			merged.NewMessage = r.NewMessage
		}
		if r.NewAuthorTime != nil {
			merged.NewAuthorTime = r.NewAuthorTime
		}
		if r.NewCommitTime != nil {
			merged.NewCommitTime = r.NewCommitTime
		}
	}
	return out, nil
}
