// Package plan reads and writes bulk edit plans: YAML files listing commits
// and the metadata to write on each.
//
//	edits:
//	  - commit: 3f2a9c1
//	    message: |-
//	      Fix parser
//
//	      Handles empty records.
//	    author_date: 2024-03-01T12:00:00+01:00
//	  - commit: 9b0e4d2
//	    commit_date: "@1709290800"
package plan

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/gittimemachine/internal/errors"
	"github.com/Iron-Ham/gittimemachine/internal/history"
	"github.com/Iron-Ham/gittimemachine/internal/rewrite"
)

// File is a decoded plan.
type File struct {
	Edits []Entry `yaml:"edits"`
}

// Entry is one commit in a plan. Omitted fields are left unchanged.
type Entry struct {
	Commit     string  `yaml:"commit"`
	Message    *string `yaml:"message,omitempty"`
	AuthorDate string  `yaml:"author_date,omitempty"`
	CommitDate string  `yaml:"commit_date,omitempty"`
}

// Load reads and validates the plan at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading plan file")
	}
	return Parse(data)
}

// Parse decodes and validates a plan. Unknown keys are rejected so a
// misspelled field is not silently ignored.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.NewValidationError("plan file is empty").WithField("edits")
		}
		return nil, errors.NewValidationError("cannot parse plan file").WithCause(err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks every entry names a commit and carries parseable dates.
func (f *File) Validate() error {
	if len(f.Edits) == 0 {
		return errors.NewValidationError("plan has no edits").WithField("edits")
	}
	for i, e := range f.Edits {
		field := fmt.Sprintf("edits[%d]", i)
		if strings.TrimSpace(e.Commit) == "" {
			return errors.NewValidationError("commit is required").WithField(field + ".commit")
		}
		if e.Message != nil && strings.TrimSpace(*e.Message) == "" {
			return errors.NewValidationError("commit message cannot be empty").
				WithField(field + ".message").
				WithValue(e.Commit)
		}
		if e.AuthorDate != "" {
			if _, err := ParseDate(e.AuthorDate, time.Local); err != nil {
				return errors.NewValidationError("invalid date").WithField(field + ".author_date").WithCause(err)
			}
		}
		if e.CommitDate != "" {
			if _, err := ParseDate(e.CommitDate, time.Local); err != nil {
				return errors.NewValidationError("invalid date").WithField(field + ".commit_date").WithCause(err)
			}
		}
	}
	return nil
}

// Requests converts the plan to edit requests in file order. Dates without
// a zone are read in loc.
func (f *File) Requests(loc *time.Location) ([]rewrite.EditRequest, error) {
	reqs := make([]rewrite.EditRequest, 0, len(f.Edits))
	for _, e := range f.Edits {
		req := rewrite.EditRequest{
			Hash:       strings.TrimSpace(e.Commit),
			NewMessage: e.Message,
		}
		if e.AuthorDate != "" {
			t, err := ParseDate(e.AuthorDate, loc)
			if err != nil {
				return nil, err
			}
			req.NewAuthorTime = &t
		}
		if e.CommitDate != "" {
			t, err := ParseDate(e.CommitDate, loc)
			if err != nil {
				return nil, err
			}
			req.NewCommitTime = &t
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// Skeleton renders a plan listing every scanned commit oldest first with its
// current message and author date, ready to be edited by hand. The commit
// date is shown as a comment only: an explicit commit_date would stop it
// from following an edited author date.
func Skeleton(scan *history.ScanResult) ([]byte, error) {
	commits := scan.OldestFirst()
	f := File{Edits: make([]Entry, 0, len(commits))}
	for _, c := range commits {
		msg := c.Message
		f.Edits = append(f.Edits, Entry{
			Commit:     c.ShortHash,
			Message:    &msg,
			AuthorDate: c.AuthorTime.Format(time.RFC3339),
		})
	}

	var doc yaml.Node
	if err := doc.Encode(&f); err != nil {
		return nil, err
	}
	if edits := mappingValue(&doc, "edits"); edits != nil {
		for i, item := range edits.Content {
			if date := mappingValue(item, "author_date"); date != nil && i < len(commits) {
				date.LineComment = "# committed " + commits[i].CommitTime.Format(time.RFC3339)
			}
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// mappingValue returns the value node stored under key in a mapping node.
func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}
