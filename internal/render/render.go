// Package render formats scans, previews and session results for the
// terminal.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/Iron-Ham/gittimemachine/internal/backup"
	"github.com/Iron-Ham/gittimemachine/internal/history"
	"github.com/Iron-Ham/gittimemachine/internal/rewrite"
)

// DateLayout is how timestamps are shown.
const DateLayout = "2006-01-02 15:04:05 -0700"

const (
	hashWidth = 9
	dateWidth = len(DateLayout) + 2
)

// Renderer turns engine results into text.
type Renderer struct {
	styles Styles
}

// New returns a Renderer. With color false the output has no escape
// sequences.
func New(color bool) *Renderer {
	if color {
		return &Renderer{styles: DefaultStyles()}
	}
	return &Renderer{styles: PlainStyles()}
}

// FormatDate renders t with DateLayout.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

func (r *Renderer) cell(style lipgloss.Style, width int, text string) string {
	return style.Width(width).Render(text)
}

// Branch describes the branch line shown above scans and previews.
func (r *Renderer) Branch(snap history.BranchSnapshot) string {
	name := r.styles.Title.Render(snap.CurrentBranch)
	if !snap.HasUpstream {
		return name + r.styles.Muted.Render(" (no upstream)")
	}
	return name + r.styles.Muted.Render(" -> "+snap.UpstreamBranch)
}

// Scan renders a scan result as a table, newest commit first.
func (r *Renderer) Scan(scan *history.ScanResult) string {
	var b strings.Builder
	b.WriteString(r.Branch(scan.BranchSnapshot))
	b.WriteString("\n")

	if len(scan.Commits) == 0 {
		b.WriteString(r.styles.Muted.Render("No local-only commits."))
		b.WriteString("\n")
		return b.String()
	}

	noun := "commits"
	if len(scan.Commits) == 1 {
		noun = "commit"
	}
	fmt.Fprintf(&b, "%d local %s\n\n", len(scan.Commits), noun)

	b.WriteString(r.cell(r.styles.Header, hashWidth, "HASH"))
	b.WriteString(r.cell(r.styles.Header, dateWidth, "AUTHOR DATE"))
	b.WriteString(r.cell(r.styles.Header, dateWidth, "COMMIT DATE"))
	b.WriteString(r.styles.Header.Render("SUBJECT"))
	b.WriteString("\n")

	for _, c := range scan.Commits {
		b.WriteString(r.cell(r.styles.Hash, hashWidth, c.ShortHash))
		b.WriteString(r.cell(r.styles.Date, dateWidth, FormatDate(c.AuthorTime)))
		b.WriteString(r.cell(r.styles.Date, dateWidth, FormatDate(c.CommitTime)))
		b.WriteString(c.Subject)
		b.WriteString("\n")
	}
	return b.String()
}

// Plan renders a preview: one block per edit with the date changes and a
// diff of the message.
func (r *Renderer) Plan(plan *rewrite.Plan) string {
	var b strings.Builder
	b.WriteString(r.Branch(plan.BranchSnapshot))
	b.WriteString("\n")

	if len(plan.Edits) == 0 {
		b.WriteString(r.styles.Muted.Render("Nothing to change."))
		b.WriteString("\n")
		return b.String()
	}
	fmt.Fprintf(&b, "%d %s planned", len(plan.Edits), plural(len(plan.Edits), "edit", "edits"))
	if plan.Unchanged > 0 {
		fmt.Fprintf(&b, ", %d unchanged", plan.Unchanged)
	}
	b.WriteString("\n")

	for i, e := range plan.Edits {
		b.WriteString("\n")
		fmt.Fprintf(&b, "%d/%d %s %s %s\n",
			i+1, len(plan.Edits),
			r.styles.Hash.Render(e.Target.ShortHash),
			r.styles.Method.Render(string(e.Method)),
			e.Target.Subject)

		if e.NewAuthorTime != nil {
			b.WriteString(r.dateChange("author", e.Target.AuthorTime, e.NewAuthorTime))
		}
		// A nil commit time is stamped by git at write time
		if e.NewCommitTime == nil || !e.NewCommitTime.Equal(e.Target.CommitTime) {
			b.WriteString(r.dateChange("commit", e.Target.CommitTime, e.NewCommitTime))
		}
		if e.NewMessage != nil {
			b.WriteString(r.MessageDiff(e.Target.Message, *e.NewMessage))
		}
	}
	return b.String()
}

func (r *Renderer) dateChange(label string, from time.Time, to *time.Time) string {
	newValue := "now"
	if to != nil {
		newValue = FormatDate(*to)
	}
	return fmt.Sprintf("    %s %s -> %s\n",
		r.cell(r.styles.Muted, 7, label),
		r.styles.Date.Render(FormatDate(from)),
		r.styles.Date.Render(newValue))
}

// MessageDiff renders a unified diff between two commit messages, indented
// under a plan entry.
func (r *Renderer) MessageDiff(current, proposed string) string {
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(strings.TrimRight(current, "\n") + "\n"),
		B:        difflib.SplitLines(strings.TrimRight(proposed, "\n") + "\n"),
		FromFile: "current",
		ToFile:   "new",
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil || text == "" {
		return "    " + r.styles.Muted.Render("(message unchanged)") + "\n"
	}

	var b strings.Builder
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		var style lipgloss.Style
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			style = r.styles.DiffHeader
		case strings.HasPrefix(line, "@@"):
			style = r.styles.DiffHunk
		case strings.HasPrefix(line, "+"):
			style = r.styles.DiffAdd
		case strings.HasPrefix(line, "-"):
			style = r.styles.DiffRemove
		default:
			style = r.styles.Muted
		}
		b.WriteString("    ")
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}
	return b.String()
}

// Progress renders one progress line of a bulk session.
func (r *Renderer) Progress(current, total int, target history.CommitRecord) string {
	return fmt.Sprintf("%s %s %s\n",
		r.styles.Muted.Render(fmt.Sprintf("[%d/%d]", current, total)),
		r.styles.Hash.Render(target.ShortHash),
		target.Subject)
}

// Result summarizes a finished session.
func (r *Renderer) Result(res *rewrite.Result) string {
	s := res.Session
	var b strings.Builder

	if s.Applied == 0 {
		b.WriteString(r.styles.Muted.Render("No commits changed."))
		b.WriteString("\n")
	} else {
		b.WriteString(r.styles.Success.Render(fmt.Sprintf("Rewrote %d %s", s.Applied, plural(s.Applied, "commit", "commits"))))
		if s.Skipped > 0 {
			fmt.Fprintf(&b, " (%d already up to date)", s.Skipped)
		}
		b.WriteString("\n")
	}

	for _, req := range s.Requests {
		newHash, ok := s.Rewritten[req.Hash]
		if !ok || newHash == req.Hash {
			continue
		}
		fmt.Fprintf(&b, "  %s -> %s\n", r.styles.Hash.Render(short(req.Hash)), r.styles.Hash.Render(short(newHash)))
	}

	if s.Backup.Branch != "" {
		fmt.Fprintf(&b, "Backup: %s\n", r.styles.Title.Render(s.Backup.Branch))
	}
	return b.String()
}

// Backups renders backup branches, newest first.
func (r *Renderer) Backups(ptrs []backup.Pointer) string {
	if len(ptrs) == 0 {
		return r.styles.Muted.Render("No backup branches.") + "\n"
	}

	width := len("BRANCH")
	for _, p := range ptrs {
		width = max(width, len(p.Branch))
	}
	width += 2

	var b strings.Builder
	b.WriteString(r.cell(r.styles.Header, width, "BRANCH"))
	b.WriteString(r.cell(r.styles.Header, hashWidth, "COMMIT"))
	b.WriteString(r.styles.Header.Render("CREATED"))
	b.WriteString("\n")
	for _, p := range ptrs {
		b.WriteString(r.cell(lipgloss.NewStyle(), width, p.Branch))
		b.WriteString(r.cell(r.styles.Hash, hashWidth, short(p.Commit)))
		b.WriteString(r.styles.Date.Render(FormatDate(p.CreatedAt)))
		b.WriteString("\n")
	}
	return b.String()
}

func short(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
