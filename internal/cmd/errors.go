package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/Iron-Ham/gittimemachine/internal/errors"
)

// ReportError prints err to stderr, in color when stderr is a terminal.
func ReportError(err error) {
	PrintError(os.Stderr, err, isTerminal(os.Stderr) && !color.NoColor)
}

// PrintError writes err with a severity label, followed by what the user
// can do about it: restore from the backup branch of a failed session, or
// rerun once the cause is fixed.
func PrintError(w io.Writer, err error, colored bool) {
	if err == nil {
		return
	}

	label, tone := severityLabel(errors.GetSeverity(err))
	note := color.New(color.FgYellow)
	if colored {
		tone.EnableColor()
		note.EnableColor()
	} else {
		tone.DisableColor()
		note.DisableColor()
	}

	_, _ = tone.Fprint(w, label+": ")
	_, _ = fmt.Fprintln(w, err)

	if branch, ok := errors.BackupBranchOf(err); ok {
		_, _ = note.Fprintf(w, "Your original history is saved on %s.\n", branch)
		_, _ = fmt.Fprintf(w, "Restore it with: %s restore %s\n", ProgramName, branch)
		return
	}

	switch {
	case errors.IsSafetyError(err):
		_, _ = note.Fprintln(w, "Nothing was changed.")
	case errors.IsRetryable(err):
		_, _ = note.Fprintln(w, "Nothing was changed. Running the command again may succeed.")
	}
	if errors.Is(err, errors.ErrInvalidInput) {
		_, _ = fmt.Fprintf(w, "Run '%s --help' for usage.\n", ProgramName)
	}
	if !errors.IsUserFacing(err) {
		_, _ = fmt.Fprintln(w, "Run with --verbose for details.")
	}
}

func severityLabel(s errors.Severity) (string, *color.Color) {
	switch s {
	case errors.SeverityCritical:
		return "critical", color.New(color.FgRed, color.Bold)
	case errors.SeverityWarning:
		return "warning", color.New(color.FgYellow, color.Bold)
	default:
		return "error", color.New(color.FgRed, color.Bold)
	}
}
