package render

import "github.com/charmbracelet/lipgloss"

var (
	// Colors - all colors meet WCAG AA contrast (4.5:1) on dark backgrounds
	PrimaryColor   = lipgloss.Color("#A78BFA") // Purple
	SecondaryColor = lipgloss.Color("#10B981") // Green
	WarningColor   = lipgloss.Color("#F59E0B") // Amber
	ErrorColor     = lipgloss.Color("#F87171") // Red
	MutedColor     = lipgloss.Color("#9CA3AF") // Gray
	BlueColor      = lipgloss.Color("#60A5FA") // Blue
	YellowColor    = lipgloss.Color("#FBBF24") // Yellow
)

// Styles is the set of styles a Renderer draws with.
type Styles struct {
	Title   lipgloss.Style
	Header  lipgloss.Style
	Hash    lipgloss.Style
	Date    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Method  lipgloss.Style

	DiffAdd    lipgloss.Style
	DiffRemove lipgloss.Style
	DiffHunk   lipgloss.Style
	DiffHeader lipgloss.Style
}

// DefaultStyles returns the colored style set.
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor),
		Header:  lipgloss.NewStyle().Bold(true).Foreground(MutedColor),
		Hash:    lipgloss.NewStyle().Foreground(YellowColor),
		Date:    lipgloss.NewStyle().Foreground(BlueColor),
		Muted:   lipgloss.NewStyle().Foreground(MutedColor),
		Success: lipgloss.NewStyle().Foreground(SecondaryColor),
		Warning: lipgloss.NewStyle().Foreground(WarningColor),
		Error:   lipgloss.NewStyle().Bold(true).Foreground(ErrorColor),
		Method:  lipgloss.NewStyle().Foreground(PrimaryColor),

		DiffAdd:    lipgloss.NewStyle().Foreground(SecondaryColor),
		DiffRemove: lipgloss.NewStyle().Foreground(ErrorColor),
		DiffHunk:   lipgloss.NewStyle().Foreground(BlueColor),
		DiffHeader: lipgloss.NewStyle().Bold(true),
	}
}

// PlainStyles returns a style set that adds no escape sequences.
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Title: plain, Header: plain, Hash: plain, Date: plain, Muted: plain,
		Success: plain, Warning: plain, Error: plain, Method: plain,
		DiffAdd: plain, DiffRemove: plain, DiffHunk: plain, DiffHeader: plain,
	}
}
