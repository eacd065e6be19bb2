// Package output provides styled terminal rendering helpers for codehint.
package output

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/codehint/internal/suggest"
)

// Color constants for consistent styling across the CLI.
var (
	// ColorPrimary is used for headers and emphasis.
	ColorPrimary = lipgloss.Color("#64b5f6")

	// ColorSuccess is used for positive indicators and improvements.
	ColorSuccess = lipgloss.Color("#66bb6a")

	// ColorError is used for negative indicators and critical findings.
	ColorError = lipgloss.Color("#ef5350")

	// ColorWarning is used for caution indicators.
	ColorWarning = lipgloss.Color("#fff59d")

	// ColorHigh is used for HIGH priority findings.
	ColorHigh = lipgloss.Color("#ffa726")

	// ColorMuted is used for secondary text and borders.
	ColorMuted = lipgloss.Color("#888888")
)

// Styles provides reusable lipgloss styles.
var (
	StyleHeader  lipgloss.Style
	StyleSuccess lipgloss.Style
	StyleError   lipgloss.Style
	StyleWarning lipgloss.Style
	StyleHigh    lipgloss.Style
	StyleMuted   lipgloss.Style
	StyleBold    lipgloss.Style

	// StyleLabel is used for field labels in key/value listings.
	StyleLabel lipgloss.Style
	// StyleValue is used for the values next to a label.
	StyleValue lipgloss.Style
)

func init() {
	applyStyles(false)
}

// noColor tracks whether color output is disabled.
var noColor bool

// SetNoColor disables or enables color output globally by rebuilding the
// package-level styles.
func SetNoColor(disabled bool) {
	noColor = disabled
	applyStyles(disabled)
}

// IsNoColor returns whether color output is currently disabled.
func IsNoColor() bool {
	return noColor
}

func applyStyles(plain bool) {
	base := lipgloss.NewStyle()
	if plain {
		StyleHeader = base
		StyleSuccess = base
		StyleError = base
		StyleWarning = base
		StyleHigh = base
		StyleMuted = base
		StyleBold = base
		StyleLabel = base.Width(24)
		StyleValue = base.Width(12)
		return
	}
	StyleHeader = base.Foreground(ColorPrimary).Bold(true)
	StyleSuccess = base.Foreground(ColorSuccess)
	StyleError = base.Foreground(ColorError).Bold(true)
	StyleWarning = base.Foreground(ColorWarning)
	StyleHigh = base.Foreground(ColorHigh)
	StyleMuted = base.Foreground(ColorMuted)
	StyleBold = base.Bold(true)
	StyleLabel = base.Width(24)
	StyleValue = base.Bold(true).Width(12)
}

// ColorEnabled reports whether colored output should be used on f: the
// configuration must allow it, NO_COLOR must be unset and f must be a
// terminal.
func ColorEnabled(f *os.File, configured bool) bool {
	if !configured || os.Getenv("NO_COLOR") != "" || f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// PriorityStyle returns the style used for a priority label.
func PriorityStyle(p suggest.Priority) lipgloss.Style {
	switch p {
	case suggest.PriorityCritical:
		return StyleError
	case suggest.PriorityHigh:
		return StyleHigh
	case suggest.PriorityMedium:
		return StyleWarning
	default:
		return StyleMuted
	}
}

// PriorityLabel renders a priority name in its style.
func PriorityLabel(p suggest.Priority) string {
	return PriorityStyle(p).Render(p.String())
}
