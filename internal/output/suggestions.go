package output

import (
	"fmt"
	"io"

	"github.com/blackwell-systems/codehint/internal/suggest"
)

// fixedColumns is the approximate width taken by every column but the title.
const fixedColumns = 64

// LineRange formats a 0-based line span as 1-based text: "12" or "12-40".
func LineRange(s suggest.Suggestion) string {
	if s.EndLine > s.StartLine {
		return fmt.Sprintf("%d-%d", s.StartLine+1, s.EndLine+1)
	}
	return fmt.Sprintf("%d", s.StartLine+1)
}

// SuggestionTable builds a table of suggestions in the given order. The
// title column is truncated so rows fit in width.
func SuggestionTable(list []suggest.Suggestion, width int) *Table {
	t := NewTable("#", "LINE", "PRIORITY", "TYPE", "CONF", "SCORE", "RULE", "TITLE")
	if width > 0 {
		t.SetMaxWidth(7, maxInt(16, width-fixedColumns))
	}
	for i, s := range list {
		title := s.Title
		if s.Applied {
			title = "✓ " + title
		}
		t.AddRow(
			fmt.Sprintf("%d", i+1),
			LineRange(s),
			PriorityLabel(s.Priority),
			string(s.Type),
			fmt.Sprintf("%.2f", s.Confidence),
			fmt.Sprintf("%.2f", s.AdjustedScore),
			s.RuleID,
			title,
		)
	}
	return t
}

// WriteSuggestions writes a section header for path followed by its
// suggestions, or a muted note when there are none.
func WriteSuggestions(w io.Writer, path string, list []suggest.Suggestion, width int) error {
	header := fmt.Sprintf("%s (%d)", path, len(list))
	if _, err := fmt.Fprintln(w, Section(header)); err != nil {
		return err
	}
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, " "+StyleMuted.Render("no suggestions"))
		return err
	}
	return SuggestionTable(list, width).Fprint(w)
}

// WriteDetail writes one suggestion with its description and reason.
func WriteDetail(w io.Writer, s suggest.Suggestion) error {
	_, err := fmt.Fprintf(w, "%s %s %s\n  %s\n  %s %s\n  %s %s\n",
		PriorityLabel(s.Priority),
		StyleBold.Render(s.Title),
		StyleMuted.Render(fmt.Sprintf("%s:%s", s.FilePath, LineRange(s))),
		s.Description,
		StyleMuted.Render("id:"), s.ID,
		StyleMuted.Render("why:"), s.Reason,
	)
	return err
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
