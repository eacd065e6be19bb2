package suggest

import "strings"

// IgnoreMarker opts a single line out of every rule.
const IgnoreMarker = "codehint:ignore"

var pinDirective = compile(`^//\s*@cp[br]?\d+(-\d+)?\b`)

// IsOptOut reports whether a line carries an inline opt-out annotation. It
// is checked once per line before any rule runs.
//
// Recognized forms: the codehint:ignore marker anywhere on the line, and
// bookmark directives such as "//@cp12" or "//@cpb3-9" that start a
// comment. Ordinary comments mentioning issues (#42) or line ranges are
// still analyzed.
func IsOptOut(line string) bool {
	if strings.Contains(line, IgnoreMarker) {
		return true
	}
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "//") {
		return false
	}
	ok, _ := pinDirective.MatchString(trimmed)
	return ok
}
