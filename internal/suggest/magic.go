package suggest

import (
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
)

// magicNumberPattern matches integers of two or more digits, skipping the
// trivially common 10, 100 and 1000.
const magicNumberPattern = `\b(?!(?:0|1|2|10|100|1000)\b)\d{2,}\b`

var (
	annotationCall  = compile(`@\w+\s*\(`)
	enumConstructor = compile(`\b[A-Z_]{2,}\s*\(.*\d+.*\)`)
	constantDecl    = compile(`\b(final|static|const)\b`)
	versionString   = compile(`(?i)version.*\d|\bv\d+(\.\d+)*\b`)
	testContext     = compile(`(?i)test|mock`)
)

// timeUnitNumbers are common time conversion factors.
var timeUnitNumbers = map[int]bool{
	60: true, 24: true, 7: true, 30: true, 365: true, 1000: true, 3600: true, 86400: true,
}

// magicNumberMatcher builds the one custom predicate in the catalog: a line
// fires only when it holds a number that is not explained by its context.
func magicNumberMatcher(re *regexp2.Regexp) MatchFunc {
	return func(line string) (bool, error) {
		numbers, err := findAllStrings(re, line)
		if err != nil {
			return false, err
		}
		if len(numbers) == 0 {
			return false, nil
		}

		excluded, err := magicContextExcluded(strings.TrimSpace(line))
		if err != nil || excluded {
			return false, err
		}

		for _, n := range numbers {
			if !isWellKnownNumber(n) {
				return true, nil
			}
		}
		return false, nil
	}
}

// magicContextExcluded reports whether the line is a context where literal
// numbers are expected.
func magicContextExcluded(trimmed string) (bool, error) {
	for _, re := range []*regexp2.Regexp{annotationCall, enumConstructor, constantDecl, versionString, testContext} {
		ok, err := re.MatchString(trimmed)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	// Indexing and array-length expressions.
	if strings.Contains(trimmed, "[") && strings.Contains(trimmed, "]") {
		return true, nil
	}
	return false, nil
}

// isWellKnownNumber reports whether a literal is a time unit, an HTTP status
// code or a registered/ephemeral port.
func isWellKnownNumber(literal string) bool {
	n, err := strconv.Atoi(literal)
	if err != nil {
		// Too large for an int: certainly not a status code or port.
		return false
	}
	switch {
	case timeUnitNumbers[n]:
		return true
	case n >= 100 && n <= 599:
		return true
	case n >= 1024 && n <= 65535:
		return true
	}
	return false
}

// findAllStrings collects every match of re in s.
func findAllStrings(re *regexp2.Regexp, s string) ([]string, error) {
	var out []string
	m, err := re.FindStringMatch(s)
	for m != nil && err == nil {
		out = append(out, m.String())
		m, err = re.FindNextMatch(m)
	}
	return out, err
}
