package suggest

import (
	"fmt"
	"strings"
)

// Method thresholds.
const (
	longMethodLines     = 50
	complexityThreshold = 10
)

var (
	methodSignature = compile(`\b(public|private|protected|static|func)\b.*\(.*\)`)
	methodName      = compile(`\b([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	branchKeyword   = compile(`\b(if|while|for|case|catch)\b`)
)

// Method is the approximate extent and complexity of one method-like block.
type Method struct {
	Name       string
	StartLine  int
	EndLine    int
	LineCount  int
	Complexity int
}

// FindMethods locates method-like blocks with a brace-counting heuristic.
//
// This is an approximation, not a parser: a candidate start is any line with
// a visibility keyword (or func) and a parameter list but no assignment; the
// block ends when the brace balance returns to zero. Braces inside string or
// character literals and nested lambdas are counted like any other brace, so
// the extent can be wrong for such code. Complexity starts at 1 and grows by
// one per if/while/for/case/catch keyword seen in the block.
func FindMethods(lines []string) []Method {
	var methods []Method
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !isMethodStart(trimmed) {
			continue
		}
		if m, ok := extractMethod(lines, i); ok {
			methods = append(methods, m)
		}
	}
	return methods
}

func isMethodStart(trimmed string) bool {
	if strings.HasPrefix(trimmed, "//") || strings.Contains(trimmed, "=") {
		return false
	}
	ok, err := methodSignature.MatchString(trimmed)
	return err == nil && ok
}

func extractMethod(lines []string, start int) (Method, bool) {
	m := Method{
		Name:       extractMethodName(lines[start]),
		StartLine:  start,
		Complexity: 1,
	}

	balance := 0
	opened := false
	for i := start; i < len(lines); i++ {
		line := lines[i]
		m.LineCount++

		for _, c := range line {
			switch c {
			case '{':
				balance++
				opened = true
			case '}':
				balance--
			}
		}
		if balance < 0 {
			return Method{}, false
		}

		if kws, err := findAllStrings(branchKeyword, line); err == nil {
			m.Complexity += len(kws)
		}

		if !opened {
			// A declaration without a body, e.g. an interface method.
			if strings.HasSuffix(strings.TrimSpace(line), ";") {
				return Method{}, false
			}
			continue
		}
		if balance == 0 {
			m.EndLine = i
			return m, m.EndLine > m.StartLine
		}
	}
	return Method{}, false
}

func extractMethodName(line string) string {
	m, err := methodName.FindStringMatch(line)
	for m != nil && err == nil {
		name := m.GroupByNumber(1).String()
		switch name {
		case "public", "private", "protected", "static", "func", "if", "for", "while", "switch", "catch":
		default:
			return name
		}
		m, err = methodName.FindNextMatch(m)
	}
	return "unknown"
}

// methodSuggestions flags long and complex methods.
func methodSuggestions(path string, lines []string) []Suggestion {
	var out []Suggestion
	for _, m := range FindMethods(lines) {
		if m.LineCount > longMethodLines {
			out = append(out, Suggestion{
				Type:        TypeRefactor,
				Priority:    PriorityMedium,
				RuleID:      "LONG_METHOD",
				Title:       "Long method",
				Description: fmt.Sprintf("Method %s spans %d lines; split it into smaller methods.", m.Name, m.LineCount),
				Reason:      fmt.Sprintf("more than %d lines", longMethodLines),
				FilePath:    path,
				StartLine:   m.StartLine,
				EndLine:     m.EndLine,
				Confidence:  0.8,
			})
		}
		if m.Complexity > complexityThreshold {
			out = append(out, Suggestion{
				Type:        TypeComplexity,
				Priority:    PriorityHigh,
				RuleID:      "HIGH_COMPLEXITY",
				Title:       "High cyclomatic complexity",
				Description: fmt.Sprintf("Method %s has an approximate cyclomatic complexity of %d; split it up.", m.Name, m.Complexity),
				Reason:      fmt.Sprintf("complexity above %d", complexityThreshold),
				FilePath:    path,
				StartLine:   m.StartLine,
				EndLine:     m.EndLine,
				Confidence:  0.9,
			})
		}
	}
	return out
}
