package suggest

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// File-level thresholds.
const (
	largeFileLines      = 500
	minCodeLinesForDocs = 50
	minCommentRatio     = 0.1
)

// Analyzer evaluates the catalog, the file aggregates and the method
// heuristic against one file's text. It holds no mutable state and is safe
// for concurrent use.
type Analyzer struct {
	catalog *Catalog
	secrets SecretDetector
	logger  *zap.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger used to report isolated rule failures.
func WithLogger(l *zap.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithSecretDetector enables the whole-file credential pass.
func WithSecretDetector(d SecretDetector) Option {
	return func(a *Analyzer) { a.secrets = d }
}

// NewAnalyzer creates an analyzer over catalog. A nil catalog means the
// default catalog.
func NewAnalyzer(catalog *Catalog, opts ...Option) *Analyzer {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	a := &Analyzer{
		catalog: catalog,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Catalog returns the catalog the analyzer runs.
func (a *Analyzer) Catalog() *Catalog { return a.catalog }

// Analyze returns the raw candidate suggestions for one file, in detection
// order. Empty content yields no candidates. A rule that errors or panics on
// a line is skipped for that line only.
func (a *Analyzer) Analyze(path, content string) []Suggestion {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	lines := splitLines(content)
	var out []Suggestion

	rules := a.catalog.rules
	for i, line := range lines {
		if IsOptOut(line) {
			continue
		}
		for _, r := range rules {
			matched, err := evalRule(r, line)
			if err != nil {
				a.logger.Debug("rule failed",
					zap.String("rule", r.ID),
					zap.String("file", path),
					zap.Int("line", i),
					zap.Error(err),
				)
				continue
			}
			if matched {
				out = append(out, fromRule(r, path, i, line))
			}
		}
	}

	out = append(out, fileAggregates(path, lines)...)
	out = append(out, methodSuggestions(path, lines)...)

	if a.secrets != nil {
		found, err := a.secretSuggestions(path, content, lines)
		if err != nil {
			a.logger.Warn("secret scan failed", zap.String("file", path), zap.Error(err))
		}
		out = append(out, found...)
	}

	return out
}

// evalRule runs one rule and converts a panic into an error.
func evalRule(r Rule, line string) (matched bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			matched = false
			err = fmt.Errorf("rule %s panicked: %v", r.ID, p)
		}
	}()
	return r.Matches(line)
}

func fromRule(r Rule, path string, line int, text string) Suggestion {
	return Suggestion{
		Type:        r.Type,
		Priority:    r.Priority,
		RuleID:      r.ID,
		Title:       r.Name,
		Description: r.Description,
		Reason:      "matched rule " + r.ID,
		FilePath:    path,
		StartLine:   line,
		EndLine:     line,
		CodeSnippet: strings.TrimSpace(text),
		Confidence:  ClampConfidence(r.Confidence),
	}
}

// fileAggregates flags oversized files and files with too few comments.
func fileAggregates(path string, lines []string) []Suggestion {
	var out []Suggestion
	last := len(lines) - 1

	if len(lines) > largeFileLines {
		out = append(out, Suggestion{
			Type:        TypeRefactor,
			Priority:    PriorityMedium,
			RuleID:      "LARGE_FILE",
			Title:       "Large file",
			Description: fmt.Sprintf("The file has %d lines; consider splitting it into smaller files.", len(lines)),
			Reason:      fmt.Sprintf("more than %d lines", largeFileLines),
			FilePath:    path,
			StartLine:   0,
			EndLine:     last,
			Confidence:  0.7,
		})
	}

	comments, code := 0, 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
		case strings.HasPrefix(trimmed, "//"), strings.HasPrefix(trimmed, "/*"), strings.HasPrefix(trimmed, "*"):
			comments++
		default:
			code++
		}
	}
	if code > minCodeLinesForDocs && float64(comments) < float64(code)*minCommentRatio {
		out = append(out, Suggestion{
			Type:        TypeDocumentation,
			Priority:    PriorityLow,
			RuleID:      "LOW_COMMENT_DENSITY",
			Title:       "Sparse comments",
			Description: fmt.Sprintf("%d comment lines for %d code lines; document the non-obvious parts.", comments, code),
			Reason:      "comment density below 10%",
			FilePath:    path,
			StartLine:   0,
			EndLine:     last,
			Confidence:  0.5,
		})
	}
	return out
}

// splitLines splits on "\n" and drops a trailing "\r" from each line.
func splitLines(content string) []string {
	lines := strings.Split(content, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
