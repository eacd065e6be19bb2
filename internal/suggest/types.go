// Package suggest provides the rule catalog, the line/file/method analyzer
// and the severity aggregation that turn source text into ranked suggestions.
package suggest

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrUnknownType is returned when a suggestion type name is not recognized.
var ErrUnknownType = errors.New("unknown suggestion type")

// ErrUnknownPriority is returned when a priority name is not recognized.
var ErrUnknownPriority = errors.New("unknown priority")

// SuggestionType classifies a suggestion.
type SuggestionType string

// Suggestion types.
const (
	TypeTodo          SuggestionType = "TODO"
	TypeFixme         SuggestionType = "FIXME"
	TypeOptimize      SuggestionType = "OPTIMIZE"
	TypeRefactor      SuggestionType = "REFACTOR"
	TypeSecurity      SuggestionType = "SECURITY"
	TypeCodeSmell     SuggestionType = "CODE_SMELL"
	TypeComplexity    SuggestionType = "COMPLEXITY"
	TypeDocumentation SuggestionType = "DOCUMENTATION"
	TypeDeprecated    SuggestionType = "DEPRECATED"
	TypeBestPractice  SuggestionType = "BEST_PRACTICE"
)

// AllTypes lists every suggestion type in declaration order.
var AllTypes = []SuggestionType{
	TypeTodo, TypeFixme, TypeOptimize, TypeRefactor, TypeSecurity,
	TypeCodeSmell, TypeComplexity, TypeDocumentation, TypeDeprecated, TypeBestPractice,
}

// ParseType converts a case-insensitive name into a SuggestionType.
func ParseType(name string) (SuggestionType, error) {
	norm := SuggestionType(strings.ToUpper(strings.TrimSpace(name)))
	for _, t := range AllTypes {
		if t == norm {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, name)
}

// Priority is the ordered urgency of a suggestion.
type Priority int

// Priority levels for suggestions.
const (
	PriorityLow      Priority = 1
	PriorityMedium   Priority = 2
	PriorityHigh     Priority = 3
	PriorityCritical Priority = 4
)

// AllPriorities lists every priority from lowest to highest.
var AllPriorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// Level returns the numeric level used in severity scoring.
func (p Priority) Level() int { return int(p) }

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "LOW"
	case PriorityMedium:
		return "MEDIUM"
	case PriorityHigh:
		return "HIGH"
	case PriorityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the priority by name.
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a priority name.
func (p *Priority) UnmarshalText(b []byte) error {
	v, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ParsePriority converts a case-insensitive name into a Priority.
func ParsePriority(name string) (Priority, error) {
	norm := strings.ToUpper(strings.TrimSpace(name))
	for _, p := range AllPriorities {
		if p.String() == norm {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPriority, name)
}

// Suggestion represents one detected improvement opportunity.
//
// Lines are 0-based. Everything except Applied, AppliedRef and
// AdjustedScore is fixed once the aggregator has assigned an ID.
type Suggestion struct {
	ID            string         `json:"id"`
	Type          SuggestionType `json:"type"`
	Priority      Priority       `json:"priority"`
	RuleID        string         `json:"rule_id,omitempty"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Reason        string         `json:"reason,omitempty"`
	FilePath      string         `json:"file_path"`
	StartLine     int            `json:"start_line"`
	EndLine       int            `json:"end_line"`
	CodeSnippet   string         `json:"code_snippet,omitempty"`
	Confidence    float64        `json:"confidence"`
	CreatedAt     time.Time      `json:"created_at"`
	Applied       bool           `json:"applied"`
	AppliedRef    string         `json:"applied_ref,omitempty"`
	AdjustedScore float64        `json:"adjusted_score"`
}

// SeverityScore is the priority-weighted raw score computed before any
// learning adjustment: level*10 + floor(confidence*10).
func (s Suggestion) SeverityScore() int {
	return s.Priority.Level()*10 + int(math.Floor(ClampConfidence(s.Confidence)*10))
}

// CoversLine reports whether line falls inside [StartLine, EndLine].
func (s Suggestion) CoversLine(line int) bool {
	return s.StartLine <= line && line <= s.EndLine
}

// DisplayText is the one-line label used by renderers.
func (s Suggestion) DisplayText() string {
	return fmt.Sprintf("[%s] %s", s.Type, s.Title)
}

// ClampConfidence forces a confidence into [0,1]. NaN becomes 0.
func ClampConfidence(c float64) float64 {
	if math.IsNaN(c) || c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
