package suggest

import (
	"errors"
	"fmt"
	"time"

	"github.com/dlclark/regexp2"
)

// matchTimeout bounds a single pattern evaluation. A pattern that exceeds it
// returns an error, which the analyzer treats like any other failing rule.
const matchTimeout = 50 * time.Millisecond

// Family groups rules by where they come from.
type Family string

const (
	// FamilyQuality rules are the single-line code quality patterns.
	FamilyQuality Family = "quality"
	// FamilyScanner rules are cross-cutting scanners independent of the
	// quality rules (markers, secrets, long lines and the like).
	FamilyScanner Family = "scanner"
)

// MatchFunc is an optional custom predicate that replaces the default
// "pattern matches" test for a rule.
type MatchFunc func(line string) (bool, error)

// Rule is a declarative single-line detector.
type Rule struct {
	ID          string
	Name        string
	Family      Family
	Type        SuggestionType
	Priority    Priority
	Confidence  float64
	Description string
	Pattern     *regexp2.Regexp
	Match       MatchFunc
}

// Matches evaluates the rule against one line. The custom predicate, when
// present, wins over the pattern.
func (r Rule) Matches(line string) (bool, error) {
	if r.Match != nil {
		return r.Match(line)
	}
	if r.Pattern == nil {
		return false, fmt.Errorf("rule %s: no pattern or predicate", r.ID)
	}
	return r.Pattern.MatchString(line)
}

// Validate reports why a rule cannot be used, or nil.
func (r Rule) Validate() error {
	if r.ID == "" {
		return errors.New("rule has empty id")
	}
	if r.Pattern == nil && r.Match == nil {
		return fmt.Errorf("rule %s: no pattern or predicate", r.ID)
	}
	if _, err := ParseType(string(r.Type)); err != nil {
		return fmt.Errorf("rule %s: %w", r.ID, err)
	}
	if r.Priority < PriorityLow || r.Priority > PriorityCritical {
		return fmt.Errorf("rule %s: %w: %d", r.ID, ErrUnknownPriority, r.Priority)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("rule %s: confidence %.2f outside [0,1]", r.ID, r.Confidence)
	}
	return nil
}

// Catalog is an immutable, ordered set of rules.
type Catalog struct {
	rules []Rule
	byID  map[string]int
}

// NewCatalog validates rules and builds a catalog. Duplicate or malformed
// rules are rejected as a whole so a broken catalog never reaches the
// analyzer.
func NewCatalog(rules ...Rule) (*Catalog, error) {
	c := &Catalog{
		rules: make([]Rule, 0, len(rules)),
		byID:  make(map[string]int, len(rules)),
	}
	var errs []error
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := c.byID[r.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate rule id %s", r.ID))
			continue
		}
		c.byID[r.ID] = len(c.rules)
		c.rules = append(c.rules, r)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return c, nil
}

// Rules returns a copy of the rules in evaluation order.
func (c *Catalog) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Rule looks up a rule by ID.
func (c *Catalog) Rule(id string) (Rule, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Rule{}, false
	}
	return c.rules[i], true
}

// Len returns the number of rules.
func (c *Catalog) Len() int { return len(c.rules) }

// compile builds a rule pattern with the shared match timeout.
func compile(expr string) *regexp2.Regexp {
	re := regexp2.MustCompile(expr, regexp2.None)
	re.MatchTimeout = matchTimeout
	return re
}

// DefaultCatalog returns the built-in rule set: the quality rules followed by
// the cross-cutting scanners.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(append(QualityRules(), ScannerRules()...)...)
	if err != nil {
		panic(fmt.Sprintf("suggest: built-in catalog is invalid: %v", err))
	}
	return c
}

// QualityRules returns the single-line quality patterns.
func QualityRules() []Rule {
	magic := compile(magicNumberPattern)
	return []Rule{
		{
			ID:          "NAMING_CONVENTION",
			Name:        "Naming convention",
			Family:      FamilyQuality,
			Type:        TypeBestPractice,
			Priority:    PriorityLow,
			Confidence:  0.6,
			Description: "Variables should use camelCase names.",
			Pattern:     compile(`\b[a-z][a-z0-9]*_[a-z0-9_]+\s*=(?!=)`),
		},
		{
			ID:          "MAGIC_NUMBER",
			Name:        "Magic number",
			Family:      FamilyQuality,
			Type:        TypeRefactor,
			Priority:    PriorityMedium,
			Confidence:  0.7,
			Description: "Avoid magic numbers; extract the value into a named constant.",
			Pattern:     magic,
			Match:       magicNumberMatcher(magic),
		},
		{
			ID:          "DUPLICATE_STRING",
			Name:        "Duplicate string",
			Family:      FamilyQuality,
			Type:        TypeRefactor,
			Priority:    PriorityMedium,
			Confidence:  0.8,
			Description: "The same string literal appears more than once; extract it into a constant.",
			Pattern:     compile(`"([^"]{5,})".*"\1"`),
		},
		{
			ID:          "EMPTY_METHOD",
			Name:        "Empty method body",
			Family:      FamilyQuality,
			Type:        TypeCodeSmell,
			Priority:    PriorityLow,
			Confidence:  0.5,
			Description: "An empty body may indicate an unfinished implementation.",
			Pattern:     compile(`\{\s*\}`),
		},
		{
			ID:          "LONG_PARAMETER_LIST",
			Name:        "Long parameter list",
			Family:      FamilyQuality,
			Type:        TypeRefactor,
			Priority:    PriorityMedium,
			Confidence:  0.6,
			Description: "The parameter list is long; consider a parameter object.",
			Pattern:     compile(`\([^)]{80,}\)`),
		},
		{
			ID:          "DEEP_NESTING",
			Name:        "Deep nesting",
			Family:      FamilyQuality,
			Type:        TypeComplexity,
			Priority:    PriorityHigh,
			Confidence:  0.8,
			Description: "Deeply nested control flow hurts readability.",
			Pattern:     compile(`(\s{12,})(if|for|while|try)\b`),
		},
		{
			ID:          "UNUSED_IMPORT",
			Name:        "Possibly unused import",
			Family:      FamilyQuality,
			Type:        TypeCodeSmell,
			Priority:    PriorityLow,
			Confidence:  0.4,
			Description: "This import may be unused.",
			Pattern:     compile(`^import\s+[^;]+;$`),
		},
		{
			ID:          "GENERIC_EXCEPTION",
			Name:        "Broad exception catch",
			Family:      FamilyQuality,
			Type:        TypeBestPractice,
			Priority:    PriorityMedium,
			Confidence:  0.7,
			Description: "Catch specific exception types instead of the generic Exception.",
			Pattern:     compile(`catch\s*\(\s*Exception\s+`),
		},
		{
			ID:          "STRING_CONCATENATION",
			Name:        "String concatenation",
			Family:      FamilyQuality,
			Type:        TypeOptimize,
			Priority:    PriorityMedium,
			Confidence:  0.6,
			Description: "Repeated string concatenation; use a builder.",
			Pattern:     compile(`\+\s*"[^"]*"\s*\+`),
		},
		{
			ID:          "SQL_INJECTION_RISK",
			Name:        "SQL injection risk",
			Family:      FamilyQuality,
			Type:        TypeSecurity,
			Priority:    PriorityCritical,
			Confidence:  0.9,
			Description: "SQL built by concatenation may be injectable; use parameterized queries.",
			Pattern:     compile(`(SELECT|INSERT|UPDATE|DELETE).*\+.*`),
		},
	}
}

// ScannerRules returns the cross-cutting scanners.
func ScannerRules() []Rule {
	return []Rule{
		{
			ID:          "TODO_MARKER",
			Name:        "TODO marker",
			Family:      FamilyScanner,
			Type:        TypeTodo,
			Priority:    PriorityMedium,
			Confidence:  0.9,
			Description: "The code contains a TODO, HACK or XXX marker.",
			Pattern:     compile(`(?i)\b(todo|hack|xxx)\b`),
		},
		{
			ID:          "FIXME_MARKER",
			Name:        "FIXME marker",
			Family:      FamilyScanner,
			Type:        TypeFixme,
			Priority:    PriorityHigh,
			Confidence:  0.9,
			Description: "The code contains a FIXME marker.",
			Pattern:     compile(`(?i)\bfixme\b`),
		},
		{
			ID:          "BLOCKING_CALL",
			Name:        "Blocking call",
			Family:      FamilyScanner,
			Type:        TypeOptimize,
			Priority:    PriorityHigh,
			Confidence:  0.7,
			Description: "A sleep or wait call may stall the calling thread.",
			Pattern:     compile(`(?i)\b(sleep|thread\.sleep|wait)\s*\(`),
		},
		{
			ID:          "HARDCODED_SECRET",
			Name:        "Hardcoded secret",
			Family:      FamilyScanner,
			Type:        TypeSecurity,
			Priority:    PriorityCritical,
			Confidence:  0.8,
			Description: "A credential-like value is assigned inline; load it from configuration instead.",
			Pattern:     compile(`(?i)\b(password|pwd|secret|key)\s*=\s*["'][^"']*["']`),
		},
		{
			ID:          "DEPRECATED_MARKER",
			Name:        "Deprecated code",
			Family:      FamilyScanner,
			Type:        TypeDeprecated,
			Priority:    PriorityMedium,
			Confidence:  0.6,
			Description: "The code references a deprecated or obsolete API.",
			Pattern:     compile(`(?i)\b(deprecated|obsolete)\b`),
		},
		{
			ID:          "LONG_LINE",
			Name:        "Long line",
			Family:      FamilyScanner,
			Type:        TypeRefactor,
			Priority:    PriorityLow,
			Confidence:  0.6,
			Description: "The line is longer than 120 characters; split it for readability.",
			Pattern:     compile(`^.{121,}`),
		},
		{
			ID:          "EMPTY_CATCH",
			Name:        "Empty exception handler",
			Family:      FamilyScanner,
			Type:        TypeCodeSmell,
			Priority:    PriorityMedium,
			Confidence:  0.8,
			Description: "An empty catch block can hide important errors.",
			Pattern:     compile(`^\s*\}\s*catch\s*$|catch.*\{\}`),
		},
		{
			ID:          "HARDCODED_STRING",
			Name:        "Hardcoded string",
			Family:      FamilyScanner,
			Type:        TypeBestPractice,
			Priority:    PriorityLow,
			Confidence:  0.4,
			Description: "Consider extracting the long string literal into a constant.",
			Pattern:     compile(`^(?>\s*)(?!//|/\*|\*).*"[^"]{10,}"`),
		},
		{
			ID:          "INSECURE_RANDOM",
			Name:        "Insecure random",
			Family:      FamilyScanner,
			Type:        TypeSecurity,
			Priority:    PriorityMedium,
			Confidence:  0.6,
			Description: "Use a cryptographically secure random source for security-sensitive values.",
			Pattern:     compile(`new\s+Random\s*\(\s*\)`),
		},
		{
			ID:          "UNSAFE_DESERIALIZATION",
			Name:        "Unsafe deserialization",
			Family:      FamilyScanner,
			Type:        TypeSecurity,
			Priority:    PriorityHigh,
			Confidence:  0.8,
			Description: "Deserializing untrusted data can lead to code execution.",
			Pattern:     compile(`ObjectInputStream|readObject`),
		},
		{
			ID:          "UNCLOSED_RESOURCE",
			Name:        "Unclosed resource",
			Family:      FamilyScanner,
			Type:        TypeOptimize,
			Priority:    PriorityMedium,
			Confidence:  0.8,
			Description: "Open streams with try-with-resources (or defer Close) so they are always released.",
			Pattern:     compile(`new\s+(FileInputStream|FileOutputStream|BufferedReader)\b`),
		},
	}
}
