package suggest

import (
	"fmt"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// secretConfidence is the confidence assigned to credential findings.
const secretConfidence = 0.85

// SecretFinding is one credential located in a file.
type SecretFinding struct {
	RuleID      string
	Description string
	Line        int // 1-based
}

// SecretDetector scans whole-file content for credentials.
type SecretDetector interface {
	Detect(content string) ([]SecretFinding, error)
}

// GitleaksDetector detects credentials with the gitleaks default rule set.
type GitleaksDetector struct {
	mu       sync.Mutex
	detector *detect.Detector
}

// NewGitleaksDetector loads the gitleaks default configuration.
func NewGitleaksDetector() (*GitleaksDetector, error) {
	d, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("loading gitleaks config: %w", err)
	}
	return &GitleaksDetector{detector: d}, nil
}

// Detect runs the gitleaks rules over content.
func (g *GitleaksDetector) Detect(content string) ([]SecretFinding, error) {
	g.mu.Lock()
	findings := g.detector.DetectString(content)
	g.mu.Unlock()

	out := make([]SecretFinding, 0, len(findings))
	for _, f := range findings {
		out = append(out, SecretFinding{
			RuleID:      f.RuleID,
			Description: f.Description,
			Line:        f.StartLine,
		})
	}
	return out, nil
}

// secretSuggestions converts credential findings into suggestions. Findings
// on opted-out lines are dropped.
func (a *Analyzer) secretSuggestions(path, content string, lines []string) ([]Suggestion, error) {
	findings, err := a.secrets.Detect(content)
	if err != nil {
		return nil, err
	}

	var out []Suggestion
	for _, f := range findings {
		line := f.Line - 1
		if line < 0 {
			line = 0
		}
		if line >= len(lines) {
			line = len(lines) - 1
		}
		if IsOptOut(lines[line]) {
			continue
		}
		out = append(out, Suggestion{
			Type:        TypeSecurity,
			Priority:    PriorityCritical,
			RuleID:      "CREDENTIAL_" + f.RuleID,
			Title:       "Credential detected",
			Description: fmt.Sprintf("%s. Rotate it and load it from a secret store.", f.Description),
			Reason:      "secret scan: " + f.RuleID,
			FilePath:    path,
			StartLine:   line,
			EndLine:     line,
			Confidence:  secretConfidence,
		})
	}
	return out, nil
}
