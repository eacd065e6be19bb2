package suggest

import (
	"errors"
	"strings"
	"testing"
)

func hasRule(suggestions []Suggestion, id string) bool {
	for _, s := range suggestions {
		if s.RuleID == id {
			return true
		}
	}
	return false
}

func mustCatalog(t *testing.T, rules ...Rule) *Catalog {
	t.Helper()
	c, err := NewCatalog(rules...)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	return c
}

// --- Analyze ---

func TestAnalyze_EmptyContent(t *testing.T) {
	a := NewAnalyzer(nil)
	for _, content := range []string{"", "   ", "\n\n\t\n"} {
		if got := a.Analyze("Empty.java", content); got != nil {
			t.Errorf("Analyze(%q) = %v, want nil", content, got)
		}
	}
}

func TestAnalyze_HardcodedPassword(t *testing.T) {
	a := NewAnalyzer(nil)
	got := a.Analyze("Config.java", `password = "hunter2"`)

	var found bool
	for _, s := range got {
		if s.RuleID == "HARDCODED_SECRET" {
			found = true
			if s.Type != TypeSecurity {
				t.Errorf("type = %s, want SECURITY", s.Type)
			}
			if s.StartLine != 0 || s.EndLine != 0 {
				t.Errorf("lines = %d-%d, want 0-0", s.StartLine, s.EndLine)
			}
			if s.FilePath != "Config.java" {
				t.Errorf("file = %q", s.FilePath)
			}
		}
	}
	if !found {
		t.Fatalf("expected HARDCODED_SECRET, got %v", got)
	}
}

func TestAnalyze_FinalConstantIsNotMagic(t *testing.T) {
	a := NewAnalyzer(nil)
	got := a.Analyze("Limits.java", "final int MAX = 60;")
	if hasRule(got, "MAGIC_NUMBER") {
		t.Fatal("final constant must not produce MAGIC_NUMBER")
	}
}

func TestAnalyze_LineNumbersAreZeroBased(t *testing.T) {
	a := NewAnalyzer(nil)
	content := "int a = 1;\r\nint b = 2;\r\n// TODO: wire retries\r\n"
	got := a.Analyze("Retry.java", content)
	for _, s := range got {
		if s.RuleID == "TODO_MARKER" {
			if s.StartLine != 2 {
				t.Errorf("StartLine = %d, want 2", s.StartLine)
			}
			if strings.Contains(s.CodeSnippet, "\r") {
				t.Error("snippet should not carry a carriage return")
			}
			return
		}
	}
	t.Fatal("expected TODO_MARKER")
}

func TestAnalyze_OptOutLinesAreSkipped(t *testing.T) {
	a := NewAnalyzer(nil)
	got := a.Analyze("Config.java", `password = "hunter2" // codehint:ignore`)
	if hasRule(got, "HARDCODED_SECRET") {
		t.Fatal("opted-out line must not produce suggestions")
	}
}

func TestAnalyze_PanickingRuleIsIsolated(t *testing.T) {
	c := mustCatalog(t,
		Rule{ID: "BOOM", Type: TypeTodo, Priority: PriorityLow, Confidence: 0.5,
			Match: func(string) (bool, error) { panic("boom") }},
		Rule{ID: "FAILS", Type: TypeTodo, Priority: PriorityLow, Confidence: 0.5,
			Match: func(string) (bool, error) { return false, errors.New("broken") }},
		Rule{ID: "ALWAYS", Type: TypeTodo, Priority: PriorityLow, Confidence: 0.5,
			Match: func(string) (bool, error) { return true, nil }},
	)
	a := NewAnalyzer(c)

	got := a.Analyze("x.go", "a\nb\nc")
	count := 0
	for _, s := range got {
		switch s.RuleID {
		case "BOOM", "FAILS":
			t.Errorf("failing rule %s produced a suggestion", s.RuleID)
		case "ALWAYS":
			count++
		}
	}
	if count != 3 {
		t.Errorf("ALWAYS fired %d times, want 3", count)
	}
}

func TestAnalyze_ConfidenceInRange(t *testing.T) {
	a := NewAnalyzer(nil)
	content := strings.Join([]string{
		`password = "hunter2"`,
		"int timeout = 42;",
		"// TODO: remove",
		`q = "SELECT * FROM t WHERE id = " + id;`,
		"Random r = new Random();",
	}, "\n")
	got := a.Analyze("Mixed.java", content)
	if len(got) == 0 {
		t.Fatal("expected suggestions")
	}
	for _, s := range got {
		if s.Confidence < 0 || s.Confidence > 1 {
			t.Errorf("%s confidence %.2f out of range", s.RuleID, s.Confidence)
		}
	}
}

func TestAnalyze_LargeFile(t *testing.T) {
	a := NewAnalyzer(mustCatalog(t))
	content := strings.Repeat("a\n", 500) + "a"

	got := a.Analyze("Big.java", content)
	if !hasRule(got, "LARGE_FILE") {
		t.Fatal("expected LARGE_FILE for 501 lines")
	}

	small := strings.Repeat("a\n", 499) + "a"
	if hasRule(a.Analyze("Small.java", small), "LARGE_FILE") {
		t.Fatal("500 lines must not be LARGE_FILE")
	}
}

func TestAnalyze_CommentDensity(t *testing.T) {
	a := NewAnalyzer(mustCatalog(t))
	code := strings.Repeat("x++;\n", 60)

	if !hasRule(a.Analyze("Sparse.java", code), "LOW_COMMENT_DENSITY") {
		t.Fatal("expected LOW_COMMENT_DENSITY with no comments")
	}

	documented := code + strings.Repeat("// explains x\n", 10)
	if hasRule(a.Analyze("Dense.java", documented), "LOW_COMMENT_DENSITY") {
		t.Fatal("10 comment lines per 60 code lines is enough")
	}

	short := strings.Repeat("x++;\n", 20)
	if hasRule(a.Analyze("Short.java", short), "LOW_COMMENT_DENSITY") {
		t.Fatal("short files are exempt")
	}
}

type fakeDetector struct {
	findings []SecretFinding
	err      error
}

func (f fakeDetector) Detect(string) ([]SecretFinding, error) { return f.findings, f.err }

func TestAnalyze_SecretDetector(t *testing.T) {
	det := fakeDetector{findings: []SecretFinding{
		{RuleID: "aws-access-token", Description: "AWS access key", Line: 2},
		{RuleID: "generic-api-key", Description: "API key", Line: 3},
	}}
	a := NewAnalyzer(mustCatalog(t), WithSecretDetector(det))

	content := "package main\nconst k = \"AKIA...\"\nconst j = \"x\" // codehint:ignore"
	got := a.Analyze("main.go", content)

	if !hasRule(got, "CREDENTIAL_aws-access-token") {
		t.Fatalf("expected credential suggestion, got %v", got)
	}
	if hasRule(got, "CREDENTIAL_generic-api-key") {
		t.Fatal("finding on an opted-out line must be dropped")
	}
	for _, s := range got {
		if s.RuleID == "CREDENTIAL_aws-access-token" {
			if s.StartLine != 1 {
				t.Errorf("StartLine = %d, want 1", s.StartLine)
			}
			if s.Priority != PriorityCritical {
				t.Errorf("priority = %s, want CRITICAL", s.Priority)
			}
		}
	}
}

func TestAnalyze_SecretDetectorErrorIsTolerated(t *testing.T) {
	a := NewAnalyzer(nil, WithSecretDetector(fakeDetector{err: errors.New("scan failed")}))
	got := a.Analyze("Config.java", `password = "hunter2"`)
	if !hasRule(got, "HARDCODED_SECRET") {
		t.Fatal("line rules must still run when the secret pass fails")
	}
}
