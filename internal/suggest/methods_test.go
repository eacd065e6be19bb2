package suggest

import (
	"strings"
	"testing"
)

func TestFindMethods_Simple(t *testing.T) {
	lines := []string{
		"public void run() {",
		"    if (ready) {",
		"        go();",
		"    }",
		"}",
	}
	methods := FindMethods(lines)
	if len(methods) != 1 {
		t.Fatalf("got %d methods, want 1", len(methods))
	}
	m := methods[0]
	if m.Name != "run" {
		t.Errorf("Name = %q, want run", m.Name)
	}
	if m.StartLine != 0 || m.EndLine != 4 {
		t.Errorf("extent = %d-%d, want 0-4", m.StartLine, m.EndLine)
	}
	if m.LineCount != 5 {
		t.Errorf("LineCount = %d, want 5", m.LineCount)
	}
	if m.Complexity != 2 {
		t.Errorf("Complexity = %d, want 2", m.Complexity)
	}
}

func TestFindMethods_GoFunc(t *testing.T) {
	lines := []string{
		"func (s *Server) Run(ctx context.Context) error {",
		"\treturn nil",
		"}",
	}
	methods := FindMethods(lines)
	if len(methods) != 1 || methods[0].Name != "Run" {
		t.Fatalf("got %+v, want one method named Run", methods)
	}
}

func TestFindMethods_SkipsDeclarations(t *testing.T) {
	lines := []string{
		"public void run();",
		"public int size = compute();",
		"// public void commented() {",
	}
	if methods := FindMethods(lines); len(methods) != 0 {
		t.Fatalf("got %+v, want none", methods)
	}
}

func TestFindMethods_UnbalancedIsDropped(t *testing.T) {
	lines := []string{
		"public void broken() {",
		"    if (x) {",
	}
	if methods := FindMethods(lines); len(methods) != 0 {
		t.Fatalf("got %+v, want none for an unterminated block", methods)
	}
}

func TestMethodSuggestions_LongMethod(t *testing.T) {
	lines := []string{"public void process() {"}
	for i := 0; i < 55; i++ {
		lines = append(lines, "    step();")
	}
	lines = append(lines, "}")

	got := methodSuggestions("Worker.java", lines)
	if !hasRule(got, "LONG_METHOD") {
		t.Fatal("expected LONG_METHOD")
	}
	if hasRule(got, "HIGH_COMPLEXITY") {
		t.Fatal("straight-line method is not complex")
	}
}

func TestMethodSuggestions_HighComplexity(t *testing.T) {
	lines := []string{"private int decide(int x) {"}
	for i := 0; i < 11; i++ {
		lines = append(lines, "    if (x > 0) { x--; }")
	}
	lines = append(lines, "    return x;", "}")

	got := methodSuggestions("Decider.java", lines)
	if !hasRule(got, "HIGH_COMPLEXITY") {
		t.Fatal("expected HIGH_COMPLEXITY")
	}
	for _, s := range got {
		if s.RuleID == "HIGH_COMPLEXITY" && !strings.Contains(s.Description, "12") {
			t.Errorf("description should report complexity 12: %q", s.Description)
		}
	}
}
