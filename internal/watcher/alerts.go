package watcher

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/blackwell-systems/codehint/internal/suggest"
)

// Alert is a notable change in a file's suggestions.
type Alert struct {
	Level   string // "info", "warning", "critical"
	Title   string
	Message string
	File    string
	Time    time.Time
}

// Alerter turns newly appearing high-severity suggestions into alerts. It
// satisfies the service listener interface, so it can be registered directly
// on the suggestion service.
//
// Findings are keyed by rule and snippet rather than line, so an edit that
// only shifts a finding up or down does not alert again.
type Alerter struct {
	emit        func(Alert)
	minPriority suggest.Priority
	now         func() time.Time

	mu       sync.Mutex
	previous map[string]map[string]bool
}

// NewAlerter creates an alerter that reports suggestions at or above
// minPriority through emit.
func NewAlerter(emit func(Alert), minPriority suggest.Priority) *Alerter {
	if minPriority < suggest.PriorityLow {
		minPriority = suggest.PriorityHigh
	}
	return &Alerter{
		emit:        emit,
		minPriority: minPriority,
		now:         time.Now,
		previous:    make(map[string]map[string]bool),
	}
}

// SuggestionsUpdated compares the new list with the previous one for path
// and emits an alert per new finding.
func (a *Alerter) SuggestionsUpdated(path string, suggestions []suggest.Suggestion) {
	a.mu.Lock()
	prev, seen := a.previous[path]
	curr := alertKeys(suggestions, a.minPriority)
	a.previous[path] = curr
	a.mu.Unlock()

	alerts := Compare(path, prev, seen, suggestions, a.minPriority, a.now())
	if a.emit == nil {
		return
	}
	for _, al := range alerts {
		a.emit(al)
	}
}

// SuggestionApplied is a no-op; applied suggestions drop out on the next
// pass.
func (a *Alerter) SuggestionApplied(suggest.Suggestion) {}

// Forget drops the remembered findings for path.
func (a *Alerter) Forget(path string) {
	a.mu.Lock()
	delete(a.previous, path)
	a.mu.Unlock()
}

// Compare returns alerts for findings in curr that were not in prev. The
// first pass over a file (seen false) reports everything. When a file that
// had findings comes back clean, a single info alert is returned.
func Compare(path string, prev map[string]bool, seen bool, curr []suggest.Suggestion, minPriority suggest.Priority, now time.Time) []Alert {
	var alerts []Alert
	name := filepath.Base(path)

	reported := make(map[string]bool)
	for _, s := range curr {
		if s.Applied || s.Priority < minPriority {
			continue
		}
		key := alertKey(s)
		if prev[key] || reported[key] {
			continue
		}
		reported[key] = true
		alerts = append(alerts, Alert{
			Level:   alertLevel(s.Priority),
			Title:   fmt.Sprintf("%s: %s", name, s.Title),
			Message: fmt.Sprintf("line %d: %s", s.StartLine+1, s.Description),
			File:    path,
			Time:    now,
		})
	}

	if seen && len(prev) > 0 && len(alertKeys(curr, minPriority)) == 0 {
		alerts = append(alerts, Alert{
			Level:   "info",
			Title:   fmt.Sprintf("%s: findings resolved", name),
			Message: fmt.Sprintf("%d high-severity finding(s) no longer reported", len(prev)),
			File:    path,
			Time:    now,
		})
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		return levelRank(alerts[i].Level) > levelRank(alerts[j].Level)
	})
	return alerts
}

func alertKeys(list []suggest.Suggestion, minPriority suggest.Priority) map[string]bool {
	keys := make(map[string]bool)
	for _, s := range list {
		if !s.Applied && s.Priority >= minPriority {
			keys[alertKey(s)] = true
		}
	}
	return keys
}

func alertKey(s suggest.Suggestion) string {
	return s.RuleID + ":" + string(s.Type) + ":" + s.CodeSnippet
}

func alertLevel(p suggest.Priority) string {
	switch {
	case p >= suggest.PriorityCritical:
		return "critical"
	case p >= suggest.PriorityHigh:
		return "warning"
	default:
		return "info"
	}
}

func levelRank(level string) int {
	switch level {
	case "critical":
		return 2
	case "warning":
		return 1
	}
	return 0
}
