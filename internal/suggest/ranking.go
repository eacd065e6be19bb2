package suggest

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// placeholderConfidence is deliberately low so the health-check entry sits
// below the default confidence threshold unless the user lowers it.
const placeholderConfidence = 0.3

// AggregateOptions controls the aggregation step.
type AggregateOptions struct {
	// Placeholder emits a single health-check suggestion when a file yields
	// no candidates. Off by default.
	Placeholder bool

	// Now and NewID are overridable for tests.
	Now   func() time.Time
	NewID func() string
}

// Aggregate stamps every candidate with a unique ID and creation time and
// returns them sorted by severity score, highest first. Ties keep detection
// order. The input slice is not modified.
func Aggregate(path string, candidates []Suggestion, opts AggregateOptions) []Suggestion {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	out := make([]Suggestion, 0, len(candidates))
	out = append(out, candidates...)

	if len(out) == 0 && opts.Placeholder {
		out = append(out, Suggestion{
			Type:        TypeDocumentation,
			Priority:    PriorityLow,
			RuleID:      "HEALTH_CHECK",
			Title:       "Analysis health check",
			Description: "No findings for this file; this entry confirms the analyzer ran.",
			Reason:      "placeholder",
			FilePath:    path,
			Confidence:  placeholderConfidence,
		})
	}

	created := now()
	for i := range out {
		out[i].ID = newID()
		out[i].CreatedAt = created
		out[i].Confidence = ClampConfidence(out[i].Confidence)
		out[i].AdjustedScore = 0
		if out[i].FilePath == "" {
			out[i].FilePath = path
		}
	}

	RankBySeverity(out)
	return out
}

// RankBySeverity stable-sorts suggestions by SeverityScore, highest first.
func RankBySeverity(suggestions []Suggestion) {
	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].SeverityScore() > suggestions[j].SeverityScore()
	})
}
