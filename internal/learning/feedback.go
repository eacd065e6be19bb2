package learning

import (
	"time"

	"github.com/blackwell-systems/codehint/internal/suggest"
)

// Feedback is one accept or dismiss event. The log is append-only; only a
// full profile reset clears it.
type Feedback struct {
	SuggestionID       string                 `yaml:"suggestion_id" json:"suggestionId"`
	Type               suggest.SuggestionType `yaml:"type" json:"type"`
	Priority           suggest.Priority       `yaml:"priority" json:"priority"`
	Applied            bool                   `yaml:"applied" json:"applied"`
	Reason             string                 `yaml:"reason,omitempty" json:"reason,omitempty"`
	OriginalConfidence float64                `yaml:"original_confidence" json:"originalConfidence"`
	Timestamp          time.Time              `yaml:"timestamp" json:"timestamp"`
}

// Stats summarizes the active profile.
type Stats struct {
	Profile              string                             `json:"profile"`
	TotalSuggestions     int                                `json:"total_suggestions"`
	AppliedSuggestions   int                                `json:"applied_suggestions"`
	DismissedSuggestions int                                `json:"dismissed_suggestions"`
	AcceptanceRate       float64                            `json:"acceptance_rate"`
	ConfidenceThreshold  float64                            `json:"confidence_threshold"`
	TypeWeights          map[suggest.SuggestionType]float64 `json:"type_weights"`
	PriorityWeights      map[string]float64                 `json:"priority_weights"`
	DisabledTypes        []suggest.SuggestionType           `json:"disabled_types"`
	FeedbackEvents       int                                `json:"feedback_events"`
}
