// Package learning turns accept/dismiss feedback into per-type and
// per-priority weights and a confidence threshold, and uses them to filter
// and re-rank suggestions.
package learning

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"time"

	"github.com/blackwell-systems/codehint/internal/suggest"
)

// DefaultProfileName is the profile used when none is configured.
const DefaultProfileName = "default"

// Weight and threshold bounds.
const (
	DefaultWeight     = 1.0
	MinTypeWeight     = 0.1
	MaxTypeWeight     = 2.0
	MinPriorityWeight = 0.1
	MaxPriorityWeight = 3.0

	DefaultConfidenceThreshold = 0.5
	MinAdaptiveThreshold       = 0.1
	MaxAdaptiveThreshold       = 0.9

	appliedDelta   = 0.1
	dismissedDelta = -0.05
	thresholdStep  = 0.02
)

var (
	// ErrAlreadyJudged is returned when feedback arrives for a suggestion
	// that was already applied or dismissed.
	ErrAlreadyJudged = errors.New("suggestion already judged")

	// ErrProfileNotFound is returned by repositories when no record exists
	// under the requested name.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrInvalidProfileName is returned for names that cannot be used as a
	// storage key.
	ErrInvalidProfileName = errors.New("invalid profile name")

	// ErrCorruptRecord is returned when a persisted record cannot be turned
	// back into a usable profile.
	ErrCorruptRecord = errors.New("corrupt profile record")

	// ErrInvalidThreshold is returned for a non-finite threshold.
	ErrInvalidThreshold = errors.New("invalid confidence threshold")
)

var profileNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)

// ValidateProfileName reports whether name can key a profile.
func ValidateProfileName(name string) error {
	if !profileNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidProfileName, name)
	}
	return nil
}

// Profile is the learned weight vector and confidence threshold for one
// installation.
type Profile struct {
	Name                 string
	TypeWeights          map[suggest.SuggestionType]float64
	PriorityWeights      map[suggest.Priority]float64
	ConfidenceThreshold  float64
	DisabledTypes        map[suggest.SuggestionType]bool
	TotalSuggestions     int
	AppliedSuggestions   int
	DismissedSuggestions int
	UpdatedAt            time.Time
}

// NewProfile returns a profile with every weight at 1.0, threshold 0.5 and
// nothing disabled.
func NewProfile(name string) *Profile {
	p := &Profile{
		Name:                name,
		TypeWeights:         make(map[suggest.SuggestionType]float64, len(suggest.AllTypes)),
		PriorityWeights:     make(map[suggest.Priority]float64, len(suggest.AllPriorities)),
		ConfidenceThreshold: DefaultConfidenceThreshold,
		DisabledTypes:       make(map[suggest.SuggestionType]bool),
	}
	for _, t := range suggest.AllTypes {
		p.TypeWeights[t] = DefaultWeight
	}
	for _, pr := range suggest.AllPriorities {
		p.PriorityWeights[pr] = DefaultWeight
	}
	return p
}

// Clone returns a deep copy.
func (p *Profile) Clone() *Profile {
	c := *p
	c.TypeWeights = make(map[suggest.SuggestionType]float64, len(p.TypeWeights))
	for k, v := range p.TypeWeights {
		c.TypeWeights[k] = v
	}
	c.PriorityWeights = make(map[suggest.Priority]float64, len(p.PriorityWeights))
	for k, v := range p.PriorityWeights {
		c.PriorityWeights[k] = v
	}
	c.DisabledTypes = make(map[suggest.SuggestionType]bool, len(p.DisabledTypes))
	for k, v := range p.DisabledTypes {
		if v {
			c.DisabledTypes[k] = true
		}
	}
	return &c
}

// TypeWeight returns the weight for t, defaulting to 1.0.
func (p *Profile) TypeWeight(t suggest.SuggestionType) float64 {
	if w, ok := p.TypeWeights[t]; ok {
		return w
	}
	return DefaultWeight
}

// PriorityWeight returns the weight for pr, defaulting to 1.0.
func (p *Profile) PriorityWeight(pr suggest.Priority) float64 {
	if w, ok := p.PriorityWeights[pr]; ok {
		return w
	}
	return DefaultWeight
}

// IsDisabled reports whether suggestions of type t are filtered out.
func (p *Profile) IsDisabled(t suggest.SuggestionType) bool {
	return p.DisabledTypes[t]
}

// AcceptanceRate is applied / total, or 0 with no feedback.
func (p *Profile) AcceptanceRate() float64 {
	if p.TotalSuggestions == 0 {
		return 0
	}
	return float64(p.AppliedSuggestions) / float64(p.TotalSuggestions)
}

// AdjustedScore is confidence scaled by the learned type and priority
// weights.
func (p *Profile) AdjustedScore(s suggest.Suggestion) float64 {
	return suggest.ClampConfidence(s.Confidence) * p.TypeWeight(s.Type) * p.PriorityWeight(s.Priority)
}

// applyFeedback performs one hill-climbing step.
func (p *Profile) applyFeedback(s suggest.Suggestion, applied bool) {
	p.TotalSuggestions++
	delta := dismissedDelta
	if applied {
		p.AppliedSuggestions++
		delta = appliedDelta
	} else {
		p.DismissedSuggestions++
	}

	p.TypeWeights[s.Type] = clamp(p.TypeWeight(s.Type)+delta, MinTypeWeight, MaxTypeWeight)
	p.PriorityWeights[s.Priority] = clamp(p.PriorityWeight(s.Priority)+delta, MinPriorityWeight, MaxPriorityWeight)

	conf := suggest.ClampConfidence(s.Confidence)
	switch {
	case !applied && conf > p.ConfidenceThreshold:
		p.ConfidenceThreshold = math.Min(MaxAdaptiveThreshold, p.ConfidenceThreshold+thresholdStep)
	case applied && conf < p.ConfidenceThreshold:
		p.ConfidenceThreshold = math.Max(MinAdaptiveThreshold, p.ConfidenceThreshold-thresholdStep)
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// Record is the persisted form of a profile, keyed by Name.
type Record struct {
	Name                 string             `yaml:"name" json:"name"`
	TypeWeights          map[string]float64 `yaml:"type_weights" json:"typeWeights"`
	PriorityWeights      map[string]float64 `yaml:"priority_weights" json:"priorityWeights"`
	ConfidenceThreshold  *float64           `yaml:"confidence_threshold,omitempty" json:"confidenceThreshold,omitempty"`
	DisabledTypes        []string           `yaml:"disabled_types" json:"disabledTypes"`
	TotalSuggestions     int                `yaml:"total_suggestions" json:"totalSuggestions"`
	AppliedSuggestions   int                `yaml:"applied_suggestions" json:"appliedSuggestions"`
	DismissedSuggestions int                `yaml:"dismissed_suggestions" json:"dismissedSuggestions"`
	UpdatedAt            time.Time          `yaml:"updated_at" json:"updatedAt"`
}

// Record converts the profile into its persisted form. Disabled types are
// sorted so equal profiles produce equal records.
func (p *Profile) Record() Record {
	threshold := p.ConfidenceThreshold
	r := Record{
		Name:                 p.Name,
		TypeWeights:          make(map[string]float64, len(p.TypeWeights)),
		PriorityWeights:      make(map[string]float64, len(p.PriorityWeights)),
		ConfidenceThreshold:  &threshold,
		DisabledTypes:        []string{},
		TotalSuggestions:     p.TotalSuggestions,
		AppliedSuggestions:   p.AppliedSuggestions,
		DismissedSuggestions: p.DismissedSuggestions,
		UpdatedAt:            p.UpdatedAt,
	}
	for t, w := range p.TypeWeights {
		r.TypeWeights[string(t)] = w
	}
	for pr, w := range p.PriorityWeights {
		r.PriorityWeights[pr.String()] = w
	}
	for t, off := range p.DisabledTypes {
		if off {
			r.DisabledTypes = append(r.DisabledTypes, string(t))
		}
	}
	sort.Strings(r.DisabledTypes)
	return r
}

// ProfileFromRecord rebuilds a profile. Unknown keys, non-finite or
// out-of-range values and negative counters make the record corrupt.
// Weights and a threshold missing from the record take their default.
func ProfileFromRecord(r Record) (*Profile, error) {
	if err := ValidateProfileName(r.Name); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptRecord, err)
	}
	p := NewProfile(r.Name)

	for name, w := range r.TypeWeights {
		t, err := suggest.ParseType(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptRecord, err)
		}
		if !inRange(w, MinTypeWeight, MaxTypeWeight) {
			return nil, fmt.Errorf("%w: type weight %s=%v", ErrCorruptRecord, name, w)
		}
		p.TypeWeights[t] = w
	}
	for name, w := range r.PriorityWeights {
		pr, err := suggest.ParsePriority(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptRecord, err)
		}
		if !inRange(w, MinPriorityWeight, MaxPriorityWeight) {
			return nil, fmt.Errorf("%w: priority weight %s=%v", ErrCorruptRecord, name, w)
		}
		p.PriorityWeights[pr] = w
	}
	if r.ConfidenceThreshold != nil {
		if !inRange(*r.ConfidenceThreshold, 0, 1) {
			return nil, fmt.Errorf("%w: threshold %v", ErrCorruptRecord, *r.ConfidenceThreshold)
		}
		p.ConfidenceThreshold = *r.ConfidenceThreshold
	}

	for _, name := range r.DisabledTypes {
		t, err := suggest.ParseType(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptRecord, err)
		}
		p.DisabledTypes[t] = true
	}

	if r.TotalSuggestions < 0 || r.AppliedSuggestions < 0 || r.DismissedSuggestions < 0 {
		return nil, fmt.Errorf("%w: negative counter", ErrCorruptRecord)
	}
	p.TotalSuggestions = r.TotalSuggestions
	p.AppliedSuggestions = r.AppliedSuggestions
	p.DismissedSuggestions = r.DismissedSuggestions
	p.UpdatedAt = r.UpdatedAt
	return p, nil
}

// Threshold returns the recorded confidence threshold, or the default when
// the record has none.
func (r Record) Threshold() float64 {
	if r.ConfidenceThreshold == nil {
		return DefaultConfidenceThreshold
	}
	return *r.ConfidenceThreshold
}

func inRange(v, lo, hi float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= lo && v <= hi
}
