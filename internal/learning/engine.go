package learning

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/blackwell-systems/codehint/internal/suggest"
)

type profileState struct {
	profile *Profile
	log     []Feedback
	judged  map[string]bool

	// flushed is the number of log entries already persisted.
	flushed int
	// wiped is set by Reset so the next Save drops the persisted history.
	wiped bool
}

func newProfileState(p *Profile) *profileState {
	return &profileState{profile: p, judged: make(map[string]bool)}
}

// Engine holds named preference profiles and applies the active one to
// suggestion lists. All methods are safe for concurrent use; each feedback
// event is applied atomically.
type Engine struct {
	mu       sync.Mutex
	profiles map[string]*profileState
	active   string

	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithRepository sets where Save and Load persist profiles.
func WithRepository(r Repository) Option {
	return func(e *Engine) { e.repo = r }
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine returns an engine whose active profile is "default".
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		profiles: make(map[string]*profileState),
		active:   DefaultProfileName,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.profiles[DefaultProfileName] = newProfileState(NewProfile(DefaultProfileName))
	return e
}

// ActiveProfile returns the name of the profile in use.
func (e *Engine) ActiveProfile() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// UseProfile switches the active profile, creating it with defaults when it
// does not exist yet.
func (e *Engine) UseProfile(name string) error {
	if err := ValidateProfileName(name); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.profiles[name]; !ok {
		e.profiles[name] = newProfileState(NewProfile(name))
	}
	e.active = name
	return nil
}

func (e *Engine) current() *profileState {
	return e.profiles[e.active]
}

// RecordFeedback applies one accept (applied) or dismiss event to the active
// profile. A suggestion with an ID can be judged only once.
func (e *Engine) RecordFeedback(s suggest.Suggestion, applied bool, reason string) error {
	if _, err := suggest.ParseType(string(s.Type)); err != nil {
		return err
	}
	if s.Priority < suggest.PriorityLow || s.Priority > suggest.PriorityCritical {
		return fmt.Errorf("%w: %d", suggest.ErrUnknownPriority, s.Priority)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.current()
	if s.ID != "" && st.judged[s.ID] {
		return fmt.Errorf("%w: %s", ErrAlreadyJudged, s.ID)
	}

	now := e.now()
	st.profile.applyFeedback(s, applied)
	st.profile.UpdatedAt = now
	st.log = append(st.log, Feedback{
		SuggestionID:       s.ID,
		Type:               s.Type,
		Priority:           s.Priority,
		Applied:            applied,
		Reason:             reason,
		OriginalConfidence: suggest.ClampConfidence(s.Confidence),
		Timestamp:          now,
	})
	if s.ID != "" {
		st.judged[s.ID] = true
	}
	return nil
}

// IsJudged reports whether feedback was already recorded for id.
func (e *Engine) IsJudged(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current().judged[id]
}

// Optimize drops disabled types and suggestions below the confidence
// threshold, sets AdjustedScore on the survivors and returns them sorted by
// it, highest first. The input is not modified; with no feedback in between,
// repeated calls return identical lists.
func (e *Engine) Optimize(raw []suggest.Suggestion) []suggest.Suggestion {
	e.mu.Lock()
	p := e.current().profile.Clone()
	e.mu.Unlock()

	out := make([]suggest.Suggestion, 0, len(raw))
	for _, s := range raw {
		if p.IsDisabled(s.Type) {
			continue
		}
		s.Confidence = suggest.ClampConfidence(s.Confidence)
		if s.Confidence < p.ConfidenceThreshold {
			continue
		}
		s.AdjustedScore = p.AdjustedScore(s)
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AdjustedScore > out[j].AdjustedScore
	})
	return out
}

// Profile returns a copy of the named profile.
func (e *Engine) Profile(name string) (*Profile, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.profiles[name]
	if !ok {
		return nil, false
	}
	return st.profile.Clone(), true
}

// Active returns a copy of the active profile.
func (e *Engine) Active() *Profile {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current().profile.Clone()
}

// Feedback returns a copy of the active profile's feedback log.
func (e *Engine) Feedback() []Feedback {
	e.mu.Lock()
	defer e.mu.Unlock()
	log := e.current().log
	out := make([]Feedback, len(log))
	copy(out, log)
	return out
}

// Stats summarizes the active profile.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.current()
	p := st.profile
	s := Stats{
		Profile:              p.Name,
		TotalSuggestions:     p.TotalSuggestions,
		AppliedSuggestions:   p.AppliedSuggestions,
		DismissedSuggestions: p.DismissedSuggestions,
		AcceptanceRate:       p.AcceptanceRate(),
		ConfidenceThreshold:  p.ConfidenceThreshold,
		TypeWeights:          make(map[suggest.SuggestionType]float64, len(suggest.AllTypes)),
		PriorityWeights:      make(map[string]float64, len(suggest.AllPriorities)),
		DisabledTypes:        []suggest.SuggestionType{},
		FeedbackEvents:       len(st.log),
	}
	for _, t := range suggest.AllTypes {
		s.TypeWeights[t] = p.TypeWeight(t)
		if p.IsDisabled(t) {
			s.DisabledTypes = append(s.DisabledTypes, t)
		}
	}
	for _, pr := range suggest.AllPriorities {
		s.PriorityWeights[pr.String()] = p.PriorityWeight(pr)
	}
	return s
}

// Reset restores the active profile to defaults and clears its feedback
// log. The persisted history is dropped on the next Save.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	name := e.active
	st := newProfileState(NewProfile(name))
	st.profile.UpdatedAt = e.now()
	st.wiped = true
	e.profiles[name] = st
}

// DisableType stops suggestions of type t from surviving Optimize.
func (e *Engine) DisableType(t suggest.SuggestionType) error {
	return e.setDisabled(t, true)
}

// EnableType re-enables a disabled type.
func (e *Engine) EnableType(t suggest.SuggestionType) error {
	return e.setDisabled(t, false)
}

func (e *Engine) setDisabled(t suggest.SuggestionType, off bool) error {
	if _, err := suggest.ParseType(string(t)); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.current().profile
	if off {
		p.DisabledTypes[t] = true
	} else {
		delete(p.DisabledTypes, t)
	}
	p.UpdatedAt = e.now()
	return nil
}

// SetConfidenceThreshold sets the threshold directly, clamped to [0,1].
// Adaptive updates later keep it within [0.1,0.9].
func (e *Engine) SetConfidenceThreshold(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidThreshold, v)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.current().profile
	p.ConfidenceThreshold = clamp(v, 0, 1)
	p.UpdatedAt = e.now()
	return nil
}

// Load replaces the active profile with its persisted record and feedback.
// A missing record yields defaults; an unreadable or corrupt one is logged
// and also yields defaults, so a bad file never blocks startup.
func (e *Engine) Load(ctx context.Context) error {
	if e.repo == nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	name := e.active
	profile := NewProfile(name)

	rec, err := e.repo.LoadProfile(ctx, name)
	switch {
	case err == nil:
		p, perr := ProfileFromRecord(rec)
		if perr != nil {
			e.logger.Warn("discarding corrupt profile", zap.String("profile", name), zap.Error(perr))
		} else {
			profile = p
		}
	case errors.Is(err, ErrProfileNotFound):
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		e.logger.Warn("loading profile failed, using defaults", zap.String("profile", name), zap.Error(err))
	}

	log, err := e.repo.ListFeedback(ctx, name)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.logger.Warn("loading feedback failed", zap.String("profile", name), zap.Error(err))
		log = nil
	}

	st := newProfileState(profile)
	st.log = log
	st.flushed = len(log)
	for _, f := range log {
		if f.SuggestionID != "" {
			st.judged[f.SuggestionID] = true
		}
	}
	e.profiles[name] = st

	e.logger.Debug("profile loaded",
		zap.String("profile", name),
		zap.Int("feedback_events", len(log)),
		zap.Float64("threshold", profile.ConfidenceThreshold),
	)
	return nil
}

// Save persists every profile and any feedback not yet written.
func (e *Engine) Save(ctx context.Context) error {
	if e.repo == nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	names := make([]string, 0, len(e.profiles))
	for name := range e.profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		st := e.profiles[name]
		if st.wiped {
			if err := e.repo.DeleteProfile(ctx, name); err != nil {
				return fmt.Errorf("resetting profile %s: %w", name, err)
			}
			st.wiped = false
		}
		if err := e.repo.SaveProfile(ctx, st.profile.Record()); err != nil {
			return fmt.Errorf("saving profile %s: %w", name, err)
		}
		if pending := st.log[st.flushed:]; len(pending) > 0 {
			if err := e.repo.AppendFeedback(ctx, name, pending); err != nil {
				return fmt.Errorf("saving feedback for %s: %w", name, err)
			}
			st.flushed = len(st.log)
		}
	}
	return nil
}
