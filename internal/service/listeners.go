package service

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/blackwell-systems/codehint/internal/suggest"
)

// Listener is notified synchronously on the goroutine that completed the
// pass or recorded the feedback. A panicking listener is recovered and
// skipped; the others still run.
type Listener interface {
	SuggestionsUpdated(path string, suggestions []suggest.Suggestion)
	SuggestionApplied(s suggest.Suggestion)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are ignored.
type ListenerFuncs struct {
	Updated func(path string, suggestions []suggest.Suggestion)
	Applied func(s suggest.Suggestion)
}

func (f ListenerFuncs) SuggestionsUpdated(path string, suggestions []suggest.Suggestion) {
	if f.Updated != nil {
		f.Updated(path, suggestions)
	}
}

func (f ListenerFuncs) SuggestionApplied(s suggest.Suggestion) {
	if f.Applied != nil {
		f.Applied(s)
	}
}

// AddListener registers l and returns a function that removes it.
func (s *Service) AddListener(l Listener) (remove func()) {
	s.lmu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.lmu.Unlock()

	return func() {
		s.lmu.Lock()
		delete(s.listeners, id)
		s.lmu.Unlock()
	}
}

func (s *Service) snapshotListeners() []Listener {
	s.lmu.RLock()
	defer s.lmu.RUnlock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids) // registration order
	out := make([]Listener, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.listeners[id])
	}
	return out
}

func (s *Service) notifyUpdated(path string, suggestions []suggest.Suggestion) {
	for _, l := range s.snapshotListeners() {
		// Each listener gets its own copy so one cannot corrupt another's view.
		s.safely("updated", func() { l.SuggestionsUpdated(path, clone(suggestions)) })
	}
}

func (s *Service) notifyApplied(sg suggest.Suggestion) {
	for _, l := range s.snapshotListeners() {
		s.safely("applied", func() { l.SuggestionApplied(sg) })
	}
}

func (s *Service) safely(event string, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			s.metrics.ObserveListenerPanic()
			s.logger.Warn("listener panicked",
				zap.String("event", event),
				zap.String("panic", fmt.Sprint(p)),
			)
		}
	}()
	fn()
}
