package service

import (
	"github.com/blackwell-systems/codehint/internal/learning"
	"github.com/blackwell-systems/codehint/internal/suggest"
)

// Suggestions returns the cached list for path in ranked order.
func (s *Service) Suggestions(path string) []suggest.Suggestion {
	return s.filter(path, func(suggest.Suggestion) bool { return true })
}

// SuggestionsAtLine returns the suggestions whose range covers line
// (0-based, inclusive).
func (s *Service) SuggestionsAtLine(path string, line int) []suggest.Suggestion {
	return s.filter(path, func(sg suggest.Suggestion) bool { return sg.CoversLine(line) })
}

// HighPriority returns unapplied HIGH and CRITICAL suggestions.
func (s *Service) HighPriority(path string) []suggest.Suggestion {
	return s.filter(path, func(sg suggest.Suggestion) bool {
		return !sg.Applied && sg.Priority.Level() >= suggest.PriorityHigh.Level()
	})
}

// ByType returns unapplied suggestions of type t.
func (s *Service) ByType(path string, t suggest.SuggestionType) []suggest.Suggestion {
	return s.filter(path, func(sg suggest.Suggestion) bool { return !sg.Applied && sg.Type == t })
}

// Unapplied returns suggestions not yet applied or dismissed.
func (s *Service) Unapplied(path string) []suggest.Suggestion {
	return s.filter(path, func(sg suggest.Suggestion) bool { return !sg.Applied })
}

func (s *Service) filter(path string, keep func(suggest.Suggestion) bool) []suggest.Suggestion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []suggest.Suggestion{}
	for _, sg := range s.cache[path] {
		if keep(sg) {
			out = append(out, sg)
		}
	}
	return out
}

// Statistics summarizes the cache and the active learning profile.
type Statistics struct {
	Files       int                            `json:"files"`
	Total       int                            `json:"total"`
	Applied     int                            `json:"applied"`
	AppliedRate float64                        `json:"applied_rate"`
	ByType      map[suggest.SuggestionType]int `json:"by_type"`
	ByPriority  map[string]int                 `json:"by_priority"`
	Learning    learning.Stats                 `json:"learning"`
}

// Statistics counts cached suggestions by type and priority.
func (s *Service) Statistics() Statistics {
	st := Statistics{
		ByType:     make(map[suggest.SuggestionType]int),
		ByPriority: make(map[string]int),
	}

	s.mu.RLock()
	st.Files = len(s.cache)
	for _, list := range s.cache {
		for _, sg := range list {
			st.Total++
			if sg.Applied {
				st.Applied++
			}
			st.ByType[sg.Type]++
			st.ByPriority[sg.Priority.String()]++
		}
	}
	s.mu.RUnlock()

	if st.Total > 0 {
		st.AppliedRate = float64(st.Applied) / float64(st.Total)
	}
	st.Learning = s.engine.Stats()
	return st
}
