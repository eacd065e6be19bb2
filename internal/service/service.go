// Package service wires the analyzer, the aggregator and the learning
// engine into the per-file suggestion cache that commands and the MCP
// server query.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/blackwell-systems/codehint/internal/learning"
	"github.com/blackwell-systems/codehint/internal/metrics"
	"github.com/blackwell-systems/codehint/internal/store"
	"github.com/blackwell-systems/codehint/internal/suggest"
)

// ReasonDismissed is the feedback reason that marks a suggestion as
// rejected rather than applied.
const ReasonDismissed = "dismissed"

// ErrSuggestionNotFound is returned when no cached file holds the ID.
var ErrSuggestionNotFound = errors.New("suggestion not found")

// RunRecorder stores the history of analysis passes.
type RunRecorder interface {
	RecordRun(ctx context.Context, run store.AnalysisRun) (int64, error)
}

// Service is the context object holding the analyzer, the learning engine
// and the suggestion cache. There are no package-level singletons; tests
// and commands build their own.
type Service struct {
	analyzer    *suggest.Analyzer
	engine      *learning.Engine
	logger      *zap.Logger
	metrics     *metrics.Metrics
	runs        RunRecorder
	placeholder bool
	now         func() time.Time

	mu    sync.RWMutex
	cache map[string][]suggest.Suggestion

	lmu       sync.RWMutex
	listeners map[int]Listener
	nextID    int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithRunRecorder records every completed pass.
func WithRunRecorder(r RunRecorder) Option {
	return func(s *Service) { s.runs = r }
}

// WithPlaceholder emits a health-check suggestion for files with no
// findings.
func WithPlaceholder(enabled bool) Option {
	return func(s *Service) { s.placeholder = enabled }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a service. A nil analyzer uses the default catalog; a nil
// engine starts from a default profile.
func New(analyzer *suggest.Analyzer, engine *learning.Engine, opts ...Option) *Service {
	if analyzer == nil {
		analyzer = suggest.NewAnalyzer(nil)
	}
	if engine == nil {
		engine = learning.NewEngine()
	}
	s := &Service{
		analyzer:  analyzer,
		engine:    engine,
		logger:    zap.NewNop(),
		now:       time.Now,
		cache:     make(map[string][]suggest.Suggestion),
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine returns the learning engine.
func (s *Service) Engine() *learning.Engine { return s.engine }

// Analyze runs a full pass (analyze, aggregate, optimize) over an immutable
// snapshot of content and replaces the cache entry for path.
//
// Passes are not cancellable and are not ordered: when two passes for the
// same file overlap, whichever finishes last owns the cache entry, even if
// it was started first.
func (s *Service) Analyze(ctx context.Context, path, content string) []suggest.Suggestion {
	start := s.now()

	raw := s.analyzer.Analyze(path, content)
	ranked := suggest.Aggregate(path, raw, suggest.AggregateOptions{
		Placeholder: s.placeholder,
		Now:         s.now,
	})
	kept := s.engine.Optimize(ranked)

	s.mu.Lock()
	s.cache[path] = kept
	files := len(s.cache)
	s.mu.Unlock()

	elapsed := s.now().Sub(start)
	s.metrics.ObserveAnalysis(elapsed)
	s.metrics.SetCachedFiles(files)
	high := 0
	for _, sg := range kept {
		s.metrics.ObserveSuggestion(string(sg.Type), sg.Priority.String())
		if sg.Priority >= suggest.PriorityHigh {
			high++
		}
	}

	s.logger.Debug("analysis finished",
		zap.String("file", path),
		zap.Int("raw", len(ranked)),
		zap.Int("kept", len(kept)),
		zap.Duration("elapsed", elapsed),
	)

	if s.runs != nil {
		run := store.AnalysisRun{
			FilePath:     path,
			Profile:      s.engine.ActiveProfile(),
			RawCount:     len(ranked),
			KeptCount:    len(kept),
			HighPriority: high,
			Duration:     elapsed,
			AnalyzedAt:   start,
		}
		if _, err := s.runs.RecordRun(ctx, run); err != nil {
			s.logger.Warn("recording analysis run failed", zap.String("file", path), zap.Error(err))
		}
	}

	s.notifyUpdated(path, clone(kept))
	return clone(kept)
}

// MarkApplied records that a suggestion was acted on. The reason
// "dismissed" counts as a rejection; anything else counts as applied.
// Either way the suggestion leaves the unapplied views.
func (s *Service) MarkApplied(id, ref, reason string) error {
	return s.judge(id, ref, reason != ReasonDismissed, reason)
}

// RecordFeedback applies or dismisses a cached suggestion by ID.
func (s *Service) RecordFeedback(id string, applied bool, reason string) error {
	if !applied && reason == "" {
		reason = ReasonDismissed
	}
	return s.judge(id, "", applied, reason)
}

func (s *Service) judge(id, ref string, applied bool, reason string) error {
	sg, ok := s.find(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSuggestionNotFound, id)
	}
	if err := s.engine.RecordFeedback(sg, applied, reason); err != nil {
		return err
	}
	s.metrics.ObserveFeedback(applied)

	// The entry may have been replaced by a newer pass in the meantime; the
	// feedback still counts.
	s.mu.Lock()
	for _, list := range s.cache {
		for i := range list {
			if list[i].ID == id {
				list[i].Applied = true
				list[i].AppliedRef = ref
			}
		}
	}
	s.mu.Unlock()

	sg.Applied = true
	sg.AppliedRef = ref
	s.notifyApplied(sg)
	return nil
}

// Find returns a cached suggestion by ID.
func (s *Service) Find(id string) (suggest.Suggestion, bool) {
	return s.find(id)
}

func (s *Service) find(id string) (suggest.Suggestion, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, list := range s.cache {
		for _, sg := range list {
			if sg.ID == id {
				return sg, true
			}
		}
	}
	return suggest.Suggestion{}, false
}

// Files lists the cached file paths in sorted order.
func (s *Service) Files() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	files := make([]string, 0, len(s.cache))
	for path := range s.cache {
		files = append(files, path)
	}
	sort.Strings(files)
	return files
}

// Clear drops the cache entry for path.
func (s *Service) Clear(path string) {
	s.mu.Lock()
	delete(s.cache, path)
	n := len(s.cache)
	s.mu.Unlock()
	s.metrics.SetCachedFiles(n)
}

// ClearAll empties the cache.
func (s *Service) ClearAll() {
	s.mu.Lock()
	s.cache = make(map[string][]suggest.Suggestion)
	s.mu.Unlock()
	s.metrics.SetCachedFiles(0)
}

func clone(in []suggest.Suggestion) []suggest.Suggestion {
	out := make([]suggest.Suggestion, len(in))
	copy(out, in)
	return out
}
