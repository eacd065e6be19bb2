// Package watcher decides when files are re-analyzed. It watches source
// trees with fsnotify, debounces bursts of edits per file and runs analyses
// on a bounded pool of background workers.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/blackwell-systems/codehint/internal/suggest"
)

// DefaultInterval is the minimum time between two analyses of one file.
const DefaultInterval = 5000 * time.Millisecond

// DefaultExtensions are the file extensions analyzed when none are configured.
var DefaultExtensions = []string{
	".java", ".kt", ".scala", ".groovy", ".js", ".ts", ".py", ".cpp", ".c", ".h", ".go",
}

// queueSize bounds the requests raised by file events while every worker is
// busy. The initial scan of a tree waits for room instead.
const queueSize = 256

// ErrWatcherFailed indicates the filesystem watcher could not be created.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// Analyzer runs one full analysis pass over a content snapshot.
type Analyzer interface {
	Analyze(ctx context.Context, path, content string) []suggest.Suggestion
}

// Scheduler debounces analysis requests per file. A file is analyzed at most
// once per interval; a request that arrives early is deferred until the
// interval has elapsed, and further requests for the same file coalesce into
// that one deferred run.
type Scheduler struct {
	analyzer   Analyzer
	interval   time.Duration
	workers    int
	extensions map[string]bool
	logger     *zap.Logger
	now        func() time.Time
	onRemove   func(path string)

	mu      sync.Mutex
	last    map[string]time.Time
	pending map[string]*time.Timer

	queue chan string
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval sets the debounce interval. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithWorkers bounds the number of concurrent analyses.
func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithExtensions restricts analysis to files with these extensions. Entries
// may be given with or without the leading dot.
func WithExtensions(exts []string) Option {
	return func(s *Scheduler) {
		if len(exts) > 0 {
			s.extensions = extensionSet(exts)
		}
	}
}

// WithLogger sets the scheduler logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithOnRemove is called when a watched file is deleted or renamed away.
func WithOnRemove(fn func(path string)) Option {
	return func(s *Scheduler) { s.onRemove = fn }
}

// New creates a scheduler feeding analyzer.
func New(analyzer Analyzer, opts ...Option) *Scheduler {
	s := &Scheduler{
		analyzer:   analyzer,
		interval:   DefaultInterval,
		workers:    4,
		extensions: extensionSet(DefaultExtensions),
		logger:     zap.NewNop(),
		now:        time.Now,
		last:       make(map[string]time.Time),
		pending:    make(map[string]*time.Timer),
		queue:      make(chan string, queueSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func extensionSet(exts []string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = true
	}
	return set
}

// Analyzable reports whether path has a watched extension.
func (s *Scheduler) Analyzable(path string) bool {
	return s.extensions[strings.ToLower(filepath.Ext(path))]
}

// Delay returns how long path must wait before its next analysis. Zero
// means it may run now.
func (s *Scheduler) Delay(path string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delayLocked(path)
}

func (s *Scheduler) delayLocked(path string) time.Duration {
	last, ok := s.last[path]
	if !ok {
		return 0
	}
	elapsed := s.now().Sub(last)
	if elapsed >= s.interval {
		return 0
	}
	return s.interval - elapsed
}

// Schedule requests an analysis of path. It returns false when the file is
// not analyzable or a deferred run is already pending for it.
func (s *Scheduler) Schedule(path string) bool {
	if !s.Analyzable(path) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[path]; ok {
		return false
	}
	delay := s.delayLocked(path)
	if delay == 0 {
		s.last[path] = s.now()
		if !s.enqueue(path) {
			delete(s.last, path)
		}
		return true
	}
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.pending[path] != timer {
			// Forgotten or reset while waiting.
			return
		}
		delete(s.pending, path)
		if s.enqueue(path) {
			s.last[path] = s.now()
		} else {
			delete(s.last, path)
		}
	})
	s.pending[path] = timer
	return true
}

// enqueue hands path to the workers without blocking. A dropped request
// leaves no debounce stamp behind, so the next event for the file schedules
// it again.
func (s *Scheduler) enqueue(path string) bool {
	select {
	case s.queue <- path:
		return true
	default:
		s.logger.Warn("analysis queue full, dropping request", zap.String("file", path))
		return false
	}
}

// admit stamps path for an initial scan unless a run is already pending or
// the file was analyzed within the interval.
func (s *Scheduler) admit(path string) bool {
	if !s.Analyzable(path) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[path]; ok {
		return false
	}
	if s.delayLocked(path) > 0 {
		return false
	}
	s.last[path] = s.now()
	return true
}

// seed queues every file of an initial scan, waiting for room in the queue.
func (s *Scheduler) seed(ctx context.Context, files []string) {
	for _, path := range files {
		if !s.admit(path) {
			continue
		}
		select {
		case s.queue <- path:
		case <-ctx.Done():
			return
		}
	}
}

// Check analyzes path right away on the calling goroutine, bypassing the
// debounce interval, and records the analysis time.
func (s *Scheduler) Check(ctx context.Context, path string) ([]suggest.Suggestion, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	s.stamp(path)
	return s.analyzer.Analyze(ctx, path, string(content)), nil
}

func (s *Scheduler) stamp(path string) {
	s.mu.Lock()
	s.last[path] = s.now()
	s.mu.Unlock()
}

// Analyzed returns the number of files analyzed since the last Reset.
func (s *Scheduler) Analyzed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.last)
}

// Forget drops the debounce state for path and cancels a pending run.
func (s *Scheduler) Forget(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.last, path)
	if t, ok := s.pending[path]; ok {
		t.Stop()
		delete(s.pending, path)
	}
}

// Reset clears all debounce state and cancels pending runs.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for path, t := range s.pending {
		t.Stop()
		delete(s.pending, path)
	}
	s.last = make(map[string]time.Time)
}

// Run watches roots, analyzes every analyzable file found there, and keeps
// analyzing changed files until ctx is cancelled. Analyses already running
// when ctx ends are allowed to finish. Passing no roots still drains
// requests made through Schedule.
func (s *Scheduler) Run(ctx context.Context, roots ...string) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	defer func() { _ = fw.Close() }()

	var initial []string
	for _, root := range roots {
		files, err := s.addTree(fw, root)
		if err != nil {
			return err
		}
		initial = append(initial, files...)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g errgroup.Group
	// In-flight passes outlive cancellation.
	workCtx := context.WithoutCancel(ctx)
	for range s.workers {
		g.Go(func() error {
			for {
				select {
				case <-runCtx.Done():
					return nil
				case path := <-s.queue:
					s.analyzeFile(workCtx, path)
				}
			}
		})
	}
	seed := func(files []string) {
		if len(files) == 0 {
			return
		}
		g.Go(func() error {
			s.seed(runCtx, files)
			return nil
		})
	}
	seed(initial)

	for {
		select {
		case <-ctx.Done():
			s.Reset()
			_ = g.Wait()
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				cancel()
				return g.Wait()
			}
			s.handleEvent(fw, event, seed)

		case err, ok := <-fw.Errors:
			if !ok {
				cancel()
				return g.Wait()
			}
			s.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}

func (s *Scheduler) handleEvent(fw *fsnotify.Watcher, event fsnotify.Event, seed func([]string)) {
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		s.Forget(event.Name)
		if s.onRemove != nil && s.Analyzable(event.Name) {
			s.onRemove(event.Name)
		}

	case event.Has(fsnotify.Create):
		info, err := os.Stat(event.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			files, err := s.addTree(fw, event.Name)
			if err != nil {
				s.logger.Warn("watching new directory failed", zap.String("dir", event.Name), zap.Error(err))
			}
			seed(files)
			return
		}
		s.Schedule(event.Name)

	case event.Has(fsnotify.Write):
		s.Schedule(event.Name)
	}
}

// analyzeFile reads a snapshot of the file and hands it to the analyzer. The
// debounce stamp was taken when the run was scheduled.
func (s *Scheduler) analyzeFile(ctx context.Context, path string) {
	content, err := os.ReadFile(path)
	if err != nil {
		s.logger.Debug("skipping unreadable file", zap.String("file", path), zap.Error(err))
		return
	}
	found := s.analyzer.Analyze(ctx, path, string(content))
	s.logger.Debug("file analyzed", zap.String("file", path), zap.Int("suggestions", len(found)))
}

// addTree watches root and every directory below it, skipping hidden and
// vendored directories, and returns the analyzable files it finds.
func (s *Scheduler) addTree(fw *fsnotify.Watcher, root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return fmt.Errorf("watching %s: %w", root, err)
			}
			return nil
		}
		if d.IsDir() {
			if path != root && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			if err := fw.Add(path); err != nil {
				return fmt.Errorf("watching %s: %w", path, err)
			}
			return nil
		}
		if s.Analyzable(path) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func skipDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	switch name {
	case "vendor", "node_modules", "build", "target", "dist":
		return true
	}
	return false
}
