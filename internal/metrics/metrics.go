// Package metrics exposes Prometheus instruments for analysis passes,
// feedback and the suggestion cache.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the codehint collectors on a private registry. A nil
// *Metrics is valid and records nothing.
//
// Metrics:
//   - codehint_analyses_total - analysis passes completed
//   - codehint_analysis_duration_seconds - analysis pass latency
//   - codehint_suggestions_total{type,priority} - suggestions kept after optimize
//   - codehint_feedback_total{outcome} - applied or dismissed events
//   - codehint_listener_panics_total - listener callbacks that panicked
//   - codehint_cached_files - files currently in the suggestion cache
type Metrics struct {
	registry *prometheus.Registry

	AnalysesTotal    prometheus.Counter
	AnalysisDuration prometheus.Histogram
	SuggestionsTotal *prometheus.CounterVec
	FeedbackTotal    *prometheus.CounterVec
	ListenerPanics   prometheus.Counter
	CachedFiles      prometheus.Gauge
}

// New creates the collectors and registers them on a new registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		AnalysesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "codehint_analyses_total",
			Help: "Total number of completed analysis passes",
		}),
		AnalysisDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "codehint_analysis_duration_seconds",
			Help:    "Duration of analysis passes in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		}),
		SuggestionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "codehint_suggestions_total",
			Help: "Total number of suggestions kept after optimization",
		}, []string{"type", "priority"}),
		FeedbackTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "codehint_feedback_total",
			Help: "Total number of feedback events",
		}, []string{"outcome"}),
		ListenerPanics: f.NewCounter(prometheus.CounterOpts{
			Name: "codehint_listener_panics_total",
			Help: "Total number of listener callbacks that panicked",
		}),
		CachedFiles: f.NewGauge(prometheus.GaugeOpts{
			Name: "codehint_cached_files",
			Help: "Number of files in the suggestion cache",
		}),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveAnalysis records one completed pass.
func (m *Metrics) ObserveAnalysis(d time.Duration) {
	if m == nil {
		return
	}
	m.AnalysesTotal.Inc()
	m.AnalysisDuration.Observe(d.Seconds())
}

// ObserveSuggestion counts one kept suggestion.
func (m *Metrics) ObserveSuggestion(typ, priority string) {
	if m == nil {
		return
	}
	m.SuggestionsTotal.WithLabelValues(typ, priority).Inc()
}

// ObserveFeedback counts one feedback event.
func (m *Metrics) ObserveFeedback(applied bool) {
	if m == nil {
		return
	}
	outcome := "dismissed"
	if applied {
		outcome = "applied"
	}
	m.FeedbackTotal.WithLabelValues(outcome).Inc()
}

// ObserveListenerPanic counts one recovered listener panic.
func (m *Metrics) ObserveListenerPanic() {
	if m == nil {
		return
	}
	m.ListenerPanics.Inc()
}

// SetCachedFiles sets the cache size gauge.
func (m *Metrics) SetCachedFiles(n int) {
	if m == nil {
		return
	}
	m.CachedFiles.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
