package app

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blackwell-systems/codehint/internal/config"
	"github.com/blackwell-systems/codehint/internal/learning"
	"github.com/blackwell-systems/codehint/internal/logging"
	"github.com/blackwell-systems/codehint/internal/metrics"
	"github.com/blackwell-systems/codehint/internal/output"
	"github.com/blackwell-systems/codehint/internal/service"
	"github.com/blackwell-systems/codehint/internal/store"
	"github.com/blackwell-systems/codehint/internal/suggest"
)

// env is everything a command needs: configuration, the logger, the
// learning engine with its storage, and the suggestion service.
type env struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      *store.DB // nil unless the sqlite backend is selected
	engine  *learning.Engine
	svc     *service.Service
	metrics *metrics.Metrics
}

// openEnv loads configuration and builds the service stack for cmd.
// Callers must Close the result.
func openEnv(ctx context.Context, cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if flagProfile != "" {
		cfg.Profile = flagProfile
	}

	level := cfg.Log.Level
	if flagVerbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Config{
		Level:  level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}

	output.SetNoColor(flagNoColor || !output.ColorEnabled(os.Stdout, cfg.Output.Color))

	e := &env{cfg: cfg, logger: logger}

	repo, err := e.openRepository()
	if err != nil {
		return nil, err
	}

	e.engine = learning.NewEngine(
		learning.WithRepository(repo),
		learning.WithLogger(logger.Named("learning")),
	)
	if err := e.engine.UseProfile(cfg.Profile); err != nil {
		e.Close()
		return nil, err
	}
	if err := e.engine.Load(ctx); err != nil {
		e.Close()
		return nil, fmt.Errorf("loading profile: %w", err)
	}

	analyzerOpts := []suggest.Option{suggest.WithLogger(logger.Named("analyzer"))}
	if cfg.Analyzer.SecretScan {
		detector, err := suggest.NewGitleaksDetector()
		if err != nil {
			logger.Warn("secret scanning disabled", zap.Error(err))
		} else {
			analyzerOpts = append(analyzerOpts, suggest.WithSecretDetector(detector))
		}
	}

	if cfg.Metrics.Addr != "" {
		e.metrics = metrics.New()
	}

	svcOpts := []service.Option{
		service.WithLogger(logger.Named("service")),
		service.WithMetrics(e.metrics),
		service.WithPlaceholder(cfg.Analyzer.Placeholder),
	}
	if e.db != nil {
		svcOpts = append(svcOpts, service.WithRunRecorder(e.db))
	}
	e.svc = service.New(suggest.NewAnalyzer(nil, analyzerOpts...), e.engine, svcOpts...)

	logger.Debug("environment ready",
		zap.String("profile", cfg.Profile),
		zap.String("backend", cfg.Storage.Backend),
		zap.String("path", cfg.StoragePath()),
	)
	return e, nil
}

func (e *env) openRepository() (learning.Repository, error) {
	switch e.cfg.Storage.Backend {
	case config.BackendSQLite:
		db, err := store.Open(e.cfg.StoragePath())
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		e.db = db
		return db, nil
	case config.BackendYAML:
		return learning.NewFileRepository(e.cfg.StoragePath()), nil
	default:
		return learning.NewMemoryRepository(), nil
	}
}

// serveMetrics exposes /metrics in the background when an address is
// configured.
func (e *env) serveMetrics(ctx context.Context) {
	if e.metrics == nil {
		return
	}
	addr := e.cfg.Metrics.Addr
	go func() {
		if err := e.metrics.Serve(ctx, addr); err != nil {
			e.logger.Error("metrics endpoint failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
	e.logger.Info("serving metrics", zap.String("addr", addr))
}

// save persists the active profile and its unsaved feedback.
func (e *env) save(ctx context.Context) error {
	if err := e.engine.Save(ctx); err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}
	return nil
}

// Close releases the database and flushes the logger.
func (e *env) Close() {
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			e.logger.Warn("closing database", zap.Error(err))
		}
	}
	_ = e.logger.Sync()
}
