package flow

import (
	"errors"
	"log/slog"
	"time"

	"github.com/dshills/devflow/flow/emit"
)

// DefaultStepTimeout bounds a single step when no timeout is configured.
const DefaultStepTimeout = 5 * time.Minute

// Option configures an Engine.
//
// Example:
//
//	engine, err := flow.New(router, st, executors,
//	    flow.WithLogger(logger),
//	    flow.WithStepTimeout(90*time.Second),
//	)
type Option func(*engineConfig) error

type engineConfig struct {
	logger      *slog.Logger
	emitter     emit.Emitter
	metrics     *PrometheusMetrics
	stepTimeout time.Duration
	now         func() time.Time
	newID       func() string
}

// WithLogger sets the logger used for engine diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *engineConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithEmitter sets the receiver for workflow and step events.
func WithEmitter(emitter emit.Emitter) Option {
	return func(cfg *engineConfig) error {
		cfg.emitter = emitter
		return nil
	}
}

// WithMetrics enables Prometheus metrics collection.
//
// Example:
//
//	registry := prometheus.NewRegistry()
//	metrics := flow.NewPrometheusMetrics(registry)
//	engine, _ := flow.New(router, st, executors, flow.WithMetrics(metrics))
//
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
func WithMetrics(metrics *PrometheusMetrics) Option {
	return func(cfg *engineConfig) error {
		cfg.metrics = metrics
		return nil
	}
}

// WithStepTimeout bounds the duration of each step. Expiry fails the step
// with STEP_TIMEOUT. Default: DefaultStepTimeout.
func WithStepTimeout(d time.Duration) Option {
	return func(cfg *engineConfig) error {
		if d <= 0 {
			return errors.New("step timeout must be positive")
		}
		cfg.stepTimeout = d
		return nil
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(cfg *engineConfig) error {
		if now == nil {
			return errors.New("clock cannot be nil")
		}
		cfg.now = now
		return nil
	}
}

// WithIDGenerator overrides how workflow and step IDs are generated.
func WithIDGenerator(newID func() string) Option {
	return func(cfg *engineConfig) error {
		if newID == nil {
			return errors.New("ID generator cannot be nil")
		}
		cfg.newID = newID
		return nil
	}
}
