package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/dshills/devflow/flow"
	"github.com/dshills/devflow/flow/credential"
	"github.com/dshills/devflow/flow/emit"
	"github.com/dshills/devflow/flow/model"
	"github.com/dshills/devflow/flow/model/anthropic"
	"github.com/dshills/devflow/flow/model/google"
	"github.com/dshills/devflow/flow/model/openai"
	"github.com/dshills/devflow/flow/store"
	"github.com/dshills/devflow/internal/config"
)

const tracerName = "github.com/dshills/devflow"

// runtime is everything a command needs to talk to the engine.
type runtime struct {
	engine  *flow.Engine
	router  *flow.Router
	store   store.Store
	closers []func(context.Context) error
}

// Close releases resources in reverse order of acquisition.
func (r *runtime) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// runtime builds the store, provider registry, model transport and engine
// from the loaded configuration.
func (a *app) runtime(ctx context.Context) (_ *runtime, err error) {
	rt := &runtime{}
	defer func() {
		if err != nil {
			_ = rt.Close()
		}
	}()

	st, err := a.openStore(ctx, a.cfg)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", a.cfg.Store.Driver, err)
	}
	rt.store = st
	rt.closers = append(rt.closers, func(context.Context) error { return st.Close() })

	var metrics *flow.PrometheusMetrics
	if a.cfg.Metrics.Addr != "" {
		registry := prometheus.NewRegistry()
		metrics = flow.NewPrometheusMetrics(registry)
		shutdown, err := a.serveMetrics(registry)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, shutdown)
	}

	emitters := emit.MultiEmitter{emit.NewLogEmitter(a.logger).WithLevel(slog.LevelDebug)}
	if a.cfg.Tracing.Enabled {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(a.errOut))
		if err != nil {
			return nil, fmt.Errorf("creating trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
		otel.SetTracerProvider(tp)
		rt.closers = append(rt.closers, tp.Shutdown)
		emitters = append(emitters, emit.NewOTelEmitter(tp.Tracer(tracerName)))
	}

	creds := a.credentials(a.cfg)
	rt.router = flow.NewRouter(flow.NewCredentialRegistry(creds), flow.WithRouterMetrics(metrics))

	transport, err := a.transport(ctx, creds, metrics)
	if err != nil {
		return nil, err
	}
	invoker := flow.InstrumentInvoker(transport, metrics)

	engine, err := flow.New(rt.router, st, flow.NewExecutors(rt.router, invoker),
		flow.WithLogger(a.logger),
		flow.WithEmitter(emitters),
		flow.WithMetrics(metrics),
		flow.WithStepTimeout(a.cfg.Engine.StepTimeout),
	)
	if err != nil {
		return nil, err
	}
	rt.engine = engine
	return rt, nil
}

// transport registers a chat model for every provider that has a
// credential. Providers without one are left out; the router never selects
// them.
func (a *app) transport(ctx context.Context, creds credential.Store, metrics *flow.PrometheusMetrics) (*model.Transport, error) {
	t := model.NewTransport(model.WithUsageRecorder(metrics.RecordTokens))
	for _, p := range flow.Providers() {
		id := string(p.ID)
		key, err := creds.Lookup(ctx, id)
		if errors.Is(err, credential.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s credential: %w", id, err)
		}
		m, err := a.newChatModel(ctx, id, key, a.cfg.Model(id))
		if err != nil {
			return nil, fmt.Errorf("creating %s model: %w", id, err)
		}
		t.Register(id, m)
	}
	a.logger.Debug("model transport ready", "providers", t.Providers())
	return t, nil
}

func (a *app) serveMetrics(registry *prometheus.Registry) (func(context.Context) error, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              a.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return nil, fmt.Errorf("listening for metrics on %s: %w", srv.Addr, err)
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server stopped", "addr", srv.Addr, "error", err)
		}
	}()
	a.logger.Info("serving metrics", "addr", ln.Addr().String())
	return srv.Shutdown, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		return store.NewMemStore(), nil
	case config.DriverSQLite:
		return store.NewSQLiteStore(cfg.Store.DSN)
	case config.DriverMySQL:
		return store.NewMySQLStore(cfg.Store.DSN)
	case config.DriverPostgres:
		return store.OpenPostgresStore(ctx, cfg.Store.DSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func credentialStore(cfg *config.Config) credential.Store {
	if cfg.Credentials.Source == config.SourceFile {
		return credential.NewFileStore(cfg.Credentials.File)
	}
	return credential.NewEnvStore()
}

func newChatModel(_ context.Context, providerID, apiKey, modelName string) (model.ChatModel, error) {
	switch flow.ProviderID(providerID) {
	case flow.ProviderAnthropic:
		return anthropic.NewChatModel(apiKey, modelName)
	case flow.ProviderOpenAI:
		return openai.NewChatModel(apiKey, modelName)
	case flow.ProviderGoogle:
		return google.NewChatModel(apiKey, modelName)
	default:
		return nil, fmt.Errorf("no adapter for provider %q", providerID)
	}
}
