// Package server provides the core application server and dependency wiring.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/job-progress-tracker/internal/api"
	"github.com/JakeFAU/job-progress-tracker/internal/clock/system"
	"github.com/JakeFAU/job-progress-tracker/internal/config"
	"github.com/JakeFAU/job-progress-tracker/internal/logging"
	"github.com/JakeFAU/job-progress-tracker/internal/metrics"
	"github.com/JakeFAU/job-progress-tracker/internal/progress"
	progresssinks "github.com/JakeFAU/job-progress-tracker/internal/progress/sinks"
	"github.com/JakeFAU/job-progress-tracker/internal/publisher"
	memorypublisher "github.com/JakeFAU/job-progress-tracker/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/job-progress-tracker/internal/publisher/pubsub"
	memorystorage "github.com/JakeFAU/job-progress-tracker/internal/storage/memory"
	pgstore "github.com/JakeFAU/job-progress-tracker/internal/storage/postgres"
	"github.com/JakeFAU/job-progress-tracker/internal/store"
	"github.com/JakeFAU/job-progress-tracker/internal/telemetry"
	"github.com/JakeFAU/job-progress-tracker/internal/tracker"
)

// App contains the application's dependencies.
type App struct {
	cfg         *config.Config
	logger      *zap.Logger
	registerer  prometheus.Registerer
	tracker     *tracker.Tracker
	janitor     *tracker.Janitor
	apiServer   *api.Server
	progressHub *progress.Hub
	history     store.HistoryRepository
	pgHistory   *pgstore.HistoryStore
	publisher   publisher.Publisher
	tracer      *sdktrace.TracerProvider
}

// Option customizes Build.
type Option func(*App)

// WithLogger replaces the logger built from configuration.
func WithLogger(logger *zap.Logger) Option {
	return func(a *App) { a.logger = logger }
}

// WithRegisterer registers progress collectors somewhere other than the
// default Prometheus registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(a *App) { a.registerer = reg }
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Tracker exposes the job tracker.
func (a *App) Tracker() *tracker.Tracker {
	return a.tracker
}

// Run starts the application and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.janitor.Start()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	return a.Close(shutdownCtx)
}

// Close stops the sweeper, drains the progress hub (which closes its sinks),
// releases the database pool and flushes pending spans.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.janitor != nil {
		a.janitor.Stop()
	}
	if a.progressHub != nil {
		if err := a.progressHub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
			errs = append(errs, err)
		}
	} else {
		// Without a hub nothing else closes the publisher.
		if c, ok := a.publisher.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close publisher: %w", err))
			}
		}
	}
	if a.pgHistory != nil {
		a.pgHistory.Close()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
	}
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	app := &App{cfg: cfg, registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(app)
	}
	if app.logger == nil {
		logger, err := logging.New(logging.Options{
			Development: cfg.Logging.Development,
			Level:       cfg.Logging.Level,
		})
		if err != nil {
			return nil, fmt.Errorf("logger init failed: %w", err)
		}
		zap.ReplaceGlobals(logger)
		app.logger = logger
	}
	app.logger.Info("building application dependencies",
		zap.Int("server_port", cfg.Server.Port),
		zap.Duration("retention", cfg.Retention()),
		zap.Bool("auth_enabled", cfg.Auth.Enabled),
	)
	if cfg.Metrics.Enabled {
		metrics.Init()
	}
	if cfg.Telemetry.TracingEnabled {
		tp, err := telemetry.InitTracerProvider(ctx, telemetry.Options{
			ServiceName: cfg.Telemetry.ServiceName,
			Version:     cfg.Telemetry.Version,
			ProjectID:   cfg.Telemetry.ProjectID,
			SampleRatio: cfg.Telemetry.SampleRatio,
		})
		if err != nil {
			return nil, app.abort(ctx, fmt.Errorf("telemetry init failed: %w", err))
		}
		app.tracer = tp
		app.logger.Info("tracing initialized", zap.Bool("export", cfg.Telemetry.ProjectID != ""))
	}

	if err := setupHistory(ctx, app); err != nil {
		return nil, app.abort(ctx, err)
	}
	if err := setupPublisher(ctx, app); err != nil {
		return nil, app.abort(ctx, err)
	}
	emitter, err := setupProgress(ctx, app)
	if err != nil {
		return nil, app.abort(ctx, err)
	}

	app.tracker = tracker.New(tracker.Config{
		Clock:     system.New(),
		Retention: cfg.Retention(),
		Emitter:   emitter,
		Logger:    app.logger.Named("tracker"),
	})
	app.janitor, err = tracker.NewJanitor(app.tracker, cfg.SweepInterval(), app.logger.Named("janitor"))
	if err != nil {
		return nil, app.abort(ctx, fmt.Errorf("janitor init failed: %w", err))
	}

	app.apiServer = api.NewServer(app.tracker, app.history, *cfg, app.logger.Named("api"))
	return app, nil
}

// abort releases whatever Build had set up before failing with err.
func (a *App) abort(ctx context.Context, err error) error {
	if closeErr := a.Close(ctx); closeErr != nil {
		a.logger.Warn("cleanup after failed build", zap.Error(closeErr))
	}
	return err
}

func setupHistory(ctx context.Context, app *App) error {
	if !app.cfg.Progress.HistoryEnabled {
		app.logger.Info("progress history disabled")
		return nil
	}
	if app.cfg.Database.DSN == "" {
		app.logger.Warn("No DSN specified for database, keeping progress history in memory")
		app.history = memorystorage.NewHistoryStore(memorystorage.HistoryConfig{
			MaxPerJob: app.cfg.Progress.HistoryMaxPerJob,
			MaxJobs:   app.cfg.Progress.HistoryMaxJobs,
			TTL:       time.Duration(app.cfg.Progress.HistoryTTLSeconds) * time.Second,
		})
		return nil
	}
	pg, err := pgstore.NewHistoryStore(ctx, pgstore.HistoryStoreConfig{
		DSN:             app.cfg.Database.DSN,
		Table:           app.cfg.Database.Table,
		MaxConns:        app.cfg.Database.MaxConns,
		MinConns:        app.cfg.Database.MinConns,
		MaxConnLifetime: time.Duration(app.cfg.Database.MaxConnLifetimeMinutes) * time.Minute,
	})
	if err != nil {
		return fmt.Errorf("history store init failed: %w", err)
	}
	app.pgHistory = pg
	app.history = pg
	app.logger.Info("postgres history store initialized", zap.String("table", app.cfg.Database.Table))
	return nil
}

func setupPublisher(ctx context.Context, app *App) error {
	if !app.cfg.Progress.PublishEnabled {
		return nil
	}
	if app.cfg.PubSub.TopicName == "" || app.cfg.PubSub.ProjectID == "" {
		app.logger.Warn("No Pub/Sub topic configured, using in-memory publisher")
		app.publisher = memorypublisher.New()
		return nil
	}
	pub, err := gcppublisher.Dial(ctx, app.cfg.PubSub.ProjectID, app.cfg.PubSub.TopicName)
	if err != nil {
		return fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	app.publisher = pub
	app.logger.Info(
		"Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.PubSub.TopicName),
	)
	return nil
}

func setupProgress(ctx context.Context, app *App) (progress.Emitter, error) {
	var sinkList []progress.Sink
	if app.history != nil {
		sinkList = append(sinkList, progresssinks.NewStoreSink(app.history, app.logger.Named("progress_store")))
		app.logger.Debug("Added progress store sink")
	}
	if app.cfg.Progress.PrometheusEnabled {
		promSink, err := progresssinks.NewPrometheusSink(app.registerer)
		if err != nil {
			return nil, fmt.Errorf("prometheus sink init failed: %w", err)
		}
		sinkList = append(sinkList, promSink)
		app.logger.Debug("Added progress prometheus sink")
	}
	if app.publisher != nil {
		sinkList = append(sinkList, progresssinks.NewPublisherSink(
			app.publisher,
			app.cfg.PubSub.TopicName,
			app.logger.Named("progress_publisher"),
		))
		app.logger.Debug("Added progress publisher sink")
	}
	if app.cfg.Progress.LogEnabled {
		sinkList = append(sinkList, progresssinks.NewLogSink(app.logger.Named("progress_log")))
		app.logger.Debug("Added progress log sink")
	}
	if len(sinkList) == 0 {
		app.logger.Info("no progress sinks configured, tracker events disabled")
		return nil, nil
	}
	hubCfg := progress.Config{
		BufferSize:     app.cfg.Progress.BufferSize,
		MaxBatchEvents: app.cfg.Progress.BatchMaxEvents,
		MaxBatchWait:   time.Duration(app.cfg.Progress.BatchMaxWaitMS) * time.Millisecond,
		SinkTimeout:    time.Duration(app.cfg.Progress.SinkTimeoutMS) * time.Millisecond,
		BaseContext:    context.WithoutCancel(ctx),
		Logger:         app.logger.Named("progress_hub"),
	}
	app.progressHub = progress.NewHub(hubCfg, sinkList...)
	app.logger.Info("progress hub initialized",
		zap.Int("sinks", len(sinkList)),
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Int("max_batch_events", hubCfg.MaxBatchEvents),
		zap.Duration("max_batch_wait", hubCfg.MaxBatchWait),
		zap.Duration("sink_timeout", hubCfg.SinkTimeout),
	)
	return app.progressHub, nil
}
