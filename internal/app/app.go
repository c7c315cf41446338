package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/autonexit/FaceShield/internal/config"
	"github.com/autonexit/FaceShield/internal/logger"
	"github.com/autonexit/FaceShield/internal/repository/sqlite"
	"github.com/autonexit/FaceShield/internal/routes"
	"github.com/autonexit/FaceShield/internal/services/ai"
	"github.com/autonexit/FaceShield/internal/services/metrics"
	"github.com/autonexit/FaceShield/internal/services/pipeline"
	"github.com/autonexit/FaceShield/internal/services/session"
	"github.com/autonexit/FaceShield/internal/services/storage"
	"github.com/autonexit/FaceShield/internal/services/video"
	"github.com/autonexit/FaceShield/internal/services/websocket"
)

const shutdownTimeout = 30 * time.Second

type App struct {
	config        *config.Config
	logger        *logger.Logger
	db            *sqlite.DB
	registry      *prometheus.Registry
	bufferService *storage.BufferService
	hubService    *websocket.HubService
	controller    *session.Controller
	server        *http.Server
	shutdownTrace func(context.Context) error
}

// NewApp loads configuration and wires every service. ctx bounds the
// lifetime of runs started by the controller.
func NewApp(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return New(ctx, cfg)
}

// New wires the application from an already loaded configuration.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	for _, dir := range []string{cfg.Roots.Input, cfg.Roots.Output} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	runs := sqlite.NewRunRepository(db)
	samples := sqlite.NewSampleRepository(db)

	shutdownTrace, err := initTracing(ctx, cfg.OTELEndpoint)
	if err != nil {
		db.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	buffer := storage.NewBufferService(cfg.ImageDirectory, cfg.SampleLimit, samples, log.Named("samples"))
	hub := websocket.NewHubService(log.Named("hub"))

	opener := &session.FileOpener{
		Backend:      cfg.DetectorBackend,
		Device:       cfg.Device,
		Classes:      cfg.ModelClasses,
		RuntimeLib:   cfg.ONNXRuntimeLib,
		LocalPreview: cfg.LocalPreview,
		Remote: func(runID string, _ video.Metadata) pipeline.PreviewSink {
			return websocket.NewPreviewSink(hub, runID, cfg.PreviewInterval, log.Named("preview"))
		},
		Samples: func(runID string, _ video.Metadata) pipeline.PreviewSink {
			return storage.NewSampleSink(buffer, runID, cfg.SampleInterval, log.Named("samples"))
		},
		Logger: log.Named("opener"),
	}

	controller := session.NewController(opener,
		session.WithObserver(session.MultiObserver{
			session.LogObserver{Logger: log.Named("progress")},
			session.NewHistoryObserver(runs),
			websocket.NewProgressObserver(hub, cfg.ProgressRate),
		}),
		session.WithMetrics(collector),
		session.WithLogger(log.Named("session")),
		session.WithContext(ctx),
		session.WithBuffer(cfg.ObserverBuffer),
	)

	router := routes.SetupRoutes(routes.Deps{
		Config:     cfg,
		Logger:     log.Named("http"),
		Controller: controller,
		Runs:       runs,
		Samples:    samples,
		Hub:        hub,
		Gatherer:   registry,
	})

	return &App{
		config:        cfg,
		logger:        log,
		db:            db,
		registry:      registry,
		bufferService: buffer,
		hubService:    hub,
		controller:    controller,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		shutdownTrace: shutdownTrace,
	}, nil
}

// Run serves HTTP and the background services until ctx is done, then stops
// the active run and releases everything.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.bufferService.Run(gctx, a.config.SampleFlushInterval) })
	g.Go(func() error { return a.hubService.Run(gctx) })
	g.Go(func() error {
		a.logger.Info("🚀 FaceShield listening on http://localhost:%d (backend=%s, device=%s)",
			a.config.Port, a.config.DetectorBackend, a.config.Device)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown()
	})

	return g.Wait()
}

func (a *App) shutdown() error {
	a.logger.Info("🛑 Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := a.controller.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop active run: %w", err))
	}
	a.bufferService.FlushImages()
	if err := ai.ShutdownRuntime(); err != nil {
		errs = append(errs, fmt.Errorf("onnxruntime shutdown: %w", err))
	}
	if err := a.shutdownTrace(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
	}
	if err := a.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	a.logger.Sync()
	return errors.Join(errs...)
}
