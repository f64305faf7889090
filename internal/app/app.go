// Package app initializes and holds long-lived application services, acting
// as a dependency injection container for the CLI commands.
package app

import (
	"context"
	"fmt"

	gcsclient "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/hirepath/searchpulse/internal/archive"
	archivegcs "github.com/hirepath/searchpulse/internal/archive/gcs"
	archivelocal "github.com/hirepath/searchpulse/internal/archive/local"
	archivememory "github.com/hirepath/searchpulse/internal/archive/memory"
	"github.com/hirepath/searchpulse/internal/config"
	"github.com/hirepath/searchpulse/internal/detect"
	"github.com/hirepath/searchpulse/internal/ingest"
	"github.com/hirepath/searchpulse/internal/inspect"
	"github.com/hirepath/searchpulse/internal/logging"
	"github.com/hirepath/searchpulse/internal/metrics"
	"github.com/hirepath/searchpulse/internal/pipeline"
	"github.com/hirepath/searchpulse/internal/publisher"
	publishermemory "github.com/hirepath/searchpulse/internal/publisher/memory"
	publisherpubsub "github.com/hirepath/searchpulse/internal/publisher/pubsub"
	"github.com/hirepath/searchpulse/internal/searchconsole"
	"github.com/hirepath/searchpulse/internal/sitemaps"
	"github.com/hirepath/searchpulse/internal/store"
	storememory "github.com/hirepath/searchpulse/internal/store/memory"
	storepostgres "github.com/hirepath/searchpulse/internal/store/postgres"
)

// App holds the shared, long-lived services for one process. It is built once
// at startup and handed to the commands through the cobra context.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	store     store.Store
	analytics searchconsole.AnalyticsProvider
	inspector searchconsole.InspectionProvider
	runner    *pipeline.Runner
	closers   []func()
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Store exposes the telemetry store.
func (a *App) Store() store.Store { return a.store }

// Analytics exposes the configured analytics provider.
func (a *App) Analytics() searchconsole.AnalyticsProvider { return a.analytics }

// Inspector exposes the configured inspection provider.
func (a *App) Inspector() searchconsole.InspectionProvider { return a.inspector }

// Runner returns the assembled pipeline runner.
func (a *App) Runner() *pipeline.Runner { return a.runner }

// New loads configuration, builds every service the pipeline needs, and wires
// them into a Runner. It fails fast if any critical service cannot start.
func New(ctx context.Context, configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	a := &App{cfg: cfg, logger: logger}
	logger.Info("initializing services",
		zap.String("db", cfg.DB.Provider),
		zap.String("provider", cfg.Provider.Kind),
		zap.String("archive", cfg.Archive.Provider),
		zap.String("publisher", cfg.Publisher.Provider),
	)

	if err := a.buildStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.buildProviders(); err != nil {
		a.Close()
		return nil, err
	}
	archiver, err := a.buildArchiver(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	events, err := a.buildPublisher(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	metrics.Init()
	if cfg.Metrics.Enabled {
		metrics.Serve(cfg.Metrics.Addr, func(err error) {
			logger.Error("metrics server failed", zap.Error(err))
		})
		logger.Info("metrics listener started", zap.String("addr", cfg.Metrics.Addr))
	}

	engine := ingest.New(a.analytics, a.store, a.store, archiver, ingest.Config{
		SiteURL:       cfg.Provider.SiteURL,
		RowLimit:      cfg.Provider.RowLimit,
		ArchivePrefix: cfg.Archive.Prefix,
	}, logger)

	detector := detect.New(a.store, a.store, a.store, detectorConfig(cfg.Detector), logger)

	syncer := sitemaps.New(a.inspector, a.store, logger)

	scheduler := inspect.New(a.inspector, a.store, a.store, a.store, inspect.Config{
		SiteURL:             cfg.Provider.SiteURL,
		Delay:               cfg.InspectionDelay(),
		TrafficLookbackDays: cfg.Inspection.TrafficLookbackDays,
	}, logger)

	a.runner = pipeline.New(engine, detector, syncer, scheduler, a.store, events, pipeline.Config{
		InspectionBudget:    cfg.Inspection.Budget,
		FreshnessWindowDays: cfg.Inspection.FreshnessWindowDays,
		Topic:               cfg.Publisher.TopicID,
	}, logger)

	logger.Info("services initialized")
	return a, nil
}

func (a *App) buildStore(ctx context.Context) error {
	switch a.cfg.DB.Provider {
	case "postgres":
		st, err := storepostgres.New(ctx, storepostgres.Config{
			DSN:      a.cfg.DB.DSN,
			MaxConns: a.cfg.DB.MaxConns,
			MinConns: a.cfg.DB.MinConns,
		})
		if err != nil {
			return fmt.Errorf("initialize postgres store: %w", err)
		}
		if err := st.EnsureSchema(ctx); err != nil {
			st.Close()
			return fmt.Errorf("ensure schema: %w", err)
		}
		a.store = st
		a.closers = append(a.closers, st.Close)
	case "memory":
		a.store = storememory.New()
	default:
		return fmt.Errorf("unknown db provider: %s", a.cfg.DB.Provider)
	}
	return nil
}

func (a *App) buildProviders() error {
	switch a.cfg.Provider.Kind {
	case "noop":
		a.analytics = searchconsole.NoOpAnalytics{}
		a.inspector = searchconsole.NoOpInspector{}
	default:
		return fmt.Errorf("unknown provider kind: %s", a.cfg.Provider.Kind)
	}
	return nil
}

func (a *App) buildArchiver(ctx context.Context) (archive.Archiver, error) {
	switch a.cfg.Archive.Provider {
	case "gcs":
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("initialize gcs client: %w", err)
		}
		arch, err := archivegcs.New(client, archivegcs.Config{Bucket: a.cfg.Archive.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("initialize gcs archiver: %w", err)
		}
		return arch, nil
	case "local":
		arch, err := archivelocal.New(archivelocal.Config{BaseDir: a.cfg.Archive.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("initialize local archiver: %w", err)
		}
		return arch, nil
	case "memory":
		return archivememory.New(), nil
	case "noop":
		return archive.NoOp{}, nil
	default:
		return nil, fmt.Errorf("unknown archive provider: %s", a.cfg.Archive.Provider)
	}
}

func (a *App) buildPublisher(ctx context.Context) (publisher.Publisher, error) {
	switch a.cfg.Publisher.Provider {
	case "pubsub":
		pub, err := publisherpubsub.New(ctx, a.cfg.Publisher.ProjectID, a.cfg.Publisher.TopicID)
		if err != nil {
			return nil, fmt.Errorf("initialize pubsub publisher: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := pub.Close(); err != nil {
				a.logger.Warn("close publisher", zap.Error(err))
			}
		})
		return pub, nil
	case "memory":
		return publishermemory.New(), nil
	case "noop":
		return publisher.NoOp{}, nil
	default:
		return nil, fmt.Errorf("unknown publisher provider: %s", a.cfg.Publisher.Provider)
	}
}

func detectorConfig(c config.DetectorConfig) detect.Config {
	return detect.Config{
		HistoryDays:         c.HistoryDays,
		BaselineDays:        c.BaselineDays,
		MinHistoryDays:      c.MinHistoryDays,
		TopPages:            c.TopPages,
		SiteDropCriticalPct: c.SiteDropCriticalPct,
		SiteDropWarningPct:  c.SiteDropWarningPct,
		SiteSurgePct:        c.SiteSurgePct,
		PageDropPct:         c.PageDropPct,
		PageSurgePct:        c.PageSurgePct,
		NoiseFloorClicks:    c.NoiseFloorClicks,
		LossFloorClicks:     c.LossFloorClicks,
		PositionDelta:       c.PositionDelta,
		PositionRankCap:     c.PositionRankCap,
		PageSurgeMinClicks:  c.PageSurgeMinClicks,
	}
}

// Close shuts down every service the container opened and flushes the logger.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}
