package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Asdisarson/ss/internal/cache"
	"github.com/Asdisarson/ss/internal/config"
	"github.com/Asdisarson/ss/internal/event"
	handler "github.com/Asdisarson/ss/internal/handler/http"
	"github.com/Asdisarson/ss/internal/ingest"
	"github.com/Asdisarson/ss/internal/ranking"
	"github.com/Asdisarson/ss/internal/service"
	"github.com/Asdisarson/ss/pkg/database"
	"github.com/Asdisarson/ss/pkg/health"
	"github.com/Asdisarson/ss/pkg/httpclient"
	pkgkafka "github.com/Asdisarson/ss/pkg/kafka"
	"github.com/Asdisarson/ss/pkg/tracing"
)

const serviceName = "catalog-search"

// App wires together all dependencies and runs the search service.
type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	catalog    *service.CatalogService
	consumers  []*pkgkafka.Consumer
	producer   *pkgkafka.Producer
	httpServer *http.Server

	closers        []namedCloser
	tracerShutdown func(context.Context) error
}

type namedCloser struct {
	name  string
	close func() error
}

// NewApp creates a new application instance, initializing all dependencies.
// Failing to open or migrate the catalog store is fatal.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	tcfg := tracing.DefaultConfig(serviceName)
	tcfg.Environment = cfg.Environment
	tcfg.Enabled = cfg.OTELEnabled
	tcfg.OTLPEndpoint = cfg.OTELEndpoint
	tcfg.SampleRate = cfg.OTELSampleRate
	shutdown, err := tracing.InitTracer(ctx, tcfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = shutdown

	database.SetSlowQueryLogging(cfg.SlowQueryThreshold(), logger)

	// Catalog store.
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		_ = shutdown(ctx)
		return nil, fmt.Errorf("open catalog store: %w", err)
	}
	a.closers = append(a.closers, namedCloser{"catalog store", closeStore})

	// Search cache.
	backend, closeCache, cacheOn := openCache(ctx, cfg, logger)
	a.closers = append(a.closers, namedCloser{"redis", closeCache})
	coordinator := cache.NewCoordinator(backend, cfg.CacheCompressBytes, logger)

	// Services.
	ranker := ranking.New(ranking.Options{Fuzzy: cfg.SearchFuzzyEnabled})
	searchService := service.NewSearchService(store, ranker, coordinator, service.SearchConfig{
		CacheTTL:       cfg.CacheTTL(),
		MaxQueryLength: cfg.SearchMaxQueryLength,
	}, logger)

	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.SupplierTimeout()
	supplier := ingest.NewClient(
		ingest.NewHTTPDoer(httpCfg, cfg.SupplierAPIKey, logger),
		ingest.ClientConfig{
			BaseURL:  cfg.SupplierBaseURL,
			PageSize: cfg.SupplierPageSize,
			MaxPages: cfg.SupplierMaxPages,
		},
		logger,
	)

	var notifier service.SyncNotifier
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		notifier = event.NewProducer(a.producer, logger)
	}

	a.catalog = service.NewCatalogService(store, supplier, coordinator, notifier, service.NewSyncState(), logger)
	if err := a.catalog.LoadState(ctx); err != nil {
		_ = a.Shutdown()
		return nil, err
	}

	if cfg.KafkaEnabled {
		refreshConsumer := event.NewConsumer(a.catalog, logger)
		a.consumers = append(a.consumers, pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
			Brokers:  cfg.KafkaBrokers,
			GroupID:  cfg.KafkaGroupID,
			Topic:    event.TopicRefreshRequested,
			MinBytes: 1,
			MaxBytes: 10e6, // 10 MB
		}, refreshConsumer.HandleRefreshRequested, logger))
		logger.Info("kafka initialized",
			slog.Any("brokers", cfg.KafkaBrokers),
			slog.String("consume_topic", event.TopicRefreshRequested),
			slog.String("publish_topic", event.TopicCatalogSynced),
		)
	}

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register(cfg.CatalogDriver, store.Ping)
	if cacheOn {
		healthHandler.RegisterOptional("redis", coordinator.Ping)
	}
	if a.producer != nil {
		healthHandler.RegisterOptional("kafka", a.producer.Ping)
	}

	// HTTP router.
	router := handler.NewRouter(handler.RouterConfig{
		Search:              searchService,
		Catalog:             a.catalog,
		Health:              healthHandler,
		Logger:              logger,
		Detailed:            !cfg.IsProduction(),
		RefreshAllowedCIDRs: cfg.RefreshAllowedCIDRs,
		PprofAllowedCIDRs:   cfg.PprofAllowedCIDRs,
		RefreshTimeout:      cfg.RefreshTimeout(),
		SearchRateLimit:     cfg.SearchRateLimit(),
		RefreshRateLimit:    cfg.RefreshRateLimit(),
		RefreshJWTSecret:    cfg.RefreshJWTSecret,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RefreshTimeout() + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return a, nil
}

// Run starts the HTTP server, the catalog sync schedule and the Kafka
// consumers, blocking until ctx is canceled or a component fails.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if a.cfg.SyncOnStartup {
		g.Go(func() error {
			if _, err := a.catalog.Refresh(gctx); err != nil {
				a.logger.Warn("startup catalog sync failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	if interval := a.cfg.SyncInterval(); interval > 0 {
		g.Go(func() error {
			return a.catalog.RunPeriodic(gctx, interval)
		})
	}

	for _, c := range a.consumers {
		g.Go(func() error {
			if err := c.Start(gctx); err != nil {
				return fmt.Errorf("kafka consumer: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	})

	err := g.Wait()
	return errors.Join(err, a.Shutdown())
}

// Shutdown releases every resource opened by NewApp. HTTP shutdown is
// handled by Run.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error
	for _, c := range a.consumers {
		if err := c.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	errs = append(errs, a.closeAll())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tracerShutdown(ctx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeAll() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(); err != nil {
			a.logger.Error("close error", slog.String("resource", c.name), slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
