package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/patrickwarner/eligibleads/internal/adevents"
	"github.com/patrickwarner/eligibleads/internal/analytics"
	"github.com/patrickwarner/eligibleads/internal/antitargeting"
	"github.com/patrickwarner/eligibleads/internal/api"
	"github.com/patrickwarner/eligibleads/internal/catalog"
	"github.com/patrickwarner/eligibleads/internal/config"
	"github.com/patrickwarner/eligibleads/internal/db"
	"github.com/patrickwarner/eligibleads/internal/engine"
	"github.com/patrickwarner/eligibleads/internal/geoip"
	"github.com/patrickwarner/eligibleads/internal/history"
	"github.com/patrickwarner/eligibleads/internal/logic/eligible"
	"github.com/patrickwarner/eligibleads/internal/observability"
)

func main() {
	cfg := config.Load()

	logger, err := observability.InitLoggerWithService(cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to sync logger: %v\n", err)
		}
	}()

	if err := run(logger, cfg); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *zap.Logger, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdown, err := observability.InitTracing(ctx, logger, cfg.ServiceName, cfg.TempoEndpoint, os.Getenv("ENV"), cfg.TracingSampleRate)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer shutdown()
	}

	strategy, err := eligible.ParseStrategy(cfg.EligibilityStrategy)
	if err != nil {
		return err
	}

	pg, err := db.InitPostgres(cfg.PostgresDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
	if err != nil {
		return fmt.Errorf("failed to connect postgres: %w", err)
	}
	defer pg.Close()

	cat := catalog.NewInMemoryCatalog()
	if err := cat.Reload(ctx, pg); err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	logger.Info("catalog loaded", zap.Int("creative_ads", cat.Len()))

	store, err := db.InitRedis(cfg.RedisAddr)
	if err != nil {
		return fmt.Errorf("failed to connect redis: %w", err)
	}
	defer store.Close()

	events, err := adevents.NewRedisLog(store)
	if err != nil {
		return err
	}
	hist, err := history.NewRedisProvider(store, cfg.ProfileID)
	if err != nil {
		return err
	}

	metricsRegistry := observability.NewPrometheusRegistry()

	var archive analytics.AnalyticsService
	if cfg.ClickHouseDSN != "" {
		ch, err := analytics.InitClickHouse(cfg.ClickHouseDSN)
		if err != nil {
			return fmt.Errorf("failed to connect clickhouse: %w", err)
		}
		defer ch.Close()
		archive = ch
	}

	geoSvc, err := geoip.Init(cfg.GeoIPDB)
	if err != nil {
		logger.Warn("geoip unavailable, location must be supplied by clients", zap.Error(err))
		geoSvc = nil
	}
	defer func() { _ = geoSvc.Close() }()

	resource := antitargeting.NewResource(cfg.AntiTargetingResourceID, antitargeting.FileComponentReader{Dir: cfg.ComponentsDir})
	resource.SetLogger(logger)
	resource.SetMetrics(metricsRegistry)
	watcher := antitargeting.NewWatcher(resource, store, cfg.ReloadInterval, cfg.AntiTargetingManifestVersion, logger)
	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("start anti-targeting watcher: %w", err)
	}

	eng, err := engine.New(engine.Dependencies{
		Catalog:       cat,
		Events:        events,
		History:       hist,
		AntiTargeting: resource,
		Analytics:     archive,
		Logger:        logger,
		Metrics:       metricsRegistry,
	}, engine.Options{
		Strategy:        strategy,
		TopSegments:     cfg.TopSegments,
		HistoryMaxCount: cfg.HistoryMaxCount,
		HistoryMaxDays:  cfg.HistoryMaxDays,
		EventRetention:  cfg.AdEventRetention,
	})
	if err != nil {
		return err
	}
	defer eng.Close()

	srvDeps := api.NewServer(logger, eng, metricsRegistry)
	srvDeps.Catalog = cat
	srvDeps.Loader = pg
	srvDeps.Resource = resource
	srvDeps.Watcher = watcher
	srvDeps.Store = store
	srvDeps.History = hist
	if geoSvc != nil {
		srvDeps.GeoIP = geoSvc
	}
	srvDeps.Checks["postgres"] = pg
	srvDeps.Checks["redis"] = store

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      otelhttp.NewHandler(srvDeps.Router(), cfg.ServiceName),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	logger.Info("Eligibility server running",
		zap.String("addr", addr),
		zap.String("strategy", string(strategy)))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()

	if cfg.ReloadInterval > 0 {
		ticker := time.NewTicker(cfg.ReloadInterval)
		go func() {
			for {
				select {
				case <-ticker.C:
					if err := srvDeps.ReloadCatalog(ctx); err != nil {
						logger.Error("auto reload", zap.Error(err))
					}
				case <-ctx.Done():
					ticker.Stop()
					return
				}
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return nil
}
