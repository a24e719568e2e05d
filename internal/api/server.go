// Package api is the operator HTTP surface of the eligibility service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/patrickwarner/eligibleads/internal/antitargeting"
	"github.com/patrickwarner/eligibleads/internal/catalog"
	"github.com/patrickwarner/eligibleads/internal/db"
	"github.com/patrickwarner/eligibleads/internal/engine"
	"github.com/patrickwarner/eligibleads/internal/geoip"
	"github.com/patrickwarner/eligibleads/internal/history"
	"github.com/patrickwarner/eligibleads/internal/middleware"
	"github.com/patrickwarner/eligibleads/internal/observability"
)

// HistoryRecorder stores browsing history for the active profile.
type HistoryRecorder interface {
	RecordVisit(ctx context.Context, v history.Visit) error
	Clear(ctx context.Context) error
}

// Pinger is a dependency checked by the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server groups dependencies for HTTP handlers. Optional dependencies may be
// nil; the handlers that need them answer 503.
type Server struct {
	Logger  *zap.Logger
	Engine  *engine.Engine
	Catalog *catalog.InMemoryCatalog
	// Loader is the catalog source used by Reload.
	Loader   catalog.Loader
	Resource *antitargeting.Resource
	Watcher  *antitargeting.Watcher
	Store    *db.RedisStore
	History  HistoryRecorder
	GeoIP    geoip.Resolver
	Metrics  observability.MetricsRegistry
	// Checks are pinged by /health, keyed by dependency name.
	Checks map[string]Pinger

	reloadMu sync.Mutex
}

// NewServer constructs a Server around the ads engine.
func NewServer(logger *zap.Logger, eng *engine.Engine, metrics observability.MetricsRegistry) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	return &Server{
		Logger:  logger,
		Engine:  eng,
		Metrics: metrics,
		Checks:  make(map[string]Pinger),
	}
}

// Router registers every route on a gorilla/mux router.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.WithTraceLogger(s.Logger))
	r.Use(middleware.WithRequestMetrics(s.Metrics))

	r.HandleFunc("/eligible", s.EligibleHandler).Methods(http.MethodPost)
	r.HandleFunc("/serve", s.ServeHandler).Methods(http.MethodPost)
	r.HandleFunc("/events", s.EventHandler).Methods(http.MethodPost)
	r.HandleFunc("/history", s.RecordVisitHandler).Methods(http.MethodPost)
	r.HandleFunc("/history", s.ClearHistoryHandler).Methods(http.MethodDelete)
	r.HandleFunc("/reload", s.ReloadHandler).Methods(http.MethodPost)
	r.HandleFunc("/resource", s.ResourceHandler).Methods(http.MethodGet)
	r.HandleFunc("/health", s.HealthHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// ReloadCatalog refreshes the in-memory catalog from Loader. The previous
// catalog stays in place on failure.
func (s *Server) ReloadCatalog(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	if s.Catalog == nil || s.Loader == nil {
		return errCatalogUnavailable
	}
	if err := s.Catalog.Reload(ctx, s.Loader); err != nil {
		s.Metrics.IncrementResourceLoads("catalog", "failure")
		return fmt.Errorf("reload catalog: %w", err)
	}
	s.Metrics.IncrementResourceLoads("catalog", "success")
	s.Logger.Info("catalog reloaded", zap.Int("creative_ads", s.Catalog.Len()))
	return nil
}

var errCatalogUnavailable = errors.New("catalog source unavailable")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
