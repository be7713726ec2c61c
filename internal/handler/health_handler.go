package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cobaltfs/objectstore/internal/storage"
)

// DatabaseChecker is the subset of repository.DatabaseHealth a HealthChecker
// needs to verify database connectivity.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
	Health(ctx context.Context) error
}

// HealthCheckerConfig configures a HealthChecker.
type HealthCheckerConfig struct {
	DatabaseChecker DatabaseChecker
	StorageBackend  storage.Backend
	Logger          zerolog.Logger

	// CacheTTL is how long a readiness result is cached before re-probing
	// dependencies, so /readyz under load doesn't hammer the database.
	CacheTTL time.Duration
}

// HealthChecker serves liveness and readiness endpoints.
type HealthChecker struct {
	cfg    HealthCheckerConfig
	logger zerolog.Logger

	mu        sync.Mutex
	cachedAt  time.Time
	cachedErr error
}

// NewHealthChecker creates a HealthChecker.
func NewHealthChecker(cfg HealthCheckerConfig) *HealthChecker {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Second
	}
	return &HealthChecker{
		cfg:    cfg,
		logger: cfg.Logger.With().Str("component", "health_checker").Logger(),
	}
}

type healthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Liveness handles /health and /healthz: reports the process is running,
// without probing dependencies.
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	writeHealthJSON(w, http.StatusOK, healthResponse{Status: "healthy"})
}

// Readiness handles /readyz: probes the database and storage backend,
// caching the result for CacheTTL to bound probe frequency.
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	err := h.check(r.Context())
	if err != nil {
		writeHealthJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unhealthy", Error: err.Error()})
		return
	}
	writeHealthJSON(w, http.StatusOK, healthResponse{Status: "healthy"})
}

func (h *HealthChecker) check(ctx context.Context) error {
	h.mu.Lock()
	if time.Since(h.cachedAt) < h.cfg.CacheTTL {
		err := h.cachedErr
		h.mu.Unlock()
		return err
	}
	h.mu.Unlock()

	err := h.probe(ctx)

	h.mu.Lock()
	h.cachedAt = time.Now()
	h.cachedErr = err
	h.mu.Unlock()

	return err
}

func (h *HealthChecker) probe(ctx context.Context) error {
	if h.cfg.DatabaseChecker != nil {
		if err := h.cfg.DatabaseChecker.Ping(ctx); err != nil {
			h.logger.Error().Err(err).Msg("database health check failed")
			return err
		}
	}

	if h.cfg.StorageBackend != nil {
		if _, err := h.cfg.StorageBackend.Exists(ctx, "00000000000000000000000000000000000000000000000000000000000000"); err != nil {
			h.logger.Error().Err(err).Msg("storage backend health check failed")
			return err
		}
	}

	return nil
}

func writeHealthJSON(w http.ResponseWriter, status int, body healthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
