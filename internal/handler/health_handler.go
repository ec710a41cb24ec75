package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"classpoll/internal/hub"
	"classpoll/internal/service"
	"classpoll/pkg/logger"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	hub    *hub.Hub
	cache  *service.SnapshotCache
	logger *logger.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(h *hub.Hub, cache *service.SnapshotCache, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		hub:    h,
		cache:  cache,
		logger: log,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	Connections int       `json:"connections"`
	Cache       string    `json:"cache"`
}

// Check handles GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	cache := "ok"
	if err := h.cache.Health(r.Context()); err != nil {
		// A degraded cache never fails the service; mirrors fall back
		// to live snapshots
		cache = "unavailable"
	}

	response := HealthResponse{
		Status:      "healthy",
		Timestamp:   time.Now().UTC(),
		Service:     "classpoll",
		Connections: h.hub.Count(),
		Cache:       cache,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.WithError(err).Error("Failed to encode health check response")
	}
}
