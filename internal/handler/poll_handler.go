package handler

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"classpoll/internal/domain"
	"classpoll/internal/service"
	"classpoll/pkg/logger"
)

// PollHandler serves the read-only REST mirrors of the coordinator's
// state. Responses go through the snapshot cache when Redis is
// configured and fall back to live snapshots otherwise.
type PollHandler struct {
	coordinator *service.Coordinator
	cache       *service.SnapshotCache
	logger      *logger.Logger
}

// NewPollHandler creates a new poll mirror handler
func NewPollHandler(coordinator *service.Coordinator, cache *service.SnapshotCache, log *logger.Logger) *PollHandler {
	return &PollHandler{
		coordinator: coordinator,
		cache:       cache,
		logger:      log,
	}
}

// RegisterRoutes mounts the mirror endpoints on the given router
func (h *PollHandler) RegisterRoutes(r chi.Router) {
	r.Get("/poll/current", h.GetCurrentPoll)
	r.Get("/participants", h.GetParticipants)
	r.Get("/history", h.GetHistory)
}

// CurrentPollResponse is the payload of GET /api/poll/current
type CurrentPollResponse struct {
	Success       bool         `json:"success"`
	Poll          *domain.Poll `json:"poll"`
	Responses     int          `json:"responses"`
	TotalStudents int          `json:"total_students"`
}

// ParticipantsResponse is the payload of GET /api/participants
type ParticipantsResponse struct {
	Success      bool                     `json:"success"`
	Participants []domain.ParticipantView `json:"participants"`
}

// HistoryResponse is the payload of GET /api/history
type HistoryResponse struct {
	Success bool                  `json:"success"`
	History []domain.HistoryEntry `json:"history"`
}

// GetCurrentPoll handles GET /api/poll/current
func (h *PollHandler) GetCurrentPoll(w http.ResponseWriter, r *http.Request) {
	data, err := h.cache.GetCurrentPoll(r.Context(), func() (interface{}, error) {
		poll, responses, total := h.coordinator.CurrentPoll()
		return CurrentPollResponse{
			Success:       true,
			Poll:          poll,
			Responses:     responses,
			TotalStudents: total,
		}, nil
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to build current poll snapshot")
		h.respondError(w, http.StatusInternalServerError, "Failed to get current poll")
		return
	}

	etag := generateETag(data)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=2")

	h.respondRaw(w, http.StatusOK, data)
}

// GetParticipants handles GET /api/participants
func (h *PollHandler) GetParticipants(w http.ResponseWriter, r *http.Request) {
	data, err := h.cache.GetParticipants(r.Context(), func() (interface{}, error) {
		return ParticipantsResponse{
			Success:      true,
			Participants: h.coordinator.Participants(),
		}, nil
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to build participants snapshot")
		h.respondError(w, http.StatusInternalServerError, "Failed to get participants")
		return
	}

	h.respondRaw(w, http.StatusOK, data)
}

// GetHistory handles GET /api/history
func (h *PollHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	data, err := h.cache.GetHistory(r.Context(), func() (interface{}, error) {
		return HistoryResponse{
			Success: true,
			History: h.coordinator.HistoryEntries(),
		}, nil
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to build history snapshot")
		h.respondError(w, http.StatusInternalServerError, "Failed to get history")
		return
	}

	h.respondRaw(w, http.StatusOK, data)
}

func generateETag(data []byte) string {
	hash := md5.Sum(data)
	return fmt.Sprintf(`"%x"`, hash)
}

func (h *PollHandler) respondRaw(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func (h *PollHandler) respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
