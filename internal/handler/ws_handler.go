package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"classpoll/internal/domain"
	"classpoll/internal/hub"
	"classpoll/internal/service"
	"classpoll/pkg/errors"
	"classpoll/pkg/logger"
)

// validator is implemented by inbound payloads that check themselves
type validator interface {
	Validate() error
}

// WSHandler upgrades connections and routes inbound envelopes into the
// coordinator. Every error surfaces as an operation-rejected event to
// the offending connection only; nothing here aborts the coordinator.
type WSHandler struct {
	hub         *hub.Hub
	coordinator *service.Coordinator
	logger      *logger.Logger
	upgrader    websocket.Upgrader
}

// NewWSHandler creates a new WebSocket handler
func NewWSHandler(h *hub.Hub, coordinator *service.Coordinator, allowedOrigins []string, log *logger.Logger) *WSHandler {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origins[origin] = true
	}

	return &WSHandler{
		hub:         h,
		coordinator: coordinator,
		logger:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(origins) == 0 || origins["*"] {
					return true
				}
				return origins[origin]
			},
		},
	}
}

// Serve handles GET /ws. It blocks for the lifetime of the connection.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upgrade WebSocket connection")
		return
	}

	id := uuid.NewString()
	client := hub.NewClient(id, conn, h.logger.Logger)
	h.hub.Register(client)

	h.logger.WithFields(map[string]interface{}{
		"client_id":   id,
		"remote_addr": r.RemoteAddr,
	}).Info("WebSocket client connected")

	go client.WritePump()

	client.ReadPump(
		func(env domain.Envelope) {
			h.route(id, env)
		},
		func() {
			h.coordinator.Leave(id)
			h.hub.Unregister(id)
			h.logger.WithField("client_id", id).Info("WebSocket client disconnected")
		},
	)
}

// route dispatches one inbound envelope to the coordinator
func (h *WSHandler) route(clientID string, env domain.Envelope) {
	var err error

	switch env.Event {
	case domain.EventTeacherJoin:
		h.coordinator.JoinModerator(clientID)

	case domain.EventStudentJoin:
		var req domain.StudentJoinRequest
		if err = h.decode(env.Data, &req); err == nil {
			h.coordinator.JoinStudent(clientID, req.Name)
		}

	case domain.EventCreatePoll:
		// The coordinator validates the definition itself so that a
		// non-moderator is rejected as unauthorized, not on payload shape
		var req domain.CreatePollRequest
		if err = h.unmarshal(env.Data, &req); err == nil {
			err = h.coordinator.CreatePoll(clientID, req)
		}

	case domain.EventSubmitResponse:
		var req domain.SubmitResponseRequest
		if err = h.decode(env.Data, &req); err == nil {
			err = h.coordinator.SubmitResponse(clientID, req.Option)
		}

	case domain.EventRemoveStudent:
		var req domain.RemoveStudentRequest
		if err = h.decode(env.Data, &req); err == nil {
			err = h.coordinator.RemoveStudent(clientID, req.TargetID)
		}

	case domain.EventGetPollHistory:
		var entries []domain.HistoryEntry
		if entries, err = h.coordinator.History(clientID); err == nil {
			h.hub.Send(clientID, domain.EventPollHistory, entries)
		}

	case domain.EventChatMessage:
		var req domain.ChatMessageRequest
		if err = h.decode(env.Data, &req); err == nil {
			err = h.coordinator.Chat(clientID, req.Message)
		}

	default:
		err = errors.NewValidationError("unknown event: "+env.Event, nil)
	}

	if err != nil {
		h.logger.WithFields(map[string]interface{}{
			"client_id": clientID,
			"event":     env.Event,
		}).WithError(err).Debug("Operation rejected")
		h.hub.Send(clientID, domain.EventOperationRejected, domain.NewRejectionEvent(err))
	}
}

// decode unmarshals and validates an inbound payload
func (h *WSHandler) decode(data json.RawMessage, v validator) error {
	if err := h.unmarshal(data, v); err != nil {
		return err
	}
	return v.Validate()
}

// unmarshal parses an inbound payload without validating it
func (h *WSHandler) unmarshal(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return errors.NewValidationError("missing event payload", nil)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.NewValidationError("malformed event payload", nil)
	}
	return nil
}
