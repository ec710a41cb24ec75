package domain

import (
	"encoding/json"
	"strings"
	"time"

	"classpoll/pkg/errors"
)

// Inbound event names (client -> server)
const (
	EventTeacherJoin    = "teacher-join"
	EventStudentJoin    = "student-join"
	EventCreatePoll     = "create-poll"
	EventSubmitResponse = "submit-response"
	EventRemoveStudent  = "remove-student"
	EventGetPollHistory = "get-poll-history"
	EventChatMessage    = "send-chat-message"
)

// Outbound event names (server -> client)
const (
	EventParticipantsUpdate  = "participants-update"
	EventPollStarted         = "poll-started"
	EventPollResults         = "poll-results"
	EventResponseCountUpdate = "response-count-update"
	EventPollEnded           = "poll-ended"
	EventStudentRemoved      = "student-removed"
	EventPollHistory         = "poll-history"
	EventChatBroadcast       = "chat-message"
	EventOperationRejected   = "operation-rejected"
)

// Envelope is the tagged wire format for every WebSocket message.
// Data carries the event-specific payload and may be absent for
// events without one.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OutboundEnvelope is the server-side counterpart of Envelope with an
// already-typed payload.
type OutboundEnvelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// StudentJoinRequest is the payload of a student-join event
type StudentJoinRequest struct {
	Name string `json:"name"`
}

// Validate normalizes and checks the join payload
func (r *StudentJoinRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return errors.NewValidationError("name is required", nil)
	}
	return nil
}

// SubmitResponseRequest is the payload of a submit-response event
type SubmitResponseRequest struct {
	Option string `json:"option"`
}

// Validate checks the response payload
func (r *SubmitResponseRequest) Validate() error {
	if strings.TrimSpace(r.Option) == "" {
		return errors.NewValidationError("option is required", nil)
	}
	return nil
}

// RemoveStudentRequest is the payload of a remove-student event
type RemoveStudentRequest struct {
	TargetID string `json:"target_id"`
}

// Validate checks the removal payload
func (r *RemoveStudentRequest) Validate() error {
	if r.TargetID == "" {
		return errors.NewValidationError("target_id is required", nil)
	}
	return nil
}

// ChatMessageRequest is the payload of a send-chat-message event
type ChatMessageRequest struct {
	Message string `json:"message"`
}

// Validate checks the chat payload
func (r *ChatMessageRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return errors.NewValidationError("message is required", nil)
	}
	return nil
}

// PollStartedEvent is broadcast when a poll starts and re-sent to late
// joiners. HasAnswered is personalized per recipient. The correct-answer
// flags are included; clients hide them until the results stage.
type PollStartedEvent struct {
	ID              string    `json:"id"`
	Question        string    `json:"question"`
	Options         []Option  `json:"options"`
	DurationSeconds int       `json:"duration_seconds"`
	StartedAt       time.Time `json:"started_at"`
	HasAnswered     bool      `json:"has_answered"`
}

// ResponseCountEvent is the moderator-only responded/total counter
type ResponseCountEvent struct {
	Responded int `json:"responded"`
	Total     int `json:"total"`
}

// ChatMessageEvent is a stamped chat message relayed to everyone
type ChatMessageEvent struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    string    `json:"sender"`
	IsTeacher bool      `json:"is_teacher"`
	Timestamp time.Time `json:"timestamp"`
}

// RejectionEvent is the typed notice sent to a requester whose
// operation was rejected
type RejectionEvent struct {
	Kind    errors.ErrorType       `json:"kind"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// NewRejectionEvent converts an error into the wire-level rejection notice
func NewRejectionEvent(err error) RejectionEvent {
	appErr := errors.FromError(err)
	return RejectionEvent{
		Kind:    appErr.Type,
		Message: appErr.Message,
		Details: appErr.Details,
	}
}
