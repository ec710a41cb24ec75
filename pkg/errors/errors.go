package errors

import (
	"fmt"
	"net/http"
)

// ErrorType represents different types of application errors
type ErrorType string

const (
	ErrorTypeValidation         ErrorType = "validation"
	ErrorTypeUnauthorized       ErrorType = "unauthorized"
	ErrorTypeInvalidState       ErrorType = "invalid_state"
	ErrorTypeNoActivePoll       ErrorType = "no_active_poll"
	ErrorTypeUnknownParticipant ErrorType = "unknown_participant"
	ErrorTypeDuplicateResponse  ErrorType = "duplicate_response"
	ErrorTypeInternal           ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	StatusCode int                    `json:"status_code"`
	Internal   error                  `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Internal.Error())
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Internal
}

// NewValidationError creates a new validation error
func NewValidationError(message string, details map[string]interface{}) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// NewUnauthorizedError creates an error for a non-moderator attempting a moderator-only action
func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

// NewInvalidStateError creates an error for operations invalid in the current poll state
func NewInvalidStateError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInvalidState,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// NewNoActivePollError creates an error for submissions while no poll is active
func NewNoActivePollError() *AppError {
	return &AppError{
		Type:       ErrorTypeNoActivePoll,
		Message:    "no active poll",
		StatusCode: http.StatusConflict,
	}
}

// NewUnknownParticipantError creates an error for actions from an unregistered id
func NewUnknownParticipantError(id string) *AppError {
	return &AppError{
		Type:       ErrorTypeUnknownParticipant,
		Message:    "participant not registered",
		StatusCode: http.StatusNotFound,
		Details:    map[string]interface{}{"participant_id": id},
	}
}

// NewDuplicateResponseError creates an error for a second submission by the same participant
func NewDuplicateResponseError() *AppError {
	return &AppError{
		Type:       ErrorTypeDuplicateResponse,
		Message:    "already answered this poll",
		StatusCode: http.StatusConflict,
	}
}

// NewInternalError creates a new internal server error
func NewInternalError(message string, internal error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Internal:   internal,
	}
}

// FromError converts any error into an AppError, wrapping unknown errors as internal
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return NewInternalError("unexpected error", err)
}
