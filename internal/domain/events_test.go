package domain

import (
	"fmt"
	"testing"

	"classpoll/pkg/errors"
)

func TestPayloadValidation(t *testing.T) {
	tests := []struct {
		name    string
		payload interface{ Validate() error }
		wantErr bool
	}{
		{"join with name", &StudentJoinRequest{Name: "Alice"}, false},
		{"join with blank name", &StudentJoinRequest{Name: "   "}, true},
		{"join with empty name", &StudentJoinRequest{}, true},
		{"response with option", &SubmitResponseRequest{Option: "4"}, false},
		{"response with blank option", &SubmitResponseRequest{Option: " "}, true},
		{"removal with target", &RemoveStudentRequest{TargetID: "s1"}, false},
		{"removal without target", &RemoveStudentRequest{}, true},
		{"chat with message", &ChatMessageRequest{Message: "hi"}, false},
		{"chat with blank message", &ChatMessageRequest{Message: "  "}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStudentJoinRequest_ValidateTrimsName(t *testing.T) {
	req := &StudentJoinRequest{Name: "  Alice  "}
	if err := req.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	if req.Name != "Alice" {
		t.Errorf("Name = %q, want %q", req.Name, "Alice")
	}
}

func TestNewRejectionEvent(t *testing.T) {
	appErr := errors.NewValidationError("option is required", map[string]interface{}{
		"field": "option",
	})

	rejection := NewRejectionEvent(appErr)
	if rejection.Kind != errors.ErrorTypeValidation {
		t.Errorf("Kind = %s, want %s", rejection.Kind, errors.ErrorTypeValidation)
	}
	if rejection.Message != "option is required" {
		t.Errorf("Message = %q", rejection.Message)
	}
	if rejection.Details["field"] != "option" {
		t.Errorf("Details = %v", rejection.Details)
	}
}

func TestNewRejectionEvent_WrapsUnknownErrors(t *testing.T) {
	rejection := NewRejectionEvent(fmt.Errorf("boom"))
	if rejection.Kind != errors.ErrorTypeInternal {
		t.Errorf("Kind = %s, want %s", rejection.Kind, errors.ErrorTypeInternal)
	}
}
