package domain

import "time"

// Role identifies what a connected participant is allowed to do
type Role string

const (
	RoleModerator  Role = "moderator"
	RoleRespondent Role = "respondent"
)

// Participant represents a connected respondent tracked by the roster
type Participant struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Role        Role      `json:"role"`
	HasAnswered bool      `json:"has_answered"`
	JoinedAt    time.Time `json:"joined_at"`
}

// ParticipantView is the roster entry broadcast to the moderator
type ParticipantView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	HasAnswered bool   `json:"has_answered"`
}
