package domain

import (
	"strings"
	"time"

	"classpoll/pkg/errors"
)

// PollStatus is the lifecycle state of a poll
type PollStatus string

const (
	// PollActive means the poll is accepting responses and its expiry timer is armed
	PollActive PollStatus = "active"
	// PollClosing is a transient guard state entered by whichever closure
	// trigger wins; it makes closure idempotent
	PollClosing PollStatus = "closing"
	// PollClosed means the poll has been archived and is immutable
	PollClosed PollStatus = "closed"
)

// Option is a single answer choice within a poll
type Option struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// Poll is one question with ordered options, a duration and exactly one correct option
type Poll struct {
	ID              string     `json:"id"`
	Question        string     `json:"question"`
	Options         []Option   `json:"options"`
	DurationSeconds int        `json:"duration_seconds"`
	Status          PollStatus `json:"-"`
	StartedAt       time.Time  `json:"started_at"`
	CreatedBy       string     `json:"-"`
}

// HasOption reports whether the poll contains an option with the given text
func (p *Poll) HasOption(text string) bool {
	for _, opt := range p.Options {
		if opt.Text == text {
			return true
		}
	}
	return false
}

// Response is a single participant's answer to the active poll
type Response struct {
	ParticipantID string    `json:"participant_id"`
	Option        string    `json:"option"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// OptionTally is the per-option slice of a tally
type OptionTally struct {
	Text       string `json:"text"`
	IsCorrect  bool   `json:"is_correct"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
}

// Tally is the derived per-option summary of the ledger at a point in time.
// Percentages are rounded independently and need not sum to 100.
type Tally struct {
	Question       string        `json:"question"`
	Options        []OptionTally `json:"options"`
	TotalResponses int           `json:"total_responses"`
	TotalEligible  int           `json:"total_eligible"`
}

// HistoryEntry is the immutable archive record of a closed poll
type HistoryEntry struct {
	ID           string    `json:"id"`
	Question     string    `json:"question"`
	Options      []Option  `json:"options"`
	Results      Tally     `json:"results"`
	Participants int       `json:"participants"`
	ClosedAt     time.Time `json:"closed_at"`
}

// CreatePollRequest is the poll definition submitted by the moderator
type CreatePollRequest struct {
	Question        string   `json:"question"`
	Options         []Option `json:"options"`
	DurationSeconds int      `json:"duration_seconds"`
}

// Validate checks the poll definition and normalizes its text fields
func (r *CreatePollRequest) Validate() error {
	r.Question = strings.TrimSpace(r.Question)
	if r.Question == "" {
		return errors.NewValidationError("question is required", nil)
	}

	if len(r.Options) < 2 {
		return errors.NewValidationError("a poll needs at least two options", map[string]interface{}{
			"options": len(r.Options),
		})
	}

	seen := make(map[string]bool, len(r.Options))
	correct := 0
	for i := range r.Options {
		r.Options[i].Text = strings.TrimSpace(r.Options[i].Text)
		text := r.Options[i].Text
		if text == "" {
			return errors.NewValidationError("option text must not be empty", nil)
		}
		if seen[text] {
			return errors.NewValidationError("option text must be unique", map[string]interface{}{
				"option": text,
			})
		}
		seen[text] = true
		if r.Options[i].IsCorrect {
			correct++
		}
	}
	if correct != 1 {
		return errors.NewValidationError("exactly one option must be marked correct", map[string]interface{}{
			"correct_options": correct,
		})
	}

	if r.DurationSeconds <= 0 {
		return errors.NewValidationError("duration must be positive", map[string]interface{}{
			"duration_seconds": r.DurationSeconds,
		})
	}

	return nil
}
