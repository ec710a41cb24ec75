package service

import (
	"sort"
	"time"

	"classpoll/internal/domain"
)

// Roster tracks connected respondents plus the single moderator slot.
// It is not safe for concurrent use on its own; the coordinator
// serializes all access.
type Roster struct {
	participants map[string]*domain.Participant
	moderatorID  string
}

// NewRoster creates an empty roster
func NewRoster() *Roster {
	return &Roster{
		participants: make(map[string]*domain.Participant),
	}
}

// AddStudent registers a respondent and returns the created participant
func (r *Roster) AddStudent(id, name string, now time.Time) *domain.Participant {
	p := &domain.Participant{
		ID:       id,
		Name:     name,
		Role:     domain.RoleRespondent,
		JoinedAt: now,
	}
	r.participants[id] = p
	return p
}

// SetModerator claims the moderator slot for the given connection.
// A later claim silently displaces the previous holder; the displaced
// connection stays open but loses moderator privileges. Returns the
// displaced id, if any.
func (r *Roster) SetModerator(id string) string {
	displaced := ""
	if r.moderatorID != "" && r.moderatorID != id {
		displaced = r.moderatorID
	}
	r.moderatorID = id
	return displaced
}

// ModeratorID returns the current moderator connection id, or "" when unclaimed
func (r *Roster) ModeratorID() string {
	return r.moderatorID
}

// IsModerator reports whether the given connection currently holds the
// moderator slot. Privilege is re-derived from the roster on every call
// rather than cached by callers.
func (r *Roster) IsModerator(id string) bool {
	return id != "" && id == r.moderatorID
}

// ClearModerator releases the moderator slot if it is held by the given
// connection. A stale id is a no-op.
func (r *Roster) ClearModerator(id string) bool {
	if r.moderatorID != id {
		return false
	}
	r.moderatorID = ""
	return true
}

// Get returns the respondent with the given id, or nil
func (r *Roster) Get(id string) *domain.Participant {
	return r.participants[id]
}

// Remove deletes a respondent and returns it, or nil if unknown
func (r *Roster) Remove(id string) *domain.Participant {
	p, ok := r.participants[id]
	if !ok {
		return nil
	}
	delete(r.participants, id)
	return p
}

// Size returns the number of eligible respondents
func (r *Roster) Size() int {
	return len(r.participants)
}

// List returns a join-ordered snapshot of all respondents
func (r *Roster) List() []*domain.Participant {
	out := make([]*domain.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

// Views returns the roster as moderator-facing participant views
func (r *Roster) Views() []domain.ParticipantView {
	list := r.List()
	views := make([]domain.ParticipantView, 0, len(list))
	for _, p := range list {
		views = append(views, domain.ParticipantView{
			ID:          p.ID,
			Name:        p.Name,
			HasAnswered: p.HasAnswered,
		})
	}
	return views
}

// ResetAnswered clears every respondent's answered flag
func (r *Roster) ResetAnswered() {
	for _, p := range r.participants {
		p.HasAnswered = false
	}
}
