package service

import "classpoll/internal/domain"

// Ledger holds the responses submitted for the current poll, one per
// participant. Entries are never overwritten; duplicates are rejected
// by Record. The coordinator serializes all access.
type Ledger struct {
	responses map[string]domain.Response
}

// NewLedger creates an empty ledger
func NewLedger() *Ledger {
	return &Ledger{
		responses: make(map[string]domain.Response),
	}
}

// Record inserts a response. Returns false if the participant has
// already answered; the existing entry is kept untouched.
func (l *Ledger) Record(resp domain.Response) bool {
	if _, exists := l.responses[resp.ParticipantID]; exists {
		return false
	}
	l.responses[resp.ParticipantID] = resp
	return true
}

// Has reports whether the participant has an entry
func (l *Ledger) Has(participantID string) bool {
	_, ok := l.responses[participantID]
	return ok
}

// Remove retracts a participant's response, e.g. when they are removed
// from the roster. Returns whether an entry existed.
func (l *Ledger) Remove(participantID string) bool {
	if _, ok := l.responses[participantID]; !ok {
		return false
	}
	delete(l.responses, participantID)
	return true
}

// Size returns the number of recorded responses
func (l *Ledger) Size() int {
	return len(l.responses)
}

// Snapshot returns a copy of the recorded responses
func (l *Ledger) Snapshot() map[string]domain.Response {
	out := make(map[string]domain.Response, len(l.responses))
	for id, resp := range l.responses {
		out[id] = resp
	}
	return out
}

// Clear drops all responses
func (l *Ledger) Clear() {
	l.responses = make(map[string]domain.Response)
}
