package service

import "classpoll/internal/domain"

// HistoryStore is the append-only archive of closed polls, ordered by
// closure time. The coordinator serializes all access.
type HistoryStore struct {
	entries []domain.HistoryEntry
}

// NewHistoryStore creates an empty history store
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{}
}

// Append archives a closed poll
func (h *HistoryStore) Append(entry domain.HistoryEntry) {
	h.entries = append(h.entries, entry)
}

// Entries returns a copy of the archive in closure order
func (h *HistoryStore) Entries() []domain.HistoryEntry {
	out := make([]domain.HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of archived polls
func (h *HistoryStore) Len() int {
	return len(h.entries)
}
