// Package state holds the in-memory synchronized view: the conversation
// registry, per-conversation message logs, unread counters and the session
// epoch. All types are safe for concurrent use; each guards its data with a
// single mutex and exposes snapshot copies, never internal slices.
package state

import (
	"sort"
	"sync"
	"time"

	"github.com/bbBOZ/jellyspace-sync/internal/domain"
)

// Registry is the authoritative in-memory set of conversations, kept in
// recency order at all times: most recent activity first, conversation id
// as the tiebreak so equal timestamps still order deterministically.
type Registry struct {
	mu    sync.Mutex
	conns []domain.Conversation
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Get returns the conversation with the given id, if present.
func (r *Registry) Get(id string) (domain.Conversation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.conns {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Conversation{}, false
}

// Len returns the number of tracked conversations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Snapshot returns a copy of the registry in recency order.
func (r *Registry) Snapshot() []domain.Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Conversation, len(r.conns))
	copy(out, r.conns)
	return out
}

// Touch records new activity on the conversation with the given id: its
// last-message fields are updated and the registry is re-sorted. It reports
// false when the conversation is unknown, in which case the caller should
// reconcile via Upsert or a full resync.
func (r *Registry) Touch(id, content string, at time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.conns {
		if c.ID == id {
			r.conns[i] = c.WithLastMessage(content, at)
			r.resort()
			return true
		}
	}
	return false
}

// Upsert inserts conv, or overwrites the entry sharing its id, and restores
// recency order.
func (r *Registry) Upsert(conv domain.Conversation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.conns {
		if c.ID == conv.ID {
			r.conns[i] = conv
			r.resort()
			return
		}
	}
	r.conns = append(r.conns, conv)
	r.resort()
}

// Replace swaps the entire registry for conns. Used by resync: the fetched
// set wins wholesale, no per-entry merging.
func (r *Registry) Replace(conns []domain.Conversation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns = make([]domain.Conversation, len(conns))
	copy(r.conns, conns)
	r.resort()
}

// Clear drops every conversation. Called on logout.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns = nil
}

// resort restores recency order. Callers hold r.mu. Conversations that have
// never seen a message sort by creation time instead.
func (r *Registry) resort() {
	sort.SliceStable(r.conns, func(i, j int) bool {
		ti, tj := r.conns[i].ActivityTime(), r.conns[j].ActivityTime()
		if ti.Equal(tj) {
			return r.conns[i].ID < r.conns[j].ID
		}
		return ti.After(tj)
	})
}
