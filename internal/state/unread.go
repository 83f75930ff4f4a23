package state

import "sync"

// UnreadTracker counts messages that arrived in conversations the user is
// not looking at. There are exactly two ways a count changes: Increment,
// when an incoming message lands in an inactive conversation, and
// MarkActive, which zeroes the count of the conversation being opened.
// Nothing else mutates the counters.
type UnreadTracker struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewUnreadTracker returns a tracker with no unread conversations.
func NewUnreadTracker() *UnreadTracker {
	return &UnreadTracker{counts: make(map[string]int)}
}

// Increment bumps the unread count for conversationID.
func (t *UnreadTracker) Increment(conversationID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[conversationID]++
}

// MarkActive clears the unread count for conversationID.
func (t *UnreadTracker) MarkActive(conversationID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.counts, conversationID)
}

// Count returns the unread count for conversationID.
func (t *UnreadTracker) Count(conversationID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[conversationID]
}

// Counts returns a copy of every non-zero counter.
func (t *UnreadTracker) Counts() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int, len(t.counts))
	for id, n := range t.counts {
		out[id] = n
	}
	return out
}

// Clear drops all counters. Called on logout.
func (t *UnreadTracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts = make(map[string]int)
}
