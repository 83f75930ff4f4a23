package state

import (
	"sync"

	"github.com/bbBOZ/jellyspace-sync/internal/domain"
)

// MessageStore holds one ordered message log per conversation. Append
// deduplicates by message id within its conversation, which makes
// delivery idempotent: the same event applied twice leaves one message
// behind, whether or not that conversation is currently open.
type MessageStore struct {
	mu   sync.Mutex
	logs map[string]*messageLog
}

type messageLog struct {
	msgs []domain.Message
	seen map[string]struct{}
}

// NewMessageStore returns an empty store.
func NewMessageStore() *MessageStore {
	return &MessageStore{logs: make(map[string]*messageLog)}
}

// Append adds msg to its conversation's log and reports whether it was
// new. A message whose id is already present in that log is dropped.
func (s *MessageStore) Append(msg domain.Message) bool {
	if msg.ConversationID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.logs[msg.ConversationID]
	if !ok {
		l = &messageLog{seen: make(map[string]struct{})}
		s.logs[msg.ConversationID] = l
	}
	if _, dup := l.seen[msg.ID]; dup {
		return false
	}
	l.seen[msg.ID] = struct{}{}
	l.msgs = append(l.msgs, msg)
	return true
}

// Replace swaps conversationID's log for msgs wholesale. Resync and
// cache paints land here.
func (s *MessageStore) Replace(conversationID string, msgs []domain.Message) {
	l := &messageLog{
		msgs: make([]domain.Message, len(msgs)),
		seen: make(map[string]struct{}, len(msgs)),
	}
	copy(l.msgs, msgs)
	for _, m := range msgs {
		l.seen[m.ID] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[conversationID] = l
}

// Snapshot returns a copy of conversationID's log in append order. A
// conversation with no log yet yields an empty slice.
func (s *MessageStore) Snapshot(conversationID string) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.logs[conversationID]
	if !ok {
		return []domain.Message{}
	}
	out := make([]domain.Message, len(l.msgs))
	copy(out, l.msgs)
	return out
}

// Len returns the number of messages held for conversationID.
func (s *MessageStore) Len(conversationID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.logs[conversationID]
	if !ok {
		return 0
	}
	return len(l.msgs)
}

// Clear drops every log.
func (s *MessageStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = make(map[string]*messageLog)
}
