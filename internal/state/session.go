package state

import "sync"

// Session tracks who is signed in, which conversation they have open, and
// an epoch counter that fences stale async work. Every background fetch
// captures the epoch when it starts; Begin bumps the epoch on login and
// logout, so completions from a previous session see a mismatch and drop
// their results instead of writing them into the new session's state.
type Session struct {
	mu       sync.Mutex
	userID   string
	activeID string
	epoch    uint64
}

// NewSession returns a signed-out session at epoch zero.
func NewSession() *Session {
	return &Session{}
}

// Begin starts a session for userID, invalidating any in-flight work from
// the previous one. It returns the new epoch.
func (s *Session) Begin(userID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
	s.activeID = ""
	s.epoch++
	return s.epoch
}

// End signs the session out and bumps the epoch.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = ""
	s.activeID = ""
	s.epoch++
}

// UserID returns the signed-in user, or "" when signed out.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Epoch returns the current epoch.
func (s *Session) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Current reports whether epoch is still the live one. Async completions
// call this before applying their results.
func (s *Session) Current(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch == epoch
}

// SetActive records the conversation the user has open.
func (s *Session) SetActive(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeID = conversationID
}

// ActiveID returns the open conversation, or "" when none is.
func (s *Session) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}
