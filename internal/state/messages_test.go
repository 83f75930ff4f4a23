package state

import (
	"testing"
	"time"

	"github.com/bbBOZ/jellyspace-sync/internal/domain"
)

func msg(id, convID, content string) domain.Message {
	return domain.Message{
		ID:             id,
		ConversationID: convID,
		SenderID:       "u1",
		Content:        content,
		Kind:           domain.MessageText,
		CreatedAt:      time.Now().UTC(),
	}
}

func TestMessageStoreDedupPerConversation(t *testing.T) {
	s := NewMessageStore()

	if !s.Append(msg("m1", "c1", "hello")) {
		t.Fatal("first append rejected")
	}
	if s.Append(msg("m1", "c1", "hello")) {
		t.Fatal("duplicate id accepted")
	}
	// The same id in another conversation is a different message.
	if !s.Append(msg("m1", "c2", "hello")) {
		t.Fatal("same id in another conversation rejected")
	}
	if s.Len("c1") != 1 || s.Len("c2") != 1 {
		t.Fatalf("lens = %d/%d after duplicate append", s.Len("c1"), s.Len("c2"))
	}
}

func TestMessageStorePartitionsByConversation(t *testing.T) {
	s := NewMessageStore()
	s.Append(msg("m1", "c1", "a"))
	s.Append(msg("m2", "c2", "b"))
	s.Append(msg("m3", "c1", "c"))

	c1 := s.Snapshot("c1")
	if len(c1) != 2 || c1[0].ID != "m1" || c1[1].ID != "m3" {
		t.Fatalf("c1 = %v", c1)
	}
	if s.Len("c2") != 1 {
		t.Fatalf("c2 len = %d", s.Len("c2"))
	}
	// An untouched conversation has an empty, non-nil log.
	if got := s.Snapshot("c3"); got == nil || len(got) != 0 {
		t.Fatalf("c3 = %v", got)
	}
}

func TestMessageStoreReplaceSeedsDedup(t *testing.T) {
	s := NewMessageStore()
	s.Replace("c1", []domain.Message{msg("m1", "c1", "a"), msg("m2", "c1", "b")})

	// Replace seeds the dedup set from its contents.
	if s.Append(msg("m2", "c1", "b")) {
		t.Fatal("replaced contents not deduplicated")
	}
	if !s.Append(msg("m3", "c1", "c")) {
		t.Fatal("fresh append rejected")
	}

	got := s.Snapshot("c1")
	if len(got) != 3 || got[2].ID != "m3" {
		t.Fatalf("snapshot = %v", got)
	}
}

func TestMessageStoreReplaceLeavesOthersAlone(t *testing.T) {
	s := NewMessageStore()
	s.Append(msg("m1", "c1", "a"))
	s.Replace("c2", []domain.Message{msg("m2", "c2", "b")})

	if s.Len("c1") != 1 || s.Len("c2") != 1 {
		t.Fatalf("lens = %d/%d", s.Len("c1"), s.Len("c2"))
	}
}

func TestMessageStoreClear(t *testing.T) {
	s := NewMessageStore()
	s.Append(msg("m1", "c1", "a"))
	s.Append(msg("m2", "c2", "b"))
	s.Clear()

	if s.Len("c1") != 0 || s.Len("c2") != 0 {
		t.Fatalf("clear left %d/%d", s.Len("c1"), s.Len("c2"))
	}
}
