package domain

import (
	"testing"
	"time"
)

func TestConversation_ActivityTime_FallsBackToCreatedAt(t *testing.T) {
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	c := Conversation{ID: "c1", CreatedAt: created}
	if got := c.ActivityTime(); !got.Equal(created) {
		t.Fatalf("want createdAt fallback %v, got %v", created, got)
	}

	last := created.Add(2 * time.Hour)
	c.LastMessageAt = last
	if got := c.ActivityTime(); !got.Equal(last) {
		t.Fatalf("want lastMessageAt %v, got %v", last, got)
	}
}

func TestConversation_WithLastMessage_DoesNotMutateReceiver(t *testing.T) {
	orig := Conversation{ID: "c1", LastMessage: "old"}
	at := time.Now().UTC()

	updated := orig.WithLastMessage("new", at)

	if orig.LastMessage != "old" || !orig.LastMessageAt.IsZero() {
		t.Fatalf("receiver mutated: %+v", orig)
	}
	if updated.LastMessage != "new" || !updated.LastMessageAt.Equal(at) {
		t.Fatalf("unexpected copy: %+v", updated)
	}
}

func TestConversation_HasMember(t *testing.T) {
	c := Conversation{MemberIDs: []string{"u1", "u2"}}
	if !c.HasMember("u2") {
		t.Fatal("expected u2 to be a member")
	}
	if c.HasMember("u3") {
		t.Fatal("u3 must not be a member")
	}
}

func TestMessageInserted_Message_DefaultsKind(t *testing.T) {
	ev := MessageInserted{
		ID:             "m1",
		ConversationID: "c1",
		SenderID:       "u1",
		Content:        "hi",
		CreatedAt:      time.Now().UTC(),
	}
	m := ev.Message(nil)
	if m.Kind != MessageText {
		t.Fatalf("want default kind %q, got %q", MessageText, m.Kind)
	}
	if m.ID != "m1" || m.ConversationID != "c1" || m.Content != "hi" {
		t.Fatalf("normalization lost fields: %+v", m)
	}
}

func TestPlaceholderProfile(t *testing.T) {
	p := PlaceholderProfile("u9")
	if p.ID != "u9" || p.Username == "" {
		t.Fatalf("unexpected placeholder: %+v", p)
	}
}
