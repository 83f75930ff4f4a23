package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bbBOZ/jellyspace-sync/internal/domain"
)

type fakeGenerator struct {
	mu      sync.Mutex
	calls   int
	history []Turn
	reply   string
	err     error
	block   chan struct{} // when set, Reply waits until closed
}

func (g *fakeGenerator) Reply(ctx context.Context, userMessage string, history []Turn) (string, error) {
	g.mu.Lock()
	g.calls++
	g.history = history
	block := g.block
	g.mu.Unlock()
	if block != nil {
		<-block
	}
	return g.reply, g.err
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fakeSender struct {
	mu   sync.Mutex
	sent []domain.Message
	err  error
}

func (s *fakeSender) SendMessage(ctx context.Context, conversationID, senderID, content, kind, mediaURL string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	m := domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Kind:           kind,
		CreatedAt:      time.Now().UTC(),
	}
	s.sent = append(s.sent, m)
	return &m, nil
}

func (s *fakeSender) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func newTestResponder(gen Generator, sender Sender) *Responder {
	return NewResponder(gen, sender, "jelly", DefaultHistoryLimit, zerolog.Nop())
}

func TestTriggerRepliesAsBot(t *testing.T) {
	gen := &fakeGenerator{reply: "hello there"}
	sender := &fakeSender{}
	r := newTestResponder(gen, sender)

	msg, ran, err := r.Trigger(context.Background(), "c1", "hi", nil)
	if err != nil || !ran {
		t.Fatalf("trigger: ran=%v err=%v", ran, err)
	}
	if msg.SenderID != "jelly" || msg.Content != "hello there" {
		t.Fatalf("reply = %+v", msg)
	}
	if msg.ConversationID != "c1" {
		t.Fatalf("reply conversation = %q", msg.ConversationID)
	}
}

func TestTriggerSingleFlightPerConversation(t *testing.T) {
	gen := &fakeGenerator{reply: "slow", block: make(chan struct{})}
	sender := &fakeSender{}
	r := newTestResponder(gen, sender)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, ran, err := r.Trigger(context.Background(), "c1", "first", nil); !ran || err != nil {
			t.Errorf("first trigger: ran=%v err=%v", ran, err)
		}
	}()

	// Wait for the first trigger to take the lock.
	deadline := time.After(2 * time.Second)
	for !r.Busy("c1") {
		select {
		case <-deadline:
			t.Fatal("first trigger never took the lock")
		case <-time.After(time.Millisecond):
		}
	}

	// A burst while one reply is in flight is dropped, not queued.
	if _, ran, err := r.Trigger(context.Background(), "c1", "second", nil); ran || err != nil {
		t.Fatalf("burst trigger: ran=%v err=%v", ran, err)
	}

	// A different conversation is unaffected.
	if r.Busy("c2") {
		t.Fatal("unrelated conversation reported busy")
	}

	close(gen.block)
	<-done

	if got := gen.callCount(); got != 1 {
		t.Fatalf("generator called %d times for a burst", got)
	}
	if got := sender.sentCount(); got != 1 {
		t.Fatalf("%d replies sent for a burst", got)
	}
}

func TestTriggerLockReleasedAfterCompletion(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	sender := &fakeSender{}
	r := newTestResponder(gen, sender)

	if _, ran, _ := r.Trigger(context.Background(), "c1", "one", nil); !ran {
		t.Fatal("first trigger did not run")
	}
	if r.Busy("c1") {
		t.Fatal("lock held after completion")
	}
	if _, ran, _ := r.Trigger(context.Background(), "c1", "two", nil); !ran {
		t.Fatal("second trigger blocked by stale lock")
	}
	if got := sender.sentCount(); got != 2 {
		t.Fatalf("sent %d replies", got)
	}
}

func TestTriggerFallbackOnGeneratorError(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("upstream down")}
	sender := &fakeSender{}
	r := newTestResponder(gen, sender)

	msg, ran, err := r.Trigger(context.Background(), "c1", "hi", nil)
	if err != nil || !ran {
		t.Fatalf("trigger: ran=%v err=%v", ran, err)
	}
	if msg.Content != FallbackReply {
		t.Fatalf("fallback content = %q", msg.Content)
	}
	if r.Busy("c1") {
		t.Fatal("lock held after fallback")
	}
}

func TestTriggerLockReleasedOnSendFailure(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	sender := &fakeSender{err: errors.New("db closed")}
	r := newTestResponder(gen, sender)

	if _, ran, err := r.Trigger(context.Background(), "c1", "hi", nil); !ran || err == nil {
		t.Fatalf("trigger: ran=%v err=%v", ran, err)
	}
	if r.Busy("c1") {
		t.Fatal("lock held after send failure")
	}
}

func TestTriggerHistoryWindowAndRoles(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	sender := &fakeSender{}
	r := NewResponder(gen, sender, "jelly", 3, zerolog.Nop())

	history := []domain.Message{
		{ID: "m1", SenderID: "u1", Content: "oldest"},
		{ID: "m2", SenderID: "jelly", Content: "a"},
		{ID: "m3", SenderID: "u1", Content: "b"},
		{ID: "m4", SenderID: "jelly", Content: "c"},
	}
	if _, ran, err := r.Trigger(context.Background(), "c1", "hi", history); !ran || err != nil {
		t.Fatalf("trigger: ran=%v err=%v", ran, err)
	}

	gen.mu.Lock()
	defer gen.mu.Unlock()
	if len(gen.history) != 3 {
		t.Fatalf("history window len = %d, want 3", len(gen.history))
	}
	if gen.history[0].Content != "a" {
		t.Fatalf("window dropped wrong end: %+v", gen.history)
	}
	if !gen.history[0].FromResponder || gen.history[1].FromResponder {
		t.Fatalf("roles mislabelled: %+v", gen.history)
	}
}
