package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/bbBOZ/jellyspace-sync/internal/config"
	"github.com/bbBOZ/jellyspace-sync/internal/domain"
)

func testConfig(url string) config.StreamConfig {
	return config.StreamConfig{
		URL:             url,
		EventsPerSecond: 50,
		ReconnectBase:   10 * time.Millisecond,
		ReconnectMax:    50 * time.Millisecond,
		MaxAttempts:     3,
	}
}

// feedServer accepts one WebSocket client and writes each queued frame.
func feedServer(t *testing.T, frames ...[]byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		ctx := r.Context()
		for _, f := range frames {
			if err := conn.Write(ctx, websocket.MessageText, f); err != nil {
				return
			}
		}
		// Hold the connection open until the client goes away.
		conn.Read(ctx)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func envelope(t *testing.T, typ string, payload any) []byte {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	data, err := json.Marshal(Envelope{Type: typ, Payload: raw})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return data
}

func TestSubscriberDeliversMessageInserted(t *testing.T) {
	ev := domain.MessageInserted{
		ID:             "m1",
		ConversationID: "c1",
		SenderID:       "u2",
		Content:        "hello",
		CreatedAt:      time.Now().UTC(),
	}
	srv := feedServer(t,
		envelope(t, "presence.changed", map[string]string{"userId": "u9"}),
		envelope(t, EventMessageInserted, ev),
	)

	sub := NewSubscriber(testConfig(srv.URL), zerolog.Nop())
	got := make(chan domain.MessageInserted, 4)
	sub.OnEvent(func(e domain.MessageInserted) { got <- e })

	if err := sub.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer sub.Close()

	select {
	case e := <-got:
		if e.ID != "m1" || e.ConversationID != "c1" {
			t.Fatalf("delivered %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}

	// The unknown event type was dropped, not delivered.
	select {
	case e := <-got:
		t.Fatalf("unexpected extra event %+v", e)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscriberStatusTransitions(t *testing.T) {
	srv := feedServer(t)

	sub := NewSubscriber(testConfig(srv.URL), zerolog.Nop())
	var mu sync.Mutex
	var seen []Status
	sub.OnStatus(func(s Status) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	if sub.Status() != StatusDisconnected {
		t.Fatalf("initial status = %s", sub.Status())
	}
	if err := sub.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if sub.Status() != StatusConnected {
		t.Fatalf("status after connect = %s", sub.Status())
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if sub.Status() != StatusDisconnected {
		t.Fatalf("status after close = %s", sub.Status())
	}

	mu.Lock()
	defer mu.Unlock()
	want := []Status{StatusConnecting, StatusConnected, StatusDisconnected}
	if len(seen) != len(want) {
		t.Fatalf("transitions = %v", seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", seen, want)
		}
	}
}

func TestSubscriberDialFailure(t *testing.T) {
	sub := NewSubscriber(testConfig("http://example.invalid"), zerolog.Nop())
	sub.dial = func(ctx context.Context, url string) (*websocket.Conn, error) {
		return nil, errors.New("refused")
	}

	var mu sync.Mutex
	var seen []Status
	sub.OnStatus(func(s Status) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	if err := sub.Connect(context.Background()); err == nil {
		t.Fatal("connect succeeded against dead feed")
	}
	if sub.Status() != StatusDisconnected {
		t.Fatalf("status = %s", sub.Status())
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != StatusConnecting || seen[1] != StatusDisconnected {
		t.Fatalf("transitions = %v", seen)
	}
}

func TestReconnectorBackoffGrowsAndCaps(t *testing.T) {
	r := newReconnector(time.Second, 8*time.Second, 0)

	prev := time.Duration(0)
	for i := 0; i < 6; i++ {
		d := r.nextDelay()
		if d < prev && prev < 8*time.Second {
			t.Fatalf("delay shrank early: attempt %d gave %v after %v", i, d, prev)
		}
		if d > 8*time.Second {
			t.Fatalf("delay %v exceeds cap", d)
		}
		prev = d
	}
	if prev != 8*time.Second {
		t.Fatalf("delay never reached cap: %v", prev)
	}
}

func TestReconnectorStableConnectionResetsAttempts(t *testing.T) {
	r := newReconnector(time.Second, 30*time.Second, 0)
	for i := 0; i < 5; i++ {
		r.nextDelay()
	}

	// A connection that held for over a minute starts the ladder over.
	r.connectedAt = time.Now().Add(-2 * time.Minute)
	d := r.nextDelay()
	if d >= 2*time.Second {
		t.Fatalf("delay %v after stable connection, want near base", d)
	}
}

func TestReconnectorAttemptBudget(t *testing.T) {
	r := newReconnector(time.Millisecond, time.Millisecond, 2)
	if !r.shouldRetry() {
		t.Fatal("fresh reconnector refused to retry")
	}
	r.nextDelay()
	r.nextDelay()
	if r.shouldRetry() {
		t.Fatal("retry allowed past the attempt budget")
	}
	r.reset()
	if !r.shouldRetry() {
		t.Fatal("reset did not restore the budget")
	}
}

func TestWSURL(t *testing.T) {
	if got := wsURL("https://feed.example.com/v1"); got != "wss://feed.example.com/v1" {
		t.Fatalf("wsURL https = %q", got)
	}
	if got := wsURL("http://127.0.0.1:9000"); got != "ws://127.0.0.1:9000" {
		t.Fatalf("wsURL http = %q", got)
	}
}
