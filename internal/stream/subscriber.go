package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"

	"github.com/bbBOZ/jellyspace-sync/internal/config"
	"github.com/bbBOZ/jellyspace-sync/internal/domain"
)

// EventMessageInserted is the only event type the subscriber decodes.
// Unknown event types are dropped without error so the feed can grow
// without breaking older consumers.
const EventMessageInserted = "message.inserted"

// Envelope is the wire format of every feed event.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// EventHandler receives decoded message-inserted events. Delivery is
// at-least-once: the same event may arrive more than once and handlers
// must tolerate duplicates.
type EventHandler func(ev domain.MessageInserted)

// StatusHandler receives connection status transitions. Handlers are
// called synchronously, in transition order, from the subscriber's own
// goroutines; they must not block.
type StatusHandler func(s Status)

// Subscriber maintains a WebSocket subscription to the event feed with
// automatic reconnect. Events are dispatched through a rate limiter so a
// burst on the wire cannot stampede the sync engine.
type Subscriber struct {
	cfg   config.StreamConfig
	log   zerolog.Logger
	recon *reconnector
	limit *rate.Limiter

	onEvent  EventHandler
	onStatus StatusHandler

	mu               sync.Mutex
	conn             *websocket.Conn
	status           Status
	intentionalClose bool
	cancel           context.CancelFunc

	// dial is a test seam over websocket.Dial.
	dial func(ctx context.Context, url string) (*websocket.Conn, error)
}

// NewSubscriber returns an unconnected subscriber.
func NewSubscriber(cfg config.StreamConfig, log zerolog.Logger) *Subscriber {
	eps := cfg.EventsPerSecond
	if eps <= 0 {
		eps = 10
	}
	burst := int(eps)
	if burst < 1 {
		burst = 1
	}
	return &Subscriber{
		cfg:    cfg,
		log:    log.With().Str("component", "stream").Logger(),
		recon:  newReconnector(cfg.ReconnectBase, cfg.ReconnectMax, cfg.MaxAttempts),
		limit:  rate.NewLimiter(rate.Limit(eps), burst),
		status: StatusDisconnected,
		dial: func(ctx context.Context, url string) (*websocket.Conn, error) {
			c, _, err := websocket.Dial(ctx, url, nil)
			return c, err
		},
	}
}

// OnEvent registers the event handler. Must be called before Connect.
func (s *Subscriber) OnEvent(h EventHandler) { s.onEvent = h }

// OnStatus registers the status handler. Must be called before Connect.
func (s *Subscriber) OnStatus(h StatusHandler) { s.onStatus = h }

// Status returns the current connection status.
func (s *Subscriber) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Connect dials the feed and starts the read loop. It is a no-op when a
// connection attempt is already underway or established.
func (s *Subscriber) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.status != StatusDisconnected {
		s.mu.Unlock()
		return nil
	}
	s.intentionalClose = false
	s.mu.Unlock()
	s.setStatus(StatusConnecting)

	conn, err := s.dial(ctx, wsURL(s.cfg.URL))
	if err != nil {
		s.setStatus(StatusDisconnected)
		return fmt.Errorf("stream dial: %w", err)
	}

	connCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.conn = conn
	s.cancel = cancel
	s.mu.Unlock()
	s.recon.markConnected()
	s.setStatus(StatusConnected)
	s.log.Info().Str("url", s.cfg.URL).Msg("stream connected")

	go s.readLoop(connCtx, conn)
	return nil
}

// Close tears the subscription down for good. No reconnect follows, and
// the final status is disconnected.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	s.intentionalClose = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	s.setStatus(StatusDisconnected)

	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "subscriber closed")
	}
	return nil
}

func (s *Subscriber) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			s.mu.Lock()
			intentional := s.intentionalClose
			s.conn = nil
			s.mu.Unlock()
			if intentional {
				return
			}
			s.setStatus(StatusDisconnected)
			s.log.Warn().Err(err).Msg("stream read failed")
			s.reconnectLoop(ctx)
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.log.Debug().Err(err).Msg("undecodable frame dropped")
			continue
		}
		if env.Type != EventMessageInserted {
			continue
		}
		var ev domain.MessageInserted
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			s.log.Debug().Err(err).Msg("bad message.inserted payload dropped")
			continue
		}

		if err := s.limit.Wait(ctx); err != nil {
			return
		}
		if s.onEvent != nil {
			s.onEvent(ev)
		}
	}
}

// reconnectLoop retries Connect with backoff until it succeeds, the
// attempt budget runs out, or the subscription is closed.
func (s *Subscriber) reconnectLoop(ctx context.Context) {
	for s.recon.shouldRetry() {
		delay := s.recon.nextDelay()
		s.log.Info().Dur("delay", delay).Msg("stream reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		s.mu.Lock()
		if s.intentionalClose {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		if err := s.Connect(context.WithoutCancel(ctx)); err == nil {
			return
		}
	}
	s.log.Error().Msg("stream reconnect attempts exhausted")
}

func (s *Subscriber) setStatus(next Status) {
	s.mu.Lock()
	if s.status == next {
		s.mu.Unlock()
		return
	}
	s.status = next
	h := s.onStatus
	s.mu.Unlock()
	if h != nil {
		h(next)
	}
}

func wsURL(u string) string {
	u = strings.Replace(u, "https://", "wss://", 1)
	return strings.Replace(u, "http://", "ws://", 1)
}
