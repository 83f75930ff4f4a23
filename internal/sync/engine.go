// Package sync implements the reconciliation engine: the single writer of
// all in-memory conversation state. Stream events, user actions and resync
// results all funnel through the engine, which applies them to the
// registry, the per-conversation message logs and the unread counters, and writes the
// result through to the local cache. Everything else in the process reads
// snapshots; nothing else mutates.
package sync

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/bbBOZ/jellyspace-sync/internal/bot"
	"github.com/bbBOZ/jellyspace-sync/internal/cache"
	"github.com/bbBOZ/jellyspace-sync/internal/domain"
	"github.com/bbBOZ/jellyspace-sync/internal/state"
	"github.com/bbBOZ/jellyspace-sync/internal/stream"
)

// Backend is the engine's view of the source of truth. repo.Store
// satisfies it; a remote client could equally.
type Backend interface {
	SendMessage(ctx context.Context, conversationID, senderID, content, kind, mediaURL string) (*domain.Message, error)
	ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error)
	ListMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
}

// Engine reconciles the at-least-once event stream against local state.
type Engine struct {
	backend   Backend
	cache     *cache.Store
	responder *bot.Responder // nil when the autoresponder is disabled
	bootstrap func(ctx context.Context, userID string) error
	log       zerolog.Logger
	tracer    trace.Tracer

	coldTimeout time.Duration

	session  *state.Session
	registry *state.Registry
	messages *state.MessageStore
	unread   *state.UnreadTracker

	mu            sync.Mutex
	streamStatus  stream.Status
	sawDisconnect bool
	profiles      map[string]*domain.Profile

	// async runs background work; tests replace it to run inline.
	async func(fn func())
}

// Options carries the engine's optional collaborators and tunables.
type Options struct {
	Responder *bot.Responder

	// Bootstrap runs at the start of every session, before the first
	// load. Used to guarantee per-user fixtures such as the responder
	// conversation. Failures are logged, not fatal.
	Bootstrap func(ctx context.Context, userID string) error

	ColdTimeout time.Duration
}

// NewEngine builds an engine over backend and cacheStore.
func NewEngine(backend Backend, cacheStore *cache.Store, log zerolog.Logger, opts Options) *Engine {
	if opts.ColdTimeout <= 0 {
		opts.ColdTimeout = 15 * time.Second
	}
	return &Engine{
		backend:     backend,
		cache:       cacheStore,
		responder:   opts.Responder,
		bootstrap:   opts.Bootstrap,
		log:         log.With().Str("component", "sync").Logger(),
		tracer:      otel.Tracer("sync/engine"),
		coldTimeout: opts.ColdTimeout,
		session:     state.NewSession(),
		registry:    state.NewRegistry(),
		messages:    state.NewMessageStore(),
		unread:      state.NewUnreadTracker(),
		profiles:    make(map[string]*domain.Profile),
		async:       func(fn func()) { go fn() },
	}
}

// Conversations returns the registry snapshot in recency order.
func (e *Engine) Conversations() []domain.Conversation {
	return e.registry.Snapshot()
}

// ActiveMessages returns the active conversation's messages in order.
func (e *Engine) ActiveMessages() []domain.Message {
	return e.messages.Snapshot(e.session.ActiveID())
}

// UnreadCounts returns the non-zero unread counters.
func (e *Engine) UnreadCounts() map[string]int {
	return e.unread.Counts()
}

// UserID returns the signed-in user, or "" when signed out.
func (e *Engine) UserID() string {
	return e.session.UserID()
}

// ActiveConversationID returns the open conversation, or "" when none is.
func (e *Engine) ActiveConversationID() string {
	return e.session.ActiveID()
}

// StreamStatus returns the last connection status reported by the feed.
func (e *Engine) StreamStatus() stream.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.streamStatus == "" {
		return stream.StatusDisconnected
	}
	return e.streamStatus
}

// profile resolves a sender for display: the in-memory memo first, then
// the cache, then the backend, with a write-through on a backend hit.
// Unknown senders get a placeholder so a message never waits on a
// profile fetch.
func (e *Engine) profile(ctx context.Context, userID string) *domain.Profile {
	e.mu.Lock()
	if p, ok := e.profiles[userID]; ok {
		e.mu.Unlock()
		return p
	}
	e.mu.Unlock()

	scope := e.session.UserID()
	key := cache.KeyProfile + ":" + userID

	if scope != "" {
		var cached domain.Profile
		// Stale profiles are fine for display.
		if _, ok, err := e.cache.Get(ctx, key, scope, &cached); err == nil && ok {
			p := cached
			e.mu.Lock()
			e.profiles[userID] = &p
			e.mu.Unlock()
			return &p
		}
	}

	p, err := e.backend.GetProfile(ctx, userID)
	if err != nil || p == nil {
		return domain.PlaceholderProfile(userID)
	}
	e.mu.Lock()
	e.profiles[userID] = p
	e.mu.Unlock()
	if scope != "" {
		if err := e.cache.Set(ctx, key, scope, p); err != nil {
			e.log.Warn().Err(err).Msg("profile cache write failed")
		}
	}
	return p
}

// writeCache persists the registry snapshot for the signed-in user. Cache
// failures are logged, never surfaced: the cache is an accelerator, not a
// dependency.
func (e *Engine) writeCacheConversations(ctx context.Context) {
	userID := e.session.UserID()
	if userID == "" {
		return
	}
	if err := e.cache.Set(ctx, cache.KeyConversations, userID, e.registry.Snapshot()); err != nil {
		e.log.Warn().Err(err).Msg("conversation cache write failed")
	}
}

func (e *Engine) writeCacheMessages(ctx context.Context, conversationID string) {
	userID := e.session.UserID()
	if userID == "" || conversationID == "" {
		return
	}
	if err := e.cache.Set(ctx, cache.KeyMessages+":"+conversationID, userID, e.messages.Snapshot(conversationID)); err != nil {
		e.log.Warn().Err(err).Msg("message cache write failed")
	}
}
