package sync

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"github.com/bbBOZ/jellyspace-sync/internal/cache"
	"github.com/bbBOZ/jellyspace-sync/internal/domain"
)

// Begin starts a session for userID and loads their conversations.
//
// When the cache holds a previous snapshot the registry is painted from it
// immediately — stale or not — and a background resync refreshes it. A
// first-ever load has nothing to paint, so it blocks on the backend under
// the cold-load deadline instead; past the deadline the caller gets
// ErrColdLoadTimeout rather than an indefinite hang.
func (e *Engine) Begin(ctx context.Context, userID string) error {
	ctx, span := e.tracer.Start(ctx, "Engine.Begin")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	e.resetLocalState()
	epoch := e.session.Begin(userID)

	if e.bootstrap != nil {
		if err := e.bootstrap(ctx, userID); err != nil {
			e.log.Warn().Err(err).Msg("session bootstrap failed")
		}
	}

	var cached []domain.Conversation
	_, ok, err := e.cache.Get(ctx, cache.KeyConversations, userID, &cached)
	if err != nil {
		e.log.Warn().Err(err).Msg("conversation cache read failed")
	}
	if ok {
		e.registry.Replace(cached)
		e.scheduleResync("login")
		e.log.Info().Str("user_id", userID).Int("conversations", len(cached)).Msg("session painted from cache")
		return nil
	}

	coldCtx, cancel := context.WithTimeout(ctx, e.coldTimeout)
	defer cancel()
	conns, err := e.backend.ListConversations(coldCtx, userID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrColdLoadTimeout
		}
		return err
	}
	if !e.session.Current(epoch) {
		return nil
	}
	e.registry.Replace(conns)
	e.writeCacheConversations(ctx)
	// The message logs load under the same deadline, partitioned per
	// conversation.
	if err := e.loadConversationMessages(coldCtx, epoch, conns); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrColdLoadTimeout
		}
		return err
	}
	e.log.Info().Str("user_id", userID).Int("conversations", len(conns)).Msg("session cold-loaded")
	return nil
}

// SetActive opens conversationID: its unread count drops to zero and its
// log is painted from cache when possible with a background refresh, or
// cold-loaded otherwise.
func (e *Engine) SetActive(ctx context.Context, conversationID string) error {
	ctx, span := e.tracer.Start(ctx, "Engine.SetActive")
	defer span.End()
	span.SetAttributes(attribute.String("conversation.id", conversationID))

	userID := e.session.UserID()
	if userID == "" {
		return ErrNotSignedIn
	}
	if _, ok := e.registry.Get(conversationID); !ok {
		return ErrUnknownConversation
	}

	epoch := e.session.Epoch()
	e.session.SetActive(conversationID)
	e.unread.MarkActive(conversationID)

	var cached []domain.Message
	_, ok, err := e.cache.Get(ctx, cache.KeyMessages+":"+conversationID, userID, &cached)
	if err != nil {
		e.log.Warn().Err(err).Msg("message cache read failed")
	}
	if ok {
		e.messages.Replace(conversationID, cached)
		e.scheduleResync("conversation_opened")
		return nil
	}

	coldCtx, cancel := context.WithTimeout(ctx, e.coldTimeout)
	defer cancel()
	msgs, err := e.backend.ListMessages(coldCtx, conversationID, messageFetchLimit)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrColdLoadTimeout
		}
		return err
	}
	if !e.session.Current(epoch) {
		return nil
	}
	for i := range msgs {
		msgs[i].Sender = e.profile(ctx, msgs[i].SenderID)
	}
	e.messages.Replace(conversationID, msgs)
	e.writeCacheMessages(ctx, conversationID)
	return nil
}

// End signs the session out: local state and the user's cache scope are
// torn down, and the epoch bump fences any work still in flight.
func (e *Engine) End(ctx context.Context) error {
	userID := e.session.UserID()
	if userID == "" {
		return nil
	}
	if err := e.cache.ClearScope(ctx, userID); err != nil {
		e.log.Warn().Err(err).Msg("cache teardown failed")
	}
	e.session.End()
	e.resetLocalState()
	e.log.Info().Str("user_id", userID).Msg("session ended")
	return nil
}

func (e *Engine) resetLocalState() {
	e.registry.Clear()
	e.messages.Clear()
	e.unread.Clear()
	e.mu.Lock()
	e.profiles = make(map[string]*domain.Profile)
	e.mu.Unlock()
}
