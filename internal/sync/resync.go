package sync

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/bbBOZ/jellyspace-sync/internal/domain"
	"github.com/bbBOZ/jellyspace-sync/internal/observability"
)

// messageFetchLimit bounds how many messages a resync or conversation
// switch pulls per conversation.
const messageFetchLimit = 200

// Resync fetches the full state from the backend and replaces local state
// wholesale. No merging: the fetched set wins, and anything local that the
// backend no longer knows about disappears with it.
func (e *Engine) Resync(ctx context.Context) error {
	return e.resync(ctx, e.session.Epoch(), "manual")
}

func (e *Engine) resync(ctx context.Context, epoch uint64, reason string) error {
	ctx, span := e.tracer.Start(ctx, "Engine.Resync")
	defer span.End()
	span.SetAttributes(attribute.String("reason", reason))

	userID := e.session.UserID()
	if userID == "" || !e.session.Current(epoch) {
		return ErrNotSignedIn
	}

	start := time.Now()
	conns, err := e.backend.ListConversations(ctx, userID)
	if err != nil {
		return err
	}

	// The fetch may have raced a logout or re-login; a stale epoch means
	// the results belong to a session that no longer exists.
	if !e.session.Current(epoch) {
		e.log.Debug().Uint64("epoch", epoch).Msg("resync result discarded, session changed")
		return nil
	}

	e.registry.Replace(conns)
	e.writeCacheConversations(ctx)

	if err := e.loadConversationMessages(ctx, epoch, conns); err != nil {
		return err
	}

	observability.ResyncsTotal.WithLabelValues(reason).Inc()
	observability.ResyncDuration.Observe(time.Since(start).Seconds())
	e.log.Info().Str("reason", reason).Int("conversations", len(conns)).Msg("resync complete")
	return nil
}

// loadConversationMessages fetches every conversation's log and replaces
// the stored partitions wholesale. Results arriving after a session
// change are discarded.
func (e *Engine) loadConversationMessages(ctx context.Context, epoch uint64, conns []domain.Conversation) error {
	for _, c := range conns {
		fetched, err := e.backend.ListMessages(ctx, c.ID, messageFetchLimit)
		if err != nil {
			return err
		}
		if !e.session.Current(epoch) {
			return nil
		}
		for i := range fetched {
			fetched[i].Sender = e.profile(ctx, fetched[i].SenderID)
		}
		e.messages.Replace(c.ID, fetched)
		e.writeCacheMessages(ctx, c.ID)
	}
	return nil
}
