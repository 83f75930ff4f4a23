package sync

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/bbBOZ/jellyspace-sync/internal/domain"
	"github.com/bbBOZ/jellyspace-sync/internal/observability"
	"github.com/bbBOZ/jellyspace-sync/internal/stream"
)

// HandleEvent reconciles one stream event against local state. Delivery is
// at-least-once, so every step tolerates replays: the registry touch is
// idempotent for equal timestamps, and the active log deduplicates by id.
// The outcome of each event lands on the sync_events_total counter.
func (e *Engine) HandleEvent(ctx context.Context, ev domain.MessageInserted) {
	ctx, span := e.tracer.Start(ctx, "Engine.HandleEvent")
	defer span.End()

	outcome := e.reconcile(ctx, ev)
	span.SetAttributes(
		attribute.String("conversation.id", ev.ConversationID),
		attribute.String("outcome", outcome),
	)
	observability.EventsTotal.WithLabelValues(outcome).Inc()
}

func (e *Engine) reconcile(ctx context.Context, ev domain.MessageInserted) string {
	userID := e.session.UserID()
	if userID == "" {
		return observability.OutcomeDropped
	}

	// The send path already applied this message optimistically; the echo
	// from the feed carries nothing new.
	if ev.SenderID == userID {
		return observability.OutcomeEcho
	}

	// Every conversation's log gets the message, open or not; a replay is
	// detected here and nothing downstream of it runs, so a duplicate can
	// never bump an unread counter.
	msg := ev.Message(e.profile(ctx, ev.SenderID))
	if !e.messages.Append(msg) {
		return observability.OutcomeDuplicate
	}
	e.writeCacheMessages(ctx, ev.ConversationID)

	if !e.registry.Touch(ev.ConversationID, ev.Content, ev.CreatedAt) {
		// A conversation we have never seen — created elsewhere since the
		// last sync. Only a full resync can recover its metadata.
		e.log.Info().Str("conversation_id", ev.ConversationID).Msg("event for unknown conversation, scheduling resync")
		e.scheduleResync("unknown_conversation")
		return observability.OutcomeUnknownConv
	}

	var outcome string
	if ev.ConversationID == e.session.ActiveID() {
		outcome = observability.OutcomeAppended
	} else {
		e.unread.Increment(ev.ConversationID)
		outcome = observability.OutcomeUnread
	}
	e.writeCacheConversations(ctx)

	// An incoming message in a conversation with a generative participant
	// gets a reply, unless it came from that participant itself. The lock
	// inside Trigger collapses event bursts into a single generation.
	if conv, ok := e.registry.Get(ev.ConversationID); ok && conv.HasResponder &&
		e.responder != nil && ev.SenderID != e.responder.BotID() {
		e.triggerResponder(ev.ConversationID, ev.Content)
	}
	return outcome
}

// HandleStreamStatus tracks feed connectivity. A transition to connected
// after any disconnect forces a full resync: events may have been missed
// while the link was down, and reconciliation alone cannot recover them.
func (e *Engine) HandleStreamStatus(s stream.Status) {
	e.mu.Lock()
	prev := e.streamStatus
	e.streamStatus = s
	wasDown := e.sawDisconnect
	if s == stream.StatusDisconnected {
		e.sawDisconnect = true
	}
	e.mu.Unlock()

	if s == stream.StatusConnected {
		observability.StreamConnected.Set(1)
	} else {
		observability.StreamConnected.Set(0)
	}

	e.log.Info().Str("from", string(prev)).Str("to", string(s)).Msg("stream status changed")

	if s == stream.StatusConnected && wasDown {
		e.mu.Lock()
		e.sawDisconnect = false
		e.mu.Unlock()
		e.scheduleResync("reconnect")
	}
}

// scheduleResync runs a resync in the background under the current epoch.
func (e *Engine) scheduleResync(reason string) {
	epoch := e.session.Epoch()
	e.async(func() {
		if err := e.resync(context.Background(), epoch, reason); err != nil {
			e.log.Warn().Err(err).Str("reason", reason).Msg("background resync failed")
		}
	})
}
