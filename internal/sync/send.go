package sync

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/bbBOZ/jellyspace-sync/internal/bot"
	"github.com/bbBOZ/jellyspace-sync/internal/domain"
	"github.com/bbBOZ/jellyspace-sync/internal/observability"
)

// Send persists a message and applies it locally without waiting for the
// feed echo: the message log, registry order and cache all update before
// Send returns. The echo arriving later is suppressed as our own. Unread
// counters are untouched — sending is not receiving.
func (e *Engine) Send(ctx context.Context, conversationID, content, kind, mediaURL string) (*domain.Message, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.Send")
	defer span.End()
	span.SetAttributes(attribute.String("conversation.id", conversationID))

	userID := e.session.UserID()
	if userID == "" {
		return nil, ErrNotSignedIn
	}
	if kind == "" {
		kind = domain.MessageText
	}
	if kind == domain.MessageText && strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	conv, ok := e.registry.Get(conversationID)
	if !ok {
		return nil, ErrUnknownConversation
	}

	msg, err := e.backend.SendMessage(ctx, conversationID, userID, content, kind, mediaURL)
	if err != nil {
		return nil, err
	}
	observability.MessagesSentTotal.Inc()

	echo := *msg
	echo.Sender = e.profile(ctx, userID)
	e.messages.Append(echo)
	e.writeCacheMessages(ctx, conversationID)
	e.registry.Touch(conversationID, msg.Content, msg.CreatedAt)
	e.writeCacheConversations(ctx)

	if conv.HasResponder && e.responder != nil && userID != e.responder.BotID() {
		e.triggerResponder(conversationID, content)
	}
	return msg, nil
}

// triggerResponder runs the autoresponder in the background and applies
// its reply under the sending session's epoch. The reply also arrives via
// the feed eventually; the log's dedup makes applying it here safe.
func (e *Engine) triggerResponder(conversationID, userMessage string) {
	epoch := e.session.Epoch()
	history := e.messages.Snapshot(conversationID)

	e.async(func() {
		ctx := context.Background()
		reply, ran, err := e.responder.Trigger(ctx, conversationID, userMessage, history)
		if err != nil || !ran || reply == nil {
			return
		}
		result := "generated"
		if reply.Content == bot.FallbackReply {
			result = "fallback"
		}
		observability.BotRepliesTotal.WithLabelValues(result).Inc()

		if !e.session.Current(epoch) {
			return
		}
		// Apply the reply locally only when the conversation is open; an
		// inactive conversation picks it up from the feed, which owns the
		// unread increment.
		r := *reply
		r.Sender = e.profile(ctx, r.SenderID)
		if conversationID == e.session.ActiveID() {
			if e.messages.Append(r) {
				e.writeCacheMessages(ctx, conversationID)
			}
			e.registry.Touch(conversationID, r.Content, r.CreatedAt)
			e.writeCacheConversations(ctx)
		}
	})
}
