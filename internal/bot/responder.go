package bot

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/bbBOZ/jellyspace-sync/internal/domain"
)

// FallbackReply is sent when the generator fails. It is a fixed string:
// a failed generation still answers, and always with the same text.
const FallbackReply = "Oops, I hit a little snag — give me a moment and try again~"

// DefaultHistoryLimit caps the history collected per trigger.
const DefaultHistoryLimit = 10

// Sender persists the responder's reply as a regular message.
// repo.Store satisfies it.
type Sender interface {
	SendMessage(ctx context.Context, conversationID, senderID, content, kind, mediaURL string) (*domain.Message, error)
}

// Responder generates replies in responder conversations. At most one
// reply is in flight per conversation: triggers arriving while one is
// running are dropped, not queued, so a burst of user messages yields a
// single reply. The lock is always released, success or not.
type Responder struct {
	gen          Generator
	sender       Sender
	botID        string
	historyLimit int
	log          zerolog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewResponder wires a responder for botID over gen and sender.
func NewResponder(gen Generator, sender Sender, botID string, historyLimit int, log zerolog.Logger) *Responder {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Responder{
		gen:          gen,
		sender:       sender,
		botID:        botID,
		historyLimit: historyLimit,
		log:          log.With().Str("component", "bot").Logger(),
		inFlight:     make(map[string]struct{}),
	}
}

// BotID returns the responder's sender identity.
func (r *Responder) BotID() string { return r.botID }

// Busy reports whether a reply is currently in flight for conversationID.
func (r *Responder) Busy(conversationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, busy := r.inFlight[conversationID]
	return busy
}

// Trigger generates and persists one reply to userMessage. history is the
// conversation's recent messages, oldest first; only the trailing window is
// used. ran is false when another reply for the same conversation was
// already in flight, in which case nothing happened.
func (r *Responder) Trigger(ctx context.Context, conversationID, userMessage string, history []domain.Message) (reply *domain.Message, ran bool, err error) {
	r.mu.Lock()
	if _, busy := r.inFlight[conversationID]; busy {
		r.mu.Unlock()
		return nil, false, nil
	}
	r.inFlight[conversationID] = struct{}{}
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.inFlight, conversationID)
		r.mu.Unlock()
	}()

	if len(history) > r.historyLimit {
		history = history[len(history)-r.historyLimit:]
	}
	turns := make([]Turn, 0, len(history))
	for _, m := range history {
		turns = append(turns, Turn{
			FromResponder: m.SenderID == r.botID,
			Content:       m.Content,
		})
	}

	text, genErr := r.gen.Reply(ctx, userMessage, turns)
	if genErr != nil {
		r.log.Warn().Err(genErr).Str("conversation_id", conversationID).Msg("generator failed, using fallback")
		text = FallbackReply
	}

	msg, err := r.sender.SendMessage(ctx, conversationID, r.botID, text, domain.MessageText, "")
	if err != nil {
		r.log.Error().Err(err).Str("conversation_id", conversationID).Msg("responder reply not persisted")
		return nil, true, err
	}
	return msg, true, nil
}
