// Sync HTTP handlers.
//
// Endpoints:
//   - POST   /session                         (begin a session)
//   - DELETE /session                         (end the session)
//   - GET    /status                          (session + stream status)
//   - GET    /conversations                   (registry snapshot + unread)
//   - POST   /conversations/{id}/active       (open a conversation)
//   - GET    /conversations/{id}/messages     (active conversation's log)
//   - POST   /conversations/{id}/messages     (send a message)
//   - POST   /resync                          (force a full resync)
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bbBOZ/jellyspace-sync/internal/domain"
	"github.com/bbBOZ/jellyspace-sync/internal/stream"
	syncengine "github.com/bbBOZ/jellyspace-sync/internal/sync"
	"github.com/bbBOZ/jellyspace-sync/internal/utils"
)

// Engine is the surface the handlers need from the sync engine.
// Implementations must be safe for concurrent use and honor the provided
// context for cancellation and timeouts.
type Engine interface {
	Begin(ctx context.Context, userID string) error
	End(ctx context.Context) error
	Send(ctx context.Context, conversationID, content, kind, mediaURL string) (*domain.Message, error)
	SetActive(ctx context.Context, conversationID string) error
	Resync(ctx context.Context) error
	Conversations() []domain.Conversation
	ActiveMessages() []domain.Message
	ActiveConversationID() string
	UnreadCounts() map[string]int
	UserID() string
	StreamStatus() stream.Status
}

// Handlers groups the sync API endpoints over an Engine.
type Handlers struct {
	engine Engine
}

// New constructs Handlers bound to engine.
func New(engine Engine) *Handlers {
	return &Handlers{engine: engine}
}

//
// DTOs
//

// BeginSessionRequest is the JSON payload for starting a session.
type BeginSessionRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// SendMessageRequest is the JSON payload for sending a message.
type SendMessageRequest struct {
	Content  string `json:"content"`
	Kind     string `json:"kind"`
	MediaURL string `json:"media_url"`
}

// ConversationsResponse wraps the registry snapshot with unread counters.
type ConversationsResponse struct {
	Conversations []domain.Conversation `json:"conversations"`
	Unread        map[string]int        `json:"unread"`
}

// MessagesResponse wraps a conversation's message log.
type MessagesResponse struct {
	ConversationID string           `json:"conversation_id"`
	Messages       []domain.Message `json:"messages"`
}

// StatusResponse reports who is signed in and how the feed is doing.
type StatusResponse struct {
	UserID       string `json:"user_id"`
	StreamStatus string `json:"stream_status"`
	TotalUnread  int    `json:"total_unread"`
}

// failEngine maps engine sentinel errors onto HTTP responses. Anything
// unrecognized is a 500 with the given fallback code.
func failEngine(c *gin.Context, err error, fallbackCode string) {
	switch {
	case errors.Is(err, syncengine.ErrNotSignedIn):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "no active session")
	case errors.Is(err, syncengine.ErrEmptyContent):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message content is empty")
	case errors.Is(err, syncengine.ErrUnknownConversation):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
	case errors.Is(err, syncengine.ErrColdLoadTimeout):
		fail(c, http.StatusGatewayTimeout, ErrCodeLoadTimeout, "initial load timed out")
	default:
		fail(c, http.StatusInternalServerError, fallbackCode, err.Error())
	}
}

//
// Handlers
//

// BeginSession starts a session for the given user and loads their
// conversations, from cache when possible.
func (h *Handlers) BeginSession(c *gin.Context) {
	var req BeginSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.UserID) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_id required")
		return
	}

	if err := h.engine.Begin(c.Request.Context(), strings.TrimSpace(req.UserID)); err != nil {
		failEngine(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusCreated, ConversationsResponse{
		Conversations: h.engine.Conversations(),
		Unread:        h.engine.UnreadCounts(),
	})
}

// EndSession signs out and tears down session state.
func (h *Handlers) EndSession(c *gin.Context) {
	if err := h.engine.End(c.Request.Context()); err != nil {
		failEngine(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}

// ListConversations returns the registry in recency order plus unread
// counters.
func (h *Handlers) ListConversations(c *gin.Context) {
	if h.engine.UserID() == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "no active session")
		return
	}
	ok(c, http.StatusOK, ConversationsResponse{
		Conversations: h.engine.Conversations(),
		Unread:        h.engine.UnreadCounts(),
	})
}

// OpenConversation makes a conversation active: its unread count resets and
// its messages load. The loaded log is returned.
func (h *Handlers) OpenConversation(c *gin.Context) {
	id := c.Param("id")
	if err := h.engine.SetActive(c.Request.Context(), id); err != nil {
		failEngine(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, MessagesResponse{
		ConversationID: id,
		Messages:       h.engine.ActiveMessages(),
	})
}

// ListMessages returns the active conversation's log. The conversation must
// have been opened first; asking for a different one is a conflict, not a
// silent switch.
func (h *Handlers) ListMessages(c *gin.Context) {
	if h.engine.UserID() == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "no active session")
		return
	}
	id := c.Param("id")
	if h.engine.ActiveConversationID() != id {
		fail(c, http.StatusConflict, ErrCodeConflict, "conversation is not active")
		return
	}
	msgs := h.engine.ActiveMessages()
	// ?limit=N trims the response to the newest N messages.
	if limit := utils.AtoiDefault(c.Query("limit"), 0); limit > 0 && limit < len(msgs) {
		msgs = msgs[len(msgs)-limit:]
	}
	ok(c, http.StatusOK, MessagesResponse{ConversationID: id, Messages: msgs})
}

// SendMessage persists a message and applies it locally before returning.
func (h *Handlers) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	msg, err := h.engine.Send(c.Request.Context(), c.Param("id"), req.Content, req.Kind, req.MediaURL)
	if err != nil {
		failEngine(c, err, ErrCodeSendFailed)
		return
	}
	ok(c, http.StatusCreated, msg)
}

// Resync forces a full fetch-and-replace of local state.
func (h *Handlers) Resync(c *gin.Context) {
	if err := h.engine.Resync(c.Request.Context()); err != nil {
		failEngine(c, err, ErrCodeResyncFailed)
		return
	}
	ok(c, http.StatusOK, ConversationsResponse{
		Conversations: h.engine.Conversations(),
		Unread:        h.engine.UnreadCounts(),
	})
}

// Status reports the session and feed connection state.
func (h *Handlers) Status(c *gin.Context) {
	total := 0
	for _, n := range h.engine.UnreadCounts() {
		total += n
	}
	ok(c, http.StatusOK, StatusResponse{
		UserID:       h.engine.UserID(),
		StreamStatus: string(h.engine.StreamStatus()),
		TotalUnread:  total,
	})
}
