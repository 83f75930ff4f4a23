// Package domain defines the typed records the sync engine keeps consistent:
// conversations, messages, sender profiles, and the raw event-stream payload.
// Conversation, Message, and Profile carry GORM tags so the reference backend
// and the local cache can persist them with the same types the in-memory
// state uses.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Conversation kinds.
const (
	KindPrivate = "private"
	KindGroup   = "group"
)

// Message kinds.
const (
	MessageText  = "text"
	MessageImage = "image"
)

// Conversation is one entry of the conversation registry. The registry keeps
// conversations sorted by LastMessageAt descending (ties broken by ID);
// a conversation that has no message yet sorts by CreatedAt instead.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Kind: "private" or "group" (enforced by DB constraint).
//   - Name: display name; empty for private chats (the peer's name is used).
//   - CreatedBy: identifier of the creating user.
//   - MemberIDs: member user ids, serialized as JSON in the backing store.
//   - LastMessage / LastMessageAt: denormalized last-message metadata.
//   - HasResponder: whether a generative participant is a member, in which
//     case incoming messages may trigger an automatic reply.
type Conversation struct {
	ID            string         `json:"id"              gorm:"type:char(36);primaryKey"`
	Kind          string         `json:"kind"            gorm:"type:varchar(16);not null;check:kind IN ('private','group')"`
	Name          string         `json:"name"            gorm:"type:varchar(255)"`
	CreatedBy     string         `json:"created_by"      gorm:"type:varchar(64);not null;index"`
	MemberIDs     []string       `json:"member_ids"      gorm:"serializer:json"`
	LastMessage   string         `json:"last_message"`
	LastMessageAt time.Time      `json:"last_message_at"`
	HasResponder  bool           `json:"has_responder"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-"               gorm:"index"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// ActivityTime is the instant the registry sorts this conversation by:
// the last message time when one exists, the creation time otherwise.
func (c Conversation) ActivityTime() time.Time {
	if !c.LastMessageAt.IsZero() {
		return c.LastMessageAt
	}
	return c.CreatedAt
}

// WithLastMessage returns a copy of the conversation with updated
// last-message metadata. The receiver is never mutated; registry entries
// are replaced wholesale so partial writes can't leak.
func (c Conversation) WithLastMessage(content string, at time.Time) Conversation {
	c.LastMessage = content
	c.LastMessageAt = at
	return c
}

// HasMember reports whether userID is a member of the conversation.
func (c Conversation) HasMember(userID string) bool {
	for _, id := range c.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Message is a single utterance within a conversation. Messages are
// append-only: once stored they are never mutated (read state lives in the
// unread tracker, not on the message). ID is the dedup key within a
// conversation's log.
type Message struct {
	ID             string         `json:"id"              gorm:"type:char(36);primaryKey"`
	ConversationID string         `json:"conversation_id" gorm:"type:char(36);not null;index:idx_conv_msgs,priority:1"`
	SenderID       string         `json:"sender_id"       gorm:"type:varchar(64);not null;index"`
	Content        string         `json:"content"         gorm:"type:text;not null"`
	Kind           string         `json:"kind"            gorm:"type:varchar(16);not null;default:'text'"`
	MediaURL       string         `json:"media_url,omitempty"`
	CreatedAt      time.Time      `json:"created_at"      gorm:"index:idx_conv_msgs,priority:2"`
	DeletedAt      gorm.DeletedAt `json:"-"               gorm:"index"`

	// Sender is the resolved sender profile. Populated in memory only;
	// the backing store keeps profiles in their own table.
	Sender *Profile `json:"sender,omitempty" gorm:"-"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Profile is the subset of a user's profile the engine needs to attach to
// messages.
type Profile struct {
	ID        string         `json:"id"         gorm:"type:varchar(64);primaryKey"`
	Username  string         `json:"username"   gorm:"type:varchar(255);not null"`
	DisplayID string         `json:"display_id" gorm:"type:varchar(64);uniqueIndex"`
	AvatarURL string         `json:"avatar_url"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for Profile.
func (Profile) TableName() string { return "profiles" }

// PlaceholderProfile is the degraded profile used when a sender lookup
// fails. Message delivery must never be lost to a secondary lookup failure,
// so the reconciler attaches this instead of dropping the event.
func PlaceholderProfile(userID string) *Profile {
	return &Profile{ID: userID, Username: "unknown user"}
}

// MessageInserted is the raw record the event stream delivers for every
// message row inserted server-side. Delivery is at-least-once with no
// ordering guarantee across conversations.
type MessageInserted struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	Kind           string    `json:"message_kind"`
	MediaURL       string    `json:"media_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Message normalizes the raw event into an immutable Message record.
// A missing kind defaults to text, matching the backing store's default.
func (e MessageInserted) Message(sender *Profile) Message {
	kind := e.Kind
	if kind == "" {
		kind = MessageText
	}
	return Message{
		ID:             e.ID,
		ConversationID: e.ConversationID,
		SenderID:       e.SenderID,
		Content:        e.Content,
		Kind:           kind,
		MediaURL:       e.MediaURL,
		CreatedAt:      e.CreatedAt,
		Sender:         sender,
	}
}
