// Package repo – reference backend
//
// This file implements the persistence collaborator the sync engine talks
// to: sendMessage, listConversations, listMessages, getProfile. The Store
// type wraps a GORM handle so the same implementation serves production
// single-node deployments and in-memory test fixtures; a remote deployment
// substitutes its own implementation of the engine's Backend interface.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bbBOZ/jellyspace-sync/internal/domain"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("record not found")

// Store is the GORM-backed persistence collaborator.
type Store struct {
	DB *gorm.DB
}

// NewStore wraps a GORM handle.
func NewStore(db *gorm.DB) *Store { return &Store{DB: db} }

// SendMessage persists a message and updates the owning conversation's
// last-message metadata in one transaction. The returned record carries the
// server-assigned id the send pipeline uses for its authoritative local echo.
func (s *Store) SendMessage(ctx context.Context, conversationID, senderID, content, kind, mediaURL string) (*domain.Message, error) {
	if kind == "" {
		kind = domain.MessageText
	}
	m := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Kind:           kind,
		MediaURL:       mediaURL,
		CreatedAt:      time.Now().UTC(),
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv domain.Conversation
		if err := tx.Where("id = ?", conversationID).First(&conv).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Conversation{}).
			Where("id = ?", conversationID).
			Updates(map[string]any{
				"last_message":    m.Content,
				"last_message_at": m.CreatedAt,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListConversations returns every conversation the user is a member of.
// Membership lives in a JSON-serialized column, so filtering happens here
// rather than in SQL; registry ordering is the engine's job, not the store's.
func (s *Store) ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	var all []domain.Conversation
	if err := s.DB.WithContext(ctx).Find(&all).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Conversation, 0, len(all))
	for _, c := range all {
		if c.HasMember(userID) {
			out = append(out, c)
		}
	}
	return out, nil
}

// ListMessages returns messages ordered deterministically (CreatedAt ASC,
// ID ASC), capped at limit when limit > 0.
func (s *Store) ListMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	var out []domain.Message
	q := s.DB.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// GetProfile fetches a profile by user id.
func (s *Store) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	var p domain.Profile
	if err := s.DB.WithContext(ctx).Where("id = ?", userID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// CreateConversation inserts a conversation row. The caller supplies the
// member set; CreatedAt anchors registry ordering until the first message.
func (s *Store) CreateConversation(ctx context.Context, kind, name, createdBy string, memberIDs []string, hasResponder bool) (*domain.Conversation, error) {
	c := &domain.Conversation{
		ID:           uuid.NewString(),
		Kind:         kind,
		Name:         name,
		CreatedBy:    createdBy,
		MemberIDs:    memberIDs,
		HasResponder: hasResponder,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.DB.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// UpsertProfile creates or replaces a profile row.
func (s *Store) UpsertProfile(ctx context.Context, p *domain.Profile) error {
	return s.DB.WithContext(ctx).Save(p).Error
}

// EnsureResponderConversation guarantees the user has a private conversation
// with the generative responder, creating the bot profile, the conversation,
// and a greeting message on first contact. Returns the conversation id.
func (s *Store) EnsureResponderConversation(ctx context.Context, userID, botID, greeting string) (string, error) {
	convs, err := s.ListConversations(ctx, userID)
	if err != nil {
		return "", err
	}
	for _, c := range convs {
		if c.Kind == domain.KindPrivate && c.HasMember(botID) {
			return c.ID, nil
		}
	}

	if _, err := s.GetProfile(ctx, botID); errors.Is(err, ErrNotFound) {
		bot := &domain.Profile{ID: botID, Username: botID, DisplayID: botID, CreatedAt: time.Now().UTC()}
		if err := s.UpsertProfile(ctx, bot); err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	}

	conv, err := s.CreateConversation(ctx, domain.KindPrivate, "", userID, []string{userID, botID}, true)
	if err != nil {
		return "", err
	}
	if greeting != "" {
		if _, err := s.SendMessage(ctx, conv.ID, botID, greeting, domain.MessageText, ""); err != nil {
			return "", err
		}
	}
	return conv.ID, nil
}
