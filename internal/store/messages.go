package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dkeye/Chatter/internal/domain"
)

// MessageRepository provides access to message storage. It satisfies
// core.MessageStore.
type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// CreateMessage persists a new message. The id and creation timestamp are
// assigned here, never taken from the client.
func (r *MessageRepository) CreateMessage(ctx context.Context, roomID domain.RoomID, authorID domain.UserID, authorName, content string) (*domain.Message, error) {
	msg := &domain.Message{
		ID:         uuid.NewString(),
		RoomID:     string(roomID),
		AuthorID:   string(authorID),
		AuthorName: authorName,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	return msg, nil
}

// FindMessages returns a room's messages ordered by creation time ascending.
// A room with no history yields an empty slice, never nil, so the HTTP layer
// serializes it as an empty JSON array.
func (r *MessageRepository) FindMessages(ctx context.Context, roomID domain.RoomID) ([]*domain.Message, error) {
	msgs := make([]*domain.Message, 0)
	err := r.db.WithContext(ctx).
		Where("room_id = ?", string(roomID)).
		Order("created_at asc").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find messages: %w", err)
	}
	return msgs, nil
}
