// Package core holds the contracts shared between the app layer and the
// adapters. No transport or storage implementations live here.
package core

import (
	"context"

	"github.com/dkeye/Chatter/internal/domain"
)

// Frame is a raw encoded payload ready to go over the wire.
type Frame []byte

// ConnID identifies one live transport-level link. Server-assigned, one per
// websocket upgrade; two browser tabs are two ConnIDs.
type ConnID string

// Sink is the outbound half of a connection.
// Owned by the adapter; the adapter must Close() it.
type Sink interface {
	// TrySend enqueues a frame without blocking. Returns an error when the
	// connection is closed or its buffer is full.
	TrySend(Frame) error
	Close()
}

// MessageStore persists chat messages. CreateMessage assigns the id and
// timestamp and returns the persisted record.
type MessageStore interface {
	CreateMessage(ctx context.Context, roomID domain.RoomID, authorID domain.UserID, authorName, content string) (*domain.Message, error)
	FindMessages(ctx context.Context, roomID domain.RoomID) ([]*domain.Message, error)
}
