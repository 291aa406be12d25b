package app

import (
	"time"

	"github.com/dkeye/Chatter/internal/domain"
)

// Server-to-client event types on the wire.
const (
	EventPresence = "presence"
	EventMessage  = "message"
)

// PresenceEvent carries the room's current distinct-user count.
type PresenceEvent struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

func NewPresenceEvent(count int) PresenceEvent {
	return PresenceEvent{Type: EventPresence, Count: count}
}

// MessageEvent echoes a persisted message to every member of its room. All
// fields come from the stored record so every client renders the same copy.
type MessageEvent struct {
	Type       string    `json:"type"`
	ID         string    `json:"id"`
	RoomID     string    `json:"roomId"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

func NewMessageEvent(m *domain.Message) MessageEvent {
	return MessageEvent{
		Type:       EventMessage,
		ID:         m.ID,
		RoomID:     m.RoomID,
		AuthorID:   m.AuthorID,
		AuthorName: m.AuthorName,
		Content:    m.Content,
		CreatedAt:  m.CreatedAt,
	}
}
