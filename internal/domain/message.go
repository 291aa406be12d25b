package domain

import "time"

// Message is one persisted chat message. Immutable after creation; the server
// assigns ID and CreatedAt, never the client. AuthorName is the display name
// valid at send time, not looked up live.
type Message struct {
	ID         string    `gorm:"primarykey;size:36" json:"id"`
	RoomID     string    `gorm:"size:36;index;not null" json:"roomId"`
	AuthorID   string    `gorm:"size:36;not null" json:"authorId"`
	AuthorName string    `gorm:"size:64" json:"authorName"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
}

// TableName returns the table name for Message model.
func (Message) TableName() string {
	return "messages"
}
