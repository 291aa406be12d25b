package app

import (
	"context"
	"fmt"

	"github.com/dkeye/Chatter/internal/core"
	"github.com/dkeye/Chatter/internal/domain"
	"github.com/rs/zerolog/log"
)

// Relay validates and persists inbound chat messages, then fans the persisted
// record out to the room. Persist and fan-out are two separate critical
// sections: no room lock is held while the store call is in flight, so store
// latency never blocks unrelated room operations. A message persisted after
// its room emptied simply reaches zero recipients.
type Relay struct {
	store core.MessageStore
	bc    *Broadcaster
}

func NewRelay(store core.MessageStore, bc *Broadcaster) *Relay {
	return &Relay{store: store, bc: bc}
}

// Relay accepts a message for roomID. Empty roomID or authorID is rejected;
// empty content is allowed, trimming is a boundary concern. On store failure
// the message is not broadcast: unpersisted data never fans out.
func (rl *Relay) Relay(ctx context.Context, roomID domain.RoomID, authorID domain.UserID, authorName, content string) (*domain.Message, error) {
	if err := roomID.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidArgument, err)
	}
	if err := authorID.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidArgument, err)
	}
	if len(authorName) > domain.MaxUserNameLen {
		authorName = authorName[:domain.MaxUserNameLen]
	}

	// A dropped sender cancels nothing already accepted on its behalf: the
	// persist runs detached from the connection's lifetime, and if the room
	// still has members the broadcast still goes out.
	msg, err := rl.store.CreateMessage(context.WithoutCancel(ctx), roomID, authorID, authorName, content)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").
			Str("room", string(roomID)).Str("author", string(authorID)).
			Msg("persist message")
		return nil, fmt.Errorf("%w: %v", core.ErrStore, err)
	}

	rl.bc.Broadcast(roomID, NewMessageEvent(msg))
	return msg, nil
}
