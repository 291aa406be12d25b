package app

import (
	"github.com/dkeye/Chatter/internal/core"
	"github.com/dkeye/Chatter/internal/domain"
)

// Presence turns membership changes into presence events. The registry only
// fires the hook when the distinct-user count actually moved, so a user's
// second tab joining or leaving a room they already occupy stays silent.
// Presence reflects users, not sockets.
type Presence struct {
	bc *Broadcaster
}

func NewPresence(bc *Broadcaster) *Presence {
	return &Presence{bc: bc}
}

// Changed is the registry's change hook. It runs under the room lock; sends
// are non-blocking, so the lock is never held across a suspension point.
func (p *Presence) Changed(roomID domain.RoomID, count int, conns map[core.ConnID]core.Sink) {
	p.bc.Deliver(roomID, conns, NewPresenceEvent(count))
}
