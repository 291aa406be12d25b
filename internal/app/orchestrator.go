package app

import (
	"context"

	"github.com/dkeye/Chatter/internal/core"
	"github.com/dkeye/Chatter/internal/domain"
	"github.com/rs/zerolog/log"
)

// Orchestrator wires binder, registry, presence, broadcaster and relay behind
// the entry points the transport adapter calls. Flow: connect -> bind on join
// -> registry update -> presence recompute -> broadcast; inbound message ->
// relay -> store -> broadcast; disconnect -> binder lookup -> registry leave.
type Orchestrator struct {
	Binder   *Binder
	Registry *Registry
	Relay    *Relay
	Policy   Policy

	bc *Broadcaster
}

func NewOrchestrator(store core.MessageStore, policy Policy) *Orchestrator {
	o := &Orchestrator{
		Binder:   NewBinder(),
		Registry: NewRegistry(),
		Policy:   policy,
	}
	o.bc = NewBroadcaster(o.Registry)
	o.bc.OnDropped(o.onDropped)
	o.Registry.OnPresenceChange(NewPresence(o.bc).Changed)
	o.Relay = NewRelay(store, o.bc)
	return o
}

// Connect registers a freshly accepted transport link.
func (o *Orchestrator) Connect(connID core.ConnID, sink core.Sink, cancel context.CancelFunc) {
	o.Binder.Open(connID, sink, cancel)
}

// Join binds the connection to (roomID, userID) and registers it with the
// room. The presence event, if the distinct-user count moved, goes out inside
// the registry's critical section.
func (o *Orchestrator) Join(connID core.ConnID, roomID domain.RoomID, userID domain.UserID) error {
	if err := o.Binder.Bind(connID, roomID, userID); err != nil {
		return err
	}
	sink, ok := o.Binder.sinkOf(connID)
	if !ok {
		return core.ErrClosed
	}
	return o.Registry.Join(roomID, userID, connID, sink)
}

// Message relays one inbound chat message.
func (o *Orchestrator) Message(ctx context.Context, roomID domain.RoomID, authorID domain.UserID, authorName, content string) (*domain.Message, error) {
	return o.Relay.Relay(ctx, roomID, authorID, authorName, content)
}

// Disconnect runs the Bound -> Closed transition and the registry leave.
// Safe to call exactly once per connection, on transport close.
func (o *Orchestrator) Disconnect(connID core.ConnID) {
	roomID, userID, bound := o.Binder.Close(connID)
	if !bound {
		return
	}
	o.Registry.Leave(roomID, userID, connID)
}

func (o *Orchestrator) onDropped(roomID domain.RoomID, connID core.ConnID) {
	if o.Policy == nil {
		return
	}
	switch o.Policy.OnBackpressure(roomID, connID) {
	case KickConn:
		log.Warn().Str("module", "app.orchestrator").
			Str("room", string(roomID)).Str("conn", string(connID)).
			Msg("kicking slow connection")
		o.Binder.Cancel(connID)
	case NoAction:
	}
}
