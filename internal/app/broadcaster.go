package app

import (
	"encoding/json"

	"github.com/dkeye/Chatter/internal/core"
	"github.com/dkeye/Chatter/internal/domain"
	"github.com/rs/zerolog/log"
)

// PublishResult reports delivery stats/backpressure to the orchestrator.
type PublishResult struct {
	SentTo  int
	Dropped []core.ConnID
}

// Broadcaster delivers one event to every connection currently bound to a
// room, best-effort. A failed send never interrupts the fan-out; the failed
// connection is reported, not retried, since it will independently trigger a
// disconnect. Frames for one room go out under its lock, so events issued by
// one caller reach every member in issue order.
type Broadcaster struct {
	reg  *Registry
	drop func(roomID domain.RoomID, connID core.ConnID)
}

func NewBroadcaster(reg *Registry) *Broadcaster {
	return &Broadcaster{reg: reg}
}

// OnDropped installs the handler invoked for each recipient whose send failed.
// Must be set before serving.
func (b *Broadcaster) OnDropped(fn func(roomID domain.RoomID, connID core.ConnID)) {
	b.drop = fn
}

// Broadcast marshals event once and fans it out to the room's members.
// Unknown rooms reach zero recipients.
func (b *Broadcaster) Broadcast(roomID domain.RoomID, event any) PublishResult {
	frame, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("module", "app.broadcaster").Msg("marshal event")
		return PublishResult{}
	}
	var res PublishResult
	b.reg.Fanout(roomID, func(conns map[core.ConnID]core.Sink) {
		res = deliver(conns, frame)
	})
	b.report(roomID, res)
	return res
}

// Deliver sends event to an explicit recipient set. Used by the presence hook,
// which already holds the room lock and carries its own snapshot.
func (b *Broadcaster) Deliver(roomID domain.RoomID, conns map[core.ConnID]core.Sink, event any) PublishResult {
	frame, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("module", "app.broadcaster").Msg("marshal event")
		return PublishResult{}
	}
	res := deliver(conns, frame)
	b.report(roomID, res)
	return res
}

func deliver(conns map[core.ConnID]core.Sink, frame core.Frame) PublishResult {
	res := PublishResult{}
	for id, sink := range conns {
		if err := sink.TrySend(frame); err != nil {
			res.Dropped = append(res.Dropped, id)
			continue
		}
		res.SentTo++
	}
	return res
}

func (b *Broadcaster) report(roomID domain.RoomID, res PublishResult) {
	log.Debug().Str("module", "app.broadcaster").Str("room", string(roomID)).
		Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	if b.drop == nil {
		return
	}
	for _, id := range res.Dropped {
		b.drop(roomID, id)
	}
}
