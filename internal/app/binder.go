package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/dkeye/Chatter/internal/core"
	"github.com/dkeye/Chatter/internal/domain"
	"github.com/rs/zerolog/log"
)

type connState int

const (
	stateUnbound connState = iota
	stateBound
)

type binding struct {
	state  connState
	roomID domain.RoomID
	userID domain.UserID
	sink   core.Sink
	cancel context.CancelFunc
}

// Binder owns the connection -> (userId, roomId) table for the lifetime of
// each link. Per connection the states are Unbound -> Bound -> Closed; Closed
// is terminal and drops the entry, so no later event can resurrect it.
type Binder struct {
	mu    sync.Mutex
	conns map[core.ConnID]*binding
}

func NewBinder() *Binder {
	return &Binder{conns: make(map[core.ConnID]*binding)}
}

// Open registers a freshly accepted connection as Unbound. cancel tears the
// transport down from outside its own goroutines.
func (b *Binder) Open(connID core.ConnID, sink core.Sink, cancel context.CancelFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conns[connID] = &binding{state: stateUnbound, sink: sink, cancel: cancel}
	log.Debug().Str("module", "app.binder").Str("conn", string(connID)).Msg("connection opened")
}

// Bind moves the connection to Bound. Rebinding to a different room is a
// protocol error; repeating the exact same binding is a no-op, matching the
// registry's idempotent join.
func (b *Binder) Bind(connID core.ConnID, roomID domain.RoomID, userID domain.UserID) error {
	if err := roomID.Validate(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidArgument, err)
	}
	if err := userID.Validate(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidArgument, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.conns[connID]
	if !ok {
		return core.ErrClosed
	}
	if entry.state == stateBound {
		if entry.roomID == roomID && entry.userID == userID {
			return nil
		}
		return core.ErrAlreadyBound
	}
	entry.state = stateBound
	entry.roomID = roomID
	entry.userID = userID
	log.Info().Str("module", "app.binder").
		Str("conn", string(connID)).Str("room", string(roomID)).Str("user", string(userID)).
		Msg("connection bound")
	return nil
}

// Lookup returns the recorded binding for a live, bound connection.
func (b *Binder) Lookup(connID core.ConnID) (domain.RoomID, domain.UserID, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.conns[connID]
	if !ok || entry.state != stateBound {
		return "", "", false
	}
	return entry.roomID, entry.userID, true
}

// sinkOf returns the outbound half of a live connection.
func (b *Binder) sinkOf(connID core.ConnID) (core.Sink, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.conns[connID]
	if !ok {
		return nil, false
	}
	return entry.sink, true
}

// Close is the Bound -> Closed (or Unbound -> Closed) transition, triggered
// exactly once by transport disconnect. It returns the binding that was in
// effect so the caller can run the registry leave.
func (b *Binder) Close(connID core.ConnID) (domain.RoomID, domain.UserID, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.conns[connID]
	if !ok {
		return "", "", false
	}
	delete(b.conns, connID)
	log.Debug().Str("module", "app.binder").Str("conn", string(connID)).Msg("connection closed")
	if entry.state != stateBound {
		return "", "", false
	}
	return entry.roomID, entry.userID, true
}

// Cancel fires the connection's cancel func. The transport goroutines notice
// and run the normal disconnect path; nothing is unbound here.
func (b *Binder) Cancel(connID core.ConnID) bool {
	b.mu.Lock()
	entry, ok := b.conns[connID]
	b.mu.Unlock()
	if !ok {
		return false
	}
	if entry.cancel != nil {
		entry.cancel()
	}
	log.Info().Str("module", "app.binder").Str("conn", string(connID)).Msg("canceled connection")
	return true
}
