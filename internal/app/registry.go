package app

import (
	"fmt"
	"sync"

	"github.com/dkeye/Chatter/internal/core"
	"github.com/dkeye/Chatter/internal/domain"
	"github.com/rs/zerolog/log"
)

// PresenceFunc is called whenever the distinct-user count of a room changes.
// It runs with the room lock held and must not call back into the Registry.
// conns is a snapshot of the room's connections at that instant.
type PresenceFunc func(roomID domain.RoomID, count int, conns map[core.ConnID]core.Sink)

// roomState is the membership set of one room, guarded by its own mutex so
// that churn in one room never contends with another.
type roomState struct {
	mu    sync.Mutex
	users map[domain.UserID]map[core.ConnID]struct{}
	conns map[core.ConnID]core.Sink
	dead  bool // set once the state is evicted from the table
}

func newRoomState() *roomState {
	return &roomState{
		users: make(map[domain.UserID]map[core.ConnID]struct{}),
		conns: make(map[core.ConnID]core.Sink),
	}
}

// snapshotLocked copies the connection table. Callers hold rs.mu.
func (rs *roomState) snapshotLocked() map[core.ConnID]core.Sink {
	out := make(map[core.ConnID]core.Sink, len(rs.conns))
	for id, s := range rs.conns {
		out[id] = s
	}
	return out
}

// Registry tracks, per room, the set of live connections and which user each
// belongs to. Room states are created lazily on first join and torn down when
// the last connection leaves. The distinct-user count is always derived from
// the membership set, never kept as a separate counter.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[domain.RoomID]*roomState
	onChange PresenceFunc
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[domain.RoomID]*roomState)}
}

// OnPresenceChange installs the change hook. Must be set before serving.
func (r *Registry) OnPresenceChange(fn PresenceFunc) {
	r.onChange = fn
}

func (r *Registry) getOrCreate(roomID domain.RoomID) *roomState {
	r.mu.RLock()
	rs, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if ok {
		return rs
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if rs, ok = r.rooms[roomID]; ok {
		return rs
	}
	rs = newRoomState()
	r.rooms[roomID] = rs
	return rs
}

func (r *Registry) get(roomID domain.RoomID) (*roomState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rs, ok := r.rooms[roomID]
	return rs, ok
}

// Join registers the connection under the room's membership set. Calling it
// twice for the same connection is a no-op. The presence hook fires inside the
// room's critical section, so the count it carries cannot interleave with a
// concurrent join or leave on the same room.
func (r *Registry) Join(roomID domain.RoomID, userID domain.UserID, connID core.ConnID, sink core.Sink) error {
	if err := roomID.Validate(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidArgument, err)
	}
	if err := userID.Validate(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidArgument, err)
	}

	// A concurrent leave can evict the state between the table lookup and
	// the room lock; retry against a fresh entry.
	var rs *roomState
	for {
		rs = r.getOrCreate(roomID)
		rs.mu.Lock()
		if !rs.dead {
			break
		}
		rs.mu.Unlock()
	}
	defer rs.mu.Unlock()

	if _, ok := rs.conns[connID]; ok {
		return nil
	}
	rs.conns[connID] = sink

	set, known := rs.users[userID]
	if !known {
		set = make(map[core.ConnID]struct{})
		rs.users[userID] = set
	}
	set[connID] = struct{}{}

	count := len(rs.users)
	log.Debug().Str("module", "app.registry").
		Str("room", string(roomID)).Str("user", string(userID)).Str("conn", string(connID)).
		Int("users", count).Msg("connection joined")

	if !known && r.onChange != nil {
		r.onChange(roomID, count, rs.snapshotLocked())
	}
	return nil
}

// Leave removes the connection from the room it was bound to. A connection
// that never joined, or a room that no longer exists, is a no-op. The userId
// stays in the membership set while any of its other connections remain live.
func (r *Registry) Leave(roomID domain.RoomID, userID domain.UserID, connID core.ConnID) {
	rs, ok := r.get(roomID)
	if !ok {
		return
	}

	rs.mu.Lock()
	if _, ok := rs.conns[connID]; !ok {
		rs.mu.Unlock()
		return
	}
	delete(rs.conns, connID)

	gone := false
	if set, ok := rs.users[userID]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(rs.users, userID)
			gone = true
		}
	}

	count := len(rs.users)
	log.Debug().Str("module", "app.registry").
		Str("room", string(roomID)).Str("user", string(userID)).Str("conn", string(connID)).
		Int("users", count).Msg("connection left")

	if gone && r.onChange != nil {
		r.onChange(roomID, count, rs.snapshotLocked())
	}
	empty := len(rs.conns) == 0
	rs.mu.Unlock()

	if empty {
		r.evictIfEmpty(roomID, rs)
	}
}

// evictIfEmpty drops the room state once its last connection is gone. The
// re-check under both locks covers a join racing with the teardown.
func (r *Registry) evictIfEmpty(roomID domain.RoomID, rs *roomState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.rooms[roomID]; !ok || current != rs {
		return
	}
	rs.mu.Lock()
	if len(rs.conns) == 0 {
		rs.dead = true
		delete(r.rooms, roomID)
		log.Debug().Str("module", "app.registry").Str("room", string(roomID)).Msg("room evicted")
	}
	rs.mu.Unlock()
}

// CountDistinctUsers returns the number of distinct userIds with at least one
// live connection in the room. Unknown rooms count zero.
func (r *Registry) CountDistinctUsers(roomID domain.RoomID) int {
	rs, ok := r.get(roomID)
	if !ok {
		return 0
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.users)
}

// Fanout runs fn under the room lock with the room's current connections.
// A missing room runs nothing. fn must not call back into the Registry.
func (r *Registry) Fanout(roomID domain.RoomID, fn func(conns map[core.ConnID]core.Sink)) {
	rs, ok := r.get(roomID)
	if !ok {
		return
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	fn(rs.conns)
}
