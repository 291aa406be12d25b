package app

import (
	"github.com/dkeye/Chatter/internal/core"
	"github.com/dkeye/Chatter/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickConn
)

// Policy decides what happens to a connection whose send buffer was full
// during a broadcast.
type Policy interface {
	OnBackpressure(roomID domain.RoomID, connID core.ConnID) BackpressureAction
}

// KickSlowPolicy drops slow consumers. Their buffers being full means the
// reader is gone or hopelessly behind; the cancel feeds the normal disconnect
// path, which cleans up membership.
type KickSlowPolicy struct{}

func (KickSlowPolicy) OnBackpressure(domain.RoomID, core.ConnID) BackpressureAction {
	return KickConn
}
