package ws

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chatter/internal/core"
)

func (ctl *Controller) writePump(ctx context.Context, c *Conn) {
	ticker := time.NewTicker(ctl.Cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		// Unblocks the read pump, which owns the disconnect transition.
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "ws").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "ws").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.Cfg.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.Cfg.WriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("module", "ws").Msg("writePump ping error")
				return
			}
		}
	}
}

// readPump serializes every event of one connection, so a disconnect can
// never interleave with a join or message from the same link. Its defer is
// the single place the Closed transition fires.
func (ctl *Controller) readPump(ctx context.Context, connID core.ConnID, c *Conn, limiter *rateLimiter) {
	defer func() {
		log.Info().Str("module", "ws").Str("conn", string(connID)).Msg("readPump closing")
		c.Close()
		ctl.Orch.Disconnect(connID)
	}()

	// A peer that stops answering pings trips the read deadline, so a dead
	// link cannot linger in the room's presence count.
	if err := c.conn.SetReadDeadline(time.Now().Add(ctl.Cfg.PongWait)); err != nil {
		log.Error().Err(err).Str("module", "ws").Str("conn", string(connID)).Msg("readPump set deadline")
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.Cfg.PongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "ws").Str("conn", string(connID)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Warn().Err(err).Str("module", "ws").Str("conn", string(connID)).Msg("readPump read error")
				}
				return
			}
			ctl.handleEvent(ctx, connID, c, limiter, data)
		}
	}
}
