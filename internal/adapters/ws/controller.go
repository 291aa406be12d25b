// Package ws is the websocket transport adapter: one bidirectional event
// channel per connection, dispatching the join/message protocol into the app
// layer.
package ws

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chatter/internal/app"
	"github.com/dkeye/Chatter/internal/config"
	"github.com/dkeye/Chatter/internal/core"
)

type Controller struct {
	Orch *app.Orchestrator
	Cfg  *config.Config
}

func NewController(orch *app.Orchestrator, cfg *config.Config) *Controller {
	return &Controller{Orch: orch, Cfg: cfg}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the request and starts the connection's pumps. The conn id
// is a fresh uuid per upgrade: two tabs of the same user are two connections.
func (ctl *Controller) Handle(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.Cfg.ReadLimit)

	connID := core.ConnID(uuid.NewString())
	log.Info().Str("module", "ws").Str("conn", string(connID)).Msg("new WS connection")

	conn := newConn(ws, ctl.Cfg.SendBuffer)
	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Connect(connID, conn, cancel)

	limiter := newRateLimiter(ctl.Cfg.MsgPerSec, ctl.Cfg.MsgInterval)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, connID, conn, limiter)
}
