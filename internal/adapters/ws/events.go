package ws

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chatter/internal/core"
	"github.com/dkeye/Chatter/internal/domain"
)

type joinPayload struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

type messagePayload struct {
	Type       string `json:"type"`
	RoomID     string `json:"roomId"`
	AuthorID   string `json:"authorId"`
	AuthorName string `json:"authorName"`
	Content    string `json:"content"`
}

func (ctl *Controller) handleEvent(ctx context.Context, connID core.ConnID, c *Conn, limiter *rateLimiter, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad json")
		ctl.sendError(c, "bad_payload")
		return
	}

	switch env.Type {
	case "join":
		ctl.handleJoin(connID, c, data)
	case "message":
		ctl.handleMessage(ctx, connID, c, limiter, data)
	default:
		log.Warn().Str("module", "ws").Str("type", env.Type).Msg("unknown event")
	}
}

func (ctl *Controller) handleJoin(connID core.ConnID, c *Conn, data []byte) {
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad join payload")
		ctl.sendError(c, "bad_payload")
		return
	}

	err := ctl.Orch.Join(connID, domain.RoomID(p.RoomID), domain.UserID(p.UserID))
	switch {
	case err == nil:
	case errors.Is(err, core.ErrAlreadyBound):
		// Protocol error: one room per connection. Binding stays as it was.
		log.Warn().Str("module", "ws").Str("conn", string(connID)).Msg("second join ignored")
		ctl.sendError(c, "already_joined")
	case errors.Is(err, core.ErrInvalidArgument):
		log.Warn().Err(err).Str("module", "ws").Str("conn", string(connID)).Msg("invalid join")
		ctl.sendError(c, "bad_payload")
	default:
		log.Error().Err(err).Str("module", "ws").Str("conn", string(connID)).Msg("join failed")
		ctl.sendError(c, "join_failed")
	}
}

func (ctl *Controller) handleMessage(ctx context.Context, connID core.ConnID, c *Conn, limiter *rateLimiter, data []byte) {
	if !limiter.Allow() {
		log.Warn().Str("module", "ws").Str("conn", string(connID)).Msg("message rate limited")
		ctl.sendError(c, "rate_limited")
		return
	}

	var p messagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad message payload")
		ctl.sendError(c, "bad_payload")
		return
	}

	_, err := ctl.Orch.Message(ctx, domain.RoomID(p.RoomID), domain.UserID(p.AuthorID), p.AuthorName, p.Content)
	switch {
	case err == nil:
	case errors.Is(err, core.ErrInvalidArgument):
		log.Warn().Err(err).Str("module", "ws").Str("conn", string(connID)).Msg("invalid message")
		ctl.sendError(c, "bad_payload")
	case errors.Is(err, core.ErrStore):
		// Already logged by the relay; the sender just learns nothing went out.
		ctl.sendError(c, "store_failure")
	default:
		log.Error().Err(err).Str("module", "ws").Str("conn", string(connID)).Msg("message failed")
		ctl.sendError(c, "message_failed")
	}
}

func (ctl *Controller) sendError(c *Conn, code string) {
	ctl.sendJSON(c, map[string]any{
		"type":  "error",
		"error": code,
	})
}

func (ctl *Controller) sendJSON(c *Conn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}
