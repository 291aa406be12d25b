package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chatter/internal/core"
	"github.com/dkeye/Chatter/internal/domain"
)

// HistoryHandler serves a room's messages ordered by creation time ascending.
func HistoryHandler(messages core.MessageStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		roomID := c.Query("roomId")
		if roomID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "roomId is required"})
			return
		}

		msgs, err := messages.FindMessages(c.Request.Context(), domain.RoomID(roomID))
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Str("room", roomID).Msg("find messages")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		c.JSON(http.StatusOK, msgs)
	}
}
