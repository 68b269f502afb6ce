package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// ActorHeader carries the acting user when the payload does not name one.
const ActorHeader = "X-Actor-ID"

func actorFromRequest(c *gin.Context, explicit string) string {
	if actor := strings.TrimSpace(explicit); actor != "" {
		return actor
	}
	return strings.TrimSpace(c.GetHeader(ActorHeader))
}
