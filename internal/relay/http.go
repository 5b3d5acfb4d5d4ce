package relay

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/config"
	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/domain"
)

// BearerToken extracts the Authorization credential. The websocket
// endpoint also accepts ?token= because browser websockets cannot set
// headers.
func BearerToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" {
			token = c.Query("token")
		}
		c.Set("token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Relay, ctl *Controller, auth Authorizer) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(BearerToken())

	api := r.Group("/rtc")

	api.GET("/ice-servers", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"success":    true,
			"iceServers": cfg.ICEServers,
		})
	})

	api.POST("/rooms/join", func(c *gin.Context) {
		var body struct {
			SessionID domain.SessionID `json:"sessionId" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "bad_payload"})
			return
		}
		roomID, err := auth.AuthorizeJoin(c.Request.Context(), c.GetString("token"), body.SessionID)
		if err != nil {
			log.Warn().Err(err).Str("module", "relay.http").
				Str("session", string(body.SessionID)).Msg("join rejected")
			c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "not_authorized"})
			return
		}
		ctl.Rooms.Ensure(roomID, body.SessionID)
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"room":    gin.H{"roomId": roomID},
		})
	})

	api.POST("/rooms/:sessionId/end", func(c *gin.Context) {
		sessionID := domain.SessionID(c.Param("sessionId"))
		roomID, err := auth.AuthorizeEnd(c.Request.Context(), c.GetString("token"), sessionID)
		if err != nil {
			status := http.StatusForbidden
			if errors.Is(err, ErrUnknownSession) {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"success": false, "error": err.Error()})
			return
		}
		ctl.EndRoom(roomID, "ended by professional")
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	api.GET("/rooms/:sessionId", func(c *gin.Context) {
		sessionID := domain.SessionID(c.Param("sessionId"))
		roomID, err := auth.ResolveSession(c.Request.Context(), c.GetString("token"), sessionID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "unknown session"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"room": gin.H{
				"roomId":           roomID,
				"participantCount": ctl.Registry.CountInRoom(roomID),
				"active":           ctl.Rooms.Active(roomID),
			},
		})
	})

	api.GET("/ws", func(c *gin.Context) {
		ctl.HandleWS(ctx, c)
	})

	log.Info().Str("module", "relay.http").Msg("router setup")
	return r
}
