package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/classroomlabs/peergrade-api/internal/middleware"
	"github.com/classroomlabs/peergrade-api/internal/models"
	"github.com/classroomlabs/peergrade-api/internal/service"
)

// RealtimeHandler wires the websocket upgrade for the realtime event channel.
type RealtimeHandler struct {
	service service.RealtimeService
	logger  zerolog.Logger
}

// NewRealtimeHandler creates a realtime handler instance.
func NewRealtimeHandler(service service.RealtimeService, logger zerolog.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		service: service,
		logger:  logger.With().Str("component", "realtime_handler").Logger(),
	}
}

// Register binds the websocket route under the provided router group.
func (h *RealtimeHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			ctx := c.UserContext()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
			c.Locals("request_ctx", ctx)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws", websocket.New(h.handleConnection))
}

func (h *RealtimeHandler) handleConnection(conn *websocket.Conn) {
	user := websocketUser(conn)
	if user.ID == 0 {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusUnauthorized, "user id missing"))
		_ = conn.Close()
		return
	}

	correlation := fmt.Sprint(conn.Locals("correlation_id"))
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)

	opts := service.RealtimeConnectionOptions{
		User:          user,
		CorrelationID: correlation,
		Context:       baseCtx,
	}

	h.logger.Info().Uint("user_id", user.ID).Msg("realtime websocket connected")
	h.service.ServeConnection(conn, opts)
	h.logger.Info().Uint("user_id", user.ID).Msg("realtime websocket disconnected")
}

func websocketUser(conn *websocket.Conn) models.User {
	user := models.User{}

	if value := conn.Locals("user_id"); value != nil {
		switch v := value.(type) {
		case uint:
			user.ID = v
		case int:
			if v > 0 {
				user.ID = uint(v)
			}
		case float64:
			if v > 0 {
				user.ID = uint(v)
			}
		}
	}

	if value := conn.Locals("user_role"); value != nil {
		if role, ok := value.(string); ok {
			user.Role = strings.TrimSpace(role)
		}
	}

	return user
}
