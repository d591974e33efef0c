package handler

import (
	"log/slog"

	"github.com/cuongbtq/homeserve-be/internal/api/domain"
	"github.com/cuongbtq/homeserve-be/internal/auth"
	"github.com/cuongbtq/homeserve-be/internal/realtime"
	"github.com/gin-gonic/gin"
)

// RealtimeHandler upgrades authenticated callers to a push channel
type RealtimeHandler struct {
	logger *slog.Logger
	users  UserStore
	hub    *realtime.Hub
}

func NewRealtimeHandler(deps *Dependencies) *RealtimeHandler {
	return &RealtimeHandler{
		logger: deps.Logger,
		users:  deps.Users,
		hub:    deps.Hub,
	}
}

// WebSocket handles GET /api/v1/realtime/ws
func (h *RealtimeHandler) WebSocket(c *gin.Context) {
	p := auth.MustPrincipal(c.Request.Context())

	rooms, err := h.rooms(c, p)
	if err != nil {
		respondError(c, h.logger, "Failed to open realtime channel", err)
		return
	}

	if err := h.hub.ServeWebSocket(c.Writer, c.Request, p.UserID, rooms); err != nil {
		// the upgrader has already written the HTTP error
		h.logger.Warn("WebSocket upgrade failed",
			slog.String("user_id", p.UserID),
			slog.Any("error", err),
		)
	}
}

// SSE handles GET /api/v1/realtime/sse
func (h *RealtimeHandler) SSE(c *gin.Context) {
	p := auth.MustPrincipal(c.Request.Context())

	rooms, err := h.rooms(c, p)
	if err != nil {
		respondError(c, h.logger, "Failed to open realtime channel", err)
		return
	}

	h.hub.ServeSSE(c, p.UserID, rooms)
}

// rooms lists the caller's own room, its role room and, for vendors, one room
// per served category
func (h *RealtimeHandler) rooms(c *gin.Context, p auth.Principal) ([]string, error) {
	rooms := []string{realtime.UserRoom(p.UserID), realtime.RoleRoom(p.Role)}

	if p.Role != domain.RoleVendor {
		return rooms, nil
	}

	vendor, err := h.users.GetUserByID(c.Request.Context(), p.UserID)
	if err != nil {
		return nil, err
	}
	for _, category := range vendor.ServiceCategories {
		rooms = append(rooms, realtime.CategoryRoom(category))
	}

	return rooms, nil
}
