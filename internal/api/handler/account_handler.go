package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cuongbtq/homeserve-be/internal/api/domain"
	"github.com/cuongbtq/homeserve-be/internal/api/dto"
	"github.com/cuongbtq/homeserve-be/internal/api/model"
	"github.com/cuongbtq/homeserve-be/internal/api/storage"
	"github.com/cuongbtq/homeserve-be/internal/auth"
	"github.com/cuongbtq/homeserve-be/internal/events"
	"github.com/cuongbtq/homeserve-be/internal/realtime"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// AccountHandler handles vendor worker management and admin account operations
type AccountHandler struct {
	logger     *slog.Logger
	users      UserStore
	bookings   BookingStore
	scrap      ScrapStore
	publisher  EventPublisher
	alerts     *realtime.AlertTracker
	bcryptCost int
	now        func() time.Time
}

func NewAccountHandler(deps *Dependencies) *AccountHandler {
	return &AccountHandler{
		logger:     deps.Logger,
		users:      deps.Users,
		bookings:   deps.Bookings,
		scrap:      deps.Scrap,
		publisher:  deps.Publisher,
		alerts:     deps.Alerts,
		bcryptCost: deps.BcryptCost,
		now:        deps.now,
	}
}

// CreateWorker handles POST /api/v1/vendor/workers
func (h *AccountHandler) CreateWorker(c *gin.Context) {
	p := auth.MustPrincipal(c.Request.Context())

	var req dto.CreateWorkerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	hash, err := auth.HashPassword(req.Password, h.bcryptCost)
	if err != nil {
		respondError(c, h.logger, "Failed to create worker", err)
		return
	}

	now := h.now()
	vendorID := p.UserID
	worker := model.User{
		ID:                uuid.NewString(),
		Email:             strings.TrimSpace(req.Email),
		PasswordHash:      hash,
		Name:              req.Name,
		Phone:             req.Phone,
		Role:              domain.RoleWorker,
		VendorID:          &vendorID,
		ServiceCategories: pq.StringArray{},
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := h.users.CreateUser(c.Request.Context(), &worker); err != nil {
		respondError(c, h.logger, "Failed to create worker", err)
		return
	}

	h.logger.Info("Worker created",
		slog.String("vendor_id", vendorID),
		slog.String("worker_id", worker.ID),
	)

	c.JSON(http.StatusCreated, dto.NewUserDTO(&worker))
}

// ListWorkers handles GET /api/v1/vendor/workers
func (h *AccountHandler) ListWorkers(c *gin.Context) {
	p := auth.MustPrincipal(c.Request.Context())

	var req dto.PageRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondBindError(c, err)
		return
	}

	h.listUsers(c, storage.UserFilter{Role: domain.RoleWorker, VendorID: p.UserID}, req)
}

// DeactivateWorker handles DELETE /api/v1/vendor/workers/:id
func (h *AccountHandler) DeactivateWorker(c *gin.Context) {
	p := auth.MustPrincipal(c.Request.Context())
	workerID := c.Param("id")

	if err := h.users.DeactivateWorker(c.Request.Context(), p.UserID, workerID); err != nil {
		respondError(c, h.logger, "Failed to deactivate worker", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListUsers handles GET /api/v1/admin/users
func (h *AccountHandler) ListUsers(c *gin.Context) {
	var req dto.ListUsersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondBindError(c, err)
		return
	}

	h.listUsers(c, storage.UserFilter{Role: req.Role}, req.PageRequest)
}

func (h *AccountHandler) listUsers(c *gin.Context, filter storage.UserFilter, req dto.PageRequest) {
	page, err := pageFromRequest(req)
	if err != nil {
		badRequest(c, "invalid cursor")
		return
	}
	filter.Page = page

	users, err := h.users.ListUsers(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, "Failed to list users", err)
		return
	}

	users, next := trimPage(users, page, func(u model.User) (time.Time, string) { return u.CreatedAt, u.ID })

	resp := dto.ListUsersResponse{Users: make([]dto.UserDTO, len(users)), NextCursor: next}
	for i := range users {
		resp.Users[i] = dto.NewUserDTO(&users[i])
	}

	c.JSON(http.StatusOK, resp)
}

// ActivateUser handles POST /api/v1/admin/users/:id/activate
func (h *AccountHandler) ActivateUser(c *gin.Context) {
	h.setActive(c, true)
}

// DeactivateUser handles POST /api/v1/admin/users/:id/deactivate
func (h *AccountHandler) DeactivateUser(c *gin.Context) {
	h.setActive(c, false)
}

func (h *AccountHandler) setActive(c *gin.Context, active bool) {
	p := auth.MustPrincipal(c.Request.Context())
	id := c.Param("id")

	if id == p.UserID && !active {
		badRequest(c, "cannot deactivate your own account")
		return
	}

	user, err := h.users.SetUserActive(c.Request.Context(), id, active)
	if err != nil {
		respondError(c, h.logger, "Failed to update account", err)
		return
	}

	h.logger.Info("Account status changed",
		slog.String("user_id", user.ID),
		slog.Bool("active", active),
		slog.String("admin_id", p.UserID),
	)

	if !active {
		ev, err := events.New(events.AccountDeactivated, p.UserID,
			"Account deactivated", "Your account has been deactivated by an administrator", nil)
		if err == nil {
			h.publisher.Publish(c.Request.Context(), ev.To(user.ID))
		}
	}

	c.JSON(http.StatusOK, dto.NewUserDTO(user))
}

// Stats handles GET /api/v1/admin/stats
func (h *AccountHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	bookingCounts, err := h.bookings.CountBookingsByStatus(ctx)
	if err != nil {
		respondError(c, h.logger, "Failed to load stats", err)
		return
	}

	scrapCounts, err := h.scrap.CountScrapByStatus(ctx)
	if err != nil {
		respondError(c, h.logger, "Failed to load stats", err)
		return
	}

	resp := dto.StatsResponse{
		Bookings: toStatusCounts(bookingCounts),
		Scrap:    toStatusCounts(scrapCounts),
	}
	if h.alerts != nil {
		resp.Realtime.OpenAlerts = h.alerts.Len()
	}

	c.JSON(http.StatusOK, resp)
}

func toStatusCounts(counts []model.StatusCount) []dto.StatusCountDTO {
	out := make([]dto.StatusCountDTO, len(counts))
	for i, sc := range counts {
		out[i] = dto.StatusCountDTO{Status: sc.Status, Count: sc.Count}
	}
	return out
}
