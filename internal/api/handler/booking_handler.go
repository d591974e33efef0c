package handler

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/cuongbtq/homeserve-be/internal/api/domain"
	"github.com/cuongbtq/homeserve-be/internal/api/dto"
	"github.com/cuongbtq/homeserve-be/internal/api/model"
	"github.com/cuongbtq/homeserve-be/internal/api/storage"
	"github.com/cuongbtq/homeserve-be/internal/auth"
	"github.com/cuongbtq/homeserve-be/internal/config"
	"github.com/cuongbtq/homeserve-be/internal/events"
	"github.com/cuongbtq/homeserve-be/internal/metrics"
	"github.com/cuongbtq/homeserve-be/internal/realtime"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// BookingHandler handles the booking lifecycle
type BookingHandler struct {
	logger      *slog.Logger
	users       UserStore
	bookings    BookingStore
	publisher   EventPublisher
	alerts      *realtime.AlertTracker
	marketplace config.MarketplaceConfig
	now         func() time.Time
}

func NewBookingHandler(deps *Dependencies) *BookingHandler {
	return &BookingHandler{
		logger:      deps.Logger,
		users:       deps.Users,
		bookings:    deps.Bookings,
		publisher:   deps.Publisher,
		alerts:      deps.Alerts,
		marketplace: deps.Marketplace,
		now:         deps.now,
	}
}

// CreateBooking handles POST /api/v1/bookings
// Opens the booking to every vendor serving the category for the alert TTL
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	p := auth.MustPrincipal(c.Request.Context())

	var req dto.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	now := h.now()
	if !req.ScheduledAt.After(now) {
		badRequest(c, "scheduled_at must be in the future")
		return
	}

	booking := model.Booking{
		ID:             uuid.NewString(),
		UserID:         p.UserID,
		Category:       req.Category,
		Address:        req.Address,
		ScheduledAt:    req.ScheduledAt.UTC(),
		Notes:          req.Notes,
		Amount:         req.Amount,
		PaymentMethod:  req.PaymentMethod,
		PaymentStatus:  domain.PaymentStatusUnpaid,
		Status:         domain.BookingStatusPending,
		AlertExpiresAt: now.Add(h.marketplace.AlertTTL),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := h.bookings.CreateBooking(c.Request.Context(), &booking); err != nil {
		respondError(c, h.logger, "Failed to create booking", err)
		return
	}

	metrics.IncreaseBookingsCreated(booking.Category)
	h.alerts.Arm(booking.ID, booking.AlertExpiresAt)

	h.publisher.Broadcast(
		[]string{realtime.CategoryRoom(booking.Category)},
		realtime.EventBookingAlert,
		dto.NewBookingAlertDTO(&booking, now),
	)

	if ev, err := events.New(events.BookingCreated, p.UserID,
		"New booking request", "A new "+booking.Category+" booking is waiting for a vendor",
		bookingEventData(&booking)); err == nil {
		h.publisher.Publish(c.Request.Context(), ev.ToCategory(booking.Category))
	}

	h.logger.Info("Booking created",
		slog.String("booking_id", booking.ID),
		slog.String("category", booking.Category),
		slog.Time("alert_expires_at", booking.AlertExpiresAt),
	)

	c.JSON(http.StatusCreated, dto.NewBookingDTO(&booking))
}

// ListBookings handles GET /api/v1/bookings
// Results are scoped to the caller's role
func (h *BookingHandler) ListBookings(c *gin.Context) {
	p := auth.MustPrincipal(c.Request.Context())

	var req dto.ListBookingsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondBindError(c, err)
		return
	}

	page, err := pageFromRequest(req.PageRequest)
	if err != nil {
		badRequest(c, "invalid cursor")
		return
	}

	filter := storage.BookingFilter{
		Status:   req.Status,
		Category: req.Category,
		Page:     page,
	}
	switch p.Role {
	case domain.RoleUser:
		filter.UserID = p.UserID
	case domain.RoleVendor:
		filter.VendorID = p.UserID
	case domain.RoleWorker:
		filter.WorkerID = p.UserID
	}

	bookings, err := h.bookings.ListBookings(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, "Failed to list bookings", err)
		return
	}

	bookings, next := trimPage(bookings, page, func(b model.Booking) (time.Time, string) { return b.CreatedAt, b.ID })

	resp := dto.ListBookingsResponse{Bookings: make([]dto.BookingDTO, len(bookings)), NextCursor: next}
	for i := range bookings {
		resp.Bookings[i] = dto.NewBookingDTO(&bookings[i])
	}

	c.JSON(http.StatusOK, resp)
}

// GetBooking handles GET /api/v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	p := auth.MustPrincipal(c.Request.Context())

	booking, err := h.bookings.GetBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "Failed to get booking", err)
		return
	}

	if !canViewBooking(p, booking) {
		forbidden(c)
		return
	}

	c.JSON(http.StatusOK, dto.NewBookingDTO(booking))
}

// canViewBooking allows participants, admins, and vendors looking at an open offer
func canViewBooking(p auth.Principal, b *model.Booking) bool {
	switch p.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleUser:
		return b.UserID == p.UserID
	case domain.RoleVendor:
		return b.Status == domain.BookingStatusPending || isUser(b.VendorID, p.UserID)
	case domain.RoleWorker:
		return isUser(b.WorkerID, p.UserID)
	}
	return false
}

func isUser(id *string, userID string) bool {
	return id != nil && *id == userID
}

// ListAlerts handles GET /api/v1/bookings/alerts
// Returns the open offers for the vendor with their remaining countdown
func (h *BookingHandler) ListAlerts(c *gin.Context) {
	p := auth.MustPrincipal(c.Request.Context())
	ctx := c.Request.Context()

	vendor, err := h.users.GetUserByID(ctx, p.UserID)
	if err != nil {
		respondError(c, h.logger, "Failed to list alerts", err)
		return
	}

	now := h.now()
	bookings, err := h.bookings.ListOpenAlerts(ctx, vendor.ID, vendor.ServiceCategories, now)
	if err != nil {
		respondError(c, h.logger, "Failed to list alerts", err)
		return
	}

	resp := dto.ListAlertsResponse{Alerts: make([]dto.BookingAlertDTO, 0, len(bookings))}
	for i := range bookings {
		alert := dto.NewBookingAlertDTO(&bookings[i], now)
		if alert.RemainingSeconds > 0 {
			resp.Alerts = append(resp.Alerts, alert)
		}
	}

	c.JSON(http.StatusOK, resp)
}

// AcceptBooking handles POST /api/v1/bookings/:id/accept
// At most one vendor can accept; every other caller gets 409
func (h *BookingHandler) AcceptBooking(c *gin.Context) {
	p := auth.MustPrincipal(c.Request.Context())
	ctx := c.Request.Context()
	id := c.Param("id")

	vendor, err := h.users.GetUserByID(ctx, p.UserID)
	if err != nil {
		respondError(c, h.logger, "Failed to accept booking", err)
		return
	}

	current, err := h.bookings.GetBooking(ctx, id)
	if err != nil {
		respondError(c, h.logger, "Failed to accept booking", err)
		return
	}
	if !slices.Contains(vendor.ServiceCategories, current.Category) {
		respondError(c, h.logger, "Failed to accept booking", domain.ErrCategoryNotServed)
		return
	}

	booking, err := h.bookings.AcceptBooking(ctx, id, vendor.ID, h.now())
	if err != nil {
		h.logger.Info("Booking acceptance refused",
			slog.String("booking_id", id),
			slog.String("vendor_id", vendor.ID),
			slog.String("reason", err.Error()),
		)
		respondError(c, h.logger, "Failed to accept booking", err)
		return
	}

	h.alerts.Disarm(booking.ID)
	h.closeAlert(booking, domain.BookingStatusAccepted)
	h.pushUpdate(booking)

	h.notify(ctx, events.BookingAccepted, p.UserID, booking,
		"Booking accepted", "A vendor accepted your "+booking.Category+" booking",
		booking.UserID)

	h.logger.Info("Booking accepted",
		slog.String("booking_id", booking.ID),
		slog.String("vendor_id", vendor.ID),
	)

	c.JSON(http.StatusOK, dto.NewBookingDTO(booking))
}

// RejectBooking handles POST /api/v1/bookings/:id/reject
// The booking stays open for other vendors
func (h *BookingHandler) RejectBooking(c *gin.Context) {
	p := auth.MustPrincipal(c.Request.Context())
	ctx := c.Request.Context()

	booking, err := h.bookings.GetBooking(ctx, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "Failed to reject booking", err)
		return
	}
	if booking.Status != domain.BookingStatusPending {
		respondError(c, h.logger, "Failed to reject booking", domain.ErrInvalidTransition)
		return
	}

	if err := h.bookings.RejectBooking(ctx, booking.ID, p.UserID); err != nil {
		respondError(c, h.logger, "Failed to reject booking", err)
		return
	}

	h.publisher.Broadcast([]string{realtime.UserRoom(p.UserID)}, realtime.EventBookingAlertClosed,
		gin.H{"booking_id": booking.ID, "reason": "rejected"})

	c.Status(http.StatusNoContent)
}

// AssignWorker handles POST /api/v1/bookings/:id/assign
func (h *BookingHandler) AssignWorker(c *gin.Context) {
	p := auth.MustPrincipal(c.Request.Context())
	ctx := c.Request.Context()

	var req dto.AssignWorkerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if _, err := h.users.GetActiveWorker(ctx, p.UserID, req.WorkerID); err != nil {
		respondError(c, h.logger, "Failed to assign worker", err)
		return
	}

	booking, err := h.bookings.AssignWorker(ctx, c.Param("id"), p.UserID, req.WorkerID, h.now())
	if err != nil {
		respondError(c, h.logger, "Failed to assign worker", err)
		return
	}

	h.pushUpdate(booking)
	h.notify(ctx, events.BookingAssigned, p.UserID, booking,
		"New job assigned", "You have been assigned a "+booking.Category+" job",
		req.WorkerID, booking.UserID)

	c.JSON(http.StatusOK, dto.NewBookingDTO(booking))
}

// DeclineAssignment handles POST /api/v1/bookings/:id/decline
// Hands the job back to the vendor for reassignment
func (h *BookingHandler) DeclineAssignment(c *gin.Context) {
	p := auth.MustPrincipal(c.Request.Context())
	ctx := c.Request.Context()

	booking, err := h.bookings.DeclineAssignment(ctx, c.Param("id"), p.UserID, h.now())
	if err != nil {
		respondError(c, h.logger, "Failed to decline assignment", err)
		return
	}

	h.pushUpdate(booking)
	h.notify(ctx, events.BookingDeclined, p.UserID, booking,
		"Assignment declined", "A worker declined a "+booking.Category+" job; please reassign",
		deref(booking.VendorID))

	c.JSON(http.StatusOK, dto.NewBookingDTO(booking))
}

// StartBooking handles POST /api/v1/bookings/:id/start
func (h *BookingHandler) StartBooking(c *gin.Context) {
	p := auth.MustPrincipal(c.Request.Context())
	ctx := c.Request.Context()

	booking, err := h.bookings.StartBooking(ctx, c.Param("id"), p.UserID, h.now())
	if err != nil {
		respondError(c, h.logger, "Failed to start booking", err)
		return
	}

	h.pushUpdate(booking)
	h.notify(ctx, events.BookingStarted, p.UserID, booking,
		"Work started", "Your "+booking.Category+" job has started",
		booking.UserID)

	c.JSON(http.StatusOK, dto.NewBookingDTO(booking))
}

// CompleteBooking handles POST /api/v1/bookings/:id/complete
func (h *BookingHandler) CompleteBooking(c *gin.Context) {
	p := auth.MustPrincipal(c.Request.Context())
	ctx := c.Request.Context()

	current, err := h.bookings.GetBooking(ctx, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "Failed to complete booking", err)
		return
	}
	if !isUser(current.WorkerID, p.UserID) && !isUser(current.VendorID, p.UserID) {
		forbidden(c)
		return
	}

	booking, err := h.bookings.CompleteBooking(ctx, current.ID, h.now())
	if err != nil {
		respondError(c, h.logger, "Failed to complete booking", err)
		return
	}

	h.pushUpdate(booking)
	h.notify(ctx, events.BookingCompleted, p.UserID, booking,
		"Job completed", "Your "+booking.Category+" job is complete",
		booking.UserID, deref(booking.VendorID))

	c.JSON(http.StatusOK, dto.NewBookingDTO(booking))
}

// CancelBooking handles POST /api/v1/bookings/:id/cancel
// Owners may cancel until work starts; admins may cancel the same statuses for anyone
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	p := auth.MustPrincipal(c.Request.Context())
	ctx := c.Request.Context()

	var req dto.ReasonRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondBindError(c, err)
		return
	}

	current, err := h.bookings.GetBooking(ctx, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "Failed to cancel booking", err)
		return
	}
	if p.Role != domain.RoleAdmin && current.UserID != p.UserID {
		forbidden(c)
		return
	}

	booking, err := h.bookings.CancelBooking(ctx, current.ID,
		domain.BookingStatusesFrom(domain.BookingStatusCancelled), req.Reason, h.now())
	if err != nil {
		respondError(c, h.logger, "Failed to cancel booking", err)
		return
	}

	if h.alerts.Disarm(booking.ID) || current.Status == domain.BookingStatusPending {
		h.closeAlert(booking, domain.BookingStatusCancelled)
	}
	h.pushUpdate(booking)
	h.notify(ctx, events.BookingCancelled, p.UserID, booking,
		"Booking cancelled", "The "+booking.Category+" booking was cancelled",
		booking.UserID, deref(booking.VendorID), deref(booking.WorkerID))

	c.JSON(http.StatusOK, dto.NewBookingDTO(booking))
}

// PayBooking handles POST /api/v1/bookings/:id/pay
// Settles a completed booking from the owner's wallet
func (h *BookingHandler) PayBooking(c *gin.Context) {
	p := auth.MustPrincipal(c.Request.Context())
	ctx := c.Request.Context()

	booking, err := h.bookings.PayBookingFromWallet(ctx, c.Param("id"), p.UserID, h.marketplace.CommissionPercent, h.now())
	if err != nil {
		respondError(c, h.logger, "Failed to pay booking", err)
		return
	}

	h.pushUpdate(booking)
	h.publisher.Broadcast(
		[]string{realtime.UserRoom(booking.UserID), realtime.UserRoom(deref(booking.VendorID))},
		realtime.EventWalletUpdated,
		gin.H{"reference_type": storage.ReferenceBooking, "reference_id": booking.ID},
	)
	h.notify(ctx, events.BookingPaid, p.UserID, booking,
		"Payment received", "A "+booking.Category+" booking was paid from the customer's wallet",
		deref(booking.VendorID))

	c.JSON(http.StatusOK, dto.NewBookingDTO(booking))
}

// MarkBookingPaid handles POST /api/v1/bookings/:id/mark-paid
// Records a cash payment collected by the vendor
func (h *BookingHandler) MarkBookingPaid(c *gin.Context) {
	p := auth.MustPrincipal(c.Request.Context())
	ctx := c.Request.Context()

	booking, err := h.bookings.MarkBookingPaid(ctx, c.Param("id"), p.UserID, h.now())
	if err != nil {
		respondError(c, h.logger, "Failed to mark booking paid", err)
		return
	}

	h.pushUpdate(booking)
	h.notify(ctx, events.BookingPaid, p.UserID, booking,
		"Payment recorded", "Your cash payment was recorded",
		booking.UserID)

	c.JSON(http.StatusOK, dto.NewBookingDTO(booking))
}

// closeAlert tells every vendor still looking at the offer that it is gone
func (h *BookingHandler) closeAlert(b *model.Booking, reason string) {
	h.publisher.Broadcast(
		[]string{realtime.CategoryRoom(b.Category)},
		realtime.EventBookingAlertClosed,
		gin.H{"booking_id": b.ID, "reason": reason},
	)
}

func (h *BookingHandler) pushUpdate(b *model.Booking) {
	pushBookingUpdate(h.publisher, b)
}

func (h *BookingHandler) notify(ctx context.Context, eventType, actorID string, b *model.Booking, title, message string, recipients ...string) {
	ev, err := events.New(eventType, actorID, title, message, bookingEventData(b))
	if err != nil {
		h.logger.Error("Failed to build event", slog.String("type", eventType), slog.Any("error", err))
		return
	}

	ev.To(slices.DeleteFunc(recipients, func(id string) bool { return id == actorID })...)
	if len(ev.Recipients) == 0 {
		return
	}
	h.publisher.Publish(ctx, ev)
}

func pushBookingUpdate(publisher EventPublisher, b *model.Booking) {
	rooms := []string{realtime.UserRoom(b.UserID)}
	if b.VendorID != nil {
		rooms = append(rooms, realtime.UserRoom(*b.VendorID))
	}
	if b.WorkerID != nil {
		rooms = append(rooms, realtime.UserRoom(*b.WorkerID))
	}
	publisher.Broadcast(rooms, realtime.EventBookingUpdated, dto.NewBookingDTO(b))
}

func bookingEventData(b *model.Booking) map[string]any {
	return map[string]any{
		"booking_id": b.ID,
		"category":   b.Category,
		"status":     b.Status,
		"amount":     b.Amount,
	}
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// ExpireBookingAlert returns the countdown callback: it expires the booking if no
// vendor accepted in time, closes the offer and tells the owner. Safe to race with
// the worker-service sweeper since only one conditional update can win.
func ExpireBookingAlert(deps *Dependencies) func(bookingID string) {
	return func(bookingID string) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		logger := deps.Logger.With(slog.String("booking_id", bookingID))

		booking, expired, err := deps.Bookings.ExpireBooking(ctx, bookingID, deps.now())
		if err != nil {
			logger.Error("Failed to expire booking alert", slog.Any("error", err))
			return
		}
		if !expired {
			logger.Debug("Booking alert already resolved")
			return
		}

		metrics.IncreaseBookingAlertsExpired()

		deps.Publisher.Broadcast(
			[]string{realtime.CategoryRoom(booking.Category)},
			realtime.EventBookingAlertClosed,
			gin.H{"booking_id": booking.ID, "reason": domain.BookingStatusExpired},
		)
		pushBookingUpdate(deps.Publisher, booking)

		ev, err := events.New(events.BookingExpired, "",
			"No vendor available", "No vendor accepted your "+booking.Category+" booking in time",
			bookingEventData(booking))
		if err == nil {
			deps.Publisher.Publish(ctx, ev.To(booking.UserID))
		}

		logger.Info("Booking alert expired")
	}
}

// RearmAlerts restarts countdowns for bookings still pending, e.g. after a restart.
// Bookings whose deadline already passed expire immediately.
func RearmAlerts(ctx context.Context, deps *Dependencies, limit int) (int, error) {
	pending, err := deps.Bookings.ListPendingBookings(ctx, limit)
	if err != nil {
		return 0, err
	}

	for _, b := range pending {
		deps.Alerts.Arm(b.ID, b.AlertExpiresAt)
	}

	return len(pending), nil
}
