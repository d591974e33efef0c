package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/cuongbtq/homeserve-be/internal/api/domain"
	"github.com/cuongbtq/homeserve-be/internal/api/dto"
	"github.com/cuongbtq/homeserve-be/internal/api/model"
	"github.com/cuongbtq/homeserve-be/internal/api/storage"
	"github.com/cuongbtq/homeserve-be/internal/auth"
	"github.com/cuongbtq/homeserve-be/internal/config"
	"github.com/cuongbtq/homeserve-be/internal/events"
	"github.com/cuongbtq/homeserve-be/internal/realtime"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// ScrapHandler handles scrap pickup requests
type ScrapHandler struct {
	logger      *slog.Logger
	scrap       ScrapStore
	images      ImageStore
	publisher   EventPublisher
	marketplace config.MarketplaceConfig
	now         func() time.Time
}

func NewScrapHandler(deps *Dependencies) *ScrapHandler {
	return &ScrapHandler{
		logger:      deps.Logger,
		scrap:       deps.Scrap,
		images:      deps.Images,
		publisher:   deps.Publisher,
		marketplace: deps.Marketplace,
		now:         deps.now,
	}
}

// CreateScrap handles POST /api/v1/scrap
func (h *ScrapHandler) CreateScrap(c *gin.Context) {
	p := auth.MustPrincipal(c.Request.Context())

	var req dto.CreateScrapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	now := h.now()
	if !req.PickupAt.After(now) {
		badRequest(c, "pickup_at must be in the future")
		return
	}

	item := model.ScrapItem{
		ID:                uuid.NewString(),
		UserID:            p.UserID,
		Category:          req.Category,
		Description:       req.Description,
		EstimatedWeightKg: req.EstimatedWeightKg,
		EstimatedPrice:    req.EstimatedPrice,
		PickupAddress:     req.PickupAddress,
		PickupAt:          req.PickupAt.UTC(),
		Images:            pq.StringArray{},
		Status:            domain.ScrapStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := h.scrap.CreateScrap(c.Request.Context(), &item); err != nil {
		respondError(c, h.logger, "Failed to create scrap request", err)
		return
	}

	itemDTO := dto.NewScrapItemDTO(&item)
	h.publisher.Broadcast([]string{realtime.CategoryRoom(domain.CategoryScrapPickup)}, realtime.EventScrapNew, itemDTO)

	if ev, err := events.New(events.ScrapCreated, p.UserID,
		"New scrap pickup", "A "+item.Category+" scrap pickup was requested",
		scrapEventData(&item)); err == nil {
		h.publisher.Publish(c.Request.Context(), ev.ToCategory(domain.CategoryScrapPickup))
	}

	h.logger.Info("Scrap request created",
		slog.String("scrap_id", item.ID),
		slog.String("category", item.Category),
	)

	c.JSON(http.StatusCreated, itemDTO)
}

// ListScrap handles GET /api/v1/scrap
// Vendors see pending items with available=true, otherwise the items they accepted
func (h *ScrapHandler) ListScrap(c *gin.Context) {
	p := auth.MustPrincipal(c.Request.Context())

	var req dto.ListScrapRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondBindError(c, err)
		return
	}

	page, err := pageFromRequest(req.PageRequest)
	if err != nil {
		badRequest(c, "invalid cursor")
		return
	}

	filter := storage.ScrapFilter{
		Status:   req.Status,
		Category: req.Category,
		Page:     page,
	}
	switch p.Role {
	case domain.RoleUser:
		filter.UserID = p.UserID
	case domain.RoleVendor:
		if req.Available {
			filter.Status = domain.ScrapStatusPending
		} else {
			filter.VendorID = p.UserID
		}
	case domain.RoleAdmin:
	default:
		forbidden(c)
		return
	}

	items, err := h.scrap.ListScrap(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, "Failed to list scrap requests", err)
		return
	}

	items, next := trimPage(items, page, func(s model.ScrapItem) (time.Time, string) { return s.CreatedAt, s.ID })

	resp := dto.ListScrapResponse{Items: make([]dto.ScrapItemDTO, len(items)), NextCursor: next}
	for i := range items {
		resp.Items[i] = dto.NewScrapItemDTO(&items[i])
	}

	c.JSON(http.StatusOK, resp)
}

// GetScrap handles GET /api/v1/scrap/:id
func (h *ScrapHandler) GetScrap(c *gin.Context) {
	p := auth.MustPrincipal(c.Request.Context())

	item, err := h.scrap.GetScrap(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "Failed to get scrap request", err)
		return
	}

	if !canViewScrap(p, item) {
		forbidden(c)
		return
	}

	c.JSON(http.StatusOK, dto.NewScrapItemDTO(item))
}

func canViewScrap(p auth.Principal, s *model.ScrapItem) bool {
	switch p.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleUser:
		return s.UserID == p.UserID
	case domain.RoleVendor:
		return s.Status == domain.ScrapStatusPending || isUser(s.VendorID, p.UserID)
	}
	return false
}

// UpdateScrap handles PATCH /api/v1/scrap/:id
func (h *ScrapHandler) UpdateScrap(c *gin.Context) {
	p := auth.MustPrincipal(c.Request.Context())

	var req dto.UpdateScrapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	now := h.now()
	if req.PickupAt != nil && !req.PickupAt.After(now) {
		badRequest(c, "pickup_at must be in the future")
		return
	}

	if err := h.requireOwner(c, p); err != nil {
		return
	}

	item, err := h.scrap.UpdateScrap(c.Request.Context(), c.Param("id"), p.UserID, storage.ScrapUpdate{
		Category:          req.Category,
		Description:       req.Description,
		EstimatedWeightKg: req.EstimatedWeightKg,
		EstimatedPrice:    req.EstimatedPrice,
		PickupAddress:     req.PickupAddress,
		PickupAt:          req.PickupAt,
	}, now)
	if err != nil {
		respondError(c, h.logger, "Failed to update scrap request", err)
		return
	}

	h.pushUpdate(item)
	c.JSON(http.StatusOK, dto.NewScrapItemDTO(item))
}

// AcceptScrap handles POST /api/v1/scrap/:id/accept
// At most one vendor can accept a pending item
func (h *ScrapHandler) AcceptScrap(c *gin.Context) {
	p := auth.MustPrincipal(c.Request.Context())
	ctx := c.Request.Context()

	item, err := h.scrap.AcceptScrap(ctx, c.Param("id"), p.UserID, h.now())
	if err != nil {
		respondError(c, h.logger, "Failed to accept scrap request", err)
		return
	}

	h.pushUpdate(item)
	h.notify(ctx, events.ScrapAccepted, p.UserID, item,
		"Scrap pickup accepted", "A vendor will pick up your "+item.Category+" scrap",
		item.UserID)

	c.JSON(http.StatusOK, dto.NewScrapItemDTO(item))
}

// CompleteScrap handles POST /api/v1/scrap/:id/complete
func (h *ScrapHandler) CompleteScrap(c *gin.Context) {
	p := auth.MustPrincipal(c.Request.Context())
	ctx := c.Request.Context()

	var req dto.CompleteScrapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	item, err := h.scrap.CompleteScrap(ctx, c.Param("id"), p.UserID, storage.ScrapCompletion{
		FinalWeightKg: req.FinalWeightKg,
		FinalPrice:    req.FinalPrice,
		PayoutMethod:  req.PayoutMethod,
	}, h.now())
	if err != nil {
		respondError(c, h.logger, "Failed to complete scrap request", err)
		return
	}

	h.pushUpdate(item)
	if req.PayoutMethod == domain.PayoutMethodWallet && req.FinalPrice > 0 {
		h.publisher.Broadcast(
			[]string{realtime.UserRoom(item.UserID), realtime.UserRoom(p.UserID)},
			realtime.EventWalletUpdated,
			gin.H{"reference_type": storage.ReferenceScrap, "reference_id": item.ID},
		)
	}
	h.notify(ctx, events.ScrapCompleted, p.UserID, item,
		"Scrap pickup completed", "Your "+item.Category+" scrap was collected",
		item.UserID)

	c.JSON(http.StatusOK, dto.NewScrapItemDTO(item))
}

// CancelScrap handles POST /api/v1/scrap/:id/cancel
func (h *ScrapHandler) CancelScrap(c *gin.Context) {
	p := auth.MustPrincipal(c.Request.Context())
	ctx := c.Request.Context()

	var req dto.ReasonRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondBindError(c, err)
		return
	}

	current, err := h.scrap.GetScrap(ctx, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "Failed to cancel scrap request", err)
		return
	}
	if p.Role != domain.RoleAdmin && current.UserID != p.UserID {
		forbidden(c)
		return
	}

	item, err := h.scrap.CancelScrap(ctx, current.ID,
		[]string{domain.ScrapStatusPending, domain.ScrapStatusAccepted}, req.Reason, h.now())
	if err != nil {
		respondError(c, h.logger, "Failed to cancel scrap request", err)
		return
	}

	h.pushUpdate(item)
	h.notify(ctx, events.ScrapCancelled, p.UserID, item,
		"Scrap pickup cancelled", "The "+item.Category+" scrap pickup was cancelled",
		item.UserID, deref(item.VendorID))

	c.JSON(http.StatusOK, dto.NewScrapItemDTO(item))
}

// DeleteScrap handles DELETE /api/v1/scrap/:id
// Owners may delete pending or cancelled items; admins any item
func (h *ScrapHandler) DeleteScrap(c *gin.Context) {
	p := auth.MustPrincipal(c.Request.Context())
	ctx := c.Request.Context()

	item, err := h.scrap.GetScrap(ctx, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "Failed to delete scrap request", err)
		return
	}

	var allowed []string
	if p.Role != domain.RoleAdmin {
		if item.UserID != p.UserID {
			forbidden(c)
			return
		}
		allowed = []string{domain.ScrapStatusPending, domain.ScrapStatusCancelled}
	}

	if err := h.scrap.DeleteScrap(ctx, item.ID, allowed); err != nil {
		respondError(c, h.logger, "Failed to delete scrap request", err)
		return
	}

	h.removeImages(ctx, item.Images)
	c.Status(http.StatusNoContent)
}

// UploadImage handles POST /api/v1/scrap/:id/images
func (h *ScrapHandler) UploadImage(c *gin.Context) {
	p := auth.MustPrincipal(c.Request.Context())
	ctx := c.Request.Context()

	if h.images == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: "image storage is not configured"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.marketplace.MaxImageBytes+1<<20)

	header, err := c.FormFile("image")
	if err != nil {
		badRequest(c, "image file is required")
		return
	}
	if header.Size > h.marketplace.MaxImageBytes {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, dto.ErrorResponse{Error: "image too large"})
		return
	}

	item, err := h.scrap.GetScrap(ctx, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "Failed to upload image", err)
		return
	}
	if item.UserID != p.UserID {
		forbidden(c)
		return
	}
	if item.Status != domain.ScrapStatusPending {
		respondError(c, h.logger, "Failed to upload image", domain.ErrInvalidTransition)
		return
	}
	if len(item.Images) >= h.marketplace.MaxScrapImages {
		respondError(c, h.logger, "Failed to upload image", domain.ErrImageLimitReached)
		return
	}

	file, err := header.Open()
	if err != nil {
		badRequest(c, "unreadable image")
		return
	}
	defer file.Close()

	// The part's Content-Type header is client supplied; trust the bytes instead
	mtype, err := mimetype.DetectReader(file)
	if err != nil {
		badRequest(c, "unreadable image")
		return
	}
	contentType := mtype.String()
	ext, ok := imageExtensions[contentType]
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, dto.ErrorResponse{Error: "image must be jpeg, png or webp"})
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		respondError(c, h.logger, "Failed to upload image", err)
		return
	}

	key := path.Join("scrap", item.ID, uuid.NewString()+ext)
	url, err := h.images.Put(ctx, key, file, header.Size, contentType)
	if err != nil {
		respondError(c, h.logger, "Failed to upload image", err)
		return
	}

	updated, err := h.scrap.AddScrapImage(ctx, item.ID, p.UserID, url, h.marketplace.MaxScrapImages, h.now())
	if err != nil {
		h.removeImages(ctx, []string{url})
		respondError(c, h.logger, "Failed to upload image", err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewScrapItemDTO(updated))
}

func (h *ScrapHandler) requireOwner(c *gin.Context, p auth.Principal) error {
	item, err := h.scrap.GetScrap(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "Failed to load scrap request", err)
		return err
	}
	if item.UserID != p.UserID {
		forbidden(c)
		return domain.ErrForbidden
	}
	return nil
}

// removeImages deletes stored objects; failures only leave orphans behind
func (h *ScrapHandler) removeImages(ctx context.Context, urls []string) {
	if h.images == nil {
		return
	}
	for _, u := range urls {
		key := objectKey(u)
		if key == "" {
			continue
		}
		if err := h.images.Remove(ctx, key); err != nil {
			h.logger.Warn("Failed to remove scrap image", slog.String("key", key), slog.Any("error", err))
		}
	}
}

// objectKey recovers the "scrap/<id>/<file>" key from a stored image URL
func objectKey(url string) string {
	i := strings.Index(url, "/scrap/")
	if i < 0 {
		return ""
	}
	return url[i+1:]
}

func (h *ScrapHandler) pushUpdate(item *model.ScrapItem) {
	rooms := []string{realtime.UserRoom(item.UserID)}
	if item.VendorID != nil {
		rooms = append(rooms, realtime.UserRoom(*item.VendorID))
	}
	if item.Status != domain.ScrapStatusPending {
		rooms = append(rooms, realtime.CategoryRoom(domain.CategoryScrapPickup))
	}
	h.publisher.Broadcast(rooms, realtime.EventScrapUpdated, dto.NewScrapItemDTO(item))
}

func (h *ScrapHandler) notify(ctx context.Context, eventType, actorID string, item *model.ScrapItem, title, message string, recipients ...string) {
	ev, err := events.New(eventType, actorID, title, message, scrapEventData(item))
	if err != nil {
		h.logger.Error("Failed to build event", slog.String("type", eventType), slog.Any("error", err))
		return
	}

	for _, id := range recipients {
		if id != actorID {
			ev.To(id)
		}
	}
	if len(ev.Recipients) == 0 {
		return
	}
	h.publisher.Publish(ctx, ev)
}

func scrapEventData(item *model.ScrapItem) map[string]any {
	return map[string]any{
		"scrap_id": item.ID,
		"category": item.Category,
		"status":   item.Status,
	}
}
