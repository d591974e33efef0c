package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cuongbtq/homeserve-be/internal/api/domain"
	"github.com/cuongbtq/homeserve-be/internal/api/dto"
	"github.com/cuongbtq/homeserve-be/internal/api/model"
	"github.com/cuongbtq/homeserve-be/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// AuthHandler handles registration, login and the current account
type AuthHandler struct {
	logger     *slog.Logger
	users      UserStore
	tokens     *auth.TokenManager
	bcryptCost int
	now        func() time.Time
}

func NewAuthHandler(deps *Dependencies) *AuthHandler {
	return &AuthHandler{
		logger:     deps.Logger,
		users:      deps.Users,
		tokens:     deps.Tokens,
		bcryptCost: deps.BcryptCost,
		now:        deps.now,
	}
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if req.Role == domain.RoleVendor && len(req.ServiceCategories) == 0 {
		badRequest(c, "vendors must serve at least one category")
		return
	}

	hash, err := auth.HashPassword(req.Password, h.bcryptCost)
	if err != nil {
		respondError(c, h.logger, "Failed to register", err)
		return
	}

	now := h.now()
	user := model.User{
		ID:                uuid.NewString(),
		Email:             strings.TrimSpace(req.Email),
		PasswordHash:      hash,
		Name:              req.Name,
		Phone:             req.Phone,
		Role:              req.Role,
		ServiceCategories: pq.StringArray{},
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if req.Role == domain.RoleVendor {
		user.BusinessName = &req.BusinessName
		user.ServiceCategories = pq.StringArray(req.ServiceCategories)
	}

	if err := h.users.CreateUser(c.Request.Context(), &user); err != nil {
		respondError(c, h.logger, "Failed to register", err)
		return
	}

	h.logger.Info("Account registered",
		slog.String("user_id", user.ID),
		slog.String("role", user.Role),
	)

	h.respondToken(c, http.StatusCreated, &user)
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := h.users.GetUserByEmail(c.Request.Context(), strings.TrimSpace(req.Email))
	if errors.Is(err, domain.ErrUserNotFound) {
		respondError(c, h.logger, "Failed to login", auth.ErrInvalidCredentials)
		return
	}
	if err != nil {
		respondError(c, h.logger, "Failed to login", err)
		return
	}

	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		respondError(c, h.logger, "Failed to login", err)
		return
	}

	if !user.IsActive {
		respondError(c, h.logger, "Failed to login", domain.ErrAccountInactive)
		return
	}

	h.respondToken(c, http.StatusOK, user)
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	p := auth.MustPrincipal(c.Request.Context())

	user, err := h.users.GetUserByID(c.Request.Context(), p.UserID)
	if err != nil {
		respondError(c, h.logger, "Failed to get account", err)
		return
	}

	c.JSON(http.StatusOK, dto.NewUserDTO(user))
}

func (h *AuthHandler) respondToken(c *gin.Context, status int, user *model.User) {
	principal := auth.Principal{UserID: user.ID, Role: user.Role}
	if user.VendorID != nil {
		principal.VendorID = *user.VendorID
	}

	token, expiresAt, err := h.tokens.Issue(principal)
	if err != nil {
		respondError(c, h.logger, "Failed to issue token", err)
		return
	}

	c.JSON(status, dto.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		User:        dto.NewUserDTO(user),
	})
}
