package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/homeserve-be/internal/api/domain"
	"github.com/cuongbtq/homeserve-be/internal/api/dto"
	"github.com/cuongbtq/homeserve-be/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var errorStatus = []struct {
	err    error
	status int
}{
	{domain.ErrUserNotFound, http.StatusNotFound},
	{domain.ErrBookingNotFound, http.StatusNotFound},
	{domain.ErrScrapNotFound, http.StatusNotFound},
	{domain.ErrNotificationNotFound, http.StatusNotFound},
	{domain.ErrWalletNotFound, http.StatusNotFound},
	{domain.ErrForbidden, http.StatusForbidden},
	{domain.ErrAccountInactive, http.StatusForbidden},
	{domain.ErrCategoryNotServed, http.StatusForbidden},
	{domain.ErrInvalidTransition, http.StatusConflict},
	{domain.ErrAlreadyAccepted, http.StatusConflict},
	{domain.ErrAlertExpired, http.StatusConflict},
	{domain.ErrDuplicateEmail, http.StatusConflict},
	{domain.ErrDuplicatePayment, http.StatusConflict},
	{domain.ErrAlreadyPaid, http.StatusConflict},
	{domain.ErrImageLimitReached, http.StatusConflict},
	{domain.ErrInsufficientFunds, http.StatusUnprocessableEntity},
	{domain.ErrWorkerUnavailable, http.StatusUnprocessableEntity},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized},
	{auth.ErrInvalidToken, http.StatusUnauthorized},
}

// respondError maps domain errors to a status and writes {"error": ...}.
// Anything unrecognised is logged and answered with a generic 500.
func respondError(c *gin.Context, logger *slog.Logger, msg string, err error) {
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			c.AbortWithStatusJSON(m.status, dto.ErrorResponse{Error: m.err.Error()})
			return
		}
	}

	logger.Error(msg,
		slog.String("path", c.FullPath()),
		slog.Any("error", err),
	)
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, dto.ErrorResponse{Error: msg})
}

// respondBindError answers a failed ShouldBind* with field-level details
func respondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			details[fe.Field()] = fe.Tag()
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation failed",
			Details: details,
		})
		return
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body"})
}

// bindOptionalJSON binds the body when one was sent
func bindOptionalJSON(c *gin.Context, obj any) error {
	err := c.ShouldBindJSON(obj)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorResponse{Error: msg})
}

func forbidden(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusForbidden, dto.ErrorResponse{Error: domain.ErrForbidden.Error()})
}
