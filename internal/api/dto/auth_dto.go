package dto

import (
	"time"

	"github.com/cuongbtq/homeserve-be/internal/api/model"
)

type RegisterRequest struct {
	Email             string   `json:"email" binding:"required,email,max=254"`
	Password          string   `json:"password" binding:"required,min=8,max=72"`
	Name              string   `json:"name" binding:"required,max=120"`
	Phone             string   `json:"phone" binding:"omitempty,max=32"`
	Role              string   `json:"role" binding:"required,signup_role"`
	BusinessName      string   `json:"business_name" binding:"required_if=Role vendor,max=200"`
	ServiceCategories []string `json:"service_categories" binding:"omitempty,dive,service_category"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type CreateWorkerRequest struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	Name     string `json:"name" binding:"required,max=120"`
	Phone    string `json:"phone" binding:"omitempty,max=32"`
}

type ListUsersRequest struct {
	Role string `form:"role" binding:"omitempty,role"`
	PageRequest
}

type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        UserDTO   `json:"user"`
}

type UserDTO struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	Name              string    `json:"name"`
	Phone             string    `json:"phone,omitempty"`
	Role              string    `json:"role"`
	VendorID          string    `json:"vendor_id,omitempty"`
	BusinessName      string    `json:"business_name,omitempty"`
	ServiceCategories []string  `json:"service_categories,omitempty"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
}

type ListUsersResponse struct {
	Users      []UserDTO `json:"users"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

func NewUserDTO(u *model.User) UserDTO {
	return UserDTO{
		ID:                u.ID,
		Email:             u.Email,
		Name:              u.Name,
		Phone:             u.Phone,
		Role:              u.Role,
		VendorID:          deref(u.VendorID),
		BusinessName:      deref(u.BusinessName),
		ServiceCategories: []string(u.ServiceCategories),
		IsActive:          u.IsActive,
		CreatedAt:         u.CreatedAt,
	}
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
