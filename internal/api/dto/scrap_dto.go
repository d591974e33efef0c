package dto

import (
	"time"

	"github.com/cuongbtq/homeserve-be/internal/api/model"
)

type CreateScrapRequest struct {
	Category          string    `json:"category" binding:"required,scrap_category"`
	Description       string    `json:"description" binding:"omitempty,max=1000"`
	EstimatedWeightKg float64   `json:"estimated_weight_kg" binding:"required,gt=0,lte=100000"`
	EstimatedPrice    int64     `json:"estimated_price" binding:"omitempty,gte=0,lte=100000000000"`
	PickupAddress     string    `json:"pickup_address" binding:"required,max=500"`
	PickupAt          time.Time `json:"pickup_at" binding:"required"`
}

type UpdateScrapRequest struct {
	Category          *string    `json:"category" binding:"omitempty,scrap_category"`
	Description       *string    `json:"description" binding:"omitempty,max=1000"`
	EstimatedWeightKg *float64   `json:"estimated_weight_kg" binding:"omitempty,gt=0,lte=100000"`
	EstimatedPrice    *int64     `json:"estimated_price" binding:"omitempty,gte=0,lte=100000000000"`
	PickupAddress     *string    `json:"pickup_address" binding:"omitempty,min=1,max=500"`
	PickupAt          *time.Time `json:"pickup_at"`
}

type CompleteScrapRequest struct {
	FinalWeightKg float64 `json:"final_weight_kg" binding:"required,gt=0,lte=100000"`
	FinalPrice    int64   `json:"final_price" binding:"gte=0,lte=100000000000"`
	PayoutMethod  string  `json:"payout_method" binding:"required,payout_method"`
}

type ListScrapRequest struct {
	Status    string `form:"status" binding:"omitempty,scrap_status"`
	Category  string `form:"category" binding:"omitempty,scrap_category"`
	Available bool   `form:"available"`
	PageRequest
}

type ScrapItemDTO struct {
	ID                string     `json:"id"`
	UserID            string     `json:"user_id"`
	VendorID          string     `json:"vendor_id,omitempty"`
	Category          string     `json:"category"`
	Description       string     `json:"description,omitempty"`
	EstimatedWeightKg float64    `json:"estimated_weight_kg"`
	EstimatedPrice    int64      `json:"estimated_price"`
	FinalWeightKg     *float64   `json:"final_weight_kg,omitempty"`
	FinalPrice        *int64     `json:"final_price,omitempty"`
	PayoutMethod      string     `json:"payout_method,omitempty"`
	PickupAddress     string     `json:"pickup_address"`
	PickupAt          time.Time  `json:"pickup_at"`
	Images            []string   `json:"images"`
	Status            string     `json:"status"`
	CancelReason      string     `json:"cancel_reason,omitempty"`
	AcceptedAt        *time.Time `json:"accepted_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	CancelledAt       *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type ListScrapResponse struct {
	Items      []ScrapItemDTO `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

func NewScrapItemDTO(s *model.ScrapItem) ScrapItemDTO {
	images := []string(s.Images)
	if images == nil {
		images = []string{}
	}

	return ScrapItemDTO{
		ID:                s.ID,
		UserID:            s.UserID,
		VendorID:          deref(s.VendorID),
		Category:          s.Category,
		Description:       s.Description,
		EstimatedWeightKg: s.EstimatedWeightKg,
		EstimatedPrice:    s.EstimatedPrice,
		FinalWeightKg:     s.FinalWeightKg,
		FinalPrice:        s.FinalPrice,
		PayoutMethod:      deref(s.PayoutMethod),
		PickupAddress:     s.PickupAddress,
		PickupAt:          s.PickupAt,
		Images:            images,
		Status:            s.Status,
		CancelReason:      s.CancelReason,
		AcceptedAt:        s.AcceptedAt,
		CompletedAt:       s.CompletedAt,
		CancelledAt:       s.CancelledAt,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}
