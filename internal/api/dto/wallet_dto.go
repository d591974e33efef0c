package dto

import (
	"time"

	"github.com/cuongbtq/homeserve-be/internal/api/model"
)

type TopUpRequest struct {
	Amount           int64  `json:"amount" binding:"required,gt=0,lte=100000000000"`
	PaymentReference string `json:"payment_reference" binding:"required,max=128"`
}

type AdjustWalletRequest struct {
	Amount int64  `json:"amount" binding:"required,ne=0,gte=-100000000000,lte=100000000000"`
	Reason string `json:"reason" binding:"required,max=500"`
}

type WalletDTO struct {
	UserID    string    `json:"user_id"`
	Balance   int64     `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}

type WalletTransactionDTO struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Amount        int64     `json:"amount"`
	BalanceAfter  int64     `json:"balance_after"`
	Reason        string    `json:"reason"`
	ReferenceType string    `json:"reference_type,omitempty"`
	ReferenceID   string    `json:"reference_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type ListWalletTransactionsResponse struct {
	Transactions []WalletTransactionDTO `json:"transactions"`
	NextCursor   string                 `json:"next_cursor,omitempty"`
}

func NewWalletDTO(w *model.Wallet) WalletDTO {
	return WalletDTO{UserID: w.UserID, Balance: w.Balance, UpdatedAt: w.UpdatedAt}
}

func NewWalletTransactionDTO(t *model.WalletTransaction) WalletTransactionDTO {
	return WalletTransactionDTO{
		ID:            t.ID,
		Type:          t.Type,
		Amount:        t.Amount,
		BalanceAfter:  t.BalanceAfter,
		Reason:        t.Reason,
		ReferenceType: t.ReferenceType,
		ReferenceID:   t.ReferenceID,
		CreatedAt:     t.CreatedAt,
	}
}
