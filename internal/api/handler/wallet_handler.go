package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/homeserve-be/internal/api/dto"
	"github.com/cuongbtq/homeserve-be/internal/api/model"
	"github.com/cuongbtq/homeserve-be/internal/auth"
	"github.com/cuongbtq/homeserve-be/internal/events"
	"github.com/cuongbtq/homeserve-be/internal/realtime"
	"github.com/gin-gonic/gin"
)

// WalletHandler handles balances, the ledger and top-ups
type WalletHandler struct {
	logger    *slog.Logger
	wallets   WalletStore
	publisher EventPublisher
}

func NewWalletHandler(deps *Dependencies) *WalletHandler {
	return &WalletHandler{
		logger:    deps.Logger,
		wallets:   deps.Wallets,
		publisher: deps.Publisher,
	}
}

// GetWallet handles GET /api/v1/wallet
func (h *WalletHandler) GetWallet(c *gin.Context) {
	p := auth.MustPrincipal(c.Request.Context())

	wallet, err := h.wallets.GetWallet(c.Request.Context(), p.UserID)
	if err != nil {
		respondError(c, h.logger, "Failed to get wallet", err)
		return
	}

	c.JSON(http.StatusOK, dto.NewWalletDTO(wallet))
}

// ListTransactions handles GET /api/v1/wallet/transactions
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	p := auth.MustPrincipal(c.Request.Context())

	var req dto.PageRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondBindError(c, err)
		return
	}

	page, err := pageFromRequest(req)
	if err != nil {
		badRequest(c, "invalid cursor")
		return
	}

	txs, err := h.wallets.ListWalletTransactions(c.Request.Context(), p.UserID, page)
	if err != nil {
		respondError(c, h.logger, "Failed to list wallet transactions", err)
		return
	}

	txs, next := trimPage(txs, page, func(t model.WalletTransaction) (time.Time, string) { return t.CreatedAt, t.ID })

	resp := dto.ListWalletTransactionsResponse{
		Transactions: make([]dto.WalletTransactionDTO, len(txs)),
		NextCursor:   next,
	}
	for i := range txs {
		resp.Transactions[i] = dto.NewWalletTransactionDTO(&txs[i])
	}

	c.JSON(http.StatusOK, resp)
}

// TopUp handles POST /api/v1/wallet/topup
// A payment reference is applied at most once per wallet
func (h *WalletHandler) TopUp(c *gin.Context) {
	p := auth.MustPrincipal(c.Request.Context())

	var req dto.TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	entry, err := h.wallets.TopUp(c.Request.Context(), p.UserID, req.Amount, req.PaymentReference)
	if err != nil {
		respondError(c, h.logger, "Failed to top up wallet", err)
		return
	}

	h.logger.Info("Wallet topped up",
		slog.String("user_id", p.UserID),
		slog.Int64("amount", entry.Amount),
		slog.String("payment_reference", req.PaymentReference),
	)

	h.pushBalance(entry)
	c.JSON(http.StatusCreated, dto.NewWalletTransactionDTO(entry))
}

// AdjustWallet handles POST /api/v1/admin/wallets/:user_id/adjust
func (h *WalletHandler) AdjustWallet(c *gin.Context) {
	p := auth.MustPrincipal(c.Request.Context())
	userID := c.Param("user_id")

	var req dto.AdjustWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	entry, err := h.wallets.Adjust(c.Request.Context(), userID, req.Amount, req.Reason, p.UserID)
	if err != nil {
		respondError(c, h.logger, "Failed to adjust wallet", err)
		return
	}

	h.logger.Info("Wallet adjusted",
		slog.String("user_id", userID),
		slog.Int64("amount", req.Amount),
		slog.String("admin_id", p.UserID),
	)

	h.pushBalance(entry)

	eventType, title := events.WalletCredited, "Wallet credited"
	if req.Amount < 0 {
		eventType, title = events.WalletDebited, "Wallet debited"
	}
	if ev, err := events.New(eventType, p.UserID, title, req.Reason, dto.NewWalletTransactionDTO(entry)); err == nil {
		h.publisher.Publish(c.Request.Context(), ev.To(userID))
	}

	c.JSON(http.StatusOK, dto.NewWalletTransactionDTO(entry))
}

func (h *WalletHandler) pushBalance(entry *model.WalletTransaction) {
	h.publisher.Broadcast(
		[]string{realtime.UserRoom(entry.UserID)},
		realtime.EventWalletUpdated,
		gin.H{"balance": entry.BalanceAfter, "transaction_id": entry.ID},
	)
}
