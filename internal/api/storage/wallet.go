package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cuongbtq/homeserve-be/internal/api/domain"
	"github.com/cuongbtq/homeserve-be/internal/api/model"
	"github.com/cuongbtq/homeserve-be/shared/postgresql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Ledger entry types
const (
	TransactionCredit = "credit"
	TransactionDebit  = "debit"
)

// Reference types linking a ledger row to what caused it
const (
	ReferenceTopUp      = "topup"
	ReferenceBooking    = "booking"
	ReferenceScrap      = "scrap"
	ReferenceAdjustment = "adjustment"
)

type Reference struct {
	Type string
	ID   string
}

const walletTransactionColumns = `
	id, user_id, type, amount, balance_after, reason, reference_type, reference_id, created_at`

func createWallet(ctx context.Context, tx *sqlx.Tx, userID string) error {
	query := `INSERT INTO wallets (user_id, balance) VALUES ($1, 0)`

	if _, err := tx.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}

	return nil
}

func (s *Storage) GetWallet(ctx context.Context, userID string) (*model.Wallet, error) {
	var w model.Wallet
	query := `SELECT user_id, balance, updated_at FROM wallets WHERE user_id = $1`

	if err := s.db.GetContext(ctx, &w, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	return &w, nil
}

func (s *Storage) ListWalletTransactions(ctx context.Context, userID string, page Page) ([]model.WalletTransaction, error) {
	var f filterQuery
	f.add("user_id = ?", userID)

	query := `SELECT ` + walletTransactionColumns + ` FROM wallet_transactions` + f.paginate(page)

	var txs []model.WalletTransaction
	if err := s.db.SelectContext(ctx, &txs, query, f.args...); err != nil {
		return nil, fmt.Errorf("failed to list wallet transactions: %w", err)
	}

	return txs, nil
}

// TopUp credits the wallet for an externally captured payment. A payment reference
// can be applied to a wallet only once.
func (s *Storage) TopUp(ctx context.Context, userID string, amount int64, paymentRef string) (*model.WalletTransaction, error) {
	var entry *model.WalletTransaction

	err := postgresql.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		entry, err = credit(ctx, tx, userID, amount, "wallet top-up", Reference{Type: ReferenceTopUp, ID: paymentRef})
		return err
	})
	if err != nil {
		if postgresql.IsUniqueViolation(err) {
			return nil, domain.ErrDuplicatePayment
		}
		return nil, err
	}

	return entry, nil
}

// Adjust applies a signed admin correction to the wallet
func (s *Storage) Adjust(ctx context.Context, userID string, amount int64, reason, adminID string) (*model.WalletTransaction, error) {
	if amount == 0 {
		return nil, fmt.Errorf("adjustment amount must be non-zero")
	}

	var entry *model.WalletTransaction
	ref := Reference{Type: ReferenceAdjustment, ID: adminID}

	err := postgresql.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		if amount > 0 {
			entry, err = credit(ctx, tx, userID, amount, reason, ref)
		} else {
			entry, err = debit(ctx, tx, userID, -amount, reason, ref)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// transfer debits `from` by debitAmount and credits `to` by creditAmount. Both wallets
// are locked in user id order first so concurrent opposite transfers cannot deadlock.
func transfer(
	ctx context.Context,
	tx *sqlx.Tx,
	from, to string,
	debitAmount, creditAmount int64,
	reason string,
	ref Reference,
) (*model.WalletTransaction, *model.WalletTransaction, error) {
	var locked []string
	query := `SELECT user_id FROM wallets WHERE user_id IN ($1, $2) ORDER BY user_id FOR UPDATE`

	if err := tx.SelectContext(ctx, &locked, query, from, to); err != nil {
		return nil, nil, fmt.Errorf("failed to lock wallets: %w", err)
	}
	if len(locked) != 2 && from != to {
		return nil, nil, domain.ErrWalletNotFound
	}

	out, err := debit(ctx, tx, from, debitAmount, reason, ref)
	if err != nil {
		return nil, nil, err
	}

	if creditAmount == 0 {
		return out, nil, nil
	}

	in, err := credit(ctx, tx, to, creditAmount, reason, ref)
	if err != nil {
		return nil, nil, err
	}

	return out, in, nil
}

func credit(ctx context.Context, tx *sqlx.Tx, userID string, amount int64, reason string, ref Reference) (*model.WalletTransaction, error) {
	var balance int64
	query := `
		UPDATE wallets SET balance = balance + $1, updated_at = NOW()
		WHERE user_id = $2
		RETURNING balance
	`

	if err := tx.GetContext(ctx, &balance, query, amount, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to credit wallet: %w", err)
	}

	return recordTransaction(ctx, tx, userID, TransactionCredit, amount, balance, reason, ref)
}

func debit(ctx context.Context, tx *sqlx.Tx, userID string, amount int64, reason string, ref Reference) (*model.WalletTransaction, error) {
	var balance int64
	query := `
		UPDATE wallets SET balance = balance - $1, updated_at = NOW()
		WHERE user_id = $2 AND balance >= $1
		RETURNING balance
	`

	err := tx.GetContext(ctx, &balance, query, amount, userID)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM wallets WHERE user_id = $1)`, userID); err != nil {
			return nil, fmt.Errorf("failed to check wallet: %w", err)
		}
		if !exists {
			return nil, domain.ErrWalletNotFound
		}
		return nil, domain.ErrInsufficientFunds
	}
	if err != nil {
		return nil, fmt.Errorf("failed to debit wallet: %w", err)
	}

	return recordTransaction(ctx, tx, userID, TransactionDebit, amount, balance, reason, ref)
}

func recordTransaction(
	ctx context.Context,
	tx *sqlx.Tx,
	userID, kind string,
	amount, balanceAfter int64,
	reason string,
	ref Reference,
) (*model.WalletTransaction, error) {
	var entry model.WalletTransaction
	query := `
		INSERT INTO wallet_transactions (
			id, user_id, type, amount, balance_after, reason, reference_type, reference_id
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
		RETURNING ` + walletTransactionColumns

	err := tx.GetContext(ctx, &entry, query,
		uuid.NewString(), userID, kind, amount, balanceAfter, reason, ref.Type, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to record wallet transaction: %w", err)
	}

	return &entry, nil
}
