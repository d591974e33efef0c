package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cuongbtq/homeserve-be/internal/api/domain"
	"github.com/cuongbtq/homeserve-be/internal/api/model"
	"github.com/cuongbtq/homeserve-be/shared/postgresql"
	"github.com/jmoiron/sqlx"
)

const userColumns = `
	id, email, password_hash, name, phone, role, vendor_id, business_name,
	service_categories, is_active, created_at, updated_at`

// CreateUser inserts the account together with its empty wallet
func (s *Storage) CreateUser(ctx context.Context, user *model.User) error {
	return postgresql.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO users (
				id, email, password_hash, name, phone, role, vendor_id,
				business_name, service_categories, is_active, created_at, updated_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7,
				$8, $9, $10, $11, $12
			)
		`

		_, err := tx.ExecContext(
			ctx,
			query,
			user.ID,
			user.Email,
			user.PasswordHash,
			user.Name,
			user.Phone,
			user.Role,
			user.VendorID,
			user.BusinessName,
			user.ServiceCategories,
			user.IsActive,
			user.CreatedAt,
			user.UpdatedAt,
		)
		if err != nil {
			if postgresql.IsUniqueViolation(err) {
				return domain.ErrDuplicateEmail
			}
			return fmt.Errorf("failed to create user: %w", err)
		}

		return createWallet(ctx, tx, user.ID)
	})
}

func (s *Storage) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	if err := s.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`

	if err := s.db.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return &user, nil
}

type UserFilter struct {
	Role     string
	VendorID string
	Active   *bool
	Page
}

func (s *Storage) ListUsers(ctx context.Context, filter UserFilter) ([]model.User, error) {
	var f filterQuery

	if filter.Role != "" {
		f.add("role = ?", filter.Role)
	}
	if filter.VendorID != "" {
		f.add("vendor_id = ?", filter.VendorID)
	}
	if filter.Active != nil {
		f.add("is_active = ?", *filter.Active)
	}

	query := `SELECT ` + userColumns + ` FROM users` + f.paginate(filter.Page)

	var users []model.User
	if err := s.db.SelectContext(ctx, &users, query, f.args...); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return users, nil
}

// SetUserActive toggles the account; deactivating a vendor does not touch its workers
func (s *Storage) SetUserActive(ctx context.Context, id string, active bool) (*model.User, error) {
	var user model.User
	query := `
		UPDATE users SET is_active = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING ` + userColumns

	if err := s.db.GetContext(ctx, &user, query, active, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update user status: %w", err)
	}

	return &user, nil
}

// DeactivateWorker deactivates a worker only when it belongs to vendorID
func (s *Storage) DeactivateWorker(ctx context.Context, vendorID, workerID string) error {
	query := `
		UPDATE users SET is_active = FALSE, updated_at = NOW()
		WHERE id = $1 AND vendor_id = $2 AND role = $3
	`

	result, err := s.db.ExecContext(ctx, query, workerID, vendorID, domain.RoleWorker)
	if err != nil {
		return fmt.Errorf("failed to deactivate worker: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrUserNotFound
	}

	return nil
}

// GetActiveWorker returns the worker when it is active and employed by vendorID
func (s *Storage) GetActiveWorker(ctx context.Context, vendorID, workerID string) (*model.User, error) {
	var user model.User
	query := `
		SELECT ` + userColumns + ` FROM users
		WHERE id = $1 AND vendor_id = $2 AND role = $3 AND is_active
	`

	if err := s.db.GetContext(ctx, &user, query, workerID, vendorID, domain.RoleWorker); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrWorkerUnavailable
		}
		return nil, fmt.Errorf("failed to get worker: %w", err)
	}

	return &user, nil
}
