package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cuongbtq/homeserve-be/internal/api/domain"
	"github.com/cuongbtq/homeserve-be/internal/api/model"
	"github.com/cuongbtq/homeserve-be/shared/postgresql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const scrapColumns = `
	id, user_id, vendor_id, category, description, estimated_weight_kg, estimated_price,
	final_weight_kg, final_price, payout_method, pickup_address, pickup_at, images,
	status, cancel_reason, accepted_at, completed_at, cancelled_at, created_at, updated_at`

func (s *Storage) CreateScrap(ctx context.Context, item *model.ScrapItem) error {
	query := `
		INSERT INTO scrap_items (
			id, user_id, category, description, estimated_weight_kg, estimated_price,
			pickup_address, pickup_at, images, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		item.ID,
		item.UserID,
		item.Category,
		item.Description,
		item.EstimatedWeightKg,
		item.EstimatedPrice,
		item.PickupAddress,
		item.PickupAt,
		item.Images,
		item.Status,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create scrap item: %w", err)
	}

	return nil
}

func (s *Storage) GetScrap(ctx context.Context, id string) (*model.ScrapItem, error) {
	return getScrap(ctx, s.db, id, false)
}

func getScrap(ctx context.Context, q queryer, id string, forUpdate bool) (*model.ScrapItem, error) {
	var item model.ScrapItem
	query := `SELECT ` + scrapColumns + ` FROM scrap_items WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	if err := q.GetContext(ctx, &item, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrScrapNotFound
		}
		return nil, fmt.Errorf("failed to get scrap item: %w", err)
	}

	return &item, nil
}

type ScrapFilter struct {
	UserID   string
	VendorID string
	Status   string
	Category string
	Page
}

func (s *Storage) ListScrap(ctx context.Context, filter ScrapFilter) ([]model.ScrapItem, error) {
	var f filterQuery

	if filter.UserID != "" {
		f.add("user_id = ?", filter.UserID)
	}
	if filter.VendorID != "" {
		f.add("vendor_id = ?", filter.VendorID)
	}
	if filter.Status != "" {
		f.add("status = ?", filter.Status)
	}
	if filter.Category != "" {
		f.add("category = ?", filter.Category)
	}

	query := `SELECT ` + scrapColumns + ` FROM scrap_items` + f.paginate(filter.Page)

	var items []model.ScrapItem
	if err := s.db.SelectContext(ctx, &items, query, f.args...); err != nil {
		return nil, fmt.Errorf("failed to list scrap items: %w", err)
	}

	return items, nil
}

// ScrapUpdate carries the owner-editable fields; nil means unchanged
type ScrapUpdate struct {
	Category          *string
	Description       *string
	EstimatedWeightKg *float64
	EstimatedPrice    *int64
	PickupAddress     *string
	PickupAt          *time.Time
}

// UpdateScrap edits a pending item owned by userID
func (s *Storage) UpdateScrap(ctx context.Context, id, userID string, u ScrapUpdate, now time.Time) (*model.ScrapItem, error) {
	var set filterQuery

	if u.Category != nil {
		set.add("category = ?", *u.Category)
	}
	if u.Description != nil {
		set.add("description = ?", *u.Description)
	}
	if u.EstimatedWeightKg != nil {
		set.add("estimated_weight_kg = ?", *u.EstimatedWeightKg)
	}
	if u.EstimatedPrice != nil {
		set.add("estimated_price = ?", *u.EstimatedPrice)
	}
	if u.PickupAddress != nil {
		set.add("pickup_address = ?", *u.PickupAddress)
	}
	if u.PickupAt != nil {
		set.add("pickup_at = ?", *u.PickupAt)
	}
	set.add("updated_at = ?", now)

	return s.updateScrap(ctx, id, set,
		`user_id = ? AND status = ?`, userID, domain.ScrapStatusPending)
}

// AcceptScrap claims a pending item for vendorID; only one vendor can win
func (s *Storage) AcceptScrap(ctx context.Context, id, vendorID string, now time.Time) (*model.ScrapItem, error) {
	var set filterQuery
	set.add("status = ?, vendor_id = ?, accepted_at = ?, updated_at = ?",
		domain.ScrapStatusAccepted, vendorID, now, now)

	item, err := s.updateScrap(ctx, id, set, `status = ?`, domain.ScrapStatusPending)
	if errors.Is(err, domain.ErrInvalidTransition) {
		current, gerr := s.GetScrap(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		if current.Status == domain.ScrapStatusAccepted || current.Status == domain.ScrapStatusCompleted {
			return nil, domain.ErrAlreadyAccepted
		}
	}
	return item, err
}

// CancelScrap cancels the item if its current status is one of from
func (s *Storage) CancelScrap(ctx context.Context, id string, from []string, reason string, now time.Time) (*model.ScrapItem, error) {
	var set filterQuery
	set.add("status = ?, cancel_reason = ?, cancelled_at = ?, updated_at = ?",
		domain.ScrapStatusCancelled, reason, now, now)

	return s.updateScrap(ctx, id, set, `status = ANY(?)`, pq.Array(from))
}

// ScrapCompletion is what the vendor records at pickup
type ScrapCompletion struct {
	FinalWeightKg float64
	FinalPrice    int64
	PayoutMethod  string
}

// CompleteScrap closes an accepted item. With the wallet payout the final price moves
// from the vendor's wallet to the owner's inside the same transaction.
func (s *Storage) CompleteScrap(ctx context.Context, id, vendorID string, c ScrapCompletion, now time.Time) (*model.ScrapItem, error) {
	var done model.ScrapItem

	err := postgresql.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		item, err := getScrap(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if item.VendorID == nil || *item.VendorID != vendorID {
			return domain.ErrForbidden
		}
		if item.Status != domain.ScrapStatusAccepted {
			return domain.ErrInvalidTransition
		}

		if c.PayoutMethod == domain.PayoutMethodWallet && c.FinalPrice > 0 {
			ref := Reference{Type: ReferenceScrap, ID: item.ID}
			if _, _, err := transfer(ctx, tx, vendorID, item.UserID, c.FinalPrice, c.FinalPrice, "scrap pickup payout", ref); err != nil {
				return err
			}
		}

		query := `
			UPDATE scrap_items
			SET status = $1, final_weight_kg = $2, final_price = $3, payout_method = $4,
				completed_at = $5, updated_at = $5
			WHERE id = $6
			RETURNING ` + scrapColumns

		if err := tx.GetContext(ctx, &done, query,
			domain.ScrapStatusCompleted, c.FinalWeightKg, c.FinalPrice, c.PayoutMethod, now, id); err != nil {
			return fmt.Errorf("failed to complete scrap item: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &done, nil
}

// DeleteScrap removes the item if its status is one of allowed; nil allows any status
func (s *Storage) DeleteScrap(ctx context.Context, id string, allowed []string) error {
	var f filterQuery
	f.add("id = ?", id)
	if allowed != nil {
		f.add("status = ANY(?)", pq.Array(allowed))
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM scrap_items`+f.where(), f.args...)
	if err != nil {
		return fmt.Errorf("failed to delete scrap item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		if _, err := s.GetScrap(ctx, id); err != nil {
			return err
		}
		return domain.ErrInvalidTransition
	}

	return nil
}

// AddScrapImage appends an image URL while the pending item holds fewer than limit images
func (s *Storage) AddScrapImage(ctx context.Context, id, userID, url string, limit int, now time.Time) (*model.ScrapItem, error) {
	var set filterQuery
	set.add("images = array_append(images, ?), updated_at = ?", url, now)

	item, err := s.updateScrap(ctx, id, set,
		`user_id = ? AND status = ? AND cardinality(images) < ?`,
		userID, domain.ScrapStatusPending, limit)
	if errors.Is(err, domain.ErrInvalidTransition) {
		current, gerr := s.GetScrap(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		if current.Status == domain.ScrapStatusPending && len(current.Images) >= limit {
			return nil, domain.ErrImageLimitReached
		}
	}
	return item, err
}

// updateScrap applies the SET clause to the item when cond holds
func (s *Storage) updateScrap(ctx context.Context, id string, set filterQuery, cond string, condArgs ...interface{}) (*model.ScrapItem, error) {
	setSQL := strings.Join(set.conds, ", ")

	f := filterQuery{args: set.args}
	f.add("id = ?", id)
	f.add(cond, condArgs...)

	query := `UPDATE scrap_items SET ` + setSQL + f.where() + ` RETURNING ` + scrapColumns

	var item model.ScrapItem
	err := s.db.GetContext(ctx, &item, query, f.args...)
	if err == nil {
		return &item, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to update scrap item: %w", err)
	}

	if _, err := s.GetScrap(ctx, id); err != nil {
		return nil, err
	}
	return nil, domain.ErrInvalidTransition
}

func (s *Storage) CountScrapByStatus(ctx context.Context) ([]model.StatusCount, error) {
	var counts []model.StatusCount
	query := `SELECT status, COUNT(*) AS count FROM scrap_items GROUP BY status ORDER BY status`

	if err := s.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("failed to count scrap items: %w", err)
	}

	return counts, nil
}
