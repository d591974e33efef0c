package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cuongbtq/homeserve-be/shared/postgresql"
	"github.com/jmoiron/sqlx"
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

// Cursor is a keyset position in a (created_at DESC, id DESC) ordering
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// Page holds the common pagination inputs
type Page struct {
	PageSize int
	Cursor   *Cursor
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx
type queryer interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// filterQuery accumulates WHERE conditions with numbered placeholders
type filterQuery struct {
	conds []string
	args  []interface{}
}

// add appends a condition; every "?" in cond is replaced by the next $n
func (f *filterQuery) add(cond string, args ...interface{}) {
	for _, a := range args {
		f.args = append(f.args, a)
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(f.args)), 1)
	}
	f.conds = append(f.conds, cond)
}

func (f *filterQuery) where() string {
	if len(f.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.conds, " AND ")
}

// paginate adds the cursor condition, ordering and the one-extra LIMIT used to detect more pages
func (f *filterQuery) paginate(page Page) string {
	if page.Cursor != nil {
		f.add("(created_at, id) < (?, ?)", page.Cursor.CreatedAt, page.Cursor.ID)
	}

	q := f.where() + " ORDER BY created_at DESC, id DESC"

	f.args = append(f.args, page.PageSize+1)
	return q + fmt.Sprintf(" LIMIT $%d", len(f.args))
}
