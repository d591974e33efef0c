package handler

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/cuongbtq/homeserve-be/internal/api/dto"
	"github.com/cuongbtq/homeserve-be/internal/api/storage"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// DecodeCursor parses an opaque "next_cursor" value; empty means the first page
func DecodeCursor(cursorStr string) (*storage.Cursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor encoding: %w", err)
	}

	createdPart, id, ok := strings.Cut(string(decoded), "|")
	if !ok || id == "" {
		return nil, fmt.Errorf("invalid cursor format")
	}

	var createdAt int64
	if _, err := fmt.Sscanf(createdPart, "%d", &createdAt); err != nil {
		return nil, fmt.Errorf("invalid createdAt in cursor: %w", err)
	}

	return &storage.Cursor{
		CreatedAt: time.Unix(0, createdAt).UTC(),
		ID:        id,
	}, nil
}

func EncodeCursor(createdAt time.Time, id string) string {
	cs := fmt.Sprintf("%d|%s", createdAt.UnixNano(), id)
	return base64.RawURLEncoding.EncodeToString([]byte(cs))
}

// pageFromRequest applies the default and maximum page size and decodes the cursor
func pageFromRequest(req dto.PageRequest) (storage.Page, error) {
	size := req.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	cursor, err := DecodeCursor(req.Cursor)
	if err != nil {
		return storage.Page{}, err
	}

	return storage.Page{PageSize: size, Cursor: cursor}, nil
}

// trimPage drops the look-ahead row and returns the cursor of the last kept row
// when another page exists
func trimPage[T any](rows []T, page storage.Page, key func(T) (time.Time, string)) ([]T, string) {
	if len(rows) <= page.PageSize {
		return rows, ""
	}

	rows = rows[:page.PageSize]
	createdAt, id := key(rows[len(rows)-1])
	return rows, EncodeCursor(createdAt, id)
}
