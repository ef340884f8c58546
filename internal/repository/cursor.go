package repository

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sakashimaa/product-showcase/internal/domain"
)

// Cursor is the keyset position after the last item of a page.
type Cursor struct {
	OrderBy   domain.OrderBy `json:"o"`
	Votes     int64          `json:"v,omitempty"`
	CreatedAt time.Time      `json:"t"`
	ID        uuid.UUID      `json:"id"`
}

func CursorAfter(orderBy domain.OrderBy, p domain.Product) Cursor {
	return Cursor{
		OrderBy:   orderBy,
		Votes:     p.Votes,
		CreatedAt: p.CreatedAt,
		ID:        p.ID,
	}
}

func (c Cursor) Encode() string {
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor parses a page token produced for the same ordering.
func DecodeCursor(token string, orderBy domain.OrderBy) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, ErrInvalidCursor
	}

	if c.OrderBy != orderBy || c.ID == uuid.Nil || c.CreatedAt.IsZero() {
		return nil, ErrInvalidCursor
	}

	return &c, nil
}
