package repository

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sakashimaa/product-showcase/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursor_RoundTrip(t *testing.T) {
	p := domain.Product{
		ID:        uuid.New(),
		Votes:     7,
		CreatedAt: time.Date(2026, 3, 1, 12, 30, 0, 123456000, time.UTC),
	}

	token := CursorAfter(domain.OrderByVotes, p).Encode()
	require.NotEmpty(t, token)

	c, err := DecodeCursor(token, domain.OrderByVotes)
	require.NoError(t, err)
	assert.Equal(t, p.ID, c.ID)
	assert.Equal(t, int64(7), c.Votes)
	assert.True(t, p.CreatedAt.Equal(c.CreatedAt))
}

func TestDecodeCursor_Empty(t *testing.T) {
	c, err := DecodeCursor("", domain.OrderByRecency)
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestDecodeCursor_Invalid(t *testing.T) {
	valid := CursorAfter(domain.OrderByRecency, domain.Product{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
	}).Encode()

	tests := []struct {
		name    string
		token   string
		orderBy domain.OrderBy
	}{
		{"not base64", "!!!", domain.OrderByRecency},
		{"not json", base64.RawURLEncoding.EncodeToString([]byte("nope")), domain.OrderByRecency},
		{"other ordering", valid, domain.OrderByVotes},
		{"missing id", base64.RawURLEncoding.EncodeToString([]byte(`{"o":"recency","t":"2026-01-01T00:00:00Z"}`)), domain.OrderByRecency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := DecodeCursor(tt.token, tt.orderBy)
			require.ErrorIs(t, err, domain.ErrValidation)
			assert.Nil(t, c)
		})
	}
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\% off\_now\\`, escapeLike(`50% off_now\`))
}
