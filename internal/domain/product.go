package domain

import (
	"time"

	"github.com/google/uuid"
)

// Caller is the identity behind a request, as resolved by the identity
// provider. A nil *Caller means the request is unauthenticated.
type Caller struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Creator is the snapshot of the caller that created a product.
type Creator struct {
	ID          string `json:"id" db:"creator_id"`
	DisplayName string `json:"display_name" db:"creator_name"`
}

type Product struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Company     string    `json:"company" db:"company"`
	URL         string    `json:"url" db:"url"`
	Description string    `json:"description" db:"description"`
	ImageURL    string    `json:"image_url" db:"image_url"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	Creator     Creator   `json:"creator"`
	Votes       int64     `json:"votes" db:"votes"`
	VotedBy     []string  `json:"voted_by"`
	Comments    []Comment `json:"comments"`

	CommentCount int64 `json:"comment_count" db:"comment_count"`
}

// HasVoted reports whether userID is in the product's vote set.
func (p *Product) HasVoted(userID string) bool {
	for _, id := range p.VotedBy {
		if id == userID {
			return true
		}
	}

	return false
}

// IsCreator reports whether the caller created the product.
func (p *Product) IsCreator(caller *Caller) bool {
	return caller != nil && caller.ID == p.Creator.ID
}

// IsByCreator is derived from persisted state on every read.
func (p *Product) IsByCreator(c Comment) bool {
	return c.AuthorID == p.Creator.ID
}

type Comment struct {
	ID                int64     `json:"id" db:"id"`
	Message           string    `json:"message" db:"message"`
	AuthorID          string    `json:"author_id" db:"author_id"`
	AuthorDisplayName string    `json:"author_display_name" db:"author_name"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// NewComment builds the complete comment value before it is appended.
func NewComment(caller Caller, message string) (Comment, error) {
	input := CommentInput{Message: message}
	if err := Validate(input); err != nil {
		return Comment{}, err
	}

	return Comment{
		Message:           input.Message,
		AuthorID:          caller.ID,
		AuthorDisplayName: caller.DisplayName,
	}, nil
}

type ProductDraft struct {
	Name        string `json:"name" validate:"notblank,max=200"`
	Company     string `json:"company" validate:"notblank,max=200"`
	URL         string `json:"url" validate:"notblank,producturl"`
	Description string `json:"description" validate:"notblank,max=5000"`
	ImageURL    string `json:"image_url" validate:"omitempty,producturl"`
}

type CommentInput struct {
	Message string `json:"message" validate:"notblank,max=2000"`
}

type ImageInput struct {
	ImageURL string `json:"image_url" validate:"notblank,producturl"`
}

type OrderBy string

const (
	OrderByRecency OrderBy = "recency"
	OrderByVotes   OrderBy = "votes"
)

func ParseOrderBy(s string) (OrderBy, error) {
	switch OrderBy(s) {
	case "", OrderByRecency:
		return OrderByRecency, nil
	case OrderByVotes:
		return OrderByVotes, nil
	default:
		return "", NewValidationError("order", "order must be one of recency, votes")
	}
}
