package repository

import (
	"fmt"

	"github.com/sakashimaa/product-showcase/internal/domain"
)

var (
	ErrProductNotFound = fmt.Errorf("repository: %w", domain.ErrNotFound)
	ErrInvalidCursor   = &domain.ValidationError{Fields: map[string]string{"page_token": "page_token is invalid"}}
)
