// Package listing serves ordered product pages and live listing
// subscriptions.
package listing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sakashimaa/product-showcase/internal/domain"
	"github.com/sakashimaa/product-showcase/internal/metrics"
	"github.com/sakashimaa/product-showcase/internal/repository"
	"github.com/sakashimaa/product-showcase/pkg/db"
	"github.com/sakashimaa/product-showcase/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Query struct {
	OrderBy   domain.OrderBy
	PageToken string
	Limit     int
	Search    string
}

type Page struct {
	Items         []domain.Product `json:"items"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

type Options struct {
	DefaultLimit int
	MaxLimit     int
}

type Service struct {
	repo         repository.ProductRepository
	store        repository.Querier
	broker       *Broker
	defaultLimit int
	maxLimit     int
	metrics      *metrics.Metrics
	tracer       trace.Tracer
	logger       *zap.Logger
}

func NewService(
	repo repository.ProductRepository,
	store repository.Querier,
	broker *Broker,
	opts Options,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Service {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultLimit
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = MaxLimit
	}
	if opts.DefaultLimit > opts.MaxLimit {
		opts.DefaultLimit = opts.MaxLimit
	}
	if m == nil {
		m = metrics.NewNop()
	}

	return &Service{
		repo:         repo,
		store:        store,
		broker:       broker,
		defaultLimit: opts.DefaultLimit,
		maxLimit:     opts.MaxLimit,
		metrics:      m,
		tracer:       otel.Tracer("listing/service"),
		logger:       logger,
	}
}

// List returns one page, newest or most voted first. A next page token is
// only returned when more items exist.
func (s *Service) List(ctx context.Context, q Query) (*Page, error) {
	ctx, span := s.tracer.Start(ctx, "ListingService.List")
	defer span.End()

	q, err := s.normalize(q)
	if err != nil {
		return nil, err
	}

	after, err := repository.DecodeCursor(q.PageToken, q.OrderBy)
	if err != nil {
		mylogger.Warn(ctx, s.logger, "invalid page token", zap.String("order", string(q.OrderBy)))
		return nil, err
	}

	span.SetAttributes(
		attribute.String("order_by", string(q.OrderBy)),
		attribute.Int("limit", q.Limit),
	)

	items, err := s.repo.List(ctx, s.store, repository.ListQuery{
		OrderBy: q.OrderBy,
		After:   after,
		Limit:   q.Limit + 1,
		Search:  q.Search,
	})
	if err != nil {
		span.RecordError(err)
		if ctx.Err() == nil && db.Unavailable(err) {
			return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
		}
		return nil, fmt.Errorf("error listing products: %w", err)
	}

	page := &Page{Items: items}
	if len(items) > q.Limit {
		page.Items = items[:q.Limit]
		page.NextPageToken = repository.CursorAfter(q.OrderBy, page.Items[q.Limit-1]).Encode()
	}

	return page, nil
}

func (s *Service) normalize(q Query) (Query, error) {
	orderBy, err := domain.ParseOrderBy(string(q.OrderBy))
	if err != nil {
		return q, err
	}
	q.OrderBy = orderBy

	switch {
	case q.Limit < 0:
		return q, domain.NewValidationError("limit", "limit must be positive")
	case q.Limit == 0:
		q.Limit = s.defaultLimit
	case q.Limit > s.maxLimit:
		q.Limit = s.maxLimit
	}

	q.Search = strings.TrimSpace(q.Search)

	return q, nil
}

// Subscribe opens a live view of q. Nothing is queried until the first Next.
func (s *Service) Subscribe(q Query) (*Subscription, error) {
	q, err := s.normalize(q)
	if err != nil {
		return nil, err
	}

	if _, err := repository.DecodeCursor(q.PageToken, q.OrderBy); err != nil {
		return nil, err
	}

	changes, detach := s.broker.Subscribe()
	s.metrics.ActiveSubscriptions.Inc()

	return &Subscription{
		service: s,
		query:   q,
		changes: changes,
		detach:  detach,
		done:    make(chan struct{}),
	}, nil
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrSubscriptionClosed)
}
