package http

import (
	"context"
	"io"
	"iter"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sakashimaa/product-showcase/internal/domain"
	"github.com/sakashimaa/product-showcase/internal/identity"
	"github.com/sakashimaa/product-showcase/internal/listing"
	"github.com/sakashimaa/product-showcase/internal/metrics"
	"github.com/sakashimaa/product-showcase/internal/transport/http/handler"
	"github.com/sakashimaa/product-showcase/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubService struct{}

func (stubService) Create(context.Context, *domain.Caller, domain.ProductDraft) (*domain.Product, error) {
	return nil, domain.ErrUnauthenticated
}

func (stubService) FindByID(context.Context, string) (*domain.Product, error) {
	return nil, domain.ErrNotFound
}

func (stubService) Vote(context.Context, string, *domain.Caller) (*domain.Product, error) {
	return nil, domain.ErrNotFound
}

func (stubService) AddComment(context.Context, string, *domain.Caller, string) (*domain.Product, error) {
	return nil, domain.ErrNotFound
}

func (stubService) SetImage(context.Context, string, *domain.Caller, string) (*domain.Product, error) {
	return nil, domain.ErrNotFound
}

func (stubService) Delete(context.Context, string, *domain.Caller) error {
	return domain.ErrNotFound
}

type stubLister struct{}

func (stubLister) List(context.Context, listing.Query) (*listing.Page, error) {
	return &listing.Page{Items: []domain.Product{}}, nil
}

func (stubLister) Snapshots(context.Context, listing.Query) iter.Seq2[listing.Snapshot, error] {
	return func(func(listing.Snapshot, error) bool) {}
}

func newRouterApp(t *testing.T, limits LimiterConfig) (*fiber.App, *metrics.Metrics) {
	t.Helper()

	provider, err := identity.NewJWTProvider("router-secret", "showcase", time.Minute)
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	logger := zap.NewNop()

	app := NewApp(limits)
	RegisterRoutes(app, &Handlers{
		Product: handler.NewProductHandler(stubService{}, utils.BreakerSettings{}, time.Second, logger),
		Listing: handler.NewListingHandler(context.Background(), stubLister{}, time.Second, logger),
	}, provider, registry, logger)

	return app, m
}

func get(t *testing.T, app *fiber.App, path string) (int, string) {
	t.Helper()

	resp, err := app.Test(httptest.NewRequest("GET", path, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(body)
}

func TestRoutes_HealthAndMetrics(t *testing.T) {
	app, m := newRouterApp(t, LimiterConfig{})
	m.VotesRecorded.Inc()

	status, body := get(t, app, "/health")
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, body)

	status, body = get(t, app, "/metrics")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body, "showcase_votes_recorded_total 1")
}

func TestRoutes_ProductAPI(t *testing.T) {
	app, _ := newRouterApp(t, LimiterConfig{})

	status, body := get(t, app, "/api/products")
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"items":[]}`, body)

	status, _ = get(t, app, "/api/products/6f1c2a4e-8d2b-4c1e-9a57-0e6b5d8f4a11")
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestRoutes_RateLimitSkipsHealth(t *testing.T) {
	app, _ := newRouterApp(t, LimiterConfig{Max: 2, Window: time.Minute})

	for i := 0; i < 2; i++ {
		status, _ := get(t, app, "/api/products")
		require.Equal(t, fiber.StatusOK, status)
	}

	status, _ := get(t, app, "/api/products")
	assert.Equal(t, fiber.StatusTooManyRequests, status)

	status, _ = get(t, app, "/health")
	assert.Equal(t, fiber.StatusOK, status)
}
