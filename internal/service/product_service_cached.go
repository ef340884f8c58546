package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sakashimaa/product-showcase/internal/domain"
	"github.com/sakashimaa/product-showcase/internal/metrics"
	"github.com/sakashimaa/product-showcase/pkg/mylogger"
	"go.uber.org/zap"
)

const productKeyPrefix = "product:"

type CachedProductService interface {
	ProductService
	Invalidate(ctx context.Context, id string)
}

type cachedProductService struct {
	next        ProductService
	redisClient *redis.Client
	cacheTTL    time.Duration
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

func NewCachedProductService(
	next ProductService,
	redisClient *redis.Client,
	cacheTTL time.Duration,
	m *metrics.Metrics,
	logger *zap.Logger,
) CachedProductService {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute * 10
	}
	if m == nil {
		m = metrics.NewNop()
	}

	return &cachedProductService{
		next:        next,
		redisClient: redisClient,
		cacheTTL:    cacheTTL,
		metrics:     m,
		logger:      logger,
	}
}

func productKey(id string) string {
	return productKeyPrefix + id
}

func (s *cachedProductService) Create(ctx context.Context, caller *domain.Caller, draft domain.ProductDraft) (*domain.Product, error) {
	return s.next.Create(ctx, caller, draft)
}

// FindByID reads through the cache. A broken cache only costs a database
// read.
func (s *cachedProductService) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	key := productKey(id)

	val, err := s.redisClient.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var product domain.Product
		if err := json.Unmarshal(val, &product); err == nil {
			s.metrics.CacheLookups.WithLabelValues("hit").Inc()
			return &product, nil
		}
		s.metrics.CacheLookups.WithLabelValues("corrupt").Inc()
	case errors.Is(err, redis.Nil):
		s.metrics.CacheLookups.WithLabelValues("miss").Inc()
	default:
		s.metrics.CacheLookups.WithLabelValues("error").Inc()
		mylogger.Warn(ctx, s.logger, "cache read failed", zap.String("key", key), zap.Error(err))
	}

	product, err := s.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.store(ctx, key, product)
	return product, nil
}

func (s *cachedProductService) Vote(ctx context.Context, id string, caller *domain.Caller) (*domain.Product, error) {
	s.Invalidate(ctx, id)

	product, err := s.next.Vote(ctx, id, caller)
	if err != nil {
		return nil, err
	}

	s.Invalidate(ctx, id)
	return product, nil
}

func (s *cachedProductService) AddComment(ctx context.Context, id string, caller *domain.Caller, message string) (*domain.Product, error) {
	s.Invalidate(ctx, id)

	product, err := s.next.AddComment(ctx, id, caller, message)
	if err != nil {
		return nil, err
	}

	s.Invalidate(ctx, id)
	return product, nil
}

func (s *cachedProductService) SetImage(ctx context.Context, id string, caller *domain.Caller, imageURL string) (*domain.Product, error) {
	product, err := s.next.SetImage(ctx, id, caller, imageURL)
	if err != nil {
		return nil, err
	}

	s.Invalidate(ctx, id)
	return product, nil
}

func (s *cachedProductService) Delete(ctx context.Context, id string, caller *domain.Caller) error {
	if err := s.next.Delete(ctx, id, caller); err != nil {
		return err
	}

	s.Invalidate(ctx, id)
	return nil
}

// Invalidate drops the cached copy of a product. The change-feed consumer
// calls it for writes made by other instances.
func (s *cachedProductService) Invalidate(ctx context.Context, id string) {
	if err := s.redisClient.Del(ctx, productKey(id)).Err(); err != nil {
		mylogger.Warn(ctx, s.logger, "cache invalidation failed", zap.String("product_id", id), zap.Error(err))
	}
}

func (s *cachedProductService) store(ctx context.Context, key string, product *domain.Product) {
	data, err := json.Marshal(product)
	if err != nil {
		mylogger.Warn(ctx, s.logger, "cache marshal failed", zap.String("key", key), zap.Error(err))
		return
	}

	if err := s.redisClient.Set(ctx, key, data, s.cacheTTL).Err(); err != nil {
		mylogger.Warn(ctx, s.logger, "cache write failed", zap.String("key", key), zap.Error(err))
	}
}
