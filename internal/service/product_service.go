package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sakashimaa/product-showcase/internal/authz"
	"github.com/sakashimaa/product-showcase/internal/domain"
	"github.com/sakashimaa/product-showcase/internal/metrics"
	"github.com/sakashimaa/product-showcase/internal/repository"
	"github.com/sakashimaa/product-showcase/pkg/db"
	"github.com/sakashimaa/product-showcase/pkg/mylogger"
	outboxDomain "github.com/sakashimaa/product-showcase/pkg/outbox/domain"
	"github.com/sakashimaa/product-showcase/pkg/outbox/worker"
	"go.uber.org/zap"
)

type ProductService interface {
	Create(ctx context.Context, caller *domain.Caller, draft domain.ProductDraft) (*domain.Product, error)
	FindByID(ctx context.Context, id string) (*domain.Product, error)
	Vote(ctx context.Context, id string, caller *domain.Caller) (*domain.Product, error)
	AddComment(ctx context.Context, id string, caller *domain.Caller, message string) (*domain.Product, error)
	SetImage(ctx context.Context, id string, caller *domain.Caller, imageURL string) (*domain.Product, error)
	Delete(ctx context.Context, id string, caller *domain.Caller) error
}

// Store is the Postgres handle the service reads from; *pgxpool.Pool
// satisfies it.
type Store interface {
	repository.Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

type productService struct {
	productRepo repository.ProductRepository
	outboxRepo  worker.OutboxRepository
	store       Store
	tx          *db.TxRunner
	topic       string
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

func NewProductService(
	productRepo repository.ProductRepository,
	outboxRepo worker.OutboxRepository,
	store Store,
	tx *db.TxRunner,
	topic string,
	m *metrics.Metrics,
	logger *zap.Logger,
) ProductService {
	if m == nil {
		m = metrics.NewNop()
	}

	return &productService{
		productRepo: productRepo,
		outboxRepo:  outboxRepo,
		store:       store,
		tx:          tx,
		topic:       topic,
		metrics:     m,
		logger:      logger,
	}
}

func (s *productService) Create(ctx context.Context, caller *domain.Caller, draft domain.ProductDraft) (*domain.Product, error) {
	if err := s.authorize(ctx, authz.OpCreate, caller, nil); err != nil {
		return nil, err
	}

	draft = draft.Normalize()
	if err := draft.Validate(); err != nil {
		mylogger.Warn(ctx, s.logger, "invalid product draft", zap.Error(err))
		return nil, err
	}

	product := &domain.Product{
		ID:          uuid.New(),
		Name:        draft.Name,
		Company:     draft.Company,
		URL:         draft.URL,
		Description: draft.Description,
		ImageURL:    draft.ImageURL,
		Creator: domain.Creator{
			ID:          caller.ID,
			DisplayName: caller.DisplayName,
		},
	}

	err := s.tx.Run(ctx, func(tx pgx.Tx) error {
		if err := s.productRepo.Create(ctx, tx, product); err != nil {
			return err
		}

		return s.saveEvent(ctx, tx, domain.EventProductCreated, product.ID, product.Votes, caller.ID)
	})
	if err != nil {
		mylogger.Error(ctx, s.logger, "create error", zap.Error(err))
		return nil, storeErr("error creating product", err)
	}

	s.metrics.ProductsCreated.Inc()
	mylogger.Info(
		ctx,
		s.logger,
		"product created",
		zap.String("product_id", product.ID.String()),
		zap.String("creator_id", caller.ID),
	)

	return product, nil
}

func (s *productService) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	productID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	res, err := s.productRepo.GetByID(ctx, s.store, productID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			mylogger.Warn(ctx, s.logger, "product not found", zap.String("product_id", id))
			return nil, err
		}

		mylogger.Error(ctx, s.logger, "error getting product", zap.Error(err))
		return nil, storeErr("error getting product by id", err)
	}

	return res, nil
}

// Vote records one vote per caller. Repeated votes leave the product as it is
// and are not an error.
func (s *productService) Vote(ctx context.Context, id string, caller *domain.Caller) (*domain.Product, error) {
	if err := s.authorize(ctx, authz.OpVote, caller, nil); err != nil {
		return nil, err
	}

	productID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var recorded bool
	err = s.tx.Run(ctx, func(tx pgx.Tx) error {
		recorded = false

		if _, err := s.productRepo.LockByID(ctx, tx, productID); err != nil {
			return err
		}

		added, votes, err := s.productRepo.AddVote(ctx, tx, productID, caller.ID)
		if err != nil {
			return err
		}

		if !added {
			return nil
		}

		recorded = true
		return s.saveEvent(ctx, tx, domain.EventProductVoted, productID, votes, caller.ID)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			mylogger.Warn(ctx, s.logger, "vote on missing product", zap.String("product_id", id))
			return nil, err
		}

		mylogger.Error(ctx, s.logger, "vote error", zap.String("product_id", id), zap.Error(err))
		return nil, storeErr("error voting", err)
	}

	if recorded {
		s.metrics.VotesRecorded.Inc()
	} else {
		s.metrics.VotesDuplicate.Inc()
		mylogger.Debug(
			ctx,
			s.logger,
			"duplicate vote ignored",
			zap.String("product_id", id),
			zap.String("user_id", caller.ID),
		)
	}

	return s.FindByID(ctx, id)
}

func (s *productService) AddComment(ctx context.Context, id string, caller *domain.Caller, message string) (*domain.Product, error) {
	if err := s.authorize(ctx, authz.OpComment, caller, nil); err != nil {
		return nil, err
	}

	productID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	comment, err := domain.NewComment(*caller, message)
	if err != nil {
		return nil, err
	}

	err = s.tx.Run(ctx, func(tx pgx.Tx) error {
		if _, err := s.productRepo.AppendComment(ctx, tx, productID, comment); err != nil {
			return err
		}

		return s.saveEvent(ctx, tx, domain.EventProductCommented, productID, 0, caller.ID)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			mylogger.Warn(ctx, s.logger, "comment on missing product", zap.String("product_id", id))
			return nil, err
		}

		mylogger.Error(ctx, s.logger, "comment error", zap.String("product_id", id), zap.Error(err))
		return nil, storeErr("error adding comment", err)
	}

	s.metrics.CommentsAdded.Inc()

	return s.FindByID(ctx, id)
}

func (s *productService) SetImage(ctx context.Context, id string, caller *domain.Caller, imageURL string) (*domain.Product, error) {
	if err := s.authenticate(ctx, authz.OpSetImage, caller); err != nil {
		return nil, err
	}

	productID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	input := domain.ImageInput{ImageURL: imageURL}
	if err := domain.Validate(input); err != nil {
		return nil, err
	}

	err = s.tx.Run(ctx, func(tx pgx.Tx) error {
		product, err := s.productRepo.LockByID(ctx, tx, productID)
		if err != nil {
			return err
		}

		if err := s.authorize(ctx, authz.OpSetImage, caller, product); err != nil {
			return err
		}

		if err := s.productRepo.SetImage(ctx, tx, productID, input.ImageURL); err != nil {
			return err
		}

		return s.saveEvent(ctx, tx, domain.EventProductImageSet, productID, product.Votes, caller.ID)
	})
	if err != nil {
		if isDomainErr(err) {
			return nil, err
		}

		mylogger.Error(ctx, s.logger, "set image error", zap.String("product_id", id), zap.Error(err))
		return nil, storeErr("error setting product image", err)
	}

	return s.FindByID(ctx, id)
}

// Delete removes the product with its votes and comments. The ownership check
// and the removal share one transaction, so a refused delete changes nothing.
func (s *productService) Delete(ctx context.Context, id string, caller *domain.Caller) error {
	if err := s.authenticate(ctx, authz.OpDelete, caller); err != nil {
		return err
	}

	productID, err := parseID(id)
	if err != nil {
		return err
	}

	err = s.tx.Run(ctx, func(tx pgx.Tx) error {
		product, err := s.productRepo.LockByID(ctx, tx, productID)
		if err != nil {
			return err
		}

		if err := s.authorize(ctx, authz.OpDelete, caller, product); err != nil {
			return err
		}

		if err := s.productRepo.DeleteByID(ctx, tx, productID); err != nil {
			return err
		}

		return s.saveEvent(ctx, tx, domain.EventProductDeleted, productID, product.Votes, caller.ID)
	})
	if err != nil {
		if isDomainErr(err) {
			mylogger.Warn(ctx, s.logger, "delete refused", zap.String("product_id", id), zap.Error(err))
			return err
		}

		mylogger.Error(ctx, s.logger, "error deleting product", zap.Error(err))
		return storeErr("error deleting product", err)
	}

	s.metrics.ProductsDeleted.Inc()
	mylogger.Info(ctx, s.logger, "product deleted", zap.String("product_id", id))

	return nil
}

func (s *productService) authorize(ctx context.Context, op authz.Operation, caller *domain.Caller, resource *domain.Product) error {
	decision := authz.Decide(op, caller, resource)
	if decision == authz.Allowed {
		return nil
	}

	return s.refuse(ctx, op, caller, decision)
}

// authenticate rejects anonymous callers before any ownership check has a
// product to look at.
func (s *productService) authenticate(ctx context.Context, op authz.Operation, caller *domain.Caller) error {
	if caller != nil && caller.ID != "" {
		return nil
	}

	return s.refuse(ctx, op, caller, authz.Unauthenticated)
}

func (s *productService) refuse(ctx context.Context, op authz.Operation, caller *domain.Caller, decision authz.Decision) error {
	s.metrics.Refusals.WithLabelValues(string(op), decision.String()).Inc()

	fields := []zap.Field{
		zap.String("operation", string(op)),
		zap.String("decision", decision.String()),
	}
	if caller != nil {
		fields = append(fields, zap.String("caller_id", caller.ID))
	}
	mylogger.Warn(ctx, s.logger, "operation refused", fields...)

	return decision.Err()
}

func (s *productService) saveEvent(ctx context.Context, tx pgx.Tx, eventType string, productID uuid.UUID, votes int64, actorID string) error {
	event, err := outboxDomain.NewOutboxEvent(
		s.topic,
		domain.AggregateProduct,
		productID.String(),
		eventType,
		domain.ProductChangedEvent{
			ProductID:  productID.String(),
			Votes:      votes,
			ActorID:    actorID,
			OccurredAt: time.Now().UTC(),
		},
	)
	if err != nil {
		return fmt.Errorf("event payload marshal error: %w", err)
	}

	if err := s.outboxRepo.SaveOutboxEvent(ctx, tx, event); err != nil {
		mylogger.Error(
			ctx,
			s.logger,
			"Error saving outbox event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)

		return fmt.Errorf("failed to save outbox event: %w", err)
	}

	return nil
}

func parseID(id string) (uuid.UUID, error) {
	productID, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, repository.ErrProductNotFound
	}

	return productID, nil
}

func isDomainErr(err error) bool {
	return errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrForbidden) ||
		errors.Is(err, domain.ErrUnauthenticated) ||
		errors.Is(err, domain.ErrValidation)
}

func storeErr(msg string, err error) error {
	if db.Unavailable(err) {
		return fmt.Errorf("%s: %w: %w", msg, domain.ErrStoreUnavailable, err)
	}

	return fmt.Errorf("%s: %w", msg, err)
}
