package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sakashimaa/product-showcase/internal/domain"
	"github.com/sakashimaa/product-showcase/pkg/db"
	"github.com/sakashimaa/product-showcase/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type ListQuery struct {
	OrderBy domain.OrderBy
	After   *Cursor
	Limit   int
	Search  string
}

type ProductRepository interface {
	Create(ctx context.Context, tx pgx.Tx, product *domain.Product) error
	GetByID(ctx context.Context, q Querier, id uuid.UUID) (*domain.Product, error)
	LockByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Product, error)
	AddVote(ctx context.Context, tx pgx.Tx, id uuid.UUID, userID string) (bool, int64, error)
	AppendComment(ctx context.Context, tx pgx.Tx, id uuid.UUID, comment domain.Comment) (domain.Comment, error)
	SetImage(ctx context.Context, tx pgx.Tx, id uuid.UUID, imageURL string) error
	DeleteByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	List(ctx context.Context, q Querier, query ListQuery) ([]domain.Product, error)
}

type productRepo struct {
	tracer trace.Tracer
	logger *zap.Logger
}

func NewProductRepository(logger *zap.Logger) ProductRepository {
	return &productRepo{
		logger: logger,
		tracer: otel.Tracer("contract/product_repo"),
	}
}

const productColumns = `p.id, p.name, p.company, p.url, p.description, p.image_url,
	p.creator_id, p.creator_name, p.votes, p.created_at`

func (r *productRepo) Create(ctx context.Context, tx pgx.Tx, product *domain.Product) error {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("id", product.ID.String()),
		attribute.String("name", product.Name),
	)

	query := `
		INSERT INTO products (id, name, company, url, description, image_url, creator_id, creator_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING votes, created_at;
	`

	err := tx.QueryRow(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Company,
		product.URL,
		product.Description,
		product.ImageURL,
		product.Creator.ID,
		product.Creator.DisplayName,
	).Scan(&product.Votes, &product.CreatedAt)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error creating product",
			zap.Error(err),
		)

		return fmt.Errorf("error creating product: %w", err)
	}

	product.VotedBy = []string{}
	product.Comments = []domain.Comment{}

	return nil
}

func (r *productRepo) GetByID(ctx context.Context, q Querier, id uuid.UUID) (*domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.GetByID")
	defer span.End()

	span.SetAttributes(
		attribute.String("id", id.String()),
	)

	// one statement so votes, voted_by and comments come from the same snapshot
	query := `
		SELECT ` + productColumns + `,
			COALESCE((
				SELECT array_agg(v.user_id ORDER BY v.created_at, v.user_id)
				FROM product_votes v
				WHERE v.product_id = p.id
			), '{}'::text[]),
			COALESCE((
				SELECT json_agg(json_build_object(
					'id', c.id,
					'message', c.message,
					'author_id', c.author_id,
					'author_display_name', c.author_name,
					'created_at', c.created_at
				) ORDER BY c.id)
				FROM product_comments c
				WHERE c.product_id = p.id
			), '[]'::json)
		FROM products p
		WHERE p.id = $1;
	`

	var res domain.Product
	err := q.QueryRow(ctx, query, id).Scan(
		&res.ID, &res.Name, &res.Company, &res.URL, &res.Description, &res.ImageURL,
		&res.Creator.ID, &res.Creator.DisplayName, &res.Votes, &res.CreatedAt,
		&res.VotedBy, &res.Comments,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error get by id",
			zap.String("id", id.String()),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error getting product: %w", err)
	}

	res.CommentCount = int64(len(res.Comments))
	return &res, nil
}

func (r *productRepo) LockByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.LockByID")
	defer span.End()

	span.SetAttributes(
		attribute.String("id", id.String()),
	)

	query := `
		SELECT ` + productColumns + `
		FROM products p
		WHERE p.id = $1
		FOR UPDATE;
	`

	var res domain.Product
	err := tx.QueryRow(ctx, query, id).Scan(
		&res.ID, &res.Name, &res.Company, &res.URL, &res.Description, &res.ImageURL,
		&res.Creator.ID, &res.Creator.DisplayName, &res.Votes, &res.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}

		span.RecordError(err)
		return nil, fmt.Errorf("error locking product: %w", err)
	}

	return &res, nil
}

// AddVote must run in the transaction that holds the product row lock. It
// reports whether the vote was new and the resulting tally.
func (r *productRepo) AddVote(ctx context.Context, tx pgx.Tx, id uuid.UUID, userID string) (bool, int64, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.AddVote")
	defer span.End()

	span.SetAttributes(
		attribute.String("id", id.String()),
		attribute.String("user_id", userID),
	)

	insertQuery := `
		INSERT INTO product_votes (product_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (product_id, user_id) DO NOTHING;
	`

	commandTag, err := tx.Exec(ctx, insertQuery, id, userID)
	if err != nil {
		span.RecordError(err)

		if db.IsForeignKeyViolation(err) {
			return false, 0, ErrProductNotFound
		}

		mylogger.Error(
			ctx,
			r.logger,
			"Error inserting vote",
			zap.String("product_id", id.String()),
			zap.Error(err),
		)

		return false, 0, fmt.Errorf("error inserting vote: %w", err)
	}

	recorded := commandTag.RowsAffected() == 1

	// the tally is always re-derived from the vote set
	tallyQuery := `
		UPDATE products
		SET votes = (SELECT COUNT(*) FROM product_votes WHERE product_id = $1)
		WHERE id = $1
		RETURNING votes;
	`
	if !recorded {
		tallyQuery = `SELECT votes FROM products WHERE id = $1;`
	}

	var votes int64
	if err := tx.QueryRow(ctx, tallyQuery, id).Scan(&votes); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, 0, ErrProductNotFound
		}

		span.RecordError(err)
		return false, 0, fmt.Errorf("error updating vote tally: %w", err)
	}

	span.SetAttributes(
		attribute.Bool("recorded", recorded),
		attribute.Int64("votes", votes),
	)

	return recorded, votes, nil
}

func (r *productRepo) AppendComment(ctx context.Context, tx pgx.Tx, id uuid.UUID, comment domain.Comment) (domain.Comment, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.AppendComment")
	defer span.End()

	span.SetAttributes(
		attribute.String("id", id.String()),
		attribute.String("author_id", comment.AuthorID),
	)

	query := `
		INSERT INTO product_comments (product_id, author_id, author_name, message)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at;
	`

	stored := comment
	err := tx.QueryRow(ctx, query, id, comment.AuthorID, comment.AuthorDisplayName, comment.Message).
		Scan(&stored.ID, &stored.CreatedAt)
	if err != nil {
		span.RecordError(err)

		if db.IsForeignKeyViolation(err) {
			return domain.Comment{}, ErrProductNotFound
		}

		mylogger.Error(
			ctx,
			r.logger,
			"Error appending comment",
			zap.String("product_id", id.String()),
			zap.Error(err),
		)

		return domain.Comment{}, fmt.Errorf("error appending comment: %w", err)
	}

	return stored, nil
}

func (r *productRepo) SetImage(ctx context.Context, tx pgx.Tx, id uuid.UUID, imageURL string) error {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.SetImage")
	defer span.End()

	span.SetAttributes(
		attribute.String("id", id.String()),
	)

	commandTag, err := tx.Exec(ctx, `UPDATE products SET image_url = $1 WHERE id = $2`, imageURL, id)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("error setting product image: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return ErrProductNotFound
	}

	return nil
}

func (r *productRepo) DeleteByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.DeleteByID")
	defer span.End()

	span.SetAttributes(
		attribute.String("id", id.String()),
	)

	// votes and comments go with it through ON DELETE CASCADE
	commandTag, err := tx.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error deleting product by id",
			zap.String("id", id.String()),
			zap.Error(err),
		)

		return fmt.Errorf("error deleting product by id: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return ErrProductNotFound
	}

	return nil
}

func (r *productRepo) List(ctx context.Context, q Querier, query ListQuery) ([]domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.List")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_by", string(query.OrderBy)),
		attribute.Int("limit", query.Limit),
		attribute.String("search", query.Search),
		attribute.Bool("has_cursor", query.After != nil),
	)

	baseQuery := `SELECT ` + productColumns + `,
		COALESCE((
			SELECT array_agg(v.user_id ORDER BY v.created_at, v.user_id)
			FROM product_votes v
			WHERE v.product_id = p.id
		), '{}'::text[]),
		(SELECT COUNT(*) FROM product_comments c WHERE c.product_id = p.id)
		FROM products p
		WHERE TRUE`

	var args []interface{}
	argId := 1

	if query.Search != "" {
		baseQuery += fmt.Sprintf(
			" AND (p.name ILIKE $%d OR p.company ILIKE $%d OR p.description ILIKE $%d)",
			argId, argId, argId,
		)
		args = append(args, "%"+escapeLike(query.Search)+"%")
		argId++
	}

	switch query.OrderBy {
	case domain.OrderByVotes:
		if query.After != nil {
			baseQuery += fmt.Sprintf(" AND (p.votes, p.created_at, p.id) < ($%d, $%d, $%d)", argId, argId+1, argId+2)
			args = append(args, query.After.Votes, query.After.CreatedAt, query.After.ID)
			argId += 3
		}
		baseQuery += " ORDER BY p.votes DESC, p.created_at DESC, p.id DESC"
	default:
		if query.After != nil {
			baseQuery += fmt.Sprintf(" AND (p.created_at, p.id) < ($%d, $%d)", argId, argId+1)
			args = append(args, query.After.CreatedAt, query.After.ID)
			argId += 2
		}
		baseQuery += " ORDER BY p.created_at DESC, p.id DESC"
	}

	baseQuery += fmt.Sprintf(" LIMIT $%d", argId)
	args = append(args, query.Limit)

	rows, err := q.Query(ctx, baseQuery, args...)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error getting products",
			zap.String("order_by", string(query.OrderBy)),
			zap.String("search", query.Search),
			zap.Int("limit", query.Limit),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error selecting products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, query.Limit)
	for rows.Next() {
		var p domain.Product
		err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.Company,
			&p.URL,
			&p.Description,
			&p.ImageURL,
			&p.Creator.ID,
			&p.Creator.DisplayName,
			&p.Votes,
			&p.CreatedAt,
			&p.VotedBy,
			&p.CommentCount,
		)
		if err != nil {
			span.RecordError(err)

			mylogger.Error(
				ctx,
				r.logger,
				"Failed to scan rows",
				zap.Error(err),
			)

			return nil, fmt.Errorf("error scanning rows: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Rows iteration error",
			zap.Error(err),
		)

		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	span.SetAttributes(attribute.Int("result_count", len(products)))

	return products, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
