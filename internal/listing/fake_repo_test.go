package listing

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sakashimaa/product-showcase/internal/domain"
	"github.com/sakashimaa/product-showcase/internal/repository"
)

var errUnsupported = errors.New("not supported by fake")

// fakeRepo serves List from memory with the same ordering and keyset rules
// as the Postgres repository.
type fakeRepo struct {
	mu       sync.Mutex
	products []domain.Product
	listErr  error
	calls    int
}

func (f *fakeRepo) set(products ...domain.Product) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products = products
}

func (f *fakeRepo) listCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func less(orderBy domain.OrderBy, a, b domain.Product) bool {
	if orderBy == domain.OrderByVotes && a.Votes != b.Votes {
		return a.Votes > b.Votes
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID.String() > b.ID.String()
}

func (f *fakeRepo) List(_ context.Context, _ repository.Querier, q repository.ListQuery) ([]domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.listErr != nil {
		return nil, f.listErr
	}

	sorted := append([]domain.Product(nil), f.products...)
	sort.Slice(sorted, func(i, j int) bool { return less(q.OrderBy, sorted[i], sorted[j]) })

	res := make([]domain.Product, 0, q.Limit)
	for _, p := range sorted {
		if q.After != nil {
			pos := domain.Product{ID: q.After.ID, Votes: q.After.Votes, CreatedAt: q.After.CreatedAt}
			if !less(q.OrderBy, pos, p) {
				continue
			}
		}
		if len(res) == q.Limit {
			break
		}
		res = append(res, p)
	}

	return res, nil
}

func (f *fakeRepo) Create(context.Context, pgx.Tx, *domain.Product) error {
	return errUnsupported
}

func (f *fakeRepo) GetByID(context.Context, repository.Querier, uuid.UUID) (*domain.Product, error) {
	return nil, errUnsupported
}

func (f *fakeRepo) LockByID(context.Context, pgx.Tx, uuid.UUID) (*domain.Product, error) {
	return nil, errUnsupported
}

func (f *fakeRepo) AddVote(context.Context, pgx.Tx, uuid.UUID, string) (bool, int64, error) {
	return false, 0, errUnsupported
}

func (f *fakeRepo) AppendComment(context.Context, pgx.Tx, uuid.UUID, domain.Comment) (domain.Comment, error) {
	return domain.Comment{}, errUnsupported
}

func (f *fakeRepo) SetImage(context.Context, pgx.Tx, uuid.UUID, string) error {
	return errUnsupported
}

func (f *fakeRepo) DeleteByID(context.Context, pgx.Tx, uuid.UUID) error {
	return errUnsupported
}
