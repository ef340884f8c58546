package service_test

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sakashimaa/product-showcase/internal/domain"
)

var (
	alice = &domain.Caller{ID: "user-a", DisplayName: "Alice"}
	bob   = &domain.Caller{ID: "user-b", DisplayName: "Bob"}
	carol = &domain.Caller{ID: "user-c", DisplayName: "Carol"}
)

func (s *IntegrationTestSuite) TestCreateProduct_Success() {
	product, err := s.ProductService.Create(s.Ctx, alice, domain.ProductDraft{
		Name:        "  黒波・混沌 Edition ",
		Company:     "Acme",
		URL:         "ftp://x.com/a",
		Description: "真のサムライのための武器。",
	})
	s.Require().NoError(err)
	s.Require().Equal("黒波・混沌 Edition", product.Name)
	s.Require().Equal(domain.Creator{ID: "user-a", DisplayName: "Alice"}, product.Creator)
	s.Require().Zero(product.Votes)
	s.Require().Empty(product.VotedBy)
	s.Require().Empty(product.Comments)
	s.Require().False(product.CreatedAt.IsZero())

	stored, err := s.ProductService.FindByID(s.Ctx, product.ID.String())
	s.Require().NoError(err)
	s.Require().Equal(product.Name, stored.Name)
	s.Require().Equal(product.URL, stored.URL)

	publishedAtQuery := `
		SELECT published_at
		FROM outbox
		WHERE aggregate_id = $1 AND event_type = 'ProductCreated'
	`

	s.Require().Eventually(func() bool {
		var publishedAt *time.Time

		err := s.DbPool.QueryRow(s.Ctx, publishedAtQuery, product.ID.String()).
			Scan(&publishedAt)
		return err == nil && publishedAt != nil
	}, 10*time.Second, 100*time.Millisecond)

	s.Require().Equal(1.0, testutil.ToFloat64(s.Metrics.ProductsCreated))
}

func (s *IntegrationTestSuite) TestCreateProduct_Validation() {
	tests := []struct {
		name string
		url  string
	}{
		{"not a url", "not-a-url"},
		{"empty url", ""},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			product, err := s.ProductService.Create(s.Ctx, alice, domain.ProductDraft{
				Name:        "Vinyl",
				Company:     "Acme",
				URL:         tt.url,
				Description: "desc",
			})
			s.Require().ErrorIs(err, domain.ErrValidation)
			s.Require().Nil(product)
		})
	}

	var count int
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `SELECT COUNT(*) FROM products`).Scan(&count))
	s.Require().Zero(count)
}

func (s *IntegrationTestSuite) TestCreateProduct_Unauthenticated() {
	product, err := s.ProductService.Create(s.Ctx, nil, domain.ProductDraft{
		Name:        "Vinyl",
		Company:     "Acme",
		URL:         "https://acme.example",
		Description: "desc",
	})
	s.Require().ErrorIs(err, domain.ErrUnauthenticated)
	s.Require().Nil(product)
	s.Require().Equal(1.0, testutil.ToFloat64(s.Metrics.Refusals.WithLabelValues("create", "unauthenticated")))
}

func (s *IntegrationTestSuite) TestCreateProduct_ContextTimeout() {
	ctxTimeout, cancel := context.WithTimeout(s.Ctx, time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	product, err := s.ProductService.Create(ctxTimeout, alice, domain.ProductDraft{
		Name:        "Vinyl",
		Company:     "Acme",
		URL:         "https://acme.example",
		Description: "desc",
	})
	s.Require().ErrorIs(err, context.DeadlineExceeded)
	s.Require().NotErrorIs(err, domain.ErrStoreUnavailable)
	s.Require().Nil(product)
}

func (s *IntegrationTestSuite) TestFindByID_NotFound() {
	product, err := s.ProductService.FindByID(s.Ctx, "6f1c2a4e-8d2b-4c1e-9a57-0e6b5d8f4a11")
	s.Require().ErrorIs(err, domain.ErrNotFound)
	s.Require().Nil(product)

	product, err = s.ProductService.FindByID(s.Ctx, "999")
	s.Require().ErrorIs(err, domain.ErrNotFound)
	s.Require().Nil(product)
}

func (s *IntegrationTestSuite) TestFindByID_Cached() {
	product := s.createProduct(alice, "cached")
	id := product.ID.String()

	_, err := s.CachedProductService.FindByID(s.Ctx, id)
	s.Require().NoError(err)

	val, err := s.Redis.Get(s.Ctx, "product:"+id).Result()
	s.Require().NoError(err)
	s.Require().NotEmpty(val)

	cached, err := s.CachedProductService.FindByID(s.Ctx, id)
	s.Require().NoError(err)
	s.Require().Equal(product.Name, cached.Name)
	s.Require().Equal(1.0, testutil.ToFloat64(s.Metrics.CacheLookups.WithLabelValues("hit")))

	voted, err := s.CachedProductService.Vote(s.Ctx, id, bob)
	s.Require().NoError(err)
	s.Require().Equal(int64(1), voted.Votes)

	fresh, err := s.CachedProductService.FindByID(s.Ctx, id)
	s.Require().NoError(err)
	s.Require().Equal(int64(1), fresh.Votes)
	s.Require().Equal([]string{"user-b"}, fresh.VotedBy)
}

func (s *IntegrationTestSuite) TestDelete_OnlyCreator() {
	product := s.createProduct(alice, "delete-me")
	id := product.ID.String()

	_, err := s.ProductService.Vote(s.Ctx, id, bob)
	s.Require().NoError(err)
	_, err = s.ProductService.AddComment(s.Ctx, id, bob, "keep it")
	s.Require().NoError(err)

	err = s.ProductService.Delete(s.Ctx, id, bob)
	s.Require().ErrorIs(err, domain.ErrForbidden)

	err = s.ProductService.Delete(s.Ctx, id, nil)
	s.Require().ErrorIs(err, domain.ErrUnauthenticated)

	intact, err := s.ProductService.FindByID(s.Ctx, id)
	s.Require().NoError(err)
	s.Require().Equal(int64(1), intact.Votes)
	s.Require().Len(intact.Comments, 1)

	s.Require().NoError(s.ProductService.Delete(s.Ctx, id, alice))

	_, err = s.ProductService.FindByID(s.Ctx, id)
	s.Require().ErrorIs(err, domain.ErrNotFound)

	var comments, votes int
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `SELECT COUNT(*) FROM product_comments WHERE product_id = $1`, id).Scan(&comments))
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `SELECT COUNT(*) FROM product_votes WHERE product_id = $1`, id).Scan(&votes))
	s.Require().Zero(comments)
	s.Require().Zero(votes)

	err = s.ProductService.Delete(s.Ctx, id, alice)
	s.Require().ErrorIs(err, domain.ErrNotFound)
}

func (s *IntegrationTestSuite) TestSetImage() {
	product := s.createProduct(alice, "image")
	id := product.ID.String()

	_, err := s.ProductService.SetImage(s.Ctx, id, bob, "https://cdn.example/b.png")
	s.Require().ErrorIs(err, domain.ErrForbidden)

	_, err = s.ProductService.SetImage(s.Ctx, id, alice, "image.png")
	s.Require().ErrorIs(err, domain.ErrValidation)

	updated, err := s.ProductService.SetImage(s.Ctx, id, alice, "https://cdn.example/a.png")
	s.Require().NoError(err)
	s.Require().Equal("https://cdn.example/a.png", updated.ImageURL)
}

func (s *IntegrationTestSuite) TestScenario_CreateVoteCommentDelete() {
	p := s.createProduct(alice, "scenario")
	id := p.ID.String()
	s.Require().Zero(p.Votes)

	p, err := s.ProductService.Vote(s.Ctx, id, bob)
	s.Require().NoError(err)
	s.Require().Equal(int64(1), p.Votes)
	s.Require().Equal([]string{"user-b"}, p.VotedBy)

	p, err = s.ProductService.Vote(s.Ctx, id, bob)
	s.Require().NoError(err)
	s.Require().Equal(int64(1), p.Votes)
	s.Require().Equal([]string{"user-b"}, p.VotedBy)

	p, err = s.ProductService.AddComment(s.Ctx, id, carol, "nice")
	s.Require().NoError(err)
	s.Require().Len(p.Comments, 1)
	s.Require().Equal("nice", p.Comments[0].Message)
	s.Require().Equal("user-c", p.Comments[0].AuthorID)
	s.Require().Equal("Carol", p.Comments[0].AuthorDisplayName)
	s.Require().False(p.IsByCreator(p.Comments[0]))

	s.Require().NoError(s.ProductService.Delete(s.Ctx, id, alice))

	_, err = s.ProductService.FindByID(s.Ctx, id)
	s.Require().ErrorIs(err, domain.ErrNotFound)
}
