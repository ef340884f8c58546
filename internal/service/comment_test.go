package service_test

import (
	"fmt"
	"sync"

	"github.com/sakashimaa/product-showcase/internal/domain"
)

func (s *IntegrationTestSuite) TestAddComment_ConcurrentAppendsAreKept() {
	product := s.createProduct(alice, "concurrent-comments")
	id := product.ID.String()

	const commenters = 20

	var wg sync.WaitGroup
	for i := 0; i < commenters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			caller := &domain.Caller{ID: fmt.Sprintf("commenter-%d", i), DisplayName: "Commenter"}
			_, err := s.ProductService.AddComment(s.Ctx, id, caller, fmt.Sprintf("comment %d", i))
			s.NoError(err)
		}(i)
	}
	wg.Wait()

	res, err := s.ProductService.FindByID(s.Ctx, id)
	s.Require().NoError(err)
	s.Require().Len(res.Comments, commenters)
	s.Require().Equal(int64(commenters), res.CommentCount)

	messages := map[string]bool{}
	for i, c := range res.Comments {
		messages[c.Message] = true
		if i > 0 {
			s.Require().Greater(c.ID, res.Comments[i-1].ID)
		}
	}
	s.Require().Len(messages, commenters)
}

func (s *IntegrationTestSuite) TestAddComment_IsByCreatorDerivedOnRead() {
	product := s.createProduct(alice, "by-creator")
	id := product.ID.String()

	_, err := s.ProductService.AddComment(s.Ctx, id, alice, "thanks for the support")
	s.Require().NoError(err)
	res, err := s.ProductService.AddComment(s.Ctx, id, bob, "nice")
	s.Require().NoError(err)

	s.Require().Len(res.Comments, 2)
	s.Require().True(res.IsByCreator(res.Comments[0]))
	s.Require().False(res.IsByCreator(res.Comments[1]))
	s.Require().Equal("Alice", res.Comments[0].AuthorDisplayName)
}

func (s *IntegrationTestSuite) TestAddComment_Failures() {
	product := s.createProduct(alice, "comment-failures")
	id := product.ID.String()

	_, err := s.ProductService.AddComment(s.Ctx, id, bob, "   ")
	s.Require().ErrorIs(err, domain.ErrValidation)

	_, err = s.ProductService.AddComment(s.Ctx, id, nil, "hello")
	s.Require().ErrorIs(err, domain.ErrUnauthenticated)

	_, err = s.ProductService.AddComment(s.Ctx, "6f1c2a4e-8d2b-4c1e-9a57-0e6b5d8f4a11", bob, "hello")
	s.Require().ErrorIs(err, domain.ErrNotFound)

	res, err := s.ProductService.FindByID(s.Ctx, id)
	s.Require().NoError(err)
	s.Require().Empty(res.Comments)
}
