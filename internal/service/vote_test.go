package service_test

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sakashimaa/product-showcase/internal/domain"
)

func (s *IntegrationTestSuite) TestVote_ConcurrentDistinctUsers() {
	product := s.createProduct(alice, "concurrent-votes")
	id := product.ID.String()

	const voters = 25

	var wg sync.WaitGroup
	errs := make(chan error, voters)
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			caller := &domain.Caller{ID: fmt.Sprintf("voter-%d", i), DisplayName: "Voter"}
			if _, err := s.ProductService.Vote(s.Ctx, id, caller); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		s.Require().NoError(err)
	}

	res, err := s.ProductService.FindByID(s.Ctx, id)
	s.Require().NoError(err)
	s.Require().Equal(int64(voters), res.Votes)
	s.Require().Len(res.VotedBy, voters)
	s.Require().Equal(float64(voters), testutil.ToFloat64(s.Metrics.VotesRecorded))
}

func (s *IntegrationTestSuite) TestVote_SameUserIsIdempotent() {
	product := s.createProduct(alice, "idempotent-votes")
	id := product.ID.String()

	const attempts = 10

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := s.ProductService.Vote(s.Ctx, id, bob)
			s.NoError(err)
		}()
	}
	wg.Wait()

	res, err := s.ProductService.FindByID(s.Ctx, id)
	s.Require().NoError(err)
	s.Require().Equal(int64(1), res.Votes)
	s.Require().Equal([]string{"user-b"}, res.VotedBy)
	s.Require().Equal(1.0, testutil.ToFloat64(s.Metrics.VotesRecorded))
	s.Require().Equal(float64(attempts-1), testutil.ToFloat64(s.Metrics.VotesDuplicate))

	var events int
	s.Require().NoError(s.DbPool.QueryRow(
		s.Ctx,
		`SELECT COUNT(*) FROM outbox WHERE aggregate_id = $1 AND event_type = 'ProductVoted'`,
		id,
	).Scan(&events))
	s.Require().Equal(1, events)
}

func (s *IntegrationTestSuite) TestVote_CreatorMayVote() {
	product := s.createProduct(alice, "self-vote")

	res, err := s.ProductService.Vote(s.Ctx, product.ID.String(), alice)
	s.Require().NoError(err)
	s.Require().Equal(int64(1), res.Votes)
}

func (s *IntegrationTestSuite) TestVote_Failures() {
	product := s.createProduct(alice, "vote-failures")

	_, err := s.ProductService.Vote(s.Ctx, product.ID.String(), nil)
	s.Require().ErrorIs(err, domain.ErrUnauthenticated)

	_, err = s.ProductService.Vote(s.Ctx, "6f1c2a4e-8d2b-4c1e-9a57-0e6b5d8f4a11", bob)
	s.Require().ErrorIs(err, domain.ErrNotFound)

	res, err := s.ProductService.FindByID(s.Ctx, product.ID.String())
	s.Require().NoError(err)
	s.Require().Zero(res.Votes)
}
