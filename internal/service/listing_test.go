package service_test

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sakashimaa/product-showcase/internal/domain"
	"github.com/sakashimaa/product-showcase/internal/listing"
)

func (s *IntegrationTestSuite) TestListing_KeysetPagesCoverEverything() {
	const total = 11

	created := map[uuid.UUID]bool{}
	for i := 0; i < total; i++ {
		p := s.createProduct(alice, fmt.Sprintf("paged-%02d", i))
		created[p.ID] = true

		for v := 0; v < i%4; v++ {
			_, err := s.ProductService.Vote(s.Ctx, p.ID.String(), &domain.Caller{ID: fmt.Sprintf("v-%d", v)})
			s.Require().NoError(err)
		}
	}

	for _, orderBy := range []domain.OrderBy{domain.OrderByRecency, domain.OrderByVotes} {
		s.Run(string(orderBy), func() {
			seen := map[uuid.UUID]int{}
			var prev *domain.Product
			token := ""

			for {
				page, err := s.Listing.List(s.Ctx, listing.Query{OrderBy: orderBy, PageToken: token, Limit: 4})
				s.Require().NoError(err)

				for i := range page.Items {
					item := page.Items[i]
					seen[item.ID]++

					if prev != nil {
						if orderBy == domain.OrderByVotes {
							s.Require().LessOrEqual(item.Votes, prev.Votes)
						} else {
							s.Require().False(item.CreatedAt.After(prev.CreatedAt))
						}
					}
					prev = &item
				}

				if page.NextPageToken == "" {
					break
				}
				token = page.NextPageToken
			}

			s.Require().Len(seen, total)
			for id := range created {
				s.Require().Equal(1, seen[id])
			}
		})
	}
}

func (s *IntegrationTestSuite) TestListing_Search() {
	s.createProduct(alice, "vinyl-player")
	s.createProduct(alice, "headphones")

	page, err := s.Listing.List(s.Ctx, listing.Query{Search: "HEADPHONE"})
	s.Require().NoError(err)
	s.Require().Len(page.Items, 1)
	s.Require().Equal("headphones", page.Items[0].Name)

	page, err = s.Listing.List(s.Ctx, listing.Query{Search: "vinyl"})
	s.Require().NoError(err)
	s.Require().Len(page.Items, 2)

	page, err = s.Listing.List(s.Ctx, listing.Query{Search: "100%"})
	s.Require().NoError(err)
	s.Require().Empty(page.Items)
}

func (s *IntegrationTestSuite) TestListing_ItemsCarryVotesAndCommentCount() {
	p := s.createProduct(alice, "counted")

	_, err := s.ProductService.Vote(s.Ctx, p.ID.String(), bob)
	s.Require().NoError(err)
	_, err = s.ProductService.AddComment(s.Ctx, p.ID.String(), carol, "nice")
	s.Require().NoError(err)

	page, err := s.Listing.List(s.Ctx, listing.Query{})
	s.Require().NoError(err)
	s.Require().Len(page.Items, 1)
	s.Require().Equal(int64(1), page.Items[0].Votes)
	s.Require().Equal([]string{"user-b"}, page.Items[0].VotedBy)
	s.Require().Equal(int64(1), page.Items[0].CommentCount)
}

// The vote travels outbox -> kafka -> consumer -> broker before the
// subscription wakes up.
func (s *IntegrationTestSuite) TestSubscription_ReceivesChangeFeed() {
	p := s.createProduct(alice, "live")
	id := p.ID.String()

	sub, err := s.Listing.Subscribe(listing.Query{OrderBy: domain.OrderByVotes})
	s.Require().NoError(err)
	defer sub.Cancel()

	first, err := sub.Next(s.Ctx)
	s.Require().NoError(err)
	s.Require().Len(first.Items, 1)
	s.Require().Zero(first.Items[0].Votes)

	voter := 0
	s.Require().Eventually(func() bool {
		// the consumer group may still be joining, so keep producing changes
		voter++
		_, err := s.ProductService.Vote(s.Ctx, id, &domain.Caller{ID: fmt.Sprintf("live-%d", voter)})
		if err != nil {
			return false
		}

		ctx, cancel := context.WithTimeout(s.Ctx, time.Second)
		defer cancel()

		snap, err := sub.Next(ctx)
		return err == nil && snap.Seq >= 2 && snap.Items[0].Votes >= 1
	}, 60*time.Second, 10*time.Millisecond)

	sub.Cancel()

	_, err = sub.Next(s.Ctx)
	s.Require().ErrorIs(err, listing.ErrSubscriptionClosed)

	after, err := s.ProductService.FindByID(s.Ctx, id)
	s.Require().NoError(err)
	s.Require().GreaterOrEqual(after.Votes, int64(1))
	s.Require().Zero(s.Broker.Len())
}
