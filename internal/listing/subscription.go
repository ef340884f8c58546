package listing

import (
	"context"
	"errors"
	"iter"
	"sync"
)

var ErrSubscriptionClosed = errors.New("subscription closed")

// Snapshot is one full result set of a subscribed query. Seq starts at 1 and
// grows by one per delivered snapshot.
type Snapshot struct {
	Seq uint64 `json:"seq"`
	Page
}

// Subscription is a live view of a listing query. Next must not be called
// concurrently; Cancel may be called from any goroutine.
type Subscription struct {
	service *Service
	query   Query

	changes <-chan Change
	detach  func()

	started bool
	seq     uint64

	done      chan struct{}
	closeOnce sync.Once
}

// Next returns the current result set on the first call. Later calls block
// until a product changes, then return a freshly queried result set.
func (s *Subscription) Next(ctx context.Context) (Snapshot, error) {
	select {
	case <-s.done:
		return Snapshot{}, ErrSubscriptionClosed
	default:
	}

	if s.started {
		select {
		case <-s.changes:
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		case <-s.done:
			return Snapshot{}, ErrSubscriptionClosed
		}
	}

	page, err := s.service.List(ctx, s.query)
	if err != nil {
		return Snapshot{}, err
	}

	s.started = true
	s.seq++
	s.service.metrics.SnapshotsDelivered.Inc()

	return Snapshot{Seq: s.seq, Page: *page}, nil
}

// Cancel stops delivery. It never touches store state.
func (s *Subscription) Cancel() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.detach()
		s.service.metrics.ActiveSubscriptions.Dec()
	})
}

// Snapshots is the subscription as a range-over-func sequence. Every range
// opens its own subscription, so the sequence can be restarted. It ends when
// ctx is done, the consumer stops, or a query fails; a query failure is
// yielded first.
func (s *Service) Snapshots(ctx context.Context, q Query) iter.Seq2[Snapshot, error] {
	return func(yield func(Snapshot, error) bool) {
		sub, err := s.Subscribe(q)
		if err != nil {
			yield(Snapshot{}, err)
			return
		}
		defer sub.Cancel()

		for {
			snap, err := sub.Next(ctx)
			if err != nil {
				if !isCancel(err) {
					yield(Snapshot{}, err)
				}
				return
			}

			if !yield(snap, nil) {
				return
			}
		}
	}
}
