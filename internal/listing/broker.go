package listing

import (
	"sync"

	"github.com/sakashimaa/product-showcase/internal/domain"
)

// Change is what subscribers are woken up with.
type Change struct {
	ProductID string
	EventType string
}

// Broker fans product changes out to live subscriptions. Each subscriber holds
// at most one pending wake-up; further changes before it is consumed are
// dropped.
type Broker struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan Change
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[uint64]chan Change),
	}
}

func (b *Broker) Publish(c Change) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- c:
		default:
		}
	}
}

// Subscribe returns the wake-up channel and the function that detaches it.
// The detach function is safe to call more than once.
func (b *Broker) Subscribe() (<-chan Change, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	ch := make(chan Change, 1)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
		})
	}
}

func (b *Broker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.subs)
}

// Affects reports whether a change can alter a listing. Every product event
// touches either membership, ordering or the comment count.
func Affects(eventType string) bool {
	switch eventType {
	case domain.EventProductCreated,
		domain.EventProductVoted,
		domain.EventProductCommented,
		domain.EventProductDeleted,
		domain.EventProductImageSet:
		return true
	default:
		return false
	}
}
