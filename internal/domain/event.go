package domain

import "time"

const (
	AggregateProduct = "Product"

	EventProductCreated   = "ProductCreated"
	EventProductVoted     = "ProductVoted"
	EventProductCommented = "ProductCommented"
	EventProductDeleted   = "ProductDeleted"
	EventProductImageSet  = "ProductImageSet"
)

// ProductChangedEvent is published for every committed product mutation.
type ProductChangedEvent struct {
	ProductID  string    `json:"product_id"`
	Votes      int64     `json:"votes"`
	ActorID    string    `json:"actor_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
