package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/sakashimaa/product-showcase/internal/domain"
	"github.com/sakashimaa/product-showcase/internal/listing"
	"github.com/sakashimaa/product-showcase/pkg/kafka"
	"github.com/sakashimaa/product-showcase/pkg/mylogger"
	outboxDomain "github.com/sakashimaa/product-showcase/pkg/outbox/domain"
	"go.uber.org/zap"
)

// Invalidator drops cached product state.
type Invalidator interface {
	Invalidate(ctx context.Context, id string)
}

// Publisher receives listing change notifications.
type Publisher interface {
	Publish(c listing.Change)
}

type Consumer struct {
	cache     Invalidator
	publisher Publisher
	logger    *zap.Logger
}

func NewConsumer(cache Invalidator, publisher Publisher, logger *zap.Logger) *Consumer {
	return &Consumer{
		cache:     cache,
		publisher: publisher,
		logger:    logger,
	}
}

// Start consumes the change feed until ctx is cancelled. Every instance joins
// with its own group id so each one sees every change.
func (c *Consumer) Start(ctx context.Context, brokers []string, groupID, topic string) error {
	consumerGroup := kafka.NewConsumerGroup(
		brokers,
		groupID,
		[]string{topic},
		c.HandleMessage,
		c.logger,
		kafka.WithNewestOffset(),
	)

	return consumerGroup.Run(ctx)
}

func (c *Consumer) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	mylogger.Debug(
		ctx,
		c.logger,
		"Processing message",
		zap.String("topic", msg.Topic),
		zap.Int64("offset", msg.Offset),
	)

	var envelope outboxDomain.Envelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		// a malformed message would otherwise block the partition forever
		mylogger.Error(ctx, c.logger, "Error unmarshalling envelope, skipping", zap.Error(err))
		return nil
	}

	if !listing.Affects(envelope.Event) {
		mylogger.Warn(ctx, c.logger, "Ignored event type", zap.String("event_type", envelope.Event))
		return nil
	}

	var event domain.ProductChangedEvent
	if err := json.Unmarshal(envelope.Payload, &event); err != nil {
		mylogger.Error(ctx, c.logger, "Error unmarshalling event payload, skipping", zap.Error(err))
		return nil
	}

	productID := event.ProductID
	if productID == "" {
		productID = string(msg.Key)
	}
	if productID == "" {
		return fmt.Errorf("event %s has no product id", envelope.EventID)
	}

	if c.cache != nil {
		c.cache.Invalidate(ctx, productID)
	}

	c.publisher.Publish(listing.Change{
		ProductID: productID,
		EventType: envelope.Event,
	})

	return nil
}
