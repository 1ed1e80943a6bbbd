package kafka

import (
	"context"

	"github.com/IBM/sarama"
)

type MessageHandler interface {
	Handle(ctx context.Context, msg *sarama.ConsumerMessage) error
}

// Consumer runs a sarama consumer group and feeds each message to a
// MessageHandler. Offsets advance only for messages the handler
// accepted.
type Consumer struct {
	group   sarama.ConsumerGroup
	handler MessageHandler
}

func NewConsumer(brokers []string, groupID string, cfg *sarama.Config, handler MessageHandler) (*Consumer, error) {
	if cfg == nil {
		cfg = sarama.NewConfig()
	}
	cfg.Version = sarama.V2_5_0_0
	group, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, err
	}
	return &Consumer{group: group, handler: handler}, nil
}

// Run blocks until ctx is cancelled, rejoining the group after each
// rebalance.
func (c *Consumer) Run(ctx context.Context, topics []string) error {
	claims := groupClaims{handler: c.handler}
	for ctx.Err() == nil {
		if err := c.group.Consume(ctx, topics, claims); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

type groupClaims struct {
	handler MessageHandler
}

func (groupClaims) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (groupClaims) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (g groupClaims) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if err := g.handler.Handle(sess.Context(), message); err != nil {
			// handler owns retries; do not advance the offset
			continue
		}
		sess.MarkMessage(message, "")
	}
	return nil
}
