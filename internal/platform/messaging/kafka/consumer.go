package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/hoken-app/insurance-portal/internal/platform/config"
	"github.com/hoken-app/insurance-portal/internal/platform/logger"
	"github.com/hoken-app/insurance-portal/internal/platform/metrics"
)

// MessageHandler processes one consumed message
type MessageHandler func(ctx context.Context, msg *sarama.ConsumerMessage) error

// Consumer runs a consumer group over a set of topics
type Consumer struct {
	group   sarama.ConsumerGroup
	topics  []string
	handler *groupHandler
	logger  logger.Logger
}

// NewConsumer joins the configured consumer group
func NewConsumer(cfg config.KafkaConfig, handler MessageHandler, log logger.Logger, m *metrics.Metrics) (*Consumer, error) {
	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroup, NewSaramaConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}
	return NewConsumerWithGroup(group, cfg.BroadcastTopics, handler, log, m), nil
}

// NewConsumerWithGroup wraps an existing consumer group
func NewConsumerWithGroup(group sarama.ConsumerGroup, topics []string, handler MessageHandler, log logger.Logger, m *metrics.Metrics) *Consumer {
	if log == nil {
		log = logger.NewNop()
	}
	return &Consumer{
		group:   group,
		topics:  topics,
		handler: &groupHandler{handle: handler, logger: log, metrics: m},
		logger:  log,
	}
}

// Run consumes until ctx is cancelled. Consume returns on every rebalance,
// so it is called in a loop.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("Kafka consumer started", "topics", c.topics)
	for {
		if err := c.group.Consume(ctx, c.topics, c.handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			c.logger.Error("Kafka consume failed", "error", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Close leaves the consumer group
func (c *Consumer) Close() error {
	return c.group.Close()
}

type groupHandler struct {
	handle  MessageHandler
	logger  logger.Logger
	metrics *metrics.Metrics
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim marks every message, including ones the handler rejects, so a
// malformed event cannot block the partition.
func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			result := "ok"
			if err := h.handle(messageContext(session.Context(), msg), msg); err != nil {
				result = "error"
				h.logger.Error("Failed to handle Kafka message",
					"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "error", err)
			}
			if h.metrics != nil {
				h.metrics.KafkaMessagesConsumed.WithLabelValues(msg.Topic, result).Inc()
			}
			session.MarkMessage(msg, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

// messageContext carries the producer's correlation id into the handler
func messageContext(ctx context.Context, msg *sarama.ConsumerMessage) context.Context {
	for _, h := range msg.Headers {
		if h != nil && string(h.Key) == HeaderCorrelationID && len(h.Value) > 0 {
			return WithCorrelationID(ctx, string(h.Value))
		}
	}
	return ctx
}
