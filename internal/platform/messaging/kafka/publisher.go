// Package kafka publishes notification events and consumes broadcast
// announcements over IBM/sarama.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/hoken-app/insurance-portal/internal/platform/config"
	"github.com/hoken-app/insurance-portal/internal/platform/logger"
	"github.com/hoken-app/insurance-portal/internal/platform/metrics"
	"github.com/hoken-app/insurance-portal/internal/shared/events"
)

// Record header names
const (
	HeaderEventType     = "eventType"
	HeaderCorrelationID = "correlationId"
	HeaderAggregateType = "aggregateType"
)

type correlationKey struct{}

// WithCorrelationID stores a correlation id that Publish copies onto events
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// correlationID prefers an explicit id and falls back to the HTTP request id
func correlationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey{}).(string); ok && id != "" {
		return id
	}
	if id, ok := ctx.Value(logger.RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// NewSaramaConfig returns the producer and consumer settings shared by the service
func NewSaramaConfig(cfg config.KafkaConfig) *sarama.Config {
	sc := sarama.NewConfig()
	if cfg.ClientID != "" {
		sc.ClientID = cfg.ClientID
	}
	sc.Version = sarama.V3_3_1_0

	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 5
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	sc.Producer.Compression = sarama.CompressionSnappy

	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	return sc
}

// EventPublisher sends domain events to one topic, keyed by aggregate id so
// a user's events stay ordered within a partition.
type EventPublisher struct {
	producer sarama.AsyncProducer
	topic    string
	logger   logger.Logger
	metrics  *metrics.Metrics
	drained  sync.WaitGroup
}

func NewEventPublisher(cfg config.KafkaConfig, log logger.Logger, m *metrics.Metrics) (*EventPublisher, error) {
	producer, err := sarama.NewAsyncProducer(cfg.Brokers, NewSaramaConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("kafka: create producer: %w", err)
	}
	return NewEventPublisherWithProducer(producer, cfg.EventsTopic, log, m), nil
}

// NewEventPublisherWithProducer wraps an existing producer, such as a sarama mock
func NewEventPublisherWithProducer(producer sarama.AsyncProducer, topic string, log logger.Logger, m *metrics.Metrics) *EventPublisher {
	if log == nil {
		log = logger.NewNop()
	}
	p := &EventPublisher{producer: producer, topic: topic, logger: log, metrics: m}

	p.drained.Add(2)
	go p.drainErrors()
	go p.drainSuccesses()
	return p
}

// Publish enqueues event. Delivery is asynchronous and failures only reach the log.
func (p *EventPublisher) Publish(ctx context.Context, event *events.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.CorrelationID == "" {
		event.CorrelationID = correlationID(ctx)
	}

	msg, err := p.message(event)
	if err != nil {
		return err
	}

	select {
	case p.producer.Input() <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *EventPublisher) message(event *events.Event) (*sarama.ProducerMessage, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("kafka: encode %s: %w", event.EventType, err)
	}

	header := func(k, v string) sarama.RecordHeader {
		return sarama.RecordHeader{Key: []byte(k), Value: []byte(v)}
	}
	return &sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(event.AggregateID),
		Value:     sarama.ByteEncoder(body),
		Timestamp: event.Timestamp,
		Headers: []sarama.RecordHeader{
			header(HeaderEventType, event.EventType),
			header(HeaderCorrelationID, event.CorrelationID),
			header(HeaderAggregateType, event.AggregateType),
		},
	}, nil
}

// Close flushes buffered messages and waits for their outcomes to be logged
func (p *EventPublisher) Close() error {
	p.producer.AsyncClose()
	p.drained.Wait()
	return nil
}

func (p *EventPublisher) drainErrors() {
	defer p.drained.Done()
	for perr := range p.producer.Errors() {
		p.logger.Error("Kafka delivery failed", "topic", perr.Msg.Topic, "error", perr.Err)
	}
}

func (p *EventPublisher) drainSuccesses() {
	defer p.drained.Done()
	for msg := range p.producer.Successes() {
		if p.metrics != nil {
			p.metrics.KafkaMessagesProduced.WithLabelValues(msg.Topic).Inc()
		}
		p.logger.Debug("Kafka message delivered", "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)
	}
}
