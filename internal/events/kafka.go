package events

import (
	"context"
	"encoding/json"
	"fmt"

	"bookstore-be/internal/logger"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type kafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaProducer builds a synchronous producer that waits for all replicas.
func NewKafkaProducer(brokers []string) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return producer, nil
}

func NewKafkaPublisher(producer sarama.SyncProducer, topic string) Publisher {
	return &kafkaPublisher{producer: producer, topic: topic}
}

func (p *kafkaPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	carrier := make(headerCarrier, 0)
	otel.GetTextMapPropagator().Inject(ctx, &carrier)

	msg := &sarama.ProducerMessage{
		Topic:   p.topic,
		Key:     sarama.StringEncoder(event.OrderID),
		Value:   sarama.ByteEncoder(body),
		Headers: append([]sarama.RecordHeader{{Key: []byte("type"), Value: []byte(event.Type)}}, carrier...),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	traceID := ""
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		traceID = sc.TraceID().String()
	}
	logger.FromCtx(ctx).Debug("event published",
		zap.String("type", event.Type),
		zap.String("trace_id", traceID),
		zap.String("topic", p.topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

func (p *kafkaPublisher) Close() error {
	return p.producer.Close()
}

// headerCarrier adapts kafka record headers to a propagation.TextMapCarrier.
type headerCarrier []sarama.RecordHeader

func (c headerCarrier) Get(key string) string {
	for _, h := range c {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Set(key, value string) {
	*c = append(*c, sarama.RecordHeader{Key: []byte(key), Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, len(c))
	for i, h := range c {
		keys[i] = string(h.Key)
	}
	return keys
}
