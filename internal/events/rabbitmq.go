package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bookstore-be/internal/logger"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	ExchangeName = "bookstore.orders"
	ExchangeType = "topic"
)

// channel is the subset of *amqp.Channel used for publishing.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type rabbitPublisher struct {
	conn *amqp.Connection
	ch   channel
}

// DialRabbitMQ connects, opens a channel and declares the order exchange.
func DialRabbitMQ(url string) (*amqp.Connection, *amqp.Channel, error) {
	var conn *amqp.Connection
	var err error

	for i := 0; i < 5; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		logger.L().Warn("failed to connect to RabbitMQ", zap.Int("attempt", i+1), zap.Error(err))
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("could not open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		ExchangeName, // name
		ExchangeType, // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("could not declare exchange: %w", err)
	}

	return conn, ch, nil
}

func NewRabbitPublisher(conn *amqp.Connection, ch *amqp.Channel) Publisher {
	return &rabbitPublisher{conn: conn, ch: ch}
}

func (p *rabbitPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("could not marshal event: %w", err)
	}

	// routing key is the event type, e.g. order.created
	return p.ch.PublishWithContext(ctx,
		ExchangeName,
		event.Type,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.OrderID,
			Timestamp:    event.OccurredAt,
			Type:         event.Type,
			Body:         body,
		},
	)
}

func (p *rabbitPublisher) Close() error {
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
