package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"bookstore-be/internal/config"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent() Event {
	return Event{
		Type:       TypeOrderCreated,
		OrderID:    "o-1",
		UserID:     "u-1",
		Status:     "processing",
		Total:      decimal.RequireFromString("49.19"),
		OccurredAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestKafkaPublisher_Publish(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	pub := NewKafkaPublisher(producer, "order_events")

	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "order_events" {
			return errors.New("wrong topic " + msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != "o-1" {
			return errors.New("wrong key " + string(key))
		}
		body, _ := msg.Value.Encode()
		var got Event
		if err := json.Unmarshal(body, &got); err != nil {
			return err
		}
		if got.Type != TypeOrderCreated || !got.Total.Equal(decimal.RequireFromString("49.19")) {
			return errors.New("unexpected payload " + string(body))
		}
		return nil
	})

	assert.NoError(t, pub.Publish(context.Background(), sampleEvent()))
	assert.NoError(t, pub.Close())
}

func TestKafkaPublisher_PublishError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	pub := NewKafkaPublisher(producer, "order_events")

	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	err := pub.Publish(context.Background(), sampleEvent())
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	assert.NoError(t, pub.Close())
}

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
	closed   bool
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	c.exchange, c.key, c.msg = exchange, key, msg
	return c.err
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func TestRabbitPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	pub := &rabbitPublisher{ch: ch}

	require.NoError(t, pub.Publish(context.Background(), sampleEvent()))
	assert.Equal(t, ExchangeName, ch.exchange)
	assert.Equal(t, TypeOrderCreated, ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, uint8(amqp.Persistent), ch.msg.DeliveryMode)
	assert.Equal(t, "o-1", ch.msg.MessageId)

	var got Event
	require.NoError(t, json.Unmarshal(ch.msg.Body, &got))
	assert.Equal(t, "u-1", got.UserID)

	assert.NoError(t, pub.Close())
	assert.True(t, ch.closed)
}

func TestRabbitPublisher_PublishError(t *testing.T) {
	ch := &fakeChannel{err: amqp.ErrClosed}
	pub := &rabbitPublisher{ch: ch}

	assert.ErrorIs(t, pub.Publish(context.Background(), sampleEvent()), amqp.ErrClosed)
}

func TestNewPublisher(t *testing.T) {
	p, err := NewPublisher(&config.Config{EventBroker: "none"})
	require.NoError(t, err)
	assert.NoError(t, p.Publish(context.Background(), sampleEvent()))
	assert.NoError(t, p.Close())

	_, err = NewPublisher(&config.Config{EventBroker: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestHeaderCarrier(t *testing.T) {
	c := make(headerCarrier, 0)
	c.Set("traceparent", "00-abc-def-01")

	assert.Equal(t, "00-abc-def-01", c.Get("traceparent"))
	assert.Equal(t, "", c.Get("missing"))
	assert.Equal(t, []string{"traceparent"}, c.Keys())
}
