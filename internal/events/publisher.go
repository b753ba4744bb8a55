package events

import (
	"fmt"

	"bookstore-be/internal/config"
	"bookstore-be/internal/logger"

	"go.uber.org/zap"
)

// NewPublisher picks the broker named by EVENT_BROKER.
func NewPublisher(cfg *config.Config) (Publisher, error) {
	switch cfg.EventBroker {
	case "kafka":
		producer, err := NewKafkaProducer(cfg.KafkaBrokers)
		if err != nil {
			return nil, err
		}
		logger.L().Info("Kafka producer initialized",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.EventTopic),
		)
		return NewKafkaPublisher(producer, cfg.EventTopic), nil
	case "rabbitmq":
		conn, ch, err := DialRabbitMQ(cfg.AMQPURL)
		if err != nil {
			return nil, err
		}
		logger.L().Info("RabbitMQ publisher initialized", zap.String("exchange", ExchangeName))
		return NewRabbitPublisher(conn, ch), nil
	case "", "none":
		return NewNoop(), nil
	default:
		return nil, fmt.Errorf("unknown event broker %q", cfg.EventBroker)
	}
}
