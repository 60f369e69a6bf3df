package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher delivers domain events to interested consumers. Publishing is
// best effort: callers fire events after their transaction commits and
// ignore the returned error beyond logging.
type Publisher interface {
	Publish(ctx context.Context, queue string, event any) error
}

// NopPublisher discards every event. Used when RABBITMQ_URL is not set and
// in tests.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }

// AMQPPublisher publishes JSON events to RabbitMQ. It dials per publish so
// a broker restart never leaves the service holding a dead connection; the
// event volume here (a few per finished match) makes that acceptable.
type AMQPPublisher struct {
	url    string
	logger *slog.Logger
}

func NewAMQPPublisher(url string, logger *slog.Logger) *AMQPPublisher {
	return &AMQPPublisher{url: url, logger: logger}
}

// Publish declares the durable queue and sends the event as a persistent
// JSON message on the default exchange. Errors are logged and returned so
// the caller can choose to ignore them.
func (p *AMQPPublisher) Publish(ctx context.Context, queue string, event any) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.logger.Error("rabbitmq: dial failed", slog.Any("error", err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.logger.Error("rabbitmq: channel open failed", slog.Any("error", err))
		return err
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare. Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		p.logger.Error("rabbitmq: queue declare failed", slog.String("queue", queue), slog.Any("error", err))
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("rabbitmq: marshal event failed", slog.Any("error", err))
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx, "", queue, false, false, pub); err != nil {
		p.logger.Error("rabbitmq: publish failed", slog.String("queue", queue), slog.Any("error", err))
		return err
	}

	return nil
}
