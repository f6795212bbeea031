// Package events publishes domain events to RabbitMQ after a transaction
// commits. Each event goes to a durable queue named after its routing key.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cx-tal-miterani/flight-ticketing/internal/logger"
)

// Publisher sends events to a RabbitMQ broker. A nil *Publisher drops
// events silently.
type Publisher struct {
	url string
	log *logger.Logger
}

// NewPublisher returns nil when url is empty
func NewPublisher(url string, log *logger.Logger) *Publisher {
	if url == "" {
		return nil
	}
	return &Publisher{url: url, log: log.WithComponent("events")}
}

// dialTimeout bounds the TCP dial and AMQP handshake when ctx has no
// earlier deadline
const dialTimeout = 5 * time.Second

// Publish sends event under routingKey. Messages are persistent. The dial,
// handshake and publish all give up once ctx is done.
func (p *Publisher) Publish(ctx context.Context, routingKey string, event any) error {
	if p == nil {
		return nil
	}

	msg, err := newPublishing(event, time.Now())
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("rabbitmq: publish to %s: %w", routingKey, err)
	}

	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(handshakeTimeout(ctx)),
	})
	if err != nil {
		return fmt.Errorf("rabbitmq: dial failed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	done := make(chan error, 1)
	go func() { done <- publishOn(ctx, conn, routingKey, msg) }()

	select {
	case err := <-done:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		// closing the connection unblocks the pending channel call
		_ = conn.Close()
		return fmt.Errorf("rabbitmq: publish to %s: %w", routingKey, ctx.Err())
	}

	p.log.DebugContext(ctx, "event published", "routing_key", routingKey)
	return nil
}

func publishOn(ctx context.Context, conn *amqp.Connection, routingKey string, msg amqp.Publishing) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq: channel open failed: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		routingKey, // name
		true,       // durable
		false,      // autoDelete
		false,      // exclusive
		false,      // noWait
		nil,        // args
	); err != nil {
		return fmt.Errorf("rabbitmq: queue declare failed: %w", err)
	}

	if err := ch.PublishWithContext(ctx,
		"",         // default exchange
		routingKey, // routing key = queue name
		false,      // mandatory
		false,      // immediate
		msg,
	); err != nil {
		return fmt.Errorf("rabbitmq: publish failed: %w", err)
	}
	return nil
}

// handshakeTimeout is dialTimeout or the time left on ctx, whichever is
// shorter
func handshakeTimeout(ctx context.Context) time.Duration {
	timeout := dialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout < time.Millisecond {
		timeout = time.Millisecond
	}
	return timeout
}

func newPublishing(event any, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("rabbitmq: marshal event failed: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    now.UTC(),
		Body:         body,
	}, nil
}
