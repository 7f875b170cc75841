// Package eventbus is a thin RabbitMQ work-queue wrapper: durable queue,
// persistent messages, manual acknowledgement.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrClosed is returned once Close has been called.
var ErrClosed = errors.New("eventbus: closed")

// ErrDisconnected is returned by Consume when the broker connection or
// channel goes away. The next Publish or Consume redials.
var ErrDisconnected = errors.New("eventbus: disconnected")

// Handler processes one message body. Returning an error requeues the message
// once; a message that fails again is dropped.
type Handler func(ctx context.Context, body []byte) error

type Bus struct {
	url   string
	queue string

	mu     sync.Mutex
	conn   *amqp.Connection
	pub    *amqp.Channel
	closed bool
}

// Dial connects and declares the durable queue.
func Dial(url, queue string) (*Bus, error) {
	b := &Bus{url: url, queue: queue}
	if err := b.connect(); err != nil {
		return nil, err
	}
	return b, nil
}

// connect replaces the connection and publish channel. Callers hold mu
// except during Dial.
func (b *Bus) connect() error {
	if b.conn != nil && !b.conn.IsClosed() {
		_ = b.conn.Close()
	}
	conn, err := amqp.Dial(b.url)
	if err != nil {
		return fmt.Errorf("eventbus: failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("eventbus: failed to open a channel: %w", err)
	}
	if _, err := ch.QueueDeclare(b.queue, true, false, false, false, nil); err != nil {
		conn.Close()
		return fmt.Errorf("eventbus: failed to declare queue %s: %w", b.queue, err)
	}
	b.conn, b.pub = conn, ch
	return nil
}

// live returns a usable connection, redialing if the broker dropped it.
// Callers hold mu.
func (b *Bus) live() error {
	if b.closed {
		return ErrClosed
	}
	if b.conn == nil || b.conn.IsClosed() || b.pub == nil || b.pub.IsClosed() {
		return b.connect()
	}
	return nil
}

// Publish sends a persistent JSON message. messageID travels as the AMQP
// message id so consumers can log and dedupe by it.
func (b *Bus) Publish(ctx context.Context, messageID string, body []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.live(); err != nil {
		return err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Body:         body,
	}
	err := b.pub.PublishWithContext(ctx, "", b.queue, false, false, msg)
	if err != nil && b.pub.IsClosed() {
		// The channel died under us; one retry on a fresh connection.
		if err = b.connect(); err == nil {
			err = b.pub.PublishWithContext(ctx, "", b.queue, false, false, msg)
		}
	}
	if err != nil {
		return fmt.Errorf("eventbus: publish %s: %w", messageID, err)
	}
	return nil
}

func (b *Bus) consumeChannel() (*amqp.Channel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.live(); err != nil {
		return nil, err
	}
	ch, err := b.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("eventbus: failed to open a channel: %w", err)
	}
	return ch, nil
}

// Consume delivers messages to handle until ctx is cancelled, returning nil,
// or the broker goes away, returning an error wrapping ErrDisconnected.
func (b *Bus) Consume(ctx context.Context, handle Handler) error {
	ch, err := b.consumeChannel()
	if err != nil {
		return err
	}
	defer ch.Close()
	if err := ch.Qos(8, 0, false); err != nil {
		return fmt.Errorf("eventbus: qos: %w", err)
	}
	closed := ch.NotifyClose(make(chan *amqp.Error, 1))

	msgs, err := ch.Consume(
		b.queue, // queue
		"",      // consumer
		false,   // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return fmt.Errorf("eventbus: failed to register a consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case amqpErr := <-closed:
			return fmt.Errorf("%w: %v", ErrDisconnected, amqpErr)
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("%w: delivery channel closed", ErrDisconnected)
			}
			if err := handle(ctx, d.Body); err != nil {
				_ = d.Nack(false, !d.Redelivered)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if b.conn == nil || b.conn.IsClosed() {
		return nil
	}
	_ = b.pub.Close()
	return b.conn.Close()
}
