package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"quickclean/internal/changefeed"
	"quickclean/internal/models"
	"quickclean/pkg/eventbus"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Publisher hands a classified event to whatever delivers notifications.
type Publisher interface {
	Publish(ctx context.Context, ev models.RequestEvent) error
}

// ReconcileWindow bounds how far back Reconcile looks for changes that
// never produced a notification.
const ReconcileWindow = 24 * time.Hour

// MissedEvents finds events whose notification was never logged.
type MissedEvents interface {
	Missed(ctx context.Context, since time.Time) ([]models.RequestEvent, error)
}

// Dispatcher observes the change feed and publishes notification events.
type Dispatcher struct {
	broker    *changefeed.Broker
	publisher Publisher
	missed    MissedEvents
	log       *zap.Logger
}

func NewDispatcher(broker *changefeed.Broker, publisher Publisher, missed MissedEvents, log *zap.Logger) *Dispatcher {
	return &Dispatcher{broker: broker, publisher: publisher, missed: missed, log: log}
}

// Run consumes changes until ctx is cancelled or the broker closes. Its
// subscription is queued, so a slow publisher delays events but never
// loses them.
func (d *Dispatcher) Run(ctx context.Context) error {
	changes, unsubscribe := d.broker.SubscribeQueued(func(c models.RequestChange) bool { return c.Op == "UPDATE" })
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			d.dispatch(ctx, change)
		}
	}
}

// Reconcile republishes events the feed never delivered, such as changes
// committed while the listener was reconnecting. The notifier drops
// events it has already logged, so overlap with the live feed is harmless.
func (d *Dispatcher) Reconcile(ctx context.Context) error {
	events, err := d.missed.Missed(ctx, time.Now().Add(-ReconcileWindow))
	if err != nil {
		return fmt.Errorf("notification.Reconcile: %w", err)
	}
	for _, ev := range events {
		d.publish(ctx, ev)
	}
	if len(events) > 0 {
		d.log.Info("notification events reconciled", zap.Int("count", len(events)))
	}
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, change models.RequestChange) {
	for _, typ := range changefeed.Classify(change) {
		ev := models.RequestEvent{
			Type:       typ,
			RequestID:  change.ID,
			UserID:     change.UserID,
			OccurredAt: change.At,
		}
		if change.WorkerID != nil {
			ev.WorkerID = *change.WorkerID
		}
		if ev.OccurredAt.IsZero() {
			ev.OccurredAt = time.Now().UTC()
		}
		d.publish(ctx, ev)
	}
}

func (d *Dispatcher) publish(ctx context.Context, ev models.RequestEvent) {
	if err := d.publisher.Publish(ctx, ev); err != nil {
		d.log.Error("notification event not published",
			zap.String("request_id", ev.RequestID),
			zap.String("event", string(ev.Type)),
			zap.Error(err))
	}
}

// BusPublisher serializes events onto the message bus.
type BusPublisher struct {
	bus *eventbus.Bus
}

func NewBusPublisher(bus *eventbus.Bus) *BusPublisher {
	return &BusPublisher{bus: bus}
}

func (p *BusPublisher) Publish(ctx context.Context, ev models.RequestEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.bus.Publish(ctx, ev.RequestID+":"+string(ev.Type), body)
}

// Consumer is the receiving side of the message bus.
type Consumer interface {
	Consume(ctx context.Context, handle eventbus.Handler) error
}

// consumeBackoff paces reconnects after the bus drops the consumer.
var consumeBackoff = func() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// ConsumeEvents feeds bus messages to the notifier until ctx is cancelled.
// A lost broker connection is retried with backoff rather than returned, so
// an outage in the bus never takes the server down.
func ConsumeEvents(ctx context.Context, bus Consumer, n *Notifier) error {
	handle := func(ctx context.Context, body []byte) error {
		var ev models.RequestEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			n.log.Warn("malformed notification event dropped", zap.Error(err))
			return nil
		}
		if err := n.Handle(ctx, ev); err != nil {
			return fmt.Errorf("notification.ConsumeEvents: %w", err)
		}
		return nil
	}

	bo := backoff.WithContext(consumeBackoff(), ctx)
	for {
		err := bus.Consume(ctx, handle)
		if ctx.Err() != nil || errors.Is(err, eventbus.ErrClosed) {
			return nil
		}
		wait := bo.NextBackOff()
		n.log.Error("notification consumer disconnected", zap.Error(err), zap.Duration("retry_in", wait))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}
