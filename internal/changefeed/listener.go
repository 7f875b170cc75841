package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"quickclean/internal/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Channel is the NOTIFY channel the requests trigger publishes on.
const Channel = "request_changes"

// Listener holds one pooled connection in LISTEN mode and forwards decoded
// notifications to the broker.
type Listener struct {
	pool   *pgxpool.Pool
	broker *Broker
	hooks  []func(context.Context)
	log    *zap.Logger
}

func NewListener(pool *pgxpool.Pool, broker *Broker, log *zap.Logger) *Listener {
	return &Listener{pool: pool, broker: broker, log: log}
}

// OnConnect registers fn to run each time LISTEN is (re)established. Changes
// committed while the listener was down are never notified, so hooks are
// where callers catch up from the table. Hooks run on their own goroutine.
// Register them before Run.
func (l *Listener) OnConnect(fn func(ctx context.Context)) {
	l.hooks = append(l.hooks, fn)
}

func (l *Listener) connected(ctx context.Context) {
	for _, fn := range l.hooks {
		go fn(ctx)
	}
}

// Run listens until ctx is cancelled, reconnecting with backoff when the
// connection drops.
func (l *Listener) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0
	bo := backoff.WithContext(b, ctx)

	for {
		err := l.listen(ctx, bo.Reset)
		if ctx.Err() != nil {
			return nil
		}
		wait := bo.NextBackOff()
		l.log.Error("changefeed listener disconnected", zap.Error(err), zap.Duration("retry_in", wait))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (l *Listener) listen(ctx context.Context, resetBackoff func()) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("changefeed: acquire: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		return fmt.Errorf("changefeed: listen: %w", err)
	}
	// The connection goes back to the pool, so it must not keep listening.
	defer func() {
		unlistenCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(unlistenCtx, "UNLISTEN "+Channel); err != nil {
			conn.Conn().Close(unlistenCtx)
		}
	}()
	resetBackoff()
	l.connected(ctx)
	l.log.Info("changefeed listening", zap.String("channel", Channel))

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("changefeed: wait: %w", err)
		}
		change, err := Decode([]byte(n.Payload))
		if err != nil {
			l.log.Warn("changefeed payload rejected", zap.Error(err), zap.String("payload", n.Payload))
			continue
		}
		l.broker.Publish(change)
	}
}

// Decode parses a trigger payload.
func Decode(payload []byte) (models.RequestChange, error) {
	var c models.RequestChange
	if err := json.Unmarshal(payload, &c); err != nil {
		return c, fmt.Errorf("changefeed: decode: %w", err)
	}
	if c.ID == "" || (c.Op != "INSERT" && c.Op != "UPDATE") {
		return c, fmt.Errorf("changefeed: decode: incomplete change %q", payload)
	}
	return c, nil
}
