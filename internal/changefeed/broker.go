// Package changefeed turns row changes on the requests table into in-process
// events that views and the notification pipeline observe.
package changefeed

import (
	"sync"

	"quickclean/internal/models"

	"go.uber.org/zap"
)

// subscriberBuffer is how many changes a slow subscriber may lag behind
// before further changes are dropped for it.
const subscriberBuffer = 64

// Filter selects the changes a subscriber receives. A nil filter receives all.
type Filter func(models.RequestChange) bool

type subscriber struct {
	ch     chan models.RequestChange
	filter Filter

	// Queued subscribers only. Publish appends to pending and pump hands
	// the backlog to ch in order.
	mu      sync.Mutex
	pending []models.RequestChange
	wake    chan struct{}
	done    chan struct{}
}

func (s *subscriber) queued() bool { return s.wake != nil }

func (s *subscriber) enqueue(change models.RequestChange) {
	s.mu.Lock()
	s.pending = append(s.pending, change)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) pump() {
	defer close(s.ch)
	for {
		s.mu.Lock()
		batch := s.pending
		s.pending = nil
		s.mu.Unlock()

		if len(batch) == 0 {
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		for _, c := range batch {
			select {
			case s.ch <- c:
			case <-s.done:
				return
			}
		}
	}
}

// stop ends delivery. It is called once, after s leaves the broker.
func (s *subscriber) stop() {
	if s.queued() {
		close(s.done)
		return
	}
	close(s.ch)
}

// Broker fans changes out to registered subscribers.
type Broker struct {
	mu     sync.RWMutex
	subs   map[uint64]*subscriber
	nextID uint64
	closed bool
	log    *zap.Logger
}

func NewBroker(log *zap.Logger) *Broker {
	return &Broker{subs: make(map[uint64]*subscriber), log: log}
}

// Subscribe registers an observer. The returned func unregisters it and
// closes the channel; calling it more than once is safe. A subscriber more
// than subscriberBuffer changes behind loses the newer ones.
func (b *Broker) Subscribe(filter Filter) (<-chan models.RequestChange, func()) {
	return b.add(&subscriber{ch: make(chan models.RequestChange, subscriberBuffer), filter: filter})
}

// SubscribeQueued registers an observer that never loses a change: the
// backlog grows for as long as the reader lags. Only consumers that always
// make progress should use it.
func (b *Broker) SubscribeQueued(filter Filter) (<-chan models.RequestChange, func()) {
	sub := &subscriber{
		ch:     make(chan models.RequestChange),
		filter: filter,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go sub.pump()
	return b.add(sub)
}

func (b *Broker) add(sub *subscriber) (<-chan models.RequestChange, func()) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.stop()
		return sub.ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				sub.stop()
			}
		})
	}
}

// Publish delivers a change to every matching subscriber without blocking.
func (b *Broker) Publish(change models.RequestChange) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, sub := range b.subs {
		if sub.filter != nil && !sub.filter(change) {
			continue
		}
		if sub.queued() {
			sub.enqueue(change)
			continue
		}
		select {
		case sub.ch <- change:
		default:
			b.log.Warn("changefeed subscriber lagging, change dropped",
				zap.Uint64("subscriber", id), zap.String("request_id", change.ID))
		}
	}
}

// Subscribers reports the number of registered observers.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close unregisters every subscriber. Later Subscribe calls get a closed channel.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		sub.stop()
	}
}

// ForSession scopes the feed to what a session may see: admins everything,
// workers the open queue and their own jobs, customers their own requests.
func ForSession(s models.Session) Filter {
	switch s.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleWorker:
		return func(c models.RequestChange) bool {
			if c.Status == models.StatusPending || c.OldStatus == models.StatusPending {
				return true
			}
			return isID(c.WorkerID, s.UserID) || isID(c.OldWorkerID, s.UserID)
		}
	}
	return func(c models.RequestChange) bool { return c.UserID == s.UserID }
}

func isID(p *string, id string) bool {
	return p != nil && *p == id
}
