package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"quickclean/internal/changefeed"
	"quickclean/internal/models"
	"quickclean/pkg/email"
	"quickclean/pkg/eventbus"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

type fakeRepo struct {
	mu      sync.Mutex
	records map[string]*models.Notification
	missed  []models.RequestEvent
	since   time.Time
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[string]*models.Notification)}
}

func (f *fakeRepo) Record(ctx context.Context, n *models.Notification) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := n.RequestID + "/" + string(n.Event)
	if _, ok := f.records[key]; ok {
		return false, nil
	}
	cp := *n
	f.records[key] = &cp
	return true, nil
}

func (f *fakeRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*models.Notification, error) {
	return nil, nil
}

func (f *fakeRepo) Missed(ctx context.Context, since time.Time) ([]models.RequestEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.since = since
	var out []models.RequestEvent
	for _, ev := range f.missed {
		if _, ok := f.records[ev.RequestID+"/"+string(ev.Type)]; !ok {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeRepo) Recipient(ctx context.Context, requestID string) (*Recipient, error) {
	return &Recipient{UserID: "u1", Name: "Asha", Email: "asha@example.com", Phone: "+919876543210"}, nil
}

type fakeSMS struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeSMS) Send(ctx context.Context, phone, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, phone+"|"+text)
	return nil
}

func (f *fakeSMS) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeMail struct {
	mu   sync.Mutex
	sent []email.Message
}

func (f *fakeMail) Send(ctx context.Context, msg email.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func TestNotifierSendsOncePerEvent(t *testing.T) {
	repo, smsS, mail := newFakeRepo(), &fakeSMS{}, &fakeMail{}
	n := NewNotifier(repo, smsS, mail, "https://quickclean.example", zap.NewNop())
	ctx := context.Background()

	assigned := models.RequestEvent{Type: models.EventWorkerAssigned, RequestID: "r1", UserID: "u1", WorkerID: "w1"}
	for i := 0; i < 3; i++ {
		if err := n.Handle(ctx, assigned); err != nil {
			t.Fatalf("Handle error: %v", err)
		}
	}
	if len(smsS.sent) != 1 {
		t.Fatalf("sms sent %d times; want 1", len(smsS.sent))
	}
	if !strings.HasPrefix(smsS.sent[0], "+919876543210|") || !strings.Contains(smsS.sent[0], "w1") {
		t.Errorf("sms = %q", smsS.sent[0])
	}

	completed := models.RequestEvent{Type: models.EventRequestCompleted, RequestID: "r1", UserID: "u1", WorkerID: "w1"}
	if err := n.Handle(ctx, completed); err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if len(mail.sent) != 1 || mail.sent[0].To != "asha@example.com" {
		t.Fatalf("mail = %+v; want one mail to asha", mail.sent)
	}
	if !strings.Contains(mail.sent[0].Text, "https://quickclean.example/feedback?id=r1") {
		t.Errorf("mail text = %q", mail.sent[0].Text)
	}

	rec := repo.records["r1/"+string(models.EventRequestCompleted)]
	if rec == nil || rec.Type != models.ChannelEmail {
		t.Errorf("completed record = %+v; want EMAIL", rec)
	}
}

func TestNotifierDeliveryFailureIsNotFatal(t *testing.T) {
	repo := newFakeRepo()
	n := NewNotifier(repo, &fakeSMS{err: errors.New("throttled")}, nil, "", zap.NewNop())

	err := n.Handle(context.Background(), models.RequestEvent{Type: models.EventWorkerAssigned, RequestID: "r1", UserID: "u1"})
	if err != nil {
		t.Fatalf("Handle err = %v; want nil", err)
	}
	if len(repo.records) != 1 {
		t.Errorf("records = %d; want the attempt logged once", len(repo.records))
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.RequestEvent
	done   chan struct{}
	want   int
}

func (p *recordingPublisher) Publish(ctx context.Context, ev models.RequestEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	if len(p.events) == p.want {
		close(p.done)
	}
	return nil
}

func TestDispatcherClassifiesFeed(t *testing.T) {
	broker := changefeed.NewBroker(zap.NewNop())
	pub := &recordingPublisher{done: make(chan struct{}), want: 2}
	d := NewDispatcher(broker, pub, newFakeRepo(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopped := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(stopped)
	}()
	for broker.Subscribers() == 0 {
		time.Sleep(time.Millisecond)
	}

	w := "w1"
	broker.Publish(models.RequestChange{Op: "INSERT", ID: "r1", UserID: "u1", Status: models.StatusPending})
	broker.Publish(models.RequestChange{Op: "UPDATE", ID: "r1", UserID: "u1", WorkerID: &w,
		Status: models.StatusAccepted, OldStatus: models.StatusPending})
	broker.Publish(models.RequestChange{Op: "UPDATE", ID: "r1", UserID: "u1", WorkerID: &w, OldWorkerID: &w,
		Status: models.StatusInProgress, OldStatus: models.StatusAccepted})
	broker.Publish(models.RequestChange{Op: "UPDATE", ID: "r1", UserID: "u1", WorkerID: &w, OldWorkerID: &w,
		Status: models.StatusCompleted, OldStatus: models.StatusInProgress})

	select {
	case <-pub.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for events")
	}
	cancel()
	<-stopped

	if pub.events[0].Type != models.EventWorkerAssigned || pub.events[0].WorkerID != "w1" {
		t.Errorf("events[0] = %+v; want WORKER_ASSIGNED by w1", pub.events[0])
	}
	if pub.events[1].Type != models.EventRequestCompleted {
		t.Errorf("events[1] = %+v; want REQUEST_COMPLETED", pub.events[1])
	}
	if broker.Subscribers() != 0 {
		t.Errorf("dispatcher left %d subscribers registered", broker.Subscribers())
	}
}

// slowPublisher hands events to the notifier after a fixed delay.
type slowPublisher struct {
	next  Publisher
	delay time.Duration
}

func (p slowPublisher) Publish(ctx context.Context, ev models.RequestEvent) error {
	time.Sleep(p.delay)
	return p.next.Publish(ctx, ev)
}

func waitForSMS(t *testing.T, s *fakeSMS, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for s.count() < want {
		if time.Now().After(deadline) {
			t.Fatalf("sms sent %d; want %d", s.count(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDispatcherBurstNotifiesEachAssignmentOnce(t *testing.T) {
	repo, smsS := newFakeRepo(), &fakeSMS{}
	n := NewNotifier(repo, smsS, nil, "", zap.NewNop())
	broker := changefeed.NewBroker(zap.NewNop())
	d := NewDispatcher(broker, slowPublisher{next: n, delay: 2 * time.Millisecond}, repo, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopped := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(stopped)
	}()
	for broker.Subscribers() == 0 {
		time.Sleep(time.Millisecond)
	}

	const burst = 200
	w := "w1"
	for i := 0; i < burst; i++ {
		broker.Publish(models.RequestChange{Op: "UPDATE", ID: fmt.Sprintf("r%d", i), UserID: "u1",
			WorkerID: &w, Status: models.StatusAccepted, OldStatus: models.StatusPending})
	}
	waitForSMS(t, smsS, burst)

	// A replay of the same changes must not notify anyone twice.
	for i := 0; i < 10; i++ {
		broker.Publish(models.RequestChange{Op: "UPDATE", ID: fmt.Sprintf("r%d", i), UserID: "u1",
			WorkerID: &w, Status: models.StatusAccepted, OldStatus: models.StatusPending})
	}
	time.Sleep(100 * time.Millisecond)
	cancel()
	<-stopped

	if got := smsS.count(); got != burst {
		t.Errorf("sms sent %d; want exactly %d", got, burst)
	}
	if len(repo.records) != burst {
		t.Errorf("records = %d; want %d", len(repo.records), burst)
	}
}

func TestReconcilePublishesMissedEvents(t *testing.T) {
	repo, smsS, mail := newFakeRepo(), &fakeSMS{}, &fakeMail{}
	n := NewNotifier(repo, smsS, mail, "", zap.NewNop())
	ctx := context.Background()

	// r1 was notified before the outage; r2 and r3 changed while the
	// listener was down and never reached the feed.
	seen := models.RequestEvent{Type: models.EventWorkerAssigned, RequestID: "r1", UserID: "u1", WorkerID: "w1"}
	if err := n.Handle(ctx, seen); err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	repo.missed = []models.RequestEvent{
		seen,
		{Type: models.EventWorkerAssigned, RequestID: "r2", UserID: "u1", WorkerID: "w1"},
		{Type: models.EventRequestCompleted, RequestID: "r3", UserID: "u1", WorkerID: "w1"},
	}

	d := NewDispatcher(changefeed.NewBroker(zap.NewNop()), n, repo, zap.NewNop())
	if err := d.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile error: %v", err)
	}
	if err := d.Reconcile(ctx); err != nil {
		t.Fatalf("second Reconcile error: %v", err)
	}

	if got := smsS.count(); got != 2 {
		t.Errorf("sms sent %d; want 2 (r1 once, r2 once)", got)
	}
	if len(mail.sent) != 1 {
		t.Errorf("mail sent %d; want 1 for r3", len(mail.sent))
	}
	if age := time.Since(repo.since); age < ReconcileWindow-time.Minute || age > ReconcileWindow+time.Minute {
		t.Errorf("reconcile looked back %v; want about %v", age, ReconcileWindow)
	}
}

// flakyConsumer drops the connection a few times before serving.
type flakyConsumer struct {
	mu       sync.Mutex
	failures int
	calls    int
	serving  chan struct{}
}

func (f *flakyConsumer) Consume(ctx context.Context, handle eventbus.Handler) error {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.failures
	f.mu.Unlock()
	if fail {
		return fmt.Errorf("%w: connection reset", eventbus.ErrDisconnected)
	}
	if err := handle(ctx, []byte(`{"type":"WORKER_ASSIGNED","request_id":"r1","user_id":"u1","worker_id":"w1"}`)); err != nil {
		return err
	}
	if err := handle(ctx, []byte(`not json`)); err != nil {
		return err
	}
	close(f.serving)
	<-ctx.Done()
	return nil
}

func TestConsumeEventsSurvivesBusOutage(t *testing.T) {
	orig := consumeBackoff
	consumeBackoff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }
	t.Cleanup(func() { consumeBackoff = orig })

	smsS := &fakeSMS{}
	n := NewNotifier(newFakeRepo(), smsS, nil, "", zap.NewNop())
	bus := &flakyConsumer{failures: 2, serving: make(chan struct{})}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	result := make(chan error, 1)
	go func() { result <- ConsumeEvents(ctx, bus, n) }()

	select {
	case <-bus.serving:
	case err := <-result:
		t.Fatalf("ConsumeEvents returned early: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer never reconnected")
	}
	if smsS.count() != 1 {
		t.Errorf("sms sent %d; want 1", smsS.count())
	}

	cancel()
	select {
	case err := <-result:
		if err != nil {
			t.Errorf("ConsumeEvents err = %v; want nil after cancel", err)
		}
	case <-time.After(time.Second):
		t.Fatal("ConsumeEvents did not stop")
	}
	if bus.calls != 3 {
		t.Errorf("Consume called %d times; want 3", bus.calls)
	}
}
