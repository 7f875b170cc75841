package models

import "time"

// EventType names a request transition other parts of the system react to.
type EventType string

const (
	EventRequestCreated   EventType = "REQUEST_CREATED"
	EventWorkerAssigned   EventType = "WORKER_ASSIGNED"
	EventRequestCompleted EventType = "REQUEST_COMPLETED"
)

// Channel is how a notification reached the customer.
type Channel string

const (
	ChannelSMS   Channel = "SMS"
	ChannelEmail Channel = "EMAIL"
)

// Notification is the log row written once per notified transition.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	RequestID string    `json:"request_id"`
	Event     EventType `json:"event"`
	Type      Channel   `json:"type"`
	Message   string    `json:"message"`
	SentAt    time.Time `json:"sent_at"`
}

// RequestChange is one row change on the requests table as published by the
// database trigger. Old* fields are empty for inserts.
type RequestChange struct {
	Op          string        `json:"op"`
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	WorkerID    *string       `json:"worker_id"`
	OldWorkerID *string       `json:"old_worker_id"`
	Status      RequestStatus `json:"status"`
	OldStatus   RequestStatus `json:"old_status"`
	At          time.Time     `json:"at"`
}

// RequestEvent is a classified change handed to the notification pipeline.
type RequestEvent struct {
	Type       EventType `json:"type"`
	RequestID  string    `json:"request_id"`
	UserID     string    `json:"user_id"`
	WorkerID   string    `json:"worker_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
