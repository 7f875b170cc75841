package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quickclean/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Recipient is who a request's notifications go to.
type Recipient struct {
	UserID string
	Name   string
	Email  string
	Phone  string
}

type RepositoryInterface interface {
	// Record inserts the log row unless one already exists for the request
	// and event. It reports whether this call created it.
	Record(ctx context.Context, n *models.Notification) (bool, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.Notification, error)
	Recipient(ctx context.Context, requestID string) (*Recipient, error)
	// Missed lists events for requests changed since the given time that
	// have no log row yet, oldest first.
	Missed(ctx context.Context, since time.Time) ([]models.RequestEvent, error)
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) RepositoryInterface {
	return &Repository{db: db}
}

func (r *Repository) Record(ctx context.Context, n *models.Notification) (bool, error) {
	query := `
		INSERT INTO notifications (user_id, request_id, event, type, message)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (request_id, event) DO NOTHING
		RETURNING id, sent_at`
	err := r.db.QueryRow(ctx, query, n.UserID, n.RequestID, string(n.Event), string(n.Type), n.Message).
		Scan(&n.ID, &n.SentAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("repository.RecordNotification: %w", err)
	}
	return true, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.Notification, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, request_id, event, type, message, sent_at
		FROM notifications WHERE user_id = $1
		ORDER BY sent_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("repository.ListNotifications: %w", err)
	}
	defer rows.Close()

	out := []*models.Notification{}
	for rows.Next() {
		var n models.Notification
		var event, typ string
		if err := rows.Scan(&n.ID, &n.UserID, &n.RequestID, &event, &typ, &n.Message, &n.SentAt); err != nil {
			return nil, fmt.Errorf("repository.ListNotifications: %w", err)
		}
		n.Event = models.EventType(event)
		n.Type = models.Channel(typ)
		out = append(out, &n)
	}
	return out, rows.Err()
}

// Recipient uses the contact number given on the request rather than the
// profile phone, since that is the number the customer asked to be reached on.
func (r *Repository) Recipient(ctx context.Context, requestID string) (*Recipient, error) {
	var rc Recipient
	err := r.db.QueryRow(ctx, `
		SELECT p.id, p.name, p.email, r.mobile_contact
		FROM requests r JOIN profiles p ON p.id = r.user_id
		WHERE r.id = $1`, requestID).Scan(&rc.UserID, &rc.Name, &rc.Email, &rc.Phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository.Recipient: %w", err)
	}
	return &rc, nil
}

func (r *Repository) Missed(ctx context.Context, since time.Time) ([]models.RequestEvent, error) {
	rows, err := r.db.Query(ctx, `
		SELECT r.id, r.user_id, r.worker_id, 'WORKER_ASSIGNED', r.updated_at
		FROM requests r
		WHERE r.worker_id IS NOT NULL AND r.updated_at >= $1
		  AND NOT EXISTS (SELECT 1 FROM notifications n
		                  WHERE n.request_id = r.id AND n.event = 'WORKER_ASSIGNED')
		UNION ALL
		SELECT r.id, r.user_id, r.worker_id, 'REQUEST_COMPLETED', r.updated_at
		FROM requests r
		WHERE r.status = 'Completed' AND r.updated_at >= $1
		  AND NOT EXISTS (SELECT 1 FROM notifications n
		                  WHERE n.request_id = r.id AND n.event = 'REQUEST_COMPLETED')
		ORDER BY 5, 4 DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("repository.Missed: %w", err)
	}
	defer rows.Close()

	var out []models.RequestEvent
	for rows.Next() {
		var ev models.RequestEvent
		var workerID *string
		var typ string
		if err := rows.Scan(&ev.RequestID, &ev.UserID, &workerID, &typ, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("repository.Missed: %w", err)
		}
		ev.Type = models.EventType(typ)
		if workerID != nil {
			ev.WorkerID = *workerID
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
