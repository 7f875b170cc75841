package request

import (
	"context"
	"errors"
	"fmt"

	"quickclean/internal/models"
	"quickclean/pkg/money"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// errNotApplied means a conditional transition matched no row. The service
// re-reads the row to tell the caller why.
var errNotApplied = errors.New("transition not applied")

// Completion is the evidence persisted when a worker finishes a job.
type Completion struct {
	AfterImageURL         string
	CompletionTimeMinutes int32
	FinalEarning          money.Amount
}

// RepositoryInterface defines the contract for the request store. Every
// transition is a single conditional write; a failed guard leaves the row
// untouched and returns errNotApplied.
type RepositoryInterface interface {
	Create(ctx context.Context, req models.NewRequest) (*models.Request, error)
	FindByID(ctx context.Context, id string) (*models.Request, error)
	FindViewByID(ctx context.Context, id string) (*models.RequestView, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Request, error)
	ListOpen(ctx context.Context) ([]*models.Request, error)
	ListByWorker(ctx context.Context, workerID string) ([]*models.Request, error)
	ListAll(ctx context.Context, filter models.AdminRequestFilter) ([]*models.RequestView, int, error)

	Claim(ctx context.Context, id, workerID string) (*models.Request, error)
	Start(ctx context.Context, id, workerID string) (*models.Request, error)
	Complete(ctx context.Context, id, workerID string, c Completion) (*models.Request, error)
	Cancel(ctx context.Context, id string) (*models.Request, error)

	IsWorker(ctx context.Context, profileID string) (bool, error)
	Figures(ctx context.Context) ([]models.RequestFigures, error)
	CountActiveWorkers(ctx context.Context) (int, error)
}

// Repository implements the RepositoryInterface.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new request repository.
func NewRepository(db *pgxpool.Pool) RepositoryInterface {
	return &Repository{db: db}
}

const requestColumns = `r.id, r.user_id, r.worker_id, r.category, r.weight_kg, r.quantity, r.address,
	r.latitude, r.longitude, r.preferred_date, r.preferred_time, r.mobile_contact, r.image_url,
	r.status, r.estimated_price_minor, r.final_earning_minor, r.completion_time_minutes,
	r.after_image_url, r.created_at, r.updated_at`

func (r *Repository) Create(ctx context.Context, req models.NewRequest) (*models.Request, error) {
	var quantity *string
	if req.Quantity != nil {
		q := string(*req.Quantity)
		quantity = &q
	}
	query := `
		INSERT INTO requests AS r (user_id, category, weight_kg, quantity, address, latitude, longitude,
		                           preferred_date, preferred_time, mobile_contact, image_url, status, estimated_price_minor)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 'Pending', $12)
		RETURNING ` + requestColumns

	row := r.db.QueryRow(ctx, query,
		req.UserID, string(req.Category), req.WeightKg, quantity, req.Address, req.Latitude, req.Longitude,
		req.PreferredDate, req.PreferredTime, req.MobileContact, req.ImageURL, int64(req.EstimatedPrice))
	created, err := scanRequest(row)
	if err != nil {
		return nil, fmt.Errorf("repository.CreateRequest: %w", err)
	}
	return created, nil
}

func (r *Repository) FindByID(ctx context.Context, id string) (*models.Request, error) {
	row := r.db.QueryRow(ctx, `SELECT `+requestColumns+` FROM requests r WHERE r.id = $1`, id)
	req, err := scanRequest(row)
	if err != nil {
		return nil, fmt.Errorf("repository.FindByID: %w", err)
	}
	return req, nil
}

func (r *Repository) FindViewByID(ctx context.Context, id string) (*models.RequestView, error) {
	query := `
		SELECT ` + requestColumns + `, p.name, p.email, w.name
		FROM requests r
		JOIN profiles p ON p.id = r.user_id
		LEFT JOIN profiles w ON w.id = r.worker_id
		WHERE r.id = $1`
	view, err := scanRequestView(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("repository.FindViewByID: %w", err)
	}
	return view, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID string) ([]*models.Request, error) {
	return r.list(ctx, "repository.ListByUser",
		`SELECT `+requestColumns+` FROM requests r WHERE r.user_id = $1 ORDER BY r.created_at DESC`, userID)
}

// ListOpen is the shared worker queue: unassigned pending requests, newest first.
func (r *Repository) ListOpen(ctx context.Context) ([]*models.Request, error) {
	return r.list(ctx, "repository.ListOpen",
		`SELECT `+requestColumns+` FROM requests r
		 WHERE r.status = 'Pending' AND r.worker_id IS NULL
		 ORDER BY r.created_at DESC`)
}

func (r *Repository) ListByWorker(ctx context.Context, workerID string) ([]*models.Request, error) {
	return r.list(ctx, "repository.ListByWorker",
		`SELECT `+requestColumns+` FROM requests r WHERE r.worker_id = $1 ORDER BY r.updated_at DESC`, workerID)
}

func (r *Repository) list(ctx context.Context, op, query string, args ...any) ([]*models.Request, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []*models.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// ListAll is the admin table: every request with requester and worker names,
// optionally narrowed by status and a free-text match.
func (r *Repository) ListAll(ctx context.Context, f models.AdminRequestFilter) ([]*models.RequestView, int, error) {
	where := `
		WHERE ($1::text = '' OR r.status = $1::text)
		  AND ($2::text = '' OR p.name ILIKE '%' || $2::text || '%'
		                     OR r.category ILIKE '%' || $2::text || '%'
		                     OR r.address ILIKE '%' || $2::text || '%')`
	from := `
		FROM requests r
		JOIN profiles p ON p.id = r.user_id
		LEFT JOIN profiles w ON w.id = r.worker_id`

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*)`+from+where, string(f.Status), f.Query).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repository.ListAll: count: %w", err)
	}

	offset := (f.Page - 1) * f.Limit
	query := `SELECT ` + requestColumns + `, p.name, p.email, w.name` + from + where + `
		ORDER BY r.created_at DESC
		LIMIT $3 OFFSET $4`
	rows, err := r.db.Query(ctx, query, string(f.Status), f.Query, f.Limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.ListAll: %w", err)
	}
	defer rows.Close()

	views := make([]*models.RequestView, 0, f.Limit)
	for rows.Next() {
		v, err := scanRequestView(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repository.ListAll: %w", err)
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repository.ListAll: %w", err)
	}
	return views, total, nil
}

// claimQuery is the exclusivity guard: of any number of concurrent claims
// exactly one matches. The share lock on the worker's profile makes a
// concurrent demotion wait for the claim, or the claim see the demotion.
const claimQuery = `
	UPDATE requests AS r SET worker_id = $2, status = 'Accepted', updated_at = now()
	WHERE r.id = $1 AND r.status = 'Pending' AND r.worker_id IS NULL
	  AND EXISTS (SELECT 1 FROM profiles WHERE id = $2 AND role = 'worker' FOR SHARE)
	RETURNING ` + requestColumns

// Claim assigns a pending request to a worker.
func (r *Repository) Claim(ctx context.Context, id, workerID string) (*models.Request, error) {
	return r.transition(ctx, "repository.Claim", claimQuery, id, workerID)
}

func (r *Repository) Start(ctx context.Context, id, workerID string) (*models.Request, error) {
	query := `
		UPDATE requests AS r SET status = 'In Progress', updated_at = now()
		WHERE r.id = $1 AND r.worker_id = $2 AND r.status = 'Accepted'
		RETURNING ` + requestColumns
	return r.transition(ctx, "repository.Start", query, id, workerID)
}

func (r *Repository) Complete(ctx context.Context, id, workerID string, c Completion) (*models.Request, error) {
	query := `
		UPDATE requests AS r SET status = 'Completed', final_earning_minor = $3, after_image_url = $4,
		       completion_time_minutes = $5, updated_at = now()
		WHERE r.id = $1 AND r.worker_id = $2 AND r.status = 'In Progress'
		RETURNING ` + requestColumns
	return r.transition(ctx, "repository.Complete", query,
		id, workerID, int64(c.FinalEarning), c.AfterImageURL, c.CompletionTimeMinutes)
}

func (r *Repository) Cancel(ctx context.Context, id string) (*models.Request, error) {
	query := `
		UPDATE requests AS r SET status = 'Cancelled', updated_at = now()
		WHERE r.id = $1 AND r.status = 'Pending' AND r.worker_id IS NULL
		RETURNING ` + requestColumns
	return r.transition(ctx, "repository.Cancel", query, id)
}

func (r *Repository) transition(ctx context.Context, op, query string, args ...any) (*models.Request, error) {
	req, err := scanRequest(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, models.ErrNotFound) {
		return nil, errNotApplied
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return req, nil
}

func (r *Repository) IsWorker(ctx context.Context, profileID string) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM profiles WHERE id = $1 AND role = 'worker')`, profileID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("repository.IsWorker: %w", err)
	}
	return ok, nil
}

// Figures returns the columns the dashboard aggregates are computed from.
func (r *Repository) Figures(ctx context.Context) ([]models.RequestFigures, error) {
	rows, err := r.db.Query(ctx, `SELECT status, estimated_price_minor, final_earning_minor FROM requests`)
	if err != nil {
		return nil, fmt.Errorf("repository.Figures: %w", err)
	}
	defer rows.Close()

	var out []models.RequestFigures
	for rows.Next() {
		var status string
		var est int64
		var final *int64
		if err := rows.Scan(&status, &est, &final); err != nil {
			return nil, fmt.Errorf("repository.Figures: %w", err)
		}
		fig := models.RequestFigures{Status: models.RequestStatus(status), EstimatedPrice: money.Amount(est)}
		if final != nil {
			a := money.Amount(*final)
			fig.FinalEarning = &a
		}
		out = append(out, fig)
	}
	return out, rows.Err()
}

func (r *Repository) CountActiveWorkers(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM profiles WHERE role = 'worker' AND availability_status = 'active'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("repository.CountActiveWorkers: %w", err)
	}
	return n, nil
}

// requestScan holds the raw column values before conversion to domain types.
type requestScan struct {
	req       models.Request
	category  string
	quantity  *string
	status    string
	estimated int64
	final     *int64
}

func (s *requestScan) dest() []any {
	return []any{
		&s.req.ID, &s.req.UserID, &s.req.WorkerID, &s.category, &s.req.WeightKg, &s.quantity,
		&s.req.Address, &s.req.Latitude, &s.req.Longitude, &s.req.PreferredDate, &s.req.PreferredTime,
		&s.req.MobileContact, &s.req.ImageURL, &s.status, &s.estimated, &s.final,
		&s.req.CompletionTimeMinutes, &s.req.AfterImageURL, &s.req.CreatedAt, &s.req.UpdatedAt,
	}
}

func (s *requestScan) finish() *models.Request {
	s.req.Category = models.Category(s.category)
	s.req.Status = models.RequestStatus(s.status)
	s.req.EstimatedPrice = money.Amount(s.estimated)
	if s.quantity != nil {
		q := models.Quantity(*s.quantity)
		s.req.Quantity = &q
	}
	if s.final != nil {
		a := money.Amount(*s.final)
		s.req.FinalEarning = &a
	}
	return &s.req
}

// scanRequest is a helper function to scan a row into a Request model.
func scanRequest(row pgx.Row) (*models.Request, error) {
	var s requestScan
	if err := row.Scan(s.dest()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan request: %w", err)
	}
	return s.finish(), nil
}

func scanRequestView(row pgx.Row) (*models.RequestView, error) {
	var s requestScan
	var v models.RequestView
	dest := append(s.dest(), &v.RequesterName, &v.RequesterEmail, &v.WorkerName)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan request view: %w", err)
	}
	v.Request = *s.finish()
	return &v, nil
}
