package request

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quickclean/internal/models"
	"quickclean/internal/modules/pricing"
	"quickclean/pkg/invoice"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// PriceSource supplies the live price list at creation time.
type PriceSource interface {
	GetConfig(ctx context.Context) (*models.PricingConfig, error)
}

// ServiceInterface is the request lifecycle controller.
type ServiceInterface interface {
	Create(ctx context.Context, s models.Session, req models.CreateRequestRequest) (*models.Request, error)
	Get(ctx context.Context, s models.Session, id string) (*models.Request, error)
	ListMine(ctx context.Context, s models.Session) ([]*models.Request, error)
	Invoice(ctx context.Context, s models.Session, id string) ([]byte, error)

	Queue(ctx context.Context, s models.Session) ([]*models.Request, error)
	Jobs(ctx context.Context, s models.Session) (*models.WorkerJobs, error)
	Accept(ctx context.Context, s models.Session, id string) (*models.Request, error)
	Start(ctx context.Context, s models.Session, id string) (*models.Request, error)
	Complete(ctx context.Context, s models.Session, id string, req models.CompleteRequestRequest) (*models.Request, error)

	Assign(ctx context.Context, s models.Session, id, workerID string) (*models.Request, error)
	Cancel(ctx context.Context, s models.Session, id string) (*models.Request, error)
	AdminList(ctx context.Context, s models.Session, filter models.AdminRequestFilter) ([]*models.RequestView, int, error)
	Stats(ctx context.Context, s models.Session) (*models.Stats, error)
}

type Service struct {
	repo    RepositoryInterface
	pricing PriceSource
	log     *zap.Logger
	backoff func() backoff.BackOff
}

func NewService(repo RepositoryInterface, prices PriceSource, log *zap.Logger) *Service {
	return &Service{
		repo:    repo,
		pricing: prices,
		log:     log,
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 50 * time.Millisecond
			b.MaxElapsedTime = 2 * time.Second
			return backoff.WithMaxRetries(b, 4)
		},
	}
}

func (s *Service) Create(ctx context.Context, sess models.Session, req models.CreateRequestRequest) (*models.Request, error) {
	if !Authorize(sess.Role, ActionCreate) {
		return nil, models.ErrForbidden
	}
	if !req.Category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", models.ErrValidation, req.Category)
	}
	weight, err := pricing.ResolveWeight(req.WeightKg, req.Quantity)
	if err != nil {
		return nil, err
	}
	cfg, err := s.pricing.GetConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.CreateRequest: %w", err)
	}

	created, err := s.repo.Create(ctx, models.NewRequest{
		UserID:         sess.UserID,
		Category:       req.Category,
		WeightKg:       weight,
		Quantity:       req.Quantity,
		Address:        req.Address,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		PreferredDate:  req.PreferredDate,
		PreferredTime:  req.PreferredTime,
		MobileContact:  req.MobileContact,
		ImageURL:       req.ImageURL,
		EstimatedPrice: pricing.Estimate(req.Category, weight, *cfg),
	})
	if err != nil {
		return nil, fmt.Errorf("service.CreateRequest: %w", err)
	}
	s.log.Info("request created",
		zap.String("request_id", created.ID),
		zap.String("user_id", sess.UserID),
		zap.Stringer("estimated_price", created.EstimatedPrice))
	return created, nil
}

// Get returns a request visible to the requester, its worker or an admin.
func (s *Service) Get(ctx context.Context, sess models.Session, id string) (*models.Request, error) {
	if !validID(id) {
		return nil, models.ErrNotFound
	}
	req, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(sess, req) {
		return nil, models.ErrForbidden
	}
	return req, nil
}

func canView(sess models.Session, req *models.Request) bool {
	switch sess.Role {
	case models.RoleAdmin:
		return true
	case models.RoleWorker:
		return req.AssignedTo(sess.UserID) || req.UserID == sess.UserID
	case models.RoleUser:
		return req.UserID == sess.UserID
	}
	return false
}

func (s *Service) ListMine(ctx context.Context, sess models.Session) ([]*models.Request, error) {
	reqs, err := s.repo.ListByUser(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("service.ListMine: %w", err)
	}
	return reqs, nil
}

func (s *Service) Invoice(ctx context.Context, sess models.Session, id string) ([]byte, error) {
	if !validID(id) {
		return nil, models.ErrNotFound
	}
	view, err := s.repo.FindViewByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(sess, &view.Request) {
		return nil, models.ErrForbidden
	}

	data := invoice.Data{
		RequestID:     view.ID,
		IssuedAt:      view.CreatedAt,
		CustomerName:  view.RequesterName,
		CustomerEmail: view.RequesterEmail,
		CustomerPhone: view.MobileContact,
		Category:      string(view.Category),
		Status:        string(view.Status),
		WeightKg:      view.WeightKg,
		Price:         view.EstimatedPrice,
	}
	if view.WorkerID != nil {
		data.WorkerID = *view.WorkerID
	}
	return invoice.Render(data)
}

func (s *Service) Queue(ctx context.Context, sess models.Session) ([]*models.Request, error) {
	if sess.Role != models.RoleWorker {
		return nil, models.ErrForbidden
	}
	reqs, err := s.repo.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.Queue: %w", err)
	}
	return reqs, nil
}

// Jobs splits the worker's own requests into active and completed.
func (s *Service) Jobs(ctx context.Context, sess models.Session) (*models.WorkerJobs, error) {
	if sess.Role != models.RoleWorker {
		return nil, models.ErrForbidden
	}
	reqs, err := s.repo.ListByWorker(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("service.Jobs: %w", err)
	}
	jobs := &models.WorkerJobs{Active: []*models.Request{}, Completed: []*models.Request{}}
	for _, r := range reqs {
		switch r.Status {
		case models.StatusAccepted, models.StatusInProgress:
			jobs.Active = append(jobs.Active, r)
		case models.StatusCompleted:
			jobs.Completed = append(jobs.Completed, r)
		}
	}
	return jobs, nil
}

// Accept claims a pending request for the calling worker.
func (s *Service) Accept(ctx context.Context, sess models.Session, id string) (*models.Request, error) {
	if !Authorize(sess.Role, ActionAccept) {
		return nil, models.ErrForbidden
	}
	return s.claim(ctx, ActionAccept, id, sess.UserID)
}

// Assign is the admin override of Accept on behalf of a worker.
func (s *Service) Assign(ctx context.Context, sess models.Session, id, workerID string) (*models.Request, error) {
	if !Authorize(sess.Role, ActionAssign) {
		return nil, models.ErrForbidden
	}
	if !validID(workerID) {
		return nil, fmt.Errorf("%w: invalid worker id", models.ErrValidation)
	}
	ok, err := s.repo.IsWorker(ctx, workerID)
	if err != nil {
		return nil, fmt.Errorf("service.Assign: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: assignee is not a worker", models.ErrValidation)
	}
	return s.claim(ctx, ActionAssign, id, workerID)
}

func (s *Service) claim(ctx context.Context, action Action, id, workerID string) (*models.Request, error) {
	if !validID(id) {
		return nil, models.ErrNotFound
	}

	var claimed *models.Request
	op := func() error {
		req, err := s.repo.Claim(ctx, id, workerID)
		if err == nil {
			claimed = req
			return nil
		}
		if isTransient(err) {
			s.log.Warn("claim failed, retrying", zap.String("request_id", id), zap.Error(err))
			return err
		}
		return backoff.Permanent(err)
	}
	err := backoff.Retry(op, backoff.WithContext(s.backoff(), ctx))
	if err == nil {
		s.log.Info("request claimed",
			zap.Stringer("action", action),
			zap.String("request_id", id),
			zap.String("worker_id", workerID))
		return claimed, nil
	}
	if !errors.Is(err, errNotApplied) {
		return nil, fmt.Errorf("service.%s: %w", action, err)
	}

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// An earlier attempt may have committed before its reply was lost.
	if current.Status == models.StatusAccepted && current.AssignedTo(workerID) {
		return current, nil
	}
	return nil, rejection(action, current, workerID)
}

func (s *Service) Start(ctx context.Context, sess models.Session, id string) (*models.Request, error) {
	if !Authorize(sess.Role, ActionStart) {
		return nil, models.ErrForbidden
	}
	if !validID(id) {
		return nil, models.ErrNotFound
	}
	req, err := s.repo.Start(ctx, id, sess.UserID)
	if err != nil {
		return nil, s.explain(ctx, ActionStart, id, sess.UserID, err)
	}
	s.log.Info("request started", zap.String("request_id", id), zap.String("worker_id", sess.UserID))
	return req, nil
}

// Complete records the completion evidence and credits the worker. The
// earning is derived from the stored estimate, never supplied by the caller.
func (s *Service) Complete(ctx context.Context, sess models.Session, id string, in models.CompleteRequestRequest) (*models.Request, error) {
	if !Authorize(sess.Role, ActionComplete) {
		return nil, models.ErrForbidden
	}
	if in.AfterImageURL == "" || in.CompletionTimeMinutes <= 0 {
		return nil, fmt.Errorf("%w: after image and completion time are required", models.ErrValidation)
	}
	if !validID(id) {
		return nil, models.ErrNotFound
	}

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.AssignedTo(sess.UserID) {
		return nil, models.ErrForbidden
	}
	if !CanTransition(current.Status, models.StatusCompleted) {
		return nil, models.ErrInvalidTransition
	}

	req, err := s.repo.Complete(ctx, id, sess.UserID, Completion{
		AfterImageURL:         in.AfterImageURL,
		CompletionTimeMinutes: in.CompletionTimeMinutes,
		FinalEarning:          pricing.WorkerEarning(current.EstimatedPrice),
	})
	if err != nil {
		return nil, s.explain(ctx, ActionComplete, id, sess.UserID, err)
	}
	s.log.Info("request completed",
		zap.String("request_id", id),
		zap.String("worker_id", sess.UserID),
		zap.Stringer("final_earning", *req.FinalEarning))
	return req, nil
}

// Cancel withdraws a pending request. Only admins may cancel.
func (s *Service) Cancel(ctx context.Context, sess models.Session, id string) (*models.Request, error) {
	if !Authorize(sess.Role, ActionCancel) {
		return nil, models.ErrForbidden
	}
	if !validID(id) {
		return nil, models.ErrNotFound
	}
	req, err := s.repo.Cancel(ctx, id)
	if err != nil {
		return nil, s.explain(ctx, ActionCancel, id, sess.UserID, err)
	}
	s.log.Info("request cancelled", zap.String("request_id", id), zap.String("admin_id", sess.UserID))
	return req, nil
}

// explain turns a rejected conditional write into the error the caller sees.
func (s *Service) explain(ctx context.Context, action Action, id, actorID string, err error) error {
	if !errors.Is(err, errNotApplied) {
		return fmt.Errorf("service.%s: %w", action, err)
	}
	current, findErr := s.repo.FindByID(ctx, id)
	if findErr != nil {
		return findErr
	}
	return rejection(action, current, actorID)
}

// rejection classifies why a guarded transition did not match the row.
func rejection(action Action, current *models.Request, actorID string) error {
	switch action {
	case ActionAccept, ActionAssign:
		if current.Status == models.StatusPending && current.WorkerID == nil {
			// The row was claimable, so the worker role check failed.
			return models.ErrForbidden
		}
		return models.ErrConflict
	case ActionStart, ActionComplete:
		if !current.AssignedTo(actorID) {
			return models.ErrForbidden
		}
		return models.ErrInvalidTransition
	}
	return models.ErrInvalidTransition
}

func (s *Service) AdminList(ctx context.Context, sess models.Session, f models.AdminRequestFilter) ([]*models.RequestView, int, error) {
	if sess.Role != models.RoleAdmin {
		return nil, 0, models.ErrForbidden
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", models.ErrValidation, f.Status)
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 50
	}
	views, total, err := s.repo.ListAll(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("service.AdminList: %w", err)
	}
	return views, total, nil
}

func (s *Service) Stats(ctx context.Context, sess models.Session) (*models.Stats, error) {
	if sess.Role != models.RoleAdmin {
		return nil, models.ErrForbidden
	}
	figs, err := s.repo.Figures(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.Stats: %w", err)
	}
	active, err := s.repo.CountActiveWorkers(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.Stats: %w", err)
	}
	stats := ComputeStats(figs, active)
	return &stats, nil
}

// ComputeStats aggregates the admin dashboard figures. Revenue counts each
// completed request once, preferring the final earning over the estimate.
func ComputeStats(figs []models.RequestFigures, activeWorkers int) models.Stats {
	st := models.Stats{TotalRequests: len(figs), ActiveWorkers: activeWorkers}
	for _, f := range figs {
		switch f.Status {
		case models.StatusPending, models.StatusAccepted:
			st.PendingPickups++
		case models.StatusCompleted:
			st.CompletedJobs++
			if f.FinalEarning != nil {
				st.TotalRevenue += *f.FinalEarning
			} else {
				st.TotalRevenue += f.EstimatedPrice
			}
		}
	}
	return st
}

func isTransient(err error) bool {
	return pgconn.SafeToRetry(err) || pgconn.Timeout(err)
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
