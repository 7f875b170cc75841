package worker

import (
	"context"
	"errors"
	"fmt"

	"quickclean/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ServiceInterface 定义 worker 模块对 Handler 暴露的业务方法。
type ServiceInterface interface {
	Profile(ctx context.Context, s models.Session) (*models.WorkerProfile, error)
	ListWorkers(ctx context.Context, s models.Session, query string) ([]*models.WorkerProfile, error)
	SetAvailability(ctx context.Context, s models.Session, workerID string, a models.Availability) error
	Demote(ctx context.Context, s models.Session, workerID string) error
}

// service 是 ServiceInterface 的实现。
type service struct {
	repo RepositoryInterface
	log  *zap.Logger
}

// NewService 注入 repo 与日志。
func NewService(repo RepositoryInterface, log *zap.Logger) ServiceInterface {
	return &service{repo: repo, log: log}
}

// Profile 返回当前 worker 的档案和累计收入。
func (s *service) Profile(ctx context.Context, sess models.Session) (*models.WorkerProfile, error) {
	if sess.Role != models.RoleWorker {
		return nil, models.ErrForbidden
	}
	return s.repo.FindWorker(ctx, sess.UserID)
}

// ListWorkers 仅管理员可用。
func (s *service) ListWorkers(ctx context.Context, sess models.Session, query string) ([]*models.WorkerProfile, error) {
	if sess.Role != models.RoleAdmin {
		return nil, models.ErrForbidden
	}
	workers, err := s.repo.ListWorkers(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("service.ListWorkers: %w", err)
	}
	return workers, nil
}

// SetAvailability 允许 worker 修改自己，或管理员修改任意 worker。
func (s *service) SetAvailability(ctx context.Context, sess models.Session, workerID string, a models.Availability) error {
	switch sess.Role {
	case models.RoleAdmin:
	case models.RoleWorker:
		if workerID != sess.UserID {
			return models.ErrForbidden
		}
	default:
		return models.ErrForbidden
	}
	if a != models.AvailabilityActive && a != models.AvailabilityBusy {
		return fmt.Errorf("%w: unknown availability %q", models.ErrValidation, a)
	}
	if _, err := uuid.Parse(workerID); err != nil {
		return models.ErrNotFound
	}

	if err := s.repo.SetAvailability(ctx, workerID, a); err != nil {
		return s.mapErr("SetAvailability", err)
	}
	s.log.Info("worker availability changed",
		zap.String("worker_id", workerID),
		zap.String("availability", string(a)),
		zap.String("by", sess.UserID))
	return nil
}

// Demote 把 worker 降为普通用户。已完成的历史请求保留原 worker_id。
func (s *service) Demote(ctx context.Context, sess models.Session, workerID string) error {
	if sess.Role != models.RoleAdmin {
		return models.ErrForbidden
	}
	if _, err := uuid.Parse(workerID); err != nil {
		return models.ErrNotFound
	}
	if err := s.repo.Demote(ctx, workerID); err != nil {
		return s.mapErr("Demote", err)
	}
	s.log.Info("worker demoted", zap.String("worker_id", workerID), zap.String("by", sess.UserID))
	return nil
}

func (s *service) mapErr(op string, err error) error {
	switch {
	case errors.Is(err, errNotWorker):
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrWorkerBusy):
		return err
	}
	return fmt.Errorf("service.%s: %w", op, err)
}
