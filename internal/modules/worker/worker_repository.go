package worker

import (
	"context"
	"errors"
	"fmt"

	"quickclean/internal/models"
	"quickclean/pkg/money"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// errNotWorker 表示目标档案存在但不是 worker。
var errNotWorker = errors.New("profile is not a worker")

// RepositoryInterface 定义 worker 模块对 profiles / requests 的全部访问。
type RepositoryInterface interface {
	FindWorker(ctx context.Context, id string) (*models.WorkerProfile, error)
	ListWorkers(ctx context.Context, query string) ([]*models.WorkerProfile, error)
	SetAvailability(ctx context.Context, id string, a models.Availability) error
	Demote(ctx context.Context, id string) error
}

// Repository 实现 RepositoryInterface。
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository 注入共享连接池。
func NewRepository(db *pgxpool.Pool) RepositoryInterface {
	return &Repository{db: db}
}

// 累计收入只在读取时由已完成请求汇总，不单独存储。
const workerSelect = `
	SELECT p.id, p.name, p.email, p.phone, p.role, p.availability_status, p.rating,
	       p.created_at, p.updated_at,
	       COALESCE(SUM(r.final_earning_minor) FILTER (WHERE r.status = 'Completed'), 0)::bigint,
	       COUNT(r.id) FILTER (WHERE r.status = 'Completed')
	FROM profiles p
	LEFT JOIN requests r ON r.worker_id = p.id`

// FindWorker 查询单个 worker 及其收入汇总。
func (r *Repository) FindWorker(ctx context.Context, id string) (*models.WorkerProfile, error) {
	query := workerSelect + `
	WHERE p.id = $1 AND p.role = 'worker'
	GROUP BY p.id`
	wp, err := scanWorker(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("repository.FindWorker: %w", err)
	}
	return wp, nil
}

// ListWorkers 按姓名 / 邮箱模糊搜索，空字符串返回全部。
func (r *Repository) ListWorkers(ctx context.Context, q string) ([]*models.WorkerProfile, error) {
	query := workerSelect + `
	WHERE p.role = 'worker'
	  AND ($1::text = '' OR p.name ILIKE '%' || $1::text || '%' OR p.email ILIKE '%' || $1::text || '%')
	GROUP BY p.id
	ORDER BY p.name`
	rows, err := r.db.Query(ctx, query, q)
	if err != nil {
		return nil, fmt.Errorf("repository.ListWorkers: %w", err)
	}
	defer rows.Close()

	workers := []*models.WorkerProfile{}
	for rows.Next() {
		wp, err := scanWorker(rows)
		if err != nil {
			return nil, fmt.Errorf("repository.ListWorkers: %w", err)
		}
		workers = append(workers, wp)
	}
	return workers, rows.Err()
}

// SetAvailability 只更新 worker 的 availability_status。
func (r *Repository) SetAvailability(ctx context.Context, id string, a models.Availability) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE profiles SET availability_status = $2, updated_at = now() WHERE id = $1 AND role = 'worker'`,
		id, string(a))
	if err != nil {
		return fmt.Errorf("repository.SetAvailability: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return r.missingOrNotWorker(ctx, id)
	}
	return nil
}

// 锁住档案行：Claim 在同一行上取 FOR SHARE，两者互相等待而不会交错。
const lockProfileQuery = `SELECT role FROM profiles WHERE id = $1 FOR UPDATE`

const activeJobsQuery = `
	SELECT EXISTS (
	    SELECT 1 FROM requests
	    WHERE worker_id = $1 AND status IN ('Accepted', 'In Progress'))`

// Demote 把 worker 降级为普通用户；仍有进行中的任务时拒绝。
// 先锁档案再查任务：锁之后的语句使用新快照，能看到刚提交的 Claim。
func (r *Repository) Demote(ctx context.Context, id string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository.Demote: %w", err)
	}
	defer tx.Rollback(ctx)

	var role string
	if err := tx.QueryRow(ctx, lockProfileQuery, id).Scan(&role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrNotFound
		}
		return fmt.Errorf("repository.Demote: lock: %w", err)
	}
	var busy bool
	if err := tx.QueryRow(ctx, activeJobsQuery, id).Scan(&busy); err != nil {
		return fmt.Errorf("repository.Demote: active jobs: %w", err)
	}
	if err := demotable(models.Role(role), busy); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE profiles SET role = 'user', updated_at = now() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("repository.Demote: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository.Demote: commit: %w", err)
	}
	return nil
}

// demotable 判断锁定后的档案能否降级。
func demotable(role models.Role, busy bool) error {
	if role != models.RoleWorker {
		return errNotWorker
	}
	if busy {
		return models.ErrWorkerBusy
	}
	return nil
}

// missingOrNotWorker 在条件更新未命中时区分原因；是 worker 时返回 nil。
func (r *Repository) missingOrNotWorker(ctx context.Context, id string) error {
	var role string
	err := r.db.QueryRow(ctx, `SELECT role FROM profiles WHERE id = $1`, id).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("repository.missingOrNotWorker: %w", err)
	}
	if models.Role(role) != models.RoleWorker {
		return errNotWorker
	}
	return nil
}

func scanWorker(row pgx.Row) (*models.WorkerProfile, error) {
	var wp models.WorkerProfile
	var role, availability string
	var earnings int64
	err := row.Scan(&wp.ID, &wp.Name, &wp.Email, &wp.Phone, &role, &availability, &wp.Rating,
		&wp.CreatedAt, &wp.UpdatedAt, &earnings, &wp.CompletedJobs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	wp.Role = models.Role(role)
	wp.Availability = models.Availability(availability)
	wp.TotalEarnings = money.Amount(earnings)
	return &wp, nil
}
