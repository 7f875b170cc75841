package worker

import (
	"context"
	"errors"
	"strings"
	"testing"

	"quickclean/internal/models"
	"quickclean/pkg/money"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ----------------------------------------------------------------------------
// fakeRepo: 用 map 模拟 profiles 表，activeJobs 记录进行中的任务数
// ----------------------------------------------------------------------------
type fakeRepo struct {
	profiles   map[string]*models.WorkerProfile
	activeJobs map[string]int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		profiles:   make(map[string]*models.WorkerProfile),
		activeJobs: make(map[string]int),
	}
}

func (f *fakeRepo) add(role models.Role) string {
	id := uuid.NewString()
	f.profiles[id] = &models.WorkerProfile{Profile: models.Profile{ID: id, Role: role, Availability: models.AvailabilityActive}}
	return id
}

func (f *fakeRepo) FindWorker(ctx context.Context, id string) (*models.WorkerProfile, error) {
	p, ok := f.profiles[id]
	if !ok || p.Role != models.RoleWorker {
		return nil, models.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeRepo) ListWorkers(ctx context.Context, q string) ([]*models.WorkerProfile, error) {
	out := []*models.WorkerProfile{}
	for _, p := range f.profiles {
		if p.Role == models.RoleWorker {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRepo) check(id string) error {
	p, ok := f.profiles[id]
	if !ok {
		return models.ErrNotFound
	}
	if p.Role != models.RoleWorker {
		return errNotWorker
	}
	return nil
}

func (f *fakeRepo) SetAvailability(ctx context.Context, id string, a models.Availability) error {
	if err := f.check(id); err != nil {
		return err
	}
	f.profiles[id].Availability = a
	return nil
}

func (f *fakeRepo) Demote(ctx context.Context, id string) error {
	p, ok := f.profiles[id]
	if !ok {
		return models.ErrNotFound
	}
	if err := demotable(p.Role, f.activeJobs[id] > 0); err != nil {
		return err
	}
	p.Role = models.RoleUser
	return nil
}

// ----------------------------------------------------------------------------
// 测试用例
// ----------------------------------------------------------------------------
func TestSetAvailabilitySelfAndAdmin(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, zap.NewNop())
	ctx := context.Background()
	w1, w2, admin := repo.add(models.RoleWorker), repo.add(models.RoleWorker), repo.add(models.RoleAdmin)

	self := models.Session{UserID: w1, Role: models.RoleWorker}
	if err := svc.SetAvailability(ctx, self, w1, models.AvailabilityBusy); err != nil {
		t.Fatalf("SetAvailability(self) error: %v", err)
	}
	if got := repo.profiles[w1].Availability; got != models.AvailabilityBusy {
		t.Errorf("availability = %s; want busy", got)
	}
	if err := svc.SetAvailability(ctx, self, w2, models.AvailabilityBusy); !errors.Is(err, models.ErrForbidden) {
		t.Errorf("SetAvailability(other) err = %v; want ErrForbidden", err)
	}

	adm := models.Session{UserID: admin, Role: models.RoleAdmin}
	if err := svc.SetAvailability(ctx, adm, w2, models.AvailabilityBusy); err != nil {
		t.Fatalf("SetAvailability(admin) error: %v", err)
	}
	if err := svc.SetAvailability(ctx, adm, admin, models.AvailabilityBusy); !errors.Is(err, models.ErrValidation) {
		t.Errorf("SetAvailability(non-worker) err = %v; want ErrValidation", err)
	}
	if err := svc.SetAvailability(ctx, adm, w2, models.Availability("asleep")); !errors.Is(err, models.ErrValidation) {
		t.Errorf("SetAvailability(bad value) err = %v; want ErrValidation", err)
	}
}

func TestDemote(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, zap.NewNop())
	ctx := context.Background()
	idle, busy, admin := repo.add(models.RoleWorker), repo.add(models.RoleWorker), repo.add(models.RoleAdmin)
	repo.activeJobs[busy] = 1
	adm := models.Session{UserID: admin, Role: models.RoleAdmin}

	if err := svc.Demote(ctx, models.Session{UserID: idle, Role: models.RoleWorker}, idle); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("Demote by worker err = %v; want ErrForbidden", err)
	}
	if err := svc.Demote(ctx, adm, idle); err != nil {
		t.Fatalf("Demote error: %v", err)
	}
	if repo.profiles[idle].Role != models.RoleUser {
		t.Errorf("role = %s; want user", repo.profiles[idle].Role)
	}
	if err := svc.Demote(ctx, adm, busy); !errors.Is(err, models.ErrWorkerBusy) {
		t.Errorf("Demote busy worker err = %v; want ErrWorkerBusy", err)
	}
	if err := svc.Demote(ctx, adm, uuid.NewString()); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Demote unknown err = %v; want ErrNotFound", err)
	}
}

func TestProfileReturnsEarnings(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, zap.NewNop())
	id := repo.add(models.RoleWorker)
	repo.profiles[id].TotalEarnings = money.FromMajor(91)
	repo.profiles[id].CompletedJobs = 2

	wp, err := svc.Profile(context.Background(), models.Session{UserID: id, Role: models.RoleWorker})
	if err != nil {
		t.Fatalf("Profile error: %v", err)
	}
	if wp.TotalEarnings != money.FromMajor(91) || wp.CompletedJobs != 2 {
		t.Errorf("profile = %s / %d; want 91.00 / 2", wp.TotalEarnings, wp.CompletedJobs)
	}
	if _, err := svc.ListWorkers(context.Background(), models.Session{UserID: id, Role: models.RoleWorker}, ""); !errors.Is(err, models.ErrForbidden) {
		t.Errorf("ListWorkers as worker err = %v; want ErrForbidden", err)
	}
}

func TestDemotableAfterLock(t *testing.T) {
	cases := []struct {
		role models.Role
		busy bool
		want error
	}{
		{models.RoleWorker, false, nil},
		{models.RoleWorker, true, models.ErrWorkerBusy},
		{models.RoleUser, false, errNotWorker},
		{models.RoleAdmin, true, errNotWorker},
	}
	for _, tc := range cases {
		if err := demotable(tc.role, tc.busy); !errors.Is(err, tc.want) {
			t.Errorf("demotable(%s, %v) = %v; want %v", tc.role, tc.busy, err, tc.want)
		}
	}
}

// 降级与 Claim 必须在同一档案行上串行化。
func TestDemoteLocksProfileRow(t *testing.T) {
	if !strings.Contains(lockProfileQuery, "FOR UPDATE") {
		t.Errorf("lockProfileQuery does not lock the profile row: %s", lockProfileQuery)
	}
}
