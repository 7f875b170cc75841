package request

import (
	"strings"
	"testing"

	"quickclean/internal/models"
	"quickclean/pkg/money"
)

func TestCanTransition(t *testing.T) {
	allowed := map[[2]models.RequestStatus]bool{
		{models.StatusPending, models.StatusAccepted}:     true,
		{models.StatusPending, models.StatusCancelled}:    true,
		{models.StatusAccepted, models.StatusInProgress}:  true,
		{models.StatusInProgress, models.StatusCompleted}: true,
	}
	statuses := []models.RequestStatus{
		models.StatusPending, models.StatusAccepted, models.StatusInProgress,
		models.StatusCompleted, models.StatusCancelled,
	}
	for _, from := range statuses {
		for _, to := range statuses {
			want := allowed[[2]models.RequestStatus{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v; want %v", from, to, got, want)
			}
		}
	}
}

func TestAuthorize(t *testing.T) {
	cases := []struct {
		role   models.Role
		action Action
		want   bool
	}{
		{models.RoleUser, ActionCreate, true},
		{models.RoleUser, ActionAccept, false},
		{models.RoleUser, ActionCancel, false},
		{models.RoleWorker, ActionAccept, true},
		{models.RoleWorker, ActionStart, true},
		{models.RoleWorker, ActionComplete, true},
		{models.RoleWorker, ActionAssign, false},
		{models.RoleWorker, ActionCreate, false},
		{models.RoleAdmin, ActionAssign, true},
		{models.RoleAdmin, ActionCancel, true},
		{models.RoleAdmin, ActionAccept, false},
		{models.RoleAdmin, ActionComplete, false},
		{models.Role("guest"), ActionCreate, false},
	}
	for _, tc := range cases {
		if got := Authorize(tc.role, tc.action); got != tc.want {
			t.Errorf("Authorize(%s, %s) = %v; want %v", tc.role, tc.action, got, tc.want)
		}
	}
}

func TestTargetsAreLifecycleEdges(t *testing.T) {
	from := map[Action]models.RequestStatus{
		ActionAccept:   models.StatusPending,
		ActionAssign:   models.StatusPending,
		ActionStart:    models.StatusAccepted,
		ActionComplete: models.StatusInProgress,
		ActionCancel:   models.StatusPending,
	}
	for action, src := range from {
		to, ok := Target(action)
		if !ok {
			t.Fatalf("Target(%s) not defined", action)
		}
		if !CanTransition(src, to) {
			t.Errorf("%s: %s -> %s is not a lifecycle edge", action, src, to)
		}
	}
}

func TestCheckInvariants(t *testing.T) {
	worker := "w1"
	earning := money.FromMajor(70)
	after := "https://img/after.jpg"
	minutes := int32(30)

	cases := []struct {
		name string
		req  models.Request
		ok   bool
	}{
		{"pending unassigned", models.Request{Status: models.StatusPending}, true},
		{"pending assigned", models.Request{Status: models.StatusPending, WorkerID: &worker}, false},
		{"accepted unassigned", models.Request{Status: models.StatusAccepted}, false},
		{"in progress assigned", models.Request{Status: models.StatusInProgress, WorkerID: &worker}, true},
		{"completed without evidence", models.Request{Status: models.StatusCompleted, WorkerID: &worker}, false},
		{"completed with evidence", models.Request{
			Status: models.StatusCompleted, WorkerID: &worker,
			FinalEarning: &earning, AfterImageURL: &after, CompletionTimeMinutes: &minutes,
		}, true},
		{"accepted with earning", models.Request{Status: models.StatusAccepted, WorkerID: &worker, FinalEarning: &earning}, false},
		{"cancelled unassigned", models.Request{Status: models.StatusCancelled}, true},
	}
	for _, tc := range cases {
		err := CheckInvariants(&tc.req)
		if (err == nil) != tc.ok {
			t.Errorf("%s: CheckInvariants err = %v; want ok=%v", tc.name, err, tc.ok)
		}
	}
}

// A claim must hold the worker's profile so a concurrent demotion cannot
// slip between the role check and the assignment.
func TestClaimLocksWorkerProfile(t *testing.T) {
	sub := claimQuery[strings.Index(claimQuery, "EXISTS"):]
	if !strings.Contains(sub, "role = 'worker' FOR SHARE") {
		t.Errorf("claim does not share-lock the worker profile:\n%s", claimQuery)
	}
}
