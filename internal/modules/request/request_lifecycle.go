package request

import (
	"quickclean/internal/models"
)

// Action is a mutation a session may attempt on a request.
type Action int

const (
	ActionCreate Action = iota
	ActionAccept
	ActionAssign
	ActionStart
	ActionComplete
	ActionCancel
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionAccept:
		return "accept"
	case ActionAssign:
		return "assign"
	case ActionStart:
		return "start"
	case ActionComplete:
		return "complete"
	case ActionCancel:
		return "cancel"
	}
	return "unknown"
}

// Authorize reports whether a role may attempt an action at all. Ownership
// (assigned worker, requester) is checked separately against the row.
func Authorize(role models.Role, action Action) bool {
	switch role {
	case models.RoleUser:
		return action == ActionCreate
	case models.RoleWorker:
		switch action {
		case ActionAccept, ActionStart, ActionComplete:
			return true
		}
		return false
	case models.RoleAdmin:
		switch action {
		case ActionAssign, ActionCancel:
			return true
		}
		return false
	}
	return false
}

var transitions = map[models.RequestStatus][]models.RequestStatus{
	models.StatusPending:    {models.StatusAccepted, models.StatusCancelled},
	models.StatusAccepted:   {models.StatusInProgress},
	models.StatusInProgress: {models.StatusCompleted},
	models.StatusCompleted:  {},
	models.StatusCancelled:  {},
}

// CanTransition reports whether from -> to is an edge of the lifecycle.
func CanTransition(from, to models.RequestStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Target is the status an action moves a request into.
func Target(action Action) (models.RequestStatus, bool) {
	switch action {
	case ActionCreate:
		return models.StatusPending, true
	case ActionAccept, ActionAssign:
		return models.StatusAccepted, true
	case ActionStart:
		return models.StatusInProgress, true
	case ActionComplete:
		return models.StatusCompleted, true
	case ActionCancel:
		return models.StatusCancelled, true
	}
	return "", false
}

// CheckInvariants validates the cross-field rules every stored request obeys.
func CheckInvariants(r *models.Request) error {
	assigned := r.WorkerID != nil
	switch r.Status {
	case models.StatusPending, models.StatusCancelled:
		if assigned {
			return errInvariant("worker assigned while " + string(r.Status))
		}
	case models.StatusAccepted, models.StatusInProgress, models.StatusCompleted:
		if !assigned {
			return errInvariant("no worker while " + string(r.Status))
		}
	default:
		return errInvariant("unknown status " + string(r.Status))
	}

	evidence := r.FinalEarning != nil && r.AfterImageURL != nil && r.CompletionTimeMinutes != nil
	if (r.Status == models.StatusCompleted) != evidence {
		return errInvariant("completion evidence does not match status " + string(r.Status))
	}
	return nil
}

type invariantError string

func errInvariant(msg string) error { return invariantError(msg) }

func (e invariantError) Error() string { return "request invariant violated: " + string(e) }
