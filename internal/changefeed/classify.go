package changefeed

import "quickclean/internal/models"

// Classify maps a row change to the notification events it triggers. An
// update can trigger both when assignment and completion land together.
func Classify(c models.RequestChange) []models.EventType {
	if c.Op != "UPDATE" {
		return nil
	}
	var events []models.EventType
	if c.OldWorkerID == nil && c.WorkerID != nil {
		events = append(events, models.EventWorkerAssigned)
	}
	if c.OldStatus != models.StatusCompleted && c.Status == models.StatusCompleted {
		events = append(events, models.EventRequestCompleted)
	}
	return events
}
