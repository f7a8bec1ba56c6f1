package offline

import (
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the two replayable mutations.
type Kind string

const (
	KindComplete   Kind = "complete"
	KindUncomplete Kind = "uncomplete"
)

// PendingAction is one queued habit mutation awaiting replay against the
// backend. Points carries the habit's point value as it was when the user
// acted; replay uses this snapshot even if the habit's value has since
// changed on the server.
type PendingAction struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	HabitID   string    `json:"habitId"`
	UserID    string    `json:"userId"`
	Date      string    `json:"date"`
	Points    int       `json:"points"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewAction builds a PendingAction for the given mutation, stamped with a
// fresh ID and the current time.
func NewAction(kind Kind, habitID, userID, date string, points int) PendingAction {
	return PendingAction{
		ID:        uuid.NewString(),
		Kind:      kind,
		HabitID:   habitID,
		UserID:    userID,
		Date:      date,
		Points:    points,
		CreatedAt: time.Now(),
	}
}

// Dedupe folds action into queue, keeping at most one entry per habit and
// date. A queued action of the opposite kind cancels out entirely: completing
// then uncompleting a habit while offline nets to nothing the backend needs
// to see, and replaying either half alone would corrupt the point total.
// Otherwise the new action supersedes any queued entry for the pair and lands
// at the tail; relative order of unrelated entries is preserved.
func Dedupe(queue []PendingAction, action PendingAction) []PendingAction {
	cancelled := false
	result := make([]PendingAction, 0, len(queue)+1)
	for _, a := range queue {
		if a.HabitID == action.HabitID && a.Date == action.Date {
			if a.Kind != action.Kind {
				cancelled = true
			}
			continue
		}
		result = append(result, a)
	}
	if cancelled {
		return result
	}
	return append(result, action)
}
