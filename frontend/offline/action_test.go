package offline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAction(t *testing.T) {
	action := NewAction(KindComplete, "habit-1", "user-1", "2026-03-01", 10)

	assert.NotEmpty(t, action.ID)
	assert.Equal(t, KindComplete, action.Kind)
	assert.Equal(t, "habit-1", action.HabitID)
	assert.Equal(t, "user-1", action.UserID)
	assert.Equal(t, "2026-03-01", action.Date)
	assert.Equal(t, 10, action.Points)
	assert.False(t, action.CreatedAt.IsZero())

	other := NewAction(KindComplete, "habit-1", "user-1", "2026-03-01", 10)
	assert.NotEqual(t, action.ID, other.ID)
}

func TestDedupeCancelsOppositeKinds(t *testing.T) {
	complete := NewAction(KindComplete, "habit-1", "user-1", "2026-03-01", 10)
	queue := Dedupe(nil, complete)
	require.Len(t, queue, 1)

	// Toggling back off before syncing means the backend never needs to
	// hear about either half.
	uncomplete := NewAction(KindUncomplete, "habit-1", "user-1", "2026-03-01", 10)
	queue = Dedupe(queue, uncomplete)
	assert.Empty(t, queue)
}

func TestDedupeSupersedesSameKind(t *testing.T) {
	first := NewAction(KindComplete, "habit-1", "user-1", "2026-03-01", 10)
	queue := Dedupe(nil, first)

	// Same intent enqueued again keeps only the latest entry.
	second := NewAction(KindComplete, "habit-1", "user-1", "2026-03-01", 15)
	queue = Dedupe(queue, second)

	assert.Len(t, queue, 1)
	assert.Equal(t, second.ID, queue[0].ID)
	assert.Equal(t, 15, queue[0].Points)
}

func TestDedupeKeepsDistinctHabitsAndDates(t *testing.T) {
	a := NewAction(KindComplete, "habit-1", "user-1", "2026-03-01", 10)
	b := NewAction(KindComplete, "habit-2", "user-1", "2026-03-01", 20)
	c := NewAction(KindComplete, "habit-1", "user-1", "2026-03-02", 10)

	queue := Dedupe(Dedupe(Dedupe(nil, a), b), c)

	assert.Len(t, queue, 3)
	assert.Equal(t, a.ID, queue[0].ID)
	assert.Equal(t, b.ID, queue[1].ID)
	assert.Equal(t, c.ID, queue[2].ID)
}

func TestDedupeMovesSupersededEntryToTail(t *testing.T) {
	a := NewAction(KindComplete, "habit-1", "user-1", "2026-03-01", 10)
	b := NewAction(KindComplete, "habit-2", "user-1", "2026-03-01", 20)
	queue := Dedupe(Dedupe(nil, a), b)

	again := NewAction(KindComplete, "habit-1", "user-1", "2026-03-01", 10)
	queue = Dedupe(queue, again)

	assert.Len(t, queue, 2)
	assert.Equal(t, b.ID, queue[0].ID)
	assert.Equal(t, again.ID, queue[1].ID)
}

func TestDedupeCancellationLeavesOtherEntries(t *testing.T) {
	a := NewAction(KindComplete, "habit-1", "user-1", "2026-03-01", 10)
	b := NewAction(KindComplete, "habit-2", "user-1", "2026-03-01", 20)
	queue := Dedupe(Dedupe(nil, a), b)

	undo := NewAction(KindUncomplete, "habit-1", "user-1", "2026-03-01", 10)
	queue = Dedupe(queue, undo)

	assert.Len(t, queue, 1)
	assert.Equal(t, b.ID, queue[0].ID)
}
