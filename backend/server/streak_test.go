package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestCurrentStreakNoLogs(t *testing.T) {
	assert.Equal(t, 0, CurrentStreak(nil, day("2026-03-05")))
}

func TestCurrentStreakTodayOnly(t *testing.T) {
	assert.Equal(t, 1, CurrentStreak([]string{"2026-03-05"}, day("2026-03-05")))
}

func TestCurrentStreakConsecutiveRun(t *testing.T) {
	dates := []string{"2026-03-03", "2026-03-04", "2026-03-05"}
	assert.Equal(t, 3, CurrentStreak(dates, day("2026-03-05")))
}

func TestCurrentStreakGraceForUnloggedToday(t *testing.T) {
	// Nothing logged today yet; the run ending yesterday still counts.
	dates := []string{"2026-03-03", "2026-03-04"}
	assert.Equal(t, 2, CurrentStreak(dates, day("2026-03-05")))
}

func TestCurrentStreakBrokenByGap(t *testing.T) {
	// The gap on 03-03 cuts off the older run.
	dates := []string{"2026-03-01", "2026-03-02", "2026-03-04", "2026-03-05"}
	assert.Equal(t, 2, CurrentStreak(dates, day("2026-03-05")))
}

func TestCurrentStreakZeroAfterFullMissedDay(t *testing.T) {
	dates := []string{"2026-03-01", "2026-03-02", "2026-03-03"}
	assert.Equal(t, 0, CurrentStreak(dates, day("2026-03-05")))
}

func TestCurrentStreakDuplicateDatesCountOnce(t *testing.T) {
	// Several habits logged on the same day still make a single streak day.
	dates := []string{"2026-03-04", "2026-03-04", "2026-03-05", "2026-03-05"}
	assert.Equal(t, 2, CurrentStreak(dates, day("2026-03-05")))
}
