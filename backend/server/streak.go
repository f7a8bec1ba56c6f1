package server

import (
	"time"

	"github.com/nuhaid/barakah/lib/utils"
)

// CurrentStreak computes the length of the run of consecutive calendar days
// with at least one completion, ending today. A day with no log yet does
// not break a run ending yesterday: the streak only drops to zero once a
// whole day passed without a completion.
func CurrentStreak(dates []string, today time.Time) int {
	logged := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		logged[d] = struct{}{}
	}

	day := today
	if _, ok := logged[day.Format(utils.DateLayout)]; !ok {
		day = day.AddDate(0, 0, -1)
	}

	streak := 0
	for {
		if _, ok := logged[day.Format(utils.DateLayout)]; !ok {
			return streak
		}
		streak++
		day = day.AddDate(0, 0, -1)
	}
}
