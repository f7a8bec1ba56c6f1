package client

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/nuhaid/barakah/frontend/offline"
	"github.com/nuhaid/barakah/lib/utils"
	"github.com/nuhaid/barakah/models"
)

// ErrPointsUnderflow is returned when unchecking a habit would drive the
// user's point total below zero. The toggle is rejected before anything is
// written anywhere.
var ErrPointsUnderflow = errors.New("not enough points to uncheck this habit")

// ErrUnknownHabit is returned when a toggle names a habit that is not on
// the checklist.
var ErrUnknownHabit = errors.New("no such habit")

// API is the slice of the server the checklist talks to. *Client implements
// it; tests substitute a fake.
type API interface {
	GetHabits(ctx context.Context) ([]models.Habit, error)
	GetProfile(ctx context.Context) (*models.Profile, error)
	GetLogs(ctx context.Context, date string) ([]models.HabitLog, error)
	CreateLog(ctx context.Context, userID, habitID, date string) error
	DeleteLog(ctx context.Context, userID, habitID, date string) error
	IncrementPoints(ctx context.Context, userID string, amount int) error
	UpdateStreak(ctx context.Context, userID string) error
	CheckAchievements(ctx context.Context, userID string) ([]models.Achievement, error)
}

// ToggleResult reports what a toggle did.
type ToggleResult struct {
	Habit    models.Habit
	Done     bool                 // the habit's new completed state
	Queued   bool                 // true when the mutation was queued for later sync
	Unlocked []models.Achievement // achievements newly earned by this completion
}

// Checklist holds today's view of the habit list together with the user's
// scoreboard, and applies toggles optimistically: the local view updates
// first, then the mutation is either sent to the server or queued for the
// sync engine depending on connectivity.
type Checklist struct {
	api    API
	engine *offline.Engine
	online func() bool

	userID  string
	date    string
	profile models.Profile
	habits  []models.Habit
	done    map[string]bool
}

// NewChecklist creates a Checklist over the given API, sync engine and
// connectivity query. Call Refresh before reading from it.
func NewChecklist(api API, engine *offline.Engine, online func() bool) *Checklist {
	return &Checklist{
		api:    api,
		engine: engine,
		online: online,
		done:   map[string]bool{},
	}
}

// Refresh replaces the local view with the server's authoritative state for
// the current day: habit list, profile, and today's completion set.
func (cl *Checklist) Refresh(ctx context.Context) error {
	profile, err := cl.api.GetProfile(ctx)
	if err != nil {
		return err
	}

	habits, err := cl.api.GetHabits(ctx)
	if err != nil {
		return err
	}

	today := utils.Today()
	logs, err := cl.api.GetLogs(ctx, today)
	if err != nil {
		return err
	}

	done := make(map[string]bool, len(logs))
	for _, l := range logs {
		done[l.HabitID.Hex()] = true
	}

	cl.userID = profile.UserID
	cl.date = today
	cl.profile = *profile
	cl.habits = habits
	cl.done = done
	return nil
}

// Profile returns the locally projected scoreboard.
func (cl *Checklist) Profile() models.Profile {
	return cl.profile
}

// Habits returns the habit list grouped and ordered for display.
func (cl *Checklist) Habits() []models.Habit {
	ordered := append([]models.Habit(nil), cl.habits...)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Category != b.Category {
			return categoryRank(a.Category) < categoryRank(b.Category)
		}
		return habitRank(a) < habitRank(b)
	})
	return ordered
}

// Done reports the projected completed state of a habit.
func (cl *Checklist) Done(habitID string) bool {
	return cl.done[habitID]
}

// TodayPoints returns the points earned today and the day's maximum,
// according to the projected view.
func (cl *Checklist) TodayPoints() (earned, max int) {
	for _, h := range cl.habits {
		max += h.PointValue
		if cl.done[h.ID.Hex()] {
			earned += h.PointValue
		}
	}
	return earned, max
}

// HasPending reports whether queued mutations are waiting to sync.
func (cl *Checklist) HasPending() bool {
	return cl.engine.HasPending()
}

// FindHabit resolves a habit by (case-insensitive) name.
func (cl *Checklist) FindHabit(name string) (models.Habit, bool) {
	for _, h := range cl.habits {
		if strings.EqualFold(h.Name, name) {
			return h, true
		}
	}
	return models.Habit{}, false
}

// Toggle flips a habit's completed state for today. The local view updates
// immediately; while offline the mutation is queued for the sync engine,
// and while online it runs against the server directly, with the
// achievement check last so it sees the post-update totals. A failed online
// toggle is rolled back by refetching the authoritative state.
func (cl *Checklist) Toggle(ctx context.Context, name string) (*ToggleResult, error) {
	habit, ok := cl.FindHabit(name)
	if !ok {
		return nil, ErrUnknownHabit
	}

	habitID := habit.ID.Hex()
	currentlyDone := cl.done[habitID]

	// Unchecking may never take the total negative.
	if currentlyDone && cl.profile.Points-habit.PointValue < 0 {
		return nil, ErrPointsUnderflow
	}

	// Optimistic local update, before any I/O.
	cl.done[habitID] = !currentlyDone
	if currentlyDone {
		cl.profile.Points -= habit.PointValue
	} else {
		cl.profile.Points += habit.PointValue
	}

	result := &ToggleResult{Habit: habit, Done: !currentlyDone}

	if !cl.online() {
		kind := offline.KindComplete
		if currentlyDone {
			kind = offline.KindUncomplete
		}
		action := offline.NewAction(kind, habitID, cl.userID, cl.date, habit.PointValue)
		if err := cl.engine.Enqueue(action); err != nil {
			return nil, cl.rollback(ctx, err)
		}
		result.Queued = true
		return result, nil
	}

	if err := cl.applyDirect(ctx, habit, currentlyDone, result); err != nil {
		return nil, cl.rollback(ctx, err)
	}

	// The server is authoritative for streaks and clamping; re-sync the
	// whole view now that the mutation landed.
	if err := cl.Refresh(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

// applyDirect runs the online mutation path in the server's required order.
func (cl *Checklist) applyDirect(ctx context.Context, habit models.Habit, currentlyDone bool, result *ToggleResult) error {
	habitID := habit.ID.Hex()

	if currentlyDone {
		if err := cl.api.DeleteLog(ctx, cl.userID, habitID, cl.date); err != nil {
			return err
		}
		if err := cl.api.IncrementPoints(ctx, cl.userID, -habit.PointValue); err != nil {
			return err
		}
		return cl.api.UpdateStreak(ctx, cl.userID)
	}

	err := cl.api.CreateLog(ctx, cl.userID, habitID, cl.date)
	if err != nil && !errors.Is(err, models.ErrDuplicateLog) {
		return err
	}
	if err := cl.api.IncrementPoints(ctx, cl.userID, habit.PointValue); err != nil {
		return err
	}
	if err := cl.api.UpdateStreak(ctx, cl.userID); err != nil {
		return err
	}

	// Achievements are checked last so the evaluation sees the totals this
	// completion just produced.
	unlocked, err := cl.api.CheckAchievements(ctx, cl.userID)
	if err != nil {
		return err
	}
	result.Unlocked = unlocked
	return nil
}

// rollback reconciles the optimistic view with the server after a failed
// toggle, then surfaces the original error.
func (cl *Checklist) rollback(ctx context.Context, cause error) error {
	if err := cl.Refresh(ctx); err != nil {
		// Keep the original cause; the stale view will correct itself on
		// the next successful refresh.
		return cause
	}
	return cause
}

// Canonical checklist ordering: prayers appear in their daily order within
// each section, followed by the remaining habits alphabetically.
var (
	morningOrder = []string{"Fajr Prayer", "Dhuhr Prayer"}
	eveningOrder = []string{"Asr Prayer", "Maghrib Prayer", "Isha Prayer", "Taraweeh Prayer"}
)

func categoryRank(category string) int {
	switch category {
	case models.CategoryMorning:
		return 0
	case models.CategoryEvening:
		return 1
	default:
		return 2
	}
}

func habitRank(h models.Habit) string {
	var order []string
	switch h.Category {
	case models.CategoryMorning:
		order = morningOrder
	case models.CategoryEvening:
		order = eveningOrder
	}
	for i, name := range order {
		if h.Name == name {
			return fmt.Sprintf("%d", i)
		}
	}
	return "~" + h.Name
}
