package client

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nuhaid/barakah/frontend/offline"
	"github.com/nuhaid/barakah/lib/utils"
	"github.com/nuhaid/barakah/models"
)

var errDown = errors.New("connection refused")

// fakeAPI is an in-memory stand-in for the server, tracking call order so
// tests can assert the mutation sequence.
type fakeAPI struct {
	habits  []models.Habit
	profile models.Profile
	logs    map[string]bool
	calls   []string

	incrementErr error
	unlocked     []models.Achievement
}

func newFakeAPI() *fakeAPI {
	fajr := models.Habit{ID: primitive.NewObjectID(), Name: "Fajr Prayer", Category: models.CategoryMorning, PointValue: 10}
	quran := models.Habit{ID: primitive.NewObjectID(), Name: "Quran Reading", Category: models.CategoryAllDay, PointValue: 20}
	return &fakeAPI{
		habits:  []models.Habit{fajr, quran},
		profile: models.Profile{UserID: "user-1", Username: "amina", Points: 0, Streak: 0},
		logs:    map[string]bool{},
	}
}

func (f *fakeAPI) logKey(habitID, date string) string { return habitID + "|" + date }

func (f *fakeAPI) GetHabits(ctx context.Context) ([]models.Habit, error) {
	return append([]models.Habit(nil), f.habits...), nil
}

func (f *fakeAPI) GetProfile(ctx context.Context) (*models.Profile, error) {
	p := f.profile
	return &p, nil
}

func (f *fakeAPI) GetLogs(ctx context.Context, date string) ([]models.HabitLog, error) {
	var logs []models.HabitLog
	for _, h := range f.habits {
		if f.logs[f.logKey(h.ID.Hex(), date)] {
			logs = append(logs, models.HabitLog{HabitID: h.ID, Date: date})
		}
	}
	return logs, nil
}

func (f *fakeAPI) CreateLog(ctx context.Context, userID, habitID, date string) error {
	f.calls = append(f.calls, "create")
	key := f.logKey(habitID, date)
	if f.logs[key] {
		return models.ErrDuplicateLog
	}
	f.logs[key] = true
	return nil
}

func (f *fakeAPI) DeleteLog(ctx context.Context, userID, habitID, date string) error {
	f.calls = append(f.calls, "delete")
	delete(f.logs, f.logKey(habitID, date))
	return nil
}

func (f *fakeAPI) IncrementPoints(ctx context.Context, userID string, amount int) error {
	f.calls = append(f.calls, "increment")
	if f.incrementErr != nil {
		return f.incrementErr
	}
	f.profile.Points += amount
	if f.profile.Points < 0 {
		f.profile.Points = 0
	}
	return nil
}

func (f *fakeAPI) UpdateStreak(ctx context.Context, userID string) error {
	f.calls = append(f.calls, "streak")
	return nil
}

func (f *fakeAPI) CheckAchievements(ctx context.Context, userID string) ([]models.Achievement, error) {
	f.calls = append(f.calls, "check")
	unlocked := f.unlocked
	f.unlocked = nil
	return unlocked, nil
}

func newTestChecklist(t *testing.T, api *fakeAPI, online bool) (*Checklist, *offline.Engine) {
	t.Helper()
	store := offline.NewStore(filepath.Join(t.TempDir(), "pending_queue.json"))
	engine := offline.NewEngine(store, api, func() (string, error) { return "user-1", nil })
	cl := NewChecklist(api, engine, func() bool { return online })
	require.NoError(t, cl.Refresh(context.Background()))
	return cl, engine
}

func TestToggleRejectsPointsUnderflow(t *testing.T) {
	api := newFakeAPI()
	api.profile.Points = 5
	api.logs[api.logKey(api.habits[0].ID.Hex(), utils.Today())] = true
	cl, engine := newTestChecklist(t, api, true)
	calls := len(api.calls)

	_, err := cl.Toggle(context.Background(), "Fajr Prayer")
	assert.ErrorIs(t, err, ErrPointsUnderflow)

	// Rejected before any I/O: nothing hit the server or the queue, and
	// the local view is unchanged.
	assert.Len(t, api.calls, calls)
	assert.False(t, engine.HasPending())
	assert.True(t, cl.Done(api.habits[0].ID.Hex()))
	assert.Equal(t, 5, cl.Profile().Points)
}

func TestToggleUnknownHabit(t *testing.T) {
	api := newFakeAPI()
	cl, _ := newTestChecklist(t, api, true)

	_, err := cl.Toggle(context.Background(), "Basket Weaving")
	assert.ErrorIs(t, err, ErrUnknownHabit)
}

func TestToggleOnlineComplete(t *testing.T) {
	api := newFakeAPI()
	api.unlocked = []models.Achievement{{Name: "First Steps"}}
	cl, engine := newTestChecklist(t, api, true)

	result, err := cl.Toggle(context.Background(), "Fajr Prayer")
	require.NoError(t, err)

	assert.True(t, result.Done)
	assert.False(t, result.Queued)
	require.Len(t, result.Unlocked, 1)
	assert.Equal(t, "First Steps", result.Unlocked[0].Name)

	// The achievement check must come after the points and streak writes.
	assert.Equal(t, []string{"create", "increment", "streak", "check"}, api.calls)
	assert.Equal(t, 10, cl.Profile().Points)
	assert.True(t, cl.Done(api.habits[0].ID.Hex()))
	assert.False(t, engine.HasPending())
}

func TestToggleOnlineUncheckSkipsAchievements(t *testing.T) {
	api := newFakeAPI()
	api.profile.Points = 10
	api.logs[api.logKey(api.habits[0].ID.Hex(), utils.Today())] = true
	cl, _ := newTestChecklist(t, api, true)

	result, err := cl.Toggle(context.Background(), "Fajr Prayer")
	require.NoError(t, err)

	assert.False(t, result.Done)
	assert.Empty(t, result.Unlocked)
	assert.Equal(t, []string{"delete", "increment", "streak"}, api.calls)
	assert.Equal(t, 0, cl.Profile().Points)
}

func TestToggleOfflineQueues(t *testing.T) {
	api := newFakeAPI()
	cl, engine := newTestChecklist(t, api, false)

	result, err := cl.Toggle(context.Background(), "Quran Reading")
	require.NoError(t, err)

	assert.True(t, result.Queued)
	assert.True(t, result.Done)

	// Optimistic view updated locally; the server saw nothing.
	assert.Equal(t, 20, cl.Profile().Points)
	assert.True(t, cl.Done(api.habits[1].ID.Hex()))
	assert.Empty(t, api.calls)
	assert.True(t, engine.HasPending())
}

func TestToggleOfflineBackAndForthCollapses(t *testing.T) {
	api := newFakeAPI()
	cl, engine := newTestChecklist(t, api, false)

	_, err := cl.Toggle(context.Background(), "Quran Reading")
	require.NoError(t, err)
	_, err = cl.Toggle(context.Background(), "Quran Reading")
	require.NoError(t, err)

	// The two intents cancel: the queue is empty and points netted out.
	assert.False(t, engine.HasPending())
	assert.Equal(t, 0, cl.Profile().Points)
	assert.False(t, cl.Done(api.habits[1].ID.Hex()))
}

func TestToggleOnlineFailureRollsBack(t *testing.T) {
	api := newFakeAPI()
	api.incrementErr = errDown
	cl, _ := newTestChecklist(t, api, true)

	_, err := cl.Toggle(context.Background(), "Fajr Prayer")
	assert.ErrorIs(t, err, errDown)

	// The optimistic change was reconciled away by the refetch.
	assert.Equal(t, 0, cl.Profile().Points)
	assert.True(t, cl.Done(api.habits[0].ID.Hex()))
}

func TestToggleOnlineDuplicateLogTolerated(t *testing.T) {
	api := newFakeAPI()
	cl, _ := newTestChecklist(t, api, true)

	// A log row already exists server-side but the local view missed it.
	api.logs[api.logKey(api.habits[0].ID.Hex(), utils.Today())] = true
	cl.done = map[string]bool{}

	result, err := cl.Toggle(context.Background(), "Fajr Prayer")
	require.NoError(t, err)
	assert.True(t, result.Done)
	assert.Equal(t, []string{"create", "increment", "streak", "check"}, api.calls)
}

func TestHabitsOrderedByCategoryAndPrayerTime(t *testing.T) {
	api := newFakeAPI()
	api.habits = []models.Habit{
		{ID: primitive.NewObjectID(), Name: "Charity", Category: models.CategoryAllDay, PointValue: 15},
		{ID: primitive.NewObjectID(), Name: "Taraweeh Prayer", Category: models.CategoryEvening, PointValue: 15},
		{ID: primitive.NewObjectID(), Name: "Asr Prayer", Category: models.CategoryEvening, PointValue: 10},
		{ID: primitive.NewObjectID(), Name: "Dhuhr Prayer", Category: models.CategoryMorning, PointValue: 10},
		{ID: primitive.NewObjectID(), Name: "Fajr Prayer", Category: models.CategoryMorning, PointValue: 10},
	}
	cl, _ := newTestChecklist(t, api, true)

	var names []string
	for _, h := range cl.Habits() {
		names = append(names, h.Name)
	}
	assert.Equal(t, []string{"Fajr Prayer", "Dhuhr Prayer", "Asr Prayer", "Taraweeh Prayer", "Charity"}, names)
}

func TestTodayPoints(t *testing.T) {
	api := newFakeAPI()
	api.logs[api.logKey(api.habits[0].ID.Hex(), utils.Today())] = true
	cl, _ := newTestChecklist(t, api, true)

	earned, max := cl.TodayPoints()
	assert.Equal(t, 10, earned)
	assert.Equal(t, 30, max)
}

func TestToggleUncheckAtExactBalance(t *testing.T) {
	// An uncheck that is allowed (points exactly cover it) must go through.
	api := newFakeAPI()
	api.profile.Points = 10
	api.logs[api.logKey(api.habits[0].ID.Hex(), utils.Today())] = true
	cl, _ := newTestChecklist(t, api, true)

	result, err := cl.Toggle(context.Background(), "Fajr Prayer")
	require.NoError(t, err)
	assert.False(t, result.Done)
	assert.Equal(t, 0, cl.Profile().Points)
}
