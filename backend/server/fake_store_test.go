package server

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	storage "github.com/nuhaid/barakah/backend/storage/persistent"
	"github.com/nuhaid/barakah/models"
)

// fakeStore is an in-memory StorageInterface used to test the handlers and
// the achievement evaluation without a running database. It honors the same
// uniqueness rules as the real storage layer.
type fakeStore struct {
	mu           sync.Mutex
	users        map[primitive.ObjectID]*models.User
	habits       []models.Habit
	logs         []models.HabitLog
	achievements []models.Achievement
	earned       []models.UserAchievement

	incrementErr error
}

var _ storage.StorageInterface = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[primitive.ObjectID]*models.User)}
}

func (f *fakeStore) Connect(dbName, uri string) error { return nil }
func (f *fakeStore) Disconnect() error                { return nil }

func (f *fakeStore) AddUser(ctx context.Context, user *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user.ID = primitive.NewObjectID()
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeStore) FindUser(ctx context.Context, filter interface{}) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	query, _ := filter.(bson.M)
	for _, u := range f.users {
		if id, ok := query["_id"].(primitive.ObjectID); ok && u.ID != id {
			continue
		}
		if username, ok := query["username"].(string); ok && u.Username != username {
			continue
		}
		if email, ok := query["email"].(string); ok && u.Email != email {
			continue
		}
		copied := *u
		return &copied, nil
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeStore) IncrementPoints(ctx context.Context, userID string, amount int) (*models.User, error) {
	if f.incrementErr != nil {
		return nil, f.incrementErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	u.Points += amount
	if u.Points < 0 {
		u.Points = 0
	}
	copied := *u
	return &copied, nil
}

func (f *fakeStore) SetStreak(ctx context.Context, userID string, streak int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return err
	}
	u, ok := f.users[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	u.Streak = streak
	return nil
}

func (f *fakeStore) AddHabit(ctx context.Context, habit *models.Habit) (*models.Habit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	habit.ID = primitive.NewObjectID()
	f.habits = append(f.habits, *habit)
	return habit, nil
}

func (f *fakeStore) ListHabits(ctx context.Context) ([]models.Habit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Habit(nil), f.habits...), nil
}

func (f *fakeStore) HabitCount(ctx context.Context, filter interface{}) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.habits)), nil
}

func (f *fakeStore) AddHabitLog(ctx context.Context, habitLog *models.HabitLog) (*models.HabitLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.logs {
		if existing.UserID == habitLog.UserID && existing.HabitID == habitLog.HabitID && existing.Date == habitLog.Date {
			return nil, models.ErrDuplicateLog
		}
	}
	habitLog.ID = primitive.NewObjectID()
	f.logs = append(f.logs, *habitLog)
	return habitLog, nil
}

func (f *fakeStore) DeleteHabitLog(ctx context.Context, filter interface{}) (*storage.DeleteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	query, _ := filter.(bson.M)
	var kept []models.HabitLog
	var deleted int64
	for _, habitLog := range f.logs {
		if matchesLog(habitLog, query) {
			deleted++
			continue
		}
		kept = append(kept, habitLog)
	}
	f.logs = kept
	return &storage.DeleteResult{DeletedCount: deleted}, nil
}

func (f *fakeStore) FindHabitLogs(ctx context.Context, filter interface{}) ([]models.HabitLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	query, _ := filter.(bson.M)
	var found []models.HabitLog
	for _, habitLog := range f.logs {
		if matchesLog(habitLog, query) {
			found = append(found, habitLog)
		}
	}
	return found, nil
}

func matchesLog(habitLog models.HabitLog, query bson.M) bool {
	if id, ok := query["user_id"].(primitive.ObjectID); ok && habitLog.UserID != id {
		return false
	}
	if id, ok := query["habit_id"].(primitive.ObjectID); ok && habitLog.HabitID != id {
		return false
	}
	if date, ok := query["date"].(string); ok && habitLog.Date != date {
		return false
	}
	return true
}

func (f *fakeStore) AddAchievement(ctx context.Context, achievement *models.Achievement) (*models.Achievement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	achievement.ID = primitive.NewObjectID()
	f.achievements = append(f.achievements, *achievement)
	return achievement, nil
}

func (f *fakeStore) ListAchievements(ctx context.Context) ([]models.Achievement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Achievement(nil), f.achievements...), nil
}

func (f *fakeStore) AchievementCount(ctx context.Context, filter interface{}) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.achievements)), nil
}

func (f *fakeStore) AddUserAchievement(ctx context.Context, record *models.UserAchievement) (*models.UserAchievement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.earned {
		if existing.UserID == record.UserID && existing.AchievementID == record.AchievementID {
			return nil, models.ErrDuplicateLog
		}
	}
	record.ID = primitive.NewObjectID()
	record.EarnedAt = time.Now().UTC()
	f.earned = append(f.earned, *record)
	return record, nil
}

func (f *fakeStore) FindUserAchievements(ctx context.Context, filter interface{}) ([]models.UserAchievement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	query, _ := filter.(bson.M)
	var found []models.UserAchievement
	for _, record := range f.earned {
		if id, ok := query["user_id"].(primitive.ObjectID); ok && record.UserID != id {
			continue
		}
		found = append(found, record)
	}
	return found, nil
}
