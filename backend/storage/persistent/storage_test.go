package storage

import (
	"context"
	"os"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/nuhaid/barakah/models"
)

// The storage tests talk to a real MongoDB instance and are skipped unless
// one is configured. They run against a throwaway database.
func newTestStorage(t *testing.T) StorageInterface {
	t.Helper()
	godotenv.Load("../../.env")

	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set; skipping")
	}

	store, err := NewStorage("barakah_test", uri)
	require.NoError(t, err)
	t.Cleanup(func() { store.Disconnect() })
	return store
}

func addStorageUser(t *testing.T, store StorageInterface, username string) *models.User {
	t.Helper()
	user, err := store.AddUser(context.Background(), &models.User{
		Username: username,
		Email:    username + "@example.com",
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		store.(*MongoStorage).client.Database("barakah_test").Collection("users").
			DeleteOne(context.Background(), bson.M{"_id": user.ID})
	})
	return user
}

func TestIncrementPointsFloorsAtZero(t *testing.T) {
	store := newTestStorage(t)
	user := addStorageUser(t, store, "increment_floor_user")

	updated, err := store.IncrementPoints(context.Background(), user.ID.Hex(), 40)
	require.NoError(t, err)
	assert.Equal(t, 40, updated.Points)

	updated, err = store.IncrementPoints(context.Background(), user.ID.Hex(), -15)
	require.NoError(t, err)
	assert.Equal(t, 25, updated.Points)

	// Overshooting downward clamps to zero instead of going negative.
	updated, err = store.IncrementPoints(context.Background(), user.ID.Hex(), -100)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.Points)
}

func TestAddHabitLogRejectsSecondLogForSameDay(t *testing.T) {
	store := newTestStorage(t)
	user := addStorageUser(t, store, "duplicate_log_user")

	habit, err := store.AddHabit(context.Background(), &models.Habit{
		Name:       "storage_test_habit",
		Category:   models.CategoryMorning,
		PointValue: 10,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		db := store.(*MongoStorage).client.Database("barakah_test")
		db.Collection("habits").DeleteOne(context.Background(), bson.M{"_id": habit.ID})
		db.Collection("habitLogs").DeleteMany(context.Background(), bson.M{"user_id": user.ID})
	})

	log := &models.HabitLog{UserID: user.ID, HabitID: habit.ID, Date: "2026-03-05"}
	_, err = store.AddHabitLog(context.Background(), log)
	require.NoError(t, err)

	_, err = store.AddHabitLog(context.Background(), &models.HabitLog{
		UserID: user.ID, HabitID: habit.ID, Date: "2026-03-05",
	})
	assert.ErrorIs(t, err, models.ErrDuplicateLog)

	// A different day is fine.
	_, err = store.AddHabitLog(context.Background(), &models.HabitLog{
		UserID: user.ID, HabitID: habit.ID, Date: "2026-03-06",
	})
	assert.NoError(t, err)
}

func TestDeleteHabitLogMissingIsNotAnError(t *testing.T) {
	store := newTestStorage(t)
	user := addStorageUser(t, store, "delete_missing_user")

	result, err := store.DeleteHabitLog(context.Background(), bson.M{
		"user_id": user.ID,
		"date":    "2026-03-05",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.DeletedCount)
}

func TestAddUserAchievementIsIdempotent(t *testing.T) {
	store := newTestStorage(t)
	user := addStorageUser(t, store, "unlock_user")

	achievement, err := store.AddAchievement(context.Background(), &models.Achievement{
		Name:             "storage_test_achievement",
		RequirementType:  models.RequirementPoints,
		RequirementValue: 10,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		db := store.(*MongoStorage).client.Database("barakah_test")
		db.Collection("achievements").DeleteOne(context.Background(), bson.M{"_id": achievement.ID})
		db.Collection("userAchievements").DeleteMany(context.Background(), bson.M{"user_id": user.ID})
	})

	_, err = store.AddUserAchievement(context.Background(), &models.UserAchievement{
		UserID: user.ID, AchievementID: achievement.ID,
	})
	require.NoError(t, err)

	_, err = store.AddUserAchievement(context.Background(), &models.UserAchievement{
		UserID: user.ID, AchievementID: achievement.ID,
	})
	assert.ErrorIs(t, err, models.ErrDuplicateLog)
}
