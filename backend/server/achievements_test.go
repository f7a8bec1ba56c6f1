package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuhaid/barakah/models"
)

func seededStore(t *testing.T) *fakeStore {
	t.Helper()
	s := newFakeStore()
	require.NoError(t, SeedDefaults(context.Background(), s))
	return s
}

func addTestUser(t *testing.T, s *fakeStore, points, streak int) *models.User {
	t.Helper()
	user, err := s.AddUser(context.Background(), &models.User{
		Username: "amina",
		Email:    "amina@example.com",
		Points:   points,
		Streak:   streak,
	})
	require.NoError(t, err)
	return user
}

func unlockedNames(achievements []models.Achievement) []string {
	names := make([]string, 0, len(achievements))
	for _, a := range achievements {
		names = append(names, a.Name)
	}
	return names
}

func TestSeedDefaultsIsIdempotent(t *testing.T) {
	s := seededStore(t)
	habitCount := len(s.habits)
	achievementCount := len(s.achievements)

	require.NoError(t, SeedDefaults(context.Background(), s))

	assert.Equal(t, habitCount, len(s.habits))
	assert.Equal(t, achievementCount, len(s.achievements))
}

func TestEvaluateAchievementsBelowEveryThreshold(t *testing.T) {
	s := seededStore(t)
	user := addTestUser(t, s, 5, 1)

	unlocked, err := EvaluateAchievements(context.Background(), s, nil, user.ID)
	require.NoError(t, err)
	assert.Empty(t, unlocked)
}

func TestEvaluateAchievementsUnlocksPointThresholds(t *testing.T) {
	s := seededStore(t)
	user := addTestUser(t, s, 120, 0)

	unlocked, err := EvaluateAchievements(context.Background(), s, nil, user.ID)
	require.NoError(t, err)

	names := unlockedNames(unlocked)
	assert.Contains(t, names, "First Steps")
	assert.Contains(t, names, "Getting Started")
	assert.Contains(t, names, "Century Club")
	assert.NotContains(t, names, "Point Master")
}

func TestEvaluateAchievementsUnlocksStreakThresholds(t *testing.T) {
	s := seededStore(t)
	user := addTestUser(t, s, 0, 7)

	unlocked, err := EvaluateAchievements(context.Background(), s, nil, user.ID)
	require.NoError(t, err)

	names := unlockedNames(unlocked)
	assert.Contains(t, names, "Three Day Streak")
	assert.Contains(t, names, "Week of Light")
	assert.NotContains(t, names, "Half Month Strong")
}

func TestEvaluateAchievementsReturnsOnlyNewUnlocks(t *testing.T) {
	s := seededStore(t)
	user := addTestUser(t, s, 60, 0)

	first, err := EvaluateAchievements(context.Background(), s, nil, user.ID)
	require.NoError(t, err)
	assert.Len(t, first, 2)

	// A second evaluation without any progress unlocks nothing new.
	second, err := EvaluateAchievements(context.Background(), s, nil, user.ID)
	require.NoError(t, err)
	assert.Empty(t, second)

	// More points unlock only the next threshold.
	_, err = s.IncrementPoints(context.Background(), user.ID.Hex(), 50)
	require.NoError(t, err)

	third, err := EvaluateAchievements(context.Background(), s, nil, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Century Club"}, unlockedNames(third))
}

func TestEvaluateAchievementsSecretUnlocks(t *testing.T) {
	s := seededStore(t)
	user := addTestUser(t, s, 0, 30)

	unlocked, err := EvaluateAchievements(context.Background(), s, nil, user.ID)
	require.NoError(t, err)

	assert.Contains(t, unlockedNames(unlocked), "The Full Month")
}
