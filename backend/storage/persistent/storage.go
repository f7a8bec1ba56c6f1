package storage

import (
	"context"
	"fmt"

	"github.com/nuhaid/barakah/models"
)

// DeleteResult represents the result of a deletion operation in MongoDB,
// specifically the count of documents deleted.
type DeleteResult struct {
	DeletedCount int64
}

// StorageInterface defines the set of methods that any persistent storage
// backend needs to implement.
type StorageInterface interface {
	// Establishes a connection to the storage backend.
	Connect(dbName, uri string) error
	// Disconnects from the storage backend.
	Disconnect() error

	// Adds a new user to the storage backend.
	AddUser(ctx context.Context, user *models.User) (*models.User, error)
	// Finds a user in the storage backend using a filter.
	FindUser(ctx context.Context, filter interface{}) (*models.User, error)
	// Adjusts a user's point total by amount, flooring the result at zero.
	IncrementPoints(ctx context.Context, userID string, amount int) (*models.User, error)
	// Overwrites a user's current streak.
	SetStreak(ctx context.Context, userID string, streak int) error

	// Adds a habit to the shared master list.
	AddHabit(ctx context.Context, habit *models.Habit) (*models.Habit, error)
	// Lists the shared habit master list.
	ListHabits(ctx context.Context) ([]models.Habit, error)
	// Returns the number of habits matching a filter.
	HabitCount(ctx context.Context, filter interface{}) (int64, error)

	// Inserts a completion log; returns models.ErrDuplicateLog when a log
	// for the same user, habit and date already exists.
	AddHabitLog(ctx context.Context, log *models.HabitLog) (*models.HabitLog, error)
	// Deletes completion logs using a filter. Deleting nothing is not an error.
	DeleteHabitLog(ctx context.Context, filter interface{}) (*DeleteResult, error)
	// Finds completion logs using a filter.
	FindHabitLogs(ctx context.Context, filter interface{}) ([]models.HabitLog, error)

	// Adds an achievement definition.
	AddAchievement(ctx context.Context, achievement *models.Achievement) (*models.Achievement, error)
	// Lists every achievement definition.
	ListAchievements(ctx context.Context) ([]models.Achievement, error)
	// Returns the number of achievement definitions matching a filter.
	AchievementCount(ctx context.Context, filter interface{}) (int64, error)
	// Records an achievement as earned; returns models.ErrDuplicateLog when
	// the user already earned it.
	AddUserAchievement(ctx context.Context, earned *models.UserAchievement) (*models.UserAchievement, error)
	// Finds earned-achievement records using a filter.
	FindUserAchievements(ctx context.Context, filter interface{}) ([]models.UserAchievement, error)
}

// NewStorage creates a new StorageInterface with a MongoDB backend,
// using the provided URI to connect to the MongoDB server.
func NewStorage(dbName, uri string) (StorageInterface, error) {
	storage := NewMongoStorage()
	err := storage.Connect(dbName, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return storage, nil
}
