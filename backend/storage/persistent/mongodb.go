package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nuhaid/barakah/models"
)

// MongoStorage is a struct representing a MongoDB storage.
// It provides an interface to perform CRUD operations on the collections in the MongoDB database.
type MongoStorage struct {
	client *mongo.Client
	dbName string
}

// NewMongoStorage creates a new instance of MongoStorage.
// This function doesn't establish a connection to the MongoDB server.
// To connect to the server, use the Connect method of the returned MongoStorage instance.
func NewMongoStorage() *MongoStorage {
	return &MongoStorage{}
}

// isDuplicateKey reports whether err is a unique-index violation.
func isDuplicateKey(err error) bool {
	var writeException mongo.WriteException
	if errors.As(err, &writeException) {
		for _, writeError := range writeException.WriteErrors {
			if writeError.Code == 11000 {
				return true
			}
		}
	}
	return false
}

// Connect establishes a connection to the MongoDB server at the given URI and database name.
// Sets up indexes and unique constraints as necessary.
// Returns an error if any issues are encountered.
func (m *MongoStorage) Connect(dbName, uri string) error {

	// Set a timeout for the connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("error connecting to MongoDB: %v", err)
	}

	m.client = client
	m.dbName = dbName

	// Initializing users collection
	usersCollection := m.client.Database(m.dbName).Collection("users")

	// Create an index on the "email" field. This is to ensure that every user has a unique email.
	emailIndexModel := mongo.IndexModel{
		Keys: bson.M{
			"email": 1, // 1 for ascending order
		},
		Options: options.Index().SetUnique(true),
	}

	_, err = usersCollection.Indexes().CreateOne(ctx, emailIndexModel)
	if err != nil {
		return fmt.Errorf("error creating email index: %v", err)
	}

	// Create an index on the "username" field. This is to ensure that every user has a unique username.
	usernameIndexModel := mongo.IndexModel{
		Keys: bson.M{
			"username": 1,
		},
		Options: options.Index().SetUnique(true),
	}

	_, err = usersCollection.Indexes().CreateOne(ctx, usernameIndexModel)
	if err != nil {
		return fmt.Errorf("error creating username index: %v", err)
	}

	// Initializing habits collection. Habit names are unique across the
	// shared master list.
	habitsCollection := m.client.Database(m.dbName).Collection("habits")

	habitNameIndexModel := mongo.IndexModel{
		Keys: bson.M{
			"name": 1,
		},
		Options: options.Index().SetUnique(true),
	}

	_, err = habitsCollection.Indexes().CreateOne(ctx, habitNameIndexModel)
	if err != nil {
		return fmt.Errorf("error creating habit name index: %v", err)
	}

	// Initializing habitLogs collection. The compound unique index is the
	// at-most-one-log-per-habit-per-day guarantee the whole sync protocol
	// leans on: replaying a completion twice trips error 11000 instead of
	// double-recording it.
	habitLogsCollection := m.client.Database(m.dbName).Collection("habitLogs")

	logIndexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "habit_id", Value: 1},
			{Key: "date", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}

	_, err = habitLogsCollection.Indexes().CreateOne(ctx, logIndexModel)
	if err != nil {
		return fmt.Errorf("error creating habit log index: %v", err)
	}

	// A per-user index speeds up streak recomputation queries.
	userIdIndexModel := mongo.IndexModel{
		Keys: bson.M{
			"user_id": 1,
		},
		Options: options.Index(),
	}

	_, err = habitLogsCollection.Indexes().CreateOne(ctx, userIdIndexModel)
	if err != nil {
		return fmt.Errorf("error creating user_id index: %v", err)
	}

	// Initializing achievements collection
	achievementsCollection := m.client.Database(m.dbName).Collection("achievements")

	achievementNameIndexModel := mongo.IndexModel{
		Keys: bson.M{
			"name": 1,
		},
		Options: options.Index().SetUnique(true),
	}

	_, err = achievementsCollection.Indexes().CreateOne(ctx, achievementNameIndexModel)
	if err != nil {
		return fmt.Errorf("error creating achievement name index: %v", err)
	}

	// Initializing userAchievements collection. The unique compound index
	// makes unlocking idempotent.
	userAchievementsCollection := m.client.Database(m.dbName).Collection("userAchievements")

	earnedIndexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "achievement_id", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}

	_, err = userAchievementsCollection.Indexes().CreateOne(ctx, earnedIndexModel)
	if err != nil {
		return fmt.Errorf("error creating user achievement index: %v", err)
	}

	return nil
}

// Disconnect closes the connection to the MongoDB server.
// It should be called when the MongoStorage instance is no longer needed.
// Returns an error if the disconnection process fails.
func (m *MongoStorage) Disconnect() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := m.client.Disconnect(ctx)
	if err != nil {
		return fmt.Errorf("error disconnecting from MongoDB: %v", err)
	}

	return nil
}

// AddUser adds a new user document to the 'users' collection.
// Returns the added user instance and an error if the insert operation fails.
func (m *MongoStorage) AddUser(ctx context.Context, user *models.User) (*models.User, error) {
	collection := m.client.Database(m.dbName).Collection("users")
	result, err := collection.InsertOne(ctx, user)
	if err != nil {
		return nil, err
	}

	user.ID = result.InsertedID.(primitive.ObjectID)
	return user, nil
}

// FindUser finds a user document in the 'users' collection that matches the given filter.
// Returns the found user as a User instance and an error if the find operation fails.
func (m *MongoStorage) FindUser(ctx context.Context, filter interface{}) (*models.User, error) {
	collection := m.client.Database(m.dbName).Collection("users")
	result := collection.FindOne(ctx, filter)
	user := &models.User{}
	err := result.Decode(user)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// IncrementPoints adjusts a user's point total by amount, which may be
// negative. The stored total never drops below zero: a negative result is
// corrected back to zero before the updated user is returned.
func (m *MongoStorage) IncrementPoints(ctx context.Context, userID string, amount int) (*models.User, error) {
	objectID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, err
	}

	collection := m.client.Database(m.dbName).Collection("users")

	result, err := collection.UpdateOne(ctx, bson.M{"_id": objectID}, bson.M{"$inc": bson.M{"points": amount}})
	if err != nil {
		return nil, err
	}
	if result.MatchedCount == 0 {
		return nil, errors.New("no user found to update")
	}

	_, err = collection.UpdateOne(ctx,
		bson.M{"_id": objectID, "points": bson.M{"$lt": 0}},
		bson.M{"$set": bson.M{"points": 0}},
	)
	if err != nil {
		return nil, err
	}

	return m.FindUser(ctx, bson.M{"_id": objectID})
}

// SetStreak overwrites a user's current streak.
func (m *MongoStorage) SetStreak(ctx context.Context, userID string, streak int) error {
	objectID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return err
	}

	collection := m.client.Database(m.dbName).Collection("users")
	result, err := collection.UpdateOne(ctx, bson.M{"_id": objectID}, bson.M{"$set": bson.M{"streak": streak}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return errors.New("no user found to update")
	}
	return nil
}

// AddHabit adds a habit to the shared master list.
// Returns the added habit instance and an error if the insert operation fails.
func (m *MongoStorage) AddHabit(ctx context.Context, habit *models.Habit) (*models.Habit, error) {
	if len(habit.Name) < 3 || habit.PointValue <= 0 || habit.Category == "" {
		return nil, errors.New("invalid habit fields")
	}

	collection := m.client.Database(m.dbName).Collection("habits")
	result, err := collection.InsertOne(ctx, habit)
	if err != nil {
		if isDuplicateKey(err) {
			return nil, fmt.Errorf("a habit with the name '%s' already exists", habit.Name)
		}
		return nil, err
	}
	habit.ID = result.InsertedID.(primitive.ObjectID)
	return habit, nil
}

// ListHabits returns the shared habit master list.
func (m *MongoStorage) ListHabits(ctx context.Context) ([]models.Habit, error) {
	collection := m.client.Database(m.dbName).Collection("habits")
	cursor, err := collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var habits []models.Habit
	for cursor.Next(ctx) {
		var habit models.Habit
		if err := cursor.Decode(&habit); err != nil {
			return nil, err
		}
		habits = append(habits, habit)
	}

	return habits, nil
}

// HabitCount returns the number of documents in the 'habits' collection that match the given filter.
func (m *MongoStorage) HabitCount(ctx context.Context, filter interface{}) (int64, error) {
	collection := m.client.Database(m.dbName).Collection("habits")
	return collection.CountDocuments(ctx, filter)
}

// AddHabitLog inserts a completion log row. The unique (user_id, habit_id,
// date) index rejects a second log for the same day; that case surfaces as
// models.ErrDuplicateLog so callers can treat the replay as already done.
func (m *MongoStorage) AddHabitLog(ctx context.Context, log *models.HabitLog) (*models.HabitLog, error) {
	if log.UserID.IsZero() || log.HabitID.IsZero() || log.Date == "" {
		return nil, errors.New("invalid habit log fields")
	}

	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	collection := m.client.Database(m.dbName).Collection("habitLogs")
	result, err := collection.InsertOne(ctx, log)
	if err != nil {
		if isDuplicateKey(err) {
			return nil, models.ErrDuplicateLog
		}
		return nil, err
	}
	log.ID = result.InsertedID.(primitive.ObjectID)
	return log, nil
}

// DeleteHabitLog deletes completion logs that match the given filter.
// Matching nothing is not an error; the result carries the deleted count.
func (m *MongoStorage) DeleteHabitLog(ctx context.Context, filter interface{}) (*DeleteResult, error) {
	collection := m.client.Database(m.dbName).Collection("habitLogs")
	result, err := collection.DeleteMany(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &DeleteResult{DeletedCount: result.DeletedCount}, nil
}

// FindHabitLogs finds completion logs that match the given filter.
func (m *MongoStorage) FindHabitLogs(ctx context.Context, filter interface{}) ([]models.HabitLog, error) {
	collection := m.client.Database(m.dbName).Collection("habitLogs")
	cursor, err := collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var logs []models.HabitLog
	for cursor.Next(ctx) {
		var log models.HabitLog
		if err := cursor.Decode(&log); err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}

	return logs, nil
}

// AddAchievement adds an achievement definition.
func (m *MongoStorage) AddAchievement(ctx context.Context, achievement *models.Achievement) (*models.Achievement, error) {
	collection := m.client.Database(m.dbName).Collection("achievements")
	result, err := collection.InsertOne(ctx, achievement)
	if err != nil {
		if isDuplicateKey(err) {
			return nil, fmt.Errorf("an achievement with the name '%s' already exists", achievement.Name)
		}
		return nil, err
	}
	achievement.ID = result.InsertedID.(primitive.ObjectID)
	return achievement, nil
}

// ListAchievements returns every achievement definition.
func (m *MongoStorage) ListAchievements(ctx context.Context) ([]models.Achievement, error) {
	collection := m.client.Database(m.dbName).Collection("achievements")
	cursor, err := collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var achievements []models.Achievement
	for cursor.Next(ctx) {
		var achievement models.Achievement
		if err := cursor.Decode(&achievement); err != nil {
			return nil, err
		}
		achievements = append(achievements, achievement)
	}

	return achievements, nil
}

// AchievementCount returns the number of documents in the 'achievements' collection that match the given filter.
func (m *MongoStorage) AchievementCount(ctx context.Context, filter interface{}) (int64, error) {
	collection := m.client.Database(m.dbName).Collection("achievements")
	return collection.CountDocuments(ctx, filter)
}

// AddUserAchievement records an achievement as earned. The unique
// (user_id, achievement_id) index rejects a second unlock; that case
// surfaces as models.ErrDuplicateLog.
func (m *MongoStorage) AddUserAchievement(ctx context.Context, earned *models.UserAchievement) (*models.UserAchievement, error) {
	if earned.EarnedAt.IsZero() {
		earned.EarnedAt = time.Now()
	}

	collection := m.client.Database(m.dbName).Collection("userAchievements")
	result, err := collection.InsertOne(ctx, earned)
	if err != nil {
		if isDuplicateKey(err) {
			return nil, models.ErrDuplicateLog
		}
		return nil, err
	}
	earned.ID = result.InsertedID.(primitive.ObjectID)
	return earned, nil
}

// FindUserAchievements finds earned-achievement records that match the given filter.
func (m *MongoStorage) FindUserAchievements(ctx context.Context, filter interface{}) ([]models.UserAchievement, error) {
	collection := m.client.Database(m.dbName).Collection("userAchievements")
	cursor, err := collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var earned []models.UserAchievement
	for cursor.Next(ctx) {
		var ua models.UserAchievement
		if err := cursor.Decode(&ua); err != nil {
			return nil, err
		}
		earned = append(earned, ua)
	}

	return earned, nil
}
