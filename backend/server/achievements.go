package server

import (
	"context"
	"errors"
	"log"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nuhaid/barakah/backend/queue"
	storage "github.com/nuhaid/barakah/backend/storage/persistent"
	"github.com/nuhaid/barakah/models"
)

// defaultHabits is the Ramadan habit master list seeded on first start.
var defaultHabits = []models.Habit{
	{Name: "Fajr Prayer", Category: models.CategoryMorning, PointValue: 10, Icon: "sunrise", IsDefault: true},
	{Name: "Dhuhr Prayer", Category: models.CategoryMorning, PointValue: 10, Icon: "sun", IsDefault: true},
	{Name: "Morning Dhikr", Category: models.CategoryMorning, PointValue: 5, Icon: "sparkles", IsDefault: true},
	{Name: "Asr Prayer", Category: models.CategoryEvening, PointValue: 10, Icon: "sun", IsDefault: true},
	{Name: "Maghrib Prayer", Category: models.CategoryEvening, PointValue: 10, Icon: "sunset", IsDefault: true},
	{Name: "Isha Prayer", Category: models.CategoryEvening, PointValue: 10, Icon: "moon", IsDefault: true},
	{Name: "Taraweeh Prayer", Category: models.CategoryEvening, PointValue: 15, Icon: "moon", IsDefault: true},
	{Name: "Evening Dhikr", Category: models.CategoryEvening, PointValue: 5, Icon: "sparkles", IsDefault: true},
	{Name: "Fasting", Category: models.CategoryAllDay, PointValue: 25, Icon: "star", IsDefault: true},
	{Name: "Quran Reading", Category: models.CategoryAllDay, PointValue: 20, Icon: "book-open", IsDefault: true},
	{Name: "Charity", Category: models.CategoryAllDay, PointValue: 15, Icon: "heart", IsDefault: true},
}

// defaultAchievements are the seeded achievement definitions.
var defaultAchievements = []models.Achievement{
	{Name: "First Steps", Description: "Earn your first 10 points", RequirementType: models.RequirementPoints, RequirementValue: 10, Icon: "footprints"},
	{Name: "Getting Started", Description: "Earn 50 points", RequirementType: models.RequirementPoints, RequirementValue: 50, Icon: "seedling"},
	{Name: "Century Club", Description: "Earn 100 points", RequirementType: models.RequirementPoints, RequirementValue: 100, Icon: "trophy"},
	{Name: "Point Master", Description: "Earn 500 points", RequirementType: models.RequirementPoints, RequirementValue: 500, Icon: "crown"},
	{Name: "Three Day Streak", Description: "Complete habits 3 days in a row", RequirementType: models.RequirementStreak, RequirementValue: 3, Icon: "flame"},
	{Name: "Week of Light", Description: "Complete habits 7 days in a row", RequirementType: models.RequirementStreak, RequirementValue: 7, Icon: "lantern"},
	{Name: "Half Month Strong", Description: "Complete habits 15 days in a row", RequirementType: models.RequirementStreak, RequirementValue: 15, Icon: "calendar"},
	{Name: "The Full Month", Description: "Complete habits 30 days in a row", RequirementType: models.RequirementStreak, RequirementValue: 30, Icon: "medal", Secret: true},
}

// SeedDefaults inserts the default habits and achievements when their
// collections are empty. Safe to call on every start.
func SeedDefaults(ctx context.Context, s storage.StorageInterface) error {
	count, err := s.HabitCount(ctx, bson.M{})
	if err != nil {
		return err
	}
	if count == 0 {
		for i := range defaultHabits {
			habit := defaultHabits[i]
			if _, err := s.AddHabit(ctx, &habit); err != nil {
				return err
			}
		}
	}

	count, err = s.AchievementCount(ctx, bson.M{})
	if err != nil {
		return err
	}
	if count == 0 {
		for i := range defaultAchievements {
			achievement := defaultAchievements[i]
			if _, err := s.AddAchievement(ctx, &achievement); err != nil {
				return err
			}
		}
	}

	return nil
}

// meetsRequirement reports whether the user's current totals satisfy an
// achievement's requirement.
func meetsRequirement(a models.Achievement, user *models.User) bool {
	switch a.RequirementType {
	case models.RequirementPoints:
		return user.Points >= a.RequirementValue
	case models.RequirementStreak:
		return user.Streak >= a.RequirementValue
	default:
		return false
	}
}

// EvaluateAchievements checks every unearned achievement against the
// user's current points and streak, records the ones now satisfied, and
// returns only those newly unlocked. The unique index on earned records
// makes a concurrent double-unlock collapse into one. Each unlock is also
// announced on the notification queue; a publish failure is logged but
// never fails the unlock itself.
func EvaluateAchievements(ctx context.Context, s storage.StorageInterface, unlockQueue *queue.Queue, userID primitive.ObjectID) ([]models.Achievement, error) {
	user, err := s.FindUser(ctx, bson.M{"_id": userID})
	if err != nil {
		return nil, err
	}

	earnedRecords, err := s.FindUserAchievements(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	earned := make(map[primitive.ObjectID]struct{}, len(earnedRecords))
	for _, r := range earnedRecords {
		earned[r.AchievementID] = struct{}{}
	}

	achievements, err := s.ListAchievements(ctx)
	if err != nil {
		return nil, err
	}

	var unlocked []models.Achievement
	for _, a := range achievements {
		if _, ok := earned[a.ID]; ok {
			continue
		}
		if !meetsRequirement(a, user) {
			continue
		}

		_, err := s.AddUserAchievement(ctx, &models.UserAchievement{
			UserID:        userID,
			AchievementID: a.ID,
		})
		if err != nil {
			if errors.Is(err, models.ErrDuplicateLog) {
				// Another request unlocked it first.
				continue
			}
			return nil, err
		}

		unlocked = append(unlocked, a)

		if unlockQueue != nil && user.Email != "" {
			msg := &queue.UnlockMessage{
				ID:          userID.Hex() + "_" + a.ID.Hex(),
				Username:    user.Username,
				Achievement: a.Name,
				To:          user.Email,
			}
			if err := queue.PublishUnlock(msg, unlockQueue); err != nil {
				log.Printf("failed to publish unlock notification: %v", err)
			}
		}
	}

	return unlocked, nil
}
