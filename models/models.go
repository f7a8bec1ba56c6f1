package models

import (
    "errors"
    "time"
    "go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrDuplicateLog is returned when a habit log for the same user, habit and
// date already exists. Replaying a completion against an existing log is not
// a failure; callers treat this error as success.
var ErrDuplicateLog = errors.New("habit log already exists")

// Habit categories, matching the checklist sections of the app.
const (
    CategoryMorning = "Morning"
    CategoryEvening = "Evening"
    CategoryAllDay  = "All Day"
)

// Achievement requirement types.
const (
    RequirementPoints = "points"
    RequirementStreak = "streak"
)

type User struct {
    ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
    Username     string             `bson:"username" json:"username"`
    PasswordHash string             `bson:"password_hash" json:"-"`
    Email        string             `bson:"email" json:"email"`
    Points       int                `bson:"points" json:"points"`
    Streak       int                `bson:"streak" json:"streak"`
}

// Habit is an entry of the shared habit master list. Habits are not owned by
// users; completion state lives in HabitLog rows.
type Habit struct {
    ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
    Name       string             `bson:"name" json:"name"`
    Category   string             `bson:"category" json:"category"`
    PointValue int                `bson:"point_value" json:"pointValue"`
    Icon       string             `bson:"icon,omitempty" json:"icon,omitempty"`
    IsDefault  bool               `bson:"is_default" json:"isDefault"`
}

// HabitLog records that a user completed a habit on a calendar day.
// Date is a plain "YYYY-MM-DD" string; a unique compound index on
// (user_id, habit_id, date) guarantees at most one log per habit per day.
type HabitLog struct {
    ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
    UserID    primitive.ObjectID `bson:"user_id" json:"userId"`
    HabitID   primitive.ObjectID `bson:"habit_id" json:"habitId"`
    Date      string             `bson:"date" json:"date"`
    CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
}

type Achievement struct {
    ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
    Name             string             `bson:"name" json:"name"`
    Description      string             `bson:"description" json:"description"`
    Icon             string             `bson:"icon,omitempty" json:"icon,omitempty"`
    RequirementType  string             `bson:"requirement_type" json:"requirementType"`
    RequirementValue int                `bson:"requirement_value" json:"requirementValue"`
    Secret           bool               `bson:"secret" json:"secret"`
}

// UserAchievement marks an achievement as earned by a user. The unique
// (user_id, achievement_id) index makes unlocking idempotent.
type UserAchievement struct {
    ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
    UserID        primitive.ObjectID `bson:"user_id" json:"userId"`
    AchievementID primitive.ObjectID `bson:"achievement_id" json:"achievementId"`
    EarnedAt      time.Time          `bson:"earned_at" json:"earnedAt"`
}

// Profile is the API view of a user's scoreboard, returned by GET /profile.
type Profile struct {
    UserID   string `json:"userId"`
    Username string `json:"username"`
    Points   int    `json:"points"`
    Streak   int    `json:"streak"`
}

// AchievementStatus is the API view of an achievement for a user, returned
// by GET /achievements.
type AchievementStatus struct {
    Achievement
    Earned   bool       `json:"earned"`
    EarnedAt *time.Time `json:"earnedAt,omitempty"`
}
