package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/IsaacStallan/vivify-wellness-platform-sub000/metrics"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

func NewID() string {
	return uuid.NewString()
}

// FitnessMetrics is the cached per-user summary of the workout history. It is
// only ever written as a whole.
type FitnessMetrics struct {
	TotalWorkouts    int        `json:"totalWorkouts" bson:"totalWorkouts"`
	ThisWeekWorkouts int        `json:"thisWeekWorkouts" bson:"thisWeekWorkouts"`
	Streak           int        `json:"streak" bson:"streak"`
	AvgPerWeek       float64    `json:"avgPerWeek" bson:"avgPerWeek"`
	FitnessScore     int        `json:"fitnessScore" bson:"fitnessScore"`
	LastUpdated      *time.Time `json:"lastUpdated" bson:"lastUpdated"`
}

func MetricsFromSnapshot(s metrics.Snapshot) FitnessMetrics {
	m := FitnessMetrics{
		TotalWorkouts:    s.TotalWorkouts,
		ThisWeekWorkouts: s.ThisWeekWorkouts,
		Streak:           s.Streak,
		AvgPerWeek:       s.AvgPerWeek,
		FitnessScore:     s.FitnessScore,
	}
	if !s.LastUpdated.IsZero() {
		t := s.LastUpdated
		m.LastUpdated = &t
	}
	return m
}

type User struct {
	ID              string         `gorm:"primaryKey;size:36" json:"id" bson:"_id"`
	Username        string         `gorm:"uniqueIndex;size:64;not null" json:"username" bson:"username"`
	DisplayName     string         `json:"displayName" bson:"displayName"`
	PasswordHash    string         `json:"-" bson:"passwordHash"`
	Role            Role           `gorm:"size:16;default:student;index" json:"role" bson:"role"`
	School          string         `gorm:"index" json:"school" bson:"school"`
	IsActive        bool           `gorm:"not null" json:"isActive" bson:"isActive"`
	TotalPoints     int            `json:"totalPoints" bson:"totalPoints"`
	TotalXP         int            `json:"totalXP" bson:"totalXP"`
	Scores          metrics.Scores `gorm:"embedded;embeddedPrefix:score_" json:"scores" bson:"scores"`
	ScoresUpdatedAt *time.Time     `json:"scoresUpdatedAt,omitempty" bson:"scoresUpdatedAt,omitempty"`
	Metrics         FitnessMetrics `gorm:"embedded;embeddedPrefix:metrics_" json:"metrics" bson:"metrics"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updatedAt" bson:"updatedAt"`
}

func (u User) Level() int {
	return metrics.Level(u.TotalXP)
}

type Workout struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id" bson:"_id"`
	UserID      string    `gorm:"size:36;index;not null" json:"userId" bson:"userId"`
	WorkoutType string    `gorm:"size:64" json:"workoutType" bson:"workoutType"`
	Points      int       `json:"points" bson:"points"`
	Duration    int       `json:"duration" bson:"duration"`
	Timestamp   time.Time `gorm:"index" json:"timestamp" bson:"timestamp"`
}

type Habit struct {
	ID            string           `gorm:"primaryKey;size:36" json:"id" bson:"_id"`
	UserID        string           `gorm:"size:36;index;not null" json:"userId" bson:"userId"`
	Name          string           `json:"name" bson:"name"`
	Category      metrics.Category `gorm:"size:32" json:"category" bson:"category"`
	Points        int              `json:"points" bson:"points"`
	Streak        int              `json:"streak" bson:"streak"`
	LongestStreak int              `json:"longestStreak" bson:"longestStreak"`
	LastCompleted *time.Time       `json:"lastCompleted,omitempty" bson:"lastCompleted,omitempty"`
	IsActive      bool             `gorm:"not null" json:"isActive" bson:"isActive"`
	CreatedAt     time.Time        `gorm:"autoCreateTime" json:"createdAt" bson:"createdAt"`
}

// HabitCompletion is one tick of a habit. Day is the local calendar day and
// is unique per habit.
type HabitCompletion struct {
	ID          string           `gorm:"primaryKey;size:36" json:"id" bson:"_id"`
	HabitID     string           `gorm:"size:36;uniqueIndex:idx_habit_day;not null" json:"habitId" bson:"habitId"`
	UserID      string           `gorm:"size:36;index;not null" json:"userId" bson:"userId"`
	Category    metrics.Category `gorm:"size:32" json:"category" bson:"category"`
	Points      int              `json:"points" bson:"points"`
	Day         string           `gorm:"size:10;uniqueIndex:idx_habit_day" json:"day" bson:"day"`
	CompletedAt time.Time        `gorm:"index" json:"completedAt" bson:"completedAt"`
}

// UserResponse is the public shape of a user. Scores is nil until the server
// has computed them at least once.
type UserResponse struct {
	ID          string          `json:"id"`
	Username    string          `json:"username"`
	DisplayName string          `json:"displayName"`
	Role        Role            `json:"role"`
	School      string          `json:"school"`
	TotalPoints int             `json:"totalPoints"`
	TotalXP     int             `json:"totalXP"`
	Level       int             `json:"level"`
	Scores      *metrics.Scores `json:"scores,omitempty"`
	Metrics     FitnessMetrics  `json:"metrics"`
	CreatedAt   time.Time       `json:"createdAt"`
}

func (u User) Response() UserResponse {
	resp := UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		School:      u.School,
		TotalPoints: u.TotalPoints,
		TotalXP:     u.TotalXP,
		Level:       u.Level(),
		Metrics:     u.Metrics,
		CreatedAt:   u.CreatedAt,
	}
	if u.ScoresUpdatedAt != nil {
		s := u.Scores
		resp.Scores = &s
	}
	return resp
}
