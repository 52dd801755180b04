// Package repository is the storage boundary. Every backend (postgres, mongo,
// in-memory) implements the same Repository interface.
package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/IsaacStallan/vivify-wellness-platform-sub000/metrics"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/models"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

// Sort keys understood by ListUsers.
const (
	SortFitness = "fitness"
	SortOverall = "overall"
	SortPoints  = "points"
	SortNewest  = "newest"
)

// UserQuery filters and orders ListUsers. Zero values mean "any".
type UserQuery struct {
	Role       models.Role
	School     string
	ActiveOnly bool
	SortBy     string
	Limit      int
}

type Repository interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	// UpdateProfile writes display name and school only.
	UpdateProfile(ctx context.Context, u *models.User) error
	ListUsers(ctx context.Context, q UserQuery) ([]models.User, error)
	CountUsers(ctx context.Context, q UserQuery) (int64, error)
	AddPoints(ctx context.Context, userID string, points, xp int) error
	// SaveScores stores category scores and stamps ScoresUpdatedAt with at.
	SaveScores(ctx context.Context, userID string, scores metrics.Scores, at time.Time) error
	// SaveMetrics overwrites the whole cached snapshot.
	SaveMetrics(ctx context.Context, userID string, m models.FitnessMetrics) error

	InsertWorkout(ctx context.Context, w *models.Workout) error
	InsertWorkouts(ctx context.Context, ws []models.Workout) error
	// WorkoutTimes returns every workout timestamp of a user, oldest first.
	WorkoutTimes(ctx context.Context, userID string) ([]time.Time, error)

	CreateHabit(ctx context.Context, h *models.Habit) error
	GetHabit(ctx context.Context, id string) (*models.Habit, error)
	ListHabits(ctx context.Context, userID string) ([]models.Habit, error)
	UpdateHabitStreak(ctx context.Context, h *models.Habit) error
	// InsertCompletion returns ErrConflict when the habit already has a
	// completion for the same day.
	InsertCompletion(ctx context.Context, c *models.HabitCompletion) error
	ListCompletions(ctx context.Context, userID string, since time.Time) ([]models.HabitCompletion, error)

	Close(ctx context.Context) error
}

func normalizeSort(s string) string {
	switch s {
	case SortOverall, SortPoints, SortNewest:
		return s
	}
	return SortFitness
}

// lessUsers is the ordering every backend must agree with.
func lessUsers(sortBy string, a, b *models.User) bool {
	switch normalizeSort(sortBy) {
	case SortOverall:
		if a.Scores.Overall != b.Scores.Overall {
			return a.Scores.Overall > b.Scores.Overall
		}
		if a.Metrics.FitnessScore != b.Metrics.FitnessScore {
			return a.Metrics.FitnessScore > b.Metrics.FitnessScore
		}
	case SortPoints:
		if a.TotalPoints != b.TotalPoints {
			return a.TotalPoints > b.TotalPoints
		}
	case SortNewest:
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
	default:
		if a.Metrics.FitnessScore != b.Metrics.FitnessScore {
			return a.Metrics.FitnessScore > b.Metrics.FitnessScore
		}
		if a.Metrics.Streak != b.Metrics.Streak {
			return a.Metrics.Streak > b.Metrics.Streak
		}
	}
	return a.Username < b.Username
}
