package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/IsaacStallan/vivify-wellness-platform-sub000/metrics"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/models"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/repository"
)

func newHabits(repo repository.Repository, cache CacheInvalidator, board PointsRecorder) *HabitService {
	svc := NewHabitService(repo, cache, board, zap.NewNop(), time.UTC)
	svc.now = fixedClock
	return svc
}

func TestCreateHabit(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	u := seedUser(t, repo, "ana", models.RoleStudent, "")
	svc := newHabits(repo, nil, nil)

	h, err := svc.Create(ctx, u.ID, HabitInput{Name: "Morning run", Category: "Physical Performance", Points: 20})
	require.NoError(t, err)
	assert.Equal(t, metrics.Physical, h.Category)
	assert.True(t, h.IsActive)

	tests := []struct {
		name string
		in   HabitInput
	}{
		{name: "unknown category", in: HabitInput{Name: "x", Category: "spiritual", Points: 5}},
		{name: "no name", in: HabitInput{Category: "mental", Points: 5}},
		{name: "no points", in: HabitInput{Name: "x", Category: "mental"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, u.ID, tt.in)
			assert.True(t, errors.Is(err, ErrValidation), "got %v", err)
		})
	}

	list, err := svc.List(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCompleteHabit(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	u := seedUser(t, repo, "ana", models.RoleStudent, "")
	cache := &invalidatorSpy{}
	board := &boardSpy{}
	svc := newHabits(repo, cache, board)

	h, err := svc.Create(ctx, u.ID, HabitInput{Name: "Run", Category: "physical", Points: 20})
	require.NoError(t, err)

	res, err := svc.Complete(ctx, u.ID, h.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Habit.Streak)
	assert.Equal(t, 1, res.Habit.LongestStreak)
	assert.Equal(t, 20, res.TotalPoints)
	assert.Equal(t, 20, res.TotalXP)
	assert.Equal(t, 1, res.Level)
	// one completion: 40/7 volume, 5 streak, 25/5 consistency
	assert.Equal(t, 16, res.Scores.Physical)
	assert.Equal(t, 0, res.Scores.Mental)
	assert.Equal(t, 4, res.Scores.Overall)
	assert.Equal(t, []string{u.ID}, cache.calls())
	assert.Equal(t, 20, board.total(u.ID))

	stored, err := repo.GetUser(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ScoresUpdatedAt)
	assert.Equal(t, res.Scores, stored.Scores)
	assert.NotNil(t, stored.Response().Scores)

	_, err = svc.Complete(ctx, u.ID, h.ID)
	assert.True(t, errors.Is(err, repository.ErrConflict), "got %v", err)

	after, err := repo.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, after.TotalPoints)
}

func TestCompleteHabitStreak(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	u := seedUser(t, repo, "ana", models.RoleStudent, "")
	svc := newHabits(repo, nil, nil)

	h, err := svc.Create(ctx, u.ID, HabitInput{Name: "Journal", Category: "mental", Points: 5})
	require.NoError(t, err)

	day := testNow
	for i := 1; i <= 3; i++ {
		svc.now = func() time.Time { return day }
		res, err := svc.Complete(ctx, u.ID, h.ID)
		require.NoError(t, err)
		assert.Equal(t, i, res.Habit.Streak)
		day = day.AddDate(0, 0, 1)
	}

	// skip a day
	svc.now = func() time.Time { return day.AddDate(0, 0, 1) }
	res, err := svc.Complete(ctx, u.ID, h.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Habit.Streak)
	assert.Equal(t, 3, res.Habit.LongestStreak)

	stored, err := repo.GetHabit(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Streak)
	assert.Equal(t, 3, stored.LongestStreak)
}

func TestCompleteHabitOwnership(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	owner := seedUser(t, repo, "ana", models.RoleStudent, "")
	other := seedUser(t, repo, "ben", models.RoleStudent, "")
	svc := newHabits(repo, nil, nil)

	h, err := svc.Create(ctx, owner.ID, HabitInput{Name: "Water", Category: "nutrition", Points: 5})
	require.NoError(t, err)

	_, err = svc.Complete(ctx, other.ID, h.ID)
	assert.True(t, errors.Is(err, repository.ErrNotFound))

	_, err = svc.Complete(ctx, owner.ID, "missing")
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestRecomputeScoresDropsOldCompletions(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	u := seedUser(t, repo, "ana", models.RoleStudent, "")
	svc := newHabits(repo, nil, nil)

	require.NoError(t, repo.InsertCompletion(ctx, &models.HabitCompletion{
		HabitID: "h1", UserID: u.ID, Category: metrics.Physical, Day: "2024-03-01",
		CompletedAt: testNow.AddDate(0, 0, -12),
	}))

	scores, err := svc.RecomputeScores(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, metrics.Scores{}, scores)
}
