package services

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/IsaacStallan/vivify-wellness-platform-sub000/metrics"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/models"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/repository"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/utils"
)

type HabitInput struct {
	Name     string `json:"name" validate:"required,max=80"`
	Category string `json:"category" validate:"required"`
	Points   int    `json:"points" validate:"min=1,max=500"`
}

type CompletionResult struct {
	Habit       models.Habit   `json:"habit"`
	Scores      metrics.Scores `json:"scores"`
	TotalPoints int            `json:"totalPoints"`
	TotalXP     int            `json:"totalXP"`
	Level       int            `json:"level"`
}

type HabitService struct {
	repo   repository.Repository
	cache  CacheInvalidator
	board  PointsRecorder
	logger *zap.Logger
	loc    *time.Location
	now    func() time.Time
}

// NewHabitService wires the service. cache and board may be nil.
func NewHabitService(repo repository.Repository, cache CacheInvalidator, board PointsRecorder, logger *zap.Logger, loc *time.Location) *HabitService {
	if loc == nil {
		loc = time.UTC
	}
	return &HabitService{
		repo:   repo,
		cache:  cache,
		board:  board,
		logger: logger,
		loc:    loc,
		now:    time.Now,
	}
}

func (s *HabitService) Create(ctx context.Context, userID string, in HabitInput) (*models.Habit, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	cat, err := metrics.ParseCategory(in.Category)
	if err != nil {
		return nil, errors.Wrap(ErrValidation, err.Error())
	}
	h := &models.Habit{
		UserID:   userID,
		Name:     in.Name,
		Category: cat,
		Points:   in.Points,
		IsActive: true,
	}
	if err := s.repo.CreateHabit(ctx, h); err != nil {
		return nil, err
	}
	s.logger.Info("habit_created",
		zap.String("user_id", userID),
		zap.String("habit_id", h.ID),
		zap.String("category", string(cat)),
	)
	return h, nil
}

func (s *HabitService) List(ctx context.Context, userID string) ([]models.Habit, error) {
	return s.repo.ListHabits(ctx, userID)
}

// Complete ticks a habit for today. A second tick on the same day returns
// repository.ErrConflict.
func (s *HabitService) Complete(ctx context.Context, userID, habitID string) (*CompletionResult, error) {
	habit, err := s.repo.GetHabit(ctx, habitID)
	if err != nil {
		return nil, err
	}
	if habit.UserID != userID {
		return nil, errors.Wrapf(repository.ErrNotFound, "habit %s", habitID)
	}

	now := s.now().In(s.loc)
	today := metrics.DayKey(now, s.loc)
	completion := &models.HabitCompletion{
		HabitID:     habit.ID,
		UserID:      userID,
		Category:    habit.Category,
		Points:      habit.Points,
		Day:         today,
		CompletedAt: now.UTC(),
	}
	if err := s.repo.InsertCompletion(ctx, completion); err != nil {
		return nil, err
	}

	yesterday := metrics.DayKey(now.AddDate(0, 0, -1), s.loc)
	if habit.LastCompleted != nil && metrics.DayKey(*habit.LastCompleted, s.loc) == yesterday {
		habit.Streak++
	} else {
		habit.Streak = 1
	}
	if habit.Streak > habit.LongestStreak {
		habit.LongestStreak = habit.Streak
	}
	completedAt := completion.CompletedAt
	habit.LastCompleted = &completedAt
	if err := s.repo.UpdateHabitStreak(ctx, habit); err != nil {
		s.logger.Error("habit_streak_update_failed", zap.String("habit_id", habit.ID), zap.Error(err))
	}

	if err := s.repo.AddPoints(ctx, userID, habit.Points, habit.Points); err != nil {
		utils.ErrorCount.WithLabelValues("habits", "add_points").Inc()
		s.logger.Error("add_points_failed", zap.String("user_id", userID), zap.Error(err))
	}

	scores, err := s.RecomputeScores(ctx, userID)
	if err != nil {
		utils.ErrorCount.WithLabelValues("habits", "recompute_scores").Inc()
		s.logger.Error("scores_recompute_failed", zap.String("user_id", userID), zap.Error(err))
	}

	if s.cache != nil {
		if err := s.cache.InvalidateUser(ctx, userID); err != nil {
			s.logger.Warn("cache_invalidate_failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	if s.board != nil {
		if err := s.board.Add(ctx, userID, habit.Points); err != nil {
			s.logger.Warn("points_board_failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	s.logger.Info("habit_completed",
		zap.String("user_id", userID),
		zap.String("habit_id", habit.ID),
		zap.Int("streak", habit.Streak),
		zap.Int("points", habit.Points),
	)

	result := &CompletionResult{Habit: *habit, Scores: scores}
	if u, err := s.repo.GetUser(ctx, userID); err == nil {
		result.TotalPoints = u.TotalPoints
		result.TotalXP = u.TotalXP
		result.Level = u.Level()
		if result.Scores == (metrics.Scores{}) {
			result.Scores = u.Scores
		}
	}
	return result, nil
}

// RecomputeScores derives the category scores from the trailing window of
// completions and stores them on the user.
func (s *HabitService) RecomputeScores(ctx context.Context, userID string) (metrics.Scores, error) {
	now := s.now().In(s.loc)
	since := metrics.StartOfDay(now, s.loc).AddDate(0, 0, -(metrics.ScoreWindowDays - 1))
	rows, err := s.repo.ListCompletions(ctx, userID, since)
	if err != nil {
		return metrics.Scores{}, err
	}
	completions := make([]metrics.Completion, 0, len(rows))
	for _, r := range rows {
		completions = append(completions, metrics.Completion{Category: r.Category, At: r.CompletedAt})
	}
	scores := metrics.CategoryScores(completions, now)
	if err := s.repo.SaveScores(ctx, userID, scores, now.UTC()); err != nil {
		return metrics.Scores{}, err
	}
	return scores, nil
}
