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

// futureSkew is how far ahead of the server clock a client timestamp may be.
const futureSkew = 5 * time.Minute

type WorkoutInput struct {
	UserID      string     `json:"userId" validate:"required"`
	WorkoutType string     `json:"workoutType" validate:"required,max=64"`
	Points      *int       `json:"points" validate:"omitempty,min=0,max=1000"`
	Duration    int        `json:"duration" validate:"min=0,max=1440"`
	Timestamp   *time.Time `json:"timestamp"`
}

type SyncResult struct {
	SyncedCount int `json:"syncedCount"`
	Skipped     int `json:"skipped"`
}

type FitnessOptions struct {
	LookbackDays  int
	DefaultPoints int
	Location      *time.Location
}

// FitnessService stores workouts and keeps the per-user fitness snapshot.
// The snapshot is recomputed from the full history on every write, so a
// write lost to a concurrent refresh is repaired by the next one.
type FitnessService struct {
	repo          repository.Repository
	cache         CacheInvalidator
	board         PointsRecorder
	logger        *zap.Logger
	policy        metrics.StreakPolicy
	defaultPoints int
	loc           *time.Location
	now           func() time.Time
}

// NewFitnessService wires the service. cache and board may be nil.
func NewFitnessService(repo repository.Repository, cache CacheInvalidator, board PointsRecorder, logger *zap.Logger, opts FitnessOptions) *FitnessService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = metrics.DefaultLookback
	}
	return &FitnessService{
		repo:          repo,
		cache:         cache,
		board:         board,
		logger:        logger,
		policy:        metrics.StreakPolicy{Lookback: opts.LookbackDays, Grace: 1},
		defaultPoints: opts.DefaultPoints,
		loc:           opts.Location,
		now:           time.Now,
	}
}

func (s *FitnessService) buildWorkout(in WorkoutInput, now time.Time) (models.Workout, error) {
	if err := validateInput(in); err != nil {
		return models.Workout{}, err
	}
	ts := now
	if in.Timestamp != nil && !in.Timestamp.IsZero() {
		if in.Timestamp.After(now.Add(futureSkew)) {
			return models.Workout{}, errors.Wrap(ErrValidation, "timestamp is in the future")
		}
		ts = *in.Timestamp
	}
	points := s.defaultPoints
	if in.Points != nil {
		points = *in.Points
	}
	return models.Workout{
		ID:          models.NewID(),
		UserID:      in.UserID,
		WorkoutType: in.WorkoutType,
		Points:      points,
		Duration:    in.Duration,
		Timestamp:   ts.UTC(),
	}, nil
}

// RecordWorkout stores one workout and credits its points. Anything after the
// insert is best effort: failures are logged and the workout still counts.
func (s *FitnessService) RecordWorkout(ctx context.Context, in WorkoutInput) (*models.Workout, error) {
	w, err := s.buildWorkout(in, s.now())
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.GetUser(ctx, in.UserID); err != nil {
		return nil, err
	}
	if err := s.repo.InsertWorkout(ctx, &w); err != nil {
		return nil, err
	}
	utils.WorkoutsRecorded.Inc()

	s.logger.Info("workout_recorded",
		zap.String("user_id", w.UserID),
		zap.String("workout_id", w.ID),
		zap.String("workout_type", w.WorkoutType),
		zap.Int("points", w.Points),
	)

	s.afterWrite(ctx, w.UserID, w.Points)
	return &w, nil
}

// SyncWorkouts stores a batch queued offline. Invalid items are skipped; the
// snapshot is refreshed once at the end.
func (s *FitnessService) SyncWorkouts(ctx context.Context, userID string, items []WorkoutInput) (SyncResult, error) {
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return SyncResult{}, err
	}

	now := s.now()
	batch := make([]models.Workout, 0, len(items))
	total := 0
	for i, item := range items {
		item.UserID = userID
		w, err := s.buildWorkout(item, now)
		if err != nil {
			s.logger.Warn("sync_item_skipped",
				zap.String("user_id", userID),
				zap.Int("index", i),
				zap.Error(err),
			)
			continue
		}
		batch = append(batch, w)
		total += w.Points
	}

	result := SyncResult{SyncedCount: len(batch), Skipped: len(items) - len(batch)}
	if len(batch) == 0 {
		return result, nil
	}
	if err := s.repo.InsertWorkouts(ctx, batch); err != nil {
		return SyncResult{}, err
	}
	utils.WorkoutsRecorded.Add(float64(len(batch)))

	s.logger.Info("workouts_synced",
		zap.String("user_id", userID),
		zap.Int("synced", result.SyncedCount),
		zap.Int("skipped", result.Skipped),
	)

	s.afterWrite(ctx, userID, total)
	return result, nil
}

func (s *FitnessService) afterWrite(ctx context.Context, userID string, points int) {
	if points != 0 {
		if err := s.repo.AddPoints(ctx, userID, points, points); err != nil {
			utils.ErrorCount.WithLabelValues("fitness", "add_points").Inc()
			s.logger.Error("add_points_failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	if _, err := s.RefreshMetrics(ctx, userID); err != nil {
		utils.MetricsRefreshFailures.Inc()
		s.logger.Error("metrics_refresh_failed", zap.String("user_id", userID), zap.Error(err))
	}

	if s.cache != nil {
		if err := s.cache.InvalidateUser(ctx, userID); err != nil {
			s.logger.Warn("cache_invalidate_failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	if s.board != nil && points != 0 {
		if err := s.board.Add(ctx, userID, points); err != nil {
			s.logger.Warn("points_board_failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
}

// RefreshMetrics recomputes the user's snapshot from every stored workout and
// overwrites the cached copy.
func (s *FitnessService) RefreshMetrics(ctx context.Context, userID string) (models.FitnessMetrics, error) {
	times, err := s.repo.WorkoutTimes(ctx, userID)
	if err != nil {
		return models.FitnessMetrics{}, err
	}
	snap := metrics.Aggregate(times, s.now().In(s.loc), s.policy)
	m := models.MetricsFromSnapshot(snap)
	if err := s.repo.SaveMetrics(ctx, userID, m); err != nil {
		return models.FitnessMetrics{}, err
	}

	s.logger.Debug("metrics_refreshed",
		zap.String("user_id", userID),
		zap.Int("total_workouts", m.TotalWorkouts),
		zap.Int("streak", m.Streak),
		zap.Int("fitness_score", m.FitnessScore),
	)
	return m, nil
}
