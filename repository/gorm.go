package repository

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/IsaacStallan/vivify-wellness-platform-sub000/metrics"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/models"
)

type gormRepository struct {
	db *gorm.DB
}

// NewGorm wraps an open gorm connection. Call Migrate once at startup.
func NewGorm(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Workout{},
		&models.Habit{},
		&models.HabitCompletion{},
	)
}

// gormErr maps driver errors onto the package sentinels.
func gormErr(err error, format string, args ...interface{}) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errors.Wrapf(ErrNotFound, format, args...)
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return errors.Wrapf(ErrConflict, format, args...)
	}
	return errors.Wrapf(err, format, args...)
}

// postgres reports 23505 for unique violations; TranslateError is not
// enabled on every connection.
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 23505") || strings.Contains(msg, "duplicate key")
}

func (r *gormRepository) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = models.NewID()
	}
	return gormErr(r.db.WithContext(ctx).Create(u).Error, "create user %q", u.Username)
}

func (r *gormRepository) GetUser(ctx context.Context, id string) (*models.User, error) {
	var usr models.User
	if err := r.db.WithContext(ctx).First(&usr, "id = ?", id).Error; err != nil {
		return nil, gormErr(err, "user %s", id)
	}
	return &usr, nil
}

func (r *gormRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var usr models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&usr).Error; err != nil {
		return nil, gormErr(err, "user %q", username)
	}
	return &usr, nil
}

func (r *gormRepository) UpdateProfile(ctx context.Context, u *models.User) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", u.ID).
		Updates(map[string]interface{}{
			"display_name": u.DisplayName,
			"school":       u.School,
		})
	return affected(res, "user %s", u.ID)
}

func (r *gormRepository) userScope(q UserQuery) *gorm.DB {
	tx := r.db.Model(&models.User{})
	if q.Role != "" {
		tx = tx.Where("role = ?", q.Role)
	}
	if q.School != "" {
		tx = tx.Where("school = ?", q.School)
	}
	if q.ActiveOnly {
		tx = tx.Where("is_active = ?", true)
	}
	return tx
}

var userOrders = map[string]string{
	SortFitness: "metrics_fitness_score DESC, metrics_streak DESC, username ASC",
	SortOverall: "score_overall DESC, metrics_fitness_score DESC, username ASC",
	SortPoints:  "total_points DESC, username ASC",
	SortNewest:  "created_at DESC, username ASC",
}

func (r *gormRepository) ListUsers(ctx context.Context, q UserQuery) ([]models.User, error) {
	tx := r.userScope(q).WithContext(ctx).Order(userOrders[normalizeSort(q.SortBy)])
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	var users []models.User
	if err := tx.Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	return users, nil
}

func (r *gormRepository) CountUsers(ctx context.Context, q UserQuery) (int64, error) {
	var n int64
	if err := r.userScope(q).WithContext(ctx).Count(&n).Error; err != nil {
		return 0, errors.Wrap(err, "count users")
	}
	return n, nil
}

func (r *gormRepository) AddPoints(ctx context.Context, userID string, points, xp int) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"total_points": gorm.Expr("total_points + ?", points),
			"total_xp":     gorm.Expr("total_xp + ?", xp),
		})
	return affected(res, "user %s", userID)
}

func (r *gormRepository) SaveScores(ctx context.Context, userID string, s metrics.Scores, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"score_physical":    s.Physical,
			"score_mental":      s.Mental,
			"score_nutrition":   s.Nutrition,
			"score_life_skills": s.LifeSkills,
			"score_overall":     s.Overall,
			"scores_updated_at": at,
		})
	return affected(res, "user %s", userID)
}

func (r *gormRepository) SaveMetrics(ctx context.Context, userID string, m models.FitnessMetrics) error {
	// map form so zero values are written too
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"metrics_total_workouts":     m.TotalWorkouts,
			"metrics_this_week_workouts": m.ThisWeekWorkouts,
			"metrics_streak":             m.Streak,
			"metrics_avg_per_week":       m.AvgPerWeek,
			"metrics_fitness_score":      m.FitnessScore,
			"metrics_last_updated":       m.LastUpdated,
		})
	return affected(res, "user %s", userID)
}

func (r *gormRepository) InsertWorkout(ctx context.Context, w *models.Workout) error {
	if w.ID == "" {
		w.ID = models.NewID()
	}
	return gormErr(r.db.WithContext(ctx).Create(w).Error, "insert workout for %s", w.UserID)
}

func (r *gormRepository) InsertWorkouts(ctx context.Context, ws []models.Workout) error {
	if len(ws) == 0 {
		return nil
	}
	for i := range ws {
		if ws[i].ID == "" {
			ws[i].ID = models.NewID()
		}
	}
	return gormErr(r.db.WithContext(ctx).CreateInBatches(ws, 100).Error, "insert %d workouts", len(ws))
}

func (r *gormRepository) WorkoutTimes(ctx context.Context, userID string) ([]time.Time, error) {
	var times []time.Time
	err := r.db.WithContext(ctx).Model(&models.Workout{}).
		Where("user_id = ?", userID).
		Order(`"timestamp" ASC`).
		Pluck("timestamp", &times).Error
	if err != nil {
		return nil, errors.Wrapf(err, "workouts of %s", userID)
	}
	return times, nil
}

func (r *gormRepository) CreateHabit(ctx context.Context, h *models.Habit) error {
	if h.ID == "" {
		h.ID = models.NewID()
	}
	return gormErr(r.db.WithContext(ctx).Create(h).Error, "create habit %q", h.Name)
}

func (r *gormRepository) GetHabit(ctx context.Context, id string) (*models.Habit, error) {
	var h models.Habit
	if err := r.db.WithContext(ctx).First(&h, "id = ?", id).Error; err != nil {
		return nil, gormErr(err, "habit %s", id)
	}
	return &h, nil
}

func (r *gormRepository) ListHabits(ctx context.Context, userID string) ([]models.Habit, error) {
	habits := make([]models.Habit, 0)
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&habits).Error
	if err != nil {
		return nil, errors.Wrapf(err, "habits of %s", userID)
	}
	return habits, nil
}

func (r *gormRepository) UpdateHabitStreak(ctx context.Context, h *models.Habit) error {
	res := r.db.WithContext(ctx).Model(&models.Habit{}).
		Where("id = ?", h.ID).
		Updates(map[string]interface{}{
			"streak":         h.Streak,
			"longest_streak": h.LongestStreak,
			"last_completed": h.LastCompleted,
		})
	return affected(res, "habit %s", h.ID)
}

func (r *gormRepository) InsertCompletion(ctx context.Context, c *models.HabitCompletion) error {
	if c.ID == "" {
		c.ID = models.NewID()
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(c)
	if res.Error != nil {
		return gormErr(res.Error, "habit %s on %s", c.HabitID, c.Day)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(ErrConflict, "habit %s on %s", c.HabitID, c.Day)
	}
	return nil
}

func (r *gormRepository) ListCompletions(ctx context.Context, userID string, since time.Time) ([]models.HabitCompletion, error) {
	out := make([]models.HabitCompletion, 0)
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND completed_at >= ?", userID, since).
		Order("completed_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, errors.Wrapf(err, "completions of %s", userID)
	}
	return out, nil
}

func (r *gormRepository) Close(context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func affected(res *gorm.DB, format string, args ...interface{}) error {
	if res.Error != nil {
		return gormErr(res.Error, format, args...)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, format, args...)
	}
	return nil
}
