package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/IsaacStallan/vivify-wellness-platform-sub000/metrics"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/models"
)

type memoryRepository struct {
	mutex       sync.RWMutex
	users       map[string]*models.User
	workouts    map[string][]models.Workout
	habits      map[string]*models.Habit
	completions map[string][]models.HabitCompletion
	now         func() time.Time
}

// NewMemory returns a process-local Repository. It backs tests and the
// "memory" db_driver.
func NewMemory() Repository {
	return &memoryRepository{
		users:       make(map[string]*models.User),
		workouts:    make(map[string][]models.Workout),
		habits:      make(map[string]*models.Habit),
		completions: make(map[string][]models.HabitCompletion),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (repo *memoryRepository) CreateUser(_ context.Context, u *models.User) error {
	repo.mutex.Lock()
	defer repo.mutex.Unlock()

	for _, existing := range repo.users {
		if existing.Username == u.Username {
			return errors.Wrapf(ErrConflict, "username %q", u.Username)
		}
	}
	if u.ID == "" {
		u.ID = models.NewID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = repo.now()
	}
	u.UpdatedAt = u.CreatedAt
	usr := *u
	repo.users[u.ID] = &usr
	return nil
}

func (repo *memoryRepository) GetUser(_ context.Context, id string) (*models.User, error) {
	repo.mutex.RLock()
	defer repo.mutex.RUnlock()

	if usr, ok := repo.users[id]; ok {
		cp := *usr
		return &cp, nil
	}
	return nil, errors.Wrapf(ErrNotFound, "user %s", id)
}

func (repo *memoryRepository) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	repo.mutex.RLock()
	defer repo.mutex.RUnlock()

	for _, usr := range repo.users {
		if usr.Username == username {
			cp := *usr
			return &cp, nil
		}
	}
	return nil, errors.Wrapf(ErrNotFound, "user %q", username)
}

func (repo *memoryRepository) UpdateProfile(_ context.Context, u *models.User) error {
	repo.mutex.Lock()
	defer repo.mutex.Unlock()

	orig, ok := repo.users[u.ID]
	if !ok {
		return errors.Wrapf(ErrNotFound, "user %s", u.ID)
	}
	orig.DisplayName = u.DisplayName
	orig.School = u.School
	orig.UpdatedAt = repo.now()
	return nil
}

func (repo *memoryRepository) filterUsers(q UserQuery) []models.User {
	users := make([]models.User, 0, len(repo.users))
	for _, usr := range repo.users {
		if q.Role != "" && usr.Role != q.Role {
			continue
		}
		if q.School != "" && usr.School != q.School {
			continue
		}
		if q.ActiveOnly && !usr.IsActive {
			continue
		}
		users = append(users, *usr)
	}
	return users
}

func (repo *memoryRepository) ListUsers(_ context.Context, q UserQuery) ([]models.User, error) {
	repo.mutex.RLock()
	defer repo.mutex.RUnlock()

	users := repo.filterUsers(q)
	sort.SliceStable(users, func(i, j int) bool { return lessUsers(q.SortBy, &users[i], &users[j]) })
	if q.Limit > 0 && len(users) > q.Limit {
		users = users[:q.Limit]
	}
	return users, nil
}

func (repo *memoryRepository) CountUsers(_ context.Context, q UserQuery) (int64, error) {
	repo.mutex.RLock()
	defer repo.mutex.RUnlock()
	return int64(len(repo.filterUsers(q))), nil
}

func (repo *memoryRepository) AddPoints(_ context.Context, userID string, points, xp int) error {
	repo.mutex.Lock()
	defer repo.mutex.Unlock()

	usr, ok := repo.users[userID]
	if !ok {
		return errors.Wrapf(ErrNotFound, "user %s", userID)
	}
	usr.TotalPoints += points
	usr.TotalXP += xp
	return nil
}

func (repo *memoryRepository) SaveScores(_ context.Context, userID string, scores metrics.Scores, at time.Time) error {
	repo.mutex.Lock()
	defer repo.mutex.Unlock()

	usr, ok := repo.users[userID]
	if !ok {
		return errors.Wrapf(ErrNotFound, "user %s", userID)
	}
	usr.Scores = scores
	usr.ScoresUpdatedAt = &at
	return nil
}

func (repo *memoryRepository) SaveMetrics(_ context.Context, userID string, m models.FitnessMetrics) error {
	repo.mutex.Lock()
	defer repo.mutex.Unlock()

	usr, ok := repo.users[userID]
	if !ok {
		return errors.Wrapf(ErrNotFound, "user %s", userID)
	}
	usr.Metrics = m
	return nil
}

func (repo *memoryRepository) InsertWorkout(ctx context.Context, w *models.Workout) error {
	if w.ID == "" {
		w.ID = models.NewID()
	}
	return repo.InsertWorkouts(ctx, []models.Workout{*w})
}

func (repo *memoryRepository) InsertWorkouts(_ context.Context, ws []models.Workout) error {
	repo.mutex.Lock()
	defer repo.mutex.Unlock()

	for _, w := range ws {
		if _, ok := repo.users[w.UserID]; !ok {
			return errors.Wrapf(ErrNotFound, "user %s", w.UserID)
		}
	}
	for _, w := range ws {
		if w.ID == "" {
			w.ID = models.NewID()
		}
		repo.workouts[w.UserID] = append(repo.workouts[w.UserID], w)
	}
	return nil
}

func (repo *memoryRepository) WorkoutTimes(_ context.Context, userID string) ([]time.Time, error) {
	repo.mutex.RLock()
	defer repo.mutex.RUnlock()

	ws := repo.workouts[userID]
	times := make([]time.Time, 0, len(ws))
	for _, w := range ws {
		times = append(times, w.Timestamp)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	return times, nil
}

func (repo *memoryRepository) CreateHabit(_ context.Context, h *models.Habit) error {
	repo.mutex.Lock()
	defer repo.mutex.Unlock()

	if _, ok := repo.users[h.UserID]; !ok {
		return errors.Wrapf(ErrNotFound, "user %s", h.UserID)
	}
	if h.ID == "" {
		h.ID = models.NewID()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = repo.now()
	}
	habit := *h
	repo.habits[h.ID] = &habit
	return nil
}

func (repo *memoryRepository) GetHabit(_ context.Context, id string) (*models.Habit, error) {
	repo.mutex.RLock()
	defer repo.mutex.RUnlock()

	if h, ok := repo.habits[id]; ok {
		cp := *h
		return &cp, nil
	}
	return nil, errors.Wrapf(ErrNotFound, "habit %s", id)
}

func (repo *memoryRepository) ListHabits(_ context.Context, userID string) ([]models.Habit, error) {
	repo.mutex.RLock()
	defer repo.mutex.RUnlock()

	habits := make([]models.Habit, 0)
	for _, h := range repo.habits {
		if h.UserID == userID {
			habits = append(habits, *h)
		}
	}
	sort.Slice(habits, func(i, j int) bool {
		if !habits[i].CreatedAt.Equal(habits[j].CreatedAt) {
			return habits[i].CreatedAt.Before(habits[j].CreatedAt)
		}
		return habits[i].ID < habits[j].ID
	})
	return habits, nil
}

func (repo *memoryRepository) UpdateHabitStreak(_ context.Context, h *models.Habit) error {
	repo.mutex.Lock()
	defer repo.mutex.Unlock()

	orig, ok := repo.habits[h.ID]
	if !ok {
		return errors.Wrapf(ErrNotFound, "habit %s", h.ID)
	}
	orig.Streak = h.Streak
	orig.LongestStreak = h.LongestStreak
	orig.LastCompleted = h.LastCompleted
	return nil
}

func (repo *memoryRepository) InsertCompletion(_ context.Context, c *models.HabitCompletion) error {
	repo.mutex.Lock()
	defer repo.mutex.Unlock()

	for _, existing := range repo.completions[c.UserID] {
		if existing.HabitID == c.HabitID && existing.Day == c.Day {
			return errors.Wrapf(ErrConflict, "habit %s on %s", c.HabitID, c.Day)
		}
	}
	if c.ID == "" {
		c.ID = models.NewID()
	}
	repo.completions[c.UserID] = append(repo.completions[c.UserID], *c)
	return nil
}

func (repo *memoryRepository) ListCompletions(_ context.Context, userID string, since time.Time) ([]models.HabitCompletion, error) {
	repo.mutex.RLock()
	defer repo.mutex.RUnlock()

	out := make([]models.HabitCompletion, 0)
	for _, c := range repo.completions[userID] {
		if !c.CompletedAt.Before(since) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.Before(out[j].CompletedAt) })
	return out, nil
}

func (repo *memoryRepository) Close(context.Context) error { return nil }
