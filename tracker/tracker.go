// Package tracker is the client side of habit tracking. It keeps a local copy
// of habits, completions and scores, reconciles it with the API on start and
// pushes point deltas to the shared points board.
package tracker

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/IsaacStallan/vivify-wellness-platform-sub000/metrics"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/models"
)

var (
	ErrUnknownHabit     = errors.New("unknown habit")
	ErrAlreadyCompleted = errors.New("habit already completed today")
	ErrInvalidHabit     = errors.New("invalid habit")
)

const defaultHabitPoints = 10

type LocalStore interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, s State) error
}

type RemoteSource interface {
	FetchUser(ctx context.Context) (*RemoteUser, error)
}

type Broadcaster interface {
	PushPoints(ctx context.Context, points int) error
}

// RemoteUser is the part of GET /api/users/me the tracker uses. Scores is nil
// until the server has computed them.
type RemoteUser struct {
	ID          string          `json:"id"`
	Username    string          `json:"username"`
	TotalPoints int             `json:"totalPoints"`
	TotalXP     int             `json:"totalXP"`
	Scores      *metrics.Scores `json:"scores,omitempty"`
}

type Options struct {
	Precedence Precedence
	Location   *time.Location
}

type Tracker struct {
	store       LocalStore
	remote      RemoteSource
	broadcaster Broadcaster
	logger      *zap.Logger
	precedence  Precedence
	loc         *time.Location
	now         func() time.Time

	mu    sync.Mutex
	state State
}

// New builds a tracker. remote and broadcaster may be nil for offline use.
func New(store LocalStore, remote RemoteSource, broadcaster Broadcaster, logger *zap.Logger, opts Options) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Tracker{
		store:       store,
		remote:      remote,
		broadcaster: broadcaster,
		logger:      logger,
		precedence:  opts.Precedence,
		loc:         loc,
		now:         time.Now,
		state:       State{DailyCompletions: map[string][]CompletionRecord{}},
	}
}

// Init loads the local cache, fetches the remote user and reconciles the two.
// A failed load or fetch is logged and the tracker carries on with what it
// has; only a failed save is returned.
func (t *Tracker) Init(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, err := t.store.Load(ctx)
	if err != nil {
		t.logger.Warn("tracker_local_load_failed", zap.Error(err))
		state = State{}
	}
	if state.DailyCompletions == nil {
		state.DailyCompletions = map[string][]CompletionRecord{}
	}

	var remote *RemoteUser
	if t.remote != nil {
		remote, err = t.remote.FetchUser(ctx)
		if err != nil {
			t.logger.Warn("tracker_remote_fetch_failed", zap.Error(err))
			remote = nil
		}
	}

	now := t.now().In(t.loc)
	state.prune(now, t.loc)
	if remote != nil {
		if state.UserID == "" {
			state.UserID = remote.ID
		}
		state.TotalPoints = maxInt(state.TotalPoints, remote.TotalPoints)
		state.TotalXP = maxInt(state.TotalXP, remote.TotalXP)
	}

	src := Reconcile(state, remote, t.precedence, now)
	state.setSource(src)
	t.state = state

	t.logger.Info("tracker_initialized",
		zap.String("user_id", state.UserID),
		zap.Bool("server_scores", IsServer(src)),
		zap.String("precedence", t.precedence.String()),
	)
	return errors.Wrap(t.store.Save(ctx, t.state), "save tracker state")
}

// AddHabit registers a local habit. category accepts the key or the display
// name; points defaults to 10.
func (t *Tracker) AddHabit(ctx context.Context, name, category string, points int) (Habit, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Habit{}, errors.Wrap(ErrInvalidHabit, "name is required")
	}
	cat, err := metrics.ParseCategory(category)
	if err != nil {
		return Habit{}, errors.Wrap(ErrInvalidHabit, err.Error())
	}
	if points < 0 {
		return Habit{}, errors.Wrap(ErrInvalidHabit, "points must not be negative")
	}
	if points == 0 {
		points = defaultHabitPoints
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	h := Habit{ID: models.NewID(), Name: name, Category: cat, Points: points}
	t.state.Habits = append(t.state.Habits, h)
	if err := t.store.Save(ctx, t.state); err != nil {
		t.state.Habits = t.state.Habits[:len(t.state.Habits)-1]
		return Habit{}, errors.Wrap(err, "save tracker state")
	}
	return h, nil
}

type CompletionResult struct {
	Habit       Habit
	Scores      metrics.Scores
	TotalPoints int
	TotalXP     int
	Level       int
}

// CompleteHabit ticks habitID for today. The category score is nudged by a
// fraction of the habit's points rather than fully recomputed.
func (t *Tracker) CompleteHabit(ctx context.Context, habitID string) (CompletionResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now().In(t.loc)
	today := metrics.DayKey(now, t.loc)
	yesterday := metrics.DayKey(metrics.StartOfDay(now, t.loc).AddDate(0, 0, -1), t.loc)

	next := t.state.clone()
	h := next.habit(habitID)
	if h == nil {
		return CompletionResult{}, errors.Wrapf(ErrUnknownHabit, "habit %s", habitID)
	}
	if next.completedOn(habitID, today) {
		return CompletionResult{}, errors.Wrapf(ErrAlreadyCompleted, "habit %s", habitID)
	}

	next.DailyCompletions[today] = append(next.DailyCompletions[today], CompletionRecord{
		HabitID:  h.ID,
		Category: h.Category,
		Points:   h.Points,
		At:       now,
	})

	if h.LastCompleted != nil && metrics.DayKey(*h.LastCompleted, t.loc) == yesterday {
		h.Streak++
	} else {
		h.Streak = 1
	}
	if h.Streak > h.LongestStreak {
		h.LongestStreak = h.Streak
	}
	completedAt := now
	h.LastCompleted = &completedAt

	next.TotalPoints += h.Points
	next.TotalXP += h.Points
	next.Scores = next.Scores.Nudge(h.Category, h.Points)
	if next.ScoreSource == kindNone {
		next.ScoreSource = kindLocal
		next.ScoresAt = now
	}

	if err := t.store.Save(ctx, next); err != nil {
		return CompletionResult{}, errors.Wrap(err, "save tracker state")
	}
	t.state = next

	t.logger.Info("tracker_habit_completed",
		zap.String("habit_id", h.ID),
		zap.String("category", string(h.Category)),
		zap.Int("points", h.Points),
		zap.Int("streak", h.Streak),
	)

	if t.broadcaster != nil {
		if err := t.broadcaster.PushPoints(ctx, h.Points); err != nil {
			t.logger.Warn("tracker_broadcast_failed", zap.Int("points", h.Points), zap.Error(err))
		}
	}

	return CompletionResult{
		Habit:       *h,
		Scores:      next.Scores,
		TotalPoints: next.TotalPoints,
		TotalXP:     next.TotalXP,
		Level:       metrics.Level(next.TotalXP),
	}, nil
}

// Recalculate recomputes the scores from local history unless the current
// scores are server authoritative and the server is preferred.
func (t *Tracker) Recalculate(ctx context.Context) (ScoreSource, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	current := t.state.source()
	if t.precedence == PreferServer && IsServer(current) {
		return current, nil
	}

	next := t.state.clone()
	now := t.now().In(t.loc)
	src := Reconcile(next, nil, t.precedence, now)
	next.setSource(src)
	if err := t.store.Save(ctx, next); err != nil {
		return current, errors.Wrap(err, "save tracker state")
	}
	t.state = next
	return src, nil
}

// Snapshot is a read-only view for the UI layer.
type Snapshot struct {
	State
	Source         ScoreSource
	Level          int
	CompletedToday []string
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.state.clone()
	today := metrics.DayKey(t.now(), t.loc)
	done := make([]string, 0, len(state.DailyCompletions[today]))
	for _, c := range state.DailyCompletions[today] {
		done = append(done, c.HabitID)
	}
	return Snapshot{
		State:          state,
		Source:         state.source(),
		Level:          metrics.Level(state.TotalXP),
		CompletedToday: done,
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
