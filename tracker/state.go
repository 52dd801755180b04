package tracker

import (
	"sort"
	"time"

	"github.com/IsaacStallan/vivify-wellness-platform-sub000/metrics"
)

// historyDays bounds how much of DailyCompletions is kept on disk.
const historyDays = 30

type Habit struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Category      metrics.Category `json:"category"`
	Points        int              `json:"points"`
	Streak        int              `json:"streak"`
	LongestStreak int              `json:"longestStreak"`
	LastCompleted *time.Time       `json:"lastCompleted,omitempty"`
}

type CompletionRecord struct {
	HabitID  string           `json:"habitId"`
	Category metrics.Category `json:"category"`
	Points   int              `json:"points"`
	At       time.Time        `json:"at"`
}

// State is everything the tracker persists locally. DailyCompletions is keyed
// by local day ("2006-01-02").
type State struct {
	UserID           string                        `json:"userId,omitempty"`
	Habits           []Habit                       `json:"habits"`
	DailyCompletions map[string][]CompletionRecord `json:"dailyCompletions"`
	TotalPoints      int                           `json:"totalPoints"`
	TotalXP          int                           `json:"totalXP"`
	Scores           metrics.Scores                `json:"scores"`
	ScoreSource      sourceKind                    `json:"scoreSource,omitempty"`
	ScoresAt         time.Time                     `json:"scoresAt"`
}

func (s *State) source() ScoreSource {
	switch s.ScoreSource {
	case kindServer:
		return ServerAuthoritative{Values: s.Scores, FetchedAt: s.ScoresAt}
	case kindLocal:
		return LocallyDerived{Values: s.Scores, ComputedAt: s.ScoresAt}
	}
	return nil
}

func (s *State) setSource(src ScoreSource) {
	s.Scores = src.Scores()
	s.ScoresAt = src.At()
	s.ScoreSource = src.kind()
}

func (s *State) habit(id string) *Habit {
	for i := range s.Habits {
		if s.Habits[i].ID == id {
			return &s.Habits[i]
		}
	}
	return nil
}

func (s *State) completedOn(habitID, day string) bool {
	for _, c := range s.DailyCompletions[day] {
		if c.HabitID == habitID {
			return true
		}
	}
	return false
}

func (s State) completions() []metrics.Completion {
	out := make([]metrics.Completion, 0)
	for _, day := range s.DailyCompletions {
		for _, c := range day {
			out = append(out, metrics.Completion{Category: c.Category, At: c.At})
		}
	}
	return out
}

// prune drops days older than historyDays before today.
func (s *State) prune(now time.Time, loc *time.Location) {
	cutoff := metrics.DayKey(metrics.StartOfDay(now, loc).AddDate(0, 0, -historyDays), loc)
	for day := range s.DailyCompletions {
		if day < cutoff {
			delete(s.DailyCompletions, day)
		}
	}
}

// clone deep-copies the maps and slices so callers can't mutate tracker state.
func (s State) clone() State {
	out := s
	out.Habits = append([]Habit(nil), s.Habits...)
	out.DailyCompletions = make(map[string][]CompletionRecord, len(s.DailyCompletions))
	for day, list := range s.DailyCompletions {
		out.DailyCompletions[day] = append([]CompletionRecord(nil), list...)
	}
	return out
}

// Days returns the keys of DailyCompletions in ascending order.
func (s State) Days() []string {
	days := make([]string, 0, len(s.DailyCompletions))
	for d := range s.DailyCompletions {
		days = append(days, d)
	}
	sort.Strings(days)
	return days
}
