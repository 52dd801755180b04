package metrics

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Category is a wellness dimension a habit contributes to.
type Category string

const (
	Physical   Category = "physical"
	Mental     Category = "mental"
	Nutrition  Category = "nutrition"
	LifeSkills Category = "lifeSkills"
)

// Categories lists every category in display order.
var Categories = [...]Category{Physical, Mental, Nutrition, LifeSkills}

// categoryCount must track len(Categories); the table sizes below depend on it.
const categoryCount = len(Categories)

// categoryNames is indexed like Categories.
var categoryNames = [...]string{
	"Physical Performance",
	"Mental Wellness",
	"Nutrition",
	"Life Skills",
}

// categoryFormulas hold the per-category constants used when scores are
// derived from the trailing seven days of habit completions. Volume counts
// completions, streak counts consecutive days, consistency counts distinct
// active days.
var categoryFormulas = [...]Formula{
	{VolumeTarget: 7, VolumeCap: 40, StreakPerDay: 5, StreakCap: 35, ConsistencyTarget: 5, ConsistencyCap: 25},
	{VolumeTarget: 7, VolumeCap: 40, StreakPerDay: 5, StreakCap: 35, ConsistencyTarget: 5, ConsistencyCap: 25},
	{VolumeTarget: 14, VolumeCap: 40, StreakPerDay: 5, StreakCap: 35, ConsistencyTarget: 6, ConsistencyCap: 25},
	{VolumeTarget: 5, VolumeCap: 40, StreakPerDay: 5, StreakCap: 35, ConsistencyTarget: 4, ConsistencyCap: 25},
}

// The tables must have exactly one entry per category.
var (
	_ [categoryCount]string  = categoryNames
	_ [categoryCount]Formula = categoryFormulas
)

// ScoreWindowDays is the trailing window for category scores.
const ScoreWindowDays = 7

// NudgeFraction of a habit's points is added to its category score on
// completion, before the next full recompute.
const NudgeFraction = 0.1

func (c Category) index() int {
	for i, v := range Categories {
		if v == c {
			return i
		}
	}
	return -1
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool { return c.index() >= 0 }

// DisplayName is the human label for c.
func (c Category) DisplayName() string {
	if i := c.index(); i >= 0 {
		return categoryNames[i]
	}
	return string(c)
}

// Formula returns the score constants for c.
func (c Category) Formula() Formula {
	if i := c.index(); i >= 0 {
		return categoryFormulas[i]
	}
	return FitnessFormula
}

// ParseCategory accepts either the key ("lifeSkills") or the display name
// ("Life Skills"), case-insensitively.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for i, c := range Categories {
		if strings.EqualFold(s, string(c)) || strings.EqualFold(s, categoryNames[i]) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Scores are the per-category scores plus their rounded mean.
type Scores struct {
	Physical   int `json:"physical" bson:"physical"`
	Mental     int `json:"mental" bson:"mental"`
	Nutrition  int `json:"nutrition" bson:"nutrition"`
	LifeSkills int `json:"lifeSkills" bson:"lifeSkills"`
	Overall    int `json:"overall" bson:"overall"`
}

func (s *Scores) field(c Category) *int {
	switch c {
	case Physical:
		return &s.Physical
	case Mental:
		return &s.Mental
	case Nutrition:
		return &s.Nutrition
	case LifeSkills:
		return &s.LifeSkills
	}
	return nil
}

// Get returns the score of c.
func (s Scores) Get(c Category) int {
	if p := s.field(c); p != nil {
		return *p
	}
	return 0
}

// With returns a copy of s with c set to v (clamped to 0..100) and Overall
// recomputed.
func (s Scores) With(c Category, v int) Scores {
	if p := s.field(c); p != nil {
		*p = clampScore(v)
	}
	s.Overall = s.mean()
	return s
}

// Nudge adds NudgeFraction of points to c's score.
func (s Scores) Nudge(c Category, points int) Scores {
	delta := int(math.Round(float64(points) * NudgeFraction))
	return s.With(c, s.Get(c)+delta)
}

func (s Scores) mean() int {
	sum := 0
	for _, c := range Categories {
		sum += s.Get(c)
	}
	return int(math.Round(float64(sum) / float64(categoryCount)))
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Completion is one habit completion used for category scoring.
type Completion struct {
	Category Category
	At       time.Time
}

// CategoryScores recomputes every category score from completions falling in
// the trailing ScoreWindowDays (today included).
func CategoryScores(completions []Completion, now time.Time) Scores {
	loc := now.Location()
	windowStart := StartOfDay(now, loc).AddDate(0, 0, -(ScoreWindowDays - 1))

	byCategory := make(map[Category][]time.Time, categoryCount)
	for _, cp := range completions {
		if cp.At.Before(windowStart) || cp.At.After(now) {
			continue
		}
		byCategory[cp.Category] = append(byCategory[cp.Category], cp.At)
	}

	policy := StreakPolicy{Lookback: ScoreWindowDays, Grace: 1}
	var scores Scores
	for _, c := range Categories {
		ts := byCategory[c]
		activeDays := make(map[string]struct{}, len(ts))
		for _, t := range ts {
			activeDays[DayKey(t, loc)] = struct{}{}
		}
		score := c.Formula().Score(
			float64(len(ts)),
			float64(CalcStreak(ts, now, policy)),
			float64(len(activeDays)),
		)
		*scores.field(c) = score
	}
	scores.Overall = scores.mean()
	return scores
}
