// Package metrics holds the pure scoring functions shared by the API and the
// tracker client: week boundaries, day streaks, weekly averages and the
// weighted-cap score formula.
package metrics

import (
	"math"
	"time"
)

const (
	// DefaultLookback is how many days CalcStreak scans backwards.
	DefaultLookback = 30
	// LevelXP is the XP needed per level.
	LevelXP = 500
)

// StreakPolicy bounds the streak walk. Grace is the number of leading empty
// days (starting with today) tolerated before the streak counts as broken.
type StreakPolicy struct {
	Lookback int
	Grace    int
}

// DefaultStreakPolicy scans 30 days and lets today still be empty.
var DefaultStreakPolicy = StreakPolicy{Lookback: DefaultLookback, Grace: 1}

// Formula is the weighted-cap score shape: three linear components, each
// capped independently. The caps of every formula in this package add up
// to 100.
type Formula struct {
	VolumeTarget      float64
	VolumeCap         float64
	StreakPerDay      float64
	StreakCap         float64
	ConsistencyTarget float64
	ConsistencyCap    float64
}

// FitnessFormula scores workouts: 4 per week fills volume (40), a 14 day
// streak fills streak (35), 4 per week on average fills consistency (25).
var FitnessFormula = Formula{
	VolumeTarget:      4,
	VolumeCap:         40,
	StreakPerDay:      2.5,
	StreakCap:         35,
	ConsistencyTarget: 4,
	ConsistencyCap:    25,
}

// Score combines the three inputs into a 0-100 integer.
func (f Formula) Score(volume, streak, consistency float64) int {
	total := component(volume, f.VolumeTarget, f.VolumeCap) +
		math.Min(f.StreakCap, math.Max(0, streak)*f.StreakPerDay) +
		component(consistency, f.ConsistencyTarget, f.ConsistencyCap)
	return int(math.Min(100, math.Round(total)))
}

func component(value, target, limit float64) float64 {
	if target <= 0 || value <= 0 {
		return 0
	}
	return math.Min(limit, value/target*limit)
}

// Snapshot is the derived fitness summary cached on a user.
type Snapshot struct {
	TotalWorkouts    int
	ThisWeekWorkouts int
	Streak           int
	AvgPerWeek       float64
	FitnessScore     int
	LastUpdated      time.Time
}

// StartOfDay returns local midnight of t in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// StartOfWeek returns local midnight of the Monday on or before t.
func StartOfWeek(t time.Time) time.Time {
	day := StartOfDay(t, t.Location())
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// DayKey formats t's calendar day in loc.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// CalcStreak counts consecutive calendar days ending today (in now's
// location) that contain at least one timestamp. Only policy.Grace leading
// empty days are skipped: with the default policy an empty today and
// yesterday give 0 even when the days before them are active.
func CalcStreak(timestamps []time.Time, now time.Time, policy StreakPolicy) int {
	if len(timestamps) == 0 {
		return 0
	}
	if policy.Lookback <= 0 {
		policy.Lookback = DefaultLookback
	}

	loc := now.Location()
	days := make(map[string]struct{}, len(timestamps))
	for _, ts := range timestamps {
		days[DayKey(ts, loc)] = struct{}{}
	}

	today := StartOfDay(now, loc)
	streak := 0
	for i := 0; i < policy.Lookback; i++ {
		key := today.AddDate(0, 0, -i).Format("2006-01-02")
		if _, ok := days[key]; ok {
			streak++
			continue
		}
		if streak > 0 || i >= policy.Grace {
			break
		}
	}
	return streak
}

// CalcAvgPerWeek averages total over the weeks elapsed since first. The
// denominator never drops below one week. The result has one decimal.
func CalcAvgPerWeek(first time.Time, total int, now time.Time) float64 {
	if total <= 0 || first.IsZero() {
		return 0
	}
	elapsedDays := now.Sub(first).Hours() / 24
	weeks := math.Max(1, elapsedDays/7)
	return math.Round(float64(total)/weeks*10) / 10
}

// ScoreFromMetrics is FitnessFormula applied to workout metrics.
func ScoreFromMetrics(thisWeek, streak int, avgPerWeek float64) int {
	return FitnessFormula.Score(float64(thisWeek), float64(streak), avgPerWeek)
}

// Aggregate derives a Snapshot from a user's complete workout history.
// LastUpdated is the newest timestamp, so equal histories give equal
// snapshots.
func Aggregate(timestamps []time.Time, now time.Time, policy StreakPolicy) Snapshot {
	snap := Snapshot{TotalWorkouts: len(timestamps)}
	if len(timestamps) == 0 {
		return snap
	}

	weekStart := StartOfWeek(now)
	first, last := timestamps[0], timestamps[0]
	for _, ts := range timestamps {
		if !ts.Before(weekStart) && !ts.After(now) {
			snap.ThisWeekWorkouts++
		}
		if ts.Before(first) {
			first = ts
		}
		if ts.After(last) {
			last = ts
		}
	}

	snap.Streak = CalcStreak(timestamps, now, policy)
	snap.AvgPerWeek = CalcAvgPerWeek(first, len(timestamps), now)
	snap.FitnessScore = ScoreFromMetrics(snap.ThisWeekWorkouts, snap.Streak, snap.AvgPerWeek)
	snap.LastUpdated = last.UTC()
	return snap
}

// Level maps accumulated XP to a 1-based level.
func Level(totalXP int) int {
	if totalXP < 0 {
		return 1
	}
	return totalXP/LevelXP + 1
}
