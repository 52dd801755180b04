package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

type Period string

const (
	Daily   Period = "daily"
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
)

var Periods = []Period{Daily, Weekly, Monthly}

var ErrUnknownPeriod = errors.New("unknown period")

func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "":
		return Weekly, nil
	case Daily, Weekly, Monthly:
		return Period(s), nil
	}
	return "", errors.Wrapf(ErrUnknownPeriod, "%q", s)
}

// bucket names the window t falls in. Weeks are ISO weeks.
func (p Period) bucket(t time.Time) string {
	switch p {
	case Daily:
		return t.Format("2006-01-02")
	case Monthly:
		return t.Format("2006-01")
	default:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	}
}

// ttl keeps a bucket around a little longer than its window.
func (p Period) ttl() time.Duration {
	switch p {
	case Daily:
		return 48 * time.Hour
	case Monthly:
		return 62 * 24 * time.Hour
	default:
		return 14 * 24 * time.Hour
	}
}

type PointsEntry struct {
	Rank   int    `json:"rank"`
	UserID string `json:"userId"`
	Points int64  `json:"points"`
}

// PointsBoard keeps rolling points totals in sorted sets keyed
// leaderboard:points:<period>:<bucket>.
type PointsBoard struct {
	client    *redis.Client
	keyFormat string
	loc       *time.Location
	now       func() time.Time
}

func NewPointsBoard(client *redis.Client, loc *time.Location) *PointsBoard {
	if loc == nil {
		loc = time.UTC
	}
	return &PointsBoard{
		client:    client,
		keyFormat: "leaderboard:points:%s:%s",
		loc:       loc,
		now:       time.Now,
	}
}

func (b *PointsBoard) key(p Period, t time.Time) string {
	return fmt.Sprintf(b.keyFormat, p, p.bucket(t.In(b.loc)))
}

// Add credits points to the user in every period in one round trip.
func (b *PointsBoard) Add(ctx context.Context, userID string, points int) error {
	if points == 0 {
		return nil
	}
	now := b.now()
	pipe := b.client.Pipeline()
	for _, p := range Periods {
		key := b.key(p, now)
		pipe.ZIncrBy(ctx, key, float64(points), userID)
		pipe.Expire(ctx, key, p.ttl())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("points board add failed: %w", err)
	}
	return nil
}

// Top returns the current bucket of p, highest first. Equal totals are
// ordered by user id descending, which is redis' ZREVRANGE order.
func (b *PointsBoard) Top(ctx context.Context, p Period, limit int) ([]PointsEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	zs, err := b.client.ZRevRangeWithScores(ctx, b.key(p, b.now()), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("points board read failed: %w", err)
	}
	out := make([]PointsEntry, 0, len(zs))
	for i, z := range zs {
		member, _ := z.Member.(string)
		out = append(out, PointsEntry{Rank: i + 1, UserID: member, Points: int64(z.Score)})
	}
	return out, nil
}

// Rank is the 1-based position of the user in the current bucket, or 0 when
// the user has no points there.
func (b *PointsBoard) Rank(ctx context.Context, p Period, userID string) (int, int64, error) {
	key := b.key(p, b.now())
	rank, err := b.client.ZRevRank(ctx, key, userID).Result()
	if err == redis.Nil {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("points board rank failed: %w", err)
	}
	score, err := b.client.ZScore(ctx, key, userID).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("points board score failed: %w", err)
	}
	return int(rank) + 1, int64(score), nil
}
