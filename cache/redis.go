package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrMiss = errors.New("cache miss")

// Store is a JSON cache over redis.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Client() *redis.Client { return s.client }

// Connect dials redis and pings it. The caller decides whether a failure is
// fatal; the API runs without cache when it is not.
func Connect(ctx context.Context, addr, password string, logger *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("redis_connection_failed",
			zap.Error(err),
			zap.String("addr", addr),
		)
		client.Close()
		return nil, err
	}

	logger.Info("redis_connected", zap.String("addr", addr))
	return client, nil
}

func (s *Store) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}
	return s.client.Set(ctx, key, data, expiration).Err()
}

// Get decodes the value at key into dest. A missing key gives ErrMiss.
func (s *Store) Get(ctx context.Context, key string, dest interface{}) error {
	val, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return ErrMiss
	} else if err != nil {
		return fmt.Errorf("cache get failed: %w", err)
	}

	if err := json.Unmarshal(val, dest); err != nil {
		return fmt.Errorf("cache unmarshal failed: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

// DeletePattern removes every key matching a glob, e.g. cache:public:*.
// Keys are collected over the whole SCAN first so deletes never shift the
// cursor.
func (s *Store) DeletePattern(ctx context.Context, pattern string) error {
	var (
		cursor  uint64
		matched []string
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		matched = append(matched, keys...)

		cursor = next
		if cursor == 0 {
			break
		}
	}

	for start := 0; start < len(matched); start += scanCount {
		end := start + scanCount
		if end > len(matched) {
			end = len(matched)
		}
		if err := s.client.Del(ctx, matched[start:end]...).Err(); err != nil {
			return fmt.Errorf("delete keys failed: %w", err)
		}
	}
	return nil
}

// IncrementCounter bumps key and sets its TTL on the first increment.
func (s *Store) IncrementCounter(ctx context.Context, key string, expiration time.Duration) (int64, error) {
	val, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}

	if val == 1 {
		if err := s.client.Expire(ctx, key, expiration).Err(); err != nil {
			return val, err
		}
	}
	return val, nil
}

func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

const (
	scanCount    = 100
	cachePrefix  = "cache:"
	publicPrefix = "cache:public:"
	userPrefix   = "cache:user:"
)

// PublicKey is the response-cache key shared by every caller.
func PublicKey(path, rawQuery string) string {
	return publicPrefix + path + "?" + rawQuery
}

// UserKey is the response-cache key private to one user.
func UserKey(userID, path, rawQuery string) string {
	return userPrefix + userID + ":" + path + "?" + rawQuery
}

// InvalidateUser drops the shared leaderboard responses and the user's own
// cached responses. Called after every write that moves scores.
func (s *Store) InvalidateUser(ctx context.Context, userID string) error {
	if err := s.DeletePattern(ctx, publicPrefix+"*"); err != nil {
		return err
	}
	return s.DeletePattern(ctx, userPrefix+userID+":*")
}

// InvalidateAll drops every cached response, shared and per user.
func (s *Store) InvalidateAll(ctx context.Context) error {
	return s.DeletePattern(ctx, cachePrefix+"*")
}
