package middleware

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/IsaacStallan/vivify-wellness-platform-sub000/cache"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/utils"
)

// CacheMiddleware caches successful GET responses in Redis. perUser keys the
// entry by the authenticated user; otherwise one entry serves everybody.
// A nil store disables caching.
func CacheMiddleware(store *cache.Store, ttl time.Duration, perUser bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil || ttl <= 0 || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := cache.PublicKey(c.Request.URL.Path, c.Request.URL.RawQuery)
		if perUser {
			user, ok := CurrentUser(c)
			if !ok {
				c.Next()
				return
			}
			key = cache.UserKey(user.ID, c.Request.URL.Path, c.Request.URL.RawQuery)
		}

		ctx := c.Request.Context()
		var cached CachedResponse
		if err := store.Get(ctx, key, &cached); err == nil {
			utils.LeaderboardCache.WithLabelValues("hit").Inc()
			utils.Logger.Debug("cache_hit", zap.String("key", key))
			c.Header("X-Cache", "HIT")
			c.Data(cached.Status, cached.ContentType, cached.Body)
			c.Abort()
			return
		}

		utils.LeaderboardCache.WithLabelValues("miss").Inc()
		utils.Logger.Debug("cache_miss", zap.String("key", key))
		c.Header("X-Cache", "MISS")

		blw := &bodyLogWriter{body: &bytes.Buffer{}, ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		if c.Writer.Status() != http.StatusOK {
			return
		}
		resp := CachedResponse{
			Status:      http.StatusOK,
			ContentType: c.Writer.Header().Get("Content-Type"),
			Body:        blw.body.Bytes(),
		}
		if err := store.Set(ctx, key, resp, ttl); err != nil {
			utils.Logger.Warn("cache_set_failed", zap.String("key", key), zap.Error(err))
		}
	}
}

type CachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *bodyLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyLogWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// RateLimitMiddleware allows maxRequests per window for each client IP and
// scope. Redis errors let the request through.
func RateLimitMiddleware(store *cache.Store, scope string, maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil || maxRequests <= 0 {
			c.Next()
			return
		}

		clientIP := c.ClientIP()
		key := "rate_limit:" + scope + ":" + clientIP

		count, err := store.IncrementCounter(c.Request.Context(), key, window)
		if err != nil {
			utils.Logger.Error("rate_limit_error", zap.Error(err))
			c.Next()
			return
		}

		remaining := maxRequests - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if count > int64(maxRequests) {
			utils.Logger.Warn("rate_limit_exceeded",
				zap.String("ip", clientIP),
				zap.String("scope", scope),
				zap.Int64("count", count),
			)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests, try again later",
			})
			return
		}

		c.Next()
	}
}
