package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IsaacStallan/vivify-wellness-platform-sub000/cache"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/models"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/repository"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/utils"
)

var secret = []byte("middleware-test")

func init() {
	gin.SetMode(gin.TestMode)
}

func newStore(t *testing.T) (*miniredis.Miniredis, *cache.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, cache.NewStore(client)
}

func serve(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func seed(t *testing.T, repo repository.Repository, username string, role models.Role, active bool) (*models.User, string) {
	t.Helper()
	u := &models.User{Username: username, Role: role, IsActive: active}
	require.NoError(t, repo.CreateUser(context.Background(), u))
	token, err := utils.GenerateToken(u.ID, u.Username, string(u.Role), secret, time.Hour)
	require.NoError(t, err)
	return u, token
}

func TestAuthMiddleware(t *testing.T) {
	repo := repository.NewMemory()
	active, token := seed(t, repo, "ana", models.RoleStudent, true)
	_, inactiveToken := seed(t, repo, "old", models.RoleStudent, false)
	otherKey, err := utils.GenerateToken(active.ID, "ana", "student", []byte("other"), time.Hour)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", AuthMiddleware(secret, repo), func(c *gin.Context) {
		u, ok := CurrentUser(c)
		require.True(t, ok)
		c.String(http.StatusOK, u.ID)
	})

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{name: "no token", token: "", status: http.StatusUnauthorized},
		{name: "garbage", token: "not-a-jwt", status: http.StatusUnauthorized},
		{name: "wrong key", token: otherKey, status: http.StatusUnauthorized},
		{name: "inactive user", token: inactiveToken, status: http.StatusUnauthorized},
		{name: "valid", token: token, status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, http.MethodGet, "/me", tt.token)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, active.ID, w.Body.String())
			}
		})
	}
}

func TestRoleMiddleware(t *testing.T) {
	repo := repository.NewMemory()
	_, student := seed(t, repo, "ana", models.RoleStudent, true)
	_, teacher := seed(t, repo, "tina", models.RoleTeacher, true)

	r := gin.New()
	r.GET("/staff", AuthMiddleware(secret, repo), RoleMiddleware(models.RoleTeacher, models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/bare", RoleMiddleware(models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/staff", student).Code)
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodGet, "/staff", teacher).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/bare", "").Code)
}

func TestCacheMiddlewarePublic(t *testing.T) {
	mr, store := newStore(t)
	calls := 0
	r := gin.New()
	r.GET("/board", CacheMiddleware(store, time.Minute, false), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"calls": calls})
	})

	first := serve(r, http.MethodGet, "/board?limit=5", "")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	second := serve(r, http.MethodGet, "/board?limit=5", "")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "application/json; charset=utf-8", second.Header().Get("Content-Type"))
	assert.Equal(t, 1, calls)

	// a different query is a different entry
	serve(r, http.MethodGet, "/board?limit=6", "")
	assert.Equal(t, 2, calls)

	require.NoError(t, store.InvalidateUser(context.Background(), "anyone"))
	serve(r, http.MethodGet, "/board?limit=5", "")
	assert.Equal(t, 3, calls)

	mr.FastForward(2 * time.Minute)
	serve(r, http.MethodGet, "/board?limit=6", "")
	assert.Equal(t, 4, calls)
}

func TestCacheMiddlewarePerUser(t *testing.T) {
	_, store := newStore(t)
	repo := repository.NewMemory()
	ana, anaToken := seed(t, repo, "ana", models.RoleStudent, true)
	_, benToken := seed(t, repo, "ben", models.RoleStudent, true)

	r := gin.New()
	r.GET("/dash", AuthMiddleware(secret, repo), CacheMiddleware(store, time.Minute, true), func(c *gin.Context) {
		u, _ := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"user": u.Username})
	})

	assert.Contains(t, serve(r, http.MethodGet, "/dash", anaToken).Body.String(), "ana")
	w := serve(r, http.MethodGet, "/dash", benToken)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Contains(t, w.Body.String(), "ben")
	assert.Equal(t, "HIT", serve(r, http.MethodGet, "/dash", anaToken).Header().Get("X-Cache"))

	require.NoError(t, store.InvalidateUser(context.Background(), ana.ID))
	assert.Equal(t, "MISS", serve(r, http.MethodGet, "/dash", anaToken).Header().Get("X-Cache"))
	assert.Equal(t, "HIT", serve(r, http.MethodGet, "/dash", benToken).Header().Get("X-Cache"))
}

func TestCacheMiddlewareSkipsErrorsAndNilStore(t *testing.T) {
	_, store := newStore(t)
	calls := 0
	r := gin.New()
	r.GET("/fail", CacheMiddleware(store, time.Minute, false), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
	})
	r.GET("/nocache", CacheMiddleware(nil, time.Minute, false), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	serve(r, http.MethodGet, "/fail", "")
	serve(r, http.MethodGet, "/fail", "")
	assert.Equal(t, 2, calls)
	assert.Empty(t, serve(r, http.MethodGet, "/nocache", "").Header().Get("X-Cache"))
}

func TestRateLimitMiddleware(t *testing.T) {
	mr, store := newStore(t)
	r := gin.New()
	r.POST("/login", RateLimitMiddleware(store, "auth", 2, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/login", "").Code)
	w := serve(r, http.MethodPost, "/login", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodPost, "/login", "").Code)

	mr.FastForward(61 * time.Second)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/login", "").Code)
}

func TestRecoveryAndHeaders(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(), RequestLogger(), SecurityHeaders())
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodGet, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())

	w = serve(r, http.MethodGet, "/ok", "")
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestValidationMessage(t *testing.T) {
	type query struct {
		Limit int `validate:"min=0,max=100"`
	}
	err := ValidateStruct(query{Limit: 500})
	require.Error(t, err)
	assert.Equal(t, "limit failed max=100", ValidationMessage(err))
	assert.NoError(t, ValidateStruct(query{Limit: 5}))
}
