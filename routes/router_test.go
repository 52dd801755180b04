package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/IsaacStallan/vivify-wellness-platform-sub000/cache"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/handlers"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/models"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/repository"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/services"
)

const jwtSecret = "router-test-secret"

type env struct {
	t      *testing.T
	router *gin.Engine
	repo   repository.Repository
	users  *services.UserService
	mr     *miniredis.Miniredis
}

func setup(t *testing.T) *env {
	t.Helper()
	return setupWith(t, nil)
}

// setupWith lets a test adjust the router options before the router is built.
func setupWith(t *testing.T, configure func(*Options)) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := cache.NewStore(client)
	board := cache.NewPointsBoard(client, time.UTC)

	repo := repository.NewMemory()
	logger := zap.NewNop()
	users := services.NewUserService(repo, store, logger, jwtSecret, time.Hour)
	leaderboard := services.NewLeaderboardService(repo, 20, 100)
	h := &handlers.Handler{
		Users:          users,
		Fitness:        services.NewFitnessService(repo, store, board, logger, services.FitnessOptions{DefaultPoints: 10}),
		Leaderboard:    leaderboard,
		Habits:         services.NewHabitService(repo, store, board, logger, time.UTC),
		Dashboard:      services.NewDashboardService(repo, leaderboard),
		Board:          board,
		RebuildWorkers: 2,
	}

	opts := Options{
		Users:             repo,
		Store:             store,
		JWTSecret:         []byte(jwtSecret),
		CORSOrigins:       []string{"http://localhost:3000"},
		CacheTTL:          time.Minute,
		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
	}
	if configure != nil {
		configure(&opts)
	}
	r := SetupRouter(h, opts)
	return &env{t: t, router: r, repo: repo, users: users, mr: mr}
}

func (e *env) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dst), w.Body.String())
}

func (e *env) register(username string, role models.Role, school string) (string, string) {
	e.t.Helper()
	w := e.do(http.MethodPost, "/api/register", "", gin.H{
		"username": username,
		"password": "secret123",
		"school":   school,
		"role":     role,
	})
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
	var res services.AuthResult
	decode(e.t, w, &res)
	return res.Token, res.User.ID
}

func TestHealth(t *testing.T) {
	e := setup(t)
	w := e.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","redis":"enabled"}`, w.Body.String())
}

func TestAuthFlow(t *testing.T) {
	e := setup(t)
	token, id := e.register("ana", models.RoleStudent, "North")

	w := e.do(http.MethodPost, "/api/register", "", gin.H{"username": "ana", "password": "secret123"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = e.do(http.MethodPost, "/api/register", "", gin.H{"username": "boss", "password": "secret123", "role": "admin"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/api/login", "", gin.H{"username": "ana", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(http.MethodPost, "/api/login", "", gin.H{"username": "ana", "password": "secret123"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(http.MethodGet, "/api/users/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me map[string]interface{}
	decode(t, w, &me)
	assert.Equal(t, id, me["id"])
	_, hasScores := me["scores"]
	assert.False(t, hasScores, "scores appear only once computed")

	w = e.do(http.MethodPut, "/api/users/me", token, gin.H{"displayName": "Ana"})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &me)
	assert.Equal(t, "Ana", me["displayName"])
	assert.Equal(t, "North", me["school"])

	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/api/users/me", "", nil).Code)
}

func TestGetUserAccess(t *testing.T) {
	e := setup(t)
	anaToken, anaID := e.register("ana", models.RoleStudent, "North")
	_, benID := e.register("ben", models.RoleStudent, "North")
	tinaToken, _ := e.register("tina", models.RoleTeacher, "North")

	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/api/users/"+anaID, anaToken, nil).Code)
	assert.Equal(t, http.StatusForbidden, e.do(http.MethodGet, "/api/users/"+benID, anaToken, nil).Code)
	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/api/users/"+benID, tinaToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/api/users/missing", tinaToken, nil).Code)
}

func TestWorkoutEndpoints(t *testing.T) {
	e := setup(t)
	anaToken, anaID := e.register("ana", models.RoleStudent, "North")
	_, benID := e.register("ben", models.RoleStudent, "North")
	tinaToken, _ := e.register("tina", models.RoleTeacher, "North")

	w := e.do(http.MethodPost, "/api/workouts", anaToken, gin.H{"workoutType": "run", "duration": 30})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Workout models.Workout `json:"workout"`
	}
	decode(t, w, &created)
	assert.Equal(t, anaID, created.Workout.UserID)
	assert.Equal(t, 10, created.Workout.Points)

	tests := []struct {
		name   string
		token  string
		body   gin.H
		status int
	}{
		{name: "missing type", token: anaToken, body: gin.H{"duration": 10}, status: http.StatusBadRequest},
		{name: "student for someone else", token: anaToken, body: gin.H{"userId": benID, "workoutType": "run"}, status: http.StatusForbidden},
		{name: "teacher for a student", token: tinaToken, body: gin.H{"userId": benID, "workoutType": "run"}, status: http.StatusCreated},
		{name: "teacher for unknown user", token: tinaToken, body: gin.H{"userId": "nobody", "workoutType": "run"}, status: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do(http.MethodPost, "/api/workouts", tt.token, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}

	w = e.do(http.MethodPost, "/api/workouts/sync", anaToken, gin.H{"workouts": []gin.H{
		{"workoutType": "swim", "points": 5},
		{"workoutType": ""},
	}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"syncedCount":1,"skipped":1}`, w.Body.String())

	u, err := e.repo.GetUser(context.Background(), anaID)
	require.NoError(t, err)
	assert.Equal(t, 2, u.Metrics.TotalWorkouts)
	assert.Equal(t, 15, u.TotalPoints)
}

func TestLeaderboardEndpoint(t *testing.T) {
	e := setup(t)
	anaToken, _ := e.register("ana", models.RoleStudent, "North")
	benToken, _ := e.register("ben", models.RoleStudent, "North")

	require.Equal(t, http.StatusCreated, e.do(http.MethodPost, "/api/workouts", benToken, gin.H{"workoutType": "run"}).Code)

	w := e.do(http.MethodGet, "/api/leaderboard?role=student", anaToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	var resp services.LeaderboardResponse
	decode(t, w, &resp)
	require.Len(t, resp.Leaderboard, 2)
	assert.Equal(t, "ben", resp.Leaderboard[0].Username)
	assert.Equal(t, 1, resp.Leaderboard[0].Rank)
	assert.Equal(t, "ana", resp.Leaderboard[1].Username)
	assert.Equal(t, 0, resp.Leaderboard[1].FitnessScore)
	assert.Equal(t, 2, resp.TotalUsers)

	w = e.do(http.MethodGet, "/api/leaderboard?role=student", anaToken, nil)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))

	// a write drops the cached board
	require.Equal(t, http.StatusCreated, e.do(http.MethodPost, "/api/workouts", anaToken, gin.H{"workoutType": "run"}).Code)
	w = e.do(http.MethodGet, "/api/leaderboard?role=student", anaToken, nil)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/api/leaderboard?sort=random", anaToken, nil).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/api/leaderboard?limit=-1", anaToken, nil).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/api/leaderboard?limit=abc", anaToken, nil).Code)
}

func TestPointsBoardEndpoints(t *testing.T) {
	e := setup(t)
	anaToken, anaID := e.register("ana", models.RoleStudent, "")
	benToken, _ := e.register("ben", models.RoleStudent, "")

	assert.Equal(t, http.StatusNoContent, e.do(http.MethodPost, "/api/leaderboard/points", anaToken, gin.H{"points": 30}).Code)
	assert.Equal(t, http.StatusNoContent, e.do(http.MethodPost, "/api/leaderboard/points", benToken, gin.H{"points": 10}).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPost, "/api/leaderboard/points", benToken, gin.H{"points": 0}).Code)

	w := e.do(http.MethodGet, "/api/leaderboard/points?period=daily", benToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Period      string              `json:"period"`
		Leaderboard []cache.PointsEntry `json:"leaderboard"`
		Me          struct {
			Rank   int   `json:"rank"`
			Points int64 `json:"points"`
		} `json:"me"`
	}
	decode(t, w, &resp)
	assert.Equal(t, "daily", resp.Period)
	require.Len(t, resp.Leaderboard, 2)
	assert.Equal(t, anaID, resp.Leaderboard[0].UserID)
	assert.EqualValues(t, 30, resp.Leaderboard[0].Points)
	assert.Equal(t, 2, resp.Me.Rank)
	assert.EqualValues(t, 10, resp.Me.Points)

	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/api/leaderboard/points?period=yearly", benToken, nil).Code)
}

func TestHabitEndpoints(t *testing.T) {
	e := setup(t)
	token, id := e.register("ana", models.RoleStudent, "")

	w := e.do(http.MethodPost, "/api/habits", token, gin.H{"name": "Meditate", "category": "Mental Wellness", "points": 15})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Habit models.Habit `json:"habit"`
	}
	decode(t, w, &created)
	assert.Equal(t, "mental", string(created.Habit.Category))

	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPost, "/api/habits", token, gin.H{"name": "x", "category": "cosmic", "points": 5}).Code)

	w = e.do(http.MethodPost, "/api/habits/"+created.Habit.ID+"/complete", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res services.CompletionResult
	decode(t, w, &res)
	assert.Equal(t, 1, res.Habit.Streak)
	assert.Equal(t, 15, res.TotalPoints)
	assert.Greater(t, res.Scores.Mental, 0)

	assert.Equal(t, http.StatusConflict, e.do(http.MethodPost, "/api/habits/"+created.Habit.ID+"/complete", token, nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodPost, "/api/habits/missing/complete", token, nil).Code)

	w = e.do(http.MethodGet, "/api/habits", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Habits []models.Habit `json:"habits"`
	}
	decode(t, w, &list)
	require.Len(t, list.Habits, 1)
	assert.Equal(t, 1, list.Habits[0].Streak)

	w = e.do(http.MethodGet, "/api/users/me", token, nil)
	var me models.UserResponse
	decode(t, w, &me)
	assert.Equal(t, id, me.ID)
	require.NotNil(t, me.Scores)
	assert.Equal(t, res.Scores, *me.Scores)
}

func TestDashboardByRole(t *testing.T) {
	e := setup(t)
	anaToken, _ := e.register("ana", models.RoleStudent, "North")
	tinaToken, _ := e.register("tina", models.RoleTeacher, "North")

	w := e.do(http.MethodGet, "/api/dashboard", anaToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var student services.StudentDashboard
	decode(t, w, &student)
	assert.Equal(t, 1, student.Rank)
	assert.Equal(t, 1, student.TotalRanked)

	w = e.do(http.MethodGet, "/api/dashboard", tinaToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var teacher services.TeacherDashboard
	decode(t, w, &teacher)
	assert.Equal(t, "North", teacher.School)
	assert.Equal(t, 1, teacher.Averages.Students)

	assert.Equal(t, "HIT", e.do(http.MethodGet, "/api/dashboard", anaToken, nil).Header().Get("X-Cache"))
}

func TestAdminEndpoints(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	require.NoError(t, e.users.SeedAdmin(ctx, "root", "rootpass1"))
	studentToken, studentID := e.register("ana", models.RoleStudent, "North")

	w := e.do(http.MethodPost, "/api/login", "", gin.H{"username": "root", "password": "rootpass1"})
	require.Equal(t, http.StatusOK, w.Code)
	var login services.AuthResult
	decode(t, w, &login)

	assert.Equal(t, http.StatusForbidden, e.do(http.MethodGet, "/api/admin/users", studentToken, nil).Code)

	w = e.do(http.MethodGet, "/api/admin/users?role=student", login.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var users struct {
		Users []models.UserResponse `json:"users"`
		Count int                   `json:"count"`
	}
	decode(t, w, &users)
	assert.Equal(t, 1, users.Count)
	assert.Equal(t, "ana", users.Users[0].Username)
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/api/admin/users?role=guest", login.Token, nil).Code)

	require.NoError(t, e.repo.InsertWorkout(ctx, &models.Workout{UserID: studentID, WorkoutType: "run", Timestamp: time.Now().UTC()}))
	w = e.do(http.MethodPost, "/api/admin/metrics/rebuild", login.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rebuilt services.RebuildResult
	decode(t, w, &rebuilt)
	assert.Equal(t, 2, rebuilt.Users)
	assert.Equal(t, 0, rebuilt.Failed)

	u, err := e.repo.GetUser(ctx, studentID)
	require.NoError(t, err)
	assert.Equal(t, 1, u.Metrics.TotalWorkouts)
}

func TestAuthRateLimit(t *testing.T) {
	e := setup(t)
	e.router = SetupRouter(&handlers.Handler{Users: e.users}, Options{
		Users:             e.repo,
		Store:             cache.NewStore(redis.NewClient(&redis.Options{Addr: e.mr.Addr()})),
		JWTSecret:         []byte(jwtSecret),
		RateLimitRequests: 2,
		RateLimitWindow:   time.Minute,
	})

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodPost, "/api/login", "", gin.H{"username": "x", "password": "y"}).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, e.do(http.MethodPost, "/api/login", "", gin.H{"username": "x", "password": "y"}).Code)
}

func TestCSRFProtection(t *testing.T) {
	e := setupWith(t, func(o *Options) {
		o.CSRFKey = []byte("0123456789abcdef0123456789abcdef")
	})
	register := func(username, token string, cookies []*http.Cookie) *httptest.ResponseRecorder {
		body, err := json.Marshal(gin.H{"username": username, "password": "secret123"})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/api/register", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("X-CSRF-Token", token)
		}
		for _, c := range cookies {
			req.AddCookie(c)
		}
		w := httptest.NewRecorder()
		e.router.ServeHTTP(w, req)
		return w
	}

	w := register("ana", "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"CSRF token validation failed"}`, w.Body.String())

	w = e.do(http.MethodGet, "/api/csrf", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var res struct {
		CSRFToken string `json:"csrfToken"`
	}
	decode(t, w, &res)
	require.NotEmpty(t, res.CSRFToken)
	assert.Equal(t, res.CSRFToken, w.Header().Get("X-CSRF-Token"))
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	w = register("ana", res.CSRFToken, cookies)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// bearer clients are not exposed to CSRF and skip the token
	auth, err := e.users.Register(context.Background(), services.RegisterInput{Username: "ben", Password: "secret123"})
	require.NoError(t, err)
	w = e.do(http.MethodPost, "/api/workouts", auth.Token, gin.H{"workoutType": "run"})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}
