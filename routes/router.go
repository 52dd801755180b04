package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/IsaacStallan/vivify-wellness-platform-sub000/cache"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/handlers"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/middleware"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/models"
)

// Options carries everything the router needs besides the handlers. Store
// may be nil, which turns off response caching and rate limiting.
type Options struct {
	Users       middleware.UserLoader
	Store       *cache.Store
	JWTSecret   []byte
	CORSOrigins []string
	CSRFKey     []byte
	Secure      bool

	CacheTTL          time.Duration
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// corsConfig allows credentials only for an explicit origin list; an empty
// list or "*" opens the API to any origin without cookies.
func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-CSRF-Token", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Cache", "X-CSRF-Token", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

func SetupRouter(h *handlers.Handler, opts Options) *gin.Engine {
	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.SecurityHeaders())
	r.Use(cors.New(corsConfig(opts.CORSOrigins)))

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	if len(opts.CSRFKey) > 0 {
		api.Use(middleware.CSRFProtection(opts.CSRFKey, opts.Secure))
		api.GET("/csrf", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"csrfToken": c.GetString("csrf_token")})
		})
	}

	registerAuthRoutes(api, h, opts)

	authed := api.Group("")
	authed.Use(middleware.AuthMiddleware(opts.JWTSecret, opts.Users))
	{
		authed.GET("/users/me", h.Me)
		authed.PUT("/users/me", h.UpdateMe)
		authed.GET("/users/:id", h.GetUser)

		authed.POST("/workouts", h.CreateWorkout)
		authed.POST("/workouts/sync", h.SyncWorkouts)

		authed.GET("/leaderboard", middleware.CacheMiddleware(opts.Store, opts.CacheTTL, false), h.GetLeaderboard)
		authed.GET("/leaderboard/points", h.GetPointsLeaderboard)
		authed.POST("/leaderboard/points", h.AddPoints)

		authed.GET("/habits", h.ListHabits)
		authed.POST("/habits", h.CreateHabit)
		authed.POST("/habits/:id/complete", h.CompleteHabit)

		authed.GET("/dashboard", middleware.CacheMiddleware(opts.Store, opts.CacheTTL, true), h.GetDashboard)
	}

	admin := authed.Group("/admin")
	admin.Use(middleware.RoleMiddleware(models.RoleAdmin))
	{
		admin.GET("/users", h.AdminListUsers)
		admin.POST("/metrics/rebuild", h.RebuildMetrics)
	}

	return r
}
