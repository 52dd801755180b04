package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/IsaacStallan/vivify-wellness-platform-sub000/cache"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/config"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/db"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/handlers"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/repository"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/routes"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/services"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/utils"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		color.Red("config: %v", err)
		os.Exit(1)
	}

	logger := utils.InitLogger(cfg.AppEnv, cfg.LogFile)
	defer logger.Sync()
	utils.InitMetrics()

	logger.Info("starting_application",
		zap.String("db_driver", cfg.DBDriver),
		zap.Bool("redis_enabled", cfg.RedisEnabled),
	)

	ctx := context.Background()
	repo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("repository_init_failed", zap.Error(err))
	}

	var (
		store       *cache.Store
		board       *cache.PointsBoard
		invalidator services.CacheInvalidator
		recorder    services.PointsRecorder
	)
	if cfg.RedisEnabled {
		client, err := cache.Connect(ctx, cfg.RedisAddr(), cfg.RedisPassword, logger)
		if err != nil {
			logger.Warn("redis_disabled", zap.Error(err))
		} else {
			store = cache.NewStore(client)
			board = cache.NewPointsBoard(client, cfg.Location)
			invalidator = store
			recorder = board
		}
	}

	users := services.NewUserService(repo, invalidator, logger, cfg.JWTSecret, cfg.JWTTTL)
	if err := users.SeedAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		logger.Error("admin_seed_failed", zap.Error(err))
	}

	leaderboard := services.NewLeaderboardService(repo, cfg.LeaderboardDefaultLimit, cfg.LeaderboardMaxLimit)
	h := &handlers.Handler{
		Users: users,
		Fitness: services.NewFitnessService(repo, invalidator, recorder, logger, services.FitnessOptions{
			LookbackDays:  cfg.StreakLookbackDays,
			DefaultPoints: cfg.DefaultWorkoutPoints,
			Location:      cfg.Location,
		}),
		Leaderboard:    leaderboard,
		Habits:         services.NewHabitService(repo, invalidator, recorder, logger, cfg.Location),
		Dashboard:      services.NewDashboardService(repo, leaderboard),
		Board:          board,
		RebuildWorkers: cfg.RebuildWorkers,
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := routes.SetupRouter(h, routes.Options{
		Users:             repo,
		Store:             store,
		JWTSecret:         []byte(cfg.JWTSecret),
		CORSOrigins:       cfg.CORSOrigins,
		CSRFKey:           []byte(cfg.CSRFKey),
		Secure:            cfg.IsProduction(),
		CacheTTL:          cfg.LeaderboardCacheTTL,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
	})

	startServer(router, cfg.Port, logger)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Close(); err != nil {
		logger.Warn("redis_close_failed", zap.Error(err))
	}
	if err := repo.Close(shutdownCtx); err != nil {
		logger.Warn("repository_close_failed", zap.Error(err))
	}
}

func openRepository(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Repository, error) {
	switch cfg.DBDriver {
	case config.DriverMongo:
		client, err := db.ConnectMongo(ctx, cfg.MongoURI, logger)
		if err != nil {
			return nil, err
		}
		database := client.Database(cfg.MongoDatabase)
		if err := repository.EnsureIndexes(ctx, database); err != nil {
			return nil, err
		}
		return repository.NewMongo(client, database), nil
	case config.DriverMemory:
		logger.Warn("memory_repository_in_use")
		return repository.NewMemory(), nil
	}

	conn, err := db.Connect(ctx, cfg.PostgresDSN(), logger)
	if err != nil {
		return nil, err
	}
	if err := repository.Migrate(conn); err != nil {
		return nil, err
	}
	return repository.NewGorm(conn), nil
}

func printBanner(port string) {
	title := color.New(color.FgGreen, color.Bold)
	title.Println("\n================================")
	title.Println("   Vivify API started")
	title.Println("================================")
	color.Cyan("   Server:  http://localhost:%s", port)
	color.Cyan("   Metrics: http://localhost:%s/metrics", port)
	color.Cyan("   Health:  http://localhost:%s/health", port)
	title.Println("================================")
}

// startServer blocks until SIGINT or SIGTERM, then drains in-flight
// requests.
func startServer(router *gin.Engine, port string, logger *zap.Logger) {
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("starting_http_server", zap.String("port", port))
	printBanner(port)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http_server_failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting_down_server")
	color.Yellow("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server_forced_shutdown", zap.Error(err))
	}

	logger.Info("server_stopped")
	color.Green("Server stopped gracefully")
}
