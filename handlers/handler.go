package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/IsaacStallan/vivify-wellness-platform-sub000/cache"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/middleware"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/models"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/repository"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/services"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/utils"
)

// Handler holds the services behind the HTTP API. Board is nil when redis
// is disabled.
type Handler struct {
	Users          *services.UserService
	Fitness        *services.FitnessService
	Leaderboard    *services.LeaderboardService
	Habits         *services.HabitService
	Dashboard      *services.DashboardService
	Board          *cache.PointsBoard
	RebuildWorkers int
}

// respondError maps service errors to status codes. Anything unknown is a
// 500 and is counted.
func respondError(c *gin.Context, op string, err error) {
	status := http.StatusInternalServerError
	msg := "internal server error"

	switch {
	case errors.Is(err, services.ErrValidation), errors.Is(err, cache.ErrUnknownPeriod):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrInvalidCredentials):
		status, msg = http.StatusUnauthorized, err.Error()
	case errors.Is(err, services.ErrForbidden):
		status, msg = http.StatusForbidden, "forbidden"
	case errors.Is(err, repository.ErrNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, repository.ErrConflict):
		status, msg = http.StatusConflict, err.Error()
	}

	if status == http.StatusInternalServerError {
		utils.ErrorCount.WithLabelValues(op, "internal").Inc()
		utils.Logger.Error(op+"_failed", zap.Error(err))
	} else {
		utils.Logger.Debug(op+"_rejected", zap.Int("status", status), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

// mustUser is only used behind AuthMiddleware.
func mustUser(c *gin.Context) *models.User {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		panic("handler reached without AuthMiddleware")
	}
	return user
}

func (h *Handler) Health(c *gin.Context) {
	redisState := "disabled"
	if h.Board != nil {
		redisState = "enabled"
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"redis":  redisState,
	})
}
