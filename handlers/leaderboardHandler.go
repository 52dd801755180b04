package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/IsaacStallan/vivify-wellness-platform-sub000/cache"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/middleware"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/models"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/services"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/utils"
)

type leaderboardQuery struct {
	Limit  int    `form:"limit" validate:"min=0,max=1000"`
	Role   string `form:"role" validate:"omitempty,oneof=student teacher admin"`
	School string `form:"school" validate:"max=120"`
	Sort   string `form:"sort" validate:"omitempty,oneof=fitness overall points"`
}

type pointsQuery struct {
	Period string `form:"period"`
	Limit  int    `form:"limit" validate:"min=0,max=100"`
}

type pointsRequest struct {
	Points int `json:"points" validate:"min=1,max=1000"`
}

func (h *Handler) GetLeaderboard(c *gin.Context) {
	var q leaderboardQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query")
		return
	}
	if err := middleware.ValidateStruct(q); err != nil {
		badRequest(c, middleware.ValidationMessage(err))
		return
	}

	resp, err := h.Leaderboard.Get(c.Request.Context(), services.LeaderboardQuery{
		Limit:  q.Limit,
		Role:   models.Role(q.Role),
		School: q.School,
		Sort:   q.Sort,
	})
	if err != nil {
		respondError(c, "leaderboard", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AddPoints is the broadcast target for point deltas earned on a client.
func (h *Handler) AddPoints(c *gin.Context) {
	if h.Board == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "points board unavailable"})
		return
	}
	var req pointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := middleware.ValidateStruct(req); err != nil {
		badRequest(c, middleware.ValidationMessage(err))
		return
	}

	me := mustUser(c)
	if err := h.Board.Add(c.Request.Context(), me.ID, req.Points); err != nil {
		respondError(c, "add_points", err)
		return
	}
	utils.Logger.Info("points_broadcast", zap.String("user_id", me.ID), zap.Int("points", req.Points))
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetPointsLeaderboard(c *gin.Context) {
	if h.Board == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "points board unavailable"})
		return
	}
	var q pointsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query")
		return
	}
	if err := middleware.ValidateStruct(q); err != nil {
		badRequest(c, middleware.ValidationMessage(err))
		return
	}
	period, err := cache.ParsePeriod(q.Period)
	if err != nil {
		respondError(c, "points_leaderboard", err)
		return
	}

	ctx := c.Request.Context()
	entries, err := h.Board.Top(ctx, period, q.Limit)
	if err != nil {
		respondError(c, "points_leaderboard", err)
		return
	}
	rank, points, err := h.Board.Rank(ctx, period, mustUser(c).ID)
	if err != nil {
		respondError(c, "points_leaderboard", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"period":      period,
		"leaderboard": entries,
		"me":          gin.H{"rank": rank, "points": points},
	})
}
