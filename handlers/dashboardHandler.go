package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/IsaacStallan/vivify-wellness-platform-sub000/middleware"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/models"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/repository"
)

type adminUsersQuery struct {
	Role   string `form:"role" validate:"omitempty,oneof=student teacher admin"`
	School string `form:"school" validate:"max=120"`
	Limit  int    `form:"limit" validate:"min=0,max=1000"`
}

func (h *Handler) GetDashboard(c *gin.Context) {
	d, err := h.Dashboard.For(c.Request.Context(), mustUser(c).ID)
	if err != nil {
		respondError(c, "dashboard", err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) AdminListUsers(c *gin.Context) {
	var q adminUsersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query")
		return
	}
	if err := middleware.ValidateStruct(q); err != nil {
		badRequest(c, middleware.ValidationMessage(err))
		return
	}
	users, err := h.Users.List(c.Request.Context(), repository.UserQuery{
		Role:   models.Role(q.Role),
		School: q.School,
		Limit:  q.Limit,
	})
	if err != nil {
		respondError(c, "admin_users", err)
		return
	}
	out := make([]models.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, u.Response())
	}
	c.JSON(http.StatusOK, gin.H{"users": out, "count": len(out)})
}

// RebuildMetrics recomputes every snapshot. The job is detached from the
// request so a dropped connection does not stop it halfway.
func (h *Handler) RebuildMetrics(c *gin.Context) {
	ctx := context.WithoutCancel(c.Request.Context())
	res, err := h.Fitness.RebuildAll(ctx, h.RebuildWorkers)
	if err != nil {
		respondError(c, "rebuild_metrics", err)
		return
	}
	c.JSON(http.StatusOK, res)
}
