package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/IsaacStallan/vivify-wellness-platform-sub000/models"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/services"
)

type syncRequest struct {
	Workouts []services.WorkoutInput `json:"workouts"`
}

// CreateWorkout records a workout for the caller, or for userId when the
// caller is staff.
func (h *Handler) CreateWorkout(c *gin.Context) {
	me := mustUser(c)
	var input services.WorkoutInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if input.UserID == "" {
		input.UserID = me.ID
	}
	if input.UserID != me.ID && me.Role == models.RoleStudent {
		respondError(c, "create_workout", services.ErrForbidden)
		return
	}

	w, err := h.Fitness.RecordWorkout(c.Request.Context(), input)
	if err != nil {
		respondError(c, "create_workout", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"workout": w})
}

func (h *Handler) SyncWorkouts(c *gin.Context) {
	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	res, err := h.Fitness.SyncWorkouts(c.Request.Context(), mustUser(c).ID, req.Workouts)
	if err != nil {
		respondError(c, "sync_workouts", err)
		return
	}
	c.JSON(http.StatusOK, res)
}
