package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/IsaacStallan/vivify-wellness-platform-sub000/services"
)

func (h *Handler) ListHabits(c *gin.Context) {
	habits, err := h.Habits.List(c.Request.Context(), mustUser(c).ID)
	if err != nil {
		respondError(c, "list_habits", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"habits": habits})
}

func (h *Handler) CreateHabit(c *gin.Context) {
	var input services.HabitInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	habit, err := h.Habits.Create(c.Request.Context(), mustUser(c).ID, input)
	if err != nil {
		respondError(c, "create_habit", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"habit": habit})
}

func (h *Handler) CompleteHabit(c *gin.Context) {
	res, err := h.Habits.Complete(c.Request.Context(), mustUser(c).ID, c.Param("id"))
	if err != nil {
		respondError(c, "complete_habit", err)
		return
	}
	c.JSON(http.StatusOK, res)
}
