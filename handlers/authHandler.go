package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/IsaacStallan/vivify-wellness-platform-sub000/models"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/services"
)

func (h *Handler) Register(c *gin.Context) {
	var input services.RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	res, err := h.Users.Register(c.Request.Context(), input)
	if err != nil {
		respondError(c, "register", err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Login(c *gin.Context) {
	var input services.LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	res, err := h.Users.Login(c.Request.Context(), input)
	if err != nil {
		respondError(c, "login", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, mustUser(c).Response())
}

func (h *Handler) UpdateMe(c *gin.Context) {
	var input services.ProfileInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	u, err := h.Users.UpdateProfile(c.Request.Context(), mustUser(c).ID, input)
	if err != nil {
		respondError(c, "update_profile", err)
		return
	}
	c.JSON(http.StatusOK, u.Response())
}

// GetUser is for staff; students may only read themselves.
func (h *Handler) GetUser(c *gin.Context) {
	me := mustUser(c)
	id := c.Param("id")
	if me.Role == models.RoleStudent && id != me.ID {
		respondError(c, "get_user", services.ErrForbidden)
		return
	}
	u, err := h.Users.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, "get_user", err)
		return
	}
	c.JSON(http.StatusOK, u.Response())
}
