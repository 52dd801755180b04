package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/IsaacStallan/vivify-wellness-platform-sub000/handlers"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/middleware"
)

// registerAuthRoutes mounts the public account endpoints behind the per-IP
// rate limiter.
func registerAuthRoutes(api *gin.RouterGroup, h *handlers.Handler, opts Options) {
	limited := api.Group("")
	limited.Use(middleware.RateLimitMiddleware(opts.Store, "auth", opts.RateLimitRequests, opts.RateLimitWindow))
	limited.POST("/register", h.Register)
	limited.POST("/login", h.Login)
}
