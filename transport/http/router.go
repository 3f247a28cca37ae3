package http

import (
	"github.com/gin-gonic/gin"

	"github.com/layer-3/beacon/ports"
	"github.com/layer-3/beacon/service"
)

// SetupRouter wires the gin router. Every mutating route sits behind
// the rate limiter; the limiter runs after auth so authenticated
// callers are keyed by DID rather than IP.
func SetupRouter(handlers *Handlers, auth *service.AuthService, limiter ports.RateLimiter) *gin.Engine {
	router := gin.Default()

	authGroup := router.Group("/auth")
	authGroup.Use(RateLimitMiddleware(limiter))
	{
		authGroup.POST("/challenge", handlers.Challenge)
		authGroup.POST("/verify", handlers.Verify)
	}
	router.POST("/auth/logout", AuthMiddleware(auth), RateLimitMiddleware(limiter), handlers.Logout)

	api := router.Group("/api")
	api.Use(AuthMiddleware(auth), RateLimitMiddleware(limiter))
	{
		api.GET("/presence", handlers.BulkPresence)
		api.GET("/rooms/:id/access", handlers.RoomAccess)
		api.GET("/rooms/:id/members", handlers.RoomMembers)
		api.POST("/handle", handlers.UpdateHandle)
		api.GET("/ws", handlers.Connect)
	}

	admin := router.Group("/admin")
	admin.Use(AuthMiddleware(auth))
	{
		admin.POST("/bans", handlers.AddGlobalBan)
		admin.DELETE("/bans/:did", handlers.RemoveGlobalBan)
	}

	return router
}
