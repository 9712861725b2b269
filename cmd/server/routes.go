package main

import (
	"time"

	"codeberg.org/cklabs/authserver/api/rest/auth"
	"codeberg.org/cklabs/authserver/api/rest/health"
	"codeberg.org/cklabs/authserver/api/rest/social"
	"codeberg.org/cklabs/authserver/internal/errors"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// sets up all API routes and middleware
func RegisterRoutes(router *gin.Engine, server *Server) {
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{server.config.BaseURL},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", health.Handler)

	// JSON 404s instead of gin's plain-text default
	router.NoRoute(func(c *gin.Context) {
		errors.NotFound(c, "route")
	})

	v1 := router.Group("/api/v1")

	{
		v1.GET("/ping", health.PingHandler)

		auth.RegisterRoutes(v1, server.config, server.userStore, server.tokenStore, server.resetService, server.rateLimit)
		social.RegisterRoutes(v1, server.clients, server.reconciler, server.tokenStore, server.stateStore)
	}
}
