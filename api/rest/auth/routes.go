package auth

import (
	"codeberg.org/cklabs/authserver/accounts/passwordreset"
	"codeberg.org/cklabs/authserver/accounts/tokens"
	"codeberg.org/cklabs/authserver/accounts/users"
	"codeberg.org/cklabs/authserver/internal/config"
	"codeberg.org/cklabs/authserver/internal/middleware"
	"github.com/gin-gonic/gin"
)

// registers credential authentication routes. rateLimit guards the
// endpoints that accept guessable secrets; pass nil to disable.
func RegisterRoutes(
	router *gin.RouterGroup,
	cfg *config.Config,
	userStore users.Store,
	tokenStore tokens.Store,
	resetService *passwordreset.Service,
	rateLimit gin.HandlerFunc,
) {
	authGroup := router.Group("/auth")

	limited := authGroup.Group("")
	if rateLimit != nil {
		limited.Use(rateLimit)
	}

	{
		authGroup.POST("/register", RegisterHandler(cfg, userStore, tokenStore))
		limited.POST("/login", LoginHandler(cfg, userStore, tokenStore))
		limited.POST("/password-reset", PasswordResetHandler(resetService))
		limited.POST("/password-reset/confirm", PasswordResetConfirmHandler(cfg, resetService))
		authGroup.GET("/me", middleware.RequireAuth(tokenStore, userStore), GetCurrentUserHandler())
		authGroup.POST("/logout", middleware.RequireAuth(tokenStore, userStore), LogoutHandler(tokenStore))
	}
}
