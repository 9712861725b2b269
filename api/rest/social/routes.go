package social

import (
	"codeberg.org/cklabs/authserver/accounts/tokens"
	"codeberg.org/cklabs/authserver/internal/provider"
	"codeberg.org/cklabs/authserver/internal/reconcile"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
)

// registers social sign-on routes. clients holds one OAuth client per
// configured provider; unconfigured providers answer 400.
func RegisterRoutes(
	router *gin.RouterGroup,
	clients map[provider.Provider]*provider.Client,
	reconciler *reconcile.Reconciler,
	tokenStore tokens.Store,
	stateStore *sessions.CookieStore,
) {
	socialGroup := router.Group("/auth/social")

	{
		socialGroup.GET("/:provider", BeginAuthHandler(clients, stateStore))
		socialGroup.POST("/:provider", CallbackHandler(clients, reconciler, tokenStore, stateStore))
	}
}
