package main

import (
	"codeberg.org/cklabs/authserver/accounts/passwordreset"
	"codeberg.org/cklabs/authserver/accounts/tokens"
	"codeberg.org/cklabs/authserver/accounts/users"
	"codeberg.org/cklabs/authserver/internal/config"
	"codeberg.org/cklabs/authserver/internal/provider"
	"codeberg.org/cklabs/authserver/internal/reconcile"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/jackc/pgx/v5/pgxpool"
)

// holds all dependencies and state for the API server
type Server struct {
	db           *pgxpool.Pool // nil when running on in-memory stores
	config       *config.Config
	userStore    users.Store
	tokenStore   tokens.Store
	resetService *passwordreset.Service
	reconciler   *reconcile.Reconciler
	clients      map[provider.Provider]*provider.Client
	stateStore   *sessions.CookieStore
	rateLimit    gin.HandlerFunc
	router       *gin.Engine
}
