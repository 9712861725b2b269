package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"codeberg.org/cklabs/authserver/accounts/passwordreset"
	"codeberg.org/cklabs/authserver/accounts/tokens"
	"codeberg.org/cklabs/authserver/accounts/users"
	"codeberg.org/cklabs/authserver/internal/config"
	"codeberg.org/cklabs/authserver/internal/logger"
	"codeberg.org/cklabs/authserver/internal/mailer"
	"codeberg.org/cklabs/authserver/internal/middleware"
	"codeberg.org/cklabs/authserver/internal/provider"
	"codeberg.org/cklabs/authserver/internal/reconcile"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"
)

const (
	// how long the OAuth state cookie survives between the redirect to
	// the provider and the callback
	stateCookieMaxAge = 10 * time.Minute

	// per-address floor between password reset emails
	resetThrottleInterval = 15 * time.Minute
)

// creates and configures a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	var (
		db         *pgxpool.Pool
		userStore  users.Store
		tokenStore tokens.Store
		resetStore passwordreset.Store
	)

	if cfg.DatabaseURL == "" {
		logger.Warn("no DATABASE_URL configured, running on in-memory stores; all state is lost on restart")

		userStore = users.NewMemoryStore()
		tokenStore = tokens.NewMemoryStore()
		resetStore = passwordreset.NewMemoryStore()
	} else {
		pool, err := newPool(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}

		db = pool
		userStore = users.NewRepository(db)
		tokenStore = tokens.NewRepository(db)
		resetStore = passwordreset.NewRepository(db)
	}

	mail := mailer.New(cfg.Mailer)
	throttle := mailer.NewThrottle(rate.Every(resetThrottleInterval), 1)
	resetService := passwordreset.NewService(userStore, resetStore, mail, throttle, cfg.Mailer.ResetURLBase)

	reconciler := reconcile.New(userStore, reconcile.Options{
		AutoLink:         cfg.SocialAutoLink,
		UsernameStrategy: cfg.UsernameStrategy,
	})

	clients, err := buildProviderClients(cfg)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, err
	}

	rateLimit, err := middleware.RateLimit(cfg.AuthRateLimit, cfg.RedisURL)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, err
	}

	stateStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	stateStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(stateCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Environment == "production",
		SameSite: http.SameSiteLaxMode,
	}

	router := gin.Default()

	server := &Server{
		db:           db,
		config:       cfg,
		userStore:    userStore,
		tokenStore:   tokenStore,
		resetService: resetService,
		reconciler:   reconciler,
		clients:      clients,
		stateStore:   stateStore,
		rateLimit:    rateLimit,
		router:       router,
	}

	RegisterRoutes(router, server)

	return server, nil
}

func newPool(databaseURL string) (*pgxpool.Pool, error) {
	ctx := context.Background()

	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	db, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// builds one OAuth client per fully configured provider block; a
// provider with no credentials simply has no routes behind it
func buildProviderClients(cfg *config.Config) (map[provider.Provider]*provider.Client, error) {
	blocks := map[provider.Provider]config.ProviderCredentials{
		provider.Google:   cfg.Google,
		provider.Facebook: cfg.Facebook,
	}

	clients := make(map[provider.Provider]*provider.Client)

	for p, creds := range blocks {
		if !creds.Enabled() {
			continue
		}

		client, err := provider.NewClient(p, creds)
		if err != nil {
			return nil, fmt.Errorf("failed to build %s client: %w", p, err)
		}

		clients[p] = client
		logger.Info("social provider enabled", "provider", p.String())
	}

	if len(clients) == 0 {
		logger.Warn("no social providers configured, only credential authentication is available")
	}

	return clients, nil
}
