package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/cklabs/authserver/internal/config"
	"codeberg.org/cklabs/authserver/internal/logger"
)

// @title Auth Server API
// @version 1.0
// @description Token-based authentication service
// @description
// @description Features:
// @description - Credential registration and login with configurable identifier fields
// @description - OAuth social sign-on (Google, Facebook) with account reconciliation
// @description - Password reset over email
// @description - Opaque bearer session tokens

// @contact.name API Support
// @contact.url https://codeberg.org/cklabs/authserver

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Session token for authenticated requests. Format: Bearer {token}

func main() {
	logger.Info("starting auth server")

	// load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", "error", err)
	}

	// create server with all dependencies
	srv, err := NewServer(cfg)
	if err != nil {
		logger.Fatal("failed to create server", "error", err)
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      srv.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// start server in goroutine
	go func() {
		logger.Info("server listening", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	// wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	// graceful shutdown with 10 second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	// close database connection
	if srv.db != nil {
		srv.db.Close()
	}

	logger.Info("server stopped")
}
