package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rvale/gatehouse/internal/auth"
	"github.com/rvale/gatehouse/internal/config"
	"github.com/rvale/gatehouse/internal/database"
	"github.com/rvale/gatehouse/internal/logging"
	"github.com/rvale/gatehouse/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	srv := server.New(db, cfg, logger)

	if err := bootstrapAdmin(srv, cfg, logger); err != nil {
		logger.Error("failed to bootstrap admin", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Background cleanup goroutine
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(); err != nil {
					logger.Error("cleanup expired sessions", "error", err)
				} else if n > 0 {
					logger.Info("cleaned up expired sessions", "count", n)
				}
				if err := srv.Engine().InvalidateExpiredTokens(); err != nil {
					logger.Error("cleanup expired tokens", "error", err)
				}
				srv.RateLimiter().Cleanup()
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("gatehouse starting", "addr", ":"+cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cleanupCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

// bootstrapAdmin creates the initial admin account when the user table is
// empty and bootstrap credentials are configured.
func bootstrapAdmin(srv *server.Server, cfg *config.Config, logger *slog.Logger) error {
	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		return nil
	}
	n, err := srv.UserStore().Count()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	codec := auth.NewCodec(cfg.BcryptCost)
	hash, err := codec.Hash(cfg.AdminPassword)
	if err != nil {
		return err
	}
	user, err := srv.UserStore().Create(cfg.AdminUsername, "", hash, true)
	if err != nil {
		return err
	}
	logger.Info("bootstrapped admin user", "user_id", user.ID, "username", user.Username)
	return nil
}
