package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Exanteros/darts-sub002/internal/config"
	"github.com/Exanteros/darts-sub002/internal/db"
	"github.com/Exanteros/darts-sub002/internal/notify"
	"github.com/Exanteros/darts-sub002/internal/ratelimit"
	"github.com/Exanteros/darts-sub002/internal/service"
	"github.com/Exanteros/darts-sub002/internal/store"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	database, err := db.InitDB(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.RunMigrations(database.DB, cfg.MigrationsPath); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := notify.NewHub()
	go hub.Run(ctx)

	var limiter ratelimit.Limiter
	if cfg.RedisAddr != "" {
		client, err := db.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer client.Close()
		limiter = ratelimit.NewRedisLimiter(client, "throw-edit", cfg.EditRateLimit, cfg.EditRateWindow)
		logger.Info("edit rate limiter uses redis", "addr", cfg.RedisAddr)
	} else {
		limiter = ratelimit.NewMemoryLimiter(cfg.EditRateLimit, cfg.EditRateWindow)
		logger.Info("edit rate limiter is in-process")
	}

	adminHash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	sessionManager := scs.New()
	sessionManager.Lifetime = cfg.SessionTTL
	sessionManager.Cookie.HttpOnly = true
	sessionManager.Cookie.SameSite = http.SameSiteLaxMode
	sessionManager.Store = sqlite3store.New(database.DB)

	stores := store.New(database)
	boards := service.NewBoardService(database, stores, hub)
	promotion := service.NewPromotion(database, stores, hub)
	generator := service.NewBracketGeneration(database, stores, promotion, hub)

	app := &application{
		cfg:            cfg,
		sessionManager: sessionManager,
		adminHash:      adminHash,
		hub:            hub,
		boards:         boards,
		generator:      generator,
		matches:        service.NewMatchService(database, stores, boards, promotion, limiter, hub),
		shootout:       service.NewShootoutService(database, stores, boards, generator, hub),
		tournaments:    service.NewTournamentService(database, stores, cfg.JWTSecret, cfg.TokenTTL),
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      app.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", "address", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("server stopped gracefully")
	return nil
}
