package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/prnadmin/server/internal/auth"
	"github.com/prnadmin/server/internal/config"
	"github.com/prnadmin/server/internal/db"
	"github.com/prnadmin/server/internal/events"
	httphandler "github.com/prnadmin/server/internal/http"
	"github.com/prnadmin/server/internal/http/handlers"
	"github.com/prnadmin/server/internal/logger"
	"github.com/prnadmin/server/internal/messages"
	"github.com/prnadmin/server/internal/middleware"
	"github.com/prnadmin/server/internal/numbers"
	"github.com/prnadmin/server/internal/payout"
	"github.com/prnadmin/server/internal/query"
	"github.com/prnadmin/server/internal/report"
	"github.com/prnadmin/server/internal/repo"
	"go.uber.org/zap"
)

const maxQueryBackoff = 2 * time.Second

func main() {
	// Env vars override .env
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, syncLogger, err := logger.New(cfg.LogLevel, cfg.DevMode)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer syncLogger()

	ctx := context.Background()

	database, err := db.Open(ctx, cfg.DatabaseURL, cfg.Pool)
	if err != nil {
		zl.Fatal("Failed to open database", zap.Error(err))
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		zl.Fatal("Failed to run migrations", zap.Error(err))
	}

	store := repo.New(database)

	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.AccessTokenTTL)
	authService := auth.NewAuthService(jwtService, store)
	ledger := payout.NewLedger(store)
	recorder := events.NewRecorder(store)
	numberService := numbers.NewService(store)
	inbox := messages.NewService(store)
	engine := report.NewEngine(store)

	client := query.NewClient(query.RetryPolicy{
		MaxAttempts: cfg.QueryMaxAttempts,
		Backoff:     query.ExponentialBackoff(cfg.QueryBackoffBase, maxQueryBackoff),
		Retryable:   repo.IsTransient,
	}, cfg.CacheTTL)
	validate := validator.New()

	loginIPLimiter := middleware.NewRateLimiter(cfg.LoginRateWindow, cfg.LoginRateLimit)
	defer loginIPLimiter.Stop()
	loginEmailLimiter := middleware.NewRateLimiter(cfg.LoginRateWindow, cfg.LoginRateLimit)
	defer loginEmailLimiter.Stop()

	router := httphandler.NewRouter(httphandler.Handlers{
		Health:    handlers.NewHealthHandler(store),
		Auth:      handlers.NewAuthHandler(authService, store, loginEmailLimiter, validate),
		Reports:   handlers.NewReportHandler(engine, client),
		Numbers:   handlers.NewNumberHandler(numberService, client, validate),
		Events:    handlers.NewEventHandler(recorder, client, validate),
		Messages:  handlers.NewMessageHandler(inbox, client, validate),
		Payouts:   handlers.NewPayoutHandler(ledger, client, validate),
		Providers: handlers.NewProviderHandler(store, validate),
	}, jwtService, store, loginIPLimiter)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		zl.Info("Server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	zl.Info("Server exited")
}
