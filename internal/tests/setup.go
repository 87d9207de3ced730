package tests

import (
	"context"
	"database/sql"
	"fmt"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prnadmin/server/internal/auth"
	"github.com/prnadmin/server/internal/config"
	"github.com/prnadmin/server/internal/db"
	"github.com/prnadmin/server/internal/events"
	httphandler "github.com/prnadmin/server/internal/http"
	"github.com/prnadmin/server/internal/http/handlers"
	"github.com/prnadmin/server/internal/messages"
	"github.com/prnadmin/server/internal/middleware"
	"github.com/prnadmin/server/internal/numbers"
	"github.com/prnadmin/server/internal/payout"
	"github.com/prnadmin/server/internal/query"
	"github.com/prnadmin/server/internal/report"
	"github.com/prnadmin/server/internal/repo"
	"github.com/stretchr/testify/require"
)

// appTables lists every table the application writes, children first
const appTables = "providers, payouts, number_requests, user_messages, sms_events, call_events, numbers, users"

// TruncateTables empties every application table for a clean test state
func TruncateTables(ctx context.Context, database *sql.DB) error {
	if _, err := database.ExecContext(ctx, "TRUNCATE TABLE "+appTables+" RESTART IDENTITY CASCADE"); err != nil {
		return fmt.Errorf("truncate tables: %w", err)
	}
	return nil
}

// testServer is the whole API over a real database
type testServer struct {
	Server *httptest.Server
	DB     *sql.DB
	Store  *repo.Store
	Auth   *auth.AuthService
	Ledger *payout.Ledger
}

// requireDatabase skips the test unless DATABASE_URL points at a test database
func requireDatabase(t *testing.T) {
	t.Helper()
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	requireDatabase(t)

	cfg, err := config.Load()
	require.NoError(t, err, "config load must succeed for integration test")

	ctx := context.Background()
	database, err := db.Open(ctx, cfg.DatabaseURL, cfg.Pool)
	require.NoError(t, err, "database open must succeed; check DATABASE_URL and that test DB exists")
	t.Cleanup(func() { database.Close() })

	require.NoError(t, db.Migrate(database), "migrations must run successfully")
	require.NoError(t, TruncateTables(ctx, database))

	store := repo.New(database)
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.AccessTokenTTL)
	authService := auth.NewAuthService(jwtService, store)
	ledger := payout.NewLedger(store)

	// no caching so every read observes the previous write
	client := query.NewClient(query.RetryPolicy{
		MaxAttempts: 3,
		Backoff:     query.ExponentialBackoff(10*time.Millisecond, 100*time.Millisecond),
		Retryable:   repo.IsTransient,
	}, 0)
	validate := validator.New()

	loginLimiter := middleware.NewRateLimiter(time.Minute, 1000)
	t.Cleanup(loginLimiter.Stop)

	router := httphandler.NewRouter(httphandler.Handlers{
		Health:    handlers.NewHealthHandler(store),
		Auth:      handlers.NewAuthHandler(authService, store, loginLimiter, validate),
		Reports:   handlers.NewReportHandler(report.NewEngine(store), client),
		Numbers:   handlers.NewNumberHandler(numbers.NewService(store), client, validate),
		Events:    handlers.NewEventHandler(events.NewRecorder(store), client, validate),
		Messages:  handlers.NewMessageHandler(messages.NewService(store), client, validate),
		Payouts:   handlers.NewPayoutHandler(ledger, client, validate),
		Providers: handlers.NewProviderHandler(store, validate),
	}, jwtService, store, loginLimiter)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testServer{Server: server, DB: database, Store: store, Auth: authService, Ledger: ledger}
}

func (s *testServer) BaseURL() string { return s.Server.URL }
