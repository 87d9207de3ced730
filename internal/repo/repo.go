package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a referenced record does not exist
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned on a unique constraint violation
	ErrConflict = errors.New("already exists")
	// ErrHasActivity is returned when deleting a number that has recorded events
	ErrHasActivity = errors.New("number has recorded activity")
)

// Postgres error codes
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// dbtx is satisfied by *sql.DB and *sql.Tx
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// queries runs every statement against either the pool or an open transaction
type queries struct {
	db dbtx
}

// Store is the Postgres-backed record store
type Store struct {
	*queries
	db *sql.DB
}

// New creates a Store over an open database
func New(db *sql.DB) *Store {
	return &Store{queries: &queries{db: db}, db: db}
}

var (
	_ UserRepo     = (*Store)(nil)
	_ NumberRepo   = (*Store)(nil)
	_ ProviderRepo = (*Store)(nil)
	_ ReportStore  = (*Store)(nil)
	_ LedgerStore  = (*Store)(nil)
	_ IngestStore  = (*Store)(nil)
	_ NumberStore  = (*Store)(nil)
	_ MessageStore = (*Store)(nil)

	_ Reader    = (*queries)(nil)
	_ LedgerTx  = (*queries)(nil)
	_ IngestTx  = (*queries)(nil)
	_ NumberTx  = (*queries)(nil)
	_ MessageTx = (*queries)(nil)
)

// withTx runs fn inside a transaction, committing on success
func (s *Store) withTx(ctx context.Context, opts *sql.TxOptions, fn func(q *queries) error) error {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(&queries{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ReadSnapshot runs fn against one read-only repeatable-read snapshot
func (s *Store) ReadSnapshot(ctx context.Context, fn func(Reader) error) error {
	return s.withTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}, func(q *queries) error {
		return fn(q)
	})
}

// RunLedgerTx runs a payout unit of work in one transaction
func (s *Store) RunLedgerTx(ctx context.Context, fn func(LedgerTx) error) error {
	return s.withTx(ctx, nil, func(q *queries) error { return fn(q) })
}

// RunIngestTx runs an event ingest unit of work in one transaction
func (s *Store) RunIngestTx(ctx context.Context, fn func(IngestTx) error) error {
	return s.withTx(ctx, nil, func(q *queries) error { return fn(q) })
}

// RunNumberTx runs a number request unit of work in one transaction
func (s *Store) RunNumberTx(ctx context.Context, fn func(NumberTx) error) error {
	return s.withTx(ctx, nil, func(q *queries) error { return fn(q) })
}

// RunMessageTx runs a message update in one transaction
func (s *Store) RunMessageTx(ctx context.Context, fn func(MessageTx) error) error {
	return s.withTx(ctx, nil, func(q *queries) error { return fn(q) })
}

// Ping checks connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("failed to query %s: %w", what, err)
}

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// IsTransient reports whether err is a serialization failure or deadlock
// that is safe to retry after the transaction rolled back
func IsTransient(err error) bool {
	switch pqCode(err) {
	case codeSerializationFailure, codeDeadlockDetected:
		return true
	}
	return errors.Is(err, sql.ErrConnDone)
}

func encodeDetails(details map[string]string) ([]byte, error) {
	if details == nil {
		details = map[string]string{}
	}
	b, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("failed to encode details: %w", err)
	}
	return b, nil
}

func decodeDetails(raw []byte) (map[string]string, error) {
	details := map[string]string{}
	if len(raw) == 0 {
		return details, nil
	}
	if err := json.Unmarshal(raw, &details); err != nil {
		return nil, fmt.Errorf("failed to decode details: %w", err)
	}
	return details, nil
}
