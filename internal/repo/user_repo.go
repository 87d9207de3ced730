package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/prnadmin/server/internal/model"
	"github.com/shopspring/decimal"
)

const userColumns = `id, email, name, role, password_hash, balance, payout_method, payout_details, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (model.User, error) {
	var (
		user    model.User
		method  sql.NullString
		details []byte
	)
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Role,
		&user.PasswordHash,
		&user.Balance,
		&method,
		&details,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return model.User{}, err
	}
	if method.Valid {
		m := model.PayoutMethod(method.String)
		user.PayoutMethod = &m
	}
	user.PayoutDetails, err = decodeDetails(details)
	if err != nil {
		return model.User{}, err
	}
	return user, nil
}

// GetUser retrieves a user by ID
func (q *queries) GetUser(ctx context.Context, id uuid.UUID) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(q.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return model.User{}, notFound(err, "user")
	}
	return user, nil
}

// GetUserByEmail retrieves a user by login email, case-insensitively
func (q *queries) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	user, err := scanUser(q.db.QueryRowContext(ctx, query, strings.TrimSpace(email)))
	if err != nil {
		return model.User{}, notFound(err, "user")
	}
	return user, nil
}

// ListUsers returns every account ordered by email
func (q *queries) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// InsertUser creates a user. ID and timestamps are filled in when empty.
func (q *queries) InsertUser(ctx context.Context, u *model.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	details, err := encodeDetails(u.PayoutDetails)
	if err != nil {
		return err
	}
	var method interface{}
	if u.PayoutMethod != nil {
		method = string(*u.PayoutMethod)
	}

	query := `
		INSERT INTO users (id, email, name, role, password_hash, balance, payout_method, payout_details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	err = q.db.QueryRowContext(ctx, query,
		u.ID, strings.TrimSpace(u.Email), u.Name, string(u.Role), u.PasswordHash, u.Balance, method, details,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if pqCode(err) == codeUniqueViolation {
			return fmt.Errorf("user %s: %w", u.Email, ErrConflict)
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// UpdatePayoutMethod stores how the user wants to be paid
func (q *queries) UpdatePayoutMethod(ctx context.Context, id uuid.UUID, method model.PayoutMethod, details map[string]string) error {
	raw, err := encodeDetails(details)
	if err != nil {
		return err
	}
	res, err := q.db.ExecContext(ctx,
		`UPDATE users SET payout_method = $2, payout_details = $3, updated_at = now() WHERE id = $1`,
		id, string(method), raw,
	)
	if err != nil {
		return fmt.Errorf("failed to update payout method: %w", err)
	}
	return requireRow(res, "user")
}

// LockUser reads a user row with FOR UPDATE
func (q *queries) LockUser(ctx context.Context, id uuid.UUID) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	user, err := scanUser(q.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return model.User{}, notFound(err, "user")
	}
	return user, nil
}

// AdjustBalance adds delta to the user's balance. The balance CHECK rejects
// any update that would go negative.
func (q *queries) AdjustBalance(ctx context.Context, userID uuid.UUID, delta decimal.Decimal) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE users SET balance = balance + $2, updated_at = now() WHERE id = $1`,
		userID, delta,
	)
	if err != nil {
		return fmt.Errorf("failed to adjust balance: %w", err)
	}
	return requireRow(res, "user")
}

// Balances recomputes a user's balance from events and completed payouts
func (q *queries) Balances(ctx context.Context, userID uuid.UUID) (model.Balances, error) {
	query := `
		SELECT u.balance,
		       COALESCE((SELECT SUM(revenue) FROM call_events WHERE user_id = u.id), 0)
		     + COALESCE((SELECT SUM(revenue) FROM sms_events WHERE user_id = u.id), 0),
		       COALESCE((SELECT SUM(amount) FROM payouts WHERE user_id = u.id AND status = 'completed'), 0)
		FROM users u
		WHERE u.id = $1
	`
	b := model.Balances{UserID: userID}
	err := q.db.QueryRowContext(ctx, query, userID).Scan(&b.Stored, &b.Revenue, &b.CompletedPayouts)
	if err != nil {
		return model.Balances{}, notFound(err, "user")
	}
	return b, nil
}

func requireRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
