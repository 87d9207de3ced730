package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/prnadmin/server/internal/model"
	"github.com/shopspring/decimal"
)

const payoutColumns = `id, user_id, amount, method, details, status, created_at, updated_at, processed_at`

func scanPayout(row rowScanner) (model.Payout, error) {
	var (
		p         model.Payout
		details   []byte
		processed sql.NullTime
	)
	err := row.Scan(
		&p.ID, &p.UserID, &p.Amount, &p.Method, &details, &p.Status, &p.CreatedAt, &p.UpdatedAt, &processed,
	)
	if err != nil {
		return model.Payout{}, err
	}
	if processed.Valid {
		p.ProcessedAt = &processed.Time
	}
	p.Details, err = decodeDetails(details)
	if err != nil {
		return model.Payout{}, err
	}
	return p, nil
}

// GetPayout retrieves a payout by ID
func (q *queries) GetPayout(ctx context.Context, id uuid.UUID) (model.Payout, error) {
	p, err := scanPayout(q.db.QueryRowContext(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE id = $1`, id))
	if err != nil {
		return model.Payout{}, notFound(err, "payout")
	}
	return p, nil
}

// LockPayout reads a payout row with FOR UPDATE
func (q *queries) LockPayout(ctx context.Context, id uuid.UUID) (model.Payout, error) {
	p, err := scanPayout(q.db.QueryRowContext(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return model.Payout{}, notFound(err, "payout")
	}
	return p, nil
}

// ListPayouts returns payouts in scope, newest first. An empty status matches all.
func (q *queries) ListPayouts(ctx context.Context, scope model.Scope, status model.PayoutStatus) ([]model.Payout, error) {
	query := `
		SELECT ` + payoutColumns + `
		FROM payouts
		WHERE ($1 OR user_id = $2) AND ($3::text = '' OR status = $3)
		ORDER BY created_at DESC, id
	`
	rows, err := q.db.QueryContext(ctx, query, scope.All, scope.UserID, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list payouts: %w", err)
	}
	defer rows.Close()

	out := make([]model.Payout, 0)
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payout: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// OpenPayoutTotal sums the user's pending and processing payouts
func (q *queries) OpenPayoutTotal(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := q.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM payouts WHERE user_id = $1 AND status IN ('pending', 'processing')`,
		userID,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum open payouts: %w", err)
	}
	return total, nil
}

// InsertPayout creates a payout
func (q *queries) InsertPayout(ctx context.Context, p *model.Payout) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	details, err := encodeDetails(p.Details)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO payouts (id, user_id, amount, method, details, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err = q.db.QueryRowContext(ctx, query,
		p.ID, p.UserID, p.Amount, string(p.Method), details, string(p.Status),
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if pqCode(err) == codeForeignKeyViolation {
			return fmt.Errorf("user: %w", ErrNotFound)
		}
		return fmt.Errorf("failed to insert payout: %w", err)
	}
	return nil
}

// UpdatePayoutStatus writes status and processed_at
func (q *queries) UpdatePayoutStatus(ctx context.Context, p *model.Payout) error {
	var processed interface{}
	if p.ProcessedAt != nil {
		processed = *p.ProcessedAt
	}
	err := q.db.QueryRowContext(ctx,
		`UPDATE payouts SET status = $2, processed_at = $3, updated_at = now() WHERE id = $1 RETURNING updated_at`,
		p.ID, string(p.Status), processed,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return notFound(err, "payout")
	}
	return nil
}

// PayoutTotals summarizes open and completed payouts in scope
func (q *queries) PayoutTotals(ctx context.Context, scope model.Scope) (model.PayoutTotals, error) {
	query := `
		SELECT COUNT(*) FILTER (WHERE status = 'pending'),
		       COALESCE(SUM(amount) FILTER (WHERE status = 'pending'), 0),
		       COUNT(*) FILTER (WHERE status = 'processing'),
		       COALESCE(SUM(amount) FILTER (WHERE status = 'processing'), 0),
		       COALESCE(SUM(amount) FILTER (WHERE status = 'completed'), 0)
		FROM payouts
		WHERE ($1 OR user_id = $2)
	`
	var t model.PayoutTotals
	err := q.db.QueryRowContext(ctx, query, scope.All, scope.UserID).Scan(
		&t.PendingCount, &t.PendingAmount, &t.ProcessingCount, &t.ProcessingAmount, &t.CompletedAmount,
	)
	if err != nil {
		return model.PayoutTotals{}, fmt.Errorf("failed to summarize payouts: %w", err)
	}
	return t, nil
}
