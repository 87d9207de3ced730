package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/prnadmin/server/internal/model"
	"github.com/shopspring/decimal"
)

// activityWhere filters an event table aliased e by scope, inclusive window,
// country and service type. Arguments are $1..$6 in filterArgs order.
const activityWhere = `
	WHERE ($1 OR e.user_id = $2)
	  AND e.occurred_at >= $3 AND e.occurred_at <= $4
	  AND ($5::text = '' OR e.country_code = $5)
	  AND ($6::text = '' OR e.channel_type = $6)
`

func filterArgs(f model.ActivityFilter) []interface{} {
	return []interface{}{f.Scope.All, f.Scope.UserID, f.DateFrom, f.DateTo, f.Country, string(f.ServiceType)}
}

// InsertCallEvent records a call. Seq is assigned by the database.
func (q *queries) InsertCallEvent(ctx context.Context, e *model.CallEvent) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	query := `
		INSERT INTO call_events (id, number_id, user_id, country_code, channel_type, service_category, duration_seconds, revenue, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING seq
	`
	err := q.db.QueryRowContext(ctx, query,
		e.ID, e.NumberID, nullableUUID(e.UserID), e.CountryCode, string(e.ChannelType), e.ServiceCategory,
		e.DurationSeconds, e.Revenue, e.OccurredAt,
	).Scan(&e.Seq)
	if err != nil {
		if pqCode(err) == codeForeignKeyViolation {
			return fmt.Errorf("number %s: %w", e.NumberID, ErrNotFound)
		}
		return fmt.Errorf("failed to insert call event: %w", err)
	}
	return nil
}

// InsertSMSEvent records an SMS. Seq is assigned by the database.
func (q *queries) InsertSMSEvent(ctx context.Context, e *model.SMSEvent) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	query := `
		INSERT INTO sms_events (id, number_id, user_id, country_code, channel_type, service_category, message_length, revenue, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING seq
	`
	err := q.db.QueryRowContext(ctx, query,
		e.ID, e.NumberID, nullableUUID(e.UserID), e.CountryCode, string(e.ChannelType), e.ServiceCategory,
		e.MessageLength, e.Revenue, e.OccurredAt,
	).Scan(&e.Seq)
	if err != nil {
		if pqCode(err) == codeForeignKeyViolation {
			return fmt.Errorf("number %s: %w", e.NumberID, ErrNotFound)
		}
		return fmt.Errorf("failed to insert sms event: %w", err)
	}
	return nil
}

// ListCallEvents returns calls matching f, newest first
func (q *queries) ListCallEvents(ctx context.Context, f model.ActivityFilter) ([]model.CallEvent, error) {
	query := `
		SELECT e.id, e.seq, e.number_id, n.value, e.user_id, e.country_code, e.channel_type,
		       e.service_category, e.duration_seconds, e.revenue, e.occurred_at
		FROM call_events e
		JOIN numbers n ON n.id = e.number_id
	` + activityWhere + `
		ORDER BY e.occurred_at DESC, e.seq DESC
	`
	rows, err := q.db.QueryContext(ctx, query, filterArgs(f)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list call events: %w", err)
	}
	defer rows.Close()

	events := make([]model.CallEvent, 0)
	for rows.Next() {
		var (
			e    model.CallEvent
			user uuid.NullUUID
		)
		if err := rows.Scan(
			&e.ID, &e.Seq, &e.NumberID, &e.NumberValue, &user, &e.CountryCode, &e.ChannelType,
			&e.ServiceCategory, &e.DurationSeconds, &e.Revenue, &e.OccurredAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan call event: %w", err)
		}
		if user.Valid {
			id := user.UUID
			e.UserID = &id
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ListSMSEvents returns SMS matching f, newest first
func (q *queries) ListSMSEvents(ctx context.Context, f model.ActivityFilter) ([]model.SMSEvent, error) {
	query := `
		SELECT e.id, e.seq, e.number_id, n.value, e.user_id, e.country_code, e.channel_type,
		       e.service_category, e.message_length, e.revenue, e.occurred_at
		FROM sms_events e
		JOIN numbers n ON n.id = e.number_id
	` + activityWhere + `
		ORDER BY e.occurred_at DESC, e.seq DESC
	`
	rows, err := q.db.QueryContext(ctx, query, filterArgs(f)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sms events: %w", err)
	}
	defer rows.Close()

	events := make([]model.SMSEvent, 0)
	for rows.Next() {
		var (
			e    model.SMSEvent
			user uuid.NullUUID
		)
		if err := rows.Scan(
			&e.ID, &e.Seq, &e.NumberID, &e.NumberValue, &user, &e.CountryCode, &e.ChannelType,
			&e.ServiceCategory, &e.MessageLength, &e.Revenue, &e.OccurredAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sms event: %w", err)
		}
		if user.Valid {
			id := user.UUID
			e.UserID = &id
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// SumRevenue totals call and SMS revenue matching f
func (q *queries) SumRevenue(ctx context.Context, f model.ActivityFilter) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE((SELECT SUM(e.revenue) FROM call_events e ` + activityWhere + `), 0)
		     + COALESCE((SELECT SUM(e.revenue) FROM sms_events e ` + activityWhere + `), 0)
	`
	var total decimal.Decimal
	if err := q.db.QueryRowContext(ctx, query, filterArgs(f)...).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum revenue: %w", err)
	}
	return total, nil
}

// CountActiveNumbers counts active numbers in scope
func (q *queries) CountActiveNumbers(ctx context.Context, scope model.Scope) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM numbers WHERE active AND ($1 OR owner_id = $2)`,
		scope.All, scope.UserID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count numbers: %w", err)
	}
	return n, nil
}
