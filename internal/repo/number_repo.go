package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/prnadmin/server/internal/model"
)

const numberColumns = `id, value, country_code, channel_type, service_category, rate, active, owner_id, created_at, updated_at`

func scanNumber(row rowScanner) (model.Number, error) {
	var (
		n     model.Number
		owner uuid.NullUUID
	)
	err := row.Scan(
		&n.ID,
		&n.Value,
		&n.CountryCode,
		&n.ChannelType,
		&n.ServiceCategory,
		&n.Rate,
		&n.Active,
		&owner,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	if err != nil {
		return model.Number{}, err
	}
	if owner.Valid {
		id := owner.UUID
		n.OwnerID = &id
	}
	return n, nil
}

func nullableUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

// GetNumber retrieves a number by ID
func (q *queries) GetNumber(ctx context.Context, id uuid.UUID) (model.Number, error) {
	n, err := scanNumber(q.db.QueryRowContext(ctx, `SELECT `+numberColumns+` FROM numbers WHERE id = $1`, id))
	if err != nil {
		return model.Number{}, notFound(err, "number")
	}
	return n, nil
}

// ListNumbers returns the numbers visible in scope, ordered by value
func (q *queries) ListNumbers(ctx context.Context, scope model.Scope) ([]model.Number, error) {
	query := `SELECT ` + numberColumns + ` FROM numbers WHERE ($1 OR owner_id = $2) ORDER BY value`
	rows, err := q.db.QueryContext(ctx, query, scope.All, scope.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list numbers: %w", err)
	}
	defer rows.Close()

	numbers := make([]model.Number, 0)
	for rows.Next() {
		n, err := scanNumber(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan number: %w", err)
		}
		numbers = append(numbers, n)
	}
	return numbers, rows.Err()
}

// InsertNumber creates a number
func (q *queries) InsertNumber(ctx context.Context, n *model.Number) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	query := `
		INSERT INTO numbers (id, value, country_code, channel_type, service_category, rate, active, owner_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	err := q.db.QueryRowContext(ctx, query,
		n.ID, n.Value, n.CountryCode, string(n.ChannelType), n.ServiceCategory, n.Rate, n.Active, nullableUUID(n.OwnerID),
	).Scan(&n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		switch pqCode(err) {
		case codeUniqueViolation:
			return fmt.Errorf("number %s: %w", n.Value, ErrConflict)
		case codeForeignKeyViolation:
			return fmt.Errorf("owner: %w", ErrNotFound)
		}
		return fmt.Errorf("failed to insert number: %w", err)
	}
	return nil
}

// UpdateNumber rewrites the mutable fields of a number: rate, active flag, owner and category
func (q *queries) UpdateNumber(ctx context.Context, n *model.Number) error {
	query := `
		UPDATE numbers
		SET rate = $2, active = $3, owner_id = $4, service_category = $5, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`
	err := q.db.QueryRowContext(ctx, query,
		n.ID, n.Rate, n.Active, nullableUUID(n.OwnerID), n.ServiceCategory,
	).Scan(&n.UpdatedAt)
	if err != nil {
		if pqCode(err) == codeForeignKeyViolation {
			return fmt.Errorf("owner: %w", ErrNotFound)
		}
		return notFound(err, "number")
	}
	return nil
}

// DeleteNumber hard-deletes a number that never saw activity
func (q *queries) DeleteNumber(ctx context.Context, id uuid.UUID) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM numbers WHERE id = $1`, id)
	if err != nil {
		if pqCode(err) == codeForeignKeyViolation {
			return fmt.Errorf("number %s: %w", id, ErrHasActivity)
		}
		return fmt.Errorf("failed to delete number: %w", err)
	}
	return requireRow(res, "number")
}

const requestColumns = `id, user_id, country_code, channel_type, service_category, quantity, notes, status, created_at, updated_at`

func scanNumberRequest(row rowScanner) (model.NumberRequest, error) {
	var r model.NumberRequest
	err := row.Scan(
		&r.ID,
		&r.UserID,
		&r.CountryCode,
		&r.ChannelType,
		&r.ServiceCategory,
		&r.Quantity,
		&r.Notes,
		&r.Status,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	return r, err
}

// InsertNumberRequest creates a pending request
func (q *queries) InsertNumberRequest(ctx context.Context, r *model.NumberRequest) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = model.RequestPending
	}
	query := `
		INSERT INTO number_requests (id, user_id, country_code, channel_type, service_category, quantity, notes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	err := q.db.QueryRowContext(ctx, query,
		r.ID, r.UserID, r.CountryCode, string(r.ChannelType), r.ServiceCategory, r.Quantity, r.Notes, string(r.Status),
	).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if pqCode(err) == codeForeignKeyViolation {
			return fmt.Errorf("user: %w", ErrNotFound)
		}
		return fmt.Errorf("failed to insert number request: %w", err)
	}
	return nil
}

// GetNumberRequest retrieves a request by ID
func (q *queries) GetNumberRequest(ctx context.Context, id uuid.UUID) (model.NumberRequest, error) {
	r, err := scanNumberRequest(q.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM number_requests WHERE id = $1`, id))
	if err != nil {
		return model.NumberRequest{}, notFound(err, "number request")
	}
	return r, nil
}

// LockNumberRequest reads a request row with FOR UPDATE
func (q *queries) LockNumberRequest(ctx context.Context, id uuid.UUID) (model.NumberRequest, error) {
	r, err := scanNumberRequest(q.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM number_requests WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return model.NumberRequest{}, notFound(err, "number request")
	}
	return r, nil
}

// ListNumberRequests returns requests in scope, newest first. An empty status matches all.
func (q *queries) ListNumberRequests(ctx context.Context, scope model.Scope, status model.RequestStatus) ([]model.NumberRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM number_requests
		WHERE ($1 OR user_id = $2) AND ($3::text = '' OR status = $3)
		ORDER BY created_at DESC, id
	`
	rows, err := q.db.QueryContext(ctx, query, scope.All, scope.UserID, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list number requests: %w", err)
	}
	defer rows.Close()

	out := make([]model.NumberRequest, 0)
	for rows.Next() {
		r, err := scanNumberRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan number request: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateNumberRequestStatus writes the request's status
func (q *queries) UpdateNumberRequestStatus(ctx context.Context, r *model.NumberRequest) error {
	err := q.db.QueryRowContext(ctx,
		`UPDATE number_requests SET status = $2, updated_at = now() WHERE id = $1 RETURNING updated_at`,
		r.ID, string(r.Status),
	).Scan(&r.UpdatedAt)
	if err != nil {
		return notFound(err, "number request")
	}
	return nil
}
