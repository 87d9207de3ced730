package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/prnadmin/server/internal/model"
)

const messageSelect = `
	SELECT m.id, m.number_id, n.value, m.user_id, m.sender, m.body, m.status, m.is_read,
	       m.reply, m.received_at, m.responded_at, m.updated_at
	FROM user_messages m
	JOIN numbers n ON n.id = m.number_id
`

func scanMessage(row rowScanner) (model.UserMessage, error) {
	var (
		m         model.UserMessage
		user      uuid.NullUUID
		reply     sql.NullString
		responded sql.NullTime
	)
	err := row.Scan(
		&m.ID, &m.NumberID, &m.NumberValue, &user, &m.Sender, &m.Body, &m.Status, &m.IsRead,
		&reply, &m.ReceivedAt, &responded, &m.UpdatedAt,
	)
	if err != nil {
		return model.UserMessage{}, err
	}
	if user.Valid {
		id := user.UUID
		m.UserID = &id
	}
	if reply.Valid {
		m.Reply = &reply.String
	}
	if responded.Valid {
		m.RespondedAt = &responded.Time
	}
	return m, nil
}

// InsertMessage stores an inbound message
func (q *queries) InsertMessage(ctx context.Context, m *model.UserMessage) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Status == "" {
		m.Status = model.MessagePending
	}
	query := `
		INSERT INTO user_messages (id, number_id, user_id, sender, body, status, is_read, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING updated_at
	`
	err := q.db.QueryRowContext(ctx, query,
		m.ID, m.NumberID, nullableUUID(m.UserID), m.Sender, m.Body, string(m.Status), m.IsRead, m.ReceivedAt,
	).Scan(&m.UpdatedAt)
	if err != nil {
		if pqCode(err) == codeForeignKeyViolation {
			return fmt.Errorf("number %s: %w", m.NumberID, ErrNotFound)
		}
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// GetMessage retrieves a message by ID
func (q *queries) GetMessage(ctx context.Context, id uuid.UUID) (model.UserMessage, error) {
	m, err := scanMessage(q.db.QueryRowContext(ctx, messageSelect+` WHERE m.id = $1`, id))
	if err != nil {
		return model.UserMessage{}, notFound(err, "message")
	}
	return m, nil
}

// LockMessage reads a message row with FOR UPDATE
func (q *queries) LockMessage(ctx context.Context, id uuid.UUID) (model.UserMessage, error) {
	m, err := scanMessage(q.db.QueryRowContext(ctx, messageSelect+` WHERE m.id = $1 FOR UPDATE OF m`, id))
	if err != nil {
		return model.UserMessage{}, notFound(err, "message")
	}
	return m, nil
}

// ListMessages returns messages in scope, newest first. An empty status matches all.
func (q *queries) ListMessages(ctx context.Context, scope model.Scope, status model.MessageStatus) ([]model.UserMessage, error) {
	query := messageSelect + `
		WHERE ($1 OR m.user_id = $2) AND ($3::text = '' OR m.status = $3)
		ORDER BY m.received_at DESC, m.id
	`
	rows, err := q.db.QueryContext(ctx, query, scope.All, scope.UserID, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	out := make([]model.UserMessage, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpdateMessage writes status, read flag and reply. is_read never goes
// back to false once set.
func (q *queries) UpdateMessage(ctx context.Context, m *model.UserMessage) error {
	var reply interface{}
	if m.Reply != nil {
		reply = *m.Reply
	}
	var responded interface{}
	if m.RespondedAt != nil {
		responded = *m.RespondedAt
	}
	query := `
		UPDATE user_messages
		SET status = $2, is_read = is_read OR $3, reply = $4, responded_at = $5, updated_at = now()
		WHERE id = $1
		RETURNING is_read, updated_at
	`
	err := q.db.QueryRowContext(ctx, query, m.ID, string(m.Status), m.IsRead, reply, responded).Scan(&m.IsRead, &m.UpdatedAt)
	if err != nil {
		return notFound(err, "message")
	}
	return nil
}

// CountMessages counts messages in scope with the given status
func (q *queries) CountMessages(ctx context.Context, scope model.Scope, status model.MessageStatus) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_messages WHERE ($1 OR user_id = $2) AND status = $3`,
		scope.All, scope.UserID, string(status),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return n, nil
}
