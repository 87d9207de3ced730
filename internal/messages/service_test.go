package messages

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prnadmin/server/internal/access"
	"github.com/prnadmin/server/internal/model"
	"github.com/prnadmin/server/internal/repo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memInbox struct {
	numbers  map[uuid.UUID]model.Number
	messages map[uuid.UUID]model.UserMessage
}

func (m *memInbox) RunMessageTx(ctx context.Context, fn func(repo.MessageTx) error) error {
	return fn(m)
}

func (m *memInbox) GetNumber(ctx context.Context, id uuid.UUID) (model.Number, error) {
	n, ok := m.numbers[id]
	if !ok {
		return model.Number{}, repo.ErrNotFound
	}
	return n, nil
}

func (m *memInbox) InsertMessage(ctx context.Context, msg *model.UserMessage) error {
	msg.ID = uuid.New()
	m.messages[msg.ID] = *msg
	return nil
}

func (m *memInbox) GetMessage(ctx context.Context, id uuid.UUID) (model.UserMessage, error) {
	msg, ok := m.messages[id]
	if !ok {
		return model.UserMessage{}, repo.ErrNotFound
	}
	return msg, nil
}

func (m *memInbox) LockMessage(ctx context.Context, id uuid.UUID) (model.UserMessage, error) {
	return m.GetMessage(ctx, id)
}

func (m *memInbox) ListMessages(ctx context.Context, scope model.Scope, status model.MessageStatus) ([]model.UserMessage, error) {
	out := []model.UserMessage{}
	for _, msg := range m.messages {
		if (scope.All || (msg.UserID != nil && *msg.UserID == scope.UserID)) && (status == "" || msg.Status == status) {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memInbox) UpdateMessage(ctx context.Context, msg *model.UserMessage) error {
	prev := m.messages[msg.ID]
	msg.IsRead = msg.IsRead || prev.IsRead
	m.messages[msg.ID] = *msg
	return nil
}

func setup(t *testing.T) (*Service, *memInbox, uuid.UUID, *model.UserMessage) {
	t.Helper()
	owner := uuid.New()
	num := model.Number{ID: uuid.New(), Value: "+44909777", OwnerID: &owner}
	store := &memInbox{
		numbers:  map[uuid.UUID]model.Number{num.ID: num},
		messages: map[uuid.UUID]model.UserMessage{},
	}
	s := NewService(store)
	msg, err := s.Receive(context.Background(), num.ID, " +447700900123 ", "hello", time.Time{})
	require.NoError(t, err)
	return s, store, owner, msg
}

func TestReceive_AssignsNumberOwner(t *testing.T) {
	_, _, owner, msg := setup(t)
	assert.Equal(t, &owner, msg.UserID)
	assert.Equal(t, "+447700900123", msg.Sender)
	assert.Equal(t, model.MessagePending, msg.Status)
	assert.False(t, msg.IsRead)
}

func TestReceive_UnknownNumber(t *testing.T) {
	s, _, _, _ := setup(t)
	_, err := s.Receive(context.Background(), uuid.New(), "x", "y", time.Time{})
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestRespond_ThenArchiveIsInvalid(t *testing.T) {
	s, _, owner, msg := setup(t)
	p := access.NewPrincipal(owner, model.RoleUser)
	ctx := context.Background()

	got, err := s.Respond(ctx, p, msg.ID, "thanks")
	require.NoError(t, err)
	assert.Equal(t, model.MessageResponded, got.Status)
	assert.True(t, got.IsRead)
	require.NotNil(t, got.Reply)
	assert.Equal(t, "thanks", *got.Reply)
	assert.NotNil(t, got.RespondedAt)

	_, err = s.Archive(ctx, p, msg.ID)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	_, err = s.Respond(ctx, p, msg.ID, "again")
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
}

func TestMarkRead_IsMonotonic(t *testing.T) {
	s, store, owner, msg := setup(t)
	p := access.NewPrincipal(owner, model.RoleUser)
	ctx := context.Background()

	_, err := s.MarkRead(ctx, p, msg.ID)
	require.NoError(t, err)
	_, err = s.MarkRead(ctx, p, msg.ID)
	require.NoError(t, err)
	assert.True(t, store.messages[msg.ID].IsRead)

	admin := access.NewPrincipal(uuid.New(), model.RoleAdmin)
	_, err = s.Archive(ctx, admin, msg.ID)
	require.NoError(t, err)
	reset, err := s.Reset(ctx, admin, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MessagePending, reset.Status)
	assert.True(t, reset.IsRead)
}

func TestAccess(t *testing.T) {
	s, _, owner, msg := setup(t)
	ctx := context.Background()

	stranger := access.NewPrincipal(uuid.New(), model.RoleUser)
	_, err := s.MarkRead(ctx, stranger, msg.ID)
	assert.ErrorIs(t, err, repo.ErrNotFound)

	support := access.NewPrincipal(uuid.New(), model.RoleSupport)
	_, err = s.Respond(ctx, support, msg.ID, "on it")
	assert.NoError(t, err)

	owned := access.NewPrincipal(owner, model.RoleUser)
	_, err = s.Reset(ctx, owned, msg.ID)
	assert.ErrorIs(t, err, access.ErrForbidden)

	_, err = s.Respond(ctx, owned, msg.ID, "   ")
	assert.ErrorIs(t, err, ErrEmptyReply)

	list, err := s.List(ctx, stranger, "")
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = s.List(ctx, owned, model.MessageResponded)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
