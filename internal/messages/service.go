package messages

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prnadmin/server/internal/access"
	"github.com/prnadmin/server/internal/model"
	"github.com/prnadmin/server/internal/repo"
)

// ErrEmptyReply is returned when responding without text
var ErrEmptyReply = errors.New("reply must not be empty")

// Service manages the CDIR inbox
type Service struct {
	store repo.MessageStore
	now   func() time.Time
}

// NewService creates a new Service
func NewService(store repo.MessageStore) *Service {
	return &Service{store: store, now: time.Now}
}

// Receive stores an inbound message for numberID, owned by the number's owner
func (s *Service) Receive(ctx context.Context, numberID uuid.UUID, sender, body string, at time.Time) (*model.UserMessage, error) {
	n, err := s.store.GetNumber(ctx, numberID)
	if err != nil {
		return nil, err
	}
	if at.IsZero() {
		at = s.now()
	}
	m := model.UserMessage{
		NumberID:    n.ID,
		NumberValue: n.Value,
		UserID:      n.OwnerID,
		Sender:      strings.TrimSpace(sender),
		Body:        body,
		Status:      model.MessagePending,
		ReceivedAt:  at.UTC(),
	}
	if err := s.store.InsertMessage(ctx, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// List returns messages visible to p. An empty status lists all.
func (s *Service) List(ctx context.Context, p access.Principal, status model.MessageStatus) ([]model.UserMessage, error) {
	return s.store.ListMessages(ctx, p.Scope(), status)
}

func canTouch(p access.Principal, m model.UserMessage) bool {
	if p.Can(access.ViewAllAccounts) {
		return true
	}
	return m.UserID != nil && *m.UserID == p.UserID
}

// update locks the message, checks visibility, applies fn and writes it back
func (s *Service) update(ctx context.Context, p access.Principal, id uuid.UUID, fn func(m *model.UserMessage) error) (*model.UserMessage, error) {
	if err := p.Require(access.RespondMessages); err != nil {
		return nil, err
	}
	var out model.UserMessage
	err := s.store.RunMessageTx(ctx, func(tx repo.MessageTx) error {
		m, err := tx.LockMessage(ctx, id)
		if err != nil {
			return err
		}
		if !canTouch(p, m) {
			// hide other owners' messages
			return fmt.Errorf("message: %w", repo.ErrNotFound)
		}
		if err := fn(&m); err != nil {
			return err
		}
		if err := tx.UpdateMessage(ctx, &m); err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update message %s: %w", id, err)
	}
	return &out, nil
}

// MarkRead sets isRead. It is idempotent and never clears the flag.
func (s *Service) MarkRead(ctx context.Context, p access.Principal, id uuid.UUID) (*model.UserMessage, error) {
	return s.update(ctx, p, id, func(m *model.UserMessage) error {
		m.IsRead = true
		return nil
	})
}

// Respond stores a reply and moves the message to responded
func (s *Service) Respond(ctx context.Context, p access.Principal, id uuid.UUID, reply string) (*model.UserMessage, error) {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return nil, ErrEmptyReply
	}
	return s.update(ctx, p, id, func(m *model.UserMessage) error {
		if !m.Status.CanTransition(model.MessageResponded) {
			return model.TransitionError(m.Status, model.MessageResponded)
		}
		now := s.now().UTC()
		m.Status = model.MessageResponded
		m.Reply = &reply
		m.RespondedAt = &now
		m.IsRead = true
		return nil
	})
}

// Archive moves a pending message to archived
func (s *Service) Archive(ctx context.Context, p access.Principal, id uuid.UUID) (*model.UserMessage, error) {
	return s.update(ctx, p, id, func(m *model.UserMessage) error {
		if !m.Status.CanTransition(model.MessageArchived) {
			return model.TransitionError(m.Status, model.MessageArchived)
		}
		m.Status = model.MessageArchived
		m.IsRead = true
		return nil
	})
}

// Reset puts a handled message back to pending. It keeps the read flag and
// is reserved for account managers.
func (s *Service) Reset(ctx context.Context, p access.Principal, id uuid.UUID) (*model.UserMessage, error) {
	if err := p.Require(access.ManageUsers); err != nil {
		return nil, err
	}
	return s.update(ctx, p, id, func(m *model.UserMessage) error {
		m.Status = model.MessagePending
		m.Reply = nil
		m.RespondedAt = nil
		return nil
	})
}
