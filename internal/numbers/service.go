package numbers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/prnadmin/server/internal/model"
	"github.com/prnadmin/server/internal/repo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrFulfillment is returned when the numbers supplied do not satisfy the request
	ErrFulfillment = errors.New("fulfillment does not match request")
	// ErrInvalidNumber is returned for malformed number attributes
	ErrInvalidNumber = errors.New("invalid number")
)

// Fulfillment lists the numbers created when a request is fulfilled
type Fulfillment struct {
	Values []string
	Rate   decimal.Decimal
}

// Update is a partial change to a number. Nil fields are left alone.
type Update struct {
	Rate            *decimal.Decimal
	Active          *bool
	ServiceCategory *string
	OwnerID         *uuid.UUID
	ClearOwner      bool
}

// Service manages the number inventory and number requests
type Service struct {
	store repo.NumberStore
}

// NewService creates a new Service
func NewService(store repo.NumberStore) *Service {
	return &Service{store: store}
}

func validateNumber(n *model.Number) error {
	n.Value = strings.TrimSpace(n.Value)
	n.CountryCode = strings.ToUpper(strings.TrimSpace(n.CountryCode))
	switch {
	case n.Value == "":
		return fmt.Errorf("%w: value is required", ErrInvalidNumber)
	case len(n.CountryCode) != 2:
		return fmt.Errorf("%w: country code must have two letters", ErrInvalidNumber)
	case !n.ChannelType.Valid():
		return fmt.Errorf("%w: unknown channel type %q", ErrInvalidNumber, n.ChannelType)
	case n.Rate.IsNegative():
		return fmt.Errorf("%w: rate must not be negative", ErrInvalidNumber)
	}
	return nil
}

// Create adds a number to the inventory
func (s *Service) Create(ctx context.Context, n model.Number) (*model.Number, error) {
	if err := validateNumber(&n); err != nil {
		return nil, err
	}
	if err := s.store.InsertNumber(ctx, &n); err != nil {
		return nil, err
	}
	zap.L().Info("Number created", zap.String("number", n.Value), zap.String("country", n.CountryCode))
	return &n, nil
}

// Get returns one number
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Number, error) {
	n, err := s.store.GetNumber(ctx, id)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// List returns the numbers in scope
func (s *Service) List(ctx context.Context, scope model.Scope) ([]model.Number, error) {
	return s.store.ListNumbers(ctx, scope)
}

// Update applies u to a number. Deactivation is an update with Active=false.
func (s *Service) Update(ctx context.Context, id uuid.UUID, u Update) (*model.Number, error) {
	n, err := s.store.GetNumber(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Rate != nil {
		if u.Rate.IsNegative() {
			return nil, fmt.Errorf("%w: rate must not be negative", ErrInvalidNumber)
		}
		n.Rate = *u.Rate
	}
	if u.Active != nil {
		n.Active = *u.Active
	}
	if u.ServiceCategory != nil {
		n.ServiceCategory = strings.TrimSpace(*u.ServiceCategory)
	}
	if u.ClearOwner {
		n.OwnerID = nil
	} else if u.OwnerID != nil {
		n.OwnerID = u.OwnerID
	}
	if err := s.store.UpdateNumber(ctx, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// Delete removes a number that has no activity. Numbers with activity must
// be deactivated instead.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.store.DeleteNumber(ctx, id)
}

// CreateRequest files a pending number request for userID
func (s *Service) CreateRequest(ctx context.Context, r model.NumberRequest) (*model.NumberRequest, error) {
	r.CountryCode = strings.ToUpper(strings.TrimSpace(r.CountryCode))
	if r.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidNumber)
	}
	if !r.ChannelType.Valid() {
		return nil, fmt.Errorf("%w: unknown channel type %q", ErrInvalidNumber, r.ChannelType)
	}
	if len(r.CountryCode) != 2 {
		return nil, fmt.Errorf("%w: country code must have two letters", ErrInvalidNumber)
	}
	r.Status = model.RequestPending
	if err := s.store.InsertNumberRequest(ctx, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRequests returns requests in scope. An empty status lists all.
func (s *Service) ListRequests(ctx context.Context, scope model.Scope, status model.RequestStatus) ([]model.NumberRequest, error) {
	return s.store.ListNumberRequests(ctx, scope, status)
}

// AdvanceRequest moves a request to next. Fulfilling requires f and creates
// the numbers for the requester in the same transaction.
func (s *Service) AdvanceRequest(ctx context.Context, id uuid.UUID, next model.RequestStatus, f *Fulfillment) (*model.NumberRequest, []model.Number, error) {
	var (
		updated model.NumberRequest
		created []model.Number
	)
	err := s.store.RunNumberTx(ctx, func(tx repo.NumberTx) error {
		r, err := tx.LockNumberRequest(ctx, id)
		if err != nil {
			return err
		}
		if !r.Status.CanTransition(next) {
			return model.TransitionError(r.Status, next)
		}

		if next == model.RequestFulfilled {
			if created, err = fulfill(ctx, tx, r, f); err != nil {
				return err
			}
		}

		r.Status = next
		if err := tx.UpdateNumberRequestStatus(ctx, &r); err != nil {
			return err
		}
		updated = r
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("advance number request %s: %w", id, err)
	}

	zap.L().Info("Number request advanced",
		zap.String("request_id", id.String()),
		zap.String("status", string(next)),
		zap.Int("numbers_created", len(created)))
	return &updated, created, nil
}

func fulfill(ctx context.Context, tx repo.NumberTx, r model.NumberRequest, f *Fulfillment) ([]model.Number, error) {
	if f == nil || len(f.Values) != r.Quantity {
		return nil, fmt.Errorf("%w: expected %d numbers", ErrFulfillment, r.Quantity)
	}
	if f.Rate.IsNegative() {
		return nil, fmt.Errorf("%w: rate must not be negative", ErrFulfillment)
	}

	owner := r.UserID
	created := make([]model.Number, 0, len(f.Values))
	for _, v := range f.Values {
		n := model.Number{
			Value:           v,
			CountryCode:     r.CountryCode,
			ChannelType:     r.ChannelType,
			ServiceCategory: r.ServiceCategory,
			Rate:            f.Rate,
			Active:          true,
			OwnerID:         &owner,
		}
		if err := validateNumber(&n); err != nil {
			return nil, err
		}
		if err := tx.InsertNumber(ctx, &n); err != nil {
			return nil, err
		}
		created = append(created, n)
	}
	return created, nil
}
