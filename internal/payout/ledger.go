package payout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prnadmin/server/internal/model"
	"github.com/prnadmin/server/internal/repo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrInsufficientBalance is returned when a payout exceeds the available balance
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInvalidAmount is returned for zero or negative amounts
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrNoPayoutMethod is returned when neither the request nor the profile names a method
	ErrNoPayoutMethod = errors.New("no payout method configured")
)

// Ledger moves payouts through their lifecycle against user balances
type Ledger struct {
	store repo.LedgerStore
	now   func() time.Time
}

// NewLedger creates a new Ledger
func NewLedger(store repo.LedgerStore) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

// Available is the balance not yet reserved by open payouts
func Available(balance, open decimal.Decimal) decimal.Decimal {
	return balance.Sub(open)
}

// Request creates a pending payout for userID. The balance is checked under
// the user's row lock and is not debited until the payout completes.
// An empty method falls back to the user's configured payout method.
func (l *Ledger) Request(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, method model.PayoutMethod) (*model.Payout, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var created model.Payout
	err := l.store.RunLedgerTx(ctx, func(tx repo.LedgerTx) error {
		user, err := tx.LockUser(ctx, userID)
		if err != nil {
			return err
		}

		if method == "" {
			if user.PayoutMethod == nil {
				return ErrNoPayoutMethod
			}
			method = *user.PayoutMethod
		}
		if !method.Valid() {
			return fmt.Errorf("unknown payout method %q", method)
		}

		open, err := tx.OpenPayoutTotal(ctx, userID)
		if err != nil {
			return err
		}
		if available := Available(user.Balance, open); amount.GreaterThan(available) {
			return fmt.Errorf("%w: requested %s, available %s", ErrInsufficientBalance, amount, available)
		}

		created = model.Payout{
			UserID: userID,
			Amount: amount,
			Method: method,
			Status: model.PayoutPending,
		}
		if user.PayoutMethod != nil && *user.PayoutMethod == method {
			created.Details = user.PayoutDetails
		}
		return tx.InsertPayout(ctx, &created)
	})
	if err != nil {
		requestsTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("request payout: %w", err)
	}

	requestsTotal.WithLabelValues("accepted").Inc()
	zap.L().Info("Payout requested",
		zap.String("payout_id", created.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("amount", amount.String()),
		zap.String("method", string(method)))
	return &created, nil
}

// Advance moves a payout to next. Completing a payout debits the owner's
// balance and stamps processedAt in the same transaction.
func (l *Ledger) Advance(ctx context.Context, payoutID uuid.UUID, next model.PayoutStatus) (*model.Payout, error) {
	var (
		updated model.Payout
		from    model.PayoutStatus
	)
	err := l.store.RunLedgerTx(ctx, func(tx repo.LedgerTx) error {
		p, err := tx.LockPayout(ctx, payoutID)
		if err != nil {
			return err
		}
		from = p.Status
		if !p.Status.CanTransition(next) {
			return model.TransitionError(p.Status, next)
		}

		if next == model.PayoutCompleted {
			user, err := tx.LockUser(ctx, p.UserID)
			if err != nil {
				return err
			}
			if p.Amount.GreaterThan(user.Balance) {
				return fmt.Errorf("%w: payout %s, balance %s", ErrInsufficientBalance, p.Amount, user.Balance)
			}
			if err := tx.AdjustBalance(ctx, p.UserID, p.Amount.Neg()); err != nil {
				return err
			}
			now := l.now().UTC()
			p.ProcessedAt = &now
		}

		p.Status = next
		if err := tx.UpdatePayoutStatus(ctx, &p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("advance payout %s: %w", payoutID, err)
	}

	transitionsTotal.WithLabelValues(string(from), string(next)).Inc()
	if next == model.PayoutCompleted {
		debitedTotal.Add(updated.Amount.InexactFloat64())
	}
	zap.L().Info("Payout advanced",
		zap.String("payout_id", payoutID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(next)))
	return &updated, nil
}

// Get returns one payout
func (l *Ledger) Get(ctx context.Context, id uuid.UUID) (*model.Payout, error) {
	p, err := l.store.GetPayout(ctx, id)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns payouts in scope. An empty status lists all.
func (l *Ledger) List(ctx context.Context, scope model.Scope, status model.PayoutStatus) ([]model.Payout, error) {
	return l.store.ListPayouts(ctx, scope, status)
}

// Reconcile compares the stored balance with revenue minus completed payouts
func (l *Ledger) Reconcile(ctx context.Context, userID uuid.UUID) (model.Balances, error) {
	b, err := l.store.Balances(ctx, userID)
	if err != nil {
		return model.Balances{}, fmt.Errorf("reconcile %s: %w", userID, err)
	}
	if !b.Consistent() {
		zap.L().Warn("Balance mismatch",
			zap.String("user_id", userID.String()),
			zap.String("stored", b.Stored.String()),
			zap.String("expected", b.Expected().String()))
	}
	return b, nil
}
