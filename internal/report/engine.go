package report

import (
	"context"
	"fmt"

	"github.com/prnadmin/server/internal/activity"
	"github.com/prnadmin/server/internal/model"
	"github.com/prnadmin/server/internal/repo"
	"github.com/shopspring/decimal"
)

// Revenue is the revenue report for one window
type Revenue struct {
	Filter      model.ActivityFilter
	Granularity Granularity
	Summary     Summary
	Series      []Point
	Change      Change
}

// Dashboard is the landing page summary
type Dashboard struct {
	Summary          Summary
	Change           Change
	ActiveNumbers    int
	PendingPayouts   int
	PendingAmount    decimal.Decimal
	ProcessingAmount decimal.Decimal
	PendingMessages  int
	Recent           []activity.Activity
}

// ActivityPage is one page of the unified activity stream
type ActivityPage struct {
	Items []activity.Activity
	Total int
}

// Engine computes reports from a consistent snapshot of the record store
type Engine struct {
	store repo.ReportStore
}

// NewEngine creates a new Engine
func NewEngine(store repo.ReportStore) *Engine {
	return &Engine{store: store}
}

func validate(f model.ActivityFilter) error {
	if f.DateTo.Before(f.DateFrom) {
		return ErrInvalidWindow
	}
	return nil
}

func loadActivity(ctx context.Context, r repo.Reader, f model.ActivityFilter) ([]activity.Activity, error) {
	calls, err := r.ListCallEvents(ctx, f)
	if err != nil {
		return nil, err
	}
	sms, err := r.ListSMSEvents(ctx, f)
	if err != nil {
		return nil, err
	}
	return activity.Normalize(calls, sms), nil
}

func previous(ctx context.Context, r repo.Reader, f model.ActivityFilter) (decimal.Decimal, error) {
	prev := f
	prev.DateFrom, prev.DateTo = PreviousWindow(f.DateFrom, f.DateTo)
	return r.SumRevenue(ctx, prev)
}

// Revenue builds the revenue report for f bucketed by g
func (e *Engine) Revenue(ctx context.Context, f model.ActivityFilter, g Granularity) (*Revenue, error) {
	if err := validate(f); err != nil {
		return nil, err
	}
	out := &Revenue{Filter: f, Granularity: g}
	err := e.store.ReadSnapshot(ctx, func(r repo.Reader) error {
		list, err := loadActivity(ctx, r, f)
		if err != nil {
			return err
		}
		if out.Summary, err = Summarize(list); err != nil {
			return err
		}
		if out.Series, err = OverTime(list, f.DateFrom, f.DateTo, g); err != nil {
			return err
		}
		prevTotal, err := previous(ctx, r, f)
		if err != nil {
			return err
		}
		out.Change = PeriodChange(out.Summary.Total, prevTotal)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("revenue report: %w", err)
	}
	return out, nil
}

// Dashboard builds the summary shown on the landing page. recent limits the
// number of activity rows included.
func (e *Engine) Dashboard(ctx context.Context, f model.ActivityFilter, recent int) (*Dashboard, error) {
	if err := validate(f); err != nil {
		return nil, err
	}
	out := &Dashboard{}
	err := e.store.ReadSnapshot(ctx, func(r repo.Reader) error {
		list, err := loadActivity(ctx, r, f)
		if err != nil {
			return err
		}
		if out.Summary, err = Summarize(list); err != nil {
			return err
		}
		prevTotal, err := previous(ctx, r, f)
		if err != nil {
			return err
		}
		out.Change = PeriodChange(out.Summary.Total, prevTotal)

		if out.ActiveNumbers, err = r.CountActiveNumbers(ctx, f.Scope); err != nil {
			return err
		}
		payouts, err := r.PayoutTotals(ctx, f.Scope)
		if err != nil {
			return err
		}
		out.PendingPayouts = payouts.PendingCount
		out.PendingAmount = payouts.PendingAmount
		out.ProcessingAmount = payouts.ProcessingAmount

		if out.PendingMessages, err = r.CountMessages(ctx, f.Scope, model.MessagePending); err != nil {
			return err
		}
		out.Recent = activity.Page(list, recent, 0)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}
	return out, nil
}

// Activity returns one page of the activity stream, optionally of one kind
func (e *Engine) Activity(ctx context.Context, f model.ActivityFilter, kind activity.Kind, limit, offset int) (*ActivityPage, error) {
	if err := validate(f); err != nil {
		return nil, err
	}
	var list []activity.Activity
	err := e.store.ReadSnapshot(ctx, func(r repo.Reader) error {
		var err error
		list, err = loadActivity(ctx, r, f)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("activity: %w", err)
	}
	list = activity.FilterKind(list, kind)
	return &ActivityPage{Items: activity.Page(list, limit, offset), Total: len(list)}, nil
}
