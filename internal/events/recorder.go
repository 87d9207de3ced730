package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prnadmin/server/internal/model"
	"github.com/prnadmin/server/internal/repo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrInactiveNumber is returned for traffic on a deactivated number
	ErrInactiveNumber = errors.New("number is inactive")
	// ErrChannelMismatch is returned for SMS on a voice-only number or calls on an SMS-only number
	ErrChannelMismatch = errors.New("number does not carry this channel")
	// ErrInvalidLength is returned for a negative duration or message length
	ErrInvalidLength = errors.New("length must not be negative")
)

var (
	recordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prn_events_recorded_total",
			Help: "Recorded activity events by kind.",
		},
		[]string{"kind"},
	)
	revenueTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prn_revenue_recorded_total",
			Help: "Revenue credited from recorded events by country.",
		},
		[]string{"country"},
	)
)

var secondsPerMinute = decimal.NewFromInt(60)

// BillableMinutes rounds a call up to whole minutes
func BillableMinutes(seconds int) decimal.Decimal {
	if seconds <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(seconds)).Div(secondsPerMinute).Ceil()
}

// CallRevenue is the per-minute rate times billable minutes
func CallRevenue(rate decimal.Decimal, seconds int) decimal.Decimal {
	return rate.Mul(BillableMinutes(seconds))
}

// SMSRevenue is the per-message rate
func SMSRevenue(rate decimal.Decimal) decimal.Decimal {
	return rate
}

// Recorder stores activity events and credits owners
type Recorder struct {
	store repo.IngestStore
	now   func() time.Time
}

// NewRecorder creates a new Recorder
func NewRecorder(store repo.IngestStore) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

func checkNumber(n model.Number, want model.ChannelType) error {
	if !n.Active {
		return fmt.Errorf("%w: %s", ErrInactiveNumber, n.Value)
	}
	if n.ChannelType != want && n.ChannelType != model.ChannelCombined {
		return fmt.Errorf("%w: %s is %s", ErrChannelMismatch, n.Value, n.ChannelType)
	}
	return nil
}

func credit(ctx context.Context, tx repo.IngestTx, owner *uuid.UUID, revenue decimal.Decimal) error {
	if owner == nil || revenue.IsZero() {
		return nil
	}
	return tx.AdjustBalance(ctx, *owner, revenue)
}

// RecordCall stores a call to numberID. A zero at means now.
func (r *Recorder) RecordCall(ctx context.Context, numberID uuid.UUID, durationSeconds int, at time.Time) (*model.CallEvent, error) {
	if durationSeconds < 0 {
		return nil, ErrInvalidLength
	}
	if at.IsZero() {
		at = r.now()
	}

	var ev model.CallEvent
	err := r.store.RunIngestTx(ctx, func(tx repo.IngestTx) error {
		n, err := tx.GetNumber(ctx, numberID)
		if err != nil {
			return err
		}
		if err := checkNumber(n, model.ChannelVoice); err != nil {
			return err
		}
		ev = model.CallEvent{
			NumberID:        n.ID,
			NumberValue:     n.Value,
			UserID:          n.OwnerID,
			CountryCode:     n.CountryCode,
			ChannelType:     n.ChannelType,
			ServiceCategory: n.ServiceCategory,
			DurationSeconds: durationSeconds,
			Revenue:         CallRevenue(n.Rate, durationSeconds),
			OccurredAt:      at.UTC(),
		}
		if err := tx.InsertCallEvent(ctx, &ev); err != nil {
			return err
		}
		return credit(ctx, tx, n.OwnerID, ev.Revenue)
	})
	if err != nil {
		return nil, fmt.Errorf("record call: %w", err)
	}

	recordedTotal.WithLabelValues("call").Inc()
	revenueTotal.WithLabelValues(ev.CountryCode).Add(ev.Revenue.InexactFloat64())
	zap.L().Debug("Call recorded",
		zap.String("number", ev.NumberValue),
		zap.Int("seconds", durationSeconds),
		zap.String("revenue", ev.Revenue.String()))
	return &ev, nil
}

// RecordSMS stores an SMS of messageLength characters to numberID. A zero at means now.
func (r *Recorder) RecordSMS(ctx context.Context, numberID uuid.UUID, messageLength int, at time.Time) (*model.SMSEvent, error) {
	if messageLength < 0 {
		return nil, ErrInvalidLength
	}
	if at.IsZero() {
		at = r.now()
	}

	var ev model.SMSEvent
	err := r.store.RunIngestTx(ctx, func(tx repo.IngestTx) error {
		n, err := tx.GetNumber(ctx, numberID)
		if err != nil {
			return err
		}
		if err := checkNumber(n, model.ChannelSMS); err != nil {
			return err
		}
		ev = model.SMSEvent{
			NumberID:        n.ID,
			NumberValue:     n.Value,
			UserID:          n.OwnerID,
			CountryCode:     n.CountryCode,
			ChannelType:     n.ChannelType,
			ServiceCategory: n.ServiceCategory,
			MessageLength:   messageLength,
			Revenue:         SMSRevenue(n.Rate),
			OccurredAt:      at.UTC(),
		}
		if err := tx.InsertSMSEvent(ctx, &ev); err != nil {
			return err
		}
		return credit(ctx, tx, n.OwnerID, ev.Revenue)
	})
	if err != nil {
		return nil, fmt.Errorf("record sms: %w", err)
	}

	recordedTotal.WithLabelValues("sms").Inc()
	revenueTotal.WithLabelValues(ev.CountryCode).Add(ev.Revenue.InexactFloat64())
	zap.L().Debug("SMS recorded",
		zap.String("number", ev.NumberValue),
		zap.Int("length", messageLength),
		zap.String("revenue", ev.Revenue.String()))
	return &ev, nil
}
