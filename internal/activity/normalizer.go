package activity

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/prnadmin/server/internal/model"
	"github.com/shopspring/decimal"
)

// Kind tells call activity from SMS activity
type Kind string

const (
	KindCall Kind = "call"
	KindSMS  Kind = "sms"
)

// Length units per kind
const (
	UnitSeconds    = "seconds"
	UnitCharacters = "characters"
)

// Activity is one row of the unified call/SMS stream
type Activity struct {
	Kind            Kind
	ID              uuid.UUID
	Seq             int64
	NumberID        uuid.UUID
	NumberValue     string
	UserID          *uuid.UUID
	CountryCode     string
	ChannelType     model.ChannelType
	ServiceCategory string
	Length          int
	LengthUnit      string
	Revenue         decimal.Decimal
	OccurredAt      time.Time
}

// Event is a raw record the normalizer accepts. It is implemented only by
// Call and SMS.
type Event interface {
	event()
}

// Call wraps a stored call event
type Call struct{ model.CallEvent }

// SMS wraps a stored SMS event
type SMS struct{ model.SMSEvent }

func (Call) event() {}
func (SMS) event()  {}

// Events builds the tagged input from the two stored event lists
func Events(calls []model.CallEvent, sms []model.SMSEvent) []Event {
	out := make([]Event, 0, len(calls)+len(sms))
	for _, c := range calls {
		out = append(out, Call{c})
	}
	for _, s := range sms {
		out = append(out, SMS{s})
	}
	return out
}

// Project maps a single event onto an Activity
func Project(e Event) Activity {
	switch ev := e.(type) {
	case Call:
		return Activity{
			Kind:            KindCall,
			ID:              ev.ID,
			Seq:             ev.Seq,
			NumberID:        ev.NumberID,
			NumberValue:     ev.NumberValue,
			UserID:          ev.UserID,
			CountryCode:     ev.CountryCode,
			ChannelType:     ev.ChannelType,
			ServiceCategory: ev.ServiceCategory,
			Length:          ev.DurationSeconds,
			LengthUnit:      UnitSeconds,
			Revenue:         ev.Revenue,
			OccurredAt:      ev.OccurredAt,
		}
	case SMS:
		return Activity{
			Kind:            KindSMS,
			ID:              ev.ID,
			Seq:             ev.Seq,
			NumberID:        ev.NumberID,
			NumberValue:     ev.NumberValue,
			UserID:          ev.UserID,
			CountryCode:     ev.CountryCode,
			ChannelType:     ev.ChannelType,
			ServiceCategory: ev.ServiceCategory,
			Length:          ev.MessageLength,
			LengthUnit:      UnitCharacters,
			Revenue:         ev.Revenue,
			OccurredAt:      ev.OccurredAt,
		}
	default:
		// Event is sealed; a new variant must be added above.
		panic(fmt.Sprintf("activity: unhandled event type %T", e))
	}
}

// Normalize merges calls and SMS into one stream, newest first. Events with
// the same timestamp are ordered by insertion sequence, newest first.
// An empty input yields an empty, non-nil slice.
func Normalize(calls []model.CallEvent, sms []model.SMSEvent) []Activity {
	return NormalizeEvents(Events(calls, sms))
}

// NormalizeEvents is Normalize over already tagged events
func NormalizeEvents(events []Event) []Activity {
	out := make([]Activity, 0, len(events))
	for _, e := range events {
		out = append(out, Project(e))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return Less(out[i], out[j])
	})
	return out
}

// Less is the stream order: timestamp descending, then sequence descending,
// then calls before SMS
func Less(a, b Activity) bool {
	if !a.OccurredAt.Equal(b.OccurredAt) {
		return a.OccurredAt.After(b.OccurredAt)
	}
	if a.Seq != b.Seq {
		return a.Seq > b.Seq
	}
	return a.Kind == KindCall && b.Kind == KindSMS
}

// FilterKind keeps only activities of kind k. An empty kind keeps everything.
func FilterKind(list []Activity, k Kind) []Activity {
	if k == "" {
		return list
	}
	out := make([]Activity, 0, len(list))
	for _, a := range list {
		if a.Kind == k {
			out = append(out, a)
		}
	}
	return out
}

// Page returns the window [offset, offset+limit) of list
func Page(list []Activity, limit, offset int) []Activity {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(list) || limit <= 0 {
		return []Activity{}
	}
	end := offset + limit
	if end > len(list) {
		end = len(list)
	}
	return list[offset:end]
}
