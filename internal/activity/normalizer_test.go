package activity

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prnadmin/server/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func call(seq int64, at time.Time, seconds int, revenue string) model.CallEvent {
	return model.CallEvent{
		ID:              uuid.New(),
		Seq:             seq,
		NumberID:        uuid.New(),
		NumberValue:     "+44900000001",
		CountryCode:     "GB",
		ChannelType:     model.ChannelVoice,
		DurationSeconds: seconds,
		Revenue:         decimal.RequireFromString(revenue),
		OccurredAt:      at,
	}
}

func sms(seq int64, at time.Time, length int, revenue string) model.SMSEvent {
	return model.SMSEvent{
		ID:            uuid.New(),
		Seq:           seq,
		NumberID:      uuid.New(),
		NumberValue:   "+1900555001",
		CountryCode:   "US",
		ChannelType:   model.ChannelSMS,
		MessageLength: length,
		Revenue:       decimal.RequireFromString(revenue),
		OccurredAt:    at,
	}
}

func TestNormalize_EmptyInput(t *testing.T) {
	out := Normalize(nil, nil)
	require.NotNil(t, out)
	assert.Empty(t, out)
}

func TestNormalize_OrderAndLength(t *testing.T) {
	calls := []model.CallEvent{
		call(1, base, 120, "2.00"),
		call(3, base.Add(2*time.Hour), 30, "0.50"),
	}
	texts := []model.SMSEvent{
		sms(2, base.Add(time.Hour), 140, "0.25"),
	}

	out := Normalize(calls, texts)
	require.Len(t, out, 3)

	assert.Equal(t, KindCall, out[0].Kind)
	assert.Equal(t, 30, out[0].Length)
	assert.Equal(t, UnitSeconds, out[0].LengthUnit)

	assert.Equal(t, KindSMS, out[1].Kind)
	assert.Equal(t, 140, out[1].Length)
	assert.Equal(t, UnitCharacters, out[1].LengthUnit)
	assert.Equal(t, "US", out[1].CountryCode)

	assert.Equal(t, KindCall, out[2].Kind)
	assert.Equal(t, 120, out[2].Length)

	for i := 1; i < len(out); i++ {
		assert.False(t, out[i].OccurredAt.After(out[i-1].OccurredAt))
	}
}

func TestNormalize_TieBreakIsDeterministic(t *testing.T) {
	calls := []model.CallEvent{call(5, base, 60, "1"), call(7, base, 60, "1")}
	texts := []model.SMSEvent{sms(6, base, 10, "0.1")}

	first := Normalize(calls, texts)
	second := Normalize([]model.CallEvent{calls[1], calls[0]}, texts)

	require.Len(t, first, 3)
	assert.Equal(t, []int64{7, 6, 5}, []int64{first[0].Seq, first[1].Seq, first[2].Seq})
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
}

func TestNormalize_PreservesRevenue(t *testing.T) {
	out := Normalize([]model.CallEvent{call(1, base, 61, "1.2345")}, nil)
	require.Len(t, out, 1)
	assert.True(t, out[0].Revenue.Equal(decimal.RequireFromString("1.2345")))
}

func TestFilterKindAndPage(t *testing.T) {
	out := Normalize(
		[]model.CallEvent{call(1, base, 1, "1"), call(2, base.Add(time.Minute), 1, "1")},
		[]model.SMSEvent{sms(3, base.Add(2*time.Minute), 1, "1")},
	)

	assert.Len(t, FilterKind(out, KindCall), 2)
	assert.Len(t, FilterKind(out, KindSMS), 1)
	assert.Len(t, FilterKind(out, ""), 3)

	assert.Len(t, Page(out, 2, 0), 2)
	assert.Len(t, Page(out, 2, 2), 1)
	assert.Empty(t, Page(out, 2, 3))
	assert.Empty(t, Page(out, 0, 0))
	assert.Equal(t, out[0].ID, Page(out, 1, -4)[0].ID)
}
