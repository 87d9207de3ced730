package report

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prnadmin/server/internal/activity"
	"github.com/prnadmin/server/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func act(kind activity.Kind, channel model.ChannelType, country, revenue string, at time.Time) activity.Activity {
	return activity.Activity{
		Kind:        kind,
		ID:          uuid.New(),
		CountryCode: country,
		ChannelType: channel,
		Revenue:     dec(revenue),
		OccurredAt:  at,
	}
}

func TestByChannel_SumsToTotal(t *testing.T) {
	list := []activity.Activity{
		act(activity.KindCall, model.ChannelVoice, "GB", "2.0001", day0),
		act(activity.KindSMS, model.ChannelSMS, "US", "0.3333", day0),
		act(activity.KindSMS, model.ChannelCombined, "GB", "0.3333", day0),
		act(activity.KindCall, model.ChannelCombined, "GB", "0.3334", day0),
	}
	c, err := ByChannel(list)
	require.NoError(t, err)

	assert.True(t, c.Voice.Equal(dec("2.0001")))
	assert.True(t, c.SMS.Equal(dec("0.3333")))
	assert.True(t, c.Combined.Equal(dec("0.6667")))
	assert.True(t, c.Sum().Equal(Total(list)))
}

func TestByChannel_UnknownChannelIsInconsistent(t *testing.T) {
	list := []activity.Activity{
		act(activity.KindCall, model.ChannelVoice, "GB", "1", day0),
		act(activity.KindCall, model.ChannelType("fax"), "GB", "1", day0),
	}
	_, err := ByChannel(list)
	assert.True(t, errors.Is(err, ErrInconsistentAggregate))

	_, err = Summarize(list)
	assert.True(t, errors.Is(err, ErrInconsistentAggregate))
}

func TestByCountry_PeakIsHundred(t *testing.T) {
	list := []activity.Activity{
		act(activity.KindCall, model.ChannelVoice, "GB", "150", day0),
		act(activity.KindCall, model.ChannelVoice, "US", "100", day0),
		act(activity.KindSMS, model.ChannelSMS, "GB", "50", day0),
		act(activity.KindSMS, model.ChannelSMS, "DE", "0", day0),
	}
	countries := ByCountry(list)
	require.Len(t, countries, 3)

	assert.Equal(t, "GB", countries[0].Country)
	assert.True(t, countries[0].Revenue.Equal(dec("200")))
	assert.Equal(t, int64(100), countries[0].Percentage())
	assert.Equal(t, 2, countries[0].Events)

	assert.Equal(t, "US", countries[1].Country)
	assert.Equal(t, int64(50), countries[1].Percentage())

	assert.Equal(t, "DE", countries[2].Country)
	assert.Equal(t, int64(0), countries[2].Percentage())
}

func TestByCountry_AllZero(t *testing.T) {
	countries := ByCountry([]activity.Activity{act(activity.KindSMS, model.ChannelSMS, "FR", "0", day0)})
	require.Len(t, countries, 1)
	assert.Equal(t, int64(0), countries[0].Percentage())
	assert.Empty(t, ByCountry(nil))
}

func TestSummarize_Counts(t *testing.T) {
	call := act(activity.KindCall, model.ChannelVoice, "GB", "1", day0)
	call.Length = 90
	list := []activity.Activity{call, act(activity.KindSMS, model.ChannelSMS, "GB", "1", day0)}

	s, err := Summarize(list)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Calls)
	assert.Equal(t, 1, s.SMS)
	assert.Equal(t, 90, s.Seconds)
	assert.True(t, s.Total.Equal(dec("2")))
}

func TestPeriodChange(t *testing.T) {
	c := PeriodChange(dec("150"), dec("100"))
	require.NotNil(t, c.Ratio)
	assert.True(t, c.Ratio.Equal(dec("0.5")))
	assert.Equal(t, "50", c.Percent().String())

	down := PeriodChange(dec("1"), dec("3"))
	assert.Equal(t, "-66.7", down.Percent().String())

	none := PeriodChange(dec("150"), decimal.Zero)
	assert.Nil(t, none.Ratio)
	assert.Nil(t, none.Percent())
}

func TestOverTime_DayGapFill(t *testing.T) {
	list := []activity.Activity{
		act(activity.KindCall, model.ChannelVoice, "GB", "1", day0.Add(3*time.Hour)),
		act(activity.KindSMS, model.ChannelSMS, "GB", "2", day0.Add(50*time.Hour)),
		act(activity.KindSMS, model.ChannelSMS, "GB", "9", day0.Add(-time.Hour)),
		act(activity.KindCall, model.ChannelVoice, "GB", "10", day0.Add(52*time.Hour)),
		act(activity.KindSMS, model.ChannelCombined, "DE", "3", day0.Add(53*time.Hour)),
	}
	points, err := OverTime(list, day0, day0.Add(72*time.Hour-time.Nanosecond), Day)
	require.NoError(t, err)
	require.Len(t, points, 3)

	assert.Equal(t, "2024-03-01", points[0].Period)
	assert.True(t, points[0].Revenue.Equal(dec("1")))
	assert.True(t, points[0].Channels.Voice.Equal(dec("1")))
	assert.Equal(t, 1, points[0].Calls)
	assert.True(t, points[1].Revenue.IsZero())
	assert.True(t, points[1].Channels.Sum().IsZero())

	last := points[2]
	assert.Equal(t, "2024-03-03", last.Period)
	assert.True(t, last.Channels.Voice.Equal(dec("10")))
	assert.True(t, last.Channels.SMS.Equal(dec("2")))
	assert.True(t, last.Channels.Combined.Equal(dec("3")))
	assert.True(t, last.Revenue.Equal(dec("15")))
	assert.Equal(t, 1, last.Calls)
	assert.Equal(t, 2, last.Messages)

	for i := 1; i < len(points); i++ {
		assert.True(t, points[i].Start.After(points[i-1].Start))
	}
}

func TestOverTime_WeekAndMonth(t *testing.T) {
	list := []activity.Activity{act(activity.KindCall, model.ChannelVoice, "GB", "5", day0.AddDate(0, 0, 5))}

	weeks, err := OverTime(list, day0, day0.AddDate(0, 0, 13), Week)
	require.NoError(t, err)
	require.Len(t, weeks, 3)
	assert.Equal(t, "2024-W09", weeks[0].Period)
	assert.True(t, weeks[1].Revenue.Equal(dec("5")))

	months, err := OverTime(list, day0, day0.AddDate(0, 2, 0), Month)
	require.NoError(t, err)
	require.Len(t, months, 3)
	assert.Equal(t, []string{"2024-03", "2024-04", "2024-05"}, []string{months[0].Period, months[1].Period, months[2].Period})
}

func TestOverTime_Errors(t *testing.T) {
	_, err := OverTime(nil, day0, day0.Add(-time.Hour), Day)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = OverTime(nil, day0, day0.AddDate(5, 0, 0), Day)
	assert.ErrorIs(t, err, ErrWindowTooLarge)

	unknown := []activity.Activity{act(activity.KindCall, model.ChannelType("fax"), "GB", "4", day0)}
	_, err = OverTime(unknown, day0, day0.Add(time.Hour), Day)
	assert.ErrorIs(t, err, ErrInconsistentAggregate)
}

func TestBucketStart(t *testing.T) {
	wed := time.Date(2024, 3, 6, 15, 4, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), BucketStart(wed, Week))
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), BucketStart(wed, Month))

	sun := time.Date(2024, 3, 10, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), BucketStart(sun, Week))
}

func TestPreviousWindow(t *testing.T) {
	from := day0
	to := day0.AddDate(0, 0, 7).Add(-time.Nanosecond)
	pFrom, pTo := PreviousWindow(from, to)

	assert.Equal(t, to.Sub(from), pTo.Sub(pFrom))
	assert.True(t, pTo.Before(from))
	assert.Equal(t, from.Add(-time.Nanosecond), pTo)
}

func TestParseGranularity(t *testing.T) {
	g, err := ParseGranularity("")
	require.NoError(t, err)
	assert.Equal(t, Day, g)

	g, err = ParseGranularity("month")
	require.NoError(t, err)
	assert.Equal(t, Month, g)

	_, err = ParseGranularity("year")
	assert.ErrorIs(t, err, ErrBadGranularity)
}
