package report

import (
	"errors"
	"fmt"
	"time"

	"github.com/prnadmin/server/internal/activity"
	"github.com/prnadmin/server/internal/model"
	"github.com/shopspring/decimal"
)

// Granularity is the bucket size of a time series
type Granularity string

const (
	Day   Granularity = "day"
	Week  Granularity = "week"
	Month Granularity = "month"
)

// maxBuckets bounds the gap-filled series
const maxBuckets = 1000

var (
	ErrInvalidWindow  = errors.New("date_to is before date_from")
	ErrWindowTooLarge = errors.New("reporting window has too many buckets")
	ErrBadGranularity = errors.New("granularity must be day, week or month")
)

// ParseGranularity accepts day, week or month; empty means day
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(s) {
	case "":
		return Day, nil
	case Day, Week, Month:
		return Granularity(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrBadGranularity, s)
}

// Point is one bucket of the revenue series. Channels always sums to Revenue.
type Point struct {
	Period   string
	Start    time.Time
	Revenue  decimal.Decimal
	Channels Channels
	Calls    int
	Messages int
}

// BucketStart truncates t (in UTC) to the start of its bucket. Weeks start on Monday.
func BucketStart(t time.Time, g Granularity) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	switch g {
	case Week:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case Month:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return day
	}
}

func nextBucket(t time.Time, g Granularity) time.Time {
	switch g {
	case Week:
		return t.AddDate(0, 0, 7)
	case Month:
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

// Label renders a bucket start: 2024-03-01, 2024-W09 or 2024-03
func Label(start time.Time, g Granularity) string {
	switch g {
	case Week:
		year, week := start.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case Month:
		return start.Format("2006-01")
	default:
		return start.Format("2006-01-02")
	}
}

// OverTime buckets list between from and to (inclusive), oldest first.
// Buckets with no activity are present with zero revenue. Each bucket is
// split by channel and the split must add up to the bucket total.
func OverTime(list []activity.Activity, from, to time.Time, g Granularity) ([]Point, error) {
	if to.Before(from) {
		return nil, ErrInvalidWindow
	}
	first := BucketStart(from, g)
	last := BucketStart(to, g)

	points := make([]Point, 0)
	index := make(map[time.Time]int)
	for b := first; !b.After(last); b = nextBucket(b, g) {
		if len(points) == maxBuckets {
			return nil, fmt.Errorf("%w: more than %d %s buckets", ErrWindowTooLarge, maxBuckets, g)
		}
		index[b] = len(points)
		points = append(points, Point{Period: Label(b, g), Start: b, Revenue: decimal.Zero})
	}

	for _, a := range list {
		i, ok := index[BucketStart(a.OccurredAt, g)]
		if !ok {
			continue
		}
		p := &points[i]
		p.Revenue = p.Revenue.Add(a.Revenue)
		switch a.ChannelType {
		case model.ChannelVoice:
			p.Channels.Voice = p.Channels.Voice.Add(a.Revenue)
		case model.ChannelSMS:
			p.Channels.SMS = p.Channels.SMS.Add(a.Revenue)
		case model.ChannelCombined:
			p.Channels.Combined = p.Channels.Combined.Add(a.Revenue)
		}
		switch a.Kind {
		case activity.KindCall:
			p.Calls++
		case activity.KindSMS:
			p.Messages++
		}
	}
	for _, p := range points {
		if !p.Channels.Sum().Equal(p.Revenue) {
			return nil, fmt.Errorf("%w: %s channels sum to %s, total is %s", ErrInconsistentAggregate, p.Period, p.Channels.Sum(), p.Revenue)
		}
	}
	return points, nil
}

// PreviousWindow is the window of equal length ending right before from
func PreviousWindow(from, to time.Time) (time.Time, time.Time) {
	length := to.Sub(from)
	prevTo := from.Add(-time.Nanosecond)
	return prevTo.Add(-length), prevTo
}
