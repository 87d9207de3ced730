package report

import (
	"errors"
	"fmt"
	"sort"

	"github.com/prnadmin/server/internal/activity"
	"github.com/prnadmin/server/internal/model"
	"github.com/shopspring/decimal"
)

// ErrInconsistentAggregate is returned when per-channel revenue does not add
// up to the total, which means stored data carries an unknown channel type
var ErrInconsistentAggregate = errors.New("inconsistent aggregate")

var hundred = decimal.NewFromInt(100)

// Channels is revenue split by the channel type of the originating number
type Channels struct {
	Voice    decimal.Decimal
	SMS      decimal.Decimal
	Combined decimal.Decimal
}

// Sum adds the three channels
func (c Channels) Sum() decimal.Decimal {
	return c.Voice.Add(c.SMS).Add(c.Combined)
}

// CountryRevenue is the revenue of one country. Share is relative to the
// best country in the same result, so the peak country has share 1.
type CountryRevenue struct {
	Country string
	Revenue decimal.Decimal
	Events  int
	Share   decimal.Decimal
}

// Percentage is Share expressed as a whole percent for display
func (c CountryRevenue) Percentage() int64 {
	return c.Share.Mul(hundred).Round(0).IntPart()
}

// Summary is the headline aggregate of a set of activities
type Summary struct {
	Total     decimal.Decimal
	Calls     int
	SMS       int
	Seconds   int
	Channels  Channels
	Countries []CountryRevenue
}

// Total sums revenue over every activity
func Total(list []activity.Activity) decimal.Decimal {
	total := decimal.Zero
	for _, a := range list {
		total = total.Add(a.Revenue)
	}
	return total
}

// ByChannel splits revenue by channel type and checks the split against the total
func ByChannel(list []activity.Activity) (Channels, error) {
	var c Channels
	for _, a := range list {
		switch a.ChannelType {
		case model.ChannelVoice:
			c.Voice = c.Voice.Add(a.Revenue)
		case model.ChannelSMS:
			c.SMS = c.SMS.Add(a.Revenue)
		case model.ChannelCombined:
			c.Combined = c.Combined.Add(a.Revenue)
		}
	}
	if total := Total(list); !c.Sum().Equal(total) {
		return Channels{}, fmt.Errorf("%w: channels sum to %s, total is %s", ErrInconsistentAggregate, c.Sum(), total)
	}
	return c, nil
}

// ByCountry groups revenue per country, highest revenue first. Ties are
// ordered by country code.
func ByCountry(list []activity.Activity) []CountryRevenue {
	index := make(map[string]int)
	out := make([]CountryRevenue, 0)
	for _, a := range list {
		i, ok := index[a.CountryCode]
		if !ok {
			i = len(out)
			index[a.CountryCode] = i
			out = append(out, CountryRevenue{Country: a.CountryCode, Revenue: decimal.Zero})
		}
		out[i].Revenue = out[i].Revenue.Add(a.Revenue)
		out[i].Events++
	}

	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Revenue.Cmp(out[j].Revenue); c != 0 {
			return c > 0
		}
		return out[i].Country < out[j].Country
	})

	if len(out) == 0 {
		return out
	}
	peak := out[0].Revenue
	for i := range out {
		if peak.IsZero() {
			out[i].Share = decimal.Zero
			continue
		}
		out[i].Share = out[i].Revenue.Div(peak)
	}
	return out
}

// Summarize computes totals, counts and breakdowns of list
func Summarize(list []activity.Activity) (Summary, error) {
	channels, err := ByChannel(list)
	if err != nil {
		return Summary{}, err
	}
	s := Summary{
		Total:     Total(list),
		Channels:  channels,
		Countries: ByCountry(list),
	}
	for _, a := range list {
		switch a.Kind {
		case activity.KindCall:
			s.Calls++
			s.Seconds += a.Length
		case activity.KindSMS:
			s.SMS++
		}
	}
	return s, nil
}

// Change compares a window with the window right before it
type Change struct {
	Current  decimal.Decimal
	Previous decimal.Decimal
	// Ratio is (current-previous)/previous, nil when previous is zero
	Ratio *decimal.Decimal
}

// PeriodChange builds a Change. A zero previous total has no defined ratio.
func PeriodChange(current, previous decimal.Decimal) Change {
	c := Change{Current: current, Previous: previous}
	if previous.IsZero() {
		return c
	}
	ratio := current.Sub(previous).Div(previous)
	c.Ratio = &ratio
	return c
}

// Percent is the change in percent rounded to one decimal place, or nil
func (c Change) Percent() *decimal.Decimal {
	if c.Ratio == nil {
		return nil
	}
	p := c.Ratio.Mul(hundred).Round(1)
	return &p
}
