package handlers

import (
	"time"

	"github.com/prnadmin/server/internal/access"
	"github.com/prnadmin/server/internal/activity"
	"github.com/prnadmin/server/internal/model"
	"github.com/prnadmin/server/internal/report"
	"github.com/shopspring/decimal"
)

// userResponse is the user object in API responses
type userResponse struct {
	ID            string            `json:"id"`
	Email         string            `json:"email"`
	Name          string            `json:"name"`
	Role          model.Role        `json:"role"`
	Balance       decimal.Decimal   `json:"balance"`
	PayoutMethod  *string           `json:"payout_method"`
	PayoutDetails map[string]string `json:"payout_details,omitempty"`
	Capabilities  []string          `json:"capabilities"`
	CreatedAt     time.Time         `json:"created_at"`
}

func toUserResponse(u model.User) userResponse {
	out := userResponse{
		ID:            u.ID.String(),
		Email:         u.Email,
		Name:          u.Name,
		Role:          u.Role,
		Balance:       u.Balance,
		PayoutDetails: u.PayoutDetails,
		Capabilities:  access.For(u.Role).Names(),
		CreatedAt:     u.CreatedAt,
	}
	if u.PayoutMethod != nil {
		m := string(*u.PayoutMethod)
		out.PayoutMethod = &m
	}
	return out
}

type numberResponse struct {
	ID              string            `json:"id"`
	Value           string            `json:"value"`
	CountryCode     string            `json:"country_code"`
	ChannelType     model.ChannelType `json:"channel_type"`
	ServiceCategory string            `json:"service_category"`
	Rate            decimal.Decimal   `json:"rate"`
	Active          bool              `json:"active"`
	OwnerID         *string           `json:"owner_id"`
	CreatedAt       time.Time         `json:"created_at"`
}

func toNumberResponse(n model.Number) numberResponse {
	out := numberResponse{
		ID:              n.ID.String(),
		Value:           n.Value,
		CountryCode:     n.CountryCode,
		ChannelType:     n.ChannelType,
		ServiceCategory: n.ServiceCategory,
		Rate:            n.Rate,
		Active:          n.Active,
		CreatedAt:       n.CreatedAt,
	}
	if n.OwnerID != nil {
		id := n.OwnerID.String()
		out.OwnerID = &id
	}
	return out
}

func toNumberResponses(list []model.Number) []numberResponse {
	out := make([]numberResponse, 0, len(list))
	for _, n := range list {
		out = append(out, toNumberResponse(n))
	}
	return out
}

type numberRequestResponse struct {
	ID              string              `json:"id"`
	UserID          string              `json:"user_id"`
	CountryCode     string              `json:"country_code"`
	ChannelType     model.ChannelType   `json:"channel_type"`
	ServiceCategory string              `json:"service_category"`
	Quantity        int                 `json:"quantity"`
	Notes           string              `json:"notes"`
	Status          model.RequestStatus `json:"status"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

func toNumberRequestResponse(r model.NumberRequest) numberRequestResponse {
	return numberRequestResponse{
		ID:              r.ID.String(),
		UserID:          r.UserID.String(),
		CountryCode:     r.CountryCode,
		ChannelType:     r.ChannelType,
		ServiceCategory: r.ServiceCategory,
		Quantity:        r.Quantity,
		Notes:           r.Notes,
		Status:          r.Status,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

type payoutResponse struct {
	ID          string             `json:"id"`
	UserID      string             `json:"user_id"`
	Amount      decimal.Decimal    `json:"amount"`
	Method      model.PayoutMethod `json:"method"`
	Details     map[string]string  `json:"details,omitempty"`
	Status      model.PayoutStatus `json:"status"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	ProcessedAt *time.Time         `json:"processed_at"`
}

func toPayoutResponse(p model.Payout) payoutResponse {
	return payoutResponse{
		ID:          p.ID.String(),
		UserID:      p.UserID.String(),
		Amount:      p.Amount,
		Method:      p.Method,
		Details:     p.Details,
		Status:      p.Status,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		ProcessedAt: p.ProcessedAt,
	}
}

type messageResponse struct {
	ID          string              `json:"id"`
	NumberID    string              `json:"number_id"`
	NumberValue string              `json:"number"`
	Sender      string              `json:"sender"`
	Body        string              `json:"body"`
	Status      model.MessageStatus `json:"status"`
	IsRead      bool                `json:"is_read"`
	Reply       *string             `json:"reply"`
	ReceivedAt  time.Time           `json:"received_at"`
	RespondedAt *time.Time          `json:"responded_at"`
}

func toMessageResponse(m model.UserMessage) messageResponse {
	return messageResponse{
		ID:          m.ID.String(),
		NumberID:    m.NumberID.String(),
		NumberValue: m.NumberValue,
		Sender:      m.Sender,
		Body:        m.Body,
		Status:      m.Status,
		IsRead:      m.IsRead,
		Reply:       m.Reply,
		ReceivedAt:  m.ReceivedAt,
		RespondedAt: m.RespondedAt,
	}
}

type providerResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ServiceType string    `json:"service_type"`
	Pricing     string    `json:"pricing"`
	Countries   []string  `json:"countries"`
	APIEndpoint string    `json:"api_endpoint"`
	Notes       string    `json:"notes"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

func toProviderResponse(p model.Provider) providerResponse {
	return providerResponse{
		ID:          p.ID.String(),
		Name:        p.Name,
		ServiceType: p.ServiceType,
		Pricing:     p.Pricing,
		Countries:   p.Countries,
		APIEndpoint: p.APIEndpoint,
		Notes:       p.Notes,
		Active:      p.Active,
		CreatedAt:   p.CreatedAt,
	}
}

type activityResponse struct {
	Kind            activity.Kind     `json:"kind"`
	ID              string            `json:"id"`
	NumberID        string            `json:"number_id"`
	Number          string            `json:"number"`
	CountryCode     string            `json:"country_code"`
	ChannelType     model.ChannelType `json:"channel_type"`
	ServiceCategory string            `json:"service_category"`
	Length          int               `json:"length"`
	LengthUnit      string            `json:"length_unit"`
	Revenue         decimal.Decimal   `json:"revenue"`
	OccurredAt      time.Time         `json:"occurred_at"`
}

func toActivityResponses(list []activity.Activity) []activityResponse {
	out := make([]activityResponse, 0, len(list))
	for _, a := range list {
		out = append(out, activityResponse{
			Kind:            a.Kind,
			ID:              a.ID.String(),
			NumberID:        a.NumberID.String(),
			Number:          a.NumberValue,
			CountryCode:     a.CountryCode,
			ChannelType:     a.ChannelType,
			ServiceCategory: a.ServiceCategory,
			Length:          a.Length,
			LengthUnit:      a.LengthUnit,
			Revenue:         a.Revenue,
			OccurredAt:      a.OccurredAt,
		})
	}
	return out
}

type channelsResponse struct {
	Voice    decimal.Decimal `json:"voice"`
	SMS      decimal.Decimal `json:"sms"`
	Combined decimal.Decimal `json:"combined"`
}

type countryResponse struct {
	Country    string          `json:"country"`
	Revenue    decimal.Decimal `json:"revenue"`
	Events     int             `json:"events"`
	Percentage int64           `json:"percentage"`
}

type summaryResponse struct {
	Total     decimal.Decimal   `json:"total_revenue"`
	Calls     int               `json:"calls"`
	SMS       int               `json:"sms"`
	Seconds   int               `json:"call_seconds"`
	Channels  channelsResponse  `json:"by_channel"`
	Countries []countryResponse `json:"by_country"`
}

func toSummaryResponse(s report.Summary) summaryResponse {
	countries := make([]countryResponse, 0, len(s.Countries))
	for _, c := range s.Countries {
		countries = append(countries, countryResponse{
			Country:    c.Country,
			Revenue:    c.Revenue,
			Events:     c.Events,
			Percentage: c.Percentage(),
		})
	}
	return summaryResponse{
		Total:   s.Total,
		Calls:   s.Calls,
		SMS:     s.SMS,
		Seconds: s.Seconds,
		Channels: channelsResponse{
			Voice:    s.Channels.Voice,
			SMS:      s.Channels.SMS,
			Combined: s.Channels.Combined,
		},
		Countries: countries,
	}
}

// changeResponse carries a null percent when the previous window had no revenue
type changeResponse struct {
	Current  decimal.Decimal  `json:"current"`
	Previous decimal.Decimal  `json:"previous"`
	Percent  *decimal.Decimal `json:"percent"`
}

func toChangeResponse(c report.Change) changeResponse {
	return changeResponse{Current: c.Current, Previous: c.Previous, Percent: c.Percent()}
}

type pointResponse struct {
	Period   string          `json:"period"`
	Start    time.Time       `json:"start"`
	Voice    decimal.Decimal `json:"voice"`
	SMS      decimal.Decimal `json:"sms"`
	Combined decimal.Decimal `json:"combined"`
	Revenue  decimal.Decimal `json:"revenue"`
	Calls    int             `json:"calls"`
	Messages int             `json:"messages"`
}

type filterResponse struct {
	DateFrom    time.Time         `json:"date_from"`
	DateTo      time.Time         `json:"date_to"`
	Country     string            `json:"country,omitempty"`
	ServiceType model.ChannelType `json:"service_type,omitempty"`
}

func toFilterResponse(f model.ActivityFilter) filterResponse {
	return filterResponse{DateFrom: f.DateFrom, DateTo: f.DateTo, Country: f.Country, ServiceType: f.ServiceType}
}

type revenueResponse struct {
	Filter      filterResponse     `json:"filter"`
	Granularity report.Granularity `json:"granularity"`
	Summary     summaryResponse    `json:"summary"`
	Series      []pointResponse    `json:"series"`
	Change      changeResponse     `json:"change"`
}

func toRevenueResponse(r *report.Revenue) revenueResponse {
	series := make([]pointResponse, 0, len(r.Series))
	for _, p := range r.Series {
		series = append(series, pointResponse{
			Period:   p.Period,
			Start:    p.Start,
			Voice:    p.Channels.Voice,
			SMS:      p.Channels.SMS,
			Combined: p.Channels.Combined,
			Revenue:  p.Revenue,
			Calls:    p.Calls,
			Messages: p.Messages,
		})
	}
	return revenueResponse{
		Filter:      toFilterResponse(r.Filter),
		Granularity: r.Granularity,
		Summary:     toSummaryResponse(r.Summary),
		Series:      series,
		Change:      toChangeResponse(r.Change),
	}
}

type dashboardResponse struct {
	Filter           filterResponse     `json:"filter"`
	Summary          summaryResponse    `json:"summary"`
	Change           changeResponse     `json:"change"`
	ActiveNumbers    int                `json:"active_numbers"`
	PendingPayouts   int                `json:"pending_payouts"`
	PendingAmount    decimal.Decimal    `json:"pending_payout_amount"`
	ProcessingAmount decimal.Decimal    `json:"processing_payout_amount"`
	PendingMessages  int                `json:"pending_messages"`
	Recent           []activityResponse `json:"recent_activity"`
}

func toDashboardResponse(f model.ActivityFilter, d *report.Dashboard) dashboardResponse {
	return dashboardResponse{
		Filter:           toFilterResponse(f),
		Summary:          toSummaryResponse(d.Summary),
		Change:           toChangeResponse(d.Change),
		ActiveNumbers:    d.ActiveNumbers,
		PendingPayouts:   d.PendingPayouts,
		PendingAmount:    d.PendingAmount,
		ProcessingAmount: d.ProcessingAmount,
		PendingMessages:  d.PendingMessages,
		Recent:           toActivityResponses(d.Recent),
	}
}

type balancesResponse struct {
	UserID           string          `json:"user_id"`
	Stored           decimal.Decimal `json:"stored_balance"`
	Revenue          decimal.Decimal `json:"attributed_revenue"`
	CompletedPayouts decimal.Decimal `json:"completed_payouts"`
	Expected         decimal.Decimal `json:"expected_balance"`
	Consistent       bool            `json:"consistent"`
}

func toBalancesResponse(b model.Balances) balancesResponse {
	return balancesResponse{
		UserID:           b.UserID.String(),
		Stored:           b.Stored,
		Revenue:          b.Revenue,
		CompletedPayouts: b.CompletedPayouts,
		Expected:         b.Expected(),
		Consistent:       b.Consistent(),
	}
}
