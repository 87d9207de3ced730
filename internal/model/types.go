package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Role is the access role of a dashboard account
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleSupport Role = "support"
	RoleUser    Role = "user"
	RoleTest    Role = "test"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSupport, RoleUser, RoleTest:
		return true
	}
	return false
}

// PayoutMethod is how an owner wants to be paid
type PayoutMethod string

const (
	PayoutCrypto PayoutMethod = "crypto"
	PayoutBank   PayoutMethod = "bank"
	PayoutPaypal PayoutMethod = "paypal"
)

// Valid reports whether m is a known payout method
func (m PayoutMethod) Valid() bool {
	switch m {
	case PayoutCrypto, PayoutBank, PayoutPaypal:
		return true
	}
	return false
}

// ChannelType is the traffic a number carries
type ChannelType string

const (
	ChannelVoice    ChannelType = "voice"
	ChannelSMS      ChannelType = "sms"
	ChannelCombined ChannelType = "combined"
)

// Valid reports whether c is a known channel type
func (c ChannelType) Valid() bool {
	switch c {
	case ChannelVoice, ChannelSMS, ChannelCombined:
		return true
	}
	return false
}

// User is a dashboard account and, for role user/test, a number owner.
// Balance is accrued revenue not yet paid out.
type User struct {
	ID            uuid.UUID
	Email         string
	Name          string
	Role          Role
	PasswordHash  string
	Balance       decimal.Decimal
	PayoutMethod  *PayoutMethod
	PayoutDetails map[string]string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Number is a rentable premium-rate number
type Number struct {
	ID              uuid.UUID
	Value           string
	CountryCode     string
	ChannelType     ChannelType
	ServiceCategory string
	Rate            decimal.Decimal
	Active          bool
	OwnerID         *uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CallEvent is an immutable record of one call to a number.
// Country, channel and category are copied from the number when recorded.
type CallEvent struct {
	ID              uuid.UUID
	Seq             int64
	NumberID        uuid.UUID
	NumberValue     string
	UserID          *uuid.UUID
	CountryCode     string
	ChannelType     ChannelType
	ServiceCategory string
	DurationSeconds int
	Revenue         decimal.Decimal
	OccurredAt      time.Time
}

// SMSEvent is an immutable record of one inbound SMS to a number
type SMSEvent struct {
	ID              uuid.UUID
	Seq             int64
	NumberID        uuid.UUID
	NumberValue     string
	UserID          *uuid.UUID
	CountryCode     string
	ChannelType     ChannelType
	ServiceCategory string
	MessageLength   int
	Revenue         decimal.Decimal
	OccurredAt      time.Time
}

// UserMessage is an inbound message shown in the CDIR inbox
type UserMessage struct {
	ID          uuid.UUID
	NumberID    uuid.UUID
	NumberValue string
	UserID      *uuid.UUID
	Sender      string
	Body        string
	Status      MessageStatus
	IsRead      bool
	Reply       *string
	ReceivedAt  time.Time
	RespondedAt *time.Time
	UpdatedAt   time.Time
}

// NumberRequest is an owner's request for new numbers
type NumberRequest struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	CountryCode     string
	ChannelType     ChannelType
	ServiceCategory string
	Quantity        int
	Notes           string
	Status          RequestStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Payout is a withdrawal of accrued balance
type Payout struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Amount      decimal.Decimal
	Method      PayoutMethod
	Details     map[string]string
	Status      PayoutStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ProcessedAt *time.Time
}

// Provider is an informational upstream carrier record
type Provider struct {
	ID          uuid.UUID
	Name        string
	ServiceType string
	Pricing     string
	Countries   []string
	APIEndpoint string
	Notes       string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Scope limits a read to one user's data unless All is set
type Scope struct {
	UserID uuid.UUID
	All    bool
}

// ActivityFilter selects events for reporting. DateTo is inclusive.
type ActivityFilter struct {
	Scope       Scope
	DateFrom    time.Time
	DateTo      time.Time
	Country     string
	ServiceType ChannelType
}

// Balances is a reconciliation of a user's stored balance
type Balances struct {
	UserID           uuid.UUID
	Stored           decimal.Decimal
	Revenue          decimal.Decimal
	CompletedPayouts decimal.Decimal
}

// Expected returns the balance implied by revenue and completed payouts
func (b Balances) Expected() decimal.Decimal {
	return b.Revenue.Sub(b.CompletedPayouts)
}

// Consistent reports whether the stored balance matches the ledger
func (b Balances) Consistent() bool {
	return b.Stored.Equal(b.Expected())
}

// PayoutTotals summarizes payouts in a scope
type PayoutTotals struct {
	PendingCount     int
	PendingAmount    decimal.Decimal
	ProcessingCount  int
	ProcessingAmount decimal.Decimal
	CompletedAmount  decimal.Decimal
}
