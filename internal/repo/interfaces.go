package repo

import (
	"context"

	"github.com/google/uuid"
	"github.com/prnadmin/server/internal/model"
	"github.com/shopspring/decimal"
)

// UserRepo defines the interface for user repository operations
type UserRepo interface {
	GetUser(ctx context.Context, id uuid.UUID) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	InsertUser(ctx context.Context, u *model.User) error
	UpdatePayoutMethod(ctx context.Context, id uuid.UUID, method model.PayoutMethod, details map[string]string) error
}

// NumberRepo defines number inventory reads and writes
type NumberRepo interface {
	GetNumber(ctx context.Context, id uuid.UUID) (model.Number, error)
	ListNumbers(ctx context.Context, scope model.Scope) ([]model.Number, error)
	InsertNumber(ctx context.Context, n *model.Number) error
	UpdateNumber(ctx context.Context, n *model.Number) error
	DeleteNumber(ctx context.Context, id uuid.UUID) error
}

// ProviderRepo defines provider record operations
type ProviderRepo interface {
	ListProviders(ctx context.Context) ([]model.Provider, error)
	GetProvider(ctx context.Context, id uuid.UUID) (model.Provider, error)
	InsertProvider(ctx context.Context, p *model.Provider) error
	UpdateProvider(ctx context.Context, p *model.Provider) error
	DeleteProvider(ctx context.Context, id uuid.UUID) error
}

// Reader is the read side used by reporting. All calls made through one
// Reader observe the same snapshot.
type Reader interface {
	ListCallEvents(ctx context.Context, f model.ActivityFilter) ([]model.CallEvent, error)
	ListSMSEvents(ctx context.Context, f model.ActivityFilter) ([]model.SMSEvent, error)
	SumRevenue(ctx context.Context, f model.ActivityFilter) (decimal.Decimal, error)
	PayoutTotals(ctx context.Context, scope model.Scope) (model.PayoutTotals, error)
	CountMessages(ctx context.Context, scope model.Scope, status model.MessageStatus) (int, error)
	CountActiveNumbers(ctx context.Context, scope model.Scope) (int, error)
}

// ReportStore hands out consistent read snapshots
type ReportStore interface {
	ReadSnapshot(ctx context.Context, fn func(Reader) error) error
}

// LedgerTx is the transactional surface of the payout ledger
type LedgerTx interface {
	LockUser(ctx context.Context, id uuid.UUID) (model.User, error)
	LockPayout(ctx context.Context, id uuid.UUID) (model.Payout, error)
	OpenPayoutTotal(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	InsertPayout(ctx context.Context, p *model.Payout) error
	UpdatePayoutStatus(ctx context.Context, p *model.Payout) error
	AdjustBalance(ctx context.Context, userID uuid.UUID, delta decimal.Decimal) error
}

// LedgerStore runs ledger transactions and serves payout reads
type LedgerStore interface {
	RunLedgerTx(ctx context.Context, fn func(LedgerTx) error) error
	GetPayout(ctx context.Context, id uuid.UUID) (model.Payout, error)
	ListPayouts(ctx context.Context, scope model.Scope, status model.PayoutStatus) ([]model.Payout, error)
	Balances(ctx context.Context, userID uuid.UUID) (model.Balances, error)
}

// IngestTx records one event and credits its owner
type IngestTx interface {
	GetNumber(ctx context.Context, id uuid.UUID) (model.Number, error)
	InsertCallEvent(ctx context.Context, e *model.CallEvent) error
	InsertSMSEvent(ctx context.Context, e *model.SMSEvent) error
	AdjustBalance(ctx context.Context, userID uuid.UUID, delta decimal.Decimal) error
}

// IngestStore runs ingest transactions
type IngestStore interface {
	RunIngestTx(ctx context.Context, fn func(IngestTx) error) error
}

// NumberTx is the transactional surface of number request handling
type NumberTx interface {
	LockNumberRequest(ctx context.Context, id uuid.UUID) (model.NumberRequest, error)
	UpdateNumberRequestStatus(ctx context.Context, r *model.NumberRequest) error
	InsertNumber(ctx context.Context, n *model.Number) error
}

// NumberStore combines inventory and number request storage
type NumberStore interface {
	NumberRepo
	RunNumberTx(ctx context.Context, fn func(NumberTx) error) error
	InsertNumberRequest(ctx context.Context, r *model.NumberRequest) error
	GetNumberRequest(ctx context.Context, id uuid.UUID) (model.NumberRequest, error)
	ListNumberRequests(ctx context.Context, scope model.Scope, status model.RequestStatus) ([]model.NumberRequest, error)
}

// MessageTx locks and rewrites one inbox message
type MessageTx interface {
	LockMessage(ctx context.Context, id uuid.UUID) (model.UserMessage, error)
	UpdateMessage(ctx context.Context, m *model.UserMessage) error
}

// MessageStore defines inbox storage
type MessageStore interface {
	RunMessageTx(ctx context.Context, fn func(MessageTx) error) error
	GetNumber(ctx context.Context, id uuid.UUID) (model.Number, error)
	InsertMessage(ctx context.Context, m *model.UserMessage) error
	GetMessage(ctx context.Context, id uuid.UUID) (model.UserMessage, error)
	ListMessages(ctx context.Context, scope model.Scope, status model.MessageStatus) ([]model.UserMessage, error)
}
