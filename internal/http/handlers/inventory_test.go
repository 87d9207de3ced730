package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prnadmin/server/internal/access"
	"github.com/prnadmin/server/internal/model"
	"github.com/prnadmin/server/internal/numbers"
	"github.com/prnadmin/server/internal/repo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockNumberService struct {
	mock.Mock
}

func (m *MockNumberService) Create(ctx context.Context, n model.Number) (*model.Number, error) {
	args := m.Called(ctx, n)
	out, _ := args.Get(0).(*model.Number)
	return out, args.Error(1)
}

func (m *MockNumberService) Get(ctx context.Context, id uuid.UUID) (*model.Number, error) {
	args := m.Called(ctx, id)
	out, _ := args.Get(0).(*model.Number)
	return out, args.Error(1)
}

func (m *MockNumberService) List(ctx context.Context, scope model.Scope) ([]model.Number, error) {
	args := m.Called(ctx, scope)
	out, _ := args.Get(0).([]model.Number)
	return out, args.Error(1)
}

func (m *MockNumberService) Update(ctx context.Context, id uuid.UUID, u numbers.Update) (*model.Number, error) {
	args := m.Called(ctx, id, u)
	out, _ := args.Get(0).(*model.Number)
	return out, args.Error(1)
}

func (m *MockNumberService) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockNumberService) CreateRequest(ctx context.Context, r model.NumberRequest) (*model.NumberRequest, error) {
	args := m.Called(ctx, r)
	out, _ := args.Get(0).(*model.NumberRequest)
	return out, args.Error(1)
}

func (m *MockNumberService) ListRequests(ctx context.Context, scope model.Scope, status model.RequestStatus) ([]model.NumberRequest, error) {
	args := m.Called(ctx, scope, status)
	out, _ := args.Get(0).([]model.NumberRequest)
	return out, args.Error(1)
}

func (m *MockNumberService) AdvanceRequest(ctx context.Context, id uuid.UUID, next model.RequestStatus, f *numbers.Fulfillment) (*model.NumberRequest, []model.Number, error) {
	args := m.Called(ctx, id, next, f)
	out, _ := args.Get(0).(*model.NumberRequest)
	created, _ := args.Get(1).([]model.Number)
	return out, created, args.Error(2)
}

type MockInbox struct {
	mock.Mock
}

func (m *MockInbox) Receive(ctx context.Context, numberID uuid.UUID, sender, body string, at time.Time) (*model.UserMessage, error) {
	args := m.Called(ctx, numberID, sender, body, at)
	out, _ := args.Get(0).(*model.UserMessage)
	return out, args.Error(1)
}

func (m *MockInbox) List(ctx context.Context, p access.Principal, status model.MessageStatus) ([]model.UserMessage, error) {
	args := m.Called(ctx, p, status)
	out, _ := args.Get(0).([]model.UserMessage)
	return out, args.Error(1)
}

func (m *MockInbox) MarkRead(ctx context.Context, p access.Principal, id uuid.UUID) (*model.UserMessage, error) {
	args := m.Called(ctx, p, id)
	out, _ := args.Get(0).(*model.UserMessage)
	return out, args.Error(1)
}

func (m *MockInbox) Respond(ctx context.Context, p access.Principal, id uuid.UUID, reply string) (*model.UserMessage, error) {
	args := m.Called(ctx, p, id, reply)
	out, _ := args.Get(0).(*model.UserMessage)
	return out, args.Error(1)
}

func (m *MockInbox) Archive(ctx context.Context, p access.Principal, id uuid.UUID) (*model.UserMessage, error) {
	args := m.Called(ctx, p, id)
	out, _ := args.Get(0).(*model.UserMessage)
	return out, args.Error(1)
}

func (m *MockInbox) Reset(ctx context.Context, p access.Principal, id uuid.UUID) (*model.UserMessage, error) {
	args := m.Called(ctx, p, id)
	out, _ := args.Get(0).(*model.UserMessage)
	return out, args.Error(1)
}

func TestNumberCreate_DefaultsActive(t *testing.T) {
	svc := new(MockNumberService)
	h := NewNumberHandler(svc, newClient(0), validator.New())
	owner := uuid.New()

	svc.On("Create", mock.Anything, mock.MatchedBy(func(n model.Number) bool {
		return n.Active && n.OwnerID != nil && *n.OwnerID == owner && n.Rate.Equal(decimal.RequireFromString("1.5"))
	})).Return(&model.Number{ID: uuid.New(), Value: "+449090000001", CountryCode: "GB", ChannelType: model.ChannelVoice,
		Rate: decimal.RequireFromString("1.5"), Active: true, OwnerID: &owner}, nil).Once()

	rec := httptest.NewRecorder()
	h.HandleCreate(rec, httptest.NewRequest(http.MethodPost, "/api/v1/numbers", jsonBody(t, map[string]interface{}{
		"value": "+449090000001", "country_code": "GB", "channel_type": "voice", "rate": "1.5", "owner_id": owner,
	})))
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, owner.String(), body["owner_id"])
	assert.Equal(t, true, body["active"])

	rec = httptest.NewRecorder()
	h.HandleCreate(rec, httptest.NewRequest(http.MethodPost, "/api/v1/numbers", jsonBody(t, map[string]interface{}{
		"value": "+1", "country_code": "GBR", "channel_type": "voice",
	})))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertExpectations(t)
}

func TestNumberGet_OwnerOnly(t *testing.T) {
	svc := new(MockNumberService)
	h := NewNumberHandler(svc, newClient(0), validator.New())
	id := uuid.New()
	owner := uuid.New()
	svc.On("Get", mock.Anything, id).Return(&model.Number{ID: id, OwnerID: &owner}, nil)

	rec := httptest.NewRecorder()
	h.HandleGet(rec, withID(as(httptest.NewRequest(http.MethodGet, "/", nil), uuid.New(), model.RoleTest), id))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.HandleGet(rec, withID(as(httptest.NewRequest(http.MethodGet, "/", nil), owner, model.RoleTest), id))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNumberDelete_WithActivity(t *testing.T) {
	svc := new(MockNumberService)
	h := NewNumberHandler(svc, newClient(0), validator.New())
	id := uuid.New()
	svc.On("Delete", mock.Anything, id).Return(fmt.Errorf("delete number: %w", repo.ErrHasActivity)).Once()

	rec := httptest.NewRecorder()
	h.HandleDelete(rec, withID(httptest.NewRequest(http.MethodDelete, "/", nil), id))
	assert.Equal(t, http.StatusConflict, rec.Code)
	svc.AssertExpectations(t)
}

func TestAdvanceRequest_FulfillmentOnlyWhenFulfilled(t *testing.T) {
	svc := new(MockNumberService)
	h := NewNumberHandler(svc, newClient(0), validator.New())
	id := uuid.New()
	owner := uuid.New()

	svc.On("AdvanceRequest", mock.Anything, id, model.RequestApproved, (*numbers.Fulfillment)(nil)).
		Return(&model.NumberRequest{ID: id, UserID: owner, Status: model.RequestApproved}, nil, nil).Once()
	svc.On("AdvanceRequest", mock.Anything, id, model.RequestFulfilled, mock.MatchedBy(func(f *numbers.Fulfillment) bool {
		return f != nil && len(f.Values) == 2 && f.Rate.Equal(decimal.NewFromInt(2))
	})).Return(&model.NumberRequest{ID: id, UserID: owner, Status: model.RequestFulfilled},
		[]model.Number{{ID: uuid.New(), Value: "+1001"}, {ID: uuid.New(), Value: "+1002"}}, nil).Once()

	rec := httptest.NewRecorder()
	h.HandleAdvanceRequest(rec, withID(httptest.NewRequest(http.MethodPost, "/",
		bytes.NewBufferString(`{"status":"approved","numbers":["+9"]}`)), id))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec)["created_numbers"])

	rec = httptest.NewRecorder()
	h.HandleAdvanceRequest(rec, withID(httptest.NewRequest(http.MethodPost, "/",
		bytes.NewBufferString(`{"status":"fulfilled","numbers":["+1001","+1002"],"rate":"2"}`)), id))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Len(t, body["created_numbers"], 2)
	assert.Equal(t, "fulfilled", body["request"].(map[string]interface{})["status"])

	rec = httptest.NewRecorder()
	h.HandleAdvanceRequest(rec, withID(httptest.NewRequest(http.MethodPost, "/",
		bytes.NewBufferString(`{"status":"pending"}`)), id))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertExpectations(t)
}

func TestMessages(t *testing.T) {
	inbox := new(MockInbox)
	h := NewMessageHandler(inbox, newClient(0), validator.New())
	id := uuid.New()
	owner := uuid.New()
	reply := "thanks"

	inbox.On("Respond", mock.Anything, access.NewPrincipal(owner, model.RoleUser), id, "thanks").
		Return(&model.UserMessage{ID: id, Status: model.MessageResponded, IsRead: true, Reply: &reply}, nil).Once()
	inbox.On("Reset", mock.Anything, access.NewPrincipal(owner, model.RoleUser), id).
		Return(nil, access.ErrForbidden).Once()

	rec := httptest.NewRecorder()
	h.HandleRespond(rec, withID(as(httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"reply":"thanks"}`)), owner, model.RoleUser), id))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "responded", body["status"])
	assert.Equal(t, "thanks", body["reply"])

	rec = httptest.NewRecorder()
	h.HandleRespond(rec, withID(as(httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"reply":""}`)), owner, model.RoleUser), id))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.HandleReset(rec, withID(as(httptest.NewRequest(http.MethodPost, "/", nil), owner, model.RoleUser), id))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	h.HandleList(rec, as(httptest.NewRequest(http.MethodGet, "/api/v1/messages?status=deleted", nil), owner, model.RoleUser))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	inbox.AssertExpectations(t)
}
