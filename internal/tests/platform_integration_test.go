package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prnadmin/server/internal/model"
	"github.com/prnadmin/server/internal/payout"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	// DATABASE_URL is never defaulted; integration tests skip without it
	if os.Getenv("JWT_SECRET") == "" {
		os.Setenv("JWT_SECRET", "test-jwt-secret-at-least-32-characters-long")
	}
	os.Exit(m.Run())
}

// errorResponse matches error JSON body
type errorResponse struct {
	Error string `json:"error"`
}

func readBody(resp *http.Response) string {
	b, _ := io.ReadAll(resp.Body)
	return string(b)
}

// call sends a JSON request and decodes a JSON response into out when given
func call(t *testing.T, s *testServer, method, path, token string, body interface{}, out interface{}) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.BaseURL()+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.Server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw := readBody(resp)
	if out != nil && resp.StatusCode < 300 && raw != "" {
		require.NoError(t, json.Unmarshal([]byte(raw), out), "body: %s", raw)
	}
	return resp.StatusCode
}

func login(t *testing.T, s *testServer, email, password string) string {
	t.Helper()
	var res struct {
		AccessToken string `json:"access_token"`
	}
	status := call(t, s, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": email, "password": password}, &res)
	require.Equal(t, http.StatusOK, status, "login %s", email)
	require.NotEmpty(t, res.AccessToken)
	return res.AccessToken
}

func createAccount(t *testing.T, s *testServer, email string, role model.Role) (*model.User, string) {
	t.Helper()
	u, err := s.Auth.CreateUser(context.Background(), email, email, "integration-pass", role)
	require.NoError(t, err)
	return u, login(t, s, email, "integration-pass")
}

type numberBody struct {
	ID string `json:"id"`
}

type payoutBody struct {
	ID          string          `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status"`
	ProcessedAt *time.Time      `json:"processed_at"`
}

type meBody struct {
	Balance decimal.Decimal `json:"balance"`
}

func TestPlatformIntegration(t *testing.T) {
	s := newTestServer(t)

	_, adminToken := createAccount(t, s, "admin@example.com", model.RoleAdmin)
	owner, ownerToken := createAccount(t, s, "owner@example.com", model.RoleUser)
	_, otherToken := createAccount(t, s, "other@example.com", model.RoleUser)
	at := time.Now().UTC().Add(-time.Hour)

	var voice, sms numberBody

	t.Run("A_Health", func(t *testing.T) {
		var body map[string]string
		assert.Equal(t, http.StatusOK, call(t, s, http.MethodGet, "/health", "", nil, &body))
		assert.Equal(t, "ok", body["status"])
	})

	t.Run("B_AdminCreatesNumbers", func(t *testing.T) {
		status := call(t, s, http.MethodPost, "/api/v1/numbers", adminToken, map[string]interface{}{
			"value": "+449090000001", "country_code": "GB", "channel_type": "voice",
			"service_category": "entertainment", "rate": "1.50", "owner_id": owner.ID,
		}, &voice)
		require.Equal(t, http.StatusCreated, status)
		status = call(t, s, http.MethodPost, "/api/v1/numbers", adminToken, map[string]interface{}{
			"value": "+4911880001", "country_code": "DE", "channel_type": "sms", "rate": "0.25", "owner_id": owner.ID,
		}, &sms)
		require.Equal(t, http.StatusCreated, status)

		status = call(t, s, http.MethodPost, "/api/v1/numbers", adminToken, map[string]interface{}{
			"value": "+449090000001", "country_code": "GB", "channel_type": "voice", "rate": "1",
		}, nil)
		assert.Equal(t, http.StatusConflict, status)
	})

	t.Run("C_EventsCreditOwner", func(t *testing.T) {
		status := call(t, s, http.MethodPost, "/api/v1/events/calls", adminToken, map[string]interface{}{
			"number_id": voice.ID, "duration_seconds": 61, "occurred_at": at,
		}, nil)
		require.Equal(t, http.StatusCreated, status)
		status = call(t, s, http.MethodPost, "/api/v1/events/sms", adminToken, map[string]interface{}{
			"number_id": sms.ID, "text": "VOTE 1", "occurred_at": at,
		}, nil)
		require.Equal(t, http.StatusCreated, status)

		var me meBody
		require.Equal(t, http.StatusOK, call(t, s, http.MethodGet, "/api/v1/me", ownerToken, nil, &me))
		// 61s bills two minutes at 1.50, plus one SMS at 0.25
		assert.True(t, me.Balance.Equal(decimal.RequireFromString("3.25")), "balance %s", me.Balance)
	})

	t.Run("D_ReportsAreScoped", func(t *testing.T) {
		var dash struct {
			Summary struct {
				Total decimal.Decimal `json:"total_revenue"`
				Calls int             `json:"calls"`
				SMS   int             `json:"sms"`
			} `json:"summary"`
			ActiveNumbers int `json:"active_numbers"`
		}
		require.Equal(t, http.StatusOK, call(t, s, http.MethodGet, "/api/v1/dashboard", ownerToken, nil, &dash))
		assert.True(t, dash.Summary.Total.Equal(decimal.RequireFromString("3.25")))
		assert.Equal(t, 1, dash.Summary.Calls)
		assert.Equal(t, 1, dash.Summary.SMS)
		assert.Equal(t, 2, dash.ActiveNumbers)

		require.Equal(t, http.StatusOK, call(t, s, http.MethodGet, "/api/v1/dashboard", otherToken, nil, &dash))
		assert.True(t, dash.Summary.Total.IsZero())
		assert.Equal(t, 0, dash.ActiveNumbers)

		var page struct {
			Items []struct {
				Kind string `json:"kind"`
			} `json:"items"`
			Total int `json:"total"`
		}
		require.Equal(t, http.StatusOK, call(t, s, http.MethodGet, "/api/v1/activity?kind=call", adminToken, nil, &page))
		assert.Equal(t, 1, page.Total)
		assert.Equal(t, "call", page.Items[0].Kind)
	})

	var first payoutBody

	t.Run("E_PayoutLifecycle", func(t *testing.T) {
		var e errorResponse
		status := call(t, s, http.MethodPost, "/api/v1/payouts", ownerToken, map[string]string{"amount": "1"}, &e)
		assert.Equal(t, http.StatusBadRequest, status, "no payout method configured")

		require.Equal(t, http.StatusOK, call(t, s, http.MethodPut, "/api/v1/me/payout-method", ownerToken,
			map[string]interface{}{"method": "paypal", "details": map[string]string{"email": "owner@example.com"}}, nil))

		assert.Equal(t, http.StatusUnprocessableEntity,
			call(t, s, http.MethodPost, "/api/v1/payouts", ownerToken, map[string]string{"amount": "5"}, nil))

		require.Equal(t, http.StatusCreated,
			call(t, s, http.MethodPost, "/api/v1/payouts", ownerToken, map[string]string{"amount": "2"}, &first))
		assert.Equal(t, "pending", first.Status)

		// 3.25 less the open 2.00 leaves 1.25 available
		assert.Equal(t, http.StatusUnprocessableEntity,
			call(t, s, http.MethodPost, "/api/v1/payouts", ownerToken, map[string]string{"amount": "1.5"}, nil))

		assert.Equal(t, http.StatusNotFound, call(t, s, http.MethodGet, "/api/v1/payouts/"+first.ID, otherToken, nil, nil))
		assert.Equal(t, http.StatusForbidden, call(t, s, http.MethodPost, "/api/v1/payouts/"+first.ID+"/advance", ownerToken,
			map[string]string{"status": "processing"}, nil))

		var p payoutBody
		require.Equal(t, http.StatusOK, call(t, s, http.MethodPost, "/api/v1/payouts/"+first.ID+"/advance", adminToken,
			map[string]string{"status": "processing"}, &p))
		assert.Nil(t, p.ProcessedAt)
		require.Equal(t, http.StatusOK, call(t, s, http.MethodPost, "/api/v1/payouts/"+first.ID+"/advance", adminToken,
			map[string]string{"status": "completed"}, &p))
		assert.NotNil(t, p.ProcessedAt)

		assert.Equal(t, http.StatusConflict, call(t, s, http.MethodPost, "/api/v1/payouts/"+first.ID+"/advance", adminToken,
			map[string]string{"status": "failed"}, nil))

		var me meBody
		require.Equal(t, http.StatusOK, call(t, s, http.MethodGet, "/api/v1/me", ownerToken, nil, &me))
		assert.True(t, me.Balance.Equal(decimal.RequireFromString("1.25")), "balance %s", me.Balance)
	})

	t.Run("F_Reconcile", func(t *testing.T) {
		var b struct {
			Stored     decimal.Decimal `json:"stored_balance"`
			Expected   decimal.Decimal `json:"expected_balance"`
			Consistent bool            `json:"consistent"`
		}
		require.Equal(t, http.StatusOK, call(t, s, http.MethodGet, "/api/v1/users/"+owner.ID.String()+"/reconcile", adminToken, nil, &b))
		assert.True(t, b.Consistent)
		assert.True(t, b.Stored.Equal(b.Expected))
	})

	t.Run("G_NumberWithActivityCannotBeDeleted", func(t *testing.T) {
		assert.Equal(t, http.StatusConflict, call(t, s, http.MethodDelete, "/api/v1/numbers/"+voice.ID, adminToken, nil, nil))

		var spare numberBody
		require.Equal(t, http.StatusCreated, call(t, s, http.MethodPost, "/api/v1/numbers", adminToken, map[string]interface{}{
			"value": "+449090000099", "country_code": "GB", "channel_type": "voice", "rate": "1",
		}, &spare))
		assert.Equal(t, http.StatusNoContent, call(t, s, http.MethodDelete, "/api/v1/numbers/"+spare.ID, adminToken, nil, nil))
	})
}

func TestLedgerConcurrentRequests(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	owner, err := s.Auth.CreateUser(ctx, "racer@example.com", "Racer", "integration-pass", model.RoleUser)
	require.NoError(t, err)
	_, err = s.Auth.SetPayoutMethod(ctx, owner.ID, model.PayoutCrypto, map[string]string{"address": "bc1qtest"})
	require.NoError(t, err)
	_, adminToken := createAccount(t, s, "admin@example.com", model.RoleAdmin)

	var number numberBody
	require.Equal(t, http.StatusCreated, call(t, s, http.MethodPost, "/api/v1/numbers", adminToken, map[string]interface{}{
		"value": "+449090000777", "country_code": "GB", "channel_type": "voice", "rate": "1.50", "owner_id": owner.ID,
	}, &number))
	// 400s bills seven minutes: 10.50
	require.Equal(t, http.StatusCreated, call(t, s, http.MethodPost, "/api/v1/events/calls", adminToken, map[string]interface{}{
		"number_id": number.ID, "duration_seconds": 400,
	}, nil))

	const attempts = 10
	amount := decimal.NewFromInt(2)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted []uuid.UUID
		rejected int
		other    []error
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := s.Ledger.Request(ctx, owner.ID, amount, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted = append(accepted, p.ID)
			case errors.Is(err, payout.ErrInsufficientBalance):
				rejected++
			default:
				other = append(other, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, other)
	assert.Len(t, accepted, 5)
	assert.Equal(t, attempts-5, rejected)

	open, err := s.Ledger.List(ctx, model.Scope{UserID: owner.ID}, model.PayoutPending)
	require.NoError(t, err)
	total := decimal.Zero
	for _, p := range open {
		total = total.Add(p.Amount)
	}
	assert.True(t, total.LessThanOrEqual(decimal.RequireFromString("10.50")))

	for _, id := range accepted {
		_, err := s.Ledger.Advance(ctx, id, model.PayoutProcessing)
		require.NoError(t, err)
		_, err = s.Ledger.Advance(ctx, id, model.PayoutCompleted)
		require.NoError(t, err)
	}
	b, err := s.Ledger.Reconcile(ctx, owner.ID)
	require.NoError(t, err)
	assert.True(t, b.Consistent())
	assert.True(t, b.Stored.Equal(decimal.RequireFromString("0.5")), "stored %s", b.Stored)
}
