package http

import (
	"context"
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prnadmin/server/internal/auth"
	"github.com/prnadmin/server/internal/http/handlers"
	"github.com/prnadmin/server/internal/middleware"
	"github.com/prnadmin/server/internal/model"
	"github.com/prnadmin/server/internal/query"
	"github.com/prnadmin/server/internal/repo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memUsers struct {
	users map[uuid.UUID]model.User
}

func (m *memUsers) GetUser(ctx context.Context, id uuid.UUID) (model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return model.User{}, repo.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repo.ErrNotFound
}

func (m *memUsers) ListUsers(ctx context.Context) ([]model.User, error) {
	out := make([]model.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *memUsers) InsertUser(ctx context.Context, u *model.User) error {
	m.users[u.ID] = *u
	return nil
}

func (m *memUsers) UpdatePayoutMethod(ctx context.Context, id uuid.UUID, method model.PayoutMethod, details map[string]string) error {
	u, ok := m.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.PayoutMethod = &method
	u.PayoutDetails = details
	m.users[id] = u
	return nil
}

type okPinger struct{}

func (okPinger) Ping(ctx context.Context) error { return nil }

func newFixture(t *testing.T) (nethttp.Handler, *auth.JWTService, *memUsers) {
	t.Helper()
	users := &memUsers{users: map[uuid.UUID]model.User{}}
	jwtService := auth.NewJWTService("router-test-secret", time.Hour)
	authService := auth.NewAuthService(jwtService, users)
	client := query.NewClient(query.RetryPolicy{MaxAttempts: 1}, 0)
	validate := validator.New()

	loginIP := middleware.NewRateLimiter(time.Minute, 2)
	t.Cleanup(loginIP.Stop)

	h := Handlers{
		Health:    handlers.NewHealthHandler(okPinger{}),
		Auth:      handlers.NewAuthHandler(authService, users, nil, validate),
		Reports:   handlers.NewReportHandler(nil, client),
		Numbers:   handlers.NewNumberHandler(nil, client, validate),
		Events:    handlers.NewEventHandler(nil, client, validate),
		Messages:  handlers.NewMessageHandler(nil, client, validate),
		Payouts:   handlers.NewPayoutHandler(nil, client, validate),
		Providers: handlers.NewProviderHandler(nil, validate),
	}
	return NewRouter(h, jwtService, users, loginIP), jwtService, users
}

func addUser(t *testing.T, users *memUsers, jwtService *auth.JWTService, role model.Role) (model.User, string) {
	t.Helper()
	u := model.User{ID: uuid.New(), Email: string(role) + "@example.com", Name: string(role), Role: role, Balance: decimal.Zero}
	users.users[u.ID] = u
	token, err := jwtService.SignAccessToken(u.ID, u.Role)
	require.NoError(t, err)
	return u, token
}

func call(router nethttp.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRouter_PublicEndpoints(t *testing.T) {
	router, _, _ := newFixture(t)

	assert.Equal(t, nethttp.StatusOK, call(router, nethttp.MethodGet, "/health", "", "").Code)
	assert.Equal(t, nethttp.StatusOK, call(router, nethttp.MethodGet, "/metrics", "", "").Code)
	assert.Equal(t, nethttp.StatusUnauthorized, call(router, nethttp.MethodGet, "/api/v1/dashboard", "", "").Code)
	assert.Equal(t, nethttp.StatusUnauthorized, call(router, nethttp.MethodGet, "/api/v1/me", "not-a-token", "").Code)
}

func TestRouter_CapabilityGates(t *testing.T) {
	router, jwtService, users := newFixture(t)
	_, adminToken := addUser(t, users, jwtService, model.RoleAdmin)
	_, supportToken := addUser(t, users, jwtService, model.RoleSupport)
	_, userToken := addUser(t, users, jwtService, model.RoleUser)
	_, testToken := addUser(t, users, jwtService, model.RoleTest)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
	}{
		{"support cannot create numbers", nethttp.MethodPost, "/api/v1/numbers", supportToken},
		{"user cannot ingest calls", nethttp.MethodPost, "/api/v1/events/calls", userToken},
		{"user cannot view providers", nethttp.MethodGet, "/api/v1/providers", userToken},
		{"support cannot edit providers", nethttp.MethodPost, "/api/v1/providers", supportToken},
		{"user cannot list users", nethttp.MethodGet, "/api/v1/users", userToken},
		{"support cannot create users", nethttp.MethodPost, "/api/v1/users", supportToken},
		{"test cannot advance payouts", nethttp.MethodPost, "/api/v1/payouts/" + uuid.NewString() + "/advance", testToken},
		{"user cannot advance requests", nethttp.MethodPost, "/api/v1/number-requests/" + uuid.NewString() + "/advance", userToken},
		{"admin cannot request payouts", nethttp.MethodPost, "/api/v1/payouts", adminToken},
		{"admin cannot request numbers", nethttp.MethodPost, "/api/v1/number-requests", adminToken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := call(router, tc.method, tc.path, tc.token, `{}`)
			assert.Equal(t, nethttp.StatusForbidden, rec.Code)
		})
	}
}

func TestRouter_MeUsesStoredRole(t *testing.T) {
	router, jwtService, users := newFixture(t)
	u, token := addUser(t, users, jwtService, model.RoleUser)

	rec := call(router, nethttp.MethodGet, "/api/v1/me", token, "")
	require.Equal(t, nethttp.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, u.Email, body["email"])
	assert.Equal(t, "user", body["role"])

	// demote after the token was issued
	u.Role = model.RoleSupport
	users.users[u.ID] = u
	rec = call(router, nethttp.MethodGet, "/api/v1/me", token, "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "support", body["role"])

	delete(users.users, u.ID)
	assert.Equal(t, nethttp.StatusUnauthorized, call(router, nethttp.MethodGet, "/api/v1/me", token, "").Code)
}

func TestRouter_LoginRateLimitedPerIP(t *testing.T) {
	router, _, users := newFixture(t)
	hash, err := auth.HashPassword("correct-horse")
	require.NoError(t, err)
	u := model.User{ID: uuid.New(), Email: "owner@example.com", Role: model.RoleUser, PasswordHash: hash, Balance: decimal.Zero}
	users.users[u.ID] = u

	ok := call(router, nethttp.MethodPost, "/api/v1/auth/login", "", `{"email":"owner@example.com","password":"correct-horse"}`)
	require.Equal(t, nethttp.StatusOK, ok.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(ok.Body.Bytes(), &body))
	assert.NotEmpty(t, body["access_token"])

	bad := call(router, nethttp.MethodPost, "/api/v1/auth/login", "", `{"email":"owner@example.com","password":"wrong-horse"}`)
	assert.Equal(t, nethttp.StatusUnauthorized, bad.Code)

	limited := call(router, nethttp.MethodPost, "/api/v1/auth/login", "", `{"email":"owner@example.com","password":"correct-horse"}`)
	assert.Equal(t, nethttp.StatusTooManyRequests, limited.Code)
}
