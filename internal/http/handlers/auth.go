package handlers

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prnadmin/server/internal/middleware"
	"github.com/prnadmin/server/internal/model"
	"go.uber.org/zap"
)

// AuthService is the account surface used by AuthHandler
type AuthService interface {
	Login(ctx context.Context, email, password string) (*model.User, string, error)
	CreateUser(ctx context.Context, email, name, password string, role model.Role) (*model.User, error)
	SetPayoutMethod(ctx context.Context, userID uuid.UUID, method model.PayoutMethod, details map[string]string) (*model.User, error)
}

// UserLister lists accounts for administrators
type UserLister interface {
	ListUsers(ctx context.Context) ([]model.User, error)
}

// AuthHandler handles login and account endpoints
type AuthHandler struct {
	authService  AuthService
	users        UserLister
	loginLimiter *middleware.RateLimiter
	validate     *validator.Validate
}

// NewAuthHandler creates a new auth handler. loginLimiter caps attempts per email.
func NewAuthHandler(authService AuthService, users UserLister, loginLimiter *middleware.RateLimiter, validate *validator.Validate) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		users:        users,
		loginLimiter: loginLimiter,
		validate:     validate,
	}
}

// loginRequest is the request body for POST /auth/login
type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// loginResponse is the JSON response for login
type loginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        userResponse `json:"user"`
}

// HandleLogin handles POST /auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.loginLimiter != nil && !h.loginLimiter.Allow(middleware.GetLoginKey(req.Email)) {
		respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	user, token, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	zap.L().Info("User logged in", zap.String("user_id", user.ID.String()))
	respondJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        toUserResponse(*user),
	})
}

// HandleMe handles GET /me (protected). Returns the authenticated user.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok || user == nil {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(*user))
}

type payoutMethodRequest struct {
	Method  model.PayoutMethod `json:"method" validate:"required,oneof=crypto bank paypal"`
	Details map[string]string  `json:"details"`
}

// HandleSetPayoutMethod handles PUT /me/payout-method
func (h *AuthHandler) HandleSetPayoutMethod(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req payoutMethodRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := h.authService.SetPayoutMethod(r.Context(), p.UserID, req.Method, req.Details)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(*user))
}

// HandleListUsers handles GET /users
func (h *AuthHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	respondJSON(w, http.StatusOK, out)
}

type createUserRequest struct {
	Email    string     `json:"email" validate:"required,email"`
	Name     string     `json:"name" validate:"required,max=200"`
	Password string     `json:"password" validate:"required,min=8"`
	Role     model.Role `json:"role" validate:"required,oneof=admin support user test"`
}

// HandleCreateUser handles POST /users
func (h *AuthHandler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := h.authService.CreateUser(r.Context(), req.Email, req.Name, req.Password, req.Role)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toUserResponse(*user))
}
