package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/prnadmin/server/internal/model"
	"github.com/prnadmin/server/internal/repo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned for an unknown email or wrong password
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidAccount is returned when account fields fail validation
	ErrInvalidAccount = errors.New("invalid account")
)

const minPasswordLength = 8

// dummyHash keeps the login path the same length for unknown emails
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)

// HashPassword hashes a plaintext password with bcrypt
func HashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", fmt.Errorf("%w: password must be at least %d characters", ErrInvalidAccount, minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// AuthService orchestrates authentication and account operations
type AuthService struct {
	jwtService *JWTService
	userRepo   repo.UserRepo
}

// NewAuthService creates a new auth service
func NewAuthService(jwtService *JWTService, userRepo repo.UserRepo) *AuthService {
	return &AuthService{
		jwtService: jwtService,
		userRepo:   userRepo,
	}
}

// Login checks the password and issues an access token
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	user, err := s.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		zap.L().Info("Login rejected", zap.String("user_id", user.ID.String()))
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.jwtService.SignAccessToken(user.ID, user.Role)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	return &user, token, nil
}

// CreateUser validates and stores a new account with a hashed password
func (s *AuthService) CreateUser(ctx context.Context, email, name, password string, role model.Role) (*model.User, error) {
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: email %q", ErrInvalidAccount, email)
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: role %q", ErrInvalidAccount, role)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := model.User{
		Email:        email,
		Name:         strings.TrimSpace(name),
		Role:         role,
		PasswordHash: hash,
	}
	if err := s.userRepo.InsertUser(ctx, &user); err != nil {
		return nil, err
	}
	zap.L().Info("User created", zap.String("user_id", user.ID.String()), zap.String("role", string(role)))
	return &user, nil
}

// SetPayoutMethod updates how the user is paid and returns the fresh record
func (s *AuthService) SetPayoutMethod(ctx context.Context, userID uuid.UUID, method model.PayoutMethod, details map[string]string) (*model.User, error) {
	if !method.Valid() {
		return nil, fmt.Errorf("%w: payout method %q", ErrInvalidAccount, method)
	}
	if err := s.userRepo.UpdatePayoutMethod(ctx, userID, method, details); err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
