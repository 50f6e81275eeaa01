package service

import (
	"context"
	"strings"
	"time"

	"agora/internal/auth"
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/repository"
	"agora/internal/validation"

	"go.uber.org/zap"
)

// RegisterInput is the sign-up payload.
type RegisterInput struct {
	Username string `json:"username" validate:"required,username"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,password,max=128"`
}

// LoginInput is the sign-in payload.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResult is returned by register, login and refresh.
type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// AuthService registers users and manages their access tokens.
type AuthService struct {
	users      repository.UserRepository
	tokens     *auth.TokenManager
	revoker    *auth.Revoker
	bcryptCost int
}

// NewAuthService returns a new AuthService.
func NewAuthService(users repository.UserRepository, tokens *auth.TokenManager, revoker *auth.Revoker, bcryptCost int) *AuthService {
	return &AuthService{users: users, tokens: tokens, revoker: revoker, bcryptCost: bcryptCost}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	existing, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewValidationError("Email already registered")
	}
	existing, err = s.users.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewValidationError("Username already taken")
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username: in.Username,
		Email:    in.Email,
		Password: hash,
		Role:     models.RoleUser,
		Preferences: models.UserPreferences{
			EmailNotifications: true,
			Theme:              "system",
			Language:           "en",
		},
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	middleware.L(ctx).Info("user registered", zap.Uint("new_user_id", user.ID))
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if user == nil || !auth.CheckPassword(user.Password, in.Password) {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}

	now := time.Now()
	if err := s.users.Updates(ctx, user.ID, map[string]any{"last_login": now}); err != nil {
		return nil, err
	}
	user.LastLogin = &now
	return s.issue(user)
}

// Authenticate verifies a bearer token and loads its user. Bad, expired or
// revoked tokens are UNAUTHORIZED; a token for a deleted user is NOT_FOUND.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, *auth.Claims, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, nil, err
	}

	revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		middleware.L(ctx).Warn("token revocation check failed", zap.Error(err))
	}
	if revoked {
		return nil, nil, models.NewUnauthorizedError("Token has been revoked")
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, nil, err
	}
	return user, claims, nil
}

// Logout revokes the token until it would have expired.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	if err := s.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Refresh issues a fresh token and revokes the one presented.
func (s *AuthService) Refresh(ctx context.Context, user *models.User, claims *auth.Claims) (*AuthResult, error) {
	res, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	if err := s.Logout(ctx, claims); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, _, err := s.tokens.Issue(user)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &AuthResult{Token: token, User: user}, nil
}
