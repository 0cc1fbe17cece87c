// Package service — authentication business logic.
//
// AuthService is the business logic layer for authentication. It sits between
// the HTTP handlers and the repository/auth utilities:
//
//	handlers (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                ↘ TokenService (JWT) / PasswordService (bcrypt)
//
// KEY RESPONSIBILITIES:
//   - Local registration and login (this file)
//   - OAuth flow resolution: Google sign-in, YouTube/Instagram connect (connect.go)
//   - Encapsulate all auth rules in one place, away from HTTP concerns
//   - Be easily testable with fake dependencies
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/sakif/influmatch/internal/apperror"
	"github.com/sakif/influmatch/internal/auth"
	"github.com/sakif/influmatch/internal/model"
	"github.com/sakif/influmatch/internal/repository"
)

// emailPattern is deliberately permissive — the real check is the
// verification a provider flow or a delivery failure gives us later.
var emailPattern = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,})+$`)

const minPasswordLen = 6

// AuthService handles the authentication business logic.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
// Call this in server.go when wiring the dependency graph.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult is returned by every operation that authenticates someone.
// It bundles the user record and the issued JWT together so the caller
// (the HTTP handler) can respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// RegisterInput carries a registration request.
// Role is optional; empty means influencer.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     model.Role
}

// Register creates a local account and signs the new user in.
//
// Validation happens here, not in the repository — the store only enforces
// uniqueness. An already-registered email fails with ErrDuplicate and leaves
// the existing account untouched.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	if in.Name == "" {
		return nil, apperror.ValidationFailed("name", "name is required")
	}
	if !emailPattern.MatchString(in.Email) {
		return nil, apperror.ValidationFailed("email", "please provide a valid email")
	}
	if len(in.Password) < minPasswordLen {
		return nil, apperror.ValidationFailed("password", "password must be at least 6 characters")
	}

	role := in.Role
	if role == "" {
		role = model.RoleInfluencer
	}
	// Admin accounts are created by operators, never through registration.
	if role != model.RoleInfluencer && role != model.RoleBusiness {
		return nil, apperror.ValidationFailed("role", "role must be either influencer or business")
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", "password must be 72 bytes or fewer")
	}

	user := &model.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// ErrDuplicate passes through so the handler can answer 400 with
		// the field that collided.
		return nil, fmt.Errorf("service/auth: registering %s: %w", in.Email, err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("role", string(user.Role)),
	)

	token, err := s.tokens.Generate(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// Login authenticates a local account.
//
// UNIFORM FAILURE:
// Unknown email, provider-only account (no password set), and wrong password
// all return the same ErrInvalidCreds. The response must not reveal which
// half of the credential pair was wrong, or whether the account exists.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.InvalidCredentials()
		}
		return nil, fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}

	if !user.HasPassword() {
		// Google-created account — password login is impossible, but saying
		// so would confirm the account exists.
		return nil, apperror.InvalidCredentials()
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, apperror.InvalidCredentials()
	}

	token, err := s.tokens.Generate(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))

	return &AuthResult{User: user, Token: token}, nil
}

// GetUserByID returns the user for the given internal ID.
//
// Used by the /api/me handler after the middleware validates the JWT: the
// token can outlive the account, so ErrNotFound here means the identity
// vanished between issuance and use.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, fmt.Errorf("service/auth: user ID must not be empty")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}

	return user, nil
}
