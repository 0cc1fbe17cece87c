// Package auth provides JWT token issuance, password hashing, OAuth provider
// clients, and the HTTP middleware that ties them together.
//
// AUTHENTICATION FLOW OVERVIEW:
// 1. A user registers or logs in with email/password (POST /auth/register,
//    POST /auth/login), or signs in with Google (GET /auth/google →
//    GET /auth/google/callback). Either way the server issues a JWT.
// 2. The client presents that JWT as "Authorization: Bearer <token>" on every
//    authenticated request. Middleware validates it and puts the identity in
//    the request context.
// 3. Already-authenticated users can additionally connect YouTube or
//    Instagram accounts — those flows attach provider credentials to the
//    existing account and never issue a new JWT.
//
// WHY JWT?
// JWT (JSON Web Token) is stateless — the server doesn't need to store session
// data. All the information needed (userID, role, expiry) is inside the signed
// token. The signature ensures nobody can tamper with it without the secret key.
//
// There is deliberately no revocation list: a leaked token remains valid until
// its natural expiry. That is the accepted trade-off of a stateless design.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/influmatch/internal/model"
)

// accessTokenTTL is how long an issued platform token stays valid.
// Clients hold the token in local storage and re-authenticate when it
// expires; there is no refresh-token mechanism.
const accessTokenTTL = 30 * 24 * time.Hour

const issuer = "influmatch"

// Identity is what a validated token proves: which user, with which role.
type Identity struct {
	UserID string
	Role   model.Role
}

// TokenService handles JWT creation and validation.
//
// It holds the HMAC secret key used to sign and verify tokens.
// The same secret must be used for both operations — keep it safe, rotate it
// periodically in production.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// claims is the JWT payload. It embeds jwt.RegisteredClaims which includes
// standard fields like Issuer, Subject, ExpiresAt, IssuedAt.
//
// "sub" (Subject) stores the internal user ID — the standard claim for
// identifying who the token belongs to. The role rides along as a private
// claim so authorization checks need no DB lookup.
type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Generate creates and signs a new JWT access token for the given identity.
//
// Token lifetime: 30 days.
//
// IssuedAt is embedded, so issuing twice for the same user produces two
// distinct tokens. That is intentional — it keeps rotation possible without
// any server-side bookkeeping.
//
// Signing algorithm: HS256 (HMAC-SHA256)
// - Symmetric: same key for signing and verifying
// - Fast and simple — good for single-server deployments
// - Switch to RS256 if multiple services ever need to verify independently
func (s *TokenService) Generate(userID string, role model.Role) (string, error) {
	return s.GenerateWithDuration(userID, role, accessTokenTTL)
}

// GenerateWithDuration creates a token with a custom expiry duration.
// Used in tests to mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(userID string, role model.Role, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	// jwt.NewWithClaims creates an unsigned token with the given algorithm.
	// SignedString(key) signs it and returns the complete JWT string.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a JWT string.
// Returns the Identity (userID + role) the token encodes if it is valid.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired (ExpiresAt is in the future)
//   - Issuer matches "influmatch" (prevents tokens from other apps)
//   - Algorithm is HS256 (prevents algorithm confusion attacks)
//
// Validation failure is terminal: callers reject the request, never attempt
// repair.
func (s *TokenService) Validate(tokenStr string) (Identity, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			// Reject tokens that aren't signed with HMAC
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		// Translate jwt library errors into cleaner messages
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, fmt.Errorf("auth: token expired")
		}
		return Identity{}, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return Identity{}, fmt.Errorf("auth: invalid token claims")
	}

	if c.Subject == "" {
		return Identity{}, fmt.Errorf("auth: token has no subject")
	}

	return Identity{
		UserID: c.Subject,
		Role:   model.Role(c.Role),
	}, nil
}
