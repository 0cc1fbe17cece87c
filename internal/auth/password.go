// Package auth — password hashing for the local email/password flow.
//
// WHY BCRYPT?
// bcrypt is deliberately slow, and that slowness is the security property:
// it makes offline brute-forcing of a leaked credential store expensive.
// It also generates and embeds a per-password salt, so identical passwords
// hash differently and no separate salt column is needed.
//
// Never store passwords in plain text or behind fast hashes (MD5, SHA-256) —
// those fall to GPU rigs in minutes. At cost 12 a single bcrypt hash takes
// roughly a quarter second: unnoticeable at login, ruinous for an attacker.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor when none is configured. 12 is the
// recommended floor for newly stored credentials; tune it so hashing lands
// around 200-300ms on the production hardware.
const defaultCost = 12

// PasswordService hashes and verifies local-account passwords.
//
// Provider-created accounts (Google sign-up) never pass through here; they
// carry no password until one is set, and local login rejects them with the
// same InvalidCredentials as any other failure.
//
// The cost is injected so tests can run at bcrypt's minimum instead of
// paying ~250ms per hash.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the given cost.
// Pass 0 for the default. Costs below bcrypt's minimum are rejected by the
// bcrypt library itself at hashing time.
func NewPasswordService(cost int) *PasswordService {
	if cost <= 0 {
		cost = defaultCost
	}
	return &PasswordService{cost: cost}
}

// NewPasswordServiceForTest creates a PasswordService at bcrypt's minimum
// cost. Test-only; far too weak for stored credentials.
func NewPasswordServiceForTest() *PasswordService {
	return &PasswordService{cost: bcrypt.MinCost}
}

// Hash hashes a plaintext password.
//
// The output is self-contained ($2a$12$<salt><digest>) — it embeds the salt
// and cost, so it goes straight into users.password_hash and Verify can
// decode it without extra columns.
//
// Plaintexts over 72 bytes are rejected: bcrypt would silently truncate
// them, which means "mypassword<70 junk bytes>" and "mypassword<70 other
// junk bytes>" would collide.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		return "", fmt.Errorf("auth: password must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify reports whether plaintext matches the stored hash; nil means match.
//
// bcrypt.CompareHashAndPassword compares in constant time, so response
// timing reveals nothing about how close a guess was.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fmt.Errorf("auth: invalid password")
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
