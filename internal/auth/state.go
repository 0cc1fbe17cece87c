package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Flow names one of the three OAuth exchanges this server runs.
type Flow string

const (
	FlowGoogleSignIn     Flow = "google-signin"
	FlowYouTubeConnect   Flow = "youtube-connect"
	FlowInstagramConnect Flow = "instagram-connect"
)

// stateTTL bounds a single redirect round-trip: long enough for the user to
// read the provider's consent screen, short enough that an intercepted state
// token is useless soon after.
const stateTTL = 10 * time.Minute

const stateIssuer = "influmatch/oauth-state"

// FlowState is the per-attempt state carried across an OAuth redirect
// round-trip. It lives in a signed token in an HttpOnly cookie, so the
// server holds no memory between the initiate and callback legs and can be
// scaled horizontally without sticky sessions.
//
// Nonce is echoed as the provider's `state` query parameter; the callback
// verifies the echo against the cookie, which is the CSRF check. UserID is
// set only for connect flows — it pins the callback to the identity that
// initiated the flow, since the provider redirect itself carries no bearer
// token.
//
// This is NOT an access token. It has its own issuer, a 10-minute lifetime,
// and proves nothing beyond "this browser started this flow just now".
type FlowState struct {
	Flow   Flow
	Nonce  string
	UserID string
}

// FlowStateService signs and verifies FlowState tokens.
type FlowStateService struct {
	secret []byte
}

// NewFlowStateService creates a FlowStateService. The secret has the same
// strength requirement as the access-token secret (and may be the same value;
// the distinct issuer keeps the two token kinds from being confused).
func NewFlowStateService(secret string) (*FlowStateService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: state secret must be at least 16 characters")
	}
	return &FlowStateService{secret: []byte(secret)}, nil
}

type stateClaims struct {
	Flow  string `json:"flow"`
	Nonce string `json:"nonce"`
	jwt.RegisteredClaims
}

// Issue signs a FlowState for one redirect round-trip.
func (s *FlowStateService) Issue(fs FlowState) (string, error) {
	if fs.Nonce == "" {
		return "", errors.New("auth: flow state requires a nonce")
	}

	now := time.Now()
	c := stateClaims{
		Flow:  string(fs.Flow),
		Nonce: fs.Nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fs.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
			Issuer:    stateIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing flow state: %w", err)
	}
	return signed, nil
}

// Parse verifies a FlowState token and checks it belongs to the expected
// flow. A Google sign-in state presented on the YouTube callback is rejected
// even though both are signed with the same key.
func (s *FlowStateService) Parse(tokenStr string, flow Flow) (FlowState, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&stateClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(stateIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return FlowState{}, fmt.Errorf("auth: flow state expired")
		}
		return FlowState{}, fmt.Errorf("auth: invalid flow state: %w", err)
	}

	c, ok := token.Claims.(*stateClaims)
	if !ok || !token.Valid {
		return FlowState{}, fmt.Errorf("auth: invalid flow state claims")
	}
	if Flow(c.Flow) != flow {
		return FlowState{}, fmt.Errorf("auth: flow state is for %q, expected %q", c.Flow, flow)
	}

	return FlowState{
		Flow:   Flow(c.Flow),
		Nonce:  c.Nonce,
		UserID: c.Subject,
	}, nil
}
