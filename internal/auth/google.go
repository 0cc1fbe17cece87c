package auth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// GoogleProfile is the portion of the Google identity we care about,
// extracted from the verified ID token.
type GoogleProfile struct {
	ID            string // Google's subject ID — stable, never changes
	Name          string // Display name, e.g. "Ada Lovelace"
	Email         string // Primary email
	EmailVerified bool
	Picture       string // Profile picture URL
}

// GoogleProvider wraps golang.org/x/oauth2 for the Google Authorization Code
// flow used for sign-in.
//
// OAUTH 2.0 AUTHORIZATION CODE FLOW:
// 1. Your server redirects the user to Google's authorization endpoint,
//    with your ClientID and the requested scopes.
// 2. The user approves (or denies) the authorization request on Google.
// 3. Google redirects back to your CallbackURL with a short-lived "code".
// 4. Your server exchanges the code for tokens (server-to-server call).
// 5. Your server verifies the ID token and reads the profile claims from it.
//
// WHY VERIFY THE ID TOKEN INSTEAD OF CALLING THE USERINFO API?
// Google returns an OpenID Connect ID token alongside the access token. It
// already contains the subject, name, and email — signed by Google. Verifying
// its signature (via the go-oidc verifier, which fetches Google's published
// keys) authenticates the profile without a second network round-trip.
type GoogleProvider struct {
	config   *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// NewGoogleProvider creates a GoogleProvider with the given credentials.
//
// You get ClientID and ClientSecret by creating OAuth credentials in the
// Google Cloud console. callbackURL must match one of the configured
// "Authorized redirect URIs" exactly.
// Example: "http://localhost:8080/auth/google/callback"
//
// This performs OIDC discovery against accounts.google.com, so it needs
// network access at startup.
func NewGoogleProvider(ctx context.Context, clientID, clientSecret, callbackURL string) (*GoogleProvider, error) {
	provider, err := oidc.NewProvider(ctx, "https://accounts.google.com")
	if err != nil {
		return nil, fmt.Errorf("auth: discovering Google OIDC endpoints: %w", err)
	}

	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
			Endpoint:     provider.Endpoint(),
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// AuthURL returns the URL to redirect the user to for authorization.
//
// STATE PARAMETER:
// The state is a random nonce we also embed in a signed cookie before
// redirecting. When Google calls back, we verify the returned state matches
// the cookie. This prevents CSRF attacks where an attacker tricks your
// browser into completing an OAuth flow for their account.
func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange completes the sign-in flow: trades the authorization code for a
// verified Google profile. This is the core of the callback handler.
//
// Steps:
//  1. Exchange the code for tokens (server-to-server)
//  2. Verify the ID token's signature against Google's published keys
//  3. Read the profile claims out of the verified token
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*GoogleProfile, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, fmt.Errorf("auth: Google token response missing id_token")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("auth: verifying Google ID token: %w", err)
	}

	var c struct {
		Sub           string `json:"sub"`
		Name          string `json:"name"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Picture       string `json:"picture"`
	}
	if err := idToken.Claims(&c); err != nil {
		return nil, fmt.Errorf("auth: reading Google ID token claims: %w", err)
	}

	if c.Sub == "" {
		return nil, fmt.Errorf("auth: Google ID token has no subject")
	}
	if c.Email == "" {
		// Email is how sign-in merges with local accounts — without it the
		// resolution logic cannot run.
		return nil, fmt.Errorf("auth: Google profile has no email")
	}

	return &GoogleProfile{
		ID:            c.Sub,
		Name:          c.Name,
		Email:         c.Email,
		EmailVerified: c.EmailVerified,
		Picture:       c.Picture,
	}, nil
}
