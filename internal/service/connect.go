package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/influmatch/internal/apperror"
	"github.com/sakif/influmatch/internal/auth"
	"github.com/sakif/influmatch/internal/model"
)

// ResolveGoogleSignIn turns a verified Google profile into an authenticated
// platform identity. This is the resolution step of the sign-in flow; the
// handler has already exchanged the code and verified the ID token.
//
// Resolution order (first match wins):
//  1. A user already carries this googleId → that's the user.
//  2. A user exists with the same email → attach the googleId to them.
//     This is how someone who registered locally and later clicks
//     "Sign in with Google" ends up with ONE account, not two.
//  3. Nobody matches → create a new account (influencer, no password).
//     The account is reachable through its Google identity, so the
//     missing password doesn't strand it.
//
// Exactly one token is issued per resolution, whichever branch ran.
func (s *AuthService) ResolveGoogleSignIn(ctx context.Context, profile *auth.GoogleProfile) (*AuthResult, error) {
	if profile == nil {
		return nil, fmt.Errorf("service/auth: Google profile must not be nil")
	}

	user, err := s.users.GetByGoogleID(ctx, profile.ID)
	switch {
	case err == nil:
		// Known Google identity — nothing to mutate.

	case errors.Is(err, apperror.ErrNotFound):
		user, err = s.attachOrCreateGoogleUser(ctx, profile)
		if err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("service/auth: looking up googleId %s: %w", profile.ID, err)
	}

	token, err := s.tokens.Generate(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user authenticated via Google",
		slog.String("userID", user.ID),
		slog.String("googleID", profile.ID),
	)

	return &AuthResult{User: user, Token: token}, nil
}

func (s *AuthService) attachOrCreateGoogleUser(ctx context.Context, profile *auth.GoogleProfile) (*model.User, error) {
	user, err := s.users.GetByEmail(ctx, profile.Email)
	if err == nil {
		// Existing local account with the same email — attach the Google
		// identity. A concurrent attach of the same googleId surfaces as
		// ErrDuplicate from the store, never a silent overwrite.
		user.GoogleID = profile.ID
		if err := s.users.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("service/auth: attaching googleId to user %s: %w", user.ID, err)
		}
		return user, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: looking up email %s: %w", profile.Email, err)
	}

	name := profile.Name
	if name == "" {
		name = profile.Email
	}
	user = &model.User{
		Name:     name,
		Email:    profile.Email,
		Role:     model.RoleInfluencer,
		GoogleID: profile.ID,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating user for googleId %s: %w", profile.ID, err)
	}
	return user, nil
}

// ConnectYouTube attaches (or refreshes) a YouTube link on an existing,
// already-authenticated user. It never creates an account; userID comes from
// the platform identity that initiated the flow.
//
// REFRESH TOKEN MERGE POLICY:
// Google frequently omits the refresh token on repeat grants. A missing
// refresh token on reconnect must not erase the one we already stored —
// keep the existing value unless the new grant carries a non-empty one.
// The access token is always replaced with the latest value.
func (s *AuthService) ConnectYouTube(ctx context.Context, userID string, grant *auth.YouTubeGrant) (*model.User, error) {
	if userID == "" {
		return nil, apperror.Unauthenticated("connecting YouTube requires a signed-in user")
	}
	if grant == nil {
		return nil, fmt.Errorf("service/auth: YouTube grant must not be nil")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s for YouTube connect: %w", userID, err)
	}

	refreshToken := grant.RefreshToken
	if refreshToken == "" && user.YouTube != nil {
		refreshToken = user.YouTube.RefreshToken
	}

	user.YouTube = &model.YouTubeLink{
		ChannelID:    grant.Profile.ID,
		AccessToken:  grant.AccessToken,
		RefreshToken: refreshToken,
		Profile: model.YouTubeProfile{
			GoogleProfileID: grant.Profile.ID,
			DisplayName:     grant.Profile.Name,
			Email:           grant.Profile.Email,
		},
		Verified: true,
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: saving YouTube link for user %s: %w", userID, err)
	}

	s.logger.Info("YouTube account connected",
		slog.String("userID", user.ID),
		slog.String("channelID", grant.Profile.ID),
		slog.Bool("refreshTokenIssued", grant.RefreshToken != ""),
	)

	return user, nil
}

// ConnectInstagram attaches (or refreshes) an Instagram link on an existing,
// already-authenticated user. Same shape as ConnectYouTube minus the refresh
// token — Instagram's flow doesn't issue one.
func (s *AuthService) ConnectInstagram(ctx context.Context, userID string, grant *auth.InstagramGrant) (*model.User, error) {
	if userID == "" {
		return nil, apperror.Unauthenticated("connecting Instagram requires a signed-in user")
	}
	if grant == nil {
		return nil, fmt.Errorf("service/auth: Instagram grant must not be nil")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s for Instagram connect: %w", userID, err)
	}

	user.Instagram = &model.InstagramLink{
		UserID:      grant.Profile.ID,
		Username:    grant.Profile.Username,
		AccessToken: grant.AccessToken,
		Profile: model.InstagramProfile{
			DisplayName: grant.Profile.Username,
			Bio:         grant.Profile.Biography,
			Website:     grant.Profile.Website,
		},
		Verified: true,
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: saving Instagram link for user %s: %w", userID, err)
	}

	s.logger.Info("Instagram account connected",
		slog.String("userID", user.ID),
		slog.String("username", grant.Profile.Username),
	)

	return user, nil
}

// DisconnectProvider removes a provider link, discarding its stored
// credentials. Disconnecting a provider that was never connected is a 404 —
// there is nothing to remove.
func (s *AuthService) DisconnectProvider(ctx context.Context, userID, provider string) (*model.User, error) {
	if userID == "" {
		return nil, apperror.Unauthenticated("disconnecting requires a signed-in user")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s for disconnect: %w", userID, err)
	}

	switch provider {
	case "youtube":
		if user.YouTube == nil {
			return nil, apperror.NotFound("connection", provider)
		}
		user.YouTube = nil
	case "instagram":
		if user.Instagram == nil {
			return nil, apperror.NotFound("connection", provider)
		}
		user.Instagram = nil
	default:
		return nil, apperror.ValidationFailed("provider", "provider must be youtube or instagram")
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: removing %s link for user %s: %w", provider, userID, err)
	}

	s.logger.Info("provider disconnected",
		slog.String("userID", user.ID),
		slog.String("provider", provider),
	)

	return user, nil
}
