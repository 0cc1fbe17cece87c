package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// YouTubeGrant is the result of a completed YouTube connect exchange:
// the credentials to store on the user's link plus a profile snapshot.
//
// RefreshToken may be empty. Google only reliably issues one when the
// consent screen is forced (see AuthURL) and even then repeat grants can
// omit it — which is why the connect logic preserves a previously stored
// refresh token instead of overwriting it with nothing.
type YouTubeGrant struct {
	AccessToken  string
	RefreshToken string
	Profile      YouTubeProfileData
}

// YouTubeProfileData mirrors the Google userinfo fields captured at connect
// time. ID is the Google account ID; resolving the actual YouTube channel ID
// is a Data API call made later with the stored access token
// (GET youtube/v3/channels?part=id&mine=true).
type YouTubeProfileData struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// YouTubeProvider wraps golang.org/x/oauth2 for the connect-only YouTube
// flow. Unlike Google sign-in, this flow never authenticates anyone — it
// runs for an already-authenticated user and its output is a stored
// credential, not an identity.
type YouTubeProvider struct {
	config      *oauth2.Config
	userinfoURL string
}

// NewYouTubeProvider creates a YouTubeProvider. The Google Cloud OAuth app
// is the same one used for sign-in; only the callback URL and scopes differ.
//
// Scopes we request:
//   - youtube.readonly / yt-analytics.readonly — read channel data and stats
//   - userinfo.profile / userinfo.email — the profile snapshot stored on the link
func NewYouTubeProvider(clientID, clientSecret, callbackURL string) *YouTubeProvider {
	return &YouTubeProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/youtube.readonly",
				"https://www.googleapis.com/auth/yt-analytics.readonly",
				"https://www.googleapis.com/auth/userinfo.profile",
				"https://www.googleapis.com/auth/userinfo.email",
			},
			Endpoint: endpoints.Google,
		},
		userinfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
	}
}

// AuthURL returns the provider authorization URL for the given state.
//
// OFFLINE ACCESS + FORCED CONSENT:
// AccessTypeOffline asks Google for a refresh token so the platform can read
// YouTube data long after the user walks away. Google only issues the
// refresh token on the first consent unless the consent screen is forced —
// so we force it ("prompt=consent") to get a refresh token on reconnects too.
func (p *YouTubeProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange trades the authorization code for the tokens and profile snapshot
// that make up a YouTube link.
func (p *YouTubeProvider) Exchange(ctx context.Context, code string) (*YouTubeGrant, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// oauth2.Config.Client returns an *http.Client that automatically adds
	// the "Authorization: Bearer <token>" header to every request.
	client := p.config.Client(ctx, token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userinfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building userinfo request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: calling Google userinfo API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: Google userinfo API returned status %d", resp.StatusCode)
	}

	var profile YouTubeProfileData
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("auth: decoding Google userinfo response: %w", err)
	}
	if profile.ID == "" {
		return nil, fmt.Errorf("auth: Google returned an invalid profile (empty id)")
	}

	return &YouTubeGrant{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Profile:      profile,
	}, nil
}
