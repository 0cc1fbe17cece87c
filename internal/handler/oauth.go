package handler

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/xid"

	"github.com/sakif/influmatch/internal/apperror"
	"github.com/sakif/influmatch/internal/auth"
	"github.com/sakif/influmatch/internal/service"
)

// stateCookie carries the signed flow state across the provider round-trip.
// It is scoped to the whole API because Google's callback path and the
// connect callbacks live under different prefixes.
const stateCookie = "oauth_state"

// exchangeTimeout bounds the code-for-token exchange and the follow-up
// profile fetch. Providers occasionally hang; the user is sitting on a
// blank redirect page while we wait.
const exchangeTimeout = 10 * time.Second

// OAuthHandler serves the three provider flows.
//
// FLOW SHAPES:
//   - Google sign-in: unauthenticated. Resolves or creates an account and
//     hands the SPA a token via redirect query params.
//   - YouTube connect: authenticated, popup window. The callback renders a
//     tiny page that postMessages the opener and closes itself.
//   - Instagram connect: authenticated, top-level navigation. The callback
//     redirects back to the settings page with a success or error flag.
//
// Every initiate sets a short-lived signed state cookie and sends its nonce
// as the provider `state` param; every callback requires both halves to
// match before touching the code.
type OAuthHandler struct {
	google    *auth.GoogleProvider
	youtube   *auth.YouTubeProvider
	instagram *auth.InstagramProvider
	states    *auth.FlowStateService
	auth      *service.AuthService

	frontendURL   string
	secureCookies bool
	logger        *slog.Logger
}

// NewOAuthHandler creates an OAuthHandler. secureCookies should be true
// whenever the service is reached over HTTPS.
func NewOAuthHandler(
	google *auth.GoogleProvider,
	youtube *auth.YouTubeProvider,
	instagram *auth.InstagramProvider,
	states *auth.FlowStateService,
	authService *service.AuthService,
	frontendURL string,
	secureCookies bool,
	logger *slog.Logger,
) *OAuthHandler {
	return &OAuthHandler{
		google:        google,
		youtube:       youtube,
		instagram:     instagram,
		states:        states,
		auth:          authService,
		frontendURL:   frontendURL,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

// beginFlow issues a fresh nonce, stores the signed flow state in the
// cookie, and returns the nonce to use as the provider `state` param.
func (h *OAuthHandler) beginFlow(w http.ResponseWriter, flow auth.Flow, userID string) (string, error) {
	nonce := xid.New().String()
	signed, err := h.states.Issue(auth.FlowState{
		Flow:   flow,
		Nonce:  nonce,
		UserID: userID,
	})
	if err != nil {
		return "", err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    signed,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.secureCookies,
		// Lax so the cookie still rides along on the provider's top-level
		// GET redirect back to us. Strict would drop it.
		SameSite: http.SameSiteLaxMode,
	})
	return nonce, nil
}

// finishFlow validates the callback against the stored state and clears the
// cookie. It returns the parsed flow state, or an error when the cookie is
// missing, expired, for a different flow, or its nonce doesn't match the
// provider's echoed `state` param.
func (h *OAuthHandler) finishFlow(w http.ResponseWriter, r *http.Request, flow auth.Flow) (auth.FlowState, error) {
	// Clear the cookie regardless of outcome; state is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	cookie, err := r.Cookie(stateCookie)
	if err != nil {
		return auth.FlowState{}, fmt.Errorf("missing state cookie: %w", err)
	}
	fs, err := h.states.Parse(cookie.Value, flow)
	if err != nil {
		return auth.FlowState{}, err
	}
	if echoed := r.URL.Query().Get("state"); echoed == "" || echoed != fs.Nonce {
		return auth.FlowState{}, fmt.Errorf("state mismatch for flow %s", flow)
	}
	return fs, nil
}

// --- Google sign-in ---

// HandleGoogleSignIn starts the Google sign-in flow.
//
// HTTP: GET /auth/google
func (h *OAuthHandler) HandleGoogleSignIn(w http.ResponseWriter, r *http.Request) {
	nonce, err := h.beginFlow(w, auth.FlowGoogleSignIn, "")
	if err != nil {
		h.logger.Error("google sign-in: issuing state failed", slog.String("error", err.Error()))
		http.Redirect(w, r, h.signInFailureURL("google_signin_failed"), http.StatusFound)
		return
	}
	http.Redirect(w, r, h.google.AuthURL(nonce), http.StatusFound)
}

// HandleGoogleCallback completes the Google sign-in flow.
//
// HTTP: GET /auth/google/callback
//
// On success the browser is redirected to the SPA's social-auth page with
// the token and public profile fields as query params, which the page
// stores client-side. The params are visible in browser history and any
// intermediate logs, a known trade-off of this transport.
func (h *OAuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if _, err := h.finishFlow(w, r, auth.FlowGoogleSignIn); err != nil {
		h.logger.Warn("google sign-in: state validation failed", slog.String("error", err.Error()))
		http.Redirect(w, r, h.signInFailureURL("google_signin_failed"), http.StatusFound)
		return
	}

	// The user clicked "cancel" on the consent screen, or Google refused.
	if denied := r.URL.Query().Get("error"); denied != "" {
		h.logger.Info("google sign-in: provider denial", slog.String("error", denied))
		http.Redirect(w, r, h.signInFailureURL("google_signin_failed"), http.StatusFound)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), exchangeTimeout)
	defer cancel()

	profile, err := h.google.Exchange(ctx, r.URL.Query().Get("code"))
	if err != nil {
		h.logger.Error("google sign-in: exchange failed", slog.String("error", err.Error()))
		http.Redirect(w, r, h.signInFailureURL("google_signin_failed"), http.StatusFound)
		return
	}

	result, err := h.auth.ResolveGoogleSignIn(ctx, profile)
	if err != nil {
		h.logger.Error("google sign-in: resolution failed",
			slog.String("googleID", profile.ID),
			slog.String("error", err.Error()))
		http.Redirect(w, r, h.signInFailureURL("google_signin_failed"), http.StatusFound)
		return
	}

	params := url.Values{}
	params.Set("token", result.Token)
	params.Set("id", result.User.ID)
	params.Set("name", result.User.Name)
	params.Set("email", result.User.Email)
	params.Set("role", string(result.User.Role))
	http.Redirect(w, r, h.frontendURL+"/social-auth-callback?"+params.Encode(), http.StatusFound)
}

func (h *OAuthHandler) signInFailureURL(code string) string {
	return h.frontendURL + "/social-auth-callback?error=" + url.QueryEscape(code)
}

// --- YouTube connect ---

// HandleYouTubeConnect starts the YouTube connect flow for the
// authenticated user. The SPA opens this route in a popup window.
//
// HTTP: GET /api/connect/youtube
// Auth: Required
func (h *OAuthHandler) HandleYouTubeConnect(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthenticated("valid authentication required"))
		return
	}

	nonce, err := h.beginFlow(w, auth.FlowYouTubeConnect, identity.UserID)
	if err != nil {
		h.logger.Error("youtube connect: issuing state failed", slog.String("error", err.Error()))
		http.Redirect(w, r, h.settingsURL("error", "youtube_connect_failed"), http.StatusFound)
		return
	}
	http.Redirect(w, r, h.youtube.AuthURL(nonce), http.StatusFound)
}

// youtubeClosePage notifies the SPA that opened the popup and closes it.
// The target origin is pinned to the frontend so the message can't leak to
// whatever else might have opened us.
var youtubeClosePage = template.Must(template.New("youtube-close").Parse(`<html>
  <body>
    <script>
      window.opener.postMessage({ type: 'youtube-connected' }, '{{.}}');
      window.close();
    </script>
  </body>
</html>
`))

// HandleYouTubeCallback completes the YouTube connect flow.
//
// HTTP: GET /api/connect/youtube/callback
//
// Success renders the popup-close page instead of redirecting; failure
// redirects the popup itself to the settings page with an error flag, which
// at least leaves the user somewhere sensible if the popup was actually a
// full tab.
func (h *OAuthHandler) HandleYouTubeCallback(w http.ResponseWriter, r *http.Request) {
	fs, err := h.finishFlow(w, r, auth.FlowYouTubeConnect)
	if err != nil {
		h.logger.Warn("youtube connect: state validation failed", slog.String("error", err.Error()))
		http.Redirect(w, r, h.settingsURL("error", "youtube_connect_failed"), http.StatusFound)
		return
	}

	if denied := r.URL.Query().Get("error"); denied != "" {
		h.logger.Info("youtube connect: provider denial", slog.String("error", denied))
		http.Redirect(w, r, h.settingsURL("error", "youtube_connect_failed"), http.StatusFound)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), exchangeTimeout)
	defer cancel()

	grant, err := h.youtube.Exchange(ctx, r.URL.Query().Get("code"))
	if err != nil {
		h.logger.Error("youtube connect: exchange failed", slog.String("error", err.Error()))
		http.Redirect(w, r, h.settingsURL("error", "youtube_connect_failed"), http.StatusFound)
		return
	}

	if _, err := h.auth.ConnectYouTube(ctx, fs.UserID, grant); err != nil {
		h.logger.Error("youtube connect: saving link failed",
			slog.String("userID", fs.UserID),
			slog.String("error", err.Error()))
		http.Redirect(w, r, h.settingsURL("error", "youtube_connect_failed"), http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := youtubeClosePage.Execute(w, h.frontendURL); err != nil {
		h.logger.Error("youtube connect: rendering close page failed", slog.String("error", err.Error()))
	}
}

// --- Instagram connect ---

// HandleInstagramConnect starts the Instagram connect flow for the
// authenticated user.
//
// HTTP: GET /api/connect/instagram
// Auth: Required
func (h *OAuthHandler) HandleInstagramConnect(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthenticated("valid authentication required"))
		return
	}

	nonce, err := h.beginFlow(w, auth.FlowInstagramConnect, identity.UserID)
	if err != nil {
		h.logger.Error("instagram connect: issuing state failed", slog.String("error", err.Error()))
		http.Redirect(w, r, h.settingsURL("error", "instagram_connect_failed"), http.StatusFound)
		return
	}
	http.Redirect(w, r, h.instagram.AuthURL(nonce), http.StatusFound)
}

// HandleInstagramCallback completes the Instagram connect flow.
//
// HTTP: GET /api/connect/instagram/callback
func (h *OAuthHandler) HandleInstagramCallback(w http.ResponseWriter, r *http.Request) {
	fs, err := h.finishFlow(w, r, auth.FlowInstagramConnect)
	if err != nil {
		h.logger.Warn("instagram connect: state validation failed", slog.String("error", err.Error()))
		http.Redirect(w, r, h.settingsURL("error", "instagram_connect_failed"), http.StatusFound)
		return
	}

	if denied := r.URL.Query().Get("error"); denied != "" {
		h.logger.Info("instagram connect: provider denial", slog.String("error", denied))
		http.Redirect(w, r, h.settingsURL("error", "instagram_connect_failed"), http.StatusFound)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), exchangeTimeout)
	defer cancel()

	grant, err := h.instagram.Exchange(ctx, r.URL.Query().Get("code"))
	if err != nil {
		h.logger.Error("instagram connect: exchange failed", slog.String("error", err.Error()))
		http.Redirect(w, r, h.settingsURL("error", "instagram_connect_failed"), http.StatusFound)
		return
	}

	if _, err := h.auth.ConnectInstagram(ctx, fs.UserID, grant); err != nil {
		h.logger.Error("instagram connect: saving link failed",
			slog.String("userID", fs.UserID),
			slog.String("error", err.Error()))
		http.Redirect(w, r, h.settingsURL("error", "instagram_connect_failed"), http.StatusFound)
		return
	}

	http.Redirect(w, r, h.settingsURL("success", "instagram_connected"), http.StatusFound)
}

func (h *OAuthHandler) settingsURL(key, value string) string {
	return h.frontendURL + "/profile/settings?" + key + "=" + url.QueryEscape(value)
}

// --- Disconnect ---

// HandleDisconnect removes a provider link from the authenticated user.
//
// HTTP: DELETE /api/connect/{provider}
// Auth: Required
//
// Responds 200 with the updated user, 404 when nothing was connected.
func (h *OAuthHandler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthenticated("valid authentication required"))
		return
	}

	provider := chi.URLParam(r, "provider")
	user, err := h.auth.DisconnectProvider(r.Context(), identity.UserID, provider)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
