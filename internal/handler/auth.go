package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sakif/influmatch/internal/apperror"
	"github.com/sakif/influmatch/internal/auth"
	"github.com/sakif/influmatch/internal/model"
	"github.com/sakif/influmatch/internal/service"
)

// AuthHandler serves the local authentication endpoints.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister → create a local account, return its token
//   - HandleLogin    → verify email/password, return a token
//   - HandleMe       → return the currently authenticated user's profile
//
// All business rules live in service.AuthService; this layer only decodes
// requests and encodes responses.
type AuthHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler. All dependencies are injected here;
// the handler has no knowledge of how they're constructed.
func NewAuthHandler(authService *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   authService,
		logger: logger,
	}
}

// authResponse is the body returned by register, login, and the Google
// sign-in bridge: the public profile fields plus the bearer token. The
// password hash and provider credentials are never part of it.
type authResponse struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
	Token string     `json:"token"`
}

func newAuthResponse(result *service.AuthResult) authResponse {
	return authResponse{
		ID:    result.User.ID,
		Name:  result.User.Name,
		Email: result.User.Email,
		Role:  result.User.Role,
		Token: result.Token,
	}
}

// HandleRegister creates a local account.
//
// HTTP: POST /auth/register
// Body: {"name": ..., "email": ..., "password": ..., "role": "influencer"|"business"}
//
// Responds 201 with the new user's profile and token, 400 on validation
// failures or an already-registered email.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string     `json:"name"`
		Email    string     `json:"email"`
		Password string     `json:"password"`
		Role     model.Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("", "request body must be valid JSON"))
		return
	}

	result, err := h.auth.Register(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, newAuthResponse(result))
}

// HandleLogin authenticates a local account.
//
// HTTP: POST /auth/login
// Body: {"email": ..., "password": ...}
//
// Responds 200 with profile and token, 400 invalid_credentials otherwise —
// the same 400 whether the email is unknown or the password wrong.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("", "request body must be valid JSON"))
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newAuthResponse(result))
}

// HandleMe returns the currently authenticated user's profile.
//
// HTTP: GET /api/me
// Auth: Required (RequireAuth middleware sets the identity in context)
//
// The full profile includes the provider links (minus their credentials —
// those fields never marshal). Responds 404 if the account was deleted
// after the token was issued.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		// Should never happen on a RequireAuth-protected route, but be safe.
		writeError(w, apperror.Unauthenticated("valid authentication required"))
		return
	}

	user, err := h.auth.GetUserByID(r.Context(), identity.UserID)
	if err != nil {
		h.logger.Warn("HandleMe: lookup failed", slog.String("userID", identity.UserID))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
