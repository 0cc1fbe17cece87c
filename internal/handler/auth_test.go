package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/influmatch/internal/auth"
	"github.com/sakif/influmatch/internal/handler"
	"github.com/sakif/influmatch/internal/model"
	sqliteRepo "github.com/sakif/influmatch/internal/repository/sqlite"
	"github.com/sakif/influmatch/internal/service"
)

const testSecret = "test-secret-at-least-16-chars"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestAuthStack builds an AuthHandler backed by an in-memory database
// and fast test-grade password hashing.
func newTestAuthStack(t *testing.T) (*handler.AuthHandler, *service.AuthService, *auth.TokenService) {
	t.Helper()

	db, err := sqliteRepo.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService(testSecret)
	require.NoError(t, err)

	svc := service.NewAuthService(db, tokens, auth.NewPasswordServiceForTest(), testLogger())
	return handler.NewAuthHandler(svc, testLogger()), svc, tokens
}

func TestAuthHandler_HandleRegister(t *testing.T) {
	t.Run("creates account and returns token", func(t *testing.T) {
		h, _, tokens := newTestAuthStack(t)

		body := `{"name":"Amina","email":"amina@example.com","password":"secret1","role":"business"}`
		req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		h.HandleRegister(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var res struct {
			ID    string `json:"id"`
			Name  string `json:"name"`
			Email string `json:"email"`
			Role  string `json:"role"`
			Token string `json:"token"`
		}
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		assert.NotEmpty(t, res.ID)
		assert.Equal(t, "Amina", res.Name)
		assert.Equal(t, "amina@example.com", res.Email)
		assert.Equal(t, "business", res.Role)

		identity, err := tokens.Validate(res.Token)
		require.NoError(t, err)
		assert.Equal(t, res.ID, identity.UserID)
		assert.Equal(t, model.RoleBusiness, identity.Role)
	})

	t.Run("never returns the password hash", func(t *testing.T) {
		h, _, _ := newTestAuthStack(t)

		body := `{"name":"Amina","email":"amina@example.com","password":"secret1"}`
		req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString(body))
		rr := httptest.NewRecorder()

		h.HandleRegister(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.NotContains(t, rr.Body.String(), "password")
		assert.NotContains(t, rr.Body.String(), "$2a$")
	})

	t.Run("duplicate email", func(t *testing.T) {
		h, _, _ := newTestAuthStack(t)

		body := `{"name":"Amina","email":"amina@example.com","password":"secret1"}`
		first := httptest.NewRecorder()
		h.HandleRegister(first, httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString(body)))
		require.Equal(t, http.StatusCreated, first.Code)

		second := httptest.NewRecorder()
		h.HandleRegister(second, httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString(body)))

		assert.Equal(t, http.StatusBadRequest, second.Code)
		assert.Contains(t, second.Body.String(), "duplicate")
	})

	t.Run("validation failures", func(t *testing.T) {
		h, _, _ := newTestAuthStack(t)

		cases := map[string]string{
			"malformed JSON": `{"name":`,
			"missing name":   `{"email":"a@b.com","password":"secret1"}`,
			"bad email":      `{"name":"A","email":"not-an-email","password":"secret1"}`,
			"short password": `{"name":"A","email":"a@b.com","password":"abc"}`,
			"admin role":     `{"name":"A","email":"a@b.com","password":"secret1","role":"admin"}`,
		}
		for name, body := range cases {
			t.Run(name, func(t *testing.T) {
				rr := httptest.NewRecorder()
				h.HandleRegister(rr, httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString(body)))
				assert.Equal(t, http.StatusBadRequest, rr.Code)
			})
		}
	})
}

func TestAuthHandler_HandleLogin(t *testing.T) {
	register := func(t *testing.T, h *handler.AuthHandler) {
		t.Helper()
		body := `{"name":"Amina","email":"amina@example.com","password":"secret1"}`
		rr := httptest.NewRecorder()
		h.HandleRegister(rr, httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString(body)))
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	t.Run("valid credentials", func(t *testing.T) {
		h, _, tokens := newTestAuthStack(t)
		register(t, h)

		body := `{"email":"amina@example.com","password":"secret1"}`
		rr := httptest.NewRecorder()
		h.HandleLogin(rr, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(body)))

		assert.Equal(t, http.StatusOK, rr.Code)

		var res struct {
			Token string `json:"token"`
		}
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		_, err := tokens.Validate(res.Token)
		assert.NoError(t, err)
	})

	t.Run("wrong password and unknown email give the same response", func(t *testing.T) {
		h, _, _ := newTestAuthStack(t)
		register(t, h)

		wrongPassword := httptest.NewRecorder()
		h.HandleLogin(wrongPassword, httptest.NewRequest(http.MethodPost, "/auth/login",
			bytes.NewBufferString(`{"email":"amina@example.com","password":"wrong99"}`)))

		unknownEmail := httptest.NewRecorder()
		h.HandleLogin(unknownEmail, httptest.NewRequest(http.MethodPost, "/auth/login",
			bytes.NewBufferString(`{"email":"nobody@example.com","password":"secret1"}`)))

		assert.Equal(t, http.StatusBadRequest, wrongPassword.Code)
		assert.Equal(t, http.StatusBadRequest, unknownEmail.Code)
		assert.JSONEq(t, wrongPassword.Body.String(), unknownEmail.Body.String())
	})
}

func TestAuthHandler_HandleMe(t *testing.T) {
	t.Run("returns the authenticated user", func(t *testing.T) {
		h, svc, tokens := newTestAuthStack(t)

		result, err := svc.Register(context.Background(), service.RegisterInput{
			Name:     "Amina",
			Email:    "amina@example.com",
			Password: "secret1",
		})
		require.NoError(t, err)

		protected := auth.RequireAuth(tokens)(http.HandlerFunc(h.HandleMe))

		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer "+result.Token)
		rr := httptest.NewRecorder()
		protected.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var user model.User
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&user))
		assert.Equal(t, result.User.ID, user.ID)
		assert.Equal(t, "amina@example.com", user.Email)
	})

	t.Run("rejects requests without a token", func(t *testing.T) {
		h, _, tokens := newTestAuthStack(t)

		protected := auth.RequireAuth(tokens)(http.HandlerFunc(h.HandleMe))

		rr := httptest.NewRecorder()
		protected.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/me", nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("accepts the token query param fallback", func(t *testing.T) {
		h, svc, tokens := newTestAuthStack(t)

		result, err := svc.Register(context.Background(), service.RegisterInput{
			Name:     "Amina",
			Email:    "amina@example.com",
			Password: "secret1",
		})
		require.NoError(t, err)

		protected := auth.RequireAuth(tokens)(http.HandlerFunc(h.HandleMe))

		rr := httptest.NewRecorder()
		protected.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/me?token="+result.Token, nil))

		assert.Equal(t, http.StatusOK, rr.Code)
	})
}
