package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/sakif/influmatch/internal/apperror"
	"github.com/sakif/influmatch/internal/auth"
	"github.com/sakif/influmatch/internal/model"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeUserRepo is an in-memory implementation of repository.UserRepository.
// Using a fake (not a mock framework) keeps tests dependency-free and easy
// to read — you can see exactly what the fake does.
type fakeUserRepo struct {
	users  map[string]*model.User // keyed by internal ID
	nextID int
	// set to a non-nil error to simulate a database failure
	createErr error
	updateErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:  make(map[string]*model.User),
		nextID: 1,
	}
}

func (f *fakeUserRepo) Create(ctx context.Context, user *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, u := range f.users {
		if u.Email == user.Email {
			return apperror.Duplicate("email", "an account with this email already exists")
		}
		if user.GoogleID != "" && u.GoogleID == user.GoogleID {
			return apperror.Duplicate("googleId", "this Google account is already linked to another user")
		}
	}
	user.ID = "user-" + string(rune('0'+f.nextID))
	f.nextID++
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	user.Version = 1
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeUserRepo) GetByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	for _, u := range f.users {
		if u.GoogleID != "" && u.GoogleID == googleID {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", googleID)
}

func (f *fakeUserRepo) Update(ctx context.Context, user *model.User) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	stored, ok := f.users[user.ID]
	if !ok {
		return apperror.NotFound("user", user.ID)
	}
	if stored.Version != user.Version {
		return apperror.Conflict("user", user.ID)
	}
	user.Version++
	user.UpdatedAt = time.Now()
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

// newTestAuthService returns an AuthService wired with fake dependencies.
// The TokenService uses a short secret, suitable for tests only.
func newTestAuthService(t *testing.T, repo *fakeUserRepo) *AuthService {
	t.Helper()

	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	// bcrypt minimum cost — makes tests fast
	ps := auth.NewPasswordServiceForTest()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewAuthService(repo, ts, ps, logger)
}

func registerTestUser(t *testing.T, svc *AuthService, email, password string, role model.Role) *AuthResult {
	t.Helper()
	result, err := svc.Register(context.Background(), RegisterInput{
		Name:     "Test User",
		Email:    email,
		Password: password,
		Role:     role,
	})
	if err != nil {
		t.Fatalf("Register() setup error: %v", err)
	}
	return result
}

// =========================================================================
// REGISTER TESTS
// =========================================================================

func TestRegister_NewUser(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	result, err := svc.Register(context.Background(), RegisterInput{
		Name:     "A",
		Email:    "a@x.com",
		Password: "secret1",
		Role:     model.RoleBusiness,
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if result.Token == "" {
		t.Fatal("Register() returned empty Token")
	}
	if result.User.Role != model.RoleBusiness {
		t.Errorf("Role = %q, want %q", result.User.Role, model.RoleBusiness)
	}
	if result.User.PasswordHash == "secret1" {
		t.Error("password stored in plaintext")
	}
	if result.User.PasswordHash == "" {
		t.Error("local registration must set a password hash")
	}
}

func TestRegister_DefaultRole(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	result := registerTestUser(t, svc, "default@x.com", "secret1", "")
	if result.User.Role != model.RoleInfluencer {
		t.Errorf("Role = %q, want default %q", result.User.Role, model.RoleInfluencer)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	first := registerTestUser(t, svc, "dup@x.com", "secret1", model.RoleInfluencer)

	_, err := svc.Register(context.Background(), RegisterInput{
		Name:     "Other",
		Email:    "dup@x.com",
		Password: "different",
	})
	if !errors.Is(err, apperror.ErrDuplicate) {
		t.Fatalf("second Register() error = %v, want ErrDuplicate", err)
	}

	// First user's record must be unmodified
	stored, err := repo.GetByID(context.Background(), first.User.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.Name != "Test User" {
		t.Errorf("first user's Name = %q, want unchanged", stored.Name)
	}
}

func TestRegister_Validation(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	tests := []struct {
		name  string
		input RegisterInput
		field string
	}{
		{"empty name", RegisterInput{Email: "a@x.com", Password: "secret1"}, "name"},
		{"bad email", RegisterInput{Name: "A", Email: "not-an-email", Password: "secret1"}, "email"},
		{"short password", RegisterInput{Name: "A", Email: "a@x.com", Password: "five5"}, "password"},
		{"admin role rejected", RegisterInput{Name: "A", Email: "a@x.com", Password: "secret1", Role: model.RoleAdmin}, "role"},
		{"unknown role", RegisterInput{Name: "A", Email: "a@x.com", Password: "secret1", Role: "superuser"}, "role"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.input)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Fatalf("Register() error = %v, want ErrValidation", err)
			}
			var appErr *apperror.AppError
			if errors.As(err, &appErr) && appErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", appErr.Field, tt.field)
			}
		})
	}
}

// =========================================================================
// LOGIN TESTS
// =========================================================================

func TestLogin_Success(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	registered := registerTestUser(t, svc, "login@x.com", "secret1", model.RoleBusiness)

	result, err := svc.Login(context.Background(), "login@x.com", "secret1")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if result.User.ID != registered.User.ID {
		t.Errorf("Login() user ID = %q, want %q", result.User.ID, registered.User.ID)
	}

	// The token must verify back to the same identity
	ts, _ := auth.NewTokenService("test-secret-at-least-16-chars!!")
	id, err := ts.Validate(result.Token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if id.UserID != registered.User.ID || id.Role != model.RoleBusiness {
		t.Errorf("token identity = %+v, want {%s business}", id, registered.User.ID)
	}
}

func TestLogin_UniformFailures(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	registerTestUser(t, svc, "known@x.com", "secret1", model.RoleInfluencer)

	// Provider-only account: reachable via Google, no password set
	providerOnly := &model.User{Name: "G", Email: "google-only@x.com", Role: model.RoleInfluencer, GoogleID: "g-1"}
	if err := repo.Create(context.Background(), providerOnly); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"wrong password", "known@x.com", "wrong-password"},
		{"unknown email", "nobody@x.com", "secret1"},
		{"provider-only account", "google-only@x.com", "secret1"},
	}

	// All three must fail with the SAME error kind — the response never
	// reveals which part of the credentials was wrong.
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), tt.email, tt.password)
			if !errors.Is(err, apperror.ErrInvalidCreds) {
				t.Fatalf("Login() error = %v, want ErrInvalidCreds", err)
			}
			if err.Error() != "invalid credentials" {
				t.Errorf("message = %q, want uniform %q", err.Error(), "invalid credentials")
			}
		})
	}
}

// =========================================================================
// GetUserByID TESTS
// =========================================================================

func TestGetUserByID_Found(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	registered := registerTestUser(t, svc, "findme@x.com", "secret1", "")

	user, err := svc.GetUserByID(context.Background(), registered.User.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if user.Email != "findme@x.com" {
		t.Errorf("user.Email = %q, want %q", user.Email, "findme@x.com")
	}
}

func TestGetUserByID_EmptyID(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	if _, err := svc.GetUserByID(context.Background(), ""); err == nil {
		t.Fatal("GetUserByID() should return error for empty ID")
	}
}

func TestGetUserByID_NotFound(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	_, err := svc.GetUserByID(context.Background(), "non-existent-id")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("GetUserByID() error = %v, want ErrNotFound", err)
	}
}
