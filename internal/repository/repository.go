package repository

import (
	"context"

	"github.com/sakif/influmatch/internal/model"
)

// UserRepository is the credential store contract.
//
// Lookup methods return apperror.ErrNotFound when no user matches.
// Create fails with apperror.ErrDuplicate when the email is already taken.
// Update is an atomic compare-and-write on (id, version): it fails with
// apperror.ErrConflict when a concurrent write got there first, and with
// apperror.ErrDuplicate when the new email or googleId collides with another
// user. Silent overwrites never happen.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
}
