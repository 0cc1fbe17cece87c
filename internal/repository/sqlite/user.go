package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/influmatch/internal/apperror"
	"github.com/sakif/influmatch/internal/model"
	"github.com/sakif/influmatch/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const (
	providerYouTube   = "youtube"
	providerInstagram = "instagram"
)

// Create inserts a new user. The caller provides the validated fields; this
// method generates the ID and timestamps and reports email collisions as
// apperror.ErrDuplicate.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	now := time.Now()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Version = 1

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, role, google_id, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		nullable(user.GoogleID),
		user.Version,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "users.email") {
			return apperror.Duplicate("email", "an account with this email already exists")
		}
		if isUniqueViolation(err, "users.google_id") {
			return apperror.Duplicate("googleId", "this Google account is already linked to another user")
		}
		return fmt.Errorf("sqlite: inserting user (email=%s): %w", user.Email, err)
	}

	return nil
}

// GetByID retrieves a user (including provider links) by internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx, `WHERE id = ?`, id)
}

// GetByEmail retrieves a user by email.
func (db *DB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUser(ctx, `WHERE email = ?`, email)
}

// GetByGoogleID retrieves a user by attached Google identity.
func (db *DB) GetByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	return db.getUser(ctx, `WHERE google_id = ?`, googleID)
}

func (db *DB) getUser(ctx context.Context, where string, arg any) (*model.User, error) {
	var (
		u        model.User
		role     string
		googleID sql.NullString
	)

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, role, google_id, version, created_at, updated_at
		 FROM users `+where, arg,
	).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&role,
		&googleID,
		&u.Version,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", fmt.Sprint(arg))
		}
		return nil, fmt.Errorf("sqlite: getting user (%v): %w", arg, err)
	}

	u.Role = model.Role(role)
	u.GoogleID = googleID.String

	if err := db.loadLinks(ctx, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// loadLinks populates the user's provider links from provider_links rows.
func (db *DB) loadLinks(ctx context.Context, u *model.User) error {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT provider, external_id, username, access_token, refresh_token, profile_json, verified
		 FROM provider_links WHERE user_id = ?`, u.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: loading provider links for user %s: %w", u.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			provider, externalID, username  string
			accessToken, refreshToken, prof string
			verified                        bool
		)
		if err := rows.Scan(&provider, &externalID, &username, &accessToken, &refreshToken, &prof, &verified); err != nil {
			return fmt.Errorf("sqlite: scanning provider link: %w", err)
		}

		switch provider {
		case providerYouTube:
			link := &model.YouTubeLink{
				ChannelID:    externalID,
				AccessToken:  accessToken,
				RefreshToken: refreshToken,
				Verified:     verified,
			}
			if err := json.Unmarshal([]byte(prof), &link.Profile); err != nil {
				return fmt.Errorf("sqlite: decoding youtube profile for user %s: %w", u.ID, err)
			}
			u.YouTube = link
		case providerInstagram:
			link := &model.InstagramLink{
				UserID:      externalID,
				Username:    username,
				AccessToken: accessToken,
				Verified:    verified,
			}
			if err := json.Unmarshal([]byte(prof), &link.Profile); err != nil {
				return fmt.Errorf("sqlite: decoding instagram profile for user %s: %w", u.ID, err)
			}
			u.Instagram = link
		}
	}
	return rows.Err()
}

// Update persists a mutated user with compare-and-write semantics.
//
// The UPDATE only matches when the stored version equals the version the
// caller read, so two concurrent saves cannot silently overwrite each other:
// the loser gets apperror.ErrConflict and must re-read and retry (or give
// up — the flows here surface the conflict rather than retrying).
//
// Provider links are reconciled in the same transaction: a non-nil link is
// upserted (one row per provider per user), a nil link's row is deleted.
func (db *DB) Update(ctx context.Context, user *model.User) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning update transaction: %w", err)
	}
	defer tx.Rollback()

	user.UpdatedAt = time.Now()

	res, err := tx.ExecContext(ctx,
		`UPDATE users
		 SET name = ?, email = ?, password_hash = ?, role = ?, google_id = ?,
		     version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		user.Name,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		nullable(user.GoogleID),
		user.UpdatedAt,
		user.ID,
		user.Version,
	)
	if err != nil {
		if isUniqueViolation(err, "users.email") {
			return apperror.Duplicate("email", "an account with this email already exists")
		}
		if isUniqueViolation(err, "users.google_id") {
			return apperror.Duplicate("googleId", "this Google account is already linked to another user")
		}
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: reading update result for user %s: %w", user.ID, err)
	}
	if affected == 0 {
		// Either the row is gone or someone else bumped the version first.
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE id = ?`, user.ID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("sqlite: checking user %s after stale update: %w", user.ID, err)
		}
		if exists == 0 {
			return apperror.NotFound("user", user.ID)
		}
		return apperror.Conflict("user", user.ID)
	}

	if err := db.saveLinks(ctx, tx, user); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing update for user %s: %w", user.ID, err)
	}

	user.Version++
	return nil
}

// saveLinks reconciles provider_links rows with the user's in-memory links.
func (db *DB) saveLinks(ctx context.Context, tx *sql.Tx, user *model.User) error {
	if user.YouTube != nil {
		profile, err := json.Marshal(user.YouTube.Profile)
		if err != nil {
			return fmt.Errorf("sqlite: encoding youtube profile for user %s: %w", user.ID, err)
		}
		if err := upsertLink(ctx, tx, user.ID, providerYouTube,
			user.YouTube.ChannelID, "", user.YouTube.AccessToken,
			user.YouTube.RefreshToken, string(profile), user.YouTube.Verified,
		); err != nil {
			return err
		}
	} else if err := deleteLink(ctx, tx, user.ID, providerYouTube); err != nil {
		return err
	}

	if user.Instagram != nil {
		profile, err := json.Marshal(user.Instagram.Profile)
		if err != nil {
			return fmt.Errorf("sqlite: encoding instagram profile for user %s: %w", user.ID, err)
		}
		if err := upsertLink(ctx, tx, user.ID, providerInstagram,
			user.Instagram.UserID, user.Instagram.Username, user.Instagram.AccessToken,
			"", string(profile), user.Instagram.Verified,
		); err != nil {
			return err
		}
	} else if err := deleteLink(ctx, tx, user.ID, providerInstagram); err != nil {
		return err
	}

	return nil
}

func upsertLink(ctx context.Context, tx *sql.Tx, userID, provider, externalID, username, accessToken, refreshToken, profileJSON string, verified bool) error {
	now := time.Now()
	_, err := tx.ExecContext(ctx,
		`INSERT INTO provider_links
		   (user_id, provider, external_id, username, access_token, refresh_token, profile_json, verified, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, provider) DO UPDATE SET
		   external_id = excluded.external_id,
		   username = excluded.username,
		   access_token = excluded.access_token,
		   refresh_token = excluded.refresh_token,
		   profile_json = excluded.profile_json,
		   verified = excluded.verified,
		   updated_at = excluded.updated_at`,
		userID, provider, externalID, username, accessToken, refreshToken, profileJSON, verified, now, now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting %s link for user %s: %w", provider, userID, err)
	}
	return nil
}

func deleteLink(ctx context.Context, tx *sql.Tx, userID, provider string) error {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM provider_links WHERE user_id = ? AND provider = ?`,
		userID, provider,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting %s link for user %s: %w", provider, userID, err)
	}
	return nil
}

// nullable maps an empty string to NULL so the nullable-UNIQUE google_id
// column treats absent values as distinct.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure on
// the named column. modernc.org/sqlite surfaces constraint violations as
// plain errors carrying the SQLite message text, e.g.
// "constraint failed: UNIQUE constraint failed: users.email (2067)".
func isUniqueViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, column)
}
