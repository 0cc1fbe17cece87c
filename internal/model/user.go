// Package model defines the data structures used throughout the application.
package model

import "time"

// Role controls what a user can do on the platform.
//
// The role is fixed at account creation. Registration accepts influencer or
// business (defaulting to influencer); admin is never settable through any
// public flow — it exists for operator-created accounts only.
type Role string

const (
	RoleInfluencer Role = "influencer"
	RoleBusiness   Role = "business"
	RoleAdmin      Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleInfluencer, RoleBusiness, RoleAdmin:
		return true
	}
	return false
}

// User represents a platform account.
//
// A user can be reachable through up to two identity sources:
//   - a local credential (PasswordHash set at registration)
//   - a Google identity (GoogleID set on first Google sign-in)
//
// and can additionally carry connected social accounts (YouTube, Instagram)
// that only augment an existing identity — they never authenticate one.
//
// WHY GoogleID string?
// Google subject IDs are decimal strings that exceed int64 for some accounts,
// and Google documents them as opaque strings. Empty string = no Google
// identity attached. The UNIQUE constraint on google_id (NULL when absent)
// ensures one Google account maps to at most one platform account.
//
// The password hash and provider credentials never serialize to clients:
// PasswordHash, AccessToken, and RefreshToken are all tagged `json:"-"`.
type User struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Email        string         `json:"email"`
	PasswordHash string         `json:"-"` // empty for provider-only accounts
	Role         Role           `json:"role"`
	GoogleID     string         `json:"googleId,omitempty"`
	YouTube      *YouTubeLink   `json:"youtube,omitempty"`
	Instagram    *InstagramLink `json:"instagram,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`

	// Version supports optimistic writes: the repository only persists an
	// update when the stored version still matches, then increments it.
	Version int64 `json:"-"`
}

// HasPassword reports whether the account can be used for local login.
// Google-created accounts have no password until one is set.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// YouTubeLink is the record of a connected YouTube account.
//
// Each provider gets its own link type rather than one sparse struct with
// many optional fields — YouTube has a refresh token and channel identity,
// Instagram does not.
type YouTubeLink struct {
	ChannelID    string         `json:"channelId"`
	AccessToken  string         `json:"-"`
	RefreshToken string         `json:"-"` // may be empty: Google only reissues it on forced consent
	Profile      YouTubeProfile `json:"profileData"`
	Verified     bool           `json:"isVerified"`
}

// YouTubeProfile is the snapshot of the Google profile captured at connect
// time. Display-only; API calls use the stored tokens, not this snapshot.
type YouTubeProfile struct {
	GoogleProfileID string `json:"googleProfileId"`
	DisplayName     string `json:"displayName"`
	Email           string `json:"email,omitempty"`
}

// InstagramLink is the record of a connected Instagram account.
// Instagram's flow issues no refresh token, so there is none to store.
type InstagramLink struct {
	UserID      string           `json:"userId"`
	Username    string           `json:"username"`
	AccessToken string           `json:"-"`
	Profile     InstagramProfile `json:"profileData"`
	Verified    bool             `json:"isVerified"`
}

// InstagramProfile is the snapshot captured at connect time.
type InstagramProfile struct {
	DisplayName string `json:"displayName,omitempty"`
	Bio         string `json:"bio,omitempty"`
	Website     string `json:"website,omitempty"`
}
