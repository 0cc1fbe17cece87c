// Package config loads server configuration from environment variables.
//
// Every knob has a development-friendly default except the OAuth client
// credentials, which have no sane default and are validated at startup for
// the providers the deployment actually enables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config contains all server configuration.
type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	DBPath      string `env:"DB_PATH" envDefault:"influmatch.db"`
	JWTSecret   string `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	FrontendURL string `env:"CLIENT_URL" envDefault:"http://localhost:5173"`

	// SecureCookies must be true behind HTTPS so the OAuth state cookie
	// carries the Secure attribute.
	SecureCookies bool `env:"SECURE_COOKIES" envDefault:"false"`

	// BcryptCost of 0 means the package default.
	BcryptCost int `env:"BCRYPT_COST" envDefault:"0"`

	Google    OAuthClient `envPrefix:"GOOGLE_"`
	Instagram OAuthClient `envPrefix:"INSTAGRAM_"`

	// YouTubeCallbackURL reuses the Google client credentials; only the
	// callback path differs from the sign-in flow.
	YouTubeCallbackURL string `env:"YOUTUBE_CALLBACK_URL"`
}

// OAuthClient holds one provider's application credentials. Google's pair
// is shared by the sign-in and YouTube connect flows; only the callback
// URLs differ.
type OAuthClient struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	CallbackURL  string `env:"CALLBACK_URL"`
}

func (c OAuthClient) configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.CallbackURL != ""
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if len(cfg.JWTSecret) < 16 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	if !cfg.Google.configured() {
		return nil, fmt.Errorf("GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET, and GOOGLE_CALLBACK_URL are required")
	}
	if !cfg.Instagram.configured() {
		return nil, fmt.Errorf("INSTAGRAM_CLIENT_ID, INSTAGRAM_CLIENT_SECRET, and INSTAGRAM_CALLBACK_URL are required")
	}
	if cfg.YouTubeCallbackURL == "" {
		return nil, fmt.Errorf("YOUTUBE_CALLBACK_URL is required")
	}

	return &cfg, nil
}
