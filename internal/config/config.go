package config

import (
	"fmt"
	"slices"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// login identifier fields supported by the credential validator
const (
	LoginFieldEmail    = "email"
	LoginFieldUsername = "username"
)

// loads configuration from environment variables into an immutable
// snapshot. Called once at startup; the resulting struct is passed by
// reference into every component, never looked up globally.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		_ = err // not an error - production environments may not have a .env file
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.LoginField != LoginFieldEmail && c.LoginField != LoginFieldUsername {
		return fmt.Errorf("LOGIN_FIELD must be %q or %q, got %q",
			LoginFieldEmail, LoginFieldUsername, c.LoginField)
	}

	// the login field must be collected at registration
	if !slices.Contains(c.RegisterFields, c.LoginField) {
		return fmt.Errorf("REGISTER_FIELDS %v must include LOGIN_FIELD %q",
			c.RegisterFields, c.LoginField)
	}

	// a provider block is either complete or absent; a half-configured
	// provider would only fail at request time, so reject it at startup
	if err := c.Google.validate("GOOGLE"); err != nil {
		return err
	}
	if err := c.Facebook.validate("FACEBOOK"); err != nil {
		return err
	}

	return nil
}

func (p ProviderCredentials) validate(prefix string) error {
	if !p.partial() {
		return nil
	}
	if p.ClientID == "" || p.ClientSecret == "" || p.RedirectURI == "" {
		return fmt.Errorf(
			"%s_CLIENT_ID, %s_CLIENT_SECRET and %s_REDIRECT_URI must all be set to enable the provider",
			prefix, prefix, prefix,
		)
	}
	return nil
}

func (p ProviderCredentials) partial() bool {
	return p.ClientID != "" || p.ClientSecret != "" || p.RedirectURI != ""
}

// reports whether the provider block is fully configured
func (p ProviderCredentials) Enabled() bool {
	return p.ClientID != "" && p.ClientSecret != "" && p.RedirectURI != ""
}
