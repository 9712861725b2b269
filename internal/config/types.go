package config

// Config is the process-wide configuration snapshot, resolved once at
// startup from merged defaults and deployment overrides.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Port        string `env:"PORT" envDefault:"8080"`
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`

	// secret for the short-lived OAuth state cookie
	SessionSecret string `env:"SESSION_SECRET,required"`

	// identity policy
	LoginField     string   `env:"LOGIN_FIELD" envDefault:"email"`
	RegisterFields []string `env:"REGISTER_FIELDS" envDefault:"username,email"`

	// social reconciliation policy: when true, a social sign-in whose
	// email already belongs to a password-registered user links the
	// provider identity to that user; when false it is rejected
	SocialAutoLink bool `env:"SOCIAL_AUTO_LINK" envDefault:"true"`

	// username allocation strategy key: "counter" or "random"
	UsernameStrategy string `env:"AUTH_FIELD_GENERATOR" envDefault:"counter"`

	BcryptCost int `env:"BCRYPT_COST" envDefault:"12"`

	// requests-per-window for login and password-reset endpoints,
	// ulule/limiter format (e.g. "30-M" = 30 per minute)
	AuthRateLimit string `env:"AUTH_RATE_LIMIT" envDefault:"30-M"`

	Google   ProviderCredentials `envPrefix:"GOOGLE_"`
	Facebook ProviderCredentials `envPrefix:"FACEBOOK_"`

	Mailer MailerConfig
}

// ProviderCredentials is the per-provider OAuth2 block. All three
// fields must be set for the provider's routes to be registered.
type ProviderCredentials struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURI  string `env:"REDIRECT_URI"`

	// optional overrides of the built-in user-info field mapping,
	// local field to provider payload key (e.g. "first_name:given_name").
	// Values prefixed with "@" select a registered derivation strategy.
	UserInfoMapping map[string]string `env:"USER_INFO_MAPPING"`
}

// MailerConfig configures outbound password-reset email delivery.
// With no Postmark token the service falls back to a log-only sender.
type MailerConfig struct {
	PostmarkServerToken string `env:"POSTMARK_SERVER_TOKEN"`
	FromEmail           string `env:"FROM_EMAIL" envDefault:"no-reply@localhost"`
	ResetURLBase        string `env:"PASSWORD_RESET_URL" envDefault:"http://localhost:8080/reset"`
}
