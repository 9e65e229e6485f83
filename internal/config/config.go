package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DevSecretKey is only accepted outside production.
const DevSecretKey = "dev-secret-key-change-in-production"

// Session store backends.
const (
	SessionStoreDatabase = "database"
	SessionStoreMemory   = "memory"
)

// Config holds the application configuration
type Config struct {
	// Database connection string (DSN). postgres:// or a SQLite file DSN.
	DatabaseURL string `env:"DATABASE_URL" envDefault:"file:newsdash.db?cache=shared"`

	// PostgreSQL connection pool size
	DatabaseMaxOpenConns int `env:"DATABASE_MAX_OPEN_CONNS" envDefault:"25"`

	// Server bind address (host:port)
	ServerAddr string `env:"SERVER_ADDR" envDefault:"localhost:5000"`

	// Public base URL of this service
	ServerURL string `env:"SERVER_URL" envDefault:"http://localhost:5000"`

	// Where browsers land after a successful login
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:5000"`

	// Environment controls log format and secret validation
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	// Enable debug logging
	Debug bool `env:"DEBUG" envDefault:"false"`

	// Signs bearer tokens. Must be overridden in production.
	SecretKey string `env:"SECRET_KEY" envDefault:"dev-secret-key-change-in-production"`

	// Origins allowed to call the API with credentials
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5000"`

	Session SessionConfig

	IdP IdPConfig

	// Email domains allowed to sign in
	AllowedDomains []string `env:"ALLOWED_DOMAINS" envSeparator:"," envDefault:"tbmcg.com"`

	// This address is always granted the admin role on login
	BootstrapAdminEmail string `env:"BOOTSTRAP_ADMIN_EMAIL" envDefault:"ctiller@tbmcg.com"`
}

// SessionConfig controls the browser session cookie and its backing store.
type SessionConfig struct {
	Store      string `env:"SESSION_STORE" envDefault:"database"`
	CookieName string `env:"SESSION_COOKIE_NAME" envDefault:"newsdash_session"`

	// Secure cookies are sent with SameSite=None so cross-origin frontends can use them.
	CookieSecure bool          `env:"SESSION_COOKIE_SECURE" envDefault:"true"`
	Lifetime     time.Duration `env:"SESSION_LIFETIME" envDefault:"24h"`

	// Upper bound on sessions held by the memory store
	MemoryCapacity int `env:"SESSION_MEMORY_CAPACITY" envDefault:"10000"`

	// How often expired sessions are purged from the database store
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"15m"`
}

// IdPConfig holds configuration for the upstream identity provider
// (Microsoft Entra ID by default).
type IdPConfig struct {
	// AUTHORITY defaults to https://login.microsoftonline.com/{tenant}
	Authority    string `env:"AUTHORITY"`
	TenantID     string `env:"MICROSOFT_TENANT_ID"`
	ClientID     string `env:"MICROSOFT_CLIENT_ID"`
	ClientSecret string `env:"MICROSOFT_CLIENT_SECRET"`

	// Issuer overrides the discovery issuer derived from the authority
	IssuerURL string `env:"OIDC_ISSUER"`

	RedirectPath    string        `env:"REDIRECT_PATH" envDefault:"/auth/callback"`
	Scopes          []string      `env:"OIDC_SCOPES" envSeparator:"," envDefault:"openid,profile,email"`
	ExchangeTimeout time.Duration `env:"OIDC_EXCHANGE_TIMEOUT" envDefault:"15s"`

	// JWT claim extraction configuration
	SubjectClaimField string `env:"OIDC_SUBJECT_CLAIM" envDefault:"oid"`
	EmailClaimField   string `env:"OIDC_EMAIL_CLAIM" envDefault:"preferred_username"`
	RolesClaimField   string `env:"OIDC_ROLES_CLAIM" envDefault:"roles"`
	GroupsClaimField  string `env:"OIDC_GROUPS_CLAIM" envDefault:"groups"`
	// Optional: for nested extraction (e.g., "name" for [{name:"editor"}])
	GroupsClaimPath string `env:"OIDC_GROUPS_CLAIM_PATH"`
}

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.IdP.Authority = strings.TrimRight(c.IdP.Authority, "/")
	if c.IdP.Authority == "" && c.IdP.TenantID != "" {
		c.IdP.Authority = "https://login.microsoftonline.com/" + c.IdP.TenantID
	}
	if !strings.HasPrefix(c.IdP.RedirectPath, "/") {
		c.IdP.RedirectPath = "/" + c.IdP.RedirectPath
	}
	c.AllowedDomains = trimAll(c.AllowedDomains)
	c.CORSAllowedOrigins = trimAll(c.CORSAllowedOrigins)
	c.IdP.Scopes = trimAll(c.IdP.Scopes)
	c.BootstrapAdminEmail = strings.TrimSpace(c.BootstrapAdminEmail)
}

// Validate checks settings that do not depend on which command runs.
func (c *Config) Validate() error {
	if c.SecretKey == "" {
		return errors.New("SECRET_KEY is required")
	}
	if c.IsProduction() && c.SecretKey == DevSecretKey {
		return errors.New("SECRET_KEY must be set in production")
	}
	switch c.Session.Store {
	case SessionStoreDatabase, SessionStoreMemory:
	default:
		return fmt.Errorf("unknown SESSION_STORE %q (want %s or %s)", c.Session.Store, SessionStoreDatabase, SessionStoreMemory)
	}
	if c.Session.Lifetime <= 0 {
		return errors.New("SESSION_LIFETIME must be positive")
	}
	if len(c.AllowedDomains) == 0 {
		return errors.New("ALLOWED_DOMAINS must list at least one domain")
	}
	return nil
}

// ValidateIdP checks the settings needed to talk to the identity provider.
// Only the serve command requires them.
func (c *Config) ValidateIdP() error {
	var missing []string
	if c.IdP.ClientID == "" {
		missing = append(missing, "MICROSOFT_CLIENT_ID")
	}
	if c.IdP.ClientSecret == "" {
		missing = append(missing, "MICROSOFT_CLIENT_SECRET")
	}
	if c.Issuer() == "" {
		missing = append(missing, "AUTHORITY or MICROSOFT_TENANT_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing identity provider settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Issuer returns the OIDC discovery issuer.
func (c *Config) Issuer() string {
	if c.IdP.IssuerURL != "" {
		return strings.TrimRight(c.IdP.IssuerURL, "/")
	}
	if c.IdP.Authority == "" {
		return ""
	}
	return c.IdP.Authority + "/v2.0"
}

// RedirectURI is the absolute callback URL registered with the provider.
func (c *Config) RedirectURI() string {
	return strings.TrimRight(c.ServerURL, "/") + c.IdP.RedirectPath
}

// LogoutURL is the provider's end-session endpoint with the post-logout
// redirect pointing back at the frontend.
func (c *Config) LogoutURL() string {
	if c.IdP.Authority == "" {
		return c.FrontendURL
	}
	q := url.Values{}
	q.Set("post_logout_redirect_uri", c.FrontendURL)
	return c.IdP.Authority + "/oauth2/v2.0/logout?" + q.Encode()
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
