// internal/app/bootstrap/appconfig.go
package bootstrap

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like:
//   - HTTP/HTTPS ports and TLS configuration
//   - Logging level and format
//   - CORS settings
//   - Request body size limits
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session management configuration
	SessionKey    string // Secret key for signing session cookies (must be strong in production)
	SessionName   string // Cookie name for sessions
	SessionDomain string // Cookie domain (blank means current host)

	// Profile selects the hosting mode: "live" or "demo". The demo
	// profile provisions unknown usernames on first login.
	Profile string

	// Base URL for redirect targets and the OAuth2 callback
	BaseURL string

	// Google reCAPTCHA secret; blank disables the login challenge.
	RecaptchaSecret string

	// External identity provider (OpenID Connect). Leaving the issuer
	// blank disables federated login entirely.
	OpenIDIssuer       string
	OpenIDClientID     string
	OpenIDClientSecret string
	OpenIDRedirectURL  string

	// Audit logging sinks per category: "all", "db", "log", or "off".
	AuditLogAccess  string
	AuditLogAccount string
	AuditLogEntity  string

	// Password for the reserved admin account. Blank generates one at
	// first startup and prints it to the log, once.
	AdminPassword string
}

// DemoMode reports whether the demo profile is active.
func (c AppConfig) DemoMode() bool { return c.Profile == "demo" }

// OpenIDEnabled reports whether federated login is configured.
func (c AppConfig) OpenIDEnabled() bool {
	return c.OpenIDIssuer != "" && c.OpenIDClientID != ""
}
