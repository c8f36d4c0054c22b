// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for Backstage.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: BACKSTAGE_MONGO_URI, BACKSTAGE_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "backstage", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size"},

	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "backstage-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},

	{Name: "profile", Default: "live", Desc: "Hosting profile: 'live' or 'demo'"},
	{Name: "base_url", Default: "http://localhost:8080", Desc: "Public base URL for redirects and the OAuth2 callback"},

	{Name: "recaptcha_secret", Default: "", Desc: "Google reCAPTCHA secret; blank disables the login challenge"},

	// OpenID Connect
	{Name: "openid_issuer", Default: "", Desc: "OpenID Connect issuer URL; blank disables federated login"},
	{Name: "openid_client_id", Default: "", Desc: "OpenID Connect client ID"},
	{Name: "openid_client_secret", Default: "", Desc: "OpenID Connect client secret"},
	{Name: "openid_redirect_url", Default: "", Desc: "OpenID Connect redirect URL (defaults to base_url + /openid/callback)"},

	// Audit logging settings
	{Name: "audit_log_access", Default: "all", Desc: "Access event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_account", Default: "all", Desc: "Account administration logging: 'all', 'db', 'log', or 'off'"},
	{Name: "audit_log_entity", Default: "db", Desc: "Entity lifecycle logging: 'all', 'db', 'log', or 'off'"},

	// Admin bootstrap
	{Name: "admin_password", Default: "", Desc: "Password for the reserved admin account (blank generates one at first startup)"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// It is called early in startup so that both WAFFLE and the app have
// access to configuration before any backends or handlers are built.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, BACKSTAGE_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "BACKSTAGE", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),

		Profile: appValues.String("profile"),
		BaseURL: appValues.String("base_url"),

		RecaptchaSecret: appValues.String("recaptcha_secret"),

		OpenIDIssuer:       appValues.String("openid_issuer"),
		OpenIDClientID:     appValues.String("openid_client_id"),
		OpenIDClientSecret: appValues.String("openid_client_secret"),
		OpenIDRedirectURL:  appValues.String("openid_redirect_url"),

		AuditLogAccess:  appValues.String("audit_log_access"),
		AuditLogAccount: appValues.String("audit_log_account"),
		AuditLogEntity:  appValues.String("audit_log_entity"),

		AdminPassword: appValues.String("admin_password"),
	}

	if appCfg.OpenIDEnabled() && appCfg.OpenIDRedirectURL == "" {
		appCfg.OpenIDRedirectURL = appCfg.BaseURL + "/openid/callback"
		logger.Info("derived OpenID redirect URL",
			zap.String("openid_redirect_url", appCfg.OpenIDRedirectURL))
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// This is the right place to enforce required fields or invariants that
// involve both the core and app configs.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	if appCfg.Profile != "live" && appCfg.Profile != "demo" {
		return fmt.Errorf("profile must be 'live' or 'demo', got %q", appCfg.Profile)
	}

	if appCfg.OpenIDEnabled() && appCfg.OpenIDClientSecret == "" {
		return fmt.Errorf("openid_client_secret is required when openid_issuer is set")
	}

	return nil
}
