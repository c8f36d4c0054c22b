// internal/app/bootstrap/routes.go
package bootstrap

import (
	"context"
	"net/http"

	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	auditsfeature "github.com/openrsvp/backstage/internal/app/features/audits"
	authstatusfeature "github.com/openrsvp/backstage/internal/app/features/authstatus"
	cspfeature "github.com/openrsvp/backstage/internal/app/features/csp"
	errorsfeature "github.com/openrsvp/backstage/internal/app/features/errors"
	healthfeature "github.com/openrsvp/backstage/internal/app/features/health"
	loginfeature "github.com/openrsvp/backstage/internal/app/features/login"
	logoutfeature "github.com/openrsvp/backstage/internal/app/features/logout"
	openidfeature "github.com/openrsvp/backstage/internal/app/features/openid"
	organizationsfeature "github.com/openrsvp/backstage/internal/app/features/organizations"
	usersfeature "github.com/openrsvp/backstage/internal/app/features/users"
	"github.com/openrsvp/backstage/internal/app/policy/ownership"
	"github.com/openrsvp/backstage/internal/app/store/audit"
	authoritystore "github.com/openrsvp/backstage/internal/app/store/authorities"
	invoiceseqstore "github.com/openrsvp/backstage/internal/app/store/invoiceseq"
	membershipstore "github.com/openrsvp/backstage/internal/app/store/memberships"
	"github.com/openrsvp/backstage/internal/app/store/oauthstate"
	organizationstore "github.com/openrsvp/backstage/internal/app/store/organizations"
	userstore "github.com/openrsvp/backstage/internal/app/store/users"
	"github.com/openrsvp/backstage/internal/app/system/accounts"
	"github.com/openrsvp/backstage/internal/app/system/auditlog"
	"github.com/openrsvp/backstage/internal/app/system/auth"
	"github.com/openrsvp/backstage/internal/app/system/csrf"
	"github.com/openrsvp/backstage/internal/app/system/password"
	"github.com/openrsvp/backstage/internal/app/system/pipeline"
	"github.com/openrsvp/backstage/internal/app/system/recaptcha"
	"github.com/openrsvp/backstage/internal/app/system/secrules"
	"github.com/openrsvp/backstage/internal/app/system/timeouts"
	"github.com/openrsvp/backstage/internal/app/system/txn"
)

// BuildHandler constructs the root HTTP handler for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup,
// and any Startup hooks have completed. The handler is wrapped in the
// fixed filter pipeline (channel security, panic recovery, CSRF
// protection, authorization rules, CSRF token exposure) before the
// feature routers see a request.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	secure := coreCfg.Env == "prod"

	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}
	// Role changes, disables, and expiry must apply to in-flight
	// sessions, so user data is reloaded on every request.
	sessionMgr.SetUserFetcher(userstore.NewFetcher(deps.MongoDatabase))

	// Stores
	users := userstore.New(deps.MongoDatabase)
	orgs := organizationstore.New(deps.MongoDatabase)
	memberships := membershipstore.New(deps.MongoDatabase)
	authorities := authoritystore.New(deps.MongoDatabase)
	sequences := invoiceseqstore.New(deps.MongoDatabase)
	audits := audit.New(deps.MongoDatabase)
	states := oauthstate.New(deps.MongoDatabase)

	auditLogger := auditlog.New(audits, logger, auditlog.Config{
		Access:  appCfg.AuditLogAccess,
		Account: appCfg.AuditLogAccount,
		Entity:  appCfg.AuditLogEntity,
	})

	encoder := password.NewBcrypt()

	accts := accounts.New(accounts.Deps{
		Users:       users,
		Authorities: authorities,
		Memberships: memberships,
		Orgs:        orgs,
		Sequences:   sequences,
		Encoder:     encoder,
		Audit:       auditLogger,
		Txn: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return txn.Run(ctx, deps.MongoDatabase, logger, fn)
		},
		Log: logger,
	})

	var verifier recaptcha.Verifier = recaptcha.Disabled{}
	if appCfg.RecaptchaSecret != "" {
		verifier = recaptcha.NewGoogle(appCfg.RecaptchaSecret, logger)
	}

	r := chi.NewRouter()

	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/healthz", healthfeature.Routes(healthHandler))

	loginHandler := loginfeature.NewHandler(sessionMgr, users, accts, encoder, verifier, auditLogger, appCfg.DemoMode(), appCfg.OpenIDEnabled(), logger)
	r.Mount("/", loginfeature.Routes(loginHandler))

	logoutHandler := logoutfeature.NewHandler(sessionMgr, auditLogger, logger)
	r.Mount("/logout", logoutfeature.Routes(logoutHandler))

	if appCfg.OpenIDEnabled() {
		discoverCtx, cancel := context.WithTimeout(context.Background(), timeouts.Long())
		openidHandler, err := openidfeature.NewHandler(discoverCtx, openidfeature.Config{
			IssuerURL:    appCfg.OpenIDIssuer,
			ClientID:     appCfg.OpenIDClientID,
			ClientSecret: appCfg.OpenIDClientSecret,
			RedirectURL:  appCfg.OpenIDRedirectURL,
		}, sessionMgr, accts, states, auditLogger, logger)
		cancel()
		if err != nil {
			logger.Error("openid provider init failed", zap.Error(err))
			return nil, err
		}
		r.Mount("/openid", openidfeature.Routes(openidHandler))
	}

	statusHandler := authstatusfeature.NewHandler(logger)
	r.Mount(authstatusfeature.Path, authstatusfeature.Routes(statusHandler))

	cspHandler := cspfeature.NewHandler(logger)
	r.Mount(cspfeature.ReportPath, cspfeature.Routes(cspHandler))

	usersHandler := usersfeature.NewHandler(accts, logger)
	r.Mount("/admin/api/users", usersfeature.Routes(usersHandler))
	r.Mount("/admin/api/api-keys", usersfeature.APIKeyRoutes(usersHandler))

	orgHandler := organizationsfeature.NewHandler(accts, orgs, logger)
	r.Mount("/admin/api/organizations", organizationsfeature.Routes(orgHandler))

	auditsHandler := auditsfeature.NewHandler(audits, logger)
	r.Mount("/admin/api/audits", auditsfeature.Routes(auditsHandler))

	errorsHandler := errorsfeature.NewHandler()
	r.Get("/forbidden", errorsHandler.Forbidden)
	r.Get("/unauthorized", errorsHandler.Unauthorized)

	// Filter pipeline, outermost first. Rule evaluation reads the
	// session user from context, so LoadSessionUser wraps the whole
	// pipeline rather than running inside the router.
	guard := csrf.NewGuard(sessionMgr, secure, logger)
	engine := secrules.NewEngine(secrules.DefaultRules())
	ownershipCheck := ownership.Checker(ownership.NewRequestResolver(orgs), accts, logger)

	chain := pipeline.New(
		pipeline.ChannelSecurity(secure, logger),
		pipeline.Recovery(logger),
		guard.Protect,
		engine.Middleware(ownershipCheck, logger),
		guard.Expose,
	)

	return sessionMgr.LoadSessionUser(chain.Wrap(r)), nil
}
