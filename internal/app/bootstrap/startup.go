// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	authoritystore "github.com/openrsvp/backstage/internal/app/store/authorities"
	"github.com/openrsvp/backstage/internal/app/store/oauthstate"
	userstore "github.com/openrsvp/backstage/internal/app/store/users"
	"github.com/openrsvp/backstage/internal/app/system/authz"
	"github.com/openrsvp/backstage/internal/app/system/password"
	"github.com/openrsvp/backstage/internal/app/system/tasks"
	"github.com/openrsvp/backstage/internal/app/system/timeouts"
	"github.com/openrsvp/backstage/internal/domain/models"
)

// scheduler holds the background maintenance jobs between Startup and
// Shutdown.
var scheduler *tasks.Scheduler

// Startup runs one-time application initialization after DB connections
// and schema setup are complete, but before the HTTP handler is built.
// It provisions the reserved admin account on first boot and starts the
// background maintenance jobs.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if err := ensureAdminAccount(ctx, deps, appCfg.AdminPassword, logger); err != nil {
		return err
	}

	scheduler = tasks.NewScheduler(logger)
	scheduler.Add(tasks.OAuthStateCleanupJob(oauthstate.New(deps.MongoDatabase), logger))
	scheduler.Start()
	return nil
}

// ensureAdminAccount creates the reserved admin user with the ADMIN
// grant if it does not exist yet. When no password is configured, one is
// generated and printed to the log exactly once; it is not recoverable
// afterwards.
func ensureAdminAccount(ctx context.Context, deps DBDeps, configured string, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Medium())
	defer cancel()

	users := userstore.New(deps.MongoDatabase)

	_, err := users.GetByUsername(ctx, models.AdminUsername)
	if err == nil {
		return nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("admin lookup: %w", err)
	}

	plain := configured
	generated := false
	if plain == "" {
		plain, err = password.Generate()
		if err != nil {
			return fmt.Errorf("generate admin password: %w", err)
		}
		generated = true
	}

	encoder := password.NewBcrypt()
	hash, err := encoder.Hash(plain)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = users.Create(ctx, models.User{
		Username:  models.AdminUsername,
		Password:  hash,
		FirstName: "System",
		LastName:  "Administrator",
		Type:      models.UserTypeStandard,
		Enabled:   true,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	authorities := authoritystore.New(deps.MongoDatabase)
	if err := authorities.Grant(ctx, models.AdminUsername, string(authz.RoleAdmin)); err != nil {
		return fmt.Errorf("grant admin role: %w", err)
	}

	if generated {
		logger.Info("admin account created; this password will not be shown again",
			zap.String("username", models.AdminUsername),
			zap.String("password", plain))
	} else {
		logger.Info("admin account created", zap.String("username", models.AdminUsername))
	}
	return nil
}
