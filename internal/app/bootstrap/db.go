// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/openrsvp/backstage/internal/app/store/audit"
	authoritystore "github.com/openrsvp/backstage/internal/app/store/authorities"
	invoiceseqstore "github.com/openrsvp/backstage/internal/app/store/invoiceseq"
	membershipstore "github.com/openrsvp/backstage/internal/app/store/memberships"
	"github.com/openrsvp/backstage/internal/app/store/oauthstate"
	organizationstore "github.com/openrsvp/backstage/internal/app/store/organizations"
	userstore "github.com/openrsvp/backstage/internal/app/store/users"
	"github.com/openrsvp/backstage/internal/app/system/timeouts"
)

// ConnectDB establishes the MongoDB connection and verifies it with a
// ping before the rest of startup proceeds.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	opts := options.Client().
		ApplyURI(appCfg.MongoURI).
		SetMaxPoolSize(appCfg.MongoMaxPoolSize).
		SetMinPoolSize(appCfg.MongoMinPoolSize)

	connectCtx, cancel := context.WithTimeout(ctx, timeouts.Medium())
	defer cancel()

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return DBDeps{}, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, cancelPing := context.WithTimeout(ctx, timeouts.Ping())
	defer cancelPing()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return DBDeps{}, fmt.Errorf("mongo ping: %w", err)
	}

	logger.Info("connected to MongoDB", zap.String("database", appCfg.MongoDatabase))
	return DBDeps{
		MongoClient:   client,
		MongoDatabase: client.Database(appCfg.MongoDatabase),
	}, nil
}

// EnsureSchema creates every collection index the stores rely on. Each
// store owns its own index definitions; this just fans out to them.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	db := deps.MongoDatabase

	ensure := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"users", userstore.New(db).EnsureIndexes},
		{"organizations", organizationstore.New(db).EnsureIndexes},
		{"user_organizations", membershipstore.New(db).EnsureIndexes},
		{"authorities", authoritystore.New(db).EnsureIndexes},
		{"invoice_sequences", invoiceseqstore.New(db).EnsureIndexes},
		{"audit_records", audit.New(db).EnsureIndexes},
		{"oauth_states", oauthstate.New(db).EnsureIndexes},
	}

	for _, e := range ensure {
		ensureCtx, cancel := context.WithTimeout(ctx, timeouts.Medium())
		err := e.fn(ensureCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("ensure indexes for %s: %w", e.name, err)
		}
	}

	logger.Info("database indexes ensured")
	return nil
}
