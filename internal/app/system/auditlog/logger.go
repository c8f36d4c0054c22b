// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/openrsvp/backstage/internal/app/store/audit"
	"github.com/openrsvp/backstage/internal/domain/models"
)

// Config controls where each record category goes.
// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only),
// "off" (disabled).
type Config struct {
	// Access covers login, logout, and federated sign-in events.
	Access string
	// Account covers user, role, and organization administration.
	Account string
	// Entity covers reservation, ticket, and subscription lifecycle
	// records.
	Entity string
}

// Logger provides typed helpers for recording audit entries. It writes
// to MongoDB via audit.Store and to structured logs via zap.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// clientIP extracts the client address, preferring proxy headers.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

func (l *Logger) logToZap(rec audit.Record) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", rec.Category),
		zap.String("event_type", string(rec.EventType)),
		zap.String("actor", rec.Actor.Username),
	}
	if rec.ReservationID != "" {
		fields = append(fields, zap.String("reservation_id", rec.ReservationID))
	}
	if rec.EntityType != "" {
		fields = append(fields,
			zap.String("entity_type", string(rec.EntityType)),
			zap.String("entity_id", rec.EntityID))
	}
	if rec.IP != "" {
		fields = append(fields, zap.String("ip", rec.IP))
	}
	for i, m := range rec.Modifications {
		fields = append(fields, zap.String("mod_"+strconv.Itoa(i), m.Field+": "+m.Previous+" -> "+m.New))
	}
	l.zapLog.Info("audit record", fields...)
}

// Log records an audit entry per the category's configured destination.
// A nil Logger is a no-op so tests can omit auditing.
func (l *Logger) Log(ctx context.Context, rec audit.Record) {
	if l == nil {
		return
	}

	var setting string
	switch rec.Category {
	case audit.CategoryAccess:
		setting = l.config.Access
	case audit.CategoryAccount:
		setting = l.config.Account
	case audit.CategoryEntity:
		setting = l.config.Entity
	default:
		setting = "all"
	}

	if setting == "off" {
		return
	}
	if setting == "all" || setting == "log" {
		l.logToZap(rec)
	}
	if setting == "all" || setting == "db" {
		if err := l.store.Log(ctx, rec); err != nil {
			l.zapLog.Error("failed to store audit record",
				zap.Error(err),
				zap.String("event_type", string(rec.EventType)),
			)
		}
	}
}

func actorOf(u *models.User) audit.Actor {
	if u == nil {
		return audit.Actor{}
	}
	return audit.Actor{
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
	}
}

// --- Access events ---

// LoginSuccess records a successful form login.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, user *models.User) {
	l.Log(ctx, audit.Record{
		Category:  audit.CategoryAccess,
		EventType: audit.EventLoginSuccess,
		Actor:     actorOf(user),
		IP:        clientIP(r),
	})
}

// LoginFailed records a rejected login. The attempted username goes into
// the modification payload, never into the actor snapshot.
func (l *Logger) LoginFailed(ctx context.Context, r *http.Request, attemptedUsername, reason string) {
	l.Log(ctx, audit.Record{
		Category:  audit.CategoryAccess,
		EventType: audit.EventLoginFailed,
		IP:        clientIP(r),
		Modifications: []audit.Modification{
			{Field: "username", New: attemptedUsername},
			{Field: "reason", New: reason},
		},
	})
}

// Logout records a session invalidation.
func (l *Logger) Logout(ctx context.Context, r *http.Request, username string) {
	l.Log(ctx, audit.Record{
		Category:  audit.CategoryAccess,
		EventType: audit.EventLogout,
		Actor:     audit.Actor{Username: username},
		IP:        clientIP(r),
	})
}

// OpenIDLoginSuccess records a completed federated sign-in.
func (l *Logger) OpenIDLoginSuccess(ctx context.Context, r *http.Request, user *models.User, issuer string) {
	l.Log(ctx, audit.Record{
		Category:  audit.CategoryAccess,
		EventType: audit.EventOpenIDLoginSuccess,
		Actor:     actorOf(user),
		IP:        clientIP(r),
		Modifications: []audit.Modification{
			{Field: "issuer", New: issuer},
		},
	})
}

// --- Account events ---

// UserCreated records a new account.
func (l *Logger) UserCreated(ctx context.Context, actor *models.User, targetUsername string, role string) {
	l.Log(ctx, audit.Record{
		Category:  audit.CategoryAccount,
		EventType: audit.EventUserCreated,
		Actor:     actorOf(actor),
		Modifications: []audit.Modification{
			{Field: "username", New: targetUsername},
			{Field: "role", New: role},
		},
	})
}

// UserUpdated records an account edit with the changed fields.
func (l *Logger) UserUpdated(ctx context.Context, actor *models.User, targetUsername string, mods []audit.Modification) {
	l.Log(ctx, audit.Record{
		Category:  audit.CategoryAccount,
		EventType: audit.EventUserUpdated,
		Actor:     actorOf(actor),
		Modifications: append([]audit.Modification{
			{Field: "username", New: targetUsername},
		}, mods...),
	})
}

// UserDeleted records an account removal.
func (l *Logger) UserDeleted(ctx context.Context, actor *models.User, targetUsername string) {
	l.Log(ctx, audit.Record{
		Category:  audit.CategoryAccount,
		EventType: audit.EventUserDeleted,
		Actor:     actorOf(actor),
		Modifications: []audit.Modification{
			{Field: "username", New: targetUsername},
		},
	})
}

// UserEnabledChanged records an enable or disable toggle.
func (l *Logger) UserEnabledChanged(ctx context.Context, actor *models.User, targetUsername string, enabled bool) {
	typ := audit.EventUserDisabled
	if enabled {
		typ = audit.EventUserEnabled
	}
	l.Log(ctx, audit.Record{
		Category:  audit.CategoryAccount,
		EventType: typ,
		Actor:     actorOf(actor),
		Modifications: []audit.Modification{
			{Field: "username", New: targetUsername},
		},
	})
}

// RoleChanged records a granted-role replacement.
func (l *Logger) RoleChanged(ctx context.Context, actor *models.User, targetUsername, previous, current string) {
	l.Log(ctx, audit.Record{
		Category:  audit.CategoryAccount,
		EventType: audit.EventRoleChanged,
		Actor:     actorOf(actor),
		Modifications: []audit.Modification{
			{Field: "username", New: targetUsername},
			{Field: "role", Previous: previous, New: current},
		},
	})
}

// PasswordReset records an administrative password reset.
func (l *Logger) PasswordReset(ctx context.Context, actor *models.User, targetUsername string) {
	l.Log(ctx, audit.Record{
		Category:  audit.CategoryAccount,
		EventType: audit.EventPasswordReset,
		Actor:     actorOf(actor),
		Modifications: []audit.Modification{
			{Field: "username", New: targetUsername},
		},
	})
}

// PasswordChanged records a self-service password change.
func (l *Logger) PasswordChanged(ctx context.Context, actor *models.User) {
	l.Log(ctx, audit.Record{
		Category:  audit.CategoryAccount,
		EventType: audit.EventPasswordChanged,
		Actor:     actorOf(actor),
	})
}

// PublicUserCreated records just-in-time provisioning of a public
// account from a federated identity.
func (l *Logger) PublicUserCreated(ctx context.Context, username string) {
	l.Log(ctx, audit.Record{
		Category:  audit.CategoryAccount,
		EventType: audit.EventPublicUserCreated,
		Actor:     audit.Actor{Username: username},
	})
}

// ContactUpdated records a contact-info change on a public account.
func (l *Logger) ContactUpdated(ctx context.Context, actor *models.User, mods []audit.Modification) {
	l.Log(ctx, audit.Record{
		Category:      audit.CategoryAccount,
		EventType:     audit.EventContactUpdated,
		Actor:         actorOf(actor),
		Modifications: mods,
	})
}

// APIKeysCreated records a bulk API key insert.
func (l *Logger) APIKeysCreated(ctx context.Context, actor *models.User, usernames []string, role string) {
	l.Log(ctx, audit.Record{
		Category:  audit.CategoryAccount,
		EventType: audit.EventAPIKeyBulkCreated,
		Actor:     actorOf(actor),
		Modifications: []audit.Modification{
			{Field: "count", New: strconv.Itoa(len(usernames))},
			{Field: "role", New: role},
			{Field: "usernames", New: strings.Join(usernames, ",")},
		},
	})
}

// OrgCreated records a new organization.
func (l *Logger) OrgCreated(ctx context.Context, actor *models.User, orgName, slug string) {
	l.Log(ctx, audit.Record{
		Category:  audit.CategoryAccount,
		EventType: audit.EventOrgCreated,
		Actor:     actorOf(actor),
		Modifications: []audit.Modification{
			{Field: "name", New: orgName},
			{Field: "slug", New: slug},
		},
	})
}

// OrgUpdated records an organization edit with the changed fields.
func (l *Logger) OrgUpdated(ctx context.Context, actor *models.User, orgName string, mods []audit.Modification) {
	l.Log(ctx, audit.Record{
		Category:  audit.CategoryAccount,
		EventType: audit.EventOrgUpdated,
		Actor:     actorOf(actor),
		Modifications: append([]audit.Modification{
			{Field: "name", New: orgName},
		}, mods...),
	})
}

// --- Entity events ---

// Entity records one lifecycle happening against a reservation-scoped
// entity. Callers pick the event type from the closed set.
func (l *Logger) Entity(ctx context.Context, actor *models.User, reservationID string, entityType audit.EntityType, entityID string, eventType audit.EventType, mods []audit.Modification) {
	l.Log(ctx, audit.Record{
		Category:      audit.CategoryEntity,
		EventType:     eventType,
		ReservationID: reservationID,
		EntityType:    entityType,
		EntityID:      entityID,
		Actor:         actorOf(actor),
		Modifications: mods,
	})
}
