// internal/app/store/audit/store.go
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SchemaVersion is stored on every record so the modification payload
// can evolve without breaking old readers.
const SchemaVersion = 1

// Event categories
const (
	CategoryAccess  = "access"  // login, logout, federated handoff
	CategoryAccount = "account" // user, role, and organization administration
	CategoryEntity  = "entity"  // reservation, ticket, and subscription lifecycle
)

// EntityType identifies which kind of domain entity a record refers to.
type EntityType string

const (
	EntityEvent        EntityType = "EVENT"
	EntityTicket       EntityType = "TICKET"
	EntityReservation  EntityType = "RESERVATION"
	EntitySubscription EntityType = "SUBSCRIPTION"
)

// EventType is the closed set of auditable happenings. The values are
// part of the stored schema; renaming one breaks historical queries.
type EventType string

// Reservation and payment lifecycle
const (
	EventReservationCreate                  EventType = "RESERVATION_CREATE"
	EventReservationComplete                EventType = "RESERVATION_COMPLETE"
	EventReservationOfflinePaymentConfirmed EventType = "RESERVATION_OFFLINE_PAYMENT_CONFIRMED"
	EventCancelReservationExpired           EventType = "CANCEL_RESERVATION_EXPIRED"
	EventCancelReservation                  EventType = "CANCEL_RESERVATION"
	EventInitPayment                        EventType = "INIT_PAYMENT"
	EventUpdateTransactionDetails           EventType = "UPDATE_TRANSACTION_DETAILS"
	EventMatchingPaymentFound               EventType = "MATCHING_PAYMENT_FOUND"
	EventMatchingPaymentDiscarded           EventType = "MATCHING_PAYMENT_DISCARDED"
	EventAutomaticPaymentConfirmation       EventType = "AUTOMATIC_PAYMENT_CONFIRMATION"
	EventAutomaticPaymentConfirmationFailed EventType = "AUTOMATIC_PAYMENT_CONFIRMATION_FAILED"
	EventChargeNotificationReceived         EventType = "CHARGE_NOTIFICATION_RECEIVED"
	EventPaymentConfirmed                   EventType = "PAYMENT_CONFIRMED"
	EventPaymentAlreadyConfirmed            EventType = "PAYMENT_ALREADY_CONFIRMED"
	EventPaymentFailed                      EventType = "PAYMENT_FAILED"
	EventRefund                             EventType = "REFUND"
	EventRefundAttemptFailed                EventType = "REFUND_ATTEMPT_FAILED"
	EventResetPayment                       EventType = "RESET_PAYMENT"
	EventDynamicDiscountCodeCreated         EventType = "DYNAMIC_DISCOUNT_CODE_CREATED"
)

// Ticket and check-in lifecycle
const (
	EventCancelTicket                 EventType = "CANCEL_TICKET"
	EventUpdateTicket                 EventType = "UPDATE_TICKET"
	EventUpdateTicketCategory         EventType = "UPDATE_TICKET_CATEGORY"
	EventUpdateTicketMetadata         EventType = "UPDATE_TICKET_METADATA"
	EventUpdateEvent                  EventType = "UPDATE_EVENT"
	EventCheckIn                      EventType = "CHECK_IN"
	EventManualCheckIn                EventType = "MANUAL_CHECK_IN"
	EventRevertCheckIn                EventType = "REVERT_CHECK_IN"
	EventBadgeScan                    EventType = "BADGE_SCAN"
	EventTagTicket                    EventType = "TAG_TICKET"
	EventUntagTicket                  EventType = "UNTAG_TICKET"
	EventUpdateTicketSubscriptionLink EventType = "UPDATE_TICKET_SUBSCRIPTION_LINK"
	EventGroupMemberAcquired          EventType = "GROUP_MEMBER_ACQUIRED"
	EventSubscriptionAcquired         EventType = "SUBSCRIPTION_ACQUIRED"
	EventWarningIgnored               EventType = "WARNING_IGNORED"
)

// Invoice, billing document, and VAT lifecycle
const (
	EventUpdateInvoice                 EventType = "UPDATE_INVOICE"
	EventForcedUpdateInvoice           EventType = "FORCED_UPDATE_INVOICE"
	EventExternalInvoiceNumber         EventType = "EXTERNAL_INVOICE_NUMBER"
	EventBillingDocumentGenerated      EventType = "BILLING_DOCUMENT_GENERATED"
	EventBillingDocumentInvalidated    EventType = "BILLING_DOCUMENT_INVALIDATED"
	EventBillingDocumentRestored       EventType = "BILLING_DOCUMENT_RESTORED"
	EventVatValidationSuccessful       EventType = "VAT_VALIDATION_SUCCESSFUL"
	EventVatFormalValidationSuccessful EventType = "VAT_FORMAL_VALIDATION_SUCCESSFUL"
	EventVatValidationSkipped          EventType = "VAT_VALIDATION_SKIPPED"
	EventTermsConditionAccepted        EventType = "TERMS_CONDITION_ACCEPTED"
	EventPrivacyPolicyAccepted         EventType = "PRIVACY_POLICY_ACCEPTED"
)

// Access and account administration
const (
	EventLoginSuccess       EventType = "LOGIN_SUCCESS"
	EventLoginFailed        EventType = "LOGIN_FAILED"
	EventLogout             EventType = "LOGOUT"
	EventOpenIDLoginSuccess EventType = "OPENID_LOGIN_SUCCESS"
	EventPasswordReset      EventType = "PASSWORD_RESET"
	EventPasswordChanged    EventType = "PASSWORD_CHANGED"
	EventRoleChanged        EventType = "ROLE_CHANGED"
	EventUserCreated        EventType = "USER_CREATED"
	EventUserUpdated        EventType = "USER_UPDATED"
	EventUserDeleted        EventType = "USER_DELETED"
	EventUserEnabled        EventType = "USER_ENABLED"
	EventUserDisabled       EventType = "USER_DISABLED"
	EventPublicUserCreated  EventType = "PUBLIC_USER_CREATED"
	EventContactUpdated     EventType = "CONTACT_UPDATED"
	EventAPIKeyBulkCreated  EventType = "API_KEY_BULK_CREATED"
	EventOrgCreated         EventType = "ORG_CREATED"
	EventOrgUpdated         EventType = "ORG_UPDATED"
)

// Modification captures one changed field. Order within a record is
// meaningful and preserved.
type Modification struct {
	Field    string `bson:"field" json:"field"`
	Previous string `bson:"previous,omitempty" json:"previous,omitempty"`
	New      string `bson:"new,omitempty" json:"new,omitempty"`
}

// Actor is a point-in-time snapshot of the acting user. Later edits to
// the account never alter historical records.
type Actor struct {
	Username  string `bson:"username" json:"username"`
	FirstName string `bson:"first_name,omitempty" json:"firstName,omitempty"`
	LastName  string `bson:"last_name,omitempty" json:"lastName,omitempty"`
	Email     string `bson:"email,omitempty" json:"email,omitempty"`
}

// Record is one immutable audit entry. Records are only ever inserted,
// never updated or deleted.
type Record struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Timestamp     time.Time          `bson:"timestamp" json:"timestamp"`
	Category      string             `bson:"category" json:"category"`
	EventType     EventType          `bson:"event_type" json:"eventType"`
	SchemaVersion int                `bson:"schema_version" json:"schemaVersion"`

	// Entity reference; ReservationID is indexed for timeline queries.
	ReservationID string     `bson:"reservation_id,omitempty" json:"reservationId,omitempty"`
	EntityType    EntityType `bson:"entity_type,omitempty" json:"entityType,omitempty"`
	EntityID      string     `bson:"entity_id,omitempty" json:"entityId,omitempty"`

	Actor         Actor          `bson:"actor" json:"actor"`
	IP            string         `bson:"ip,omitempty" json:"-"`
	Modifications []Modification `bson:"modifications,omitempty" json:"modifications,omitempty"`
}

// Store manages immutable audit records.
type Store struct {
	c *mongo.Collection
}

// New creates a new audit Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("audit_records")}
}

// EnsureIndexes creates the indexes the timeline queries need.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "timestamp", Value: -1}},
		},
		{
			Keys: bson.D{
				{Key: "reservation_id", Value: 1},
				{Key: "timestamp", Value: 1},
			},
		},
		{
			Keys: bson.D{
				{Key: "entity_type", Value: 1},
				{Key: "entity_id", Value: 1},
				{Key: "timestamp", Value: 1},
			},
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Log appends one record, filling in id, timestamp, and schema version.
func (s *Store) Log(ctx context.Context, rec Record) error {
	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	if rec.SchemaVersion == 0 {
		rec.SchemaVersion = SchemaVersion
	}
	_, err := s.c.InsertOne(ctx, rec)
	return err
}

// QueryByReservation returns a reservation's timeline in event order,
// optionally bounded by [from, to].
func (s *Store) QueryByReservation(ctx context.Context, reservationID string, from, to *time.Time) ([]Record, error) {
	query := bson.M{"reservation_id": reservationID}
	applyTimeRange(query, from, to)

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cursor, err := s.c.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var recs []Record
	if err := cursor.All(ctx, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// QueryByEntity returns the most recent records for one entity.
func (s *Store) QueryByEntity(ctx context.Context, entityType EntityType, entityID string, limit int64) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	query := bson.M{"entity_type": entityType, "entity_id": entityID}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit)
	cursor, err := s.c.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var recs []Record
	if err := cursor.All(ctx, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func applyTimeRange(query bson.M, from, to *time.Time) {
	if from == nil && to == nil {
		return
	}
	rng := bson.M{}
	if from != nil {
		rng["$gte"] = *from
	}
	if to != nil {
		rng["$lte"] = *to
	}
	query["timestamp"] = rng
}
