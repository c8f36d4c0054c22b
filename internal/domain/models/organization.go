// internal/domain/models/organization.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Organization is the tenant boundary. The slug is the public URL handle
// and must match ^[A-Za-z-_0-9]+$; only admins may set or change it.
type Organization struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	NameCI      string             `bson:"name_ci" json:"-"` // lowercase, for the unique index
	Description string             `bson:"description" json:"description"`
	Email       string             `bson:"email" json:"email"`
	Slug        string             `bson:"slug,omitempty" json:"slug,omitempty"`
	ExternalID  string             `bson:"external_id,omitempty" json:"external_id,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// InvoiceSequenceKind names the two per-organization document counters.
type InvoiceSequenceKind string

const (
	SequenceInvoice    InvoiceSequenceKind = "INVOICE"
	SequenceCreditNote InvoiceSequenceKind = "CREDIT_NOTE"
)

// InvoiceSequence is a per-organization numbering counter. Exactly two
// (invoice and credit note) are created atomically with every organization.
type InvoiceSequence struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	OrganizationID primitive.ObjectID  `bson:"organization_id" json:"organization_id"`
	Kind           InvoiceSequenceKind `bson:"kind" json:"kind"`
	Value          int64               `bson:"value" json:"value"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
