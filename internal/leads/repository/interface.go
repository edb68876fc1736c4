package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Lead is a stored lead. Empty strings mean "not provided yet".
type Lead struct {
	ID               uuid.UUID
	Email            string
	FirstName        string
	LastName         string
	Phone            string
	Category         string
	RestaurantName   string
	RestaurantTables string
	ProductsCount    string
	Modules          string
	Message          string
	QualifiedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// UpsertParams carries the fields of one intake body. Empty fields never
// overwrite stored values.
type UpsertParams struct {
	Email            string
	FirstName        string
	LastName         string
	Phone            string
	Category         string
	RestaurantName   string
	RestaurantTables string
	ProductsCount    string
	Modules          string
	Message          string
}

// Interest is one app a lead asked about.
type Interest struct {
	AppID      string
	Category   string
	Hits       int
	LastSeenAt time.Time
}

// LeadWriter stores leads and their interests.
type LeadWriter interface {
	// UpsertLead merges params into the lead with the same email, creating
	// it when absent. created reports whether a new row was inserted.
	UpsertLead(ctx context.Context, params UpsertParams) (lead Lead, created bool, err error)
	AddInterest(ctx context.Context, leadID uuid.UUID, appID, category string) error
	// MarkQualified stamps qualified_at once. It reports false when the
	// lead was already qualified.
	MarkQualified(ctx context.Context, leadID uuid.UUID) (bool, error)
}

// LeadReader reads leads back.
type LeadReader interface {
	GetByEmail(ctx context.Context, email string) (Lead, error)
	ListInterests(ctx context.Context, leadID uuid.UUID) ([]Interest, error)
}

// LeadsRepository is the full repository surface.
type LeadsRepository interface {
	LeadWriter
	LeadReader
}
