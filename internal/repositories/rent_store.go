package repositories

import (
	"context"
	"time"

	"dcspace-backend/internal/models"
)

// RentTx is the unit of work for one contract transition. Everything read
// through a RentTx is locked until the surrounding transaction ends.
type RentTx interface {
	// GetSpaceForUpdate locks the space row.
	GetSpaceForUpdate(ctx context.Context, spaceID string) (*models.Space, error)
	// ClaimSpace marks the space as rented by customerID.
	ClaimSpace(ctx context.Context, spaceID, customerID string) error
	InsertRent(ctx context.Context, rent *models.Rent, invoice *models.Invoice) error
	// LockRent loads a rent and its ledger, locking the rent row.
	LockRent(ctx context.Context, rentID string) (*models.Rent, *models.Invoice, error)
	SaveRent(ctx context.Context, rent *models.Rent) error
	SaveInvoice(ctx context.Context, invoice *models.Invoice) error
	// InsertEvent stores an event; it reports false when the dedupe key was
	// already recorded.
	InsertEvent(ctx context.Context, event *models.RentEvent) (bool, error)
}

// RentStore persists rents and their ledgers.
type RentStore interface {
	// InTx runs fn in a single transaction, committing only when fn
	// returns nil.
	InTx(ctx context.Context, fn func(tx RentTx) error) error
	GetRent(ctx context.Context, rentID string) (*models.Rent, *models.Invoice, error)
	// ListOverdue returns recurring entries of active rents released before
	// asOf that are still unpaid or rejected and have not been reported yet.
	ListOverdue(ctx context.Context, asOf time.Time, limit int) ([]models.OverdueEntry, error)
	RecordEvent(ctx context.Context, event *models.RentEvent) (bool, error)
}
