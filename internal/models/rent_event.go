package models

import "time"

type RentEventType string

const (
	RentEventRequested       RentEventType = "rent.requested"
	RentEventPaid            RentEventType = "invoice.paid"
	RentEventProvisioned     RentEventType = "rent.provisioned"
	RentEventProvisionDenied RentEventType = "rent.provision_rejected"
	RentEventActivated       RentEventType = "rent.activated"
	RentEventVerified        RentEventType = "invoice.verified"
	RentEventRejected        RentEventType = "invoice.rejected"
	RentEventOverdue         RentEventType = "invoice.overdue"
)

// RentEvent is a domain event about a contract or one of its ledger entries.
type RentEvent struct {
	ID         int64          `json:"id,omitempty"`
	Type       RentEventType  `json:"type"`
	RentID     string         `json:"rent_id"`
	InvoiceID  string         `json:"invoice_id,omitempty"` // ledger entry id
	Actor      string         `json:"actor,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	DedupeKey  string         `json:"-"`
	OccurredAt time.Time      `json:"occurred_at"`
}

const overdueDedupePrefix = "overdue:"

// OverdueDedupeKey identifies the single invoice.overdue event allowed for
// a ledger entry. The SQL in ListOverdue builds the same key.
func OverdueDedupeKey(rentID, invoiceID string) string {
	return overdueDedupePrefix + rentID + ":" + invoiceID
}

// OverdueEntry is a ledger entry whose release date passed without a
// verified payment.
type OverdueEntry struct {
	RentID      string        `json:"rent_id"`
	CustomerID  string        `json:"customer_id"`
	ProviderID  string        `json:"provider_id"`
	InvoiceID   string        `json:"invoice_id"`
	ReleaseDate time.Time     `json:"release_date"`
	Status      InvoiceStatus `json:"status"`
}
