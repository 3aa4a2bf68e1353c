package models

import (
	"strings"
	"time"

	"dcspace-backend/internal/apperror"
)

type InvoiceStatus string

const (
	InvoiceStatusUnpaid   InvoiceStatus = "unpaid"
	InvoiceStatusPending  InvoiceStatus = "pending"
	InvoiceStatusVerified InvoiceStatus = "verified"
	InvoiceStatusRejected InvoiceStatus = "rejected"
)

// Ledger entry id prefixes
const (
	RequestEntryPrefix   = "req-"
	RecurringEntryPrefix = "rnt-"
)

// Invoice is the billing ledger of one rent. History[0] is the initial
// request entry; History[1:] are the recurring monthly entries appended at
// activation.
type Invoice struct {
	ID        string         `json:"id"`
	RentID    string         `json:"rent_id"`
	History   []InvoiceEntry `json:"history"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// InvoiceEntry is one billable line in the ledger.
type InvoiceEntry struct {
	InvoiceID   string        `json:"invoice_id"`
	ReleaseDate time.Time     `json:"release_date"`
	PaidAt      *time.Time    `json:"paid_at,omitempty"`
	ProofOfPaid *string       `json:"proof_of_paid,omitempty"` // object key
	VerifiedBy  *string       `json:"verified_by,omitempty"`
	Status      InvoiceStatus `json:"status"`
	Price       *float64      `json:"price,omitempty"` // overrides the rent price
}

// IsRecurring reports whether the entry is a monthly entry.
func (e *InvoiceEntry) IsRecurring() bool {
	return strings.HasPrefix(e.InvoiceID, RecurringEntryPrefix)
}

// Amount returns the entry price, falling back to the contract price.
func (e *InvoiceEntry) Amount(contractPrice float64) float64 {
	if e.Price != nil {
		return *e.Price
	}
	return contractPrice
}

// FindEntry returns the position and a copy of the entry with the given id.
func (inv *Invoice) FindEntry(invoiceID string) (int, InvoiceEntry, error) {
	for i, e := range inv.History {
		if e.InvoiceID == invoiceID {
			return i, e, nil
		}
	}
	return -1, InvoiceEntry{}, apperror.NotFound("ledger.find", "invoice entry %s not found", invoiceID)
}

// UpdateEntry applies mutate to the entry with the given id. The ledger is
// only changed when mutate returns nil.
func (inv *Invoice) UpdateEntry(invoiceID string, mutate func(index int, e *InvoiceEntry) error) error {
	idx, entry, err := inv.FindEntry(invoiceID)
	if err != nil {
		return err
	}
	if err := mutate(idx, &entry); err != nil {
		return err
	}
	inv.History[idx] = entry
	return nil
}

// Append adds entries to the end of the ledger. Ids must stay unique.
func (inv *Invoice) Append(entries ...InvoiceEntry) error {
	seen := make(map[string]bool, len(inv.History)+len(entries))
	for _, e := range inv.History {
		seen[e.InvoiceID] = true
	}
	for _, e := range entries {
		if seen[e.InvoiceID] {
			return apperror.Conflict("ledger.append", "duplicate invoice entry %s", e.InvoiceID)
		}
		seen[e.InvoiceID] = true
	}
	inv.History = append(inv.History, entries...)
	return nil
}

// AwaitingVerification reports whether any entry holds a proof that has not
// been verified or rejected yet.
func (inv *Invoice) AwaitingVerification() bool {
	for _, e := range inv.History {
		if e.Status == InvoiceStatusPending {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (inv *Invoice) Clone() *Invoice {
	c := *inv
	c.History = make([]InvoiceEntry, len(inv.History))
	for i, e := range inv.History {
		c.History[i] = e.clone()
	}
	return &c
}

func (e InvoiceEntry) clone() InvoiceEntry {
	if e.PaidAt != nil {
		v := *e.PaidAt
		e.PaidAt = &v
	}
	if e.ProofOfPaid != nil {
		v := *e.ProofOfPaid
		e.ProofOfPaid = &v
	}
	if e.VerifiedBy != nil {
		v := *e.VerifiedBy
		e.VerifiedBy = &v
	}
	if e.Price != nil {
		v := *e.Price
		e.Price = &v
	}
	return e
}
