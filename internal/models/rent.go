package models

import (
	"errors"
	"time"
)

type RentStatus string

const (
	RentStatusUnpaid      RentStatus = "unpaid"
	RentStatusPending     RentStatus = "pending"
	RentStatusProvisioned RentStatus = "provisioned"
	RentStatusActive      RentStatus = "active"
	// Reserved: no operation produces these yet.
	RentStatusSuspend   RentStatus = "suspend"
	RentStatusDismantle RentStatus = "dismantle"
)

// Rent is the rental contract linking a customer, a space and its provider.
type Rent struct {
	ID               string     `json:"id"`
	CustomerID       string     `json:"customer_id"`
	SpaceID          string     `json:"space_id"`
	ProviderID       string     `json:"provider_id"`
	InvoiceID        string     `json:"invoice_id"`
	Price            float64    `json:"price"` // snapshot at request time
	PaidAttempt      bool       `json:"paid_attempt"`
	Status           RentStatus `json:"status"`
	TTL              *time.Time `json:"ttl,omitempty"`
	ContractDocument *string    `json:"contract_document,omitempty"` // BAA object key
	HandledBy        []string   `json:"handled_by"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// RentWithInvoice is the read model returned by the API.
type RentWithInvoice struct {
	Rent
	Invoice *Invoice `json:"invoice"`
}

var ErrTTLInvariant = errors.New("ttl must be set iff status is active")

// Validate checks the ttl/status invariant.
func (r *Rent) Validate() error {
	active := r.Status == RentStatusActive
	if active != (r.TTL != nil) {
		return ErrTTLInvariant
	}
	return nil
}

// MarkHandledBy appends id to HandledBy unless already present.
func (r *Rent) MarkHandledBy(id string) {
	for _, h := range r.HandledBy {
		if h == id {
			return
		}
	}
	r.HandledBy = append(r.HandledBy, id)
}

// Clone returns a deep copy.
func (r *Rent) Clone() *Rent {
	c := *r
	c.HandledBy = append([]string(nil), r.HandledBy...)
	if r.TTL != nil {
		ttl := *r.TTL
		c.TTL = &ttl
	}
	if r.ContractDocument != nil {
		doc := *r.ContractDocument
		c.ContractDocument = &doc
	}
	return &c
}

type CreateRentRequest struct {
	SpaceID string `json:"space_id"`
}

// ProvisionRequest defaults to approval when Approve is omitted.
type ProvisionRequest struct {
	Approve *bool `json:"approve"`
}

type VerifyInvoiceRequest struct {
	Action *bool `json:"action"`
}
