package services

import (
	"context"
	"fmt"
	"log"
	"path"
	"strings"
	"time"

	"dcspace-backend/internal/apperror"
	"dcspace-backend/internal/metrics"
	"dcspace-backend/internal/models"
	"dcspace-backend/internal/repositories"
	"dcspace-backend/internal/storage"
	"dcspace-backend/internal/timeutil"

	"github.com/google/uuid"
)

const storageCleanupTimeout = 10 * time.Second

// EventPublisher receives domain events after they are committed.
type EventPublisher interface {
	Publish(event models.RentEvent)
}

// RentCache holds rent read models between transitions.
type RentCache interface {
	Get(ctx context.Context, rentID string) (*models.RentWithInvoice, bool)
	// Fill caches a view read outside a transaction. It never replaces a
	// view that is already cached.
	Fill(ctx context.Context, view *models.RentWithInvoice)
	// Store caches a committed view, replacing older ones.
	Store(ctx context.Context, view *models.RentWithInvoice) error
	Invalidate(ctx context.Context, rentID string)
}

// RentService drives the rent state machine and the payment verification
// workflow. Every operation runs in one store transaction; guards are
// evaluated on rows locked by that transaction.
type RentService struct {
	store          repositories.RentStore
	objects        storage.ObjectStore
	clock          timeutil.Clock
	events         EventPublisher
	cache          RentCache
	recurringCount int
}

func NewRentService(store repositories.RentStore, objects storage.ObjectStore, clock timeutil.Clock) *RentService {
	return &RentService{
		store:          store,
		objects:        objects,
		clock:          clock,
		recurringCount: DefaultRecurringCount,
	}
}

// SetEventPublisher wires the live event feed (optional).
func (s *RentService) SetEventPublisher(p EventPublisher) {
	s.events = p
}

// SetCache enables the read-model cache (optional).
func (s *RentService) SetCache(c RentCache) {
	s.cache = c
}

// SetRecurringCount overrides the number of monthly entries created at
// activation.
func (s *RentService) SetRecurringCount(n int) {
	if n > 0 {
		s.recurringCount = n
	}
}

// Request creates an unpaid rent and its ledger for a published, unclaimed
// space.
func (s *RentService) Request(ctx context.Context, caller models.Caller, spaceID string) (result *models.RentWithInvoice, err error) {
	const op = "rent.request"
	defer func() { observe(op, err) }()

	customer, ok := caller.(models.Customer)
	if !ok {
		return nil, denied(op, caller, "only customers can request a space")
	}
	if strings.TrimSpace(spaceID) == "" {
		return nil, apperror.InvalidArgument(op, "space_id is required")
	}

	var event models.RentEvent
	err = s.store.InTx(ctx, func(tx repositories.RentTx) error {
		space, err := tx.GetSpaceForUpdate(ctx, spaceID)
		if err != nil {
			return err
		}
		if !space.Claimable() {
			return apperror.Conflict(op, "space %s is not available", spaceID)
		}
		if err := tx.ClaimSpace(ctx, space.ID, customer.ID); err != nil {
			return err
		}

		now := s.clock.Now()
		rent := &models.Rent{
			ID:         uuid.NewString(),
			CustomerID: customer.ID,
			SpaceID:    space.ID,
			ProviderID: space.ProviderID,
			InvoiceID:  uuid.NewString(),
			Price:      space.Price,
			Status:     models.RentStatusUnpaid,
			HandledBy:  []string{customer.ID},
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		invoice := &models.Invoice{
			ID:     rent.InvoiceID,
			RentID: rent.ID,
			History: []models.InvoiceEntry{{
				InvoiceID:   RequestInvoiceID(now),
				ReleaseDate: now,
				Status:      models.InvoiceStatusUnpaid,
			}},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.InsertRent(ctx, rent, invoice); err != nil {
			return err
		}

		event = models.RentEvent{
			Type:       models.RentEventRequested,
			RentID:     rent.ID,
			InvoiceID:  invoice.History[0].InvoiceID,
			Actor:      customer.ID,
			Payload:    map[string]any{"space_id": space.ID, "price": rent.Price},
			OccurredAt: now,
		}
		if _, err := tx.InsertEvent(ctx, &event); err != nil {
			return err
		}

		result = &models.RentWithInvoice{Rent: *rent, Invoice: invoice}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Rent] Requested rent=%s space=%s customer=%s", result.ID, spaceID, customer.ID)
	s.committed(ctx, event, result)
	return result, nil
}

// Pay attaches a proof of payment to an unverified ledger entry.
// Resubmitting proof for the same entry overwrites it in place.
func (s *RentService) Pay(ctx context.Context, caller models.Caller, rentID, invoiceID string, proof storage.Document) (result *models.RentWithInvoice, err error) {
	const op = "rent.pay"
	defer func() { observe(op, err) }()

	customer, ok := caller.(models.Customer)
	if !ok {
		return nil, denied(op, caller, "only customers can pay")
	}
	if len(proof.Data) == 0 {
		return nil, apperror.InvalidArgument(op, "proof of payment is required")
	}

	var (
		uploaded string
		event    models.RentEvent
	)
	err = s.store.InTx(ctx, func(tx repositories.RentTx) error {
		rent, invoice, err := tx.LockRent(ctx, rentID)
		if err != nil {
			return err
		}
		if rent.CustomerID != customer.ID {
			return apperror.Forbidden(op, "rent %s belongs to another customer", rentID)
		}

		idx, entry, err := invoice.FindEntry(invoiceID)
		if err != nil || entry.Status == models.InvoiceStatusVerified {
			return apperror.NotFound(op, "no unverified invoice %s on rent %s", invoiceID, rentID)
		}

		now := s.clock.Now()
		if idx == 0 {
			if rent.Status != models.RentStatusUnpaid && rent.Status != models.RentStatusPending {
				return apperror.InvalidState(op, "rent %s is %s", rentID, rent.Status)
			}
		} else {
			if rent.Status != models.RentStatusActive {
				return apperror.InvalidState(op, "rent %s is %s", rentID, rent.Status)
			}
			if entry.ReleaseDate.After(now) {
				return apperror.InvalidState(op, "invoice %s is not payable before %s",
					invoiceID, entry.ReleaseDate.In(now.Location()).Format(timeutil.DateLayout))
			}
		}

		key, err := s.objects.Store(ctx, proof.Data, proof.ContentType,
			fmt.Sprintf("proofs/%s/%s%s", rent.ID, entry.InvoiceID, path.Ext(proof.Filename)))
		if err != nil {
			return err
		}
		uploaded = key

		err = invoice.UpdateEntry(invoiceID, func(_ int, e *models.InvoiceEntry) error {
			paidAt := now
			e.PaidAt = &paidAt
			e.ProofOfPaid = &key
			e.Status = models.InvoiceStatusPending
			return nil
		})
		if err != nil {
			return err
		}
		invoice.UpdatedAt = now

		rent.PaidAttempt = true
		if idx == 0 {
			rent.Status = models.RentStatusPending
		}
		rent.MarkHandledBy(customer.ID)
		rent.UpdatedAt = now

		if err := tx.SaveInvoice(ctx, invoice); err != nil {
			return err
		}
		if err := tx.SaveRent(ctx, rent); err != nil {
			return err
		}

		event = models.RentEvent{
			Type:       models.RentEventPaid,
			RentID:     rent.ID,
			InvoiceID:  invoiceID,
			Actor:      customer.ID,
			OccurredAt: now,
		}
		if _, err := tx.InsertEvent(ctx, &event); err != nil {
			return err
		}

		result = &models.RentWithInvoice{Rent: *rent, Invoice: invoice}
		return nil
	})
	if err != nil {
		s.discard(uploaded)
		return nil, err
	}

	log.Printf("[Rent] Proof submitted rent=%s invoice=%s", rentID, invoiceID)
	s.committed(ctx, event, result)
	return result, nil
}

// Provision approves (or rejects) the initial payment. Approval moves the
// rent to provisioned; rejection marks entry 0 rejected and leaves the rent
// pending so the customer can pay again.
func (s *RentService) Provision(ctx context.Context, caller models.Caller, rentID string, approve bool) (result *models.RentWithInvoice, err error) {
	const op = "rent.provision"
	defer func() { observe(op, err) }()

	admin, ok := caller.(models.Admin)
	if !ok {
		return nil, denied(op, caller, "only admins can provision")
	}

	var event models.RentEvent
	err = s.store.InTx(ctx, func(tx repositories.RentTx) error {
		rent, invoice, err := tx.LockRent(ctx, rentID)
		if err != nil {
			return err
		}
		if rent.Status != models.RentStatusPending || !rent.PaidAttempt {
			return apperror.PreconditionFailed(op, "rent %s has no payment awaiting verification", rentID)
		}
		if len(invoice.History) == 0 || invoice.History[0].ProofOfPaid == nil {
			return apperror.PreconditionFailed(op, "rent %s has no proof of payment", rentID)
		}

		now := s.clock.Now()
		entry := &invoice.History[0]
		adminID := admin.ID
		entry.VerifiedBy = &adminID
		if approve {
			entry.Status = models.InvoiceStatusVerified
			rent.Status = models.RentStatusProvisioned
		} else {
			entry.Status = models.InvoiceStatusRejected
		}
		invoice.UpdatedAt = now

		rent.PaidAttempt = false
		rent.MarkHandledBy(admin.ID)
		rent.UpdatedAt = now

		if err := tx.SaveInvoice(ctx, invoice); err != nil {
			return err
		}
		if err := tx.SaveRent(ctx, rent); err != nil {
			return err
		}

		event = models.RentEvent{
			Type:       models.RentEventProvisioned,
			RentID:     rent.ID,
			InvoiceID:  entry.InvoiceID,
			Actor:      admin.ID,
			OccurredAt: now,
		}
		if !approve {
			event.Type = models.RentEventProvisionDenied
		}
		if _, err := tx.InsertEvent(ctx, &event); err != nil {
			return err
		}

		result = &models.RentWithInvoice{Rent: *rent, Invoice: invoice}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Rent] Provision rent=%s approve=%t by admin=%s", rentID, approve, admin.ID)
	s.committed(ctx, event, result)
	return result, nil
}

// Activate stores the signed contract, schedules the recurring invoices and
// starts the contract.
func (s *RentService) Activate(ctx context.Context, caller models.Caller, rentID string, contract storage.Document) (result *models.RentWithInvoice, err error) {
	const op = "rent.activate"
	defer func() { observe(op, err) }()

	provider, ok := caller.(models.Provider)
	if !ok {
		return nil, denied(op, caller, "only providers can activate")
	}
	if len(contract.Data) == 0 {
		return nil, apperror.InvalidArgument(op, "contract document is required")
	}

	var (
		uploaded string
		event    models.RentEvent
	)
	err = s.store.InTx(ctx, func(tx repositories.RentTx) error {
		rent, invoice, err := tx.LockRent(ctx, rentID)
		if err != nil {
			return err
		}
		if rent.ProviderID != provider.ProviderID {
			return apperror.Forbidden(op, "rent %s belongs to another provider", rentID)
		}
		if rent.Status != models.RentStatusProvisioned {
			return apperror.PreconditionFailed(op, "rent %s is %s, not provisioned", rentID, rent.Status)
		}

		now := s.clock.Now()
		entries := ScheduleRecurringInvoices(now, s.recurringCount)
		if len(entries) == 0 {
			return fmt.Errorf("%s: empty billing schedule", op)
		}

		key, err := s.objects.Store(ctx, contract.Data, contract.ContentType,
			fmt.Sprintf("contracts/%s/baa%s", rent.ID, path.Ext(contract.Filename)))
		if err != nil {
			return err
		}
		uploaded = key

		if err := invoice.Append(entries...); err != nil {
			return err
		}
		invoice.UpdatedAt = now

		ttl := entries[0].ReleaseDate
		rent.TTL = &ttl
		rent.ContractDocument = &key
		rent.Status = models.RentStatusActive
		rent.MarkHandledBy(provider.ID)
		rent.UpdatedAt = now
		if err := rent.Validate(); err != nil {
			return err
		}

		if err := tx.SaveInvoice(ctx, invoice); err != nil {
			return err
		}
		if err := tx.SaveRent(ctx, rent); err != nil {
			return err
		}

		event = models.RentEvent{
			Type:       models.RentEventActivated,
			RentID:     rent.ID,
			Actor:      provider.ID,
			Payload:    map[string]any{"ttl": ttl, "scheduled": len(entries)},
			OccurredAt: now,
		}
		if _, err := tx.InsertEvent(ctx, &event); err != nil {
			return err
		}

		result = &models.RentWithInvoice{Rent: *rent, Invoice: invoice}
		return nil
	})
	if err != nil {
		s.discard(uploaded)
		return nil, err
	}

	log.Printf("[Rent] Activated rent=%s ttl=%s by provider=%s", rentID, result.TTL.Format(timeutil.DateLayout), provider.ProviderID)
	s.committed(ctx, event, result)
	return result, nil
}

// Verify accepts or rejects a recurring ledger entry. The initial entry is
// verified through Provision only. The rent status is never changed; its
// paidAttempt flag is cleared once no proof awaits verification.
func (s *RentService) Verify(ctx context.Context, caller models.Caller, rentID, invoiceID string, action bool) (result *models.RentWithInvoice, err error) {
	const op = "rent.verify"
	defer func() { observe(op, err) }()

	admin, ok := caller.(models.Admin)
	if !ok {
		return nil, denied(op, caller, "only admins can verify invoices")
	}

	var event models.RentEvent
	err = s.store.InTx(ctx, func(tx repositories.RentTx) error {
		rent, invoice, err := tx.LockRent(ctx, rentID)
		if err != nil {
			return err
		}

		err = invoice.UpdateEntry(invoiceID, func(idx int, e *models.InvoiceEntry) error {
			if idx == 0 {
				return apperror.InvalidArgument(op, "initial invoice must be verified through provisioning")
			}
			if e.Status == models.InvoiceStatusVerified {
				return apperror.Conflict(op, "invoice %s is already verified", invoiceID)
			}
			if action {
				adminID := admin.ID
				e.Status = models.InvoiceStatusVerified
				e.VerifiedBy = &adminID
			} else {
				e.Status = models.InvoiceStatusRejected
			}
			return nil
		})
		if err != nil {
			return err
		}

		now := s.clock.Now()
		invoice.UpdatedAt = now
		if err := tx.SaveInvoice(ctx, invoice); err != nil {
			return err
		}
		if rent.PaidAttempt && !invoice.AwaitingVerification() {
			rent.PaidAttempt = false
			rent.UpdatedAt = now
			if err := tx.SaveRent(ctx, rent); err != nil {
				return err
			}
		}

		event = models.RentEvent{
			Type:       models.RentEventVerified,
			RentID:     rent.ID,
			InvoiceID:  invoiceID,
			Actor:      admin.ID,
			OccurredAt: now,
		}
		if !action {
			event.Type = models.RentEventRejected
		}
		if _, err := tx.InsertEvent(ctx, &event); err != nil {
			return err
		}

		result = &models.RentWithInvoice{Rent: *rent, Invoice: invoice}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Rent] Verify rent=%s invoice=%s action=%t by admin=%s", rentID, invoiceID, action, admin.ID)
	s.committed(ctx, event, result)
	return result, nil
}

// Get returns a rent with its ledger to the owning customer, the owning
// provider or an admin.
func (s *RentService) Get(ctx context.Context, caller models.Caller, rentID string) (*models.RentWithInvoice, error) {
	const op = "rent.get"

	if s.cache != nil {
		if view, ok := s.cache.Get(ctx, rentID); ok {
			if err := authorizeRead(op, caller, &view.Rent); err != nil {
				return nil, err
			}
			return view, nil
		}
	}

	rent, invoice, err := s.store.GetRent(ctx, rentID)
	if err != nil {
		return nil, err
	}
	if err := authorizeRead(op, caller, rent); err != nil {
		return nil, err
	}
	view := &models.RentWithInvoice{Rent: *rent, Invoice: invoice}
	if s.cache != nil {
		s.cache.Fill(ctx, view)
	}
	return view, nil
}

// ResolveProof returns a temporary URL for an entry's proof of payment.
func (s *RentService) ResolveProof(ctx context.Context, caller models.Caller, rentID, invoiceID string) (string, error) {
	const op = "rent.resolve_proof"

	view, err := s.Get(ctx, caller, rentID)
	if err != nil {
		return "", err
	}
	_, entry, err := view.Invoice.FindEntry(invoiceID)
	if err != nil {
		return "", err
	}
	if entry.ProofOfPaid == nil {
		return "", apperror.NotFound(op, "invoice %s has no proof of payment", invoiceID)
	}
	return s.objects.Resolve(ctx, *entry.ProofOfPaid)
}

// ResolveContract returns a temporary URL for the signed contract.
func (s *RentService) ResolveContract(ctx context.Context, caller models.Caller, rentID string) (string, error) {
	const op = "rent.resolve_contract"

	view, err := s.Get(ctx, caller, rentID)
	if err != nil {
		return "", err
	}
	if view.ContractDocument == nil {
		return "", apperror.NotFound(op, "rent %s has no contract document", rentID)
	}
	return s.objects.Resolve(ctx, *view.ContractDocument)
}

// committed runs after a transition commits. The committed view replaces
// the cached one so a concurrent Get cannot fill in an older read.
func (s *RentService) committed(ctx context.Context, event models.RentEvent, view *models.RentWithInvoice) {
	if s.cache != nil {
		if err := s.cache.Store(ctx, view); err != nil {
			log.Printf("[Rent] Failed to cache rent %s: %v", event.RentID, err)
			s.cache.Invalidate(ctx, event.RentID)
		}
	}
	if s.events != nil {
		s.events.Publish(event)
	}
}

// discard removes an object uploaded by a transaction that did not commit.
func (s *RentService) discard(key string) {
	if key == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storageCleanupTimeout)
	defer cancel()
	if err := s.objects.Delete(ctx, key); err != nil {
		log.Printf("[Rent] Failed to remove orphaned object %s: %v", key, err)
	}
}

func authorizeRead(op string, caller models.Caller, rent *models.Rent) error {
	switch c := caller.(type) {
	case models.Admin:
		return nil
	case models.Customer:
		if c.ID == rent.CustomerID {
			return nil
		}
	case models.Provider:
		if c.ProviderID == rent.ProviderID {
			return nil
		}
	case nil:
		return apperror.New(apperror.KindUnauthorized, op, "authentication required")
	}
	return apperror.Forbidden(op, "rent %s is not accessible", rent.ID)
}

// denied distinguishes a missing identity from a wrong role.
func denied(op string, caller models.Caller, msg string) error {
	if caller == nil {
		return apperror.New(apperror.KindUnauthorized, op, "authentication required")
	}
	return apperror.Forbidden(op, "%s", msg)
}

func observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = string(apperror.KindOf(err))
	}
	metrics.RentTransitionsTotal.WithLabelValues(op, result).Inc()
}
