// Package testutil holds in-memory collaborators for service and handler tests.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"dcspace-backend/internal/apperror"
	"dcspace-backend/internal/models"
	"dcspace-backend/internal/repositories"
)

// MemoryStore is an in-memory RentStore. Transactions are serialized and
// work on copies that are committed only when the callback succeeds.
type MemoryStore struct {
	mu    sync.Mutex
	state memState
}

type memState struct {
	spaces   map[string]*models.Space
	rents    map[string]*models.Rent
	invoices map[string]*models.Invoice // keyed by rent id
	events   []models.RentEvent
	dedupe   map[string]bool
	nextID   int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: memState{
		spaces:   map[string]*models.Space{},
		rents:    map[string]*models.Rent{},
		invoices: map[string]*models.Invoice{},
		dedupe:   map[string]bool{},
	}}
}

// AddSpace seeds a catalog space.
func (m *MemoryStore) AddSpace(space models.Space) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := space
	m.state.spaces[s.ID] = &s
}

func (m *MemoryStore) Space(id string) (models.Space, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.state.spaces[id]
	if !ok {
		return models.Space{}, false
	}
	return *s, true
}

// Events returns every recorded event in insertion order.
func (m *MemoryStore) Events() []models.RentEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.RentEvent(nil), m.state.events...)
}

// PutRent seeds a rent and its ledger directly.
func (m *MemoryStore) PutRent(rent *models.Rent, invoice *models.Invoice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.rents[rent.ID] = rent.Clone()
	m.state.invoices[rent.ID] = invoice.Clone()
}

func (m *MemoryStore) InTx(ctx context.Context, fn func(tx repositories.RentTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memTx{state: m.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

func (m *MemoryStore) GetRent(_ context.Context, rentID string) (*models.Rent, *models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.load(rentID)
}

func (m *MemoryStore) ListOverdue(_ context.Context, asOf time.Time, limit int) ([]models.OverdueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.OverdueEntry
	for _, rent := range m.state.rents {
		if rent.Status != models.RentStatusActive {
			continue
		}
		inv := m.state.invoices[rent.ID]
		for i, e := range inv.History {
			if i == 0 || !e.ReleaseDate.Before(asOf) {
				continue
			}
			if e.Status != models.InvoiceStatusUnpaid && e.Status != models.InvoiceStatusRejected {
				continue
			}
			if m.state.dedupe[models.OverdueDedupeKey(rent.ID, e.InvoiceID)] {
				continue
			}
			out = append(out, models.OverdueEntry{
				RentID:      rent.ID,
				CustomerID:  rent.CustomerID,
				ProviderID:  rent.ProviderID,
				InvoiceID:   e.InvoiceID,
				ReleaseDate: e.ReleaseDate,
				Status:      e.Status,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReleaseDate.Equal(out[j].ReleaseDate) {
			return out[i].ReleaseDate.Before(out[j].ReleaseDate)
		}
		return out[i].RentID < out[j].RentID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) RecordEvent(_ context.Context, event *models.RentEvent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.insertEvent(event), nil
}

type memTx struct {
	state memState
}

func (t *memTx) GetSpaceForUpdate(_ context.Context, spaceID string) (*models.Space, error) {
	s, ok := t.state.spaces[spaceID]
	if !ok {
		return nil, apperror.NotFound("space.get", "space %s not found", spaceID)
	}
	c := *s
	return &c, nil
}

func (t *memTx) ClaimSpace(_ context.Context, spaceID, customerID string) error {
	s, ok := t.state.spaces[spaceID]
	if !ok || !s.Claimable() {
		return apperror.Conflict("space.claim", "space %s is not available", spaceID)
	}
	c := *s
	id := customerID
	c.RentedBy = &id
	t.state.spaces[spaceID] = &c
	return nil
}

func (t *memTx) InsertRent(_ context.Context, rent *models.Rent, invoice *models.Invoice) error {
	if _, exists := t.state.rents[rent.ID]; exists {
		return apperror.Conflict("rent.insert", "rent %s already exists", rent.ID)
	}
	t.state.rents[rent.ID] = rent.Clone()
	t.state.invoices[rent.ID] = invoice.Clone()
	return nil
}

func (t *memTx) LockRent(_ context.Context, rentID string) (*models.Rent, *models.Invoice, error) {
	return t.state.load(rentID)
}

func (t *memTx) SaveRent(_ context.Context, rent *models.Rent) error {
	if _, ok := t.state.rents[rent.ID]; !ok {
		return apperror.NotFound("rent.save", "rent %s not found", rent.ID)
	}
	t.state.rents[rent.ID] = rent.Clone()
	return nil
}

func (t *memTx) SaveInvoice(_ context.Context, invoice *models.Invoice) error {
	if _, ok := t.state.invoices[invoice.RentID]; !ok {
		return apperror.NotFound("invoice.save", "invoice %s not found", invoice.ID)
	}
	t.state.invoices[invoice.RentID] = invoice.Clone()
	return nil
}

func (t *memTx) InsertEvent(_ context.Context, event *models.RentEvent) (bool, error) {
	return t.state.insertEvent(event), nil
}

func (s *memState) load(rentID string) (*models.Rent, *models.Invoice, error) {
	rent, ok := s.rents[rentID]
	if !ok {
		return nil, nil, apperror.NotFound("rent.get", "rent %s not found", rentID)
	}
	return rent.Clone(), s.invoices[rentID].Clone(), nil
}

func (s *memState) insertEvent(event *models.RentEvent) bool {
	if event.DedupeKey != "" {
		if s.dedupe[event.DedupeKey] {
			return false
		}
		s.dedupe[event.DedupeKey] = true
	}
	s.nextID++
	event.ID = s.nextID
	s.events = append(s.events, *event)
	return true
}

// clone copies the maps; stored values are replaced, never mutated, so the
// pointers can be shared.
func (s memState) clone() memState {
	c := memState{
		spaces:   make(map[string]*models.Space, len(s.spaces)),
		rents:    make(map[string]*models.Rent, len(s.rents)),
		invoices: make(map[string]*models.Invoice, len(s.invoices)),
		events:   append([]models.RentEvent(nil), s.events...),
		dedupe:   make(map[string]bool, len(s.dedupe)),
		nextID:   s.nextID,
	}
	for k, v := range s.spaces {
		c.spaces[k] = v
	}
	for k, v := range s.rents {
		c.rents[k] = v
	}
	for k, v := range s.invoices {
		c.invoices[k] = v
	}
	for k, v := range s.dedupe {
		c.dedupe[k] = v
	}
	return c
}
