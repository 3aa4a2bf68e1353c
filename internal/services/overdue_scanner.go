package services

import (
	"context"
	"log"
	"time"

	"dcspace-backend/internal/metrics"
	"dcspace-backend/internal/models"
	"dcspace-backend/internal/repositories"
	"dcspace-backend/internal/timeutil"
)

const overdueLockKey = "overdue-scan"

// Locker provides a cluster-wide lock so only one replica scans at a time.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// OverdueScanner periodically reports recurring ledger entries whose release
// date passed without payment. It only emits invoice.overdue events; ledger
// and rent state are left untouched.
type OverdueScanner struct {
	store     repositories.RentStore
	clock     timeutil.Clock
	events    EventPublisher
	locker    Locker
	interval  time.Duration
	batchSize int
}

func NewOverdueScanner(store repositories.RentStore, clock timeutil.Clock, interval time.Duration, batchSize int) *OverdueScanner {
	if interval <= 0 {
		interval = time.Hour
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	return &OverdueScanner{
		store:     store,
		clock:     clock,
		interval:  interval,
		batchSize: batchSize,
	}
}

func (s *OverdueScanner) SetEventPublisher(p EventPublisher) {
	s.events = p
}

func (s *OverdueScanner) SetLocker(l Locker) {
	s.locker = l
}

// RunForever scans on every tick until ctx is cancelled.
func (s *OverdueScanner) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("[Overdue] Scanner started (interval %s)", s.interval)
	for {
		if n, err := s.RunOnce(ctx); err != nil {
			log.Printf("[Overdue] Scan failed: %v", err)
		} else if n > 0 {
			log.Printf("[Overdue] Reported %d overdue invoice(s)", n)
		}

		select {
		case <-ctx.Done():
			log.Println("[Overdue] Scanner stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single scan and returns how many new overdue entries
// were reported. Entries already reported are skipped by their dedupe key.
func (s *OverdueScanner) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() { metrics.OverdueScanDuration.Observe(time.Since(start).Seconds()) }()

	if s.locker != nil {
		release, ok, err := s.locker.TryLock(ctx, overdueLockKey, s.interval)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, nil
		}
		defer release()
	}

	now := s.clock.Now()
	overdue, err := s.store.ListOverdue(ctx, now, s.batchSize)
	if err != nil {
		return 0, err
	}

	reported := 0
	for _, o := range overdue {
		event := models.RentEvent{
			Type:      models.RentEventOverdue,
			RentID:    o.RentID,
			InvoiceID: o.InvoiceID,
			Payload: map[string]any{
				"customer_id":  o.CustomerID,
				"provider_id":  o.ProviderID,
				"release_date": o.ReleaseDate.In(now.Location()).Format(timeutil.DateLayout),
				"status":       string(o.Status),
			},
			DedupeKey:  models.OverdueDedupeKey(o.RentID, o.InvoiceID),
			OccurredAt: now,
		}

		created, err := s.store.RecordEvent(ctx, &event)
		if err != nil {
			return reported, err
		}
		if !created {
			continue
		}

		reported++
		metrics.OverdueInvoicesTotal.Inc()
		if s.events != nil {
			s.events.Publish(event)
		}
	}
	return reported, nil
}
