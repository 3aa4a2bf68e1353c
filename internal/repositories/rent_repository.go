package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dcspace-backend/internal/apperror"
	"dcspace-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type RentRepository struct {
	DB *pgxpool.Pool
}

func NewRentRepository(db *pgxpool.Pool) *RentRepository {
	return &RentRepository{DB: db}
}

// InTx runs fn inside a READ COMMITTED transaction; row locks taken by
// LockRent and GetSpaceForUpdate serialize competing transitions.
func (r *RentRepository) InTx(ctx context.Context, fn func(tx RentTx) error) error {
	return pgx.BeginFunc(ctx, r.DB, func(tx pgx.Tx) error {
		return fn(&pgRentTx{q: tx})
	})
}

func (r *RentRepository) GetRent(ctx context.Context, rentID string) (*models.Rent, *models.Invoice, error) {
	return loadRent(ctx, r.DB, rentID, false)
}

func (r *RentRepository) RecordEvent(ctx context.Context, event *models.RentEvent) (bool, error) {
	return insertEvent(ctx, r.DB, event)
}

func (r *RentRepository) ListOverdue(ctx context.Context, asOf time.Time, limit int) ([]models.OverdueEntry, error) {
	if limit <= 0 {
		limit = 500
	}

	rows, err := r.DB.Query(ctx,
		`SELECT r.id, r.customer_id, r.provider_id, e.entry_id, e.release_date, e.status
		 FROM invoice_entries e
		 JOIN invoices i ON i.id = e.invoice_id
		 JOIN rents r ON r.id = i.rent_id
		 WHERE r.status = $1
		   AND e.position > 0
		   AND e.status IN ($2, $3)
		   AND e.release_date < $4
		   AND NOT EXISTS (
		       SELECT 1 FROM rent_events ev
		       WHERE ev.dedupe_key = 'overdue:' || r.id || ':' || e.entry_id)
		 ORDER BY e.release_date, r.id
		 LIMIT $5`,
		models.RentStatusActive, models.InvoiceStatusUnpaid, models.InvoiceStatusRejected, asOf, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue entries: %w", err)
	}
	defer rows.Close()

	var overdue []models.OverdueEntry
	for rows.Next() {
		var o models.OverdueEntry
		if err := rows.Scan(&o.RentID, &o.CustomerID, &o.ProviderID, &o.InvoiceID, &o.ReleaseDate, &o.Status); err != nil {
			return nil, err
		}
		overdue = append(overdue, o)
	}
	return overdue, rows.Err()
}

type pgRentTx struct {
	q querier
}

func (t *pgRentTx) GetSpaceForUpdate(ctx context.Context, spaceID string) (*models.Space, error) {
	var s models.Space
	err := t.q.QueryRow(ctx,
		`SELECT id, provider_id, price, published, rented_by
		 FROM spaces WHERE id = $1 FOR UPDATE`, spaceID,
	).Scan(&s.ID, &s.ProviderID, &s.Price, &s.Published, &s.RentedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("spaces.get", "space %s not found", spaceID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load space: %w", err)
	}
	return &s, nil
}

func (t *pgRentTx) ClaimSpace(ctx context.Context, spaceID, customerID string) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE spaces SET rented_by = $2, updated_at = NOW()
		 WHERE id = $1 AND published AND rented_by IS NULL`,
		spaceID, customerID,
	)
	if err != nil {
		return fmt.Errorf("failed to claim space: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.Conflict("spaces.claim", "space %s is not available", spaceID)
	}
	return nil
}

func (t *pgRentTx) InsertRent(ctx context.Context, rent *models.Rent, invoice *models.Invoice) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO rents (id, customer_id, space_id, provider_id, invoice_id, price,
		                    paid_attempt, status, ttl, contract_document, handled_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		rent.ID, rent.CustomerID, rent.SpaceID, rent.ProviderID, rent.InvoiceID, rent.Price,
		rent.PaidAttempt, rent.Status, rent.TTL, rent.ContractDocument, rent.HandledBy,
		rent.CreatedAt, rent.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert rent: %w", err)
	}

	_, err = t.q.Exec(ctx,
		`INSERT INTO invoices (id, rent_id, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
		invoice.ID, invoice.RentID, invoice.CreatedAt, invoice.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert invoice: %w", err)
	}

	return t.SaveInvoice(ctx, invoice)
}

func (t *pgRentTx) LockRent(ctx context.Context, rentID string) (*models.Rent, *models.Invoice, error) {
	return loadRent(ctx, t.q, rentID, true)
}

func (t *pgRentTx) SaveRent(ctx context.Context, rent *models.Rent) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE rents
		 SET price = $2, paid_attempt = $3, status = $4, ttl = $5,
		     contract_document = $6, handled_by = $7, updated_at = $8
		 WHERE id = $1`,
		rent.ID, rent.Price, rent.PaidAttempt, rent.Status, rent.TTL,
		rent.ContractDocument, rent.HandledBy, rent.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update rent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("rents.save", "rent %s not found", rent.ID)
	}
	return nil
}

// SaveInvoice upserts every ledger entry by position in one batch.
func (t *pgRentTx) SaveInvoice(ctx context.Context, invoice *models.Invoice) error {
	batch := &pgx.Batch{}
	batch.Queue(`UPDATE invoices SET updated_at = $2 WHERE id = $1`, invoice.ID, invoice.UpdatedAt)
	for pos, e := range invoice.History {
		batch.Queue(
			`INSERT INTO invoice_entries (invoice_id, position, entry_id, release_date, paid_at,
			                              proof_of_paid, verified_by, status, price)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (invoice_id, position) DO UPDATE
			 SET paid_at = EXCLUDED.paid_at,
			     proof_of_paid = EXCLUDED.proof_of_paid,
			     verified_by = EXCLUDED.verified_by,
			     status = EXCLUDED.status,
			     price = EXCLUDED.price`,
			invoice.ID, pos, e.InvoiceID, e.ReleaseDate, e.PaidAt,
			e.ProofOfPaid, e.VerifiedBy, e.Status, e.Price,
		)
	}

	results := t.q.SendBatch(ctx, batch)
	defer results.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to save invoice entries: %w", err)
		}
	}
	return nil
}

func (t *pgRentTx) InsertEvent(ctx context.Context, event *models.RentEvent) (bool, error) {
	return insertEvent(ctx, t.q, event)
}

func loadRent(ctx context.Context, q querier, rentID string, forUpdate bool) (*models.Rent, *models.Invoice, error) {
	query := `SELECT id, customer_id, space_id, provider_id, invoice_id, price, paid_attempt,
	                 status, ttl, contract_document, handled_by, created_at, updated_at
	          FROM rents WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var rent models.Rent
	err := q.QueryRow(ctx, query, rentID).Scan(
		&rent.ID, &rent.CustomerID, &rent.SpaceID, &rent.ProviderID, &rent.InvoiceID,
		&rent.Price, &rent.PaidAttempt, &rent.Status, &rent.TTL, &rent.ContractDocument,
		&rent.HandledBy, &rent.CreatedAt, &rent.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, apperror.NotFound("rents.get", "rent %s not found", rentID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load rent: %w", err)
	}

	invoice := models.Invoice{ID: rent.InvoiceID, RentID: rent.ID}
	err = q.QueryRow(ctx,
		`SELECT created_at, updated_at FROM invoices WHERE id = $1`, rent.InvoiceID,
	).Scan(&invoice.CreatedAt, &invoice.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, apperror.NotFound("invoices.get", "invoice %s not found", rent.InvoiceID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load invoice: %w", err)
	}

	rows, err := q.Query(ctx,
		`SELECT entry_id, release_date, paid_at, proof_of_paid, verified_by, status, price
		 FROM invoice_entries WHERE invoice_id = $1 ORDER BY position`, rent.InvoiceID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load invoice entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e models.InvoiceEntry
		if err := rows.Scan(&e.InvoiceID, &e.ReleaseDate, &e.PaidAt, &e.ProofOfPaid,
			&e.VerifiedBy, &e.Status, &e.Price); err != nil {
			return nil, nil, err
		}
		invoice.History = append(invoice.History, e)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	return &rent, &invoice, nil
}

func insertEvent(ctx context.Context, q querier, event *models.RentEvent) (bool, error) {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return false, fmt.Errorf("failed to encode event payload: %w", err)
	}

	var dedupe *string
	if event.DedupeKey != "" {
		dedupe = &event.DedupeKey
	}

	err = q.QueryRow(ctx,
		`INSERT INTO rent_events (event_type, rent_id, invoice_entry_id, actor, payload, dedupe_key, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (dedupe_key) DO NOTHING
		 RETURNING id`,
		event.Type, event.RentID, event.InvoiceID, event.Actor, payload, dedupe, event.OccurredAt,
	).Scan(&event.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert rent event: %w", err)
	}
	return true, nil
}
