package models

import (
	"errors"
	"testing"
	"time"

	"dcspace-backend/internal/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLedger() *Invoice {
	release := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	return &Invoice{
		ID:     "inv-1",
		RentID: "rent-1",
		History: []InvoiceEntry{
			{InvoiceID: "req-1", ReleaseDate: release, Status: InvoiceStatusUnpaid},
			{InvoiceID: "rnt-202402-1", ReleaseDate: release.AddDate(0, 1, -2), Status: InvoiceStatusUnpaid},
		},
	}
}

func TestFindEntry(t *testing.T) {
	inv := testLedger()

	idx, entry, err := inv.FindEntry("rnt-202402-1")
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assert.True(t, entry.IsRecurring())

	_, _, err = inv.FindEntry("missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUpdateEntryAppliesMutation(t *testing.T) {
	inv := testLedger()

	err := inv.UpdateEntry("req-1", func(idx int, e *InvoiceEntry) error {
		assert.Equal(t, 0, idx)
		e.Status = InvoiceStatusPending
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, InvoiceStatusPending, inv.History[0].Status)
	assert.Len(t, inv.History, 2)
}

func TestUpdateEntryDiscardsOnError(t *testing.T) {
	inv := testLedger()
	boom := errors.New("boom")

	err := inv.UpdateEntry("req-1", func(_ int, e *InvoiceEntry) error {
		e.Status = InvoiceStatusVerified
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, InvoiceStatusUnpaid, inv.History[0].Status)
}

func TestUpdateEntryMissing(t *testing.T) {
	inv := testLedger()
	err := inv.UpdateEntry("nope", func(int, *InvoiceEntry) error { return nil })
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestAppendRejectsDuplicateIDs(t *testing.T) {
	inv := testLedger()
	err := inv.Append(InvoiceEntry{InvoiceID: "rnt-202402-1"})
	assert.ErrorIs(t, err, apperror.ErrConflict)
	assert.Len(t, inv.History, 2)

	require.NoError(t, inv.Append(InvoiceEntry{InvoiceID: "rnt-202403-2"}))
	assert.Len(t, inv.History, 3)
}

func TestAwaitingVerification(t *testing.T) {
	inv := testLedger()
	assert.False(t, inv.AwaitingVerification())

	inv.History[1].Status = InvoiceStatusPending
	assert.True(t, inv.AwaitingVerification())

	inv.History[1].Status = InvoiceStatusRejected
	assert.False(t, inv.AwaitingVerification())
}

func TestCloneIsDeep(t *testing.T) {
	inv := testLedger()
	key := "proofs/a.png"
	inv.History[0].ProofOfPaid = &key

	c := inv.Clone()
	*c.History[0].ProofOfPaid = "changed"
	c.History[1].Status = InvoiceStatusVerified

	assert.Equal(t, "proofs/a.png", *inv.History[0].ProofOfPaid)
	assert.Equal(t, InvoiceStatusUnpaid, inv.History[1].Status)
}

func TestEntryAmount(t *testing.T) {
	e := InvoiceEntry{}
	assert.Equal(t, 100.0, e.Amount(100))
	override := 80.0
	e.Price = &override
	assert.Equal(t, 80.0, e.Amount(100))
}

func TestRentValidateAndHandledBy(t *testing.T) {
	r := &Rent{Status: RentStatusProvisioned}
	assert.NoError(t, r.Validate())

	r.Status = RentStatusActive
	assert.ErrorIs(t, r.Validate(), ErrTTLInvariant)

	now := time.Now()
	r.TTL = &now
	assert.NoError(t, r.Validate())

	r.MarkHandledBy("cust-1")
	r.MarkHandledBy("admin-1")
	r.MarkHandledBy("cust-1")
	assert.Equal(t, []string{"cust-1", "admin-1"}, r.HandledBy)
}
