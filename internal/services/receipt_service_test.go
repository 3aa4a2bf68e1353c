package services

import (
	"bytes"
	"testing"

	"dcspace-backend/internal/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderInvoicePDF(t *testing.T) {
	f := newFixture(t)
	view := f.active(t)
	receipts := NewReceiptService(f.clock)

	out, err := receipts.RenderInvoicePDF(view, view.Invoice.History[3].InvoiceID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	_, err = receipts.RenderInvoicePDF(view, "rnt-000000-0")
	require.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestFormatAmount(t *testing.T) {
	cases := map[float64]string{
		0:         "0,00",
		999.5:     "999,50",
		1500000:   "1.500.000,00",
		-12345.67: "-12.345,67",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatAmount(in))
	}
}
