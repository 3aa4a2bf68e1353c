package services

import (
	"bytes"
	"fmt"

	"dcspace-backend/internal/models"
	"dcspace-backend/internal/timeutil"

	"github.com/jung-kurt/gofpdf/v2"
)

// ReceiptService renders printable invoices for ledger entries.
type ReceiptService struct {
	clock timeutil.Clock
}

func NewReceiptService(clock timeutil.Clock) *ReceiptService {
	return &ReceiptService{clock: clock}
}

// RenderInvoicePDF renders one ledger entry of view as an A4 PDF.
func (s *ReceiptService) RenderInvoicePDF(view *models.RentWithInvoice, invoiceID string) ([]byte, error) {
	_, entry, err := view.Invoice.FindEntry(invoiceID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(now)
	pdf.SetTitle("Invoice "+entry.InvoiceID, false)
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()

	// Header
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(190, 10, "Data Center Space Rental - Invoice", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(190, 6, fmt.Sprintf("Generated: %s", now.Format(timeutil.DisplayLayout)), "", 1, "C", false, 0, "")
	pdf.Ln(5)

	// Contract section
	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Contract", "1", 1, "L", true, 0, "")
	pdf.SetFont("Arial", "", 10)
	row := func(label, value string) {
		pdf.CellFormat(50, 7, label, "LB", 0, "L", false, 0, "")
		pdf.CellFormat(140, 7, value, "RB", 1, "L", false, 0, "")
	}
	row("Rent", view.ID)
	row("Space", view.SpaceID)
	row("Customer", view.CustomerID)
	row("Provider", view.ProviderID)
	row("Contract status", string(view.Status))
	pdf.Ln(5)

	// Entry section
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Invoice", "1", 1, "L", true, 0, "")
	pdf.SetFont("Arial", "", 10)
	row("Invoice", entry.InvoiceID)
	row("Due date", entry.ReleaseDate.In(now.Location()).Format(timeutil.DisplayLayout))
	row("Status", string(entry.Status))
	if entry.PaidAt != nil {
		row("Paid at", entry.PaidAt.In(now.Location()).Format(timeutil.DisplayLayout))
	}
	if entry.VerifiedBy != nil {
		row("Verified by", *entry.VerifiedBy)
	}

	pdf.Ln(3)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(140, 9, "Amount due", "1", 0, "R", true, 0, "")
	pdf.CellFormat(50, 9, FormatAmount(entry.Amount(view.Price)), "1", 1, "R", true, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render invoice pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// FormatAmount renders an amount with thousands separators, e.g. 1.250.000,00.
func FormatAmount(amount float64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	cents := int64(amount*100 + 0.5)
	whole, frac := cents/100, cents%100

	digits := fmt.Sprintf("%d", whole)
	var out []byte
	for i, d := range []byte(digits) {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out = append(out, '.')
		}
		out = append(out, d)
	}
	s := fmt.Sprintf("%s,%02d", out, frac)
	if neg {
		s = "-" + s
	}
	return s
}
