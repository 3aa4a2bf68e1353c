package services

import (
	"fmt"
	"time"

	"dcspace-backend/internal/models"
	"dcspace-backend/internal/timeutil"
)

// DefaultRecurringCount is the number of monthly entries created at activation.
const DefaultRecurringCount = 11

// ScheduleRecurringInvoices returns count monthly ledger entries following
// activation. Each entry falls on the activation's day of month, clamped to
// the last day of the target month (Jan 31 -> Feb 28/29), at local midnight
// in the activation's location.
func ScheduleRecurringInvoices(activation time.Time, count int) []models.InvoiceEntry {
	if count <= 0 {
		return nil
	}

	loc := activation.Location()
	baseMonth := int(activation.Month()) - 1 // 0-based
	entries := make([]models.InvoiceEntry, 0, count)

	for i := 1; i <= count; i++ {
		target := baseMonth + i
		year := activation.Year() + target/12
		month := time.Month(target%12 + 1)
		day := min(activation.Day(), timeutil.DaysIn(year, month, loc))

		release := time.Date(year, month, day, 0, 0, 0, 0, loc)
		entries = append(entries, models.InvoiceEntry{
			InvoiceID:   RecurringInvoiceID(release),
			ReleaseDate: release,
			Status:      models.InvoiceStatusUnpaid,
		})
	}
	return entries
}

// RecurringInvoiceID formats rnt-YYYYMM-<release epoch millis>.
func RecurringInvoiceID(release time.Time) string {
	return fmt.Sprintf("%s%04d%02d-%d", models.RecurringEntryPrefix, release.Year(), int(release.Month()), release.UnixMilli())
}

// RequestInvoiceID formats req-<epoch millis> for the initial ledger entry.
func RequestInvoiceID(now time.Time) string {
	return fmt.Sprintf("%s%d", models.RequestEntryPrefix, now.UnixMilli())
}
