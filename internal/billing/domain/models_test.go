package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddIntervalClampsMonthEnd(t *testing.T) {
	cases := []struct {
		name     string
		start    time.Time
		interval string
		want     time.Time
	}{
		{"mid month", time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC), IntervalMonthly, time.Date(2025, 2, 15, 9, 0, 0, 0, time.UTC)},
		{"jan 31", time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), IntervalMonthly, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)},
		{"leap year", time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), IntervalMonthly, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)},
		{"mar 31", time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), IntervalMonthly, time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC)},
		{"december", time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), IntervalMonthly, time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)},
		{"yearly leap day", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), IntervalYearly, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := AddInterval(tc.start, tc.interval)
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(got), "got %s", got)
		})
	}

	_, err := AddInterval(time.Now(), "weekly")
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestInvoiceNumbers(t *testing.T) {
	at := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "INV-202503-", InvoiceNumberPrefix(at))
	assert.Equal(t, "INV-202503-0007", FormatInvoiceNumber(at, 7))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(InvoiceDraft, InvoiceIssued))
	assert.True(t, CanTransition(InvoiceIssued, InvoicePaid))
	assert.True(t, CanTransition(InvoiceIssued, InvoiceVoid))
	assert.False(t, CanTransition(InvoiceDraft, InvoicePaid))
	assert.False(t, CanTransition(InvoicePaid, InvoiceVoid))
	assert.False(t, CanTransition(InvoiceVoid, InvoiceIssued))
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "USD 12.05", FormatCents(1205, "USD"))
	assert.Equal(t, "EUR 0.00", FormatCents(0, "EUR"))
	assert.Equal(t, "USD -1.50", FormatCents(-150, "USD"))
}
