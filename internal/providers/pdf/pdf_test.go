package pdf

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleInvoice() InvoiceData {
	return InvoiceData{
		IssuerName:    "Switchboard",
		InvoiceNumber: "INV-202503-0001",
		Status:        "issued",
		IssueDate:     "2025-03-01",
		DueDate:       "2025-03-31",
		ServicePeriod: "2025-03-01 - 2025-03-31",
		BillToName:    "Acme",
		Items: []InvoiceItem{
			{Description: "Pro plan", Qty: 1, UnitPrice: "USD 49.00", Amount: "USD 49.00"},
			{Description: "Extra numbers", Qty: 3, UnitPrice: "USD 2.00", Amount: "USD 6.00"},
		},
		Subtotal:  "USD 55.00",
		Total:     "USD 55.00",
		AmountDue: "USD 55.00",
	}
}

func TestGenerateInvoice(t *testing.T) {
	doc, err := New().GenerateInvoice(context.Background(), sampleInvoice())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF")))
}

func TestGenerateReceipt(t *testing.T) {
	doc, err := New().GenerateReceipt(context.Background(), ReceiptData{InvoiceData: sampleInvoice(), DatePaid: "2025-03-10"})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF")))
}
