package pdf

import "context"

// Provider renders billing documents.
type Provider interface {
	GenerateInvoice(ctx context.Context, data InvoiceData) ([]byte, error)
	GenerateReceipt(ctx context.Context, data ReceiptData) ([]byte, error)
}
