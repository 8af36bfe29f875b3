package pdf

import (
	"context"

	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type ReceiptData struct {
	InvoiceData
	DatePaid string
}

func (p *PDFProvider) GenerateReceipt(ctx context.Context, receipt ReceiptData) ([]byte, error) {
	m := newDocument()

	m.AddRow(14,
		text.NewCol(12, "Receipt", props.Text{Size: 20, Style: fontstyle.Bold, Align: align.Left}),
	)
	addMeta(m, receipt.InvoiceData, "Date paid: "+receipt.DatePaid)
	addParties(m, receipt.InvoiceData)

	m.AddRow(15,
		text.NewCol(12, receipt.Total+" paid on "+receipt.DatePaid, props.Text{Size: 14, Style: fontstyle.Bold, Top: 5}),
	)
	addItems(m, receipt.InvoiceData)
	addTotals(m, receipt.InvoiceData, "Amount paid", receipt.Total)

	return generate(m)
}
