package pdf

import (
	"context"
	"strconv"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// InvoiceData holds preformatted values; amounts are already rendered with
// their currency.
type InvoiceData struct {
	IssuerName    string
	IssuerEmail   string
	InvoiceNumber string
	Status        string
	IssueDate     string
	DueDate       string
	ServicePeriod string

	BillToName string

	Items []InvoiceItem

	Subtotal  string
	Total     string
	AmountDue string
}

type InvoiceItem struct {
	Description string
	Qty         int
	UnitPrice   string
	Amount      string
}

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func (p *PDFProvider) GenerateInvoice(ctx context.Context, invoice InvoiceData) ([]byte, error) {
	m := newDocument()

	m.AddRow(14,
		text.NewCol(8, "Invoice", props.Text{Size: 20, Style: fontstyle.Bold, Align: align.Left}),
		text.NewCol(4, invoice.Status, props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right, Top: 4}),
	)
	addMeta(m, invoice,
		"Date of issue: "+invoice.IssueDate,
		"Date due: "+invoice.DueDate,
	)
	addParties(m, invoice)

	m.AddRow(15,
		text.NewCol(12, invoice.AmountDue+" due "+invoice.DueDate, props.Text{Size: 14, Style: fontstyle.Bold, Top: 5}),
	)
	addItems(m, invoice)
	addTotals(m, invoice, "Amount due", invoice.AmountDue)

	return generate(m)
}

func newDocument() core.Maroto {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()
	return maroto.New(cfg)
}

func addMeta(m core.Maroto, invoice InvoiceData, extra ...string) {
	lines := append([]string{"Invoice number: " + invoice.InvoiceNumber}, extra...)
	if invoice.ServicePeriod != "" {
		lines = append(lines, "Service period: "+invoice.ServicePeriod)
	}

	c := col.New(6)
	for i, l := range lines {
		c.Add(text.New(l, props.Text{Top: float64(i * 4)}))
	}
	m.AddRow(float64(len(lines)*4+6), c, col.New(6))
}

func addParties(m core.Maroto, invoice InvoiceData) {
	m.AddRow(24,
		col.New(6).Add(
			text.New(invoice.IssuerName, props.Text{Style: fontstyle.Bold}),
			text.New(invoice.IssuerEmail, props.Text{Top: 5}),
		),
		col.New(6).Add(
			text.New("Bill to", props.Text{Style: fontstyle.Bold}),
			text.New(invoice.BillToName, props.Text{Top: 5}),
		),
	)
}

func addItems(m core.Maroto, invoice InvoiceData) {
	m.AddRow(10,
		text.NewCol(6, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(2, line.NewCol(12))

	for _, item := range invoice.Items {
		m.AddRow(10,
			text.NewCol(6, item.Description, props.Text{Size: 9}),
			text.NewCol(2, strconv.Itoa(item.Qty), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.UnitPrice, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}
}

func addTotals(m core.Maroto, invoice InvoiceData, label, amount string) {
	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Subtotal", props.Text{Size: 9}),
		text.NewCol(2, invoice.Subtotal, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Total", props.Text{Size: 9}),
		text.NewCol(2, invoice.Total, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(10,
		col.New(8),
		text.NewCol(2, label, props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, amount, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
}

func generate(m core.Maroto) ([]byte, error) {
	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}
