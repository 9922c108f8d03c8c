package document

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/facturio/backend/internal/domain/billing"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// TemplateEngine renders invoices and credit notes to HTML using Go's
// html/template with locale-aware amount formatting.
type TemplateEngine struct {
	printer *message.Printer
	tmpl    *template.Template
}

// NewTemplateEngine creates an engine for the given BCP 47 locale tag.
// An unparseable tag falls back to Dutch (decimal comma).
func NewTemplateEngine(locale string) *TemplateEngine {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Dutch
	}
	e := &TemplateEngine{printer: message.NewPrinter(tag)}

	funcMap := template.FuncMap{
		"formatAmount": e.formatAmount,
		"formatDate":   formatDate,
	}
	e.tmpl = template.Must(template.New("invoice").Funcs(funcMap).Parse(invoiceTemplate))
	return e
}

func (e *TemplateEngine) formatAmount(d decimal.Decimal) string {
	f, _ := d.Float64()
	return e.printer.Sprint(number.Decimal(f,
		number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}

func formatDate(t time.Time) string {
	return t.Format("02-01-2006")
}

// lineRow is one row of the document's item table
type lineRow struct {
	Description string
	Quantity    decimal.Decimal
	Unit        string
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
}

// invoiceDocument is the data handed to the invoice template
type invoiceDocument struct {
	Title         string
	Number        string
	ClientName    string
	IssueDate     time.Time
	DueDate       time.Time
	QuoteNumber   string
	Lines         []lineRow
	Subtotal      decimal.Decimal
	HasDiscount   bool
	Discount      decimal.Decimal
	NetAmount     decimal.Decimal
	VATAmount     decimal.Decimal
	TotalWithVAT  decimal.Decimal
	ShowDeposit   bool
	DepositAmount decimal.Decimal
	Payable       decimal.Decimal
	IsCreditNote  bool
}

// RenderInvoiceHTML produces the printable HTML for an invoice or
// credit note. Deposit and final invoices display the full project
// totals with the deposit broken out; only the payable amount differs.
func (e *TemplateEngine) RenderInvoiceHTML(inv *billing.Invoice) (string, error) {
	if inv == nil {
		return "", fmt.Errorf("invoice is required")
	}

	doc := invoiceDocument{
		Title:        documentTitle(inv),
		Number:       inv.Number,
		ClientName:   inv.ClientName,
		IssueDate:    inv.IssueDate,
		DueDate:      inv.DueDate,
		QuoteNumber:  inv.QuoteNumber,
		Subtotal:     inv.Breakdown.Subtotal,
		HasDiscount:  !inv.Breakdown.DiscountAmount.IsZero(),
		Discount:     inv.Breakdown.DiscountAmount,
		NetAmount:    inv.Breakdown.NetAmount,
		VATAmount:    inv.Breakdown.VATAmount,
		TotalWithVAT: inv.Breakdown.TotalWithVAT,
		Payable:      inv.Amount,
		IsCreditNote: inv.IsCreditNote(),
	}
	for _, item := range inv.Items {
		doc.Lines = append(doc.Lines, lineRow{
			Description: item.Description,
			Quantity:    item.Quantity,
			Unit:        item.Unit,
			UnitPrice:   item.UnitPrice,
			LineTotal:   item.LineTotal,
		})
	}

	switch inv.Variant.(type) {
	case billing.DepositInvoice, billing.FinalInvoice:
		doc.ShowDeposit = true
		doc.DepositAmount = inv.Breakdown.DepositAmount
	}

	var buf bytes.Buffer
	if err := e.tmpl.Execute(&buf, doc); err != nil {
		return "", fmt.Errorf("failed to render invoice template: %w", err)
	}
	return buf.String(), nil
}

func documentTitle(inv *billing.Invoice) string {
	switch inv.Variant.(type) {
	case billing.CreditNote:
		return "Credit note " + inv.Number
	case billing.DepositInvoice:
		return "Deposit invoice " + inv.Number
	case billing.FinalInvoice:
		return "Final invoice " + inv.Number
	default:
		return "Invoice " + inv.Number
	}
}

const invoiceTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>{{.Title}}</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; font-size: 12px; color: #222; }
h1 { font-size: 20px; margin-bottom: 2px; }
table.items { width: 100%; border-collapse: collapse; margin-top: 16px; }
table.items th { text-align: left; border-bottom: 1px solid #222; padding: 4px; }
table.items td { border-bottom: 1px solid #ddd; padding: 4px; }
td.amount, th.amount { text-align: right; }
table.totals { margin-top: 12px; margin-left: auto; }
table.totals td { padding: 2px 8px; }
tr.payable td { font-weight: bold; border-top: 1px solid #222; }
.meta { color: #555; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p class="meta">
{{.ClientName}}<br>
Issued {{formatDate .IssueDate}}{{if not .IsCreditNote}} &middot; due {{formatDate .DueDate}}{{end}}
{{- if .QuoteNumber}}<br>Quote {{.QuoteNumber}}{{end}}
</p>
<table class="items">
<tr><th>Description</th><th class="amount">Qty</th><th>Unit</th><th class="amount">Unit price</th><th class="amount">Total</th></tr>
{{range .Lines}}<tr><td>{{.Description}}</td><td class="amount">{{.Quantity}}</td><td>{{.Unit}}</td><td class="amount">{{formatAmount .UnitPrice}}</td><td class="amount">{{formatAmount .LineTotal}}</td></tr>
{{end}}</table>
<table class="totals">
<tr><td>Subtotal</td><td class="amount">{{formatAmount .Subtotal}}</td></tr>
{{if .HasDiscount}}<tr><td>Discount</td><td class="amount">-{{formatAmount .Discount}}</td></tr>
<tr><td>Net</td><td class="amount">{{formatAmount .NetAmount}}</td></tr>
{{end}}<tr><td>VAT</td><td class="amount">{{formatAmount .VATAmount}}</td></tr>
<tr><td>Total incl. VAT</td><td class="amount">{{formatAmount .TotalWithVAT}}</td></tr>
{{if .ShowDeposit}}<tr><td>Deposit incl. VAT</td><td class="amount">{{formatAmount .DepositAmount}}</td></tr>
{{end}}<tr class="payable"><td>{{if .IsCreditNote}}Credited{{else}}Payable{{end}}</td><td class="amount">{{formatAmount .Payable}}</td></tr>
</table>
</body>
</html>`
