package messaging

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// ReminderData carries the variables substituted into a payment
// reminder. Amounts arrive as exact decimals and are formatted with
// the composer's locale.
type ReminderData struct {
	ClientName    string
	ClientEmail   string
	InvoiceNumber string
	Amount        decimal.Decimal
	DueDate       time.Time
	DaysOverdue   int
	Stage         int
	Overdue       bool
	Attachment    *Attachment
}

// ReminderComposer renders payment reminder emails. Number formatting
// follows the configured locale, so continental European locales get
// the decimal comma and dot thousand separators.
type ReminderComposer struct {
	printer *message.Printer
	from    string
}

// NewReminderComposer creates a composer for the given BCP 47 locale
// tag (e.g. "nl", "fr", "en"). An unparseable tag falls back to Dutch.
func NewReminderComposer(locale, from string) *ReminderComposer {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Dutch
	}
	return &ReminderComposer{
		printer: message.NewPrinter(tag),
		from:    from,
	}
}

// FormatAmount renders a monetary amount with two decimals in the
// composer's locale.
func (c *ReminderComposer) FormatAmount(d decimal.Decimal) string {
	f, _ := d.Float64()
	return c.printer.Sprint(number.Decimal(f,
		number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}

// FormatDate renders a date as dd-mm-yyyy
func (c *ReminderComposer) FormatDate(t time.Time) string {
	return t.Format("02-01-2006")
}

var reminderText = template.Must(template.New("reminder").Parse(`Dear {{.ClientName}},

{{if .Overdue}}{{if ge .Stage 3}}Despite our earlier reminders, invoice {{.InvoiceNumber}} for EUR {{.Amount}} remains unpaid. It was due on {{.DueDate}} and is now {{.DaysOverdue}} days overdue. Please settle the amount immediately to avoid further action.{{else if ge .Stage 2}}Our records show that invoice {{.InvoiceNumber}} for EUR {{.Amount}}, due on {{.DueDate}}, is still open {{.DaysOverdue}} days past its due date. Please arrange payment at your earliest convenience.{{else}}Invoice {{.InvoiceNumber}} for EUR {{.Amount}} was due on {{.DueDate}}. If you have already paid, please disregard this message.{{end}}{{else}}This is a courtesy reminder that invoice {{.InvoiceNumber}} for EUR {{.Amount}} is due on {{.DueDate}}.{{end}}

Kind regards
`))

// Compose builds the reminder email for the given data. The subject
// escalates with the reminder stage.
func (c *ReminderComposer) Compose(data ReminderData) (*Email, error) {
	vars := struct {
		ClientName    string
		InvoiceNumber string
		Amount        string
		DueDate       string
		DaysOverdue   int
		Stage         int
		Overdue       bool
	}{
		ClientName:    data.ClientName,
		InvoiceNumber: data.InvoiceNumber,
		Amount:        c.FormatAmount(data.Amount),
		DueDate:       c.FormatDate(data.DueDate),
		DaysOverdue:   data.DaysOverdue,
		Stage:         data.Stage,
		Overdue:       data.Overdue,
	}

	var body strings.Builder
	if err := reminderText.Execute(&body, vars); err != nil {
		return nil, fmt.Errorf("failed to render reminder body: %w", err)
	}

	email := &Email{
		To:       []string{data.ClientEmail},
		From:     c.from,
		Subject:  c.subject(data),
		TextBody: body.String(),
	}
	if data.Attachment != nil {
		email.Attachments = []Attachment{*data.Attachment}
	}
	return email, nil
}

func (c *ReminderComposer) subject(data ReminderData) string {
	if !data.Overdue {
		return fmt.Sprintf("Payment reminder: invoice %s due on %s",
			data.InvoiceNumber, c.FormatDate(data.DueDate))
	}
	switch {
	case data.Stage >= 3:
		return fmt.Sprintf("Final notice: invoice %s", data.InvoiceNumber)
	case data.Stage == 2:
		return fmt.Sprintf("Second reminder: invoice %s is overdue", data.InvoiceNumber)
	default:
		return fmt.Sprintf("Reminder: invoice %s is overdue", data.InvoiceNumber)
	}
}
