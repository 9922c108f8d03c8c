package handler

import (
	"context"
	"testing"
	"time"

	"github.com/facturio/backend/internal/domain/billing"
	"github.com/facturio/backend/internal/domain/followup"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockQuoteRepository implements billing.QuoteRepository for testing
type MockQuoteRepository struct {
	mock.Mock
}

func (m *MockQuoteRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Quote, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Quote), args.Error(1)
}

func (m *MockQuoteRepository) FindByNumber(ctx context.Context, number string) (*billing.Quote, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Quote), args.Error(1)
}

func (m *MockQuoteRepository) FindAll(ctx context.Context, filter billing.QuoteFilter) ([]billing.Quote, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]billing.Quote), args.Get(1).(int64), args.Error(2)
}

func (m *MockQuoteRepository) Save(ctx context.Context, quote *billing.Quote) error {
	args := m.Called(ctx, quote)
	return args.Error(0)
}

func (m *MockQuoteRepository) NextNumber(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

// MockInvoiceRepository implements billing.InvoiceRepository for testing
type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByNumber(ctx context.Context, number string) (*billing.Invoice, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindAll(ctx context.Context, filter billing.InvoiceFilter) ([]billing.Invoice, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]billing.Invoice), args.Get(1).(int64), args.Error(2)
}

func (m *MockInvoiceRepository) FindOpen(ctx context.Context) ([]billing.Invoice, error) {
	args := m.Called(ctx)
	return args.Get(0).([]billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindCreditNotesFor(ctx context.Context, invoiceID uuid.UUID) ([]billing.Invoice, error) {
	args := m.Called(ctx, invoiceID)
	return args.Get(0).([]billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByQuote(ctx context.Context, quoteID uuid.UUID) ([]billing.Invoice, error) {
	args := m.Called(ctx, quoteID)
	return args.Get(0).([]billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) Save(ctx context.Context, invoice *billing.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) SaveWithLock(ctx context.Context, invoice *billing.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) NextNumber(ctx context.Context, docType billing.DocumentType) (string, error) {
	args := m.Called(ctx, docType)
	return args.String(0), args.Error(1)
}

// MockFollowUpRepository implements followup.Repository for testing
type MockFollowUpRepository struct {
	mock.Mock
}

func (m *MockFollowUpRepository) FindByID(ctx context.Context, id uuid.UUID) (*followup.FollowUp, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*followup.FollowUp), args.Error(1)
}

func (m *MockFollowUpRepository) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]followup.FollowUp, error) {
	args := m.Called(ctx, invoiceID)
	return args.Get(0).([]followup.FollowUp), args.Error(1)
}

func (m *MockFollowUpRepository) FindActiveByInvoice(ctx context.Context, invoiceID uuid.UUID) (*followup.FollowUp, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*followup.FollowUp), args.Error(1)
}

func (m *MockFollowUpRepository) FindDue(ctx context.Context, now time.Time) ([]followup.FollowUp, error) {
	args := m.Called(ctx, now)
	return args.Get(0).([]followup.FollowUp), args.Error(1)
}

func (m *MockFollowUpRepository) FindActive(ctx context.Context) ([]followup.FollowUp, error) {
	args := m.Called(ctx)
	return args.Get(0).([]followup.FollowUp), args.Error(1)
}

func (m *MockFollowUpRepository) FindAll(ctx context.Context, filter followup.Filter) ([]followup.FollowUp, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]followup.FollowUp), args.Get(1).(int64), args.Error(2)
}

func (m *MockFollowUpRepository) Save(ctx context.Context, f *followup.FollowUp) error {
	args := m.Called(ctx, f)
	return args.Error(0)
}

func (m *MockFollowUpRepository) SaveWithLock(ctx context.Context, f *followup.FollowUp) error {
	args := m.Called(ctx, f)
	return args.Error(0)
}

// MockFollowUpLogRepository implements followup.LogRepository for testing
type MockFollowUpLogRepository struct {
	mock.Mock
}

func (m *MockFollowUpLogRepository) Append(ctx context.Context, entry *followup.LogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockFollowUpLogRepository) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]followup.LogEntry, error) {
	args := m.Called(ctx, invoiceID)
	return args.Get(0).([]followup.LogEntry), args.Error(1)
}

// Test setup helpers

var handlerNow = time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func testFinancialConfig() billing.FinancialConfig {
	return billing.FinancialConfig{
		VAT: billing.VATConfig{Enabled: true, RatePercent: decimal.NewFromInt(21)},
	}
}

func createTestQuote(t *testing.T) *billing.Quote {
	t.Helper()
	items := billing.LineItems{
		billing.NewLineItem("consulting", "day", decimal.NewFromInt(2), decimal.NewFromInt(500), decimal.Zero),
	}
	quote, err := billing.NewQuote("QUO-2025-0001", uuid.New(), "Acme BV", items, testFinancialConfig(), nil)
	require.NoError(t, err)
	quote.ClientEmail = "billing@acme.test"
	return quote
}

func createTestInvoice(t *testing.T, dueDate time.Time) *billing.Invoice {
	t.Helper()
	items := billing.LineItems{
		billing.NewLineItem("consulting", "day", decimal.NewFromInt(2), decimal.NewFromInt(500), decimal.Zero),
	}
	inv, err := billing.NewInvoice("INV-2025-0001", uuid.New(), "Acme BV", billing.StandardInvoice{},
		items, testFinancialConfig(), dueDate.AddDate(0, -1, 0), dueDate)
	require.NoError(t, err)
	return inv
}

func createTestFollowUp(t *testing.T, invoiceID uuid.UUID) *followup.FollowUp {
	t.Helper()
	f, err := followup.NewFollowUp(invoiceID, "INV-2025-0001", 1, followup.KindOverdue, handlerNow.Add(-time.Hour))
	require.NoError(t, err)
	return f
}
