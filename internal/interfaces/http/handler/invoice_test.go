package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appbilling "github.com/facturio/backend/internal/application/billing"
	"github.com/facturio/backend/internal/domain/billing"
	"github.com/facturio/backend/internal/domain/followup"
	"github.com/facturio/backend/internal/domain/shared"
	"github.com/facturio/backend/internal/interfaces/http/dto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockFollowUpEnsurer implements appbilling.FollowUpEnsurer for testing
type MockFollowUpEnsurer struct {
	mock.Mock
}

func (m *MockFollowUpEnsurer) EnsureFollowUp(ctx context.Context, inv *billing.Invoice) (*followup.FollowUp, error) {
	args := m.Called(ctx, inv)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*followup.FollowUp), args.Error(1)
}

func setupInvoiceHandler(invRepo *MockInvoiceRepository, fuRepo *MockFollowUpRepository) *InvoiceHandler {
	clock := shared.NewFixedClock(handlerNow)
	ensurer := new(MockFollowUpEnsurer)
	statusCtrl := appbilling.NewInvoiceStatusController(invRepo, fuRepo, ensurer, clock, nil)
	quoteSvc := appbilling.NewQuoteService(new(MockQuoteRepository), invRepo, clock, 30, nil)
	return NewInvoiceHandler(invRepo, statusCtrl, quoteSvc, nil)
}

func TestInvoiceHandler_List_Success(t *testing.T) {
	invRepo := new(MockInvoiceRepository)
	handler := setupInvoiceHandler(invRepo, new(MockFollowUpRepository))

	inv := createTestInvoice(t, handlerNow.AddDate(0, 0, 14))
	invRepo.On("FindAll", mock.Anything, mock.AnythingOfType("billing.InvoiceFilter")).
		Return([]billing.Invoice{*inv}, int64(1), nil)

	router := setupTestRouter()
	router.GET("/invoices", handler.List)

	req := httptest.NewRequest(http.MethodGet, "/invoices?status=UNPAID", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(1), resp.Meta.Total)
	invRepo.AssertExpectations(t)
}

func TestInvoiceHandler_List_InvalidKind(t *testing.T) {
	handler := setupInvoiceHandler(new(MockInvoiceRepository), new(MockFollowUpRepository))

	router := setupTestRouter()
	router.GET("/invoices", handler.List)

	req := httptest.NewRequest(http.MethodGet, "/invoices?kind=BOGUS", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInvoiceHandler_GetByID_Detail(t *testing.T) {
	invRepo := new(MockInvoiceRepository)
	handler := setupInvoiceHandler(invRepo, new(MockFollowUpRepository))

	inv := createTestInvoice(t, handlerNow.AddDate(0, 0, 14))
	invRepo.On("FindByID", mock.Anything, inv.ID).Return(inv, nil)
	invRepo.On("FindCreditNotesFor", mock.Anything, inv.ID).Return([]billing.Invoice{}, nil)

	router := setupTestRouter()
	router.GET("/invoices/:id", handler.GetByID)

	req := httptest.NewRequest(http.MethodGet, "/invoices/"+inv.ID.String(), nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, inv.Number, data["number"])
	assert.Equal(t, "STANDARD", data["kind"])
	assert.Equal(t, false, data["settled"])

	balance, err := decimal.NewFromString(data["balance"].(string))
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(1210)), "nothing credited yet")
	invRepo.AssertExpectations(t)
}

func TestInvoiceHandler_GetByID_NotFound(t *testing.T) {
	invRepo := new(MockInvoiceRepository)
	handler := setupInvoiceHandler(invRepo, new(MockFollowUpRepository))

	id := uuid.New()
	invRepo.On("FindByID", mock.Anything, id).Return(nil, nil)

	router := setupTestRouter()
	router.GET("/invoices/:id", handler.GetByID)

	req := httptest.NewRequest(http.MethodGet, "/invoices/"+id.String(), nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvoiceHandler_MarkPaid_Success(t *testing.T) {
	invRepo := new(MockInvoiceRepository)
	fuRepo := new(MockFollowUpRepository)
	handler := setupInvoiceHandler(invRepo, fuRepo)

	inv := createTestInvoice(t, handlerNow.AddDate(0, 0, 14))
	invRepo.On("FindByID", mock.Anything, inv.ID).Return(inv, nil)
	invRepo.On("SaveWithLock", mock.Anything, inv).Return(nil)
	fuRepo.On("FindActiveByInvoice", mock.Anything, inv.ID).Return(nil, nil)

	router := setupTestRouter()
	router.POST("/invoices/:id/pay", handler.MarkPaid)

	req := httptest.NewRequest(http.MethodPost, "/invoices/"+inv.ID.String()+"/pay", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "PAID", data["status"])
	assert.NotEmpty(t, data["paid_at"])
	invRepo.AssertExpectations(t)
	fuRepo.AssertExpectations(t)
}

func TestInvoiceHandler_MarkPaid_AlreadyPaid(t *testing.T) {
	invRepo := new(MockInvoiceRepository)
	handler := setupInvoiceHandler(invRepo, new(MockFollowUpRepository))

	inv := createTestInvoice(t, handlerNow.AddDate(0, 0, 14))
	require.NoError(t, inv.MarkPaid(handlerNow.Add(-time.Hour)))
	invRepo.On("FindByID", mock.Anything, inv.ID).Return(inv, nil)

	router := setupTestRouter()
	router.POST("/invoices/:id/pay", handler.MarkPaid)

	req := httptest.NewRequest(http.MethodPost, "/invoices/"+inv.ID.String()+"/pay", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestInvoiceHandler_Cancel_WithReason(t *testing.T) {
	invRepo := new(MockInvoiceRepository)
	fuRepo := new(MockFollowUpRepository)
	handler := setupInvoiceHandler(invRepo, fuRepo)

	inv := createTestInvoice(t, handlerNow.AddDate(0, 0, 14))
	invRepo.On("FindByID", mock.Anything, inv.ID).Return(inv, nil)
	invRepo.On("SaveWithLock", mock.Anything, inv).Return(nil)
	fuRepo.On("FindActiveByInvoice", mock.Anything, inv.ID).Return(nil, nil)

	router := setupTestRouter()
	router.POST("/invoices/:id/cancel", handler.Cancel)

	body, _ := json.Marshal(CancelInvoiceRequest{Reason: "Issued in duplicate"})
	req := httptest.NewRequest(http.MethodPost, "/invoices/"+inv.ID.String()+"/cancel", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "CANCELLED", data["status"])
	assert.Equal(t, "Issued in duplicate", data["cancel_reason"])
	invRepo.AssertExpectations(t)
}

func TestInvoiceHandler_Cancel_StopsActiveFollowUp(t *testing.T) {
	invRepo := new(MockInvoiceRepository)
	fuRepo := new(MockFollowUpRepository)
	handler := setupInvoiceHandler(invRepo, fuRepo)

	inv := createTestInvoice(t, handlerNow.AddDate(0, 0, 14))
	active := createTestFollowUp(t, inv.ID)
	invRepo.On("FindByID", mock.Anything, inv.ID).Return(inv, nil)
	invRepo.On("SaveWithLock", mock.Anything, inv).Return(nil)
	fuRepo.On("FindActiveByInvoice", mock.Anything, inv.ID).Return(active, nil)
	fuRepo.On("SaveWithLock", mock.Anything, active).Return(nil)

	router := setupTestRouter()
	router.POST("/invoices/:id/cancel", handler.Cancel)

	req := httptest.NewRequest(http.MethodPost, "/invoices/"+inv.ID.String()+"/cancel", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, followup.StatusStopped, active.Status)
	fuRepo.AssertExpectations(t)
}

func TestInvoiceHandler_IssueCreditNote_FullCredit(t *testing.T) {
	invRepo := new(MockInvoiceRepository)
	handler := setupInvoiceHandler(invRepo, new(MockFollowUpRepository))

	inv := createTestInvoice(t, handlerNow.AddDate(0, 0, 14))
	invRepo.On("FindByID", mock.Anything, inv.ID).Return(inv, nil)
	invRepo.On("NextNumber", mock.Anything, billing.DocumentTypeCreditNote).Return("CN-2025-0001", nil)
	invRepo.On("Save", mock.Anything, mock.AnythingOfType("*billing.Invoice")).Return(nil)

	router := setupTestRouter()
	router.POST("/invoices/:id/credit-note", handler.IssueCreditNote)

	body, _ := json.Marshal(IssueCreditNoteRequest{Reason: "Goods returned"})
	req := httptest.NewRequest(http.MethodPost, "/invoices/"+inv.ID.String()+"/credit-note", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "CN-2025-0001", data["number"])
	assert.Equal(t, "CREDIT_NOTE", data["kind"])
	assert.Equal(t, inv.ID.String(), data["related_invoice_id"])

	amount, err := decimal.NewFromString(data["amount"].(string))
	require.NoError(t, err)
	assert.True(t, amount.Equal(decimal.NewFromInt(-1210)), "full credit mirrors the invoice negatively")
	invRepo.AssertExpectations(t)
}

func TestInvoiceHandler_Download_NoDocumentService(t *testing.T) {
	invRepo := new(MockInvoiceRepository)
	handler := setupInvoiceHandler(invRepo, new(MockFollowUpRepository))

	inv := createTestInvoice(t, handlerNow.AddDate(0, 0, 14))
	invRepo.On("FindByID", mock.Anything, inv.ID).Return(inv, nil)

	router := setupTestRouter()
	router.GET("/invoices/:id/document", handler.Download)

	req := httptest.NewRequest(http.MethodGet, "/invoices/"+inv.ID.String()+"/document", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
