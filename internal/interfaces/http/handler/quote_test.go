package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	appbilling "github.com/facturio/backend/internal/application/billing"
	"github.com/facturio/backend/internal/domain/billing"
	"github.com/facturio/backend/internal/domain/shared"
	"github.com/facturio/backend/internal/interfaces/http/dto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupQuoteHandler(quoteRepo *MockQuoteRepository, invRepo *MockInvoiceRepository) *QuoteHandler {
	svc := appbilling.NewQuoteService(quoteRepo, invRepo, shared.NewFixedClock(handlerNow), 30, nil)
	return NewQuoteHandler(svc, quoteRepo)
}

func TestQuoteHandler_Create_Success(t *testing.T) {
	quoteRepo := new(MockQuoteRepository)
	invRepo := new(MockInvoiceRepository)
	handler := setupQuoteHandler(quoteRepo, invRepo)

	quoteRepo.On("NextNumber", mock.Anything).Return("QUO-2025-0042", nil)
	quoteRepo.On("Save", mock.Anything, mock.AnythingOfType("*billing.Quote")).Return(nil)

	router := setupTestRouter()
	router.POST("/quotes", handler.Create)

	reqBody := CreateQuoteRequest{
		ClientID:   uuid.New().String(),
		ClientName: "Acme BV",
		Items: []LineItemRequest{
			{Description: "consulting", Unit: "day", Quantity: 2, UnitPrice: 500},
		},
		Config: FinancialConfigRequest{
			VAT: VATConfigRequest{Enabled: true, RatePercent: 21},
		},
	}
	body, _ := json.Marshal(reqBody)

	req := httptest.NewRequest(http.MethodPost, "/quotes", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "QUO-2025-0042", data["number"])
	assert.Equal(t, "DRAFT", data["status"])

	breakdown := data["breakdown"].(map[string]interface{})
	total, err := decimal.NewFromString(breakdown["total_with_vat"].(string))
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(1210)))

	quoteRepo.AssertExpectations(t)
}

func TestQuoteHandler_Create_InvalidJSON(t *testing.T) {
	handler := setupQuoteHandler(new(MockQuoteRepository), new(MockInvoiceRepository))

	router := setupTestRouter()
	router.POST("/quotes", handler.Create)

	req := httptest.NewRequest(http.MethodPost, "/quotes", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQuoteHandler_Create_MissingItems(t *testing.T) {
	handler := setupQuoteHandler(new(MockQuoteRepository), new(MockInvoiceRepository))

	router := setupTestRouter()
	router.POST("/quotes", handler.Create)

	body, _ := json.Marshal(CreateQuoteRequest{
		ClientID:   uuid.New().String(),
		ClientName: "Acme BV",
	})

	req := httptest.NewRequest(http.MethodPost, "/quotes", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQuoteHandler_GetByID_Success(t *testing.T) {
	quoteRepo := new(MockQuoteRepository)
	handler := setupQuoteHandler(quoteRepo, new(MockInvoiceRepository))

	quote := createTestQuote(t)
	quoteRepo.On("FindByID", mock.Anything, quote.ID).Return(quote, nil)

	router := setupTestRouter()
	router.GET("/quotes/:id", handler.GetByID)

	req := httptest.NewRequest(http.MethodGet, "/quotes/"+quote.ID.String(), nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, quote.Number, data["number"])
	quoteRepo.AssertExpectations(t)
}

func TestQuoteHandler_GetByID_NotFound(t *testing.T) {
	quoteRepo := new(MockQuoteRepository)
	handler := setupQuoteHandler(quoteRepo, new(MockInvoiceRepository))

	id := uuid.New()
	quoteRepo.On("FindByID", mock.Anything, id).Return(nil, nil)

	router := setupTestRouter()
	router.GET("/quotes/:id", handler.GetByID)

	req := httptest.NewRequest(http.MethodGet, "/quotes/"+id.String(), nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQuoteHandler_GetByID_InvalidID(t *testing.T) {
	handler := setupQuoteHandler(new(MockQuoteRepository), new(MockInvoiceRepository))

	router := setupTestRouter()
	router.GET("/quotes/:id", handler.GetByID)

	req := httptest.NewRequest(http.MethodGet, "/quotes/not-a-uuid", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQuoteHandler_List_Success(t *testing.T) {
	quoteRepo := new(MockQuoteRepository)
	handler := setupQuoteHandler(quoteRepo, new(MockInvoiceRepository))

	quote := createTestQuote(t)
	quoteRepo.On("FindAll", mock.Anything, mock.AnythingOfType("billing.QuoteFilter")).
		Return([]billing.Quote{*quote}, int64(1), nil)

	router := setupTestRouter()
	router.GET("/quotes", handler.List)

	req := httptest.NewRequest(http.MethodGet, "/quotes?status=DRAFT&page=1&page_size=10", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(1), resp.Meta.Total)
	assert.Equal(t, 10, resp.Meta.PageSize)
	quoteRepo.AssertExpectations(t)
}

func TestQuoteHandler_List_InvalidStatus(t *testing.T) {
	handler := setupQuoteHandler(new(MockQuoteRepository), new(MockInvoiceRepository))

	router := setupTestRouter()
	router.GET("/quotes", handler.List)

	req := httptest.NewRequest(http.MethodGet, "/quotes?status=BOGUS", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQuoteHandler_Send_Success(t *testing.T) {
	quoteRepo := new(MockQuoteRepository)
	handler := setupQuoteHandler(quoteRepo, new(MockInvoiceRepository))

	quote := createTestQuote(t)
	quoteRepo.On("FindByID", mock.Anything, quote.ID).Return(quote, nil)
	quoteRepo.On("Save", mock.Anything, quote).Return(nil)

	router := setupTestRouter()
	router.POST("/quotes/:id/send", handler.Send)

	req := httptest.NewRequest(http.MethodPost, "/quotes/"+quote.ID.String()+"/send", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "SENT", data["status"])
	quoteRepo.AssertExpectations(t)
}

func TestQuoteHandler_Accept_WrongState(t *testing.T) {
	quoteRepo := new(MockQuoteRepository)
	handler := setupQuoteHandler(quoteRepo, new(MockInvoiceRepository))

	// Draft quotes cannot be accepted before being sent
	quote := createTestQuote(t)
	quoteRepo.On("FindByID", mock.Anything, quote.ID).Return(quote, nil)

	router := setupTestRouter()
	router.POST("/quotes/:id/accept", handler.Accept)

	req := httptest.NewRequest(http.MethodPost, "/quotes/"+quote.ID.String()+"/accept", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, dto.ErrCodeInvalidState, resp.Error.Code)
}

func TestQuoteHandler_Invoice_Standard(t *testing.T) {
	quoteRepo := new(MockQuoteRepository)
	invRepo := new(MockInvoiceRepository)
	handler := setupQuoteHandler(quoteRepo, invRepo)

	quote := createTestQuote(t)
	require.NoError(t, quote.MarkSent())
	require.NoError(t, quote.Accept(handlerNow))

	quoteRepo.On("FindByID", mock.Anything, quote.ID).Return(quote, nil)
	quoteRepo.On("Save", mock.Anything, quote).Return(nil)
	invRepo.On("NextNumber", mock.Anything, billing.DocumentTypeInvoice).Return("INV-2025-0007", nil)
	invRepo.On("Save", mock.Anything, mock.AnythingOfType("*billing.Invoice")).Return(nil)

	router := setupTestRouter()
	router.POST("/quotes/:id/invoice", handler.Invoice)

	req := httptest.NewRequest(http.MethodPost, "/quotes/"+quote.ID.String()+"/invoice", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp.Data.(map[string]interface{})
	standard := data["standard"].(map[string]interface{})
	assert.Equal(t, "INV-2025-0007", standard["number"])
	assert.Equal(t, "STANDARD", standard["kind"])
	assert.Nil(t, data["deposit"])
	assert.Nil(t, data["final"])
	quoteRepo.AssertExpectations(t)
	invRepo.AssertExpectations(t)
}
