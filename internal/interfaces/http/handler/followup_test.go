package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appfollowup "github.com/facturio/backend/internal/application/followup"
	"github.com/facturio/backend/internal/domain/billing"
	"github.com/facturio/backend/internal/domain/followup"
	"github.com/facturio/backend/internal/domain/shared"
	"github.com/facturio/backend/internal/infrastructure/messaging"
	"github.com/facturio/backend/internal/interfaces/http/dto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockEmailSender implements messaging.Sender for testing
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) Send(ctx context.Context, email *messaging.Email) (string, error) {
	args := m.Called(ctx, email)
	return args.String(0), args.Error(1)
}

func setupFollowUpHandler(
	invRepo *MockInvoiceRepository,
	fuRepo *MockFollowUpRepository,
	logRepo *MockFollowUpLogRepository,
	sender *MockEmailSender,
) *FollowUpHandler {
	clock := shared.NewFixedClock(handlerNow)
	scheduler := appfollowup.NewScheduler(invRepo, fuRepo, nil, appfollowup.SchedulerConfig{}, clock, nil)
	composer := messaging.NewReminderComposer("nl", "billing@facturio.test")
	dispatcher := appfollowup.NewDispatcher(invRepo, fuRepo, logRepo, nil, sender, composer, nil, nil)
	return NewFollowUpHandler(fuRepo, logRepo, scheduler, dispatcher, clock)
}

func TestFollowUpHandler_List_Success(t *testing.T) {
	fuRepo := new(MockFollowUpRepository)
	handler := setupFollowUpHandler(new(MockInvoiceRepository), fuRepo, new(MockFollowUpLogRepository), new(MockEmailSender))

	f := createTestFollowUp(t, uuid.New())
	fuRepo.On("FindAll", mock.Anything, mock.AnythingOfType("followup.Filter")).
		Return([]followup.FollowUp{*f}, int64(1), nil)

	router := setupTestRouter()
	router.GET("/follow-ups", handler.List)

	req := httptest.NewRequest(http.MethodGet, "/follow-ups?status=SCHEDULED&kind=OVERDUE", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(1), resp.Meta.Total)
	fuRepo.AssertExpectations(t)
}

func TestFollowUpHandler_List_InvalidStage(t *testing.T) {
	handler := setupFollowUpHandler(new(MockInvoiceRepository), new(MockFollowUpRepository), new(MockFollowUpLogRepository), new(MockEmailSender))

	router := setupTestRouter()
	router.GET("/follow-ups", handler.List)

	req := httptest.NewRequest(http.MethodGet, "/follow-ups?stage=7", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFollowUpHandler_GetByID_NotFound(t *testing.T) {
	fuRepo := new(MockFollowUpRepository)
	handler := setupFollowUpHandler(new(MockInvoiceRepository), fuRepo, new(MockFollowUpLogRepository), new(MockEmailSender))

	id := uuid.New()
	fuRepo.On("FindByID", mock.Anything, id).Return(nil, nil)

	router := setupTestRouter()
	router.GET("/follow-ups/:id", handler.GetByID)

	req := httptest.NewRequest(http.MethodGet, "/follow-ups/"+id.String(), nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFollowUpHandler_Stop_Success(t *testing.T) {
	fuRepo := new(MockFollowUpRepository)
	handler := setupFollowUpHandler(new(MockInvoiceRepository), fuRepo, new(MockFollowUpLogRepository), new(MockEmailSender))

	f := createTestFollowUp(t, uuid.New())
	fuRepo.On("FindByID", mock.Anything, f.ID).Return(f, nil)
	fuRepo.On("SaveWithLock", mock.Anything, f).Return(nil)

	router := setupTestRouter()
	router.POST("/follow-ups/:id/stop", handler.Stop)

	req := httptest.NewRequest(http.MethodPost, "/follow-ups/"+f.ID.String()+"/stop", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "STOPPED", data["status"])
	assert.NotEmpty(t, data["stopped_at"])
	fuRepo.AssertExpectations(t)
}

func TestFollowUpHandler_Stop_AlreadyTerminal(t *testing.T) {
	fuRepo := new(MockFollowUpRepository)
	handler := setupFollowUpHandler(new(MockInvoiceRepository), fuRepo, new(MockFollowUpLogRepository), new(MockEmailSender))

	f := createTestFollowUp(t, uuid.New())
	f.Stop(handlerNow.Add(-time.Hour))
	fuRepo.On("FindByID", mock.Anything, f.ID).Return(f, nil)

	router := setupTestRouter()
	router.POST("/follow-ups/:id/stop", handler.Stop)

	req := httptest.NewRequest(http.MethodPost, "/follow-ups/"+f.ID.String()+"/stop", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	// Stopping a terminal follow-up is a no-op, not an error
	assert.Equal(t, http.StatusOK, w.Code)
	fuRepo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
}

func TestFollowUpHandler_Trail_Success(t *testing.T) {
	logRepo := new(MockFollowUpLogRepository)
	handler := setupFollowUpHandler(new(MockInvoiceRepository), new(MockFollowUpRepository), logRepo, new(MockEmailSender))

	invoiceID := uuid.New()
	f := createTestFollowUp(t, invoiceID)
	entry := followup.NewLogEntry(f, "sent", "", handlerNow)
	logRepo.On("FindByInvoice", mock.Anything, invoiceID).Return([]followup.LogEntry{*entry}, nil)

	router := setupTestRouter()
	router.GET("/invoices/:id/reminders", handler.Trail)

	req := httptest.NewRequest(http.MethodGet, "/invoices/"+invoiceID.String()+"/reminders", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	entries := resp.Data.([]interface{})
	require.Len(t, entries, 1)
	assert.Equal(t, "sent", entries[0].(map[string]interface{})["outcome"])
	logRepo.AssertExpectations(t)
}

func TestFollowUpHandler_RunEnsure_NothingOpen(t *testing.T) {
	invRepo := new(MockInvoiceRepository)
	handler := setupFollowUpHandler(invRepo, new(MockFollowUpRepository), new(MockFollowUpLogRepository), new(MockEmailSender))

	invRepo.On("FindOpen", mock.Anything).Return([]billing.Invoice{}, nil)

	router := setupTestRouter()
	router.POST("/follow-ups/run", handler.RunEnsure)

	req := httptest.NewRequest(http.MethodPost, "/follow-ups/run", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(0), data["ensured"])
	invRepo.AssertExpectations(t)
}

func TestFollowUpHandler_RunDispatch_NothingDue(t *testing.T) {
	fuRepo := new(MockFollowUpRepository)
	sender := new(MockEmailSender)
	handler := setupFollowUpHandler(new(MockInvoiceRepository), fuRepo, new(MockFollowUpLogRepository), sender)

	fuRepo.On("FindDue", mock.Anything, handlerNow).Return([]followup.FollowUp{}, nil)

	router := setupTestRouter()
	router.POST("/follow-ups/dispatch", handler.RunDispatch)

	req := httptest.NewRequest(http.MethodPost, "/follow-ups/dispatch", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(0), data["sent"])
	assert.Equal(t, float64(0), data["failed"])
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	fuRepo.AssertExpectations(t)
}
