package handler

import (
	"fmt"
	"net/http"
	"time"

	appbilling "github.com/facturio/backend/internal/application/billing"
	"github.com/facturio/backend/internal/domain/billing"
	"github.com/facturio/backend/internal/domain/shared"
	"github.com/facturio/backend/internal/infrastructure/document"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// InvoiceHandler handles invoice and credit note API endpoints
type InvoiceHandler struct {
	BaseHandler
	invoiceRepo  billing.InvoiceRepository
	statusCtrl   *appbilling.InvoiceStatusController
	quoteService *appbilling.QuoteService
	resolver     *billing.BalanceResolver
	documents    *document.Service
}

// NewInvoiceHandler creates a new InvoiceHandler. The document service
// may be nil, in which case the download endpoint reports the document
// as unavailable.
func NewInvoiceHandler(
	invoiceRepo billing.InvoiceRepository,
	statusCtrl *appbilling.InvoiceStatusController,
	quoteService *appbilling.QuoteService,
	documents *document.Service,
) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceRepo:  invoiceRepo,
		statusCtrl:   statusCtrl,
		quoteService: quoteService,
		resolver:     billing.NewBalanceResolver(),
		documents:    documents,
	}
}

// CancelInvoiceRequest represents a request to cancel an invoice
// @Description Request body for cancelling an invoice
type CancelInvoiceRequest struct {
	Reason string `json:"reason" binding:"max=500" example:"Issued in duplicate"`
}

// IssueCreditNoteRequest represents a request to offset an invoice.
// When items is empty the full invoice is credited.
// @Description Request body for issuing a credit note
type IssueCreditNoteRequest struct {
	Items  []LineItemRequest `json:"items" binding:"omitempty,dive"`
	Reason string            `json:"reason" binding:"max=500" example:"Goods returned"`
}

// ListInvoicesRequest represents invoice list query parameters
type ListInvoicesRequest struct {
	Page         int    `form:"page"`
	PageSize     int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy      string `form:"order_by"`
	OrderDir     string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
	Search       string `form:"search"`
	ClientID     string `form:"client_id" binding:"omitempty,uuid"`
	Status       string `form:"status" binding:"omitempty,oneof=UNPAID OVERDUE PAID CANCELLED"`
	Kind         string `form:"kind" binding:"omitempty,oneof=STANDARD DEPOSIT FINAL CREDIT_NOTE"`
	DocumentType string `form:"document_type" binding:"omitempty,oneof=INVOICE CREDIT_NOTE"`
	DueFrom      string `form:"due_from" binding:"omitempty,datetime=2006-01-02"`
	DueTo        string `form:"due_to" binding:"omitempty,datetime=2006-01-02"`
	Overdue      *bool  `form:"overdue"`
}

// List godoc
// @ID           listInvoices
// @Summary      List invoices and credit notes
// @Description  Retrieve a paginated list of billing documents with optional filtering
// @Tags         invoices
// @Produce      json
// @Param        search query string false "Search term (number, client name)"
// @Param        status query string false "Invoice status" Enums(UNPAID, OVERDUE, PAID, CANCELLED)
// @Param        kind query string false "Document kind" Enums(STANDARD, DEPOSIT, FINAL, CREDIT_NOTE)
// @Param        document_type query string false "Document type" Enums(INVOICE, CREDIT_NOTE)
// @Param        client_id query string false "Client ID" format(uuid)
// @Param        due_from query string false "Due date lower bound (YYYY-MM-DD)"
// @Param        due_to query string false "Due date upper bound (YYYY-MM-DD)"
// @Param        overdue query bool false "Only invoices past their due date"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]InvoiceResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /billing/invoices [get]
func (h *InvoiceHandler) List(c *gin.Context) {
	var req ListInvoicesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := billing.InvoiceFilter{Filter: shared.DefaultFilter()}
	if req.Page > 0 {
		filter.Page = req.Page
	}
	if req.PageSize > 0 {
		filter.PageSize = req.PageSize
	}
	filter.OrderBy = req.OrderBy
	filter.OrderDir = req.OrderDir
	filter.Search = req.Search
	filter.Overdue = req.Overdue

	if req.ClientID != "" {
		id, err := uuid.Parse(req.ClientID)
		if err != nil {
			h.BadRequest(c, "Invalid client ID format")
			return
		}
		filter.ClientID = &id
	}
	if req.Status != "" {
		status := billing.InvoiceStatus(req.Status)
		filter.Status = &status
	}
	if req.Kind != "" {
		kind := billing.InvoiceKind(req.Kind)
		filter.Kind = &kind
	}
	if req.DocumentType != "" {
		docType := billing.DocumentType(req.DocumentType)
		filter.DocumentType = &docType
	}
	if req.DueFrom != "" {
		from, _ := time.Parse("2006-01-02", req.DueFrom)
		filter.DueFrom = &from
	}
	if req.DueTo != "" {
		to, _ := time.Parse("2006-01-02", req.DueTo)
		filter.DueTo = &to
	}

	invoices, total, err := h.invoiceRepo.FindAll(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, toInvoiceListResponse(invoices), total, filter.Page, filter.PageSize)
}

// GetByID godoc
// @ID           getInvoiceById
// @Summary      Get invoice by ID
// @Description  Retrieve a billing document with its outstanding balance and referencing credit notes
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} APIResponse[InvoiceDetailResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /billing/invoices/{id} [get]
func (h *InvoiceHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}

	inv, err := h.invoiceRepo.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if inv == nil {
		h.NotFound(c, "Invoice not found")
		return
	}

	detail := InvoiceDetailResponse{InvoiceResponse: toInvoiceResponse(inv)}

	notes, err := h.invoiceRepo.FindCreditNotesFor(c.Request.Context(), inv.ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	detail.CreditNotes = toInvoiceListResponse(notes)
	if balance := h.resolver.ResolveBalance(inv, notes); balance != nil {
		amount := balance.Amount()
		detail.Balance = &amount
	}
	detail.Settled = h.resolver.IsSettled(inv, notes)

	h.Success(c, detail)
}

// GetByNumber godoc
// @ID           getInvoiceByNumber
// @Summary      Get invoice by document number
// @Tags         invoices
// @Produce      json
// @Param        number path string true "Document number"
// @Success      200 {object} APIResponse[InvoiceResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /billing/invoices/number/{number} [get]
func (h *InvoiceHandler) GetByNumber(c *gin.Context) {
	number := c.Param("number")
	if number == "" {
		h.BadRequest(c, "Document number is required")
		return
	}

	inv, err := h.invoiceRepo.FindByNumber(c.Request.Context(), number)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if inv == nil {
		h.NotFound(c, "Invoice not found")
		return
	}

	h.Success(c, toInvoiceResponse(inv))
}

// MarkPaid godoc
// @ID           markInvoicePaid
// @Summary      Record a payment on an invoice
// @Description  Mark an open invoice paid and stop its active follow-up
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} APIResponse[InvoiceResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /billing/invoices/{id}/pay [post]
func (h *InvoiceHandler) MarkPaid(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}

	inv, err := h.statusCtrl.MarkPaid(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toInvoiceResponse(inv))
}

// Cancel godoc
// @ID           cancelInvoice
// @Summary      Cancel an invoice
// @Description  Cancel a billing document and stop its active follow-up
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body CancelInvoiceRequest false "Cancellation reason"
// @Success      200 {object} APIResponse[InvoiceResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /billing/invoices/{id}/cancel [post]
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}

	var req CancelInvoiceRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, err.Error())
			return
		}
	}

	inv, err := h.statusCtrl.Cancel(c.Request.Context(), id, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toInvoiceResponse(inv))
}

// Reactivate godoc
// @ID           reactivateInvoice
// @Summary      Reopen a paid or cancelled invoice
// @Description  Reopen a closed invoice; the resulting status is derived from the due date
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} APIResponse[InvoiceResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /billing/invoices/{id}/reactivate [post]
func (h *InvoiceHandler) Reactivate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}

	inv, err := h.statusCtrl.Reactivate(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toInvoiceResponse(inv))
}

// IssueCreditNote godoc
// @ID           issueCreditNote
// @Summary      Issue a credit note against an invoice
// @Description  Create a negative-amount document offsetting the invoice; the invoice itself is not mutated
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body IssueCreditNoteRequest false "Credit note request"
// @Success      201 {object} APIResponse[InvoiceResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /billing/invoices/{id}/credit-note [post]
func (h *InvoiceHandler) IssueCreditNote(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}

	var req IssueCreditNoteRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, err.Error())
			return
		}
	}

	// Credit note line items are stored negative
	items := toLineItems(req.Items).Negated()

	note, err := h.quoteService.IssueCreditNote(c.Request.Context(), appbilling.IssueCreditNoteRequest{
		InvoiceID: id,
		Items:     items,
		Reason:    req.Reason,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toInvoiceResponse(note))
}

// Download godoc
// @ID           downloadInvoiceDocument
// @Summary      Download the invoice PDF
// @Description  Render (or fetch the stored copy of) the invoice document
// @Tags         invoices
// @Produce      application/pdf
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {file} binary
// @Failure      404 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Router       /billing/invoices/{id}/document [get]
func (h *InvoiceHandler) Download(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}

	inv, err := h.invoiceRepo.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if inv == nil {
		h.NotFound(c, "Invoice not found")
		return
	}
	if h.documents == nil {
		h.HandleError(c, shared.ErrDocumentUnavailable)
		return
	}

	pdf, err := h.documents.Ensure(c.Request.Context(), inv)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", inv.Number+".pdf"))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// RegisterRoutes registers all invoice routes
func (h *InvoiceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	invoices := rg.Group("/billing/invoices")
	{
		invoices.GET("", h.List)
		invoices.GET("/:id", h.GetByID)
		invoices.GET("/number/:number", h.GetByNumber)
		invoices.POST("/:id/pay", h.MarkPaid)
		invoices.POST("/:id/cancel", h.Cancel)
		invoices.POST("/:id/reactivate", h.Reactivate)
		invoices.POST("/:id/credit-note", h.IssueCreditNote)
		invoices.GET("/:id/document", h.Download)
	}
}
