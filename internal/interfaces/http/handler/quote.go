package handler

import (
	"context"
	"time"

	appbilling "github.com/facturio/backend/internal/application/billing"
	"github.com/facturio/backend/internal/domain/billing"
	"github.com/facturio/backend/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// QuoteHandler handles quote lifecycle API endpoints
type QuoteHandler struct {
	BaseHandler
	quoteService *appbilling.QuoteService
	quoteRepo    billing.QuoteRepository
}

// NewQuoteHandler creates a new QuoteHandler
func NewQuoteHandler(quoteService *appbilling.QuoteService, quoteRepo billing.QuoteRepository) *QuoteHandler {
	return &QuoteHandler{
		quoteService: quoteService,
		quoteRepo:    quoteRepo,
	}
}

// CreateQuoteRequest represents a request to create a new quote
// @Description Request body for creating a quote
type CreateQuoteRequest struct {
	ClientID    string                 `json:"client_id" binding:"required,uuid" example:"7b0f1df3-6b4e-4f23-9c13-000000000001"`
	ClientName  string                 `json:"client_name" binding:"required,min=1,max=200" example:"Atelier Dubois"`
	ClientEmail string                 `json:"client_email" binding:"omitempty,email,max=200" example:"compta@atelier-dubois.fr"`
	Items       []LineItemRequest      `json:"items" binding:"required,min=1,dive"`
	Config      FinancialConfigRequest `json:"config"`
	ValidUntil  *time.Time             `json:"valid_until"`
}

// UpdateQuotePricingRequest replaces a quote's items and configuration
// @Description Request body for updating quote pricing
type UpdateQuotePricingRequest struct {
	Items  []LineItemRequest      `json:"items" binding:"required,min=1,dive"`
	Config FinancialConfigRequest `json:"config"`
}

// ListQuotesRequest represents quote list query parameters
type ListQuotesRequest struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
	Search   string `form:"search"`
	ClientID string `form:"client_id" binding:"omitempty,uuid"`
	Status   string `form:"status" binding:"omitempty,oneof=DRAFT SENT ACCEPTED DECLINED INVOICED"`
}

// Create godoc
// @ID           createQuote
// @Summary      Create a quote
// @Description  Create a draft quote with its monetary breakdown computed
// @Tags         quotes
// @Accept       json
// @Produce      json
// @Param        request body CreateQuoteRequest true "Quote creation request"
// @Success      201 {object} APIResponse[QuoteResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /billing/quotes [post]
func (h *QuoteHandler) Create(c *gin.Context) {
	var req CreateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		h.BadRequest(c, "Invalid client ID format")
		return
	}

	quote, err := h.quoteService.CreateQuote(c.Request.Context(), appbilling.CreateQuoteRequest{
		ClientID:    clientID,
		ClientName:  req.ClientName,
		ClientEmail: req.ClientEmail,
		Items:       toLineItems(req.Items),
		Config:      req.Config.toDomain(),
		ValidUntil:  req.ValidUntil,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toQuoteResponse(quote))
}

// GetByID godoc
// @ID           getQuoteById
// @Summary      Get quote by ID
// @Tags         quotes
// @Produce      json
// @Param        id path string true "Quote ID" format(uuid)
// @Success      200 {object} APIResponse[QuoteResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /billing/quotes/{id} [get]
func (h *QuoteHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid quote ID format")
		return
	}

	quote, err := h.quoteRepo.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if quote == nil {
		h.NotFound(c, "Quote not found")
		return
	}

	h.Success(c, toQuoteResponse(quote))
}

// GetByNumber godoc
// @ID           getQuoteByNumber
// @Summary      Get quote by document number
// @Tags         quotes
// @Produce      json
// @Param        number path string true "Quote number"
// @Success      200 {object} APIResponse[QuoteResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /billing/quotes/number/{number} [get]
func (h *QuoteHandler) GetByNumber(c *gin.Context) {
	number := c.Param("number")
	if number == "" {
		h.BadRequest(c, "Quote number is required")
		return
	}

	quote, err := h.quoteRepo.FindByNumber(c.Request.Context(), number)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if quote == nil {
		h.NotFound(c, "Quote not found")
		return
	}

	h.Success(c, toQuoteResponse(quote))
}

// List godoc
// @ID           listQuotes
// @Summary      List quotes
// @Description  Retrieve a paginated list of quotes with optional filtering
// @Tags         quotes
// @Produce      json
// @Param        search query string false "Search term (number, client name)"
// @Param        status query string false "Quote status" Enums(DRAFT, SENT, ACCEPTED, DECLINED, INVOICED)
// @Param        client_id query string false "Client ID" format(uuid)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]QuoteResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /billing/quotes [get]
func (h *QuoteHandler) List(c *gin.Context) {
	var req ListQuotesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := billing.QuoteFilter{Filter: shared.DefaultFilter()}
	if req.Page > 0 {
		filter.Page = req.Page
	}
	if req.PageSize > 0 {
		filter.PageSize = req.PageSize
	}
	filter.OrderBy = req.OrderBy
	filter.OrderDir = req.OrderDir
	filter.Search = req.Search
	if req.ClientID != "" {
		id, err := uuid.Parse(req.ClientID)
		if err != nil {
			h.BadRequest(c, "Invalid client ID format")
			return
		}
		filter.ClientID = &id
	}
	if req.Status != "" {
		status := billing.QuoteStatus(req.Status)
		filter.Status = &status
	}

	quotes, total, err := h.quoteRepo.FindAll(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, toQuoteListResponse(quotes), total, filter.Page, filter.PageSize)
}

// UpdatePricing godoc
// @ID           updateQuotePricing
// @Summary      Update quote pricing
// @Description  Replace a quote's line items and financial configuration; the breakdown is recomputed
// @Tags         quotes
// @Accept       json
// @Produce      json
// @Param        id path string true "Quote ID" format(uuid)
// @Param        request body UpdateQuotePricingRequest true "Pricing update request"
// @Success      200 {object} APIResponse[QuoteResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /billing/quotes/{id}/pricing [put]
func (h *QuoteHandler) UpdatePricing(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid quote ID format")
		return
	}

	var req UpdateQuotePricingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	quote, err := h.quoteService.UpdateQuotePricing(c.Request.Context(), id, toLineItems(req.Items), req.Config.toDomain())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toQuoteResponse(quote))
}

// Send godoc
// @ID           sendQuote
// @Summary      Mark a quote as sent
// @Tags         quotes
// @Produce      json
// @Param        id path string true "Quote ID" format(uuid)
// @Success      200 {object} APIResponse[QuoteResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /billing/quotes/{id}/send [post]
func (h *QuoteHandler) Send(c *gin.Context) {
	h.transition(c, h.quoteService.SendQuote)
}

// Accept godoc
// @ID           acceptQuote
// @Summary      Record the client's acceptance of a quote
// @Tags         quotes
// @Produce      json
// @Param        id path string true "Quote ID" format(uuid)
// @Success      200 {object} APIResponse[QuoteResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /billing/quotes/{id}/accept [post]
func (h *QuoteHandler) Accept(c *gin.Context) {
	h.transition(c, h.quoteService.AcceptQuote)
}

// Decline godoc
// @ID           declineQuote
// @Summary      Record the client's refusal of a quote
// @Tags         quotes
// @Produce      json
// @Param        id path string true "Quote ID" format(uuid)
// @Success      200 {object} APIResponse[QuoteResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /billing/quotes/{id}/decline [post]
func (h *QuoteHandler) Decline(c *gin.Context) {
	h.transition(c, h.quoteService.DeclineQuote)
}

// Invoice godoc
// @ID           invoiceQuote
// @Summary      Issue invoices from an accepted quote
// @Description  Issue a standard invoice, or a deposit/final pair when the quote carries a deposit
// @Tags         quotes
// @Produce      json
// @Param        id path string true "Quote ID" format(uuid)
// @Success      201 {object} APIResponse[IssuedDocumentsResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /billing/quotes/{id}/invoice [post]
func (h *QuoteHandler) Invoice(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid quote ID format")
		return
	}

	docs, err := h.quoteService.IssueInvoices(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := IssuedDocumentsResponse{}
	if docs.Standard != nil {
		r := toInvoiceResponse(docs.Standard)
		resp.Standard = &r
	}
	if docs.Deposit != nil {
		r := toInvoiceResponse(docs.Deposit)
		resp.Deposit = &r
	}
	if docs.Final != nil {
		r := toInvoiceResponse(docs.Final)
		resp.Final = &r
	}

	h.Created(c, resp)
}

// transition parses the ID parameter and applies a quote state change
func (h *QuoteHandler) transition(c *gin.Context, fn func(ctx context.Context, id uuid.UUID) (*billing.Quote, error)) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid quote ID format")
		return
	}

	quote, err := fn(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toQuoteResponse(quote))
}

// RegisterRoutes registers all quote routes
func (h *QuoteHandler) RegisterRoutes(rg *gin.RouterGroup) {
	quotes := rg.Group("/billing/quotes")
	{
		quotes.POST("", h.Create)
		quotes.GET("", h.List)
		quotes.GET("/:id", h.GetByID)
		quotes.GET("/number/:number", h.GetByNumber)
		quotes.PUT("/:id/pricing", h.UpdatePricing)
		quotes.POST("/:id/send", h.Send)
		quotes.POST("/:id/accept", h.Accept)
		quotes.POST("/:id/decline", h.Decline)
		quotes.POST("/:id/invoice", h.Invoice)
	}
}
