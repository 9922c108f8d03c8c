package handler

import (
	appfollowup "github.com/facturio/backend/internal/application/followup"
	"github.com/facturio/backend/internal/domain/followup"
	"github.com/facturio/backend/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// FollowUpHandler handles payment follow-up API endpoints
type FollowUpHandler struct {
	BaseHandler
	followUpRepo followup.Repository
	logRepo      followup.LogRepository
	scheduler    *appfollowup.Scheduler
	dispatcher   *appfollowup.Dispatcher
	clock        shared.Clock
}

// NewFollowUpHandler creates a new FollowUpHandler
func NewFollowUpHandler(
	followUpRepo followup.Repository,
	logRepo followup.LogRepository,
	scheduler *appfollowup.Scheduler,
	dispatcher *appfollowup.Dispatcher,
	clock shared.Clock,
) *FollowUpHandler {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	return &FollowUpHandler{
		followUpRepo: followUpRepo,
		logRepo:      logRepo,
		scheduler:    scheduler,
		dispatcher:   dispatcher,
		clock:        clock,
	}
}

// ListFollowUpsRequest represents follow-up list query parameters
type ListFollowUpsRequest struct {
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy   string `form:"order_by"`
	OrderDir  string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
	Search    string `form:"search"`
	InvoiceID string `form:"invoice_id" binding:"omitempty,uuid"`
	Status    string `form:"status" binding:"omitempty,oneof=PENDING SCHEDULED READY_FOR_DISPATCH SENT FAILED STOPPED"`
	Kind      string `form:"kind" binding:"omitempty,oneof=APPROACHING_DEADLINE OVERDUE"`
	Stage     *int   `form:"stage" binding:"omitempty,min=1,max=3"`
}

// SweepResponse reports the outcome of a manually triggered pass
type SweepResponse struct {
	Ensured int `json:"ensured"`
}

// List godoc
// @ID           listFollowUps
// @Summary      List payment follow-ups
// @Description  Retrieve a paginated list of follow-ups with optional filtering
// @Tags         follow-ups
// @Produce      json
// @Param        invoice_id query string false "Invoice ID" format(uuid)
// @Param        status query string false "Follow-up status" Enums(PENDING, SCHEDULED, READY_FOR_DISPATCH, SENT, FAILED, STOPPED)
// @Param        kind query string false "Follow-up kind" Enums(APPROACHING_DEADLINE, OVERDUE)
// @Param        stage query int false "Escalation stage" minimum(1) maximum(3)
// @Param        search query string false "Search term (invoice number)"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]FollowUpResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /billing/follow-ups [get]
func (h *FollowUpHandler) List(c *gin.Context) {
	var req ListFollowUpsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := followup.Filter{Filter: shared.DefaultFilter()}
	if req.Page > 0 {
		filter.Page = req.Page
	}
	if req.PageSize > 0 {
		filter.PageSize = req.PageSize
	}
	filter.OrderBy = req.OrderBy
	filter.OrderDir = req.OrderDir
	filter.Search = req.Search
	filter.Stage = req.Stage

	if req.InvoiceID != "" {
		id, err := uuid.Parse(req.InvoiceID)
		if err != nil {
			h.BadRequest(c, "Invalid invoice ID format")
			return
		}
		filter.InvoiceID = &id
	}
	if req.Status != "" {
		status := followup.Status(req.Status)
		filter.Status = &status
	}
	if req.Kind != "" {
		kind := followup.Kind(req.Kind)
		filter.Kind = &kind
	}

	followUps, total, err := h.followUpRepo.FindAll(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, toFollowUpListResponse(followUps), total, filter.Page, filter.PageSize)
}

// GetByID godoc
// @ID           getFollowUpById
// @Summary      Get follow-up by ID
// @Tags         follow-ups
// @Produce      json
// @Param        id path string true "Follow-up ID" format(uuid)
// @Success      200 {object} APIResponse[FollowUpResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /billing/follow-ups/{id} [get]
func (h *FollowUpHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid follow-up ID format")
		return
	}

	f, err := h.followUpRepo.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if f == nil {
		h.NotFound(c, "Follow-up not found")
		return
	}

	h.Success(c, toFollowUpResponse(f))
}

// Stop godoc
// @ID           stopFollowUp
// @Summary      Stop an active follow-up
// @Description  Halt the reminder campaign, typically when the matter was settled outside the system
// @Tags         follow-ups
// @Produce      json
// @Param        id path string true "Follow-up ID" format(uuid)
// @Success      200 {object} APIResponse[FollowUpResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /billing/follow-ups/{id}/stop [post]
func (h *FollowUpHandler) Stop(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid follow-up ID format")
		return
	}

	f, err := h.scheduler.StopFollowUp(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toFollowUpResponse(f))
}

// Trail godoc
// @ID           getReminderTrail
// @Summary      Get the reminder audit trail for an invoice
// @Description  Every dispatch attempt for the invoice, newest first
// @Tags         follow-ups
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} APIResponse[[]FollowUpLogResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /billing/invoices/{id}/reminders [get]
func (h *FollowUpHandler) Trail(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}

	entries, err := h.logRepo.FindByInvoice(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toFollowUpLogResponse(entries))
}

// ListByInvoice godoc
// @ID           listInvoiceFollowUps
// @Summary      List the follow-ups of an invoice
// @Tags         follow-ups
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} APIResponse[[]FollowUpResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /billing/invoices/{id}/follow-ups [get]
func (h *FollowUpHandler) ListByInvoice(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}

	followUps, err := h.followUpRepo.FindByInvoice(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toFollowUpListResponse(followUps))
}

// RunEnsure godoc
// @ID           runFollowUpSweep
// @Summary      Run a follow-up scheduling pass now
// @Description  Sweep every open invoice and open or escalate follow-ups as needed
// @Tags         follow-ups
// @Produce      json
// @Success      200 {object} APIResponse[SweepResponse]
// @Failure      500 {object} ErrorResponse
// @Router       /billing/follow-ups/run [post]
func (h *FollowUpHandler) RunEnsure(c *gin.Context) {
	ensured, err := h.scheduler.EnsureAll(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, SweepResponse{Ensured: ensured})
}

// RunDispatch godoc
// @ID           runReminderDispatch
// @Summary      Dispatch due reminders now
// @Description  Process every follow-up whose dispatch time has passed and report per-item outcomes
// @Tags         follow-ups
// @Produce      json
// @Success      200 {object} APIResponse[appfollowup.DispatchReport]
// @Failure      500 {object} ErrorResponse
// @Router       /billing/follow-ups/dispatch [post]
func (h *FollowUpHandler) RunDispatch(c *gin.Context) {
	report, err := h.dispatcher.DispatchDue(c.Request.Context(), h.clock.Now())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, report)
}

// RegisterRoutes registers all follow-up routes
func (h *FollowUpHandler) RegisterRoutes(rg *gin.RouterGroup) {
	followUps := rg.Group("/billing/follow-ups")
	{
		followUps.GET("", h.List)
		followUps.GET("/:id", h.GetByID)
		followUps.POST("/:id/stop", h.Stop)
		followUps.POST("/run", h.RunEnsure)
		followUps.POST("/dispatch", h.RunDispatch)
	}

	invoices := rg.Group("/billing/invoices")
	{
		invoices.GET("/:id/follow-ups", h.ListByInvoice)
		invoices.GET("/:id/reminders", h.Trail)
	}
}
