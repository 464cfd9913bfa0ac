package campaigns

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/streamlance/backend/internal/allocator"
	"github.com/streamlance/backend/internal/middleware"
	"github.com/streamlance/backend/pkg/response"
)

// CreateRequest is the body for POST /campaigns.
type CreateRequest struct {
	VideoURL           string `json:"video_url" binding:"required"`
	TargetViews        int64  `json:"target_views" binding:"required"`
	BudgetCeilingCents *int64 `json:"budget_ceiling_cents"`
}

// Handler handles campaign HTTP endpoints.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a campaigns handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// Create handles POST /campaigns.
func (h *Handler) Create(c *gin.Context) {
	companyID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	cp, err := h.service.CreateCampaign(c.Request.Context(), CreateCampaignInput{
		CompanyID:          companyID,
		VideoURL:           req.VideoURL,
		TargetViews:        req.TargetViews,
		BudgetCeilingCents: req.BudgetCeilingCents,
	})
	switch {
	case errors.Is(err, ErrMissingVideo), errors.Is(err, allocator.ErrInvalidTarget):
		response.BadRequest(c, err.Error())
		return
	case errors.Is(err, allocator.ErrNoSupply):
		response.ServiceUnavailable(c, err.Error())
		return
	case err != nil:
		h.logger.Error("create campaign failed", zap.Error(err))
		response.Internal(c, "failed to create campaign")
		return
	}
	response.Created(c, cp)
}

// GetByID handles GET /campaigns/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid campaign id")
		return
	}
	cp, err := h.service.GetCampaign(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load campaign")
		return
	}
	if cp == nil {
		response.NotFound(c, "campaign not found")
		return
	}
	response.OK(c, cp)
}

// ListMine handles GET /campaigns for the authenticated company.
func (h *Handler) ListMine(c *gin.Context) {
	companyID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.service.ListByCompany(c.Request.Context(), companyID)
	if err != nil {
		response.Internal(c, "failed to list campaigns")
		return
	}
	response.OK(c, list)
}
