package streamers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/streamlance/backend/internal/middleware"
	"github.com/streamlance/backend/internal/models"
	"github.com/streamlance/backend/internal/pricing"
	"github.com/streamlance/backend/pkg/response"
)

// CreateRequest is the body for POST /streamers.
type CreateRequest struct {
	DisplayName  string `json:"display_name" binding:"required"`
	ChannelURL   string `json:"channel_url"`
	AverageViews int64  `json:"average_views" binding:"gte=0"`
	ChargeCents  int64  `json:"charge_cents" binding:"gte=0"`
	Currency     string `json:"currency"`
}

// RatesRequest is the body for PATCH /streamers/:id/rates.
type RatesRequest struct {
	ChargeCents  int64 `json:"charge_cents" binding:"gte=0"`
	AverageViews int64 `json:"average_views" binding:"gte=0"`
}

// ViewersRequest is the body for the external viewer-count feed push.
type ViewersRequest struct {
	Viewers int64 `json:"viewers" binding:"gte=0"`
}

// Handler handles streamer profile HTTP endpoints.
type Handler struct {
	repo    *Repository
	viewers *ViewerFeed
	logger  *zap.Logger
}

// NewHandler creates a streamers handler.
func NewHandler(repo *Repository, viewers *ViewerFeed, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, viewers: viewers, logger: logger}
}

// Create handles POST /streamers.
func (h *Handler) Create(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}
	s := &models.Streamer{
		UserID:       userID,
		DisplayName:  req.DisplayName,
		ChannelURL:   req.ChannelURL,
		AverageViews: req.AverageViews,
		ChargeCents:  req.ChargeCents,
		Currency:     currency,
	}
	if err := h.repo.Create(c.Request.Context(), s); err != nil {
		h.logger.Error("create streamer failed", zap.Error(err))
		response.Internal(c, "failed to create streamer")
		return
	}
	response.Created(c, s)
}

// List handles GET /streamers.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to list streamers")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /streamers/:id, including the current pricing tier for
// the streamer's live viewer count.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid streamer id")
		return
	}
	s, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load streamer")
		return
	}
	if s == nil {
		response.NotFound(c, "streamer not found")
		return
	}
	ccv := h.viewers.Current(c.Request.Context(), id, s.AverageViews)
	tier, err := pricing.TierFor(ccv)
	if err != nil {
		response.Internal(c, "pricing lookup failed")
		return
	}
	response.OK(c, gin.H{"streamer": s, "current_viewers": ccv, "tier": tier})
}

// UpdateRates handles PATCH /streamers/:id/rates.
func (h *Handler) UpdateRates(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid streamer id")
		return
	}
	var req RatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.repo.UpdateRates(c.Request.Context(), id, req.ChargeCents, req.AverageViews); err != nil {
		response.NotFound(c, "streamer not found")
		return
	}
	response.OK(c, gin.H{"id": id, "charge_cents": req.ChargeCents, "average_views": req.AverageViews})
}

// PushViewers handles POST /streamers/:id/viewers, the ingest point for the
// external live viewer-count feed.
func (h *Handler) PushViewers(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid streamer id")
		return
	}
	var req ViewersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.viewers.Set(c.Request.Context(), id, req.Viewers); err != nil {
		response.Internal(c, "failed to record viewer count")
		return
	}
	response.OK(c, gin.H{"id": id, "viewers": req.Viewers})
}
