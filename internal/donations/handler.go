package donations

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/streamlance/backend/internal/middleware"
	"github.com/streamlance/backend/pkg/response"
)

// CreateRequest is the body for POST /donations.
type CreateRequest struct {
	StreamerID    string     `json:"streamer_id" binding:"required"`
	AmountCents   int64      `json:"amount_cents" binding:"required"`
	Currency      string     `json:"currency"`
	Message       string     `json:"message"`
	VideoURL      string     `json:"video_url"`
	ScheduledFor  *time.Time `json:"scheduled_for"`
	PaymentRef    string     `json:"payment_ref"`
	PaymentStatus string     `json:"payment_status" binding:"required"`
}

// SkipRequest is the body for the playback skip endpoint.
type SkipRequest struct {
	ItemID     string `json:"item_id" binding:"required"`
	DonationID string `json:"donation_id"`
}

// Handler handles donation and delivery-queue HTTP endpoints.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a donations handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// Create handles POST /donations.
func (h *Handler) Create(c *gin.Context) {
	companyID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	streamerID, err := uuid.Parse(req.StreamerID)
	if err != nil {
		response.BadRequest(c, "invalid streamer id")
		return
	}
	d, err := h.service.CreateDonation(c.Request.Context(), CreateDonationInput{
		StreamerID:   streamerID,
		CompanyID:    companyID,
		AmountCents:  req.AmountCents,
		Currency:     req.Currency,
		Message:      req.Message,
		VideoURL:     req.VideoURL,
		ScheduledFor: req.ScheduledFor,
		PaymentRef:   req.PaymentRef,
		PaymentOK:    req.PaymentStatus == "success",
	})
	if err != nil {
		h.writeCreateError(c, d, err)
		return
	}
	response.Created(c, d)
}

func (h *Handler) writeCreateError(c *gin.Context, d interface{}, err error) {
	var rejected *SlotRejectedError
	switch {
	case errors.Is(err, ErrInvalidAmount):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrStreamerNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrPaymentFailed):
		// The failed donation row is still returned for reconciliation.
		response.OK(c, gin.H{"donation": d, "error": err.Error()})
	case errors.As(err, &rejected):
		response.Conflict(c, rejected.Reason)
	default:
		h.logger.Error("create donation failed", zap.Error(err))
		response.Internal(c, "failed to create donation")
	}
}

// GetByID handles GET /donations/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid donation id")
		return
	}
	d, err := h.service.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load donation")
		return
	}
	if d == nil {
		response.NotFound(c, "donation not found")
		return
	}
	response.OK(c, d)
}

// ListByStreamer handles GET /streamers/:id/donations.
func (h *Handler) ListByStreamer(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid streamer id")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	list, err := h.service.repo.ListByStreamer(c.Request.Context(), id, limit)
	if err != nil {
		response.Internal(c, "failed to list donations")
		return
	}
	response.OK(c, list)
}

// NextForPlayback handles GET /streamers/:id/queue/next: the on-air client
// polls this to pull its next due item. 204 when nothing is due yet.
func (h *Handler) NextForPlayback(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid streamer id")
		return
	}
	item, err := h.service.GetNextForPlayback(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("pop next failed", zap.Error(err), zap.String("streamer_id", id.String()))
		response.Internal(c, "failed to fetch next item")
		return
	}
	if item == nil {
		response.NoContent(c)
		return
	}
	response.OK(c, item)
}

// Skip handles POST /streamers/:id/queue/skip.
func (h *Handler) Skip(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid streamer id")
		return
	}
	var req SkipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	var donationID *uuid.UUID
	if req.DonationID != "" {
		parsed, err := uuid.Parse(req.DonationID)
		if err != nil {
			response.BadRequest(c, "invalid donation id")
			return
		}
		donationID = &parsed
	}
	if err := h.service.Skip(c.Request.Context(), id, req.ItemID, donationID); err != nil {
		response.Internal(c, "failed to skip item")
		return
	}
	response.OK(c, gin.H{"item_id": req.ItemID, "skipped": true})
}

// QueueStatus handles GET /streamers/:id/queue/status.
func (h *Handler) QueueStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid streamer id")
		return
	}
	status, err := h.service.QueueStatus(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load queue status")
		return
	}
	response.OK(c, status)
}

// ListQueue handles GET /streamers/:id/queue.
func (h *Handler) ListQueue(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid streamer id")
		return
	}
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
	items, err := h.service.ListQueue(c.Request.Context(), id, limit)
	if err != nil {
		response.Internal(c, "failed to list queue")
		return
	}
	response.OK(c, gin.H{"items": items, "count": len(items)})
}

// ClearQueue handles DELETE /streamers/:id/queue.
func (h *Handler) ClearQueue(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid streamer id")
		return
	}
	if err := h.service.ClearQueue(c.Request.Context(), id); err != nil {
		response.Internal(c, "failed to clear queue")
		return
	}
	response.NoContent(c)
}
