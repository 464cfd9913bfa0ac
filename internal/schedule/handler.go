package schedule

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/streamlance/backend/internal/models"
	"github.com/streamlance/backend/pkg/response"
)

// WindowRequest is the body for creating or updating a window.
type WindowRequest struct {
	StartTime     time.Time `json:"start_time" binding:"required"`
	EndTime       time.Time `json:"end_time" binding:"required"`
	MaxAdsPerHour int       `json:"max_ads_per_hour" binding:"required,gt=0"`
}

// Handler handles availability calendar HTTP endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a schedule handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// CreateWindow handles POST /streamers/:id/windows.
func (h *Handler) CreateWindow(c *gin.Context) {
	streamerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid streamer id")
		return
	}
	var req WindowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	w := &models.ScheduleWindow{
		StreamerID:    streamerID,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		MaxAdsPerHour: req.MaxAdsPerHour,
	}
	if err := h.svc.CreateWindow(c.Request.Context(), w); err != nil {
		writeWindowError(c, err)
		return
	}
	response.Created(c, w)
}

// ListWindows handles GET /streamers/:id/windows.
func (h *Handler) ListWindows(c *gin.Context) {
	streamerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid streamer id")
		return
	}
	windows, err := h.svc.ListWindows(c.Request.Context(), streamerID)
	if err != nil {
		response.Internal(c, "failed to list windows")
		return
	}
	response.OK(c, windows)
}

// UpdateWindow handles PATCH /windows/:id.
func (h *Handler) UpdateWindow(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid window id")
		return
	}
	var req WindowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	w, err := h.svc.UpdateWindow(c.Request.Context(), id, req.StartTime, req.EndTime, req.MaxAdsPerHour)
	if err != nil {
		writeWindowError(c, err)
		return
	}
	response.OK(c, w)
}

// DeleteWindow handles DELETE /windows/:id.
func (h *Handler) DeleteWindow(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid window id")
		return
	}
	if err := h.svc.DeleteWindow(c.Request.Context(), id); err != nil {
		writeWindowError(c, err)
		return
	}
	response.NoContent(c)
}

// ValidateSlot handles GET /streamers/:id/validate-slot?at=RFC3339.
func (h *Handler) ValidateSlot(c *gin.Context) {
	streamerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid streamer id")
		return
	}
	at, err := time.Parse(time.RFC3339, c.Query("at"))
	if err != nil {
		response.BadRequest(c, "invalid or missing 'at' timestamp")
		return
	}
	v, err := h.svc.ValidateSlot(c.Request.Context(), streamerID, at)
	if err != nil {
		response.Internal(c, "slot validation failed")
		return
	}
	response.OK(c, v)
}

// AvailableSlots handles GET /streamers/:id/slots?date=2006-01-02.
func (h *Handler) AvailableSlots(c *gin.Context) {
	streamerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid streamer id")
		return
	}
	day, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		response.BadRequest(c, "invalid or missing 'date' (YYYY-MM-DD)")
		return
	}
	slots, err := h.svc.AvailableSlots(c.Request.Context(), streamerID, day)
	if err != nil {
		response.Internal(c, "failed to enumerate slots")
		return
	}
	response.OK(c, slots)
}

func writeWindowError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidRange):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrConflict):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrWindowNotFound):
		response.NotFound(c, err.Error())
	default:
		response.Internal(c, "schedule operation failed")
	}
}
