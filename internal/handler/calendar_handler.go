package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tracklight/tracklight-api/internal/dto"
	"github.com/tracklight/tracklight-api/internal/models"
	appErrors "github.com/tracklight/tracklight-api/pkg/errors"
	"github.com/tracklight/tracklight-api/pkg/response"
)

type calendarStore interface {
	List(ctx context.Context) ([]models.Calendar, error)
	SetEnabled(ctx context.Context, id string, enabled bool) error
}

// CalendarHandler exposes calendar listing and the enabled toggle.
type CalendarHandler struct {
	repo calendarStore
}

// NewCalendarHandler constructs the handler.
func NewCalendarHandler(repo calendarStore) *CalendarHandler {
	return &CalendarHandler{repo: repo}
}

// List returns all known calendars.
func (h *CalendarHandler) List(c *gin.Context) {
	calendars, err := h.repo.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, calendars, nil)
}

// SetEnabled toggles a calendar's sync participation. Disabled
// calendars keep their historical events.
func (h *CalendarHandler) SetEnabled(c *gin.Context) {
	var req dto.SetCalendarEnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "enabled is required"))
		return
	}
	if err := h.repo.SetEnabled(c.Request.Context(), c.Param("id"), *req.Enabled); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
