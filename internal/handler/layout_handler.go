package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tracklight/tracklight-api/internal/models"
	appErrors "github.com/tracklight/tracklight-api/pkg/errors"
	"github.com/tracklight/tracklight-api/pkg/response"
)

type layoutService interface {
	DayLayout(ctx context.Context, day time.Time, calendarIDs []string) ([]models.EventBlockLayout, error)
}

// LayoutHandler exposes packed day layouts for the week grid.
type LayoutHandler struct {
	service layoutService
}

// NewLayoutHandler constructs the handler.
func NewLayoutHandler(service layoutService) *LayoutHandler {
	return &LayoutHandler{service: service}
}

// Day returns block layouts for one day column.
func (h *LayoutHandler) Day(c *gin.Context) {
	raw := c.Query("date")
	if raw == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date is required"))
		return
	}
	day, err := time.Parse("2006-01-02", raw)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid date, expected YYYY-MM-DD"))
		return
	}

	layouts, err := h.service.DayLayout(c.Request.Context(), day, splitQueryList(c, "calendar_ids"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, layouts, nil)
}
