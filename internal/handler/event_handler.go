package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tracklight/tracklight-api/internal/dto"
	"github.com/tracklight/tracklight-api/internal/models"
	"github.com/tracklight/tracklight-api/internal/service"
	appErrors "github.com/tracklight/tracklight-api/pkg/errors"
	"github.com/tracklight/tracklight-api/pkg/response"
)

type eventQuerier interface {
	Page(ctx context.Context, req service.EventPageRequest) ([]models.Event, *models.CursorPageInfo, error)
}

type eventMutator interface {
	SetCategory(ctx context.Context, eventID string, categoryID *string) (*models.Event, error)
}

// EventHandler exposes event pages and manual categorization.
type EventHandler struct {
	query  eventQuerier
	events eventMutator
}

// NewEventHandler constructs the handler.
func NewEventHandler(query eventQuerier, events eventMutator) *EventHandler {
	return &EventHandler{query: query, events: events}
}

// List returns one cursor page of events.
func (h *EventHandler) List(c *gin.Context) {
	from, err := parseTimeQuery(c, "from")
	if err != nil {
		response.Error(c, err)
		return
	}
	to, err := parseTimeQuery(c, "to")
	if err != nil {
		response.Error(c, err)
		return
	}

	req := service.EventPageRequest{
		Cursor:      c.Query("cursor"),
		Limit:       parseIntQuery(c, "limit", 50),
		From:        from,
		To:          to,
		CalendarIDs: splitQueryList(c, "calendar_ids"),
		SkipAllDay:  c.Query("skip_all_day") == "true",
	}
	if c.Query("direction") == string(models.PageBackward) {
		req.Direction = models.PageBackward
	}

	events, page, err := h.query.Page(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, page)
}

// SetCategory manually assigns or clears an event's category.
func (h *EventHandler) SetCategory(c *gin.Context) {
	var req dto.SetEventCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}

	event, err := h.events.SetCategory(c.Request.Context(), c.Param("id"), req.CategoryID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}
