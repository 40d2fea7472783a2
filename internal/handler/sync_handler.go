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

type syncService interface {
	SyncAll(ctx context.Context, forceResync bool) (*models.SyncSummary, error)
	Status() models.SyncProgress
	LastSummary(ctx context.Context) (*models.SyncSummary, error)
}

// SyncHandler exposes the sync pipeline.
type SyncHandler struct {
	service syncService
}

// NewSyncHandler constructs the handler.
func NewSyncHandler(service syncService) *SyncHandler {
	return &SyncHandler{service: service}
}

// Trigger runs a sync pass inline and returns its summary.
func (h *SyncHandler) Trigger(c *gin.Context) {
	var req dto.SyncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
			return
		}
	}

	summary, err := h.service.SyncAll(c.Request.Context(), req.ForceResync)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Status returns the live progress snapshot.
func (h *SyncHandler) Status(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Status(), nil)
}

// Last returns the most recent completed sync summary.
func (h *SyncHandler) Last(c *gin.Context) {
	summary, err := h.service.LastSummary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
