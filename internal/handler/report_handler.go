package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tracklight/tracklight-api/internal/dto"
	appErrors "github.com/tracklight/tracklight-api/pkg/errors"
	"github.com/tracklight/tracklight-api/pkg/export"
	"github.com/tracklight/tracklight-api/pkg/response"
)

type reportService interface {
	DurationsByCategory(ctx context.Context, from, to time.Time) ([]dto.CategoryDuration, error)
}

// ReportHandler exposes duration rollups.
type ReportHandler struct {
	service reportService
}

// NewReportHandler constructs the handler.
func NewReportHandler(service reportService) *ReportHandler {
	return &ReportHandler{service: service}
}

// Durations returns per-category effective minutes over a window.
func (h *ReportHandler) Durations(c *gin.Context) {
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
	if from == nil || to == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from and to are required"))
		return
	}

	report, err := h.service.DurationsByCategory(c.Request.Context(), *from, *to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Export downloads the duration rollup as CSV or PDF.
func (h *ReportHandler) Export(c *gin.Context) {
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
	if from == nil || to == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from and to are required"))
		return
	}

	rows, err := h.service.DurationsByCategory(c.Request.Context(), *from, *to)
	if err != nil {
		response.Error(c, err)
		return
	}

	report := export.Report{
		Title:  "Time by category",
		Period: fmt.Sprintf("%s to %s", from.Format("2006-01-02"), to.Format("2006-01-02")),
		Rows:   make([]export.Row, 0, len(rows)),
	}
	for _, row := range rows {
		report.Rows = append(report.Rows, export.Row{Category: row.Name, Minutes: row.Minutes})
	}

	format := c.DefaultQuery("format", "csv")
	switch format {
	case "csv":
		data, err := export.RenderCSV(report)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="durations.csv"`)
		c.Data(http.StatusOK, "text/csv", data)
	case "pdf":
		data, err := export.RenderPDF(report)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="durations.pdf"`)
		c.Data(http.StatusOK, "application/pdf", data)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
	}
}
