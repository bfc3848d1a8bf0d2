package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/services"
)

// ReportHandler handles report aggregation requests.
type ReportHandler struct {
	reportService services.ReportServicer
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reportService services.ReportServicer) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// GetReport aggregates the ledger for one window. The window comes from
// period plus either ref_date (recurring periods) or start_date and
// end_date (custom).
func (h *ReportHandler) GetReport(c *gin.Context) {
	req := services.ReportRequest{
		Period:      services.ReportPeriod(c.DefaultQuery("period", "monthly")),
		Granularity: services.ReportGranularity(c.Query("granularity")),
	}

	if v := c.Query("ref_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			respondWithError(c, apperrors.WithField(apperrors.ErrValidation, "ref_date", "ref_date must be YYYY-MM-DD"))
			return
		}
		req.RefDate = t
	}
	if v := c.Query("start_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			respondWithError(c, apperrors.WithField(apperrors.ErrValidation, "start_date", "start_date must be YYYY-MM-DD"))
			return
		}
		req.StartDate = &t
	}
	if v := c.Query("end_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			respondWithError(c, apperrors.WithField(apperrors.ErrValidation, "end_date", "end_date must be YYYY-MM-DD"))
			return
		}
		req.EndDate = &t
	}

	report, err := h.reportService.Report(req)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"report": report})
}
