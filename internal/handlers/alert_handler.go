package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/services"
)

// AlertHandler handles alert event requests.
type AlertHandler struct {
	alertService services.AlertServicer
}

// NewAlertHandler creates a new AlertHandler.
func NewAlertHandler(alertService services.AlertServicer) *AlertHandler {
	return &AlertHandler{alertService: alertService}
}

// GetRecentEvents handles listing the newest alert events.
func (h *AlertHandler) GetRecentEvents(c *gin.Context) {
	limit := 20
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 || parsed > 200 {
			respondWithError(c, apperrors.WithField(apperrors.ErrValidation, "limit", "limit must be between 1 and 200"))
			return
		}
		limit = parsed
	}

	events, err := h.alertService.RecentEvents(limit)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}

// StreamEvents pushes alert events to the client as server-sent events
// until the client disconnects.
func (h *AlertHandler) StreamEvents(c *gin.Context) {
	events, cancel := h.alertService.Subscribe()
	defer cancel()

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent("alert", event)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
