package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
	"fintrack/internal/services"
)

// BudgetHandler handles budget-related requests.
type BudgetHandler struct {
	budgetService services.BudgetServicer
}

// NewBudgetHandler creates a new BudgetHandler.
func NewBudgetHandler(budgetService services.BudgetServicer) *BudgetHandler {
	return &BudgetHandler{budgetService: budgetService}
}

// CreateBudgetRequest represents the request payload for creating a budget.
// LimitAmount is in minor units; custom periods require both dates.
type CreateBudgetRequest struct {
	CategoryID      string              `json:"category_id" binding:"required,uuid"`
	Name            string              `json:"name" binding:"required,min=1,max=100"`
	Period          models.BudgetPeriod `json:"period" binding:"required,budget_period"`
	LimitAmount     int64               `json:"limit_amount" binding:"min=0"`
	StartDate       *time.Time          `json:"start_date"`
	EndDate         *time.Time          `json:"end_date"`
	AlertThresholds []int               `json:"alert_thresholds"`
}

// UpdateBudgetRequest represents the request payload for updating a budget.
type UpdateBudgetRequest struct {
	Name            string `json:"name" binding:"omitempty,min=1,max=100"`
	LimitAmount     *int64 `json:"limit_amount" binding:"omitempty,min=0"`
	AlertThresholds []int  `json:"alert_thresholds"`
}

// CreateBudget handles the creation of a new budget.
func (h *BudgetHandler) CreateBudget(c *gin.Context) {
	var req CreateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	budget, err := h.budgetService.CreateBudget(services.BudgetInput{
		CategoryID:      req.CategoryID,
		Name:            req.Name,
		Period:          req.Period,
		LimitAmount:     req.LimitAmount,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		AlertThresholds: req.AlertThresholds,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"budget": budget})
}

// GetBudgets handles listing budgets with an optional period filter.
func (h *BudgetHandler) GetBudgets(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	var period *models.BudgetPeriod
	if v := c.Query("period"); v != "" {
		p := models.BudgetPeriod(v)
		switch p {
		case models.BudgetPeriodWeekly, models.BudgetPeriodMonthly, models.BudgetPeriodYearly, models.BudgetPeriodCustom:
			period = &p
		default:
			respondWithError(c, apperrors.WithField(apperrors.ErrValidation, "period", "period must be weekly, monthly, yearly, or custom"))
			return
		}
	}

	result, err := h.budgetService.ListBudgets(period, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetBudget handles retrieving a specific budget.
func (h *BudgetHandler) GetBudget(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	budget, err := h.budgetService.GetBudgetByID(id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"budget": budget})
}

// GetBudgetStatus handles retrieving spend-vs-limit for a budget's
// window. An optional ref_date query anchors the window; it defaults to
// today.
func (h *BudgetHandler) GetBudgetStatus(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	refDate := time.Now()
	if v := c.Query("ref_date"); v != "" {
		t, parseErr := time.Parse("2006-01-02", v)
		if parseErr != nil {
			respondWithError(c, apperrors.WithField(apperrors.ErrValidation, "ref_date", "ref_date must be YYYY-MM-DD"))
			return
		}
		refDate = t
	}

	status, err := h.budgetService.Status(id, refDate)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": status})
}

// UpdateBudget handles updating a budget's name, limit, or thresholds.
func (h *BudgetHandler) UpdateBudget(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	budget, err := h.budgetService.UpdateBudget(id, req.Name, req.LimitAmount, req.AlertThresholds)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"budget": budget})
}

// DeleteBudget handles deleting a budget.
func (h *BudgetHandler) DeleteBudget(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.budgetService.DeleteBudget(id); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Budget deleted"})
}
