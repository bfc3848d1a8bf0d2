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

// GoalHandler handles goal-related requests.
type GoalHandler struct {
	goalService services.GoalServicer
}

// NewGoalHandler creates a new GoalHandler.
func NewGoalHandler(goalService services.GoalServicer) *GoalHandler {
	return &GoalHandler{goalService: goalService}
}

// CreateGoalRequest represents the request payload for creating a goal.
type CreateGoalRequest struct {
	Name             string          `json:"name" binding:"required,min=1,max=100"`
	Kind             models.GoalKind `json:"kind" binding:"required,goal_kind"`
	TargetAmount     int64           `json:"target_amount" binding:"required,gt=0"`
	Deadline         *time.Time      `json:"deadline"`
	LinkedCategoryID *string         `json:"linked_category_id" binding:"omitempty,uuid"`
	Rank             int             `json:"rank" binding:"min=0"`
}

// UpdateGoalRequest represents the request payload for updating a goal.
type UpdateGoalRequest struct {
	Name         string     `json:"name" binding:"omitempty,min=1,max=100"`
	TargetAmount *int64     `json:"target_amount" binding:"omitempty,gt=0"`
	Deadline     *time.Time `json:"deadline"`
}

// ContributeRequest represents the request payload for a goal contribution.
// Negative amounts record setbacks.
type ContributeRequest struct {
	Amount int64 `json:"amount" binding:"required"`
}

// SetRankRequest represents the request payload for reordering a goal.
type SetRankRequest struct {
	Rank int `json:"rank" binding:"min=0"`
}

// CreateGoal handles the creation of a new goal.
func (h *GoalHandler) CreateGoal(c *gin.Context) {
	var req CreateGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	goal, err := h.goalService.CreateGoal(services.GoalInput{
		Name:             req.Name,
		Kind:             req.Kind,
		TargetAmount:     req.TargetAmount,
		Deadline:         req.Deadline,
		LinkedCategoryID: req.LinkedCategoryID,
		Rank:             req.Rank,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"goal": goal})
}

// GetGoals handles listing goals.
func (h *GoalHandler) GetGoals(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	result, err := h.goalService.ListGoals(page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetGoal handles retrieving a specific goal.
func (h *GoalHandler) GetGoal(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	goal, err := h.goalService.GetGoalByID(id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"goal": goal})
}

// GetGoalProgress handles retrieving derived progress for a goal.
func (h *GoalHandler) GetGoalProgress(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	progress, err := h.goalService.Progress(id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"progress": progress})
}

// GetOverdueGoals handles listing incomplete goals past their deadline.
func (h *GoalHandler) GetOverdueGoals(c *gin.Context) {
	goals, err := h.goalService.OverdueGoals()
	if err != nil {
		respondWithError(c, err)
		return
	}

	if goals == nil {
		goals = []models.Goal{}
	}
	c.JSON(http.StatusOK, gin.H{"goals": goals})
}

// UpdateGoal handles updating a goal's name, target, or deadline.
func (h *GoalHandler) UpdateGoal(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	goal, err := h.goalService.UpdateGoal(id, req.Name, req.TargetAmount, req.Deadline)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"goal": goal})
}

// SetGoalRank handles reordering a goal.
func (h *GoalHandler) SetGoalRank(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req SetRankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	if err := h.goalService.SetGoalRank(id, req.Rank); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Goal rank updated"})
}

// Contribute handles an explicit goal contribution. A clamped
// contribution still succeeds; the response carries a warning.
func (h *GoalHandler) Contribute(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ContributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	goal, warning, err := h.goalService.Contribute(id, req.Amount)
	if err != nil {
		respondWithError(c, err)
		return
	}

	body := gin.H{"goal": goal}
	if warning != nil {
		body["warning"] = gin.H{
			"code":    warning.Code,
			"message": warning.Message,
		}
	}
	c.JSON(http.StatusOK, body)
}

// DeleteGoal handles deleting a goal.
func (h *GoalHandler) DeleteGoal(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.goalService.DeleteGoal(id); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Goal deleted"})
}
