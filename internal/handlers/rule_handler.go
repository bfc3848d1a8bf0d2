package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/pagination"
	"fintrack/internal/services"
)

// RuleHandler handles keyword auto-categorisation rule requests.
type RuleHandler struct {
	ruleService services.RuleServicer
}

// NewRuleHandler creates a new RuleHandler.
func NewRuleHandler(ruleService services.RuleServicer) *RuleHandler {
	return &RuleHandler{ruleService: ruleService}
}

// CreateRuleRequest represents the request payload for creating a rule.
type CreateRuleRequest struct {
	Keyword    string `json:"keyword" binding:"required,min=1,max=60"`
	CategoryID string `json:"category_id" binding:"required,uuid"`
}

// CreateRule handles the creation of a new rule.
func (h *RuleHandler) CreateRule(c *gin.Context) {
	var req CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	rule, err := h.ruleService.CreateRule(req.Keyword, req.CategoryID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"rule": rule})
}

// GetRules handles listing rules.
func (h *RuleHandler) GetRules(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	result, err := h.ruleService.ListRules(page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ResolveRule previews which category a description would map to.
func (h *RuleHandler) ResolveRule(c *gin.Context) {
	description := c.Query("description")
	if description == "" {
		respondWithError(c, apperrors.WithField(apperrors.ErrValidation, "description", "description is required"))
		return
	}

	categoryID, matched, err := h.ruleService.Resolve(description)
	if err != nil {
		respondWithError(c, err)
		return
	}

	body := gin.H{"matched": matched}
	if matched {
		body["category_id"] = categoryID
	}
	c.JSON(http.StatusOK, body)
}

// DeleteRule handles deleting a rule.
func (h *RuleHandler) DeleteRule(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.ruleService.DeleteRule(id); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Rule deleted"})
}
