package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
)

// ruleService owns keyword auto-categorisation rules. Matching is
// case-insensitive substring containment; when several keywords match a
// description, the longest keyword wins.
type ruleService struct {
	db         *gorm.DB
	categories CategoryServicer
}

// NewRuleService creates a new RuleServicer.
func NewRuleService(db *gorm.DB, categories CategoryServicer) RuleServicer {
	return &ruleService{db: db, categories: categories}
}

const ruleKeywordMaxLength = 60

// normalizeKeyword lowercases, trims, and collapses internal whitespace.
func normalizeKeyword(keyword string) string {
	return strings.Join(strings.Fields(strings.ToLower(keyword)), " ")
}

// CreateRule creates a keyword rule pointing at an existing category.
func (s *ruleService) CreateRule(keyword, categoryID string) (*models.AutoRule, error) {
	keyword = normalizeKeyword(keyword)
	if keyword == "" {
		return nil, apperrors.WithField(apperrors.ErrValidation, "keyword", "keyword is required")
	}
	if len(keyword) > ruleKeywordMaxLength {
		return nil, apperrors.WithField(apperrors.ErrValidation, "keyword", "keyword is too long")
	}

	if _, err := s.categories.GetCategoryByID(categoryID); err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.Model(&models.AutoRule{}).Where("keyword = ?", keyword).Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return nil, apperrors.ErrDuplicateRule
	}

	rule := &models.AutoRule{
		Keyword:    keyword,
		CategoryID: categoryID,
	}
	if err := s.db.Create(rule).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return rule, nil
}

// ListRules returns a paginated list of rules.
func (s *ruleService) ListRules(page pagination.PageRequest) (*pagination.PageResponse[models.AutoRule], error) {
	page.Defaults()

	var totalItems int64
	if err := s.db.Model(&models.AutoRule{}).Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var rules []models.AutoRule
	if err := s.db.Order("keyword").Scopes(pagination.Paginate(page)).Find(&rules).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(rules, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// DeleteRule removes a rule.
func (s *ruleService) DeleteRule(ruleID string) error {
	var rule models.AutoRule
	if err := s.db.Where("id = ?", ruleID).First(&rule).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrRuleNotFound
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := s.db.Delete(&rule).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// Resolve finds the rule whose keyword appears in the description and
// returns its category. The longest matching keyword wins.
func (s *ruleService) Resolve(description string) (string, bool, error) {
	haystack := normalizeKeyword(description)
	if haystack == "" {
		return "", false, nil
	}

	var rules []models.AutoRule
	if err := s.db.Find(&rules).Error; err != nil {
		return "", false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var best *models.AutoRule
	for i := range rules {
		if !strings.Contains(haystack, rules[i].Keyword) {
			continue
		}
		if best == nil || len(rules[i].Keyword) > len(best.Keyword) {
			best = &rules[i]
		}
	}
	if best == nil {
		return "", false, nil
	}
	return best.CategoryID, true, nil
}
