package services

import (
	"errors"
	"sort"
	"time"

	"gorm.io/gorm"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
)

// budgetService computes spend-vs-limit per category per period. Spent
// amounts are always derived from the ledger; nothing is cached.
type budgetService struct {
	db                *gorm.DB
	categories        CategoryServicer
	defaultThresholds []int
	dispatcher        *Dispatcher
}

// NewBudgetService creates a new BudgetServicer. Budgets created
// without explicit thresholds inherit defaultThresholds.
func NewBudgetService(db *gorm.DB, categories CategoryServicer, defaultThresholds []int, dispatcher *Dispatcher) BudgetServicer {
	return &budgetService{
		db:                db,
		categories:        categories,
		defaultThresholds: defaultThresholds,
		dispatcher:        dispatcher,
	}
}

// CreateBudget creates a budget for an expense category.
func (s *budgetService) CreateBudget(in BudgetInput) (*models.Budget, error) {
	if in.Name == "" {
		return nil, apperrors.WithField(apperrors.ErrValidation, "name", "budget name is required")
	}
	if in.LimitAmount < 0 {
		return nil, apperrors.WithField(apperrors.ErrValidation, "limit_amount", "limit must not be negative")
	}

	category, err := s.categories.GetCategoryByID(in.CategoryID)
	if err != nil {
		return nil, err
	}
	if category.Kind != models.CategoryKindExpense {
		return nil, apperrors.WithMessage(apperrors.ErrKindMismatch, "budgets track expense categories")
	}

	var startDate, endDate *time.Time
	switch in.Period {
	case models.BudgetPeriodWeekly, models.BudgetPeriodMonthly, models.BudgetPeriodYearly:
		// Window derives from the reference date; no stored range.
	case models.BudgetPeriodCustom:
		if in.StartDate == nil || in.EndDate == nil {
			return nil, apperrors.WithField(apperrors.ErrValidation, "start_date", "custom budgets require start and end dates")
		}
		start := models.DateOnly(*in.StartDate)
		end := models.DateOnly(*in.EndDate)
		if end.Before(start) {
			return nil, apperrors.WithField(apperrors.ErrValidation, "end_date", "end date must not precede start date")
		}
		startDate, endDate = &start, &end
	default:
		return nil, apperrors.WithField(apperrors.ErrValidation, "period", "period must be weekly, monthly, yearly, or custom")
	}

	thresholds, err := normalizeThresholds(in.AlertThresholds, s.defaultThresholds)
	if err != nil {
		return nil, err
	}

	if err := s.checkOverlap(in.CategoryID, in.Period, startDate, endDate, ""); err != nil {
		return nil, err
	}

	budget := &models.Budget{
		CategoryID:      in.CategoryID,
		Name:            in.Name,
		Period:          in.Period,
		LimitAmount:     in.LimitAmount,
		StartDate:       startDate,
		EndDate:         endDate,
		AlertThresholds: thresholds,
	}
	if err := s.db.Create(budget).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return budget, nil
}

// GetBudgetByID returns a budget by ID.
func (s *budgetService) GetBudgetByID(budgetID string) (*models.Budget, error) {
	var budget models.Budget
	if err := s.db.Where("id = ?", budgetID).First(&budget).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrBudgetNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &budget, nil
}

// ListBudgets returns a paginated list of budgets with optional period filter.
func (s *budgetService) ListBudgets(period *models.BudgetPeriod, page pagination.PageRequest) (*pagination.PageResponse[models.Budget], error) {
	page.Defaults()

	base := s.db.Model(&models.Budget{})
	if period != nil {
		base = base.Where("period = ?", *period)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var budgets []models.Budget
	if err := base.Preload("Category").Scopes(pagination.Paginate(page)).Find(&budgets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(budgets, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// UpdateBudget updates a budget's name, limit, or thresholds.
func (s *budgetService) UpdateBudget(budgetID, name string, limitAmount *int64, thresholds []int) (*models.Budget, error) {
	budget, err := s.GetBudgetByID(budgetID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if name != "" {
		updates["name"] = name
		budget.Name = name
	}
	if limitAmount != nil {
		if *limitAmount < 0 {
			return nil, apperrors.WithField(apperrors.ErrValidation, "limit_amount", "limit must not be negative")
		}
		updates["limit_amount"] = *limitAmount
		budget.LimitAmount = *limitAmount
	}
	if thresholds != nil {
		normalized, err := normalizeThresholds(thresholds, s.defaultThresholds)
		if err != nil {
			return nil, err
		}
		updates["alert_thresholds"] = normalized
		budget.AlertThresholds = normalized
	}

	if len(updates) > 0 {
		if err := s.db.Model(budget).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	// A new limit or threshold list changes percent_used without any
	// ledger activity; re-evaluate the latches now.
	if limitAmount != nil || thresholds != nil {
		refDate := time.Now().UTC()
		if budget.Period == models.BudgetPeriodCustom {
			refDate = *budget.StartDate
		}
		s.dispatcher.Enqueue(Signal{CategoryID: budget.CategoryID, Date: refDate})
		if err := s.dispatcher.Drain(); err != nil {
			return nil, err
		}
	}
	return budget, nil
}

// DeleteBudget removes a budget and its alert latches.
func (s *budgetService) DeleteBudget(budgetID string) error {
	budget, err := s.GetBudgetByID(budgetID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("target_type = ? AND target_id = ?", models.AlertTargetBudget, budgetID).
			Delete(&models.AlertState{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Delete(budget).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
}

// Status computes spend-vs-limit for the budget's window containing
// refDate. Spending rolls up the budget's category and every descendant.
func (s *budgetService) Status(budgetID string, refDate time.Time) (*BudgetStatus, error) {
	budget, err := s.GetBudgetByID(budgetID)
	if err != nil {
		return nil, err
	}
	return s.statusFor(budget, refDate)
}

func (s *budgetService) statusFor(budget *models.Budget, refDate time.Time) (*BudgetStatus, error) {
	start, end := periodWindow(budget, refDate)

	subtree, err := s.categories.SubtreeIDs(budget.CategoryID)
	if err != nil {
		return nil, err
	}

	var spent int64
	err = s.db.Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("category_id IN ? AND kind = ? AND date BETWEEN ? AND ?",
			subtree, models.TransactionKindExpense, start, end).
		Scan(&spent).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	status := &BudgetStatus{
		BudgetID:    budget.ID,
		WindowStart: start,
		WindowEnd:   end,
		Spent:       spent,
		Limit:       budget.LimitAmount,
		Remaining:   budget.LimitAmount - spent,
	}
	if budget.LimitAmount > 0 {
		percent := float64(spent) / float64(budget.LimitAmount) * 100
		status.PercentUsed = &percent
	}
	return status, nil
}

// AffectedBudgets returns the budgets whose spend could have changed
// when a transaction in the given category on the given date changed:
// those tracking the category itself or one of its ancestors, with a
// window containing the date. Everything else is skipped, so a ledger
// edit never triggers a full rescan.
func (s *budgetService) AffectedBudgets(categoryID string, date time.Time) ([]models.Budget, error) {
	ancestors, err := s.categories.Ancestors(categoryID)
	if err != nil {
		return nil, err
	}
	chain := append([]string{categoryID}, ancestors...)

	var budgets []models.Budget
	if err := s.db.Where("category_id IN ?", chain).Find(&budgets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	date = models.DateOnly(date)
	affected := budgets[:0]
	for _, budget := range budgets {
		start, end := periodWindow(&budget, date)
		if !date.Before(start) && !date.After(end) {
			affected = append(affected, budget)
		}
	}
	return affected, nil
}

// checkOverlap rejects a second budget covering the same category and
// period. Recurring budgets conflict when category and period match;
// custom budgets conflict when their stored ranges intersect.
func (s *budgetService) checkOverlap(categoryID string, period models.BudgetPeriod, startDate, endDate *time.Time, excludeID string) error {
	base := s.db.Model(&models.Budget{}).Where("category_id = ? AND period = ?", categoryID, period)
	if excludeID != "" {
		base = base.Where("id <> ?", excludeID)
	}
	if period == models.BudgetPeriodCustom {
		base = base.Where("start_date <= ? AND end_date >= ?", *endDate, *startDate)
	}

	var count int64
	if err := base.Count(&count).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return apperrors.ErrBudgetOverlap
	}
	return nil
}

// periodWindow returns the inclusive date window of a budget for the
// given reference date. Custom budgets ignore the reference date.
func periodWindow(budget *models.Budget, refDate time.Time) (time.Time, time.Time) {
	ref := models.DateOnly(refDate)
	switch budget.Period {
	case models.BudgetPeriodWeekly:
		// Monday through Sunday containing the reference date.
		offset := (int(ref.Weekday()) + 6) % 7
		start := ref.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 6)
	case models.BudgetPeriodMonthly:
		start := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, -1)
	case models.BudgetPeriodYearly:
		start := time.Date(ref.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		return start, time.Date(ref.Year(), 12, 31, 0, 0, 0, 0, time.UTC)
	default:
		return models.DateOnly(*budget.StartDate), models.DateOnly(*budget.EndDate)
	}
}

// normalizeThresholds validates and sorts a threshold list, falling
// back to the defaults when none are given.
func normalizeThresholds(thresholds, defaults []int) ([]int, error) {
	if len(thresholds) == 0 {
		return append([]int(nil), defaults...), nil
	}
	seen := make(map[int]bool, len(thresholds))
	out := make([]int, 0, len(thresholds))
	for _, t := range thresholds {
		if t <= 0 {
			return nil, apperrors.WithField(apperrors.ErrValidation, "alert_thresholds", "thresholds must be positive percentages")
		}
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Ints(out)
	return out, nil
}
