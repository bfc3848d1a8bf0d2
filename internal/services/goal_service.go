package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
)

// goalService tracks savings and debt-reduction goals. Goals linked to
// a category derive their current amount from the ledger; unlinked
// goals move only through explicit contributions.
type goalService struct {
	db         *gorm.DB
	categories CategoryServicer
	dispatcher *Dispatcher
}

// NewGoalService creates a new GoalServicer.
func NewGoalService(db *gorm.DB, categories CategoryServicer, dispatcher *Dispatcher) GoalServicer {
	return &goalService{
		db:         db,
		categories: categories,
		dispatcher: dispatcher,
	}
}

// CreateGoal creates a new goal.
func (s *goalService) CreateGoal(in GoalInput) (*models.Goal, error) {
	if in.Name == "" {
		return nil, apperrors.WithField(apperrors.ErrValidation, "name", "goal name is required")
	}
	if in.Kind != models.GoalKindSavings && in.Kind != models.GoalKindDebtReduction {
		return nil, apperrors.WithField(apperrors.ErrValidation, "kind", "kind must be savings or debt_reduction")
	}
	if in.TargetAmount <= 0 {
		return nil, apperrors.WithField(apperrors.ErrValidation, "target_amount", "target amount must be greater than zero")
	}
	if in.LinkedCategoryID != nil {
		if _, err := s.categories.GetCategoryByID(*in.LinkedCategoryID); err != nil {
			return nil, err
		}
	}

	var deadline *time.Time
	if in.Deadline != nil {
		d := models.DateOnly(*in.Deadline)
		deadline = &d
	}

	goal := &models.Goal{
		Name:             in.Name,
		Kind:             in.Kind,
		TargetAmount:     in.TargetAmount,
		Deadline:         deadline,
		LinkedCategoryID: in.LinkedCategoryID,
		Rank:             in.Rank,
	}
	if err := s.db.Create(goal).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return goal, nil
}

// GetGoalByID returns a goal by ID.
func (s *goalService) GetGoalByID(goalID string) (*models.Goal, error) {
	var goal models.Goal
	if err := s.db.Where("id = ?", goalID).First(&goal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrGoalNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &goal, nil
}

// ListGoals returns goals ordered by rank.
func (s *goalService) ListGoals(page pagination.PageRequest) (*pagination.PageResponse[models.Goal], error) {
	page.Defaults()

	var totalItems int64
	if err := s.db.Model(&models.Goal{}).Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var goals []models.Goal
	if err := s.db.Order("rank, created_at").Scopes(pagination.Paginate(page)).Find(&goals).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(goals, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// UpdateGoal updates a goal's name, target, or deadline.
func (s *goalService) UpdateGoal(goalID, name string, targetAmount *int64, deadline *time.Time) (*models.Goal, error) {
	goal, err := s.GetGoalByID(goalID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if name != "" {
		updates["name"] = name
		goal.Name = name
	}
	if targetAmount != nil {
		if *targetAmount <= 0 {
			return nil, apperrors.WithField(apperrors.ErrValidation, "target_amount", "target amount must be greater than zero")
		}
		updates["target_amount"] = *targetAmount
		goal.TargetAmount = *targetAmount
	}
	if deadline != nil {
		d := models.DateOnly(*deadline)
		updates["deadline"] = d
		goal.Deadline = &d
	}

	if len(updates) > 0 {
		if err := s.db.Model(goal).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	// A new target changes percent progress without any contribution;
	// re-evaluate the milestone latches now.
	if targetAmount != nil {
		s.dispatcher.Enqueue(Signal{GoalID: goalID})
		if err := s.dispatcher.Drain(); err != nil {
			return nil, err
		}
	}
	return goal, nil
}

// SetGoalRank updates a goal's display rank.
func (s *goalService) SetGoalRank(goalID string, rank int) error {
	goal, err := s.GetGoalByID(goalID)
	if err != nil {
		return err
	}
	if err := s.db.Model(goal).Update("rank", rank).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// DeleteGoal removes a goal and its alert latches.
func (s *goalService) DeleteGoal(goalID string) error {
	goal, err := s.GetGoalByID(goalID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("target_type = ? AND target_id = ?", models.AlertTargetGoal, goalID).
			Delete(&models.AlertState{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Delete(goal).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
}

// Contribute applies an explicit contribution to an unlinked goal.
// Amounts may be negative (debt-reduction setbacks). The current amount
// clamps to [0, target]; when clamping occurs the operation still
// succeeds and a GOAL_OVERFLOW warning is returned alongside the goal.
func (s *goalService) Contribute(goalID string, amount int64) (*models.Goal, *apperrors.AppError, error) {
	goal, err := s.GetGoalByID(goalID)
	if err != nil {
		return nil, nil, err
	}
	if goal.LinkedCategoryID != nil {
		return nil, nil, apperrors.WithField(apperrors.ErrValidation, "goal_id", "linked goals derive progress from the ledger")
	}

	var warning *apperrors.AppError
	next := goal.CurrentAmount + amount
	if next < 0 {
		next = 0
		warning = apperrors.WithMessage(apperrors.ErrGoalOverflow, "contribution clamped at zero")
	} else if next > goal.TargetAmount {
		next = goal.TargetAmount
		warning = apperrors.WithMessage(apperrors.ErrGoalOverflow, "contribution clamped at the target amount")
	}

	if err := s.db.Model(goal).Update("current_amount", next).Error; err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	goal.CurrentAmount = next

	s.dispatcher.Enqueue(Signal{GoalID: goalID})
	if err := s.dispatcher.Drain(); err != nil {
		return nil, nil, err
	}
	return goal, warning, nil
}

// Progress returns derived progress for a goal. Linked goals compute
// their current amount from ledger entries in the linked category since
// the goal was created: net income minus expenses for savings goals,
// expense totals for debt reduction.
func (s *goalService) Progress(goalID string) (*GoalProgress, error) {
	goal, err := s.GetGoalByID(goalID)
	if err != nil {
		return nil, err
	}
	return s.progressFor(goal)
}

func (s *goalService) progressFor(goal *models.Goal) (*GoalProgress, error) {
	current := goal.CurrentAmount
	if goal.LinkedCategoryID != nil {
		derived, err := s.derivedAmount(goal)
		if err != nil {
			return nil, err
		}
		current = derived
	}

	progress := &GoalProgress{
		GoalID:        goal.ID,
		CurrentAmount: current,
		TargetAmount:  goal.TargetAmount,
		Percent:       float64(current) / float64(goal.TargetAmount) * 100,
		Complete:      current >= goal.TargetAmount,
	}
	if goal.Deadline != nil && !progress.Complete {
		progress.Overdue = models.DateOnly(time.Now()).After(*goal.Deadline)
	}
	return progress, nil
}

func (s *goalService) derivedAmount(goal *models.Goal) (int64, error) {
	since := models.DateOnly(goal.CreatedAt)

	sum := func(kind models.TransactionKind) (int64, error) {
		var total int64
		err := s.db.Model(&models.Transaction{}).
			Select("COALESCE(SUM(amount), 0)").
			Where("category_id = ? AND kind = ? AND date >= ?", *goal.LinkedCategoryID, kind, since).
			Scan(&total).Error
		if err != nil {
			return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return total, nil
	}

	if goal.Kind == models.GoalKindDebtReduction {
		return sum(models.TransactionKindExpense)
	}

	income, err := sum(models.TransactionKindIncome)
	if err != nil {
		return 0, err
	}
	expenses, err := sum(models.TransactionKindExpense)
	if err != nil {
		return 0, err
	}
	return income - expenses, nil
}

// OverdueGoals lists incomplete goals whose deadline has passed. They
// are reported, never removed.
func (s *goalService) OverdueGoals() ([]models.Goal, error) {
	today := models.DateOnly(time.Now())

	var goals []models.Goal
	if err := s.db.Where("deadline IS NOT NULL AND deadline < ?", today).Order("deadline").Find(&goals).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	overdue := goals[:0]
	for i := range goals {
		progress, err := s.progressFor(&goals[i])
		if err != nil {
			return nil, err
		}
		if !progress.Complete {
			overdue = append(overdue, goals[i])
		}
	}
	return overdue, nil
}

// GoalsLinkedTo returns goals deriving progress from the given category.
func (s *goalService) GoalsLinkedTo(categoryID string) ([]models.Goal, error) {
	var goals []models.Goal
	if err := s.db.Where("linked_category_id = ?", categoryID).Find(&goals).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return goals, nil
}
