package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"fintrack/internal/models"

	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestCategory creates a root category of the given kind.
func CreateTestCategory(t *testing.T, db *gorm.DB, kind models.CategoryKind) *models.Category {
	t.Helper()
	return CreateTestChildCategory(t, db, kind, nil)
}

// CreateTestChildCategory creates a category under the given parent.
func CreateTestChildCategory(t *testing.T, db *gorm.DB, kind models.CategoryKind, parentID *string) *models.Category {
	t.Helper()

	category := &models.Category{
		Name:     fmt.Sprintf("Test Category %d", nextID()),
		Kind:     kind,
		ParentID: parentID,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateTestTransaction creates a transaction in the given category.
// Amount is in minor units.
func CreateTestTransaction(t *testing.T, db *gorm.DB, categoryID string, kind models.TransactionKind, amount int64, date time.Time) *models.Transaction {
	t.Helper()

	transaction := &models.Transaction{
		CategoryID:  categoryID,
		Kind:        kind,
		Amount:      amount,
		Description: fmt.Sprintf("Test Transaction %d", nextID()),
		Date:        models.DateOnly(date),
	}
	if err := db.Create(transaction).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return transaction
}

// CreateTestBudget creates a monthly budget with the given limit and
// thresholds.
func CreateTestBudget(t *testing.T, db *gorm.DB, categoryID string, limitAmount int64, thresholds []int) *models.Budget {
	t.Helper()

	budget := &models.Budget{
		CategoryID:      categoryID,
		Name:            fmt.Sprintf("Test Budget %d", nextID()),
		Period:          models.BudgetPeriodMonthly,
		LimitAmount:     limitAmount,
		AlertThresholds: thresholds,
	}
	if err := db.Create(budget).Error; err != nil {
		t.Fatalf("failed to create test budget: %v", err)
	}
	return budget
}

// CreateTestGoal creates an unlinked savings goal with the given target.
func CreateTestGoal(t *testing.T, db *gorm.DB, targetAmount int64) *models.Goal {
	t.Helper()

	goal := &models.Goal{
		Name:         fmt.Sprintf("Test Goal %d", nextID()),
		Kind:         models.GoalKindSavings,
		TargetAmount: targetAmount,
	}
	if err := db.Create(goal).Error; err != nil {
		t.Fatalf("failed to create test goal: %v", err)
	}
	return goal
}
