package services

import (
	"testing"
	"time"

	"gorm.io/gorm"

	"fintrack/internal/models"
	"fintrack/internal/testutil"
)

type alertFixture struct {
	ledger  LedgerServicer
	budgets BudgetServicer
	goals   GoalServicer
	alerts  AlertServicer
	cats    CategoryServicer
	db      *gorm.DB
}

func newAlertFixture(t *testing.T) *alertFixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })

	dispatcher := NewDispatcher()
	categories := NewCategoryService(db)
	rules := NewRuleService(db, categories)
	budgets := NewBudgetService(db, categories, testDefaultThresholds, dispatcher)
	goals := NewGoalService(db, categories, dispatcher)
	alerts := NewAlertService(db, budgets, goals)
	dispatcher.Register(alerts)
	ledger := NewLedgerService(db, categories, rules, dispatcher)

	return &alertFixture{ledger: ledger, budgets: budgets, goals: goals, alerts: alerts, cats: categories, db: db}
}

func (f *alertFixture) spend(t *testing.T, categoryID string, amount int64, date time.Time) *models.Transaction {
	t.Helper()
	tx, err := f.ledger.AddTransaction(TransactionInput{
		CategoryID: categoryID,
		Kind:       models.TransactionKindExpense,
		Amount:     amount,
		Date:       date,
	}, false)
	testutil.AssertNoError(t, err)
	return tx
}

func (f *alertFixture) eventCount(t *testing.T, targetID string, threshold int) int64 {
	t.Helper()
	var count int64
	err := f.db.Model(&models.AlertEvent{}).
		Where("target_id = ? AND threshold = ?", targetID, threshold).
		Count(&count).Error
	testutil.AssertNoError(t, err)
	return count
}

func TestBudgetAlerts(t *testing.T) {
	t.Run("each_threshold_fires_once_per_crossing", func(t *testing.T) {
		f := newAlertFixture(t)
		cat, _ := f.cats.CreateCategory("Groceries", models.CategoryKindExpense, nil)
		budget, err := f.budgets.CreateBudget(BudgetInput{
			CategoryID:      cat.ID,
			Name:            "Groceries",
			Period:          models.BudgetPeriodMonthly,
			LimitAmount:     40000,
			AlertThresholds: []int{80, 100},
		})
		testutil.AssertNoError(t, err)

		ref := time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)

		// 30000 spent: 75%, nothing fires.
		f.spend(t, cat.ID, 15000, ref)
		f.spend(t, cat.ID, 15000, ref)
		if got := f.eventCount(t, budget.ID, 80); got != 0 {
			t.Fatalf("expected no events at 75%%, got %d", got)
		}

		// 36000 spent: 90%, the 80 threshold fires exactly once.
		f.spend(t, cat.ID, 6000, ref)
		if got := f.eventCount(t, budget.ID, 80); got != 1 {
			t.Fatalf("expected one 80%% event, got %d", got)
		}
		if got := f.eventCount(t, budget.ID, 100); got != 0 {
			t.Fatalf("expected no 100%% event yet, got %d", got)
		}

		// Another transaction while still above 80 must not re-fire.
		f.spend(t, cat.ID, 100, ref)
		if got := f.eventCount(t, budget.ID, 80); got != 1 {
			t.Fatalf("expected still one 80%% event, got %d", got)
		}

		// 41100 spent: over 100%, the 100 threshold fires once.
		f.spend(t, cat.ID, 5000, ref)
		if got := f.eventCount(t, budget.ID, 100); got != 1 {
			t.Fatalf("expected one 100%% event, got %d", got)
		}
	})

	t.Run("latch_rearms_when_spend_drops", func(t *testing.T) {
		f := newAlertFixture(t)
		cat, _ := f.cats.CreateCategory("Dining", models.CategoryKindExpense, nil)
		budget, err := f.budgets.CreateBudget(BudgetInput{
			CategoryID:      cat.ID,
			Name:            "Dining",
			Period:          models.BudgetPeriodMonthly,
			LimitAmount:     10000,
			AlertThresholds: []int{80},
		})
		testutil.AssertNoError(t, err)

		ref := time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)
		tx := f.spend(t, cat.ID, 9000, ref)
		if got := f.eventCount(t, budget.ID, 80); got != 1 {
			t.Fatalf("expected one event, got %d", got)
		}

		// Deleting the transaction drops spend below 80% and re-arms.
		testutil.AssertNoError(t, f.ledger.DeleteTransaction(tx.ID))

		var state models.AlertState
		err = f.db.Where("target_id = ? AND threshold = ?", budget.ID, 80).First(&state).Error
		testutil.AssertNoError(t, err)
		if state.State != models.AlertStateArmed {
			t.Fatalf("expected re-armed latch, got %s", state.State)
		}

		// Crossing again fires again.
		f.spend(t, cat.ID, 9000, ref)
		if got := f.eventCount(t, budget.ID, 80); got != 2 {
			t.Fatalf("expected two events after re-crossing, got %d", got)
		}
	})

	t.Run("limit_update_triggers_evaluation", func(t *testing.T) {
		f := newAlertFixture(t)
		cat, _ := f.cats.CreateCategory("Transport", models.CategoryKindExpense, nil)
		start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC)
		budget, err := f.budgets.CreateBudget(BudgetInput{
			CategoryID:      cat.ID,
			Name:            "May transport",
			Period:          models.BudgetPeriodCustom,
			LimitAmount:     40000,
			StartDate:       &start,
			EndDate:         &end,
			AlertThresholds: []int{80},
		})
		testutil.AssertNoError(t, err)

		// 30000 of 40000 is 75%, below the threshold.
		f.spend(t, cat.ID, 30000, time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC))
		if got := f.eventCount(t, budget.ID, 80); got != 0 {
			t.Fatalf("expected no events at 75%%, got %d", got)
		}

		// Lowering the limit pushes usage to 85.7% with no ledger
		// activity at all; the latch must still fire.
		newLimit := int64(35000)
		_, err = f.budgets.UpdateBudget(budget.ID, "", &newLimit, nil)
		testutil.AssertNoError(t, err)
		if got := f.eventCount(t, budget.ID, 80); got != 1 {
			t.Fatalf("expected one event after the limit update, got %d", got)
		}
	})

	t.Run("zero_limit_budget_never_fires", func(t *testing.T) {
		f := newAlertFixture(t)
		cat, _ := f.cats.CreateCategory("Tracked", models.CategoryKindExpense, nil)
		budget, err := f.budgets.CreateBudget(BudgetInput{
			CategoryID:  cat.ID,
			Name:        "Tracking only",
			Period:      models.BudgetPeriodMonthly,
			LimitAmount: 0,
		})
		testutil.AssertNoError(t, err)

		f.spend(t, cat.ID, 99999, time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC))

		var count int64
		f.db.Model(&models.AlertEvent{}).Where("target_id = ?", budget.ID).Count(&count)
		if count != 0 {
			t.Fatalf("expected no events for a zero-limit budget, got %d", count)
		}
	})
}

func TestGoalMilestones(t *testing.T) {
	t.Run("contribution_crosses_milestones", func(t *testing.T) {
		f := newAlertFixture(t)
		goal, err := f.goals.CreateGoal(GoalInput{
			Name: "Fund", Kind: models.GoalKindSavings, TargetAmount: 10000,
		})
		testutil.AssertNoError(t, err)

		// 30%: only the 25 milestone.
		_, _, err = f.goals.Contribute(goal.ID, 3000)
		testutil.AssertNoError(t, err)
		if got := f.eventCount(t, goal.ID, 25); got != 1 {
			t.Fatalf("expected one 25%% event, got %d", got)
		}
		if got := f.eventCount(t, goal.ID, 50); got != 0 {
			t.Fatalf("expected no 50%% event, got %d", got)
		}

		// Jump to 100%: 50, 75, and 100 each fire once.
		_, _, err = f.goals.Contribute(goal.ID, 7000)
		testutil.AssertNoError(t, err)
		for _, milestone := range []int{50, 75, 100} {
			if got := f.eventCount(t, goal.ID, milestone); got != 1 {
				t.Fatalf("expected one %d%% event, got %d", milestone, got)
			}
		}
	})

	t.Run("target_update_triggers_milestones", func(t *testing.T) {
		f := newAlertFixture(t)
		goal, err := f.goals.CreateGoal(GoalInput{
			Name: "Fund", Kind: models.GoalKindSavings, TargetAmount: 10000,
		})
		testutil.AssertNoError(t, err)

		// 20%: no milestone.
		_, _, err = f.goals.Contribute(goal.ID, 2000)
		testutil.AssertNoError(t, err)
		if got := f.eventCount(t, goal.ID, 25); got != 0 {
			t.Fatalf("expected no events at 20%%, got %d", got)
		}

		// A smaller target lifts progress to 50% without any
		// contribution; 25 and 50 fire once each.
		newTarget := int64(4000)
		_, err = f.goals.UpdateGoal(goal.ID, "", &newTarget, nil)
		testutil.AssertNoError(t, err)
		for _, milestone := range []int{25, 50} {
			if got := f.eventCount(t, goal.ID, milestone); got != 1 {
				t.Fatalf("expected one %d%% event after the target update, got %d", milestone, got)
			}
		}
	})

	t.Run("linked_goal_fires_from_ledger", func(t *testing.T) {
		f := newAlertFixture(t)
		cat, _ := f.cats.CreateCategory("Holiday fund", models.CategoryKindIncome, nil)
		goal, err := f.goals.CreateGoal(GoalInput{
			Name: "Holiday", Kind: models.GoalKindSavings, TargetAmount: 10000, LinkedCategoryID: &cat.ID,
		})
		testutil.AssertNoError(t, err)

		_, err = f.ledger.AddTransaction(TransactionInput{
			CategoryID: cat.ID,
			Kind:       models.TransactionKindIncome,
			Amount:     6000,
			Date:       time.Now(),
		}, false)
		testutil.AssertNoError(t, err)

		if got := f.eventCount(t, goal.ID, 50); got != 1 {
			t.Fatalf("expected one 50%% event from the ledger, got %d", got)
		}
	})
}

func TestRecentEventsAndSubscribe(t *testing.T) {
	f := newAlertFixture(t)
	goal, err := f.goals.CreateGoal(GoalInput{
		Name: "Fund", Kind: models.GoalKindSavings, TargetAmount: 10000,
	})
	testutil.AssertNoError(t, err)

	events, cancel := f.alerts.Subscribe()
	defer cancel()

	_, _, err = f.goals.Contribute(goal.ID, 3000)
	testutil.AssertNoError(t, err)

	select {
	case event := <-events:
		if event.TargetID != goal.ID || event.Threshold != 25 {
			t.Errorf("unexpected event: %+v", event)
		}
	default:
		t.Fatal("expected a published event")
	}

	recent, err := f.alerts.RecentEvents(10)
	testutil.AssertNoError(t, err)
	if len(recent) != 1 {
		t.Fatalf("expected one stored event, got %d", len(recent))
	}
}
