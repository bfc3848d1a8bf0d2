package services

import (
	"testing"
	"time"

	"fintrack/internal/models"
	"fintrack/internal/testutil"
)

func TestReportWindow(t *testing.T) {
	t.Run("weekly", func(t *testing.T) {
		start, end, err := reportWindow(ReportRequest{
			Period:  ReportPeriodWeekly,
			RefDate: time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC), // Wednesday
		})
		testutil.AssertNoError(t, err)
		if !start.Equal(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)) || !end.Equal(time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("expected Mon..Sun, got %v..%v", start, end)
		}
	})

	t.Run("custom_requires_dates", func(t *testing.T) {
		_, _, err := reportWindow(ReportRequest{Period: ReportPeriodCustom})
		testutil.AssertAppError(t, err, "VALIDATION_ERROR")
	})

	t.Run("custom_end_before_start_rejected", func(t *testing.T) {
		s := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
		e := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
		_, _, err := reportWindow(ReportRequest{Period: ReportPeriodCustom, StartDate: &s, EndDate: &e})
		testutil.AssertAppError(t, err, "VALIDATION_ERROR")
	})

	t.Run("unknown_period_rejected", func(t *testing.T) {
		_, _, err := reportWindow(ReportRequest{Period: "quarterly"})
		testutil.AssertAppError(t, err, "VALIDATION_ERROR")
	})
}

func TestReportTotalsAndRollups(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	categories := NewCategoryService(db)
	reports := NewReportService(db, categories)

	food, _ := categories.CreateCategory("Food", models.CategoryKindExpense, nil)
	snacks, _ := categories.CreateCategory("Snacks", models.CategoryKindExpense, &food.ID)
	salary, _ := categories.CreateCategory("Salary", models.CategoryKindIncome, nil)

	march := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	testutil.CreateTestTransaction(t, db, food.ID, models.TransactionKindExpense, 10000, march)
	testutil.CreateTestTransaction(t, db, snacks.ID, models.TransactionKindExpense, 2000, march.AddDate(0, 0, 5))
	testutil.CreateTestTransaction(t, db, salary.ID, models.TransactionKindIncome, 300000, march)
	// Previous month, must only show up in the delta.
	testutil.CreateTestTransaction(t, db, food.ID, models.TransactionKindExpense, 5000, march.AddDate(0, -1, 0))

	report, err := reports.Report(ReportRequest{Period: ReportPeriodMonthly, RefDate: march})
	testutil.AssertNoError(t, err)

	t.Run("totals", func(t *testing.T) {
		if report.Totals.Income != 300000 {
			t.Errorf("expected income 300000, got %d", report.Totals.Income)
		}
		if report.Totals.Expenses != 12000 {
			t.Errorf("expected expenses 12000, got %d", report.Totals.Expenses)
		}
		if report.Totals.Net != 288000 {
			t.Errorf("expected net 288000, got %d", report.Totals.Net)
		}
	})

	t.Run("rollups", func(t *testing.T) {
		var foodRow, snacksRow *CategoryRollup
		for i := range report.Categories {
			switch report.Categories[i].CategoryID {
			case food.ID:
				foodRow = &report.Categories[i]
			case snacks.ID:
				snacksRow = &report.Categories[i]
			}
		}
		if foodRow == nil || snacksRow == nil {
			t.Fatalf("expected rows for both categories, got %v", report.Categories)
		}
		if foodRow.Direct != 10000 {
			t.Errorf("expected Food direct 10000, got %d", foodRow.Direct)
		}
		if foodRow.Rolled != 12000 {
			t.Errorf("expected Food rolled 12000, got %d", foodRow.Rolled)
		}
		if snacksRow.Rolled != 2000 {
			t.Errorf("expected Snacks rolled 2000, got %d", snacksRow.Rolled)
		}
	})

	t.Run("previous_delta", func(t *testing.T) {
		if report.Previous == nil {
			t.Fatal("expected a previous-period delta")
		}
		if report.Previous.Totals.Expenses != 5000 {
			t.Errorf("expected previous expenses 5000, got %d", report.Previous.Totals.Expenses)
		}
		if report.Previous.ExpensesChange != 7000 {
			t.Errorf("expected expenses change 7000, got %d", report.Previous.ExpensesChange)
		}
	})

	t.Run("buckets_cover_window", func(t *testing.T) {
		if report.Granularity != GranularityDay {
			t.Fatalf("expected day granularity, got %s", report.Granularity)
		}
		if len(report.Buckets) != 31 {
			t.Fatalf("expected 31 day buckets for March, got %d", len(report.Buckets))
		}
		var sum int64
		for _, bucket := range report.Buckets {
			sum += bucket.Totals.Expenses
		}
		if sum != report.Totals.Expenses {
			t.Errorf("expected bucket expenses to sum to %d, got %d", report.Totals.Expenses, sum)
		}
	})

	t.Run("deterministic_repeat", func(t *testing.T) {
		again, err := reports.Report(ReportRequest{Period: ReportPeriodMonthly, RefDate: march})
		testutil.AssertNoError(t, err)
		if len(again.Categories) != len(report.Categories) {
			t.Fatalf("expected identical rollup count")
		}
		for i := range again.Categories {
			if again.Categories[i] != report.Categories[i] {
				t.Errorf("row %d differs between runs", i)
			}
		}
	})
}

func TestReportYearlyBuckets(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	categories := NewCategoryService(db)
	reports := NewReportService(db, categories)

	cat := testutil.CreateTestCategory(t, db, models.CategoryKindExpense)
	testutil.CreateTestTransaction(t, db, cat.ID, models.TransactionKindExpense, 100, time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC))

	report, err := reports.Report(ReportRequest{
		Period:  ReportPeriodYearly,
		RefDate: time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC),
	})
	testutil.AssertNoError(t, err)

	if report.Granularity != GranularityMonth {
		t.Fatalf("expected month granularity, got %s", report.Granularity)
	}
	if len(report.Buckets) != 12 {
		t.Fatalf("expected 12 buckets, got %d", len(report.Buckets))
	}
	if report.Buckets[6].Label != "2025-07" {
		t.Errorf("expected July label 2025-07, got %s", report.Buckets[6].Label)
	}
	if report.Buckets[6].Totals.Expenses != 100 {
		t.Errorf("expected July expenses 100, got %d", report.Buckets[6].Totals.Expenses)
	}
}

func TestReportCustomPreviousWindow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	categories := NewCategoryService(db)
	reports := NewReportService(db, categories)

	cat := testutil.CreateTestCategory(t, db, models.CategoryKindExpense)
	testutil.CreateTestTransaction(t, db, cat.ID, models.TransactionKindExpense, 700, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC))

	start := time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	report, err := reports.Report(ReportRequest{Period: ReportPeriodCustom, StartDate: &start, EndDate: &end})
	testutil.AssertNoError(t, err)

	// The preceding window is the 7 days ending the day before start.
	if report.Previous == nil {
		t.Fatal("expected a previous window")
	}
	if !report.Previous.StartDate.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected previous start 2025-03-01, got %v", report.Previous.StartDate)
	}
	if report.Previous.Totals.Expenses != 700 {
		t.Errorf("expected previous expenses 700, got %d", report.Previous.Totals.Expenses)
	}
}
