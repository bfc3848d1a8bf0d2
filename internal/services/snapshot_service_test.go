package services

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"fintrack/internal/models"
	"fintrack/internal/testutil"
)

func TestSnapshotRoundTrip(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	snapshots := NewSnapshotService(db)
	categories := NewCategoryService(db)

	parent, _ := categories.CreateCategory("Food", models.CategoryKindExpense, nil)
	child, _ := categories.CreateCategory("Snacks", models.CategoryKindExpense, &parent.ID)
	tx := testutil.CreateTestTransaction(t, db, child.ID, models.TransactionKindExpense, 1234, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	budget := testutil.CreateTestBudget(t, db, parent.ID, 40000, []int{80, 100})
	goal := testutil.CreateTestGoal(t, db, 99999)

	snap, err := snapshots.Export()
	testutil.AssertNoError(t, err)
	if snap.Version != SnapshotVersion {
		t.Fatalf("expected version %d, got %d", SnapshotVersion, snap.Version)
	}

	// Wipe and reimport into a fresh database.
	db2 := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db2)
	snapshots2 := NewSnapshotService(db2)

	testutil.AssertNoError(t, snapshots2.Import(snap))

	var categoryCount, txCount int64
	db2.Model(&models.Category{}).Count(&categoryCount)
	db2.Model(&models.Transaction{}).Count(&txCount)
	if categoryCount != 2 || txCount != 1 {
		t.Fatalf("expected 2 categories and 1 transaction, got %d and %d", categoryCount, txCount)
	}

	// IDs survive the round trip.
	var reloaded models.Transaction
	testutil.AssertNoError(t, db2.Where("id = ?", tx.ID).First(&reloaded).Error)
	if reloaded.Amount != 1234 {
		t.Errorf("expected amount 1234, got %d", reloaded.Amount)
	}

	var reloadedBudget models.Budget
	testutil.AssertNoError(t, db2.Where("id = ?", budget.ID).First(&reloadedBudget).Error)
	if len(reloadedBudget.AlertThresholds) != 2 {
		t.Errorf("expected thresholds preserved, got %v", reloadedBudget.AlertThresholds)
	}

	var reloadedGoal models.Goal
	testutil.AssertNoError(t, db2.Where("id = ?", goal.ID).First(&reloadedGoal).Error)
}

func TestImportValidation(t *testing.T) {
	t.Run("wrong_version_rejected", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		snapshots := NewSnapshotService(db)

		err := snapshots.Import(&Snapshot{Version: 2})
		testutil.AssertAppError(t, err, "SCHEMA_VERSION_ERROR")
	})

	t.Run("dangling_transaction_rejected", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		snapshots := NewSnapshotService(db)

		snap := &Snapshot{
			Version: SnapshotVersion,
			Transactions: []models.Transaction{{
				CategoryID: "018f7b48-0000-7000-8000-000000000000",
				Kind:       models.TransactionKindExpense,
				Amount:     100,
				Date:       time.Now(),
			}},
		}
		testutil.AssertAppError(t, snapshots.Import(snap), "INTEGRITY_ERROR")
	})

	t.Run("parent_cycle_rejected", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		snapshots := NewSnapshotService(db)

		idA := "018f7b48-0000-7000-8000-00000000000a"
		idB := "018f7b48-0000-7000-8000-00000000000b"
		snap := &Snapshot{
			Version: SnapshotVersion,
			Categories: []models.Category{
				{Base: models.Base{ID: idA}, Name: "A", Kind: models.CategoryKindExpense, ParentID: &idB},
				{Base: models.Base{ID: idB}, Name: "B", Kind: models.CategoryKindExpense, ParentID: &idA},
			},
		}
		testutil.AssertAppError(t, snapshots.Import(snap), "INTEGRITY_ERROR")

		var count int64
		db.Model(&models.Category{}).Count(&count)
		if count != 0 {
			t.Error("expected nothing imported from a cyclic snapshot")
		}
	})

	t.Run("parent_kind_mismatch_rejected", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		snapshots := NewSnapshotService(db)

		parentID := "018f7b48-0000-7000-8000-00000000000c"
		snap := &Snapshot{
			Version: SnapshotVersion,
			Categories: []models.Category{
				{Base: models.Base{ID: parentID}, Name: "Salary", Kind: models.CategoryKindIncome},
				{Base: models.Base{ID: "018f7b48-0000-7000-8000-00000000000d"}, Name: "Rent", Kind: models.CategoryKindExpense, ParentID: &parentID},
			},
		}
		testutil.AssertAppError(t, snapshots.Import(snap), "INTEGRITY_ERROR")
	})

	t.Run("failed_import_preserves_existing_data", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		snapshots := NewSnapshotService(db)

		existing := testutil.CreateTestCategory(t, db, models.CategoryKindExpense)

		err := snapshots.Import(&Snapshot{Version: 99})
		testutil.AssertAppError(t, err, "SCHEMA_VERSION_ERROR")

		var count int64
		db.Model(&models.Category{}).Where("id = ?", existing.ID).Count(&count)
		if count != 1 {
			t.Error("expected existing data untouched after a rejected import")
		}
	})
}

func TestSaveAndLoadFile(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	snapshots := NewSnapshotService(db)

	cat := testutil.CreateTestCategory(t, db, models.CategoryKindExpense)
	testutil.CreateTestTransaction(t, db, cat.ID, models.TransactionKindExpense, 500, time.Now())

	path := filepath.Join(t.TempDir(), "backup.json")
	testutil.AssertNoError(t, snapshots.SaveFile(path))

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected snapshot file, got %v", err)
	}

	// Load into an empty database.
	db2 := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db2)
	snapshots2 := NewSnapshotService(db2)

	testutil.AssertNoError(t, snapshots2.LoadFile(path))

	var count int64
	db2.Model(&models.Transaction{}).Count(&count)
	if count != 1 {
		t.Errorf("expected 1 transaction after load, got %d", count)
	}
}

func TestLoadFileBadJSON(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	snapshots := NewSnapshotService(db)

	path := filepath.Join(t.TempDir(), "garbage.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	testutil.AssertAppError(t, snapshots.LoadFile(path), "INTEGRITY_ERROR")
}
