package services

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"gorm.io/gorm"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/logger"
	"fintrack/internal/models"
)

// SnapshotVersion is the schema version written into every export.
// Imports reject any other version.
const SnapshotVersion = 1

// Snapshot is the complete persisted state of the tracker as one
// JSON-serialisable document.
type Snapshot struct {
	Version      int                  `json:"version"`
	ExportedAt   time.Time            `json:"exported_at"`
	Categories   []models.Category    `json:"categories"`
	Transactions []models.Transaction `json:"transactions"`
	Budgets      []models.Budget      `json:"budgets"`
	Goals        []models.Goal        `json:"goals"`
	Rules        []models.AutoRule    `json:"rules"`
	AlertStates  []models.AlertState  `json:"alert_states"`
	AlertEvents  []models.AlertEvent  `json:"alert_events"`
}

// snapshotService exports and imports the full dataset. Imports replace
// everything or nothing; file saves go through a temp file and rename so
// a crash never leaves a half-written snapshot behind.
type snapshotService struct {
	db *gorm.DB
}

// NewSnapshotService creates a new SnapshotServicer.
func NewSnapshotService(db *gorm.DB) SnapshotServicer {
	return &snapshotService{db: db}
}

// Export collects all active rows into a snapshot.
func (s *snapshotService) Export() (*Snapshot, error) {
	snap := &Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: time.Now().UTC(),
	}

	collect := func(dest interface{}) error {
		if err := s.db.Find(dest).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	}
	if err := collect(&snap.Categories); err != nil {
		return nil, err
	}
	if err := collect(&snap.Transactions); err != nil {
		return nil, err
	}
	if err := collect(&snap.Budgets); err != nil {
		return nil, err
	}
	if err := collect(&snap.Goals); err != nil {
		return nil, err
	}
	if err := collect(&snap.Rules); err != nil {
		return nil, err
	}
	if err := collect(&snap.AlertStates); err != nil {
		return nil, err
	}
	if err := collect(&snap.AlertEvents); err != nil {
		return nil, err
	}
	return snap, nil
}

// Import replaces the entire dataset with the snapshot's contents.
// The snapshot is validated first; a failure at any point rolls back,
// leaving the previous data untouched.
func (s *snapshotService) Import(snap *Snapshot) error {
	if snap.Version != SnapshotVersion {
		return apperrors.WithMessage(apperrors.ErrSchemaVersion, "unsupported snapshot version")
	}
	if err := validateSnapshot(snap); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		purge := []interface{}{
			&models.AlertEvent{}, &models.AlertState{}, &models.AutoRule{},
			&models.Goal{}, &models.Budget{}, &models.Transaction{}, &models.Category{},
		}
		for _, model := range purge {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(model).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}

		insert := func(rows interface{}, count int) error {
			if count == 0 {
				return nil
			}
			if err := tx.Create(rows).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			return nil
		}
		if err := insert(&snap.Categories, len(snap.Categories)); err != nil {
			return err
		}
		if err := insert(&snap.Transactions, len(snap.Transactions)); err != nil {
			return err
		}
		if err := insert(&snap.Budgets, len(snap.Budgets)); err != nil {
			return err
		}
		if err := insert(&snap.Goals, len(snap.Goals)); err != nil {
			return err
		}
		if err := insert(&snap.Rules, len(snap.Rules)); err != nil {
			return err
		}
		if err := insert(&snap.AlertStates, len(snap.AlertStates)); err != nil {
			return err
		}
		if err := insert(&snap.AlertEvents, len(snap.AlertEvents)); err != nil {
			return err
		}
		return nil
	})
}

// validateSnapshot checks referential integrity before anything is
// deleted: every category reference must resolve within the snapshot,
// and the categories must form a valid forest (no parent cycles, child
// kind matching its parent's).
func validateSnapshot(snap *Snapshot) error {
	categoryIDs := make(map[string]bool, len(snap.Categories))
	byID := make(map[string]*models.Category, len(snap.Categories))
	for i := range snap.Categories {
		if snap.Categories[i].ID == "" {
			return apperrors.WithMessage(apperrors.ErrIntegrity, "category without an id")
		}
		categoryIDs[snap.Categories[i].ID] = true
		byID[snap.Categories[i].ID] = &snap.Categories[i]
	}
	for i := range snap.Categories {
		category := &snap.Categories[i]
		if category.ParentID == nil {
			continue
		}
		parent, ok := byID[*category.ParentID]
		if !ok {
			return apperrors.WithMessage(apperrors.ErrIntegrity, "category references a missing parent")
		}
		if parent.Kind != category.Kind {
			return apperrors.WithMessage(apperrors.ErrIntegrity, "category kind differs from its parent's")
		}
	}
	for i := range snap.Categories {
		// A parent chain longer than the category count must revisit
		// a node.
		steps := 0
		for cur := &snap.Categories[i]; cur.ParentID != nil; cur = byID[*cur.ParentID] {
			steps++
			if steps > len(snap.Categories) {
				return apperrors.WithMessage(apperrors.ErrIntegrity, "category parents form a cycle")
			}
		}
	}
	for i := range snap.Transactions {
		if !categoryIDs[snap.Transactions[i].CategoryID] {
			return apperrors.WithMessage(apperrors.ErrIntegrity, "transaction references a missing category")
		}
	}
	for i := range snap.Budgets {
		if !categoryIDs[snap.Budgets[i].CategoryID] {
			return apperrors.WithMessage(apperrors.ErrIntegrity, "budget references a missing category")
		}
	}
	for i := range snap.Goals {
		if l := snap.Goals[i].LinkedCategoryID; l != nil && !categoryIDs[*l] {
			return apperrors.WithMessage(apperrors.ErrIntegrity, "goal references a missing category")
		}
	}
	for i := range snap.Rules {
		if !categoryIDs[snap.Rules[i].CategoryID] {
			return apperrors.WithMessage(apperrors.ErrIntegrity, "rule references a missing category")
		}
	}
	return nil
}

// SaveFile exports the dataset and writes it to path atomically: the
// JSON goes to a temp file in the same directory, then renames over the
// destination.
func (s *snapshotService) SaveFile(path string) error {
	snap, err := s.Export()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	logger.Get().Infow("snapshot saved", "path", path, "bytes", len(data))
	return nil
}

// LoadFile reads a snapshot file and imports it.
func (s *snapshotService) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return apperrors.Wrap(apperrors.WithMessage(apperrors.ErrIntegrity, "snapshot file could not be read"), err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return apperrors.Wrap(apperrors.WithMessage(apperrors.ErrIntegrity, "snapshot file is not valid JSON"), err)
	}

	if err := s.Import(&snap); err != nil {
		return err
	}
	logger.Get().Infow("snapshot loaded", "path", path)
	return nil
}
