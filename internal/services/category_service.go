package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
)

// categoryService owns the category forest and its invariants: no
// category may become its own ancestor, and a child's kind always
// matches its parent's.
type categoryService struct {
	db *gorm.DB
}

// NewCategoryService creates a new CategoryServicer.
func NewCategoryService(db *gorm.DB) CategoryServicer {
	return &categoryService{db: db}
}

const categoryNameMaxLength = 40

// validateCategoryName normalises and checks a category name.
func validateCategoryName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperrors.WithField(apperrors.ErrValidation, "name", "category name is required")
	}
	if len(name) > categoryNameMaxLength {
		return "", apperrors.WithField(apperrors.ErrValidation, "name", "category name is too long")
	}
	return name, nil
}

// CreateCategory creates a new category, optionally under a parent of
// the same kind.
func (s *categoryService) CreateCategory(name string, kind models.CategoryKind, parentID *string) (*models.Category, error) {
	name, err := validateCategoryName(name)
	if err != nil {
		return nil, err
	}
	if kind != models.CategoryKindIncome && kind != models.CategoryKindExpense {
		return nil, apperrors.WithField(apperrors.ErrValidation, "kind", "kind must be income or expense")
	}

	if parentID != nil {
		parent, err := s.GetCategoryByID(*parentID)
		if err != nil {
			return nil, err
		}
		if parent.Kind != kind {
			return nil, apperrors.WithMessage(apperrors.ErrKindMismatch, "child category kind must match its parent")
		}
	}

	if err := s.checkDuplicateName(name, kind, parentID, ""); err != nil {
		return nil, err
	}

	category := &models.Category{
		Name:     name,
		Kind:     kind,
		ParentID: parentID,
	}
	if err := s.db.Create(category).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return category, nil
}

// RenameCategory changes a category's name.
func (s *categoryService) RenameCategory(categoryID, name string) (*models.Category, error) {
	name, err := validateCategoryName(name)
	if err != nil {
		return nil, err
	}

	category, err := s.GetCategoryByID(categoryID)
	if err != nil {
		return nil, err
	}

	if err := s.checkDuplicateName(name, category.Kind, category.ParentID, categoryID); err != nil {
		return nil, err
	}

	if err := s.db.Model(category).Update("name", name).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return category, nil
}

// ReparentCategory moves a category under a new parent (or to the root
// when newParentID is nil). The ancestor walk runs before anything is
// written, so a rejected reparent leaves the tree untouched.
func (s *categoryService) ReparentCategory(categoryID string, newParentID *string) (*models.Category, error) {
	category, err := s.GetCategoryByID(categoryID)
	if err != nil {
		return nil, err
	}

	if newParentID != nil {
		if *newParentID == categoryID {
			return nil, apperrors.WithEntity(apperrors.ErrCategoryCycle, categoryID)
		}
		parent, err := s.GetCategoryByID(*newParentID)
		if err != nil {
			return nil, apperrors.WithMessage(apperrors.ErrCategoryNotFound, "parent category not found")
		}
		if parent.Kind != category.Kind {
			return nil, apperrors.WithMessage(apperrors.ErrKindMismatch, "child category kind must match its parent")
		}
		ancestors, err := s.Ancestors(*newParentID)
		if err != nil {
			return nil, err
		}
		for _, ancestorID := range ancestors {
			if ancestorID == categoryID {
				return nil, apperrors.WithEntity(apperrors.ErrCategoryCycle, categoryID)
			}
		}
	}

	if err := s.checkDuplicateName(category.Name, category.Kind, newParentID, categoryID); err != nil {
		return nil, err
	}

	if err := s.db.Model(category).Update("parent_id", newParentID).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	category.ParentID = newParentID
	return category, nil
}

// DeleteCategory removes a category. The delete is rejected while any
// transaction, budget, goal, or rule references the category or one of
// its descendants; references are never cascaded.
func (s *categoryService) DeleteCategory(categoryID string) error {
	category, err := s.GetCategoryByID(categoryID)
	if err != nil {
		return err
	}

	subtree, err := s.SubtreeIDs(categoryID)
	if err != nil {
		return err
	}

	inUse, err := s.subtreeInUse(subtree)
	if err != nil {
		return err
	}
	if inUse {
		return apperrors.WithEntity(apperrors.ErrCategoryInUse, categoryID)
	}

	// Children move up to the deleted category's parent so the rest of
	// the subtree stays reachable.
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Category{}).
			Where("parent_id = ?", categoryID).
			Update("parent_id", category.ParentID).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Delete(category).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
}

// GetCategoryByID retrieves a category by ID.
func (s *categoryService) GetCategoryByID(categoryID string) (*models.Category, error) {
	var category models.Category
	if err := s.db.Where("id = ?", categoryID).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &category, nil
}

// LookupCategory retrieves a category by exact name and kind. Used by
// the CSV importer, which maps statement rows by category name.
func (s *categoryService) LookupCategory(name string, kind models.CategoryKind) (*models.Category, error) {
	var category models.Category
	if err := s.db.Where("name = ? AND kind = ?", strings.TrimSpace(name), kind).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &category, nil
}

// ListCategories retrieves a paginated list of categories, optionally
// filtered by kind.
func (s *categoryService) ListCategories(kind *models.CategoryKind, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error) {
	page.Defaults()

	base := s.db.Model(&models.Category{})
	if kind != nil {
		base = base.Where("kind = ?", *kind)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var categories []models.Category
	if err := base.Order("name").Scopes(pagination.Paginate(page)).Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(categories, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// Descendants returns the ids of every category below the given one.
func (s *categoryService) Descendants(categoryID string) ([]string, error) {
	subtree, err := s.SubtreeIDs(categoryID)
	if err != nil {
		return nil, err
	}
	return subtree[1:], nil
}

// SubtreeIDs returns the given category id followed by all descendant
// ids, breadth-first. The walk is bounded by the total category count,
// so it terminates even if the stored parent relation were damaged.
func (s *categoryService) SubtreeIDs(categoryID string) ([]string, error) {
	if _, err := s.GetCategoryByID(categoryID); err != nil {
		return nil, err
	}

	children, err := s.childrenIndex()
	if err != nil {
		return nil, err
	}

	ids := []string{categoryID}
	for cursor := 0; cursor < len(ids); cursor++ {
		ids = append(ids, children[ids[cursor]]...)
	}
	return ids, nil
}

// Ancestors returns the chain of parent ids from the given category up
// to its root, nearest first.
func (s *categoryService) Ancestors(categoryID string) ([]string, error) {
	category, err := s.GetCategoryByID(categoryID)
	if err != nil {
		return nil, err
	}

	var ancestors []string
	seen := map[string]bool{categoryID: true}
	current := category.ParentID
	for current != nil {
		if seen[*current] {
			// A stored cycle should be impossible; stop rather than loop.
			return nil, apperrors.WithEntity(apperrors.ErrCategoryCycle, *current)
		}
		seen[*current] = true
		ancestors = append(ancestors, *current)

		parent, err := s.GetCategoryByID(*current)
		if err != nil {
			return nil, err
		}
		current = parent.ParentID
	}
	return ancestors, nil
}

// childrenIndex loads the parent relation as a parent id -> child ids map.
func (s *categoryService) childrenIndex() (map[string][]string, error) {
	var categories []models.Category
	if err := s.db.Select("id", "parent_id").Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	children := make(map[string][]string, len(categories))
	for _, c := range categories {
		if c.ParentID != nil {
			children[*c.ParentID] = append(children[*c.ParentID], c.ID)
		}
	}
	return children, nil
}

// checkDuplicateName rejects a sibling of the same kind with the same name.
func (s *categoryService) checkDuplicateName(name string, kind models.CategoryKind, parentID *string, excludeID string) error {
	base := s.db.Model(&models.Category{}).Where("name = ? AND kind = ?", name, kind)
	if parentID != nil {
		base = base.Where("parent_id = ?", *parentID)
	} else {
		base = base.Where("parent_id IS NULL")
	}
	if excludeID != "" {
		base = base.Where("id <> ?", excludeID)
	}

	var count int64
	if err := base.Count(&count).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return apperrors.ErrDuplicateName
	}
	return nil
}

// subtreeInUse reports whether any transaction, budget, goal, or rule
// references one of the given category ids.
func (s *categoryService) subtreeInUse(ids []string) (bool, error) {
	checks := []struct {
		model  interface{}
		column string
	}{
		{&models.Transaction{}, "category_id"},
		{&models.Budget{}, "category_id"},
		{&models.Goal{}, "linked_category_id"},
		{&models.AutoRule{}, "category_id"},
	}
	for _, check := range checks {
		var count int64
		if err := s.db.Model(check.model).Where(check.column+" IN ?", ids).Count(&count).Error; err != nil {
			return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if count > 0 {
			return true, nil
		}
	}
	return false, nil
}
