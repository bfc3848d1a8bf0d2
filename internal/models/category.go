package models

// CategoryKind represents whether a category groups income or expenses
type CategoryKind string

const (
	CategoryKindIncome  CategoryKind = "income"
	CategoryKindExpense CategoryKind = "expense"
)

// Category is a node in the spending/income category forest. The parent
// relation must stay acyclic; a child's kind always matches its parent's.
type Category struct {
	Base
	Name     string       `gorm:"not null" json:"name"`
	Kind     CategoryKind `gorm:"not null" json:"kind"`
	ParentID *string      `gorm:"type:uuid" json:"parent_id,omitempty"`

	// Relationships
	Parent   *Category  `gorm:"foreignKey:ParentID" json:"parent,omitempty"`
	Children []Category `gorm:"foreignKey:ParentID" json:"children,omitempty"`
}
