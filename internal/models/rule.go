package models

// AutoRule maps a keyword to a category. When a transaction is added
// with rule resolution enabled, the longest keyword contained in the
// description wins and overrides the caller-supplied category.
type AutoRule struct {
	Base
	Keyword    string `gorm:"not null;uniqueIndex" json:"keyword"`
	CategoryID string `gorm:"type:uuid;not null;index" json:"category_id"`

	// Relationships
	Category Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}
