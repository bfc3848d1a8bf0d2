package models

import "time"

// GoalKind represents the type of financial goal
type GoalKind string

const (
	GoalKindSavings       GoalKind = "savings"
	GoalKindDebtReduction GoalKind = "debt_reduction"
)

// Goal tracks progress toward a savings or debt-reduction target.
// When LinkedCategoryID is set the current amount is derived from
// ledger transactions in that category since the goal was created;
// otherwise it only moves through explicit contributions.
type Goal struct {
	Base
	Name             string     `gorm:"not null" json:"name"`
	Kind             GoalKind   `gorm:"not null" json:"kind"`
	TargetAmount     int64      `gorm:"type:bigint;not null" json:"target_amount"`
	CurrentAmount    int64      `gorm:"type:bigint;not null;default:0" json:"current_amount"`
	Deadline         *time.Time `json:"deadline,omitempty"`
	LinkedCategoryID *string    `gorm:"type:uuid" json:"linked_category_id,omitempty"`
	Rank             int        `gorm:"default:0" json:"rank"`

	// Relationships
	LinkedCategory *Category `gorm:"foreignKey:LinkedCategoryID" json:"linked_category,omitempty"`
}
