package models

import "time"

// BudgetPeriod represents the period type for a budget
type BudgetPeriod string

const (
	BudgetPeriodWeekly  BudgetPeriod = "weekly"
	BudgetPeriodMonthly BudgetPeriod = "monthly"
	BudgetPeriodYearly  BudgetPeriod = "yearly"
	BudgetPeriodCustom  BudgetPeriod = "custom"
)

// Budget caps expense spending for a category (descendants included)
// over a period window. Weekly/monthly/yearly windows are derived from
// a reference date; custom budgets carry their own fixed range.
// Spent amounts are never stored, always recomputed from the ledger.
type Budget struct {
	Base
	CategoryID      string       `gorm:"type:uuid;not null;index" json:"category_id"`
	Name            string       `gorm:"not null" json:"name"`
	Period          BudgetPeriod `gorm:"not null" json:"period"`
	LimitAmount     int64        `gorm:"type:bigint;not null" json:"limit_amount"`
	StartDate       *time.Time   `json:"start_date,omitempty"`
	EndDate         *time.Time   `json:"end_date,omitempty"`
	AlertThresholds []int        `gorm:"serializer:json" json:"alert_thresholds"`

	// Relationships
	Category Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}
