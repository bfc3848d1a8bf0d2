package models

import "time"

// TransactionKind represents the direction of a transaction
type TransactionKind string

const (
	TransactionKindIncome  TransactionKind = "income"
	TransactionKindExpense TransactionKind = "expense"
)

// Transaction is a single ledger entry. Amounts are minor units
// (cents, pence) stored as int64 so period sums never accumulate
// floating point drift.
type Transaction struct {
	Base
	CategoryID  string          `gorm:"type:uuid;not null;index" json:"category_id"`
	Kind        TransactionKind `gorm:"not null" json:"kind"`
	Amount      int64           `gorm:"type:bigint;not null" json:"amount"`
	Description string          `json:"description"`
	Date        time.Time       `gorm:"not null;index" json:"date"`
	Tags        []string        `gorm:"serializer:json" json:"tags,omitempty"`

	// Relationships
	Category Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

// HasTag reports whether the transaction carries the given tag.
func (t *Transaction) HasTag(tag string) bool {
	for _, existing := range t.Tags {
		if existing == tag {
			return true
		}
	}
	return false
}
