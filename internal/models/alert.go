package models

import "time"

// AlertTargetType identifies what an alert state or event refers to
type AlertTargetType string

const (
	AlertTargetBudget AlertTargetType = "budget"
	AlertTargetGoal   AlertTargetType = "goal"
)

// AlertStateValue is the latch position for a (target, threshold) pair
type AlertStateValue string

const (
	AlertStateArmed AlertStateValue = "armed"
	AlertStateFired AlertStateValue = "fired"
)

// AlertState is the persisted armed/fired latch for one threshold of
// one budget or goal. Fired latches re-arm only once the tracked
// percentage drops back below the threshold, so a crossing emits at
// most one event.
type AlertState struct {
	Base
	TargetType AlertTargetType `gorm:"not null;uniqueIndex:idx_alert_target" json:"target_type"`
	TargetID   string          `gorm:"type:uuid;not null;uniqueIndex:idx_alert_target" json:"target_id"`
	Threshold  int             `gorm:"not null;uniqueIndex:idx_alert_target" json:"threshold"`
	State      AlertStateValue `gorm:"not null" json:"state"`
}

// AlertEvent is one emitted threshold-crossing notification. Events
// are append-only; the stream handler and collaborators read them in
// creation order.
type AlertEvent struct {
	Base
	TargetType AlertTargetType `gorm:"not null;index" json:"target_type"`
	TargetID   string          `gorm:"type:uuid;not null;index" json:"target_id"`
	Threshold  int             `gorm:"not null" json:"threshold"`
	Direction  string          `gorm:"not null;default:crossed_up" json:"direction"`
	OccurredAt time.Time       `gorm:"not null" json:"occurred_at"`
}
