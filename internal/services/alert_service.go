package services

import (
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/logger"
	"fintrack/internal/models"
)

// goalMilestones are the fixed progress percentages goal alerts fire at.
var goalMilestones = []int{25, 50, 75, 100}

// alertService owns the armed/fired latches and the event stream. It is
// driven entirely by recomputation signals: a ledger mutation triggers
// budget threshold checks for every affected budget, a goal contribution
// triggers milestone checks for that goal.
type alertService struct {
	db      *gorm.DB
	budgets BudgetServicer
	goals   GoalServicer

	mu   sync.Mutex
	subs map[int]chan models.AlertEvent
	next int
}

// NewAlertService creates a new AlertServicer.
func NewAlertService(db *gorm.DB, budgets BudgetServicer, goals GoalServicer) AlertServicer {
	return &alertService{
		db:      db,
		budgets: budgets,
		goals:   goals,
		subs:    make(map[int]chan models.AlertEvent),
	}
}

// Recompute re-evaluates alert latches for the targets a signal touches.
func (s *alertService) Recompute(sig Signal) error {
	if sig.GoalID != "" {
		return s.recomputeGoal(sig.GoalID)
	}
	if sig.CategoryID == "" {
		return nil
	}

	budgets, err := s.budgets.AffectedBudgets(sig.CategoryID, sig.Date)
	if err != nil {
		return err
	}
	for i := range budgets {
		status, err := s.budgets.Status(budgets[i].ID, sig.Date)
		if err != nil {
			return err
		}
		if err := s.evaluate(models.AlertTargetBudget, budgets[i].ID, budgets[i].AlertThresholds, status.PercentUsed); err != nil {
			return err
		}
	}

	// A ledger change in the category can also move linked goals.
	goals, err := s.goals.GoalsLinkedTo(sig.CategoryID)
	if err != nil {
		return err
	}
	for i := range goals {
		if err := s.recomputeGoal(goals[i].ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *alertService) recomputeGoal(goalID string) error {
	progress, err := s.goals.Progress(goalID)
	if err != nil {
		if errors.Is(err, apperrors.ErrGoalNotFound) {
			return nil
		}
		return err
	}
	percent := progress.Percent
	return s.evaluate(models.AlertTargetGoal, goalID, goalMilestones, &percent)
}

// evaluate walks the target's thresholds in ascending order and fires
// the latch for each upward crossing. A fired latch stays quiet until
// the percentage drops back below its threshold. A nil percentage means
// the ratio is undefined (zero-limit budget); nothing fires and nothing
// re-arms.
func (s *alertService) evaluate(targetType models.AlertTargetType, targetID string, thresholds []int, percent *float64) error {
	if percent == nil {
		return nil
	}

	for _, threshold := range thresholds {
		state, err := s.loadOrCreateState(targetType, targetID, threshold)
		if err != nil {
			return err
		}

		crossed := *percent >= float64(threshold)
		switch {
		case crossed && state.State == models.AlertStateArmed:
			if err := s.fire(state, *percent); err != nil {
				return err
			}
		case !crossed && state.State == models.AlertStateFired:
			if err := s.db.Model(state).Update("state", models.AlertStateArmed).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}
	}
	return nil
}

func (s *alertService) fire(state *models.AlertState, percent float64) error {
	event := &models.AlertEvent{
		TargetType: state.TargetType,
		TargetID:   state.TargetID,
		Threshold:  state.Threshold,
		Direction:  "crossed_up",
		OccurredAt: time.Now().UTC(),
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(state).Update("state", models.AlertStateFired).Error; err != nil {
			return err
		}
		return tx.Create(event).Error
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	logger.Get().Infow("alert fired",
		"target_type", state.TargetType,
		"target_id", state.TargetID,
		"threshold", state.Threshold,
		"percent", percent,
	)
	s.publish(*event)
	return nil
}

func (s *alertService) loadOrCreateState(targetType models.AlertTargetType, targetID string, threshold int) (*models.AlertState, error) {
	var state models.AlertState
	err := s.db.Where("target_type = ? AND target_id = ? AND threshold = ?", targetType, targetID, threshold).
		First(&state).Error
	if err == nil {
		return &state, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	state = models.AlertState{
		TargetType: targetType,
		TargetID:   targetID,
		Threshold:  threshold,
		State:      models.AlertStateArmed,
	}
	if err := s.db.Create(&state).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &state, nil
}

// RecentEvents returns the newest alert events, most recent first.
func (s *alertService) RecentEvents(limit int) ([]models.AlertEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	var events []models.AlertEvent
	if err := s.db.Order("occurred_at DESC, id DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return events, nil
}

// Subscribe registers a live event listener. The returned cancel func
// must be called to release the channel. A slow subscriber drops events
// rather than blocking alert evaluation.
func (s *alertService) Subscribe() (<-chan models.AlertEvent, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.next
	s.next++
	ch := make(chan models.AlertEvent, 16)
	s.subs[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (s *alertService) publish(event models.AlertEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
