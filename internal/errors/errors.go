// Package errors provides custom error types for the fintrack engine.
// All service-layer errors should use AppError so the HTTP surface can
// return consistent responses without leaking internal details, and so
// callers always learn which field or entity a rejection refers to.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, optional field/entity context,
// and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Field      string `json:"field,omitempty"`
	EntityID   string `json:"entity_id,omitempty"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// WithField creates a new AppError naming the offending field.
func WithField(sentinel *AppError, field, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		Field:      field,
		StatusCode: sentinel.StatusCode,
	}
}

// WithEntity creates a new AppError referencing a specific entity id.
func WithEntity(sentinel *AppError, entityID string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		EntityID:   entityID,
		StatusCode: sentinel.StatusCode,
	}
}

// General errors.
var (
	ErrValidation     = &AppError{Code: "VALIDATION_ERROR", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Category errors.
var (
	ErrCategoryNotFound = &AppError{Code: "CATEGORY_NOT_FOUND", Message: "Category not found", StatusCode: http.StatusNotFound}
	ErrCategoryInUse    = &AppError{Code: "CATEGORY_IN_USE", Message: "Category is referenced by transactions, budgets, goals, or rules", StatusCode: http.StatusConflict}
	ErrCategoryCycle    = &AppError{Code: "CYCLE_ERROR", Message: "Operation would make a category its own ancestor", StatusCode: http.StatusConflict}
	ErrKindMismatch     = &AppError{Code: "KIND_MISMATCH", Message: "Category kind does not match", StatusCode: http.StatusBadRequest}
	ErrDuplicateName    = &AppError{Code: "DUPLICATE_NAME", Message: "A sibling category with this name already exists", StatusCode: http.StatusConflict}
)

// Transaction errors.
var (
	ErrTransactionNotFound = &AppError{Code: "TRANSACTION_NOT_FOUND", Message: "Transaction not found", StatusCode: http.StatusNotFound}
)

// Budget errors.
var (
	ErrBudgetNotFound = &AppError{Code: "BUDGET_NOT_FOUND", Message: "Budget not found", StatusCode: http.StatusNotFound}
	ErrBudgetOverlap  = &AppError{Code: "BUDGET_OVERLAP", Message: "A budget for this category already covers the selected period", StatusCode: http.StatusConflict}
)

// Goal errors.
var (
	ErrGoalNotFound = &AppError{Code: "GOAL_NOT_FOUND", Message: "Goal not found", StatusCode: http.StatusNotFound}
	// ErrGoalOverflow is a warning, not a failure: the contribution is
	// applied with the current amount clamped to [0, target].
	ErrGoalOverflow = &AppError{Code: "GOAL_OVERFLOW", Message: "Contribution clamped to the goal's valid range", StatusCode: http.StatusOK}
)

// Rule errors.
var (
	ErrRuleNotFound  = &AppError{Code: "RULE_NOT_FOUND", Message: "Rule not found", StatusCode: http.StatusNotFound}
	ErrDuplicateRule = &AppError{Code: "DUPLICATE_RULE", Message: "A rule for this keyword already exists", StatusCode: http.StatusConflict}
)

// Snapshot errors. Both are fatal to the import attempt; no partial
// state is ever applied.
var (
	ErrSchemaVersion = &AppError{Code: "SCHEMA_VERSION_ERROR", Message: "Unsupported snapshot schema version", StatusCode: http.StatusBadRequest}
	ErrIntegrity     = &AppError{Code: "INTEGRITY_ERROR", Message: "Snapshot contains dangling references", StatusCode: http.StatusUnprocessableEntity}
)
