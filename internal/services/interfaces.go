package services

import (
	"time"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
)

// CategoryServicer defines the contract for the category tree.
type CategoryServicer interface {
	CreateCategory(name string, kind models.CategoryKind, parentID *string) (*models.Category, error)
	RenameCategory(categoryID, name string) (*models.Category, error)
	ReparentCategory(categoryID string, newParentID *string) (*models.Category, error)
	DeleteCategory(categoryID string) error
	GetCategoryByID(categoryID string) (*models.Category, error)
	LookupCategory(name string, kind models.CategoryKind) (*models.Category, error)
	ListCategories(kind *models.CategoryKind, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error)
	Descendants(categoryID string) ([]string, error)
	Ancestors(categoryID string) ([]string, error)
	SubtreeIDs(categoryID string) ([]string, error)
}

// TransactionInput holds the fields required to add a ledger entry.
type TransactionInput struct {
	CategoryID  string
	Kind        models.TransactionKind
	Amount      int64
	Description string
	Date        time.Time
	Tags        []string
}

// TransactionUpdate holds optional fields for editing a ledger entry.
// Nil fields are left unchanged.
type TransactionUpdate struct {
	CategoryID  *string
	Amount      *int64
	Description *string
	Date        *time.Time
	Tags        *[]string
}

// LedgerFilter holds optional filter parameters for querying the ledger.
type LedgerFilter struct {
	From               *time.Time
	To                 *time.Time
	CategoryIDs        []string
	IncludeDescendants bool
	Kind               *models.TransactionKind
	Tags               []string
}

// LedgerServicer defines the contract for transaction bookkeeping.
type LedgerServicer interface {
	AddTransaction(in TransactionInput, applyRules bool) (*models.Transaction, error)
	EditTransaction(transactionID string, upd TransactionUpdate) (*models.Transaction, error)
	DeleteTransaction(transactionID string) error
	GetTransactionByID(transactionID string) (*models.Transaction, error)
	QueryTransactions(filter LedgerFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error)
}

// BudgetStatus contains spend-vs-limit data for a budget's period window.
// PercentUsed is nil when the limit is zero: the ratio is undefined, not
// a division error.
type BudgetStatus struct {
	BudgetID    string    `json:"budget_id"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	Spent       int64     `json:"spent"`
	Limit       int64     `json:"limit"`
	Remaining   int64     `json:"remaining"`
	PercentUsed *float64  `json:"percent_used"`
}

// BudgetInput holds the fields required to create a budget.
type BudgetInput struct {
	CategoryID      string
	Name            string
	Period          models.BudgetPeriod
	LimitAmount     int64
	StartDate       *time.Time
	EndDate         *time.Time
	AlertThresholds []int
}

// BudgetServicer defines the contract for budget tracking.
type BudgetServicer interface {
	CreateBudget(in BudgetInput) (*models.Budget, error)
	GetBudgetByID(budgetID string) (*models.Budget, error)
	ListBudgets(period *models.BudgetPeriod, page pagination.PageRequest) (*pagination.PageResponse[models.Budget], error)
	UpdateBudget(budgetID, name string, limitAmount *int64, thresholds []int) (*models.Budget, error)
	DeleteBudget(budgetID string) error
	Status(budgetID string, refDate time.Time) (*BudgetStatus, error)
	AffectedBudgets(categoryID string, date time.Time) ([]models.Budget, error)
}

// GoalProgress contains derived progress data for a goal.
type GoalProgress struct {
	GoalID        string   `json:"goal_id"`
	CurrentAmount int64    `json:"current_amount"`
	TargetAmount  int64    `json:"target_amount"`
	Percent       float64  `json:"percent"`
	Complete      bool     `json:"complete"`
	Overdue       bool     `json:"overdue"`
}

// GoalInput holds the fields required to create a goal.
type GoalInput struct {
	Name             string
	Kind             models.GoalKind
	TargetAmount     int64
	Deadline         *time.Time
	LinkedCategoryID *string
	Rank             int
}

// GoalServicer defines the contract for goal tracking.
type GoalServicer interface {
	CreateGoal(in GoalInput) (*models.Goal, error)
	GetGoalByID(goalID string) (*models.Goal, error)
	ListGoals(page pagination.PageRequest) (*pagination.PageResponse[models.Goal], error)
	UpdateGoal(goalID, name string, targetAmount *int64, deadline *time.Time) (*models.Goal, error)
	SetGoalRank(goalID string, rank int) error
	DeleteGoal(goalID string) error
	Contribute(goalID string, amount int64) (*models.Goal, *apperrors.AppError, error)
	Progress(goalID string) (*GoalProgress, error)
	OverdueGoals() ([]models.Goal, error)
	GoalsLinkedTo(categoryID string) ([]models.Goal, error)
}

// AlertServicer defines the contract for threshold-crossing alerts.
// It consumes recomputation signals and owns the armed/fired latches.
type AlertServicer interface {
	Recomputer
	RecentEvents(limit int) ([]models.AlertEvent, error)
	Subscribe() (<-chan models.AlertEvent, func())
}

// ReportPeriod selects the aggregation window of a report.
type ReportPeriod string

const (
	ReportPeriodWeekly  ReportPeriod = "weekly"
	ReportPeriodMonthly ReportPeriod = "monthly"
	ReportPeriodYearly  ReportPeriod = "yearly"
	ReportPeriodCustom  ReportPeriod = "custom"
)

// ReportGranularity selects the sub-period bucket size of a report.
type ReportGranularity string

const (
	GranularityDay   ReportGranularity = "day"
	GranularityWeek  ReportGranularity = "week"
	GranularityMonth ReportGranularity = "month"
)

// ReportRequest describes the window and bucket size of a report.
// RefDate anchors weekly/monthly/yearly windows; StartDate/EndDate are
// required for custom windows and inclusive of both endpoints.
type ReportRequest struct {
	Period      ReportPeriod
	RefDate     time.Time
	StartDate   *time.Time
	EndDate     *time.Time
	Granularity ReportGranularity
}

// ReportTotals sums a window's ledger activity.
type ReportTotals struct {
	Income   int64 `json:"income"`
	Expenses int64 `json:"expenses"`
	Net      int64 `json:"net"`
}

// CategoryRollup is one category row in a report. Direct covers the
// category's own transactions; Rolled adds every descendant's.
type CategoryRollup struct {
	CategoryID string              `json:"category_id"`
	Name       string              `json:"name"`
	Kind       models.CategoryKind `json:"kind"`
	Direct     int64               `json:"direct"`
	Rolled     int64               `json:"rolled"`
}

// ReportBucket is one sub-period slice of a report window.
type ReportBucket struct {
	Label  string       `json:"label"`
	Start  time.Time    `json:"start"`
	End    time.Time    `json:"end"`
	Totals ReportTotals `json:"totals"`
}

// PeriodDelta compares the report window against the preceding window
// of equal length.
type PeriodDelta struct {
	StartDate      time.Time    `json:"start_date"`
	EndDate        time.Time    `json:"end_date"`
	Totals         ReportTotals `json:"totals"`
	IncomeChange   int64        `json:"income_change"`
	ExpensesChange int64        `json:"expenses_change"`
	NetChange      int64        `json:"net_change"`
}

// Report is the full aggregation result for one window.
type Report struct {
	Period      ReportPeriod      `json:"period"`
	StartDate   time.Time         `json:"start_date"`
	EndDate     time.Time         `json:"end_date"`
	Granularity ReportGranularity `json:"granularity"`
	Totals      ReportTotals      `json:"totals"`
	Categories  []CategoryRollup  `json:"categories"`
	Buckets     []ReportBucket    `json:"buckets"`
	Previous    *PeriodDelta      `json:"previous"`
}

// ReportServicer defines the read-only aggregation contract. Repeated
// calls against an unchanged ledger return identical results.
type ReportServicer interface {
	Report(req ReportRequest) (*Report, error)
}

// RuleServicer defines the contract for keyword auto-categorisation rules.
type RuleServicer interface {
	CreateRule(keyword, categoryID string) (*models.AutoRule, error)
	ListRules(page pagination.PageRequest) (*pagination.PageResponse[models.AutoRule], error)
	DeleteRule(ruleID string) error
	Resolve(description string) (categoryID string, matched bool, err error)
}

// SnapshotServicer defines the persisted-state contract: versioned
// export, all-or-nothing import, and atomic file save/load.
type SnapshotServicer interface {
	Export() (*Snapshot, error)
	Import(snap *Snapshot) error
	SaveFile(path string) error
	LoadFile(path string) error
}
