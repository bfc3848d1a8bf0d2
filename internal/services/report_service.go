package services

import (
	"sort"
	"time"

	"gorm.io/gorm"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
)

// reportService aggregates the ledger into period reports. It never
// writes; repeated calls over an unchanged ledger return identical
// results.
type reportService struct {
	db         *gorm.DB
	categories CategoryServicer
}

// NewReportService creates a new ReportServicer.
func NewReportService(db *gorm.DB, categories CategoryServicer) ReportServicer {
	return &reportService{db: db, categories: categories}
}

// Report aggregates the window selected by req: overall totals, a
// per-category breakdown with subtree rollups, sub-period buckets, and
// a comparison against the preceding window.
func (s *reportService) Report(req ReportRequest) (*Report, error) {
	start, end, err := reportWindow(req)
	if err != nil {
		return nil, err
	}

	granularity := req.Granularity
	if granularity == "" {
		granularity = defaultGranularity(req.Period, start, end)
	}
	switch granularity {
	case GranularityDay, GranularityWeek, GranularityMonth:
	default:
		return nil, apperrors.WithField(apperrors.ErrValidation, "granularity", "granularity must be day, week, or month")
	}

	transactions, err := s.windowTransactions(start, end)
	if err != nil {
		return nil, err
	}

	rollups, err := s.categoryRollups(transactions)
	if err != nil {
		return nil, err
	}

	previous, err := s.previousDelta(req.Period, start, end, sumTotals(transactions))
	if err != nil {
		return nil, err
	}

	return &Report{
		Period:      req.Period,
		StartDate:   start,
		EndDate:     end,
		Granularity: granularity,
		Totals:      sumTotals(transactions),
		Categories:  rollups,
		Buckets:     buildBuckets(transactions, start, end, granularity),
		Previous:    previous,
	}, nil
}

// reportWindow resolves the inclusive date range of a request.
func reportWindow(req ReportRequest) (time.Time, time.Time, error) {
	ref := req.RefDate
	if ref.IsZero() {
		ref = time.Now()
	}
	ref = models.DateOnly(ref)

	switch req.Period {
	case ReportPeriodWeekly:
		offset := (int(ref.Weekday()) + 6) % 7
		start := ref.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 6), nil
	case ReportPeriodMonthly:
		start := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, -1), nil
	case ReportPeriodYearly:
		start := time.Date(ref.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		return start, time.Date(ref.Year(), 12, 31, 0, 0, 0, 0, time.UTC), nil
	case ReportPeriodCustom:
		if req.StartDate == nil || req.EndDate == nil {
			return time.Time{}, time.Time{}, apperrors.WithField(apperrors.ErrValidation, "start_date", "custom reports require start and end dates")
		}
		start := models.DateOnly(*req.StartDate)
		end := models.DateOnly(*req.EndDate)
		if end.Before(start) {
			return time.Time{}, time.Time{}, apperrors.WithField(apperrors.ErrValidation, "end_date", "end date must not precede start date")
		}
		return start, end, nil
	default:
		return time.Time{}, time.Time{}, apperrors.WithField(apperrors.ErrValidation, "period", "period must be weekly, monthly, yearly, or custom")
	}
}

// defaultGranularity picks a bucket size proportional to the window.
func defaultGranularity(period ReportPeriod, start, end time.Time) ReportGranularity {
	switch period {
	case ReportPeriodYearly:
		return GranularityMonth
	case ReportPeriodCustom:
		if end.Sub(start) > 31*24*time.Hour {
			return GranularityMonth
		}
		return GranularityDay
	default:
		return GranularityDay
	}
}

func (s *reportService) windowTransactions(start, end time.Time) ([]models.Transaction, error) {
	var transactions []models.Transaction
	err := s.db.Where("date BETWEEN ? AND ?", start, end).
		Order("date, id").
		Find(&transactions).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return transactions, nil
}

func sumTotals(transactions []models.Transaction) ReportTotals {
	var totals ReportTotals
	for i := range transactions {
		switch transactions[i].Kind {
		case models.TransactionKindIncome:
			totals.Income += transactions[i].Amount
		case models.TransactionKindExpense:
			totals.Expenses += transactions[i].Amount
		}
	}
	totals.Net = totals.Income - totals.Expenses
	return totals
}

// categoryRollups builds one row per category with activity in the
// window. Direct counts a category's own transactions; Rolled adds
// every descendant's. Rows are ordered by rolled amount, largest first,
// with name as the tiebreak so output is deterministic.
func (s *reportService) categoryRollups(transactions []models.Transaction) ([]CategoryRollup, error) {
	if len(transactions) == 0 {
		return []CategoryRollup{}, nil
	}

	direct := make(map[string]int64)
	for i := range transactions {
		direct[transactions[i].CategoryID] += transactions[i].Amount
	}

	var categories []models.Category
	if err := s.db.Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	byID := make(map[string]*models.Category, len(categories))
	children := make(map[string][]string, len(categories))
	for i := range categories {
		byID[categories[i].ID] = &categories[i]
		if categories[i].ParentID != nil {
			children[*categories[i].ParentID] = append(children[*categories[i].ParentID], categories[i].ID)
		}
	}

	// A category appears when it or any descendant has activity.
	var rolled func(id string) int64
	rolled = func(id string) int64 {
		total := direct[id]
		for _, childID := range children[id] {
			total += rolled(childID)
		}
		return total
	}

	rollups := make([]CategoryRollup, 0, len(direct))
	for i := range categories {
		c := &categories[i]
		r := rolled(c.ID)
		if r == 0 && direct[c.ID] == 0 {
			continue
		}
		rollups = append(rollups, CategoryRollup{
			CategoryID: c.ID,
			Name:       c.Name,
			Kind:       c.Kind,
			Direct:     direct[c.ID],
			Rolled:     r,
		})
	}

	sort.Slice(rollups, func(i, j int) bool {
		if rollups[i].Rolled != rollups[j].Rolled {
			return rollups[i].Rolled > rollups[j].Rolled
		}
		return rollups[i].Name < rollups[j].Name
	})
	return rollups, nil
}

// buildBuckets slices the window into sub-periods and sums each one.
// Buckets cover the whole window even when empty.
func buildBuckets(transactions []models.Transaction, start, end time.Time, granularity ReportGranularity) []ReportBucket {
	var buckets []ReportBucket
	cursor := start
	for !cursor.After(end) {
		var bucketEnd time.Time
		var label string
		switch granularity {
		case GranularityDay:
			bucketEnd = cursor
			label = cursor.Format("2006-01-02")
		case GranularityWeek:
			bucketEnd = cursor.AddDate(0, 0, 6)
			label = cursor.Format("2006-01-02")
		case GranularityMonth:
			bucketEnd = time.Date(cursor.Year(), cursor.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1)
			label = cursor.Format("2006-01")
		}
		if bucketEnd.After(end) {
			bucketEnd = end
		}
		buckets = append(buckets, ReportBucket{Label: label, Start: cursor, End: bucketEnd})
		cursor = bucketEnd.AddDate(0, 0, 1)
	}

	for i := range transactions {
		t := &transactions[i]
		for j := range buckets {
			if !t.Date.Before(buckets[j].Start) && !t.Date.After(buckets[j].End) {
				switch t.Kind {
				case models.TransactionKindIncome:
					buckets[j].Totals.Income += t.Amount
				case models.TransactionKindExpense:
					buckets[j].Totals.Expenses += t.Amount
				}
				break
			}
		}
	}
	for j := range buckets {
		buckets[j].Totals.Net = buckets[j].Totals.Income - buckets[j].Totals.Expenses
	}
	return buckets
}

// previousDelta compares against the preceding window: the prior
// calendar week, month, or year for recurring periods, or a range of
// equal length ending the day before start for custom periods.
func (s *reportService) previousDelta(period ReportPeriod, start, end time.Time, current ReportTotals) (*PeriodDelta, error) {
	var prevStart, prevEnd time.Time
	switch period {
	case ReportPeriodWeekly:
		prevStart = start.AddDate(0, 0, -7)
		prevEnd = start.AddDate(0, 0, -1)
	case ReportPeriodMonthly:
		prevStart = start.AddDate(0, -1, 0)
		prevEnd = start.AddDate(0, 0, -1)
	case ReportPeriodYearly:
		prevStart = start.AddDate(-1, 0, 0)
		prevEnd = start.AddDate(0, 0, -1)
	case ReportPeriodCustom:
		span := int(end.Sub(start).Hours()/24) + 1
		prevEnd = start.AddDate(0, 0, -1)
		prevStart = prevEnd.AddDate(0, 0, -(span - 1))
	}

	transactions, err := s.windowTransactions(prevStart, prevEnd)
	if err != nil {
		return nil, err
	}
	totals := sumTotals(transactions)

	return &PeriodDelta{
		StartDate:      prevStart,
		EndDate:        prevEnd,
		Totals:         totals,
		IncomeChange:   current.Income - totals.Income,
		ExpensesChange: current.Expenses - totals.Expenses,
		NetChange:      current.Net - totals.Net,
	}, nil
}
