package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
)

// ledgerService owns the transaction history. Every successful
// mutation enqueues a recomputation signal for the affected category
// and date, then drains the dispatcher before returning, so budget
// status and alert latches are never stale from the caller's view.
type ledgerService struct {
	db         *gorm.DB
	categories CategoryServicer
	rules      RuleServicer
	dispatcher *Dispatcher
}

// NewLedgerService creates a new LedgerServicer.
func NewLedgerService(db *gorm.DB, categories CategoryServicer, rules RuleServicer, dispatcher *Dispatcher) LedgerServicer {
	return &ledgerService{
		db:         db,
		categories: categories,
		rules:      rules,
		dispatcher: dispatcher,
	}
}

// AddTransaction validates and stores a new ledger entry. With
// applyRules set, a keyword rule matching the description overrides the
// supplied category.
func (s *ledgerService) AddTransaction(in TransactionInput, applyRules bool) (*models.Transaction, error) {
	if applyRules && in.Description != "" {
		categoryID, matched, err := s.rules.Resolve(in.Description)
		if err != nil {
			return nil, err
		}
		if matched {
			in.CategoryID = categoryID
		}
	}

	if err := s.validateInput(in.Amount, in.Kind, in.CategoryID, in.Date); err != nil {
		return nil, err
	}

	transaction := &models.Transaction{
		CategoryID:  in.CategoryID,
		Kind:        in.Kind,
		Amount:      in.Amount,
		Description: in.Description,
		Date:        models.DateOnly(in.Date),
		Tags:        in.Tags,
	}
	if err := s.db.Create(transaction).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.dispatcher.Enqueue(Signal{CategoryID: transaction.CategoryID, Date: transaction.Date})
	if err := s.dispatcher.Drain(); err != nil {
		return nil, err
	}
	return transaction, nil
}

// EditTransaction updates an existing ledger entry. Both the old and
// the new (category, date) pair are recomputed: an edit can move spend
// out of one budget window into another.
func (s *ledgerService) EditTransaction(transactionID string, upd TransactionUpdate) (*models.Transaction, error) {
	transaction, err := s.GetTransactionByID(transactionID)
	if err != nil {
		return nil, err
	}

	oldCategoryID := transaction.CategoryID
	oldDate := transaction.Date

	amount := transaction.Amount
	if upd.Amount != nil {
		amount = *upd.Amount
	}
	categoryID := transaction.CategoryID
	if upd.CategoryID != nil {
		categoryID = *upd.CategoryID
	}
	date := transaction.Date
	if upd.Date != nil {
		date = models.DateOnly(*upd.Date)
	}

	if err := s.validateInput(amount, transaction.Kind, categoryID, date); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"amount":      amount,
		"category_id": categoryID,
		"date":        date,
	}
	if upd.Description != nil {
		updates["description"] = *upd.Description
	}
	if upd.Tags != nil {
		updates["tags"] = *upd.Tags
		transaction.Tags = *upd.Tags
	}

	if err := s.db.Model(transaction).Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	transaction.Amount = amount
	transaction.CategoryID = categoryID
	transaction.Date = date
	if upd.Description != nil {
		transaction.Description = *upd.Description
	}

	s.dispatcher.Enqueue(Signal{CategoryID: oldCategoryID, Date: oldDate})
	if categoryID != oldCategoryID || !date.Equal(oldDate) {
		s.dispatcher.Enqueue(Signal{CategoryID: categoryID, Date: date})
	}
	if err := s.dispatcher.Drain(); err != nil {
		return nil, err
	}
	return transaction, nil
}

// DeleteTransaction removes a ledger entry. Transactions have no
// dependents, so deletion always succeeds for an existing entry.
func (s *ledgerService) DeleteTransaction(transactionID string) error {
	transaction, err := s.GetTransactionByID(transactionID)
	if err != nil {
		return err
	}

	if err := s.db.Delete(transaction).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.dispatcher.Enqueue(Signal{CategoryID: transaction.CategoryID, Date: transaction.Date})
	return s.dispatcher.Drain()
}

// GetTransactionByID retrieves a transaction by ID.
func (s *ledgerService) GetTransactionByID(transactionID string) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := s.db.Where("id = ?", transactionID).First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &transaction, nil
}

// QueryTransactions retrieves a paginated, filtered slice of the ledger.
// Date range, kind, and category filters run in SQL; tag-set filtering
// happens in memory because tags live in a JSON column.
func (s *ledgerService) QueryTransactions(filter LedgerFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error) {
	page.Defaults()

	base := s.db.Model(&models.Transaction{})
	if filter.From != nil {
		base = base.Where("date >= ?", models.DateOnly(*filter.From))
	}
	if filter.To != nil {
		base = base.Where("date <= ?", models.DateOnly(*filter.To))
	}
	if filter.Kind != nil {
		base = base.Where("kind = ?", *filter.Kind)
	}
	if len(filter.CategoryIDs) > 0 {
		categoryIDs := filter.CategoryIDs
		if filter.IncludeDescendants {
			expanded := make([]string, 0, len(categoryIDs))
			for _, id := range categoryIDs {
				subtree, err := s.categories.SubtreeIDs(id)
				if err != nil {
					return nil, err
				}
				expanded = append(expanded, subtree...)
			}
			categoryIDs = expanded
		}
		base = base.Where("category_id IN ?", categoryIDs)
	}

	if len(filter.Tags) == 0 {
		var totalItems int64
		if err := base.Count(&totalItems).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		var transactions []models.Transaction
		if err := base.Order("date DESC, id DESC").Scopes(pagination.Paginate(page)).Find(&transactions).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		result := pagination.NewPageResponse(transactions, page.Page, page.PageSize, totalItems)
		return &result, nil
	}

	var transactions []models.Transaction
	if err := base.Order("date DESC, id DESC").Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	matched := transactions[:0]
	for i := range transactions {
		if hasAllTags(&transactions[i], filter.Tags) {
			matched = append(matched, transactions[i])
		}
	}
	result := pagination.Slice(matched, page)
	return &result, nil
}

func hasAllTags(t *models.Transaction, tags []string) bool {
	for _, tag := range tags {
		if !t.HasTag(tag) {
			return false
		}
	}
	return true
}

// validateInput checks the fields shared by add and edit. Failures name
// the offending field so the caller can surface a precise message.
func (s *ledgerService) validateInput(amount int64, kind models.TransactionKind, categoryID string, date time.Time) error {
	if amount <= 0 {
		return apperrors.WithField(apperrors.ErrValidation, "amount", "amount must be greater than zero")
	}
	if kind != models.TransactionKindIncome && kind != models.TransactionKindExpense {
		return apperrors.WithField(apperrors.ErrValidation, "kind", "kind must be income or expense")
	}
	if date.IsZero() {
		return apperrors.WithField(apperrors.ErrValidation, "date", "date is required")
	}
	if categoryID == "" {
		return apperrors.WithField(apperrors.ErrValidation, "category_id", "category is required")
	}

	category, err := s.categories.GetCategoryByID(categoryID)
	if err != nil {
		if errors.Is(err, apperrors.ErrCategoryNotFound) {
			return apperrors.WithField(apperrors.ErrValidation, "category_id", "category does not exist")
		}
		return err
	}
	if string(category.Kind) != string(kind) {
		return apperrors.WithField(apperrors.ErrValidation, "category_id", "category kind does not match transaction kind")
	}
	return nil
}
