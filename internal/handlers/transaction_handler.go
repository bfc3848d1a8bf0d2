package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/importer"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
	"fintrack/internal/services"
)

// TransactionHandler handles ledger-related requests.
type TransactionHandler struct {
	ledgerService   services.LedgerServicer
	categoryService services.CategoryServicer
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(ledgerService services.LedgerServicer, categoryService services.CategoryServicer) *TransactionHandler {
	return &TransactionHandler{ledgerService: ledgerService, categoryService: categoryService}
}

// CreateTransactionRequest represents the request payload for adding a
// ledger entry. Amount is in minor units (cents).
type CreateTransactionRequest struct {
	CategoryID  string                 `json:"category_id" binding:"required,uuid"`
	Kind        models.TransactionKind `json:"kind" binding:"required,transaction_kind"`
	Amount      int64                  `json:"amount" binding:"required,gt=0"`
	Description string                 `json:"description" binding:"max=200"`
	Date        time.Time              `json:"date" binding:"required"`
	Tags        []string               `json:"tags"`
	ApplyRules  bool                   `json:"apply_rules"`
}

// UpdateTransactionRequest represents the request payload for editing a
// ledger entry. Omitted fields are left unchanged.
type UpdateTransactionRequest struct {
	CategoryID  *string    `json:"category_id" binding:"omitempty,uuid"`
	Amount      *int64     `json:"amount" binding:"omitempty,gt=0"`
	Description *string    `json:"description" binding:"omitempty,max=200"`
	Date        *time.Time `json:"date"`
	Tags        *[]string  `json:"tags"`
}

// CreateTransaction handles adding a ledger entry.
func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	transaction, err := h.ledgerService.AddTransaction(services.TransactionInput{
		CategoryID:  req.CategoryID,
		Kind:        req.Kind,
		Amount:      req.Amount,
		Description: req.Description,
		Date:        req.Date,
		Tags:        req.Tags,
	}, req.ApplyRules)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"transaction": transaction})
}

// GetTransactions handles querying the ledger with filters.
func (h *TransactionHandler) GetTransactions(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	filter, err := parseLedgerFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.ledgerService.QueryTransactions(*filter, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetTransaction handles retrieving a specific ledger entry.
func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	transaction, err := h.ledgerService.GetTransactionByID(id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// UpdateTransaction handles editing a ledger entry.
func (h *TransactionHandler) UpdateTransaction(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	transaction, err := h.ledgerService.EditTransaction(id, services.TransactionUpdate{
		CategoryID:  req.CategoryID,
		Amount:      req.Amount,
		Description: req.Description,
		Date:        req.Date,
		Tags:        req.Tags,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// DeleteTransaction handles deleting a ledger entry.
func (h *TransactionHandler) DeleteTransaction(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.ledgerService.DeleteTransaction(id); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Transaction deleted"})
}

// ImportTransactions handles a CSV statement upload. Rows whose
// category name resolves are added to the ledger; rejected rows come
// back with line numbers so the caller can fix and retry them.
func (h *TransactionHandler) ImportTransactions(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		respondWithError(c, apperrors.WithField(apperrors.ErrValidation, "file", "a CSV file upload is required"))
		return
	}
	defer file.Close()

	applyRules := c.Query("apply_rules") == "true"

	rows, rowErrs, err := importer.Parse(file)
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	imported := 0
	for _, row := range rows {
		categoryID, resolveErr := h.resolveCategory(row)
		if resolveErr != nil {
			rowErrs = append(rowErrs, importer.RowError{Line: row.Line, Message: resolveErr.Error()})
			continue
		}

		_, addErr := h.ledgerService.AddTransaction(services.TransactionInput{
			CategoryID:  categoryID,
			Kind:        row.Kind,
			Amount:      row.Amount,
			Description: row.Description,
			Date:        row.Date,
			Tags:        row.Tags,
		}, applyRules)
		if addErr != nil {
			rowErrs = append(rowErrs, importer.RowError{Line: row.Line, Message: addErr.Error()})
			continue
		}
		imported++
	}

	if rowErrs == nil {
		rowErrs = []importer.RowError{}
	}
	c.JSON(http.StatusOK, gin.H{
		"imported": imported,
		"rejected": rowErrs,
	})
}

func (h *TransactionHandler) resolveCategory(row importer.Row) (string, error) {
	if row.Category == "" {
		return "", apperrors.WithField(apperrors.ErrValidation, "category", "row has no category")
	}
	kind := models.CategoryKind(row.Kind)
	category, err := h.categoryService.LookupCategory(row.Category, kind)
	if err != nil {
		return "", err
	}
	return category.ID, nil
}

// parseLedgerFilter reads the query-string filters shared by ledger reads.
func parseLedgerFilter(c *gin.Context) (*services.LedgerFilter, error) {
	var filter services.LedgerFilter

	if v := c.Query("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return nil, apperrors.WithField(apperrors.ErrValidation, "from", "from must be YYYY-MM-DD")
		}
		filter.From = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return nil, apperrors.WithField(apperrors.ErrValidation, "to", "to must be YYYY-MM-DD")
		}
		filter.To = &t
	}
	if v := c.Query("kind"); v != "" {
		k := models.TransactionKind(v)
		if k != models.TransactionKindIncome && k != models.TransactionKindExpense {
			return nil, apperrors.WithField(apperrors.ErrValidation, "kind", "kind must be 'income' or 'expense'")
		}
		filter.Kind = &k
	}
	if v := c.Query("category_ids"); v != "" {
		filter.CategoryIDs = strings.Split(v, ",")
	}
	filter.IncludeDescendants = c.Query("include_descendants") == "true"
	if v := c.Query("tags"); v != "" {
		filter.Tags = strings.Split(v, ",")
	}
	return &filter, nil
}
