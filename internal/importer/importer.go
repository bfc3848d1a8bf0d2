// Package importer parses bank statement CSV exports into ledger rows.
// Banks disagree on column names, date formats, and amount notation, so
// parsing is two-phase: a header pass suggests a column mapping, then a
// row pass converts values under that mapping, collecting per-row errors
// instead of aborting on the first bad line.
package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"fintrack/internal/models"
)

// Mapping assigns statement columns to ledger fields. A value of -1
// means the statement has no such column.
type Mapping struct {
	Date        int `json:"date"`
	Description int `json:"description"`
	Amount      int `json:"amount"`
	Category    int `json:"category"`
	Kind        int `json:"kind"`
	Tags        int `json:"tags"`
}

// Row is one parsed statement line. Category is the statement's
// category name, resolved to an id by the caller. Amount is always
// positive; sign information moves into Kind.
type Row struct {
	Line        int
	Date        time.Time
	Description string
	Amount      int64
	Kind        models.TransactionKind
	Category    string
	Tags        []string
}

// RowError describes one rejected statement line.
type RowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// headerAliases maps normalised statement header names to ledger fields.
var headerAliases = map[string]string{
	"date":             "date",
	"transaction date": "date",
	"posted":           "date",
	"posting date":     "date",
	"description":      "description",
	"memo":             "description",
	"details":          "description",
	"narrative":        "description",
	"payee":            "description",
	"amount":           "amount",
	"value":            "amount",
	"debit/credit":     "amount",
	"category":         "category",
	"type":             "kind",
	"kind":             "kind",
	"transaction type": "kind",
	"cr/dr":            "kind",
	"tags":             "tags",
	"labels":           "tags",
}

// SuggestMapping inspects a header row and proposes a column mapping.
// Unrecognised headers are ignored; unmatched fields come back as -1.
func SuggestMapping(headers []string) Mapping {
	m := Mapping{Date: -1, Description: -1, Amount: -1, Category: -1, Kind: -1, Tags: -1}
	for i, header := range headers {
		field, ok := headerAliases[strings.ToLower(strings.TrimSpace(header))]
		if !ok {
			continue
		}
		switch field {
		case "date":
			if m.Date == -1 {
				m.Date = i
			}
		case "description":
			if m.Description == -1 {
				m.Description = i
			}
		case "amount":
			if m.Amount == -1 {
				m.Amount = i
			}
		case "category":
			if m.Category == -1 {
				m.Category = i
			}
		case "kind":
			if m.Kind == -1 {
				m.Kind = i
			}
		case "tags":
			if m.Tags == -1 {
				m.Tags = i
			}
		}
	}
	return m
}

// Parse reads a CSV statement whose first line is a header, derives the
// mapping from it, and converts the remaining lines. Row failures are
// collected; a malformed stream returns a top-level error.
func Parse(r io.Reader) ([]Row, []RowError, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("reading header row: %w", err)
	}

	mapping := SuggestMapping(headers)
	return ParseRows(reader, mapping, 2)
}

// ParseRows converts statement lines under an explicit mapping.
// firstLine is the 1-based line number of the first data row, used in
// error messages.
func ParseRows(reader *csv.Reader, mapping Mapping, firstLine int) ([]Row, []RowError, error) {
	if mapping.Date == -1 || mapping.Amount == -1 {
		return nil, nil, fmt.Errorf("mapping must assign date and amount columns")
	}

	var rows []Row
	var rowErrs []RowError
	line := firstLine
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("reading row: %w", err)
		}

		row, convErr := convertRow(record, mapping, line)
		if convErr != nil {
			rowErrs = append(rowErrs, *convErr)
		} else {
			rows = append(rows, row)
		}
		line++
	}
	return rows, rowErrs, nil
}

func convertRow(record []string, mapping Mapping, line int) (Row, *RowError) {
	field := func(idx int) string {
		if idx < 0 || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	date, err := parseDate(field(mapping.Date))
	if err != nil {
		return Row{}, &RowError{Line: line, Message: err.Error()}
	}

	amount, negative, err := parseAmount(field(mapping.Amount))
	if err != nil {
		return Row{}, &RowError{Line: line, Message: err.Error()}
	}
	if amount == 0 {
		return Row{}, &RowError{Line: line, Message: "amount must not be zero"}
	}

	kind, err := resolveKind(field(mapping.Kind), negative)
	if err != nil {
		return Row{}, &RowError{Line: line, Message: err.Error()}
	}

	row := Row{
		Line:        line,
		Date:        models.DateOnly(date),
		Description: field(mapping.Description),
		Amount:      amount,
		Kind:        kind,
		Category:    field(mapping.Category),
	}
	if tags := field(mapping.Tags); tags != "" {
		for _, tag := range strings.Split(tags, ";") {
			if tag = strings.TrimSpace(tag); tag != "" {
				row.Tags = append(row.Tags, tag)
			}
		}
	}
	return row, nil
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("missing date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", value)
}

// parseAmount converts a statement amount to positive minor units
// without going through floating point. It accepts currency symbols,
// thousands separators, comma decimal marks, and parenthesised or
// signed negatives, and rejects more than two decimal places.
func parseAmount(value string) (int64, bool, error) {
	if value == "" {
		return 0, false, fmt.Errorf("missing amount")
	}

	negative := false
	s := value
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	var cleaned strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9' || r == '.' || r == ',':
			cleaned.WriteRune(r)
		case r == '-':
			negative = true
		case r == '+' || r == ' ':
		default:
			// Currency symbols and letters are dropped.
		}
	}
	s = cleaned.String()
	if s == "" {
		return 0, false, fmt.Errorf("unrecognised amount %q", value)
	}

	// With both separators present the rightmost is the decimal mark.
	// A lone comma acting as a decimal mark has at most two trailing
	// digits; otherwise commas are thousands separators.
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	decimal := ""
	whole := s
	switch {
	case lastDot >= 0 && lastDot > lastComma:
		whole, decimal = s[:lastDot], s[lastDot+1:]
	case lastComma >= 0 && lastComma > lastDot:
		if frac := s[lastComma+1:]; len(frac) <= 2 && !strings.Contains(frac, ",") {
			whole, decimal = s[:lastComma], frac
		}
	}
	whole = strings.ReplaceAll(strings.ReplaceAll(whole, ",", ""), ".", "")

	if len(decimal) > 2 {
		return 0, false, fmt.Errorf("amount %q has more than two decimal places", value)
	}
	for len(decimal) < 2 {
		decimal += "0"
	}

	var total int64
	for _, r := range whole + decimal {
		if r < '0' || r > '9' {
			return 0, false, fmt.Errorf("unrecognised amount %q", value)
		}
		if total > (math.MaxInt64-int64(r-'0'))/10 {
			return 0, false, fmt.Errorf("amount %q is too large", value)
		}
		total = total*10 + int64(r-'0')
	}
	return total, negative, nil
}

var kindAliases = map[string]models.TransactionKind{
	"income":     models.TransactionKindIncome,
	"credit":     models.TransactionKindIncome,
	"cr":         models.TransactionKindIncome,
	"deposit":    models.TransactionKindIncome,
	"in":         models.TransactionKindIncome,
	"expense":    models.TransactionKindExpense,
	"debit":      models.TransactionKindExpense,
	"dr":         models.TransactionKindExpense,
	"withdrawal": models.TransactionKindExpense,
	"payment":    models.TransactionKindExpense,
	"purchase":   models.TransactionKindExpense,
	"out":        models.TransactionKindExpense,
}

// resolveKind prefers an explicit type column; without one, the
// amount's sign decides (negative means money out).
func resolveKind(value string, negative bool) (models.TransactionKind, error) {
	if value != "" {
		kind, ok := kindAliases[strings.ToLower(value)]
		if !ok {
			return "", fmt.Errorf("unrecognised transaction type %q", value)
		}
		return kind, nil
	}
	if negative {
		return models.TransactionKindExpense, nil
	}
	return models.TransactionKindIncome, nil
}
