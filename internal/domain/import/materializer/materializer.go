// Package materializer turns detected statement rows into canonical transactions.
package materializer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/echo-reconcile/internal/domain/common"
	"github.com/FACorreiaa/echo-reconcile/internal/domain/import/normalizer"
	"github.com/FACorreiaa/echo-reconcile/internal/domain/import/sniffer"
)

// Skip reasons reported for dropped rows.
const (
	ReasonTooFewFields  = "fewer than 2 fields"
	ReasonNoAmount      = "amount could not be resolved"
	ReasonNoAmountField = "file has no amount column"
)

// Skipped describes a row that was dropped.
// Line is the 1-based position among the non-blank lines of the file.
type Skipped struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// Result holds the materialized transactions in file order plus every skipped row.
type Result struct {
	Transactions []common.Transaction `json:"transactions"`
	Skipped      []Skipped            `json:"skipped,omitempty"`
	// UndatedRows counts kept rows whose date could not be normalized.
	UndatedRows int `json:"undated_rows"`
}

var newID = uuid.NewString

// FromConfig materializes the data rows of a detected file.
func FromConfig(cfg *sniffer.FileConfig) Result {
	return Materialize(cfg.DataRows(), cfg.Layout)
}

// Materialize converts rows (already past the header) using layout.
// Rows with fewer than 2 fields or without a resolvable amount are skipped;
// an unparseable date keeps the row with an empty Date.
func Materialize(rows [][]string, layout sniffer.Layout) Result {
	res := Result{Transactions: make([]common.Transaction, 0, len(rows))}
	firstLine := layout.HeaderRow + 2

	for i, row := range rows {
		line := firstLine + i
		if len(row) < 2 {
			res.Skipped = append(res.Skipped, Skipped{Line: line, Reason: ReasonTooFewFields})
			continue
		}

		amount, ok, reason := resolveAmount(row, layout)
		if !ok {
			res.Skipped = append(res.Skipped, Skipped{Line: line, Reason: reason})
			continue
		}

		date := normalizer.NormalizeDate(cell(row, layout.DateCol))
		if date == "" {
			res.UndatedRows++
		}
		description := resolveDescription(row, layout)

		res.Transactions = append(res.Transactions, common.Transaction{
			ID:          newID(),
			Date:        date,
			Description: description,
			Amount:      amount,
			AuditFlags:  []common.AuditFlag{},
			ExternalID:  ExternalID(date, description, amount),
		})
	}
	return res
}

// resolveAmount applies the column precedence: debit+credit, then a single
// amount column, then a lone debit or credit column.
func resolveAmount(row []string, layout sniffer.Layout) (decimal.Decimal, bool, string) {
	var (
		amount decimal.Decimal
		ok     bool
	)
	switch {
	case layout.IsDoubleEntry():
		amount, ok = normalizer.CombineDebitCredit(cell(row, layout.DebitCol), cell(row, layout.CreditCol), true, true)
	case layout.AmountCol >= 0:
		amount, ok = normalizer.NormalizeAmount(cell(row, layout.AmountCol))
	case layout.DebitCol >= 0:
		amount, ok = normalizer.CombineDebitCredit(cell(row, layout.DebitCol), "", true, false)
	case layout.CreditCol >= 0:
		amount, ok = normalizer.CombineDebitCredit("", cell(row, layout.CreditCol), false, true)
	default:
		return decimal.Zero, false, ReasonNoAmountField
	}
	if !ok {
		return decimal.Zero, false, ReasonNoAmount
	}
	return amount, true, ""
}

func resolveDescription(row []string, layout sniffer.Layout) string {
	if layout.DescCol >= 0 {
		return normalizer.CleanDescription(cell(row, layout.DescCol))
	}
	parts := make([]string, 0, len(row))
	for col, value := range row {
		if layout.Claims(col) || strings.TrimSpace(value) == "" {
			continue
		}
		parts = append(parts, value)
	}
	return normalizer.CleanDescription(strings.Join(parts, " "))
}

func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

// ExternalID derives a stable identifier for deduplication on import.
func ExternalID(date, description string, amount decimal.Decimal) string {
	data := fmt.Sprintf("%s|%s|%s", date, description, amount.StringFixed(2))
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:16])
}
