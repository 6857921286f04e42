package common

import (
	"slices"

	"github.com/shopspring/decimal"
)

// AuditFlag marks something a reviewer should look at on a matched transaction.
type AuditFlag string

const (
	FlagAmountMismatch   AuditFlag = "amount_mismatch"
	FlagDuplicateInvoice AuditFlag = "duplicate_invoice"
)

// Transaction is a canonical bank statement line.
// Amount is signed: negative for money out, positive for money in.
type Transaction struct {
	ID               string          `json:"id" db:"id"`
	Date             string          `json:"date" db:"posted_on"` // YYYY-MM-DD, empty when unparseable
	Description      string          `json:"description" db:"description"`
	Amount           decimal.Decimal `json:"amount" db:"amount_minor"`
	MatchedInvoiceID string          `json:"matched_invoice_id,omitempty" db:"matched_invoice_id"`
	MatchConfidence  float64         `json:"match_confidence,omitempty" db:"match_confidence"`
	AuditFlags       []AuditFlag     `json:"audit_flags,omitempty" db:"audit_flags"`
	ExternalID       string          `json:"external_id,omitempty" db:"external_id"`
}

// Matched reports whether the transaction was assigned an invoice.
func (t Transaction) Matched() bool {
	return t.MatchedInvoiceID != ""
}

// HasFlag reports whether flag is set.
func (t Transaction) HasFlag(flag AuditFlag) bool {
	return slices.Contains(t.AuditFlags, flag)
}

// AddFlag sets flag once.
func (t *Transaction) AddFlag(flag AuditFlag) {
	if !t.HasFlag(flag) {
		t.AuditFlags = append(t.AuditFlags, flag)
	}
}

// Unmatched returns a copy with all match state cleared.
func (t Transaction) Unmatched() Transaction {
	t.MatchedInvoiceID = ""
	t.MatchConfidence = 0
	t.AuditFlags = nil
	return t
}
