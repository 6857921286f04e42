package common

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Invoice is consumed read-only by reconciliation. It is produced upstream
// (extraction/OCR) and assumed validated.
type Invoice struct {
	ID          string          `json:"id" yaml:"id" db:"id"`
	VendorName  string          `json:"vendor_name" yaml:"vendor_name" db:"vendor_name"`
	InvoiceDate string          `json:"invoice_date" yaml:"invoice_date" db:"invoice_date"`
	TotalAmount decimal.Decimal `json:"total_amount" yaml:"total_amount" db:"total_minor"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty" db:"description"`
	Currency    string          `json:"currency,omitempty" yaml:"currency,omitempty" db:"currency_code"`
}

// MatchText is the text embedded for similarity scoring against transaction descriptions.
func (i Invoice) MatchText() string {
	return strings.TrimSpace(strings.Join(strings.Fields(i.VendorName+" "+i.Description), " "))
}
