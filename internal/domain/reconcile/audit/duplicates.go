// Package audit detects likely duplicate invoice submissions.
package audit

import (
	"strings"

	"github.com/FACorreiaa/echo-reconcile/internal/domain/common"
)

// DuplicateSet holds the ids of invoices that share a signature with another invoice.
type DuplicateSet map[string]struct{}

// Contains reports whether id was flagged as a duplicate.
func (s DuplicateSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Group is a set of invoices sharing one signature.
type Group struct {
	Signature  string   `json:"signature"`
	InvoiceIDs []string `json:"invoice_ids"`
}

// Signature is lower(vendor) | amount rounded to cents | invoice date.
func Signature(inv common.Invoice) string {
	vendor := strings.ToLower(strings.TrimSpace(inv.VendorName))
	return vendor + "|" + inv.TotalAmount.StringFixed(2) + "|" + strings.TrimSpace(inv.InvoiceDate)
}

// FindDuplicates groups invoices by Signature. Every member of a group with
// more than one invoice lands in the returned set; groups keep input order.
func FindDuplicates(invoices []common.Invoice) (DuplicateSet, []Group) {
	bySignature := make(map[string][]string, len(invoices))
	var order []string
	for _, inv := range invoices {
		sig := Signature(inv)
		if _, seen := bySignature[sig]; !seen {
			order = append(order, sig)
		}
		bySignature[sig] = append(bySignature[sig], inv.ID)
	}

	dupes := make(DuplicateSet)
	var groups []Group
	for _, sig := range order {
		ids := bySignature[sig]
		if len(ids) < 2 {
			continue
		}
		for _, id := range ids {
			dupes[id] = struct{}{}
		}
		groups = append(groups, Group{Signature: sig, InvoiceIDs: ids})
	}
	return dupes, groups
}
