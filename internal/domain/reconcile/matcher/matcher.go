// Package matcher assigns bank transactions to invoices using embedding
// similarity and amount tolerances. Strategies are pure functions of their
// Input: they perform no I/O and never modify the input slices.
package matcher

import (
	"fmt"

	"github.com/FACorreiaa/echo-reconcile/internal/domain/common"
	"github.com/FACorreiaa/echo-reconcile/internal/domain/reconcile/audit"
)

const (
	StrategyGreedy  = "greedy"
	StrategyOptimal = "optimal"
)

// Input is an immutable snapshot for one matching pass. Vectors are parallel
// to their records; a missing or empty vector means no embedding is available.
type Input struct {
	Transactions       []common.Transaction
	Invoices           []common.Invoice
	TransactionVectors [][]float32
	InvoiceVectors     [][]float32
	Duplicates         audit.DuplicateSet
}

// Strategy computes a one-to-one assignment. The returned slice has the same
// length and order as in.Transactions, each entry recomputed from unmatched.
type Strategy interface {
	Name() string
	Match(in Input) []common.Transaction
}

// New returns the named strategy.
func New(name string, tol Tolerances) (Strategy, error) {
	switch name {
	case "", StrategyGreedy:
		return NewGreedy(tol), nil
	case StrategyOptimal:
		return NewOptimal(tol), nil
	}
	return nil, fmt.Errorf("unknown matching strategy %q", name)
}

// Consumed tracks invoice ids already claimed within one pass.
type Consumed map[string]struct{}

func (c Consumed) has(id string) bool {
	_, ok := c[id]
	return ok
}

func (c Consumed) claim(id string) {
	c[id] = struct{}{}
}

// candidates reports which invoice positions may be matched at all: an
// invoice needs an id, and only the first invoice carrying a given id counts.
func candidates(invoices []common.Invoice) []bool {
	ok := make([]bool, len(invoices))
	seen := make(map[string]struct{}, len(invoices))
	for i, inv := range invoices {
		if inv.ID == "" {
			continue
		}
		if _, dup := seen[inv.ID]; dup {
			continue
		}
		seen[inv.ID] = struct{}{}
		ok[i] = true
	}
	return ok
}

// pairScore is the evaluation of one transaction/invoice pair.
type pairScore struct {
	invoice int
	raw     float64
	exact   bool
}

// score evaluates a pair; ok is false when the loose tolerance rejects it.
func score(in Input, tol Tolerances, tx, inv int) (pairScore, bool) {
	admissible, exact := tol.admit(in.Transactions[tx].Amount, in.Invoices[inv].TotalAmount)
	if !admissible {
		return pairScore{}, false
	}
	raw := CosineSimilarity(vectorAt(in.TransactionVectors, tx), vectorAt(in.InvoiceVectors, inv))
	return pairScore{invoice: inv, raw: raw, exact: exact}, true
}

// apply records an accepted match on a copy of tx.
func apply(in Input, tx common.Transaction, best pairScore) common.Transaction {
	inv := in.Invoices[best.invoice]
	tx.MatchedInvoiceID = inv.ID
	tx.MatchConfidence = best.raw
	if !best.exact {
		tx.AddFlag(common.FlagAmountMismatch)
	}
	if in.Duplicates.Contains(inv.ID) {
		tx.AddFlag(common.FlagDuplicateInvoice)
	}
	return tx
}

func resetAll(txs []common.Transaction) []common.Transaction {
	out := make([]common.Transaction, len(txs))
	for i, tx := range txs {
		out[i] = tx.Unmatched()
	}
	return out
}

func vectorAt(vectors [][]float32, i int) []float32 {
	if i < 0 || i >= len(vectors) {
		return nil
	}
	return vectors[i]
}
