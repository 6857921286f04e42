package matcher

import "github.com/FACorreiaa/echo-reconcile/internal/domain/common"

// Greedy scans transactions in input order and gives each the best invoice
// still available. Earlier transactions win shared invoices; decisions are
// never revisited.
type Greedy struct {
	tol Tolerances
}

func NewGreedy(tol Tolerances) *Greedy {
	return &Greedy{tol: tol}
}

func (g *Greedy) Name() string { return StrategyGreedy }

func (g *Greedy) Match(in Input) []common.Transaction {
	out := resetAll(in.Transactions)
	consumed := make(Consumed, len(in.Invoices))
	usable := candidates(in.Invoices)
	for i := range out {
		best, ok := g.best(in, i, usable, consumed)
		if !ok || !g.tol.accept(best.raw, best.exact) {
			continue
		}
		out[i] = apply(in, out[i], best)
		consumed.claim(in.Invoices[best.invoice].ID)
	}
	return out
}

// best returns the highest ranked admissible invoice not yet consumed.
// Ties keep the earlier invoice.
func (g *Greedy) best(in Input, tx int, usable []bool, consumed Consumed) (pairScore, bool) {
	var (
		best     pairScore
		bestRank float64
		found    bool
	)
	for inv := range in.Invoices {
		if !usable[inv] || consumed.has(in.Invoices[inv].ID) {
			continue
		}
		s, ok := score(in, g.tol, tx, inv)
		if !ok {
			continue
		}
		if r := g.tol.rank(s.raw, s.exact); !found || r > bestRank {
			best, bestRank, found = s, r, true
		}
	}
	return best, found
}
