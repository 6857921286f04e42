package matcher

import (
	"math"

	"github.com/FACorreiaa/echo-reconcile/internal/domain/common"
)

// Optimal picks the assignment with the largest total ranked score over all
// pairs that would be accepted on their own. It is order-independent.
type Optimal struct {
	tol Tolerances
}

func NewOptimal(tol Tolerances) *Optimal {
	return &Optimal{tol: tol}
}

func (o *Optimal) Name() string { return StrategyOptimal }

func (o *Optimal) Match(in Input) []common.Transaction {
	out := resetAll(in.Transactions)
	n, m := len(in.Transactions), len(in.Invoices)
	if n == 0 || m == 0 {
		return out
	}

	usable := candidates(in.Invoices)
	size := max(n, m)
	cost := make([][]float64, size)
	eligible := make([][]*pairScore, n)
	for i := range cost {
		cost[i] = make([]float64, size)
		if i >= n {
			continue
		}
		eligible[i] = make([]*pairScore, m)
		for j := 0; j < m; j++ {
			if !usable[j] {
				continue
			}
			s, ok := score(in, o.tol, i, j)
			if !ok || !o.tol.accept(s.raw, s.exact) {
				continue
			}
			eligible[i][j] = &s
			cost[i][j] = -o.tol.rank(s.raw, s.exact)
		}
	}

	for i, j := range hungarian(cost) {
		if i >= n || j >= m || eligible[i][j] == nil {
			continue
		}
		out[i] = apply(in, out[i], *eligible[i][j])
	}
	return out
}

// hungarian solves the square minimum-cost assignment problem and returns
// the column assigned to each row.
func hungarian(cost [][]float64) []int {
	n := len(cost)
	u := make([]float64, n+1)
	v := make([]float64, n+1)
	p := make([]int, n+1) // p[j]: row matched to column j, 1-based
	way := make([]int, n+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		minv := make([]float64, n+1)
		used := make([]bool, n+1)
		for j := range minv {
			minv[j] = math.Inf(1)
		}
		for {
			used[j0] = true
			i0, delta, j1 := p[j0], math.Inf(1), 0
			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				if cur := cost[i0-1][j-1] - u[i0] - v[j]; cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= n; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}
		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	assignment := make([]int, n)
	for j := 1; j <= n; j++ {
		if p[j] > 0 {
			assignment[p[j]-1] = j - 1
		}
	}
	return assignment
}
