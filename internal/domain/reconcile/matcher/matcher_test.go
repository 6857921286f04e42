package matcher

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/echo-reconcile/internal/domain/common"
	"github.com/FACorreiaa/echo-reconcile/internal/domain/reconcile/audit"
)

func tx(id, amount string) common.Transaction {
	return common.Transaction{ID: id, Description: id, Amount: decimal.RequireFromString(amount)}
}

func inv(id, total string) common.Invoice {
	return common.Invoice{ID: id, VendorName: id, TotalAmount: decimal.RequireFromString(total)}
}

// withCosine returns a 2-d unit vector whose cosine similarity with [1, 0] is c.
func withCosine(c float64) []float32 {
	return []float32{float32(c), float32(math.Sqrt(1 - c*c))}
}

var axis = []float32{1, 0}

func strategies() []Strategy {
	return []Strategy{NewGreedy(DefaultTolerances()), NewOptimal(DefaultTolerances())}
}

func TestMatch_NearAmountHighSimilarity(t *testing.T) {
	for _, s := range strategies() {
		t.Run(s.Name(), func(t *testing.T) {
			in := Input{
				Transactions:       []common.Transaction{tx("t1", "-102")},
				Invoices:           []common.Invoice{inv("i1", "100.00")},
				TransactionVectors: [][]float32{axis},
				InvoiceVectors:     [][]float32{withCosine(0.9)},
			}

			out := s.Match(in)
			require.Len(t, out, 1)
			assert.Equal(t, "i1", out[0].MatchedInvoiceID)
			assert.InDelta(t, 0.9, out[0].MatchConfidence, 1e-6)
			assert.Equal(t, []common.AuditFlag{common.FlagAmountMismatch}, out[0].AuditFlags)
		})
	}
}

func TestMatch_NearAmountBelowFuzzyThreshold(t *testing.T) {
	for _, s := range strategies() {
		t.Run(s.Name(), func(t *testing.T) {
			in := Input{
				Transactions:       []common.Transaction{tx("t1", "-102")},
				Invoices:           []common.Invoice{inv("i1", "100.00")},
				TransactionVectors: [][]float32{axis},
				InvoiceVectors:     [][]float32{withCosine(0.8)},
			}

			out := s.Match(in)
			assert.False(t, out[0].Matched())
			assert.Empty(t, out[0].AuditFlags)
			assert.Zero(t, out[0].MatchConfidence)
		})
	}
}

func TestMatch_ExactAmountLowerThreshold(t *testing.T) {
	in := Input{
		Transactions:       []common.Transaction{tx("t1", "-100.30")},
		Invoices:           []common.Invoice{inv("i1", "100.00")},
		TransactionVectors: [][]float32{axis},
		InvoiceVectors:     [][]float32{withCosine(0.5)},
	}

	out := NewGreedy(DefaultTolerances()).Match(in)
	assert.Equal(t, "i1", out[0].MatchedInvoiceID)
	assert.Empty(t, out[0].AuditFlags)
}

func TestMatch_OutsideLooseTolerance(t *testing.T) {
	in := Input{
		Transactions:       []common.Transaction{tx("t1", "-120")},
		Invoices:           []common.Invoice{inv("i1", "100.00")},
		TransactionVectors: [][]float32{axis},
		InvoiceVectors:     [][]float32{axis},
	}

	for _, s := range strategies() {
		out := s.Match(in)
		assert.False(t, out[0].Matched(), s.Name())
	}
}

func TestMatch_EmptyEmbeddingNeverMatches(t *testing.T) {
	for _, s := range strategies() {
		t.Run(s.Name(), func(t *testing.T) {
			in := Input{
				Transactions:       []common.Transaction{tx("t1", "-100"), tx("t2", "-100")},
				Invoices:           []common.Invoice{inv("i1", "100"), inv("i2", "100")},
				TransactionVectors: [][]float32{{}, axis},
				InvoiceVectors:     [][]float32{axis, {1, 0, 0}},
			}

			out := s.Match(in)
			assert.False(t, out[0].Matched(), "empty transaction vector")
			assert.Equal(t, "i1", out[1].MatchedInvoiceID)
		})
	}
}

func TestMatch_ExactBonusPrefersExactCandidate(t *testing.T) {
	in := Input{
		Transactions: []common.Transaction{tx("t1", "-100")},
		Invoices:     []common.Invoice{inv("fuzzy", "105"), inv("exact", "100")},
		TransactionVectors: [][]float32{axis},
		InvoiceVectors:     [][]float32{withCosine(0.88), withCosine(0.8)},
	}

	out := NewGreedy(DefaultTolerances()).Match(in)
	assert.Equal(t, "exact", out[0].MatchedInvoiceID)
	assert.InDelta(t, 0.8, out[0].MatchConfidence, 1e-6, "persisted score excludes the bonus")
	assert.Empty(t, out[0].AuditFlags)
}

func TestMatch_DuplicateInvoiceFlag(t *testing.T) {
	invoices := []common.Invoice{inv("i1", "100"), inv("i2", "100")}
	dupes, _ := audit.FindDuplicates(invoices)

	in := Input{
		Transactions:       []common.Transaction{tx("t1", "-100"), tx("t2", "-50")},
		Invoices:           invoices,
		TransactionVectors: [][]float32{axis, axis},
		InvoiceVectors:     [][]float32{axis, axis},
		Duplicates:         dupes,
	}

	out := NewGreedy(DefaultTolerances()).Match(in)
	assert.Equal(t, "i1", out[0].MatchedInvoiceID)
	assert.Equal(t, []common.AuditFlag{common.FlagDuplicateInvoice}, out[0].AuditFlags)
	assert.False(t, out[1].Matched())
	assert.Empty(t, out[1].AuditFlags)
}

func TestGreedy_OrderDependent(t *testing.T) {
	// t1 can use either invoice, t2 only fits "a". Greedy lets t1 take "a".
	in := Input{
		Transactions:       []common.Transaction{tx("t1", "-105"), tx("t2", "-85")},
		Invoices:           []common.Invoice{inv("a", "100"), inv("b", "110")},
		TransactionVectors: [][]float32{axis, axis},
		InvoiceVectors:     [][]float32{axis, axis},
	}

	greedy := NewGreedy(DefaultTolerances()).Match(in)
	assert.Equal(t, "a", greedy[0].MatchedInvoiceID)
	assert.False(t, greedy[1].Matched())

	optimal := NewOptimal(DefaultTolerances()).Match(in)
	assert.Equal(t, "b", optimal[0].MatchedInvoiceID)
	assert.Equal(t, "a", optimal[1].MatchedInvoiceID)
}

func TestMatch_NoInvoiceDoubleBooked(t *testing.T) {
	var (
		txs     []common.Transaction
		txVecs  [][]float32
		invs    []common.Invoice
		invVecs [][]float32
	)
	for i := 0; i < 6; i++ {
		txs = append(txs, tx(string(rune('p'+i)), "-100"))
		txVecs = append(txVecs, axis)
	}
	for i := 0; i < 3; i++ {
		invs = append(invs, inv(string(rune('a'+i)), "100"))
		invVecs = append(invVecs, withCosine(0.9+float64(i)*0.02))
	}
	in := Input{Transactions: txs, Invoices: invs, TransactionVectors: txVecs, InvoiceVectors: invVecs}

	for _, s := range strategies() {
		out := s.Match(in)
		seen := map[string]bool{}
		matched := 0
		for _, o := range out {
			if len(o.AuditFlags) > 0 {
				assert.True(t, o.Matched(), "%s: flags on unmatched transaction", s.Name())
			}
			if !o.Matched() {
				continue
			}
			matched++
			assert.False(t, seen[o.MatchedInvoiceID], "%s: %s booked twice", s.Name(), o.MatchedInvoiceID)
			seen[o.MatchedInvoiceID] = true
		}
		assert.Equal(t, 3, matched, s.Name())
	}
}

func TestMatch_RepeatedInvoiceIDBookedOnce(t *testing.T) {
	for _, s := range strategies() {
		t.Run(s.Name(), func(t *testing.T) {
			in := Input{
				Transactions:       []common.Transaction{tx("t1", "-100"), tx("t2", "-100")},
				Invoices:           []common.Invoice{inv("INV-1", "100"), inv("INV-1", "100")},
				TransactionVectors: [][]float32{axis, axis},
				InvoiceVectors:     [][]float32{axis, axis},
			}

			out := s.Match(in)
			require.Len(t, out, 2)
			matched := 0
			for _, o := range out {
				if o.Matched() {
					matched++
					assert.Equal(t, "INV-1", o.MatchedInvoiceID)
				}
			}
			assert.Equal(t, 1, matched)
		})
	}
}

func TestMatch_InvoiceWithoutIDNeverMatches(t *testing.T) {
	for _, s := range strategies() {
		t.Run(s.Name(), func(t *testing.T) {
			in := Input{
				Transactions:       []common.Transaction{tx("t1", "-102")},
				Invoices:           []common.Invoice{inv("", "100")},
				TransactionVectors: [][]float32{axis},
				InvoiceVectors:     [][]float32{axis},
			}

			out := s.Match(in)
			require.Len(t, out, 1)
			assert.False(t, out[0].Matched())
			assert.Empty(t, out[0].AuditFlags)
		})
	}
}

func TestMatch_RecomputesFromUnmatched(t *testing.T) {
	stale := tx("t1", "-100")
	stale.MatchedInvoiceID = "old"
	stale.MatchConfidence = 0.99
	stale.AuditFlags = []common.AuditFlag{common.FlagAmountMismatch}

	in := Input{
		Transactions:       []common.Transaction{stale},
		Invoices:           []common.Invoice{inv("i1", "500")},
		TransactionVectors: [][]float32{axis},
		InvoiceVectors:     [][]float32{axis},
	}

	out := NewGreedy(DefaultTolerances()).Match(in)
	assert.False(t, out[0].Matched())
	assert.Empty(t, out[0].AuditFlags)
	assert.Equal(t, "old", in.Transactions[0].MatchedInvoiceID, "input must not be modified")
}

func TestTolerances_AcceptIsExclusive(t *testing.T) {
	tol := DefaultTolerances()
	assert.False(t, tol.accept(0.85, false))
	assert.True(t, tol.accept(0.851, false))
	assert.False(t, tol.accept(0.45, true))
	assert.True(t, tol.accept(0.46, true))
}

func TestTolerances_Validate(t *testing.T) {
	require.NoError(t, DefaultTolerances().Validate())

	bad := DefaultTolerances()
	bad.LooseRatio = decimal.Zero
	assert.ErrorIs(t, bad.Validate(), ErrInvalidTolerances)

	bad = DefaultTolerances()
	bad.FuzzyThreshold = 1.5
	assert.ErrorIs(t, bad.Validate(), ErrInvalidTolerances)
}

func TestNew(t *testing.T) {
	s, err := New("", DefaultTolerances())
	require.NoError(t, err)
	assert.Equal(t, StrategyGreedy, s.Name())

	s, err = New(StrategyOptimal, DefaultTolerances())
	require.NoError(t, err)
	assert.Equal(t, StrategyOptimal, s.Name())

	_, err = New("random", DefaultTolerances())
	assert.Error(t, err)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Zero(t, CosineSimilarity(nil, []float32{1}))
	assert.Zero(t, CosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{1, 0}))
}

func TestHungarian(t *testing.T) {
	cost := [][]float64{
		{4, 1, 3},
		{2, 0, 5},
		{3, 2, 2},
	}
	assert.Equal(t, []int{1, 0, 2}, hungarian(cost))
}
