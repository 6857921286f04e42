package matcher

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Tolerances decide which invoices a transaction may be matched to and when
// a similarity score is good enough.
type Tolerances struct {
	// LooseRatio rejects a candidate when |invoice - |tx|| >= invoice * LooseRatio.
	LooseRatio decimal.Decimal
	// ExactAbs marks a candidate amount-exact when the difference is below it.
	ExactAbs decimal.Decimal
	// ExactBonus is added to amount-exact scores when ranking candidates only.
	ExactBonus float64
	// ExactThreshold and FuzzyThreshold are the minimum raw similarities
	// (exclusive) for amount-exact and other candidates.
	ExactThreshold float64
	FuzzyThreshold float64
}

func DefaultTolerances() Tolerances {
	return NewTolerances(0.2, 0.5, 0.1, 0.45, 0.85)
}

// NewTolerances builds Tolerances from plain configuration values.
func NewTolerances(looseRatio, exactAbs, exactBonus, exactThreshold, fuzzyThreshold float64) Tolerances {
	return Tolerances{
		LooseRatio:     decimal.NewFromFloat(looseRatio),
		ExactAbs:       decimal.NewFromFloat(exactAbs),
		ExactBonus:     exactBonus,
		ExactThreshold: exactThreshold,
		FuzzyThreshold: fuzzyThreshold,
	}
}

var ErrInvalidTolerances = errors.New("invalid matching tolerances")

func (t Tolerances) Validate() error {
	switch {
	case !t.LooseRatio.IsPositive():
		return errors.Join(ErrInvalidTolerances, errors.New("loose ratio must be positive"))
	case t.ExactAbs.IsNegative():
		return errors.Join(ErrInvalidTolerances, errors.New("exact tolerance must not be negative"))
	case t.ExactThreshold < 0 || t.ExactThreshold > 1, t.FuzzyThreshold < 0 || t.FuzzyThreshold > 1:
		return errors.Join(ErrInvalidTolerances, errors.New("thresholds must be within [0, 1]"))
	}
	return nil
}

// admit applies the loose tolerance and reports amount-exactness.
func (t Tolerances) admit(txAmount, invoiceTotal decimal.Decimal) (admissible, exact bool) {
	diff := invoiceTotal.Sub(txAmount.Abs()).Abs()
	if diff.GreaterThanOrEqual(invoiceTotal.Mul(t.LooseRatio)) {
		return false, false
	}
	return true, diff.LessThan(t.ExactAbs)
}

// rank is the score used to compare candidates; it is never persisted.
func (t Tolerances) rank(raw float64, exact bool) float64 {
	if exact {
		return raw + t.ExactBonus
	}
	return raw
}

func (t Tolerances) accept(raw float64, exact bool) bool {
	if exact {
		return raw > t.ExactThreshold
	}
	return raw > t.FuzzyThreshold
}
