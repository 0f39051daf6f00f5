package money

import (
	"errors"
	"fmt"
)

var ErrNegativeWeight = errors.New("weight must not be negative")

// Weight is a mass in whole grams.
type Weight int64

// Kilogram is the reference unit variable-weight prices are quoted against.
const Kilogram Weight = 1000

// Grams validates g and returns it as a Weight.
func Grams(g int64) (Weight, error) {
	if g < 0 {
		return 0, fmt.Errorf("%w: %dg", ErrNegativeWeight, g)
	}
	return Weight(g), nil
}

func (w Weight) Grams() int64 { return int64(w) }

func (w Weight) String() string { return fmt.Sprintf("%dg", int64(w)) }

// PriceFor prices w at unitPrice per reference weight. The ratio is kept exact
// and rounded once at the end.
func (w Weight) PriceFor(unitPrice Money, reference Weight, mode RoundingMode) (Money, error) {
	if w < 0 {
		return Money{}, ErrNegativeWeight
	}
	if reference <= 0 {
		return Money{}, ErrZeroDivisor
	}
	return unitPrice.MulRatio(int64(w), int64(reference), mode)
}
