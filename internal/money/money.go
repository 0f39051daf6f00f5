// Package money holds the exact monetary and weight value types used by order pricing.
package money

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is the shop's settlement currency.
const DefaultCurrency = "XOF"

var (
	ErrCurrencyMismatch = errors.New("currency mismatch")
	ErrOverflow         = errors.New("amount overflows minor units")
	ErrZeroDivisor      = errors.New("division by zero")
	ErrInexact          = errors.New("amount has more precision than the currency allows")
)

// RoundingMode selects how a ratio that does not land on a whole minor unit is resolved.
type RoundingMode int

const (
	// RoundHalfUp rounds ties away from zero. Used for all order pricing.
	RoundHalfUp RoundingMode = iota
	RoundHalfEven
	RoundDown
)

// exponents maps ISO 4217 codes to their minor-unit exponent.
var exponents = map[string]int32{
	"XOF": 0,
	"XAF": 0,
	"EUR": 2,
	"USD": 2,
}

// Exponent returns the number of decimal places of the currency's minor unit.
// Unknown currencies default to 2.
func Exponent(currency string) int32 {
	if e, ok := exponents[strings.ToUpper(currency)]; ok {
		return e
	}
	return 2
}

var (
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
	minInt64 = decimal.NewFromInt(math.MinInt64)
	two      = decimal.NewFromInt(2)
)

// Money is an amount in integer minor units of a single currency.
type Money struct {
	minor    int64
	currency string
}

// New returns an amount of minor units in currency.
func New(minor int64, currency string) Money {
	return Money{minor: minor, currency: strings.ToUpper(currency)}
}

// Zero returns the zero amount in currency.
func Zero(currency string) Money {
	return New(0, currency)
}

func (m Money) Minor() int64 { return m.minor }

func (m Money) Currency() string { return m.currency }

func (m Money) IsZero() bool { return m.minor == 0 }

func (m Money) IsNegative() bool { return m.minor < 0 }

func (m Money) Equal(o Money) bool { return m.minor == o.minor && m.currency == o.currency }

// Add returns m + o.
func (m Money) Add(o Money) (Money, error) {
	if m.currency != o.currency {
		return Money{}, fmt.Errorf("%w: %s and %s", ErrCurrencyMismatch, m.currency, o.currency)
	}
	if (o.minor > 0 && m.minor > math.MaxInt64-o.minor) || (o.minor < 0 && m.minor < math.MinInt64-o.minor) {
		return Money{}, ErrOverflow
	}
	return Money{minor: m.minor + o.minor, currency: m.currency}, nil
}

// Sub returns m - o.
func (m Money) Sub(o Money) (Money, error) {
	if o.minor == math.MinInt64 {
		return Money{}, ErrOverflow
	}
	return m.Add(Money{minor: -o.minor, currency: o.currency})
}

// MulInt returns m * n.
func (m Money) MulInt(n int64) (Money, error) {
	v, err := toInt64(decimal.NewFromInt(m.minor).Mul(decimal.NewFromInt(n)))
	if err != nil {
		return Money{}, err
	}
	return Money{minor: v, currency: m.currency}, nil
}

// MulRatio returns m * num / den, computed exactly and rounded once with mode.
func (m Money) MulRatio(num, den int64, mode RoundingMode) (Money, error) {
	if den == 0 {
		return Money{}, ErrZeroDivisor
	}
	p := decimal.NewFromInt(m.minor).Mul(decimal.NewFromInt(num))
	d := decimal.NewFromInt(den)

	// q is truncated toward zero; r carries the sign of p.
	q, r := p.QuoRem(d, 0)
	if !r.IsZero() {
		cmp := r.Abs().Mul(two).Cmp(d.Abs())
		away := false
		switch mode {
		case RoundHalfUp:
			away = cmp >= 0
		case RoundHalfEven:
			away = cmp > 0 || (cmp == 0 && !q.Mod(two).IsZero())
		case RoundDown:
		}
		if away {
			if p.Sign()*d.Sign() < 0 {
				q = q.Sub(decimal.NewFromInt(1))
			} else {
				q = q.Add(decimal.NewFromInt(1))
			}
		}
	}

	v, err := toInt64(q)
	if err != nil {
		return Money{}, err
	}
	return Money{minor: v, currency: m.currency}, nil
}

// Decimal returns the amount in major units (1240 XOF -> 1240, 1240 EUR cents -> 12.40).
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.minor, -Exponent(m.currency))
}

// FromDecimal converts a major-unit amount into Money. Amounts finer than the
// currency's minor unit are rejected rather than rounded.
func FromDecimal(d decimal.Decimal, currency string) (Money, error) {
	shifted := d.Shift(Exponent(currency))
	if !shifted.Equal(shifted.Truncate(0)) {
		return Money{}, fmt.Errorf("%w: %s %s", ErrInexact, d.String(), currency)
	}
	v, err := toInt64(shifted)
	if err != nil {
		return Money{}, err
	}
	return New(v, currency), nil
}

// String formats the amount with the currency's decimal places, e.g. "1240 XOF" or "12.40 EUR".
func (m Money) String() string {
	return m.Decimal().StringFixed(Exponent(m.currency)) + " " + m.currency
}

// Sum adds amounts in currency. An empty slice sums to zero.
func Sum(currency string, amounts ...Money) (Money, error) {
	total := Zero(currency)
	for _, a := range amounts {
		var err error
		if total, err = total.Add(a); err != nil {
			return Money{}, err
		}
	}
	return total, nil
}

func toInt64(d decimal.Decimal) (int64, error) {
	if d.GreaterThan(maxInt64) || d.LessThan(minInt64) {
		return 0, ErrOverflow
	}
	return d.IntPart(), nil
}
