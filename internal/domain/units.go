package domain

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits carried by every cash and asset amount.
const Scale = 8

var (
	// ErrAmountOverflow is returned when an amount does not fit the fixed-point range.
	ErrAmountOverflow = errors.New("amount out of range")

	// ErrAmountPrecision is returned when an amount carries more than Scale fractional digits.
	ErrAmountPrecision = errors.New("amount exceeds 8 fractional digits")
)

// Units is a fixed-point amount with 8 fractional digits, stored as the
// integer number of 1e-8 units. Price, quantity, cash and holdings all use it,
// so SQL comparisons on these columns are exact on every engine.
type Units int64

// ParseUnits parses a decimal string such as "0.5" or "95000".
func ParseUnits(s string) (Units, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return UnitsFromDecimal(d)
}

// MustUnits is ParseUnits for constants and tests. Panics on bad input.
func MustUnits(s string) Units {
	u, err := ParseUnits(s)
	if err != nil {
		panic(err)
	}
	return u
}

// UnitsFromDecimal converts d exactly. It fails if d has more than Scale
// fractional digits or does not fit the int64 range.
func UnitsFromDecimal(d decimal.Decimal) (Units, error) {
	shifted := d.Shift(Scale)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("%s: %w", d.String(), ErrAmountPrecision)
	}
	bi := shifted.BigInt()
	if !bi.IsInt64() {
		return 0, fmt.Errorf("%s: %w", d.String(), ErrAmountOverflow)
	}
	return Units(bi.Int64()), nil
}

// Quantize truncates d toward zero at Scale digits and converts it.
// Every intermediate result (volume, commission, refund) goes through here,
// mirroring bcmath-style chained arithmetic at scale 8.
func Quantize(d decimal.Decimal) (Units, error) {
	return UnitsFromDecimal(d.Truncate(Scale))
}

// Decimal returns the exact decimal value of u.
func (u Units) Decimal() decimal.Decimal {
	return decimal.New(int64(u), -Scale)
}

// String renders u with exactly 8 fractional digits, e.g. "500.00000000".
func (u Units) String() string {
	return u.Decimal().StringFixed(Scale)
}

func (u Units) IsZero() bool     { return u == 0 }
func (u Units) IsPositive() bool { return u > 0 }
func (u Units) IsNegative() bool { return u < 0 }

// Add returns u+v or ErrAmountOverflow.
func (u Units) Add(v Units) (Units, error) {
	s := u + v
	if (v > 0 && s < u) || (v < 0 && s > u) {
		return 0, fmt.Errorf("%s + %s: %w", u, v, ErrAmountOverflow)
	}
	return s, nil
}

// Sub returns u-v or ErrAmountOverflow.
func (u Units) Sub(v Units) (Units, error) {
	d := u - v
	if (v > 0 && d > u) || (v < 0 && d < u) {
		return 0, fmt.Errorf("%s - %s: %w", u, v, ErrAmountOverflow)
	}
	return d, nil
}

// Mul returns trunc8(u × v).
func (u Units) Mul(v Units) (Units, error) {
	return Quantize(u.Decimal().Mul(v.Decimal()))
}

// MulRate returns trunc8(u × rate).
func (u Units) MulRate(rate decimal.Decimal) (Units, error) {
	return Quantize(u.Decimal().Mul(rate))
}

// MarshalJSON encodes u as a fixed 8-digit string so clients never see a float.
func (u Units) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(u.String())), nil
}

// UnmarshalJSON accepts both quoted strings and bare JSON numbers.
func (u *Units) UnmarshalJSON(b []byte) error {
	s := string(b)
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	v, err := ParseUnits(s)
	if err != nil {
		return err
	}
	*u = v
	return nil
}
