// Package money provides the fixed-point currency type used throughout the ledger.
//
// Amounts are stored as a whole number of cents. Parsing and formatting go
// through shopspring/decimal so that no value ever passes through binary
// floating point; two amounts are equal only when their cents are equal.
package money

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Cent is the smallest representable amount.
const Cent Amount = 1

// Zero is the zero amount.
const Zero Amount = 0

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrTooPrecise    = errors.New("amount has more than two decimal places")
	ErrOutOfRange    = errors.New("amount out of range")
)

// MaxAmount bounds the magnitude of any parsed amount, 100 billion in
// currency units. Sums of up to 900,000 such amounts fit in an int64.
const MaxAmount Amount = 10_000_000_000_000

var (
	maxCents = decimal.NewFromInt(int64(MaxAmount))
	minCents = decimal.NewFromInt(-int64(MaxAmount))
)

// Amount is a signed currency value in cents.
type Amount int64

// FromCents returns the amount for the given number of cents.
func FromCents(cents int64) Amount {
	return Amount(cents)
}

// Parse converts a decimal string such as "12.34" or "-0.5" into an Amount.
// Values with more than two significant fractional digits are rejected rather
// than rounded, so "30.001" is an error while "30.010" is accepted.
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return FromDecimal(d)
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromDecimal converts a decimal with at most two fractional digits whose
// magnitude does not exceed MaxAmount.
func FromDecimal(d decimal.Decimal) (Amount, error) {
	if !d.Equal(d.Round(2)) {
		return 0, fmt.Errorf("%w: %s", ErrTooPrecise, d.String())
	}
	cents := d.Shift(2)
	if cents.GreaterThan(maxCents) || cents.LessThan(minCents) {
		return 0, fmt.Errorf("%w: %s", ErrOutOfRange, d.String())
	}
	return Amount(cents.IntPart()), nil
}

// Cents returns the amount as a whole number of cents.
func (a Amount) Cents() int64 {
	return int64(a)
}

// Decimal returns the amount as an exact decimal.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -2)
}

// String formats the amount with exactly two fractional digits.
func (a Amount) String() string {
	return a.Decimal().StringFixed(2)
}

func (a Amount) IsZero() bool     { return a == 0 }
func (a Amount) IsPositive() bool { return a > 0 }
func (a Amount) IsNegative() bool { return a < 0 }

// Abs returns the absolute value.
func (a Amount) Abs() Amount {
	if a < 0 {
		return -a
	}
	return a
}

// Min returns the smaller of a and b.
func Min(a, b Amount) Amount {
	if a < b {
		return a
	}
	return b
}

// Sum adds all amounts.
func Sum(amounts ...Amount) Amount {
	var total Amount
	for _, a := range amounts {
		total += a
	}
	return total
}

// MarshalJSON encodes the amount as a decimal string ("12.34") so clients
// never see a float.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON accepts either a quoted decimal string or a bare JSON number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*a = 0
		return nil
	}
	v, err := Parse(string(data))
	if err != nil {
		return err
	}
	*a = v
	return nil
}
