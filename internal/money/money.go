// Package money provides a fixed-point monetary value stored as integer minor units.
//
// All arithmetic is integer arithmetic. Decimal text is parsed exactly with
// shopspring/decimal so that "0.1" is ten minor units and never 0.1 as a float.
package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places carried by a Money value.
const Scale = 2

var (
	// ErrParse is returned when text cannot be read as a monetary amount.
	ErrParse = errors.New("invalid monetary amount")
	// ErrInvalidDivisor is returned when dividing by a count below one.
	ErrInvalidDivisor = errors.New("divisor must be at least 1")
)

// Money is a signed amount in minor units (cents). The zero value is 0.00.
type Money struct {
	minor int64
}

// Zero is 0.00.
var Zero = Money{}

// FromMinorUnits builds a Money from an integer count of minor units.
func FromMinorUnits(minor int64) Money {
	return Money{minor: minor}
}

var (
	pointForm = regexp.MustCompile(`^[+-]?(\d+(\.\d+)?|\.\d+)$`)
	// A comma is a decimal separator only before one or two digits;
	// "1,000" reads as a thousands group and is refused.
	commaForm = regexp.MustCompile(`^[+-]?\d+,\d{1,2}$`)
)

// Parse reads a decimal string such as "12", "12.5", "12.50" or "12,50".
// Grouping separators, exponents, more than two fractional digits of
// precision, and values outside the int64 minor-unit range fail with ErrParse.
func Parse(text string) (Money, error) {
	s := strings.TrimSpace(text)
	switch {
	case s == "":
		return Zero, fmt.Errorf("%w: empty input", ErrParse)
	case commaForm.MatchString(s):
		s = strings.Replace(s, ",", ".", 1)
	case !pointForm.MatchString(s):
		return Zero, fmt.Errorf("%w: %q", ErrParse, text)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("%w: %q", ErrParse, text)
	}

	scaled := d.Shift(Scale)
	if !scaled.IsInteger() {
		return Zero, fmt.Errorf("%w: %q has more than %d decimal places", ErrParse, text, Scale)
	}
	bi := scaled.BigInt()
	if !bi.IsInt64() {
		return Zero, fmt.Errorf("%w: %q is out of range", ErrParse, text)
	}

	return Money{minor: bi.Int64()}, nil
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(text string) Money {
	m, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return m
}

// MinorUnits returns the amount in minor units.
func (m Money) MinorUnits() int64 { return m.minor }

// Add returns m + o.
func (m Money) Add(o Money) Money { return Money{minor: m.minor + o.minor} }

// Sub returns m - o.
func (m Money) Sub(o Money) Money { return Money{minor: m.minor - o.minor} }

// Neg returns -m.
func (m Money) Neg() Money { return Money{minor: -m.minor} }

// Abs returns |m|.
func (m Money) Abs() Money {
	if m.minor < 0 {
		return m.Neg()
	}
	return m
}

// Cmp returns -1, 0 or +1.
func (m Money) Cmp(o Money) int {
	switch {
	case m.minor < o.minor:
		return -1
	case m.minor > o.minor:
		return 1
	default:
		return 0
	}
}

func (m Money) IsZero() bool     { return m.minor == 0 }
func (m Money) IsPositive() bool { return m.minor > 0 }
func (m Money) IsNegative() bool { return m.minor < 0 }

// Divide splits m into n parts whose sum is exactly m.
//
// Every part gets m/n truncated toward zero; the |m mod n| leftover minor
// units are handed out one each to the first parts, carrying the sign of m.
// For 10.00 / 3 that is [3.34 3.33 3.33].
func (m Money) Divide(n int) ([]Money, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDivisor, n)
	}

	quotient := m.minor / int64(n)
	remainder := m.minor % int64(n)

	step := int64(1)
	if remainder < 0 {
		step = -1
		remainder = -remainder
	}

	parts := make([]Money, n)
	for i := range parts {
		parts[i] = Money{minor: quotient}
		if int64(i) < remainder {
			parts[i].minor += step
		}
	}
	return parts, nil
}

// Sum adds up a list of amounts.
func Sum(amounts ...Money) Money {
	var total Money
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// Decimal returns the amount as a decimal in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.minor, -Scale)
}

// String formats the amount with exactly two decimal places, e.g. "-3.34".
func (m Money) String() string {
	return m.Decimal().StringFixed(Scale)
}

// MarshalJSON encodes the amount as a decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts a decimal string or a bare JSON number.
func (m *Money) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		s = string(data)
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
