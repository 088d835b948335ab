// Package types holds the numeric types shared across the domain.
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an arbitrary-precision monetary value.
type Money = decimal.Decimal

// Quantity is a stock quantity held as a scaled integer with four
// fractional digits. Arithmetic stays exact and the value maps directly
// onto a BIGINT column mirroring NUMERIC(15,4).
type Quantity int64

// QuantityScale is the fixed-point denominator.
const QuantityScale int64 = 10_000

// NewQuantityFromFloat64 rounds v to the nearest representable quantity.
func NewQuantityFromFloat64(v float64) Quantity {
	return Quantity(math.Round(v * float64(QuantityScale)))
}

// NewQuantityFromInt64Scaled wraps an already-scaled raw value, as read
// from the database.
func NewQuantityFromInt64Scaled(v int64) Quantity { return Quantity(v) }

// Int64Scaled returns the raw scaled value for storage.
func (q Quantity) Int64Scaled() int64 { return int64(q) }

// Float64 converts to a float, losing exactness. Display only.
func (q Quantity) Float64() float64 { return float64(q) / float64(QuantityScale) }

func (q Quantity) IsZero() bool     { return q == 0 }
func (q Quantity) IsPositive() bool { return q > 0 }
func (q Quantity) IsNegative() bool { return q < 0 }

func (q Quantity) Neg() Quantity { return -q }

func (q Quantity) Abs() Quantity {
	if q < 0 {
		return -q
	}
	return q
}

// String formats the quantity with exactly four fractional digits.
func (q Quantity) String() string {
	v := q
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%04d", sign, int64(v)/QuantityScale, int64(v)%QuantityScale)
}

// MarshalJSON renders the quantity as a plain JSON number.
func (q Quantity) MarshalJSON() ([]byte, error) {
	return []byte(q.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
// Null and the empty token decode to zero.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*q = 0
		return nil
	}

	token := string(data)
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		if err := json.Unmarshal(data, &token); err != nil {
			return err
		}
	}

	parsed, err := parseQuantityString(token)
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

// parseQuantityString reads a plain decimal literal. Fractional digits
// beyond the fourth are truncated. Exponent notation is rejected so the
// parser never goes through floating point.
func parseQuantityString(s string) (Quantity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty quantity")
	}
	if strings.ContainsAny(s, "eE") {
		return 0, fmt.Errorf("parse quantity: exponent form not supported: %q", s)
	}

	sign := int64(1)
	switch {
	case strings.HasPrefix(s, "-"):
		sign = -1
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}

	intStr, fracStr, _ := strings.Cut(s, ".")
	if intStr == "" {
		intStr = "0"
	}

	intPart, err := strconv.ParseInt(intStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse quantity integer part: %w", err)
	}

	if len(fracStr) > 4 {
		fracStr = fracStr[:4]
	}
	frac := int64(0)
	if fracStr != "" {
		frac, err = strconv.ParseInt(fracStr, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse quantity fractional part: %w", err)
		}
		for i := len(fracStr); i < 4; i++ {
			frac *= 10
		}
	}

	return Quantity(sign * (intPart*QuantityScale + frac)), nil
}
