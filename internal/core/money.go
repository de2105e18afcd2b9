// Package core provides the expense domain types and money handling.
//
// Amounts are held as integer cents so that sums and comparisons are
// exact. The wire representation is always a canonical decimal string
// with two fraction digits ("12.34"), never a float.
package core

import (
	"encoding/json"
	"strconv"
	"strings"
	"unicode"
)

// maxIntegerDigits bounds the integer part so every amount fits a
// NUMERIC(12,2) column: 10 integer digits + 2 fraction digits.
const maxIntegerDigits = 10

// Money is an exact monetary amount in cents.
type Money struct {
	Cents int64
}

// ParseAmount converts a decimal string to a Money value.
//
// It accepts an optional fractional part of at most two digits. More
// than two fraction digits are rejected rather than rounded, since
// rounding would silently store a different value than the client sent.
// Negative amounts and amounts above 10 integer digits are rejected.
// Zero is valid.
//
// Examples:
//
//	ParseAmount("12.34") -> Money{1234}, nil
//	ParseAmount("12.3")  -> Money{1230}, nil
//	ParseAmount("0")     -> Money{0}, nil
//	ParseAmount("-1")    -> error
//	ParseAmount("1.005") -> error
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "-") {
		return Money{}, ErrNegativeAmount
	}
	s = strings.TrimPrefix(s, "+")

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return Money{}, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		// A dot requires at least one digit after it: "12." and "."
		// are malformed, ".5" is fine.
		if parts[1] == "" {
			return Money{}, ErrInvalidAmount
		}
		fracPart = parts[1]
	}
	if intPart == "" && fracPart == "" {
		return Money{}, ErrInvalidAmount
	}
	if intPart == "" {
		intPart = "0"
	}
	if len(fracPart) > 2 {
		return Money{}, ErrAmountPrecision
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return Money{}, ErrInvalidAmount
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return Money{}, ErrInvalidAmount
		}
	}
	if len(strings.TrimLeft(intPart, "0")) > maxIntegerDigits {
		return Money{}, ErrAmountPrecision
	}

	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}

	var fracCents int64
	if len(fracPart) > 0 {
		d1 := int64(fracPart[0] - '0')
		fracCents = d1 * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
		}
	}
	return Money{Cents: iv*100 + fracCents}, nil
}

// ParseAmountJSON converts a raw JSON value (string or number token)
// to a Money value. Numbers are accepted for compatibility with clients
// that send `"amount": 12.34`; they are re-rendered through the string
// parser so the same precision rules apply.
func ParseAmountJSON(raw json.RawMessage) (Money, error) {
	raw = json.RawMessage(strings.TrimSpace(string(raw)))
	if len(raw) == 0 || string(raw) == "null" {
		return Money{}, ErrInvalidAmount
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Money{}, ErrInvalidAmount
		}
		return ParseAmount(s)
	}
	// Number token: reject exponents outright, the decimal grammar above
	// is the only accepted shape.
	tok := string(raw)
	if strings.ContainsAny(tok, "eE") {
		return Money{}, ErrInvalidAmount
	}
	return ParseAmount(tok)
}

// String renders the amount as a canonical decimal with two fraction
// digits, e.g. Money{1234}.String() == "12.34".
func (m Money) String() string {
	cents := m.Cents
	neg := cents < 0
	if neg {
		cents = -cents
	}
	s := strconv.FormatInt(cents/100, 10) + "." + pad2(cents%100)
	if neg {
		return "-" + s
	}
	return s
}

// MarshalJSON writes the amount as a decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts either a decimal string or a JSON number.
func (m *Money) UnmarshalJSON(data []byte) error {
	parsed, err := ParseAmountJSON(data)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrNegativeAmount
	}
	return nil
}

func pad2(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}
