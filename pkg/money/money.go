// Package money holds fixed-point currency and percentage values.
//
// Amounts are stored as int64 minor units (hundredths of the currency unit) and
// percentages as basis points (hundredths of a percent). Both travel over JSON as
// plain numbers with two decimals so clients never see the internal scale.
package money

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Amount is a currency value in minor units.
type Amount int64

// Percent is a percentage in basis points; 18% is Percent(1800).
type Percent int64

var ErrInvalidAmount = errors.New("invalid decimal amount")

// FromMajor builds an Amount from whole currency units.
func FromMajor(units int64) Amount {
	return Amount(units * 100)
}

// ParseAmount reads a decimal string with at most two fractional digits.
func ParseAmount(s string) (Amount, error) {
	v, err := parseFixed2(s)
	return Amount(v), err
}

// MustAmount is ParseAmount for constants and tests.
func MustAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// MulFrac scales a by num/den, rounding half away from zero.
func (a Amount) MulFrac(num, den int64) Amount {
	return Amount(roundDiv(int64(a)*num, den))
}

func (a Amount) String() string {
	return formatFixed2(int64(a))
}

// Float64 is for presentation layers (PDF tables) only.
func (a Amount) Float64() float64 {
	return float64(a) / 100
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	v, err := parseFixed2(unquote(b))
	if err != nil {
		return err
	}
	*a = Amount(v)
	return nil
}

// ParsePercent reads a percentage such as "18" or "12.5".
func ParsePercent(s string) (Percent, error) {
	v, err := parseFixed2(s)
	return Percent(v), err
}

// Of returns p percent of a.
func (p Percent) Of(a Amount) Amount {
	return a.MulFrac(int64(p), 100*100)
}

func (p Percent) String() string {
	return formatFixed2(int64(p))
}

func (p Percent) MarshalJSON() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Percent) UnmarshalJSON(b []byte) error {
	v, err := parseFixed2(unquote(b))
	if err != nil {
		return err
	}
	*p = Percent(v)
	return nil
}

func unquote(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return s
}

func parseFixed2(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	whole, frac, hasDot := strings.Cut(s, ".")
	if whole == "" && (!hasDot || frac == "") {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("%w: more than two decimals in %q", ErrInvalidAmount, s)
	}
	if whole == "" {
		whole = "0"
	}
	for len(frac) < 2 {
		frac += "0"
	}
	if !allDigits(whole) || !allDigits(frac) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	f, _ := strconv.ParseInt(frac, 10, 64)
	v := w*100 + f
	if neg {
		v = -v
	}
	return v, nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func formatFixed2(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

func roundDiv(n, d int64) int64 {
	if d < 0 {
		n, d = -n, -d
	}
	if n >= 0 {
		return (n + d/2) / d
	}
	return -((-n + d/2) / d)
}
