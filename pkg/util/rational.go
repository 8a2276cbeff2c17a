package util

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Rational is an exact fraction used for all timeline arithmetic.
// The zero value behaves as 0/1. Values built by NewRational are reduced
// with a positive denominator.
type Rational struct {
	Num int64
	Den int64
}

// Common values
var (
	Zero = Rational{0, 1}
	One  = Rational{1, 1}
)

// NewRational returns num/den reduced. It panics when den is zero.
func NewRational(num, den int64) Rational {
	if den == 0 {
		panic("util: rational with zero denominator")
	}
	if den < 0 {
		num, den = -num, -den
	}
	g := gcd(abs(num), den)
	if g > 1 {
		num /= g
		den /= g
	}
	return Rational{Num: num, Den: den}
}

// Int returns n/1.
func Int(n int64) Rational {
	return Rational{Num: n, Den: 1}
}

func (r Rational) norm() Rational {
	if r.Den == 0 {
		return Rational{Num: r.Num, Den: 1}
	}
	return r
}

// Add returns r+o.
func (r Rational) Add(o Rational) Rational {
	r, o = r.norm(), o.norm()
	if r.Den == o.Den {
		return NewRational(r.Num+o.Num, r.Den)
	}
	g := gcd(r.Den, o.Den)
	return NewRational(r.Num*(o.Den/g)+o.Num*(r.Den/g), r.Den/g*o.Den)
}

// Sub returns r-o.
func (r Rational) Sub(o Rational) Rational {
	o = o.norm()
	return r.Add(Rational{Num: -o.Num, Den: o.Den})
}

// Mul returns r*o, cross-reducing first to keep intermediates small.
func (r Rational) Mul(o Rational) Rational {
	r, o = r.norm(), o.norm()
	g1 := gcd(abs(r.Num), o.Den)
	g2 := gcd(abs(o.Num), r.Den)
	if g1 == 0 {
		g1 = 1
	}
	if g2 == 0 {
		g2 = 1
	}
	return NewRational((r.Num/g1)*(o.Num/g2), (r.Den/g2)*(o.Den/g1))
}

// MulInt returns r*n.
func (r Rational) MulInt(n int64) Rational {
	return r.Mul(Int(n))
}

// Div returns r/o. It panics when o is zero.
func (r Rational) Div(o Rational) Rational {
	o = o.norm()
	if o.Num == 0 {
		panic("util: rational division by zero")
	}
	return r.Mul(NewRational(o.Den, o.Num))
}

// Cmp returns -1, 0 or +1 depending on whether r is less than, equal to or
// greater than o.
func (r Rational) Cmp(o Rational) int {
	d := r.Sub(o)
	switch {
	case d.Num < 0:
		return -1
	case d.Num > 0:
		return 1
	}
	return 0
}

// Less reports r < o.
func (r Rational) Less(o Rational) bool { return r.Cmp(o) < 0 }

// Equal reports r == o numerically.
func (r Rational) Equal(o Rational) bool { return r.Cmp(o) == 0 }

// Sign returns -1, 0 or +1.
func (r Rational) Sign() int {
	switch {
	case r.Num < 0:
		return -1
	case r.Num > 0:
		return 1
	}
	return 0
}

// IsZero reports whether r is zero.
func (r Rational) IsZero() bool { return r.Num == 0 }

// Floor returns the greatest integer <= r.
func (r Rational) Floor() int64 {
	r = r.norm()
	q := r.Num / r.Den
	if r.Num%r.Den != 0 && r.Num < 0 {
		q--
	}
	return q
}

// Ceil returns the least integer >= r.
func (r Rational) Ceil() int64 {
	r = r.norm()
	q := r.Num / r.Den
	if r.Num%r.Den != 0 && r.Num > 0 {
		q++
	}
	return q
}

// Float64 returns the nearest float64. Only for display and ffmpeg args.
func (r Rational) Float64() float64 {
	r = r.norm()
	return float64(r.Num) / float64(r.Den)
}

// String formats r as "num/den", or "num" for whole values.
func (r Rational) String() string {
	r = r.norm()
	if r.Den == 1 {
		return strconv.FormatInt(r.Num, 10)
	}
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// MinRational returns the smaller of a and b.
func MinRational(a, b Rational) Rational {
	if a.Less(b) {
		return a
	}
	return b
}

// MaxRational returns the larger of a and b.
func MaxRational(a, b Rational) Rational {
	if b.Less(a) {
		return a
	}
	return b
}

// ParseRational parses "n/d", a decimal like "1.25" or an integer.
// Decimals are converted exactly from their written digits.
func ParseRational(s string) (Rational, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, fmt.Errorf("invalid rational: empty string")
	}

	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(num), 10, 64)
		if err != nil {
			return Zero, fmt.Errorf("invalid rational %q: %w", s, err)
		}
		d, err := strconv.ParseInt(strings.TrimSpace(den), 10, 64)
		if err != nil {
			return Zero, fmt.Errorf("invalid rational %q: %w", s, err)
		}
		if d == 0 {
			return Zero, fmt.Errorf("invalid rational %q: zero denominator", s)
		}
		return NewRational(n, d), nil
	}

	neg := strings.HasPrefix(s, "-")
	digits := s
	if neg || strings.HasPrefix(s, "+") {
		digits = s[1:]
	}
	whole, frac, _ := strings.Cut(digits, ".")
	if !isDigits(whole) || !isDigits(frac) || whole+frac == "" {
		return Zero, fmt.Errorf("invalid rational %q", s)
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 15 {
		return Zero, fmt.Errorf("invalid rational %q: too many decimal places", s)
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return Zero, fmt.Errorf("invalid rational %q: %w", s, err)
	}
	num, den := w, int64(1)
	if frac != "" {
		f, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return Zero, fmt.Errorf("invalid rational %q", s)
		}
		den = int64(math.Pow10(len(frac)))
		num = w*den + f
	}
	if neg {
		num = -num
	}
	return NewRational(num, den), nil
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func abs(a int64) int64 {
	if a < 0 {
		return -a
	}
	return a
}

// TimeRange is a half-open interval [Start, Start+Duration).
type TimeRange struct {
	Start    Rational
	Duration Rational
}

// NewTimeRange builds a range, rejecting non-positive durations.
func NewTimeRange(start, duration Rational) (TimeRange, error) {
	if duration.Sign() <= 0 {
		return TimeRange{}, fmt.Errorf("duration must be positive, got %s", duration)
	}
	return TimeRange{Start: start, Duration: duration}, nil
}

// End returns Start+Duration, the first instant outside the range.
func (r TimeRange) End() Rational {
	return r.Start.Add(r.Duration)
}

// Contains reports Start <= t < End.
func (r TimeRange) Contains(t Rational) bool {
	return !t.Less(r.Start) && t.Less(r.End())
}

// Overlaps reports whether r and o share any instant.
func (r TimeRange) Overlaps(o TimeRange) bool {
	return r.Start.Less(o.End()) && o.Start.Less(r.End())
}

func (r TimeRange) String() string {
	return fmt.Sprintf("[%s, %s)", r.Start, r.End())
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
