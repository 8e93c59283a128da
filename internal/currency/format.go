// Package currency renders amounts in the Indian short form used across the
// marketplace (thousand, lakh, crore).
package currency

import (
	"math"
	"slices"
	"strconv"
	"strings"
)

const (
	crore    = 10_000_000
	lakh     = 100_000
	thousand = 1_000
)

// NotAvailable is rendered for missing amounts.
const NotAvailable = "N/A"

// Formatter formats amounts. The zero value uses "k" for thousands.
type Formatter struct {
	ThousandLabel string
}

// Default is the formatter used by package-level Format.
var Default = Formatter{ThousandLabel: "k"}

// Format renders amount using Default.
func Format(amount *float64) string {
	return Default.Format(amount)
}

// Format renders amount, or NotAvailable when it is nil.
func (f Formatter) Format(amount *float64) string {
	if amount == nil {
		return NotAvailable
	}
	return f.FormatFloat(*amount)
}

// FormatFloat renders v. NaN renders as NotAvailable.
func (f Formatter) FormatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return NotAvailable
	case v >= crore:
		return short(v/crore) + " Cr."
	case v >= lakh:
		return short(v/lakh) + " Lakh"
	case v >= thousand:
		return short(v/thousand) + " " + f.thousandLabel()
	}
	if math.IsInf(v, -1) {
		return NotAvailable
	}
	return group(int64(math.Round(v)))
}

// group renders n with Indian digit grouping: the last three digits, then
// pairs (-2,50,000).
func group(n int64) string {
	s := strconv.FormatInt(n, 10)
	sign := ""
	if n < 0 {
		sign, s = "-", s[1:]
	}
	if len(s) <= 3 {
		return sign + s
	}

	head, tail := s[:len(s)-3], s[len(s)-3:]
	var parts []string
	for len(head) > 2 {
		parts = append(parts, head[len(head)-2:])
		head = head[:len(head)-2]
	}
	parts = append(parts, head)
	slices.Reverse(parts)
	return sign + strings.Join(parts, ",") + "," + tail
}

func (f Formatter) thousandLabel() string {
	if f.ThousandLabel == "" {
		return "k"
	}
	return f.ThousandLabel
}

// short prints v with at most two decimals and no trailing zeros.
func short(v float64) string {
	if math.IsInf(v, 0) {
		return "∞"
	}
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
