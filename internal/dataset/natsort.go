package dataset

import (
	"strings"
)

// NaturalLess orders strings so that runs of digits compare by numeric value,
// e.g. "task_2" sorts before "task_10". Digit runs sort before text.
func NaturalLess(a, b string) bool {
	ca, cb := chunks(a), chunks(b)
	for i := 0; i < len(ca) && i < len(cb); i++ {
		x, y := ca[i], cb[i]
		if x == y {
			continue
		}
		dx, dy := isDigits(x), isDigits(y)
		switch {
		case dx && dy:
			if c := compareNumeric(x, y); c != 0 {
				return c < 0
			}
			// Same value with different zero padding: shorter first.
			return len(x) < len(y)
		case dx != dy:
			return dx
		default:
			return x < y
		}
	}
	return len(ca) < len(cb)
}

// chunks splits s into alternating runs of ASCII digits and everything else.
func chunks(s string) []string {
	var out []string
	start := 0
	for i := 1; i < len(s); i++ {
		if isDigit(s[i]) != isDigit(s[i-1]) {
			out = append(out, s[start:i])
			start = i
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return s != ""
}

// compareNumeric compares two digit runs of arbitrary length by value.
func compareNumeric(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}
