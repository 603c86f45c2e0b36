package types

import (
	"math"
	"strconv"
	"strings"
)

// Percent is a percentage that has already been rounded to its schema's
// precision. It stays numeric internally and is written to JSON as a
// decimal string.
type Percent float64

// Share returns part/total*100. total must be positive.
func Share(part, total int) float64 {
	return float64(part) / float64(total) * 100
}

// Round rounds v half-to-even on its exact binary value.
func Round(v float64, decimals int) Percent {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Percent(v)
	}
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', decimals, 64), 64)
	if err != nil {
		return Percent(v)
	}
	return Percent(r)
}

// String returns the shortest decimal form with at least one fractional
// digit: 95 -> "95.0", 73.17 -> "73.17".
func (p Percent) String() string {
	s := strconv.FormatFloat(float64(p), 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}

func (p Percent) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(p.String())), nil
}

func (p *Percent) UnmarshalJSON(b []byte) error {
	s := string(b)
	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return err
	}
	*p = Percent(v)
	return nil
}
