package analysis

import (
	"math"
	"sort"
)

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	s := 0.0
	for _, v := range xs {
		s += v
	}
	return s / float64(len(xs))
}

// stdDev is the population standard deviation.
func stdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	s := 0.0
	for _, v := range xs {
		d := v - m
		s += d * d
	}
	return math.Sqrt(s / float64(len(xs)))
}

// percentile computes the p-th percentile (0..100) with linear
// interpolation between ranks.
func percentile(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	cp := append([]float64(nil), xs...)
	sort.Float64s(cp)

	if p <= 0 {
		return cp[0]
	}
	if p >= 100 {
		return cp[len(cp)-1]
	}

	rank := p / 100 * float64(len(cp)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return cp[lo]
	}
	frac := rank - float64(lo)
	return cp[lo] + frac*(cp[hi]-cp[lo])
}

// iqrFilter drops values outside [Q1 - 1.5*IQR, Q3 + 1.5*IQR]. With fewer
// than four samples the quartiles are too coarse to trust, so the input is
// returned unchanged.
func iqrFilter(xs []float64) []float64 {
	if len(xs) < 4 {
		return xs
	}

	q1 := percentile(xs, 25)
	q3 := percentile(xs, 75)
	iqr := q3 - q1
	lo := q1 - 1.5*iqr
	hi := q3 + 1.5*iqr

	kept := make([]float64, 0, len(xs))
	for _, v := range xs {
		if v >= lo && v <= hi {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		return xs
	}
	return kept
}

// zScore computes (v - mean) / stddev, guarded so empty or degenerate
// populations and float edge cases all collapse to 0.
func zScore(v, m, sd float64) float64 {
	if sd == 0 {
		return 0
	}
	z := (v - m) / sd
	return sanitize(z)
}

// sanitize coerces NaN and infinities to 0 so they never propagate through
// downstream aggregates.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// safeRatio divides with a defined zero for a zero denominator.
func safeRatio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return sanitize(num / den)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
