package indicator

import "math"

// mean is the simple average of xs. Returns 0 for an empty slice.
func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the population standard deviation of xs around m.
func stddev(xs []float64, m float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}

// wilder applies Wilder's smoothing (SMMA) step: prev*(p-1)/p + x/p.
func wilder(prev, x float64, period int) float64 {
	p := float64(period)
	return (prev*(p-1) + x) / p
}

// smma seeds with the SMA of the first period values, then Wilder-smooths
// the rest. out[i] is valid for i >= period-1; earlier entries are 0.
func smma(xs []float64, period int) []float64 {
	out := make([]float64, len(xs))
	if len(xs) < period {
		return out
	}
	out[period-1] = mean(xs[:period])
	for i := period; i < len(xs); i++ {
		out[i] = wilder(out[i-1], xs[i], period)
	}
	return out
}
