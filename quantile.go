package tdigest

import (
	"fmt"
	"math"
)

// Quantile returns the (approximate) value below which a fraction q of the
// samples lie. q must be in [0, 1]; anything else is rejected with an error
// wrapping ErrInvalidArgument. An empty digest yields NaN.
//
// Centroids of weight 1 are exact samples and are never spread out: a
// query landing within half a unit of weight of one returns its mean.
func (t *TDigest) Quantile(q float64) (float64, error) {
	if q < 0 || q > 1 || math.IsNaN(q) {
		return math.NaN(), invalidArgument("quantile must be between 0 and 1 (inclusive), got %v", q)
	}

	t.compressed()
	s := t.summary
	n := s.Len()

	switch n {
	case 0:
		return math.NaN(), nil
	case 1:
		return s.Mean(0), nil
	}

	total := t.totalWeight
	index := q * total

	if index < 1 {
		return t.min, nil
	}

	// Even when the first centroid holds several samples one of them
	// sits exactly at min, so interpolate with one less unit of weight.
	first := s.Weight(0)
	if first > 1 && index < first/2 {
		return t.min + (index-1)/(first/2-1)*(s.Mean(0)-t.min), nil
	}

	if index > total-1 {
		return t.max, nil
	}

	last := s.Weight(n - 1)
	if last > 1 && total-index <= last/2 {
		return t.max - (total-index-1)/(last/2-1)*(t.max-s.Mean(n-1)), nil
	}

	weightSoFar := first / 2
	for i := 0; i < n-1; i++ {
		left, right := s.Weight(i), s.Weight(i+1)
		dw := (left + right) / 2
		if weightSoFar+dw > index {
			leftUnit := 0.0
			if left == 1 {
				if index-weightSoFar < 0.5 {
					return s.Mean(i), nil
				}
				leftUnit = 0.5
			}
			rightUnit := 0.0
			if right == 1 {
				if weightSoFar+dw-index <= 0.5 {
					return s.Mean(i + 1), nil
				}
				rightUnit = 0.5
			}
			z1 := index - weightSoFar - leftUnit
			z2 := weightSoFar + dw - index - rightUnit
			return weightedAverage(s.Mean(i), z2, s.Mean(i+1), z1), nil
		}
		weightSoFar += dw
	}

	// Only reachable through rounding: index sits in the upper half of a
	// last centroid holding more than one sample.
	z1 := index - weightSoFar
	z2 := total - index
	return weightedAverage(s.Mean(n-1), z2, t.max, z1), nil
}

// CDF returns the (approximate) fraction of samples less than or equal to
// x, counting samples exactly at x as half. An empty digest yields NaN, as
// does a NaN x.
func (t *TDigest) CDF(x float64) float64 {
	if math.IsNaN(x) {
		return math.NaN()
	}

	t.compressed()
	s := t.summary
	n := s.Len()

	switch n {
	case 0:
		return math.NaN()
	case 1:
		width := t.max - t.min
		switch {
		case x < t.min:
			return 0
		case x > t.max:
			return 1
		case x-t.min <= width:
			// min and max are too close together to do any viable
			// interpolation
			return 0.5
		}
		return (x - t.min) / width
	}

	total := t.totalWeight
	if x < t.min {
		return 0
	}
	if x > t.max {
		return 1
	}

	m0 := s.Mean(0)
	if x < m0 {
		if m0-t.min <= 0 {
			return 0
		}
		// one sample sits exactly at min
		if x == t.min {
			return 0.5 / total
		}
		return (1 + (x-t.min)/(m0-t.min)*(s.Weight(0)/2-1)) / total
	}

	mn := s.Mean(n - 1)
	if x > mn {
		if t.max-mn <= 0 {
			return 1
		}
		if x == t.max {
			return 1 - 0.5/total
		}
		dq := (1 + (t.max-x)/(t.max-mn)*(s.Weight(n-1)/2-1)) / total
		return 1 - dq
	}

	// m0 <= x <= mn: either one or more centroids sit exactly at x, or
	// two consecutive centroids bracket it.
	weightSoFar := 0.0
	for i := 0; i < n-1; i++ {
		mean := s.Mean(i)
		if mean == x {
			dw := 0.0
			for ; i < n && s.Mean(i) == x; i++ {
				dw += s.Weight(i)
			}
			return (weightSoFar + dw/2) / total
		}

		next := s.Mean(i + 1)
		if mean <= x && x < next {
			left, right := s.Weight(i), s.Weight(i+1)
			dw := (left + right) / 2
			if next-mean <= 0 {
				return (weightSoFar + dw) / total
			}

			// singletons keep their whole weight at their mean
			leftExcluded, rightExcluded := 0.0, 0.0
			switch {
			case left == 1 && right == 1:
				return (weightSoFar + 1) / total
			case left == 1:
				leftExcluded = 0.5
			case right == 1:
				rightExcluded = 0.5
			}

			base := weightSoFar + left/2 + leftExcluded
			dwNoSingleton := dw - leftExcluded - rightExcluded
			return (base + dwNoSingleton*(x-mean)/(next-mean)) / total
		}

		weightSoFar += s.Weight(i)
	}

	if x == mn {
		return 1 - 0.5/total
	}
	panic(fmt.Sprintf("tdigest: cdf(%v) fell through %d centroids", x, n))
}

// TrimmedMean returns the mean of the samples lying between the lo and hi
// quantiles, 0 <= lo <= hi <= 1. Centroids straddling a bound contribute
// the overlapping share of their weight.
func (t *TDigest) TrimmedMean(lo, hi float64) (float64, error) {
	if !(0 <= lo && lo <= hi && hi <= 1) {
		return math.NaN(), invalidArgument("trimmed mean bounds must satisfy 0 <= lo <= hi <= 1, got [%v, %v]", lo, hi)
	}

	t.compressed()
	s := t.summary
	if s.Len() == 0 {
		return math.NaN(), nil
	}

	left, right := lo*t.totalWeight, hi*t.totalWeight
	var sum, weight float64
	for i := s.FloorSum(left); i < s.Len(); i++ {
		start := s.HeadSum(i)
		if start >= right {
			break
		}
		end := start + s.Weight(i)
		if overlap := math.Min(end, right) - math.Max(start, left); overlap > 0 {
			sum += overlap * s.Mean(i)
			weight += overlap
		}
	}

	if weight == 0 {
		return t.Quantile(lo)
	}
	return sum / weight, nil
}

func weightedAverage(x1, w1, x2, w2 float64) float64 {
	if x1 <= x2 {
		return weightedAverageSorted(x1, w1, x2, w2)
	}
	return weightedAverageSorted(x2, w2, x1, w1)
}

// weightedAverageSorted clamps the result to [x1, x2] to absorb rounding.
func weightedAverageSorted(x1, w1, x2, w2 float64) float64 {
	x := (x1*w1 + x2*w2) / (w1 + w2)
	return math.Max(x1, math.Min(x, x2))
}
