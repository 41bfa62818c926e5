package tdigest

import "math"

// ScaleFunction maps a cumulative weight fraction q in [0, 1] to a scale
// coordinate k and back. A cluster may keep absorbing weight as long as it
// spans at most one unit of k, so the slope of k decides where the digest
// spends its resolution.
//
// The normalizer is computed once per merge pass from the compression and
// the total weight and then handed back to K, Q and Max.
//
// The set of scale functions is fixed; use one of K0, K1, K2, K2NoNorm, K3
// or K3NoNorm.
type ScaleFunction interface {
	// K converts a quantile to the k-scale.
	K(q, normalizer float64) float64

	// Q is the inverse of K.
	Q(k, normalizer float64) float64

	// Max returns the largest fraction of the total weight a cluster
	// centered at q may hold.
	Max(q, normalizer float64) float64

	// Normalizer computes the constant K, Q and Max expect for a digest
	// with the given compression and total weight n.
	Normalizer(compression, n float64) float64

	String() string

	scaleFunction()
}

var (
	// K0 spreads clusters uniformly: every cluster may hold about the
	// same weight, so tails get no extra accuracy.
	K0 ScaleFunction = k0{}

	// K1 is the arcsine scale function of the first t-digest paper.
	// Cluster sizes shrink with sqrt(q(1-q)) towards the tails.
	K1 ScaleFunction = k1{}

	// K2 is a logistic scale function whose normalizer depends on the
	// number of samples, which bounds the cluster count at roughly the
	// compression regardless of n. Cluster sizes shrink with q(1-q).
	K2 ScaleFunction = k2{}

	// K2NoNorm is K2 with a normalizer that ignores the number of samples.
	K2NoNorm ScaleFunction = k2NoNorm{}

	// K3 concentrates resolution in the tails even more than K2: cluster
	// sizes shrink with min(q, 1-q).
	K3 ScaleFunction = k3{}

	// K3NoNorm is K3 with a normalizer that ignores the number of samples.
	K3NoNorm ScaleFunction = k3NoNorm{}
)

// MaxStep returns the largest fraction of the total weight that a cluster
// at q may hold in a digest with the given compression and total weight n.
func MaxStep(scale ScaleFunction, q, compression, n float64) float64 {
	return scale.Max(q, scale.Normalizer(compression, n))
}

// Keeps the logit and log based scales finite at the very edges.
const qEpsilon = 1e-15

type k0 struct{}

func (k0) K(q, normalizer float64) float64           { return normalizer * q }
func (k0) Q(k, normalizer float64) float64           { return k / normalizer }
func (k0) Max(q, normalizer float64) float64         { return 1 / normalizer }
func (k0) Normalizer(compression, n float64) float64 { return compression / 2 }
func (k0) String() string                            { return "K0" }
func (k0) scaleFunction()                            {}

type k1 struct{}

func (k1) K(q, normalizer float64) float64 {
	q = math.Max(0, math.Min(q, 1))
	return normalizer * math.Asin(2*q-1)
}

func (k1) Q(k, normalizer float64) float64 {
	switch {
	case k <= -math.Pi/2*normalizer:
		return 0
	case k >= math.Pi/2*normalizer:
		return 1
	}
	return (math.Sin(k/normalizer) + 1) / 2
}

func (k1) Max(q, normalizer float64) float64 {
	if q <= 0 || q >= 1 {
		return 0
	}
	return 2 * math.Sin(0.5/normalizer) * math.Sqrt(q*(1-q))
}

func (k1) Normalizer(compression, n float64) float64 { return compression / (2 * math.Pi) }
func (k1) String() string                            { return "K1" }
func (k1) scaleFunction()                            {}

func logit(q, normalizer float64) float64 {
	switch {
	case q < qEpsilon:
		return 2 * logit(qEpsilon, normalizer)
	case q > 1-qEpsilon:
		return 2 * logit(1-qEpsilon, normalizer)
	}
	return math.Log(q/(1-q)) * normalizer
}

func logistic(k, normalizer float64) float64 {
	w := math.Exp(k / normalizer)
	if math.IsInf(w, 1) {
		return 1
	}
	return w / (1 + w)
}

// z is the sample count dependent part of the normalized scales. It is
// floored at 1 so that digests holding far fewer samples than the
// compression keep a positive normalizer.
func z(compression, n, offset float64) float64 {
	return math.Max(1, 4*math.Log(n/compression)+offset)
}

type k2 struct{}

func (k2) K(q, normalizer float64) float64   { return logit(q, normalizer) }
func (k2) Q(k, normalizer float64) float64   { return logistic(k, normalizer) }
func (k2) Max(q, normalizer float64) float64 { return q * (1 - q) / normalizer }
func (k2) Normalizer(compression, n float64) float64 {
	return compression / z(compression, n, 24)
}
func (k2) String() string { return "K2" }
func (k2) scaleFunction() {}

type k2NoNorm struct{}

func (k2NoNorm) K(q, normalizer float64) float64           { return logit(q, normalizer) }
func (k2NoNorm) Q(k, normalizer float64) float64           { return logistic(k, normalizer) }
func (k2NoNorm) Max(q, normalizer float64) float64         { return q * (1 - q) / normalizer }
func (k2NoNorm) Normalizer(compression, n float64) float64 { return compression / 4 }
func (k2NoNorm) String() string                            { return "K2NoNorm" }
func (k2NoNorm) scaleFunction()                            {}

func logTails(q, normalizer float64) float64 {
	switch {
	case q < qEpsilon:
		return 10 * logTails(qEpsilon, normalizer)
	case q > 1-qEpsilon:
		return 10 * logTails(1-qEpsilon, normalizer)
	case q <= 0.5:
		return math.Log(2*q) * normalizer
	}
	return -logTails(1-q, normalizer)
}

func expTails(k, normalizer float64) float64 {
	if k <= 0 {
		return math.Exp(k/normalizer) / 2
	}
	return 1 - expTails(-k, normalizer)
}

type k3 struct{}

func (k3) K(q, normalizer float64) float64   { return logTails(q, normalizer) }
func (k3) Q(k, normalizer float64) float64   { return expTails(k, normalizer) }
func (k3) Max(q, normalizer float64) float64 { return math.Min(q, 1-q) / normalizer }
func (k3) Normalizer(compression, n float64) float64 {
	return compression / z(compression, n, 21)
}
func (k3) String() string { return "K3" }
func (k3) scaleFunction() {}

type k3NoNorm struct{}

func (k3NoNorm) K(q, normalizer float64) float64           { return logTails(q, normalizer) }
func (k3NoNorm) Q(k, normalizer float64) float64           { return expTails(k, normalizer) }
func (k3NoNorm) Max(q, normalizer float64) float64         { return math.Min(q, 1-q) / normalizer }
func (k3NoNorm) Normalizer(compression, n float64) float64 { return compression / 4 }
func (k3NoNorm) String() string                            { return "K3NoNorm" }
func (k3NoNorm) scaleFunction()                            {}
