package tdigest

// Slack for rounding in the k-scale comparison.
const kTolerance = 1e-9

// CheckWeights verifies the size invariant on a sorted copy of the
// centroids, without touching the digest: the first and last centroids
// must be single samples and every other centroid holding more than one
// sample must span at most one unit of the k-scale, computed with the
// compression of the last merge pass.
//
// Violations are reported with an error wrapping ErrCorrupted. The check
// is meant for tests and diagnostics and is only meaningful right after a
// merge pass.
func (t *TDigest) CheckWeights() error {
	s := t.summary.Clone()
	s.order(false)
	s.rebuildFenwickTree()

	n := s.Len()
	if n == 0 {
		return nil
	}

	if first := s.centroid(0); !first.IsSingleton() {
		return corrupted("first centroid %s is not a singleton", first)
	}
	if last := s.centroid(n - 1); !last.IsSingleton() {
		return corrupted("last centroid %s is not a singleton", last)
	}

	total := t.totalWeight
	normalizer := t.scale.Normalizer(t.mergedAt, total)
	for i := 1; i < n-1; i++ {
		if s.Weight(i) == 1 {
			continue
		}
		k1 := t.scale.K(s.HeadSum(i)/total, normalizer)
		k2 := t.scale.K(s.HeadSum(i+1)/total, normalizer)
		if k2-k1 > 1+kTolerance {
			return corrupted("centroid %d %s spans %.4f on the %s k-scale (compression %.2f)",
				i, s.centroid(i), k2-k1, t.scale, t.mergedAt)
		}
	}
	return nil
}
