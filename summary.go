package tdigest

import (
	"sort"

	"github.com/caio/go-tdigest/v5/internal/fenwick"
)

// summary holds the centroids of a digest as parallel slices. When the
// sample log is enabled, samples[i] lists the raw values folded into
// centroid i. Every reorder or compaction goes through summary so that
// the three slices never drift apart.
type summary struct {
	means   []float64
	weights []float64
	samples [][]float64
	logging bool
	bitree  *fenwick.List[float64]
}

func newSummary(initialCapacity uint, logging bool) *summary {
	s := &summary{
		means:   make([]float64, 0, initialCapacity),
		weights: make([]float64, 0, initialCapacity),
		logging: logging,
		bitree:  fenwick.New[float64](),
	}
	if logging {
		s.samples = make([][]float64, 0, initialCapacity)
	}
	return s
}

func (s *summary) Len() int {
	return len(s.means)
}

func (s *summary) Less(i, j int) bool {
	return s.means[i] < s.means[j]
}

func (s *summary) Swap(i, j int) {
	s.means[i], s.means[j] = s.means[j], s.means[i]
	s.weights[i], s.weights[j] = s.weights[j], s.weights[i]
	if s.logging {
		s.samples[i], s.samples[j] = s.samples[j], s.samples[i]
	}
}

// Add appends a centroid. samples is ignored unless logging is enabled.
func (s *summary) Add(mean, weight float64, samples []float64) {
	s.means = append(s.means, mean)
	s.weights = append(s.weights, weight)
	if s.logging {
		s.samples = append(s.samples, samples)
	}
}

func (s *summary) Mean(uncheckedIndex int) float64 {
	return s.means[uncheckedIndex]
}

func (s *summary) Weight(uncheckedIndex int) float64 {
	return s.weights[uncheckedIndex]
}

func (s *summary) centroid(uncheckedIndex int) Centroid {
	return Centroid{Mean: s.means[uncheckedIndex], Weight: s.weights[uncheckedIndex]}
}

// order sorts the centroids by mean, or by decreasing mean when
// descending is set. Centroids with equal means keep their relative order.
func (s *summary) order(descending bool) {
	if descending {
		sort.Stable(sort.Reverse(s))
		return
	}
	sort.Stable(s)
}

// absorb folds the centroid at from into the one at to.
func (s *summary) absorb(to, from int) {
	c := mergeCentroids(s.centroid(to), s.centroid(from))
	s.means[to] = c.Mean
	s.weights[to] = c.Weight
	if s.logging {
		s.samples[to] = append(s.samples[to], s.samples[from]...)
		s.samples[from] = nil
	}
}

// move copies the centroid at from into slot to.
func (s *summary) move(to, from int) {
	if to == from {
		return
	}
	s.means[to] = s.means[from]
	s.weights[to] = s.weights[from]
	if s.logging {
		s.samples[to] = s.samples[from]
		s.samples[from] = nil
	}
}

func (s *summary) truncate(n int) {
	s.means = s.means[:n]
	s.weights = s.weights[:n]
	if s.logging {
		for i := n; i < len(s.samples); i++ {
			s.samples[i] = nil
		}
		s.samples = s.samples[:n]
	}
}

func (s *summary) reverse() {
	for i, j := 0, s.Len()-1; i < j; i, j = i+1, j-1 {
		s.Swap(i, j)
	}
}

func (s *summary) rebuildFenwickTree() {
	s.bitree.Reset(s.weights...)
}

// HeadSum returns the total weight of the centroids before index. Only
// valid right after a merge pass.
func (s *summary) HeadSum(index int) float64 {
	return s.bitree.Sum(index)
}

// FloorSum returns the index of the centroid whose cumulative weight range
// covers sum, or Len() when sum reaches the total. Only valid right after a
// merge pass.
func (s *summary) FloorSum(sum float64) int {
	return s.bitree.Search(sum)
}

func (s *summary) ForEach(f func(float64, float64) bool) {
	for i := 0; i < len(s.means); i++ {
		if !f(s.means[i], s.weights[i]) {
			break
		}
	}
}

func (s *summary) Clone() *summary {
	c := &summary{
		means:   append([]float64{}, s.means...),
		weights: append([]float64{}, s.weights...),
		logging: s.logging,
		bitree:  fenwick.New(s.weights...),
	}
	if s.logging {
		c.samples = make([][]float64, len(s.samples))
		for i, xs := range s.samples {
			c.samples[i] = append([]float64{}, xs...)
		}
	}
	return c
}
