// Package tdigest provides a mergeable, bounded-size summary of a stream of
// float64 samples answering approximate quantile and cdf queries, with
// accuracy concentrated in the tails of the distribution.
//
// Samples are buffered and periodically merged into a sorted list of
// centroids whose sizes are bounded by a ScaleFunction. A TDigest is not
// safe for concurrent use.
package tdigest

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	defaultCompression = 100
	minCompression     = 10
)

// TDigest is a merging t-digest.
type TDigest struct {
	summary *summary

	publicCompression  float64
	privateCompression float64
	maxSize            int
	scale              ScaleFunction

	twoLevel    bool
	alternating bool
	logging     bool
	logger      *zap.Logger

	totalWeight float64
	min         float64
	max         float64

	mergeCount int
	// merged is the length of the sorted prefix produced by the last merge
	// pass; everything after it is buffered.
	merged int
	// compression used by the last merge pass
	mergedAt float64
}

// New creates a new digest.
//
// By default the digest is configured with compression 100 and the K2
// scale function. See the Compression, Scale, MaxSize, SampleLog,
// TwoLevelCompression, AlternatingSort and Logger options.
func New(options ...tdigestOption) (*TDigest, error) {
	t := &TDigest{
		publicCompression: defaultCompression,
		scale:             K2,
		twoLevel:          true,
		alternating:       true,
		logger:            zap.NewNop(),
	}

	for _, option := range options {
		if err := option(t); err != nil {
			return nil, err
		}
	}

	if t.maxSize == 0 {
		t.maxSize = int(math.Ceil(2*t.publicCompression + math.Max(50, 5*t.publicCompression)))
	}

	t.privateCompression = t.publicCompression
	if t.twoLevel {
		size := 2 * t.publicCompression
		t.privateCompression = math.Sqrt(math.Max(1, math.Floor(float64(t.maxSize)/size)-1)) * t.publicCompression
	}

	t.Reset()
	return t, nil
}

// Reset drops all samples, keeping the configuration.
func (t *TDigest) Reset() {
	t.summary = newSummary(uint(t.maxSize)+1, t.logging)
	t.totalWeight = 0
	t.min = math.Inf(1)
	t.max = math.Inf(-1)
	t.mergeCount = 0
	t.merged = 0
	t.mergedAt = t.publicCompression
}

// Add registers a new sample in the digest.
//
// NaN samples are rejected with an error wrapping ErrInvalidArgument and
// leave the digest untouched.
func (t *TDigest) Add(value float64) error {
	if math.IsNaN(value) {
		return invalidArgument("cannot add NaN to a t-digest")
	}

	if t.summary.Len() > t.maxSize {
		t.mergeNewValues(false, t.privateCompression)
	}

	var samples []float64
	if t.logging {
		samples = []float64{value}
	}
	t.summary.Add(value, 1, samples)
	t.totalWeight++
	t.min = math.Min(t.min, value)
	t.max = math.Max(t.max, value)
	return nil
}

// AddBatch adds every value in order. It stops at the first NaN, keeping
// the values that preceded it.
func (t *TDigest) AddBatch(values []float64) error {
	for i, value := range values {
		if err := t.Add(value); err != nil {
			return errors.Wrapf(err, "value %d", i)
		}
	}
	return nil
}

// Merge appends the centroids of other to this digest's buffer; they are
// reconciled by the next merge pass. other is not modified.
//
// A digest keeping a sample log can only absorb digests that keep one as
// well.
func (t *TDigest) Merge(other *TDigest) error {
	if t.logging && !other.logging {
		return invalidArgument("cannot merge a digest without sample log into one with sample log")
	}

	if other == t {
		other = t.Clone()
	}

	src := other.summary
	for i := 0; i < src.Len(); i++ {
		var samples []float64
		if t.logging {
			samples = append([]float64{}, src.samples[i]...)
		}
		t.summary.Add(src.Mean(i), src.Weight(i), samples)
	}

	if other.totalWeight > 0 {
		t.totalWeight += other.totalWeight
		t.min = math.Min(t.min, other.min)
		t.max = math.Max(t.max, other.max)
	}
	return nil
}

// Compress merges all buffered samples using the public compression,
// leaving the digest in the compact form used to answer queries and to
// serialize. Queries and encoders call it as needed.
func (t *TDigest) Compress() {
	t.mergeNewValues(true, t.publicCompression)
}

// compressed makes sure the centroids are merged at the public
// compression, without redoing a pass that would change nothing.
func (t *TDigest) compressed() {
	if t.merged != t.summary.Len() || t.mergedAt != t.publicCompression {
		t.Compress()
	}
}

func (t *TDigest) mergeNewValues(force bool, compression float64) {
	if t.summary.Len() < 2 {
		t.merged = t.summary.Len()
		t.mergedAt = compression
		t.summary.rebuildFenwickTree()
		return
	}

	descending := !force && t.alternating && t.mergeCount%2 == 1
	t.mergePass(descending, compression)
}

// mergePass sorts the centroids and folds neighbours together for as long
// as every cluster stays within one unit of the scale function's k-scale.
// The first and the last centroid of the pass are never merged into, which
// keeps the extreme samples as singletons.
func (t *TDigest) mergePass(descending bool, compression float64) {
	s := t.summary
	s.order(descending)

	total := t.totalWeight
	normalizer := t.scale.Normalizer(compression, total)

	n := s.Len()
	to := 0
	wSoFar := 0.0
	k0 := t.scale.K(0, normalizer)
	limit := total * t.scale.Q(k0+1, normalizer)

	for from := 1; from < n; from++ {
		if to >= from {
			panic(fmt.Sprintf("tdigest: merge write cursor %d caught up with read cursor %d", to, from))
		}

		projected := wSoFar + s.Weight(to) + s.Weight(from)
		if projected <= limit && from != 1 && from != n-1 {
			s.absorb(to, from)
			continue
		}

		wSoFar += s.Weight(to)
		k0 = t.scale.K(wSoFar/total, normalizer)
		limit = total * t.scale.Q(k0+1, normalizer)
		to++
		s.move(to, from)
	}

	s.truncate(to + 1)
	if descending {
		s.reverse()
	}
	s.rebuildFenwickTree()

	t.mergeCount++
	t.merged = s.Len()
	t.mergedAt = compression

	if float64(s.Len()) >= 2*compression {
		t.logger.Warn("merge was ineffective",
			zap.Int("input", n),
			zap.Int("centroids", s.Len()),
			zap.Float64("compression", compression),
			zap.Stringer("scale", t.scale),
			zap.Int("mergeCount", t.mergeCount),
		)
	}
}

// Size returns the current number of centroids, buffered ones included.
func (t *TDigest) Size() int {
	return t.summary.Len()
}

// Count returns the total weight of the samples added so far.
func (t *TDigest) Count() float64 {
	return t.totalWeight
}

// Min returns the smallest sample seen, or NaN for an empty digest.
func (t *TDigest) Min() float64 {
	if t.totalWeight == 0 {
		return math.NaN()
	}
	return t.min
}

// Max returns the largest sample seen, or NaN for an empty digest.
func (t *TDigest) Max() float64 {
	if t.totalWeight == 0 {
		return math.NaN()
	}
	return t.max
}

// Compression returns the public compression of the digest.
func (t *TDigest) Compression() float64 {
	return t.publicCompression
}

// ScaleFunction returns the scale function the digest was built with.
func (t *TDigest) ScaleFunction() ScaleFunction {
	return t.scale
}

// Centroids compresses the digest and returns a copy of its centroids,
// sorted by mean.
func (t *TDigest) Centroids() []Centroid {
	t.compressed()
	centroids := make([]Centroid, 0, t.summary.Len())
	for i := 0; i < t.summary.Len(); i++ {
		centroids = append(centroids, t.summary.centroid(i))
	}
	return centroids
}

// Samples compresses the digest and returns, for every centroid, the raw
// samples merged into it. It returns nil unless SampleLog was set.
func (t *TDigest) Samples() [][]float64 {
	if !t.logging {
		return nil
	}
	t.compressed()
	samples := make([][]float64, t.summary.Len())
	for i, xs := range t.summary.samples {
		samples[i] = append([]float64{}, xs...)
	}
	return samples
}

// Clone returns a deep copy of the digest.
func (t *TDigest) Clone() *TDigest {
	c := *t
	c.summary = t.summary.Clone()
	return &c
}

func (t TDigest) String() string {
	return fmt.Sprintf("TD<compression=%.2f, count=%.0f, centroids=%d, scale=%s>",
		t.publicCompression, t.totalWeight, t.summary.Len(), t.scale)
}
