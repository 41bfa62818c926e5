package tdigest

import (
	"math"
	"sort"
	"testing"

	rng "github.com/leesper/go_rng"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gonum.org/v1/gonum/stat"
)

const seed = 0xDEADBEEF

func uniformData(n int) []float64 {
	gen := rng.NewUniformGenerator(seed)
	data := make([]float64, n)
	for i := range data {
		data[i] = gen.Float64()
	}
	return data
}

func gaussianData(n int) []float64 {
	gen := rng.NewGaussianGenerator(seed)
	data := make([]float64, n)
	for i := range data {
		data[i] = gen.Gaussian(0, 1)
	}
	return data
}

func exponentialData(n int) []float64 {
	gen := rng.NewExpGenerator(seed)
	data := make([]float64, n)
	for i := range data {
		data[i] = gen.Exp(1)
	}
	return data
}

func sequentialData(from, to int) []float64 {
	data := make([]float64, 0, to-from+1)
	for i := from; i <= to; i++ {
		data = append(data, float64(i))
	}
	return data
}

func newDigest(t testing.TB, data []float64, options ...tdigestOption) *TDigest {
	digest, err := New(options...)
	require.NoError(t, err)
	require.NoError(t, digest.AddBatch(data))
	return digest
}

// assertRankError checks both directions of the estimate against the
// exact empirical distribution of sorted.
func assertRankError(digest *TDigest, sorted []float64, p, m float64, t *testing.T) {
	t.Helper()

	v, err := digest.Quantile(p)
	require.NoError(t, err)
	if rank := stat.CDF(v, stat.Empirical, sorted, nil); math.Abs(rank-p) >= m {
		t.Errorf("Quantile(%.4f) = %.4f has rank %.4f. Diff (%.4f) >= %.4f", p, v, rank, math.Abs(rank-p), m)
	}

	exact := stat.Quantile(p, stat.Empirical, sorted, nil)
	if cdf := digest.CDF(exact); math.Abs(cdf-p) >= m {
		t.Errorf("CDF(%.4f) = %.4f. Diff (%.4f) >= %.4f", exact, cdf, math.Abs(cdf-p), m)
	}
}

func TestEmptyDigest(t *testing.T) {
	digest, _ := New()

	q, err := digest.Quantile(0.5)
	require.NoError(t, err)
	if !math.IsNaN(q) {
		t.Errorf("Quantile() on an empty digest should return NaN. Got: %.4f", q)
	}
	assert.True(t, math.IsNaN(digest.CDF(0)))
	assert.True(t, math.IsNaN(digest.Min()))
	assert.True(t, math.IsNaN(digest.Max()))
	assert.Equal(t, 0.0, digest.Count())
	assert.Empty(t, digest.Centroids())
	assert.NoError(t, digest.CheckWeights())
}

func TestSingleSample(t *testing.T) {
	digest := newDigest(t, []float64{42})

	for _, q := range []float64{0, 0.1, 0.5, 1} {
		v, err := digest.Quantile(q)
		require.NoError(t, err)
		if v != 42 {
			t.Errorf("Quantile() on a single-sample digest should return the sample. Got %.4f", v)
		}
	}

	assert.Equal(t, 0.5, digest.CDF(42))
	assert.Equal(t, 0.0, digest.CDF(41))
	assert.Equal(t, 1.0, digest.CDF(43))
	assert.Equal(t, 42.0, digest.Min())
	assert.Equal(t, 42.0, digest.Max())
}

func TestIntegers(t *testing.T) {
	digest := newDigest(t, []float64{1, 2, 3})

	if q, _ := digest.Quantile(0.5); q != 2 {
		t.Errorf("Expected p(0.5) = 2, Got %.2f instead", q)
	}

	digest = newDigest(t, []float64{1, 2, 2, 2, 2, 2, 2, 2, 3})

	if q, _ := digest.Quantile(0.5); q != 2 {
		t.Errorf("Expected p(0.5) = 2, Got %.2f instead", q)
	}

	var tot float64
	for _, c := range digest.Centroids() {
		tot += c.Weight
	}

	if tot != 9 {
		t.Errorf("Expected the centroid count to be 9, Got %.0f instead", tot)
	}
}

func TestRejectsInvalidInput(t *testing.T) {
	digest := newDigest(t, []float64{1, 2, 3})

	err := digest.Add(math.NaN())
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	assert.Equal(t, 3.0, digest.Count())
	assert.Equal(t, 3.0, digest.Max())

	err = digest.AddBatch([]float64{4, math.NaN(), 5})
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	assert.Contains(t, err.Error(), "value 1")
	assert.Equal(t, 4.0, digest.Count())

	for _, q := range []float64{-0.1, 1.1, math.NaN()} {
		_, err := digest.Quantile(q)
		assert.True(t, errors.Is(err, ErrInvalidArgument), "quantile %v", q)
	}
	assert.True(t, math.IsNaN(digest.CDF(math.NaN())))
}

func TestSequentialInsertion(t *testing.T) {
	digest := newDigest(t, sequentialData(1, 10000))

	median, err := digest.Quantile(0.5)
	require.NoError(t, err)
	assert.InDelta(t, 5000, median, 50)

	low, _ := digest.Quantile(0.01)
	assert.InDelta(t, 100, low, 10)
	high, _ := digest.Quantile(0.99)
	assert.InDelta(t, 9900, high, 10)

	digest.Compress()
	assert.Less(t, digest.Size(), 1000)
	assert.NoError(t, digest.CheckWeights())
	assert.Equal(t, 1.0, digest.Min())
	assert.Equal(t, 10000.0, digest.Max())
}

func testDistribution(t *testing.T, data []float64, options ...tdigestOption) {
	digest := newDigest(t, data, options...)

	sorted := append([]float64{}, data...)
	sort.Float64s(sorted)

	assertRankError(digest, sorted, 0.5, 0.04, t)
	assertRankError(digest, sorted, 0.1, 0.02, t)
	assertRankError(digest, sorted, 0.9, 0.02, t)
	assertRankError(digest, sorted, 0.01, 0.008, t)
	assertRankError(digest, sorted, 0.99, 0.008, t)
	assertRankError(digest, sorted, 0.001, 0.002, t)
	assertRankError(digest, sorted, 0.999, 0.002, t)
}

func TestUniformDistribution(t *testing.T) {
	t.Parallel()
	testDistribution(t, uniformData(10000))
}

func TestGaussianDistribution(t *testing.T) {
	t.Parallel()
	testDistribution(t, gaussianData(10000))
}

func TestExponentialDistribution(t *testing.T) {
	t.Parallel()
	testDistribution(t, exponentialData(10000))
}

func TestScaleFunctionsAccuracy(t *testing.T) {
	t.Parallel()

	data := uniformData(10000)
	sorted := append([]float64{}, data...)
	sort.Float64s(sorted)

	for _, scale := range []ScaleFunction{K0, K1, K2, K2NoNorm, K3, K3NoNorm} {
		t.Run(scale.String(), func(t *testing.T) {
			digest := newDigest(t, data, Scale(scale))
			assertRankError(digest, sorted, 0.5, 0.05, t)
			assertRankError(digest, sorted, 0.01, 0.02, t)
			assertRankError(digest, sorted, 0.99, 0.02, t)
		})
	}
}

func TestMonotonicity(t *testing.T) {
	digest := newDigest(t, gaussianData(5000), Compression(50))

	last := math.Inf(-1)
	for q := 0.0; q <= 1; q += 0.001 {
		v, err := digest.Quantile(q)
		require.NoError(t, err)
		if v < last-1e-12 {
			t.Fatalf("Quantile(%.3f) = %v decreased from %v", q, v, last)
		}
		if v < digest.Min() || v > digest.Max() {
			t.Fatalf("Quantile(%.3f) = %v falls outside [%v, %v]", q, v, digest.Min(), digest.Max())
		}
		last = v
	}

	last = 0
	for x := -5.0; x <= 5; x += 0.005 {
		cdf := digest.CDF(x)
		if cdf < 0 || cdf > 1 {
			t.Fatalf("CDF(%.3f) = %v falls outside [0, 1]", x, cdf)
		}
		if cdf < last-1e-12 {
			t.Fatalf("CDF(%.3f) = %v decreased from %v", x, cdf, last)
		}
		last = cdf
	}
}

func TestCompressIsIdempotent(t *testing.T) {
	digest := newDigest(t, uniformData(5000))

	digest.Compress()
	first := digest.Centroids()
	digest.Compress()
	assert.Equal(t, first, digest.Centroids())
}

func TestSortedAfterMerges(t *testing.T) {
	digest, _ := New(Compression(20))

	for i, x := range uniformData(20000) {
		require.NoError(t, digest.Add(x))
		if i%997 == 0 {
			prefix := digest.summary.means[:digest.merged]
			if !sort.Float64sAreSorted(prefix) {
				t.Fatalf("Merged centroids are not sorted after %d samples", i+1)
			}
		}
	}
	assert.Greater(t, digest.mergeCount, 1)
}

func TestCheckWeightsAfterCompress(t *testing.T) {
	data := uniformData(500)

	for _, scale := range []ScaleFunction{K0, K1, K2, K2NoNorm, K3, K3NoNorm} {
		digest := newDigest(t, data, Scale(scale))
		digest.Compress()
		assert.NoError(t, digest.CheckWeights(), scale.String())
		assert.Less(t, digest.Size(), 500, scale.String())
	}
}

func TestMerge(t *testing.T) {
	t.Parallel()

	if testing.Short() {
		t.Skipf("Skipping merge test. Short flag is on")
	}

	const numSubs = 5

	data := uniformData(10000)
	dist1 := newDigest(t, data, Compression(100))

	dist2, _ := New(Compression(100))
	for i := 0; i < numSubs; i++ {
		sub := newDigest(t, data[i*2000:(i+1)*2000], Compression(100))
		require.NoError(t, dist2.Merge(sub))
	}

	// Merge empty. Should be no-op
	empty, _ := New(Compression(100))
	require.NoError(t, dist2.Merge(empty))

	assert.Equal(t, dist1.Count(), dist2.Count())
	assert.Equal(t, dist1.Min(), dist2.Min())
	assert.Equal(t, dist1.Max(), dist2.Max())

	sorted := append([]float64{}, data...)
	sort.Float64s(sorted)

	for _, p := range []float64{0.001, 0.01, 0.1, 0.2, 0.3, 0.5} {
		q := stat.Quantile(p, stat.Empirical, sorted, nil)
		p1, _ := dist1.Quantile(p)
		p2, _ := dist2.Quantile(p)

		e1 := math.Abs(p1 - q)
		e2 := math.Abs(p2 - q)

		if e1 >= 0.03 || e2 >= 0.03 {
			t.Errorf("Absolute error for %f above threshold. q=%f p1=%f p2=%f e1=%f e2=%f", p, q, p1, p2, e1, e2)
		}
	}
}

func TestMergeSequentialHalves(t *testing.T) {
	a := newDigest(t, sequentialData(1, 500))
	b := newDigest(t, sequentialData(501, 1000))
	whole := newDigest(t, sequentialData(1, 1000))

	require.NoError(t, a.Merge(b))
	assert.Equal(t, 1000.0, a.Count())
	assert.Equal(t, 1.0, a.Min())
	assert.Equal(t, 1000.0, a.Max())

	merged, _ := a.Quantile(0.5)
	single, _ := whole.Quantile(0.5)
	assert.InDelta(t, 500, merged, 10)
	assert.InDelta(t, single, merged, 10)

	// b is left untouched
	assert.Equal(t, 500.0, b.Count())
	assert.Equal(t, 501.0, b.Min())
}

func TestMergeWithItself(t *testing.T) {
	digest := newDigest(t, sequentialData(1, 100))

	require.NoError(t, digest.Merge(digest))
	assert.Equal(t, 200.0, digest.Count())

	median, _ := digest.Quantile(0.5)
	assert.InDelta(t, 50, median, 5)
}

func TestMergeSampleLogMismatch(t *testing.T) {
	logged := newDigest(t, []float64{1, 2}, SampleLog())
	plain := newDigest(t, []float64{3, 4})

	err := logged.Merge(plain)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	assert.Equal(t, 2.0, logged.Count())

	assert.NoError(t, plain.Merge(logged))
	assert.Nil(t, plain.Samples())
}

func TestSampleLog(t *testing.T) {
	data := uniformData(3000)
	digest := newDigest(t, data, SampleLog(), Compression(50))

	samples := digest.Samples()
	centroids := digest.Centroids()
	require.Len(t, samples, len(centroids))

	var all []float64
	for i, c := range centroids {
		require.Len(t, samples[i], int(c.Weight))
		assert.InDelta(t, c.Mean, stat.Mean(samples[i], nil), 1e-9)
		all = append(all, samples[i]...)
	}

	sorted := append([]float64{}, data...)
	sort.Float64s(sorted)
	sort.Float64s(all)
	assert.Equal(t, sorted, all)
}

// rigidScale never lets two samples share a centroid.
type rigidScale struct {
	ScaleFunction
}

func (rigidScale) Q(k, normalizer float64) float64 { return 0 }

func TestIneffectiveMergeIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)

	digest := newDigest(t, uniformData(100),
		Compression(10), Scale(rigidScale{K2}), Logger(zap.New(core)))
	digest.Compress()

	assert.Equal(t, 100, digest.Size())
	entries := logs.FilterMessage("merge was ineffective").All()
	require.NotEmpty(t, entries)
	assert.Equal(t, 10.0, entries[len(entries)-1].ContextMap()["compression"])
}

func TestEffectiveMergeIsQuiet(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)

	newDigest(t, uniformData(10000), Logger(zap.New(core))).Compress()
	assert.Zero(t, logs.Len())
}

func TestTrimmedMean(t *testing.T) {
	digest := newDigest(t, sequentialData(1, 1000))

	mean, err := digest.TrimmedMean(0, 1)
	require.NoError(t, err)
	assert.InDelta(t, 500.5, mean, 1e-9)

	mean, err = digest.TrimmedMean(0.25, 0.75)
	require.NoError(t, err)
	assert.InDelta(t, 500.5, mean, 5)

	mean, err = digest.TrimmedMean(0, 0.1)
	require.NoError(t, err)
	assert.InDelta(t, 50.5, mean, 5)

	mean, err = digest.TrimmedMean(0.5, 0.5)
	require.NoError(t, err)
	median, _ := digest.Quantile(0.5)
	assert.Equal(t, median, mean)

	_, err = digest.TrimmedMean(0.8, 0.2)
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	empty, _ := New()
	mean, err = empty.TrimmedMean(0, 1)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(mean))
}

func TestCloneAndReset(t *testing.T) {
	digest := newDigest(t, sequentialData(1, 100))
	clone := digest.Clone()

	require.NoError(t, clone.Add(1000))
	assert.Equal(t, 100.0, digest.Count())
	assert.Equal(t, 100.0, digest.Max())
	assert.Equal(t, 101.0, clone.Count())

	digest.Reset()
	assert.Equal(t, 0.0, digest.Count())
	assert.Equal(t, 0, digest.Size())
	q, _ := digest.Quantile(0.5)
	assert.True(t, math.IsNaN(q))
	assert.Equal(t, 101.0, clone.Count())
	assert.Equal(t, 100.0, digest.Compression())
}

func TestString(t *testing.T) {
	digest := newDigest(t, []float64{1, 2, 3})
	assert.Equal(t, "TD<compression=100.00, count=3, centroids=3, scale=K2>", digest.String())
}

func benchmarkAdd(compression float64, b *testing.B) {
	t, _ := New(Compression(compression))

	gen := rng.NewUniformGenerator(seed)
	data := make([]float64, b.N)
	for n := 0; n < b.N; n++ {
		data[n] = gen.Float64()
	}

	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		err := t.Add(data[n])
		if err != nil {
			b.Error(err)
		}
	}
	b.StopTimer()
}

func BenchmarkAdd10(b *testing.B) {
	benchmarkAdd(10, b)
}

func BenchmarkAdd100(b *testing.B) {
	benchmarkAdd(100, b)
}

func BenchmarkAdd1000(b *testing.B) {
	benchmarkAdd(1000, b)
}

func BenchmarkQuantile(b *testing.B) {
	digest := newDigest(b, uniformData(100000))
	digest.Compress()

	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		if _, err := digest.Quantile(0.99); err != nil {
			b.Error(err)
		}
	}
}
