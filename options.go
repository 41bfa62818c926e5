package tdigest

import (
	"math"

	"go.uber.org/zap"
)

type tdigestOption func(*TDigest) error

// Compression sets the digest compression
//
// The compression parameter rules the threshold in which samples are
// merged together - the more often distinct samples are merged the more
// precision is lost. Compression should be tuned according to your data
// distribution, but a value of 100 (the default) is often good enough.
//
// A higher compression value means holding more centroids in memory
// (thus: better precision), which means a bigger serialization payload,
// higher memory footprint and slower addition of new samples.
//
// Values below 10 are raised to 10. NaN and infinite values are rejected.
func Compression(compression float64) tdigestOption {
	return func(t *TDigest) error {
		if math.IsNaN(compression) || math.IsInf(compression, 0) {
			return invalidArgument("compression must be a finite number, got %v", compression)
		}
		t.publicCompression = math.Max(minCompression, compression)
		return nil
	}
}

// Scale picks the scale function that decides how big clusters may grow
// along the distribution. K2 is the default.
func Scale(scale ScaleFunction) tdigestOption {
	return func(t *TDigest) error {
		if scale == nil {
			return invalidArgument("scale function must not be nil")
		}
		t.scale = scale
		return nil
	}
}

// MaxSize sets how many centroids (merged and buffered) the digest holds
// before a merge pass is triggered automatically. By default it is derived
// from the compression as 2*c + max(50, 5*c).
func MaxSize(size int) tdigestOption {
	return func(t *TDigest) error {
		if size <= 0 {
			return invalidArgument("max size must be positive, got %d", size)
		}
		t.maxSize = size
		return nil
	}
}

// SampleLog makes the digest remember, for every centroid, the raw samples
// that were merged into it. Meant for debugging and testing: memory grows
// with the number of samples.
func SampleLog() tdigestOption {
	return func(t *TDigest) error {
		t.logging = true
		return nil
	}
}

// TwoLevelCompression controls whether automatic merges use a looser
// compression than Compress. Enabled by default.
func TwoLevelCompression(enabled bool) tdigestOption {
	return func(t *TDigest) error {
		t.twoLevel = enabled
		return nil
	}
}

// AlternatingSort controls whether automatic merges alternate between
// ascending and descending passes. Enabled by default.
func AlternatingSort(enabled bool) tdigestOption {
	return func(t *TDigest) error {
		t.alternating = enabled
		return nil
	}
}

// Logger sets the logger receiving diagnostics such as ineffective merge
// passes. Logging is disabled by default.
func Logger(logger *zap.Logger) tdigestOption {
	return func(t *TDigest) error {
		if logger == nil {
			return invalidArgument("logger must not be nil")
		}
		t.logger = logger
		return nil
	}
}
