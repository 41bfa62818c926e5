package tdigest

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Encoding identifies one of the binary layouts produced by AsBytes.
type Encoding int32

const (
	// VerboseEncoding stores every number as a float64.
	VerboseEncoding Encoding = 1
	// SmallEncoding stores the compression, means and weights as float32
	// and trades precision for half the size.
	SmallEncoding Encoding = 2
)

func (e Encoding) String() string {
	switch e {
	case VerboseEncoding:
		return "verbose"
	case SmallEncoding:
		return "small"
	}
	return "unknown"
}

const (
	verboseHeaderSize = 4 + 8 + 8 + 8 + 4
	smallHeaderSize   = 4 + 8 + 8 + 4 + 2 + 2 + 2
)

// ByteSize returns the number of bytes AsBytes produces with the given
// encoding, once the digest is compressed.
func (t *TDigest) ByteSize(encoding Encoding) int {
	t.compressed()
	switch encoding {
	case VerboseEncoding:
		return verboseHeaderSize + 16*t.summary.Len()
	case SmallEncoding:
		return smallHeaderSize + 8*t.summary.Len()
	}
	return 0
}

// AsBytes compresses the digest and serializes it with the given encoding.
// All numbers are big-endian.
//
// Verbose layout: tag (int32), min, max, compression (float64), centroid
// count (int32), then weight and mean (float64) per centroid.
//
// Small layout: tag (int32), min, max (float64), compression (float32),
// centroid capacity, buffer capacity and centroid count (int16), then
// weight and mean (float32) per centroid. Digests whose buffer does not
// fit an int16 cannot use it.
func (t *TDigest) AsBytes(encoding Encoding) ([]byte, error) {
	t.compressed()

	buffer := new(bytes.Buffer)
	buffer.Grow(t.ByteSize(encoding))

	var data []interface{}
	switch encoding {
	case VerboseEncoding:
		data = []interface{}{
			int32(encoding), t.min, t.max, t.publicCompression, int32(t.summary.Len()),
		}
		t.summary.ForEach(func(mean, weight float64) bool {
			data = append(data, weight, mean)
			return true
		})
	case SmallEncoding:
		capacity := int(math.Ceil(2 * t.privateCompression))
		for _, n := range []int{capacity, t.maxSize, t.summary.Len()} {
			if n > math.MaxInt16 {
				return nil, invalidArgument("%d does not fit the small encoding, use the verbose one", n)
			}
		}
		data = []interface{}{
			int32(encoding), t.min, t.max, float32(t.publicCompression),
			int16(capacity), int16(t.maxSize), int16(t.summary.Len()),
		}
		t.summary.ForEach(func(mean, weight float64) bool {
			data = append(data, float32(weight), float32(mean))
			return true
		})
	default:
		return nil, invalidArgument("unknown encoding %d", encoding)
	}

	for _, v := range data {
		if err := binary.Write(buffer, binary.BigEndian, v); err != nil {
			return nil, errors.Wrap(err, "encoding t-digest")
		}
	}
	return buffer.Bytes(), nil
}

// FromBytes reads a digest serialized by AsBytes, in either encoding. The
// options are applied on top of the compression (and, for the small
// encoding, the buffer size) found in the payload; the scale function is
// not serialized and has to be passed again if it is not the default.
func FromBytes(buf *bytes.Reader, options ...tdigestOption) (*TDigest, error) {
	var encoding int32
	if err := binary.Read(buf, binary.BigEndian, &encoding); err != nil {
		return nil, corrupted("reading encoding tag: %v", err)
	}

	var min, max float64
	if err := readAll(buf, &min, &max); err != nil {
		return nil, err
	}

	var base []tdigestOption
	var n int
	var means, weights []float64

	switch Encoding(encoding) {
	case VerboseEncoding:
		var compression float64
		var count int32
		if err := readAll(buf, &compression, &count); err != nil {
			return nil, err
		}
		if count < 0 || int(count)*16 > buf.Len() {
			return nil, corrupted("centroid count %d does not match payload of %d bytes", count, buf.Len())
		}
		base = append(base, Compression(compression))
		n = int(count)
		means, weights = make([]float64, n), make([]float64, n)
		for i := 0; i < n; i++ {
			if err := readAll(buf, &weights[i], &means[i]); err != nil {
				return nil, err
			}
		}
	case SmallEncoding:
		var compression float32
		var capacity, bufferSize, count int16
		if err := readAll(buf, &compression, &capacity, &bufferSize, &count); err != nil {
			return nil, err
		}
		if count < 0 || int(count)*8 > buf.Len() {
			return nil, corrupted("centroid count %d does not match payload of %d bytes", count, buf.Len())
		}
		base = append(base, Compression(float64(compression)))
		if bufferSize > 0 {
			base = append(base, MaxSize(int(bufferSize)))
		}
		n = int(count)
		means, weights = make([]float64, n), make([]float64, n)
		for i := 0; i < n; i++ {
			var weight, mean float32
			if err := readAll(buf, &weight, &mean); err != nil {
				return nil, err
			}
			weights[i], means[i] = float64(weight), float64(mean)
		}
	default:
		return nil, corrupted("unsupported encoding version: %d", encoding)
	}

	t, err := New(append(base, options...)...)
	if err != nil {
		return nil, err
	}
	if err := t.restore(min, max, means, weights); err != nil {
		return nil, err
	}
	return t, nil
}

func readAll(buf *bytes.Reader, values ...interface{}) error {
	for _, v := range values {
		if err := binary.Read(buf, binary.BigEndian, v); err != nil {
			return corrupted("truncated payload: %v", err)
		}
	}
	return nil
}

// restore loads decoded centroids into an empty digest.
func (t *TDigest) restore(min, max float64, means, weights []float64) error {
	for i := range means {
		switch {
		case math.IsNaN(means[i]) || math.IsNaN(weights[i]) || weights[i] <= 0:
			return corrupted("invalid centroid %d (mean=%v, weight=%v)", i, means[i], weights[i])
		case i > 0 && means[i] < means[i-1]:
			return corrupted("centroid %d is out of order", i)
		}
		t.summary.Add(means[i], weights[i], nil)
	}

	t.totalWeight = floats.Sum(weights)
	if t.totalWeight > 0 {
		t.min, t.max = min, max
	}
	t.merged = t.summary.Len()
	t.mergedAt = t.publicCompression
	t.summary.rebuildFenwickTree()
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler using the verbose
// encoding.
func (t *TDigest) MarshalBinary() ([]byte, error) {
	return t.AsBytes(VerboseEncoding)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. When t was built
// with New, its scale function, logger and merge settings are kept.
func (t *TDigest) UnmarshalBinary(p []byte) error {
	var options []tdigestOption
	if t.summary != nil {
		options = append(options,
			Scale(t.scale),
			Logger(t.logger),
			TwoLevelCompression(t.twoLevel),
			AlternatingSort(t.alternating),
		)
		if t.logging {
			options = append(options, SampleLog())
		}
	}

	decoded, err := FromBytes(bytes.NewReader(p), options...)
	if err != nil {
		return err
	}
	*t = *decoded
	return nil
}
