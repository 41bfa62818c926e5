package tdigest

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the protobuf form of a digest:
//
//	message TDigest {
//	  double compression = 1;
//	  double min = 2;
//	  double max = 3;
//	  repeated double means = 4 [packed = true];
//	  repeated double weights = 5 [packed = true];
//	}
const (
	compressionField protowire.Number = 1
	minField         protowire.Number = 2
	maxField         protowire.Number = 3
	meansField       protowire.Number = 4
	weightsField     protowire.Number = 5
)

// MarshalProto compresses the digest and appends its protobuf wire form to
// b, so that it can be embedded as a bytes or message field of an
// enclosing protobuf payload.
func (t *TDigest) MarshalProto(b []byte) []byte {
	t.compressed()

	b = appendDouble(b, compressionField, t.publicCompression)
	if t.totalWeight > 0 {
		b = appendDouble(b, minField, t.min)
		b = appendDouble(b, maxField, t.max)
	}

	if t.summary.Len() == 0 {
		return b
	}
	b = protowire.AppendTag(b, meansField, protowire.BytesType)
	b = protowire.AppendBytes(b, packDoubles(t.summary.means))
	b = protowire.AppendTag(b, weightsField, protowire.BytesType)
	b = protowire.AppendBytes(b, packDoubles(t.summary.weights))
	return b
}

// UnmarshalProto decodes a digest from its protobuf wire form. Unknown
// fields are skipped. As with FromBytes, options are applied on top of the
// decoded compression.
func UnmarshalProto(b []byte, options ...tdigestOption) (*TDigest, error) {
	compression := float64(defaultCompression)
	min, max := math.Inf(1), math.Inf(-1)
	var means, weights []float64

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, corrupted("reading field tag: %v", protowire.ParseError(n))
		}
		b = b[n:]

		var err error
		switch {
		case num == compressionField && typ == protowire.Fixed64Type:
			compression, n = consumeDouble(b)
		case num == minField && typ == protowire.Fixed64Type:
			min, n = consumeDouble(b)
		case num == maxField && typ == protowire.Fixed64Type:
			max, n = consumeDouble(b)
		case num == meansField:
			means, n, err = consumeDoubles(b, typ, means)
		case num == weightsField:
			weights, n, err = consumeDoubles(b, typ, weights)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, corrupted("reading field %d: %v", num, protowire.ParseError(n))
		}
		b = b[n:]
	}

	if len(means) != len(weights) {
		return nil, corrupted("got %d means but %d weights", len(means), len(weights))
	}

	t, err := New(append([]tdigestOption{Compression(compression)}, options...)...)
	if err != nil {
		return nil, err
	}
	if err := t.restore(min, max, means, weights); err != nil {
		return nil, err
	}
	return t, nil
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func packDoubles(values []float64) []byte {
	packed := make([]byte, 0, 8*len(values))
	for _, v := range values {
		packed = protowire.AppendFixed64(packed, math.Float64bits(v))
	}
	return packed
}

func consumeDouble(b []byte) (float64, int) {
	v, n := protowire.ConsumeFixed64(b)
	return math.Float64frombits(v), n
}

// consumeDoubles accepts both packed and unpacked repeated doubles.
func consumeDoubles(b []byte, typ protowire.Type, into []float64) ([]float64, int, error) {
	switch typ {
	case protowire.Fixed64Type:
		v, n := consumeDouble(b)
		return append(into, v), n, nil
	case protowire.BytesType:
		packed, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return into, n, nil
		}
		if len(packed)%8 != 0 {
			return into, n, corrupted("packed doubles of %d bytes", len(packed))
		}
		for len(packed) > 0 {
			v, m := consumeDouble(packed)
			into = append(into, v)
			packed = packed[m:]
		}
		return into, n, nil
	}
	return into, 0, corrupted("unexpected wire type %d for repeated double", typ)
}
