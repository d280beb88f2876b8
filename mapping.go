package ddsketch

import (
	"fmt"
	"math"
)

// mappingLayout identifies the scheme an IndexMapping uses to turn a value
// into a bucket index. Only LOG and LogCubic are implemented; the other
// three values exist so the wire sub-flag space lines up with the wider
// DDSketch family and can be rejected by name on decode.
type mappingLayout uint8

const (
	layoutLog          mappingLayout = 0
	layoutLogLinear    mappingLayout = 1
	layoutLogQuadratic mappingLayout = 2
	layoutLogCubic     mappingLayout = 3
	layoutLogQuartic   mappingLayout = 4
)

// The cubic coefficients and correcting factors are typed so constant
// arithmetic rounds at every step exactly like the runtime arithmetic that
// consumes them; gamma must reproduce bit-for-bit across implementations for
// serialized sketches to merge.
const (
	cubicA                float64 = 6.0 / 35.0
	cubicB                float64 = -3.0 / 5.0
	cubicC                float64 = 10.0 / 7.0
	cubicCorrectingFactor float64 = 1.0 / (cubicC * math.Ln2)
	cubicBase             float64 = 2.0
	logCorrectingFactor   float64 = 1.0
)

// minNormalFloat64 is the smallest positive normal float64. Subnormals are
// excluded from the indexable range because the cubic layout's
// exponent/significand split has no meaning for them.
const minNormalFloat64 = 0x1p-1022

var logBase = math.E

// IndexMapping maps a positive real value to an integer bucket index (and
// back to a representative value for that bucket) within a guaranteed
// relative accuracy. It is the part of a DDSketch that turns "a value
// arrived" into "which bin does it belong to", shared by every bucket store
// variant in this package.
//
// An IndexMapping is immutable once constructed; two sketches can only be
// merged if their mappings compare equal under Equal.
type IndexMapping struct {
	layout           mappingLayout
	gamma            float64
	indexOffset      float64
	multiplier       float64
	relativeAccuracy float64
}

// NewLogarithmicMapping returns an IndexMapping using a pure logarithmic
// layout (index proportional to ln(value)) for the given relative accuracy,
// which must lie in (0, 1).
func NewLogarithmicMapping(relativeAccuracy float64) (*IndexMapping, error) {
	return newMappingWithRelativeAccuracy(layoutLog, relativeAccuracy)
}

// NewCubicallyInterpolatedMapping returns an IndexMapping that approximates
// log2 with a cubic polynomial over the IEEE-754 significand, cheaper to
// evaluate than NewLogarithmicMapping at the same accuracy.
func NewCubicallyInterpolatedMapping(relativeAccuracy float64) (*IndexMapping, error) {
	return newMappingWithRelativeAccuracy(layoutLogCubic, relativeAccuracy)
}

func newMappingWithRelativeAccuracy(layout mappingLayout, relativeAccuracy float64) (*IndexMapping, error) {
	if relativeAccuracy <= 0.0 || relativeAccuracy >= 1.0 {
		return nil, fmt.Errorf("%w: relative accuracy must be between 0 and 1", ErrInvalidArgument)
	}
	switch layout {
	case layoutLog:
		gamma := calculateGamma(relativeAccuracy, logCorrectingFactor)
		multiplier := math.Log(logBase) / math.Log1p(gamma-1.0)
		return &IndexMapping{
			layout:           layoutLog,
			gamma:            gamma,
			indexOffset:      0.0,
			multiplier:       multiplier,
			relativeAccuracy: calculateRelativeAccuracy(gamma, 1.0),
		}, nil
	case layoutLogCubic:
		gamma := calculateGamma(relativeAccuracy, cubicCorrectingFactor)
		multiplier := math.Log(cubicBase) / math.Log1p(gamma-1.0)
		return &IndexMapping{
			layout:           layoutLogCubic,
			gamma:            gamma,
			indexOffset:      0.0,
			multiplier:       multiplier,
			relativeAccuracy: calculateRelativeAccuracy(gamma, cubicCorrectingFactor),
		}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported index mapping layout", ErrInvalidArgument)
	}
}

// newMappingWithGammaOffset rebuilds a mapping from its gamma/indexOffset
// pair, as read off the wire. Used by the codec when decoding a mapping
// frame.
func newMappingWithGammaOffset(layout mappingLayout, gamma, indexOffset float64) (*IndexMapping, error) {
	switch layout {
	case layoutLog:
		return &IndexMapping{
			layout:           layoutLog,
			gamma:            gamma,
			indexOffset:      indexOffset,
			multiplier:       math.Log(logBase) / math.Log(gamma),
			relativeAccuracy: calculateRelativeAccuracy(gamma, logCorrectingFactor),
		}, nil
	case layoutLogCubic:
		return &IndexMapping{
			layout:           layoutLogCubic,
			gamma:            gamma,
			indexOffset:      indexOffset,
			multiplier:       math.Log(cubicBase) / math.Log(gamma),
			relativeAccuracy: calculateRelativeAccuracy(gamma, cubicCorrectingFactor),
		}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported index mapping layout", ErrInvalidArgument)
	}
}

func calculateRelativeAccuracy(gamma, correctingFactor float64) float64 {
	exactLogGamma := math.Pow(gamma, correctingFactor)
	return (exactLogGamma - 1.0) / (exactLogGamma + 1.0)
}

func calculateGamma(relativeAccuracy, correctingFactor float64) float64 {
	exactLogGamma := (1.0 + relativeAccuracy) / (1.0 - relativeAccuracy)
	return math.Pow(exactLogGamma, 1.0/correctingFactor)
}

// RelativeAccuracy returns the guaranteed relative error of bucket boundaries
// produced by this mapping.
func (m *IndexMapping) RelativeAccuracy() float64 { return m.relativeAccuracy }

// Equal reports whether two mappings produce the same index for every
// value, which is the precondition MergeWith checks before combining two
// sketches.
func (m *IndexMapping) Equal(other *IndexMapping) bool {
	if m == nil || other == nil {
		return m == other
	}
	return m.layout == other.layout && m.gamma == other.gamma && m.indexOffset == other.indexOffset
}

func (m *IndexMapping) log(value float64) float64 {
	switch m.layout {
	case layoutLog:
		return math.Log(value)
	case layoutLogCubic:
		longBits := int64(math.Float64bits(value))
		s := getSignificandPlusOne(longBits) - 1.0
		e := float64(getExponent(longBits))
		return ((cubicA*s+cubicB)*s+cubicC)*s + e
	default:
		return math.Log(value)
	}
}

func (m *IndexMapping) logInverse(index float64) float64 {
	switch m.layout {
	case layoutLog:
		return math.Exp(index)
	case layoutLogCubic:
		exponent := int64(math.Floor(index))
		// Cardano's formula for the real root of the cubic this mapping's
		// log approximates, inverted to recover the significand.
		d0 := cubicB*cubicB - 3.0*cubicA*cubicC
		d1 := 2.0*cubicB*cubicB*cubicB - 9.0*cubicA*cubicB*cubicC - 27.0*cubicA*cubicA*(index-math.Floor(index))
		p := math.Cbrt((d1 - math.Sqrt(d1*d1-4.0*d0*d0*d0)) / 2.0)
		significandPlusOne := -(cubicB+p+d0/p)/(3.0*cubicA) + 1.0
		// Clamp against overshoot that would otherwise build a subnormal
		// significand (see the Open Question this spec settled in DESIGN.md).
		return buildDouble(exponent, math.Max(1.0, significandPlusOne))
	default:
		return math.Exp(index)
	}
}

// Index returns the bucket index value falls into. The caller is
// responsible for ensuring value is a finite, strictly positive number.
// Within this package only DDSketch.AcceptWithCount calls Index, after
// sending magnitudes at or below MinIndexableValue to the zero counter and
// dropping magnitudes above MaxIndexableValue; it has no separate check for
// NaN or infinite values.
func (m *IndexMapping) Index(value float64) int32 {
	index := m.log(value)*m.multiplier + m.indexOffset
	if index >= 0.0 {
		return int32(index)
	}
	return int32(index - 1.0)
}

// Value returns a representative value for index, guaranteed to be within
// RelativeAccuracy of any value that maps to index.
func (m *IndexMapping) Value(index int32) float64 {
	return m.LowerBound(index) * (1.0 + m.relativeAccuracy)
}

// LowerBound returns the smallest value that maps to index.
func (m *IndexMapping) LowerBound(index int32) float64 {
	return m.logInverse((float64(index) - m.indexOffset) / m.multiplier)
}

// UpperBound returns the smallest value that maps to index+1, i.e. the
// exclusive upper edge of index's bucket.
func (m *IndexMapping) UpperBound(index int32) float64 {
	return m.LowerBound(index + 1)
}

// MinIndexableValue returns the smallest positive value this mapping can
// produce a meaningful index for without overflowing int32 or underflowing
// to a subnormal whose relative accuracy guarantee breaks down.
func (m *IndexMapping) MinIndexableValue() float64 {
	return math.Max(
		math.Pow(2.0, (float64(math.MinInt32)-m.indexOffset)/m.multiplier+1.0),
		minNormalFloat64*(1.0+m.relativeAccuracy)/(1.0-m.relativeAccuracy),
	)
}

// MaxIndexableValue returns the larger of two ceilings: a power of two
// derived from the int32 index limit, and MaxFloat64/(1+RelativeAccuracy).
// Because it takes the larger, values at or below it can still have an
// index beyond the int32 range when the relative accuracy is very fine.
func (m *IndexMapping) MaxIndexableValue() float64 {
	return math.Max(
		math.Pow(2.0, (float64(math.MaxInt32)-m.indexOffset)/m.multiplier-1.0),
		math.MaxFloat64/(1.0+m.relativeAccuracy),
	)
}

// The following three helpers isolate the IEEE-754 bit twiddling the cubic
// mapping's log/log_inverse need: splitting a float into an unbiased base-2
// exponent and a significand-plus-one in [1, 2), and the inverse operation
// that reassembles a float from such a pair.

func getExponent(longBits int64) int64 {
	return ((longBits & ieeeExponentMask) >> ieeeExponentShift) - ieeeExponentBias
}

func getSignificandPlusOne(longBits int64) float64 {
	raw := (longBits & ieeeSignificandMask) | ieeeOne
	return math.Float64frombits(uint64(raw))
}

func buildDouble(exponent int64, significandPlusOne float64) float64 {
	raw := ((exponent+ieeeExponentBias)<<ieeeExponentShift)&ieeeExponentMask |
		int64(math.Float64bits(significandPlusOne))&ieeeSignificandMask
	return math.Float64frombits(uint64(raw))
}

// mappingLayoutFromSubFlag maps the IndexMapping sub-flag (the top 6 bits
// of a flag byte, see codec.go) to a mappingLayout, rejecting the three
// layouts this package does not implement.
func mappingLayoutFromSubFlag(subFlag uint8) (mappingLayout, error) {
	switch subFlag {
	case uint8(layoutLog):
		return layoutLog, nil
	case uint8(layoutLogCubic):
		return layoutLogCubic, nil
	case uint8(layoutLogLinear), uint8(layoutLogQuadratic), uint8(layoutLogQuartic):
		return 0, fmt.Errorf("%w: unsupported index mapping layout", ErrInvalidArgument)
	default:
		return 0, fmt.Errorf("%w: unknown index mapping layout", ErrInvalidArgument)
	}
}

// encode writes the mapping's wire frame: an IndexMapping flag byte carrying
// the layout as its sub-flag, followed by gamma and indexOffset as
// little-endian doubles.
func (m *IndexMapping) encode(w ByteWriter) error {
	if err := newFlag(flagTypeIndexMapping, uint8(m.layout)).encode(w); err != nil {
		return err
	}
	if err := w.WriteFloat64LE(m.gamma); err != nil {
		return err
	}
	return w.WriteFloat64LE(m.indexOffset)
}

// decodeIndexMapping reads a mapping frame whose flag has already been
// consumed by the caller (see sketch.go's frame loop).
func decodeIndexMapping(r ByteReader, f flag) (*IndexMapping, error) {
	layout, err := mappingLayoutFromSubFlag(f.subFlag())
	if err != nil {
		return nil, err
	}
	gamma, err := r.ReadFloat64LE()
	if err != nil {
		return nil, err
	}
	indexOffset, err := r.ReadFloat64LE()
	if err != nil {
		return nil, err
	}
	return newMappingWithGammaOffset(layout, gamma, indexOffset)
}
