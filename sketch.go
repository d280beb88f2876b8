package ddsketch

import (
	"fmt"
	"io"
	"math"
)

// DDSketch is a relative-error quantile sketch: a mapping shared by a
// positive-value store, a negative-value store (both storing |value|, same
// variant and shape), and a zero-value counter for samples that fall inside
// the mapping's unindexable range around zero.
type DDSketch struct {
	mapping         *IndexMapping
	minIndexedValue float64
	maxIndexedValue float64
	negativeStore   *denseStore
	positiveStore   *denseStore
	zeroCount       float64
}

func newDDSketch(mapping *IndexMapping, negative, positive *denseStore) *DDSketch {
	return &DDSketch{
		mapping:         mapping,
		negativeStore:   negative,
		positiveStore:   positive,
		minIndexedValue: math.Max(0.0, mapping.MinIndexableValue()),
		maxIndexedValue: mapping.MaxIndexableValue(),
	}
}

// binCount validates that maxNumBins is a usable bin cap: positive, and
// representable as an int32 slot count.
func binCount(maxNumBins int) (int32, error) {
	if maxNumBins <= 0 || maxNumBins > math.MaxInt32 {
		return 0, fmt.Errorf("%w: max number of bins must be a positive 32-bit count", ErrInvalidArgument)
	}
	return int32(maxNumBins), nil
}

// NewCollapsingLowestDense builds a sketch using the cubic index mapping
// and a bucket store that collapses its lowest indices once maxNumBins is
// exceeded.
func NewCollapsingLowestDense(relativeAccuracy float64, maxNumBins int) (*DDSketch, error) {
	mapping, err := NewCubicallyInterpolatedMapping(relativeAccuracy)
	if err != nil {
		return nil, err
	}
	n, err := binCount(maxNumBins)
	if err != nil {
		return nil, err
	}
	return newDDSketch(mapping, newCollapsingLowestStore(n), newCollapsingLowestStore(n)), nil
}

// NewCollapsingHighestDense is NewCollapsingLowestDense's mirror, collapsing
// the highest indices instead.
func NewCollapsingHighestDense(relativeAccuracy float64, maxNumBins int) (*DDSketch, error) {
	mapping, err := NewCubicallyInterpolatedMapping(relativeAccuracy)
	if err != nil {
		return nil, err
	}
	n, err := binCount(maxNumBins)
	if err != nil {
		return nil, err
	}
	return newDDSketch(mapping, newCollapsingHighestStore(n), newCollapsingHighestStore(n)), nil
}

// NewUnboundedDense builds a sketch using the cubic index mapping and
// stores that grow without ever collapsing.
func NewUnboundedDense(relativeAccuracy float64) (*DDSketch, error) {
	mapping, err := NewCubicallyInterpolatedMapping(relativeAccuracy)
	if err != nil {
		return nil, err
	}
	return newDDSketch(mapping, newUnboundedStore(), newUnboundedStore()), nil
}

// NewLogarithmicCollapsingLowestDense is NewCollapsingLowestDense with the
// pure logarithmic mapping in place of the cubic one.
func NewLogarithmicCollapsingLowestDense(relativeAccuracy float64, maxNumBins int) (*DDSketch, error) {
	mapping, err := NewLogarithmicMapping(relativeAccuracy)
	if err != nil {
		return nil, err
	}
	n, err := binCount(maxNumBins)
	if err != nil {
		return nil, err
	}
	return newDDSketch(mapping, newCollapsingLowestStore(n), newCollapsingLowestStore(n)), nil
}

// NewLogarithmicCollapsingHighestDense is NewCollapsingHighestDense with the
// pure logarithmic mapping in place of the cubic one.
func NewLogarithmicCollapsingHighestDense(relativeAccuracy float64, maxNumBins int) (*DDSketch, error) {
	mapping, err := NewLogarithmicMapping(relativeAccuracy)
	if err != nil {
		return nil, err
	}
	n, err := binCount(maxNumBins)
	if err != nil {
		return nil, err
	}
	return newDDSketch(mapping, newCollapsingHighestStore(n), newCollapsingHighestStore(n)), nil
}

// NewLogarithmicUnboundedDense is NewUnboundedDense with the pure
// logarithmic mapping in place of the cubic one.
func NewLogarithmicUnboundedDense(relativeAccuracy float64) (*DDSketch, error) {
	mapping, err := NewLogarithmicMapping(relativeAccuracy)
	if err != nil {
		return nil, err
	}
	return newDDSketch(mapping, newUnboundedStore(), newUnboundedStore()), nil
}

// Accept records one observation of value.
func (s *DDSketch) Accept(value float64) {
	s.AcceptWithCount(value, 1.0)
}

// AcceptWithCount records an observation of value with an arbitrary
// non-negative weight. A negative count and a value outside
// [-maxIndexedValue, maxIndexedValue] are both silently dropped: ingestion
// must never fail on an individual pathological sample.
func (s *DDSketch) AcceptWithCount(value float64, count float64) {
	if count < 0.0 {
		return
	}
	if value < -s.maxIndexedValue || value > s.maxIndexedValue {
		return
	}
	switch {
	case value > s.minIndexedValue:
		s.positiveStore.Add(s.mapping.Index(value), count)
	case value < -s.minIndexedValue:
		s.negativeStore.Add(s.mapping.Index(-value), count)
	default:
		s.zeroCount += count
	}
}

// MergeWith folds other into s. It fails, leaving both sketches unchanged,
// if the two sketches were built with different index mappings.
func (s *DDSketch) MergeWith(other *DDSketch) error {
	if !s.mapping.Equal(other.mapping) {
		return fmt.Errorf("%w: cannot merge sketches built with different index mappings", ErrInvalidArgument)
	}
	s.negativeStore.MergeWith(other.negativeStore)
	s.positiveStore.MergeWith(other.positiveStore)
	s.zeroCount += other.zeroCount
	return nil
}

// IsEmpty reports whether the sketch has seen no samples.
func (s *DDSketch) IsEmpty() bool {
	return s.zeroCount == 0.0 && s.negativeStore.IsEmpty() && s.positiveStore.IsEmpty()
}

// Clear resets the sketch to empty without releasing its backing arrays.
func (s *DDSketch) Clear() {
	s.negativeStore.Clear()
	s.positiveStore.Clear()
	s.zeroCount = 0.0
}

// Count returns the total weight of every sample accepted.
func (s *DDSketch) Count() float64 {
	return s.zeroCount + s.negativeStore.TotalCount() + s.positiveStore.TotalCount()
}

// Sum returns the approximate sum of every sample accepted, derived from
// bucket representative values rather than the original samples.
func (s *DDSketch) Sum() float64 {
	var sum float64
	s.negativeStore.ForEach(func(index int32, count float64) {
		sum -= s.mapping.Value(index) * count
	})
	s.positiveStore.ForEach(func(index int32, count float64) {
		sum += s.mapping.Value(index) * count
	})
	return sum
}

// Max returns the largest accepted value's bucket representative, or
// ErrNoSuchElement if the sketch is empty.
func (s *DDSketch) Max() (float64, error) {
	switch {
	case !s.positiveStore.IsEmpty():
		return s.mapping.Value(s.positiveStore.MaxIndex()), nil
	case s.zeroCount > 0.0:
		return 0.0, nil
	case !s.negativeStore.IsEmpty():
		return -s.mapping.Value(s.negativeStore.MinIndex()), nil
	default:
		return 0, ErrNoSuchElement
	}
}

// Min returns the smallest accepted value's bucket representative, or
// ErrNoSuchElement if the sketch is empty.
func (s *DDSketch) Min() (float64, error) {
	switch {
	case !s.negativeStore.IsEmpty():
		return -s.mapping.Value(s.negativeStore.MaxIndex()), nil
	case s.zeroCount > 0.0:
		return 0.0, nil
	case !s.positiveStore.IsEmpty():
		return s.mapping.Value(s.positiveStore.MinIndex()), nil
	default:
		return 0, ErrNoSuchElement
	}
}

// Average returns Sum()/Count(), or ErrNoSuchElement if the sketch is
// empty.
func (s *DDSketch) Average() (float64, error) {
	count := s.Count()
	if count <= 0.0 {
		return 0, ErrNoSuchElement
	}
	return s.Sum() / count, nil
}

// Quantile returns the bucket representative for the q-quantile of every
// sample accepted so far, q in [0, 1]. Fails with ErrInvalidArgument if q
// is out of range, or ErrNoSuchElement if the sketch is empty.
func (s *DDSketch) Quantile(q float64) (float64, error) {
	if q < 0.0 || q > 1.0 {
		return 0, fmt.Errorf("%w: quantile must be between 0 and 1", ErrInvalidArgument)
	}
	count := s.Count()
	if count <= 0.0 {
		return 0, ErrNoSuchElement
	}
	rank := q * (count - 1.0)

	var n float64
	negIt := s.negativeStore.DescendingIterator()
	for {
		index, c, ok := negIt.Next()
		if !ok {
			break
		}
		n += c
		if n > rank {
			return -s.mapping.Value(index), nil
		}
	}

	n += s.zeroCount
	if n > rank {
		return 0.0, nil
	}

	posIt := s.positiveStore.AscendingIterator()
	for {
		index, c, ok := posIt.Next()
		if !ok {
			break
		}
		n += c
		if n > rank {
			return s.mapping.Value(index), nil
		}
	}

	return 0, ErrNoSuchElement
}

// Encode writes the sketch's wire frames to w: an IndexMapping frame, an
// optional ZeroCount frame, then PositiveStore and NegativeStore frames
// (each omitted if empty).
func (s *DDSketch) Encode(w ByteWriter) error {
	if err := s.mapping.encode(w); err != nil {
		return err
	}
	if s.zeroCount != 0.0 {
		if err := newFlag(flagTypeSketchFeatures, subFlagZeroCount).encode(w); err != nil {
			return err
		}
		if err := EncodeVarbitDouble(w, s.zeroCount); err != nil {
			return err
		}
	}
	if err := s.positiveStore.encode(w, flagTypePositiveStore); err != nil {
		return err
	}
	return s.negativeStore.encode(w, flagTypeNegativeStore)
}

// DecodeAndMergeWith reads wire frames from r until exhausted, merging each
// into s in the order they appear. The embedded IndexMapping frame must
// match s's own mapping; a mismatch fails with ErrInvalidArgument. Frames
// decoded before the mismatching mapping frame stay merged, so a payload
// that starts with its mapping frame, as Encode writes it, leaves s
// unchanged.
func (s *DDSketch) DecodeAndMergeWith(r ByteReader) error {
	for r.HasRemaining() {
		f, err := decodeFlag(r)
		if err != nil {
			return err
		}
		ft, err := f.flagType()
		if err != nil {
			return err
		}
		switch ft {
		case flagTypePositiveStore:
			mode, err := binEncodingModeFromSubFlag(f.subFlag())
			if err != nil {
				return err
			}
			if err := s.positiveStore.decodeAndMergeWith(r, mode); err != nil {
				return err
			}
		case flagTypeNegativeStore:
			mode, err := binEncodingModeFromSubFlag(f.subFlag())
			if err != nil {
				return err
			}
			if err := s.negativeStore.decodeAndMergeWith(r, mode); err != nil {
				return err
			}
		case flagTypeIndexMapping:
			decoded, err := decodeIndexMapping(r, f)
			if err != nil {
				return err
			}
			if !s.mapping.Equal(decoded) {
				return fmt.Errorf("%w: decoded index mapping does not match this sketch's mapping", ErrInvalidArgument)
			}
		case flagTypeSketchFeatures:
			if f.subFlag() == subFlagZeroCount {
				delta, err := DecodeVarbitDouble(r)
				if err != nil {
					return err
				}
				s.zeroCount += delta
			} else if err := skipSummaryStatistic(r, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteTo implements io.WriterTo, encoding the sketch to w.
func (s *DDSketch) WriteTo(w io.Writer) (int64, error) {
	bw := newBytesWriter(64)
	if err := s.Encode(bw); err != nil {
		return 0, err
	}
	n, err := w.Write(bw.Bytes())
	return int64(n), err
}

// ReadFrom implements io.ReaderFrom, decoding and merging every frame r has
// to offer into s. s must already carry the mapping and store variant the
// encoded sketch was built with; see DecodeAndMergeWith.
func (s *DDSketch) ReadFrom(r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	if err := s.DecodeAndMergeWith(newBytesReader(data)); err != nil {
		return int64(len(data)), err
	}
	return int64(len(data)), nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (s *DDSketch) MarshalBinary() ([]byte, error) {
	bw := newBytesWriter(64)
	if err := s.Encode(bw); err != nil {
		return nil, err
	}
	return bw.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. Unlike a typical
// unmarshal, this merges into whatever s already holds rather than
// replacing it; see DecodeAndMergeWith.
func (s *DDSketch) UnmarshalBinary(data []byte) error {
	return s.DecodeAndMergeWith(newBytesReader(data))
}
