package ddsketch

import (
	"fmt"
	"math"
)

const (
	storeArrayLengthOverhead        = 6
	storeArrayLengthGrowthIncrement = 64
)

// denseStore is the single engine behind all three bucket-store variants
// described in the sketch's design: collapsing-lowest, collapsing-highest,
// and unbounded. The Rust original modeled collapsing-lowest and
// collapsing-highest as two near-identical structs differing only in which
// end of the index range folds when the array hits its cap; here that
// difference is a single collapseHighest flag, and unbounded is simply a
// store whose maxNumBins never binds (set to math.MaxInt32).
//
// counts[i] holds the weight of bucket (offset+i). minIndex/maxIndex are
// the inclusive bounds of the occupied range; the store is empty iff
// maxIndex < minIndex.
type denseStore struct {
	counts          []float64
	offset          int32
	minIndex        int32
	maxIndex        int32
	isCollapsed     bool
	maxNumBins      int32
	collapseHighest bool
}

func newDenseStore(maxNumBins int32, collapseHighest bool) *denseStore {
	return &denseStore{
		maxNumBins:      maxNumBins,
		collapseHighest: collapseHighest,
		minIndex:        math.MaxInt32,
		maxIndex:        math.MinInt32,
	}
}

func newCollapsingLowestStore(maxNumBins int32) *denseStore {
	return newDenseStore(maxNumBins, false)
}

func newCollapsingHighestStore(maxNumBins int32) *denseStore {
	return newDenseStore(maxNumBins, true)
}

func newUnboundedStore() *denseStore {
	return newDenseStore(math.MaxInt32, false)
}

func (s *denseStore) length() int32 { return int32(len(s.counts)) }

// IsEmpty reports whether the store currently holds no occupied buckets.
func (s *denseStore) IsEmpty() bool { return s.maxIndex < s.minIndex }

// normalize maps a bucket index to a slot in counts, extending or
// collapsing the backing array as needed. If the store is collapsed and
// index falls on the folded side, it returns the boundary slot (0 when
// collapsing lowest, length-1 when collapsing highest), so the caller
// (Add/AddBin) adds the sample to the boundary bucket.
func (s *denseStore) normalize(index int32) int32 {
	if s.collapseHighest {
		if index > s.maxIndex {
			if s.isCollapsed {
				return s.length() - 1
			}
			s.extendRange(index, index)
			if s.isCollapsed {
				return s.length() - 1
			}
		} else if index < s.minIndex {
			s.extendRange(index, index)
		}
	} else {
		if index < s.minIndex {
			if s.isCollapsed {
				return 0
			}
			s.extendRange(index, index)
			if s.isCollapsed {
				return 0
			}
		} else if index > s.maxIndex {
			s.extendRange(index, index)
		}
	}
	return index - s.offset
}

func (s *denseStore) extendRange(newMinIndex, newMaxIndex int32) {
	newMinIndex = minInt32(newMinIndex, s.minIndex)
	newMaxIndex = maxInt32(newMaxIndex, s.maxIndex)

	if s.IsEmpty() {
		initialLength := s.newLength(newMinIndex, newMaxIndex)
		if initialLength >= s.length() {
			s.counts = growCounts(s.counts, initialLength)
		}
		s.offset = newMinIndex
		s.minIndex = newMinIndex
		s.maxIndex = newMaxIndex
		s.adjust(newMinIndex, newMaxIndex)
	} else if newMinIndex >= s.offset && newMaxIndex < s.offset+s.length() {
		s.minIndex = newMinIndex
		s.maxIndex = newMaxIndex
	} else {
		// Grow before hitting capacity exactly, so we don't re-shift on
		// every single addition near the boundary.
		newLength := s.newLength(newMinIndex, newMaxIndex)
		if newLength > s.length() {
			s.counts = growCounts(s.counts, newLength)
		}
		s.adjust(newMinIndex, newMaxIndex)
	}
}

func (s *denseStore) newLength(newMinIndex, newMaxIndex int32) int32 {
	desired := int64(newMaxIndex) - int64(newMinIndex) + 1
	next := (desired+storeArrayLengthOverhead-1)/storeArrayLengthGrowthIncrement + 1
	next *= storeArrayLengthGrowthIncrement
	if next > int64(s.maxNumBins) {
		return s.maxNumBins
	}
	return int32(next)
}

func growCounts(counts []float64, n int32) []float64 {
	grown := make([]float64, n)
	copy(grown, counts)
	return grown
}

func (s *denseStore) adjust(newMinIndex, newMaxIndex int32) {
	if int64(newMaxIndex)-int64(newMinIndex)+1 > int64(s.length()) {
		if s.collapseHighest {
			s.adjustCollapsingHighest(newMinIndex, newMaxIndex)
		} else {
			s.adjustCollapsingLowest(newMinIndex, newMaxIndex)
		}
		s.isCollapsed = true
	} else {
		s.centerCounts(newMinIndex, newMaxIndex)
	}
}

// adjustCollapsingLowest folds buckets below the retained window into its
// lowest surviving slot; once collapsed that slot absorbs everything below
// it for the lifetime of the store.
func (s *denseStore) adjustCollapsingLowest(newMinIndex, newMaxIndex int32) {
	newMinIndex = newMaxIndex - s.length() + 1

	if newMinIndex >= s.maxIndex {
		total := s.TotalCount()
		s.resetCounts(s.minIndex, s.maxIndex)
		s.offset = newMinIndex
		s.minIndex = newMinIndex
		s.counts[0] = total
	} else {
		shift := s.offset - newMinIndex
		if shift < 0 {
			collapsed := s.totalCountWithRange(s.minIndex, newMinIndex-1)
			s.resetCounts(s.minIndex, newMinIndex-1)
			s.counts[newMinIndex-s.offset] += collapsed
			s.minIndex = newMinIndex
			s.shiftCounts(shift)
		} else {
			s.shiftCounts(shift)
			s.minIndex = newMinIndex
		}
	}
	s.maxIndex = newMaxIndex
}

// adjustCollapsingHighest is adjustCollapsingLowest's mirror image, folding
// buckets above the retained window into its highest surviving slot.
func (s *denseStore) adjustCollapsingHighest(newMinIndex, newMaxIndex int32) {
	newMaxIndex = newMinIndex + s.length() - 1

	if newMaxIndex <= s.minIndex {
		total := s.TotalCount()
		s.resetCounts(s.minIndex, s.maxIndex)
		s.offset = newMinIndex
		s.maxIndex = newMaxIndex
		s.counts[s.length()-1] = total
	} else {
		shift := s.offset - newMinIndex
		if shift > 0 {
			collapsed := s.totalCountWithRange(newMaxIndex+1, s.maxIndex)
			s.resetCounts(newMaxIndex+1, s.maxIndex)
			s.counts[newMaxIndex-s.offset] += collapsed
			s.maxIndex = newMaxIndex
			s.shiftCounts(shift)
		} else {
			s.shiftCounts(shift)
			s.maxIndex = newMaxIndex
		}
	}
	s.minIndex = newMinIndex
}

func (s *denseStore) centerCounts(newMinIndex, newMaxIndex int32) {
	middle := newMinIndex + (newMaxIndex-newMinIndex+1)/2
	shift := s.offset + s.length()/2 - middle
	s.shiftCounts(shift)
	s.minIndex = newMinIndex
	s.maxIndex = newMaxIndex
}

func (s *denseStore) shiftCounts(shift int32) {
	minArrayIndex := s.minIndex - s.offset
	maxArrayIndex := s.maxIndex - s.offset

	s.arrayCopy(minArrayIndex, minArrayIndex+shift, maxArrayIndex-minArrayIndex+1)

	if shift > 0 {
		for i := minArrayIndex; i < minArrayIndex+shift; i++ {
			s.counts[i] = 0.0
		}
	} else {
		for i := maxArrayIndex + 1 + shift; i < maxArrayIndex+1; i++ {
			s.counts[i] = 0.0
		}
	}
	s.offset -= shift
}

// arrayCopy moves length slots from srcPos to destPos within counts,
// copying back-to-front when the ranges overlap with destPos ahead of
// srcPos (mirrors System.arraycopy's overlap-safe behavior without an
// intermediate allocation).
func (s *denseStore) arrayCopy(srcPos, destPos, length int32) {
	if srcPos < destPos {
		for offset := length - 1; offset >= 0; offset-- {
			s.counts[destPos+offset] = s.counts[srcPos+offset]
		}
	} else if srcPos > destPos {
		for offset := int32(0); offset < length; offset++ {
			s.counts[destPos+offset] = s.counts[srcPos+offset]
		}
	}
}

func (s *denseStore) totalCountWithRange(fromIndex, toIndex int32) float64 {
	if s.IsEmpty() {
		return 0.0
	}
	fromArrayIndex := maxInt32(fromIndex-s.offset, 0)
	toArrayIndex := minInt32(toIndex-s.offset, s.length()-1) + 1

	var total float64
	for i := fromArrayIndex; i < toArrayIndex; i++ {
		total += s.counts[i]
	}
	return total
}

func (s *denseStore) resetCounts(fromIndex, toIndex int32) {
	for i := fromIndex - s.offset; i <= toIndex-s.offset; i++ {
		s.counts[i] = 0.0
	}
}

// TotalCount returns the sum of every bucket weight currently held.
func (s *denseStore) TotalCount() float64 {
	return s.totalCountWithRange(s.minIndex, s.maxIndex)
}

// MinIndex and MaxIndex return the inclusive bounds of occupied buckets;
// meaningless when IsEmpty.
func (s *denseStore) MinIndex() int32 { return s.minIndex }
func (s *denseStore) MaxIndex() int32 { return s.maxIndex }

// Add records one observation of weight count at index.
func (s *denseStore) Add(index int32, count float64) {
	if count <= 0.0 {
		return
	}
	arrayIndex := s.normalize(index)
	if arrayIndex < 0 || arrayIndex >= s.length() {
		return
	}
	s.counts[arrayIndex] += count
}

// AddBin merges a decoded (index, count) pair, as opposed to Add's single
// live observation; a zero count is a no-op rather than a weight to record.
func (s *denseStore) AddBin(index int32, count float64) {
	if count == 0.0 {
		return
	}
	arrayIndex := s.normalize(index)
	if arrayIndex < 0 || arrayIndex >= s.length() {
		return
	}
	s.counts[arrayIndex] += count
}

// Clear resets the store to empty without releasing the backing array.
func (s *denseStore) Clear() {
	for i := range s.counts {
		s.counts[i] = 0.0
	}
	s.maxIndex = math.MinInt32
	s.minIndex = math.MaxInt32
	s.offset = 0
	s.isCollapsed = false
}

// ForEach visits every non-empty bucket in ascending index order.
func (s *denseStore) ForEach(accept func(index int32, count float64)) {
	if s.IsEmpty() {
		return
	}
	for i := s.minIndex; i < s.maxIndex; i++ {
		v := s.counts[i-s.offset]
		if v != 0.0 {
			accept(i, v)
		}
	}
	if last := s.counts[s.maxIndex-s.offset]; last != 0.0 {
		accept(s.maxIndex, last)
	}
}

// storeIterator walks a store's non-empty buckets in one direction,
// skipping zero-valued slots. It borrows counts directly and must not
// outlive a mutation of the store it was taken from.
type storeIterator struct {
	minIndex   int32
	maxIndex   int32
	offset     int32
	descending bool
	counts     []float64
}

// AscendingIterator returns an iterator from MinIndex to MaxIndex.
func (s *denseStore) AscendingIterator() *storeIterator {
	return &storeIterator{minIndex: s.minIndex, maxIndex: s.maxIndex, offset: s.offset, descending: false, counts: s.counts}
}

// DescendingIterator returns an iterator from MaxIndex to MinIndex.
func (s *denseStore) DescendingIterator() *storeIterator {
	return &storeIterator{minIndex: s.minIndex, maxIndex: s.maxIndex, offset: s.offset, descending: true, counts: s.counts}
}

// Next returns the next (index, count) pair and true, or (0, 0, false) once
// exhausted.
func (it *storeIterator) Next() (int32, float64, bool) {
	if it.descending {
		if it.maxIndex < it.minIndex {
			return 0, 0, false
		}
		index := it.maxIndex
		it.maxIndex--
		for it.maxIndex >= it.minIndex && it.counts[it.maxIndex-it.offset] == 0.0 {
			it.maxIndex--
		}
		return index, it.counts[index-it.offset], true
	}
	if it.minIndex > it.maxIndex {
		return 0, 0, false
	}
	index := it.minIndex
	it.minIndex++
	for it.minIndex <= it.maxIndex && it.counts[it.minIndex-it.offset] == 0.0 {
		it.minIndex++
	}
	return index, it.counts[index-it.offset], true
}

// MergeWith folds other's buckets into s, walking other in descending order
// so a receiver that must collapse absorbs the largest indices first.
func (s *denseStore) MergeWith(other *denseStore) {
	it := other.DescendingIterator()
	for {
		index, count, ok := it.Next()
		if !ok {
			return
		}
		s.AddBin(index, count)
	}
}

// encode picks the shorter of the two bin encodings described in the wire
// format (ContiguousCounts vs IndexDeltasAndCounts) and writes that one,
// preceded by its flag byte. An empty store writes nothing.
func (s *denseStore) encode(w ByteWriter, ft flagType) error {
	if s.IsEmpty() {
		return nil
	}

	numBins := int64(s.maxIndex) - int64(s.minIndex) + 1
	contiguousLen := unsignedVarlongLen(uint64(numBins)) + signedVarlongLen(int64(s.minIndex)) + signedVarlongLen(1)
	for i := s.minIndex; i <= s.maxIndex; i++ {
		contiguousLen += varbitDoubleLen(s.counts[i-s.offset])
	}

	var numNonEmpty int64
	var sparseBodyLen int
	prevIndex := int32(0)
	for i := s.minIndex; i <= s.maxIndex; i++ {
		c := s.counts[i-s.offset]
		if c == 0.0 {
			continue
		}
		numNonEmpty++
		sparseBodyLen += signedVarlongLen(int64(i)-int64(prevIndex)) + varbitDoubleLen(c)
		prevIndex = i
	}
	sparseLen := unsignedVarlongLen(uint64(numNonEmpty)) + sparseBodyLen

	if sparseLen <= contiguousLen {
		return s.encodeIndexDeltasAndCounts(w, ft, numNonEmpty)
	}
	return s.encodeContiguousCounts(w, ft, numBins)
}

func (s *denseStore) encodeContiguousCounts(w ByteWriter, ft flagType, numBins int64) error {
	if err := newFlag(ft, uint8(binModeContiguousCounts)).encode(w); err != nil {
		return err
	}
	if err := EncodeUnsignedVarlong(w, uint64(numBins)); err != nil {
		return err
	}
	if err := EncodeSignedVarlong(w, int64(s.minIndex)); err != nil {
		return err
	}
	if err := EncodeSignedVarlong(w, 1); err != nil {
		return err
	}
	for i := s.minIndex; i <= s.maxIndex; i++ {
		if err := EncodeVarbitDouble(w, s.counts[i-s.offset]); err != nil {
			return err
		}
	}
	return nil
}

func (s *denseStore) encodeIndexDeltasAndCounts(w ByteWriter, ft flagType, numNonEmpty int64) error {
	if err := newFlag(ft, uint8(binModeIndexDeltasAndCounts)).encode(w); err != nil {
		return err
	}
	if err := EncodeUnsignedVarlong(w, uint64(numNonEmpty)); err != nil {
		return err
	}
	prevIndex := int32(0)
	for i := s.minIndex; i <= s.maxIndex; i++ {
		c := s.counts[i-s.offset]
		if c == 0.0 {
			continue
		}
		if err := EncodeSignedVarlong(w, int64(i)-int64(prevIndex)); err != nil {
			return err
		}
		if err := EncodeVarbitDouble(w, c); err != nil {
			return err
		}
		prevIndex = i
	}
	return nil
}

// decodeAndMergeWith reads a store frame body (the flag byte has already
// been consumed by the caller) in the given mode and merges it into s.
func (s *denseStore) decodeAndMergeWith(r ByteReader, mode binEncodingMode) error {
	switch mode {
	case binModeContiguousCounts:
		numBins, err := DecodeUnsignedVarlong(r)
		if err != nil {
			return err
		}
		running, err := DecodeSignedVarlong(r)
		if err != nil {
			return err
		}
		indexDelta, err := DecodeSignedVarlong(r)
		if err != nil {
			return err
		}
		for i := int64(0); i < numBins; i++ {
			count, err := DecodeVarbitDouble(r)
			if err != nil {
				return err
			}
			idx, err := int64ToInt32Exact(running)
			if err != nil {
				return err
			}
			s.Add(idx, count)
			running += indexDelta
		}
		return nil

	case binModeIndexDeltasAndCounts:
		numBins, err := DecodeUnsignedVarlong(r)
		if err != nil {
			return err
		}
		running := int64(0)
		for i := int64(0); i < numBins; i++ {
			delta, err := DecodeSignedVarlong(r)
			if err != nil {
				return err
			}
			running += delta
			idx, err := int64ToInt32Exact(running)
			if err != nil {
				return err
			}
			count, err := DecodeVarbitDouble(r)
			if err != nil {
				return err
			}
			s.Add(idx, count)
		}
		return nil

	case binModeIndexDeltas:
		numBins, err := DecodeUnsignedVarlong(r)
		if err != nil {
			return err
		}
		running := int64(0)
		for i := int64(0); i < numBins; i++ {
			delta, err := DecodeSignedVarlong(r)
			if err != nil {
				return err
			}
			running += delta
			idx, err := int64ToInt32Exact(running)
			if err != nil {
				return err
			}
			s.Add(idx, 1.0)
		}
		return nil

	default:
		return fmt.Errorf("%w: unknown bin encoding mode", ErrInvalidArgument)
	}
}

func int64ToInt32Exact(v int64) (int32, error) {
	r := int32(v)
	if int64(r) != v {
		return 0, fmt.Errorf("%w: value is not a valid i32", ErrInvalidArgument)
	}
	return r, nil
}

func minInt32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

func maxInt32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}
