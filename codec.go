package ddsketch

import "fmt"

// flagType is the low 2 bits of every wire frame's leading flag byte,
// identifying which of the sketch's four frame kinds follows.
type flagType uint8

const (
	flagTypeSketchFeatures flagType = 0b00
	flagTypePositiveStore  flagType = 0b01
	flagTypeIndexMapping   flagType = 0b10
	flagTypeNegativeStore  flagType = 0b11
)

func flagTypeFromMarker(marker uint8) (flagType, error) {
	switch marker & 3 {
	case uint8(flagTypeSketchFeatures):
		return flagTypeSketchFeatures, nil
	case uint8(flagTypePositiveStore):
		return flagTypePositiveStore, nil
	case uint8(flagTypeIndexMapping):
		return flagTypeIndexMapping, nil
	case uint8(flagTypeNegativeStore):
		return flagTypeNegativeStore, nil
	default:
		return 0, fmt.Errorf("%w: unknown flag type", ErrInvalidArgument)
	}
}

// flag is a single wire frame header byte: 2 low bits of flagType, 6 high
// bits of sub-flag (the frame's specific meaning within its type).
type flag uint8

func newFlag(t flagType, subFlag uint8) flag {
	return flag(uint8(t) | (subFlag << 2))
}

func (f flag) flagType() (flagType, error) {
	return flagTypeFromMarker(uint8(f))
}

func (f flag) subFlag() uint8 {
	return uint8(f) >> 2
}

func (f flag) encode(w ByteWriter) error {
	return w.WriteByte(byte(f))
}

func decodeFlag(r ByteReader) (flag, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	return flag(b), nil
}

// SketchFeatures sub-flags: ZeroCount carries a live payload, the four
// summary-statistic sub-flags exist only so a decoder written against a
// newer producer can skip a field it doesn't understand.
const (
	subFlagZeroCount uint8 = 1
	subFlagCount     uint8 = 0x28
	subFlagSum       uint8 = 0x21
	subFlagMin       uint8 = 0x22
	subFlagMax       uint8 = 0x23
)

// skipSummaryStatistic consumes and discards the payload of a
// SketchFeatures sub-flag this package doesn't otherwise interpret.
func skipSummaryStatistic(r ByteReader, f flag) error {
	switch f.subFlag() {
	case subFlagCount:
		_, err := DecodeVarbitDouble(r)
		return err
	case subFlagSum, subFlagMin, subFlagMax:
		_, err := r.ReadFloat64LE()
		return err
	default:
		return fmt.Errorf("%w: unknown sketch feature sub-flag", ErrInvalidArgument)
	}
}

// binEncodingMode selects how a store frame's bins are laid out on the
// wire; see denseStore.encode/decodeAndMergeWith.
type binEncodingMode uint8

const (
	binModeIndexDeltasAndCounts binEncodingMode = 1
	binModeIndexDeltas          binEncodingMode = 2
	binModeContiguousCounts     binEncodingMode = 3
)

func binEncodingModeFromSubFlag(subFlag uint8) (binEncodingMode, error) {
	switch subFlag {
	case uint8(binModeIndexDeltasAndCounts):
		return binModeIndexDeltasAndCounts, nil
	case uint8(binModeIndexDeltas):
		return binModeIndexDeltas, nil
	case uint8(binModeContiguousCounts):
		return binModeContiguousCounts, nil
	default:
		return 0, fmt.Errorf("%w: unknown bin encoding mode", ErrInvalidArgument)
	}
}
