package ddsketch

import "errors"

// Sentinel errors for the three kinds of failure a DDSketch operation can
// report. Wrap these with fmt.Errorf("...: %w", Err...) for detail; callers
// should match with errors.Is.
var (
	// ErrInvalidArgument covers out-of-range construction/query parameters
	// (relative accuracy outside (0,1), a quantile outside [0,1], an
	// i64-to-i32 overflow during decode, a mapping mismatch on merge or
	// decode, or an unrecognized wire flag/sub-flag).
	ErrInvalidArgument = errors.New("ddsketch: invalid argument")

	// ErrNoSuchElement is returned by Min, Max, Average, and Quantile when
	// called on an empty sketch.
	ErrNoSuchElement = errors.New("ddsketch: no such element")

	// ErrIoError wraps an unexpected end of input, or any failure
	// surfaced by the underlying byte reader.
	ErrIoError = errors.New("ddsketch: io error")
)
