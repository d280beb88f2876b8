// Package ddsketch implements DDSketch, a relative-error quantile sketch.
//
// # Overview
//
// A DDSketch ingests a stream of real-valued samples and answers quantile
// queries with a guaranteed relative error: for any queried quantile q the
// returned value v̂ satisfies |v̂ - v|/|v| <= relativeAccuracy, where v is the
// true q-quantile of the stream seen so far. The sketch is mergeable: two
// sketches built with the same index mapping can be combined with
// MergeWith, and the result is indistinguishable from a sketch that saw
// both streams directly (aside from accumulated collapsing loss, which is
// order-dependent by nature).
//
// # Basic usage
//
//	sketch, err := ddsketch.NewCollapsingLowestDense(0.02, 2048)
//	sketch.Accept(1.0)
//	sketch.Accept(2.0)
//	sketch.Accept(3.0)
//	q, err := sketch.Quantile(0.5)
//
// # Index mapping variants
//
// Two index mappings are supported: Logarithmic (pure log-based bucketing)
// and CubicallyInterpolated (a cubic approximation of log2 over the IEEE-754
// significand, faster to evaluate at the same accuracy). Six constructors
// cover the combinations this package supports:
//
//	NewCollapsingLowestDense             - cubic mapping, bin cap, collapses smallest indices
//	NewCollapsingHighestDense            - cubic mapping, bin cap, collapses largest indices
//	NewUnboundedDense                    - cubic mapping, no bin cap
//	NewLogarithmicCollapsingLowestDense  - logarithmic mapping, bin cap, collapses smallest indices
//	NewLogarithmicCollapsingHighestDense - logarithmic mapping, bin cap, collapses largest indices
//	NewLogarithmicUnboundedDense         - logarithmic mapping, no bin cap
//
// # Serialization
//
// A DDSketch serializes to the DataDog DDSketch wire format: a
// concatenation of self-delimited frames (index mapping, optional
// zero-count, positive store, negative store). Use WriteTo/ReadFrom for
// streaming I/O, or MarshalBinary/UnmarshalBinary for a one-shot byte
// slice.
//
//	data, err := sketch.MarshalBinary()
//	other, err := ddsketch.NewCollapsingLowestDense(0.02, 2048)
//	err = other.UnmarshalBinary(data)
//
// # Concurrency
//
// A DDSketch is not safe for concurrent use. All mutating operations
// (Accept, MergeWith, DecodeAndMergeWith, Clear) and the read operations
// that internally walk the stores (Count, Sum, Min, Max, Average,
// Quantile) require external synchronization if shared across goroutines.
package ddsketch
