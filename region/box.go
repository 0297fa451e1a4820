// Package region implements the axis-aligned tensor-region geometry that
// the Graph Builder intersects when deciding whether a consumer shard needs
// data from a producer shard. Region geometry itself — how a ParallelConfig
// carves a tensor into per-shard boxes — is the operator's job (see the
// Operator contract in package contract); this package only supplies the
// box arithmetic operators use to answer that question.
package region

import "fmt"

// Box is an axis-aligned index box. For dimension i, it covers indices in
// the half-open interval [Lo[i], Hi[i]).
type Box struct {
	Lo []int64
	Hi []int64
}

// NewBox copies lo and hi into a new Box. Panics if their lengths differ.
func NewBox(lo, hi []int64) Box {
	if len(lo) != len(hi) {
		panic(fmt.Sprintf("region: Lo/Hi dimension mismatch (%d vs %d)", len(lo), len(hi)))
	}
	return Box{Lo: append([]int64(nil), lo...), Hi: append([]int64(nil), hi...)}
}

// Dims returns the number of axes the box spans.
func (b Box) Dims() int { return len(b.Lo) }

// Volume returns the number of elements the box covers. A degenerate box
// (Hi <= Lo on any axis) has volume 0.
func (b Box) Volume() int64 {
	if len(b.Lo) == 0 {
		return 0
	}
	v := int64(1)
	for i := range b.Lo {
		extent := b.Hi[i] - b.Lo[i]
		if extent <= 0 {
			return 0
		}
		v *= extent
	}
	return v
}

// Intersect returns the axis-aligned intersection of b and other. The
// result may be degenerate (zero volume) when the boxes don't overlap on
// some axis; callers should check Volume(), not nil-ness.
func (b Box) Intersect(other Box) Box {
	if b.Dims() != other.Dims() {
		panic(fmt.Sprintf("region: dimension mismatch in intersection (%d vs %d)", b.Dims(), other.Dims()))
	}
	lo := make([]int64, b.Dims())
	hi := make([]int64, b.Dims())
	for i := range b.Lo {
		lo[i] = max64(b.Lo[i], other.Lo[i])
		hi[i] = min64(b.Hi[i], other.Hi[i])
	}
	return Box{Lo: lo, Hi: hi}
}

// Equal reports whether b and other denote exactly the same box. Two boxes
// are equal iff they have the same dimensionality and identical bounds on
// every axis — this is the exact notion the weight-overlap equivalence
// classing (graph.WeightClasses) relies on for its all-or-nothing check.
func (b Box) Equal(other Box) bool {
	if b.Dims() != other.Dims() {
		return false
	}
	for i := range b.Lo {
		if b.Lo[i] != other.Lo[i] || b.Hi[i] != other.Hi[i] {
			return false
		}
	}
	return true
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
