package measure

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/parasim/costsim/contract"
	"github.com/parasim/costsim/region"
)

// fakeOp is a minimal contract.Operator for exercising the cache; it
// counts how many times MeasureCost is actually invoked so tests can
// distinguish a hit from a miss.
type fakeOp struct {
	identity uint64
	name     string
	calls    int
	result   contract.CostMetrics
	ok       bool
}

func (f *fakeOp) Identity() uint64    { return f.identity }
func (f *fakeOp) Name() string        { return f.name }
func (f *fakeOp) NumInputs() int      { return 0 }
func (f *fakeOp) Input(int) contract.Input { return contract.Input{} }
func (f *fakeOp) NumWeights() int     { return 0 }
func (f *fakeOp) InputTensorShape(contract.ParallelConfig, int, int) region.Box  { return region.Box{} }
func (f *fakeOp) OutputTensorShape(contract.ParallelConfig, int, int) region.Box { return region.Box{} }
func (f *fakeOp) WeightTensorShape(contract.ParallelConfig, int, int) region.Box { return region.Box{} }

func (f *fakeOp) MeasureCost(contract.ParallelConfig) (contract.CostMetrics, bool) {
	f.calls++
	return f.result, f.ok
}

func pc(dims ...int) contract.ParallelConfig {
	return contract.ParallelConfig{DeviceKind: "gpu", Dims: dims}
}

func TestCache_Measure_MissThenHit(t *testing.T) {
	// GIVEN an operator that reports a cost
	op := &fakeOp{identity: 1, name: "matmul", ok: true, result: contract.CostMetrics{ForwardTime: 1.5}}
	c := New()

	// WHEN measuring the same placement twice
	first := c.Measure(op, pc(2, 2))
	second := c.Measure(op, pc(2, 2))

	// THEN the operator is invoked only once, both results match
	assert.Equal(t, 1, op.calls)
	assert.Equal(t, first, second)
	assert.Equal(t, 1.5, first.ForwardTime)
}

func TestCache_Measure_DifferentDims_AreDistinctKeys(t *testing.T) {
	op := &fakeOp{identity: 1, name: "matmul", ok: true, result: contract.CostMetrics{ForwardTime: 1.0}}
	c := New()

	c.Measure(op, pc(2, 2))
	c.Measure(op, pc(4, 1))

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 2, op.calls)
}

func TestCache_Measure_NoImplementation_Panics(t *testing.T) {
	op := &fakeOp{identity: 1, name: "unimplemented", ok: false}
	c := New()

	assert.Panics(t, func() {
		c.Measure(op, pc(1))
	}, "Measure: expected panic for unimplemented cost kernel")
}

func TestCache_Measure_DifferentOperators_AreDistinctKeys(t *testing.T) {
	opA := &fakeOp{identity: 1, name: "a", ok: true, result: contract.CostMetrics{ForwardTime: 1}}
	opB := &fakeOp{identity: 2, name: "b", ok: true, result: contract.CostMetrics{ForwardTime: 2}}
	c := New()

	c.Measure(opA, pc(2))
	c.Measure(opB, pc(2))

	assert.Equal(t, 2, c.Len())
}
