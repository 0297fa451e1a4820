// Package strategy loads an operator graph and its placement from JSON —
// the strategy-search loop's handoff format, out of scope for the
// simulator itself but needed by the CLI and by tests exercising the
// Graph Builder end to end. LinearOp is a minimal concrete Operator: a
// matmul-shaped layer whose input/output/weight tensors partition along a
// configurable subset of the placement's dimensions, enough to exercise
// every phase of the builder without pulling in a real tensor-shape
// calculator.
package strategy

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/parasim/costsim/contract"
	"github.com/parasim/costsim/device"
	"github.com/parasim/costsim/graph"
	"github.com/parasim/costsim/region"
)

// LinearOp is a matmul-shaped operator: a global input tensor, a global
// output tensor, and an optional global weight tensor, each partitioned
// along whichever of the ParallelConfig's dimensions its mask selects.
// Axes not selected are replicated in full across every shard along that
// axis — the mechanism that produces non-trivial weight-overlap
// equivalence classes when a weight's mask omits the data-parallel axis.
type LinearOp struct {
	identity uint64
	name     string
	inputs   []contract.Input

	InputShape  []int64
	OutputShape []int64
	WeightShape []int64 // nil if this operator owns no weight

	InputMask  []bool
	OutputMask []bool
	WeightMask []bool

	Cost contract.CostMetrics
}

func (o *LinearOp) Identity() uint64 { return o.identity }
func (o *LinearOp) Name() string     { return o.name }
func (o *LinearOp) NumInputs() int   { return len(o.inputs) }
func (o *LinearOp) Input(idx int) contract.Input { return o.inputs[idx] }

func (o *LinearOp) NumWeights() int {
	if o.WeightShape == nil {
		return 0
	}
	return 1
}

func (o *LinearOp) InputTensorShape(pc contract.ParallelConfig, _ int, shard int) region.Box {
	return shardBox(shard, pc.Dims, o.InputShape, o.InputMask)
}

func (o *LinearOp) OutputTensorShape(pc contract.ParallelConfig, _ int, shard int) region.Box {
	return shardBox(shard, pc.Dims, o.OutputShape, o.OutputMask)
}

func (o *LinearOp) WeightTensorShape(pc contract.ParallelConfig, _ int, shard int) region.Box {
	return shardBox(shard, pc.Dims, o.WeightShape, o.WeightMask)
}

func (o *LinearOp) MeasureCost(contract.ParallelConfig) (contract.CostMetrics, bool) {
	return o.Cost, true
}

// shardBox decomposes shard into a row-major multi-index over dims (the
// last dimension varying fastest, matching how device ids are usually
// assigned) and slices shape along every axis the mask selects, leaving
// unselected axes at full extent (replicated).
func shardBox(shard int, dims []int, shape []int64, mask []bool) region.Box {
	idx := make([]int, len(dims))
	rem := shard
	for a := len(dims) - 1; a >= 0; a-- {
		idx[a] = rem % dims[a]
		rem /= dims[a]
	}

	lo := make([]int64, len(shape))
	hi := make([]int64, len(shape))
	for a := range shape {
		if a < len(mask) && mask[a] {
			extent := shape[a] / int64(dims[a])
			lo[a] = int64(idx[a]) * extent
			hi[a] = lo[a] + extent
		} else {
			lo[a] = 0
			hi[a] = shape[a]
		}
	}
	return region.NewBox(lo, hi)
}

// operatorSpec is the on-disk JSON shape of one operator.
type operatorSpec struct {
	Name     string     `json:"name"`
	Identity uint64     `json:"identity"`
	Inputs   []inputSpec `json:"inputs"`

	InputShape  []int64 `json:"input_shape,omitempty"`
	OutputShape []int64 `json:"output_shape"`
	WeightShape []int64 `json:"weight_shape,omitempty"`

	InputMask  []bool `json:"input_mask,omitempty"`
	OutputMask []bool `json:"output_mask,omitempty"`
	WeightMask []bool `json:"weight_mask,omitempty"`

	ForwardTime       float64 `json:"forward_time"`
	BackwardTime      float64 `json:"backward_time"`
	MemoryRequirement int64   `json:"memory_requirement"`
}

type inputSpec struct {
	Producer            string `json:"producer"`
	ProducerOutputIndex int    `json:"producer_output_index"`
}

type placementSpec struct {
	Operator   string     `json:"operator"`
	DeviceKind string     `json:"device_kind"`
	Dims       []int      `json:"dims"`
	Devices    []device.ID `json:"devices"`
}

// graphSpec is the on-disk JSON shape of a whole strategy file: the
// operator graph in layer order plus one placement per operator.
type graphSpec struct {
	Operators []operatorSpec  `json:"operators"`
	Placement []placementSpec `json:"placement"`
}

// Load reads a strategy JSON file and returns its operators (in the
// layer order they appear in the file) and their placement, ready to
// hand to a graph.Builder.
func Load(path string) ([]contract.Operator, graph.Placement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading strategy file: %w", err)
	}
	var spec graphSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, nil, fmt.Errorf("parsing strategy file: %w", err)
	}

	byName := make(map[string]*LinearOp, len(spec.Operators))
	ops := make([]contract.Operator, 0, len(spec.Operators))
	for _, osp := range spec.Operators {
		op := &LinearOp{
			identity:    osp.Identity,
			name:        osp.Name,
			InputShape:  osp.InputShape,
			OutputShape: osp.OutputShape,
			WeightShape: osp.WeightShape,
			InputMask:   osp.InputMask,
			OutputMask:  osp.OutputMask,
			WeightMask:  osp.WeightMask,
			Cost: contract.CostMetrics{
				ForwardTime:       osp.ForwardTime,
				BackwardTime:      osp.BackwardTime,
				MemoryRequirement: osp.MemoryRequirement,
			},
		}
		byName[osp.Name] = op
		ops = append(ops, op)
	}
	for i, osp := range spec.Operators {
		op := byName[osp.Name]
		for _, in := range osp.Inputs {
			producer, ok := byName[in.Producer]
			if !ok {
				return nil, nil, fmt.Errorf("operator %q: unknown producer %q", op.Name(), in.Producer)
			}
			op.inputs = append(op.inputs, contract.Input{Producer: producer, ProducerOutputIndex: in.ProducerOutputIndex})
		}
		ops[i] = op
	}

	placement := make(graph.Placement, len(spec.Placement))
	for _, ps := range spec.Placement {
		op, ok := byName[ps.Operator]
		if !ok {
			return nil, nil, fmt.Errorf("placement references unknown operator %q", ps.Operator)
		}
		placement[op.Identity()] = contract.ParallelConfig{
			DeviceKind: contract.DeviceKind(ps.DeviceKind),
			Dims:       ps.Dims,
			Devices:    ps.Devices,
		}
	}

	return ops, placement, nil
}
