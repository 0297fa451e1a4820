// Package contract defines the boundary between the simulator and its
// external collaborators: the operator graph's per-operator cost kernels
// and tensor-region geometry (spec §6, "Out of scope"). Everything in this
// package is data the simulator consumes, never computes.
package contract

import (
	"github.com/parasim/costsim/device"
	"github.com/parasim/costsim/region"
)

// DeviceKind tags which physical device family a ParallelConfig targets.
// It does not itself constrain which device.ID values may appear in
// Devices — that validation is the Graph Builder's job (every id must
// resolve against the cluster's device.Model).
type DeviceKind string

// ParallelConfig is a per-operator placement: a device-kind tag, a
// dimension count k (len(Dims)), the k partition factors whose product is
// the shard count P, and the P flat device ids assigning each shard —
// mirroring FlexFlow's ParallelConfig.device_ids, which are flat gpu_id
// values rather than (node, slot) pairs.
type ParallelConfig struct {
	DeviceKind DeviceKind
	Dims       []int
	Devices    []device.ID
}

// NumParts returns P, the product of the partition factors.
func (pc ParallelConfig) NumParts() int {
	n := 1
	for _, d := range pc.Dims {
		n *= d
	}
	return n
}

// IsDataParallel reports whether pc partitions only along its last
// dimension and assigns shards to devices in identity order [0..P).
func (pc ParallelConfig) IsDataParallel() bool {
	for i, d := range pc.Dims {
		if i < len(pc.Dims)-1 && d > 1 {
			return false
		}
	}
	n := pc.NumParts()
	if len(pc.Devices) != n {
		return false
	}
	for i := 0; i < n; i++ {
		if pc.Devices[i] != device.ID(i) {
			return false
		}
	}
	return true
}

// CostMetrics is the per-shard (forward_time, backward_time,
// memory_requirement) triple one operator reports for one ParallelConfig.
type CostMetrics struct {
	ForwardTime       float64 // seconds
	BackwardTime      float64 // seconds
	MemoryRequirement int64   // bytes, per shard
}

// Input describes one of an operator's inputs: which operator produced it
// (nil for an external source the builder should skip) and which of that
// producer's outputs it is.
type Input struct {
	Producer            Operator
	ProducerOutputIndex int
}

// Operator is the contract the Graph Builder consumes from every node in
// the dataflow graph. Implementations supply the two things spec §1 calls
// out-of-scope for this simulator: operator cost kernels
// (MeasureCost) and tensor-region geometry (the three *TensorShape
// methods).
type Operator interface {
	// Identity returns a stable numeric id assigned at registration, used
	// as the operator key in every fingerprint the simulator computes.
	// It must NOT be derived from memory address (spec §9) so that the
	// Measurement Cache survives relocation and fingerprints are
	// architecture-independent.
	Identity() uint64

	// Name returns a human-readable label used only in graph export.
	Name() string

	NumInputs() int
	Input(idx int) Input
	NumWeights() int

	InputTensorShape(pc ParallelConfig, inputIdx, shardIdx int) region.Box
	OutputTensorShape(pc ParallelConfig, outputIdx, shardIdx int) region.Box
	WeightTensorShape(pc ParallelConfig, weightIdx, shardIdx int) region.Box

	// MeasureCost returns this operator's CostMetrics under pc. The
	// second return is false if the operator has no implementation for
	// pc — a fatal misconfiguration (spec §7 class 1), not a recoverable
	// error; package measure panics when it sees false.
	MeasureCost(pc ParallelConfig) (CostMetrics, bool)
}

// CompMode selects training (forward+backward+weight-sync) vs inference
// (forward only) task-graph expansion.
type CompMode int

const (
	Training CompMode = iota
	Inference
)

func (m CompMode) String() string {
	switch m {
	case Training:
		return "training"
	case Inference:
		return "inference"
	default:
		return "unknown"
	}
}

// SyncMode selects one of the three mutually exclusive weight-synchronization
// strategies of spec §4.D Phase 3.
type SyncMode int

const (
	// SyncOverlapped overlaps backward and update of earlier layers with
	// backward of later layers (Mode O).
	SyncOverlapped SyncMode = iota
	// SyncBSP inserts a global per-device barrier between backward and
	// update (Mode BSP).
	SyncBSP
	// SyncBlockingCollective skips Phase 3 entirely; a post-scheduling
	// pass adds serialized blocking-collective cost instead (Mode C).
	SyncBlockingCollective
)

func (m SyncMode) String() string {
	switch m {
	case SyncOverlapped:
		return "overlapped"
	case SyncBSP:
		return "bsp"
	case SyncBlockingCollective:
		return "blocking-collective"
	default:
		return "unknown"
	}
}
