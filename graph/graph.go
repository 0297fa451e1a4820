// Package graph is the Graph Builder (component D): it expands a set of
// placed operators into a task DAG in the Task Arena, wiring compute
// tasks, data-transfer chains, and a weight-synchronization overlay
// according to the active SyncMode. Each of its five phases is forbidden
// from mutating structures an earlier phase built, except through the
// extension points described on each method.
package graph

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/parasim/costsim/arena"
	"github.com/parasim/costsim/contract"
	"github.com/parasim/costsim/device"
	"github.com/parasim/costsim/measure"
	"github.com/parasim/costsim/region"
	"github.com/parasim/costsim/registry"
)

// elemSize is the element size, in bytes, of the logical transfer type —
// single-precision float in the reference cost model.
const elemSize = 4

// Placement resolves an operator's identity to its chosen ParallelConfig
// for one simulation run.
type Placement map[uint64]contract.ParallelConfig

// Plan is the completed task DAG: every task the builder allocated, in
// allocation order, and the subset with in-degree zero — the scheduler's
// initial frontier.
type Plan struct {
	Tasks    []*arena.Task
	Frontier []*arena.Task
}

// Builder owns the per-run scratch state (arena, registry) and the
// cross-run measurement cache, and expands a layered operator list into a
// Plan. A Builder is reused across many runs; Build resets its per-run
// state at the start of every call.
type Builder struct {
	arena *arena.Arena
	reg   *registry.Registry
	cache *measure.Cache
	model *device.Model

	compMode contract.CompMode
	syncMode contract.SyncMode

	finalBarrier map[*device.Handle]*arena.Task
	preBarrier   map[*device.Handle]*arena.Task
}

// New creates a Builder backed by the given arena capacity, device model,
// and measurement cache. The cache is shared across Builders/runs; the
// arena and registry are exclusive to this Builder.
func New(capacity int, model *device.Model, cache *measure.Cache) *Builder {
	return &Builder{
		arena: arena.NewArena(capacity),
		reg:   registry.New(),
		cache: cache,
		model: model,
	}
}

// Build runs all five phases for the given layer-ordered operator list and
// placement, producing a fresh Plan. Ops must already be in layer (i.e.
// topological-by-construction) order, matching how the caller's model
// defines them.
func (b *Builder) Build(ops []contract.Operator, placement Placement, compMode contract.CompMode, syncMode contract.SyncMode) *Plan {
	b.arena.Reset()
	b.reg.Reset()
	b.compMode = compMode
	b.syncMode = syncMode
	b.finalBarrier = make(map[*device.Handle]*arena.Task)
	b.preBarrier = make(map[*device.Handle]*arena.Task)

	b.phase1ComputeTasks(ops, placement)
	b.phase2TransferEdges(ops, placement)
	if compMode == contract.Training {
		b.phase3WeightSync(ops, placement)
	}
	b.phase4FinalBarriers()

	return b.phase5Handoff()
}

func (b *Builder) pcFor(op contract.Operator, placement Placement) contract.ParallelConfig {
	pc, ok := placement[op.Identity()]
	if !ok {
		panic(fmt.Sprintf("graph: no placement for operator %q (identity %d)", op.Name(), op.Identity()))
	}
	return pc
}

func (b *Builder) deviceFor(pc contract.ParallelConfig, shard int) *device.Handle {
	return b.model.Compute(pc.Devices[shard])
}

// phase1ComputeTasks allocates one Forward task per (operator, shard) and,
// in training mode, a paired Backward task on the same device with a
// trivial Forward->Backward edge.
func (b *Builder) phase1ComputeTasks(ops []contract.Operator, placement Placement) {
	for _, op := range ops {
		pc := b.pcFor(op, placement)
		metrics := b.cache.Measure(op, pc)
		for j := 0; j < pc.NumParts(); j++ {
			dev := b.deviceFor(pc, j)

			fwd := b.arena.NewTask(arena.Forward)
			fwd.Device = dev
			fwd.RunTime = metrics.ForwardTime
			fwd.OpLabel = op.Name()
			b.reg.PutForward(op.Identity(), j, fwd)

			if b.compMode == contract.Training {
				bwd := b.arena.NewTask(arena.Backward)
				bwd.Device = dev
				bwd.RunTime = metrics.BackwardTime
				bwd.OpLabel = op.Name()
				b.reg.PutBackward(op.Identity(), j, bwd)
				fwd.AddNext(bwd)
			}
		}
	}
}

// phase2TransferEdges inserts data-transfer chains between every consumer
// shard and every producer shard whose tensor-region footprints overlap,
// mirroring backward edges in the opposite direction for training.
func (b *Builder) phase2TransferEdges(ops []contract.Operator, placement Placement) {
	for _, op := range ops {
		pc := b.pcFor(op, placement)
		for inputIdx := 0; inputIdx < op.NumInputs(); inputIdx++ {
			in := op.Input(inputIdx)
			if in.Producer == nil {
				continue
			}
			preOp := in.Producer
			prePc := b.pcFor(preOp, placement)

			for dstID := 0; dstID < pc.NumParts(); dstID++ {
				dstBox := op.InputTensorShape(pc, inputIdx, dstID)
				for srcID := 0; srcID < prePc.NumParts(); srcID++ {
					srcBox := preOp.OutputTensorShape(prePc, in.ProducerOutputIndex, srcID)
					vol := dstBox.Intersect(srcBox).Volume()
					if vol <= 0 {
						continue
					}

					dstFwd, _ := b.reg.Forward(op.Identity(), dstID)
					srcFwd, _ := b.reg.Forward(preOp.Identity(), srcID)
					b.transferChain(srcFwd, dstFwd, vol)

					if b.compMode == contract.Training {
						dstBwd, _ := b.reg.Backward(op.Identity(), dstID)
						srcBwd, _ := b.reg.Backward(preOp.Identity(), srcID)
						b.transferChain(dstBwd, srcBwd, vol)
					}
				}
			}
		}
	}
}

// transferChain is the central subroutine shared by Phase 2 and the
// weight-synchronization overlay: it wires src -> ... -> dst, inserting
// one intra-node Comm task or a three-hop inter-node Comm chain as needed,
// or a direct edge when both tasks already share a device.
func (b *Builder) transferChain(src, dst *arena.Task, volume int64) {
	if src.Device == dst.Device {
		src.AddNext(dst)
		return
	}
	size := float64(volume) * elemSize
	if src.Device.Node == dst.Device.Node {
		link := b.model.IntraNodeLink(src.Device.Slot, dst.Device.Slot)
		comm := b.newComm(link, size/link.Bandwidth)
		src.AddNext(comm)
		comm.AddNext(dst)
		return
	}
	up := b.model.GPUToDRAM(src.Device.Slot)
	inter := b.model.InterNodeLink(src.Device.Node, dst.Device.Node)
	down := b.model.DRAMToGPU(dst.Device.Slot)
	c1 := b.newComm(up, size/up.Bandwidth)
	c2 := b.newComm(inter, size/inter.Bandwidth)
	c3 := b.newComm(down, size/down.Bandwidth)
	src.AddNext(c1)
	c1.AddNext(c2)
	c2.AddNext(c3)
	c3.AddNext(dst)
}

func (b *Builder) newComm(link *device.Handle, runTime float64) *arena.Task {
	t := b.arena.NewTask(arena.Comm)
	t.Device = link
	t.RunTime = runTime
	return t
}

// weightClass is one all-or-nothing equivalence class of shard indices
// whose weight-region footprints exactly coincide.
type weightClass struct {
	shards []int
	box    region.Box
}

// weightClasses partitions op's weight w's shard index set into
// equivalence classes, in shard order, panicking if any pair of shards
// overlaps partially rather than exactly or not at all.
func weightClasses(op contract.Operator, pc contract.ParallelConfig, weightIdx int) []weightClass {
	var classes []weightClass
	for shard := 0; shard < pc.NumParts(); shard++ {
		box := op.WeightTensorShape(pc, weightIdx, shard)
		placed := false
		for i := range classes {
			rep := classes[i].box
			if rep.Equal(box) {
				classes[i].shards = append(classes[i].shards, shard)
				placed = true
				break
			}
			if rep.Intersect(box).Volume() > 0 {
				panic(fmt.Sprintf("graph: partial weight-region overlap for operator %q weight %d shard %d",
					op.Name(), weightIdx, shard))
			}
		}
		if !placed {
			classes = append(classes, weightClass{shards: []int{shard}, box: box})
		}
	}
	return classes
}

// phase3WeightSync applies the active SyncMode's overlay. SyncBlockingCollective
// skips this phase entirely; its cost is folded in by a post-scheduling
// pass instead (see package schedule).
func (b *Builder) phase3WeightSync(ops []contract.Operator, placement Placement) {
	switch b.syncMode {
	case contract.SyncOverlapped:
		b.phase3ModeO(ops, placement)
	case contract.SyncBSP:
		b.phase3ModeBSP(ops, placement)
	case contract.SyncBlockingCollective:
		// handled post-scheduling
	default:
		panic(fmt.Sprintf("graph: unknown sync mode %v", b.syncMode))
	}
}

func (b *Builder) phase3ModeO(ops []contract.Operator, placement Placement) {
	for _, op := range ops {
		pc := b.pcFor(op, placement)
		for w := 0; w < op.NumWeights(); w++ {
			for _, class := range weightClasses(op, pc, w) {
				first := class.shards[0]
				updateDev := b.deviceFor(pc, first)
				update := b.arena.NewTask(arena.Update)
				update.Device = updateDev
				update.RunTime = 0

				for _, member := range class.shards[1:] {
					bwd, _ := b.reg.Backward(op.Identity(), member)
					b.transferChain(bwd, update, class.box.Volume())
					fb := b.finalBarrierFor(b.deviceFor(pc, member))
					b.transferChain(update, fb, class.box.Volume())
				}
			}
		}
	}
}

func (b *Builder) phase3ModeBSP(ops []contract.Operator, placement Placement) {
	// Every Backward task feeds the barrier on its own device, regardless
	// of whether its operator owns a weight.
	for _, op := range ops {
		pc := b.pcFor(op, placement)
		for j := 0; j < pc.NumParts(); j++ {
			bwd, ok := b.reg.Backward(op.Identity(), j)
			if !ok {
				continue
			}
			pb := b.preBarrierFor(bwd.Device)
			bwd.AddNext(pb)
		}
	}

	for _, op := range ops {
		pc := b.pcFor(op, placement)
		for w := 0; w < op.NumWeights(); w++ {
			for _, class := range weightClasses(op, pc, w) {
				first := class.shards[0]
				updateDev := b.deviceFor(pc, first)
				update := b.arena.NewTask(arena.Update)
				update.Device = updateDev
				update.RunTime = 0
				b.preBarrierFor(updateDev).AddNext(update)

				for _, member := range class.shards[1:] {
					memberDev := b.deviceFor(pc, member)
					pb := b.preBarrierFor(memberDev)
					b.transferChain(pb, update, class.box.Volume())
					fb := b.finalBarrierFor(memberDev)
					b.transferChain(update, fb, class.box.Volume())
				}
			}
		}
	}
}

func (b *Builder) preBarrierFor(dev *device.Handle) *arena.Task {
	if t, ok := b.preBarrier[dev]; ok {
		return t
	}
	t := b.arena.NewTask(arena.Barrier)
	t.Device = dev
	t.RunTime = 0
	b.preBarrier[dev] = t
	return t
}

func (b *Builder) finalBarrierFor(dev *device.Handle) *arena.Task {
	if t, ok := b.finalBarrier[dev]; ok {
		return t
	}
	t := b.arena.NewTask(arena.Barrier)
	t.Device = dev
	t.RunTime = 0
	b.finalBarrier[dev] = t
	return t
}

// phase4FinalBarriers ensures every compute device registered in the model
// has a final barrier, even if Phase 3 never created one for it (e.g. a device
// with no weight-bearing operator placed on it).
func (b *Builder) phase4FinalBarriers() {
	if b.compMode != contract.Training || b.syncMode == contract.SyncBlockingCollective {
		return
	}
	ids := b.model.ComputeIDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		dev := b.model.Compute(id)
		b.finalBarrierFor(dev)
	}
}

// phase5Handoff collects every task with in-degree zero as the scheduler's
// initial frontier.
func (b *Builder) phase5Handoff() *Plan {
	tasks := b.arena.Tasks()
	var frontier []*arena.Task
	for _, t := range tasks {
		if t.Counter == 0 {
			frontier = append(frontier, t)
		}
	}
	logrus.Debugf("graph: built %d tasks, %d in initial frontier", len(tasks), len(frontier))
	return &Plan{Tasks: tasks, Frontier: frontier}
}

// WeightClasses exposes the weight-overlap equivalence classing for reuse
// by the Mode C blocking-collective post-pass (package schedule), which
// needs the same all-or-nothing grouping but no task-graph edges.
func WeightClasses(op contract.Operator, pc contract.ParallelConfig, weightIdx int) [][]int {
	classes := weightClasses(op, pc, weightIdx)
	out := make([][]int, len(classes))
	for i, c := range classes {
		out[i] = c.shards
	}
	return out
}
