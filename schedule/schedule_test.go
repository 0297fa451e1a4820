package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/parasim/costsim/arena"
	"github.com/parasim/costsim/contract"
	"github.com/parasim/costsim/device"
	"github.com/parasim/costsim/graph"
	"github.com/parasim/costsim/region"
)

// chainWeightOp is a minimal contract.Operator whose single weight covers
// the same box on every shard, for exercising weight-equivalence classing
// without a full graph build.
type chainWeightOp struct {
	identity uint64
	name     string
	box      region.Box
}

func (o *chainWeightOp) Identity() uint64                  { return o.identity }
func (o *chainWeightOp) Name() string                      { return o.name }
func (o *chainWeightOp) NumInputs() int                     { return 0 }
func (o *chainWeightOp) Input(int) contract.Input           { return contract.Input{} }
func (o *chainWeightOp) NumWeights() int                    { return 1 }
func (o *chainWeightOp) InputTensorShape(contract.ParallelConfig, int, int) region.Box  { return region.Box{} }
func (o *chainWeightOp) OutputTensorShape(contract.ParallelConfig, int, int) region.Box { return region.Box{} }
func (o *chainWeightOp) WeightTensorShape(contract.ParallelConfig, int, int) region.Box { return o.box }
func (o *chainWeightOp) MeasureCost(contract.ParallelConfig) (contract.CostMetrics, bool) {
	return contract.CostMetrics{}, true
}

func TestRun_SingleTask_MakespanIsRunTime(t *testing.T) {
	// GIVEN a plan with one task and no dependencies
	a := arena.NewArena(1)
	dev := device.NewModel(1).AddCompute(0, 0, 0, 1)
	task := a.NewTask(arena.Forward)
	task.Device = dev
	task.RunTime = 3.5
	plan := &graph.Plan{Tasks: []*arena.Task{task}, Frontier: []*arena.Task{task}}

	// WHEN it is scheduled
	result := Run(plan)

	// THEN makespan equals the task's run time
	assert.Equal(t, 3.5, result.Makespan)
}

func TestRun_SerializesOnSameDevice(t *testing.T) {
	// GIVEN two independent tasks on the same device (no edge between them)
	a := arena.NewArena(2)
	dev := device.NewModel(1).AddCompute(0, 0, 0, 1)
	t1 := a.NewTask(arena.Forward)
	t1.Device = dev
	t1.RunTime = 2.0
	t2 := a.NewTask(arena.Forward)
	t2.Device = dev
	t2.RunTime = 3.0
	plan := &graph.Plan{Tasks: []*arena.Task{t1, t2}, Frontier: []*arena.Task{t1, t2}}

	// WHEN scheduled
	result := Run(plan)

	// THEN they serialize on the shared device: makespan is the sum
	assert.Equal(t, 5.0, result.Makespan, "serialized on one device")
}

func TestRun_DependentTasks_RespectReadyTime(t *testing.T) {
	// GIVEN t1 -> t2 on two different devices
	a := arena.NewArena(2)
	m := device.NewModel(2)
	d1 := m.AddCompute(0, 0, 0, 1)
	d2 := m.AddCompute(1, 0, 1, 1)
	t1 := a.NewTask(arena.Forward)
	t1.Device = d1
	t1.RunTime = 2.0
	t2 := a.NewTask(arena.Forward)
	t2.Device = d2
	t2.RunTime = 1.0
	t1.AddNext(t2)
	plan := &graph.Plan{Tasks: []*arena.Task{t1, t2}, Frontier: []*arena.Task{t1}}

	// WHEN scheduled
	result := Run(plan)

	// THEN t2 cannot start before t1 ends: makespan = 2 + 1 = 3
	assert.Equal(t, 3.0, result.Makespan)
}

func TestRun_DanglingPredecessor_Panics(t *testing.T) {
	// GIVEN a task that never reaches in-degree zero because its
	// predecessor was never included in Frontier or Tasks reachability
	a := arena.NewArena(2)
	dev := device.NewModel(1).AddCompute(0, 0, 0, 1)
	reachable := a.NewTask(arena.Forward)
	reachable.Device = dev
	stuck := a.NewTask(arena.Forward)
	stuck.Device = dev
	stuck.Counter = 1 // never decremented: nothing points to it in Frontier
	plan := &graph.Plan{Tasks: []*arena.Task{reachable, stuck}, Frontier: []*arena.Task{reachable}}

	assert.Panics(t, func() {
		Run(plan)
	}, "Run: expected panic when a task never reaches zero in-degree")
}

func TestRun_TieBreak_OnAllocationOrder(t *testing.T) {
	// GIVEN two tasks with identical ready_time (0) on separate devices,
	// allocated in a specific order
	a := arena.NewArena(2)
	m := device.NewModel(2)
	d1 := m.AddCompute(0, 0, 0, 1)
	d2 := m.AddCompute(1, 0, 1, 1)
	first := a.NewTask(arena.Forward) // index 0
	first.Device = d1
	first.RunTime = 1.0
	second := a.NewTask(arena.Forward) // index 1
	second.Device = d2
	second.RunTime = 1.0
	plan := &graph.Plan{Tasks: []*arena.Task{first, second}, Frontier: []*arena.Task{second, first}}

	// WHEN scheduled (Frontier order intentionally reversed)
	result := Run(plan)

	// THEN pop order follows allocation index, not Frontier order
	assert.Same(t, first, result.Trace[0].Task, "expected the lower-allocation-index task first")
}

func TestBlockingCollectivePostPass_TwoShards_AddsMaxPairwiseTransferTime(t *testing.T) {
	// GIVEN two operator shards whose weights replicate across two devices
	// with an asymmetric pair of intra-node link bandwidths
	m := device.NewModel(2)
	m.AddCompute(0, 0, 0, 1<<30)
	m.AddCompute(1, 0, 1, 1<<30)
	m.AddIntraNodeLink(0, 1, 1e6)
	m.AddIntraNodeLink(1, 0, 2e6)

	op := &chainWeightOp{identity: 1, name: "a", box: region.NewBox([]int64{0}, []int64{1000})}
	placement := graph.Placement{1: contract.ParallelConfig{DeviceKind: "gpu", Dims: []int{2}, Devices: []device.ID{0, 1}}}

	got := BlockingCollectivePostPass([]contract.Operator{op}, placement, m)

	// THEN the added cost is one transfer, not a sum over both directions:
	// each pair is costed once, over the link from the lower-index member
	// to the higher (0->1), as size*elemSize/bandwidth.
	want := (1000.0 * 4) / 1e6
	assert.InDelta(t, want, got, 1e-9)
}
