// Package schedule is the Event Scheduler (component E): list scheduling
// on a min-heap keyed by task ready_time, with allocation order breaking
// ties so that repeated runs of the same strategy schedule identically.
package schedule

import (
	"container/heap"
	"fmt"

	"github.com/parasim/costsim/arena"
	"github.com/parasim/costsim/contract"
	"github.com/parasim/costsim/device"
	"github.com/parasim/costsim/graph"
)

// taskHeap implements a priority queue with deterministic ordering:
// ready_time, then allocation index.
type taskHeap struct {
	tasks []*arena.Task
}

func (h *taskHeap) Len() int { return len(h.tasks) }

func (h *taskHeap) Less(i, j int) bool {
	ti, tj := h.tasks[i], h.tasks[j]
	if ti.ReadyTime != tj.ReadyTime {
		return ti.ReadyTime < tj.ReadyTime
	}
	return ti.Index() < tj.Index()
}

func (h *taskHeap) Swap(i, j int) { h.tasks[i], h.tasks[j] = h.tasks[j], h.tasks[i] }

func (h *taskHeap) Push(x any) { h.tasks = append(h.tasks, x.(*arena.Task)) }

func (h *taskHeap) Pop() any {
	old := h.tasks
	n := len(old)
	item := old[n-1]
	h.tasks = old[0 : n-1]
	return item
}

// Trace is one scheduled task's computed timing, in the order it was
// popped off the ready heap — the order package export walks to emit the
// task graph.
type Trace struct {
	Task      *arena.Task
	StartTime float64
	EndTime   float64
}

// Result is the outcome of running the list scheduler over one Plan.
type Result struct {
	Makespan float64
	Trace    []Trace
}

// Run executes the list-scheduling loop over plan's frontier, returning
// the makespan (the time the last task finishes) and a trace of every
// task's computed start/end time in pop order. Panics if the number of
// tasks popped never reaches the number allocated — a cycle or dangling
// predecessor in the DAG the builder produced.
func Run(plan *graph.Plan) Result {
	h := &taskHeap{tasks: append([]*arena.Task(nil), plan.Frontier...)}
	heap.Init(h)

	deviceTimes := make(map[*device.Handle]float64)
	var makespan float64
	trace := make([]Trace, 0, len(plan.Tasks))

	for h.Len() > 0 {
		t := heap.Pop(h).(*arena.Task)

		start := t.ReadyTime
		if dt, ok := deviceTimes[t.Device]; ok && dt > start {
			start = dt
		}
		end := start + t.RunTime
		deviceTimes[t.Device] = end
		if end > makespan {
			makespan = end
		}
		trace = append(trace, Trace{Task: t, StartTime: start, EndTime: end})

		for _, s := range t.Successors {
			if end > s.ReadyTime {
				s.ReadyTime = end
			}
			s.Counter--
			if s.Counter == 0 {
				heap.Push(h, s)
			}
		}
	}

	if len(trace) != len(plan.Tasks) {
		panic(fmt.Sprintf("schedule: %d of %d tasks reached zero in-degree — DAG has a cycle or dangling predecessor",
			len(trace), len(plan.Tasks)))
	}
	return Result{Makespan: makespan, Trace: trace}
}

// BlockingCollectivePostPass computes the Mode C serialized-collective
// addition to the makespan: for each operator, each weight, each
// weight-overlap equivalence class, the maximum pairwise transfer time
// over every pair of distinct members (intra-node or inter-node bandwidth
// as appropriate), summed across all classes.
func BlockingCollectivePostPass(ops []contract.Operator, placement graph.Placement, model *device.Model) float64 {
	const elemSize = 4
	var total float64

	for _, op := range ops {
		pc, ok := placement[op.Identity()]
		if !ok {
			panic(fmt.Sprintf("schedule: no placement for operator %q (identity %d)", op.Name(), op.Identity()))
		}
		for w := 0; w < op.NumWeights(); w++ {
			for _, class := range graph.WeightClasses(op, pc, w) {
				if len(class) < 2 {
					continue
				}
				vol := op.WeightTensorShape(pc, w, class[0]).Volume()
				size := float64(vol) * elemSize

				var classMax float64
				for i := 0; i < len(class); i++ {
					devI := model.Compute(pc.Devices[class[i]])
					for j := i + 1; j < len(class); j++ {
						devJ := model.Compute(pc.Devices[class[j]])
						bandwidth := bandwidthBetween(model, devI, devJ)
						t := size / bandwidth
						if t > classMax {
							classMax = t
						}
					}
				}
				total += classMax
			}
		}
	}
	return total
}

func bandwidthBetween(model *device.Model, a, b *device.Handle) float64 {
	if a.Node == b.Node {
		return model.IntraNodeLink(a.Slot, b.Slot).Bandwidth
	}
	return model.InterNodeLink(a.Node, b.Node).Bandwidth
}
