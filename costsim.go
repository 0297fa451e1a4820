// Package costsim is the parallel-execution cost simulator's public
// entry point. A Simulator owns a cluster's device model and a
// Measurement Cache that persists across calls (operator cost kernels
// are immutable, so memoizing them is safe across an outer search's many
// SimulateRuntime calls); everything else — the task arena, registry, and
// per-run barriers — lives inside one call and is discarded when it
// returns.
package costsim

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/parasim/costsim/contract"
	"github.com/parasim/costsim/device"
	"github.com/parasim/costsim/export"
	"github.com/parasim/costsim/graph"
	"github.com/parasim/costsim/measure"
	"github.com/parasim/costsim/memacct"
	"github.com/parasim/costsim/schedule"
)

// DefaultArenaCapacity sizes the Task Arena generously enough for a few
// hundred operators at modest parallelism; callers running larger graphs
// should construct a Simulator with NewWithCapacity instead.
const DefaultArenaCapacity = 1 << 16

// Simulator runs SimulateRuntime calls against one fixed cluster model.
// Safe for sequential reuse across many calls; not safe for concurrent
// use (see the concurrency model: single-threaded and synchronous by
// design).
type Simulator struct {
	model    *device.Model
	cache    *measure.Cache
	capacity int
}

// New creates a Simulator over model with a fresh, empty Measurement
// Cache and the default arena capacity.
func New(model *device.Model) *Simulator {
	return NewWithCapacity(model, DefaultArenaCapacity)
}

// NewWithCapacity is New, but with an explicit Task Arena capacity —
// raise it if Build panics with a pool-exhaustion error on a large graph.
func NewWithCapacity(model *device.Model, capacity int) *Simulator {
	return &Simulator{model: model, cache: measure.New(), capacity: capacity}
}

// CacheSize reports how many distinct (operator, placement) pairs this
// Simulator's Measurement Cache has memoized so far.
func (s *Simulator) CacheSize() int { return s.cache.Len() }

// SimulateRuntime expands ops under placement into a task DAG, schedules
// it, and returns the estimated makespan in seconds including the
// memory-overflow penalty. compMode selects training or inference
// expansion; syncMode selects the weight-synchronization overlay (ignored
// in inference mode, where there is no backward pass to synchronize).
func (s *Simulator) SimulateRuntime(ops []contract.Operator, placement graph.Placement, compMode contract.CompMode, syncMode contract.SyncMode) float64 {
	return s.simulate(ops, placement, compMode, syncMode, "")
}

// SimulateRuntimeWithExport is SimulateRuntime, but additionally writes a
// Graphviz DOT rendering of the scheduled task graph to exportPath.
func (s *Simulator) SimulateRuntimeWithExport(ops []contract.Operator, placement graph.Placement, compMode contract.CompMode, syncMode contract.SyncMode, exportPath string) (float64, error) {
	cost := s.simulate(ops, placement, compMode, syncMode, exportPath)
	return cost, nil
}

func (s *Simulator) simulate(ops []contract.Operator, placement graph.Placement, compMode contract.CompMode, syncMode contract.SyncMode, exportPath string) float64 {
	builder := graph.New(s.capacity, s.model, s.cache)
	plan := builder.Build(ops, placement, compMode, syncMode)

	result := schedule.Run(plan)
	makespan := result.Makespan

	if compMode == contract.Training && syncMode == contract.SyncBlockingCollective {
		makespan += schedule.BlockingCollectivePostPass(ops, placement, s.model)
	}

	report := memacct.Tally(ops, placement, s.cache, s.model)
	if report.Penalty > 0 {
		logrus.Debugf("costsim: memory penalty %.6g seconds across %d devices", report.Penalty, len(report.Usage))
	}
	for _, u := range report.Usage {
		logrus.Debugf("costsim: device %d usage=%d capacity=%d", u.Device, u.Bytes, u.Capacity)
	}

	cost := makespan + report.Penalty

	if exportPath != "" {
		mean, stddev := memacct.UtilizationSummary(report)
		logrus.Debugf("costsim: utilization mean=%.4g stddev=%.4g across %d devices", mean, stddev, len(report.Usage))

		dot := export.New()
		dot.AddTrace(result.Trace)
		f, err := os.Create(exportPath)
		if err != nil {
			panic(err)
		}
		defer f.Close()
		if _, err := dot.WriteTo(f); err != nil {
			panic(err)
		}
	}

	return cost
}
