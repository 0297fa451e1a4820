// Package memacct is the Memory Accountant (component F): it tallies each
// compute device's memory usage after scheduling and converts any
// over-budget excess into a smooth additive penalty, so a gradient-based
// outer search can feel its way out of an infeasible placement instead of
// hitting a hard constraint wall.
package memacct

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/parasim/costsim/contract"
	"github.com/parasim/costsim/device"
)

// penaltyPerByte is the smooth soft-penalty coefficient: one microsecond
// of added cost per byte of memory over a device's capacity (1s per MB).
const penaltyPerByte = 1e-6

// Usage is one device's tallied memory requirement against its capacity.
type Usage struct {
	Device   device.ID
	Bytes    int64
	Capacity int64
}

// Overage returns the bytes by which usage exceeds capacity, or 0.
func (u Usage) Overage() int64 {
	if u.Bytes > u.Capacity {
		return u.Bytes - u.Capacity
	}
	return 0
}

// Report is the outcome of tallying one run's placements: the per-device
// usage breakdown and the total penalty, in seconds, to add to the
// schedule's makespan.
type Report struct {
	Usage   []Usage
	Penalty float64
}

// Tally sums, for every operator and every shard, its placement's
// memory_requirement into the accumulator for the shard's device, then
// computes the over-budget penalty for every device the cluster model
// knows about.
func Tally(ops []contract.Operator, placement map[uint64]contract.ParallelConfig, cache measureCache, model *device.Model) Report {
	usage := make(map[device.ID]int64)
	for _, op := range ops {
		pc, ok := placement[op.Identity()]
		if !ok {
			continue
		}
		metrics := cache.Measure(op, pc)
		for _, id := range pc.Devices {
			usage[id] += metrics.MemoryRequirement
		}
	}

	ids := model.ComputeIDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	report := Report{Usage: make([]Usage, 0, len(ids))}
	for _, id := range ids {
		h := model.Compute(id)
		u := Usage{Device: id, Bytes: usage[id], Capacity: h.Capacity}
		report.Usage = append(report.Usage, u)
		report.Penalty += float64(u.Overage()) * penaltyPerByte
	}
	return report
}

// UtilizationSummary reports gonum/stat descriptive statistics (mean,
// sample standard deviation) of per-device utilization ratios
// (bytes/capacity), useful for logging how balanced a placement is
// independent of whether it breaches any single device's budget.
func UtilizationSummary(report Report) (mean, stddev float64) {
	if len(report.Usage) == 0 {
		return 0, 0
	}
	ratios := make([]float64, len(report.Usage))
	for i, u := range report.Usage {
		if u.Capacity > 0 {
			ratios[i] = float64(u.Bytes) / float64(u.Capacity)
		}
	}
	mean = stat.Mean(ratios, nil)
	stddev = stat.StdDev(ratios, nil)
	return mean, stddev
}

// measureCache is the subset of *measure.Cache's API Tally needs. Defined
// here so Tally accepts a *measure.Cache or any other implementation
// without this package importing package measure.
type measureCache interface {
	Measure(op contract.Operator, pc contract.ParallelConfig) contract.CostMetrics
}
