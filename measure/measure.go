// Package measure is the Measurement Cache (component G): the only state
// that persists across simulation runs, since operator identities and
// their cost kernels are immutable. A cache hit returns the previously
// measured CostMetrics without invoking the operator again; a miss calls
// the operator's MeasureCost and stores the result. An operator reporting
// no implementation for a placement is a fatal misconfiguration, panicked
// on rather than silently skipped.
package measure

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/parasim/costsim/contract"
)

type key struct {
	identity   uint64
	deviceKind contract.DeviceKind
	dims       string // encoded Dims, comparable and hashable as a map key
}

func encodeDims(dims []int) string {
	b := make([]byte, 0, len(dims)*8)
	for _, d := range dims {
		b = append(b, byte(d), byte(d>>8), byte(d>>16), byte(d>>24),
			byte(d>>32), byte(d>>40), byte(d>>48), byte(d>>56))
	}
	return string(b)
}

func fingerprint(identity uint64, deviceKind contract.DeviceKind, dims []int) uint64 {
	h := uint64(17)
	h = h*31 + identity
	for _, d := range dims {
		h = h*31 + uint64(d)
	}
	h = h*31 + uint64(len(deviceKind))
	return h
}

type entry struct {
	key     key
	metrics contract.CostMetrics
}

// Cache memoizes MeasureCost results by (operator identity, device-kind
// tag, partition-factor vector). It is safe to reuse across many
// SimulateRuntime calls against the same operator set, and must NOT be
// reset between runs — resetting it would defeat its purpose.
type Cache struct {
	entries map[uint64]entry
}

// New creates an empty, ready-to-use cache.
func New() *Cache {
	return &Cache{entries: make(map[uint64]entry)}
}

// Len reports the number of distinct (operator, placement) pairs measured
// so far.
func (c *Cache) Len() int { return len(c.entries) }

// Measure returns op's CostMetrics under pc, consulting the cache first.
// Panics if op has no implementation for pc, or if a fingerprint
// collision is detected against a differing key (spec §7 class 1).
func (c *Cache) Measure(op contract.Operator, pc contract.ParallelConfig) contract.CostMetrics {
	k := key{identity: op.Identity(), deviceKind: pc.DeviceKind, dims: encodeDims(pc.Dims)}
	fp := fingerprint(k.identity, k.deviceKind, pc.Dims)

	if e, ok := c.entries[fp]; ok {
		if e.key != k {
			panic(fmt.Sprintf("measure: cost-cache fingerprint collision for operator %q (identity %d)",
				op.Name(), k.identity))
		}
		return e.metrics
	}

	metrics, ok := op.MeasureCost(pc)
	if !ok {
		panic(fmt.Sprintf("measure: operator %q (identity %d) has no cost implementation for device kind %q, dims %v",
			op.Name(), k.identity, pc.DeviceKind, pc.Dims))
	}

	logrus.Debugf("measure: cache miss for operator %q dims %v, fwd=%.6g bwd=%.6g mem=%d",
		op.Name(), pc.Dims, metrics.ForwardTime, metrics.BackwardTime, metrics.MemoryRequirement)

	c.entries[fp] = entry{key: k, metrics: metrics}
	return metrics
}
