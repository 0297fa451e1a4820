// Package registry is the Task Registry (component C): fingerprint-indexed
// lookup of the forward and backward tasks created for each (operator,
// shard) pair, so the Graph Builder's later phases can find them again
// when wiring cross-layer and weight-synchronization edges.
//
// The fingerprint follows the polynomial-hash shape used throughout the
// original simulator for composite keys (seed 17, multiplier 31), but
// combines the operator's stable numeric Identity rather than a pointer,
// per the portability guidance in the operator contract. A genuine
// collision would silently wire an edge to the wrong task, so every
// lookup stores the real (identity, shard) pair alongside the hash and
// panics if two different keys ever map to the same fingerprint.
package registry

import (
	"fmt"

	"github.com/parasim/costsim/arena"
)

type key struct {
	identity uint64
	shard    int
}

func fingerprint(identity uint64, shard int) uint64 {
	h := uint64(17)
	h = h*31 + identity
	h = h*31 + uint64(shard)
	return h
}

type entry struct {
	key  key
	task *arena.Task
}

// Registry holds the two maps, keyed by fingerprint, for one simulation
// run. It is owned exclusively by the active Graph Builder call and is
// cleared, not reallocated, between runs.
type Registry struct {
	forward  map[uint64]entry
	backward map[uint64]entry
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		forward:  make(map[uint64]entry),
		backward: make(map[uint64]entry),
	}
}

// Reset clears both maps without deallocating their backing storage,
// mirroring Arena.Reset's cursor-rewind-not-free discipline.
func (r *Registry) Reset() {
	for k := range r.forward {
		delete(r.forward, k)
	}
	for k := range r.backward {
		delete(r.backward, k)
	}
}

func put(m map[uint64]entry, identity uint64, shard int, t *arena.Task) {
	k := key{identity, shard}
	fp := fingerprint(identity, shard)
	if existing, ok := m[fp]; ok && existing.key != k {
		panic(fmt.Sprintf("registry: fingerprint collision between (%d,%d) and (%d,%d)",
			existing.key.identity, existing.key.shard, identity, shard))
	}
	m[fp] = entry{key: k, task: t}
}

func get(m map[uint64]entry, identity uint64, shard int) (*arena.Task, bool) {
	fp := fingerprint(identity, shard)
	e, ok := m[fp]
	if !ok || e.key != (key{identity, shard}) {
		return nil, false
	}
	return e.task, true
}

// PutForward records the forward task created for (identity, shard).
func (r *Registry) PutForward(identity uint64, shard int, t *arena.Task) {
	put(r.forward, identity, shard, t)
}

// PutBackward records the backward task created for (identity, shard).
func (r *Registry) PutBackward(identity uint64, shard int, t *arena.Task) {
	put(r.backward, identity, shard, t)
}

// Forward looks up the forward task for (identity, shard).
func (r *Registry) Forward(identity uint64, shard int) (*arena.Task, bool) {
	return get(r.forward, identity, shard)
}

// Backward looks up the backward task for (identity, shard).
func (r *Registry) Backward(identity uint64, shard int) (*arena.Task, bool) {
	return get(r.backward, identity, shard)
}
