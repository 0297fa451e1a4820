package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/parasim/costsim/arena"
)

func TestRegistry_PutForward_ThenLookup(t *testing.T) {
	// GIVEN a registry with one forward task recorded
	a := arena.NewArena(1)
	task := a.NewTask(arena.Forward)
	r := New()
	r.PutForward(42, 3, task)

	// WHEN looking it up by the same (identity, shard)
	got, ok := r.Forward(42, 3)

	// THEN it resolves to the same task
	assert.True(t, ok)
	assert.Same(t, task, got)
}

func TestRegistry_Backward_MissingKey_NotFound(t *testing.T) {
	r := New()
	_, ok := r.Backward(1, 0)
	assert.False(t, ok, "Backward: expected not found for unregistered key")
}

func TestRegistry_Reset_ClearsEntries(t *testing.T) {
	a := arena.NewArena(1)
	task := a.NewTask(arena.Forward)
	r := New()
	r.PutForward(1, 0, task)

	r.Reset()

	_, ok := r.Forward(1, 0)
	assert.False(t, ok, "Reset: entry still present after reset")
}

func TestRegistry_ForwardAndBackward_AreIndependentNamespaces(t *testing.T) {
	a := arena.NewArena(2)
	fwd := a.NewTask(arena.Forward)
	bwd := a.NewTask(arena.Backward)
	r := New()
	r.PutForward(7, 1, fwd)
	r.PutBackward(7, 1, bwd)

	gotFwd, okFwd := r.Forward(7, 1)
	gotBwd, okBwd := r.Backward(7, 1)

	assert.True(t, okFwd)
	assert.Same(t, fwd, gotFwd)
	assert.True(t, okBwd)
	assert.Same(t, bwd, gotBwd)
}

func TestRegistry_SameKeyReRegistration_OverwritesWithoutPanic(t *testing.T) {
	// The collision panic fires only when two different (identity, shard)
	// keys share a fingerprint. Registering the same key twice with
	// different tasks is not a collision: it must NOT panic, and the
	// later task replaces the earlier one.
	a := arena.NewArena(2)
	t1 := a.NewTask(arena.Forward)
	t2 := a.NewTask(arena.Forward)
	r := New()
	r.PutForward(5, 0, t1)
	r.PutForward(5, 0, t2) // same key, re-registration: overwrite, no panic

	got, ok := r.Forward(5, 0)
	assert.True(t, ok)
	assert.Same(t, t2, got)
}
