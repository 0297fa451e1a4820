package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModel_Compute_Registered_Resolves(t *testing.T) {
	// GIVEN a model with one registered compute device
	m := NewModel(2)
	want := m.AddCompute(0, 0, 0, 1<<30)

	// WHEN Compute() is called with the same id
	got := m.Compute(0)

	// THEN it returns the same handle
	assert.Same(t, want, got)
}

func TestModel_Compute_Unregistered_Panics(t *testing.T) {
	m := NewModel(2)
	assert.Panics(t, func() {
		m.Compute(9)
	}, "Compute: expected panic for unregistered device")
}

func TestModel_IntraNodeLink_Fingerprint_Directional(t *testing.T) {
	// GIVEN links registered in both directions with different bandwidth
	m := NewModel(4)
	m.AddIntraNodeLink(0, 1, 4e9)
	m.AddIntraNodeLink(1, 0, 2e9)

	// WHEN resolving each direction
	fwd := m.IntraNodeLink(0, 1)
	rev := m.IntraNodeLink(1, 0)

	// THEN each direction resolves to its own registered bandwidth
	assert.Equal(t, 4e9, fwd.Bandwidth)
	assert.Equal(t, 2e9, rev.Bandwidth)
}

func TestModel_InterNodeLink_Unregistered_Panics(t *testing.T) {
	m := NewModel(4)
	assert.Panics(t, func() {
		m.InterNodeLink(0, 1)
	}, "InterNodeLink: expected panic for unregistered pair")
}

func TestHandle_IsCompute(t *testing.T) {
	m := NewModel(2)
	compute := m.AddCompute(0, 0, 0, 1)
	comm := m.AddGPUToDRAM(0, 1)

	assert.True(t, compute.IsCompute())
	assert.False(t, comm.IsCompute())
}

func TestModel_ComputeIDs_ReturnsAllRegistered(t *testing.T) {
	m := NewModel(4)
	m.AddCompute(0, 0, 0, 1)
	m.AddCompute(1, 0, 1, 1)

	ids := m.ComputeIDs()
	assert.Len(t, ids, 2)
}
