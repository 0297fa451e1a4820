package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parasim/costsim/arena"
	"github.com/parasim/costsim/device"
	"github.com/parasim/costsim/schedule"
)

func TestDotFile_WriteTo_EmitsNodesAndEdges(t *testing.T) {
	// GIVEN a two-task trace with one edge between them
	a := arena.NewArena(2)
	dev := device.NewModel(1).AddCompute(0, 0, 0, 1)
	t1 := a.NewTask(arena.Forward)
	t1.Device = dev
	t1.OpLabel = "matmul"
	t2 := a.NewTask(arena.Backward)
	t2.Device = dev
	t1.AddNext(t2)
	trace := []schedule.Trace{
		{Task: t1, StartTime: 0, EndTime: 1},
		{Task: t2, StartTime: 1, EndTime: 2},
	}

	d := New()
	d.AddTrace(trace)

	var buf strings.Builder
	_, err := d.WriteTo(&buf)
	require.NoError(t, err)
	out := buf.String()

	// THEN the output names the digraph, labels the op, and draws the edge
	assert.Contains(t, out, "digraph TaskGraph")
	assert.Contains(t, out, "matmul")
	assert.Contains(t, out, "0 -> 1")
}

func TestDotFile_WriteTo_OmitsOpNameWhenAbsent(t *testing.T) {
	a := arena.NewArena(1)
	dev := device.NewModel(1).AddCompute(0, 0, 0, 1)
	comm := a.NewTask(arena.Comm)
	comm.Device = dev
	trace := []schedule.Trace{{Task: comm, StartTime: 0, EndTime: 0.5}}

	d := New()
	d.AddTrace(trace)

	var buf strings.Builder
	_, err := d.WriteTo(&buf)
	require.NoError(t, err)
	out := buf.String()

	assert.NotContains(t, out, "{ Comm | Comm", "unexpected doubled label for op-name-less task")
	assert.Contains(t, out, "Comm")
}
