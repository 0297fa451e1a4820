// Package export is the optional graph-export sink: a pure-buffered
// writer that accumulates one record-shaped node per task and one edge
// per DAG dependency, flushed to Graphviz DOT format only once, at the
// end of a run. It performs no I/O mid-simulation.
package export

import (
	"fmt"
	"io"

	"github.com/parasim/costsim/schedule"
)

// DotFile accumulates node and edge records in memory and writes them as
// a single Graphviz digraph on WriteTo. Node identity is the task's
// allocation index, stable for the lifetime of one run.
type DotFile struct {
	nodes []nodeRecord
	edges [][2]int
}

type nodeRecord struct {
	index int
	label string
}

// New creates an empty DotFile.
func New() *DotFile { return &DotFile{} }

// AddTrace records one node per traced task, labeled
// "{ op_name | kind | { start | end } }" — op_name is omitted for tasks
// with no OpLabel (Comm, Barrier, and Update tasks).
func (d *DotFile) AddTrace(trace []schedule.Trace) {
	for _, tr := range trace {
		d.nodes = append(d.nodes, nodeRecord{index: tr.Task.Index(), label: recordLabel(tr)})
	}
	for _, tr := range trace {
		for _, succ := range tr.Task.Successors {
			d.edges = append(d.edges, [2]int{tr.Task.Index(), succ.Index()})
		}
	}
}

func recordLabel(tr schedule.Trace) string {
	t := tr.Task
	if t.OpLabel != "" {
		return fmt.Sprintf("{ %s | %s | { %.6g | %.6g } }", t.OpLabel, t.Kind, tr.StartTime, tr.EndTime)
	}
	return fmt.Sprintf("{ %s | { %.6g | %.6g } }", t.Kind, tr.StartTime, tr.EndTime)
}

// WriteTo flushes the accumulated graph as Graphviz DOT source.
func (d *DotFile) WriteTo(w io.Writer) (int64, error) {
	var written int64
	write := func(format string, args ...any) error {
		n, err := fmt.Fprintf(w, format, args...)
		written += int64(n)
		return err
	}

	if err := write("digraph TaskGraph {\n"); err != nil {
		return written, err
	}
	for _, n := range d.nodes {
		if err := write("  %d [shape=record, label=%q];\n", n.index, n.label); err != nil {
			return written, err
		}
	}
	for _, e := range d.edges {
		if err := write("  %d -> %d;\n", e[0], e[1]); err != nil {
			return written, err
		}
	}
	if err := write("}\n"); err != nil {
		return written, err
	}
	return written, nil
}
