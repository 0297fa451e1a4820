// Package arena is the Task Arena (component B): a fixed-capacity pool of
// pre-constructed task slots with a resettable cursor. No task outlives one
// simulation call — Reset rewinds the cursor without freeing anything, and
// edges between tasks are raw pointers into the pool valid only for the
// duration of one run, matching the original TaskManager's malloc'd array
// of reusable SimTask objects.
package arena

import (
	"fmt"

	"github.com/parasim/costsim/device"
)

// Kind is the task's scheduling role.
type Kind int

const (
	Forward Kind = iota
	Backward
	Comm
	Update
	Barrier
)

func (k Kind) String() string {
	switch k {
	case Forward:
		return "Forward"
	case Backward:
		return "Backward"
	case Comm:
		return "Comm"
	case Update:
		return "Update"
	case Barrier:
		return "Barrier"
	default:
		panic(fmt.Sprintf("arena: unknown task kind %d", k))
	}
}

// Task is one atomic scheduling unit.
type Task struct {
	Kind    Kind
	Device  *device.Handle
	RunTime float64
	OpLabel string // operator name, for export; empty for Comm/Barrier/Update

	ReadyTime  float64
	Counter    int
	Successors []*Task

	index int // allocation order; the scheduler's deterministic tie-breaker
}

// Index returns the task's allocation order within its arena. Ties in the
// scheduler's ready_time ordering break on this value so that repeated runs
// of the same strategy schedule identically (spec's determinism
// requirement; see package schedule).
func (t *Task) Index() int { return t.index }

// AddNext adds a dependency edge t -> next and increments next's
// predecessor counter, mirroring SimTask::add_next_task.
func (t *Task) AddNext(next *Task) {
	t.Successors = append(t.Successors, next)
	next.Counter++
}

// Arena is the fixed-capacity task pool.
type Arena struct {
	tasks  []Task
	cursor int
}

// NewArena allocates a pool sized for capacity tasks. Sizing correctly for
// the largest plan the caller will ever build is the caller's
// responsibility — exhaustion is a fatal configuration error, not a
// recoverable condition (spec §7 class 1).
func NewArena(capacity int) *Arena {
	return &Arena{tasks: make([]Task, capacity)}
}

// Reset rewinds the cursor to the start of the pool. It does not zero the
// pool eagerly; NewTask clears each slot's fields as it is handed out, the
// same division of labor as TaskManager::reset vs TaskManager::new_task.
func (a *Arena) Reset() { a.cursor = 0 }

// NewTask returns the next slot, with every field cleared to its zero
// value except Kind and the allocation index. Panics if the pool is
// exhausted.
func (a *Arena) NewTask(kind Kind) *Task {
	if a.cursor >= len(a.tasks) {
		panic(fmt.Sprintf("arena: exhausted task pool of capacity %d", len(a.tasks)))
	}
	t := &a.tasks[a.cursor]
	*t = Task{Kind: kind, index: a.cursor}
	a.cursor++
	return t
}

// Len returns the number of tasks allocated since the last Reset.
func (a *Arena) Len() int { return a.cursor }

// Tasks returns the slice of tasks allocated since the last Reset, in
// allocation order. The returned slice aliases the arena's storage and is
// only valid until the next Reset.
func (a *Arena) Tasks() []*Task {
	out := make([]*Task, a.cursor)
	for i := range out {
		out[i] = &a.tasks[i]
	}
	return out
}
