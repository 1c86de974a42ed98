package sched

import "github.com/memarena/memarena/region"

// TaskStatus is the terminal state of a task after a scheduler run.
type TaskStatus uint32

const (
	// StatusCompleted indicates the task consumed its full execution budget
	StatusCompleted TaskStatus = iota
	// StatusFailed indicates the task could not obtain memory and was dropped
	StatusFailed
)

var taskStatusMapping = map[TaskStatus]string{
	StatusCompleted: "Completed",
	StatusFailed:    "Failed",
}

func (s TaskStatus) String() string {
	return taskStatusMapping[s]
}

// Outcome reports what happened to a single task during a scheduler run. Schedulers
// return outcomes instead of logging: the driving caller decides how, and whether,
// to display them.
type Outcome struct {
	TaskID int
	Status TaskStatus
	// UnitsConsumed is the number of execution units the task actually ran for. A
	// task that fails on its first allocation has consumed 0; a round-robin task
	// that fails after some turns reports the units consumed up to that point.
	UnitsConsumed int
	// Turns is the number of execution slices the task was granted
	Turns int
}

// Allocator is the slice of the alloc package's surface the schedulers need. The
// owner passed to Allocate is the *Task the block is being requested for.
type Allocator interface {
	Allocate(size int, owner any) (region.BlockHandle, bool, error)
	Deallocate(handle region.BlockHandle) error
}
