package sched

// Priority partitions tasks between the two scheduling policies: high-priority tasks
// are driven round-robin, low-priority tasks shortest-job-first.
type Priority uint32

const (
	PriorityHigh Priority = iota
	PriorityLow
)

var priorityMapping = map[Priority]string{
	PriorityHigh: "PriorityHigh",
	PriorityLow:  "PriorityLow",
}

func (p Priority) String() string {
	return priorityMapping[p]
}

// Task is a unit of work competing for the shared memory pool. A task holds no
// memory while it is not actively running: its block is requested at the start of
// every execution slice and returned before the slice ends.
type Task struct {
	// ID identifies the task within a run; outcomes refer to tasks by it
	ID int
	// MemoryRequired is the block size the task requests before every slice
	MemoryRequired int
	// ExecutionUnits is the task's remaining execution budget in logical units. It is
	// decremented by the scheduler as the task runs; no wall-clock time is involved.
	ExecutionUnits int
	// Priority selects the scheduling policy responsible for the task
	Priority Priority
}
