package sched

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/exp/slog"
)

// TaskSimulator is a baseline driver with no scheduling policy at all: tasks run to
// completion in FIFO order, one full slice each. It exists as a control case to
// compare the round-robin and shortest-job-first policies against.
type TaskSimulator struct {
	logger *slog.Logger
	queue  []*Task
}

// NewTaskSimulator creates a TaskSimulator. slog.Default() is used when logger is
// nil.
func NewTaskSimulator(logger *slog.Logger) *TaskSimulator {
	if logger == nil {
		logger = slog.Default()
	}

	return &TaskSimulator{
		logger: logger,
	}
}

// Enqueue appends a task to the tail of the queue.
func (s *TaskSimulator) Enqueue(task *Task) {
	s.queue = append(s.queue, task)
}

// Len returns the number of tasks currently queued.
func (s *TaskSimulator) Len() int {
	return len(s.queue)
}

// RunAll drains the queue in FIFO order against the provided allocator: allocate,
// run the full budget, deallocate, report. Tasks whose allocation is exhausted are
// reported Failed and skipped.
func (s *TaskSimulator) RunAll(allocator Allocator) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(s.queue))

	for len(s.queue) > 0 {
		task := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]

		handle, ok, err := allocator.Allocate(task.MemoryRequired, task)
		if err != nil {
			s.queue = nil
			return outcomes, errors.Wrapf(err, "task %d carried an invalid memory requirement", task.ID)
		}
		if !ok {
			s.logger.LogAttrs(context.Background(), slog.LevelDebug, "TaskSimulator: allocation failed, skipping task",
				slog.Int("task.id", task.ID),
				slog.Int("memoryRequired", task.MemoryRequired),
			)
			outcomes = append(outcomes, Outcome{
				TaskID: task.ID,
				Status: StatusFailed,
			})
			continue
		}

		consumed := task.ExecutionUnits
		task.ExecutionUnits = 0

		err = allocator.Deallocate(handle)
		if err != nil {
			s.queue = nil
			return outcomes, errors.Wrapf(err, "failed to release the block held by task %d", task.ID)
		}

		outcomes = append(outcomes, Outcome{
			TaskID:        task.ID,
			Status:        StatusCompleted,
			UnitsConsumed: consumed,
			Turns:         1,
		})
	}

	return outcomes, nil
}
