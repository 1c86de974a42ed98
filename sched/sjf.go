package sched

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
	"golang.org/x/exp/slog"
)

// ShortestJobFirstScheduler drives low-priority tasks in ascending order of their
// execution budget, ties broken by ID for determinism. SJF here is non-preemptive
// and the order is computed once when RunAll begins; tasks enqueued afterwards are
// not considered until the next run.
type ShortestJobFirstScheduler struct {
	logger *slog.Logger
	tasks  []*Task
}

// NewShortestJobFirst creates a ShortestJobFirstScheduler. slog.Default() is used
// when logger is nil.
func NewShortestJobFirst(logger *slog.Logger) *ShortestJobFirstScheduler {
	if logger == nil {
		logger = slog.Default()
	}

	return &ShortestJobFirstScheduler{
		logger: logger,
	}
}

// Enqueue adds a task to the collection. Enqueue order does not affect execution
// order.
func (s *ShortestJobFirstScheduler) Enqueue(task *Task) {
	s.tasks = append(s.tasks, task)
}

// Len returns the number of tasks currently held.
func (s *ShortestJobFirstScheduler) Len() int {
	return len(s.tasks)
}

// RunAll executes every held task against the provided allocator, shortest execution
// budget first, and returns one Outcome per task in execution order. Each task runs
// its full budget in a single slice; a task whose allocation is exhausted is
// reported Failed and skipped, and the run continues with the next task.
func (s *ShortestJobFirstScheduler) RunAll(allocator Allocator) ([]Outcome, error) {
	order := make([]*Task, len(s.tasks))
	copy(order, s.tasks)
	s.tasks = nil

	slices.SortFunc(order, func(a, b *Task) bool {
		if a.ExecutionUnits != b.ExecutionUnits {
			return a.ExecutionUnits < b.ExecutionUnits
		}
		return a.ID < b.ID
	})

	outcomes := make([]Outcome, 0, len(order))

	for _, task := range order {
		handle, ok, err := allocator.Allocate(task.MemoryRequired, task)
		if err != nil {
			return outcomes, errors.Wrapf(err, "task %d carried an invalid memory requirement", task.ID)
		}
		if !ok {
			s.logger.LogAttrs(context.Background(), slog.LevelDebug, "ShortestJobFirst: allocation failed, skipping task",
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

		s.logger.LogAttrs(context.Background(), slog.LevelDebug, "ShortestJobFirst: task complete",
			slog.Int("task.id", task.ID),
			slog.Int("unitsConsumed", consumed),
		)

		err = allocator.Deallocate(handle)
		if err != nil {
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
