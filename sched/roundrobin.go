package sched

import (
	"context"

	"github.com/memarena/memarena/memcore"
	"github.com/pkg/errors"
	"golang.org/x/exp/slog"
)

// rrEntry tracks one queued task's progress across its round-robin turns.
type rrEntry struct {
	task     *Task
	consumed int
	turns    int
}

// RoundRobinScheduler drives high-priority tasks in FIFO order with a fixed quantum
// of execution units per turn. Memory is contended per-turn: a task allocates its
// block at the start of each turn and always releases it before the turn ends, even
// when it has budget remaining and will be re-queued.
type RoundRobinScheduler struct {
	logger  *slog.Logger
	quantum int
	queue   []*rrEntry
}

// NewRoundRobin creates a RoundRobinScheduler with the given per-turn quantum, which
// must be positive. slog.Default() is used when logger is nil.
func NewRoundRobin(logger *slog.Logger, quantum int) (*RoundRobinScheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := memcore.CheckPositive(quantum, "quantum"); err != nil {
		return nil, err
	}

	return &RoundRobinScheduler{
		logger:  logger,
		quantum: quantum,
	}, nil
}

// Enqueue appends a task to the tail of the queue.
func (s *RoundRobinScheduler) Enqueue(task *Task) {
	s.queue = append(s.queue, &rrEntry{task: task})
}

// Len returns the number of tasks currently queued.
func (s *RoundRobinScheduler) Len() int {
	return len(s.queue)
}

// RunAll drains the queue against the provided allocator and returns one Outcome per
// task in the order tasks reached a terminal state.
//
// Each turn: the head task is popped and requests its block. If the allocation is
// exhausted the task is reported Failed and dropped, not re-queued: a task that
// cannot even start is not charged more quantum. Otherwise the task runs for
// min(remaining, quantum) units, releases its block, and is re-enqueued at the tail
// if budget remains.
//
// A non-nil error means a task carried an invalid memory requirement or the
// allocator rejected a deallocation; the outcomes collected so far are returned
// alongside it.
func (s *RoundRobinScheduler) RunAll(allocator Allocator) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(s.queue))

	for len(s.queue) > 0 {
		entry := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		task := entry.task

		handle, ok, err := allocator.Allocate(task.MemoryRequired, task)
		if err != nil {
			s.queue = nil
			return outcomes, errors.Wrapf(err, "task %d carried an invalid memory requirement", task.ID)
		}
		if !ok {
			s.logger.LogAttrs(context.Background(), slog.LevelDebug, "RoundRobin: allocation failed, dropping task",
				slog.Int("task.id", task.ID),
				slog.Int("memoryRequired", task.MemoryRequired),
			)
			outcomes = append(outcomes, Outcome{
				TaskID:        task.ID,
				Status:        StatusFailed,
				UnitsConsumed: entry.consumed,
				Turns:         entry.turns,
			})
			continue
		}

		slice := task.ExecutionUnits
		if slice > s.quantum {
			slice = s.quantum
		}
		task.ExecutionUnits -= slice
		entry.consumed += slice
		entry.turns++

		s.logger.LogAttrs(context.Background(), slog.LevelDebug, "RoundRobin: turn complete",
			slog.Int("task.id", task.ID),
			slog.Int("slice", slice),
			slog.Int("remaining", task.ExecutionUnits),
		)

		// The block is held only for the duration of the slice, never across turns.
		err = allocator.Deallocate(handle)
		if err != nil {
			s.queue = nil
			return outcomes, errors.Wrapf(err, "failed to release the block held by task %d", task.ID)
		}

		if task.ExecutionUnits > 0 {
			s.queue = append(s.queue, entry)
			continue
		}

		outcomes = append(outcomes, Outcome{
			TaskID:        task.ID,
			Status:        StatusCompleted,
			UnitsConsumed: entry.consumed,
			Turns:         entry.turns,
		})
	}

	return outcomes, nil
}
