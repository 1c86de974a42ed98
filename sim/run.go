package sim

import (
	"context"

	"github.com/google/uuid"
	"github.com/memarena/memarena/alloc"
	"github.com/memarena/memarena/memcore"
	"github.com/memarena/memarena/sched"
	"github.com/pkg/errors"
	"golang.org/x/exp/slog"
)

// Report is the structured result of a scenario run. All reporting is returned, not
// printed; the caller decides how to display it.
type Report struct {
	// RunID uniquely identifies this run in whatever store or display the caller
	// sends reports to
	RunID uuid.UUID

	// HighPriority holds the round-robin outcomes in terminal-state order
	HighPriority []sched.Outcome
	// LowPriority holds the shortest-job-first outcomes in execution order
	LowPriority []sched.Outcome

	// FinalStats is the allocator's usage numbers after both schedulers finished.
	// A clean run reports zero live allocations.
	FinalStats memcore.Statistics
	// MemoryMap is a JSON rendering of the final block layout
	MemoryMap string
}

// Run executes a scenario: it builds one allocator over the configured pool, drives
// the high-priority tasks through round-robin first, then the low-priority tasks
// through shortest-job-first, and returns the collected outcomes. slog.Default() is
// used when logger is nil.
func Run(logger *slog.Logger, config *Config) (*Report, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid scenario config")
	}

	allocator, err := alloc.New(logger, config.TotalSize, alloc.CreateOptions{
		MinSplitRemainder: config.MinSplitRemainder,
		Synchronized:      config.Synchronized,
	})
	if err != nil {
		return nil, err
	}

	roundRobin, err := sched.NewRoundRobin(logger, config.Quantum)
	if err != nil {
		return nil, err
	}
	shortestJobFirst := sched.NewShortestJobFirst(logger)

	for _, taskConfig := range config.Tasks {
		priority, err := taskConfig.priority()
		if err != nil {
			return nil, err
		}

		task := &sched.Task{
			ID:             taskConfig.ID,
			MemoryRequired: taskConfig.MemoryRequired,
			ExecutionUnits: taskConfig.ExecutionUnits,
			Priority:       priority,
		}

		switch priority {
		case sched.PriorityHigh:
			roundRobin.Enqueue(task)
		case sched.PriorityLow:
			shortestJobFirst.Enqueue(task)
		}
	}

	report := &Report{
		RunID: uuid.New(),
	}

	logger.LogAttrs(context.Background(), slog.LevelDebug, "Run: processing high-priority tasks",
		slog.String("run.id", report.RunID.String()),
		slog.Int("tasks", roundRobin.Len()),
	)
	report.HighPriority, err = roundRobin.RunAll(allocator)
	if err != nil {
		return nil, errors.Wrap(err, "round-robin run failed")
	}

	logger.LogAttrs(context.Background(), slog.LevelDebug, "Run: processing low-priority tasks",
		slog.String("run.id", report.RunID.String()),
		slog.Int("tasks", shortestJobFirst.Len()),
	)
	report.LowPriority, err = shortestJobFirst.RunAll(allocator)
	if err != nil {
		return nil, errors.Wrap(err, "shortest-job-first run failed")
	}

	report.FinalStats = allocator.Statistics()
	report.MemoryMap = allocator.BuildStatsString()

	// Every scheduler path releases its block before finishing a task, so a
	// non-empty allocator here means a bookkeeping bug.
	err = allocator.Close()
	if err != nil {
		return nil, err
	}

	return report, nil
}
