package sim_test

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/memarena/memarena/sched"
	"github.com/memarena/memarena/sim"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout))
}

func TestRunDefaultScenario(t *testing.T) {
	report, err := sim.Run(testLogger(), nil)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, report.RunID)

	// High-priority tasks at quantum 150: 300 units finish after 2 turns, 400
	// after 3.
	require.Equal(t, []sched.Outcome{
		{TaskID: 1, Status: sched.StatusCompleted, UnitsConsumed: 300, Turns: 2},
		{TaskID: 2, Status: sched.StatusCompleted, UnitsConsumed: 400, Turns: 3},
	}, report.HighPriority)

	// Low-priority tasks run shortest first.
	require.Equal(t, []sched.Outcome{
		{TaskID: 4, Status: sched.StatusCompleted, UnitsConsumed: 200, Turns: 1},
		{TaskID: 3, Status: sched.StatusCompleted, UnitsConsumed: 500, Turns: 1},
	}, report.LowPriority)

	require.Equal(t, 0, report.FinalStats.AllocationCount)
	require.Equal(t, 1000, report.FinalStats.RegionSize)
	require.Equal(t, 1, report.FinalStats.FreeRangeCount)

	var memoryMap struct {
		TotalSize int `json:"TotalSize"`
		FreeSize  int `json:"FreeSize"`
	}
	require.NoError(t, json.Unmarshal([]byte(report.MemoryMap), &memoryMap))
	require.Equal(t, 1000, memoryMap.TotalSize)
	require.Equal(t, 1000, memoryMap.FreeSize)
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	config := sim.DefaultConfig()
	config.Quantum = 0

	_, err := sim.Run(testLogger(), config)
	require.Error(t, err)
}

func TestRunContendedScenario(t *testing.T) {
	// The pool only fits one of the low-priority tasks at a time, but blocks are
	// released after every slice so both still complete.
	config := &sim.Config{
		TotalSize: 200,
		Quantum:   100,
		Tasks: []sim.TaskConfig{
			{ID: 1, MemoryRequired: 180, ExecutionUnits: 150, Priority: "high"},
			{ID: 2, MemoryRequired: 150, ExecutionUnits: 100, Priority: "low"},
			{ID: 3, MemoryRequired: 120, ExecutionUnits: 50, Priority: "low"},
		},
	}
	require.NoError(t, config.Validate())

	report, err := sim.Run(testLogger(), config)
	require.NoError(t, err)

	require.Equal(t, []sched.Outcome{
		{TaskID: 1, Status: sched.StatusCompleted, UnitsConsumed: 150, Turns: 2},
	}, report.HighPriority)
	require.Equal(t, []sched.Outcome{
		{TaskID: 3, Status: sched.StatusCompleted, UnitsConsumed: 50, Turns: 1},
		{TaskID: 2, Status: sched.StatusCompleted, UnitsConsumed: 100, Turns: 1},
	}, report.LowPriority)
}
