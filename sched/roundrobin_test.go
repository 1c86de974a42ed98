package sched_test

import (
	"os"
	"testing"

	"github.com/memarena/memarena/alloc"
	"github.com/memarena/memarena/region"
	"github.com/memarena/memarena/sched"
	mock_sched "github.com/memarena/memarena/sched/mocks"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/exp/slog"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout))
}

func newTestAllocator(t *testing.T, totalSize int) *alloc.FirstFitAllocator {
	t.Helper()

	allocator, err := alloc.New(testLogger(), totalSize, alloc.CreateOptions{})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, allocator.Close())
	})
	return allocator
}

func TestNewRoundRobinInvalidQuantum(t *testing.T) {
	_, err := sched.NewRoundRobin(testLogger(), 0)
	require.Error(t, err)

	_, err = sched.NewRoundRobin(testLogger(), -150)
	require.Error(t, err)
}

func TestRoundRobinFairness(t *testing.T) {
	allocator := newTestAllocator(t, 1000)

	scheduler, err := sched.NewRoundRobin(testLogger(), 150)
	require.NoError(t, err)

	task1 := &sched.Task{ID: 1, MemoryRequired: 200, ExecutionUnits: 300, Priority: sched.PriorityHigh}
	task2 := &sched.Task{ID: 2, MemoryRequired: 250, ExecutionUnits: 400, Priority: sched.PriorityHigh}
	scheduler.Enqueue(task1)
	scheduler.Enqueue(task2)
	require.Equal(t, 2, scheduler.Len())

	outcomes, err := scheduler.RunAll(allocator)
	require.NoError(t, err)
	require.Equal(t, 0, scheduler.Len())

	// 300 units at quantum 150 finishes after 2 turns; 400 units after 3. The
	// shorter task reaches its terminal state first.
	require.Equal(t, []sched.Outcome{
		{TaskID: 1, Status: sched.StatusCompleted, UnitsConsumed: 300, Turns: 2},
		{TaskID: 2, Status: sched.StatusCompleted, UnitsConsumed: 400, Turns: 3},
	}, outcomes)

	require.Equal(t, 0, task1.ExecutionUnits)
	require.Equal(t, 0, task2.ExecutionUnits)
}

func TestRoundRobinAllocationFailureDropsTask(t *testing.T) {
	allocator := newTestAllocator(t, 100)

	scheduler, err := sched.NewRoundRobin(testLogger(), 150)
	require.NoError(t, err)

	// The second task can never fit, but the blocks are released between turns so
	// the first task is unaffected.
	scheduler.Enqueue(&sched.Task{ID: 1, MemoryRequired: 80, ExecutionUnits: 300})
	scheduler.Enqueue(&sched.Task{ID: 2, MemoryRequired: 500, ExecutionUnits: 100})

	outcomes, err := scheduler.RunAll(allocator)
	require.NoError(t, err)

	require.Equal(t, []sched.Outcome{
		{TaskID: 2, Status: sched.StatusFailed, UnitsConsumed: 0, Turns: 0},
		{TaskID: 1, Status: sched.StatusCompleted, UnitsConsumed: 300, Turns: 2},
	}, outcomes)
}

func TestRoundRobinZeroUnitTask(t *testing.T) {
	allocator := newTestAllocator(t, 100)

	scheduler, err := sched.NewRoundRobin(testLogger(), 150)
	require.NoError(t, err)
	scheduler.Enqueue(&sched.Task{ID: 1, MemoryRequired: 50, ExecutionUnits: 0})

	outcomes, err := scheduler.RunAll(allocator)
	require.NoError(t, err)
	require.Equal(t, []sched.Outcome{
		{TaskID: 1, Status: sched.StatusCompleted, UnitsConsumed: 0, Turns: 1},
	}, outcomes)
}

func TestRoundRobinInvalidMemoryRequirement(t *testing.T) {
	allocator := newTestAllocator(t, 100)

	scheduler, err := sched.NewRoundRobin(testLogger(), 150)
	require.NoError(t, err)
	scheduler.Enqueue(&sched.Task{ID: 1, MemoryRequired: -10, ExecutionUnits: 100})

	_, err = scheduler.RunAll(allocator)
	require.Error(t, err)
}

func TestRoundRobinReleasesBlockEveryTurn(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAllocator := mock_sched.NewMockAllocator(ctrl)

	scheduler, err := sched.NewRoundRobin(testLogger(), 150)
	require.NoError(t, err)

	task := &sched.Task{ID: 1, MemoryRequired: 100, ExecutionUnits: 300}
	scheduler.Enqueue(task)

	// Two turns, each a full allocate/deallocate pair: memory is never held across
	// turns for a paused task.
	first := mockAllocator.EXPECT().Allocate(100, task).Return(region.BlockHandle(7), true, nil)
	firstFree := mockAllocator.EXPECT().Deallocate(region.BlockHandle(7)).Return(nil).After(first)
	second := mockAllocator.EXPECT().Allocate(100, task).Return(region.BlockHandle(9), true, nil).After(firstFree)
	mockAllocator.EXPECT().Deallocate(region.BlockHandle(9)).Return(nil).After(second)

	outcomes, err := scheduler.RunAll(mockAllocator)
	require.NoError(t, err)
	require.Equal(t, []sched.Outcome{
		{TaskID: 1, Status: sched.StatusCompleted, UnitsConsumed: 300, Turns: 2},
	}, outcomes)
}

func TestRoundRobinFailedTaskIsNotRequeued(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAllocator := mock_sched.NewMockAllocator(ctrl)

	scheduler, err := sched.NewRoundRobin(testLogger(), 150)
	require.NoError(t, err)

	task := &sched.Task{ID: 1, MemoryRequired: 100, ExecutionUnits: 300}
	scheduler.Enqueue(task)

	// A single failed allocation and nothing else: no retry, no deallocate.
	mockAllocator.EXPECT().Allocate(100, task).Return(region.NoBlock, false, nil)

	outcomes, err := scheduler.RunAll(mockAllocator)
	require.NoError(t, err)
	require.Equal(t, []sched.Outcome{
		{TaskID: 1, Status: sched.StatusFailed, UnitsConsumed: 0, Turns: 0},
	}, outcomes)
	require.Equal(t, 300, task.ExecutionUnits)
}
