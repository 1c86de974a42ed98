package alloc

import (
	"context"

	cerrors "github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/memarena/memarena/internal/utils"
	"github.com/memarena/memarena/memcore"
	"github.com/memarena/memarena/region"
	"github.com/pkg/errors"
	"golang.org/x/exp/slog"
)

// FirstFitAllocator hands out blocks from a single region using the first-fit policy:
// a request is satisfied by the first free block, in ascending address order, that is
// large enough. Exhaustion is an expected, recoverable outcome reported through the
// ok result of Allocate, never through an error.
type FirstFitAllocator struct {
	logger *slog.Logger
	mutex  utils.OptionalRWMutex

	region *region.Region
}

// allocationRecord is attached to every live block so that diagnostics can report the
// originally-requested size (which may be smaller than the block when the split
// threshold suppressed a split) and the owner the caller tagged the allocation with.
type allocationRecord struct {
	requestedSize int
	owner         any
}

// Allocate requests a block of at least size units. owner is an arbitrary value
// attached to the allocation for diagnostics; it may be nil.
//
// On success the returned handle names the allocated block and ok is true. When no
// free block fits, the handle is region.NoBlock and ok is false with a nil error;
// the caller decides whether to retry, queue, or drop. An error is returned only for
// invalid requests (non-positive size).
func (a *FirstFitAllocator) Allocate(size int, owner any) (region.BlockHandle, bool, error) {
	if err := memcore.CheckPositive(size, "size"); err != nil {
		return region.NoBlock, false, err
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()

	handle, ok := a.region.FirstFreeFitting(size)
	if !ok {
		a.logger.LogAttrs(context.Background(), slog.LevelDebug, "Allocate: no free block fits",
			slog.Int("size", size),
			slog.Int("freeSize", a.region.SumFreeSize()),
		)
		return region.NoBlock, false, nil
	}

	err := a.region.Alloc(handle, size, &allocationRecord{
		requestedSize: size,
		owner:         owner,
	})
	if err != nil {
		return region.NoBlock, false, errors.Wrap(err, "failed to commit a first-fit allocation")
	}

	start, _ := a.region.AllocationStart(handle)
	allocated, _ := a.region.AllocationSize(handle)
	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "Allocate: success",
		slog.Int("size", size),
		slog.Int("start", start),
		slog.Int("allocatedSize", allocated),
	)

	return handle, true, nil
}

// Deallocate releases the block named by handle back to the region, merging it with
// any adjacent free block. Passing a handle that is unknown or already free fails
// with memcore.ErrInvalidHandle.
func (a *FirstFitAllocator) Deallocate(handle region.BlockHandle) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	start, err := a.region.AllocationStart(handle)
	if err != nil {
		return err
	}

	err = a.region.Free(handle)
	if err != nil {
		return err
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "Deallocate: success",
		slog.Int("start", start),
	)

	return nil
}

// RequestedSize returns the size originally requested for the live allocation named
// by handle, as opposed to the (possibly larger) size the region charged for it.
func (a *FirstFitAllocator) RequestedSize(handle region.BlockHandle) (int, error) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	userData, err := a.region.AllocationUserData(handle)
	if err != nil {
		return 0, err
	}

	record, ok := userData.(*allocationRecord)
	if !ok {
		return 0, cerrors.Newf("allocation at handle %d does not carry an allocation record", handle)
	}

	return record.requestedSize, nil
}

// AllocatedSize returns the size the region charged for the live allocation named by
// handle.
func (a *FirstFitAllocator) AllocatedSize(handle region.BlockHandle) (int, error) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	return a.region.AllocationSize(handle)
}

// Snapshot returns a point-in-time copy of the region's block layout in ascending
// address order, for diagnostic and visualization callers.
func (a *FirstFitAllocator) Snapshot() []region.BlockInfo {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	return a.region.Snapshot()
}

// Statistics returns this allocator's current usage numbers.
func (a *FirstFitAllocator) Statistics() memcore.Statistics {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	var stats memcore.Statistics
	stats.Clear()
	a.region.AddStatistics(&stats)
	return stats
}

// DetailedStatistics walks every block and returns this allocator's current usage
// numbers, including allocation and free-range size spreads.
func (a *FirstFitAllocator) DetailedStatistics() memcore.DetailedStatistics {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	var stats memcore.DetailedStatistics
	stats.Clear()
	a.region.AddDetailedStatistics(&stats)
	return stats
}

// Validate performs internal consistency checks on the underlying region.
func (a *FirstFitAllocator) Validate() error {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	return a.region.Validate()
}

// BuildStatsString returns a JSON document describing the region's summary numbers
// and full block map.
func (a *FirstFitAllocator) BuildStatsString() string {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	writer := jwriter.NewWriter()
	obj := writer.Object()
	a.region.RegionJsonData(obj)
	obj.End()

	return string(writer.Bytes())
}

// Close verifies that every allocation has been released. If live allocations remain,
// each one is logged and an error is returned: leaked handles indicate a bookkeeping
// bug in the caller.
func (a *FirstFitAllocator) Close() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.region.IsEmpty() {
		return nil
	}

	err := a.region.VisitBlocks(func(handle region.BlockHandle, start int, size int, userData any, free bool) error {
		if free {
			return nil
		}

		var owner any
		if record, ok := userData.(*allocationRecord); ok {
			owner = record.owner
		}

		a.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] unfreed allocation",
			slog.Int("start", start),
			slog.Int("size", size),
			slog.Any("owner", owner),
		)
		return nil
	})
	if err != nil {
		a.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] error while iterating unreleased memory",
			slog.Any("error", err))
	}

	return errors.New("some allocations were not freed before the allocator was closed")
}
