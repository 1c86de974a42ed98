package region

import (
	"sync/atomic"

	cerrors "github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/memarena/memarena/memcore"
	"github.com/pkg/errors"
)

const (
	// DefaultMinSplitRemainder is the default split threshold: a free block is only
	// split when the leftover after the allocation would be at least this large.
	// Smaller leftovers are handed to the requester whole, trading a little internal
	// fragmentation for not littering the region with unusable slivers.
	DefaultMinSplitRemainder = 16
)

// Region owns the ordered block chain spanning [0, totalSize). It provides the
// first-fit search, split and coalesce primitives; allocation policy beyond the
// split threshold lives in the alloc package.
//
// A Region is not safe for concurrent use. The alloc package wraps every mutating
// call in a single critical section when asked to.
type Region struct {
	totalSize         int
	minSplitRemainder int

	allocCount int
	freeBytes  int

	nextHandle BlockHandle
	handleKey  *swiss.Map[BlockHandle, *block]
	head       *block
}

var _ memcore.Validatable = &Region{}

// New creates a Region of the given total size containing a single free block that
// spans the whole range. minSplitRemainder tunes the split threshold; pass
// DefaultMinSplitRemainder unless you have measured a reason not to. A
// minSplitRemainder of 0 splits on every allocation with any leftover at all.
func New(totalSize int, minSplitRemainder int) (*Region, error) {
	if err := memcore.CheckPositive(totalSize, "totalSize"); err != nil {
		return nil, err
	}
	if minSplitRemainder < 0 {
		return nil, cerrors.Newf("minSplitRemainder is %d, but it cannot be negative", minSplitRemainder)
	}

	r := &Region{
		totalSize:         totalSize,
		minSplitRemainder: minSplitRemainder,
		freeBytes:         totalSize,
		handleKey:         swiss.NewMap[BlockHandle, *block](42),
	}

	first := r.allocateBlock()
	first.start = 0
	first.size = totalSize
	first.free = true
	r.head = first

	return r, nil
}

func (r *Region) allocateBlock() *block {
	b := blockPool.Get().(*block)
	b.start = 0
	b.size = 0
	b.free = false
	b.prevPhysical = nil
	b.nextPhysical = nil
	b.userData = nil
	b.handle = BlockHandle(atomic.AddUint64((*uint64)(&r.nextHandle), 1))
	r.handleKey.Put(b.handle, b)
	return b
}

func (r *Region) freeBlock(b *block) {
	r.handleKey.Delete(b.handle)
	blockPool.Put(b)
}

func (r *Region) getBlock(handle BlockHandle) (*block, error) {
	b, ok := r.handleKey.Get(handle)
	if !ok {
		return nil, cerrors.Wrapf(memcore.ErrInvalidHandle, "handle %d", handle)
	}
	return b, nil
}

// TotalSize returns the size the region was created with.
func (r *Region) TotalSize() int { return r.totalSize }

// SumFreeSize returns the number of free units in the region.
func (r *Region) SumFreeSize() int { return r.freeBytes }

// AllocationCount returns the number of live allocations in the region.
func (r *Region) AllocationCount() int { return r.allocCount }

// FreeRegionsCount returns the number of distinct free blocks in the region. Because
// frees coalesce eagerly, no two free blocks are ever adjacent.
func (r *Region) FreeRegionsCount() int {
	var count int
	for b := r.head; b != nil; b = b.nextPhysical {
		if b.free {
			count++
		}
	}
	return count
}

// IsEmpty returns true if the region has no live allocations.
func (r *Region) IsEmpty() bool {
	return r.allocCount == 0
}

// FirstFreeFitting returns the handle of the first block, in ascending start order,
// that is free and at least minSize units large. The boolean result is false when no
// such block exists; running out of fitting blocks is an expected outcome, not an
// error.
func (r *Region) FirstFreeFitting(minSize int) (BlockHandle, bool) {
	for b := r.head; b != nil; b = b.nextPhysical {
		if b.free && b.size >= minSize {
			return b.handle, true
		}
	}

	return NoBlock, false
}

// Alloc commits an allocation of the requested size into the free block named by
// handle, which should have come from FirstFreeFitting. The allocation is placed at
// the low end of the block. If the leftover above the allocation is at least the
// region's split threshold, the block is split and the leftover becomes a new free
// block immediately after; otherwise the whole block is handed out and its full size
// is charged to the allocation.
func (r *Region) Alloc(handle BlockHandle, size int, userData any) error {
	if err := memcore.CheckPositive(size, "size"); err != nil {
		return err
	}

	b, err := r.getBlock(handle)
	if err != nil {
		return err
	}
	if !b.free {
		return errors.Errorf("block at start %d is not free", b.start)
	}
	if b.size < size {
		return errors.Errorf("block at start %d has size %d, too small for an allocation of %d", b.start, b.size, size)
	}

	memcore.DebugValidate(r)

	remainder := b.size - size
	if remainder > 0 && remainder >= r.minSplitRemainder {
		newBlock := r.allocateBlock()
		newBlock.start = b.start + size
		newBlock.size = remainder
		newBlock.free = true
		newBlock.prevPhysical = b
		newBlock.nextPhysical = b.nextPhysical
		if b.nextPhysical != nil {
			b.nextPhysical.prevPhysical = newBlock
		}
		b.nextPhysical = newBlock
		b.size = size
	}

	b.free = false
	b.userData = userData
	r.allocCount++
	r.freeBytes -= b.size

	memcore.DebugValidate(r)
	return nil
}

// Free releases the allocation named by handle and merges it with any free neighbor,
// predecessor first, then successor. Freeing a handle that is unknown or already free
// is caller misuse and fails with memcore.ErrInvalidHandle; it is never a silent
// no-op, so bookkeeping bugs in callers surface immediately.
func (r *Region) Free(handle BlockHandle) error {
	b, err := r.getBlock(handle)
	if err != nil {
		return err
	}
	if b.free {
		return cerrors.Wrapf(memcore.ErrInvalidHandle, "handle %d refers to a block that is already free", handle)
	}

	memcore.DebugValidate(r)

	b.free = true
	b.userData = nil
	r.allocCount--
	r.freeBytes += b.size

	if prev := b.prevPhysical; prev != nil && prev.free {
		r.mergeWithNext(prev)
		b = prev
	}

	if next := b.nextPhysical; next != nil && next.free {
		r.mergeWithNext(b)
	}

	memcore.DebugValidate(r)
	return nil
}

// mergeWithNext absorbs b's physical successor into b. The successor's record is
// dropped and its handle dies.
func (r *Region) mergeWithNext(b *block) {
	next := b.nextPhysical
	if next == nil {
		panic("cannot merge past the end of the region")
	}
	if next.start != b.start+b.size {
		panic("cannot merge blocks that are not physically adjacent")
	}

	b.size += next.size
	b.nextPhysical = next.nextPhysical
	if next.nextPhysical != nil {
		next.nextPhysical.prevPhysical = b
	}

	r.freeBlock(next)
}

// AllocationStart returns the start address of the live allocation named by handle.
func (r *Region) AllocationStart(handle BlockHandle) (int, error) {
	b, err := r.getBlock(handle)
	if err != nil {
		return 0, err
	}

	return b.start, nil
}

// AllocationSize returns the size actually charged to the live allocation named by
// handle, which may exceed the requested size when the split threshold suppressed a
// split.
func (r *Region) AllocationSize(handle BlockHandle) (int, error) {
	b, err := r.getBlock(handle)
	if err != nil {
		return 0, err
	}
	if b.free {
		return 0, cerrors.Wrapf(memcore.ErrInvalidHandle, "handle %d refers to a free block", handle)
	}

	return b.size, nil
}

// AllocationUserData returns the userData value attached to the live allocation named
// by handle.
func (r *Region) AllocationUserData(handle BlockHandle) (any, error) {
	b, err := r.getBlock(handle)
	if err != nil {
		return nil, err
	}
	if b.free {
		return nil, cerrors.Wrapf(memcore.ErrInvalidHandle, "handle %d refers to a free block", handle)
	}

	return b.userData, nil
}

// SetAllocationUserData replaces the userData value attached to the live allocation
// named by handle.
func (r *Region) SetAllocationUserData(handle BlockHandle, userData any) error {
	b, err := r.getBlock(handle)
	if err != nil {
		return err
	}
	if b.free {
		return cerrors.Wrapf(memcore.ErrInvalidHandle, "handle %d refers to a free block", handle)
	}

	b.userData = userData
	return nil
}

// VisitBlocks calls the provided callback once for every block in the region in
// ascending start order, allocated and free alike.
func (r *Region) VisitBlocks(handleBlock func(handle BlockHandle, start int, size int, userData any, free bool) error) error {
	for b := r.head; b != nil; b = b.nextPhysical {
		err := handleBlock(b.handle, b.start, b.size, b.userData, b.free)
		if err != nil {
			return err
		}
	}

	return nil
}

// Snapshot returns a point-in-time copy of the block layout in ascending start order.
// The returned slice shares no state with the region.
func (r *Region) Snapshot() []BlockInfo {
	var count int
	for b := r.head; b != nil; b = b.nextPhysical {
		count++
	}

	infos := make([]BlockInfo, 0, count)
	for b := r.head; b != nil; b = b.nextPhysical {
		infos = append(infos, BlockInfo{
			Start: b.start,
			Size:  b.size,
			Free:  b.free,
		})
	}

	return infos
}

// Validate performs internal consistency checks on the region's block chain. When the
// implementation is functioning correctly it should not be possible for this method
// to return an error, but it can assist in diagnosing issues: every mutating
// operation calls it on entry and exit under the debug_memarena build tag.
func (r *Region) Validate() error {
	if r.head == nil {
		return errors.New("region has no blocks")
	}
	if r.head.prevPhysical != nil {
		return errors.New("the head block must not have a predecessor")
	}
	if r.freeBytes > r.totalSize {
		return errors.Errorf("free size %d exceeds the region size %d", r.freeBytes, r.totalSize)
	}

	var calculatedSize, calculatedFreeSize, allocCount int
	nextStart := 0
	prevFree := false

	for b := r.head; b != nil; b = b.nextPhysical {
		if b.start != nextStart {
			return errors.Errorf("block at start %d should begin at %d, where its predecessor ends", b.start, nextStart)
		}
		if b.size <= 0 {
			return errors.Errorf("block at start %d has non-positive size %d", b.start, b.size)
		}
		if b.free && prevFree {
			return errors.Errorf("block at start %d and its predecessor are both free, they should have been merged", b.start)
		}
		if b.nextPhysical != nil && b.nextPhysical.prevPhysical != b {
			return errors.Errorf("block at start %d has a successor, but the reverse reference is broken", b.start)
		}

		registered, ok := r.handleKey.Get(b.handle)
		if !ok {
			return errors.Errorf("block at start %d is not present in the handle registry", b.start)
		}
		if registered != b {
			return errors.Errorf("the handle of the block at start %d maps to a different block", b.start)
		}

		if b.free {
			calculatedFreeSize += b.size
		} else {
			if b.userData == nil {
				return errors.Errorf("block at start %d is allocated but carries no allocation data", b.start)
			}
			allocCount++
		}

		calculatedSize += b.size
		nextStart = b.start + b.size
		prevFree = b.free
	}

	if calculatedSize != r.totalSize {
		return errors.Errorf("the region size is %d, but the blocks only added up to %d", r.totalSize, calculatedSize)
	}
	if calculatedFreeSize != r.freeBytes {
		return errors.Errorf("the region's free size is %d, but the free blocks added up to %d", r.freeBytes, calculatedFreeSize)
	}
	if allocCount != r.allocCount {
		return errors.Errorf("the region's allocation count is %d, but the taken blocks only added up to %d", r.allocCount, allocCount)
	}

	return nil
}

// AddStatistics sums this region's usage numbers into the provided statistics object.
func (r *Region) AddStatistics(stats *memcore.Statistics) {
	stats.RegionSize += r.totalSize
	stats.AllocationCount += r.allocCount
	stats.AllocationBytes += r.totalSize - r.freeBytes
	stats.FreeRangeCount += r.FreeRegionsCount()
}

// AddDetailedStatistics walks every block and sums this region's usage numbers,
// including size spreads, into the provided statistics object.
func (r *Region) AddDetailedStatistics(stats *memcore.DetailedStatistics) {
	stats.RegionSize += r.totalSize

	for b := r.head; b != nil; b = b.nextPhysical {
		if b.free {
			stats.AddFreeRange(b.size)
		} else {
			stats.AddAllocation(b.size)
		}
	}
}
