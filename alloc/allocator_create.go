package alloc

import (
	"github.com/memarena/memarena/internal/utils"
	"github.com/memarena/memarena/region"
	"golang.org/x/exp/slog"
)

// CreateOptions contains optional settings for a created FirstFitAllocator
type CreateOptions struct {
	// MinSplitRemainder tunes the split threshold of the underlying region: a free
	// block is only split when the leftover after the allocation would be at least
	// this large. When 0, region.DefaultMinSplitRemainder is used.
	MinSplitRemainder int
	// Synchronized guards every allocator operation with a single mutex, making the
	// whole allocate/deallocate/coalesce sequence one critical section. Leave it off
	// for single-threaded use and the locks compile down to nothing.
	Synchronized bool
}

// New creates a FirstFitAllocator managing a fresh region of totalSize units.
//
// logger - an optional *slog.Logger that will receive debug-level diagnostics for
// every allocation and free. slog.Default() is used when nil.
// totalSize - size of the managed region in units, must be positive
func New(logger *slog.Logger, totalSize int, options CreateOptions) (*FirstFitAllocator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	minSplitRemainder := options.MinSplitRemainder
	if minSplitRemainder == 0 {
		minSplitRemainder = region.DefaultMinSplitRemainder
	}

	r, err := region.New(totalSize, minSplitRemainder)
	if err != nil {
		return nil, err
	}

	return &FirstFitAllocator{
		logger: logger,
		region: r,
		mutex: utils.OptionalRWMutex{
			UseMutex: options.Synchronized,
		},
	}, nil
}
