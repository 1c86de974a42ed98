package region

import (
	"math"
	"sync"
)

// BlockHandle is a stable, opaque identifier for a single block within a Region. Handles
// remain valid across splits and merges of other blocks; a handle dies only when the
// block it names is merged away or freed back into a neighbor.
type BlockHandle uint64

const (
	// NoBlock is the BlockHandle value returned when no block could satisfy a request
	NoBlock BlockHandle = math.MaxUint64
)

// BlockInfo is a point-in-time description of a single block, used for snapshots
// handed to diagnostic and visualization callers.
type BlockInfo struct {
	Start int
	Size  int
	Free  bool
}

var blockPool = sync.Pool{
	New: func() any {
		return &block{}
	},
}

// block is a node in the region's physical chain. Blocks are kept in ascending start
// order and exactly tile [0, totalSize): each block begins where its predecessor ends.
type block struct {
	start int
	size  int
	free  bool

	prevPhysical *block
	nextPhysical *block

	userData any
	handle   BlockHandle
}
