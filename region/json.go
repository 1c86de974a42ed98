package region

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/memarena/memarena/memcore"
)

// RegionJsonData populates a json object with this region's summary numbers and its
// full block map in ascending start order. This walks every block and is intended for
// diagnostic and visualization callers only.
func (r *Region) RegionJsonData(json jwriter.ObjectState) {
	var stats memcore.DetailedStatistics
	stats.Clear()
	r.AddDetailedStatistics(&stats)

	json.Name("TotalSize").Int(r.totalSize)
	json.Name("FreeSize").Int(r.freeBytes)
	json.Name("Allocations").Int(stats.AllocationCount)
	json.Name("FreeRanges").Int(stats.FreeRangeCount)

	arrayState := json.Name("Blocks").Array()
	defer arrayState.End()

	for b := r.head; b != nil; b = b.nextPhysical {
		obj := arrayState.Object()

		obj.Name("Start").Int(b.start)
		obj.Name("Size").Int(b.size)
		obj.Name("Free").Bool(b.free)

		obj.End()
	}
}
