// Package guid provides the process-unique identity used for every array
// handle tracked by the runtime (spec.md §3, "Unique id (guid)").
package guid

import "sync/atomic"

// GUID is a monotonic, process-unique id, one per logical array.
type GUID uint64

// NOGUID is the reserved sentinel meaning "no array" (e.g. a node that
// produces no output).
const NOGUID GUID = 0

var counter atomic.Uint64

// New allocates a fresh, never-repeated GUID. It never returns NOGUID.
func New() GUID {
	return GUID(counter.Add(1))
}
