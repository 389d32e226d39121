// Package deferred implements the deferred-operation graph and its single
// worker: the queue front-ends push recorded operations onto, and the
// batching state machine that turns a run of queued nodes into one
// compiled function invocation (spec.md §4.2).
package deferred

import (
	"context"

	"github.com/ddptensor/ddpt/pkg/depmgr"
	"github.com/ddptensor/ddpt/pkg/dtype"
	"github.com/ddptensor/ddpt/pkg/guid"
	"github.com/ddptensor/ddpt/pkg/ir"
)

// FactoryID is a small closed enum identifying which front-end operation
// produced a Node, used only for serialization/diagnostics (spec.md §3).
// FactoryAdd stands for every elementwise binary op (add, sub and mul).
type FactoryID int

const (
	FactoryUnknown FactoryID = iota
	FactoryArange
	FactoryFull
	FactoryAdd
	FactoryNeg
	FactoryDrop
	FactoryRunBarrier
	FactoryReplicate
)

func (f FactoryID) String() string {
	switch f {
	case FactoryArange:
		return "arange"
	case FactoryFull:
		return "full"
	case FactoryAdd:
		return "add"
	case FactoryNeg:
		return "neg"
	case FactoryDrop:
		return "drop"
	case FactoryRunBarrier:
		return "run_barrier"
	case FactoryReplicate:
		return "replicate"
	default:
		return "unknown"
	}
}

// Node is a single recorded, not-yet-executed operation: a promise plus an
// emit-capability pair (spec.md §3, "Deferred node"). Front-end packages
// (pkg/ops) are the only producers of Node implementations; the scheduler
// never constructs one itself.
//
// Invariant: if Emit registers a value with the dependency manager (via
// dm.AddValue), it must also register that guid's delivery callback in the
// same call — the scheduler does not enforce this, but a Node that breaks
// it leaves its own future permanently undelivered.
type Node interface {
	// Guid is the node's own output id, or guid.NOGUID if it produces no
	// array (e.g. a barrier or a drop).
	Guid() guid.GUID
	DType() dtype.DType
	Rank() int
	// Balanced reports whether a distributed node's shards are evenly
	// sized; purely informational, not enforced by the core.
	Balanced() bool
	// Run executes the node eagerly instead of through the JIT path. Most
	// nodes never need this; it exists for non-tensor operations such as
	// barriers and for the decline-JIT fallback (spec.md §4.2 step 2).
	Run(ctx context.Context) error
	// Emit records the node's operation into the function body under
	// construction. declineJIT true means: do not include this node in the
	// compiled function at all; the scheduler must flush what's emitted so
	// far, invoke it, then call Run on this node instead.
	Emit(b *ir.FunctionBuilder, dm *depmgr.Manager) (declineJIT bool, err error)
	FactoryID() FactoryID
}
