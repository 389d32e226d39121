// Package ops provides the illustrative front-end operations spec.md §1
// treats as external collaborators — creation, element-wise, and
// collective/control ops — each one a thin producer of a pkg/deferred.Node.
// They exist so the core (registry, scheduler, dependency manager, JIT
// engine) is exercised end to end, grounded on the DeferredCreator /
// DeferredIEWBinOp / DeferredService node shapes of the original C++
// implementation (original_source/src/Creator.cpp,
// original_source/src/include/ddptensor/IEWBinOp.hpp,
// original_source/src/Service.cpp).
package ops

import (
	"context"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/ddptensor/ddpt/pkg/deferred"
	"github.com/ddptensor/ddpt/pkg/depmgr"
	"github.com/ddptensor/ddpt/pkg/dtype"
	"github.com/ddptensor/ddpt/pkg/future"
	"github.com/ddptensor/ddpt/pkg/guid"
	"github.com/ddptensor/ddpt/pkg/ir"
	"github.com/ddptensor/ddpt/pkg/runtime"
)

func elementType(dt dtype.DType) (ir.Type, error) {
	el, err := dtype.IRElement(dt)
	if err != nil {
		return ir.Type{}, err
	}
	return ir.Type{Kind: ir.Scalar, Float: el.Float, Bits: el.Bits}, nil
}

// arangeNode grounds on DeferredFromShape/arange in Creator.cpp.
type arangeNode struct {
	g                  guid.GUID
	start, stop, step  float64
	dt                 dtype.DType
	array              *future.HostArray
}

// Arange enqueues a node that fills a fresh rank-1 array with start, start +
// step, start + 2*step, ... up to (but excluding) stop.
func Arange(rt *runtime.Runtime, start, stop, step float64, dt dtype.DType, team future.Team) future.Future {
	h := future.NewHostArray(dt, 1, team)
	g := rt.Registry.Put(h)
	n := &arangeNode{g: g, start: start, stop: stop, step: step, dt: dt, array: h}
	rt.Scheduler.Enqueue(n)
	return h
}

func (n *arangeNode) Guid() guid.GUID   { return n.g }
func (n *arangeNode) DType() dtype.DType { return n.dt }
func (n *arangeNode) Rank() int         { return 1 }
func (n *arangeNode) Balanced() bool    { return true }
func (n *arangeNode) Run(context.Context) error {
	return errors.New("ops: arange has no eager path")
}
func (n *arangeNode) FactoryID() deferred.FactoryID { return deferred.FactoryArange }

func (n *arangeNode) Emit(b *ir.FunctionBuilder, dm *depmgr.Manager) (bool, error) {
	el, err := elementType(n.dt)
	if err != nil {
		return false, err
	}
	t := ir.PTensorType(el.Float, el.Bits, 1, n.array.Team().IsDistributed(), n.array.Device() != "")
	v := b.Emit("ddpt.arange", nil, map[string]any{"start": n.start, "stop": n.stop, "step": n.step}, t)
	return false, dm.AddValue(n.g, v, n.array.Deliver)
}

// fullNode grounds on DeferredFull/ones/zeros in Creator.cpp.
type fullNode struct {
	g     guid.GUID
	shape []int64
	value float64
	dt    dtype.DType
	array *future.HostArray
}

// Full enqueues a node that fills a fresh array of shape with value.
func Full(rt *runtime.Runtime, shape []int64, value float64, dt dtype.DType, team future.Team) future.Future {
	h := future.NewHostArray(dt, len(shape), team)
	g := rt.Registry.Put(h)
	n := &fullNode{g: g, shape: append([]int64(nil), shape...), value: value, dt: dt, array: h}
	rt.Scheduler.Enqueue(n)
	return h
}

func (n *fullNode) Guid() guid.GUID   { return n.g }
func (n *fullNode) DType() dtype.DType { return n.dt }
func (n *fullNode) Rank() int         { return len(n.shape) }
func (n *fullNode) Balanced() bool    { return true }
func (n *fullNode) Run(context.Context) error {
	return errors.New("ops: full has no eager path")
}
func (n *fullNode) FactoryID() deferred.FactoryID { return deferred.FactoryFull }

func (n *fullNode) Emit(b *ir.FunctionBuilder, dm *depmgr.Manager) (bool, error) {
	el, err := elementType(n.dt)
	if err != nil {
		return false, err
	}
	t := ir.PTensorType(el.Float, el.Bits, len(n.shape), n.array.Team().IsDistributed(), n.array.Device() != "")
	v := b.Emit("ddpt.full", nil, map[string]any{"shape": n.shape, "value": n.value}, t)
	return false, dm.AddValue(n.g, v, n.array.Deliver)
}

// binOpNode grounds on DeferredIEWBinOp.hpp's elementwise binary dispatch.
type binOpNode struct {
	g     guid.GUID
	op    string
	a, b  guid.GUID
	dt    dtype.DType
	rank  int
	array *future.HostArray
}

func newBinOp(op string, a, b future.Future, array *future.HostArray) *binOpNode {
	return &binOpNode{op: op, a: a.Guid(), b: b.Guid(), dt: array.DType(), rank: array.Rank(), array: array}
}

func (n *binOpNode) Guid() guid.GUID    { return n.g }
func (n *binOpNode) DType() dtype.DType { return n.dt }
func (n *binOpNode) Rank() int          { return n.rank }
func (n *binOpNode) Balanced() bool     { return true }
func (n *binOpNode) Run(context.Context) error {
	return errors.New("ops: binary op has no eager path")
}
func (n *binOpNode) FactoryID() deferred.FactoryID { return deferred.FactoryAdd }

func (n *binOpNode) Emit(b *ir.FunctionBuilder, dm *depmgr.Manager) (bool, error) {
	av, err := dm.GetDependent(b, n.a)
	if err != nil {
		return false, err
	}
	bv, err := dm.GetDependent(b, n.b)
	if err != nil {
		return false, err
	}
	el, err := elementType(n.dt)
	if err != nil {
		return false, err
	}
	t := ir.PTensorType(el.Float, el.Bits, n.rank, n.array.Team().IsDistributed(), n.array.Device() != "")
	v := b.Emit(n.op, []ir.Value{av, bv}, nil, t)
	return false, dm.AddValue(n.g, v, n.array.Deliver)
}

// Add enqueues a node computing a+b elementwise.
func Add(rt *runtime.Runtime, a, b future.Future) future.Future {
	return binary(rt, "ddpt.add", a, b)
}

// Sub enqueues a node computing a-b elementwise.
func Sub(rt *runtime.Runtime, a, b future.Future) future.Future {
	return binary(rt, "ddpt.sub", a, b)
}

// Mul enqueues a node computing a*b elementwise.
func Mul(rt *runtime.Runtime, a, b future.Future) future.Future {
	return binary(rt, "ddpt.mul", a, b)
}

func binary(rt *runtime.Runtime, op string, a, b future.Future) future.Future {
	h := future.NewHostArray(a.DType(), a.Rank(), a.Team())
	g := rt.Registry.Put(h)
	n := newBinOp(op, a, b, h)
	n.g = g
	rt.Scheduler.Enqueue(n)
	return h
}

// negNode grounds on DeferredIEWBinOp.hpp's unary arm.
type negNode struct {
	g     guid.GUID
	a     guid.GUID
	dt    dtype.DType
	rank  int
	array *future.HostArray
}

// Neg enqueues a node computing -a elementwise.
func Neg(rt *runtime.Runtime, a future.Future) future.Future {
	h := future.NewHostArray(a.DType(), a.Rank(), a.Team())
	g := rt.Registry.Put(h)
	n := &negNode{a: a.Guid(), dt: a.DType(), rank: a.Rank(), array: h}
	n.g = g
	rt.Scheduler.Enqueue(n)
	return h
}

func (n *negNode) Guid() guid.GUID    { return n.g }
func (n *negNode) DType() dtype.DType { return n.dt }
func (n *negNode) Rank() int          { return n.rank }
func (n *negNode) Balanced() bool     { return true }
func (n *negNode) Run(context.Context) error {
	return errors.New("ops: neg has no eager path")
}
func (n *negNode) FactoryID() deferred.FactoryID { return deferred.FactoryNeg }

func (n *negNode) Emit(b *ir.FunctionBuilder, dm *depmgr.Manager) (bool, error) {
	av, err := dm.GetDependent(b, n.a)
	if err != nil {
		return false, err
	}
	el, err := elementType(n.dt)
	if err != nil {
		return false, err
	}
	t := ir.PTensorType(el.Float, el.Bits, n.rank, n.array.Team().IsDistributed(), n.array.Device() != "")
	v := b.Emit("ddpt.neg", []ir.Value{av}, nil, t)
	return false, dm.AddValue(n.g, v, n.array.Deliver)
}

// dropNode grounds on DeferredService::drop in Service.cpp: pure
// bookkeeping against the dependency manager and registry, with no
// compiled representation and no reason to interrupt the open batch.
type dropNode struct {
	g guid.GUID
}

// Drop releases f's guid: it is removed from the registry and, if the
// current batch still references it, from the dependency manager's
// bookkeeping too. Dropping an already-dropped future is reported as an
// error by the registry, not silently ignored.
func Drop(rt *runtime.Runtime, f future.Future) {
	rt.Scheduler.Enqueue(&dropNode{g: f.Guid()})
}

func (n *dropNode) Guid() guid.GUID    { return guid.NOGUID }
func (n *dropNode) DType() dtype.DType { return dtype.Invalid }
func (n *dropNode) Rank() int          { return 0 }
func (n *dropNode) Balanced() bool     { return true }
func (n *dropNode) Run(context.Context) error { return nil }
func (n *dropNode) FactoryID() deferred.FactoryID { return deferred.FactoryDrop }

func (n *dropNode) Emit(_ *ir.FunctionBuilder, dm *depmgr.Manager) (bool, error) {
	if err := dm.Drop(n.g); err != nil {
		klog.Warningf("ops: drop guid %d: %v", n.g, err)
		return false, err
	}
	return false, nil
}

// runBarrierNode grounds on DeferredService's RUN op: a collective
// synchronization point with no compiled representation.
type runBarrierNode struct{}

// RunBarrier enqueues a control-only node that always declines JIT,
// forcing the scheduler to flush and invoke everything emitted so far
// before the barrier's (eager, here a no-op) Run executes.
func RunBarrier(rt *runtime.Runtime) {
	rt.Scheduler.Enqueue(runBarrierNode{})
}

func (runBarrierNode) Guid() guid.GUID    { return guid.NOGUID }
func (runBarrierNode) DType() dtype.DType { return dtype.Invalid }
func (runBarrierNode) Rank() int          { return 0 }
func (runBarrierNode) Balanced() bool     { return true }
func (runBarrierNode) FactoryID() deferred.FactoryID { return deferred.FactoryRunBarrier }
func (runBarrierNode) Emit(_ *ir.FunctionBuilder, _ *depmgr.Manager) (bool, error) {
	return true, nil
}
func (runBarrierNode) Run(context.Context) error {
	klog.V(2).Info("ops: run barrier")
	return nil
}

// replicateNode grounds on DeferredReplicate in Service.cpp: it imports an
// existing array by guid and produces a new handle bound to a different
// team, without itself performing any arithmetic — the interpreter lowers
// it to ddpt.identity since a real cross-team broadcast needs the
// transceiver this module treats as an opaque external collaborator
// (spec.md §1's Non-goals).
type replicateNode struct {
	g     guid.GUID
	a     guid.GUID
	dt    dtype.DType
	rank  int
	array *future.HostArray
}

// Replicate enqueues a node that rebinds a's data onto team.
func Replicate(rt *runtime.Runtime, a future.Future, team future.Team) future.Future {
	h := future.NewHostArray(a.DType(), a.Rank(), team)
	g := rt.Registry.Put(h)
	n := &replicateNode{g: g, a: a.Guid(), dt: a.DType(), rank: a.Rank(), array: h}
	rt.Scheduler.Enqueue(n)
	return h
}

func (n *replicateNode) Guid() guid.GUID    { return n.g }
func (n *replicateNode) DType() dtype.DType { return n.dt }
func (n *replicateNode) Rank() int          { return n.rank }
func (n *replicateNode) Balanced() bool     { return true }
func (n *replicateNode) Run(context.Context) error {
	return errors.New("ops: replicate has no eager path")
}
func (n *replicateNode) FactoryID() deferred.FactoryID { return deferred.FactoryReplicate }

func (n *replicateNode) Emit(b *ir.FunctionBuilder, dm *depmgr.Manager) (bool, error) {
	av, err := dm.GetDependent(b, n.a)
	if err != nil {
		return false, err
	}
	el, err := elementType(n.dt)
	if err != nil {
		return false, err
	}
	t := ir.PTensorType(el.Float, el.Bits, n.rank, n.array.Team().IsDistributed(), n.array.Device() != "")
	v := b.Emit("ddpt.identity", []ir.Value{av}, nil, t)
	return false, dm.AddValue(n.g, v, n.array.Deliver)
}
