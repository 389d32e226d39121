// Package depmgr implements the Dependency Manager (spec.md §4.3): the
// per-batch bookkeeping that turns a sequence of deferred nodes into one
// compiler function body, tracking which guids are already values inside
// the function (ivm), which guids need their future materialized as a
// function argument (args), and how to unpack and deliver each result once
// the compiled function actually runs.
//
// One Manager is created per open batch by pkg/deferred.Scheduler's
// OpenModule step and discarded at Dispose; it is never reused across
// batches, mirroring the original's per-JIT-call DepManager lifetime
// (original_source/src/jit/mlir.cpp).
package depmgr

import (
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"

	"github.com/ddptensor/ddpt/pkg/dtype"
	"github.com/ddptensor/ddpt/pkg/future"
	"github.com/ddptensor/ddpt/pkg/guid"
	"github.com/ddptensor/ddpt/pkg/ir"
	"github.com/ddptensor/ddpt/pkg/registry"
)

// ErrMissingDependency is returned by GetDependent when a guid is neither
// already a value in the current batch nor registered (spec.md §4.3).
var ErrMissingDependency = errors.New("depmgr: missing dependency")

// DeliveryFunc receives a result's materialized shape and packed-ABI
// buffers once the batch has run. Its signature matches
// future.HostArray.Deliver so a node's Emit can register the array's own
// Deliver method directly.
type DeliveryFunc func(shape []int64, buffers []future.MemrefDescriptor)

// ReadyFunc is fired once per batch completion for every guid that
// registered one, whether or not that guid produced a delivered result
// (spec.md §4.3: "fired post-execution regardless of whether the node
// produced a returned value").
type ReadyFunc func()

// ResultMeta is the (rank, is_distributed) pair captured at
// HandleResult time and used by Deliver to decode the flat output buffer;
// this is the Go form of the spec's irm map.
type ResultMeta struct {
	Rank        int
	Distributed bool
}

// Arg is one function-argument binding: a guid imported from the registry
// as a packed-ABI argument, plus the future.Future that will supply its
// words at StoreInputs time.
type Arg struct {
	GUID   guid.GUID
	Future future.Future
	Value  ir.Value
}

// Manager is the per-batch dependency-manager state. Its zero value is not
// usable; construct with New.
type Manager struct {
	reg *registry.Registry

	ivm      map[guid.GUID]ir.Value
	ivmOrder []guid.GUID

	args []Arg

	icm map[guid.GUID]DeliveryFunc

	icr      map[guid.GUID][]ReadyFunc
	icrOrder []guid.GUID

	irm         map[guid.GUID]ResultMeta
	resultOrder []guid.GUID
}

// New creates an empty Manager bound to reg, the process registry whose
// futures back any guid this batch imports as an argument.
func New(reg *registry.Registry) *Manager {
	return &Manager{
		reg: reg,
		ivm: make(map[guid.GUID]ir.Value),
		icm: make(map[guid.GUID]DeliveryFunc),
		icr: make(map[guid.GUID][]ReadyFunc),
		irm: make(map[guid.GUID]ResultMeta),
	}
}

// synthesizeType builds the compiler-function argument type for a future
// already registered elsewhere, per spec.md §4.3's type-synthesis rule:
// element type follows the signless mapping (pkg/dtype.IRElement), rank and
// team/device attributes come straight off the future.
func synthesizeType(f future.Future) (ir.Type, error) {
	el, err := dtype.IRElement(f.DType())
	if err != nil {
		return ir.Type{}, err
	}
	return ir.PTensorType(el.Float, el.Bits, f.Rank(), f.Team().IsDistributed(), f.Device() != ""), nil
}

// GetDependent resolves guid g to an ir.Value usable as an operand in the
// function currently under construction by b. If g is already a value in
// this batch (it was produced earlier in the same batch, or previously
// imported), its recorded value is returned. Otherwise g must be registered
// in the registry; its future is synthesized into a new function argument,
// recorded in args and ivm, and that new argument value is returned.
func (m *Manager) GetDependent(b *ir.FunctionBuilder, g guid.GUID) (ir.Value, error) {
	if v, ok := m.ivm[g]; ok {
		return v, nil
	}
	f, err := m.reg.Get(g)
	if err != nil {
		return ir.Value{}, errors.Wrapf(ErrMissingDependency, "guid %d: %v", g, err)
	}
	typ, err := synthesizeType(f)
	if err != nil {
		return ir.Value{}, errors.Wrapf(err, "depmgr: guid %d", g)
	}
	v := b.InsertArgument(typ)
	m.args = append(m.args, Arg{GUID: g, Future: f, Value: v})
	m.ivm[g] = v
	m.ivmOrder = append(m.ivmOrder, g)
	return v, nil
}

// AddValue records a freshly-produced value v for g, along with the
// delivery callback to invoke once the batch runs and delivers g's result.
// cb may be nil for nodes with no externally observable result. Calling
// AddValue twice for the same guid within a batch violates spec.md §4.3's
// "guid ∉ ivm" precondition for add_value — a node emitting the same value
// twice is a bug in the node, not recoverable caller input, so this panics
// instead of returning an error.
func (m *Manager) AddValue(g guid.GUID, v ir.Value, cb DeliveryFunc) error {
	if _, ok := m.ivm[g]; ok {
		exceptions.Panicf("depmgr: guid %d already tracked in this batch", g)
	}
	m.ivm[g] = v
	m.ivmOrder = append(m.ivmOrder, g)
	if cb != nil {
		m.icm[g] = cb
	}
	return nil
}

// AddReady registers fn to run once, after the batch completes, regardless
// of whether g ends up with a delivered result.
func (m *Manager) AddReady(g guid.GUID, fn ReadyFunc) {
	if _, ok := m.icr[g]; !ok {
		m.icrOrder = append(m.icrOrder, g)
	}
	m.icr[g] = append(m.icr[g], fn)
}

// Drop removes g from this batch's bookkeeping and from the registry. It is
// valid to drop a guid that was never tracked in this batch; registry
// removal still happens, and its result (including ErrUnknownGUID on a
// repeat drop) is returned verbatim.
func (m *Manager) Drop(g guid.GUID) error {
	delete(m.ivm, g)
	m.ivmOrder = removeGUID(m.ivmOrder, g)
	delete(m.icm, g)
	delete(m.icr, g)
	return m.reg.Del(g)
}

func removeGUID(order []guid.GUID, g guid.GUID) []guid.GUID {
	for i, o := range order {
		if o == g {
			return append(order[:i:i], order[i+1:]...)
		}
	}
	return order
}

// StoreInputs materializes every tracked argument's packed-ABI words, in
// args' insertion order, and clears their ivm entries: an argument needs no
// delivery of its own, it already exists as registered array data.
func (m *Manager) StoreInputs() ([]uintptr, error) {
	var words []uintptr
	for _, a := range m.args {
		if err := a.Future.AddToArgs(&words); err != nil {
			return nil, errors.Wrapf(err, "depmgr: guid %d", a.GUID)
		}
		delete(m.ivm, a.GUID)
		m.ivmOrder = removeGUID(m.ivmOrder, a.GUID)
	}
	return words, nil
}

// HandleResult walks the remaining ivm entries (the function's own locally
// produced values that survived to the end of the batch) in insertion
// order, appends each as a function result, records its (rank,
// is_distributed) in irm, and emits the function's return op. It returns
// 2×the exact total packed-ABI word count as the caller-allocated output
// buffer's safe upper bound (spec.md §4.3's "factor of 2 accounts for
// descriptor packing of distributed arrays"); Deliver always decodes using
// irm's exact per-result counts, never this bound.
func (m *Manager) HandleResult(b *ir.FunctionBuilder) (int, error) {
	m.resultOrder = append([]guid.GUID(nil), m.ivmOrder...)

	results := make([]ir.Value, 0, len(m.resultOrder))
	total := 0
	for _, g := range m.resultOrder {
		v := m.ivm[g]
		t := v.Type()
		dist := t.Kind == ir.PTensor && t.Distributed
		b.InsertResult(t)
		results = append(results, v)
		m.irm[g] = ResultMeta{Rank: t.Rank, Distributed: dist}
		total += future.PTensorWords(t.Rank, dist)
	}
	if err := b.Return(results...); err != nil {
		return 0, err
	}
	return 2 * total, nil
}

// Deliver walks resultOrder (the same order HandleResult used), slices the
// exact word count each result's irm entry says it needs off output, and
// invokes that guid's delivery callback with the decoded shape and
// buffers. After every result is delivered, every ready callback
// registered via AddReady fires, in registration order.
func (m *Manager) Deliver(output []uintptr) error {
	rest := output
	for _, g := range m.resultOrder {
		meta, ok := m.irm[g]
		if !ok {
			continue
		}
		n := future.PTensorWords(meta.Rank, meta.Distributed)
		if len(rest) < n {
			return errors.Errorf("depmgr: output buffer exhausted decoding guid %d (need %d words, have %d)", g, n, len(rest))
		}
		word, tail := rest[:n], rest[n:]
		rest = tail

		buffers, shape, err := decodeResult(word, meta)
		if err != nil {
			return errors.Wrapf(err, "depmgr: guid %d", g)
		}
		if cb, ok := m.icm[g]; ok {
			cb(shape, buffers)
		}
	}
	for _, g := range m.icrOrder {
		for _, fn := range m.icr[g] {
			fn()
		}
	}
	return nil
}

// decodeResult unpacks one result's packed-ABI words into its memref
// descriptor(s), per spec.md §4.4: a single descriptor for a local or
// 0-rank array, or [left-halo, owned, right-halo, local-offsets] for a
// distributed non-scalar array.
func decodeResult(words []uintptr, meta ResultMeta) ([]future.MemrefDescriptor, []int64, error) {
	if meta.Rank == 0 || !meta.Distributed {
		d, _, err := future.DecodeMemref(words, meta.Rank)
		if err != nil {
			return nil, nil, err
		}
		return []future.MemrefDescriptor{d}, d.Sizes, nil
	}

	left, rest, err := future.DecodeMemref(words, meta.Rank)
	if err != nil {
		return nil, nil, err
	}
	owned, rest, err := future.DecodeMemref(rest, meta.Rank)
	if err != nil {
		return nil, nil, err
	}
	right, rest, err := future.DecodeMemref(rest, meta.Rank)
	if err != nil {
		return nil, nil, err
	}
	offsets, _, err := future.DecodeMemref(rest, 1)
	if err != nil {
		return nil, nil, err
	}
	return []future.MemrefDescriptor{left, owned, right, offsets}, owned.Sizes, nil
}
