package future

import (
	"context"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"

	"github.com/ddptensor/ddpt/pkg/dtype"
	"github.com/ddptensor/ddpt/pkg/guid"
	"github.com/ddptensor/ddpt/pkg/membuf"
)

// HostArray is the reference Future/Array implementation: plain host memory
// backed by pkg/membuf, used wherever this runtime would otherwise need a
// real accelerator buffer. It is exactly the role gomlx's pure-Go simplego
// backend plays next to its XLA/PJRT backend: the thing that makes the
// scheduler and dependency manager testable end to end without native
// compiled code.
type HostArray struct {
	g      guid.GUID
	dt     dtype.DType
	rank   int
	team   Team
	mu     sync.Mutex
	ready  chan struct{}
	closed bool

	shape   []int64
	buffers []MemrefDescriptor
	err     error
}

// NewHostArray creates an undelivered handle for a future array of the given
// dtype, rank and team. The guid is assigned separately (by the registry)
// via SetGuid, since creation and registration are distinct steps in the
// scheduler's pipeline (spec.md §4.1).
func NewHostArray(dt dtype.DType, rank int, team Team) *HostArray {
	return &HostArray{
		dt:    dt,
		rank:  rank,
		team:  team,
		ready: make(chan struct{}),
	}
}

// NewDeliveredHostArray builds an already-materialized local (non-distributed)
// array from row-major data, for external inputs and tests (spec.md §9's
// "external input pulled in" scenario).
func NewDeliveredHostArray(dt dtype.DType, shape []int64, data any) *HostArray {
	h := NewHostArray(dt, len(shape), Team{})
	strides := rowMajorStrides(shape)
	handle := membuf.Alloc(data)
	h.deliverLocked(shape, []MemrefDescriptor{{Handle: handle, Sizes: shape, Strides: strides}}, nil)
	return h
}

func rowMajorStrides(shape []int64) []int64 {
	strides := make([]int64, len(shape))
	stride := int64(1)
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	return strides
}

// SetGuid assigns the array's guid. It must be called exactly once, before
// the future is published anywhere (e.g. handed to registry.Put).
func (h *HostArray) SetGuid(g guid.GUID) {
	h.g = g
}

func (h *HostArray) Guid() guid.GUID { return h.g }
func (h *HostArray) DType() dtype.DType { return h.dt }
func (h *HostArray) Rank() int { return h.rank }
func (h *HostArray) Device() string { return "" }
func (h *HostArray) Team() Team { return h.team }

// Deliver materializes the array from the results of running its producing
// node. It is the delivery-callback target the dependency manager invokes
// (spec.md §4.3's icm/Deliver step) and may be called exactly once.
func (h *HostArray) Deliver(shape []int64, buffers []MemrefDescriptor) {
	h.deliverLocked(shape, buffers, nil)
}

// Fail delivers a terminal error instead of data, unblocking any waiter in
// Get with err.
func (h *HostArray) Fail(err error) {
	h.deliverLocked(nil, nil, err)
}

func (h *HostArray) deliverLocked(shape []int64, buffers []MemrefDescriptor, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		exceptions.Panicf("future: guid %d delivered twice", h.g)
	}
	h.shape = shape
	h.buffers = buffers
	h.err = err
	h.closed = true
	close(h.ready)
}

// Get blocks until the array is delivered or ctx is done.
func (h *HostArray) Get(ctx context.Context) (Array, error) {
	select {
	case <-h.ready:
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.err != nil {
			return nil, h.err
		}
		return h, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AddToArgs appends the array's packed-ABI words. It requires the array to
// already be delivered: the scheduler only ever builds an invocation vector
// out of futures whose producing nodes are in the same or an earlier batch.
func (h *HostArray) AddToArgs(args *[]uintptr) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		return errors.Errorf("future: guid %d has no buffers yet", h.g)
	}
	if h.err != nil {
		return h.err
	}
	for _, b := range h.buffers {
		*args = append(*args, b.Words()...)
	}
	return nil
}

// Shape implements Array.
func (h *HostArray) Shape() []int64 { return h.shape }

// Buffers implements Array.
func (h *HostArray) Buffers() []MemrefDescriptor { return h.buffers }
