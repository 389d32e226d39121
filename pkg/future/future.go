// Package future defines the array-handle abstraction the runtime schedules
// around: a Future is a promise for an array that may not exist yet because
// the node that produces it hasn't run (spec.md §3, "Future / array handle").
// It also carries the packed-ABI memref encoding (spec.md §4.4) that the JIT
// engine invokes compiled functions with, and a reference HostArray
// implementation so the rest of the runtime is testable without a real
// accelerator backend.
package future

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ddptensor/ddpt/pkg/dtype"
	"github.com/ddptensor/ddpt/pkg/guid"
)

// ErrNotReady names the condition of an array that has not been delivered
// yet. No function in this package returns it: HostArray.Get blocks until
// delivery or until ctx is done, and HostArray.AddToArgs reports an
// undelivered array with an error of its own.
var ErrNotReady = errors.New("future: array not ready")

// Team names the process group a distributed array is partitioned across.
// The zero Team is the non-distributed ("local") team: every array handle
// that never crosses process boundaries carries it.
type Team struct {
	id string
}

// NewTeam allocates a fresh distributed team identity.
func NewTeam() Team {
	return Team{id: uuid.NewString()}
}

// IsDistributed reports whether t names an actual process group, as opposed
// to the zero Team.
func (t Team) IsDistributed() bool {
	return t.id != ""
}

// String returns the team's opaque id, or "<local>" for the zero Team.
func (t Team) String() string {
	if !t.IsDistributed() {
		return "<local>"
	}
	return t.id
}

// MemrefDescriptor is one packed-ABI memref: the allocated/aligned pointer
// words (collapsed to a single arena handle, since this runtime never
// distinguishes a base allocation from an aligned view into it), the
// element offset, and the per-dimension sizes and strides. Words() produces
// exactly the 3+2*rank uintptr slots spec.md §4.4 describes.
type MemrefDescriptor struct {
	Handle  uintptr
	Offset  int64
	Sizes   []int64
	Strides []int64
}

// MemrefWords returns the number of ABI words a rank-r memref occupies:
// allocated ptr, aligned ptr, offset, then one size and one stride per
// dimension.
func MemrefWords(rank int) int {
	return 3 + 2*rank
}

// Words flattens d into its packed-ABI word sequence.
func (d MemrefDescriptor) Words() []uintptr {
	rank := len(d.Sizes)
	words := make([]uintptr, 0, MemrefWords(rank))
	words = append(words, d.Handle, d.Handle, uintptr(d.Offset))
	for _, s := range d.Sizes {
		words = append(words, uintptr(s))
	}
	for _, s := range d.Strides {
		words = append(words, uintptr(s))
	}
	return words
}

// DecodeMemref reads one rank-r memref off the front of words and returns
// the remaining, undecoded tail.
func DecodeMemref(words []uintptr, rank int) (MemrefDescriptor, []uintptr, error) {
	n := MemrefWords(rank)
	if len(words) < n {
		return MemrefDescriptor{}, nil, errors.Errorf("future: need %d memref words for rank %d, have %d", n, rank, len(words))
	}
	d := MemrefDescriptor{
		Handle:  words[0],
		Offset:  int64(words[2]),
		Sizes:   make([]int64, rank),
		Strides: make([]int64, rank),
	}
	for i := 0; i < rank; i++ {
		d.Sizes[i] = int64(words[3+i])
		d.Strides[i] = int64(words[3+rank+i])
	}
	return d, words[n:], nil
}

// PTensorWords returns the ABI word count for a distributed array handle of
// the given rank (spec.md §4.4). Scalars and non-distributed arrays pass a
// single data memref; distributed non-scalars pass three rank-R memrefs
// (left halo, owned data, right halo) plus one rank-1 memref of local
// offsets.
func PTensorWords(rank int, distributed bool) int {
	if rank == 0 || !distributed {
		return MemrefWords(rank)
	}
	return 3*MemrefWords(rank) + MemrefWords(1)
}

// Array is a materialized, readable array: the result of a Future once its
// producing node has run.
type Array interface {
	DType() dtype.DType
	Shape() []int64
	// Buffers returns the memref descriptor(s) backing the array, in the
	// order PTensorWords' layout expects: a single descriptor for local or
	// 0-rank arrays, or [left, owned, right, offsets] for a distributed
	// non-scalar array.
	Buffers() []MemrefDescriptor
}

// Future is a promise for an Array. Every argument and return value the
// scheduler and dependency manager track is a Future (spec.md §3).
type Future interface {
	Guid() guid.GUID
	DType() dtype.DType
	Rank() int
	// Device names the execution device the array is bound to ("" means
	// host), mirroring gomlx's backend device strings.
	Device() string
	Team() Team
	// Get returns the materialized array, blocking until it is delivered or
	// ctx is cancelled.
	Get(ctx context.Context) (Array, error)
	// AddToArgs appends this future's packed-ABI words to args, in the
	// order the JIT's invocation vector expects (spec.md §4.4).
	AddToArgs(args *[]uintptr) error
}
