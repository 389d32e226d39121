// Package ir is the runtime's own compiler intermediate representation: a
// small stand-in for the MLIR modules the original system builds and lowers
// through a pass pipeline (spec.md §4.3, "JIT engine"). There is no cgo/LLVM
// toolchain available in this environment, so pkg/ir plays both roles MLIR
// would: a typed SSA representation that can be canonicalized into cache
// keys, and (via Interpreter) the thing that actually executes a compiled
// function, the same way gomlx's pure-Go simplego backend executes a graph
// without ever touching XLA.
package ir

import (
	"fmt"
	"strings"
)

// Kind distinguishes the handful of element/aggregate type shapes this IR
// needs. Real MLIR has a much richer type lattice; this runtime only needs
// enough of one to carry the signless-integer rule (spec.md §4.3) and the
// packed memref/ptensor ABI (spec.md §4.4).
type Kind int

const (
	// Scalar is a signless integer or float element type.
	Scalar Kind = iota
	// Memref is a strided, rank-R view over a Scalar element type.
	Memref
	// PTensor is a distributed array: a Memref plus halo/offset structure
	// and a team attribute (spec.md §4.4).
	PTensor
)

// Type is one SSA value's or function argument/result's IR type.
type Type struct {
	Kind Kind
	// Float distinguishes integer from floating-point Scalar/element types.
	Float bool
	// Bits is the element bit width.
	Bits int
	// Rank is the number of dimensions for Memref/PTensor; 0 for Scalar and
	// for 0-rank (scalar-shaped) memrefs/ptensors.
	Rank int
	// Distributed marks a PTensor that spans a team. A 0-rank PTensor may
	// carry it too, but the ABI treats a 0-rank distributed scalar like a
	// local array (spec.md §4.4).
	Distributed bool
	// GPU marks a type resident on a device memory space rather than host.
	GPU bool
}

// ScalarType builds a signless scalar type.
func ScalarType(float bool, bits int) Type {
	return Type{Kind: Scalar, Float: float, Bits: bits}
}

// MemrefType builds a rank-r strided view over a signless element type.
func MemrefType(float bool, bits, rank int) Type {
	return Type{Kind: Memref, Float: float, Bits: bits, Rank: rank}
}

// PTensorType builds a (possibly distributed) array type. A 0-rank or
// non-distributed PTensor is ABI-identical to a Memref of the same rank;
// Kind stays PTensor so canonicalization still records the team attribute.
func PTensorType(float bool, bits, rank int, distributed, gpu bool) Type {
	return Type{Kind: PTensor, Float: float, Bits: bits, Rank: rank, Distributed: distributed, GPU: gpu}
}

// elementString renders the signless element, e.g. "f32" or "i64".
func (t Type) elementString() string {
	if t.Float {
		return fmt.Sprintf("f%d", t.Bits)
	}
	return fmt.Sprintf("i%d", t.Bits)
}

// String renders t as the canonical text CanonicalText hashes, deliberately
// terse and MLIR-flavored (e.g. "memref<?x?xf32>", "ptensor<?xi32, gpu>").
func (t Type) String() string {
	switch t.Kind {
	case Scalar:
		return t.elementString()
	case Memref:
		return fmt.Sprintf("memref<%s%s>", strings.Repeat("?x", t.Rank), t.elementString())
	case PTensor:
		attrs := ""
		if t.Distributed {
			attrs += ", distributed"
		}
		if t.GPU {
			attrs += ", gpu"
		}
		return fmt.Sprintf("ptensor<%s%s%s>", strings.Repeat("?x", t.Rank), t.elementString(), attrs)
	default:
		return "unknown"
	}
}
