// Package dtype defines the closed set of element data types the runtime
// dispatches over.
//
// The full array-element type dispatch table is an external collaborator
// (spec.md §1's Non-goals) — a real deployment would wire this package up to
// whatever front-end's own richer dtype system (complex numbers, bf16/f16,
// etc.). This package only carries the 11 primitive types spec.md §6 commits
// to, and the one piece of dispatch logic that belongs to the core: mapping
// each dtype to its signless IR element, since "signedness is represented
// only in the dtype tag, never in the compiler IR type" (spec.md §4.3).
package dtype

import "github.com/pkg/errors"

// DType enumerates the closed set of supported primitive element types.
type DType int8

const (
	Invalid DType = iota
	Bool
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
)

// ErrUnknownDType is returned (or, for emit-time dispatch, the same condition
// is fatal per spec.md §7's UnknownDtype kind) when a DType value falls
// outside the closed set above.
var ErrUnknownDType = errors.New("dtype: unknown or unsupported dtype")

// String returns the canonical lower-case name of the dtype.
func (d DType) String() string {
	switch d {
	case Bool:
		return "bool"
	case Int8:
		return "int8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	case Uint32:
		return "uint32"
	case Uint64:
		return "uint64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return "invalid"
	}
}

// IsValid reports whether d is one of the 11 supported dtypes.
func (d DType) IsValid() bool {
	return d >= Bool && d <= Float64
}

// Signless is the signless IR element kind a dtype lowers to: the compiler IR
// never carries signedness, only bit width and float-vs-integer (spec.md
// §4.3's type-synthesis rule). Unsigned and signed integer dtypes of the same
// width map to the same Signless value.
type Signless struct {
	// Float is true for the two floating-point dtypes, false for bool/integers.
	Float bool
	// Bits is the element bit width (1 for Bool).
	Bits int
}

// IRElement maps d to its signless IR element type, per spec.md §4.3:
// "Unsigned widths are lowered to signless integers of matching width;
// signedness is represented only in the dtype tag, never in the compiler IR
// type."
func IRElement(d DType) (Signless, error) {
	switch d {
	case Bool:
		return Signless{Bits: 1}, nil
	case Int8, Uint8:
		return Signless{Bits: 8}, nil
	case Int16, Uint16:
		return Signless{Bits: 16}, nil
	case Int32, Uint32:
		return Signless{Bits: 32}, nil
	case Int64, Uint64:
		return Signless{Bits: 64}, nil
	case Float32:
		return Signless{Float: true, Bits: 32}, nil
	case Float64:
		return Signless{Float: true, Bits: 64}, nil
	default:
		return Signless{}, errors.Wrapf(ErrUnknownDType, "dtype tag %d", d)
	}
}

// ByteSize returns the in-memory size of one element of d.
func ByteSize(d DType) (int, error) {
	s, err := IRElement(d)
	if err != nil {
		return 0, err
	}
	bits := s.Bits
	if bits < 8 {
		bits = 8
	}
	return bits / 8, nil
}

// IsUnsigned reports whether d is one of the unsigned integer dtypes. This is
// the only place signedness is observable outside the dtype tag itself,
// exactly as spec.md §4.3 requires.
func IsUnsigned(d DType) bool {
	switch d {
	case Uint8, Uint16, Uint32, Uint64:
		return true
	default:
		return false
	}
}
