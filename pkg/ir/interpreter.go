package ir

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/ddptensor/ddpt/pkg/membuf"
)

// ErrUnsupportedOp is returned when the interpreter meets an op mnemonic it
// does not know how to execute.
var ErrUnsupportedOp = errors.New("ir: unsupported op")

// Interpreter executes a Function against packed-ABI argument words and
// produces packed-ABI result words, in lieu of invoking real compiled
// native code (see the package doc: this is the runtime's stand-in for an
// MLIR/LLVM execution engine). It understands the handful of op mnemonics
// pkg/ops emits; any other op name is a hard error rather than a silent
// no-op, since an unrecognized op is always either a pkg/ops bug or a
// genuinely unsupported front-end extension (spec.md's UnknownDtype-style
// "fatal, don't guess" policy applies here too).
type Interpreter struct{}

// runtimeValue is what a Value id resolves to while interpreting: the data
// is a flat row-major slice. Values produced by an op use the Go type
// makeStore picks for the IR element (see makeStore below), so signedness is
// not observable at this layer, exactly as spec.md §4.3 requires of the IR
// itself; function arguments keep whatever slice their input buffer holds.
type runtimeValue struct {
	shape []int64
	data  any
}

// memrefWords mirrors future.MemrefWords. It is duplicated rather than
// imported so pkg/ir has no dependency on pkg/future: the interpreter only
// needs to understand the packed layout, not the Future/Array abstraction
// built on top of it.
func memrefWords(rank int) int { return 3 + 2*rank }

func decodeMemrefWords(words []uintptr, rank int) (handle uintptr, sizes []int64, rest []uintptr) {
	sizes = make([]int64, rank)
	for i := 0; i < rank; i++ {
		sizes[i] = int64(words[3+i])
	}
	return words[0], sizes, words[memrefWords(rank):]
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

func encodeMemrefWords(handle uintptr, shape []int64) []uintptr {
	strides := rowMajorStrides(shape)
	words := make([]uintptr, 0, memrefWords(len(shape)))
	words = append(words, handle, handle, 0)
	for _, s := range shape {
		words = append(words, uintptr(s))
	}
	for _, s := range strides {
		words = append(words, uintptr(s))
	}
	return words
}

func numElements(shape []int64) int {
	n := 1
	for _, s := range shape {
		n *= int(s)
	}
	return n
}

// makeStore allocates a zeroed flat slice of the Go type the element type
// stores as.
func makeStore(t Type, n int) any {
	switch {
	case t.Float && t.Bits == 32:
		return make([]float32, n)
	case t.Float:
		return make([]float64, n)
	case t.Bits <= 8:
		return make([]uint8, n)
	case t.Bits == 16:
		return make([]uint16, n)
	case t.Bits == 32:
		return make([]uint32, n)
	default:
		return make([]uint64, n)
	}
}

func getAsF64(data any, i int) float64 {
	switch s := data.(type) {
	case []float32:
		return float64(s[i])
	case []float64:
		return s[i]
	case []uint8:
		return float64(s[i])
	case []uint16:
		return float64(s[i])
	case []uint32:
		return float64(s[i])
	case []uint64:
		return float64(s[i])
	case []int8:
		return float64(s[i])
	case []int16:
		return float64(s[i])
	case []int32:
		return float64(s[i])
	case []int64:
		return float64(s[i])
	case []bool:
		if s[i] {
			return 1
		}
		return 0
	default:
		panic(fmt.Sprintf("ir: unsupported element store %T", data))
	}
}

func setFromF64(data any, i int, v float64) {
	switch s := data.(type) {
	case []float32:
		s[i] = float32(v)
	case []float64:
		s[i] = v
	case []uint8:
		s[i] = uint8(int64(v))
	case []uint16:
		s[i] = uint16(int64(v))
	case []uint32:
		s[i] = uint32(int64(v))
	case []uint64:
		s[i] = uint64(int64(v))
	default:
		panic(fmt.Sprintf("ir: unsupported element store %T", data))
	}
}

// Run interprets fn over argWords, the packed-ABI input words the Function
// was invoked with, and returns the packed-ABI result words in
// fn.ResultTypes order.
func (Interpreter) Run(fn *Function, argWords []uintptr) ([]uintptr, error) {
	env := make(map[int]runtimeValue, len(fn.Args)+len(fn.Ops))

	rest := argWords
	for _, a := range fn.Args {
		t := a.Type()
		if t.Kind == Scalar {
			return nil, errors.Errorf("ir: function %q: scalar arguments are not yet supported", fn.Name)
		}
		handle, shape, tail := decodeMemrefWords(rest, t.Rank)
		rest = tail
		buf := membuf.MustLookup(handle)
		env[a.id] = runtimeValue{shape: shape, data: buf.Data}
	}

	var returned []Value
	for _, op := range fn.Ops {
		if op.Name == "func.return" {
			returned = op.Operands
			break
		}
		if err := interpretOp(env, op); err != nil {
			return nil, errors.Wrapf(err, "function %q", fn.Name)
		}
	}

	var results []uintptr
	for _, rv := range returned {
		val, ok := env[rv.id]
		if !ok {
			return nil, errors.Errorf("ir: function %q: return value %%%d was never produced", fn.Name, rv.id)
		}
		handle := membuf.Alloc(val.data)
		results = append(results, encodeMemrefWords(handle, val.shape)...)
	}
	return results, nil
}

func interpretOp(env map[int]runtimeValue, op Op) error {
	switch op.Name {
	case "ddpt.arange":
		start := op.Attrs["start"].(float64)
		stop := op.Attrs["stop"].(float64)
		step := op.Attrs["step"].(float64)
		n := 0
		if step != 0 {
			n = int(math.Ceil((stop - start) / step))
			if n < 0 {
				n = 0
			}
		}
		t := op.Results[0].Type()
		data := makeStore(t, n)
		for i := 0; i < n; i++ {
			setFromF64(data, i, start+float64(i)*step)
		}
		env[op.Results[0].id] = runtimeValue{shape: []int64{int64(n)}, data: data}

	case "ddpt.full":
		shape := op.Attrs["shape"].([]int64)
		value := op.Attrs["value"].(float64)
		t := op.Results[0].Type()
		n := numElements(shape)
		data := makeStore(t, n)
		for i := 0; i < n; i++ {
			setFromF64(data, i, value)
		}
		env[op.Results[0].id] = runtimeValue{shape: shape, data: data}

	case "ddpt.add", "ddpt.sub", "ddpt.mul":
		a, ok := env[op.Operands[0].id]
		if !ok {
			return errors.Errorf("operand %%%d not computed yet", op.Operands[0].id)
		}
		b, ok := env[op.Operands[1].id]
		if !ok {
			return errors.Errorf("operand %%%d not computed yet", op.Operands[1].id)
		}
		if numElements(a.shape) != numElements(b.shape) {
			return errors.Errorf("%s: shape mismatch %v vs %v", op.Name, a.shape, b.shape)
		}
		t := op.Results[0].Type()
		n := numElements(a.shape)
		data := makeStore(t, n)
		for i := 0; i < n; i++ {
			x, y := getAsF64(a.data, i), getAsF64(b.data, i)
			var r float64
			switch op.Name {
			case "ddpt.add":
				r = x + y
			case "ddpt.sub":
				r = x - y
			case "ddpt.mul":
				r = x * y
			}
			setFromF64(data, i, r)
		}
		env[op.Results[0].id] = runtimeValue{shape: a.shape, data: data}

	case "ddpt.neg":
		a, ok := env[op.Operands[0].id]
		if !ok {
			return errors.Errorf("operand %%%d not computed yet", op.Operands[0].id)
		}
		t := op.Results[0].Type()
		n := numElements(a.shape)
		data := makeStore(t, n)
		for i := 0; i < n; i++ {
			setFromF64(data, i, -getAsF64(a.data, i))
		}
		env[op.Results[0].id] = runtimeValue{shape: a.shape, data: data}

	case "ddpt.identity":
		a, ok := env[op.Operands[0].id]
		if !ok {
			return errors.Errorf("operand %%%d not computed yet", op.Operands[0].id)
		}
		env[op.Results[0].id] = a

	default:
		return errors.Wrapf(ErrUnsupportedOp, "%q", op.Name)
	}
	return nil
}
