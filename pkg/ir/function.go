package ir

import "github.com/pkg/errors"

// Function is one compiled entry point. Interpreter.Run invokes it with the
// packed-ABI input words only, in argument order, and returns the result
// words in ResultTypes order; no output-buffer slot precedes the inputs, and
// the caller allocates no output buffer.
type Function struct {
	Name        string
	Args        []Value
	ResultTypes []Type
	Ops         []Op
}

// FunctionBuilder assembles a Function op by op, allocating fresh SSA
// values as it goes.
type FunctionBuilder struct {
	name    string
	args    []Value
	results []Type
	ops     []Op
	nextID  int
}

// NewFunctionBuilder starts building a function named name.
func NewFunctionBuilder(name string) *FunctionBuilder {
	return &FunctionBuilder{name: name}
}

// InsertArgument declares the next packed-ABI input of type t and returns
// the Value it's bound to.
func (b *FunctionBuilder) InsertArgument(t Type) Value {
	v := Value{id: b.nextID, typ: t}
	b.nextID++
	b.args = append(b.args, v)
	return v
}

// InsertResult declares the next packed-ABI output slot of type t. Unlike
// InsertArgument, this does not allocate a Value: a result's content comes
// from whichever op output gets wired to it via Emit's returned Value in
// Return.
func (b *FunctionBuilder) InsertResult(t Type) {
	b.results = append(b.results, t)
}

// Emit appends an op over operands, producing one new SSA value of
// resultType.
func (b *FunctionBuilder) Emit(name string, operands []Value, attrs map[string]any, resultType Type) Value {
	v := Value{id: b.nextID, typ: resultType}
	b.nextID++
	b.ops = append(b.ops, Op{Name: name, Operands: operands, Attrs: attrs, Results: []Value{v}})
	return v
}

// EmitVoid appends an op with no result (e.g. a barrier).
func (b *FunctionBuilder) EmitVoid(name string, operands []Value, attrs map[string]any) {
	b.ops = append(b.ops, Op{Name: name, Operands: operands, Attrs: attrs})
}

// Return closes the function body, binding results (in declared order) to
// the given values. Their types must match the InsertResult types exactly.
func (b *FunctionBuilder) Return(results ...Value) error {
	if len(results) != len(b.results) {
		return errors.Errorf("ir: function %q declared %d results, Return got %d", b.name, len(b.results), len(results))
	}
	for i, r := range results {
		if r.typ != b.results[i] {
			return errors.Errorf("ir: function %q result %d type mismatch: declared %s, got %s", b.name, i, b.results[i], r.typ)
		}
	}
	b.ops = append(b.ops, Op{Name: "func.return", Operands: results})
	return nil
}

// Build finalizes the function.
func (b *FunctionBuilder) Build() *Function {
	return &Function{
		Name:        b.name,
		Args:        b.args,
		ResultTypes: b.results,
		Ops:         b.ops,
	}
}
