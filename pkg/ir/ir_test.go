package ir_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddptensor/ddpt/pkg/ir"
	"github.com/ddptensor/ddpt/pkg/membuf"
)

func buildAddOneModule(t *testing.T) *ir.Module {
	t.Helper()
	f32 := ir.MemrefType(true, 32, 1)
	b := ir.NewFunctionBuilder("add_one")
	arg0 := b.InsertArgument(f32)
	b.InsertResult(f32)
	ones := b.Emit("ddpt.full", nil, map[string]any{"shape": []int64{3}, "value": 1.0}, f32)
	sum := b.Emit("ddpt.add", []ir.Value{arg0, ones}, nil, f32)
	require.NoError(t, b.Return(sum))

	m := ir.NewModule("m")
	m.AddFunction(b.Build())
	return m
}

func TestCanonicalTextIsDeterministic(t *testing.T) {
	m1 := buildAddOneModule(t)
	m2 := buildAddOneModule(t)
	assert.Equal(t, m1.CanonicalText(), m2.CanonicalText())
	assert.Contains(t, m1.CanonicalText(), "ddpt.add")
}

func TestInterpreterRunsAddOne(t *testing.T) {
	m := buildAddOneModule(t)
	fn := m.Lookup("add_one")
	require.NotNil(t, fn)

	input := []float32{10, 20, 30}
	handle := membuf.Alloc(input)
	argWords := []uintptr{handle, handle, 0, 3, 1}

	interp := ir.Interpreter{}
	resultWords, err := interp.Run(fn, argWords)
	require.NoError(t, err)
	require.Len(t, resultWords, 5)

	buf, ok := membuf.Lookup(resultWords[0])
	require.True(t, ok)
	out := buf.Data.([]float32)
	assert.Equal(t, []float32{11, 21, 31}, out)
}
