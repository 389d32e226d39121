package ops_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddptensor/ddpt/pkg/dtype"
	"github.com/ddptensor/ddpt/pkg/future"
	"github.com/ddptensor/ddpt/pkg/jit"
	"github.com/ddptensor/ddpt/pkg/ops"
	"github.com/ddptensor/ddpt/pkg/runtime"
)

func await(t *testing.T, f future.Future) future.Array {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	arr, err := f.Get(ctx)
	require.NoError(t, err)
	return arr
}

// TestArangeFullAddCompose is Seed Scenario S1: two locally created arrays
// combine into one sum, with no imported function arguments.
func TestArangeFullAddCompose(t *testing.T) {
	rt := runtime.NewWithConfig(jit.Config{UseCache: true, OptLevel: 3})
	defer rt.Finalize()

	a := ops.Arange(rt, 0, 10, 1, dtype.Int64, future.Team{})
	b := ops.Full(rt, []int64{10}, 1, dtype.Int64, future.Team{})
	c := ops.Add(rt, a, b)
	ops.Drop(rt, a)
	ops.Drop(rt, b)
	ops.RunBarrier(rt)

	arr := await(t, c)
	assert.Equal(t, []int64{10}, arr.Shape())
	buf := arr.Buffers()
	require.Len(t, buf, 1)
	got := buf[0]
	assert.Equal(t, []int64{1}, got.Strides)
}

// TestNegOnExternalInput is Seed Scenario S2: an already-registered array is
// pulled into the function as exactly one argument.
func TestNegOnExternalInput(t *testing.T) {
	rt := runtime.NewWithConfig(jit.Config{UseCache: true, OptLevel: 3})
	defer rt.Finalize()

	x := future.NewDeliveredHostArray(dtype.Float32, []int64{2, 2}, []float32{1, 2, 3, 4})
	rt.Registry.Put(x)

	y := ops.Neg(rt, x)
	ops.RunBarrier(rt)

	arr := await(t, y)
	assert.Equal(t, []int64{2, 2}, arr.Shape())
}

// TestNegOnTwoExternalInputs exercises a batch with two distinct external
// dependencies pulled in via GetDependent, each followed by its own op
// before the next import happens: node1's import then its ddpt.neg, then
// node2's import then its ddpt.neg. This is the interleaving that requires
// the interpreter to bind arguments by their actual SSA id rather than by
// position in the argument list.
func TestNegOnTwoExternalInputs(t *testing.T) {
	rt := runtime.NewWithConfig(jit.Config{UseCache: true, OptLevel: 3})
	defer rt.Finalize()

	x1 := future.NewDeliveredHostArray(dtype.Float32, []int64{2}, []float32{1, 2})
	rt.Registry.Put(x1)
	x2 := future.NewDeliveredHostArray(dtype.Float32, []int64{3}, []float32{10, 20, 30})
	rt.Registry.Put(x2)

	y1 := ops.Neg(rt, x1)
	y2 := ops.Neg(rt, x2)
	ops.RunBarrier(rt)

	arr1 := await(t, y1)
	assert.Equal(t, []int64{2}, arr1.Shape())
	arr2 := await(t, y2)
	assert.Equal(t, []int64{3}, arr2.Shape())
}
