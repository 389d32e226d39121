package future_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddptensor/ddpt/pkg/dtype"
	"github.com/ddptensor/ddpt/pkg/future"
)

func TestMemrefWordsRoundTrip(t *testing.T) {
	d := future.MemrefDescriptor{Handle: 42, Offset: 0, Sizes: []int64{2, 3}, Strides: []int64{3, 1}}
	words := d.Words()
	assert.Len(t, words, future.MemrefWords(2))

	got, rest, err := future.DecodeMemref(words, 2)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, d.Handle, got.Handle)
	assert.Equal(t, d.Sizes, got.Sizes)
	assert.Equal(t, d.Strides, got.Strides)
}

func TestPTensorWordsLocalVsDistributed(t *testing.T) {
	assert.Equal(t, future.MemrefWords(2), future.PTensorWords(2, false))
	assert.Equal(t, future.MemrefWords(0), future.PTensorWords(0, true))
	assert.Equal(t, 3*future.MemrefWords(2)+future.MemrefWords(1), future.PTensorWords(2, true))
}

func TestHostArrayDeliveredIsImmediatelyReady(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, 6}
	h := future.NewDeliveredHostArray(dtype.Float64, []int64{2, 3}, data)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	arr, err := h.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, arr.Shape())

	var args []uintptr
	require.NoError(t, h.AddToArgs(&args))
	assert.Len(t, args, future.MemrefWords(2))
}

func TestHostArrayGetBlocksUntilDelivered(t *testing.T) {
	h := future.NewHostArray(dtype.Int32, 1, future.Team{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := h.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	h.Deliver([]int64{3}, []future.MemrefDescriptor{{Sizes: []int64{3}, Strides: []int64{1}}})
	arr, err := h.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, arr.Shape())
}

func TestHostArrayDeliverTwicePanics(t *testing.T) {
	h := future.NewHostArray(dtype.Bool, 0, future.Team{})
	h.Deliver(nil, nil)
	assert.Panics(t, func() { h.Deliver(nil, nil) })
}
