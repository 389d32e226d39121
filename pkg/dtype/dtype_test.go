package dtype_test

import (
	"testing"

	"github.com/ddptensor/ddpt/pkg/dtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIRElementIsSignless(t *testing.T) {
	// Every signed/unsigned pair of matching width must lower to the
	// identical signless IR element: this is Testable Property 6.
	pairs := []struct {
		signed, unsigned dtype.DType
	}{
		{dtype.Int8, dtype.Uint8},
		{dtype.Int16, dtype.Uint16},
		{dtype.Int32, dtype.Uint32},
		{dtype.Int64, dtype.Uint64},
	}
	for _, p := range pairs {
		signedEl, err := dtype.IRElement(p.signed)
		require.NoError(t, err)
		unsignedEl, err := dtype.IRElement(p.unsigned)
		require.NoError(t, err)
		assert.Equal(t, signedEl, unsignedEl)
		assert.False(t, signedEl.Float)
	}
}

func TestIRElementFloat(t *testing.T) {
	el, err := dtype.IRElement(dtype.Float64)
	require.NoError(t, err)
	assert.True(t, el.Float)
	assert.Equal(t, 64, el.Bits)
}

func TestIRElementUnknown(t *testing.T) {
	_, err := dtype.IRElement(dtype.DType(127))
	assert.ErrorIs(t, err, dtype.ErrUnknownDType)
}

func TestIsUnsigned(t *testing.T) {
	assert.True(t, dtype.IsUnsigned(dtype.Uint32))
	assert.False(t, dtype.IsUnsigned(dtype.Int32))
	assert.False(t, dtype.IsUnsigned(dtype.Float32))
}

func TestByteSize(t *testing.T) {
	sz, err := dtype.ByteSize(dtype.Int16)
	require.NoError(t, err)
	assert.Equal(t, 2, sz)

	sz, err = dtype.ByteSize(dtype.Bool)
	require.NoError(t, err)
	assert.Equal(t, 1, sz)
}
