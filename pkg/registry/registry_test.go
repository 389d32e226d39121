package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddptensor/ddpt/pkg/dtype"
	"github.com/ddptensor/ddpt/pkg/future"
	"github.com/ddptensor/ddpt/pkg/guid"
	"github.com/ddptensor/ddpt/pkg/registry"
)

func newTestArray(t *testing.T, g guid.GUID) *future.HostArray {
	t.Helper()
	h := future.NewHostArray(dtype.Float32, 1, future.Team{})
	h.SetGuid(g)
	return h
}

func TestPutGetRoundTrip(t *testing.T) {
	r := registry.New()
	g := guid.New()
	h := newTestArray(t, g)
	r.Put(h)

	got, err := r.Get(g)
	require.NoError(t, err)
	assert.Equal(t, h, got)
	assert.Equal(t, 1, r.Len())
}

func TestGetUnknownGUID(t *testing.T) {
	r := registry.New()
	_, err := r.Get(guid.New())
	assert.ErrorIs(t, err, registry.ErrUnknownGUID)
}

func TestDropThenDropAgainIsAnError(t *testing.T) {
	r := registry.New()
	g := guid.New()
	r.Put(newTestArray(t, g))

	require.NoError(t, r.Del(g))
	err := r.Del(g)
	assert.ErrorIs(t, err, registry.ErrUnknownGUID)
}
