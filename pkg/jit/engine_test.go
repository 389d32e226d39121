package jit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddptensor/ddpt/pkg/ir"
	"github.com/ddptensor/ddpt/pkg/jit"
)

func buildFullModule(t *testing.T, value float64) (*ir.Module, string) {
	t.Helper()
	f32 := ir.PTensorType(true, 32, 1, false, false)
	b := ir.NewFunctionBuilder("jit_main")
	b.InsertResult(f32)
	v := b.Emit("ddpt.full", nil, map[string]any{"shape": []int64{2}, "value": value}, f32)
	require.NoError(t, b.Return(v))
	m := ir.NewModule("ddpt_module")
	m.AddFunction(b.Build())
	return m, "jit_main"
}

func TestCompileCachesIdenticalModules(t *testing.T) {
	e := jit.NewEngine(jit.Config{UseCache: true, OptLevel: 3})
	m1, _ := buildFullModule(t, 1.0)
	m2, _ := buildFullModule(t, 1.0)

	_, err := e.Compile(m1)
	require.NoError(t, err)
	_, err = e.Compile(m2)
	require.NoError(t, err)

	assert.EqualValues(t, 1, e.BuildCount())
}

func TestCompileDistinguishesDifferentModules(t *testing.T) {
	e := jit.NewEngine(jit.Config{UseCache: true, OptLevel: 3})
	m1, _ := buildFullModule(t, 1.0)
	m2, _ := buildFullModule(t, 2.0)

	_, err := e.Compile(m1)
	require.NoError(t, err)
	_, err = e.Compile(m2)
	require.NoError(t, err)

	assert.EqualValues(t, 2, e.BuildCount())
}

func TestRunBatchRejectsUnknownOp(t *testing.T) {
	e := jit.NewEngine(jit.Config{OptLevel: 3})
	f32 := ir.PTensorType(true, 32, 1, false, false)
	b := ir.NewFunctionBuilder("jit_main")
	b.InsertResult(f32)
	v := b.Emit("ddpt.mystery", nil, nil, f32)
	require.NoError(t, b.Return(v))
	m := ir.NewModule("ddpt_module")
	m.AddFunction(b.Build())

	_, err := e.RunBatch(m, "jit_main", nil)
	assert.ErrorIs(t, err, jit.ErrPassFailure)
}

func TestRunBatchLookupFailure(t *testing.T) {
	e := jit.NewEngine(jit.Config{OptLevel: 3})
	m, _ := buildFullModule(t, 1.0)
	_, err := e.RunBatch(m, "does_not_exist", nil)
	assert.ErrorIs(t, err, jit.ErrLookupFailure)
}

func TestConfigFromEnvRejectsBadOptLevel(t *testing.T) {
	t.Setenv("DDPT_OPT_LEVEL", "9")
	_, err := jit.ConfigFromEnv()
	assert.ErrorIs(t, err, jit.ErrBadEnv)
}

func TestConfigFromEnvDefaults(t *testing.T) {
	cfg, err := jit.ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.OptLevel)
	assert.True(t, cfg.UseCache)
	assert.False(t, cfg.UseGPU)
}
