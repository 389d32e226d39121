package jit

import (
	"crypto/sha1"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/ddptensor/ddpt/pkg/ir"
)

var (
	// ErrPassFailure is returned when the (simulated) pass pipeline rejects
	// a module, e.g. it contains an op the interpreter does not recognize.
	ErrPassFailure = errors.New("jit: pass pipeline failure")
	// ErrCompileFailure covers execution-engine construction failures other
	// than a pass failure (kept distinct to match spec.md §7's taxonomy).
	ErrCompileFailure = errors.New("jit: compile failure")
	// ErrLookupFailure is returned when the requested entry point is absent
	// from a compiled module.
	ErrLookupFailure = errors.New("jit: entry point not found")
	// ErrConcurrentJITAccess is returned instead of racing when two
	// goroutines try to drive the engine at once: the compiler context is
	// constructed with threading disabled, mirroring the MLIR context's
	// single-threaded invariant (spec.md §5).
	ErrConcurrentJITAccess = errors.New("jit: concurrent access to single-threaded engine")
)

// wordSize is the byte size of one packed-ABI word (a uintptr slot), used
// only to turn word counts into human-readable byte counts for logging.
const wordSize = 8

// CompiledModule is the result of a successful Compile: the validated
// module plus the pipeline it was validated against. It stands in for a
// real MLIR ExecutionEngine.
type CompiledModule struct {
	Module   *ir.Module
	Pipeline string
}

// Engine is the process-wide JIT engine (spec.md §4.4): dialect registry,
// pass pipeline, content-addressed cache, and packed invocation, backed by
// pkg/ir.Interpreter in place of real compiled code.
type Engine struct {
	cfg      Config
	passes   []string
	pipeline string

	libraries []string

	jitMu sync.Mutex // non-reentrant: models the single-threaded compiler context

	cacheMu sync.RWMutex
	cache   map[[sha1.Size]byte]*CompiledModule

	buildCount atomic.Uint64

	interp ir.Interpreter
}

// NewEngine initializes the process-wide engine from cfg: registers the
// fixed dialect set, assembles the pass pipeline, and resolves shared
// runtime library paths.
func NewEngine(cfg Config) *Engine {
	passes := buildPipeline(cfg)
	e := &Engine{
		cfg:       cfg,
		passes:    passes,
		pipeline:  pipelineString(passes),
		libraries: RuntimeLibraries(cfg),
		cache:     make(map[[sha1.Size]byte]*CompiledModule),
	}
	if cfg.Verbose >= 1 {
		klog.Infof("jit: pass pipeline: %s", e.pipeline)
	}
	_ = dialectRegistry // registered implicitly: every op this engine's interpreter knows belongs to one of these dialects.
	return e
}

// Pipeline returns the assembled pass-list string, for diagnostics.
func (e *Engine) Pipeline() string { return e.pipeline }

// RuntimeLibraryPaths returns the resolved shared-library paths (spec.md
// §4.4's "Shared libraries").
func (e *Engine) RuntimeLibraryPaths() []string { return e.libraries }

// BuildCount reports how many distinct modules have actually been compiled
// (as opposed to served from cache) — the test hook spec.md §8's Seed
// Scenario S4 calls for ("observe via a test hook counter").
func (e *Engine) BuildCount() uint64 { return e.buildCount.Load() }

// validate simulates running the pass pipeline: it rejects a module that
// contains an op no pass in this engine's pipeline knows how to lower, the
// one failure mode this interpreter-backed engine can actually detect
// without real codegen.
func (e *Engine) validate(module *ir.Module) error {
	for _, fn := range module.Functions {
		for _, op := range fn.Ops {
			if !knownOp(op.Name) {
				return errors.Wrapf(ErrPassFailure, "function %q: unrecognized op %q", fn.Name, op.Name)
			}
		}
	}
	return nil
}

func knownOp(name string) bool {
	switch name {
	case "ddpt.arange", "ddpt.full", "ddpt.add", "ddpt.sub", "ddpt.mul", "ddpt.neg", "ddpt.identity", "func.return":
		return true
	default:
		return false
	}
}

// Compile runs (simulated) Compile on module: validates it, computes the
// sha1 cache key over its pre-lowering canonical text, and reuses an
// existing CompiledModule on a hit (spec.md §4.4's "Cache is a
// process-lifetime mapping, never evicted").
func (e *Engine) Compile(module *ir.Module) (*CompiledModule, error) {
	text := module.CanonicalText()
	key := sha1.Sum([]byte(text))

	if e.cfg.UseCache {
		e.cacheMu.RLock()
		cm, ok := e.cache[key]
		e.cacheMu.RUnlock()
		if ok {
			return cm, nil
		}
	}

	if e.cfg.Verbose >= 2 {
		klog.Infof("jit: module pre-lowering:\n%s", text)
	}
	if err := e.validate(module); err != nil {
		return nil, err
	}

	cm := &CompiledModule{Module: module, Pipeline: e.pipeline}
	e.buildCount.Add(1)
	if e.cfg.UseCache {
		e.cacheMu.Lock()
		e.cache[key] = cm
		e.cacheMu.Unlock()
	}
	return cm, nil
}

// RunBatch implements pkg/deferred.Compiler: Compile module, look up fname,
// and Invoke it against inputs. This is the engine's
// OpenModule->Emit*->Finalise->Compile->(Cached?->Reuse:Build)->Invoke step;
// Deliver and Dispose are the scheduler's own responsibility afterward.
func (e *Engine) RunBatch(module *ir.Module, fname string, inputs []uintptr) ([]uintptr, error) {
	if !e.jitMu.TryLock() {
		return nil, ErrConcurrentJITAccess
	}
	defer e.jitMu.Unlock()

	cm, err := e.Compile(module)
	if err != nil {
		return nil, err
	}
	fn := cm.Module.Lookup(fname)
	if fn == nil {
		return nil, errors.Wrapf(ErrLookupFailure, "_mlir_ciface_%s", fname)
	}
	if e.cfg.Verbose >= 1 {
		klog.Infof("jit: invoking _mlir_ciface_%s with %s input words (%s)",
			fname, humanize.Comma(int64(len(inputs))), humanize.Bytes(uint64(len(inputs))*wordSize))
	}
	output, err := e.interp.Run(fn, inputs)
	if err != nil {
		return nil, err
	}
	if e.cfg.Verbose >= 1 {
		klog.Infof("jit: _mlir_ciface_%s returned %s output words (%s)",
			fname, humanize.Comma(int64(len(output))), humanize.Bytes(uint64(len(output))*wordSize))
	}
	return output, nil
}
