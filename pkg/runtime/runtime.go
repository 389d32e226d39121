// Package runtime is the process-wide facade spec.md §9 calls for: a single
// place that owns the registry, the deferred-graph scheduler, and the JIT
// engine, with explicit New/NewWithConfig/Finalize so teardown order is controlled
// ("fini must run before shared-library unloading"). Front-end packages
// (pkg/ops) take a *Runtime rather than reaching for package-level
// globals, the way gomlx's backends.New()/NewWithConfig() hand callers an
// explicit backend instance instead of a singleton.
package runtime

import (
	"context"

	"github.com/ddptensor/ddpt/pkg/deferred"
	"github.com/ddptensor/ddpt/pkg/jit"
	"github.com/ddptensor/ddpt/pkg/registry"
)

// Runtime bundles the three process-wide collaborators the core needs.
type Runtime struct {
	Registry  *registry.Registry
	Scheduler *deferred.Scheduler
	Engine    *jit.Engine

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Runtime configured from the DDPT_*/MLIRROOT/IMEXROOT
// environment (spec.md §6) and starts its worker goroutine.
func New() (*Runtime, error) {
	cfg, err := jit.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return NewWithConfig(cfg), nil
}

// NewWithConfig creates a Runtime from an explicit jit.Config, bypassing
// the environment — primarily for tests.
func NewWithConfig(cfg jit.Config) *Runtime {
	reg := registry.New()
	engine := jit.NewEngine(cfg)
	sched := deferred.New(reg, engine)

	ctx, cancel := context.WithCancel(context.Background())
	rt := &Runtime{
		Registry:  reg,
		Scheduler: sched,
		Engine:    engine,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go func() {
		sched.Start(ctx)
		close(rt.done)
	}()
	return rt
}

// Finalize closes the scheduler's queue and blocks until its worker
// goroutine has drained every pending batch and exited.
func (rt *Runtime) Finalize() {
	rt.Scheduler.Close()
	<-rt.done
	rt.cancel()
}
