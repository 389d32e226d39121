package deferred

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/ddptensor/ddpt/pkg/depmgr"
	"github.com/ddptensor/ddpt/pkg/ir"
	"github.com/ddptensor/ddpt/pkg/registry"
)

// entryPoint and moduleName are fixed per spec.md §4.2: "Open a compiler
// module with one function jit_main". Every batch (and every flush within a
// batch) opens a module under the same two names, so two batches that emit
// the same op sequence produce byte-identical canonical text and therefore
// the same JIT cache key (spec.md §8's Testable Property 3).
const (
	entryPoint = "jit_main"
	moduleName = "ddpt_module"
)

// Compiler is the JIT engine's contract from the scheduler's point of view:
// take a finished module plus its packed-ABI input words and run it,
// returning the packed-ABI output words. pkg/jit.Engine implements this;
// tests can supply a fake.
type Compiler interface {
	RunBatch(module *ir.Module, fname string, inputs []uintptr) (outputs []uintptr, err error)
}

type queueItem struct {
	node  Node
	isRun bool
}

// Scheduler is the single-worker deferred-operation graph (spec.md §4.2).
// Front-ends call Enqueue/EnqueueRun from any goroutine; only the goroutine
// running Start touches the dependency manager. Front-ends do register
// their new arrays with the registry (Put) from their own goroutine.
type Scheduler struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []queueItem
	closed bool

	reg      *registry.Registry
	compiler Compiler
}

// New creates a Scheduler bound to reg (for dependency resolution) and
// compiler (the JIT engine or a test double).
func New(reg *registry.Registry, compiler Compiler) *Scheduler {
	s := &Scheduler{reg: reg, compiler: compiler}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Enqueue appends a node to the FIFO. Safe to call from any goroutine.
func (s *Scheduler) Enqueue(n Node) {
	s.mu.Lock()
	s.items = append(s.items, queueItem{node: n})
	s.mu.Unlock()
	s.cond.Signal()
}

// EnqueueRun appends the RUN sentinel, forcing an immediate batch boundary
// rather than waiting for queue quiescence.
func (s *Scheduler) EnqueueRun() {
	s.mu.Lock()
	s.items = append(s.items, queueItem{isRun: true})
	s.mu.Unlock()
	s.cond.Signal()
}

// Close signals the worker to exit once the queue drains. Start returns
// after the last pending batch (if any) has run.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cond.Broadcast()
}

// Start runs the worker loop until Close is called. Callers run this in its
// own goroutine; pkg/runtime.NewWithConfig does so.
func (s *Scheduler) Start(ctx context.Context) {
	for {
		batch, ok := s.nextBatch()
		if !ok {
			return
		}
		if len(batch) == 0 {
			continue
		}
		if err := s.runBatch(ctx, batch); err != nil {
			klog.Errorf("deferred: batch failed: %v", err)
		}
	}
}

// nextBatch blocks until at least one item is queued (or the scheduler is
// closed), then greedily drains the queue up to the next RUN sentinel,
// which it consumes but leaves out of the batch, or to the end if no RUN is
// pending. Because this
// drain happens atomically under mu, "whatever's queued right now" already
// is the queue's quiescent state at the moment of waking — a separate
// non-blocking-sleep quiescence check would only ever observe the same
// snapshot in this single-consumer design.
func (s *Scheduler) nextBatch() ([]Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.items) == 0 && !s.closed {
		s.cond.Wait()
	}
	if len(s.items) == 0 && s.closed {
		return nil, false
	}

	var batch []Node
	i := 0
	for ; i < len(s.items); i++ {
		if s.items[i].isRun {
			i++
			break
		}
		batch = append(batch, s.items[i].node)
	}
	s.items = s.items[i:]
	return batch, true
}

// runBatch implements spec.md §4.2's per-batch state machine: open a
// module, emit every node in order, flushing and running eagerly any node
// whose Emit declines JIT, then finalize and invoke what's left.
func (s *Scheduler) runBatch(ctx context.Context, nodes []Node) error {
	dm := depmgr.New(s.reg)
	b := ir.NewFunctionBuilder(entryPoint)
	module := ir.NewModule(moduleName)

	flush := func() error {
		if err := s.finalizeAndInvoke(module, b, dm, entryPoint); err != nil {
			return err
		}
		dm = depmgr.New(s.reg)
		b = ir.NewFunctionBuilder(entryPoint)
		module = ir.NewModule(moduleName)
		return nil
	}

	for _, n := range nodes {
		decline, err := n.Emit(b, dm)
		if err != nil {
			return errors.Wrapf(err, "deferred: node %s emit", n.FactoryID())
		}
		if decline {
			if err := flush(); err != nil {
				return err
			}
			if err := n.Run(ctx); err != nil {
				return errors.Wrapf(err, "deferred: node %s eager run", n.FactoryID())
			}
			continue
		}
	}
	return s.finalizeAndInvoke(module, b, dm, entryPoint)
}

// finalizeAndInvoke runs Finalise -> Compile -> Invoke -> Deliver for one
// open module. store_inputs must run before handle_result: it clears ivm
// entries for imported arguments, so handle_result's walk over the
// remaining ivm entries only ever sees locally produced results.
func (s *Scheduler) finalizeAndInvoke(module *ir.Module, b *ir.FunctionBuilder, dm *depmgr.Manager, fname string) error {
	inputWords, err := dm.StoreInputs()
	if err != nil {
		return errors.Wrap(err, "deferred: store_inputs")
	}
	if _, err := dm.HandleResult(b); err != nil {
		return errors.Wrap(err, "deferred: handle_result")
	}
	module.AddFunction(b.Build())

	output, err := s.compiler.RunBatch(module, fname, inputWords)
	if err != nil {
		return errors.Wrap(err, "deferred: compile/invoke")
	}
	if err := dm.Deliver(output); err != nil {
		return errors.Wrap(err, "deferred: deliver")
	}
	return nil
}
