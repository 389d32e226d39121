package deferred_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddptensor/ddpt/pkg/deferred"
	"github.com/ddptensor/ddpt/pkg/depmgr"
	"github.com/ddptensor/ddpt/pkg/dtype"
	"github.com/ddptensor/ddpt/pkg/future"
	"github.com/ddptensor/ddpt/pkg/guid"
	"github.com/ddptensor/ddpt/pkg/ir"
	"github.com/ddptensor/ddpt/pkg/jit"
	"github.com/ddptensor/ddpt/pkg/registry"
)

// fullNode is a minimal deferred.Node that emits a ddpt.full op producing a
// fresh array, used to exercise the scheduler without pulling in pkg/ops.
type fullNode struct {
	g       guid.GUID
	shape   []int64
	value   float64
	array   *future.HostArray
	readyCh chan struct{}
}

func newFullNode(shape []int64, value float64) *fullNode {
	g := guid.New()
	h := future.NewHostArray(dtype.Float32, len(shape), future.Team{})
	h.SetGuid(g)
	return &fullNode{g: g, shape: shape, value: value, array: h, readyCh: make(chan struct{})}
}

func (n *fullNode) Guid() guid.GUID       { return n.g }
func (n *fullNode) DType() dtype.DType    { return dtype.Float32 }
func (n *fullNode) Rank() int             { return len(n.shape) }
func (n *fullNode) Balanced() bool        { return true }
func (n *fullNode) Run(ctx context.Context) error { return nil }
func (n *fullNode) FactoryID() deferred.FactoryID { return deferred.FactoryFull }

func (n *fullNode) Emit(b *ir.FunctionBuilder, dm *depmgr.Manager) (bool, error) {
	t := ir.PTensorType(true, 32, len(n.shape), false, false)
	v := b.Emit("ddpt.full", nil, map[string]any{"shape": n.shape, "value": n.value}, t)
	err := dm.AddValue(n.g, v, n.array.Deliver)
	dm.AddReady(n.g, func() { close(n.readyCh) })
	return false, err
}

func TestSchedulerRunsFullAndDelivers(t *testing.T) {
	reg := registry.New()
	engine := jit.NewEngine(jit.Config{UseCache: true, OptLevel: 3})
	sched := deferred.New(reg, engine)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Start(ctx)
	defer sched.Close()

	n := newFullNode([]int64{3}, 7)
	sched.Enqueue(n)
	sched.EnqueueRun()

	select {
	case <-n.readyCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for node to be ready")
	}

	arr, err := n.array.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, arr.Shape())
}

func TestSchedulerCachesIdenticalBatches(t *testing.T) {
	reg := registry.New()
	engine := jit.NewEngine(jit.Config{UseCache: true, OptLevel: 3})
	sched := deferred.New(reg, engine)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Start(ctx)
	defer sched.Close()

	for i := 0; i < 2; i++ {
		n := newFullNode([]int64{2}, 5)
		sched.Enqueue(n)
		sched.EnqueueRun()
		select {
		case <-n.readyCh:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for node to be ready")
		}
	}

	assert.EqualValues(t, 1, engine.BuildCount())
}

// declineNode is a minimal deferred.Node whose Emit always declines JIT,
// recording that its eager Run actually executed — Seed Scenario S6.
type declineNode struct {
	ran chan struct{}
}

func (n *declineNode) Guid() guid.GUID    { return guid.NOGUID }
func (n *declineNode) DType() dtype.DType { return dtype.Invalid }
func (n *declineNode) Rank() int          { return 0 }
func (n *declineNode) Balanced() bool     { return true }
func (n *declineNode) FactoryID() deferred.FactoryID { return deferred.FactoryRunBarrier }
func (n *declineNode) Emit(*ir.FunctionBuilder, *depmgr.Manager) (bool, error) {
	return true, nil
}
func (n *declineNode) Run(context.Context) error {
	close(n.ran)
	return nil
}

func TestSchedulerFlushesAndRunsEagerlyOnDecline(t *testing.T) {
	reg := registry.New()
	engine := jit.NewEngine(jit.Config{UseCache: true, OptLevel: 3})
	sched := deferred.New(reg, engine)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Start(ctx)
	defer sched.Close()

	producer := newFullNode([]int64{2}, 9)
	decline := &declineNode{ran: make(chan struct{})}
	sched.Enqueue(producer)
	sched.Enqueue(decline)
	sched.EnqueueRun()

	select {
	case <-decline.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for declining node's eager Run")
	}
	select {
	case <-producer.readyCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for producer node flushed ahead of the decline")
	}
}
