// Package registry holds the process-wide guid->Future map (spec.md §3,
// "Registry"). Every array the runtime ever hands out a handle for lives
// here from the moment its producing node is enqueued until its guid is
// dropped.
package registry

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/ddptensor/ddpt/pkg/future"
	"github.com/ddptensor/ddpt/pkg/guid"
)

// ErrUnknownGUID is returned by Get and by a second Del for a guid that is
// not (or no longer) registered. Per spec.md §11's Open Question on
// double-drop, this is a reported error, not a silent no-op: the original
// DeferredService::drop rejects an unknown guid, and a front-end that drops
// an array twice almost always has a double-free bug worth surfacing.
var ErrUnknownGUID = errors.New("registry: unknown guid")

// Registry is the guid -> Future map. It is safe for concurrent use: the
// front-end constructors in pkg/ops call Put from the caller's goroutine
// when they create an array, while Get and Del run on the scheduler's
// worker goroutine through the dependency manager.
type Registry struct {
	mu sync.RWMutex
	m  map[guid.GUID]future.Future
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{m: make(map[guid.GUID]future.Future)}
}

// guidSetter is implemented by Future types (future.HostArray among them)
// that accept their guid after construction, letting Put allocate a fresh
// id for them per spec.md §4.1's "put(future) -> guid: allocate a fresh
// id". Futures that already carry their own guid (Guid() != NOGUID) are
// registered under it unchanged.
type guidSetter interface {
	SetGuid(guid.GUID)
}

// Put registers f, allocating it a fresh guid if it doesn't already carry
// one, and returns the guid it is now registered under.
func (r *Registry) Put(f future.Future) guid.GUID {
	g := f.Guid()
	if g == guid.NOGUID {
		g = guid.New()
		if s, ok := f.(guidSetter); ok {
			s.SetGuid(g)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[g] = f
	return g
}

// Get looks up the future registered for g.
func (r *Registry) Get(g guid.GUID) (future.Future, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.m[g]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownGUID, "guid %d", g)
	}
	return f, nil
}

// Del removes g from the registry. Dropping an already-dropped (or never
// registered) guid returns ErrUnknownGUID.
func (r *Registry) Del(g guid.GUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[g]; !ok {
		return errors.Wrapf(ErrUnknownGUID, "guid %d", g)
	}
	delete(r.m, g)
	return nil
}

// Len reports how many live guids are currently registered. Mostly useful
// for tests and diagnostics.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.m)
}
