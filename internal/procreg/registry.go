// Package procreg tracks externally-spawned long-lived resources
// (emulators, automation servers) so nothing is orphaned when the
// process exits. The registry is dependency-injected, never a hidden
// global: the process's lifecycle owner calls Drain at its exit points.
package procreg

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vk/shotmatrix/internal/ctxlog"
)

// DefaultDrainTimeout bounds how long a final drain may block process
// exit.
const DefaultDrainTimeout = 30 * time.Second

// Kind labels what a registered resource is, for logs only.
type Kind string

const (
	KindDevice Kind = "device"
	KindServer Kind = "automation_server"
)

// ReleaseFunc tears one resource down. It must be safe to call once.
type ReleaseFunc func(ctx context.Context) error

type entry struct {
	id      string
	kind    Kind
	release ReleaseFunc
}

// Registry is a process-wide registry of live external resources. All
// methods are safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	entries []*entry
	byID    map[string]*entry
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{byID: make(map[string]*entry)}
}

// Register adds a resource under a unique id. Registering an id twice is
// a programmer error and is rejected so a release function can never be
// silently dropped.
func (r *Registry) Register(id string, kind Kind, release ReleaseFunc) error {
	if release == nil {
		return fmt.Errorf("procreg: nil release func for %q", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[id]; exists {
		return fmt.Errorf("procreg: resource %q already registered", id)
	}
	e := &entry{id: id, kind: kind, release: release}
	r.byID[id] = e
	r.entries = append(r.entries, e)
	return nil
}

// Unregister removes a resource without releasing it; the caller has
// already torn it down. Unknown ids are ignored so teardown paths can
// unregister unconditionally.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	for i, candidate := range r.entries {
		if candidate == e {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			break
		}
	}
}

// Len reports how many resources are currently registered.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Drain releases every registered resource in LIFO order, bounded by the
// timeout. It is idempotent and safe to call while other goroutines are
// still registering: anything registered after the snapshot is picked up
// by a later Drain call. Release errors are logged, never propagated.
func (r *Registry) Drain(ctx context.Context, timeout time.Duration) {
	logger := ctxlog.FromContext(ctx)
	if timeout <= 0 {
		timeout = DefaultDrainTimeout
	}

	r.mu.Lock()
	snapshot := make([]*entry, len(r.entries))
	copy(snapshot, r.entries)
	r.entries = nil
	r.byID = make(map[string]*entry)
	r.mu.Unlock()

	if len(snapshot) == 0 {
		logger.Debug("Registry drain: nothing registered.")
		return
	}

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	logger.Info("🔥 Draining registered resources...", "count", len(snapshot))
	for i := len(snapshot) - 1; i >= 0; i-- {
		e := snapshot[i]
		if drainCtx.Err() != nil {
			logger.Error("Registry drain timed out; remaining resources may be orphaned.",
				"remaining", i+1)
			return
		}
		if err := e.release(drainCtx); err != nil {
			logger.Error("Failed to release resource.", "id", e.id, "kind", e.kind, "error", err)
			continue
		}
		logger.Debug("Resource released.", "id", e.id, "kind", e.kind)
	}
	logger.Info("Registry drain complete.")
}
