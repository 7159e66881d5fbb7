// resourcelock.go: Reference-counted advisory locks keyed by name
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kleio

import (
	"fmt"
	"sync"
)

// ResourceLocks lets independent components agree, through a shared name,
// that an external resource (a log file, a database) is claimed. The locks
// never touch the resource itself.
type ResourceLocks struct {
	mu     sync.Mutex
	counts map[string]int
}

// ProcessLocks is the registry used by sinks that are not given their own.
var ProcessLocks = NewResourceLocks()

// NewResourceLocks returns an empty registry.
func NewResourceLocks() *ResourceLocks {
	return &ResourceLocks{counts: make(map[string]int)}
}

// ResourceGuard is the releasable handle returned by Acquire.
type ResourceGuard struct {
	locks *ResourceLocks
	name  string
	once  sync.Once
}

// Acquire increments the counter for name and returns its guard.
func (r *ResourceLocks) Acquire(name string) *ResourceGuard {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[name]++
	return &ResourceGuard{locks: r, name: name}
}

// TryAcquire acquires name only if nobody holds it.
func (r *ResourceLocks) TryAcquire(name string) (*ResourceGuard, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts[name] > 0 {
		return nil, false
	}
	r.counts[name]++
	return &ResourceGuard{locks: r, name: name}, true
}

// InUse reports whether name is currently held.
func (r *ResourceLocks) InUse(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[name] > 0
}

// Count returns the number of live guards for name.
func (r *ResourceLocks) Count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[name]
}

func (r *ResourceLocks) release(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch n := r.counts[name]; {
	case n > 1:
		r.counts[name] = n - 1
	case n == 1:
		delete(r.counts, name)
	}
}

// Name returns the resource name the guard holds.
func (g *ResourceGuard) Name() string { return g.name }

// Release decrements the counter. Extra calls are no-ops.
func (g *ResourceGuard) Release() {
	if g == nil {
		return
	}
	g.once.Do(func() { g.locks.release(g.name) })
}

func (g *ResourceGuard) String() string {
	return fmt.Sprintf("ResourceGuard(%s)", g.name)
}
