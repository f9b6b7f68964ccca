// Package registry tracks which recordings currently have an active run.
package registry

import "sync"

// Registry is a set of in-flight paths with an atomic check-and-insert.
// The zero value is not usable; call New.
type Registry struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{paths: make(map[string]struct{})}
}

// TryAcquire inserts path if absent and reports whether it did. Of any
// number of concurrent calls for one path, exactly one returns true.
func (r *Registry) TryAcquire(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.paths[path]; ok {
		return false
	}
	r.paths[path] = struct{}{}
	return true
}

// Release removes path unconditionally.
func (r *Registry) Release(path string) {
	r.mu.Lock()
	delete(r.paths, path)
	r.mu.Unlock()
}

// Acquire is the scoped form of TryAcquire. When ok is true the caller must
// invoke release (typically deferred); extra calls are no-ops.
func (r *Registry) Acquire(path string) (release func(), ok bool) {
	if !r.TryAcquire(path) {
		return func() {}, false
	}
	var once sync.Once
	return func() { once.Do(func() { r.Release(path) }) }, true
}

// Contains reports whether path is in flight.
func (r *Registry) Contains(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.paths[path]
	return ok
}

// Len returns the number of in-flight paths.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}
