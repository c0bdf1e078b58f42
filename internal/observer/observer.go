// Package observer keeps registered callbacks behind handles, so func
// observers can be removed without comparing them.
package observer

import "sync"

// ID identifies one registration. The zero ID is never issued.
type ID uint64

type entry[T any] struct {
	id ID
	o  T
}

// Registry is safe for concurrent use. The zero value is ready.
type Registry[T any] struct {
	mu      sync.Mutex
	next    ID
	entries []entry[T]
}

// Add registers o and returns the handle Remove takes. Adding the same
// observer twice gives two registrations.
func (r *Registry[T]) Add(o T) ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.entries = append(r.entries, entry[T]{id: r.next, o: o})
	return r.next
}

// Remove drops the registration and reports whether it existed.
func (r *Registry[T]) Remove(id ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.id == id {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Snapshot returns the observers in registration order.
func (r *Registry[T]) Snapshot() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.o
	}
	return out
}

func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
