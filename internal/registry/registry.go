// Package registry tracks in-flight requests by logical key so that a newer
// request for the same key supersedes the older one.
package registry

import (
	"context"
	"sync"
)

// Ticket identifies one registration. It is only meaningful to the
// registry that issued it.
type Ticket struct {
	Key string
	id  uint64
}

type entry struct {
	id     uint64
	cancel context.CancelFunc
}

// Registry maps keys to the cancel function of the latest request.
type Registry struct {
	mutex   sync.Mutex
	entries map[string]entry
	nextID  uint64
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		entries: make(map[string]entry),
	}
}

// Register records cancel under key. A request already registered under the
// same key is cancelled and replaced.
func (r *Registry) Register(key string, cancel context.CancelFunc) Ticket {
	r.mutex.Lock()

	r.nextID++
	id := r.nextID

	previous, exists := r.entries[key]
	r.entries[key] = entry{id: id, cancel: cancel}

	r.mutex.Unlock()

	if exists && previous.cancel != nil {
		previous.cancel()
	}

	return Ticket{Key: key, id: id}
}

// Unregister removes key without cancelling it. Unknown keys are ignored.
func (r *Registry) Unregister(key string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.entries, key)
}

// Release removes the ticket's entry only if it still owns the key, so a
// superseded request cannot remove its replacement.
func (r *Registry) Release(ticket Ticket) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	current, ok := r.entries[ticket.Key]
	if ok && current.id == ticket.id {
		delete(r.entries, ticket.Key)
	}
}

// Active reports whether the ticket still owns its key.
func (r *Registry) Active(ticket Ticket) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	current, ok := r.entries[ticket.Key]

	return ok && current.id == ticket.id
}

// Cancel aborts and removes the request registered under key. It reports
// whether one was found.
func (r *Registry) Cancel(key string) bool {
	r.mutex.Lock()
	current, ok := r.entries[key]
	delete(r.entries, key)
	r.mutex.Unlock()

	if ok && current.cancel != nil {
		current.cancel()
	}

	return ok
}

// CancelAll aborts every registered request and returns how many there were.
func (r *Registry) CancelAll() int {
	r.mutex.Lock()
	entries := r.entries
	r.entries = make(map[string]entry)
	r.mutex.Unlock()

	for _, current := range entries {
		if current.cancel != nil {
			current.cancel()
		}
	}

	return len(entries)
}

// Len returns the number of registered requests.
func (r *Registry) Len() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return len(r.entries)
}
