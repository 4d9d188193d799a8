package internal

import "sync"

// ListenerID identifies a registered callback for later removal.
type ListenerID uint64

type listenerEntry[T any] struct {
	id ListenerID
	fn func(T)
}

// registry is an ordered callback set. Notification runs on a snapshot taken
// under the lock, so callbacks may add or remove listeners re-entrantly.
// Fan-out order is registration order.
type registry[T any] struct {
	mu      sync.Mutex
	next    ListenerID
	entries []listenerEntry[T]
}

func (r *registry[T]) add(fn func(T)) ListenerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.entries = append(r.entries, listenerEntry[T]{id: r.next, fn: fn})
	return r.next
}

func (r *registry[T]) remove(id ListenerID) bool {
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

func (r *registry[T]) clear() {
	r.mu.Lock()
	r.entries = nil
	r.mu.Unlock()
}

func (r *registry[T]) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *registry[T]) notify(v T) {
	r.mu.Lock()
	snapshot := append([]listenerEntry[T](nil), r.entries...)
	r.mu.Unlock()
	for _, e := range snapshot {
		e.fn(v)
	}
}
