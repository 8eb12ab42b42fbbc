// Package holder provides observable single-value containers.
package holder

import (
	"sync"
)

type observer[T any] struct {
	id uint64
	fn func(T)
}

// Holder stores one value and pushes every change to its observers.
//
// Set notifies the observers registered at the time of the call, in
// subscription order, before returning. A new subscriber is called once with
// the current value. Observers must not call Set or Subscribe on the same
// holder from inside a notification; reading with Get is fine.
type Holder[T any] struct {
	notifyMu sync.Mutex // serializes Set and Subscribe notifications

	mu        sync.RWMutex
	value     T
	observers []observer[T]
	nextID    uint64
}

// New returns a holder with an initial value.
func New[T any](initial T) *Holder[T] {
	return &Holder[T]{value: initial}
}

func (h *Holder[T]) Get() T {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.value
}

func (h *Holder[T]) Set(v T) {
	h.notifyMu.Lock()
	defer h.notifyMu.Unlock()

	h.mu.Lock()
	h.value = v
	observers := h.observers
	h.mu.Unlock()

	for _, o := range observers {
		if h.active(o.id) {
			o.fn(v)
		}
	}
}

// Subscribe registers fn and immediately replays the current value to it.
// The returned function removes the subscription and is safe to call more
// than once, from any goroutine, including from inside fn.
func (h *Holder[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	h.notifyMu.Lock()
	defer h.notifyMu.Unlock()

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	// copy on write so in-flight notification loops keep their snapshot
	observers := make([]observer[T], len(h.observers), len(h.observers)+1)
	copy(observers, h.observers)
	h.observers = append(observers, observer[T]{id: id, fn: fn})
	current := h.value
	h.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() { h.remove(id) })
	}
}

// Len is the number of live observers.
func (h *Holder[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}

// Dispose drops every observer. The holder still accepts Set afterwards.
func (h *Holder[T]) Dispose() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observers = nil
}

func (h *Holder[T]) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	observers := make([]observer[T], 0, len(h.observers))
	for _, o := range h.observers {
		if o.id != id {
			observers = append(observers, o)
		}
	}
	h.observers = observers
}

// active reports whether id is still subscribed. An observer removed during
// a notification is not called for the rest of it.
func (h *Holder[T]) active(id uint64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, o := range h.observers {
		if o.id == id {
			return true
		}
	}
	return false
}
