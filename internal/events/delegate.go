package events

import (
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Delegate is a rebindable callback that can be subscribed to any number of
// Signals. Subscriptions survive rebinding: a Signal always calls whatever
// function the delegate is bound to at the time it fires.
type Delegate[T any] struct {
	id uuid.UUID

	mu      sync.Mutex
	fn      func(T)
	signals []*Signal[T]
}

// NewDelegate returns a delegate bound to fn. fn may be nil.
func NewDelegate[T any](fn func(T)) *Delegate[T] {
	return &Delegate[T]{id: uuid.New(), fn: fn}
}

// ID returns the delegate's unique id.
func (d *Delegate[T]) ID() uuid.UUID {
	return d.id
}

// Bind replaces the delegate's callback.
func (d *Delegate[T]) Bind(fn func(T)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fn = fn
}

// Invoke calls the bound callback with v. It does nothing when unbound.
func (d *Delegate[T]) Invoke(v T) {
	d.mu.Lock()
	fn := d.fn
	d.mu.Unlock()

	if fn != nil {
		fn(v)
	}
}

// Subscriptions returns how many subscriptions the delegate currently holds.
// Subscribing twice to the same Signal counts twice.
func (d *Delegate[T]) Subscriptions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.signals)
}

// UnsubscribeAll removes every subscription the delegate holds.
func (d *Delegate[T]) UnsubscribeAll() {
	d.mu.Lock()
	signals := d.signals
	d.signals = nil
	d.mu.Unlock()

	for _, e := range signals {
		e.remove(d)
	}
}

func (d *Delegate[T]) track(e *Signal[T]) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.signals = append(d.signals, e)
}

func (d *Delegate[T]) untrack(e *Signal[T]) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i := slices.Index(d.signals, e); i >= 0 {
		d.signals = slices.Delete(d.signals, i, i+1)
		return true
	}
	return false
}

// Signal is a list of delegate subscriptions that only its owner can fire.
// Anyone holding the *Signal may subscribe; the fire function returned by
// NewSignal is kept by the owner.
type Signal[T any] struct {
	mu        sync.Mutex
	delegates []*Delegate[T]

	// fireMu serializes firing so callbacks never run concurrently for
	// the same Signal.
	fireMu sync.Mutex
}

// NewSignal returns a Signal and the function that fires it.
func NewSignal[T any]() (*Signal[T], func(T)) {
	e := &Signal[T]{}
	return e, e.fire
}

// Subscribe adds a subscription for d. A delegate subscribed n times is
// invoked n times per fire.
func (e *Signal[T]) Subscribe(d *Delegate[T]) {
	if d == nil {
		return
	}
	e.mu.Lock()
	e.delegates = append(e.delegates, d)
	e.mu.Unlock()

	d.track(e)
}

// Unsubscribe removes one subscription for d. It reports whether d was
// subscribed.
func (e *Signal[T]) Unsubscribe(d *Delegate[T]) bool {
	if d == nil || !d.untrack(e) {
		return false
	}
	e.remove(d)
	return true
}

// SubscriberCount returns the number of subscriptions.
func (e *Signal[T]) SubscriberCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.delegates)
}

func (e *Signal[T]) remove(d *Delegate[T]) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i := slices.Index(e.delegates, d); i >= 0 {
		e.delegates = slices.Delete(e.delegates, i, i+1)
	}
}

func (e *Signal[T]) fire(v T) {
	e.fireMu.Lock()
	defer e.fireMu.Unlock()

	e.mu.Lock()
	snapshot := slices.Clone(e.delegates)
	e.mu.Unlock()

	for _, d := range snapshot {
		d.Invoke(v)
	}
}
