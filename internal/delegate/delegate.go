// Package delegate provides a synchronous multicast callback list. Unlike a
// channel-based broker, delivery happens on the caller's stack so the paint
// pipeline observes listener effects in order.
package delegate

import "sync"

type listener[T any] struct {
	callback     func(T)
	linkedObject any
	singleshot   bool
}

// Delegate fans one event out to every subscribed listener in insertion
// order.
type Delegate[T any] struct {
	mu        sync.Mutex
	listeners []listener[T]
}

// New creates an empty delegate.
func New[T any]() *Delegate[T] { return &Delegate[T]{} }

// Subscribe registers a persistent listener.
func (d *Delegate[T]) Subscribe(callback func(T)) {
	d.subscribe(callback, nil, false)
}

// SubscribeOnce registers a listener removed after its first delivery.
func (d *Delegate[T]) SubscribeOnce(callback func(T)) {
	d.subscribe(callback, nil, true)
}

// SubscribeLinked registers a listener tied to an owner object, so the
// owner can drop all of its subscriptions at once.
func (d *Delegate[T]) SubscribeLinked(callback func(T), linkedObject any) {
	d.subscribe(callback, linkedObject, false)
}

func (d *Delegate[T]) subscribe(callback func(T), linkedObject any, singleshot bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, listener[T]{callback: callback, linkedObject: linkedObject, singleshot: singleshot})
}

// UnsubscribeAll removes every listener whose linked object matches.
func (d *Delegate[T]) UnsubscribeAll(linkedObject any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	kept := d.listeners[:0]
	for _, l := range d.listeners {
		if l.linkedObject != linkedObject {
			kept = append(kept, l)
		}
	}
	d.listeners = kept
}

// Fire delivers the value to a snapshot of the current listeners. Single
// shot listeners leave the live list before dispatch, so a re-entrant Fire
// cannot deliver them twice; any other re-entrant subscribe or unsubscribe
// affects future fires only.
func (d *Delegate[T]) Fire(value T) {
	d.mu.Lock()
	snapshot := make([]listener[T], len(d.listeners))
	copy(snapshot, d.listeners)
	kept := d.listeners[:0]
	for _, l := range d.listeners {
		if !l.singleshot {
			kept = append(kept, l)
		}
	}
	d.listeners = kept
	d.mu.Unlock()

	for _, l := range snapshot {
		l.callback(value)
	}
}

// HasListeners reports whether anything is subscribed.
func (d *Delegate[T]) HasListeners() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners) > 0
}

// Destroy drops all listeners.
func (d *Delegate[T]) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = nil
}
