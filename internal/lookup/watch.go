package lookup

import "sync"

// Watch is a last-value broadcast channel: every Subscribe sees the most
// recent Send immediately, and is notified of every Send after that. It is
// the Go shape of the "broadcasting sender" the data model refers to
// (Server.tx, the default-allow channels, and the per-pod-port outer_tx),
// implemented as nested watch channels per the §9 design note rather than
// a single tagged Rebind|Update message.
type Watch[T any] struct {
	mu      sync.Mutex
	value   T
	closed  bool
	changed chan struct{}
}

// NewWatch creates a Watch seeded with initial.
func NewWatch[T any](initial T) *Watch[T] {
	return &Watch[T]{value: initial, changed: make(chan struct{})}
}

// Send publishes a new value and wakes every current subscriber. It is a
// no-op after Close.
func (w *Watch[T]) Send(v T) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.value = v
	close(w.changed)
	w.changed = make(chan struct{})
}

// Close marks the watch closed and wakes every subscriber: Changed fires,
// after which Recv reports ok = false and Closed() == true, which readers
// use to end a stream (§4.7.2: inner/outer channel close is normal
// end-of-stream).
func (w *Watch[T]) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	close(w.changed)
}

// Subscribe returns a Receiver positioned at the watch's current value.
func (w *Watch[T]) Subscribe() *Receiver[T] {
	w.mu.Lock()
	defer w.mu.Unlock()
	return &Receiver[T]{w: w, last: w.value, changed: w.changed, closed: w.closed}
}

// Receiver observes a Watch's values over time. It is not safe for
// concurrent use by multiple goroutines, matching the single discovery
// stream task that owns it.
type Receiver[T any] struct {
	w       *Watch[T]
	last    T
	changed chan struct{}
	closed  bool
}

// Get returns the Watch's current value: the most recent Send, whether or
// not this receiver has called Recv since.
func (r *Receiver[T]) Get() T {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	return r.w.value
}

// Changed returns a channel that closes the next time the underlying
// Watch is sent to or closed. After it fires, call Recv to advance.
func (r *Receiver[T]) Changed() <-chan struct{} {
	return r.changed
}

// Closed reports whether the underlying Watch has been permanently closed
// and there are no further values to observe.
func (r *Receiver[T]) Closed() bool {
	return r.closed
}

// Recv advances the receiver to the Watch's current value. Call after
// Changed() fires. Returns ok = false if the Watch is now closed with no
// further values; the returned value is the last one observed.
func (r *Receiver[T]) Recv() (value T, ok bool) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	r.last = r.w.value
	r.changed = r.w.changed
	r.closed = r.w.closed
	return r.last, !r.closed
}
