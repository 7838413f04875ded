package eventbus

// Listeners is an ordered list of callbacks invoked synchronously, in
// registration order, on the caller's goroutine. It is not safe for
// concurrent use; owners serialize access through the tick loop.
type Listeners[T any] struct {
	fns []func(T)
}

// Add registers fn. A nil fn is ignored.
func (l *Listeners[T]) Add(fn func(T)) {
	if fn == nil {
		return
	}
	l.fns = append(l.fns, fn)
}

// Notify calls every registered callback with e.
func (l *Listeners[T]) Notify(e T) {
	for _, fn := range l.fns {
		fn(e)
	}
}

// Len returns the number of registered callbacks.
func (l *Listeners[T]) Len() int { return len(l.fns) }
