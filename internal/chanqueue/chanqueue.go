// Package chanqueue provides a channel pair with an unbounded buffer in
// between, so senders never block on a slow consumer.
package chanqueue

// Unbounded forwards every value sent to In to Out in order. Close stops
// accepting values; Out is closed once the buffer has drained.
type Unbounded[T any] struct {
	in  chan T
	out chan T
}

// NewUnbounded creates a queue and starts its forwarding goroutine.
func NewUnbounded[T any]() *Unbounded[T] {
	q := &Unbounded[T]{
		in:  make(chan T),
		out: make(chan T),
	}
	go q.run()
	return q
}

// In returns the sending side.
func (q *Unbounded[T]) In() chan<- T { return q.in }

// Out returns the receiving side.
func (q *Unbounded[T]) Out() <-chan T { return q.out }

// Send enqueues v. It must not be called after Close.
func (q *Unbounded[T]) Send(v T) { q.in <- v }

// Close stops the queue after the values already sent have been delivered.
func (q *Unbounded[T]) Close() { close(q.in) }

func (q *Unbounded[T]) run() {
	var buf []T
	in := q.in

	for in != nil || len(buf) > 0 {
		var out chan T
		var next T
		if len(buf) > 0 {
			out = q.out
			next = buf[0]
		}

		select {
		case v, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			buf = append(buf, v)
		case out <- next:
			var zero T
			buf[0] = zero
			buf = buf[1:]
		}
	}
	close(q.out)
}
