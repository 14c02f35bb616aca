package engine

import (
	"sync"

	"github.com/roach88/nsaga/internal/ir"
)

// inbox is the engine's pending-event FIFO. It never blocks producers, so a
// task goroutine or an effect can Dispatch from anywhere.
type inbox struct {
	mu     sync.Mutex
	buf    []ir.Event
	head   int // index of the oldest pending event in buf
	shut   bool
	notify chan struct{} // cap 1; closed by close
}

func newInbox() *inbox {
	return &inbox{
		buf:    make([]ir.Event, 0, 64),
		notify: make(chan struct{}, 1),
	}
}

// push appends ev and wakes the Run loop. It reports false once the inbox is
// shut.
func (q *inbox) push(ev ir.Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.shut {
		return false
	}
	q.buf = append(q.buf, ev)
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// pop takes the oldest pending event, if any.
func (q *inbox) pop() (ir.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head == len(q.buf) {
		return ir.Event{}, false
	}
	ev := q.buf[q.head]
	q.buf[q.head] = ir.Event{} // drop the Arg and Exec references
	q.head++
	if q.head == len(q.buf) {
		q.buf, q.head = q.buf[:0], 0
	} else if q.head > cap(q.buf)/2 {
		n := copy(q.buf, q.buf[q.head:])
		clear(q.buf[n:])
		q.buf, q.head = q.buf[:n], 0
	}
	return ev, true
}

// ready fires after a push, and stays closed once the inbox is shut.
func (q *inbox) ready() <-chan struct{} {
	return q.notify
}

func (q *inbox) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf) - q.head
}

// close rejects later pushes. Pending events can still be popped.
func (q *inbox) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.shut {
		q.shut = true
		close(q.notify)
	}
}

func (q *inbox) closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.shut
}
