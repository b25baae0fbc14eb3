package channel

import (
	"io"
	"sync"

	"github.com/backkem/ossl/pkg/buffer"
)

// queue is a bounded byte FIFO shared by one writer side and one reader
// side. Every state change is broadcast to the listening notifiers.
type queue struct {
	mu   sync.Mutex
	cond *sync.Cond
	buf  *buffer.Buffer

	// eof is set once the writer side is done; readers drain then see
	// eofErr (io.EOF unless the source failed).
	eof    bool
	eofErr error

	// gone is set once the reader side is gone; writers fail with it.
	gone error

	listeners []*notifier
}

func newQueue(capacity int, listeners ...*notifier) *queue {
	q := &queue{
		buf:       buffer.New(capacity),
		listeners: listeners,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *queue) notify() {
	for _, n := range q.listeners {
		n.broadcast()
	}
}

// write copies as much of p as fits without blocking.
func (q *queue) write(p []byte) (int, error) {
	q.mu.Lock()
	if q.gone != nil {
		q.mu.Unlock()
		return 0, q.gone
	}
	if q.eof {
		q.mu.Unlock()
		return 0, ErrWriteClosed
	}
	n := q.buf.Write(p)
	if n > 0 {
		q.cond.Broadcast()
	}
	q.mu.Unlock()

	if n > 0 {
		q.notify()
	}
	return n, nil
}

// writeAll blocks until all of p is queued or the reader side is gone.
func (q *queue) writeAll(p []byte) error {
	for len(p) > 0 {
		q.mu.Lock()
		for q.buf.Readable() == q.buf.Cap() && q.gone == nil && !q.eof {
			q.cond.Wait()
		}
		if q.gone != nil {
			err := q.gone
			q.mu.Unlock()
			return err
		}
		if q.eof {
			q.mu.Unlock()
			return ErrWriteClosed
		}
		n := q.buf.Write(p)
		q.cond.Broadcast()
		q.mu.Unlock()

		q.notify()
		p = p[n:]
	}
	return nil
}

// read copies queued bytes into p without blocking. It returns (0, nil)
// when nothing is queued and the writer is still active.
func (q *queue) read(p []byte) (int, error) {
	q.mu.Lock()
	n := q.buf.Read(p)
	if n == 0 && len(p) > 0 && q.eof {
		err := q.eofErr
		q.mu.Unlock()
		return 0, err
	}
	if n > 0 {
		q.cond.Broadcast()
	}
	q.mu.Unlock()

	if n > 0 {
		q.notify()
	}
	return n, nil
}

// readWait blocks until at least one byte can be read, the writer side is
// done, or the reader side is gone.
func (q *queue) readWait(p []byte) (int, error) {
	q.mu.Lock()
	for q.buf.Readable() == 0 && !q.eof && q.gone == nil {
		q.cond.Wait()
	}
	if q.gone != nil {
		err := q.gone
		q.mu.Unlock()
		return 0, err
	}
	n := q.buf.Read(p)
	if n == 0 {
		err := q.eofErr
		q.mu.Unlock()
		return 0, err
	}
	q.cond.Broadcast()
	q.mu.Unlock()

	q.notify()
	return n, nil
}

// closeWrite marks the writer side done. Queued bytes remain readable.
func (q *queue) closeWrite(err error) {
	if err == nil {
		err = io.EOF
	}
	q.mu.Lock()
	if q.eof {
		q.mu.Unlock()
		return
	}
	q.eof = true
	q.eofErr = err
	q.cond.Broadcast()
	q.mu.Unlock()

	q.notify()
}

// closeRead marks the reader side gone and discards queued bytes.
func (q *queue) closeRead(err error) {
	q.mu.Lock()
	if q.gone != nil {
		q.mu.Unlock()
		return
	}
	q.gone = err
	q.buf.Clear()
	q.cond.Broadcast()
	q.mu.Unlock()

	q.notify()
}

// readable reports whether a read would not block.
func (q *queue) readable() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.buf.HasReadable() || q.eof || q.gone != nil
}

// writable reports whether a write would not block.
func (q *queue) writable() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.buf.Readable() < q.buf.Cap() || q.eof || q.gone != nil
}

// pending returns the number of queued bytes.
func (q *queue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.buf.Readable()
}
