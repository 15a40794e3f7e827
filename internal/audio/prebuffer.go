package audio

import (
	"errors"
	"io"
	"sync"
)

var errBufferClosed = errors.New("prebuffer closed")

// prebuffer is a fixed-size byte ring between the network reader and the decoder.
// Write blocks while the ring is full and Read blocks while it is empty.
type prebuffer struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	r, n   int
	err    error // set once the writer is done; Read drains before reporting it
	closed bool  // set by Close; both sides stop immediately
}

func newPrebuffer(capacity int) *prebuffer {
	b := &prebuffer{buf: make([]byte, capacity)}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *prebuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	written := 0
	for len(p) > 0 {
		for b.n == len(b.buf) && !b.closed && b.err == nil {
			b.cond.Wait()
		}
		if b.closed || b.err != nil {
			return written, errBufferClosed
		}

		w := (b.r + b.n) % len(b.buf)
		chunk := min(len(p), len(b.buf)-b.n, len(b.buf)-w)
		copy(b.buf[w:w+chunk], p[:chunk])
		b.n += chunk
		written += chunk
		p = p[chunk:]
		b.cond.Broadcast()
	}
	return written, nil
}

func (b *prebuffer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for b.n == 0 && !b.closed && b.err == nil {
		b.cond.Wait()
	}
	if b.closed {
		return 0, errBufferClosed
	}
	if b.n == 0 {
		return 0, b.err
	}

	chunk := min(len(p), b.n, len(b.buf)-b.r)
	copy(p, b.buf[b.r:b.r+chunk])
	b.r = (b.r + chunk) % len(b.buf)
	b.n -= chunk
	b.cond.Broadcast()
	return chunk, nil
}

// CloseWrite marks the end of input. Readers drain what is left, then get err
// (io.EOF when err is nil).
func (b *prebuffer) CloseWrite(err error) {
	if err == nil {
		err = io.EOF
	}
	b.mu.Lock()
	if b.err == nil {
		b.err = err
	}
	b.cond.Broadcast()
	b.mu.Unlock()
}

// Close stops both sides immediately.
func (b *prebuffer) Close() error {
	b.mu.Lock()
	b.closed = true
	b.cond.Broadcast()
	b.mu.Unlock()
	return nil
}

func (b *prebuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.n
}

func (b *prebuffer) Cap() int {
	return len(b.buf)
}
