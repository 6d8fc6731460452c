package httpbody

import (
	"io"
	"sync"
)

const teeChunkSize = 4096

// teeStream splits src into two independent single-pass readers carrying
// identical data. Each branch queues up to highWaterMark bytes of
// not-yet-consumed chunks; once a branch's queue is full the pump blocks,
// so the slower branch applies backpressure to src. Both branches exist
// before the pump reads a single byte.
//
// Closing a branch abandons it; the sibling keeps receiving data. When
// both branches are closed, or src is exhausted, src is closed if it
// implements io.Closer.
func teeStream(src io.Reader, highWaterMark int) (io.ReadCloser, io.ReadCloser) {
	slots := highWaterMark / teeChunkSize
	if slots < 1 {
		slots = 1
	}
	a := newTeeBranch(slots)
	b := newTeeBranch(slots)
	go pumpTee(src, a, b)
	return a, b
}

type teeBranch struct {
	ch     chan []byte
	closed chan struct{}
	once   sync.Once

	// rerr is written by the pump before ch is closed and read by the
	// consumer only after ch is closed.
	rerr error

	cur []byte
}

func newTeeBranch(slots int) *teeBranch {
	return &teeBranch{
		ch:     make(chan []byte, slots),
		closed: make(chan struct{}),
	}
}

func (t *teeBranch) Read(p []byte) (int, error) {
	for len(t.cur) == 0 {
		chunk, ok := <-t.ch
		if !ok {
			if t.rerr != nil {
				return 0, t.rerr
			}
			return 0, io.EOF
		}
		t.cur = chunk
	}
	n := copy(p, t.cur)
	t.cur = t.cur[n:]
	return n, nil
}

// Close abandons the branch. Data queued for it is dropped.
func (t *teeBranch) Close() error {
	t.once.Do(func() {
		close(t.closed)
	})
	return nil
}

// deliver queues chunk for the branch, blocking while its queue is full.
// It reports false once the branch was closed.
func (t *teeBranch) deliver(chunk []byte) bool {
	select {
	case t.ch <- chunk:
		return true
	case <-t.closed:
		return false
	}
}

func (t *teeBranch) finish(err error) {
	t.rerr = err
	close(t.ch)
}

func pumpTee(src io.Reader, a, b *teeBranch) {
	buf := make([]byte, teeChunkSize)
	aliveA, aliveB := true, true
	for {
		n, err := src.Read(buf)
		if n > 0 {
			// Branches never write into the chunk, so one copy is shared.
			chunk := append([]byte(nil), buf[:n]...)
			if aliveA {
				aliveA = a.deliver(chunk)
			}
			if aliveB {
				aliveB = b.deliver(chunk)
			}
		}
		if err != nil || (!aliveA && !aliveB) {
			var rerr error
			if err != nil && err != io.EOF {
				rerr = err
			}
			a.finish(rerr)
			b.finish(rerr)
			if c, ok := src.(io.Closer); ok {
				c.Close()
			}
			return
		}
	}
}
