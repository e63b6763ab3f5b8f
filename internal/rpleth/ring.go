package rpleth

import "errors"

// ErrRingFull is returned by Ring.Write when the incoming bytes do not
// fit; nothing is written in that case.
var ErrRingFull = errors.New("rpleth: ring buffer full")

// Ring is a fixed-capacity circular byte buffer. One Ring belongs to
// exactly one connection and absorbs raw socket reads until the codec
// can drain complete packets from the front.
type Ring struct {
	buf  []byte
	head int
	size int
}

// NewRing allocates a ring with the given capacity.
func NewRing(capacity int) *Ring {
	return &Ring{buf: make([]byte, capacity)}
}

// Cap returns the fixed capacity.
func (r *Ring) Cap() int { return len(r.buf) }

// Len returns the number of buffered bytes.
func (r *Ring) Len() int { return r.size }

// Write appends p. If p does not fit in the remaining space the write
// is rejected whole and ErrRingFull is returned; partial writes would
// corrupt packet framing.
func (r *Ring) Write(p []byte) error {
	if len(p) > len(r.buf)-r.size {
		return ErrRingFull
	}
	tail := (r.head + r.size) % len(r.buf)
	n := copy(r.buf[tail:], p)
	copy(r.buf, p[n:])
	r.size += len(p)
	return nil
}

// Peek copies up to n bytes from the front without consuming them.
// It returns fewer bytes if fewer are buffered.
func (r *Ring) Peek(n int) []byte {
	if n > r.size {
		n = r.size
	}
	out := make([]byte, n)
	m := copy(out, r.buf[r.head:])
	copy(out[m:], r.buf)
	return out
}

// Discard drops n bytes from the front. Discarding more than is
// buffered empties the ring.
func (r *Ring) Discard(n int) {
	if n > r.size {
		n = r.size
	}
	r.head = (r.head + n) % len(r.buf)
	r.size -= n
	if r.size == 0 {
		r.head = 0
	}
}
