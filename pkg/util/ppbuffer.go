package util

import "io"

// PPBuffer is a growable append-only byte buffer. It is the output sink
// used by the frame encode/decode paths: producers append with Write and
// WriteByte, consumers read the accumulated bytes with Bytes. Unlike
// bytes.Buffer it exposes Resize, which sets the buffer to an exact
// length so callers can read from an io.Reader directly into its backing
// array. The zero value is ready to use.
type PPBuffer struct {
	buf []byte
}

func NewPPBuffer(buf []byte) *PPBuffer { return &PPBuffer{buf: buf} }

// Bytes returns the buffer contents. The slice is valid only until the
// next mutating call.
func (b *PPBuffer) Bytes() []byte {
	return b.buf
}

func (b *PPBuffer) Len() int {
	return len(b.buf)
}

func (b *PPBuffer) Cap() int {
	return cap(b.buf)
}

// Reset truncates to length zero, keeping the backing array for reuse.
func (b *PPBuffer) Reset() {
	b.buf = b.buf[:0]
}

// Grow ensures capacity for n more bytes without changing the length.
func (b *PPBuffer) Grow(n int) {
	if n < 0 {
		panic("util.PPBuffer.Grow: negative count")
	}
	if cap(b.buf)-len(b.buf) >= n {
		return
	}
	nb := make([]byte, len(b.buf), 2*cap(b.buf)+n)
	copy(nb, b.buf)
	b.buf = nb
}

// Resize discards the contents and sets the buffer to length n. The
// returned window from Bytes() may then be filled in place, typically via
// io.ReadFull.
func (b *PPBuffer) Resize(n int) {
	b.Reset()
	if n > cap(b.buf) {
		b.Grow(n)
	}
	b.buf = b.buf[:n]
}

func (b *PPBuffer) Write(p []byte) (int, error) {
	b.Grow(len(p))
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *PPBuffer) WriteByte(c byte) error {
	b.Grow(1)
	b.buf = append(b.buf, c)
	return nil
}

// WriteTo drains the buffer into w. On a partial write the unwritten
// tail is moved to the front so the caller may retry later.
func (b *PPBuffer) WriteTo(w io.Writer) (n int64, err error) {
	if len(b.buf) == 0 {
		return 0, nil
	}
	var k int
	k, err = w.Write(b.buf)
	n = int64(k)
	if k >= len(b.buf) {
		b.buf = b.buf[:0]
	} else if k > 0 {
		b.buf = b.buf[:copy(b.buf, b.buf[k:])]
	}
	return n, err
}
