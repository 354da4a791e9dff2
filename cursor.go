package fieldwire

import (
	"bytes"
	"errors"

	"github.com/rawbytedev/fieldwire/internal/common"
)

// Cursor is a byte buffer with a movable position. A reader cursor walks
// an input buffer; a writer cursor owns a growable buffer and appends to it.
//
// Every read is bounds-checked before the position moves, so a failed read
// leaves the cursor exactly where it was.
type Cursor struct {
	buf      []byte
	pos      int
	writable bool
	borrowed bool
	max      int // write cap, 0 for none
}

// NewReader returns a cursor over data for copy-out decoding: strings and
// byte slices produced from it never alias data.
func NewReader(data []byte) *Cursor {
	return &Cursor{buf: data}
}

// NewBorrowReader returns a cursor over data for zero-copy decoding.
// Decoded strings and byte slices alias data, which must outlive them and
// must not be modified while they are in use.
func NewBorrowReader(data []byte) *Cursor {
	return &Cursor{buf: data, borrowed: true}
}

// NewWriter returns an owned, growable cursor for encoding.
func NewWriter(capacity int) *Cursor {
	return &Cursor{buf: make([]byte, 0, capacity), writable: true}
}

// Borrowed reports whether decoded values may alias the input buffer.
func (c *Cursor) Borrowed() bool { return c.borrowed }

// Bytes returns the whole underlying buffer.
func (c *Cursor) Bytes() []byte { return c.buf }

// Len returns the buffer length.
func (c *Cursor) Len() int { return len(c.buf) }

// Position returns the current offset.
func (c *Cursor) Position() int { return c.pos }

// Remaining returns the bytes from the position to the end.
func (c *Cursor) Remaining() []byte { return c.buf[c.pos:] }

// Advance moves the position forward by n bytes.
func (c *Cursor) Advance(n int) error {
	if n < 0 || n > len(c.buf)-c.pos {
		return lengthf(c, "advance %d with %d remaining", n, len(c.buf)-c.pos)
	}
	c.pos += n
	return nil
}

// SetPosition moves the position to p.
func (c *Cursor) SetPosition(p int) error {
	if p < 0 || p > len(c.buf) {
		return lengthf(c, "position %d outside buffer of %d", p, len(c.buf))
	}
	c.pos = p
	return nil
}

// Peek returns the next n bytes without consuming them.
func (c *Cursor) Peek(n int) ([]byte, error) {
	if n < 0 || n > len(c.buf)-c.pos {
		return nil, lengthf(c, "need %d bytes, have %d", n, len(c.buf)-c.pos)
	}
	return c.buf[c.pos : c.pos+n : c.pos+n], nil
}

// Take returns the next n bytes and advances past them. The result always
// aliases the buffer; copy-out callers clone it.
func (c *Cursor) Take(n int) ([]byte, error) {
	b, err := c.Peek(n)
	if err != nil {
		return nil, err
	}
	c.pos += n
	return b, nil
}

// TakeUint reads an n-byte (1..8) unsigned integer, zero-extended.
func (c *Cursor) TakeUint(n int, order ByteOrder) (uint64, error) {
	if n < 1 || n > 8 {
		return 0, lengthf(c, "integer width %d out of range", n)
	}
	b, err := c.Take(n)
	if err != nil {
		return 0, err
	}
	return common.Uint(b, order == LittleEndian), nil
}

// TakeInt reads an n-byte (1..8) two's complement integer, sign-extended.
func (c *Cursor) TakeInt(n int, order ByteOrder) (int64, error) {
	v, err := c.TakeUint(n, order)
	if err != nil {
		return 0, err
	}
	return common.SignExtend(v, n), nil
}

// TakeUint128 reads an n-byte (1..16) unsigned integer, zero-extended.
func (c *Cursor) TakeUint128(n int, order ByteOrder) (Uint128, error) {
	if n < 1 || n > 16 {
		return Uint128{}, lengthf(c, "integer width %d out of range", n)
	}
	b, err := c.Take(n)
	if err != nil {
		return Uint128{}, err
	}
	return uint128From(b, order), nil
}

// HasPrefix reports whether the remaining bytes start with p.
func (c *Cursor) HasPrefix(p []byte) bool {
	return bytes.HasPrefix(c.buf[c.pos:], p)
}

// Find returns the bytes before needle and advances past the needle.
func (c *Cursor) Find(needle []byte) ([]byte, error) {
	i, err := c.index(needle)
	if err != nil {
		return nil, err
	}
	out := c.buf[c.pos : c.pos+i : c.pos+i]
	c.pos += i + len(needle)
	return out, nil
}

// FindBefore returns the bytes before needle, leaving the cursor on the
// first byte of the needle.
func (c *Cursor) FindBefore(needle []byte) ([]byte, error) {
	i, err := c.index(needle)
	if err != nil {
		return nil, err
	}
	out := c.buf[c.pos : c.pos+i : c.pos+i]
	c.pos += i
	return out, nil
}

// TakeUntil returns the bytes before the next occurrence of needle, or all
// remaining bytes when there is none. The needle is not consumed.
func (c *Cursor) TakeUntil(needle []byte) []byte {
	rest := c.buf[c.pos:]
	i := -1
	if len(needle) > 0 {
		i = bytes.Index(rest, needle)
	}
	if i < 0 {
		i = len(rest)
	}
	c.pos += i
	return rest[:i:i]
}

func (c *Cursor) index(needle []byte) (int, error) {
	if len(needle) == 0 {
		return 0, failf(c, "empty delimiter")
	}
	i := bytes.Index(c.buf[c.pos:], needle)
	if i < 0 {
		return 0, failf(c, "delimiter %q not found", needle)
	}
	return i, nil
}

var errReadOnly = errors.New("cursor is read-only")

// Push appends b and returns the number of bytes written.
func (c *Cursor) Push(b []byte) (int, error) {
	if err := c.grow(len(b)); err != nil {
		return 0, err
	}
	c.buf = append(c.buf, b...)
	c.pos = len(c.buf)
	return len(b), nil
}

// PushByte appends a single byte.
func (c *Cursor) PushByte(b byte) (int, error) {
	if err := c.grow(1); err != nil {
		return 0, err
	}
	c.buf = append(c.buf, b)
	c.pos = len(c.buf)
	return 1, nil
}

// PushUint writes the low n (1..8) bytes of v in the given order.
func (c *Cursor) PushUint(v uint64, n int, order ByteOrder) (int, error) {
	if n < 1 || n > 8 {
		return 0, lengthf(c, "integer width %d out of range", n)
	}
	if err := c.grow(n); err != nil {
		return 0, err
	}
	start := len(c.buf)
	c.buf = c.buf[:start+n]
	common.PutUint(c.buf[start:], v, order == LittleEndian)
	c.pos = len(c.buf)
	return n, nil
}

// PushUint128 writes the low n (1..16) bytes of v in the given order.
func (c *Cursor) PushUint128(v Uint128, n int, order ByteOrder) (int, error) {
	if n < 1 || n > 16 {
		return 0, lengthf(c, "integer width %d out of range", n)
	}
	return c.Push(v.bytes(n, order))
}

// grow reserves room for n more bytes, failing on read-only cursors and
// when the configured cap would be exceeded.
func (c *Cursor) grow(n int) error {
	if !c.writable {
		return newError(c, ErrPushFail, errReadOnly)
	}
	if c.max > 0 && len(c.buf)+n > c.max {
		return newError(c, ErrPushFail, errors.New("buffer cap exceeded"))
	}
	if cap(c.buf)-len(c.buf) < n {
		next := make([]byte, len(c.buf), 2*cap(c.buf)+n)
		copy(next, c.buf)
		c.buf = next
	}
	return nil
}
