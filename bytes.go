package fieldwire

import (
	"bytes"
	"reflect"
	"unicode/utf8"

	"github.com/rawbytedev/fieldwire/zc"
)

// ReadFramed reads one string-like payload using the field's framing:
// length, byte_count, linend, remaining, loop_skip_starts, or the default
// one-byte length prefix, in that order. The result aliases the cursor's
// buffer. On failure the cursor does not move.
func ReadFramed(c *Cursor, ctr *Container, f *Field) ([]byte, error) {
	if f == nil {
		f = emptyField
	}
	start := c.pos
	b, err := readFramed(c, ctr, f)
	if err != nil {
		c.pos = start
		return nil, err
	}
	return b, nil
}

func readFramed(c *Cursor, ctr *Container, f *Field) ([]byte, error) {
	switch {
	case f.Length != nil:
		n, err := evalInt(c, ctr, f.Length, "length")
		if err != nil {
			return nil, err
		}
		return c.Take(n)
	case f.Count != nil:
		n, err := evalInt(c, ctr, f.Count, "count")
		if err != nil {
			return nil, err
		}
		return c.Take(n)
	case f.TryCount != nil:
		n, err := evalInt(c, ctr, f.TryCount, "try_count")
		if err != nil {
			return nil, err
		}
		return c.Take(min(n, len(c.buf)-c.pos))
	case f.ByteCount > 0 || f.ByteCountOutside > 0:
		w := f.ByteCount
		if w == 0 {
			w = f.ByteCountOutside
		}
		n, err := takeLength(c, w, resolveOrder(ctr, f))
		if err != nil {
			return nil, err
		}
		return c.Take(n)
	case len(f.Linend) > 0:
		return c.Find(f.Linend)
	case f.Remaining:
		return c.Take(len(c.buf) - c.pos)
	case len(f.LoopSkipStarts) > 0:
		return c.TakeUntil(f.LoopSkipStarts), nil
	}
	n, err := takeLength(c, 1, BigEndian)
	if err != nil {
		return nil, err
	}
	return c.Take(n)
}

// WriteFramed is the encode mirror of ReadFramed.
func WriteFramed(c *Cursor, ctr *Container, f *Field, data []byte) (int, error) {
	if f == nil {
		f = emptyField
	}
	prefix := 0
	switch {
	case f.Length != nil:
		want, err := evalInt(c, ctr, f.Length, "length")
		if err != nil {
			return 0, err
		}
		if want != len(data) {
			return 0, lengthf(c, "value is %d bytes, length is %d", len(data), want)
		}
	case f.Count != nil:
		want, err := evalInt(c, ctr, f.Count, "count")
		if err != nil {
			return 0, err
		}
		if want != len(data) {
			return 0, lengthf(c, "value is %d bytes, count is %d", len(data), want)
		}
	case f.TryCount != nil:
		limit, err := evalInt(c, ctr, f.TryCount, "try_count")
		if err != nil {
			return 0, err
		}
		if len(data) > limit {
			return 0, lengthf(c, "value is %d bytes, try_count is %d", len(data), limit)
		}
	case f.ByteCount > 0 || f.ByteCountOutside > 0:
		w := f.ByteCount
		if w == 0 {
			w = f.ByteCountOutside
		}
		n, err := pushLength(c, uint64(len(data)), w, resolveOrder(ctr, f))
		if err != nil {
			return 0, err
		}
		prefix = n
	case len(f.Linend) > 0:
		if bytes.Contains(data, f.Linend) {
			return 0, failf(c, "value contains delimiter %q", f.Linend)
		}
		n, err := c.Push(data)
		if err != nil {
			return 0, err
		}
		m, err := c.Push(f.Linend)
		if err != nil {
			return 0, err
		}
		return n + m, nil
	case f.Remaining:
	case len(f.LoopSkipStarts) > 0:
		if bytes.Contains(data, f.LoopSkipStarts) {
			return 0, failf(c, "value contains sentinel %q", f.LoopSkipStarts)
		}
	default:
		n, err := pushLength(c, uint64(len(data)), 1, BigEndian)
		if err != nil {
			return 0, err
		}
		prefix = n
	}
	n, err := c.Push(data)
	if err != nil {
		return 0, err
	}
	return prefix + n, nil
}

type stringCodec struct{}

func (stringCodec) decode(c *Cursor, ctr *Container, f *Field, dst reflect.Value) error {
	start := c.pos
	b, err := ReadFramed(c, ctr, f)
	if err != nil {
		return err
	}
	if !utf8.Valid(b) {
		c.pos = start
		return failf(c, "invalid UTF-8")
	}
	if c.Borrowed() {
		dst.SetString(zc.String(b))
	} else {
		dst.SetString(string(b))
	}
	return nil
}

func (stringCodec) encode(c *Cursor, ctr *Container, f *Field, src reflect.Value) (int, error) {
	return WriteFramed(c, ctr, f, zc.Bytes(src.String()))
}

type bytesCodec struct{}

func (bytesCodec) decode(c *Cursor, ctr *Container, f *Field, dst reflect.Value) error {
	b, err := ReadFramed(c, ctr, f)
	if err != nil {
		return err
	}
	if len(b) == 0 {
		dst.SetZero()
		return nil
	}
	if !c.Borrowed() {
		b = bytes.Clone(b)
	}
	dst.SetBytes(b)
	return nil
}

func (bytesCodec) encode(c *Cursor, ctr *Container, f *Field, src reflect.Value) (int, error) {
	return WriteFramed(c, ctr, f, src.Bytes())
}

// byteArrayCodec handles [N]byte: exactly N raw bytes, no prefix.
type byteArrayCodec struct {
	n int
}

func (bc byteArrayCodec) decode(c *Cursor, ctr *Container, f *Field, dst reflect.Value) error {
	b, err := c.Take(bc.n)
	if err != nil {
		return err
	}
	for i, x := range b {
		dst.Index(i).SetUint(uint64(x))
	}
	return nil
}

func (bc byteArrayCodec) encode(c *Cursor, ctr *Container, f *Field, src reflect.Value) (int, error) {
	b := make([]byte, bc.n)
	for i := range b {
		b[i] = byte(src.Index(i).Uint())
	}
	return c.Push(b)
}
