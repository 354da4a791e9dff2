package fieldwire

import (
	"log/slog"
	"math"
	"reflect"
)

// Container holds the record-wide modifiers of a decode or encode call:
// the default byte order, the default discriminant width and the variable
// binding table. Nested records get a child Container that shares Scope.
type Container struct {
	ByteOrder *ByteOrder
	ByteCount int // discriminant width for unions; 0 means 1 byte
	Scope     *Scope

	codec *Codec
}

// NewContainer returns a Container with a fresh Scope.
func NewContainer() *Container {
	return &Container{Scope: NewScope()}
}

func (ctr *Container) child(order *ByteOrder, byteCount int) *Container {
	next := *ctr
	if order != nil {
		next.ByteOrder = order
	}
	if byteCount > 0 {
		next.ByteCount = byteCount
	}
	return &next
}

func (ctr *Container) scope() *Scope {
	if ctr.Scope == nil {
		ctr.Scope = NewScope()
	}
	return ctr.Scope
}

func (ctr *Container) engine() *Codec {
	if ctr.codec == nil {
		return defaultCodec
	}
	return ctr.codec
}

func (ctr *Container) logger() *slog.Logger {
	return ctr.engine().logger
}

// DecodeFunc is a with/with_decode hook. It reads from c into dst, which is
// addressable and of the field's declared type.
type DecodeFunc func(c *Cursor, ctr *Container, f *Field, dst reflect.Value, args []any) error

// EncodeFunc is a with/with_encode hook. It writes src and returns the
// number of bytes written.
type EncodeFunc func(c *Cursor, ctr *Container, f *Field, src reflect.Value, args []any) (int, error)

// Hook pairs a decode and an encode function under one name.
type Hook struct {
	Decode DecodeFunc
	Encode EncodeFunc
}

// Field holds the per-field modifiers. The zero value means "plain field":
// native width, big-endian unless the container says otherwise, one-byte
// length or count prefix for strings and collections.
type Field struct {
	Name string

	ByteOrder *ByteOrder
	Offset    *Expr // skip (decode) or pad (encode) this many bytes first
	Full      byte  // padding byte written for Offset

	// Extent. Collections resolve count → try_count → byte_count →
	// byte_count_outside → remaining → one-byte prefix; Length overrides
	// all of them.
	Length           *Expr
	ByteCount        int
	ByteCountOutside int
	Count            *Expr
	TryCount         *Expr
	Remaining        bool

	Untake    bool
	Bits      uint64
	BitsStart uint64

	Key            []byte
	Split          []byte
	Linend         []byte
	LoopSkipStarts []byte

	// Branch takes a union's discriminant from an expression instead of
	// reading a tag. ByteCountDisable suppresses the tag read and write.
	Branch           *Expr
	ByteCountDisable bool

	Skip       bool
	SkipEncode bool
	SkipDecode bool

	With       *Hook
	WithDecode DecodeFunc
	WithEncode EncodeFunc
	WithArgs   []any

	ValueDecode *Expr // integer transform after decode; `value` is the decoded value
	ValueEncode *Expr // integer transform before encode
	CheckValue  *Expr
	IfExpr      *Cond

	VariableName    string
	GetVariableName []string
	FromStr         bool
}

var emptyField = &Field{}

// elem returns the modifiers applied to each element of a collection:
// framing and per-value options stay, extent and field-level actions go.
func (f *Field) elem() *Field {
	if f == nil {
		return emptyField
	}
	e := &Field{
		Name:           f.Name,
		ByteOrder:      f.ByteOrder,
		Full:           f.Full,
		Linend:         f.Linend,
		LoopSkipStarts: f.LoopSkipStarts,
		FromStr:        f.FromStr,
	}
	if f.ByteCountOutside == 0 {
		e.ByteCount = f.ByteCount
	}
	return e
}

// inner returns the modifiers an Option passes to its payload: extent and
// framing stay, actions already taken by the outer field go.
func (f *Field) inner() *Field {
	g := *f
	g.Offset = nil
	if len(g.Key) > 0 {
		g.Key, g.Split = nil, nil
	}
	g.Skip, g.SkipEncode, g.SkipDecode = false, false, false
	g.With, g.WithDecode, g.WithEncode, g.WithArgs = nil, nil, nil, nil
	g.ValueDecode, g.ValueEncode, g.CheckValue = nil, nil, nil
	g.IfExpr = nil
	g.VariableName, g.GetVariableName = "", nil
	g.Untake, g.FromStr = false, false
	return &g
}

func (f *Field) decodeHook() DecodeFunc {
	if f.WithDecode != nil {
		return f.WithDecode
	}
	if f.With != nil {
		return f.With.Decode
	}
	return nil
}

func (f *Field) encodeHook() EncodeFunc {
	if f.WithEncode != nil {
		return f.WithEncode
	}
	if f.With != nil {
		return f.With.Encode
	}
	return nil
}

func (f *Field) mask() uint64 {
	if f.BitsStart != 0 {
		return f.BitsStart
	}
	return f.Bits
}

// evalInt evaluates an extent expression, rejecting negative results.
func evalInt(c *Cursor, ctr *Container, e *Expr, what string) (int, error) {
	v, err := e.Eval(ctr.scope())
	if err != nil {
		return 0, newError(c, ErrFail, err)
	}
	if v < 0 {
		return 0, lengthf(c, "%s %s evaluated to %d", what, e, v)
	}
	return int(v), nil
}

type extentMode uint8

const (
	extentExact extentMode = iota
	extentTry
	extentRemaining
)

// collectionExtent resolves how many elements a collection field holds,
// reading an inline prefix where the modifiers call for one.
func collectionExtent(c *Cursor, ctr *Container, f *Field) (int, extentMode, error) {
	switch {
	case f.Length != nil:
		n, err := evalInt(c, ctr, f.Length, "length")
		return n, extentExact, err
	case f.Count != nil:
		n, err := evalInt(c, ctr, f.Count, "count")
		return n, extentExact, err
	case f.TryCount != nil:
		n, err := evalInt(c, ctr, f.TryCount, "try_count")
		return n, extentTry, err
	case f.ByteCount > 0:
		n, err := takeLength(c, f.ByteCount, resolveOrder(ctr, f))
		return n, extentExact, err
	case f.ByteCountOutside > 0:
		n, err := takeLength(c, f.ByteCountOutside, resolveOrder(ctr, f))
		return n, extentExact, err
	case f.Remaining:
		return 0, extentRemaining, nil
	}
	n, err := takeLength(c, 1, BigEndian)
	return n, extentExact, err
}

// takeLength reads a width-byte length prefix. Prefixes that do not fit an
// int are rejected and leave the cursor where it was.
func takeLength(c *Cursor, width int, order ByteOrder) (int, error) {
	start := c.pos
	n, err := c.TakeUint(width, order)
	if err != nil {
		return 0, err
	}
	if n > math.MaxInt {
		c.pos = start
		return 0, lengthf(c, "length prefix %d out of range", n)
	}
	return int(n), nil
}

// writeCollectionExtent writes the count prefix for n elements, or checks n
// against an explicit count.
func writeCollectionExtent(c *Cursor, ctr *Container, f *Field, n int) (int, error) {
	switch {
	case f.Length != nil || f.Count != nil:
		e := f.Length
		if e == nil {
			e = f.Count
		}
		want, err := evalInt(c, ctr, e, "count")
		if err != nil {
			return 0, err
		}
		if want != n {
			return 0, lengthf(c, "collection has %d elements, count is %d", n, want)
		}
		return 0, nil
	case f.TryCount != nil:
		limit, err := evalInt(c, ctr, f.TryCount, "try_count")
		if err != nil {
			return 0, err
		}
		if n > limit {
			return 0, lengthf(c, "collection has %d elements, try_count is %d", n, limit)
		}
		return 0, nil
	case f.ByteCount > 0:
		return pushLength(c, uint64(n), f.ByteCount, resolveOrder(ctr, f))
	case f.ByteCountOutside > 0:
		return pushLength(c, uint64(n), f.ByteCountOutside, resolveOrder(ctr, f))
	case f.Remaining:
		return 0, nil
	}
	return pushLength(c, uint64(n), 1, BigEndian)
}

func pushLength(c *Cursor, n uint64, width int, order ByteOrder) (int, error) {
	if width < 8 && n>>(8*uint(width)) != 0 {
		return 0, lengthf(c, "length %d does not fit in %d bytes", n, width)
	}
	return c.PushUint(n, width, order)
}
