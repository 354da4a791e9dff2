package fieldwire

import (
	"math"
	"reflect"

	"github.com/rawbytedev/fieldwire/internal/common"
)

// intCodec handles every integer width and bool with one algorithm
// parameterized by width and signedness.
type intCodec struct {
	size   int
	signed bool
	isBool bool
}

func newIntCodec(k reflect.Kind) intCodec {
	if k == reflect.Bool {
		return intCodec{size: 1, isBool: true}
	}
	return intCodec{size: common.FixedSize(k), signed: common.IsSignedKind(k)}
}

// width resolves the number of bytes on the wire: the native width, or a
// shorter explicit length.
func (ic intCodec) width(c *Cursor, ctr *Container, f *Field) (int, error) {
	if f.Length == nil {
		return ic.size, nil
	}
	n, err := evalInt(c, ctr, f.Length, "length")
	if err != nil {
		return 0, err
	}
	if n < 1 || n > ic.size {
		return 0, lengthf(c, "length %d for a %d-byte integer", n, ic.size)
	}
	return n, nil
}

func (ic intCodec) decode(c *Cursor, ctr *Container, f *Field, dst reflect.Value) error {
	n, err := ic.width(c, ctr, f)
	if err != nil {
		return err
	}
	raw, err := c.TakeUint(n, resolveOrder(ctr, f))
	if err != nil {
		return err
	}
	masked := false
	if mask := f.mask(); mask != 0 {
		raw = (raw & mask) >> common.MaskShift(mask)
		masked = true
	}
	switch {
	case ic.isBool:
		dst.SetBool(raw != 0)
	case ic.signed && !masked:
		dst.SetInt(common.SignExtend(raw, n))
	case ic.signed:
		dst.SetInt(int64(raw))
	default:
		dst.SetUint(raw)
	}
	return nil
}

func (ic intCodec) encode(c *Cursor, ctr *Container, f *Field, src reflect.Value) (int, error) {
	var v uint64
	switch {
	case ic.isBool:
		if src.Bool() {
			v = 1
		}
	case ic.signed:
		v = uint64(src.Int())
	default:
		v = src.Uint()
	}

	if mask := f.mask(); mask != 0 {
		shifted := v << common.MaskShift(mask)
		if shifted&^mask != 0 || shifted>>common.MaskShift(mask) != v {
			return 0, lengthf(c, "value %d does not fit mask %#x", v, mask)
		}
		if f.Untake || f.BitsStart != 0 {
			ctr.scope().stageBits(shifted)
			return 0, nil
		}
		v = ctr.scope().flushBits(shifted)
	}

	n, err := ic.width(c, ctr, f)
	if err != nil {
		return 0, err
	}
	if ic.signed && f.mask() == 0 {
		if n < 8 && common.SignExtend(v&(1<<(8*uint(n))-1), n) != int64(v) {
			return 0, lengthf(c, "value %d does not fit in %d bytes", int64(v), n)
		}
	} else if !common.FitsUint(v, n) {
		return 0, lengthf(c, "value %d does not fit in %d bytes", v, n)
	}
	return c.PushUint(v, n, resolveOrder(ctr, f))
}

type floatCodec struct {
	size uintptr
}

func (fc floatCodec) decode(c *Cursor, ctr *Container, f *Field, dst reflect.Value) error {
	raw, err := c.TakeUint(int(fc.size), resolveOrder(ctr, f))
	if err != nil {
		return err
	}
	if fc.size == 4 {
		dst.SetFloat(float64(math.Float32frombits(uint32(raw))))
	} else {
		dst.SetFloat(math.Float64frombits(raw))
	}
	return nil
}

func (fc floatCodec) encode(c *Cursor, ctr *Container, f *Field, src reflect.Value) (int, error) {
	var raw uint64
	if fc.size == 4 {
		raw = uint64(math.Float32bits(float32(src.Float())))
	} else {
		raw = math.Float64bits(src.Float())
	}
	return c.PushUint(raw, int(fc.size), resolveOrder(ctr, f))
}
