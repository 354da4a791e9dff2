package fieldwire

import (
	"net/netip"
	"reflect"

	"github.com/rawbytedev/fieldwire/internal/common"
)

var addrType = reflect.TypeFor[netip.Addr]()

// addrCodec handles netip.Addr as a 4-byte (or, with length=16, 16-byte)
// integer.
type addrCodec struct{}

func addrWidth(c *Cursor, ctr *Container, f *Field) (int, error) {
	if f.Length == nil {
		return 4, nil
	}
	n, err := evalInt(c, ctr, f.Length, "length")
	if err != nil {
		return 0, err
	}
	if n != 4 && n != 16 {
		return 0, lengthf(c, "address length %d, want 4 or 16", n)
	}
	return n, nil
}

func (addrCodec) decode(c *Cursor, ctr *Container, f *Field, dst reflect.Value) error {
	n, err := addrWidth(c, ctr, f)
	if err != nil {
		return err
	}
	b, err := c.Take(n)
	if err != nil {
		return err
	}
	if resolveOrder(ctr, f) == LittleEndian {
		b = common.Reverse(b)
	}
	var a netip.Addr
	if n == 4 {
		a = netip.AddrFrom4([4]byte(b))
	} else {
		a = netip.AddrFrom16([16]byte(b))
	}
	dst.Set(reflect.ValueOf(a))
	return nil
}

func (addrCodec) encode(c *Cursor, ctr *Container, f *Field, src reflect.Value) (int, error) {
	a := src.Interface().(netip.Addr)
	n, err := addrWidth(c, ctr, f)
	if err != nil {
		return 0, err
	}
	var b []byte
	switch {
	case !a.IsValid():
		return 0, failf(c, "invalid address")
	case n == 4 && !a.Is4():
		return 0, lengthf(c, "address %s needs length=16", a)
	case n == 4:
		v := a.As4()
		b = v[:]
	default:
		v := a.As16()
		b = v[:]
	}
	if resolveOrder(ctr, f) == LittleEndian {
		b = common.Reverse(b)
	}
	return c.Push(b)
}
