package fieldwire

import (
	"fmt"
	"math/big"
	"net"

	"github.com/rawbytedev/fieldwire/internal/common"
)

// Uint24 is a 3-byte unsigned integer on the wire.
type Uint24 uint32

// Int24 is a 3-byte two's complement integer on the wire.
type Int24 int32

// Uint128 is a 16-byte unsigned integer.
type Uint128 struct {
	Hi, Lo uint64
}

// Int128 is a 16-byte two's complement integer; Hi carries the sign.
type Int128 struct {
	Hi int64
	Lo uint64
}

func uint128From(b []byte, order ByteOrder) Uint128 {
	var be [16]byte
	if order == LittleEndian {
		b = common.Reverse(b)
	}
	copy(be[16-len(b):], b)
	return Uint128{Hi: common.Uint(be[:8], false), Lo: common.Uint(be[8:], false)}
}

// bytes returns the low n bytes of u in the given order.
func (u Uint128) bytes(n int, order ByteOrder) []byte {
	var be [16]byte
	common.PutUint(be[:8], u.Hi, false)
	common.PutUint(be[8:], u.Lo, false)
	out := be[16-n:]
	if order == LittleEndian {
		return common.Reverse(out)
	}
	return append([]byte(nil), out...)
}

// fits reports whether u is representable in n bytes.
func (u Uint128) fits(n int) bool {
	if n >= 16 {
		return true
	}
	if n > 8 {
		return common.FitsUint(u.Hi, n-8)
	}
	return u.Hi == 0 && common.FitsUint(u.Lo, n)
}

// Big returns u as a big.Int.
func (u Uint128) Big() *big.Int {
	b := new(big.Int).SetUint64(u.Hi)
	b.Lsh(b, 64)
	return b.Or(b, new(big.Int).SetUint64(u.Lo))
}

func (u Uint128) String() string {
	return u.Big().String()
}

func width128(c *Cursor, ctr *Container, f *Field) (int, error) {
	if f.Length == nil {
		return 16, nil
	}
	n, err := evalInt(c, ctr, f.Length, "length")
	if err != nil {
		return 0, err
	}
	if n < 1 || n > 16 {
		return 0, lengthf(c, "length %d for a 16-byte integer", n)
	}
	return n, nil
}

// DecodeWire implements Unmarshaler.
func (u *Uint128) DecodeWire(c *Cursor, ctr *Container, f *Field) error {
	n, err := width128(c, ctr, f)
	if err != nil {
		return err
	}
	v, err := c.TakeUint128(n, resolveOrder(ctr, f))
	if err != nil {
		return err
	}
	*u = v
	return nil
}

// EncodeWire implements Marshaler.
func (u Uint128) EncodeWire(c *Cursor, ctr *Container, f *Field) (int, error) {
	n, err := width128(c, ctr, f)
	if err != nil {
		return 0, err
	}
	if !u.fits(n) {
		return 0, lengthf(c, "value %s does not fit in %d bytes", u, n)
	}
	return c.PushUint128(u, n, resolveOrder(ctr, f))
}

func (i Int128) bits() Uint128 { return Uint128{Hi: uint64(i.Hi), Lo: i.Lo} }

func (i Int128) String() string {
	b := i.bits().Big()
	if i.Hi < 0 {
		b.Sub(b, new(big.Int).Lsh(big.NewInt(1), 128))
	}
	return b.String()
}

// DecodeWire implements Unmarshaler. Short widths are sign-extended.
func (i *Int128) DecodeWire(c *Cursor, ctr *Container, f *Field) error {
	n, err := width128(c, ctr, f)
	if err != nil {
		return err
	}
	b, err := c.Take(n)
	if err != nil {
		return err
	}
	order := resolveOrder(ctr, f)
	if order == LittleEndian {
		b = common.Reverse(b)
	}
	var be [16]byte
	if b[0]&0x80 != 0 {
		for j := range be[:16-n] {
			be[j] = 0xff
		}
	}
	copy(be[16-n:], b)
	*i = Int128{Hi: int64(common.Uint(be[:8], false)), Lo: common.Uint(be[8:], false)}
	return nil
}

// EncodeWire implements Marshaler.
func (i Int128) EncodeWire(c *Cursor, ctr *Container, f *Field) (int, error) {
	n, err := width128(c, ctr, f)
	if err != nil {
		return 0, err
	}
	u := i.bits()
	if n < 16 {
		// the dropped high bytes must all be sign bytes
		full := u.bytes(16, BigEndian)
		sign := byte(0)
		if full[16-n]&0x80 != 0 {
			sign = 0xff
		}
		for _, x := range full[:16-n] {
			if x != sign {
				return 0, lengthf(c, "value %s does not fit in %d bytes", i, n)
			}
		}
	}
	return c.PushUint128(u, n, resolveOrder(ctr, f))
}

// MacAddr is a 6-byte hardware address, big-endian on the wire unless the
// byte order says otherwise.
type MacAddr [6]byte

func (m MacAddr) String() string {
	return net.HardwareAddr(m[:]).String()
}

// MarshalText implements encoding.TextMarshaler.
func (m MacAddr) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *MacAddr) UnmarshalText(b []byte) error {
	hw, err := net.ParseMAC(string(b))
	if err != nil {
		return err
	}
	if len(hw) != len(m) {
		return fmt.Errorf("%q is not a 6-byte MAC address", b)
	}
	copy(m[:], hw)
	return nil
}

// DecodeWire implements Unmarshaler.
func (m *MacAddr) DecodeWire(c *Cursor, ctr *Container, f *Field) error {
	b, err := c.Take(len(m))
	if err != nil {
		return err
	}
	if resolveOrder(ctr, f) == LittleEndian {
		b = common.Reverse(b)
	}
	copy(m[:], b)
	return nil
}

// EncodeWire implements Marshaler.
func (m MacAddr) EncodeWire(c *Cursor, ctr *Container, f *Field) (int, error) {
	b := m[:]
	if resolveOrder(ctr, f) == LittleEndian {
		b = common.Reverse(b)
	}
	return c.Push(b)
}
