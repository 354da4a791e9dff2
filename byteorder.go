package fieldwire

import (
	"fmt"
	"strings"
)

// ByteOrder selects how multi-byte integers are laid out.
type ByteOrder uint8

const (
	BigEndian ByteOrder = iota
	LittleEndian
)

// ParseByteOrder accepts "BE", ">", "0", "big" and "LE", "<", "1",
// "little" (case-insensitive).
func ParseByteOrder(s string) (ByteOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "be", ">", "0", "big", "bigendian", "big_endian":
		return BigEndian, nil
	case "le", "<", "1", "little", "littleendian", "little_endian":
		return LittleEndian, nil
	}
	return BigEndian, fmt.Errorf("unknown byte order %q", s)
}

func (o ByteOrder) String() string {
	if o == LittleEndian {
		return "LE"
	}
	return "BE"
}

// Order returns a pointer to o, for use in modifier literals.
func Order(o ByteOrder) *ByteOrder { return &o }

// resolveOrder applies field > container > big-endian precedence.
func resolveOrder(ctr *Container, f *Field) ByteOrder {
	if f != nil && f.ByteOrder != nil {
		return *f.ByteOrder
	}
	if ctr != nil && ctr.ByteOrder != nil {
		return *ctr.ByteOrder
	}
	return BigEndian
}
