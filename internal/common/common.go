package common

import (
	"math/bits"
	"reflect"
)

// IsFixedKind reports whether k is a fixed-size primitive kind.
func IsFixedKind(k reflect.Kind) bool {
	switch k {
	case reflect.Bool,
		reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// IsIntKind reports whether k is a signed or unsigned integer kind.
func IsIntKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	default:
		return false
	}
}

// IsSignedKind reports whether k is a signed integer kind.
func IsSignedKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	default:
		return false
	}
}

// FixedSize returns the byte width for fixed-size primitive kinds.
func FixedSize(k reflect.Kind) int {
	switch k {
	case reflect.Bool, reflect.Int8, reflect.Uint8:
		return 1
	case reflect.Int16, reflect.Uint16:
		return 2
	case reflect.Int32, reflect.Uint32, reflect.Float32:
		return 4
	case reflect.Int, reflect.Uint, reflect.Uintptr, reflect.Int64, reflect.Uint64, reflect.Float64:
		return 8
	default:
		return -1
	}
}

// Uint reads len(b) (1..8) bytes as an unsigned integer.
func Uint(b []byte, little bool) uint64 {
	var x uint64
	if little {
		for i := len(b) - 1; i >= 0; i-- {
			x = x<<8 | uint64(b[i])
		}
		return x
	}
	for _, c := range b {
		x = x<<8 | uint64(c)
	}
	return x
}

// PutUint writes the low len(dst) bytes of x into dst.
func PutUint(dst []byte, x uint64, little bool) {
	n := len(dst)
	for i := 0; i < n; i++ {
		c := byte(x >> (8 * uint(i)))
		if little {
			dst[i] = c
		} else {
			dst[n-1-i] = c
		}
	}
}

// SignExtend interprets the low n bytes of x as a two's complement value.
func SignExtend(x uint64, n int) int64 {
	if n >= 8 {
		return int64(x)
	}
	shift := uint(64 - 8*n)
	return int64(x<<shift) >> shift
}

// FitsUint reports whether x is representable in n bytes.
func FitsUint(x uint64, n int) bool {
	if n >= 8 {
		return true
	}
	return x>>(8*uint(n)) == 0
}

// MaskShift returns the number of trailing zero bits of a non-zero mask.
func MaskShift(mask uint64) int {
	if mask == 0 {
		return 0
	}
	return bits.TrailingZeros64(mask)
}

// Reverse returns a reversed copy of b.
func Reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return out
}
