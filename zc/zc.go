// Package zc (zero-copy) contains the unsafe aliasing helpers used when
// fieldwire decodes in borrow mode. Values produced here share memory with
// the input buffer: the caller must keep that buffer alive and unmodified
// for as long as the values are in use.
package zc

import "unsafe"

// String returns b viewed as a string without copying.
func String(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}

// Bytes returns the bytes backing s without copying. The result must not
// be written to.
func Bytes(s string) []byte {
	if s == "" {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

// Aliases reports whether sub points into buf.
func Aliases(buf, sub []byte) bool {
	if len(buf) == 0 || len(sub) == 0 {
		return false
	}
	start := uintptr(unsafe.Pointer(&buf[0]))
	end := start + uintptr(len(buf))
	p := uintptr(unsafe.Pointer(&sub[0]))
	return p >= start && p < end
}
