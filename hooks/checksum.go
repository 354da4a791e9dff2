package hooks

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"reflect"

	"github.com/rawbytedev/fieldwire"
)

// ErrChecksum reports a CRC mismatch in a checksummed payload.
var ErrChecksum = errors.New("crc mismatch")

// CRC32 stores the field's regular encoding followed by the little-endian
// IEEE CRC32 of those bytes, the whole frame framed like a byte slice.
var CRC32 = fieldwire.Hook{
	Decode: func(c *fieldwire.Cursor, ctr *fieldwire.Container, f *fieldwire.Field, dst reflect.Value, _ []any) error {
		frame, err := fieldwire.ReadFramed(c, ctr, f)
		if err != nil {
			return err
		}
		payload, err := Verify(frame)
		if err != nil {
			return err
		}
		return decodeInner(c, ctr, payload, dst)
	},
	Encode: func(c *fieldwire.Cursor, ctr *fieldwire.Container, f *fieldwire.Field, src reflect.Value, _ []any) (int, error) {
		raw, err := encodeInner(ctr, src)
		if err != nil {
			return 0, err
		}
		return fieldwire.WriteFramed(c, ctr, f, Seal(raw))
	},
}

// Seal appends the CRC32 of payload.
func Seal(payload []byte) []byte {
	out := make([]byte, len(payload), len(payload)+4)
	copy(out, payload)
	return binary.LittleEndian.AppendUint32(out, crc32.ChecksumIEEE(payload))
}

// Verify checks and strips the CRC32 trailer added by Seal.
func Verify(frame []byte) ([]byte, error) {
	if len(frame) < 4 {
		return nil, fmt.Errorf("checksummed frame too short: %d bytes", len(frame))
	}
	payloadEnd := len(frame) - 4
	want := binary.LittleEndian.Uint32(frame[payloadEnd:])
	if got := crc32.ChecksumIEEE(frame[:payloadEnd]); got != want {
		return nil, fmt.Errorf("%w: got %08x, want %08x", ErrChecksum, got, want)
	}
	return frame[:payloadEnd], nil
}
