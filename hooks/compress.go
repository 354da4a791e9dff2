// Package hooks provides ready-made field hooks for payloads that are
// stored compressed or in a foreign encoding. Importing the package
// registers them under "zstd", "lz4", "cbor" and "crc32" for use in wire
// tags:
//
//	Body Message `wire:"with=zstd,byte_count=4"`
package hooks

import (
	"encoding/binary"
	"errors"
	"fmt"
	"reflect"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/rawbytedev/fieldwire"
)

// Compression identifies how a payload frame is stored.
type Compression byte

const (
	CompRaw Compression = iota
	CompLZ4
	CompZstd
)

func (c Compression) String() string {
	switch c {
	case CompRaw:
		return "raw"
	case CompLZ4:
		return "lz4"
	case CompZstd:
		return "zstd"
	}
	return fmt.Sprintf("compression(%d)", byte(c))
}

// MaxDecompressed caps the declared size of a decompressed payload.
var MaxDecompressed = 64 << 20

var errIncompressible = errors.New("data is incompressible")

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("hooks: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("hooks: zstd decoder initialization failed: " + err.Error())
	}

	fieldwire.RegisterHook("zstd", Zstd)
	fieldwire.RegisterHook("lz4", LZ4)
	fieldwire.RegisterHook("cbor", CBOR)
	fieldwire.RegisterHook("crc32", CRC32)
}

// Zstd stores the field's regular encoding zstd-compressed.
var Zstd = compressed(CompZstd)

// LZ4 stores the field's regular encoding as an LZ4 block.
var LZ4 = compressed(CompLZ4)

// compressed builds a hook whose frame is
//
//	mode(1) | uvarint(raw length) | data
//
// framed on the wire like a byte slice (byte_count, length, ...). Data that
// does not shrink is stored raw.
func compressed(mode Compression) fieldwire.Hook {
	return fieldwire.Hook{
		Decode: func(c *fieldwire.Cursor, ctr *fieldwire.Container, f *fieldwire.Field, dst reflect.Value, _ []any) error {
			frame, err := fieldwire.ReadFramed(c, ctr, f)
			if err != nil {
				return err
			}
			raw, err := Decompress(frame)
			if err != nil {
				return err
			}
			return decodeInner(c, ctr, raw, dst)
		},
		Encode: func(c *fieldwire.Cursor, ctr *fieldwire.Container, f *fieldwire.Field, src reflect.Value, _ []any) (int, error) {
			raw, err := encodeInner(ctr, src)
			if err != nil {
				return 0, err
			}
			frame, err := Compress(mode, raw)
			if err != nil {
				return 0, err
			}
			return fieldwire.WriteFramed(c, ctr, f, frame)
		},
	}
}

// whole makes strings, slices and maps inside a payload run to its end.
var whole = &fieldwire.Field{Remaining: true}

// decodeInner decodes a whole payload into dst with the caller's variable
// bindings. Borrowing follows the outer cursor.
func decodeInner(c *fieldwire.Cursor, ctr *fieldwire.Container, raw []byte, dst reflect.Value) error {
	inner := fieldwire.NewReader(raw)
	if c.Borrowed() {
		inner = fieldwire.NewBorrowReader(raw)
	}
	if err := fieldwire.DecodeFrom(inner, ctr, whole, dst.Addr().Interface()); err != nil {
		return err
	}
	if inner.Position() != inner.Len() {
		return fmt.Errorf("%d trailing bytes in payload", inner.Len()-inner.Position())
	}
	return nil
}

func encodeInner(ctr *fieldwire.Container, src reflect.Value) ([]byte, error) {
	inner := fieldwire.NewWriter(64)
	if _, err := fieldwire.EncodeTo(inner, ctr, whole, src.Interface()); err != nil {
		return nil, err
	}
	return inner.Bytes(), nil
}

// Compress builds a payload frame for raw using mode, falling back to
// CompRaw when compression does not help.
func Compress(mode Compression, raw []byte) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch mode {
	case CompRaw:
		data = raw
	case CompLZ4:
		data, err = compressLZ4(raw)
	case CompZstd:
		data, err = compressZstd(raw)
	default:
		return nil, fmt.Errorf("unsupported compression: %s", mode)
	}
	if errors.Is(err, errIncompressible) {
		mode, data, err = CompRaw, raw, nil
	}
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 0, 1+binary.MaxVarintLen64+len(data))
	frame = append(frame, byte(mode))
	frame = binary.AppendUvarint(frame, uint64(len(raw)))
	return append(frame, data...), nil
}

// Decompress reverses Compress.
func Decompress(frame []byte) ([]byte, error) {
	if len(frame) < 2 {
		return nil, errors.New("payload frame too short")
	}
	mode := Compression(frame[0])
	size, n := binary.Uvarint(frame[1:])
	if n <= 0 {
		return nil, errors.New("bad payload size")
	}
	if size > uint64(MaxDecompressed) {
		return nil, fmt.Errorf("payload size %d exceeds limit %d", size, MaxDecompressed)
	}
	data := frame[1+n:]
	switch mode {
	case CompRaw:
		if uint64(len(data)) != size {
			return nil, fmt.Errorf("raw payload: size %d does not match expected %d", len(data), size)
		}
		return data, nil
	case CompLZ4:
		return decompressLZ4(data, int(size))
	case CompZstd:
		return decompressZstd(data, int(size))
	}
	return nil, fmt.Errorf("unsupported compression: %s", mode)
}

func compressLZ4(data []byte) ([]byte, error) {
	destination := make([]byte, lz4.CompressBlockBound(len(data)))
	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// CompressBlock reports 0 for incompressible input
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}

func decompressLZ4(compressed []byte, size int) ([]byte, error) {
	destination := make([]byte, size)
	read, err := lz4.UncompressBlock(compressed, destination)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	if read != size {
		return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, size)
	}
	return destination, nil
}

func compressZstd(data []byte) ([]byte, error) {
	out := zstdEncoder.EncodeAll(data, nil)
	if len(out) >= len(data) {
		return nil, errIncompressible
	}
	return out, nil
}

func decompressZstd(compressed []byte, size int) ([]byte, error) {
	result, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, size))
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if len(result) != size {
		return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), size)
	}
	return result, nil
}
