package fieldwire

import (
	"errors"
	"net/netip"
	"reflect"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawbytedev/fieldwire/zc"
)

func roundTrip[T any](t *testing.T, v T, want []byte) {
	t.Helper()
	data, err := Encode(v)
	require.NoError(t, err)
	if want != nil {
		require.Equal(t, want, data)
	}
	var out T
	n, err := defaultCodec.Decode(data, &out)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, v, out)
}

func TestByteOrderPrecedence(t *testing.T) {
	type plain struct{ V uint16 }
	type little struct {
		_ struct{} `wire:"byteorder=LE"`
		V uint16
	}
	type fieldWins struct {
		_ struct{} `wire:"byteorder=LE"`
		V uint16   `wire:"byteorder=BE"`
	}
	roundTrip(t, plain{V: 1}, []byte{0x00, 0x01})
	roundTrip(t, little{V: 1}, []byte{0x01, 0x00})
	roundTrip(t, fieldWins{V: 1}, []byte{0x00, 0x01})

	le := New(Options{ByteOrder: LittleEndian})
	data, err := le.Encode(plain{V: 1})
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x00}, data)
}

func TestBitExtraction(t *testing.T) {
	type header struct {
		Version uint8 `wire:"bits_start=0xf0,untake"`
		Length  uint8 `wire:"bits=0x0f"`
	}
	var h header
	n, err := defaultCodec.Decode([]byte{0x12}, &h)
	require.NoError(t, err)
	require.Equal(t, header{Version: 1, Length: 2}, h)
	require.Equal(t, 1, n)

	data, err := Encode(h)
	require.NoError(t, err)
	require.Equal(t, []byte{0x12}, data)

	_, err = Encode(header{Version: 0x1f, Length: 2})
	require.ErrorIs(t, err, ErrInvalidByteLength)
}

func TestBitGroupAcrossWord(t *testing.T) {
	type flags struct {
		Kind  uint16 `wire:"bits_start=0xc000"`
		Ack   uint16 `wire:"bits_start=0x2000"`
		Count uint16 `wire:"bits=0x1fff"`
	}
	v := flags{Kind: 2, Ack: 1, Count: 0x0123}
	roundTrip(t, v, []byte{0xa1, 0x23})
}

func TestBitGroupOwnedByFullField(t *testing.T) {
	type rec struct {
		Hi  uint8 `wire:"bits_start=0xf0"`
		Raw uint8
		Lo  uint8 `wire:"bits=0x0f"`
	}
	// Raw writes the byte Hi was read from, so Hi's staged bits stay out of Lo
	roundTrip(t, rec{Hi: 1, Raw: 0x1a, Lo: 2}, []byte{0x1a, 0x02})
}

func TestBestEffortCollection(t *testing.T) {
	type samples struct {
		Values []uint16 `wire:"try_count=10"`
	}
	for _, in := range [][]byte{{0, 1, 0, 2}, {0, 1, 0, 2, 9}} {
		var s samples
		n, err := defaultCodec.Decode(in, &s)
		require.NoError(t, err)
		require.Equal(t, []uint16{1, 2}, s.Values)
		require.Equal(t, 4, n)
	}

	_, err := Encode(samples{Values: make([]uint16, 11)})
	require.ErrorIs(t, err, ErrInvalidByteLength)
}

func TestKeyValueScan(t *testing.T) {
	type headers struct {
		Fields map[string]string `wire:"split=': ',linend='\r\n',try_count=50"`
	}
	in := []byte("K1: V1\r\nK2: V2\r\n")
	var h headers
	n, err := defaultCodec.Decode(in, &h)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"K1": "V1", "K2": "V2"}, h.Fields)
	require.Equal(t, len(in), n)

	data, err := Encode(h)
	require.NoError(t, err)
	require.Equal(t, in, data)

	// a line without the separator ends the block
	in = []byte("K1: V1\r\nbody\r\n")
	n, err = defaultCodec.Decode(in, &h)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"K1": "V1"}, h.Fields)
	require.Equal(t, 8, n)
}

func TestTruncatedInput(t *testing.T) {
	type pair struct {
		A uint8
		B uint32
	}
	c := NewReader([]byte{1, 2, 3})
	var p pair
	err := DecodeFrom(c, nil, nil, &p)
	require.ErrorIs(t, err, ErrInvalidByteLength)
	require.Equal(t, 0, c.Position())

	var fe *Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "B", fe.Field)
	assert.Equal(t, 1, fe.Offset)
	assert.Equal(t, []byte{2, 3}, fe.Remaining)

	_, err = Decode[uint32]([]byte{1, 2})
	require.ErrorIs(t, err, ErrInvalidByteLength)
	_, err = Decode[string]([]byte{5, 'a'})
	require.ErrorIs(t, err, ErrInvalidByteLength)
}

func TestScalarRoundTrip(t *testing.T) {
	type scalars struct {
		U8  uint8
		I8  int8
		U16 uint16
		I16 int16
		U32 uint32
		I32 int32
		U64 uint64
		I64 int64
		F32 float32
		F64 float64
		B   bool
		S   string
	}
	check := func(v scalars) bool {
		data, err := Encode(v)
		require.NoError(t, err)
		var out scalars
		n, err := defaultCodec.Decode(data, &out)
		require.NoError(t, err)
		return n == len(data) && assert.ObjectsAreEqual(v, out)
	}
	require.NoError(t, quick.Check(check, &quick.Config{}))
}

func TestDefaultFraming(t *testing.T) {
	type rec struct {
		Name  string
		Items []uint8
		Blob  []byte
	}
	roundTrip(t, rec{Name: "ab", Items: []uint8{7, 8}, Blob: []byte{9}},
		[]byte{2, 'a', 'b', 2, 7, 8, 1, 9})
	roundTrip(t, rec{}, []byte{0, 0, 0})
}

func TestInvalidUTF8(t *testing.T) {
	_, err := Decode[string]([]byte{2, 0xff, 0xfe})
	require.ErrorIs(t, err, ErrFail)
}

func TestLengthFromVariable(t *testing.T) {
	type msg struct {
		Len  uint8  `wire:"variable_name=len"`
		Body string `wire:"length=len"`
		Tail []byte `wire:"length='len - 1'"`
	}
	roundTrip(t, msg{Len: 3, Body: "abc", Tail: []byte{1, 2}},
		[]byte{3, 'a', 'b', 'c', 1, 2})

	_, err := Encode(msg{Len: 3, Body: "ab"})
	require.ErrorIs(t, err, ErrInvalidByteLength)
}

func TestNestedRecordSeesBindings(t *testing.T) {
	type inner struct {
		Data []byte `wire:"length=n"`
	}
	type outer struct {
		N  uint8 `wire:"variable_name=n"`
		In inner
	}
	roundTrip(t, outer{N: 2, In: inner{Data: []byte{5, 6}}}, []byte{2, 5, 6})
}

func TestCountAndByteCount(t *testing.T) {
	type rec struct {
		N     uint8    `wire:"variable_name=n"`
		Items []uint8  `wire:"count=n"`
		Words []string `wire:"byte_count=2"`
		Tags  []string `wire:"byte_count_outside=2"`
	}
	roundTrip(t, rec{N: 2, Items: []uint8{1, 2}, Words: []string{"a"}, Tags: []string{"b"}},
		[]byte{2, 1, 2, 0, 1, 0, 1, 'a', 0, 1, 1, 'b'})

	type little struct {
		_    struct{} `wire:"byteorder=LE"`
		Data []byte   `wire:"byte_count=2"`
	}
	roundTrip(t, little{Data: []byte("abc")}, []byte{3, 0, 'a', 'b', 'c'})
}

func TestByteSliceCount(t *testing.T) {
	type rec struct {
		N    uint8  `wire:"variable_name=n"`
		Data []byte `wire:"count=n"`
		Tail []byte `wire:"try_count=4"`
	}
	roundTrip(t, rec{N: 2, Data: []byte{7, 8}, Tail: []byte{1, 2, 3}}, []byte{2, 7, 8, 1, 2, 3})

	_, err := Encode(rec{N: 1, Data: []byte{7, 8}})
	require.ErrorIs(t, err, ErrInvalidByteLength)
	_, err = Encode(rec{Tail: []byte{1, 2, 3, 4, 5}})
	require.ErrorIs(t, err, ErrInvalidByteLength)
}

func TestOversizedLengthPrefix(t *testing.T) {
	in := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x00, 0x01}

	type words struct {
		V []uint16 `wire:"byte_count=8"`
	}
	_, err := Decode[words](in)
	require.ErrorIs(t, err, ErrInvalidByteLength)

	type table struct {
		V map[uint8]uint8 `wire:"byte_count=8"`
	}
	_, err = Decode[table](in)
	require.ErrorIs(t, err, ErrInvalidByteLength)

	type blob struct {
		V []byte `wire:"byte_count=8"`
	}
	_, err = Decode[blob](in)
	require.ErrorIs(t, err, ErrInvalidByteLength)
}

func TestRemainingAndDelimiters(t *testing.T) {
	type rec struct {
		Line   string `wire:"linend_value=0d0a"`
		Text   string `wire:"loop_skip_starts='--'"`
		Marker string `wire:"length=2"`
		Rest   []byte `wire:"remaining"`
	}
	roundTrip(t, rec{Line: "hi", Text: "ab", Marker: "--", Rest: []byte{1, 2}},
		[]byte("hi\r\nab--\x01\x02"))

	_, err := Decode[rec]([]byte("no terminator"))
	require.ErrorIs(t, err, ErrFail)
}

func TestOffsetAndKey(t *testing.T) {
	type rec struct {
		Pad  uint8  `wire:"offset=2,full=0xff"`
		Name string `wire:"key='N=',linend=';'"`
	}
	roundTrip(t, rec{Pad: 7, Name: "bob"}, []byte("\xff\xff\x07N=bob;"))

	_, err := Decode[rec]([]byte("\x00\x00\x07X=bob;"))
	require.ErrorIs(t, err, ErrFail)
}

func TestCheckValue(t *testing.T) {
	type rec struct {
		Magic   string `wire:"length=2,check_value='OK'"`
		Version uint8  `wire:"check_value=1"`
	}
	roundTrip(t, rec{Magic: "OK", Version: 1}, []byte{'O', 'K', 1})

	_, err := Decode[rec]([]byte{'N', 'O', 1})
	require.ErrorIs(t, err, ErrInvalidValue)
	var fe *Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "NO", fe.Value)
	assert.Equal(t, "Magic", fe.Field)

	_, err = Decode[rec]([]byte{'O', 'K', 2})
	require.ErrorIs(t, err, ErrInvalidValue)
}

func TestValueTransform(t *testing.T) {
	type rec struct {
		Temp int16 `wire:"value_decode='value - 40',value_encode='value + 40'"`
	}
	roundTrip(t, rec{Temp: 10}, []byte{0, 50})

	type scaled struct {
		V uint8 `wire:"value_decode='value * 10'"`
	}
	_, err := Decode[scaled]([]byte{200})
	require.ErrorIs(t, err, ErrInvalidValue)
	got, err := Decode[scaled]([]byte{25})
	require.NoError(t, err)
	require.Equal(t, uint8(250), got.V)

	type offset struct {
		V uint8 `wire:"value_encode='value - 10'"`
	}
	_, err = Encode(offset{V: 3})
	require.ErrorIs(t, err, ErrInvalidValue)
}

func TestIfExpr(t *testing.T) {
	type rec struct {
		Flags uint8   `wire:"variable_name=flags"`
		Extra *uint16 `wire:"if_expr='flags & 1'"`
	}
	v := uint16(5)
	roundTrip(t, rec{Flags: 1, Extra: &v}, []byte{1, 0, 5})
	roundTrip(t, rec{Flags: 0}, []byte{0})

	// the condition holds, so the value is mandatory
	_, err := Decode[rec]([]byte{1, 0})
	require.ErrorIs(t, err, ErrInvalidByteLength)
}

func TestOptionFallback(t *testing.T) {
	type rec struct {
		A    uint8
		Tail *uint16
	}
	var r rec
	n, err := defaultCodec.Decode([]byte{1}, &r)
	require.NoError(t, err)
	require.Nil(t, r.Tail)
	require.Equal(t, 1, n)

	n, err = defaultCodec.Decode([]byte{1, 0}, &r)
	require.NoError(t, err)
	require.Nil(t, r.Tail)
	require.Equal(t, 1, n)

	v := uint16(3)
	roundTrip(t, rec{A: 1, Tail: &v}, []byte{1, 0, 3})

	type sized struct {
		N    uint8   `wire:"variable_name=n"`
		Name *string `wire:"length=n"`
	}
	roundTrip(t, sized{N: 0}, []byte{0})
	s := "hey"
	roundTrip(t, sized{N: 3, Name: &s}, []byte{3, 'h', 'e', 'y'})
}

func TestSkip(t *testing.T) {
	type rec struct {
		A      uint8
		Cached int `wire:"skip"`
		B      uint8
	}
	data, err := Encode(rec{A: 1, Cached: 99, B: 2})
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2}, data)

	out, err := Decode[rec](data)
	require.NoError(t, err)
	require.Equal(t, rec{A: 1, B: 2}, out)
}

func TestGetVariableNameRequiresBinding(t *testing.T) {
	type rec struct {
		V uint8 `wire:"get_variable_name=missing"`
	}
	_, err := Decode[rec]([]byte{1})
	require.ErrorIs(t, err, ErrFail)
}

func TestFromStr(t *testing.T) {
	type rec struct {
		Port uint16  `wire:"from_str,linend=';'"`
		Mac  MacAddr `wire:"from_str,linend=';'"`
		Nums []int8  `wire:"from_str,count=2,linend=','"`
	}
	v := rec{Port: 8080, Mac: MacAddr{0, 0x1a, 0x2b, 0x3c, 0x4d, 0x5e}, Nums: []int8{-1, 7}}
	roundTrip(t, v, []byte("8080;00:1a:2b:3c:4d:5e;-1,7,"))

	_, err := Decode[rec]([]byte("80x;"))
	require.ErrorIs(t, err, ErrFail)
}

func TestWideAndNetworkTypes(t *testing.T) {
	type rec struct {
		U24  Uint24
		I24  Int24
		U128 Uint128
		I128 Int128 `wire:"length=2"`
		IP   netip.Addr
		IP6  netip.Addr `wire:"length=16"`
		Mac  MacAddr
	}
	v := rec{
		U24:  0x010203,
		I24:  -2,
		U128: Uint128{Hi: 1, Lo: 2},
		I128: Int128{Hi: -1, Lo: ^uint64(0)},
		IP:   netip.MustParseAddr("192.168.1.2"),
		IP6:  netip.MustParseAddr("2001:db8::1"),
		Mac:  MacAddr{1, 2, 3, 4, 5, 6},
	}
	data, err := Encode(v)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, data[:3])
	require.Equal(t, []byte{0xff, 0xff, 0xfe}, data[3:6])
	require.Equal(t, []byte{0xff, 0xff}, data[22:24])
	require.Equal(t, []byte{192, 168, 1, 2}, data[24:28])
	require.Len(t, data, 3+3+16+2+4+16+6)

	var out rec
	_, err = defaultCodec.Decode(data, &out)
	require.NoError(t, err)
	require.Equal(t, v, out)

	type little struct {
		_  struct{} `wire:"byteorder=LE"`
		IP netip.Addr
	}
	roundTrip(t, little{IP: netip.MustParseAddr("10.0.0.1")}, []byte{1, 0, 0, 10})

	_, err = Encode(rec{IP: netip.MustParseAddr("::1"), IP6: netip.MustParseAddr("::1")})
	require.ErrorIs(t, err, ErrInvalidByteLength)
}

func TestShortIntegerLength(t *testing.T) {
	type rec struct {
		V uint32 `wire:"length=3"`
		S int32  `wire:"length=1"`
	}
	roundTrip(t, rec{V: 0x010203, S: -1}, []byte{1, 2, 3, 0xff})

	_, err := Encode(rec{V: 0x01020304})
	require.ErrorIs(t, err, ErrInvalidByteLength)

	type tooLong struct {
		V uint16 `wire:"length=3"`
	}
	_, err = Decode[tooLong]([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrInvalidByteLength)
}

func TestTuple(t *testing.T) {
	type pair struct {
		Tuple
		A uint8
		B uint16
	}
	type holder struct {
		P pair `wire:"byteorder=LE"`
	}
	roundTrip(t, holder{P: pair{A: 1, B: 2}}, []byte{1, 2, 0})
}

func TestArraysAndSets(t *testing.T) {
	type rec struct {
		Fixed [2]uint16
		Raw   [3]byte
		Set   map[uint8]struct{}
	}
	roundTrip(t, rec{Fixed: [2]uint16{1, 2}, Raw: [3]byte{7, 8, 9}, Set: map[uint8]struct{}{3: {}, 1: {}}},
		[]byte{0, 1, 0, 2, 7, 8, 9, 2, 1, 3})
}

func TestBorrowDecodeAliases(t *testing.T) {
	type rec struct {
		Name string
		Blob []byte
	}
	buf := []byte{3, 'a', 'b', 'c', 2, 1, 2}

	borrowed, err := BorrowDecode[rec](buf)
	require.NoError(t, err)
	require.Equal(t, "abc", borrowed.Name)
	require.True(t, zc.Aliases(buf, zc.Bytes(borrowed.Name)))
	require.True(t, zc.Aliases(buf, borrowed.Blob))

	copied, err := Decode[rec](buf)
	require.NoError(t, err)
	require.Equal(t, borrowed, copied)
	require.False(t, zc.Aliases(buf, zc.Bytes(copied.Name)))
	require.False(t, zc.Aliases(buf, copied.Blob))
}

func TestHook(t *testing.T) {
	RegisterHook("test_double", Hook{
		Decode: func(c *Cursor, ctr *Container, f *Field, dst reflect.Value, args []any) error {
			b, err := c.TakeUint(1, BigEndian)
			if err != nil {
				return err
			}
			dst.SetUint(b * uint64(args[0].(int64)))
			return nil
		},
		Encode: func(c *Cursor, ctr *Container, f *Field, src reflect.Value, args []any) (int, error) {
			return c.PushByte(byte(src.Uint() / uint64(args[0].(int64))))
		},
	})
	type rec struct {
		V uint16 `wire:"with=test_double,with_args=2"`
	}
	roundTrip(t, rec{V: 10}, []byte{5})
}

func TestConfigErrors(t *testing.T) {
	type unknownKey struct {
		V uint8 `wire:"nope=1"`
	}
	_, err := Encode(unknownKey{})
	require.ErrorIs(t, err, ErrConfig)
	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "V", ce.Field)
	assert.Equal(t, "nope", ce.Option)

	type bitsOnString struct {
		V string `wire:"bits=0x0f"`
	}
	_, err = Decode[bitsOnString]([]byte{0})
	require.ErrorIs(t, err, ErrConfig)

	type missingHook struct {
		V uint8 `wire:"with=not_registered"`
	}
	_, err = Encode(missingHook{})
	require.ErrorIs(t, err, ErrConfig)

	type channel struct {
		C chan int
	}
	_, err = Encode(channel{})
	require.ErrorIs(t, err, ErrConfig)
}

func TestMaxSize(t *testing.T) {
	cd := New(Options{MaxSize: 2})
	_, err := cd.Encode(struct{ A uint32 }{A: 1})
	require.ErrorIs(t, err, ErrPushFail)
}

func TestNotPointer(t *testing.T) {
	var v uint8
	_, err := defaultCodec.Decode([]byte{1}, v)
	require.ErrorIs(t, err, ErrNotPointer)
}

func TestSetTag(t *testing.T) {
	type rec struct {
		V uint16
	}
	cd := New(Options{})
	require.NoError(t, cd.SetTag(reflect.TypeFor[rec](), "V", "byteorder=LE"))
	data, err := cd.Encode(rec{V: 1})
	require.NoError(t, err)
	require.Equal(t, []byte{1, 0}, data)

	require.ErrorIs(t, cd.SetTag(reflect.TypeFor[rec](), "V", "byteorder=BE"), ErrConfig)
	require.ErrorIs(t, cd.SetTag(reflect.TypeFor[rec](), "Missing", ""), ErrConfig)
}

func TestEncodeFailureLeavesNothing(t *testing.T) {
	type rec struct {
		A uint8
		B string `wire:"length=2"`
	}
	w := NewWriter(8)
	_, err := EncodeTo(w, nil, nil, rec{A: 1, B: "abc"})
	require.ErrorIs(t, err, ErrInvalidByteLength)
	require.Empty(t, w.Bytes())
}
