package fieldwire

import (
	"testing"
)

type benchSlices struct {
	Val      []string
	Mod      []int8
	Integers []int16 `wire:"byte_count=2"`
	Float3   []float32
	Float6   []float64
}

type benchInts struct {
	Int1 uint8
	Int2 int8
	Int3 uint16
	Int4 int16
	Int5 uint32
	Int6 int32
	Int7 uint64
	Int9 int64
}

type benchProtocol struct {
	Version uint8             `wire:"bits_start=0xf0"`
	Flags   uint8             `wire:"bits=0x0f"`
	Size    uint16            `wire:"variable_name=size"`
	Payload []byte            `wire:"length=size"`
	Headers map[string]string `wire:"split=':',linend='\n',remaining"`
}

func newBenchSlices() benchSlices {
	return benchSlices{
		Val:      []string{"azerty", "hello", "world", "random"},
		Mod:      []int8{12, 10, 13, 1},
		Integers: []int16{100, 250, 300},
		Float3:   []float32{12.13, 16.23, 75.1},
		Float6:   []float64{100.5, 165.63, 153.5},
	}
}

func newBenchInts() benchInts {
	return benchInts{Int1: 1, Int2: 2, Int3: 16, Int4: 18, Int5: 1586, Int6: 15262, Int7: 1547544565, Int9: 15484565656}
}

func BenchmarkEncodeScalar(b *testing.B) {
	type scalar struct{ Int int8 }
	cd := New(Options{})
	z := scalar{Int: 1}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = cd.Encode(z)
	}
}

func BenchmarkEncodeSlices(b *testing.B) {
	cd := New(Options{})
	z := newBenchSlices()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = cd.Encode(z)
	}
}

func BenchmarkDecodeSlices(b *testing.B) {
	cd := New(Options{})
	res, err := cd.Encode(newBenchSlices())
	if err != nil {
		b.Fatal(err)
	}
	var y benchSlices
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = cd.Decode(res, &y)
	}
}

func BenchmarkBorrowDecodeSlices(b *testing.B) {
	cd := New(Options{})
	res, err := cd.Encode(newBenchSlices())
	if err != nil {
		b.Fatal(err)
	}
	var y benchSlices
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = cd.BorrowDecode(res, &y)
	}
}

func BenchmarkIntsRoundTrip(b *testing.B) {
	cd := New(Options{})
	z := newBenchInts()
	var y benchInts
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		res, _ := cd.Encode(z)
		_, _ = cd.Decode(res, &y)
	}
}

func BenchmarkDecodeProtocol(b *testing.B) {
	cd := New(Options{})
	res, err := cd.Encode(benchProtocol{
		Version: 1,
		Flags:   3,
		Size:    4,
		Payload: []byte{1, 2, 3, 4},
		Headers: map[string]string{"host": "example", "type": "bin"},
	})
	if err != nil {
		b.Fatal(err)
	}
	var y benchProtocol
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = cd.Decode(res, &y)
	}
}
