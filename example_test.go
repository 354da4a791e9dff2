package fieldwire_test

import (
	"fmt"

	"github.com/rawbytedev/fieldwire"
	"github.com/rawbytedev/fieldwire/zc"
)

func ExampleDecode() {
	type Request struct {
		Method string `wire:"linend=' '"`
		Path   string `wire:"linend=' '"`
		Proto  string `wire:"linend='\r\n'"`
	}
	req, err := fieldwire.Decode[Request]([]byte("GET /index HTTP/1.1\r\n"))
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(req.Method, req.Path, req.Proto)
	// Output: GET /index HTTP/1.1
}

func ExampleEncode() {
	type Header struct {
		Version uint8  `wire:"bits_start=0xf0"`
		IHL     uint8  `wire:"bits=0x0f"`
		Length  uint16 `wire:"byteorder=LE"`
	}
	out, err := fieldwire.Encode(Header{Version: 4, IHL: 5, Length: 20})
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("% x\n", out)
	// Output: 45 14 00
}

func ExampleBorrowDecode() {
	type Record struct {
		Name []byte `wire:"byte_count=2"`
	}
	data := []byte{0x00, 0x05, 'h', 'e', 'l', 'l', 'o'}
	rec, err := fieldwire.BorrowDecode[Record](data)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(string(rec.Name), zc.Aliases(data, rec.Name))
	// Output: hello true
}
