package hooks

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/rawbytedev/fieldwire"
)

// cborEncMode uses Core Deterministic Encoding so equal values always
// produce equal bytes.
var (
	cborEncMode cbor.EncMode
	cborDecMode cbor.DecMode
)

func init() {
	var err error
	cborEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("hooks: CBOR encoder initialization failed: " + err.Error())
	}
	cborDecMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("hooks: CBOR decoder initialization failed: " + err.Error())
	}
}

// CBOR stores the field as an embedded CBOR document, framed like a byte
// slice. It suits self-describing extension blobs inside a binary record.
var CBOR = fieldwire.Hook{
	Decode: func(c *fieldwire.Cursor, ctr *fieldwire.Container, f *fieldwire.Field, dst reflect.Value, _ []any) error {
		data, err := fieldwire.ReadFramed(c, ctr, f)
		if err != nil {
			return err
		}
		return cborDecMode.Unmarshal(data, dst.Addr().Interface())
	},
	Encode: func(c *fieldwire.Cursor, ctr *fieldwire.Container, f *fieldwire.Field, src reflect.Value, _ []any) (int, error) {
		data, err := cborEncMode.Marshal(src.Interface())
		if err != nil {
			return 0, err
		}
		return fieldwire.WriteFramed(c, ctr, f, data)
	},
}
