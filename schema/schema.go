// Package schema loads wire tags from a data file instead of Go struct
// tags, so one Go type can be bound to several binary layouts.
//
//	types:
//	  Header:
//	    container: "byteorder=LE"
//	    fields:
//	      Version: "bits_start=0xf0,untake"
//	      Length: "bits=0x0f"
//
// A File is applied to a fieldwire.Codec before the types are first used.
package schema

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"

	"github.com/rawbytedev/fieldwire"
)

// File maps Go type names to their wire layout.
type File struct {
	Types map[string]Type `yaml:"types" cbor:"1,keyasint"`
}

// Type holds the container tag and the per-field tags of one struct type.
type Type struct {
	Container string            `yaml:"container,omitempty" cbor:"1,keyasint,omitempty"`
	Fields    map[string]string `yaml:"fields,omitempty" cbor:"2,keyasint,omitempty"`
}

// ParseYAML reads a File from YAML. Unknown keys are rejected.
func ParseYAML(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("schema: parse yaml: %w", err)
	}
	return &f, nil
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("schema: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{ExtraReturnErrors: cbor.ExtraDecErrorUnknownField}.DecMode()
	if err != nil {
		panic("schema: CBOR decoder initialization failed: " + err.Error())
	}
}

// ParseCBOR reads a File from its CBOR form.
func ParseCBOR(data []byte) (*File, error) {
	var f File
	if err := decMode.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("schema: parse cbor: %w", err)
	}
	return &f, nil
}

// MarshalCBOR returns the compact, deterministic CBOR form of f.
func (f *File) MarshalCBOR() ([]byte, error) {
	type plain File
	return encMode.Marshal((*plain)(f))
}

// YAML returns the YAML form of f.
func (f *File) YAML() ([]byte, error) {
	return yaml.Marshal(f)
}

// Apply installs the tags of f on cd for each of types (values or
// pointers of struct types), matched by Go type name. Every entry in f
// must match one of types.
func (f *File) Apply(cd *fieldwire.Codec, types ...any) error {
	byName := make(map[string]reflect.Type, len(types))
	for _, v := range types {
		t := reflect.TypeOf(v)
		for t != nil && t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if t == nil || t.Kind() != reflect.Struct {
			return fmt.Errorf("schema: %T is not a struct type", v)
		}
		byName[t.Name()] = t
	}

	names := make([]string, 0, len(f.Types))
	for name := range f.Types {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		t, ok := byName[name]
		if !ok {
			errs = append(errs, fmt.Errorf("schema: type %q not provided", name))
			continue
		}
		ts := f.Types[name]
		if ts.Container != "" {
			if err := cd.SetTag(t, "_", ts.Container); err != nil {
				errs = append(errs, err)
			}
		}
		fields := make([]string, 0, len(ts.Fields))
		for field := range ts.Fields {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			if err := cd.SetTag(t, field, ts.Fields[field]); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
