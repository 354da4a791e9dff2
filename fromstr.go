package fieldwire

import (
	"encoding"
	"reflect"
	"strconv"

	"github.com/rawbytedev/fieldwire/internal/common"
)

// textLeaf reports whether from_str applies to t as a whole rather than
// to each of its elements.
func textLeaf(t reflect.Type) bool {
	if reflect.PointerTo(t).Implements(textUnmarshalerType) {
		return true
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return false
	}
	return true
}

func decodeFromStr(c *Cursor, ctr *Container, f *Field, dst reflect.Value) error {
	b, err := ReadFramed(c, ctr, f)
	if err != nil {
		return err
	}
	if dst.Kind() == reflect.Pointer {
		p := reflect.New(dst.Type().Elem())
		if err := parseText(b, p.Elem()); err != nil {
			return failf(c, "from_str: %w", err)
		}
		dst.Set(p)
		return nil
	}
	if err := parseText(b, dst); err != nil {
		return failf(c, "from_str: %w", err)
	}
	return nil
}

func parseText(b []byte, dst reflect.Value) error {
	if u, ok := dst.Addr().Interface().(encoding.TextUnmarshaler); ok {
		return u.UnmarshalText(b)
	}
	s := string(b)
	k := dst.Kind()
	switch {
	case common.IsSignedKind(k):
		n, err := strconv.ParseInt(s, 10, dst.Type().Bits())
		if err != nil {
			return err
		}
		dst.SetInt(n)
	case common.IsIntKind(k):
		n, err := strconv.ParseUint(s, 10, dst.Type().Bits())
		if err != nil {
			return err
		}
		dst.SetUint(n)
	case k == reflect.Float32 || k == reflect.Float64:
		n, err := strconv.ParseFloat(s, dst.Type().Bits())
		if err != nil {
			return err
		}
		dst.SetFloat(n)
	case k == reflect.Bool:
		v, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		dst.SetBool(v)
	case k == reflect.String:
		dst.SetString(s)
	default:
		return &ConfigError{Type: dst.Type().String(), Option: "from_str"}
	}
	return nil
}

func encodeFromStr(c *Cursor, ctr *Container, f *Field, src reflect.Value) (int, error) {
	if src.Kind() == reflect.Pointer {
		if src.IsNil() {
			return 0, nil
		}
		src = src.Elem()
	}
	text, err := formatText(src)
	if err != nil {
		return 0, failf(c, "from_str: %w", err)
	}
	return WriteFramed(c, ctr, f, text)
}

func formatText(src reflect.Value) ([]byte, error) {
	if m, ok := src.Interface().(encoding.TextMarshaler); ok {
		return m.MarshalText()
	}
	if reflect.PointerTo(src.Type()).Implements(textMarshalerType) {
		p := reflect.New(src.Type())
		p.Elem().Set(src)
		return p.Interface().(encoding.TextMarshaler).MarshalText()
	}
	k := src.Kind()
	switch {
	case common.IsSignedKind(k):
		return strconv.AppendInt(nil, src.Int(), 10), nil
	case common.IsIntKind(k):
		return strconv.AppendUint(nil, src.Uint(), 10), nil
	case k == reflect.Float32 || k == reflect.Float64:
		return strconv.AppendFloat(nil, src.Float(), 'g', -1, src.Type().Bits()), nil
	case k == reflect.Bool:
		return strconv.AppendBool(nil, src.Bool()), nil
	case k == reflect.String:
		return []byte(src.String()), nil
	}
	return nil, &ConfigError{Type: src.Type().String(), Option: "from_str"}
}
