package fieldwire

import (
	"bytes"
	"fmt"
	"reflect"
	"strconv"

	"github.com/rawbytedev/fieldwire/internal/common"
)

// decodeField runs the field-level modifiers around the type codec. On any
// failure the cursor is put back where the field started.
func decodeField(c *Cursor, ctr *Container, f *Field, dst reflect.Value, fc codec) error {
	start := c.pos
	if err := decodeFieldValue(c, ctr, f, dst, fc, start); err != nil {
		c.pos = start
		return withField(err, f.Name)
	}
	return nil
}

func decodeFieldValue(c *Cursor, ctr *Container, f *Field, dst reflect.Value, fc codec, start int) error {
	if f.Skip || f.SkipDecode {
		dst.SetZero()
		return nil
	}
	if err := requireVariables(c, ctr, f); err != nil {
		return err
	}
	if f.IfExpr != nil {
		ok, err := f.IfExpr.Eval(ctr.scope())
		if err != nil {
			return newError(c, ErrFail, err)
		}
		if !ok {
			dst.SetZero()
			return nil
		}
	}
	if f.Offset != nil {
		n, err := evalInt(c, ctr, f.Offset, "offset")
		if err != nil {
			return err
		}
		if err := c.Advance(n); err != nil {
			return err
		}
	}
	if len(f.Key) > 0 {
		if !c.HasPrefix(f.Key) {
			return failf(c, "key %q not found", f.Key)
		}
		c.pos += len(f.Key)
		if len(f.Split) > 0 {
			if !c.HasPrefix(f.Split) {
				return failf(c, "separator %q not found after key", f.Split)
			}
			c.pos += len(f.Split)
		}
	}

	var err error
	switch {
	case f.decodeHook() != nil:
		err = f.decodeHook()(c, ctr, f, dst, f.WithArgs)
		if err != nil {
			err = newError(c, ErrFail, err)
		}
	case f.FromStr && textLeaf(dst.Type()):
		err = decodeFromStr(c, ctr, f, dst)
	default:
		err = fc.decode(c, ctr, f, dst)
	}
	if err != nil {
		return err
	}

	if f.ValueDecode != nil {
		if err := transformInt(c, ctr, f.ValueDecode, dst, dst); err != nil {
			return err
		}
	}
	if f.CheckValue != nil {
		if err := checkValue(c, ctr, f, dst); err != nil {
			return err
		}
	}
	if f.VariableName != "" {
		if err := bindValue(c, ctr, f.VariableName, dst); err != nil {
			return err
		}
	}
	if f.Untake || f.BitsStart != 0 {
		c.pos = start
	}
	return nil
}

// encodeField is the mirror of decodeField. A failed field leaves nothing
// behind in a writable cursor.
func encodeField(c *Cursor, ctr *Container, f *Field, src reflect.Value, fc codec) (int, error) {
	start := len(c.buf)
	n, err := encodeFieldValue(c, ctr, f, src, fc)
	if err != nil {
		if c.writable {
			c.buf = c.buf[:start]
			c.pos = start
		}
		return 0, withField(err, f.Name)
	}
	return n, nil
}

func encodeFieldValue(c *Cursor, ctr *Container, f *Field, src reflect.Value, fc codec) (int, error) {
	if f.Skip || f.SkipEncode {
		return 0, nil
	}
	if err := requireVariables(c, ctr, f); err != nil {
		return 0, err
	}
	if f.IfExpr != nil {
		ok, err := f.IfExpr.Eval(ctr.scope())
		if err != nil {
			return 0, newError(c, ErrFail, err)
		}
		if !ok {
			return 0, nil
		}
		if src.Kind() == reflect.Pointer && src.IsNil() {
			return 0, failf(c, "condition %s holds but value is absent", f.IfExpr)
		}
	}
	if f.ValueEncode != nil {
		out := reflect.New(src.Type()).Elem()
		if err := transformInt(c, ctr, f.ValueEncode, src, out); err != nil {
			return 0, err
		}
		src = out
	}
	if f.VariableName != "" {
		if err := bindValue(c, ctr, f.VariableName, src); err != nil {
			return 0, err
		}
	}
	if f.Untake || f.BitsStart != 0 {
		// Bytes owned by a sibling: bit fields stage their value for it,
		// everything else writes nothing.
		if f.mask() != 0 {
			return fc.encode(c, ctr, f, src)
		}
		return 0, nil
	}
	if f.mask() == 0 {
		ctr.scope().dropBits()
	}

	written := 0
	if f.Offset != nil {
		n, err := evalInt(c, ctr, f.Offset, "offset")
		if err != nil {
			return 0, err
		}
		k, err := c.Push(bytes.Repeat([]byte{f.Full}, n))
		if err != nil {
			return 0, err
		}
		written += k
	}
	if len(f.Key) > 0 {
		k, err := c.Push(f.Key)
		if err != nil {
			return 0, err
		}
		written += k
		if len(f.Split) > 0 {
			k, err := c.Push(f.Split)
			if err != nil {
				return 0, err
			}
			written += k
		}
	}

	var (
		n   int
		err error
	)
	switch {
	case f.encodeHook() != nil:
		n, err = f.encodeHook()(c, ctr, f, src, f.WithArgs)
		if err != nil {
			err = newError(c, ErrFail, err)
		}
	case f.FromStr && textLeaf(src.Type()):
		n, err = encodeFromStr(c, ctr, f, src)
	default:
		n, err = fc.encode(c, ctr, f, src)
	}
	if err != nil {
		return 0, err
	}
	return written + n, nil
}

func requireVariables(c *Cursor, ctr *Container, f *Field) error {
	for _, name := range f.GetVariableName {
		if _, ok := ctr.scope().Get(name); !ok {
			return failf(c, "variable %q is not bound", name)
		}
	}
	return nil
}

// intValue reads an integer-like value: integers, bools and the length of
// strings, slices and maps.
func intValue(v reflect.Value) (int64, bool) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return int64(v.Uint()), true
	case reflect.Bool:
		if v.Bool() {
			return 1, true
		}
		return 0, true
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return int64(v.Len()), true
	case reflect.Pointer:
		if v.IsNil() {
			return 0, true
		}
		return intValue(v.Elem())
	}
	if u, ok := v.Interface().(Uint128); ok {
		return int64(u.Lo), true
	}
	return 0, false
}

func bindValue(c *Cursor, ctr *Container, name string, v reflect.Value) error {
	if v.Kind() == reflect.Interface {
		// unions bind their discriminant themselves
		return nil
	}
	n, ok := intValue(v)
	if !ok {
		return failf(c, "cannot bind %s value to %q", v.Type(), name)
	}
	ctr.scope().Set(name, uint64(n))
	return nil
}

// transformInt evaluates e with `value` bound to src and stores the result
// in dst.
func transformInt(c *Cursor, ctr *Container, e *Expr, src, dst reflect.Value) error {
	in, ok := intValue(src)
	if !ok || !common.IsIntKind(src.Kind()) {
		return failf(c, "value transform on non-integer %s", src.Type())
	}
	out, err := e.eval(func(name string) (int64, bool) {
		if name == "value" {
			return in, true
		}
		v, ok := ctr.scope().Get(name)
		return int64(v), ok
	})
	if err != nil {
		return newError(c, ErrFail, err)
	}
	if common.IsSignedKind(dst.Kind()) {
		if dst.OverflowInt(out) {
			return invalidValue(c, strconv.FormatInt(out, 10))
		}
		dst.SetInt(out)
		return nil
	}
	if out < 0 || dst.OverflowUint(uint64(out)) {
		return invalidValue(c, strconv.FormatInt(out, 10))
	}
	dst.SetUint(uint64(out))
	return nil
}

func checkValue(c *Cursor, ctr *Container, f *Field, v reflect.Value) error {
	if want, ok := f.CheckValue.Text(); ok {
		var got string
		switch {
		case v.Kind() == reflect.String:
			got = v.String()
		case v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8:
			got = string(v.Bytes())
		default:
			got = fmt.Sprint(v.Interface())
		}
		if got != want {
			return invalidValue(c, got)
		}
		return nil
	}
	want, err := f.CheckValue.Eval(ctr.scope())
	if err != nil {
		return newError(c, ErrFail, err)
	}
	got, ok := intValue(v)
	if !ok {
		return failf(c, "check_value on %s", v.Type())
	}
	if got != want {
		return invalidValue(c, fmt.Sprint(v.Interface()))
	}
	return nil
}

func invalidValue(c *Cursor, repr string) error {
	e := newError(c, ErrInvalidValue, nil).(*Error)
	e.Value = repr
	return e
}
