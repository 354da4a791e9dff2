package fieldwire

import (
	"bytes"
	"cmp"
	"fmt"
	"reflect"
	"slices"
)

// capHint bounds a preallocation by the bytes left, so a hostile count
// cannot force a huge allocation.
func capHint(c *Cursor, n int) int {
	return min(n, len(c.buf)-c.pos)
}

// decodeElems drives the element loop shared by slices and maps. next
// decodes one element and must leave the cursor untouched on failure.
func decodeElems(c *Cursor, ctr *Container, f *Field, n int, mode extentMode, next func() error) error {
	switch mode {
	case extentExact:
		for i := 0; i < n; i++ {
			if err := next(); err != nil {
				return err
			}
		}
	case extentTry:
		for i := 0; i < n; i++ {
			if err := next(); err != nil {
				ctr.logger().Debug("try_count stopped early",
					"field", f.Name, "decoded", i, "limit", n, "error", err)
				break
			}
		}
	case extentRemaining:
		for c.pos < len(c.buf) {
			mark := c.pos
			if err := next(); err != nil {
				return err
			}
			if c.pos == mark {
				return failf(c, "element consumed no input")
			}
		}
	}
	return nil
}

type sliceCodec struct {
	elemType reflect.Type
	elem     codec
}

func (sc sliceCodec) decode(c *Cursor, ctr *Container, f *Field, dst reflect.Value) error {
	start := c.pos
	n, mode, err := collectionExtent(c, ctr, f)
	if err != nil {
		c.pos = start
		return err
	}
	ef := f.elem()
	out := reflect.MakeSlice(dst.Type(), 0, capHint(c, n))
	err = decodeElems(c, ctr, f, n, mode, func() error {
		v := reflect.New(sc.elemType).Elem()
		if err := decodeField(c, ctr, ef, v, sc.elem); err != nil {
			return err
		}
		out = reflect.Append(out, v)
		return nil
	})
	if err != nil {
		c.pos = start
		return err
	}
	if out.Len() == 0 {
		dst.SetZero()
		return nil
	}
	dst.Set(out)
	return nil
}

func (sc sliceCodec) encode(c *Cursor, ctr *Container, f *Field, src reflect.Value) (int, error) {
	total, err := writeCollectionExtent(c, ctr, f, src.Len())
	if err != nil {
		return 0, err
	}
	ef := f.elem()
	for i := 0; i < src.Len(); i++ {
		n, err := encodeField(c, ctr, ef, src.Index(i), sc.elem)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// arrayCodec handles [N]T: N elements, no prefix.
type arrayCodec struct {
	elem codec
}

func (ac arrayCodec) decode(c *Cursor, ctr *Container, f *Field, dst reflect.Value) error {
	start := c.pos
	ef := f.elem()
	for i := 0; i < dst.Len(); i++ {
		if err := decodeField(c, ctr, ef, dst.Index(i), ac.elem); err != nil {
			c.pos = start
			return err
		}
	}
	return nil
}

func (ac arrayCodec) encode(c *Cursor, ctr *Container, f *Field, src reflect.Value) (int, error) {
	ef := f.elem()
	total := 0
	for i := 0; i < src.Len(); i++ {
		n, err := encodeField(c, ctr, ef, src.Index(i), ac.elem)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// mapCodec handles map[K]V and, with V = struct{}, sets. With split the key
// is terminated by the separator and the value by linend, which makes
// "K: V\r\n" header blocks decodable with try_count.
type mapCodec struct {
	keyType, valType reflect.Type
	key, val         codec
}

func (mc mapCodec) entryFields(f *Field) (kf, vf *Field) {
	vf = f.elem()
	kf = vf
	if len(f.Split) > 0 {
		k := *vf
		k.Linend = f.Split
		kf = &k
	}
	return kf, vf
}

func (mc mapCodec) decode(c *Cursor, ctr *Container, f *Field, dst reflect.Value) error {
	start := c.pos
	n, mode, err := collectionExtent(c, ctr, f)
	if err != nil {
		c.pos = start
		return err
	}
	kf, vf := mc.entryFields(f)
	out := reflect.MakeMapWithSize(dst.Type(), capHint(c, n))
	err = decodeElems(c, ctr, f, n, mode, func() error {
		mark := c.pos
		if len(f.Split) > 0 && len(f.Linend) > 0 {
			rest := c.Remaining()
			si := bytes.Index(rest, f.Split)
			li := bytes.Index(rest, f.Linend)
			if si < 0 || (li >= 0 && li < si) {
				return failf(c, "no %q before %q", f.Split, f.Linend)
			}
		}
		k := reflect.New(mc.keyType).Elem()
		if err := decodeField(c, ctr, kf, k, mc.key); err != nil {
			return err
		}
		v := reflect.New(mc.valType).Elem()
		if err := decodeField(c, ctr, vf, v, mc.val); err != nil {
			c.pos = mark
			return err
		}
		out.SetMapIndex(k, v)
		return nil
	})
	if err != nil {
		c.pos = start
		return err
	}
	if out.Len() == 0 {
		dst.SetZero()
		return nil
	}
	dst.Set(out)
	return nil
}

func (mc mapCodec) encode(c *Cursor, ctr *Container, f *Field, src reflect.Value) (int, error) {
	total, err := writeCollectionExtent(c, ctr, f, src.Len())
	if err != nil {
		return 0, err
	}
	kf, vf := mc.entryFields(f)
	keys := src.MapKeys()
	slices.SortFunc(keys, compareKeys)
	for _, k := range keys {
		n, err := encodeField(c, ctr, kf, k, mc.key)
		if err != nil {
			return 0, err
		}
		total += n
		n, err = encodeField(c, ctr, vf, src.MapIndex(k), mc.val)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func compareKeys(a, b reflect.Value) int {
	switch a.Kind() {
	case reflect.String:
		return cmp.Compare(a.String(), b.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return cmp.Compare(a.Int(), b.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return cmp.Compare(a.Uint(), b.Uint())
	case reflect.Float32, reflect.Float64:
		return cmp.Compare(a.Float(), b.Float())
	case reflect.Bool:
		return cmp.Compare(boolInt(a.Bool()), boolInt(b.Bool()))
	}
	return cmp.Compare(fmt.Sprint(a.Interface()), fmt.Sprint(b.Interface()))
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// optionCodec handles *T. Without if_expr it never fails: a zero length,
// empty input or a payload that does not decode all yield nil.
type optionCodec struct {
	elemType reflect.Type
	elem     codec
}

func (oc *optionCodec) decode(c *Cursor, ctr *Container, f *Field, dst reflect.Value) error {
	if f.Length != nil {
		n, err := evalInt(c, ctr, f.Length, "length")
		if err != nil {
			return err
		}
		if n == 0 {
			dst.SetZero()
			return nil
		}
	}
	if f.IfExpr == nil && c.pos == len(c.buf) {
		dst.SetZero()
		return nil
	}
	p := reflect.New(oc.elemType)
	if err := decodeField(c, ctr, f.inner(), p.Elem(), oc.elem); err != nil {
		if f.IfExpr != nil {
			return err
		}
		ctr.logger().Debug("optional field absent", "field", f.Name, "error", err)
		dst.SetZero()
		return nil
	}
	dst.Set(p)
	return nil
}

func (oc *optionCodec) encode(c *Cursor, ctr *Container, f *Field, src reflect.Value) (int, error) {
	if src.IsNil() {
		return 0, nil
	}
	return encodeField(c, ctr, f.inner(), src.Elem(), oc.elem)
}
