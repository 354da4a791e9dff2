package fieldwire

import (
	"reflect"
)

// Tuple marks a struct as a tuple: embed it and the struct's fields are
// encoded back to back, each with the modifiers of the field that holds
// the tuple unless the element carries its own tag.
//
//	type Pair struct {
//		fieldwire.Tuple
//		A uint8
//		B string
//	}
type Tuple struct{}

type fieldPlan struct {
	index  int
	mods   *Field
	tagged bool
	codec  codec
}

// structCodec is the cached plan of one record type: its fields in
// declaration order with parsed modifiers and resolved codecs.
type structCodec struct {
	t         reflect.Type
	order     *ByteOrder
	byteCount int
	tuple     bool
	fields    []fieldPlan
}

func (b *planBuilder) buildStruct(t reflect.Type) (codec, error) {
	sc := &structCodec{t: t}
	b.built[t] = sc // recursive types see the plan under construction

	overrides := b.cd.override(t)
	containerTag, hasContainer := overrides["_"]
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.Name == "_" {
			if !hasContainer {
				containerTag, hasContainer = sf.Tag.Lookup("wire")
			}
			continue
		}
		if sf.Anonymous && sf.Type == tupleType {
			sc.tuple = true
			continue
		}
		if !sf.IsExported() {
			continue
		}
		tag, tagged := overrides[sf.Name]
		if !tagged {
			tag, tagged = sf.Tag.Lookup("wire")
		}
		if tag == "-" {
			continue
		}
		mods, err := parseFieldTag(tag)
		if err != nil {
			return nil, configErr(err, t, sf.Name)
		}
		mods.Name = sf.Name
		if err := validateField(mods, sf.Type); err != nil {
			return nil, configErr(err, t, sf.Name)
		}
		var fc codec
		// a field hooked both ways never reaches its type's codec
		if mods.decodeHook() == nil || mods.encodeHook() == nil || mods.mask() != 0 {
			if fc, err = b.build(sf.Type); err != nil {
				return nil, err
			}
		}
		sc.fields = append(sc.fields, fieldPlan{index: i, mods: mods, tagged: tagged && tag != "", codec: fc})
	}
	if hasContainer {
		ct, err := parseContainerTag(containerTag)
		if err != nil {
			return nil, configErr(err, t, "_")
		}
		sc.order, sc.byteCount = ct.order, ct.byteCount
	}
	b.cd.logger.Debug("record plan built", "type", t.String(), "fields", len(sc.fields), "tuple", sc.tuple)
	return sc, nil
}

func configErr(err error, t reflect.Type, field string) error {
	if ce, ok := err.(*ConfigError); ok {
		ce.Type, ce.Field = t.String(), field
		return ce
	}
	return &ConfigError{Type: t.String(), Field: field, Cause: err}
}

// container derives the Container the record's fields see. The record's
// own byteorder wins, then the byteorder of the field holding it.
func (sc *structCodec) container(ctr *Container, f *Field) *Container {
	order := sc.order
	if order == nil {
		order = f.ByteOrder
	}
	return ctr.child(order, sc.byteCount)
}

func (sc *structCodec) fieldMods(fp *fieldPlan, f *Field) *Field {
	if sc.tuple && !fp.tagged {
		e := f.elem()
		e.Name = fp.mods.Name
		return e
	}
	return fp.mods
}

func (sc *structCodec) decode(c *Cursor, ctr *Container, f *Field, dst reflect.Value) error {
	inner := sc.container(ctr, f)
	for i := range sc.fields {
		fp := &sc.fields[i]
		if err := decodeField(c, inner, sc.fieldMods(fp, f), dst.Field(fp.index), fp.codec); err != nil {
			return err
		}
	}
	return nil
}

func (sc *structCodec) encode(c *Cursor, ctr *Container, f *Field, src reflect.Value) (int, error) {
	inner := sc.container(ctr, f)
	total := 0
	for i := range sc.fields {
		fp := &sc.fields[i]
		n, err := encodeField(c, inner, sc.fieldMods(fp, f), src.Field(fp.index), fp.codec)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}
