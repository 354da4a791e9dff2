package fieldwire

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// Discriminated is implemented by variants that carry their own
// discriminant, typically the default variant of a numeric union: the
// decoded tag is handed to SetDiscriminant and Discriminant supplies the
// tag to write on encode.
type Discriminated interface {
	Discriminant() uint64
	SetDiscriminant(uint64)
}

var discriminatedType = reflect.TypeFor[Discriminated]()

// UnionOptions configures how a union reads and writes its discriminant.
type UnionOptions struct {
	// ByteCount is the width of the numeric discriminant. Zero falls back
	// to the field's byte_count, then the container's, then one byte.
	ByteCount int
	ByteOrder *ByteOrder

	// Start is the discriminant of the first variant without an explicit
	// value; later ones count up from the previous variant.
	Start uint64

	// StartsWith selects variants by byte pattern instead of a numeric
	// tag. The pattern is consumed unless StartsWithUntake is set.
	StartsWith       bool
	StartsWithUntake bool

	// ByteCountDisable peeks the numeric tag on decode and writes none on
	// encode; the tag bytes belong to the variant's own fields.
	ByteCountDisable bool
}

type matchKind uint8

const (
	matchValue matchKind = iota
	matchRange
	matchBits
	matchPattern
	matchDefault
)

// Variant is one case of a union, built with Case.
type Variant struct {
	typ  reflect.Type
	kind matchKind
	set  bool // an option chose kind explicitly

	value     *uint64
	lo, hi    uint64 // inclusive bounds
	mask      uint64
	maskValue uint64
	pattern   []byte

	err error
}

// VariantOption selects how a Variant is matched.
type VariantOption func(*Variant)

// Case declares T as a variant. Without options the variant takes its
// matching rule from T's container tag (branch_value, branch_range,
// branch_bits, branch_bits_value, branch_default, starts_with), or else
// the next ordinal.
func Case[T any](opts ...VariantOption) Variant {
	v := Variant{typ: reflect.TypeFor[T]()}
	for _, opt := range opts {
		opt(&v)
	}
	return v
}

// BranchValue matches a numeric discriminant exactly. Following variants
// without a value continue from n+1.
func BranchValue(n uint64) VariantOption {
	return func(v *Variant) {
		v.kind, v.set = matchValue, true
		v.value = &n
	}
}

// BranchRange matches a discriminant inside "lo..=hi" or "lo..hi".
func BranchRange(r string) VariantOption {
	return func(v *Variant) {
		lo, hi, _, err := parseRange(r)
		if err != nil {
			v.err = err
			return
		}
		v.kind, v.set = matchRange, true
		v.lo, v.hi = lo, hi
	}
}

// BranchBits matches when tag&mask equals value, or mask itself when no
// value is given.
func BranchBits(mask uint64, value ...uint64) VariantOption {
	return func(v *Variant) {
		v.kind, v.set = matchBits, true
		v.mask, v.maskValue = mask, mask
		if len(value) > 0 {
			v.maskValue = value[0]
		}
	}
}

// StartsWith sets the byte pattern of a variant in a StartsWith union.
func StartsWith(literal string) VariantOption {
	return func(v *Variant) {
		v.kind, v.set = matchPattern, true
		v.pattern = []byte(literal)
	}
}

// Default marks the fallback variant. It must be declared last. On encode
// a default variant implementing Discriminated writes its own tag; any
// other writes its ordinal, and fails if an earlier variant matches it.
func Default() VariantOption {
	return func(v *Variant) {
		v.kind, v.set = matchDefault, true
	}
}

func parseRange(r string) (lo, hi uint64, inclusive bool, err error) {
	a, b, ok := strings.Cut(r, "..")
	if !ok {
		return 0, 0, false, fmt.Errorf("bad range %q", r)
	}
	if strings.HasPrefix(b, "=") {
		b, inclusive = b[1:], true
	}
	if lo, err = strconv.ParseUint(strings.TrimSpace(a), 0, 64); err != nil {
		return 0, 0, false, fmt.Errorf("bad range %q: %w", r, err)
	}
	if hi, err = strconv.ParseUint(strings.TrimSpace(b), 0, 64); err != nil {
		return 0, 0, false, fmt.Errorf("bad range %q: %w", r, err)
	}
	if !inclusive {
		if hi == 0 {
			return 0, 0, false, fmt.Errorf("empty range %q", r)
		}
		hi--
	}
	if lo > hi {
		return 0, 0, false, fmt.Errorf("empty range %q", r)
	}
	return lo, hi, inclusive, nil
}

// unionDef is the registered, precomputed form of a union.
type unionDef struct {
	iface    reflect.Type
	opts     UnionOptions
	variants []Variant
	discs    []uint64 // resolved numeric discriminant per variant
	pointer  []bool   // variant stored in the interface as *T
}

var (
	unionsMu sync.RWMutex
	unions   = make(map[reflect.Type]*unionDef)
)

// RegisterUnion binds the interface type I to its variants, in dispatch
// order. Each variant type T must implement I, directly or through *T.
// Unions must be registered before a record using them is first encoded
// or decoded.
func RegisterUnion[I any](opts UnionOptions, variants ...Variant) error {
	iface := reflect.TypeFor[I]()
	if iface.Kind() != reflect.Interface {
		return &ConfigError{Type: iface.String(), Cause: errors.New("union type must be an interface")}
	}
	def := &unionDef{iface: iface, opts: opts}
	next := opts.Start
	for i, v := range variants {
		cfgErr := func(err error) error {
			return &ConfigError{Type: iface.String(), Field: v.typ.String(), Cause: err}
		}
		if v.err != nil {
			return cfgErr(v.err)
		}
		if !v.set {
			var err error
			if v, err = variantFromTag(v); err != nil {
				return cfgErr(err)
			}
		}
		switch {
		case v.typ.Implements(iface):
			def.pointer = append(def.pointer, false)
		case reflect.PointerTo(v.typ).Implements(iface):
			def.pointer = append(def.pointer, true)
		default:
			return cfgErr(fmt.Errorf("does not implement %s", iface))
		}
		if v.kind == matchDefault && i != len(variants)-1 {
			return cfgErr(errors.New("default variant must be last"))
		}
		if opts.StartsWith && v.kind != matchDefault {
			if v.kind != matchPattern {
				v.kind = matchPattern
			}
			if v.pattern == nil {
				v.pattern = []byte(strings.ToLower(v.typ.Name()))
			}
		}
		if v.value != nil {
			next = *v.value
		}
		def.discs = append(def.discs, next)
		next++
		def.variants = append(def.variants, v)
	}

	unionsMu.Lock()
	defer unionsMu.Unlock()
	unions[iface] = def
	return nil
}

func variantFromTag(v Variant) (Variant, error) {
	tag, ok := containerTagOf(v.typ)
	if !ok {
		return v, nil
	}
	ct, err := parseContainerTag(tag)
	if err != nil {
		return v, err
	}
	switch {
	case ct.branchDefault:
		Default()(&v)
	case ct.branchValue != nil:
		BranchValue(*ct.branchValue)(&v)
	case ct.branchRange != "":
		BranchRange(ct.branchRange)(&v)
	case ct.branchBits != 0:
		if ct.branchBitsValue != nil {
			BranchBits(ct.branchBits, *ct.branchBitsValue)(&v)
		} else {
			BranchBits(ct.branchBits)(&v)
		}
	case ct.startsWith != nil:
		StartsWith(*ct.startsWith)(&v)
	}
	return v, v.err
}

func containerTagOf(t reflect.Type) (string, bool) {
	if t.Kind() != reflect.Struct {
		return "", false
	}
	for i := 0; i < t.NumField(); i++ {
		if sf := t.Field(i); sf.Name == "_" {
			if tag, ok := sf.Tag.Lookup("wire"); ok {
				return tag, true
			}
		}
	}
	return "", false
}

func lookupUnion(t reflect.Type) (*unionDef, bool) {
	unionsMu.RLock()
	defer unionsMu.RUnlock()
	def, ok := unions[t]
	return def, ok
}

type unionCodec struct {
	def    *unionDef
	codecs []codec
}

func (b *planBuilder) buildUnion(t reflect.Type) (codec, error) {
	def, ok := lookupUnion(t)
	if !ok {
		return nil, &ConfigError{Type: t.String(), Cause: errors.New("interface is not a registered union")}
	}
	uc := &unionCodec{def: def}
	b.built[t] = uc
	for _, v := range def.variants {
		fc, err := b.build(v.typ)
		if err != nil {
			return nil, err
		}
		uc.codecs = append(uc.codecs, fc)
	}
	return uc, nil
}

func (uc *unionCodec) order(ctr *Container, f *Field) ByteOrder {
	if f.ByteOrder == nil && uc.def.opts.ByteOrder != nil {
		return *uc.def.opts.ByteOrder
	}
	return resolveOrder(ctr, f)
}

func (uc *unionCodec) width(ctr *Container, f *Field) int {
	switch {
	case f.ByteCount > 0:
		return f.ByteCount
	case uc.def.opts.ByteCount > 0:
		return uc.def.opts.ByteCount
	case ctr.ByteCount > 0:
		return ctr.ByteCount
	}
	return 1
}

// payloadField carries what the variant record inherits from the union
// field.
func payloadField(f *Field) *Field {
	return &Field{Name: f.Name, ByteOrder: f.ByteOrder}
}

// selectNumeric returns the first variant matching tag.
func (uc *unionCodec) selectNumeric(tag uint64) int {
	for i, v := range uc.def.variants {
		switch v.kind {
		case matchDefault:
			return i
		case matchRange:
			if tag >= v.lo && tag <= v.hi {
				return i
			}
		case matchBits:
			if tag&v.mask == v.maskValue {
				return i
			}
		default:
			if tag == uc.def.discs[i] {
				return i
			}
		}
	}
	return -1
}

func (uc *unionCodec) decode(c *Cursor, ctr *Container, f *Field, dst reflect.Value) error {
	start := c.pos
	idx, tag, err := uc.discriminant(c, ctr, f)
	if err != nil {
		c.pos = start
		return err
	}
	v := uc.def.variants[idx]
	p := reflect.New(v.typ)
	if err := uc.codecs[idx].decode(c, ctr, payloadField(f), p.Elem()); err != nil {
		c.pos = start
		return err
	}
	if !uc.def.opts.StartsWith {
		if d, ok := p.Interface().(Discriminated); ok {
			d.SetDiscriminant(tag)
		}
		if f.VariableName != "" {
			ctr.scope().Set(f.VariableName, tag)
		}
	}
	if uc.def.pointer[idx] {
		dst.Set(p)
	} else {
		dst.Set(p.Elem())
	}
	ctr.logger().Debug("union variant selected",
		"union", uc.def.iface.String(), "variant", v.typ.String(), "discriminant", tag)
	return nil
}

func (uc *unionCodec) discriminant(c *Cursor, ctr *Container, f *Field) (int, uint64, error) {
	opts := uc.def.opts
	if opts.StartsWith {
		for i, v := range uc.def.variants {
			if v.kind == matchDefault {
				return i, 0, nil
			}
			if c.HasPrefix(v.pattern) {
				if !opts.StartsWithUntake {
					c.pos += len(v.pattern)
				}
				return i, 0, nil
			}
		}
		return 0, 0, failf(c, "no variant of %s matches input", uc.def.iface)
	}

	var tag uint64
	switch {
	case f.Branch != nil:
		n, err := f.Branch.Eval(ctr.scope())
		if err != nil {
			return 0, 0, newError(c, ErrFail, err)
		}
		tag = uint64(n)
	case f.ByteCountDisable || opts.ByteCountDisable:
		b, err := c.Peek(uc.width(ctr, f))
		if err != nil {
			return 0, 0, err
		}
		tag = uintFrom(b, uc.order(ctr, f))
	default:
		var err error
		if tag, err = c.TakeUint(uc.width(ctr, f), uc.order(ctr, f)); err != nil {
			return 0, 0, err
		}
	}
	idx := uc.selectNumeric(tag)
	if idx < 0 {
		return 0, 0, lengthf(c, "no variant of %s for discriminant %d", uc.def.iface, tag)
	}
	return idx, tag, nil
}

func uintFrom(b []byte, order ByteOrder) uint64 {
	c := NewReader(b)
	v, _ := c.TakeUint(len(b), order)
	return v
}

func (uc *unionCodec) variantOf(src reflect.Value) (int, reflect.Value, bool) {
	if src.IsNil() {
		return 0, reflect.Value{}, false
	}
	concrete := src.Elem()
	for i, v := range uc.def.variants {
		if uc.def.pointer[i] {
			if concrete.Type() == reflect.PointerTo(v.typ) && !concrete.IsNil() {
				return i, concrete.Elem(), true
			}
		} else if concrete.Type() == v.typ {
			return i, concrete, true
		}
	}
	return 0, reflect.Value{}, false
}

// tagFor returns the numeric discriminant to write for variant idx.
func (uc *unionCodec) tagFor(c *Cursor, idx int, payload reflect.Value) (uint64, error) {
	v := uc.def.variants[idx]
	if payload.Type().Implements(discriminatedType) || reflect.PointerTo(payload.Type()).Implements(discriminatedType) {
		if v.kind != matchValue {
			p := reflect.New(payload.Type())
			p.Elem().Set(payload)
			return p.Interface().(Discriminated).Discriminant(), nil
		}
	}
	switch v.kind {
	case matchRange:
		return v.lo, nil
	case matchBits:
		return v.maskValue, nil
	case matchDefault:
		// its ordinal, unless an earlier variant would claim it on decode
		if d := uc.def.discs[idx]; uc.selectNumeric(d) == idx {
			return d, nil
		}
		return 0, failf(c, "default variant %s has no discriminant to write", v.typ)
	}
	return uc.def.discs[idx], nil
}

func (uc *unionCodec) encode(c *Cursor, ctr *Container, f *Field, src reflect.Value) (int, error) {
	idx, payload, ok := uc.variantOf(src)
	if !ok {
		return 0, failf(c, "value of type %s is not a variant of %s", typeName(src), uc.def.iface)
	}
	opts := uc.def.opts
	total := 0
	switch {
	case opts.StartsWith:
		v := uc.def.variants[idx]
		if !opts.StartsWithUntake && v.kind != matchDefault {
			n, err := c.Push(v.pattern)
			if err != nil {
				return 0, err
			}
			total += n
		}
	default:
		tag, err := uc.tagFor(c, idx, payload)
		if err != nil {
			return 0, err
		}
		if f.VariableName != "" {
			ctr.scope().Set(f.VariableName, tag)
		}
		if f.Branch == nil && !f.ByteCountDisable && !opts.ByteCountDisable {
			n, err := pushLength(c, tag, uc.width(ctr, f), uc.order(ctr, f))
			if err != nil {
				return 0, err
			}
			total += n
		}
	}
	n, err := uc.codecs[idx].encode(c, ctr, payloadField(f), payload)
	if err != nil {
		return 0, err
	}
	return total + n, nil
}

func typeName(v reflect.Value) string {
	if v.IsNil() {
		return "nil"
	}
	return v.Elem().Type().String()
}
