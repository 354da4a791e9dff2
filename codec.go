package fieldwire

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/rawbytedev/fieldwire/internal/common"
)

// Marshaler is implemented by types that encode themselves. The call shape
// matches every built-in codec: cursor, container modifiers, field modifiers.
type Marshaler interface {
	EncodeWire(c *Cursor, ctr *Container, f *Field) (int, error)
}

// Unmarshaler is implemented (on the pointer) by types that decode
// themselves. The cursor's Borrowed flag tells the implementation whether
// it may keep references into the input.
type Unmarshaler interface {
	DecodeWire(c *Cursor, ctr *Container, f *Field) error
}

// codec is the per-type engine every built-in implements. dst is always
// settable; src may not be addressable.
type codec interface {
	decode(c *Cursor, ctr *Container, f *Field, dst reflect.Value) error
	encode(c *Cursor, ctr *Container, f *Field, src reflect.Value) (int, error)
}

// Options configures a Codec.
type Options struct {
	// Logger receives debug records about plan construction, union
	// dispatch and best-effort stops. Defaults to discarding everything.
	Logger *slog.Logger

	// ByteOrder is the container byte order used when a record does not
	// set one. Zero value is big-endian.
	ByteOrder ByteOrder

	// MaxSize caps the encoded output; exceeding it fails with
	// ErrPushFail. Zero means unlimited.
	MaxSize int
}

// Codec owns the per-type plans. Plans are built on first use and cached;
// a Codec is safe for concurrent use once its tag overrides are set.
type Codec struct {
	opts   Options
	logger *slog.Logger

	mu        sync.RWMutex
	plans     map[reflect.Type]codec
	overrides map[reflect.Type]map[string]string
}

// New returns a Codec configured by opts.
func New(opts Options) *Codec {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Codec{
		opts:      opts,
		logger:    logger,
		plans:     make(map[reflect.Type]codec),
		overrides: make(map[reflect.Type]map[string]string),
	}
}

var defaultCodec = New(Options{})

// SetTag replaces the wire tag of field on struct type t. The field name
// "_" sets the container tag. Overrides must be installed before the type
// is first used.
func (cd *Codec) SetTag(t reflect.Type, field, tag string) error {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return &ConfigError{Type: t.String(), Cause: errors.New("not a struct")}
	}
	if field != "_" {
		if _, ok := t.FieldByName(field); !ok {
			return &ConfigError{Type: t.String(), Field: field, Cause: errors.New("no such field")}
		}
	}
	cd.mu.Lock()
	defer cd.mu.Unlock()
	if _, planned := cd.plans[t]; planned {
		return &ConfigError{Type: t.String(), Field: field, Cause: errors.New("type already in use")}
	}
	m := cd.overrides[t]
	if m == nil {
		m = make(map[string]string)
		cd.overrides[t] = m
	}
	m[field] = tag
	return nil
}

func (cd *Codec) override(t reflect.Type) map[string]string {
	cd.mu.RLock()
	defer cd.mu.RUnlock()
	return cd.overrides[t]
}

func (cd *Codec) newContainer() *Container {
	ctr := &Container{Scope: NewScope(), codec: cd}
	if cd.opts.ByteOrder != BigEndian {
		ctr.ByteOrder = Order(cd.opts.ByteOrder)
	}
	return ctr
}

// Encode encodes v into a new buffer.
func (cd *Codec) Encode(v any) ([]byte, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, newError(nil, ErrFail, errors.New("nil value"))
	}
	w := NewWriter(64)
	w.max = cd.opts.MaxSize
	if _, err := cd.EncodeTo(w, cd.newContainer(), nil, v); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Decode decodes data into out, which must be a non-nil pointer. Strings
// and byte slices are copied out of data. It returns the bytes consumed.
func (cd *Codec) Decode(data []byte, out any) (int, error) {
	c := NewReader(data)
	err := cd.DecodeFrom(c, cd.newContainer(), nil, out)
	return c.Position(), err
}

// BorrowDecode is Decode without copying: decoded strings and byte slices
// alias data.
func (cd *Codec) BorrowDecode(data []byte, out any) (int, error) {
	c := NewBorrowReader(data)
	err := cd.DecodeFrom(c, cd.newContainer(), nil, out)
	return c.Position(), err
}

// DecodeFrom decodes one field into out (a non-nil pointer) from c, with
// explicit container and field modifiers. Either may be nil.
func (cd *Codec) DecodeFrom(c *Cursor, ctr *Container, f *Field, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return ErrNotPointer
	}
	ctr, f = cd.prepare(ctr, f)
	dst := rv.Elem()
	fc, err := cd.codecFor(dst.Type())
	if err != nil {
		return err
	}
	return decodeField(c, ctr, f, dst, fc)
}

// EncodeTo encodes v as one field into c, with explicit container and
// field modifiers. Either may be nil.
func (cd *Codec) EncodeTo(c *Cursor, ctr *Container, f *Field, v any) (int, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return 0, newError(c, ErrFail, errors.New("nil value"))
	}
	ctr, f = cd.prepare(ctr, f)
	fc, err := cd.codecFor(rv.Type())
	if err != nil {
		return 0, err
	}
	return encodeField(c, ctr, f, rv, fc)
}

func (cd *Codec) prepare(ctr *Container, f *Field) (*Container, *Field) {
	if ctr == nil {
		ctr = cd.newContainer()
	}
	if ctr.codec == nil {
		ctr.codec = cd
	}
	if f == nil {
		f = emptyField
	}
	return ctr, f
}

// Encode encodes v with the default Codec.
func Encode(v any) ([]byte, error) {
	return defaultCodec.Encode(v)
}

// Decode decodes a T from data with the default Codec, copying strings
// and byte slices out of data.
func Decode[T any](data []byte) (T, error) {
	var v T
	_, err := defaultCodec.Decode(data, &v)
	return v, err
}

// BorrowDecode decodes a T from data with the default Codec without
// copying; the result may alias data.
func BorrowDecode[T any](data []byte) (T, error) {
	var v T
	_, err := defaultCodec.BorrowDecode(data, &v)
	return v, err
}

// DecodeFrom is the per-field decode entry point for hooks and generated
// callers. It uses the Codec that owns ctr.
func DecodeFrom(c *Cursor, ctr *Container, f *Field, out any) error {
	if ctr == nil {
		return defaultCodec.DecodeFrom(c, nil, f, out)
	}
	return ctr.engine().DecodeFrom(c, ctr, f, out)
}

// EncodeTo is the per-field encode entry point for hooks and generated
// callers.
func EncodeTo(c *Cursor, ctr *Container, f *Field, v any) (int, error) {
	if ctr == nil {
		return defaultCodec.EncodeTo(c, nil, f, v)
	}
	return ctr.engine().EncodeTo(c, ctr, f, v)
}

// codecFor returns the cached plan for t, building it (and any types it
// reaches) on first use.
func (cd *Codec) codecFor(t reflect.Type) (codec, error) {
	cd.mu.RLock()
	if fc, ok := cd.plans[t]; ok {
		cd.mu.RUnlock()
		return fc, nil
	}
	cd.mu.RUnlock()

	b := &planBuilder{cd: cd, built: make(map[reflect.Type]codec)}
	fc, err := b.build(t)
	if err != nil {
		return nil, err
	}

	cd.mu.Lock()
	defer cd.mu.Unlock()
	// Double-check
	if existing, ok := cd.plans[t]; ok {
		return existing, nil
	}
	for k, v := range b.built {
		if _, ok := cd.plans[k]; !ok {
			cd.plans[k] = v
		}
	}
	return fc, nil
}

type planBuilder struct {
	cd    *Codec
	built map[reflect.Type]codec
}

var (
	marshalerType   = reflect.TypeFor[Marshaler]()
	unmarshalerType = reflect.TypeFor[Unmarshaler]()
	uint24Type      = reflect.TypeFor[Uint24]()
	int24Type       = reflect.TypeFor[Int24]()
	tupleType       = reflect.TypeFor[Tuple]()
)

func (b *planBuilder) build(t reflect.Type) (codec, error) {
	if fc, ok := b.built[t]; ok {
		return fc, nil
	}
	b.cd.mu.RLock()
	fc, ok := b.cd.plans[t]
	b.cd.mu.RUnlock()
	if ok {
		return fc, nil
	}
	fc, err := b.make(t)
	if err != nil {
		return nil, err
	}
	b.built[t] = fc
	return fc, nil
}

func (b *planBuilder) make(t reflect.Type) (codec, error) {
	if reflect.PointerTo(t).Implements(unmarshalerType) &&
		(t.Implements(marshalerType) || reflect.PointerTo(t).Implements(marshalerType)) {
		return customCodec{t: t}, nil
	}
	switch t {
	case uint24Type:
		return intCodec{size: 3}, nil
	case int24Type:
		return intCodec{size: 3, signed: true}, nil
	case addrType:
		return addrCodec{}, nil
	}
	k := t.Kind()
	if common.IsFixedKind(k) || common.IsIntKind(k) {
		if k == reflect.Float32 || k == reflect.Float64 {
			return floatCodec{size: t.Size()}, nil
		}
		return newIntCodec(k), nil
	}
	switch k {
	case reflect.String:
		return stringCodec{}, nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return bytesCodec{}, nil
		}
		elem, err := b.build(t.Elem())
		if err != nil {
			return nil, err
		}
		return sliceCodec{elemType: t.Elem(), elem: elem}, nil
	case reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return byteArrayCodec{n: t.Len()}, nil
		}
		elem, err := b.build(t.Elem())
		if err != nil {
			return nil, err
		}
		return arrayCodec{elem: elem}, nil
	case reflect.Map:
		key, err := b.build(t.Key())
		if err != nil {
			return nil, err
		}
		val, err := b.build(t.Elem())
		if err != nil {
			return nil, err
		}
		return mapCodec{keyType: t.Key(), valType: t.Elem(), key: key, val: val}, nil
	case reflect.Pointer:
		oc := &optionCodec{elemType: t.Elem()}
		b.built[t] = oc
		elem, err := b.build(t.Elem())
		if err != nil {
			return nil, err
		}
		oc.elem = elem
		return oc, nil
	case reflect.Struct:
		return b.buildStruct(t)
	case reflect.Interface:
		return b.buildUnion(t)
	}
	return nil, &ConfigError{Type: t.String(), Cause: fmt.Errorf("unsupported kind %s", k)}
}

// customCodec drives types implementing Marshaler and Unmarshaler.
type customCodec struct {
	t reflect.Type
}

func (cc customCodec) decode(c *Cursor, ctr *Container, f *Field, dst reflect.Value) error {
	return dst.Addr().Interface().(Unmarshaler).DecodeWire(c, ctr, f)
}

func (cc customCodec) encode(c *Cursor, ctr *Container, f *Field, src reflect.Value) (int, error) {
	if m, ok := src.Interface().(Marshaler); ok {
		return m.EncodeWire(c, ctr, f)
	}
	p := reflect.New(cc.t)
	p.Elem().Set(src)
	return p.Interface().(Marshaler).EncodeWire(c, ctr, f)
}
