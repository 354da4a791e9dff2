package fieldwire

import (
	"encoding"
	"encoding/hex"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/rawbytedev/fieldwire/internal/common"
)

type tagItem struct {
	key    string
	val    string
	hasVal bool
	quoted bool
}

// splitTag splits a wire tag on commas outside single quotes.
//
//	byteorder=LE,length=len - 2
//	split=': ',linend='\r\n',try_count=50
func splitTag(tag string) ([]tagItem, error) {
	var (
		items []tagItem
		cur   strings.Builder
		quote bool
	)
	flush := func() error {
		raw := strings.TrimSpace(cur.String())
		cur.Reset()
		if raw == "" {
			return nil
		}
		k, v, ok := strings.Cut(raw, "=")
		it := tagItem{key: strings.TrimSpace(k), hasVal: ok}
		v = strings.TrimSpace(v)
		if len(v) >= 2 && v[0] == '\'' && v[len(v)-1] == '\'' {
			v = v[1 : len(v)-1]
			it.quoted = true
		}
		it.val = v
		if it.key == "" {
			return fmt.Errorf("empty key in %q", raw)
		}
		items = append(items, it)
		return nil
	}
	for i := 0; i < len(tag); i++ {
		ch := tag[i]
		switch {
		case quote && ch == '\\' && i+1 < len(tag):
			cur.WriteByte(ch)
			i++
			cur.WriteByte(tag[i])
		case ch == '\'':
			quote = !quote
			cur.WriteByte(ch)
		case ch == ',' && !quote:
			if err := flush(); err != nil {
				return nil, err
			}
		default:
			cur.WriteByte(ch)
		}
	}
	if quote {
		return nil, errors.New("unterminated quote")
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return items, nil
}

// unescape resolves Go escapes (\r, \n, \x00, \') in a tag value.
func unescape(s string) ([]byte, error) {
	if !strings.Contains(s, `\`) {
		return []byte(s), nil
	}
	s = strings.ReplaceAll(s, `\'`, `'`)
	out, err := strconv.Unquote(`"` + strings.ReplaceAll(s, `"`, `\"`) + `"`)
	if err != nil {
		return nil, fmt.Errorf("bad escape in %q", s)
	}
	return []byte(out), nil
}

func optErr(key string, err error) error {
	return &ConfigError{Option: key, Cause: err}
}

// parseFieldTag turns a field tag into its modifiers.
func parseFieldTag(tag string) (*Field, error) {
	f := &Field{}
	items, err := splitTag(tag)
	if err != nil {
		return nil, &ConfigError{Cause: err}
	}
	for _, it := range items {
		if err := applyFieldOption(f, it); err != nil {
			return nil, optErr(it.key, err)
		}
	}
	return f, nil
}

func needValue(it tagItem) error {
	if !it.hasVal || it.val == "" {
		return errors.New("missing value")
	}
	return nil
}

func applyFieldOption(f *Field, it tagItem) error {
	switch it.key {
	case "skip", "skip_encode", "skip_decode", "remaining", "untake", "from_str", "byte_count_disable":
		if it.hasVal {
			return errors.New("takes no value")
		}
		switch it.key {
		case "skip":
			f.Skip = true
		case "skip_encode":
			f.SkipEncode = true
		case "skip_decode":
			f.SkipDecode = true
		case "remaining":
			f.Remaining = true
		case "untake":
			f.Untake = true
		case "from_str":
			f.FromStr = true
		case "byte_count_disable":
			f.ByteCountDisable = true
		}
		return nil
	}
	if err := needValue(it); err != nil {
		return err
	}
	var err error
	switch it.key {
	case "byteorder":
		var o ByteOrder
		o, err = ParseByteOrder(it.val)
		f.ByteOrder = Order(o)
	case "offset":
		f.Offset, err = ParseExpr(it.val)
	case "full":
		var n uint64
		n, err = strconv.ParseUint(it.val, 0, 8)
		f.Full = byte(n)
	case "length":
		f.Length, err = ParseExpr(it.val)
	case "count":
		f.Count, err = ParseExpr(it.val)
	case "try_count":
		f.TryCount, err = ParseExpr(it.val)
	case "byte_count":
		f.ByteCount, err = parseWidth(it.val)
	case "byte_count_outside":
		f.ByteCountOutside, err = parseWidth(it.val)
	case "bits":
		f.Bits, err = parseMask(it.val)
	case "bits_start":
		f.BitsStart, err = parseMask(it.val)
	case "key":
		f.Key, err = unescape(it.val)
	case "split":
		f.Split, err = unescape(it.val)
	case "linend":
		f.Linend, err = unescape(it.val)
	case "linend_value":
		f.Linend, err = hex.DecodeString(strings.TrimPrefix(strings.ToLower(it.val), "0x"))
	case "loop_skip_starts":
		f.LoopSkipStarts, err = unescape(it.val)
	case "branch":
		f.Branch, err = ParseExpr(it.val)
	case "with", "with_decode", "with_encode":
		h, ok := LookupHook(it.val)
		if !ok {
			return fmt.Errorf("no hook registered as %q", it.val)
		}
		switch it.key {
		case "with":
			f.With = &h
		case "with_decode":
			if h.Decode == nil {
				return fmt.Errorf("hook %q has no decode function", it.val)
			}
			f.WithDecode = h.Decode
		default:
			if h.Encode == nil {
				return fmt.Errorf("hook %q has no encode function", it.val)
			}
			f.WithEncode = h.Encode
		}
	case "with_args":
		f.WithArgs = parseArgs(it.val)
	case "value_decode":
		f.ValueDecode, err = ParseExpr(it.val)
	case "value_encode":
		f.ValueEncode, err = ParseExpr(it.val)
	case "check_value":
		if it.quoted {
			f.CheckValue, err = ParseExpr(strconv.Quote(it.val))
		} else {
			f.CheckValue, err = ParseExpr(it.val)
		}
	case "if_expr":
		f.IfExpr, err = ParseCond(it.val)
	case "variable_name":
		f.VariableName = it.val
	case "get_variable_name":
		f.GetVariableName = strings.Fields(strings.ReplaceAll(it.val, "|", " "))
	case "branch_value", "branch_range", "branch_bits", "branch_bits_value", "branch_default":
		return errors.New("variant options belong on the variant's container tag")
	default:
		return errors.New("unknown option")
	}
	return err
}

func parseWidth(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 1 || n > 8 {
		return 0, fmt.Errorf("width %d out of range 1..8", n)
	}
	return n, nil
}

func parseMask(s string) (uint64, error) {
	m, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, err
	}
	if m == 0 {
		return 0, errors.New("zero mask")
	}
	return m, nil
}

// parseArgs splits with_args on whitespace; integer tokens become int64.
func parseArgs(s string) []any {
	var args []any
	for _, tok := range strings.Fields(s) {
		if n, err := strconv.ParseInt(tok, 0, 64); err == nil {
			args = append(args, n)
		} else {
			args = append(args, tok)
		}
	}
	return args
}

// containerTag is the parsed tag of a record's blank `_` field: record-wide
// modifiers plus, for union variants, how the variant is selected.
type containerTag struct {
	order     *ByteOrder
	byteCount int

	branchValue     *uint64
	branchRange     string
	branchBits      uint64
	branchBitsValue *uint64
	branchDefault   bool
	startsWith      *string
}

func parseContainerTag(tag string) (containerTag, error) {
	var ct containerTag
	items, err := splitTag(tag)
	if err != nil {
		return ct, &ConfigError{Cause: err}
	}
	for _, it := range items {
		if err := ct.apply(it); err != nil {
			return ct, optErr(it.key, err)
		}
	}
	return ct, nil
}

func (ct *containerTag) apply(it tagItem) error {
	if it.key == "branch_default" {
		ct.branchDefault = true
		return nil
	}
	if err := needValue(it); err != nil {
		return err
	}
	var err error
	switch it.key {
	case "byteorder":
		var o ByteOrder
		o, err = ParseByteOrder(it.val)
		ct.order = Order(o)
	case "byte_count":
		ct.byteCount, err = parseWidth(it.val)
	case "branch_value":
		var n uint64
		n, err = strconv.ParseUint(it.val, 0, 64)
		ct.branchValue = &n
	case "branch_range":
		_, _, _, err = parseRange(it.val)
		ct.branchRange = it.val
	case "branch_bits":
		ct.branchBits, err = parseMask(it.val)
	case "branch_bits_value":
		var n uint64
		n, err = strconv.ParseUint(it.val, 0, 64)
		ct.branchBitsValue = &n
	case "starts_with", "branch_starts_with":
		var b []byte
		b, err = unescape(it.val)
		s := string(b)
		ct.startsWith = &s
	default:
		return errors.New("unknown option")
	}
	return err
}

var (
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
	textMarshalerType   = reflect.TypeFor[encoding.TextMarshaler]()
)

// validateField rejects modifiers that cannot apply to t.
func validateField(f *Field, t reflect.Type) error {
	base := t
	if base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	k := base.Kind()
	if f.mask() != 0 && !common.IsIntKind(k) && k != reflect.Bool {
		return optErr("bits", fmt.Errorf("bit masks need an integer, not %s", t))
	}
	if f.IfExpr != nil && t.Kind() != reflect.Pointer {
		return optErr("if_expr", fmt.Errorf("needs a pointer field, not %s", t))
	}
	if (f.ValueDecode != nil || f.ValueEncode != nil) && !common.IsIntKind(t.Kind()) {
		return optErr("value_decode", fmt.Errorf("needs an integer field, not %s", t))
	}
	if f.CheckValue != nil {
		if _, text := f.CheckValue.Text(); text {
			if k != reflect.String && !(k == reflect.Slice && base.Elem().Kind() == reflect.Uint8) {
				return optErr("check_value", fmt.Errorf("string literal on %s", t))
			}
		}
	}
	if f.FromStr && !canParseText(base) {
		return optErr("from_str", fmt.Errorf("%s has no text form", t))
	}
	if f.Branch != nil && k != reflect.Interface {
		return optErr("branch", fmt.Errorf("needs a union field, not %s", t))
	}
	return nil
}

func canParseText(t reflect.Type) bool {
	if reflect.PointerTo(t).Implements(textUnmarshalerType) {
		return true
	}
	switch k := t.Kind(); {
	case common.IsIntKind(k), k == reflect.Float32, k == reflect.Float64, k == reflect.Bool, k == reflect.String:
		return true
	case k == reflect.Slice || k == reflect.Array:
		return canParseText(t.Elem())
	}
	return false
}
