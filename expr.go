package fieldwire

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Expr is the small integer expression language used by length, count,
// branch, offset and value transforms: a literal or variable, optionally
// followed by operator/operand pairs evaluated left to right.
//
//	4
//	len
//	len - 2
//	flags >> 4 & 0x0f
//
// A quoted string ("GET" or 'GET') is also an Expr; it only has a text
// value and is used by check_value on string and byte fields.
type Expr struct {
	src   string
	text  *string
	terms []term
}

type term struct {
	op   string // empty for the first term
	lit  int64
	name string
}

// Lit returns a literal expression.
func Lit(n int64) *Expr {
	return &Expr{src: strconv.FormatInt(n, 10), terms: []term{{lit: n}}}
}

// Var returns an expression reading a bound variable.
func Var(name string) *Expr {
	return &Expr{src: name, terms: []term{{name: name}}}
}

// ParseExpr parses s.
func ParseExpr(s string) (*Expr, error) {
	toks, err := tokenize(s)
	if err != nil {
		return nil, err
	}
	e, rest, err := parseExprTokens(toks)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("unexpected %q in expression %q", rest[0].val, s)
	}
	e.src = strings.TrimSpace(s)
	return e, nil
}

// MustExpr is ParseExpr that panics; meant for package-level literals.
func MustExpr(s string) *Expr {
	e, err := ParseExpr(s)
	if err != nil {
		panic(err)
	}
	return e
}

func (e *Expr) String() string {
	if e == nil {
		return ""
	}
	return e.src
}

// Text returns the string literal value and whether e is one.
func (e *Expr) Text() (string, bool) {
	if e == nil || e.text == nil {
		return "", false
	}
	return *e.text, true
}

// Eval evaluates e against the bindings in s.
func (e *Expr) Eval(s *Scope) (int64, error) {
	return e.eval(func(name string) (int64, bool) {
		v, ok := s.Get(name)
		return int64(v), ok
	})
}

var errUnbound = errors.New("unbound variable")

func (e *Expr) eval(lookup func(string) (int64, bool)) (int64, error) {
	if e.text != nil {
		return 0, fmt.Errorf("string %q used as integer", *e.text)
	}
	var acc int64
	for i, t := range e.terms {
		v := t.lit
		if t.name != "" {
			var ok bool
			if v, ok = lookup(t.name); !ok {
				return 0, fmt.Errorf("%w %q", errUnbound, t.name)
			}
		}
		if i == 0 {
			acc = v
			continue
		}
		switch t.op {
		case "+":
			acc += v
		case "-":
			acc -= v
		case "*":
			acc *= v
		case "/":
			if v == 0 {
				return 0, errors.New("division by zero")
			}
			acc /= v
		case "<<":
			acc <<= uint64(v)
		case ">>":
			acc >>= uint64(v)
		case "&":
			acc &= v
		case "|":
			acc |= v
		}
	}
	return acc, nil
}

// Cond is a boolean condition: an expression tested for non-zero, or two
// expressions joined by a comparison.
type Cond struct {
	src         string
	left, right *Expr
	op          string
}

// ParseCond parses s, e.g. "flags & 1", "version >= 2".
func ParseCond(s string) (*Cond, error) {
	toks, err := tokenize(s)
	if err != nil {
		return nil, err
	}
	left, rest, err := parseExprTokens(toks)
	if err != nil {
		return nil, err
	}
	c := &Cond{src: strings.TrimSpace(s), left: left}
	if len(rest) == 0 {
		return c, nil
	}
	if !isComparison(rest[0].val) {
		return nil, fmt.Errorf("expected comparison in %q, got %q", s, rest[0].val)
	}
	c.op = rest[0].val
	right, rest, err := parseExprTokens(rest[1:])
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("unexpected %q in condition %q", rest[0].val, s)
	}
	c.right = right
	return c, nil
}

func (c *Cond) String() string {
	if c == nil {
		return ""
	}
	return c.src
}

// Eval evaluates the condition against s.
func (c *Cond) Eval(s *Scope) (bool, error) {
	l, err := c.left.Eval(s)
	if err != nil {
		return false, err
	}
	if c.right == nil {
		return l != 0, nil
	}
	r, err := c.right.Eval(s)
	if err != nil {
		return false, err
	}
	switch c.op {
	case "==":
		return l == r, nil
	case "!=":
		return l != r, nil
	case "<":
		return l < r, nil
	case "<=":
		return l <= r, nil
	case ">":
		return l > r, nil
	default:
		return l >= r, nil
	}
}

type token struct {
	kind byte // 'n' number, 'i' identifier, 's' string, 'o' operator
	val  string
	num  int64
}

var operators = []string{"<<", ">>", "<=", ">=", "==", "!=", "<", ">", "+", "-", "*", "/", "&", "|"}

func isComparison(op string) bool {
	switch op {
	case "==", "!=", "<", "<=", ">", ">=":
		return true
	}
	return false
}

func tokenize(s string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(s) {
		ch := rune(s[i])
		switch {
		case unicode.IsSpace(ch):
			i++
		case ch == '"' || ch == '\'':
			j := i + 1
			for j < len(s) && s[j] != s[i] {
				if s[j] == '\\' {
					j++
				}
				j++
			}
			if j >= len(s) {
				return nil, fmt.Errorf("unterminated string in %q", s)
			}
			text := s[i+1 : j]
			if ch == '"' {
				var err error
				if text, err = strconv.Unquote(s[i : j+1]); err != nil {
					return nil, err
				}
			}
			toks = append(toks, token{kind: 's', val: text})
			i = j + 1
		case unicode.IsDigit(ch) || (ch == '-' && i+1 < len(s) && unicode.IsDigit(rune(s[i+1])) && expectOperand(toks)):
			j := i + 1
			for j < len(s) && (isAlnum(s[j]) || s[j] == '_') {
				j++
			}
			n, err := strconv.ParseInt(strings.ReplaceAll(s[i:j], "_", ""), 0, 64)
			if err != nil {
				u, uerr := strconv.ParseUint(s[i:j], 0, 64)
				if uerr != nil {
					return nil, fmt.Errorf("bad number %q", s[i:j])
				}
				n = int64(u)
			}
			toks = append(toks, token{kind: 'n', val: s[i:j], num: n})
			i = j
		case unicode.IsLetter(ch) || ch == '_':
			j := i + 1
			for j < len(s) && (isAlnum(s[j]) || s[j] == '_' || s[j] == '.') {
				j++
			}
			toks = append(toks, token{kind: 'i', val: s[i:j]})
			i = j
		default:
			matched := false
			for _, op := range operators {
				if strings.HasPrefix(s[i:], op) {
					toks = append(toks, token{kind: 'o', val: op})
					i += len(op)
					matched = true
					break
				}
			}
			if !matched {
				return nil, fmt.Errorf("unexpected character %q in %q", ch, s)
			}
		}
	}
	return toks, nil
}

func expectOperand(toks []token) bool {
	return len(toks) == 0 || toks[len(toks)-1].kind == 'o'
}

func isAlnum(b byte) bool {
	return b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

func parseExprTokens(toks []token) (*Expr, []token, error) {
	if len(toks) == 0 {
		return nil, nil, errors.New("empty expression")
	}
	if toks[0].kind == 's' {
		text := toks[0].val
		return &Expr{text: &text}, toks[1:], nil
	}
	e := &Expr{}
	first, err := operand(toks[0])
	if err != nil {
		return nil, nil, err
	}
	e.terms = append(e.terms, first)
	toks = toks[1:]
	for len(toks) > 0 && toks[0].kind == 'o' && !isComparison(toks[0].val) {
		if len(toks) < 2 {
			return nil, nil, fmt.Errorf("missing operand after %q", toks[0].val)
		}
		t, err := operand(toks[1])
		if err != nil {
			return nil, nil, err
		}
		t.op = toks[0].val
		e.terms = append(e.terms, t)
		toks = toks[2:]
	}
	return e, toks, nil
}

func operand(t token) (term, error) {
	switch t.kind {
	case 'n':
		return term{lit: t.num}, nil
	case 'i':
		return term{name: t.val}, nil
	}
	return term{}, fmt.Errorf("expected operand, got %q", t.val)
}
