package fieldwire

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every runtime failure is an *Error whose Kind is one of
// these, so errors.Is(err, ErrFail) and friends work on anything returned.
var (
	ErrInvalidByteLength = errors.New("fieldwire: invalid byte length")
	ErrFail              = errors.New("fieldwire: decode failed")
	ErrInvalidValue      = errors.New("fieldwire: invalid value")
	ErrPushFail          = errors.New("fieldwire: push failed")
	ErrConfig            = errors.New("fieldwire: invalid configuration")
	ErrNotPointer        = errors.New("fieldwire: expected non-nil pointer")
)

// snapshotLen caps how many remaining bytes an Error keeps.
const snapshotLen = 32

// Error describes where and why a decode or encode failed.
type Error struct {
	Kind      error  // one of the sentinel errors above
	Offset    int    // cursor position at the failure
	Remaining []byte // copy of up to 32 bytes following Offset
	Field     string // innermost field being processed, if known
	Value     string // textual form of the offending value (ErrInvalidValue)
	Cause     error  // underlying error from a hook, parser or codec
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Value != "" {
		msg = fmt.Sprintf("%s %q", msg, e.Value)
	}
	if e.Field != "" {
		msg = fmt.Sprintf("%s (field %s)", msg, e.Field)
	}
	msg = fmt.Sprintf("%s at offset %d", msg, e.Offset)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

// ConfigError reports an unusable modifier, tag or union registration.
type ConfigError struct {
	Type   string // Go type being planned
	Field  string // field name, when the problem is field-specific
	Option string // offending option key
	Cause  error
}

func (e *ConfigError) Error() string {
	msg := ErrConfig.Error()
	if e.Type != "" {
		msg += " for " + e.Type
	}
	if e.Field != "" {
		msg += "." + e.Field
	}
	if e.Option != "" {
		msg += fmt.Sprintf(" option %q", e.Option)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return ErrConfig
}

// newError builds an *Error positioned at the cursor. An error that is
// already an *Error is returned unchanged so the innermost position wins.
func newError(c *Cursor, kind error, cause error) error {
	var fe *Error
	if errors.As(cause, &fe) {
		return fe
	}
	e := &Error{Kind: kind, Cause: cause}
	if c != nil {
		e.Offset = c.pos
		rest := c.buf[c.pos:]
		if len(rest) > snapshotLen {
			rest = rest[:snapshotLen]
		}
		e.Remaining = append([]byte(nil), rest...)
	}
	return e
}

// withField tags err with the field name when nothing deeper already did.
func withField(err error, name string) error {
	var fe *Error
	if name != "" && errors.As(err, &fe) && fe.Field == "" {
		fe.Field = name
	}
	return err
}

func failf(c *Cursor, format string, args ...any) error {
	return newError(c, ErrFail, fmt.Errorf(format, args...))
}

func lengthf(c *Cursor, format string, args ...any) error {
	return newError(c, ErrInvalidByteLength, fmt.Errorf(format, args...))
}
