package reltable

import (
	"errors"
	"fmt"

	"github.com/bsm/reltable/codec"
)

// Codec error kinds, shared with package codec.
var (
	ErrInvalidType   = codec.ErrInvalidType
	ErrValueTooLong  = codec.ErrValueTooLong
	ErrValueTooLarge = codec.ErrValueTooLarge
	ErrSizeExceeded  = codec.ErrSizeExceeded
)

// Engine error kinds.
var (
	ErrSeparatorInName  = errors.New("separator in name")
	ErrInvalidName      = errors.New("invalid name")
	ErrKeyTooLong       = errors.New("key too long")
	ErrTableExists      = errors.New("table exists")
	ErrNoTable          = errors.New("no such table")
	ErrNoData           = errors.New("no data")
	ErrNoColumn         = errors.New("no such column")
	ErrColumnCount      = errors.New("column count mismatch")
	ErrNotIndexed       = errors.New("column not indexed")
	ErrNotAutoIncrement = errors.New("table is not auto-increment")
)

// Error is returned by all Engine operations which fail for a domain
// reason. Use errors.Is with one of the Err* kinds to test for a
// specific failure.
type Error struct {
	Kind error  // one of the Err* kinds
	Msg  string // context
	Err  error  // underlying cause, optional
}

func (e *Error) Error() string {
	msg := "reltable: " + e.Kind.Error()
	if e.Msg != "" {
		msg += ", " + e.Msg
	}
	if e.Err != nil && e.Err != e.Kind {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// wrapCodec tags a codec failure with the column it occurred in. The codec
// kind is kept so errors.Is keeps working.
func wrapCodec(err error, format string, args ...interface{}) error {
	for _, kind := range []error{ErrInvalidType, ErrValueTooLong, ErrValueTooLarge, ErrSizeExceeded} {
		if errors.Is(err, kind) {
			return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
		}
	}
	return err
}
