package codec

import (
	"errors"
	"fmt"
)

// Kind classifies a codec failure.
type Kind int

const (
	KindInvalidLength Kind = iota + 1
	KindInvalidValue
	KindInvalidData
)

func (k Kind) String() string {
	switch k {
	case KindInvalidLength:
		return "invalid length"
	case KindInvalidValue:
		return "invalid value"
	case KindInvalidData:
		return "invalid data"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Sentinels for errors.Is matching against DecodeError and EncodeError kinds.
var (
	ErrInvalidLength = errors.New("invalid length")
	ErrInvalidValue  = errors.New("invalid value")
	ErrInvalidData   = errors.New("invalid data")
)

func (k Kind) sentinel() error {
	switch k {
	case KindInvalidLength:
		return ErrInvalidLength
	case KindInvalidValue:
		return ErrInvalidValue
	default:
		return ErrInvalidData
	}
}

// DecodeError reports a buffer that does not match the expected layout.
type DecodeError struct {
	Kind  Kind
	Field string
	// Want and Got carry sizes for InvalidLength and raw values otherwise.
	Want int
	Got  int
	Msg  string
}

func (e *DecodeError) Error() string {
	msg := "decode"
	if e.Field != "" {
		msg += " " + e.Field
	}
	msg += ": " + e.Kind.String()
	switch {
	case e.Msg != "":
		msg += ": " + e.Msg
	case e.Kind == KindInvalidLength:
		msg += fmt.Sprintf(": need %d bytes, have %d", e.Want, e.Got)
	default:
		msg += fmt.Sprintf(": expected 0x%X, got 0x%X", e.Want, e.Got)
	}
	return msg
}

func (e *DecodeError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// EncodeError reports a value that cannot be written.
type EncodeError struct {
	Kind Kind
	Type string
	Want int
	Got  int
	Msg  string
}

func (e *EncodeError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("encode %s: %s: %s", e.Type, e.Kind, e.Msg)
	}
	return fmt.Sprintf("encode %s: %s: bytes count %d, wrote %d", e.Type, e.Kind, e.Want, e.Got)
}

func (e *EncodeError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// InvalidValue builds a decode error for an unexpected field value.
func InvalidValue(field string, want, got int) error {
	return &DecodeError{Kind: KindInvalidValue, Field: field, Want: want, Got: got}
}

// InvalidData builds a decode error for inconsistent internal accounting.
func InvalidData(field, format string, args ...any) error {
	return &DecodeError{Kind: KindInvalidData, Field: field, Msg: fmt.Sprintf(format, args...)}
}
