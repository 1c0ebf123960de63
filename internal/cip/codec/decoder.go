package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Decodable is implemented by pointer types that read themselves from a Decoder.
type Decodable interface {
	Decode(d *Decoder) error
}

// Decoder is a little-endian cursor over a borrowed byte slice.
//
// Primitive getters do not check bounds against the caller's intent: every
// public decode entry point calls EnsureSize first, and reading past what was
// ensured is a programming error that panics.
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder returns a decoder positioned at the start of buf.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int { return len(d.buf) - d.pos }

// Offset returns the number of bytes consumed so far.
func (d *Decoder) Offset() int { return d.pos }

// HasRemaining reports whether any bytes are left.
func (d *Decoder) HasRemaining() bool { return d.pos < len(d.buf) }

// EnsureSize fails with InvalidLength when fewer than n bytes remain.
func (d *Decoder) EnsureSize(n int) error {
	if n < 0 || d.Remaining() < n {
		return &DecodeError{Kind: KindInvalidLength, Want: n, Got: d.Remaining()}
	}
	return nil
}

// Expect is EnsureSize with a field name attached to the error.
func (d *Decoder) Expect(field string, n int) error {
	if n < 0 || d.Remaining() < n {
		return &DecodeError{Kind: KindInvalidLength, Field: field, Want: n, Got: d.Remaining()}
	}
	return nil
}

func (d *Decoder) take(n int) []byte {
	if d.Remaining() < n {
		panic(fmt.Sprintf("codec: read of %d bytes at offset %d past end of %d-byte buffer", n, d.pos, len(d.buf)))
	}
	p := d.buf[d.pos : d.pos+n : d.pos+n]
	d.pos += n
	return p
}

func (d *Decoder) Uint8() uint8 { return d.take(1)[0] }

func (d *Decoder) Uint16() uint16 { return binary.LittleEndian.Uint16(d.take(2)) }

func (d *Decoder) Uint32() uint32 { return binary.LittleEndian.Uint32(d.take(4)) }

func (d *Decoder) Uint64() uint64 { return binary.LittleEndian.Uint64(d.take(8)) }

func (d *Decoder) Int8() int8 { return int8(d.Uint8()) }

func (d *Decoder) Int16() int16 { return int16(d.Uint16()) }

func (d *Decoder) Int32() int32 { return int32(d.Uint32()) }

func (d *Decoder) Int64() int64 { return int64(d.Uint64()) }

func (d *Decoder) Float32() float32 { return math.Float32frombits(d.Uint32()) }

func (d *Decoder) Float64() float64 { return math.Float64frombits(d.Uint64()) }

// Bytes returns the next n bytes without copying.
func (d *Decoder) Bytes(n int) []byte { return d.take(n) }

// Rest returns all unread bytes without copying and moves to the end.
func (d *Decoder) Rest() []byte { return d.take(d.Remaining()) }

// Skip advances past n bytes.
func (d *Decoder) Skip(n int) { d.take(n) }

// PeekUint8 returns the next byte without consuming it.
func (d *Decoder) PeekUint8() uint8 {
	if d.Remaining() < 1 {
		panic("codec: peek past end of buffer")
	}
	return d.buf[d.pos]
}

// DecodeAny decodes a T through its Decodable pointer type.
func DecodeAny[T any, PT interface {
	*T
	Decodable
}](d *Decoder) (T, error) {
	var v T
	if err := PT(&v).Decode(d); err != nil {
		return v, err
	}
	return v, nil
}

// Unmarshal decodes v from data and fails if bytes are left over.
func Unmarshal(data []byte, v Decodable) error {
	d := NewDecoder(data)
	if err := v.Decode(d); err != nil {
		return err
	}
	if d.HasRemaining() {
		return InvalidData(fmt.Sprintf("%T", v), "%d trailing bytes", d.Remaining())
	}
	return nil
}

// Visitor decodes a value from a decoder scoped to a fixed-size window.
type Visitor[T any] interface {
	Visit(d *Decoder) (T, error)
}

// VisitorFunc adapts a function to the Visitor interface.
type VisitorFunc[T any] func(d *Decoder) (T, error)

func (f VisitorFunc[T]) Visit(d *Decoder) (T, error) { return f(d) }

// AnyVisitor visits a window with T's own Decode method.
func AnyVisitor[T any, PT interface {
	*T
	Decodable
}]() Visitor[T] {
	return VisitorFunc[T](func(d *Decoder) (T, error) {
		return DecodeAny[T, PT](d)
	})
}

// DecodeSized slices exactly n bytes and hands a fresh decoder over that
// window to v. The parent advances by n regardless of how much v consumed,
// so an inner value can never read past its length prefix.
func DecodeSized[T any](d *Decoder, n int, v Visitor[T]) (T, error) {
	var zero T
	if err := d.EnsureSize(n); err != nil {
		return zero, err
	}
	sub := NewDecoder(d.take(n))
	return v.Visit(sub)
}
