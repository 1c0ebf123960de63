package codec

// Little-endian encoding for CIP and EtherNet/IP wire values.

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encodable is implemented by every value that can be written to the wire.
//
// BytesCount must return exactly the number of bytes Encode appends. Length
// prefixed fields upstream (path word counts, CPF item lengths, Multiple
// Service offsets) are computed from BytesCount before the value is written.
type Encodable interface {
	Encode(buf *Buffer) error
	BytesCount() int
}

// Buffer is an append-only little-endian writer.
type Buffer struct {
	b []byte
}

// NewBuffer returns a buffer with room for size bytes.
func NewBuffer(size int) *Buffer {
	return &Buffer{b: make([]byte, 0, size)}
}

// Bytes returns the written bytes. The slice aliases the buffer.
func (b *Buffer) Bytes() []byte { return b.b }

// Len returns the number of bytes written so far.
func (b *Buffer) Len() int { return len(b.b) }

// Reset drops written bytes but keeps the allocation.
func (b *Buffer) Reset() { b.b = b.b[:0] }

func (b *Buffer) PutUint8(v uint8) { b.b = append(b.b, v) }

func (b *Buffer) PutUint16(v uint16) { b.b = binary.LittleEndian.AppendUint16(b.b, v) }

func (b *Buffer) PutUint32(v uint32) { b.b = binary.LittleEndian.AppendUint32(b.b, v) }

func (b *Buffer) PutUint64(v uint64) { b.b = binary.LittleEndian.AppendUint64(b.b, v) }

func (b *Buffer) PutInt8(v int8) { b.PutUint8(uint8(v)) }

func (b *Buffer) PutInt16(v int16) { b.PutUint16(uint16(v)) }

func (b *Buffer) PutInt32(v int32) { b.PutUint32(uint32(v)) }

func (b *Buffer) PutInt64(v int64) { b.PutUint64(uint64(v)) }

func (b *Buffer) PutFloat32(v float32) { b.PutUint32(math.Float32bits(v)) }

func (b *Buffer) PutFloat64(v float64) { b.PutUint64(math.Float64bits(v)) }

// PutBytes appends raw bytes.
func (b *Buffer) PutBytes(p []byte) { b.b = append(b.b, p...) }

// PutZeros appends n zero bytes (padding and reserved fields).
func (b *Buffer) PutZeros(n int) {
	for i := 0; i < n; i++ {
		b.b = append(b.b, 0)
	}
}

// Encode writes v and checks that it wrote exactly v.BytesCount() bytes.
func (b *Buffer) Encode(v Encodable) error {
	start := len(b.b)
	want := v.BytesCount()
	if err := v.Encode(b); err != nil {
		return err
	}
	if got := len(b.b) - start; got != want {
		return &EncodeError{Kind: KindInvalidLength, Type: fmt.Sprintf("%T", v), Want: want, Got: got}
	}
	return nil
}

// Marshal encodes v into a freshly allocated slice of exactly BytesCount bytes.
func Marshal(v Encodable) ([]byte, error) {
	buf := NewBuffer(v.BytesCount())
	if err := buf.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalAppend encodes v onto dst.
func MarshalAppend(dst []byte, v Encodable) ([]byte, error) {
	buf := &Buffer{b: dst}
	if err := buf.Encode(v); err != nil {
		return dst, err
	}
	return buf.Bytes(), nil
}

// BytesCountAll sums the encoded size of several values.
func BytesCountAll(vs ...Encodable) int {
	n := 0
	for _, v := range vs {
		n += v.BytesCount()
	}
	return n
}
