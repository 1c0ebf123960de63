package codec

import "bytes"

// RawBytes is an opaque payload. Decoding consumes every remaining byte and
// borrows from the input buffer; call Clone before the buffer is reused.
type RawBytes []byte

func (r RawBytes) Encode(buf *Buffer) error {
	buf.PutBytes(r)
	return nil
}

func (r RawBytes) BytesCount() int { return len(r) }

func (r *RawBytes) Decode(d *Decoder) error {
	*r = d.Rest()
	return nil
}

// Clone returns an owned copy.
func (r RawBytes) Clone() RawBytes { return bytes.Clone(r) }

// Empty is a payload with no bytes. Decoding it ignores trailing bytes.
type Empty struct{}

func (Empty) Encode(*Buffer) error { return nil }

func (Empty) BytesCount() int { return 0 }

func (*Empty) Decode(*Decoder) error { return nil }

// Concat encodes several values back to back.
type Concat []Encodable

func (c Concat) Encode(buf *Buffer) error {
	for _, v := range c {
		if err := v.Encode(buf); err != nil {
			return err
		}
	}
	return nil
}

func (c Concat) BytesCount() int { return BytesCountAll(c...) }

// Uint16 is a single little-endian UINT.
type Uint16 uint16

func (v Uint16) Encode(buf *Buffer) error {
	buf.PutUint16(uint16(v))
	return nil
}

func (Uint16) BytesCount() int { return 2 }

func (v *Uint16) Decode(d *Decoder) error {
	if err := d.Expect("UINT", 2); err != nil {
		return err
	}
	*v = Uint16(d.Uint16())
	return nil
}

// Uint32 is a single little-endian UDINT.
type Uint32 uint32

func (v Uint32) Encode(buf *Buffer) error {
	buf.PutUint32(uint32(v))
	return nil
}

func (Uint32) BytesCount() int { return 4 }

func (v *Uint32) Decode(d *Decoder) error {
	if err := d.Expect("UDINT", 4); err != nil {
		return err
	}
	*v = Uint32(d.Uint32())
	return nil
}

// ShortString is a CIP SHORT_STRING: one length byte followed by the bytes.
// Decoded values borrow from the input buffer.
type ShortString []byte

func (s ShortString) Encode(buf *Buffer) error {
	if len(s) > 0xFF {
		return &EncodeError{Kind: KindInvalidLength, Type: "SHORT_STRING", Msg: "longer than 255 bytes"}
	}
	buf.PutUint8(uint8(len(s)))
	buf.PutBytes(s)
	return nil
}

func (s ShortString) BytesCount() int { return 1 + len(s) }

func (s *ShortString) Decode(d *Decoder) error {
	if err := d.Expect("SHORT_STRING length", 1); err != nil {
		return err
	}
	n := int(d.Uint8())
	if err := d.Expect("SHORT_STRING", n); err != nil {
		return err
	}
	*s = d.Bytes(n)
	return nil
}

func (s ShortString) String() string { return string(s) }
