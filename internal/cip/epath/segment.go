package epath

// EPATH segment encoding (padded format).

import (
	"fmt"

	"github.com/tonylturner/cipwire/internal/cip/codec"
)

// Segment type bytes.
const (
	SegmentClass     = 0x20
	SegmentInstance  = 0x24
	SegmentElement   = 0x28
	SegmentAttribute = 0x30
	SegmentSymbolic  = 0x91

	logicalFormat8  = 0x00
	logicalFormat16 = 0x01
	logicalFormat32 = 0x02

	portExtendedLink = 0x10
	portIDExtended   = 0x0F
	maxCompactPort   = 14
)

// Segment is one element of an EPath.
type Segment interface {
	codec.Encodable
	fmt.Stringer
	isSegment()
}

// Symbol is an ANSI extended symbolic segment.
type Symbol string

// Class is a logical class segment.
type Class uint16

// Instance is a logical instance segment.
type Instance uint16

// Attribute is a logical attribute segment.
type Attribute uint16

// Element is a logical member (array element) segment.
type Element uint32

// Port routes through a device port to the node at Link.
type Port struct {
	Port uint16
	Link []byte
}

func (Symbol) isSegment()    {}
func (Class) isSegment()     {}
func (Instance) isSegment()  {}
func (Attribute) isSegment() {}
func (Element) isSegment()   {}
func (Port) isSegment()      {}

func (s Symbol) Encode(buf *codec.Buffer) error {
	if len(s) == 0 || len(s) > 0xFF {
		return &codec.EncodeError{Kind: codec.KindInvalidLength, Type: "epath.Symbol", Msg: fmt.Sprintf("name length %d out of range 1..255", len(s))}
	}
	buf.PutUint8(SegmentSymbolic)
	buf.PutUint8(uint8(len(s)))
	buf.PutBytes([]byte(s))
	if len(s)%2 != 0 {
		buf.PutUint8(0)
	}
	return nil
}

func (s Symbol) BytesCount() int { return padded(2 + len(s)) }

func (s Symbol) String() string { return string(s) }

func encodeLogical(buf *codec.Buffer, kind uint8, v uint32) {
	switch {
	case v <= 0xFF:
		buf.PutUint8(kind | logicalFormat8)
		buf.PutUint8(uint8(v))
	case v <= 0xFFFF:
		buf.PutUint8(kind | logicalFormat16)
		buf.PutUint8(0)
		buf.PutUint16(uint16(v))
	default:
		buf.PutUint8(kind | logicalFormat32)
		buf.PutUint8(0)
		buf.PutUint32(v)
	}
}

func logicalBytesCount(v uint32) int {
	switch {
	case v <= 0xFF:
		return 2
	case v <= 0xFFFF:
		return 4
	default:
		return 6
	}
}

func (c Class) Encode(buf *codec.Buffer) error {
	encodeLogical(buf, SegmentClass, uint32(c))
	return nil
}

func (c Class) BytesCount() int { return logicalBytesCount(uint32(c)) }

func (c Class) String() string { return fmt.Sprintf("class 0x%02X", uint16(c)) }

func (i Instance) Encode(buf *codec.Buffer) error {
	encodeLogical(buf, SegmentInstance, uint32(i))
	return nil
}

func (i Instance) BytesCount() int { return logicalBytesCount(uint32(i)) }

func (i Instance) String() string { return fmt.Sprintf("instance 0x%02X", uint16(i)) }

func (a Attribute) Encode(buf *codec.Buffer) error {
	encodeLogical(buf, SegmentAttribute, uint32(a))
	return nil
}

func (a Attribute) BytesCount() int { return logicalBytesCount(uint32(a)) }

func (a Attribute) String() string { return fmt.Sprintf("attribute 0x%02X", uint16(a)) }

func (e Element) Encode(buf *codec.Buffer) error {
	encodeLogical(buf, SegmentElement, uint32(e))
	return nil
}

func (e Element) BytesCount() int { return logicalBytesCount(uint32(e)) }

func (e Element) String() string { return fmt.Sprintf("[%d]", uint32(e)) }

func (p Port) Encode(buf *codec.Buffer) error {
	if len(p.Link) == 0 || len(p.Link) > 0xFF {
		return &codec.EncodeError{Kind: codec.KindInvalidLength, Type: "epath.Port", Msg: fmt.Sprintf("link length %d out of range 1..255", len(p.Link))}
	}
	if p.Port == 0 {
		return &codec.EncodeError{Kind: codec.KindInvalidValue, Type: "epath.Port", Msg: "port 0 is reserved"}
	}
	seg := uint8(p.Port)
	if p.Port > maxCompactPort {
		seg = portIDExtended
	}
	if len(p.Link) > 1 {
		seg |= portExtendedLink
	}
	buf.PutUint8(seg)
	if len(p.Link) > 1 {
		buf.PutUint8(uint8(len(p.Link)))
	}
	if p.Port > maxCompactPort {
		buf.PutUint16(p.Port)
	}
	buf.PutBytes(p.Link)
	if p.rawLen()%2 != 0 {
		buf.PutUint8(0)
	}
	return nil
}

func (p Port) rawLen() int {
	n := 1 + len(p.Link)
	if len(p.Link) > 1 {
		n++
	}
	if p.Port > maxCompactPort {
		n += 2
	}
	return n
}

func (p Port) BytesCount() int { return padded(p.rawLen()) }

func (p Port) String() string { return fmt.Sprintf("port %d link % X", p.Port, p.Link) }

func padded(n int) int { return n + n%2 }
