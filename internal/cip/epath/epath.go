package epath

import (
	"strings"

	"github.com/tonylturner/cipwire/internal/cip/codec"
	"github.com/tonylturner/cipwire/internal/cip/codes"
)

// EPath is an ordered list of segments. Order matters: port segments route
// through backplanes before the logical segments address the target object.
//
// Builder methods never modify the receiver's backing array.
type EPath []Segment

// FromSymbol starts a path with a symbolic segment.
func FromSymbol(name string) EPath { return EPath{Symbol(name)} }

// FromClass starts a path with a class segment.
func FromClass(class uint16) EPath { return EPath{Class(class)} }

// FromPort starts a path with a port segment.
func FromPort(port uint16, link ...byte) EPath { return EPath{Port{Port: port, Link: link}} }

// FromSymbolic splits a dotted tag name ("Program:Main.Motor.Speed") into
// one symbolic segment per member.
func FromSymbolic(tag string) EPath {
	var p EPath
	for _, part := range strings.Split(tag, ".") {
		if part == "" {
			continue
		}
		p = append(p, Symbol(part))
	}
	return p
}

// ConnectionManager is the Connection Manager object path (class 0x06, instance 1).
func ConnectionManager() EPath { return FromClass(codes.ClassConnectionManager).Instance(0x01) }

// MessageRouter is the Message Router object path (class 0x02, instance 1).
func MessageRouter() EPath { return FromClass(codes.ClassMessageRouter).Instance(0x01) }

// Backplane routes out of port 1 to the module in slot.
func Backplane(slot uint8) EPath { return FromPort(1, slot) }

// Append returns p followed by segs.
func (p EPath) Append(segs ...Segment) EPath {
	out := make(EPath, 0, len(p)+len(segs))
	out = append(out, p...)
	return append(out, segs...)
}

// Join returns p followed by every segment of q.
func (p EPath) Join(q EPath) EPath { return p.Append(q...) }

func (p EPath) Symbol(name string) EPath { return p.Append(Symbol(name)) }
func (p EPath) Class(v uint16) EPath     { return p.Append(Class(v)) }
func (p EPath) Instance(v uint16) EPath  { return p.Append(Instance(v)) }
func (p EPath) Attribute(v uint16) EPath { return p.Append(Attribute(v)) }
func (p EPath) Element(v uint32) EPath   { return p.Append(Element(v)) }
func (p EPath) Port(port uint16, link ...byte) EPath {
	return p.Append(Port{Port: port, Link: link})
}

func (p EPath) Encode(buf *codec.Buffer) error {
	for _, seg := range p {
		if err := seg.Encode(buf); err != nil {
			return err
		}
	}
	return nil
}

func (p EPath) BytesCount() int {
	n := 0
	for _, seg := range p {
		n += seg.BytesCount()
	}
	return n
}

// Words returns the encoded length in 16-bit words.
func (p EPath) Words() int { return p.BytesCount() / 2 }

func (p EPath) String() string {
	parts := make([]string, 0, len(p))
	for _, seg := range p {
		parts = append(parts, seg.String())
	}
	return strings.Join(parts, " / ")
}

// Decode consumes every remaining byte of d as path segments. Callers scope d
// to the path window (for example with codec.DecodeSized).
func (p *EPath) Decode(d *codec.Decoder) error {
	var out EPath
	for d.HasRemaining() {
		seg, err := decodeSegment(d)
		if err != nil {
			return err
		}
		out = append(out, seg)
	}
	*p = out
	return nil
}

// Parse decodes a complete encoded path.
func Parse(data []byte) (EPath, error) {
	var p EPath
	err := p.Decode(codec.NewDecoder(data))
	return p, err
}

func decodeSegment(d *codec.Decoder) (Segment, error) {
	start := d.Offset()
	seg := d.Uint8()
	switch {
	case seg == SegmentSymbolic:
		if err := d.Expect("symbolic segment length", 1); err != nil {
			return nil, err
		}
		n := int(d.Uint8())
		if n == 0 {
			return nil, codec.InvalidData("symbolic segment", "empty name")
		}
		if err := d.Expect("symbolic segment", n); err != nil {
			return nil, err
		}
		name := Symbol(d.Bytes(n))
		skipPad(d, start)
		return name, nil
	case seg&0xE0 == 0x20:
		return decodeLogical(d, seg)
	case seg&0xE0 == 0x00:
		return decodePort(d, seg, start)
	default:
		return nil, codec.InvalidValue("segment type", SegmentClass, int(seg))
	}
}

func decodeLogical(d *codec.Decoder, seg uint8) (Segment, error) {
	kind := seg & 0xFC
	var v uint32
	switch seg & 0x03 {
	case logicalFormat8:
		if err := d.Expect("logical segment", 1); err != nil {
			return nil, err
		}
		v = uint32(d.Uint8())
	case logicalFormat16:
		if err := d.Expect("logical segment", 3); err != nil {
			return nil, err
		}
		d.Skip(1)
		v = uint32(d.Uint16())
	case logicalFormat32:
		if kind != SegmentElement {
			return nil, codec.InvalidData("logical segment", "32-bit format only valid for element, got 0x%02X", seg)
		}
		if err := d.Expect("logical segment", 5); err != nil {
			return nil, err
		}
		d.Skip(1)
		v = d.Uint32()
	default:
		return nil, codec.InvalidValue("logical format", logicalFormat8, int(seg&0x03))
	}
	switch kind {
	case SegmentClass:
		return Class(v), nil
	case SegmentInstance:
		return Instance(v), nil
	case SegmentAttribute:
		return Attribute(v), nil
	case SegmentElement:
		return Element(v), nil
	default:
		return nil, codec.InvalidValue("logical type", SegmentClass, int(kind))
	}
}

func decodePort(d *codec.Decoder, seg uint8, start int) (Segment, error) {
	linkLen := 1
	if seg&portExtendedLink != 0 {
		if err := d.Expect("port link size", 1); err != nil {
			return nil, err
		}
		linkLen = int(d.Uint8())
	}
	port := uint16(seg & 0x0F)
	if port == 0 {
		return nil, codec.InvalidValue("port", 1, 0)
	}
	if port == portIDExtended {
		if err := d.Expect("extended port", 2); err != nil {
			return nil, err
		}
		port = d.Uint16()
	}
	if err := d.Expect("port link", linkLen); err != nil {
		return nil, err
	}
	link := d.Bytes(linkLen)
	skipPad(d, start)
	return Port{Port: port, Link: link}, nil
}

func skipPad(d *codec.Decoder, start int) {
	if (d.Offset()-start)%2 != 0 && d.HasRemaining() {
		d.Skip(1)
	}
}
