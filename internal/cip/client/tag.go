package client

// Logix tag service payloads.

import (
	"fmt"

	"github.com/tonylturner/cipwire/internal/cip/codec"
	"github.com/tonylturner/cipwire/internal/cip/codes"
	"github.com/tonylturner/cipwire/internal/cip/epath"
	"github.com/tonylturner/cipwire/internal/cip/protocol"
)

// Atomic tag type codes.
const (
	TypeBOOL  uint16 = 0xC1
	TypeSINT  uint16 = 0xC2
	TypeINT   uint16 = 0xC3
	TypeDINT  uint16 = 0xC4
	TypeLINT  uint16 = 0xC5
	TypeUSINT uint16 = 0xC6
	TypeUINT  uint16 = 0xC7
	TypeUDINT uint16 = 0xC8
	TypeULINT uint16 = 0xC9
	TypeREAL  uint16 = 0xCA
	TypeLREAL uint16 = 0xCB
	TypeDWORD uint16 = 0xD3

	// typeStructMarker precedes a structure handle.
	typeStructMarker uint16 = 0x02A0
)

var typeNames = map[uint16]string{
	TypeBOOL: "BOOL", TypeSINT: "SINT", TypeINT: "INT", TypeDINT: "DINT", TypeLINT: "LINT",
	TypeUSINT: "USINT", TypeUINT: "UINT", TypeUDINT: "UDINT", TypeULINT: "ULINT",
	TypeREAL: "REAL", TypeLREAL: "LREAL", TypeDWORD: "DWORD",
}

// TagType is an atomic type code or a structure handle.
type TagType struct {
	Code   uint16
	Handle uint16
	Struct bool
}

// Atomic returns the TagType for an atomic type code.
func Atomic(code uint16) TagType { return TagType{Code: code} }

// Structure returns the TagType for a structure handle.
func Structure(handle uint16) TagType {
	return TagType{Code: typeStructMarker, Handle: handle, Struct: true}
}

// ParseTagType maps an atomic type name such as "DINT".
func ParseTagType(name string) (TagType, error) {
	for code, n := range typeNames {
		if n == name {
			return Atomic(code), nil
		}
	}
	return TagType{}, fmt.Errorf("unknown tag type %q", name)
}

func (t TagType) String() string {
	if t.Struct {
		return fmt.Sprintf("STRUCT(0x%04X)", t.Handle)
	}
	if n, ok := typeNames[t.Code]; ok {
		return n
	}
	return fmt.Sprintf("TYPE(0x%04X)", t.Code)
}

func (t TagType) Encode(buf *codec.Buffer) error {
	if t.Struct {
		buf.PutUint16(typeStructMarker)
		buf.PutUint16(t.Handle)
		return nil
	}
	buf.PutUint16(t.Code)
	return nil
}

func (t TagType) BytesCount() int {
	if t.Struct {
		return 4
	}
	return 2
}

func (t *TagType) Decode(d *codec.Decoder) error {
	if err := d.Expect("tag type", 2); err != nil {
		return err
	}
	code := d.Uint16()
	if code != typeStructMarker {
		*t = Atomic(code)
		return nil
	}
	if err := d.Expect("structure handle", 2); err != nil {
		return err
	}
	*t = Structure(d.Uint16())
	return nil
}

// TagValue is a tag's type and raw little-endian data.
type TagValue struct {
	Type TagType
	Data []byte
}

func (v TagValue) Encode(buf *codec.Buffer) error {
	if err := v.Type.Encode(buf); err != nil {
		return err
	}
	buf.PutBytes(v.Data)
	return nil
}

func (v TagValue) BytesCount() int { return v.Type.BytesCount() + len(v.Data) }

// Decode reads the type and keeps the rest as data (borrowed).
func (v *TagValue) Decode(d *codec.Decoder) error {
	if err := v.Type.Decode(d); err != nil {
		return err
	}
	v.Data = d.Rest()
	return nil
}

// DecodeTagValue decodes v.Data as T. Every byte must be consumed.
func DecodeTagValue[T any, PT interface {
	*T
	codec.Decodable
}](v TagValue) (T, error) {
	var out T
	if err := codec.Unmarshal(v.Data, PT(&out)); err != nil {
		return out, fmt.Errorf("decode %s value: %w", v.Type, err)
	}
	return out, nil
}

// readTagData is the Read_Tag payload.
type readTagData struct {
	Elements uint16
}

func (r readTagData) Encode(buf *codec.Buffer) error {
	buf.PutUint16(r.Elements)
	return nil
}

func (readTagData) BytesCount() int { return 2 }

// readFragmentData is the Read_Tag_Fragmented payload.
type readFragmentData struct {
	Elements uint16
	Offset   uint32
}

func (r readFragmentData) Encode(buf *codec.Buffer) error {
	buf.PutUint16(r.Elements)
	buf.PutUint32(r.Offset)
	return nil
}

func (readFragmentData) BytesCount() int { return 6 }

// writeTagData is the Write_Tag payload.
type writeTagData struct {
	Type     TagType
	Elements uint16
	Data     []byte
}

func (w writeTagData) Encode(buf *codec.Buffer) error {
	if err := w.Type.Encode(buf); err != nil {
		return err
	}
	buf.PutUint16(w.Elements)
	buf.PutBytes(w.Data)
	return nil
}

func (w writeTagData) BytesCount() int { return w.Type.BytesCount() + 2 + len(w.Data) }

// writeFragmentData is the Write_Tag_Fragmented payload.
type writeFragmentData struct {
	Type     TagType
	Elements uint16
	Offset   uint32
	Chunk    []byte
}

func (w writeFragmentData) Encode(buf *codec.Buffer) error {
	if err := w.Type.Encode(buf); err != nil {
		return err
	}
	buf.PutUint16(w.Elements)
	buf.PutUint32(w.Offset)
	buf.PutBytes(w.Chunk)
	return nil
}

func (w writeFragmentData) BytesCount() int { return w.Type.BytesCount() + 6 + len(w.Chunk) }

// NewReadTagRequest builds a Read_Tag request, for example to queue in a Batch.
func NewReadTagRequest(tag epath.EPath, elements uint16) protocol.Request {
	return protocol.NewRequest(codes.ServiceReadTag, tag, readTagData{Elements: elements})
}

// NewWriteTagRequest builds a Write_Tag request.
func NewWriteTagRequest(tag epath.EPath, value TagValue, elements uint16) protocol.Request {
	return protocol.NewRequest(codes.ServiceWriteTag, tag, writeTagData{Type: value.Type, Elements: elements, Data: value.Data})
}
