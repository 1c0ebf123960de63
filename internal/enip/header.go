package enip

// EtherNet/IP encapsulation header and frame handling.

import (
	"fmt"

	"github.com/tonylturner/cipwire/internal/cip/codec"
)

// HeaderSize is the fixed length of the encapsulation header.
const HeaderSize = 24

// DefaultPort is the registered EtherNet/IP explicit messaging TCP port.
const DefaultPort = 44818

// Command is an encapsulation command code.
type Command uint16

const (
	CommandNOP               Command = 0x0000
	CommandListServices      Command = 0x0004
	CommandListIdentity      Command = 0x0063
	CommandListInterfaces    Command = 0x0064
	CommandRegisterSession   Command = 0x0065
	CommandUnregisterSession Command = 0x0066
	CommandSendRRData        Command = 0x006F
	CommandSendUnitData      Command = 0x0070
)

func (c Command) String() string {
	switch c {
	case CommandNOP:
		return "NOP"
	case CommandListServices:
		return "ListServices"
	case CommandListIdentity:
		return "ListIdentity"
	case CommandListInterfaces:
		return "ListInterfaces"
	case CommandRegisterSession:
		return "RegisterSession"
	case CommandUnregisterSession:
		return "UnregisterSession"
	case CommandSendRRData:
		return "SendRRData"
	case CommandSendUnitData:
		return "SendUnitData"
	default:
		return fmt.Sprintf("Command(0x%04X)", uint16(c))
	}
}

// Status is the encapsulation-level status word.
type Status uint32

const (
	StatusSuccess              Status = 0x0000
	StatusInvalidCommand       Status = 0x0001
	StatusInsufficientMemory   Status = 0x0002
	StatusIncorrectData        Status = 0x0003
	StatusInvalidSessionHandle Status = 0x0064
	StatusInvalidLength        Status = 0x0065
	StatusUnsupportedProtocol  Status = 0x0069
)

// StatusName returns a readable name for an encapsulation status.
func StatusName(s Status) string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusInvalidCommand:
		return "Invalid or unsupported command"
	case StatusInsufficientMemory:
		return "Insufficient memory"
	case StatusIncorrectData:
		return "Poorly formed or incorrect data"
	case StatusInvalidSessionHandle:
		return "Invalid session handle"
	case StatusInvalidLength:
		return "Invalid length"
	case StatusUnsupportedProtocol:
		return "Unsupported protocol revision"
	default:
		return fmt.Sprintf("Unknown (0x%08X)", uint32(s))
	}
}

func (s Status) String() string { return StatusName(s) }

// Header is the 24-byte encapsulation header. Length counts the bytes that
// follow the header.
type Header struct {
	Command       Command
	Length        uint16
	SessionHandle uint32
	Status        Status
	SenderContext [8]byte
	Options       uint32
}

func (h Header) Encode(buf *codec.Buffer) error {
	buf.PutUint16(uint16(h.Command))
	buf.PutUint16(h.Length)
	buf.PutUint32(h.SessionHandle)
	buf.PutUint32(uint32(h.Status))
	buf.PutBytes(h.SenderContext[:])
	buf.PutUint32(h.Options)
	return nil
}

func (Header) BytesCount() int { return HeaderSize }

func (h *Header) Decode(d *codec.Decoder) error {
	if err := d.Expect("encapsulation header", HeaderSize); err != nil {
		return err
	}
	h.Command = Command(d.Uint16())
	h.Length = d.Uint16()
	h.SessionHandle = d.Uint32()
	h.Status = Status(d.Uint32())
	copy(h.SenderContext[:], d.Bytes(8))
	h.Options = d.Uint32()
	return nil
}

// Packet is a header plus its command-specific payload. Encode fills in
// Header.Length from the payload.
type Packet struct {
	Header Header
	Data   codec.Encodable
}

func (p Packet) payloadLen() int {
	if p.Data == nil {
		return 0
	}
	return p.Data.BytesCount()
}

func (p Packet) Encode(buf *codec.Buffer) error {
	n := p.payloadLen()
	if n > 0xFFFF {
		return &codec.EncodeError{Kind: codec.KindInvalidLength, Type: "enip.Packet", Msg: fmt.Sprintf("payload of %d bytes exceeds 65535", n)}
	}
	h := p.Header
	h.Length = uint16(n)
	if err := h.Encode(buf); err != nil {
		return err
	}
	if p.Data == nil {
		return nil
	}
	return p.Data.Encode(buf)
}

func (p Packet) BytesCount() int { return HeaderSize + p.payloadLen() }

// Frame is a decoded encapsulation frame. Data borrows from the input.
type Frame struct {
	Header Header
	Data   []byte
}

// DecodeFrame parses one complete frame. The payload must match Header.Length exactly.
func DecodeFrame(data []byte) (Frame, error) {
	d := codec.NewDecoder(data)
	var f Frame
	if err := f.Header.Decode(d); err != nil {
		return f, err
	}
	if d.Remaining() != int(f.Header.Length) {
		return f, &codec.DecodeError{Kind: codec.KindInvalidLength, Field: "encapsulation payload", Want: int(f.Header.Length), Got: d.Remaining()}
	}
	f.Data = d.Rest()
	return f, nil
}

// FrameLength reports the total frame size announced by a header prefix, or
// false when fewer than HeaderSize bytes are available.
func FrameLength(prefix []byte) (int, bool) {
	if len(prefix) < HeaderSize {
		return 0, false
	}
	return HeaderSize + int(uint16(prefix[2])|uint16(prefix[3])<<8), true
}
