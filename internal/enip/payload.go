package enip

// Command-specific payloads.

import (
	"bytes"

	"github.com/tonylturner/cipwire/internal/cip/codec"
)

// ProtocolVersion is the only encapsulation protocol revision in use.
const ProtocolVersion uint16 = 1

// RegisterSessionData is the RegisterSession request and reply payload.
type RegisterSessionData struct {
	ProtocolVersion uint16
	OptionFlags     uint16
}

// NewRegisterSession returns the default registration payload.
func NewRegisterSession() RegisterSessionData {
	return RegisterSessionData{ProtocolVersion: ProtocolVersion}
}

func (r RegisterSessionData) Encode(buf *codec.Buffer) error {
	buf.PutUint16(r.ProtocolVersion)
	buf.PutUint16(r.OptionFlags)
	return nil
}

func (RegisterSessionData) BytesCount() int { return 4 }

func (r *RegisterSessionData) Decode(d *codec.Decoder) error {
	if err := d.Expect("register session data", 4); err != nil {
		return err
	}
	r.ProtocolVersion = d.Uint16()
	r.OptionFlags = d.Uint16()
	return nil
}

// CommandData is the SendRRData / SendUnitData payload: interface handle,
// timeout and a common packet. The interface handle is 0 for CIP.
type CommandData struct {
	InterfaceHandle uint32
	Timeout         uint16
	Packet          codec.Encodable
}

// NewRRData wraps an unconnected message.
func NewRRData(timeout uint16, msg codec.Encodable) CommandData {
	return CommandData{Timeout: timeout, Packet: UnconnectedPacket(msg)}
}

// NewUnitData wraps a connected message. Timeout is always 0 for SendUnitData.
func NewUnitData(connectionID uint32, sequence uint16, msg codec.Encodable) CommandData {
	return CommandData{Packet: ConnectedPacket(connectionID, sequence, msg)}
}

func (c CommandData) Encode(buf *codec.Buffer) error {
	buf.PutUint32(c.InterfaceHandle)
	buf.PutUint16(c.Timeout)
	return c.Packet.Encode(buf)
}

func (c CommandData) BytesCount() int { return 6 + c.Packet.BytesCount() }

// CommandReply is a decoded SendRRData / SendUnitData reply payload. CPF
// holds the still-encoded common packet.
type CommandReply struct {
	InterfaceHandle uint32
	Timeout         uint16
	CPF             []byte
}

func (c *CommandReply) Decode(d *codec.Decoder) error {
	if err := d.Expect("command data", 6); err != nil {
		return err
	}
	c.InterfaceHandle = d.Uint32()
	c.Timeout = d.Uint16()
	c.CPF = d.Rest()
	return nil
}

// Service capability flags in a ListServices reply.
const (
	CapabilityCIPEncapsulation uint16 = 1 << 5
	CapabilityClass0or1UDP     uint16 = 1 << 8
)

// ServiceInfo is one ListServices item.
type ServiceInfo struct {
	Version      uint16
	Capabilities uint16
	Name         string
}

// SupportsCIP reports whether the service accepts CIP over TCP.
func (s ServiceInfo) SupportsCIP() bool { return s.Capabilities&CapabilityCIPEncapsulation != 0 }

func (s ServiceInfo) Encode(buf *codec.Buffer) error {
	buf.PutUint16(s.Version)
	buf.PutUint16(s.Capabilities)
	var name [16]byte
	copy(name[:], s.Name)
	buf.PutBytes(name[:])
	return nil
}

func (ServiceInfo) BytesCount() int { return 20 }

func (s *ServiceInfo) Decode(d *codec.Decoder) error {
	if err := d.Expect("list services item", 20); err != nil {
		return err
	}
	s.Version = d.Uint16()
	s.Capabilities = d.Uint16()
	name := d.Bytes(16)
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	s.Name = string(name)
	return nil
}

// DecodeListServices parses every ListServices item of a reply payload.
func DecodeListServices(data []byte) ([]ServiceInfo, error) {
	if len(data) == 0 {
		return nil, nil
	}
	it, err := NewCommonPacketIter(data)
	if err != nil {
		return nil, err
	}
	out := make([]ServiceInfo, 0, it.Len())
	for it.Remaining() > 0 {
		item, err := it.NextExpect(ItemListServices)
		if err != nil {
			return out, err
		}
		info, err := codec.DecodeAny[ServiceInfo](codec.NewDecoder(item.Data))
		if err != nil {
			return out, err
		}
		out = append(out, info)
	}
	return out, nil
}
