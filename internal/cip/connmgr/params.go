package connmgr

import (
	"fmt"

	"github.com/tonylturner/cipwire/internal/cip/codec"
)

// ConnectionType is the network connection type field.
type ConnectionType uint8

const (
	ConnectionTypeNull          ConnectionType = 0
	ConnectionTypeMulticast     ConnectionType = 1
	ConnectionTypePointToPoint  ConnectionType = 2
	connectionTypeReservedValue ConnectionType = 3
)

func (t ConnectionType) String() string {
	switch t {
	case ConnectionTypeNull:
		return "null"
	case ConnectionTypeMulticast:
		return "multicast"
	case ConnectionTypePointToPoint:
		return "point-to-point"
	default:
		return fmt.Sprintf("reserved(%d)", uint8(t))
	}
}

// Priority is the network connection priority field.
type Priority uint8

const (
	PriorityLow       Priority = 0
	PriorityHigh      Priority = 1
	PriorityScheduled Priority = 2
	PriorityUrgent    Priority = 3
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	case PriorityScheduled:
		return "scheduled"
	case PriorityUrgent:
		return "urgent"
	default:
		return fmt.Sprintf("priority(%d)", uint8(p))
	}
}

// ParsePriority maps a config name to a Priority.
func ParsePriority(name string) (Priority, error) {
	switch name {
	case "low", "":
		return PriorityLow, nil
	case "high":
		return PriorityHigh, nil
	case "scheduled":
		return PriorityScheduled, nil
	case "urgent":
		return PriorityUrgent, nil
	default:
		return 0, fmt.Errorf("unknown connection priority %q", name)
	}
}

// Maximum connection sizes for the 16-bit and 32-bit parameter encodings.
const (
	MaxSmallConnectionSize = 0x01FF
	MaxLargeConnectionSize = 0xFFFF
)

// ConnectionParameters describes one direction of a connection.
type ConnectionParameters struct {
	RedundantOwner bool
	ConnectionType ConnectionType
	VariableLength bool
	Priority       Priority
	ConnectionSize uint16
}

// DefaultConnectionParameters is a 500 byte variable-length point-to-point
// connection at low priority.
func DefaultConnectionParameters() ConnectionParameters {
	return ConnectionParameters{
		ConnectionType: ConnectionTypePointToPoint,
		VariableLength: true,
		Priority:       PriorityLow,
		ConnectionSize: 500,
	}
}

type bitLayout struct {
	sizeMask uint32
	variable uint
	priority uint
	connType uint
	owner    uint
}

var (
	smallLayout = bitLayout{sizeMask: MaxSmallConnectionSize, variable: 9, priority: 10, connType: 13, owner: 15}
	largeLayout = bitLayout{sizeMask: MaxLargeConnectionSize, variable: 25, priority: 26, connType: 29, owner: 31}
)

func layoutFor(large bool) bitLayout {
	if large {
		return largeLayout
	}
	return smallLayout
}

// Pack encodes the parameters as the 16-bit (large=false) or 32-bit word.
func (p ConnectionParameters) Pack(large bool) (uint32, error) {
	l := layoutFor(large)
	if uint32(p.ConnectionSize) > l.sizeMask {
		return 0, &codec.EncodeError{Kind: codec.KindInvalidValue, Type: "ConnectionParameters",
			Msg: fmt.Sprintf("connection size %d exceeds %d", p.ConnectionSize, l.sizeMask)}
	}
	if p.ConnectionType > connectionTypeReservedValue || p.Priority > PriorityUrgent {
		return 0, &codec.EncodeError{Kind: codec.KindInvalidValue, Type: "ConnectionParameters",
			Msg: fmt.Sprintf("type %d / priority %d out of range", p.ConnectionType, p.Priority)}
	}
	v := uint32(p.ConnectionSize)
	if p.VariableLength {
		v |= 1 << l.variable
	}
	v |= uint32(p.Priority) << l.priority
	v |= uint32(p.ConnectionType) << l.connType
	if p.RedundantOwner {
		v |= 1 << l.owner
	}
	return v, nil
}

// UnpackConnectionParameters decodes a 16-bit or 32-bit parameter word.
func UnpackConnectionParameters(v uint32, large bool) ConnectionParameters {
	l := layoutFor(large)
	return ConnectionParameters{
		RedundantOwner: v&(1<<l.owner) != 0,
		ConnectionType: ConnectionType((v >> l.connType) & 0x03),
		VariableLength: v&(1<<l.variable) != 0,
		Priority:       Priority((v >> l.priority) & 0x03),
		ConnectionSize: uint16(v & l.sizeMask),
	}
}
