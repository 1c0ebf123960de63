package protocol

import (
	"github.com/tonylturner/cipwire/internal/cip/codec"
	"github.com/tonylturner/cipwire/internal/cip/codes"
	"github.com/tonylturner/cipwire/internal/cip/epath"
)

// Default Unconnected_Send timing: 2^3 ms ticks, 250 ticks (2 s).
const (
	DefaultPriorityTimeTick uint8 = 0x03
	DefaultTimeoutTicks     uint8 = 0xFA
)

// UnconnectedSend is the Connection Manager Unconnected_Send payload that
// routes an embedded request along Route.
type UnconnectedSend struct {
	PriorityTimeTick uint8
	TimeoutTicks     uint8
	Embedded         Request
	Route            epath.EPath
}

// NewUnconnectedSend wraps req for delivery along route with default timing.
func NewUnconnectedSend(req Request, route epath.EPath) MessageRequest[UnconnectedSend] {
	return NewRequest(codes.ServiceUnconnectedSend, epath.ConnectionManager(), UnconnectedSend{
		PriorityTimeTick: DefaultPriorityTimeTick,
		TimeoutTicks:     DefaultTimeoutTicks,
		Embedded:         req,
		Route:            route,
	})
}

func (u UnconnectedSend) Encode(buf *codec.Buffer) error {
	size := u.Embedded.BytesCount()
	if size > 0xFFFF {
		return &codec.EncodeError{Kind: codec.KindInvalidLength, Type: "UnconnectedSend", Msg: "embedded request larger than 65535 bytes"}
	}
	if u.Route.BytesCount()/2 > 0xFF {
		return &codec.EncodeError{Kind: codec.KindInvalidLength, Type: "UnconnectedSend", Msg: "route path longer than 255 words"}
	}
	buf.PutUint8(u.PriorityTimeTick)
	buf.PutUint8(u.TimeoutTicks)
	buf.PutUint16(uint16(size))
	if err := u.Embedded.Encode(buf); err != nil {
		return err
	}
	if size%2 != 0 {
		buf.PutUint8(0)
	}
	buf.PutUint8(uint8(u.Route.Words()))
	buf.PutUint8(0)
	return u.Route.Encode(buf)
}

func (u UnconnectedSend) BytesCount() int {
	size := u.Embedded.BytesCount()
	return 4 + size + size%2 + 2 + u.Route.BytesCount()
}
