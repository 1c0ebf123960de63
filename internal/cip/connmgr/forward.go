package connmgr

// Forward_Open / Forward_Close request encoding and reply decoding.

import (
	"fmt"

	"github.com/tonylturner/cipwire/internal/cip/codec"
	"github.com/tonylturner/cipwire/internal/cip/codes"
	"github.com/tonylturner/cipwire/internal/cip/epath"
	"github.com/tonylturner/cipwire/internal/cip/protocol"
)

// Defaults used by DefaultOpenOptions.
const (
	DefaultPriorityTimeTick  uint8  = 0x03
	DefaultTimeoutTicks      uint8  = 0xFA
	DefaultVendorID          uint16 = 0xFF
	DefaultOriginatorSerial  uint32 = 0xFFFFFFFF
	DefaultTimeoutMultiplier uint8  = 3
	DefaultRPI               uint32 = 0x7A120 // 500 ms
	DefaultTransportTrigger  uint8  = 0xA3    // server, application triggered, class 3
)

// DefaultConnectionPath targets the Message Router of the controller in slot 0.
func DefaultConnectionPath() epath.EPath {
	return epath.Backplane(0).Join(epath.MessageRouter())
}

// OpenOptions are the Forward_Open request fields. ConnectionSerial 0 means
// "draw one from the SerialSource".
type OpenOptions struct {
	Large             bool
	PriorityTimeTick  uint8
	TimeoutTicks      uint8
	OTConnectionID    uint32
	TOConnectionID    uint32
	ConnectionSerial  uint16
	VendorID          uint16
	OriginatorSerial  uint32
	TimeoutMultiplier uint8
	OTRPI             uint32
	OTParams          ConnectionParameters
	TORPI             uint32
	TOParams          ConnectionParameters
	TransportTrigger  uint8
	ConnectionPath    epath.EPath
}

// DefaultOpenOptions returns options for a class 3 explicit messaging connection.
func DefaultOpenOptions() OpenOptions {
	return OpenOptions{
		PriorityTimeTick:  DefaultPriorityTimeTick,
		TimeoutTicks:      DefaultTimeoutTicks,
		VendorID:          DefaultVendorID,
		OriginatorSerial:  DefaultOriginatorSerial,
		TimeoutMultiplier: DefaultTimeoutMultiplier,
		OTRPI:             DefaultRPI,
		OTParams:          DefaultConnectionParameters(),
		TORPI:             DefaultRPI,
		TOParams:          DefaultConnectionParameters(),
		TransportTrigger:  DefaultTransportTrigger,
		ConnectionPath:    DefaultConnectionPath(),
	}
}

// Service returns 0x5B for a large open and 0x54 otherwise.
func (o OpenOptions) Service() codes.ServiceCode {
	if o.Large {
		return codes.ServiceLargeForwardOpen
	}
	return codes.ServiceForwardOpen
}

// ForwardOpenRequest is the Forward_Open service data.
type ForwardOpenRequest struct {
	OpenOptions
}

// Message addresses the request to the Connection Manager.
func (r ForwardOpenRequest) Message() protocol.MessageRequest[ForwardOpenRequest] {
	return protocol.NewRequest(r.Service(), epath.ConnectionManager(), r)
}

func (r ForwardOpenRequest) paramsSize() int {
	if r.Large {
		return 4
	}
	return 2
}

func (r ForwardOpenRequest) Encode(buf *codec.Buffer) error {
	ot, err := r.OTParams.Pack(r.Large)
	if err != nil {
		return fmt.Errorf("O->T parameters: %w", err)
	}
	to, err := r.TOParams.Pack(r.Large)
	if err != nil {
		return fmt.Errorf("T->O parameters: %w", err)
	}
	if err := checkPath(r.ConnectionPath); err != nil {
		return err
	}
	buf.PutUint8(r.PriorityTimeTick)
	buf.PutUint8(r.TimeoutTicks)
	buf.PutUint32(r.OTConnectionID)
	buf.PutUint32(r.TOConnectionID)
	buf.PutUint16(r.ConnectionSerial)
	buf.PutUint16(r.VendorID)
	buf.PutUint32(r.OriginatorSerial)
	buf.PutUint8(r.TimeoutMultiplier)
	buf.PutZeros(3)
	buf.PutUint32(r.OTRPI)
	putParams(buf, ot, r.Large)
	buf.PutUint32(r.TORPI)
	putParams(buf, to, r.Large)
	buf.PutUint8(r.TransportTrigger)
	buf.PutUint8(uint8(r.ConnectionPath.Words()))
	return r.ConnectionPath.Encode(buf)
}

func (r ForwardOpenRequest) BytesCount() int {
	return 32 + 2*r.paramsSize() + r.ConnectionPath.BytesCount()
}

func putParams(buf *codec.Buffer, v uint32, large bool) {
	if large {
		buf.PutUint32(v)
		return
	}
	buf.PutUint16(uint16(v))
}

func checkPath(p epath.EPath) error {
	if p.Words() > 0xFF {
		return &codec.EncodeError{Kind: codec.KindInvalidLength, Type: "connection path", Msg: fmt.Sprintf("%d words exceeds 255", p.Words())}
	}
	return nil
}

// ForwardCloseRequest is the Forward_Close service data. The serial, vendor,
// originator serial and path must match the open connection.
type ForwardCloseRequest struct {
	PriorityTimeTick uint8
	TimeoutTicks     uint8
	ConnectionSerial uint16
	VendorID         uint16
	OriginatorSerial uint32
	ConnectionPath   epath.EPath
}

// CloseFor builds the Forward_Close counterpart of an open request.
func CloseFor(open ForwardOpenRequest) ForwardCloseRequest {
	return ForwardCloseRequest{
		PriorityTimeTick: open.PriorityTimeTick,
		TimeoutTicks:     open.TimeoutTicks,
		ConnectionSerial: open.ConnectionSerial,
		VendorID:         open.VendorID,
		OriginatorSerial: open.OriginatorSerial,
		ConnectionPath:   open.ConnectionPath,
	}
}

// Message addresses the request to the Connection Manager.
func (r ForwardCloseRequest) Message() protocol.MessageRequest[ForwardCloseRequest] {
	return protocol.NewRequest(codes.ServiceForwardClose, epath.ConnectionManager(), r)
}

func (r ForwardCloseRequest) Encode(buf *codec.Buffer) error {
	if err := checkPath(r.ConnectionPath); err != nil {
		return err
	}
	buf.PutUint8(r.PriorityTimeTick)
	buf.PutUint8(r.TimeoutTicks)
	buf.PutUint16(r.ConnectionSerial)
	buf.PutUint16(r.VendorID)
	buf.PutUint32(r.OriginatorSerial)
	buf.PutUint8(uint8(r.ConnectionPath.Words()))
	buf.PutUint8(0)
	return r.ConnectionPath.Encode(buf)
}

func (r ForwardCloseRequest) BytesCount() int { return 12 + r.ConnectionPath.BytesCount() }

// ForwardOpenSuccess is the successful Forward_Open reply data.
type ForwardOpenSuccess struct {
	OTConnectionID   uint32
	TOConnectionID   uint32
	ConnectionSerial uint16
	VendorID         uint16
	OriginatorSerial uint32
	OTAPI            uint32
	TOAPI            uint32
	AppData          []byte
}

func (s ForwardOpenSuccess) Encode(buf *codec.Buffer) error {
	if len(s.AppData)%2 != 0 || len(s.AppData)/2 > 0xFF {
		return &codec.EncodeError{Kind: codec.KindInvalidLength, Type: "ForwardOpenSuccess", Msg: fmt.Sprintf("application data of %d bytes", len(s.AppData))}
	}
	buf.PutUint32(s.OTConnectionID)
	buf.PutUint32(s.TOConnectionID)
	buf.PutUint16(s.ConnectionSerial)
	buf.PutUint16(s.VendorID)
	buf.PutUint32(s.OriginatorSerial)
	buf.PutUint32(s.OTAPI)
	buf.PutUint32(s.TOAPI)
	buf.PutUint8(uint8(len(s.AppData) / 2))
	buf.PutUint8(0)
	buf.PutBytes(s.AppData)
	return nil
}

func (s ForwardOpenSuccess) BytesCount() int { return 26 + len(s.AppData) }

func (s *ForwardOpenSuccess) Decode(d *codec.Decoder) error {
	if err := d.Expect("forward open reply", 26); err != nil {
		return err
	}
	s.OTConnectionID = d.Uint32()
	s.TOConnectionID = d.Uint32()
	s.ConnectionSerial = d.Uint16()
	s.VendorID = d.Uint16()
	s.OriginatorSerial = d.Uint32()
	s.OTAPI = d.Uint32()
	s.TOAPI = d.Uint32()
	n := int(d.Uint8()) * 2
	d.Skip(1)
	if err := d.Expect("forward open application data", n); err != nil {
		return err
	}
	s.AppData = d.Bytes(n)
	return nil
}

// ForwardCloseSuccess is the successful Forward_Close reply data.
type ForwardCloseSuccess struct {
	ConnectionSerial uint16
	VendorID         uint16
	OriginatorSerial uint32
	AppData          []byte
}

func (s ForwardCloseSuccess) Encode(buf *codec.Buffer) error {
	if len(s.AppData)%2 != 0 || len(s.AppData)/2 > 0xFF {
		return &codec.EncodeError{Kind: codec.KindInvalidLength, Type: "ForwardCloseSuccess", Msg: fmt.Sprintf("application data of %d bytes", len(s.AppData))}
	}
	buf.PutUint16(s.ConnectionSerial)
	buf.PutUint16(s.VendorID)
	buf.PutUint32(s.OriginatorSerial)
	buf.PutUint8(uint8(len(s.AppData) / 2))
	buf.PutUint8(0)
	buf.PutBytes(s.AppData)
	return nil
}

func (s ForwardCloseSuccess) BytesCount() int { return 10 + len(s.AppData) }

func (s *ForwardCloseSuccess) Decode(d *codec.Decoder) error {
	if err := d.Expect("forward close reply", 10); err != nil {
		return err
	}
	s.ConnectionSerial = d.Uint16()
	s.VendorID = d.Uint16()
	s.OriginatorSerial = d.Uint32()
	n := int(d.Uint8()) * 2
	d.Skip(1)
	if err := d.Expect("forward close application data", n); err != nil {
		return err
	}
	s.AppData = d.Bytes(n)
	return nil
}

// ForwardRequestFail is the error reply data shared by Forward_Open and
// Forward_Close. RemainingPathSize is present only for routing errors.
type ForwardRequestFail struct {
	ConnectionSerial  uint16
	VendorID          uint16
	OriginatorSerial  uint32
	RemainingPathSize *uint8
}

// DecodeForwardRequestFail reads the failure data that follows status.
// A non-routing error with no data at all decodes to the zero value.
func DecodeForwardRequestFail(d *codec.Decoder, status protocol.Status) (ForwardRequestFail, error) {
	var f ForwardRequestFail
	routing := status.IsRoutingError()
	if !routing && !d.HasRemaining() {
		return f, nil
	}
	need := 8
	if routing {
		need = 9
	}
	if err := d.Expect("forward request fail", need); err != nil {
		return f, err
	}
	f.ConnectionSerial = d.Uint16()
	f.VendorID = d.Uint16()
	f.OriginatorSerial = d.Uint32()
	if routing {
		size := d.Uint8()
		f.RemainingPathSize = &size
	}
	return f, nil
}

func (f ForwardRequestFail) Encode(buf *codec.Buffer) error {
	buf.PutUint16(f.ConnectionSerial)
	buf.PutUint16(f.VendorID)
	buf.PutUint32(f.OriginatorSerial)
	if f.RemainingPathSize != nil {
		buf.PutUint8(*f.RemainingPathSize)
		buf.PutUint8(0)
	}
	return nil
}

func (f ForwardRequestFail) BytesCount() int {
	if f.RemainingPathSize != nil {
		return 10
	}
	return 8
}

// ForwardOpenReply is either a success or a failure.
type ForwardOpenReply struct {
	ReplyService codes.ServiceCode
	Status       protocol.Status
	Success      *ForwardOpenSuccess
	Fail         *ForwardRequestFail
}

// DecodeForwardOpenReply decodes a Message Router reply to a Forward_Open
// sent with service.
func DecodeForwardOpenReply(data []byte, service codes.ServiceCode) (ForwardOpenReply, error) {
	d := codec.NewDecoder(data)
	head, err := protocol.DecodeServiceAndStatus(d)
	if err != nil {
		return ForwardOpenReply{}, err
	}
	if err := protocol.ExpectService(head.ReplyService, service); err != nil {
		return ForwardOpenReply{}, err
	}
	reply := ForwardOpenReply{ReplyService: head.ReplyService, Status: head.Status}
	if head.Status.IsOK() {
		s, err := codec.DecodeAny[ForwardOpenSuccess](d)
		if err != nil {
			return reply, err
		}
		reply.Success = &s
		return reply, nil
	}
	f, err := DecodeForwardRequestFail(d, head.Status)
	if err != nil {
		return reply, err
	}
	reply.Fail = &f
	return reply, nil
}

// Err returns a *RequestFailError when the open failed.
func (r ForwardOpenReply) Err() error {
	if r.Success != nil {
		return nil
	}
	return &RequestFailError{Service: r.ReplyService.Request(), Status: r.Status, Fail: r.Fail}
}

// ForwardCloseReply is either a success or a failure.
type ForwardCloseReply struct {
	ReplyService codes.ServiceCode
	Status       protocol.Status
	Success      *ForwardCloseSuccess
	Fail         *ForwardRequestFail
}

// DecodeForwardCloseReply decodes a Message Router reply to Forward_Close.
func DecodeForwardCloseReply(data []byte) (ForwardCloseReply, error) {
	d := codec.NewDecoder(data)
	head, err := protocol.DecodeServiceAndStatus(d)
	if err != nil {
		return ForwardCloseReply{}, err
	}
	if err := protocol.ExpectService(head.ReplyService, codes.ServiceForwardClose); err != nil {
		return ForwardCloseReply{}, err
	}
	reply := ForwardCloseReply{ReplyService: head.ReplyService, Status: head.Status}
	if head.Status.IsOK() {
		s, err := codec.DecodeAny[ForwardCloseSuccess](d)
		if err != nil {
			return reply, err
		}
		reply.Success = &s
		return reply, nil
	}
	f, err := DecodeForwardRequestFail(d, head.Status)
	if err != nil {
		return reply, err
	}
	reply.Fail = &f
	return reply, nil
}

// Err returns a *RequestFailError when the close failed.
func (r ForwardCloseReply) Err() error {
	if r.Success != nil {
		return nil
	}
	return &RequestFailError{Service: codes.ServiceForwardClose, Status: r.Status, Fail: r.Fail}
}
