package connmgr

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/tonylturner/cipwire/internal/cip/codec"
	"github.com/tonylturner/cipwire/internal/cip/codes"
	"github.com/tonylturner/cipwire/internal/cip/protocol"
)

func TestConnectionParametersPack(t *testing.T) {
	tests := []struct {
		name   string
		params ConnectionParameters
		large  bool
		want   uint32
	}{
		{"default small", DefaultConnectionParameters(), false, 0x43F4},
		{"default large", DefaultConnectionParameters(), true, 0x420001F4},
		{"urgent multicast fixed", ConnectionParameters{ConnectionType: ConnectionTypeMulticast, Priority: PriorityUrgent, ConnectionSize: 8}, false, 0x2C08},
		{"redundant owner small", ConnectionParameters{RedundantOwner: true, ConnectionSize: MaxSmallConnectionSize}, false, 0x81FF},
		{"large size", ConnectionParameters{ConnectionType: ConnectionTypePointToPoint, VariableLength: true, ConnectionSize: 4000}, true, 0x42000FA0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.params.Pack(tt.large)
			if err != nil {
				t.Fatalf("Pack: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Pack = 0x%08X, want 0x%08X", got, tt.want)
			}
			if back := UnpackConnectionParameters(got, tt.large); back != tt.params {
				t.Fatalf("Unpack = %+v, want %+v", back, tt.params)
			}
		})
	}
}

func TestConnectionParametersSizeLimit(t *testing.T) {
	p := ConnectionParameters{ConnectionSize: MaxSmallConnectionSize + 1}
	if _, err := p.Pack(false); !errors.Is(err, codec.ErrInvalidValue) {
		t.Fatalf("small pack error = %v, want ErrInvalidValue", err)
	}
	if _, err := p.Pack(true); err != nil {
		t.Fatalf("large pack: %v", err)
	}
}

func TestForwardOpenRequestEncoding(t *testing.T) {
	opts := DefaultOpenOptions()
	opts.ConnectionSerial = 0x1234
	opts.OTConnectionID = 0x01020304
	req := ForwardOpenRequest{OpenOptions: opts}

	got, err := codec.Marshal(req.Message())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := []byte{
		0x54, 0x02, 0x20, 0x06, 0x24, 0x01,
		0x03, 0xFA,
		0x04, 0x03, 0x02, 0x01, // O->T id
		0x00, 0x00, 0x00, 0x00, // T->O id
		0x34, 0x12, 0xFF, 0x00, // serial, vendor
		0xFF, 0xFF, 0xFF, 0xFF, // originator serial
		0x03, 0x00, 0x00, 0x00, // multiplier, reserved
		0x20, 0xA1, 0x07, 0x00, 0xF4, 0x43, // O->T RPI, params
		0x20, 0xA1, 0x07, 0x00, 0xF4, 0x43, // T->O RPI, params
		0xA3,
		0x03, 0x01, 0x00, 0x20, 0x02, 0x24, 0x01,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("encode = % X\nwant     % X", got, want)
	}

	opts.Large = true
	large, err := codec.Marshal(ForwardOpenRequest{OpenOptions: opts}.Message())
	if err != nil {
		t.Fatalf("Marshal large: %v", err)
	}
	if large[0] != byte(codes.ServiceLargeForwardOpen) || len(large) != len(want)+4 {
		t.Fatalf("large open = % X", large)
	}
}

func TestForwardCloseRequestEncoding(t *testing.T) {
	opts := DefaultOpenOptions()
	opts.ConnectionSerial = 0x0102
	got, err := codec.Marshal(CloseFor(ForwardOpenRequest{OpenOptions: opts}).Message())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := []byte{
		0x4E, 0x02, 0x20, 0x06, 0x24, 0x01,
		0x03, 0xFA, 0x02, 0x01, 0xFF, 0x00, 0xFF, 0xFF, 0xFF, 0xFF,
		0x03, 0x00,
		0x01, 0x00, 0x20, 0x02, 0x24, 0x01,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("encode = % X\nwant     % X", got, want)
	}
}

func TestForwardOpenSuccessRoundTrip(t *testing.T) {
	want := ForwardOpenSuccess{
		OTConnectionID:   0x11111111,
		TOConnectionID:   0x22222222,
		ConnectionSerial: 7,
		VendorID:         0xFF,
		OriginatorSerial: 0xFFFFFFFF,
		OTAPI:            0x7A120,
		TOAPI:            0x7A120,
		AppData:          []byte{0xAA, 0xBB},
	}
	data, err := codec.Marshal(want)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if len(data) != want.BytesCount() || len(data) != 28 {
		t.Fatalf("encoded %d bytes, BytesCount %d", len(data), want.BytesCount())
	}
	var got ForwardOpenSuccess
	if err := codec.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip = %+v, want %+v", got, want)
	}
}

func TestForwardCloseSuccessRoundTrip(t *testing.T) {
	want := ForwardCloseSuccess{ConnectionSerial: 9, VendorID: 1, OriginatorSerial: 2, AppData: []byte{}}
	data, err := codec.Marshal(want)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got ForwardCloseSuccess
	if err := codec.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip = %+v, want %+v", got, want)
	}
}

func encodeReply(t *testing.T, service codes.ServiceCode, status protocol.Status, body codec.Encodable) []byte {
	t.Helper()
	data, err := protocol.EncodeReply(protocol.MessageReply[codec.Encodable]{ReplyService: service.Reply(), Status: status, Data: body})
	if err != nil {
		t.Fatalf("EncodeReply: %v", err)
	}
	return data
}

func TestForwardRequestFailTrailer(t *testing.T) {
	size := uint8(3)
	fail := ForwardRequestFail{ConnectionSerial: 1, VendorID: 2, OriginatorSerial: 3, RemainingPathSize: &size}

	routing := encodeReply(t, codes.ServiceForwardOpen, protocol.NewStatus(codes.StatusResourceUnavailable).WithExtended(0x0100), fail)
	reply, err := DecodeForwardOpenReply(routing, codes.ServiceForwardOpen)
	if err != nil {
		t.Fatalf("decode routing error: %v", err)
	}
	if reply.Fail == nil || reply.Fail.RemainingPathSize == nil || *reply.Fail.RemainingPathSize != 3 {
		t.Fatalf("routing error fail = %+v, want remaining path size 3", reply.Fail)
	}

	plain := encodeReply(t, codes.ServiceForwardOpen, protocol.NewStatus(codes.StatusServiceNotSupported), ForwardRequestFail{ConnectionSerial: 1})
	reply, err = DecodeForwardOpenReply(plain, codes.ServiceForwardOpen)
	if err != nil {
		t.Fatalf("decode service not supported: %v", err)
	}
	if reply.Fail == nil || reply.Fail.RemainingPathSize != nil {
		t.Fatalf("non-routing fail = %+v, want no remaining path size", reply.Fail)
	}
	if !protocol.IsStatus(reply.Err(), codes.StatusServiceNotSupported) {
		t.Fatalf("Err() = %v, want status 0x08", reply.Err())
	}

	truncated := encodeReply(t, codes.ServiceForwardOpen, protocol.NewStatus(codes.StatusPathSegmentError), codec.RawBytes{0x01, 0x00, 0x02, 0x00})
	if _, err := DecodeForwardOpenReply(truncated, codes.ServiceForwardOpen); !errors.Is(err, codec.ErrInvalidLength) {
		t.Fatalf("truncated fail error = %v, want ErrInvalidLength", err)
	}
}

func TestDecodeForwardOpenReplyServiceMismatch(t *testing.T) {
	data := encodeReply(t, codes.ServiceForwardOpen, protocol.NewStatus(0), ForwardOpenSuccess{})
	if _, err := DecodeForwardOpenReply(data, codes.ServiceLargeForwardOpen); !errors.Is(err, protocol.ErrProtocol) {
		t.Fatalf("mismatch error = %v, want ErrProtocol", err)
	}
}

func TestDecodeForwardCloseReply(t *testing.T) {
	data := encodeReply(t, codes.ServiceForwardClose, protocol.NewStatus(0), ForwardCloseSuccess{ConnectionSerial: 5})
	reply, err := DecodeForwardCloseReply(data)
	if err != nil {
		t.Fatalf("DecodeForwardCloseReply: %v", err)
	}
	if reply.Success == nil || reply.Success.ConnectionSerial != 5 || reply.Err() != nil {
		t.Fatalf("reply = %+v", reply)
	}
}
