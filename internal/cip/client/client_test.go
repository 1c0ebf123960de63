package client

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/tonylturner/cipwire/internal/cip/codec"
	"github.com/tonylturner/cipwire/internal/cip/codes"
	"github.com/tonylturner/cipwire/internal/cip/connmgr"
	"github.com/tonylturner/cipwire/internal/cip/epath"
	"github.com/tonylturner/cipwire/internal/cip/protocol"
	"github.com/tonylturner/cipwire/internal/enip"
	"github.com/tonylturner/cipwire/internal/metrics"
)

var ok = protocol.NewStatus(codes.StatusSuccess)

func openSuccess(serial uint16) connmgr.ForwardOpenSuccess {
	return connmgr.ForwardOpenSuccess{
		OTConnectionID:   0xA0A0A0A0,
		TOConnectionID:   0xB0B0B0B0,
		ConnectionSerial: serial,
		VendorID:         connmgr.DefaultVendorID,
		OriginatorSerial: connmgr.DefaultOriginatorSerial,
		OTAPI:            connmgr.DefaultRPI,
		TOAPI:            connmgr.DefaultRPI,
	}
}

// connectedDevice answers Forward_Open/Close for serial 7 and echoes any
// other request with an empty success reply.
func connectedDevice(t *testing.T) *fakeDevice {
	return newFakeDevice(t, func(req protocol.RequestHeader, _ []byte) codec.Encodable {
		switch req.Service {
		case codes.ServiceForwardOpen:
			return reply(req.Service, ok, openSuccess(7))
		case codes.ServiceForwardClose:
			return reply(req.Service, ok, connmgr.ForwardCloseSuccess{
				ConnectionSerial: 7,
				VendorID:         connmgr.DefaultVendorID,
				OriginatorSerial: connmgr.DefaultOriginatorSerial,
			})
		default:
			return reply(req.Service, ok, codec.RawBytes{0x01, 0x00})
		}
	})
}

func openClient(t *testing.T, dev *fakeDevice) *Client {
	t.Helper()
	c := connectClient(t, dev, Options{Serials: connmgr.NewSequenceSerialSource(7)})
	r, err := c.Open(context.Background(), connmgr.DefaultOpenOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if r.Err() != nil {
		t.Fatalf("Open reply: %v", r.Err())
	}
	return c
}

func TestConnectRegistersSession(t *testing.T) {
	dev := newFakeDevice(t, nil)
	c := connectClient(t, dev, Options{})
	if len(dev.commands) != 1 || dev.commands[0] != enip.CommandRegisterSession {
		t.Fatalf("commands = %v, want [RegisterSession]", dev.commands)
	}
	if err := c.Disconnect(context.Background()); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if dev.commands[len(dev.commands)-1] != enip.CommandUnregisterSession || dev.connected {
		t.Fatalf("commands = %v connected = %v", dev.commands, dev.connected)
	}
	if _, err := c.Send(context.Background(), protocol.NewRequest(codes.ServiceGetAttributeSingle, epath.MessageRouter(), codec.Empty{})); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Send after disconnect = %v, want ErrNotConnected", err)
	}
}

func TestGetAttributeSingle(t *testing.T) {
	dev := newFakeDevice(t, func(req protocol.RequestHeader, _ []byte) codec.Encodable {
		return reply(req.Service, ok, codec.RawBytes{0x34, 0x12})
	})
	sink := metrics.NewSink()
	c := connectClient(t, dev, Options{Metrics: sink})

	data, err := c.GetAttributeSingle(context.Background(), epath.FromClass(0x01).Instance(1).Attribute(1))
	if err != nil {
		t.Fatalf("GetAttributeSingle: %v", err)
	}
	if !bytes.Equal(data, []byte{0x34, 0x12}) {
		t.Fatalf("data = % X", data)
	}
	if dev.commands[1] != enip.CommandSendRRData {
		t.Fatalf("command = %s, want SendRRData while unconnected", dev.commands[1])
	}
	if got := sink.GetSummary().TotalOperations; got != 2 {
		t.Fatalf("recorded operations = %d, want 2", got)
	}
}

func TestErrorStatusIsReturnedInReply(t *testing.T) {
	dev := newFakeDevice(t, func(req protocol.RequestHeader, _ []byte) codec.Encodable {
		return reply(req.Service, protocol.NewStatus(codes.StatusAttributeNotSupported), nil)
	})
	c := connectClient(t, dev, Options{})

	r, err := c.Send(context.Background(), protocol.NewRequest(codes.ServiceGetAttributeSingle, epath.FromClass(1).Instance(1).Attribute(99), codec.Empty{}))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if r.Status.General != codes.StatusAttributeNotSupported {
		t.Fatalf("status = %s", r.Status)
	}
	if !protocol.IsStatus(r.Err(), codes.StatusAttributeNotSupported) {
		t.Fatalf("Err() = %v", r.Err())
	}
}

func TestServiceMismatch(t *testing.T) {
	dev := newFakeDevice(t, func(protocol.RequestHeader, []byte) codec.Encodable {
		return reply(codes.ServiceSetAttributeSingle, ok, nil)
	})
	c := connectClient(t, dev, Options{})
	_, err := c.Send(context.Background(), protocol.NewRequest(codes.ServiceGetAttributeSingle, epath.MessageRouter(), codec.Empty{}))
	if !errors.Is(err, protocol.ErrProtocol) {
		t.Fatalf("error = %v, want ErrProtocol", err)
	}
}

func TestReadTag(t *testing.T) {
	dev := newFakeDevice(t, func(req protocol.RequestHeader, payload []byte) codec.Encodable {
		if !bytes.Equal(payload, []byte{0x01, 0x00}) {
			t.Errorf("read payload = % X, want 01 00", payload)
		}
		return reply(req.Service, ok, TagValue{Type: Atomic(TypeDINT), Data: []byte{0x2A, 0, 0, 0}})
	})
	c := connectClient(t, dev, Options{})

	v, err := c.ReadTag(context.Background(), epath.FromSymbol("Counter"), 1)
	if err != nil {
		t.Fatalf("ReadTag: %v", err)
	}
	n, err := DecodeTagValue[codec.Uint32](v)
	if err != nil || n != 42 || v.Type != Atomic(TypeDINT) {
		t.Fatalf("value = %v %d, %v", v.Type, n, err)
	}
}

func TestTargetDuringConnect(t *testing.T) {
	dev := newFakeDevice(t, func(req protocol.RequestHeader, _ []byte) codec.Encodable {
		return reply(req.Service, ok, nil)
	})
	c := NewClient(Options{Transport: dev})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_ = c.Target()
		}
	}()
	if err := c.Connect(context.Background(), "192.0.2.10:44818"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	<-done
	if c.Target() != "192.0.2.10:44818" {
		t.Fatalf("Target = %q", c.Target())
	}
}

func TestReadTagUnknownTagIsStatusError(t *testing.T) {
	dev := newFakeDevice(t, func(req protocol.RequestHeader, _ []byte) codec.Encodable {
		// 04 01 00 00: path segment error, one extended word, no trailer
		return reply(req.Service, protocol.NewStatus(codes.StatusPathSegmentError).WithExtended(0x0000), nil)
	})
	c := connectClient(t, dev, Options{})

	_, err := c.ReadTag(context.Background(), epath.FromSymbol("Missing"), 1)
	if !protocol.IsStatus(err, codes.StatusPathSegmentError) {
		t.Fatalf("ReadTag error = %v, want path segment status", err)
	}
}

func TestConnectedSequenceIncrements(t *testing.T) {
	dev := connectedDevice(t)
	c := openClient(t, dev)

	req := protocol.NewRequest(codes.ServiceGetAttributeSingle, epath.FromClass(1).Instance(1).Attribute(1), codec.Empty{})
	for i := 0; i < 2; i++ {
		if _, err := c.Send(context.Background(), req); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if len(dev.sequences) != 2 || dev.sequences[0] != 1 || dev.sequences[1] != 2 {
		t.Fatalf("sequences = %v, want [1 2]", dev.sequences)
	}
	want := []enip.Command{enip.CommandRegisterSession, enip.CommandSendRRData, enip.CommandSendUnitData, enip.CommandSendUnitData}
	for i, cmd := range want {
		if dev.commands[i] != cmd {
			t.Fatalf("commands = %v, want %v", dev.commands, want)
		}
	}
}

func TestStaleCloseRejectedBeforeSend(t *testing.T) {
	dev := connectedDevice(t)
	c := openClient(t, dev)

	stale, err := c.Connection().CloseRequest()
	if err != nil {
		t.Fatalf("CloseRequest: %v", err)
	}
	stale.ConnectionSerial++
	sent := len(dev.commands)

	_, err = c.Close(context.Background(), stale)
	if !errors.Is(err, connmgr.ErrStaleConnection) {
		t.Fatalf("Close = %v, want ErrStaleConnection", err)
	}
	if len(dev.commands) != sent || dev.countOf(codes.ServiceForwardClose) != 0 {
		t.Fatalf("stale close reached the device: %v", dev.commands)
	}
	if c.Connection().State() != connmgr.StateOpen {
		t.Fatalf("state = %s, want open", c.Connection().State())
	}
}

func TestCloseReturnsToUnconnected(t *testing.T) {
	dev := connectedDevice(t)
	c := openClient(t, dev)

	r, err := c.CloseConnection(context.Background())
	if err != nil || r.Success == nil {
		t.Fatalf("CloseConnection = %+v, %v", r, err)
	}
	if c.Connection().State() != connmgr.StateClosed {
		t.Fatalf("state = %s, want closed", c.Connection().State())
	}
	if _, err := c.Send(context.Background(), protocol.NewRequest(codes.ServiceGetAttributeSingle, epath.MessageRouter(), codec.Empty{})); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if last := dev.commands[len(dev.commands)-1]; last != enip.CommandSendRRData {
		t.Fatalf("last command = %s, want SendRRData after close", last)
	}
	if _, err := c.SendConnected(context.Background(), protocol.NewRequest(codes.ServiceGetAttributeSingle, epath.MessageRouter(), codec.Empty{})); !errors.Is(err, connmgr.ErrInvalidTransition) {
		t.Fatalf("SendConnected after close = %v", err)
	}
}

func TestOpenFailureReply(t *testing.T) {
	dev := newFakeDevice(t, func(req protocol.RequestHeader, _ []byte) codec.Encodable {
		return protocol.ReplyEncoder(protocol.MessageReply[codec.Encodable]{
			ReplyService: req.Service.Reply(),
			Status:       protocol.NewStatus(codes.StatusConnectionFailure).WithExtended(codes.ExtConnectionInUse),
			Data: connmgr.ForwardRequestFail{
				ConnectionSerial: 7,
				VendorID:         connmgr.DefaultVendorID,
				OriginatorSerial: connmgr.DefaultOriginatorSerial,
			},
		})
	})
	c := connectClient(t, dev, Options{Serials: connmgr.NewSequenceSerialSource(7)})

	r, err := c.Open(context.Background(), connmgr.DefaultOpenOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if r.Success != nil || r.Fail == nil || r.Err() == nil {
		t.Fatalf("reply = %+v, want failure", r)
	}
	if c.Connection().State() != connmgr.StateOpenFailed {
		t.Fatalf("state = %s, want open failed", c.Connection().State())
	}
}

func TestSendRoutedRoutingError(t *testing.T) {
	remaining := uint8(3)
	dev := newFakeDevice(t, func(req protocol.RequestHeader, _ []byte) codec.Encodable {
		if req.Service != codes.ServiceUnconnectedSend {
			t.Errorf("service = %s, want Unconnected_Send", req.Service)
		}
		return protocol.ReplyEncoder(protocol.MessageReply[codec.Encodable]{
			ReplyService:      req.Service.Reply(),
			Status:            protocol.NewStatus(codes.StatusConnectionFailure).WithExtended(0x0204),
			RemainingPathSize: &remaining,
			Data:              codec.Empty{},
		})
	})
	c := connectClient(t, dev, Options{})

	req := protocol.NewRequest(codes.ServiceGetAttributeSingle, epath.FromClass(1).Instance(1).Attribute(7), codec.Empty{})
	r, err := c.SendRouted(context.Background(), req, epath.Backplane(3))
	if err != nil {
		t.Fatalf("SendRouted: %v", err)
	}
	if !r.Status.IsRoutingError() || r.RemainingPathSize == nil || *r.RemainingPathSize != 3 {
		t.Fatalf("reply = %+v, want routing error with remaining path 3", r)
	}
}

func TestBrokenSessionRejectsFurtherSends(t *testing.T) {
	dev := connectedDevice(t)
	c := openClient(t, dev)

	dev.failReceive = errors.New("connection reset")
	req := protocol.NewRequest(codes.ServiceGetAttributeSingle, epath.MessageRouter(), codec.Empty{})
	if _, err := c.Send(context.Background(), req); err == nil {
		t.Fatal("expected transport error")
	}
	if !c.Connection().Unsynced() {
		t.Fatal("connection should be unsynced after an abandoned connected exchange")
	}
	if _, err := c.Send(context.Background(), req); !errors.Is(err, ErrSessionBroken) {
		t.Fatalf("second send = %v, want ErrSessionBroken", err)
	}
}

func TestCancelledContextSendsNothing(t *testing.T) {
	dev := connectedDevice(t)
	c := openClient(t, dev)
	sent := len(dev.commands)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Send(ctx, protocol.NewRequest(codes.ServiceGetAttributeSingle, epath.MessageRouter(), codec.Empty{})); !errors.Is(err, context.Canceled) {
		t.Fatalf("Send = %v, want context.Canceled", err)
	}
	if len(dev.commands) != sent || c.Connection().Sequence() != 0 {
		t.Fatalf("cancelled send reached the wire: commands %v sequence %d", dev.commands, c.Connection().Sequence())
	}
}

func TestConnectedReplyMismatch(t *testing.T) {
	dev := connectedDevice(t)
	c := openClient(t, dev)
	dev.toID = 0xDEADBEEF

	_, err := c.Send(context.Background(), protocol.NewRequest(codes.ServiceGetAttributeSingle, epath.MessageRouter(), codec.Empty{}))
	var mismatch *ReplyMismatchError
	if !errors.As(err, &mismatch) || mismatch.Field != "connection id" {
		t.Fatalf("error = %v, want connection id mismatch", err)
	}
	if !c.Connection().Unsynced() {
		t.Fatal("connection should be unsynced")
	}
}
