package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tonylturner/cipwire/internal/cip/codec"
	"github.com/tonylturner/cipwire/internal/cip/codes"
	"github.com/tonylturner/cipwire/internal/cip/protocol"
	"github.com/tonylturner/cipwire/internal/enip"
)

const testSessionHandle = 0x11223344

// fakeDevice is an in-memory Transport that answers like a target device.
// respond receives each Message Router request and returns the reply.
type fakeDevice struct {
	t         *testing.T
	connected bool
	pending   [][]byte
	commands  []enip.Command
	requests  []protocol.RequestHeader
	sequences []uint16
	toID      uint32
	respond   func(req protocol.RequestHeader, payload []byte) codec.Encodable
	// failReceive makes the next Receive fail.
	failReceive error
}

var _ Transport = (*fakeDevice)(nil)

func newFakeDevice(t *testing.T, respond func(protocol.RequestHeader, []byte) codec.Encodable) *fakeDevice {
	return &fakeDevice{t: t, respond: respond, toID: 0xB0B0B0B0}
}

func (f *fakeDevice) Connect(context.Context, string) error {
	f.connected = true
	return nil
}

func (f *fakeDevice) Disconnect() error {
	f.connected = false
	return nil
}

func (f *fakeDevice) IsConnected() bool { return f.connected }

func (f *fakeDevice) Send(_ context.Context, data []byte) error {
	f.t.Helper()
	frame, err := enip.DecodeFrame(data)
	if err != nil {
		f.t.Fatalf("device: bad request frame: %v", err)
	}
	h := frame.Header
	f.commands = append(f.commands, h.Command)
	reply := enip.Header{Command: h.Command, SessionHandle: testSessionHandle, SenderContext: h.SenderContext}

	var payload codec.Encodable
	switch h.Command {
	case enip.CommandRegisterSession:
		payload = enip.NewRegisterSession()
	case enip.CommandUnregisterSession:
		return nil
	case enip.CommandSendRRData:
		var cmd enip.CommandReply
		if err := codec.Unmarshal(frame.Data, &cmd); err != nil {
			f.t.Fatalf("device: SendRRData: %v", err)
		}
		msg, err := enip.DecodeUnconnected(cmd.CPF)
		if err != nil {
			f.t.Fatalf("device: unconnected CPF: %v", err)
		}
		payload = enip.NewRRData(0, f.answer(msg))
	case enip.CommandSendUnitData:
		var cmd enip.CommandReply
		if err := codec.Unmarshal(frame.Data, &cmd); err != nil {
			f.t.Fatalf("device: SendUnitData: %v", err)
		}
		msg, err := enip.DecodeConnected(cmd.CPF)
		if err != nil {
			f.t.Fatalf("device: connected CPF: %v", err)
		}
		f.sequences = append(f.sequences, msg.Sequence)
		payload = enip.NewUnitData(f.toID, msg.Sequence, f.answer(msg.Data))
	default:
		f.t.Fatalf("device: unexpected command %s", h.Command)
	}
	out, err := codec.Marshal(enip.Packet{Header: reply, Data: payload})
	if err != nil {
		f.t.Fatalf("device: encode reply: %v", err)
	}
	f.pending = append(f.pending, out)
	return nil
}

func (f *fakeDevice) answer(msg []byte) codec.Encodable {
	f.t.Helper()
	d := codec.NewDecoder(msg)
	req, err := protocol.DecodeRequestHeader(d)
	if err != nil {
		f.t.Fatalf("device: request header: %v", err)
	}
	f.requests = append(f.requests, req)
	return f.respond(req, d.Rest())
}

func (f *fakeDevice) Receive(ctx context.Context, _ time.Duration) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.failReceive != nil {
		err := f.failReceive
		f.failReceive = nil
		f.pending = nil
		return nil, err
	}
	if len(f.pending) == 0 {
		return nil, errors.New("device: no reply queued")
	}
	out := f.pending[0]
	f.pending = f.pending[1:]
	return out, nil
}

// countOf returns how many requests used service.
func (f *fakeDevice) countOf(service codes.ServiceCode) int {
	n := 0
	for _, r := range f.requests {
		if r.Service == service {
			n++
		}
	}
	return n
}

func reply(service codes.ServiceCode, status protocol.Status, data codec.Encodable) codec.Encodable {
	if data == nil {
		data = codec.Empty{}
	}
	return protocol.ReplyEncoder(protocol.MessageReply[codec.Encodable]{
		ReplyService: service.Reply(),
		Status:       status,
		Data:         data,
	})
}

func connectClient(t *testing.T, dev *fakeDevice, opts Options) *Client {
	t.Helper()
	opts.Transport = dev
	c := NewClient(opts)
	if err := c.Connect(context.Background(), "192.0.2.10:44818"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return c
}
