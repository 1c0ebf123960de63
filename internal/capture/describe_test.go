package capture

import (
	"strings"
	"testing"

	"github.com/tonylturner/cipwire/internal/cip/codec"
	"github.com/tonylturner/cipwire/internal/cip/codes"
	"github.com/tonylturner/cipwire/internal/cip/epath"
	"github.com/tonylturner/cipwire/internal/cip/protocol"
	"github.com/tonylturner/cipwire/internal/enip"
)

func encodeFrame(t *testing.T, cmd enip.Command, data codec.Encodable) []byte {
	t.Helper()
	out, err := codec.Marshal(enip.Packet{Header: enip.Header{Command: cmd, SessionHandle: 0x42}, Data: data})
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}
	return out
}

func TestDescribe(t *testing.T) {
	path := epath.FromClass(codes.ClassIdentity).Instance(1).Attribute(7)
	request := protocol.NewRequest(codes.ServiceGetAttributeSingle, path, codec.Empty{})
	reply := protocol.ReplyEncoder(protocol.MessageReply[codec.Encodable]{
		ReplyService: codes.ServiceGetAttributeSingle.Reply(),
		Status:       protocol.NewStatus(codes.StatusPathDestinationUnknown),
		Data:         codec.Empty{},
	})

	tests := []struct {
		name  string
		frame Frame
		check func(t *testing.T, s Summary)
	}{
		{
			name:  "unconnected request",
			frame: Frame{Direction: ToDevice, Data: encodeFrame(t, enip.CommandSendRRData, enip.NewRRData(0, request))},
			check: func(t *testing.T, s Summary) {
				if !s.HasMessage || s.Service != codes.ServiceGetAttributeSingle || s.Connected {
					t.Errorf("summary = %+v", s)
				}
				if s.Path != path.String() {
					t.Errorf("path = %q, want %q", s.Path, path.String())
				}
			},
		},
		{
			name:  "connected reply",
			frame: Frame{Direction: FromDevice, Data: encodeFrame(t, enip.CommandSendUnitData, enip.NewUnitData(0xB0B0B0B0, 7, reply))},
			check: func(t *testing.T, s Summary) {
				if !s.Connected || s.ConnectionID != 0xB0B0B0B0 || s.Sequence != 7 {
					t.Errorf("connected fields = %+v", s)
				}
				if s.CIPStatus.General != codes.StatusPathDestinationUnknown {
					t.Errorf("status = %s", s.CIPStatus)
				}
				if !strings.Contains(s.String(), "reply") {
					t.Errorf("String() = %q", s.String())
				}
			},
		},
		{
			name:  "register session",
			frame: Frame{Direction: ToDevice, Data: encodeFrame(t, enip.CommandRegisterSession, enip.NewRegisterSession())},
			check: func(t *testing.T, s Summary) {
				if s.HasMessage || s.Err != nil || s.Command != enip.CommandRegisterSession {
					t.Errorf("summary = %+v", s)
				}
			},
		},
		{
			name:  "truncated",
			frame: Frame{Direction: FromDevice, Data: []byte{0x6F, 0x00, 0x10, 0x00}},
			check: func(t *testing.T, s Summary) {
				if s.Err == nil {
					t.Error("expected decode error")
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, Describe(tt.frame))
		})
	}
}
