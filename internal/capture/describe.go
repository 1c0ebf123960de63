package capture

import (
	"fmt"

	"github.com/tonylturner/cipwire/internal/cip/codec"
	"github.com/tonylturner/cipwire/internal/cip/codes"
	"github.com/tonylturner/cipwire/internal/cip/epath"
	"github.com/tonylturner/cipwire/internal/cip/protocol"
	"github.com/tonylturner/cipwire/internal/enip"
)

// Summary describes one captured frame.
type Summary struct {
	Direction Direction
	Command   enip.Command
	Session   uint32
	Status    enip.Status
	// Connected is set for SendUnitData frames.
	Connected    bool
	ConnectionID uint32
	Sequence     uint16
	// HasMessage is set when a Message Router request or reply was decoded.
	HasMessage bool
	Service    codes.ServiceCode
	Path       string
	CIPStatus  protocol.Status
	Payload    []byte
	Err        error
}

func (s Summary) String() string {
	out := fmt.Sprintf("%-11s %-18s session=0x%08X", s.Direction, s.Command, s.Session)
	if s.Status != 0 {
		out += fmt.Sprintf(" status=%s", s.Status)
	}
	if s.Connected {
		out += fmt.Sprintf(" conn=0x%08X seq=%d", s.ConnectionID, s.Sequence)
	}
	if s.HasMessage {
		if s.Service.IsReply() {
			out += fmt.Sprintf(" %s reply %s", codes.ServiceName(s.Service.Request()), s.CIPStatus)
		} else {
			out += fmt.Sprintf(" %s %s", codes.ServiceName(s.Service), s.Path)
		}
	}
	if s.Err != nil {
		out += fmt.Sprintf(" (undecodable: %v)", s.Err)
	}
	return out
}

// Describe decodes the encapsulation header and, for SendRRData and
// SendUnitData, the embedded Message Router request or reply. Decode
// failures are reported in Summary.Err.
func Describe(f Frame) Summary {
	s := Summary{Direction: f.Direction}
	frame, err := enip.DecodeFrame(f.Data)
	if err != nil {
		s.Err = err
		return s
	}
	s.Command = frame.Header.Command
	s.Session = frame.Header.SessionHandle
	s.Status = frame.Header.Status

	var msg []byte
	switch s.Command {
	case enip.CommandSendRRData, enip.CommandSendUnitData:
		var cmd enip.CommandReply
		if err := codec.Unmarshal(frame.Data, &cmd); err != nil {
			s.Err = err
			return s
		}
		if s.Command == enip.CommandSendRRData {
			msg, err = enip.DecodeUnconnected(cmd.CPF)
		} else {
			var cm enip.ConnectedMessage
			cm, err = enip.DecodeConnected(cmd.CPF)
			s.Connected, s.ConnectionID, s.Sequence, msg = true, cm.ConnectionID, cm.Sequence, cm.Data
		}
		if err != nil {
			s.Err = err
			return s
		}
	default:
		return s
	}
	if len(msg) == 0 {
		return s
	}

	s.HasMessage = true
	if codes.ServiceCode(msg[0]).IsReply() {
		reply, err := protocol.DecodeRawReply(msg)
		s.Service, s.CIPStatus, s.Payload, s.Err = reply.ReplyService, reply.Status, reply.Data, err
		return s
	}
	d := codec.NewDecoder(msg)
	req, err := protocol.DecodeRequestHeader(d)
	if err != nil {
		s.Err = err
		return s
	}
	s.Service = req.Service
	if path, err := epath.Parse(req.Path); err == nil {
		s.Path = path.String()
	} else {
		s.Path = fmt.Sprintf("% X", req.Path)
	}
	s.Payload = d.Rest()
	return s
}
