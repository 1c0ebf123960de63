package protocol

// CIP Message Router reply decoding.

import (
	"github.com/tonylturner/cipwire/internal/cip/codec"
	"github.com/tonylturner/cipwire/internal/cip/codes"
)

// MessageReply is a decoded Message Router reply.
//
// RemainingPathSize is set only for routing errors; such replies carry no
// service data and Data is left at its zero value.
type MessageReply[D any] struct {
	ReplyService      codes.ServiceCode
	Status            Status
	RemainingPathSize *uint8
	Data              D
}

// RawReply is a reply with an opaque payload borrowed from the receive buffer.
type RawReply = MessageReply[codec.RawBytes]

// ReplyHead is the fixed part of every reply.
type ReplyHead struct {
	ReplyService codes.ServiceCode
	Status       Status
}

// DecodeServiceAndStatus reads reply service, reserved byte, general status,
// extended status size and the extended status words.
func DecodeServiceAndStatus(d *codec.Decoder) (ReplyHead, error) {
	if err := d.Expect("reply header", 4); err != nil {
		return ReplyHead{}, err
	}
	head := ReplyHead{ReplyService: codes.ServiceCode(d.Uint8())}
	d.Skip(1)
	if err := head.Status.Decode(d); err != nil {
		return head, err
	}
	return head, nil
}

// DecodeReply decodes a full reply. Routing errors take the remaining path
// size trailer branch; otherwise the rest of d is decoded as D. Error replies
// that carry no bytes leave Data at its zero value.
func DecodeReply[D any, PD interface {
	*D
	codec.Decodable
}](d *codec.Decoder) (MessageReply[D], error) {
	head, err := DecodeServiceAndStatus(d)
	if err != nil {
		return MessageReply[D]{}, err
	}
	reply := MessageReply[D]{ReplyService: head.ReplyService, Status: head.Status}
	if head.Status.IsRoutingError() {
		if !d.HasRemaining() {
			return reply, nil
		}
		if err := d.Expect("remaining path size", 1); err != nil {
			return reply, err
		}
		size := d.Uint8()
		reply.RemainingPathSize = &size
		return reply, nil
	}
	if head.Status.IsErr() && !head.Status.IsPartial() && !d.HasRemaining() {
		return reply, nil
	}
	if err := PD(&reply.Data).Decode(d); err != nil {
		return reply, err
	}
	return reply, nil
}

// DecodeRawReply decodes a reply keeping the payload opaque.
func DecodeRawReply(data []byte) (RawReply, error) {
	return DecodeReply[codec.RawBytes](codec.NewDecoder(data))
}

// ExpectService checks that a reply answers request: reply == request | 0x80.
func ExpectService(reply, request codes.ServiceCode) error {
	if reply != request.Reply() {
		return &ServiceMismatchError{Request: request, Want: request.Reply(), Got: reply}
	}
	return nil
}

// ExpectService checks the reply service against the request service.
func (r MessageReply[D]) ExpectService(request codes.ServiceCode) error {
	return ExpectService(r.ReplyService, request)
}

// Err lifts a non-success status into a *StatusError tagged with the service.
func (r MessageReply[D]) Err() error {
	if r.Status.IsOK() {
		return nil
	}
	return &StatusError{Service: r.ReplyService, Status: r.Status}
}

// EncodeReply serializes a reply. Used for embedded Multiple Service replies
// and by test doubles that stand in for a device.
func EncodeReply[D codec.Encodable](r MessageReply[D]) ([]byte, error) {
	return codec.Marshal(replyEncoder[D]{r})
}

type replyEncoder[D codec.Encodable] struct {
	r MessageReply[D]
}

func (e replyEncoder[D]) Encode(buf *codec.Buffer) error {
	buf.PutUint8(uint8(e.r.ReplyService))
	buf.PutUint8(0)
	if err := e.r.Status.Encode(buf); err != nil {
		return err
	}
	if e.r.RemainingPathSize != nil {
		buf.PutUint8(*e.r.RemainingPathSize)
		return nil
	}
	return e.r.Data.Encode(buf)
}

func (e replyEncoder[D]) BytesCount() int {
	n := 2 + e.r.Status.BytesCount()
	if e.r.RemainingPathSize != nil {
		return n + 1
	}
	return n + e.r.Data.BytesCount()
}

// ReplyEncoder exposes a reply as an Encodable (for nesting inside other frames).
func ReplyEncoder[D codec.Encodable](r MessageReply[D]) codec.Encodable {
	return replyEncoder[D]{r}
}
