package protocol

// CIP Message Router request encoding.

import (
	"fmt"

	"github.com/tonylturner/cipwire/internal/cip/codec"
	"github.com/tonylturner/cipwire/internal/cip/codes"
)

// Request is any encodable Message Router request.
type Request interface {
	codec.Encodable
	ServiceCode() codes.ServiceCode
}

// MessageRequest is a Message Router request carrying a typed payload.
type MessageRequest[D codec.Encodable] struct {
	Service codes.ServiceCode
	Path    codec.Encodable
	Data    D
}

// NewRequest builds a request for service on path.
func NewRequest[D codec.Encodable](service codes.ServiceCode, path codec.Encodable, data D) MessageRequest[D] {
	return MessageRequest[D]{Service: service, Path: path, Data: data}
}

// RawRequest is a request with an opaque payload.
type RawRequest = MessageRequest[codec.RawBytes]

func (r MessageRequest[D]) ServiceCode() codes.ServiceCode { return r.Service }

func (r MessageRequest[D]) pathBytes() int {
	if r.Path == nil {
		return 0
	}
	return r.Path.BytesCount()
}

// Encode writes service, path size in words, path and payload.
func (r MessageRequest[D]) Encode(buf *codec.Buffer) error {
	n := r.pathBytes()
	if n%2 != 0 {
		return &codec.EncodeError{Kind: codec.KindInvalidLength, Type: "MessageRequest", Msg: fmt.Sprintf("path is %d bytes, not word aligned", n)}
	}
	if n/2 > 0xFF {
		return &codec.EncodeError{Kind: codec.KindInvalidLength, Type: "MessageRequest", Msg: fmt.Sprintf("path is %d words, maximum 255", n/2)}
	}
	buf.PutUint8(uint8(r.Service))
	buf.PutUint8(uint8(n / 2))
	if r.Path != nil {
		if err := r.Path.Encode(buf); err != nil {
			return err
		}
	}
	return r.Data.Encode(buf)
}

func (r MessageRequest[D]) BytesCount() int {
	return 2 + r.pathBytes() + r.Data.BytesCount()
}

// RequestHeader is the decoded service and raw path of a request.
type RequestHeader struct {
	Service codes.ServiceCode
	Path    []byte
}

// DecodeRequestHeader reads service and path and leaves d at the payload.
func DecodeRequestHeader(d *codec.Decoder) (RequestHeader, error) {
	if err := d.Expect("request header", 2); err != nil {
		return RequestHeader{}, err
	}
	h := RequestHeader{Service: codes.ServiceCode(d.Uint8())}
	words := int(d.Uint8())
	if err := d.Expect("request path", words*2); err != nil {
		return h, err
	}
	h.Path = d.Bytes(words * 2)
	return h, nil
}
