package protocol

// Multiple Service Packet (service 0x0A) encoding and lazy reply decoding.

import (
	"fmt"

	"github.com/tonylturner/cipwire/internal/cip/codec"
	"github.com/tonylturner/cipwire/internal/cip/codes"
	"github.com/tonylturner/cipwire/internal/cip/epath"
)

// MultipleServiceRequest batches independent requests. Offsets in the table
// are counted from the first byte of the service data (the count field).
type MultipleServiceRequest []Request

// NewMultipleService addresses a batch to the Message Router.
func NewMultipleService(reqs ...Request) MessageRequest[MultipleServiceRequest] {
	return NewRequest(codes.ServiceMultipleService, epath.MessageRouter(), MultipleServiceRequest(reqs))
}

func (m MultipleServiceRequest) headerLen() int { return 2 + 2*len(m) }

// Offsets returns the offset table that Encode writes.
func (m MultipleServiceRequest) Offsets() ([]uint16, error) {
	if len(m) == 0 {
		return nil, &codec.EncodeError{Kind: codec.KindInvalidLength, Type: "MultipleServiceRequest", Msg: "no embedded requests"}
	}
	offsets := make([]uint16, len(m))
	offset := m.headerLen()
	for i, req := range m {
		if offset > 0xFFFF {
			return nil, &codec.EncodeError{Kind: codec.KindInvalidLength, Type: "MultipleServiceRequest", Msg: fmt.Sprintf("request %d starts past offset 65535", i)}
		}
		offsets[i] = uint16(offset)
		offset += req.BytesCount()
	}
	return offsets, nil
}

func (m MultipleServiceRequest) Encode(buf *codec.Buffer) error {
	offsets, err := m.Offsets()
	if err != nil {
		return err
	}
	buf.PutUint16(uint16(len(m)))
	for _, off := range offsets {
		buf.PutUint16(off)
	}
	for i, req := range m {
		if err := buf.Encode(req); err != nil {
			return fmt.Errorf("encode embedded request %d: %w", i, err)
		}
	}
	return nil
}

func (m MultipleServiceRequest) BytesCount() int {
	n := m.headerLen()
	for _, req := range m {
		n += req.BytesCount()
	}
	return n
}

// MultipleServiceReplyIter walks the embedded replies of a Multiple Service
// reply one at a time. The table is validated up front; each reply is decoded
// on demand. Reply i spans offset[i]..offset[i+1]; the last one spans to the
// end of the payload.
type MultipleServiceReplyIter struct {
	data    []byte
	offsets []uint16
	next    int
	cur     RawReply
	err     error
}

// NewMultipleServiceReplyIter parses the count and offset table of payload.
func NewMultipleServiceReplyIter(payload []byte) (*MultipleServiceReplyIter, error) {
	it := &MultipleServiceReplyIter{}
	if err := it.Decode(codec.NewDecoder(payload)); err != nil {
		return nil, err
	}
	return it, nil
}

// Decode consumes every remaining byte of d as a Multiple Service reply payload.
func (it *MultipleServiceReplyIter) Decode(d *codec.Decoder) error {
	data := d.Rest()
	td := codec.NewDecoder(data)
	if err := td.Expect("service count", 2); err != nil {
		return err
	}
	count := int(td.Uint16())
	if err := td.Expect("offset table", 2*count); err != nil {
		return err
	}
	offsets := make([]uint16, count)
	for i := range offsets {
		offsets[i] = td.Uint16()
	}
	header := 2 + 2*count
	for i, off := range offsets {
		if int(off) < header || int(off) >= len(data) {
			return codec.InvalidData("multiple service offset", "offset %d of reply %d outside %d..%d", off, i, header, len(data)-1)
		}
		if i > 0 && off <= offsets[i-1] {
			return codec.InvalidData("multiple service offset", "offset %d of reply %d not after %d", off, i, offsets[i-1])
		}
	}
	*it = MultipleServiceReplyIter{data: data, offsets: offsets}
	return nil
}

// Len returns the number of embedded replies declared by the table.
func (it *MultipleServiceReplyIter) Len() int { return len(it.offsets) }

// Next decodes the next embedded reply. It returns false when the table is
// exhausted or a reply failed to decode; check Err afterwards.
func (it *MultipleServiceReplyIter) Next() bool {
	if it.err != nil || it.next >= len(it.offsets) {
		return false
	}
	start := int(it.offsets[it.next])
	end := len(it.data)
	if it.next+1 < len(it.offsets) {
		end = int(it.offsets[it.next+1])
	}
	d := codec.NewDecoder(it.data[start:])
	reply, err := codec.DecodeSized(d, end-start, codec.VisitorFunc[RawReply](func(sub *codec.Decoder) (RawReply, error) {
		return DecodeReply[codec.RawBytes](sub)
	}))
	if err != nil {
		it.err = fmt.Errorf("decode embedded reply %d: %w", it.next, err)
		return false
	}
	it.cur = reply
	it.next++
	return true
}

// Reply returns the reply decoded by the last successful Next.
func (it *MultipleServiceReplyIter) Reply() RawReply { return it.cur }

// Index returns the position of the current reply in the batch.
func (it *MultipleServiceReplyIter) Index() int { return it.next - 1 }

// Err returns the first decode error.
func (it *MultipleServiceReplyIter) Err() error { return it.err }

// Collect drains the iterator.
func (it *MultipleServiceReplyIter) Collect() ([]RawReply, error) {
	out := make([]RawReply, 0, it.Len()-it.next)
	for it.Next() {
		out = append(out, it.Reply())
	}
	return out, it.Err()
}

// MultipleServiceReplies encodes embedded replies with their offset table.
type MultipleServiceReplies []codec.Encodable

func (m MultipleServiceReplies) Encode(buf *codec.Buffer) error {
	buf.PutUint16(uint16(len(m)))
	offset := 2 + 2*len(m)
	for _, r := range m {
		buf.PutUint16(uint16(offset))
		offset += r.BytesCount()
	}
	for _, r := range m {
		if err := buf.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

func (m MultipleServiceReplies) BytesCount() int {
	return 2 + 2*len(m) + codec.BytesCountAll(m...)
}
