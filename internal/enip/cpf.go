package enip

// Common Packet Format: a counted list of typed items.

import (
	"fmt"

	"github.com/tonylturner/cipwire/internal/cip/codec"
)

// ItemType is a CPF item type code.
type ItemType uint16

const (
	ItemNullAddress      ItemType = 0x0000
	ItemListIdentity     ItemType = 0x000C
	ItemConnectedAddress ItemType = 0x00A1
	ItemConnectedData    ItemType = 0x00B1
	ItemUnconnectedData  ItemType = 0x00B2
	ItemListServices     ItemType = 0x0100
	ItemSockAddrOT       ItemType = 0x8000
	ItemSockAddrTO       ItemType = 0x8001
	ItemSequencedAddress ItemType = 0x8002
)

func (t ItemType) String() string {
	switch t {
	case ItemNullAddress:
		return "NullAddress"
	case ItemListIdentity:
		return "ListIdentity"
	case ItemConnectedAddress:
		return "ConnectedAddress"
	case ItemConnectedData:
		return "ConnectedData"
	case ItemUnconnectedData:
		return "UnconnectedData"
	case ItemListServices:
		return "ListServices"
	case ItemSockAddrOT:
		return "SockAddrO->T"
	case ItemSockAddrTO:
		return "SockAddrT->O"
	case ItemSequencedAddress:
		return "SequencedAddress"
	default:
		return fmt.Sprintf("ItemType(0x%04X)", uint16(t))
	}
}

// IsAddress reports address item types.
func (t ItemType) IsAddress() bool {
	return t == ItemNullAddress || t == ItemConnectedAddress || t == ItemSequencedAddress
}

// IsData reports data item types that carry a CIP message.
func (t ItemType) IsData() bool {
	return t == ItemConnectedData || t == ItemUnconnectedData
}

// CommonPacketItem is one typed CPF item.
type CommonPacketItem[D codec.Encodable] struct {
	TypeCode ItemType
	Data     D
}

// RawItem is a decoded item whose payload borrows from the input buffer.
type RawItem = CommonPacketItem[codec.RawBytes]

// NewItem builds an item.
func NewItem[D codec.Encodable](typeCode ItemType, data D) CommonPacketItem[D] {
	return CommonPacketItem[D]{TypeCode: typeCode, Data: data}
}

func (i CommonPacketItem[D]) Encode(buf *codec.Buffer) error {
	n := i.Data.BytesCount()
	if n > 0xFFFF {
		return &codec.EncodeError{Kind: codec.KindInvalidLength, Type: "enip.CommonPacketItem", Msg: fmt.Sprintf("item of %d bytes exceeds 65535", n)}
	}
	buf.PutUint16(uint16(i.TypeCode))
	buf.PutUint16(uint16(n))
	return i.Data.Encode(buf)
}

func (i CommonPacketItem[D]) BytesCount() int { return 4 + i.Data.BytesCount() }

// EnsureTypeCode fails with an *ItemError when the item is not of type want.
func (i CommonPacketItem[D]) EnsureTypeCode(want ItemType) error {
	if i.TypeCode != want {
		return &ItemError{Want: want, Got: i.TypeCode}
	}
	return nil
}

// CommonPacket encodes an item count followed by each item in order.
type CommonPacket []codec.Encodable

func (p CommonPacket) Encode(buf *codec.Buffer) error {
	if len(p) > 0xFFFF {
		return &codec.EncodeError{Kind: codec.KindInvalidLength, Type: "enip.CommonPacket", Msg: "too many items"}
	}
	buf.PutUint16(uint16(len(p)))
	for _, item := range p {
		if err := item.Encode(buf); err != nil {
			return err
		}
	}
	return nil
}

func (p CommonPacket) BytesCount() int { return 2 + codec.BytesCountAll(p...) }

// UnconnectedPacket addresses msg with a null address item.
func UnconnectedPacket(msg codec.Encodable) CommonPacket {
	return CommonPacket{
		NewItem(ItemNullAddress, codec.Empty{}),
		NewItem(ItemUnconnectedData, msg),
	}
}

// ConnectedPacket addresses msg to connection id with a sequence count prefix.
func ConnectedPacket(connectionID uint32, sequence uint16, msg codec.Encodable) CommonPacket {
	return CommonPacket{
		NewItem(ItemConnectedAddress, codec.Uint32(connectionID)),
		NewItem(ItemConnectedData, codec.Concat{codec.Uint16(sequence), msg}),
	}
}

// CommonPacketIter decodes items lazily. The count is read once; items are
// decoded one per call and iteration ends after the declared count.
type CommonPacketIter struct {
	d     *codec.Decoder
	count int
	read  int
}

// NewCommonPacketIter reads the item count from data.
func NewCommonPacketIter(data []byte) (*CommonPacketIter, error) {
	d := codec.NewDecoder(data)
	if err := d.Expect("cpf item count", 2); err != nil {
		return nil, err
	}
	return &CommonPacketIter{d: d, count: int(d.Uint16())}, nil
}

// Len returns the declared item count.
func (it *CommonPacketIter) Len() int { return it.count }

// Remaining returns how many declared items have not been decoded yet.
func (it *CommonPacketIter) Remaining() int { return it.count - it.read }

// Next decodes the next item. ok is false once the declared count is reached.
func (it *CommonPacketIter) Next() (item RawItem, ok bool, err error) {
	if it.read >= it.count {
		return RawItem{}, false, nil
	}
	if err := it.d.Expect("cpf item header", 4); err != nil {
		return RawItem{}, false, err
	}
	item.TypeCode = ItemType(it.d.Uint16())
	n := int(it.d.Uint16())
	if err := it.d.Expect("cpf item data", n); err != nil {
		return RawItem{}, false, err
	}
	item.Data = it.d.Bytes(n)
	it.read++
	return item, true, nil
}

// NextExpect decodes the next item and checks its type code. A missing item
// is an error here.
func (it *CommonPacketIter) NextExpect(want ItemType) (RawItem, error) {
	index := it.read
	item, ok, err := it.Next()
	if err != nil {
		return item, err
	}
	if !ok {
		return item, &ItemError{Index: index, Want: want, Msg: fmt.Sprintf("expected type %s, packet declares only %d items", want, it.count)}
	}
	return item, ensureAt(index, item, want)
}

func ensureAt(index int, item RawItem, want ItemType) error {
	if item.TypeCode != want {
		return &ItemError{Index: index, Want: want, Got: item.TypeCode}
	}
	return nil
}

// Addressed is the address item and data item of an explicit message.
type Addressed struct {
	Address RawItem
	Data    RawItem
}

// DecodeAddressed reads an explicit-messaging packet: an address item
// followed by a data item. Any other order is an error. Trailing socket
// address items are skipped.
func DecodeAddressed(data []byte) (Addressed, error) {
	it, err := NewCommonPacketIter(data)
	if err != nil {
		return Addressed{}, err
	}
	if it.Len() < 2 {
		return Addressed{}, &ItemError{Msg: fmt.Sprintf("expected address and data items, packet declares %d", it.Len())}
	}
	var out Addressed
	addr, _, err := it.Next()
	if err != nil {
		return out, err
	}
	if !addr.TypeCode.IsAddress() {
		return out, &ItemError{Index: 0, Msg: fmt.Sprintf("expected an address item first, got %s", addr.TypeCode)}
	}
	payload, _, err := it.Next()
	if err != nil {
		return out, err
	}
	if !payload.TypeCode.IsData() {
		return out, &ItemError{Index: 1, Msg: fmt.Sprintf("expected a data item second, got %s", payload.TypeCode)}
	}
	for it.Remaining() > 0 {
		extra, _, err := it.Next()
		if err != nil {
			return out, err
		}
		if extra.TypeCode != ItemSockAddrOT && extra.TypeCode != ItemSockAddrTO {
			return out, &ItemError{Index: it.read - 1, Msg: fmt.Sprintf("unexpected trailing item %s", extra.TypeCode)}
		}
	}
	out.Address, out.Data = addr, payload
	return out, nil
}

// DecodeUnconnected returns the message router reply inside a null address /
// unconnected data packet.
func DecodeUnconnected(data []byte) ([]byte, error) {
	a, err := DecodeAddressed(data)
	if err != nil {
		return nil, err
	}
	if err := a.Address.EnsureTypeCode(ItemNullAddress); err != nil {
		return nil, err
	}
	if err := ensureAt(1, a.Data, ItemUnconnectedData); err != nil {
		return nil, err
	}
	return a.Data.Data, nil
}

// ConnectedMessage is the content of a connected address / connected data packet.
type ConnectedMessage struct {
	ConnectionID uint32
	Sequence     uint16
	Data         []byte
}

// DecodeConnected unpacks a connected packet.
func DecodeConnected(data []byte) (ConnectedMessage, error) {
	a, err := DecodeAddressed(data)
	if err != nil {
		return ConnectedMessage{}, err
	}
	if err := a.Address.EnsureTypeCode(ItemConnectedAddress); err != nil {
		return ConnectedMessage{}, err
	}
	if err := ensureAt(1, a.Data, ItemConnectedData); err != nil {
		return ConnectedMessage{}, err
	}
	var id codec.Uint32
	if err := codec.Unmarshal(a.Address.Data, &id); err != nil {
		return ConnectedMessage{}, err
	}
	d := codec.NewDecoder(a.Data.Data)
	if err := d.Expect("connected data sequence", 2); err != nil {
		return ConnectedMessage{}, err
	}
	msg := ConnectedMessage{ConnectionID: uint32(id), Sequence: d.Uint16()}
	msg.Data = d.Rest()
	return msg, nil
}
