package enip

import (
	"bytes"
	"errors"
	"testing"

	"github.com/tonylturner/cipwire/internal/cip/codec"
)

func TestEncodeHeader(t *testing.T) {
	pkt := Packet{
		Header: Header{
			Command:       CommandRegisterSession,
			SessionHandle: 0x12345678,
			SenderContext: [8]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
		},
		Data: NewRegisterSession(),
	}

	got, err := codec.Marshal(pkt)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	// Should be 24 bytes (header) + 4 bytes (data) = 28 bytes.
	if len(got) != 28 {
		t.Fatalf("packet length: got %d, want 28", len(got))
	}
	want := []byte{
		0x65, 0x00, 0x04, 0x00,
		0x78, 0x56, 0x34, 0x12,
		0x00, 0x00, 0x00, 0x00,
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
		0x00, 0x00, 0x00, 0x00,
		0x01, 0x00, 0x00, 0x00,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("packet = % X\nwant     % X", got, want)
	}
}

func TestDecodeFrame(t *testing.T) {
	data, err := codec.Marshal(Packet{
		Header: Header{Command: CommandSendRRData, SessionHandle: 7, Status: StatusInvalidSessionHandle},
		Data:   codec.RawBytes{0xAA, 0xBB},
	})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	frame, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if frame.Header.Command != CommandSendRRData {
		t.Errorf("command: got %s, want SendRRData", frame.Header.Command)
	}
	if frame.Header.Length != 2 || !bytes.Equal(frame.Data, []byte{0xAA, 0xBB}) {
		t.Errorf("payload: length %d data % X", frame.Header.Length, frame.Data)
	}
	if frame.Header.Status != StatusInvalidSessionHandle {
		t.Errorf("status: got %v", frame.Header.Status)
	}

	if n, ok := FrameLength(data[:HeaderSize]); !ok || n != 26 {
		t.Errorf("FrameLength = %d, %v; want 26, true", n, ok)
	}
}

func TestDecodeFrameErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"too short", make([]byte, 10)},
		{"length larger than payload", append([]byte{0x6F, 0x00, 0x08, 0x00}, make([]byte, 22)...)},
		{"trailing bytes", append([]byte{0x6F, 0x00, 0x00, 0x00}, make([]byte, 21)...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeFrame(tt.data); !errors.Is(err, codec.ErrInvalidLength) {
				t.Fatalf("DecodeFrame error = %v, want ErrInvalidLength", err)
			}
		})
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	want := Header{
		Command:       CommandSendUnitData,
		Length:        0x0102,
		SessionHandle: 0xDEADBEEF,
		Status:        StatusIncorrectData,
		SenderContext: [8]byte{'c', 'i', 'p', 'w', 'i', 'r', 'e', 0},
		Options:       0,
	}
	data, err := codec.Marshal(want)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got Header
	if err := codec.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got != want {
		t.Fatalf("round trip = %+v, want %+v", got, want)
	}
}

func TestCommandDataEncoding(t *testing.T) {
	msg := codec.RawBytes{0x0E, 0x01, 0x20, 0x01}
	got, err := codec.Marshal(NewRRData(10, msg))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := []byte{
		0x00, 0x00, 0x00, 0x00, // interface handle
		0x0A, 0x00, // timeout
		0x02, 0x00, // item count
		0x00, 0x00, 0x00, 0x00, // null address
		0xB2, 0x00, 0x04, 0x00, 0x0E, 0x01, 0x20, 0x01, // unconnected data
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("SendRRData payload = % X\nwant                % X", got, want)
	}

	got, err = codec.Marshal(NewUnitData(0x11223344, 5, msg))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want = []byte{
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00,
		0x02, 0x00,
		0xA1, 0x00, 0x04, 0x00, 0x44, 0x33, 0x22, 0x11,
		0xB1, 0x00, 0x06, 0x00, 0x05, 0x00, 0x0E, 0x01, 0x20, 0x01,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("SendUnitData payload = % X\nwant                  % X", got, want)
	}

	var reply CommandReply
	if err := codec.Unmarshal(got, &reply); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	msgOut, err := DecodeConnected(reply.CPF)
	if err != nil {
		t.Fatalf("DecodeConnected: %v", err)
	}
	if msgOut.ConnectionID != 0x11223344 || msgOut.Sequence != 5 || !bytes.Equal(msgOut.Data, msg) {
		t.Fatalf("connected message = %+v", msgOut)
	}
}

func TestListServices(t *testing.T) {
	data, err := codec.Marshal(CommonPacket{
		NewItem(ItemListServices, ServiceInfo{Version: 1, Capabilities: CapabilityCIPEncapsulation | CapabilityClass0or1UDP, Name: "Communications"}),
	})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	services, err := DecodeListServices(data)
	if err != nil {
		t.Fatalf("DecodeListServices: %v", err)
	}
	if len(services) != 1 || services[0].Name != "Communications" || !services[0].SupportsCIP() {
		t.Fatalf("services = %+v", services)
	}
}
