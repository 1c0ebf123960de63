package capture

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"
)

func frame(cmd byte, payloadLen int) []byte {
	f := make([]byte, 24+payloadLen)
	f[0] = cmd
	f[2] = byte(payloadLen)
	f[3] = byte(payloadLen >> 8)
	for i := 24; i < len(f); i++ {
		f[i] = byte(i)
	}
	return f
}

// echoTransport returns each sent frame as the reply.
type echoTransport struct {
	connected bool
	last      []byte
}

func (e *echoTransport) Connect(context.Context, string) error { e.connected = true; return nil }
func (e *echoTransport) Disconnect() error                     { e.connected = false; return nil }
func (e *echoTransport) IsConnected() bool                     { return e.connected }
func (e *echoTransport) Send(_ context.Context, data []byte) error {
	e.last = data
	return nil
}
func (e *echoTransport) Receive(context.Context, time.Duration) ([]byte, error) {
	return e.last, nil
}

func TestRecordAndReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.pcap")
	w, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	rec := NewRecordingTransport(&echoTransport{}, w)
	ctx := context.Background()
	if err := rec.Connect(ctx, "192.168.1.10:44818"); err != nil {
		t.Fatal(err)
	}

	sent := [][]byte{frame(0x65, 4), frame(0x6F, 3000), frame(0x70, 0)}
	for _, f := range sent {
		if err := rec.Send(ctx, f); err != nil {
			t.Fatalf("Send: %v", err)
		}
		if _, err := rec.Receive(ctx, time.Second); err != nil {
			t.Fatalf("Receive: %v", err)
		}
	}
	// 3000 + 24 bytes span three MSS segments in each direction.
	if got := w.Packets(); got != 2*(1+3+1) {
		t.Errorf("packets = %d, want 10", got)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	frames, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(frames) != 2*len(sent) {
		t.Fatalf("frames = %d, want %d", len(frames), 2*len(sent))
	}
	for i, f := range frames {
		wantDir := ToDevice
		if i%2 == 1 {
			wantDir = FromDevice
		}
		if f.Direction != wantDir {
			t.Errorf("frame %d direction = %s, want %s", i, f.Direction, wantDir)
		}
		if !bytes.Equal(f.Data, sent[i/2]) {
			t.Errorf("frame %d differs from the frame sent", i)
		}
	}
}

func TestReplayTransport(t *testing.T) {
	req, rep := frame(0x65, 4), frame(0x65, 4)
	rep[4] = 0x01
	replay := NewReplayTransport([]Frame{
		{Direction: ToDevice, Data: req},
		{Direction: FromDevice, Data: rep},
	})
	replay.Strict = true
	ctx := context.Background()

	if err := replay.Send(ctx, req); err == nil {
		t.Fatal("Send before Connect should fail")
	}
	replay.Connect(ctx, "ignored:44818")
	if replay.Remaining() != 1 {
		t.Fatalf("remaining = %d, want 1", replay.Remaining())
	}
	if err := replay.Send(ctx, req); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got, err := replay.Receive(ctx, time.Second)
	if err != nil || !bytes.Equal(got, rep) {
		t.Fatalf("Receive = % X, %v", got, err)
	}
	if _, err := replay.Receive(ctx, time.Second); err == nil {
		t.Fatal("Receive past the recording should fail")
	}
	if err := replay.Send(ctx, req); err == nil {
		t.Fatal("Send past the recording should fail")
	}
}

func TestReplayStrictMismatch(t *testing.T) {
	replay := NewReplayTransport([]Frame{{Direction: ToDevice, Data: frame(0x65, 4)}})
	replay.Strict = true
	replay.Connect(context.Background(), "")
	if err := replay.Send(context.Background(), frame(0x66, 0)); err == nil {
		t.Fatal("expected mismatch error")
	}
}
