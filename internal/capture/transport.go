package capture

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"time"
)

// Transport matches the client transport contract: whole encapsulation
// frames in both directions.
type Transport interface {
	Connect(ctx context.Context, addr string) error
	Disconnect() error
	Send(ctx context.Context, data []byte) error
	Receive(ctx context.Context, timeout time.Duration) ([]byte, error)
	IsConnected() bool
}

// RecordingTransport writes every frame passing through Inner to W.
// A capture write failure fails the exchange.
type RecordingTransport struct {
	Inner Transport
	W     *Writer
}

var _ Transport = (*RecordingTransport)(nil)

// NewRecordingTransport wraps inner.
func NewRecordingTransport(inner Transport, w *Writer) *RecordingTransport {
	return &RecordingTransport{Inner: inner, W: w}
}

func (r *RecordingTransport) Connect(ctx context.Context, addr string) error {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		r.W.SetDevice(host)
	}
	return r.Inner.Connect(ctx, addr)
}

func (r *RecordingTransport) Disconnect() error { return r.Inner.Disconnect() }

func (r *RecordingTransport) IsConnected() bool { return r.Inner.IsConnected() }

func (r *RecordingTransport) Send(ctx context.Context, data []byte) error {
	if err := r.Inner.Send(ctx, data); err != nil {
		return err
	}
	return r.W.WriteFrame(ToDevice, data)
}

func (r *RecordingTransport) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	frame, err := r.Inner.Receive(ctx, timeout)
	if err != nil {
		return nil, err
	}
	if err := r.W.WriteFrame(FromDevice, frame); err != nil {
		return nil, err
	}
	return frame, nil
}

// ReplayTransport answers from a recorded session: each Receive returns the
// next device frame. With Strict set, each Send must match the next recorded
// originator frame byte for byte.
type ReplayTransport struct {
	frames    []Frame
	next      [2]int
	connected bool
	Strict    bool
}

var _ Transport = (*ReplayTransport)(nil)

// NewReplayTransport replays frames.
func NewReplayTransport(frames []Frame) *ReplayTransport {
	return &ReplayTransport{frames: frames}
}

func (r *ReplayTransport) Connect(context.Context, string) error {
	r.connected = true
	return nil
}

func (r *ReplayTransport) Disconnect() error {
	r.connected = false
	return nil
}

func (r *ReplayTransport) IsConnected() bool { return r.connected }

func (r *ReplayTransport) Send(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !r.connected {
		return fmt.Errorf("not connected")
	}
	want, ok := r.take(ToDevice)
	if !ok {
		return fmt.Errorf("replay: no recorded request left")
	}
	if r.Strict && !bytes.Equal(want.Data, data) {
		return fmt.Errorf("replay: request differs from recording\n  got:  % X\n  want: % X", data, want.Data)
	}
	return nil
}

func (r *ReplayTransport) Receive(ctx context.Context, _ time.Duration) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !r.connected {
		return nil, fmt.Errorf("not connected")
	}
	f, ok := r.take(FromDevice)
	if !ok {
		return nil, fmt.Errorf("replay: no recorded reply left")
	}
	return f.Data, nil
}

// Remaining returns the number of recorded device frames not yet returned.
func (r *ReplayTransport) Remaining() int {
	n := 0
	for _, f := range r.frames[r.next[FromDevice]:] {
		if f.Direction == FromDevice {
			n++
		}
	}
	return n
}

func (r *ReplayTransport) take(dir Direction) (Frame, bool) {
	for i := r.next[dir]; i < len(r.frames); i++ {
		if r.frames[i].Direction == dir {
			r.next[dir] = i + 1
			return r.frames[i], true
		}
	}
	r.next[dir] = len(r.frames)
	return Frame{}, false
}
