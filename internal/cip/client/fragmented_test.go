package client

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/tonylturner/cipwire/internal/cip/codec"
	"github.com/tonylturner/cipwire/internal/cip/codes"
	"github.com/tonylturner/cipwire/internal/cip/epath"
	"github.com/tonylturner/cipwire/internal/cip/protocol"
)

func TestReadTagFragmented(t *testing.T) {
	value := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	chunks := [][]byte{value[:4], value[4:8], value[8:]}
	var offsets []uint32

	dev := newFakeDevice(t, func(req protocol.RequestHeader, payload []byte) codec.Encodable {
		d := codec.NewDecoder(payload)
		if elements := d.Uint16(); elements != 10 {
			t.Errorf("elements = %d, want 10", elements)
		}
		offsets = append(offsets, d.Uint32())
		i := len(offsets) - 1
		status := protocol.NewStatus(codes.StatusPartialTransfer)
		if i == len(chunks)-1 {
			status = ok
		}
		return reply(req.Service, status, TagValue{Type: Atomic(TypeSINT), Data: chunks[i]})
	})
	c := connectClient(t, dev, Options{})

	v, err := c.ReadTagFragmented(context.Background(), epath.FromSymbol("Recipe"), 10)
	if err != nil {
		t.Fatalf("ReadTagFragmented: %v", err)
	}
	if !bytes.Equal(v.Data, value) || v.Type != Atomic(TypeSINT) {
		t.Fatalf("value = %s % X, want SINT % X", v.Type, v.Data, value)
	}
	if n := dev.countOf(codes.ServiceReadTagFragmented); n != 3 {
		t.Fatalf("requests = %d, want 3 (none after the final reply)", n)
	}
	want := []uint32{0, 5, 9}
	for i := range want {
		if offsets[i] != want[i] {
			t.Fatalf("offsets = %v, want %v", offsets, want)
		}
	}
}

func TestReadTagFragmentedSingleReply(t *testing.T) {
	dev := newFakeDevice(t, func(req protocol.RequestHeader, _ []byte) codec.Encodable {
		return reply(req.Service, ok, TagValue{Type: Atomic(TypeINT), Data: []byte{0x01, 0x00}})
	})
	c := connectClient(t, dev, Options{})

	v, err := c.ReadTagFragmented(context.Background(), epath.FromSymbol("Small"), 1)
	if err != nil || len(v.Data) != 2 {
		t.Fatalf("ReadTagFragmented = %+v, %v", v, err)
	}
	if n := dev.countOf(codes.ServiceReadTagFragmented); n != 1 {
		t.Fatalf("requests = %d, want 1", n)
	}
}

func TestReadTagFragmentedAborts(t *testing.T) {
	tests := []struct {
		name   string
		second codec.Encodable
		check  func(error) bool
	}{
		{
			name:   "error status",
			second: reply(codes.ServiceReadTagFragmented, protocol.NewStatus(codes.StatusPathDestinationUnknown), nil),
			check: func(err error) bool {
				var te *TransferError
				return errors.As(err, &te) && te.Offset == 3 && protocol.IsStatus(err, codes.StatusPathDestinationUnknown)
			},
		},
		{
			name:   "type change",
			second: reply(codes.ServiceReadTagFragmented, ok, TagValue{Type: Atomic(TypeDINT), Data: []byte{1}}),
			check:  func(err error) bool { return errors.Is(err, codec.ErrInvalidData) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			dev := newFakeDevice(t, func(req protocol.RequestHeader, _ []byte) codec.Encodable {
				calls++
				if calls == 1 {
					return reply(req.Service, protocol.NewStatus(codes.StatusPartialTransfer), TagValue{Type: Atomic(TypeSINT), Data: []byte{1, 2}})
				}
				return tt.second
			})
			c := connectClient(t, dev, Options{})
			_, err := c.ReadTagFragmented(context.Background(), epath.FromSymbol("Recipe"), 4)
			if !tt.check(err) {
				t.Fatalf("error = %v", err)
			}
			if calls != 2 {
				t.Fatalf("calls = %d, want 2", calls)
			}
		})
	}
}

func TestWriteTagFragmented(t *testing.T) {
	value := TagValue{Type: Atomic(TypeSINT), Data: []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}}
	var got []byte
	var offsets []uint32

	dev := newFakeDevice(t, func(req protocol.RequestHeader, payload []byte) codec.Encodable {
		d := codec.NewDecoder(payload)
		var typ TagType
		if err := typ.Decode(d); err != nil || typ != value.Type {
			t.Errorf("type = %v, %v", typ, err)
		}
		d.Uint16()
		off := d.Uint32()
		offsets = append(offsets, off)
		got = append(got, d.Rest()...)
		if len(got) < len(value.Data) {
			return reply(req.Service, protocol.NewStatus(codes.StatusPartialTransfer), nil)
		}
		return reply(req.Service, ok, nil)
	})
	c := connectClient(t, dev, Options{})

	if err := c.WriteTagFragmented(context.Background(), epath.FromSymbol("Recipe"), value, 10, 4); err != nil {
		t.Fatalf("WriteTagFragmented: %v", err)
	}
	if !bytes.Equal(got, value.Data) {
		t.Fatalf("device received % X", got)
	}
	want := []uint32{0, 4, 8}
	if len(offsets) != len(want) {
		t.Fatalf("offsets = %v, want %v", offsets, want)
	}
	for i := range want {
		if offsets[i] != want[i] {
			t.Fatalf("offsets = %v, want %v", offsets, want)
		}
	}
}

func TestWriteTagFragmentedLastChunkMustSucceed(t *testing.T) {
	dev := newFakeDevice(t, func(req protocol.RequestHeader, _ []byte) codec.Encodable {
		return reply(req.Service, protocol.NewStatus(codes.StatusPartialTransfer), nil)
	})
	c := connectClient(t, dev, Options{})

	err := c.WriteTagFragmented(context.Background(), epath.FromSymbol("Recipe"), TagValue{Type: Atomic(TypeSINT), Data: make([]byte, 6)}, 6, 4)
	var te *TransferError
	if !errors.As(err, &te) || te.Offset != 4 || !te.Status.IsPartial() {
		t.Fatalf("error = %v, want transfer error at offset 4", err)
	}
}
