package client

// Fragmented Read_Tag / Write_Tag transfers.

import (
	"context"
	"fmt"
	"time"

	"github.com/tonylturner/cipwire/internal/cip/codec"
	"github.com/tonylturner/cipwire/internal/cip/codes"
	"github.com/tonylturner/cipwire/internal/cip/epath"
	"github.com/tonylturner/cipwire/internal/cip/protocol"
	"github.com/tonylturner/cipwire/internal/metrics"
)

// DefaultFragmentSize is the write chunk size when none is given.
const DefaultFragmentSize = 400

// TransferError aborts a fragmented transfer at Offset.
type TransferError struct {
	Service codes.ServiceCode
	Offset  uint32
	Status  protocol.Status
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s aborted at offset %d: status %s", codes.ServiceName(e.Service), e.Offset, e.Status)
}

func (e *TransferError) Unwrap() error {
	return &protocol.StatusError{Service: e.Service.Reply(), Status: e.Status}
}

// ReadTagFragmented reads a tag whose value exceeds one reply. Requests are
// repeated while the target answers "partial transfer"; the chunks are
// concatenated in order. No request follows the terminal reply.
func (c *Client) ReadTagFragmented(ctx context.Context, tag epath.EPath, elements uint16) (TagValue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	var (
		out     TagValue
		data    []byte
		offset  uint32
		status  uint8
		replies int
	)
	err := func() error {
		for {
			req := protocol.NewRequest(codes.ServiceReadTagFragmented, tag, readFragmentData{Elements: elements, Offset: offset})
			reply, err := c.roundTrip(ctx, req)
			if err != nil {
				return err
			}
			status = reply.Status.General
			if !reply.Status.IsOK() && !reply.Status.IsPartial() {
				return &TransferError{Service: codes.ServiceReadTagFragmented, Offset: offset, Status: reply.Status}
			}

			var chunk TagValue
			if err := chunk.Decode(codec.NewDecoder(reply.Data)); err != nil {
				return fmt.Errorf("fragment at offset %d: %w", offset, err)
			}
			if replies == 0 {
				out.Type = chunk.Type
			} else if chunk.Type != out.Type {
				return codec.InvalidData("fragment", "type changed from %s to %s at offset %d", out.Type, chunk.Type, offset)
			}
			data = append(data, chunk.Data...)
			replies++

			if !reply.Status.IsPartial() {
				return nil
			}
			switch {
			case replies == 1:
				offset += uint32(len(chunk.Data)) + 1
			case len(chunk.Data) == 0:
				return codec.InvalidData("fragment", "partial reply without data at offset %d", offset)
			default:
				offset += uint32(len(chunk.Data))
			}
		}
	}()
	c.record(metrics.OperationReadFragmented, codes.ServiceName(codes.ServiceReadTagFragmented), start, status, err)
	if err != nil {
		return TagValue{}, err
	}
	c.opts.Logger.Debug("fragmented read %s: %d bytes in %d replies", tag, len(data), replies)
	out.Data = data
	return out, nil
}

// WriteTagFragmented writes value in chunks of at most chunkSize bytes.
// Every chunk except the last expects "partial transfer" or success; the last
// must succeed. Any other status aborts with a *TransferError.
func (c *Client) WriteTagFragmented(ctx context.Context, tag epath.EPath, value TagValue, elements uint16, chunkSize int) error {
	if len(value.Data) == 0 {
		return codec.InvalidData("fragmented write", "empty value")
	}
	if chunkSize <= 0 {
		chunkSize = DefaultFragmentSize
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	var status uint8
	err := func() error {
		for offset := 0; offset < len(value.Data); {
			end := min(offset+chunkSize, len(value.Data))
			last := end == len(value.Data)
			req := protocol.NewRequest(codes.ServiceWriteTagFragmented, tag, writeFragmentData{
				Type:     value.Type,
				Elements: elements,
				Offset:   uint32(offset),
				Chunk:    value.Data[offset:end],
			})
			reply, err := c.roundTrip(ctx, req)
			if err != nil {
				return err
			}
			status = reply.Status.General
			switch {
			case reply.Status.IsOK():
			case reply.Status.IsPartial() && !last:
			default:
				return &TransferError{Service: codes.ServiceWriteTagFragmented, Offset: uint32(offset), Status: reply.Status}
			}
			offset = end
		}
		return nil
	}()
	c.record(metrics.OperationWriteFragmented, codes.ServiceName(codes.ServiceWriteTagFragmented), start, status, err)
	return err
}
