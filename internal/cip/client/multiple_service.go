package client

import (
	"context"
	"errors"
	"time"

	"github.com/tonylturner/cipwire/internal/cip/codes"
	"github.com/tonylturner/cipwire/internal/cip/protocol"
	"github.com/tonylturner/cipwire/internal/metrics"
)

// ErrEmptyBatch is returned when a Multiple Service Packet has no requests.
var ErrEmptyBatch = errors.New("multiple service packet has no requests")

// Batch collects requests for one Multiple Service Packet.
type Batch struct {
	client *Client
	reqs   []protocol.Request
}

// Batch starts an empty Multiple Service Packet.
func (c *Client) Batch() *Batch { return &Batch{client: c} }

// Push appends req.
func (b *Batch) Push(req protocol.Request) *Batch {
	b.reqs = append(b.reqs, req)
	return b
}

// Len returns the number of queued requests.
func (b *Batch) Len() int { return len(b.reqs) }

// Call sends the batch. The outer reply may be success or "embedded service
// error"; either way the returned iterator yields one reply per request in
// order. Individual failures are read from each sub-reply's status.
func (b *Batch) Call(ctx context.Context) (*protocol.MultipleServiceReplyIter, error) {
	if len(b.reqs) == 0 {
		return nil, ErrEmptyBatch
	}
	msg := protocol.NewMultipleService(b.reqs...)
	if _, err := msg.Data.Offsets(); err != nil {
		return nil, err
	}

	c := b.client
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	reply, err := c.roundTrip(ctx, msg)
	if err == nil && !reply.Status.IsOK() && reply.Status.General != codes.StatusEmbeddedServiceError {
		err = reply.Err()
	}
	var it *protocol.MultipleServiceReplyIter
	if err == nil {
		it, err = protocol.NewMultipleServiceReplyIter(reply.Data)
	}
	if err == nil && it.Len() != len(b.reqs) {
		err = &ReplyMismatchError{Field: "multiple service count", Want: uint64(len(b.reqs)), Got: uint64(it.Len())}
	}
	c.record(metrics.OperationMultipleService, codes.ServiceName(codes.ServiceMultipleService), start, reply.Status.General, err)
	if err != nil {
		return nil, err
	}
	return it, nil
}
