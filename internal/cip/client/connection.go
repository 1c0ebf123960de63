package client

// Forward_Open / Forward_Close through the client.

import (
	"context"
	"time"

	"github.com/tonylturner/cipwire/internal/cip/codes"
	"github.com/tonylturner/cipwire/internal/cip/connmgr"
	"github.com/tonylturner/cipwire/internal/metrics"
)

// Open sends a Forward_Open (or Large_Forward_Open when opts.Large) and, on
// success, routes later requests over the new connection. A failure reply is
// returned in the reply, not as an error; use reply.Err to lift it.
func (c *Client) Open(ctx context.Context, opts connmgr.OpenOptions) (connmgr.ForwardOpenReply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ready(); err != nil {
		return connmgr.ForwardOpenReply{}, err
	}
	req, err := c.conn.BeginOpen(opts)
	if err != nil {
		return connmgr.ForwardOpenReply{}, err
	}

	start := time.Now()
	reply, err := func() (connmgr.ForwardOpenReply, error) {
		data, err := c.session.SendRRData(ctx, req.Message())
		if err != nil {
			return connmgr.ForwardOpenReply{}, err
		}
		reply, err := connmgr.DecodeForwardOpenReply(data, req.Service())
		if err != nil {
			return reply, err
		}
		if reply.Success == nil {
			return reply, nil
		}
		return reply, c.conn.CompleteOpen(*reply.Success)
	}()
	if err != nil || reply.Success == nil {
		if c.conn.State() == connmgr.StateOpening {
			c.conn.FailOpen()
		}
	}
	c.record(metrics.OperationForwardOpen, codes.ServiceName(req.Service()), start, reply.Status.General, err)
	if err != nil {
		return reply, err
	}
	if reply.Success != nil {
		id := c.conn.Identity()
		c.opts.Logger.Verbose("connection open: serial %d O->T 0x%08X T->O 0x%08X", id.ConnectionSerial, id.OTConnectionID, id.TOConnectionID)
	}
	return reply, nil
}

// Close sends req as a Forward_Close. A request that does not name the open
// connection is rejected with connmgr.ErrStaleConnection before anything is
// sent.
func (c *Client) Close(ctx context.Context, req connmgr.ForwardCloseRequest) (connmgr.ForwardCloseReply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return connmgr.ForwardCloseReply{}, err
	}
	return c.closeLocked(ctx, req)
}

// CloseConnection closes the open connection.
func (c *Client) CloseConnection(ctx context.Context) (connmgr.ForwardCloseReply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return connmgr.ForwardCloseReply{}, err
	}
	req, err := c.conn.CloseRequest()
	if err != nil {
		return connmgr.ForwardCloseReply{}, err
	}
	return c.closeLocked(ctx, req)
}

func (c *Client) closeLocked(ctx context.Context, req connmgr.ForwardCloseRequest) (connmgr.ForwardCloseReply, error) {
	if err := c.conn.BeginClose(req); err != nil {
		return connmgr.ForwardCloseReply{}, err
	}

	start := time.Now()
	reply, err := func() (connmgr.ForwardCloseReply, error) {
		data, err := c.session.SendRRData(ctx, req.Message())
		if err != nil {
			return connmgr.ForwardCloseReply{}, err
		}
		reply, err := connmgr.DecodeForwardCloseReply(data)
		if err != nil || reply.Success == nil {
			return reply, err
		}
		return reply, c.conn.CompleteClose(*reply.Success)
	}()
	if c.conn.State() == connmgr.StateClosing {
		c.conn.FailClose()
	}
	c.record(metrics.OperationForwardClose, codes.ServiceName(codes.ServiceForwardClose), start, reply.Status.General, err)
	return reply, err
}
