package client

// Client for CIP explicit messaging over EtherNet/IP

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/tonylturner/cipwire/internal/cip/codec"
	"github.com/tonylturner/cipwire/internal/cip/codes"
	"github.com/tonylturner/cipwire/internal/cip/connmgr"
	"github.com/tonylturner/cipwire/internal/cip/epath"
	"github.com/tonylturner/cipwire/internal/cip/protocol"
	"github.com/tonylturner/cipwire/internal/enip"
	cipErrors "github.com/tonylturner/cipwire/internal/errors"
	"github.com/tonylturner/cipwire/internal/logging"
	"github.com/tonylturner/cipwire/internal/metrics"
)

// DefaultTimeout bounds each request/reply exchange.
const DefaultTimeout = 5 * time.Second

// Options configure a Client. Zero values select defaults.
type Options struct {
	Transport Transport
	Timeout   time.Duration
	Serials   connmgr.SerialSource
	Logger    *logging.Logger
	Metrics   *metrics.Sink
}

// Client drives one encapsulation session and at most one explicit
// messaging connection. Exchanges are serialized: a request is never sent
// before the previous reply has been received.
//
// While the connection is open, requests travel as connected messages
// (SendUnitData); otherwise they are unconnected (SendRRData).
type Client struct {
	mu      sync.Mutex
	opts    Options
	target  string
	session *Session
	conn    *connmgr.Connection
}

// NewClient creates a client. Call Connect before sending.
func NewClient(opts Options) *Client {
	if opts.Transport == nil {
		opts.Transport = NewTCPTransport()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Serials == nil {
		opts.Serials = connmgr.RandomSerialSource{}
	}
	return &Client{opts: opts, conn: connmgr.NewConnection(opts.Serials)}
}

// Connect opens the transport to addr ("host:port") and registers a session.
func (c *Client) Connect(ctx context.Context, addr string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil && c.session.Usable() {
		return fmt.Errorf("already connected to %s", c.target)
	}
	if c.session != nil {
		c.opts.Transport.Disconnect()
		c.session = nil
	}

	host, port := splitTarget(addr)
	start := time.Now()
	if err := c.opts.Transport.Connect(ctx, addr); err != nil {
		return cipErrors.WrapNetworkError(err, host, port)
	}

	session := NewSession(c.opts.Transport, c.opts.Timeout, c.opts.Logger)
	err := session.Register(ctx)
	c.record(metrics.OperationRegisterSession, "RegisterSession", start, 0, err)
	if err != nil {
		c.opts.Transport.Disconnect()
		return cipErrors.WrapNetworkError(err, host, port)
	}

	c.target = addr
	c.session = session
	c.conn = connmgr.NewConnection(c.opts.Serials)
	c.opts.Logger.Info("connected to %s (session 0x%08X)", addr, session.Handle())
	return nil
}

// Disconnect closes an open connection (best effort), unregisters the
// session and closes the transport.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return nil
	}
	if c.conn.IsOpen() && c.session.Usable() {
		if req, err := c.conn.CloseRequest(); err == nil {
			if _, err := c.closeLocked(ctx, req); err != nil {
				c.opts.Logger.Verbose("forward close during disconnect: %v", err)
			}
		}
	}
	unregErr := c.session.Unregister(ctx)
	discErr := c.opts.Transport.Disconnect()
	c.session = nil
	if unregErr != nil {
		return unregErr
	}
	return discErr
}

// Connection exposes the connection state machine.
func (c *Client) Connection() *connmgr.Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// Target returns the address passed to Connect.
func (c *Client) Target() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// Send delivers req and returns the raw reply. A non-success CIP status is
// returned in the reply, not as an error. Reply data borrows from a buffer
// owned by this call.
func (c *Client) Send(ctx context.Context, req protocol.Request) (protocol.RawReply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendLocked(ctx, req)
}

func (c *Client) sendLocked(ctx context.Context, req protocol.Request) (protocol.RawReply, error) {
	op := metrics.OperationSend
	if c.conn.IsOpen() {
		op = metrics.OperationConnectedSend
	}
	start := time.Now()
	reply, err := c.roundTrip(ctx, req)
	c.record(op, codes.ServiceName(req.ServiceCode()), start, reply.Status.General, err)
	return reply, err
}

func (c *Client) roundTrip(ctx context.Context, req protocol.Request) (protocol.RawReply, error) {
	data, err := c.invoke(ctx, req)
	if err != nil {
		return protocol.RawReply{}, err
	}
	reply, err := protocol.DecodeRawReply(data)
	if err != nil {
		return reply, fmt.Errorf("%s reply: %w", codes.ServiceName(req.ServiceCode()), err)
	}
	if err := reply.ExpectService(req.ServiceCode()); err != nil {
		return reply, err
	}
	return reply, nil
}

// SendRouted wraps req in an Unconnected_Send through the local Connection
// Manager along route. A routing failure comes back as the Unconnected_Send
// reply with its remaining path size.
func (c *Client) SendRouted(ctx context.Context, req protocol.Request, route epath.EPath) (protocol.RawReply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ready(); err != nil {
		return protocol.RawReply{}, err
	}
	start := time.Now()
	data, err := c.session.SendRRData(ctx, protocol.NewUnconnectedSend(req, route))
	if err != nil {
		c.record(metrics.OperationSend, "Unconnected_Send", start, 0, err)
		return protocol.RawReply{}, err
	}
	reply, err := protocol.DecodeRawReply(data)
	if err == nil && reply.ReplyService != codes.ServiceUnconnectedSend.Reply() {
		err = reply.ExpectService(req.ServiceCode())
	}
	c.record(metrics.OperationSend, "Unconnected_Send", start, reply.Status.General, err)
	return reply, err
}

// SendConnected delivers req over the open connection. It fails when no
// connection is open.
func (c *Client) SendConnected(ctx context.Context, req protocol.Request) (protocol.RawReply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.conn.IsOpen() {
		return protocol.RawReply{}, &connmgr.TransitionError{Op: "connected send", State: c.conn.State()}
	}
	return c.sendLocked(ctx, req)
}

// Call sends req and decodes the reply data as R. Error replies carry no data
// and leave Data at its zero value.
func Call[R any, PR interface {
	*R
	codec.Decodable
}](ctx context.Context, c *Client, req protocol.Request) (protocol.MessageReply[R], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := c.sendLocked(ctx, req)
	reply := protocol.MessageReply[R]{ReplyService: raw.ReplyService, Status: raw.Status, RemainingPathSize: raw.RemainingPathSize}
	if err != nil {
		return reply, err
	}
	if raw.Status.IsErr() && !raw.Status.IsPartial() {
		return reply, nil
	}
	if err := PR(&reply.Data).Decode(codec.NewDecoder(raw.Data)); err != nil {
		return reply, fmt.Errorf("%s reply data: %w", codes.ServiceName(req.ServiceCode()), err)
	}
	return reply, nil
}

// GetAttributeSingle reads one attribute and returns an owned copy of its bytes.
func (c *Client) GetAttributeSingle(ctx context.Context, path epath.EPath) ([]byte, error) {
	reply, err := c.Send(ctx, protocol.NewRequest(codes.ServiceGetAttributeSingle, path, codec.Empty{}))
	if err != nil {
		return nil, err
	}
	if err := reply.Err(); err != nil {
		return nil, err
	}
	return reply.Data.Clone(), nil
}

// SetAttributeSingle writes one attribute.
func (c *Client) SetAttributeSingle(ctx context.Context, path epath.EPath, value []byte) error {
	reply, err := c.Send(ctx, protocol.NewRequest(codes.ServiceSetAttributeSingle, path, codec.RawBytes(value)))
	if err != nil {
		return err
	}
	return reply.Err()
}

// ReadTag reads elements of tag in a single Read_Tag exchange.
func (c *Client) ReadTag(ctx context.Context, tag epath.EPath, elements uint16) (TagValue, error) {
	reply, err := Call[TagValue](ctx, c, NewReadTagRequest(tag, elements))
	if err != nil {
		return TagValue{}, err
	}
	if err := reply.Err(); err != nil {
		return TagValue{}, err
	}
	reply.Data.Data = codec.RawBytes(reply.Data.Data).Clone()
	return reply.Data, nil
}

// WriteTag writes value to tag in a single Write_Tag exchange.
func (c *Client) WriteTag(ctx context.Context, tag epath.EPath, value TagValue, elements uint16) error {
	reply, err := c.Send(ctx, NewWriteTagRequest(tag, value, elements))
	if err != nil {
		return err
	}
	return reply.Err()
}

// ListServices queries the encapsulation services of the target.
func (c *Client) ListServices(ctx context.Context) ([]enip.ServiceInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, ErrNotConnected
	}
	return c.session.ListServices(ctx)
}

func (c *Client) ready() error {
	if c.session == nil {
		return ErrNotConnected
	}
	if !c.session.Usable() {
		return ErrSessionBroken
	}
	return nil
}

// invoke performs one exchange and returns the Message Router reply bytes.
func (c *Client) invoke(ctx context.Context, req codec.Encodable) ([]byte, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !c.conn.IsOpen() {
		return c.session.SendRRData(ctx, req)
	}

	seq, err := c.conn.NextSequence()
	if err != nil {
		return nil, err
	}
	id := c.conn.Identity()
	msg, err := c.session.SendUnitData(ctx, id.OTConnectionID, seq, req)
	if err != nil {
		if !c.session.Usable() || ctx.Err() != nil {
			c.conn.MarkUnsynced()
		}
		return nil, err
	}
	if msg.ConnectionID != id.TOConnectionID {
		c.conn.MarkUnsynced()
		return nil, &ReplyMismatchError{Field: "connection id", Want: uint64(id.TOConnectionID), Got: uint64(msg.ConnectionID)}
	}
	if msg.Sequence != seq {
		c.conn.MarkUnsynced()
		return nil, &ReplyMismatchError{Field: "sequence count", Want: uint64(seq), Got: uint64(msg.Sequence)}
	}
	return msg.Data, nil
}

func (c *Client) record(op metrics.OperationType, service string, start time.Time, status uint8, err error) {
	rtt := float64(time.Since(start).Microseconds()) / 1000.0
	c.opts.Logger.LogOperation(string(op), c.target, service, err == nil && status == 0, rtt, status, err)
	if c.opts.Metrics == nil {
		return
	}
	m := metrics.Metric{
		Timestamp: start,
		Operation: op,
		Target:    c.target,
		Service:   service,
		Success:   err == nil && status == 0,
		RTTMs:     rtt,
		Status:    status,
	}
	if err != nil {
		m.Error = err.Error()
	}
	c.opts.Metrics.Record(m)
}

func splitTarget(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, enip.DefaultPort
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, enip.DefaultPort
	}
	return host, port
}
