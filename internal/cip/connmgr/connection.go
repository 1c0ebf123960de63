package connmgr

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/tonylturner/cipwire/internal/cip/codec"
	"github.com/tonylturner/cipwire/internal/cip/epath"
)

// State is the lifecycle state of a connection.
type State int

const (
	StateUnopened State = iota
	StateOpening
	StateOpen
	StateOpenFailed
	StateClosing
	StateCloseFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateOpenFailed:
		return "open-failed"
	case StateClosing:
		return "closing"
	case StateCloseFailed:
		return "close-failed"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Identity identifies an open connection to its Forward_Close counterpart.
type Identity struct {
	OTConnectionID   uint32
	TOConnectionID   uint32
	ConnectionSerial uint16
	VendorID         uint16
	OriginatorSerial uint32
	Path             epath.EPath
}

// Matches reports whether a close request names this connection. Paths are
// compared by encoding.
func (id Identity) Matches(req ForwardCloseRequest) bool {
	if id.ConnectionSerial != req.ConnectionSerial ||
		id.VendorID != req.VendorID ||
		id.OriginatorSerial != req.OriginatorSerial {
		return false
	}
	a, errA := codec.Marshal(id.Path)
	b, errB := codec.Marshal(req.ConnectionPath)
	return errA == nil && errB == nil && bytes.Equal(a, b)
}

// Connection tracks one explicit messaging connection.
//
// Lifecycle: Unopened -> Opening -> Open -> Closing -> Closed. A failed open
// lands in OpenFailed and may be retried with a new serial; a failed close
// lands in CloseFailed, which still behaves as open.
type Connection struct {
	mu       sync.Mutex
	state    State
	pending  ForwardOpenRequest
	id       Identity
	otAPI    uint32
	toAPI    uint32
	seq      uint16
	unsynced bool
	serials  SerialSource
}

// NewConnection returns an unopened connection. A nil source uses RandomSerialSource.
func NewConnection(serials SerialSource) *Connection {
	if serials == nil {
		serials = RandomSerialSource{}
	}
	return &Connection{serials: serials}
}

func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsOpen reports whether connected sends are allowed.
func (c *Connection) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isOpen()
}

func (c *Connection) isOpen() bool {
	return c.state == StateOpen || c.state == StateCloseFailed
}

// Identity returns the identity stored by the last successful open.
func (c *Connection) Identity() Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// APIs returns the actual packet intervals negotiated at open.
func (c *Connection) APIs() (ot, to uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.otAPI, c.toAPI
}

// Unsynced reports whether an exchange was abandoned mid-flight.
func (c *Connection) Unsynced() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unsynced
}

// BeginOpen moves to Opening and returns the request to send. A zero serial
// in opts is replaced by the next serial from the source.
func (c *Connection) BeginOpen(opts OpenOptions) (ForwardOpenRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateUnopened, StateOpenFailed, StateClosed:
	default:
		return ForwardOpenRequest{}, &TransitionError{Op: "forward open", State: c.state}
	}
	if opts.ConnectionSerial == 0 {
		opts.ConnectionSerial = c.serials.NextSerial()
	}
	c.pending = ForwardOpenRequest{OpenOptions: opts}
	c.state = StateOpening
	return c.pending, nil
}

// CompleteOpen records a successful reply and moves to Open. The reply must
// echo the pending request's serial, vendor and originator serial.
func (c *Connection) CompleteOpen(reply ForwardOpenSuccess) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpening {
		return &TransitionError{Op: "complete open", State: c.state}
	}
	p := c.pending
	if reply.ConnectionSerial != p.ConnectionSerial || reply.VendorID != p.VendorID || reply.OriginatorSerial != p.OriginatorSerial {
		c.state = StateOpenFailed
		return fmt.Errorf("%w: serial %d/%d vendor 0x%04X/0x%04X", ErrIdentityMismatch,
			reply.ConnectionSerial, p.ConnectionSerial, reply.VendorID, p.VendorID)
	}
	c.id = Identity{
		OTConnectionID:   reply.OTConnectionID,
		TOConnectionID:   reply.TOConnectionID,
		ConnectionSerial: p.ConnectionSerial,
		VendorID:         p.VendorID,
		OriginatorSerial: p.OriginatorSerial,
		Path:             p.ConnectionPath,
	}
	c.otAPI, c.toAPI = reply.OTAPI, reply.TOAPI
	c.seq = 0
	c.unsynced = false
	c.state = StateOpen
	return nil
}

// FailOpen records a failed or unanswered open.
func (c *Connection) FailOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpening {
		return &TransitionError{Op: "fail open", State: c.state}
	}
	c.state = StateOpenFailed
	return nil
}

// NextSequence returns the sequence count for the next connected send:
// 1 for the first send, then +1 each call.
func (c *Connection) NextSequence() (uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isOpen() {
		return 0, &TransitionError{Op: "connected send", State: c.state}
	}
	if c.unsynced {
		return 0, ErrConnectionUnsynced
	}
	if c.seq == 0xFFFF {
		return 0, ErrSequenceExhausted
	}
	c.seq++
	if c.state == StateCloseFailed {
		c.state = StateOpen
	}
	return c.seq, nil
}

// Sequence returns the last sequence count handed out.
func (c *Connection) Sequence() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// MarkUnsynced flags the connection after an abandoned connected exchange.
// Further sends fail until the connection is reopened.
func (c *Connection) MarkUnsynced() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsynced = true
}

// CloseRequest builds the Forward_Close for the open connection.
func (c *Connection) CloseRequest() (ForwardCloseRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isOpen() {
		return ForwardCloseRequest{}, &TransitionError{Op: "forward close", State: c.state}
	}
	return ForwardCloseRequest{
		PriorityTimeTick: c.pending.PriorityTimeTick,
		TimeoutTicks:     c.pending.TimeoutTicks,
		ConnectionSerial: c.id.ConnectionSerial,
		VendorID:         c.id.VendorID,
		OriginatorSerial: c.id.OriginatorSerial,
		ConnectionPath:   c.id.Path,
	}, nil
}

// BeginClose validates req against the open connection and moves to
// Closing. A request naming another connection fails with ErrStaleConnection
// and leaves the state unchanged.
func (c *Connection) BeginClose(req ForwardCloseRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isOpen() {
		return &TransitionError{Op: "forward close", State: c.state}
	}
	if !c.id.Matches(req) {
		return fmt.Errorf("%w: serial %d, open connection serial %d", ErrStaleConnection, req.ConnectionSerial, c.id.ConnectionSerial)
	}
	c.state = StateClosing
	return nil
}

// CompleteClose moves to Closed and clears the identity.
func (c *Connection) CompleteClose(reply ForwardCloseSuccess) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateClosing {
		return &TransitionError{Op: "complete close", State: c.state}
	}
	if reply.ConnectionSerial != c.id.ConnectionSerial {
		c.state = StateCloseFailed
		return fmt.Errorf("%w: close reply serial %d, want %d", ErrIdentityMismatch, reply.ConnectionSerial, c.id.ConnectionSerial)
	}
	c.id = Identity{}
	c.seq = 0
	c.unsynced = false
	c.state = StateClosed
	return nil
}

// FailClose records a failed or unanswered close. The connection stays usable.
func (c *Connection) FailClose() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateClosing {
		return &TransitionError{Op: "fail close", State: c.state}
	}
	c.state = StateCloseFailed
	return nil
}
