package client

// Encapsulation session: registration and request/reply exchange.

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/tonylturner/cipwire/internal/cip/codec"
	"github.com/tonylturner/cipwire/internal/enip"
	"github.com/tonylturner/cipwire/internal/logging"
)

var (
	// ErrNotConnected is returned before Connect or after Disconnect.
	ErrNotConnected = errors.New("session not registered")
	// ErrSessionBroken is returned after a transport failure or an abandoned
	// exchange. The session must be reconnected.
	ErrSessionBroken = errors.New("session unusable after transport failure")
)

// ReplyMismatchError reports an encapsulation reply that does not answer the request.
type ReplyMismatchError struct {
	Field string
	Want  uint64
	Got   uint64
}

func (e *ReplyMismatchError) Error() string {
	return fmt.Sprintf("encapsulation reply %s mismatch: got 0x%X, want 0x%X", e.Field, e.Got, e.Want)
}

// Session is one registered encapsulation session over a Transport. It does
// not serialize callers; Client does.
type Session struct {
	transport     Transport
	timeout       time.Duration
	logger        *logging.Logger
	handle        uint32
	senderContext [8]byte
	registered    bool
	broken        bool
}

// NewSession wraps a connected transport.
func NewSession(transport Transport, timeout time.Duration, logger *logging.Logger) *Session {
	s := &Session{transport: transport, timeout: timeout, logger: logger}
	rand.Read(s.senderContext[:])
	return s
}

// Handle returns the session handle assigned by the target.
func (s *Session) Handle() uint32 { return s.handle }

// Usable reports whether the session can carry requests.
func (s *Session) Usable() bool { return s.registered && !s.broken }

// Register sends RegisterSession and stores the assigned handle.
func (s *Session) Register(ctx context.Context) error {
	frame, err := s.exchange(ctx, enip.CommandRegisterSession, enip.NewRegisterSession())
	if err != nil {
		return err
	}
	var reply enip.RegisterSessionData
	if err := codec.Unmarshal(frame.Data, &reply); err != nil {
		return fmt.Errorf("register session reply: %w", err)
	}
	if reply.ProtocolVersion != enip.ProtocolVersion {
		return &ReplyMismatchError{Field: "protocol version", Want: uint64(enip.ProtocolVersion), Got: uint64(reply.ProtocolVersion)}
	}
	if frame.Header.SessionHandle == 0 {
		return &ReplyMismatchError{Field: "session handle", Want: 1, Got: 0}
	}
	s.handle = frame.Header.SessionHandle
	s.registered = true
	s.broken = false
	s.logger.Verbose("registered session 0x%08X", s.handle)
	return nil
}

// Unregister sends UnregisterSession. The target sends no reply.
func (s *Session) Unregister(ctx context.Context) error {
	if !s.registered {
		return nil
	}
	defer func() {
		s.registered = false
		s.handle = 0
	}()
	if s.broken {
		return nil
	}
	data, err := codec.Marshal(s.packet(enip.CommandUnregisterSession, nil))
	if err != nil {
		return err
	}
	s.logger.LogHex("send UnregisterSession", data)
	return s.transport.Send(ctx, data)
}

// SendRRData sends an unconnected message and returns the Message Router
// reply bytes from the unconnected data item.
func (s *Session) SendRRData(ctx context.Context, msg codec.Encodable) ([]byte, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	frame, err := s.exchange(ctx, enip.CommandSendRRData, enip.NewRRData(0, msg))
	if err != nil {
		return nil, err
	}
	var reply enip.CommandReply
	if err := codec.Unmarshal(frame.Data, &reply); err != nil {
		return nil, fmt.Errorf("SendRRData reply: %w", err)
	}
	return enip.DecodeUnconnected(reply.CPF)
}

// SendUnitData sends a connected message and returns the connected reply.
func (s *Session) SendUnitData(ctx context.Context, connectionID uint32, sequence uint16, msg codec.Encodable) (enip.ConnectedMessage, error) {
	if err := s.ready(); err != nil {
		return enip.ConnectedMessage{}, err
	}
	frame, err := s.exchange(ctx, enip.CommandSendUnitData, enip.NewUnitData(connectionID, sequence, msg))
	if err != nil {
		return enip.ConnectedMessage{}, err
	}
	var reply enip.CommandReply
	if err := codec.Unmarshal(frame.Data, &reply); err != nil {
		return enip.ConnectedMessage{}, fmt.Errorf("SendUnitData reply: %w", err)
	}
	return enip.DecodeConnected(reply.CPF)
}

// ListServices asks the target which encapsulation services it supports.
// It needs no registered session.
func (s *Session) ListServices(ctx context.Context) ([]enip.ServiceInfo, error) {
	if s.broken {
		return nil, ErrSessionBroken
	}
	frame, err := s.exchange(ctx, enip.CommandListServices, nil)
	if err != nil {
		return nil, err
	}
	return enip.DecodeListServices(frame.Data)
}

// Invalidate marks the session unusable, for example after a cancelled exchange.
func (s *Session) Invalidate() { s.broken = true }

func (s *Session) ready() error {
	if s.broken {
		return ErrSessionBroken
	}
	if !s.registered {
		return ErrNotConnected
	}
	return nil
}

func (s *Session) packet(cmd enip.Command, data codec.Encodable) enip.Packet {
	return enip.Packet{
		Header: enip.Header{Command: cmd, SessionHandle: s.handle, SenderContext: s.senderContext},
		Data:   data,
	}
}

// exchange sends one request frame and reads its reply. Any transport
// failure breaks the session: the reply stream is no longer in step.
func (s *Session) exchange(ctx context.Context, cmd enip.Command, data codec.Encodable) (enip.Frame, error) {
	req, err := codec.Marshal(s.packet(cmd, data))
	if err != nil {
		return enip.Frame{}, fmt.Errorf("encode %s: %w", cmd, err)
	}
	s.logger.LogHex("send "+cmd.String(), req)
	if err := s.transport.Send(ctx, req); err != nil {
		s.broken = true
		return enip.Frame{}, fmt.Errorf("send %s: %w", cmd, err)
	}
	raw, err := s.transport.Receive(ctx, s.timeout)
	if err != nil {
		s.broken = true
		return enip.Frame{}, fmt.Errorf("receive %s reply: %w", cmd, err)
	}
	s.logger.LogHex("recv "+cmd.String(), raw)

	frame, err := enip.DecodeFrame(raw)
	if err != nil {
		s.broken = true
		return frame, fmt.Errorf("decode %s reply: %w", cmd, err)
	}
	h := frame.Header
	if h.Command != cmd {
		s.broken = true
		return frame, &ReplyMismatchError{Field: "command", Want: uint64(cmd), Got: uint64(h.Command)}
	}
	if h.SenderContext != s.senderContext {
		s.broken = true
		return frame, &ReplyMismatchError{Field: "sender context", Want: contextWord(s.senderContext), Got: contextWord(h.SenderContext)}
	}
	if h.Status != enip.StatusSuccess {
		return frame, &enip.StatusError{Command: cmd, Status: h.Status}
	}
	if cmd != enip.CommandRegisterSession && cmd != enip.CommandListServices && h.SessionHandle != s.handle {
		s.broken = true
		return frame, &ReplyMismatchError{Field: "session handle", Want: uint64(s.handle), Got: uint64(h.SessionHandle)}
	}
	return frame, nil
}

func contextWord(c [8]byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(c[i])
	}
	return v
}
