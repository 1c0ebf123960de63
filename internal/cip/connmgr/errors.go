package connmgr

import (
	"errors"
	"fmt"

	"github.com/tonylturner/cipwire/internal/cip/codes"
	"github.com/tonylturner/cipwire/internal/cip/protocol"
)

var (
	// ErrInvalidTransition matches every *TransitionError.
	ErrInvalidTransition = errors.New("invalid connection state transition")
	// ErrStaleConnection rejects a Forward_Close whose identity does not
	// match the currently open connection.
	ErrStaleConnection = errors.New("forward close does not match the open connection")
	// ErrSequenceExhausted is returned once sequence 0xFFFF has been used.
	ErrSequenceExhausted = errors.New("connection sequence count exhausted")
	// ErrConnectionUnsynced is returned after an abandoned exchange; the
	// connection must be closed and reopened.
	ErrConnectionUnsynced = errors.New("connection sequence unsynchronized after abandoned exchange")
	// ErrIdentityMismatch reports a Forward_Open reply for another request.
	ErrIdentityMismatch = errors.New("forward open reply does not match request")
)

// TransitionError reports an operation attempted in the wrong state.
type TransitionError struct {
	Op    string
	State State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s not allowed in state %s", e.Op, e.State)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// RequestFailError is a failed Forward_Open or Forward_Close.
type RequestFailError struct {
	Service codes.ServiceCode
	Status  protocol.Status
	Fail    *ForwardRequestFail
}

func (e *RequestFailError) Error() string {
	msg := fmt.Sprintf("%s failed: status %s", codes.ServiceName(e.Service), e.Status)
	if e.Fail != nil && e.Fail.RemainingPathSize != nil {
		msg += fmt.Sprintf(", remaining path size %d", *e.Fail.RemainingPathSize)
	}
	return msg
}

// Unwrap exposes the status as a *protocol.StatusError.
func (e *RequestFailError) Unwrap() error {
	return &protocol.StatusError{Service: e.Service.Reply(), Status: e.Status}
}
