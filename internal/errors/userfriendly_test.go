package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/tonylturner/cipwire/internal/cip/codec"
	"github.com/tonylturner/cipwire/internal/cip/codes"
	"github.com/tonylturner/cipwire/internal/cip/connmgr"
	"github.com/tonylturner/cipwire/internal/cip/protocol"
	"github.com/tonylturner/cipwire/internal/enip"
)

func TestUserFriendlyErrorFormat(t *testing.T) {
	full := UserFriendlyError{
		Message: "Forward_Open failed",
		Reason:  "Connection in use",
		Hint:    "close the stale connection",
		Try:     "cipwire open --target 10.0.0.1",
		Err:     fmt.Errorf("status 0x01"),
	}
	msg := full.Error()
	for _, want := range []string{"Forward_Open failed", "\n  Reason: Connection in use", "\n  Hint: close", "\n  Try: cipwire open", "\n  Details: status 0x01"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, want to contain %q", msg, want)
		}
	}

	bare := UserFriendlyError{Message: "msg"}
	if bare.Error() != "msg" {
		t.Errorf("bare Error() = %q", bare.Error())
	}
	if bare.Unwrap() != nil {
		t.Error("Unwrap without Err should be nil")
	}
	if !errors.Is(full, full.Err) {
		t.Error("errors.Is should reach the wrapped error")
	}
}

func TestWrapNilIsNil(t *testing.T) {
	if WrapNetworkError(nil, "10.0.0.1", 44818) != nil || WrapCIPError(nil, "read") != nil || WrapConfigError(nil, "x.yaml") != nil {
		t.Error("wrapping nil should return nil")
	}
}

func TestWrapNetworkErrorText(t *testing.T) {
	tests := []struct {
		err  string
		want string
	}{
		{"dial tcp 10.0.0.1:44818: i/o timeout", "Connection timeout"},
		{"dial tcp: connect: connection refused", "Connection refused"},
		{"dial tcp: connect: no route to host", "No route to host"},
		{"read tcp: connection reset by peer", "Connection reset"},
		{"short write", "Network communication failed"},
	}
	for _, tt := range tests {
		t.Run(tt.err, func(t *testing.T) {
			ufe := WrapNetworkError(errors.New(tt.err), "10.0.0.1", 44818).(UserFriendlyError)
			if !strings.HasPrefix(ufe.Reason, tt.want) {
				t.Errorf("reason = %q, want prefix %q", ufe.Reason, tt.want)
			}
			if !strings.Contains(ufe.Message, "10.0.0.1:44818") {
				t.Errorf("message = %q", ufe.Message)
			}
		})
	}
}

func TestWrapCIPErrorText(t *testing.T) {
	tests := []struct {
		err  string
		want string
	}{
		{"reply carried status 0x08", "CIP error status code"},
		{"invalid packet length", "malformed"},
		{"decode tag value", "malformed"},
		{"timeout waiting for reply", "within timeout"},
		{"unexpected", "CIP protocol error occurred"},
	}
	for _, tt := range tests {
		t.Run(tt.err, func(t *testing.T) {
			ufe := WrapCIPError(errors.New(tt.err), "Read_Tag Counter").(UserFriendlyError)
			if !strings.Contains(ufe.Reason, tt.want) {
				t.Errorf("reason = %q, want to contain %q", ufe.Reason, tt.want)
			}
			if ufe.Message != "CIP operation failed: Read_Tag Counter" {
				t.Errorf("message = %q", ufe.Message)
			}
		})
	}
}

func TestWrapConfigError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if WrapConfigError(nil, "config.yaml") != nil {
			t.Error("expected nil")
		}
	})

	t.Run("wraps config error", func(t *testing.T) {
		err := WrapConfigError(fmt.Errorf("invalid yaml"), "cipwire.yaml")
		ufe := err.(UserFriendlyError)
		if !strings.Contains(ufe.Message, "cipwire.yaml") {
			t.Errorf("message should contain config path, got %q", ufe.Message)
		}
		if ufe.Reason != "invalid yaml" {
			t.Errorf("reason should be inner error message, got %q", ufe.Reason)
		}
		if !strings.Contains(ufe.Try, "cipwire config validate") {
			t.Errorf("try should name the validate command, got %q", ufe.Try)
		}
	})
}

func TestWrapNetworkErrorTyped(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"deadline", fmt.Errorf("register: %w", context.DeadlineExceeded), "timeout"},
		{"encapsulation status", &enip.StatusError{Command: enip.CommandRegisterSession, Status: enip.StatusUnsupportedProtocol}, "rejected RegisterSession"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ufe := WrapNetworkError(tt.err, "10.0.0.1", 44818).(UserFriendlyError)
			if !strings.Contains(ufe.Reason, tt.want) {
				t.Errorf("reason = %q, want to contain %q", ufe.Reason, tt.want)
			}
			if !strings.Contains(ufe.Try, "cipwire services --target 10.0.0.1") {
				t.Errorf("try = %q", ufe.Try)
			}
		})
	}
}

func TestWrapCIPErrorTyped(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		reason   string
		hintPart string
	}{
		{
			name:     "status with extended",
			err:      &protocol.StatusError{Service: codes.ServiceForwardOpen.Reply(), Status: protocol.NewStatus(codes.StatusConnectionFailure).WithExtended(codes.ExtConnectionInUse)},
			reason:   "Connection in use",
			hintPart: "not support",
		},
		{
			name:     "routing error",
			err:      &protocol.StatusError{Status: protocol.NewStatus(codes.StatusPathSegmentError)},
			reason:   "Device returned status",
			hintPart: "route",
		},
		{
			name:     "stale close",
			err:      fmt.Errorf("close: %w", connmgr.ErrStaleConnection),
			reason:   "does not name the open connection",
			hintPart: "not support",
		},
		{
			name:     "malformed reply",
			err:      codec.InvalidData("reply", "trailing bytes"),
			reason:   "malformed",
			hintPart: "not support",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ufe := WrapCIPError(tt.err, "read").(UserFriendlyError)
			if !strings.Contains(ufe.Reason, tt.reason) {
				t.Errorf("reason = %q, want to contain %q", ufe.Reason, tt.reason)
			}
			if !strings.Contains(ufe.Hint, tt.hintPart) {
				t.Errorf("hint = %q, want to contain %q", ufe.Hint, tt.hintPart)
			}
			if !errors.Is(ufe, tt.err) {
				t.Error("wrapped error should unwrap to the cause")
			}
		})
	}
}
