package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/tonylturner/cipwire/internal/cip/codec"
	"github.com/tonylturner/cipwire/internal/cip/codes"
	"github.com/tonylturner/cipwire/internal/cip/connmgr"
	"github.com/tonylturner/cipwire/internal/cip/protocol"
	"github.com/tonylturner/cipwire/internal/enip"
)

// UserFriendlyError provides user-friendly error messages with context and hints
type UserFriendlyError struct {
	Message string
	Reason  string
	Hint    string
	Try     string
	Err     error
}

func (e UserFriendlyError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Message)
	if e.Reason != "" {
		buf.WriteString("\n  Reason: " + e.Reason)
	}
	if e.Hint != "" {
		buf.WriteString("\n  Hint: " + e.Hint)
	}
	if e.Try != "" {
		buf.WriteString("\n  Try: " + e.Try)
	}
	if e.Err != nil {
		buf.WriteString("\n  Details: " + e.Err.Error())
	}
	return buf.String()
}

func (e UserFriendlyError) Unwrap() error {
	return e.Err
}

// WrapNetworkError wraps connect and session errors with the target address.
func WrapNetworkError(err error, ip string, port int) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Failed to communicate with device at %s:%d", ip, port),
		Reason:  extractNetworkReason(err),
		Hint:    "Device may not be an EtherNet/IP device, or there may be a network connectivity issue",
		Try:     fmt.Sprintf("cipwire services --target %s --port %d", ip, port),
		Err:     err,
	}
}

// WrapCIPError wraps a failed CIP request.
func WrapCIPError(err error, operation string) error {
	if err == nil {
		return nil
	}

	hint := "The device may not support this operation, or the CIP path may be incorrect"
	var se *protocol.StatusError
	if errors.As(err, &se) && se.Status.IsRoutingError() {
		hint = "The route did not reach the target; check the port/slot route"
	}
	return UserFriendlyError{
		Message: fmt.Sprintf("CIP operation failed: %s", operation),
		Reason:  extractCIPReason(err),
		Hint:    hint,
		Try:     "Check the class/instance/attribute or tag name, and the route in your config file",
		Err:     err,
	}
}

// WrapConfigError wraps configuration errors with user-friendly context
func WrapConfigError(err error, configPath string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Configuration error in %s", configPath),
		Reason:  err.Error(),
		Hint:    "See cipwire.example.yaml for the configuration layout",
		Try:     fmt.Sprintf("Validate your config: cipwire config validate --config %s", configPath),
		Err:     err,
	}
}

func extractNetworkReason(err error) string {
	var encap *enip.StatusError
	if errors.As(err, &encap) {
		return fmt.Sprintf("Device rejected %s: %s", encap.Command, enip.StatusName(encap.Status))
	}

	var netErr net.Error
	timedOut := errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout())

	errStr := err.Error()
	switch {
	case timedOut || strings.Contains(errStr, "timeout"):
		return "Connection timeout - device may be offline or unreachable"
	case strings.Contains(errStr, "connection refused"):
		return "Connection refused - device may not be listening on this port"
	case strings.Contains(errStr, "no route to host"):
		return "No route to host - network routing issue or device unreachable"
	case strings.Contains(errStr, "connection reset"):
		return "Connection reset - device closed the connection unexpectedly"
	}

	return "Network communication failed"
}

func extractCIPReason(err error) string {
	if errors.Is(err, connmgr.ErrStaleConnection) {
		return "Forward_Close does not name the open connection"
	}
	var se *protocol.StatusError
	if errors.As(err, &se) {
		reason := "Device returned status " + codes.StatusName(se.Status.General)
		if ext, ok := se.Status.ExtendedCode(); ok {
			if name, known := codes.ExtendedStatusName(ext); known {
				reason += " (" + name + ")"
			} else {
				reason += fmt.Sprintf(" (extended 0x%04X)", ext)
			}
		}
		return reason
	}
	if errors.Is(err, codec.ErrInvalidLength) || errors.Is(err, codec.ErrInvalidData) || errors.Is(err, codec.ErrInvalidValue) {
		return "Received invalid or malformed response from device"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "Device did not respond within timeout period"
	}

	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "status 0x"):
		return "Device returned a CIP error status code"
	case strings.Contains(errStr, "invalid packet") || strings.Contains(errStr, "decode"):
		return "Received invalid or malformed response from device"
	case strings.Contains(errStr, "timeout"):
		return "Device did not respond within timeout period"
	}

	return "CIP protocol error occurred"
}
