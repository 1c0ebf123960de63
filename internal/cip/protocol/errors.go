package protocol

import (
	"errors"
	"fmt"

	"github.com/tonylturner/cipwire/internal/cip/codes"
)

// ErrProtocol matches every protocol-level error in this package.
var ErrProtocol = errors.New("cip protocol error")

// ServiceMismatchError reports a reply whose service code does not answer the request.
type ServiceMismatchError struct {
	Request codes.ServiceCode
	Want    codes.ServiceCode
	Got     codes.ServiceCode
}

func (e *ServiceMismatchError) Error() string {
	return fmt.Sprintf("unexpected reply service 0x%02X to %s request, want 0x%02X",
		uint8(e.Got), codes.ServiceName(e.Request), uint8(e.Want))
}

func (e *ServiceMismatchError) Is(target error) bool { return target == ErrProtocol }

// StatusError lifts a non-success CIP status into an error.
type StatusError struct {
	Service codes.ServiceCode
	Status  Status
}

func (e *StatusError) Error() string {
	if e.Service == 0 {
		return fmt.Sprintf("cip status %s", e.Status)
	}
	return fmt.Sprintf("%s failed: status %s", codes.ServiceName(e.Service.Request()), e.Status)
}

// IsStatus reports whether err carries a CIP status with the given general code.
func IsStatus(err error, general uint8) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status.General == general
}
