package protocol

import (
	"fmt"

	"github.com/tonylturner/cipwire/internal/cip/codec"
	"github.com/tonylturner/cipwire/internal/cip/codes"
)

// Status is the general status of a reply plus an optional extended status word.
type Status struct {
	General  uint8
	Extended *uint16
}

// NewStatus returns a status with no extended word.
func NewStatus(general uint8) Status { return Status{General: general} }

// WithExtended returns a copy of s carrying ext as its extended word.
func (s Status) WithExtended(ext uint16) Status {
	s.Extended = &ext
	return s
}

// IsOK reports general status 0.
func (s Status) IsOK() bool { return s.General == codes.StatusSuccess }

// IsErr reports any non-zero general status, including partial transfer.
func (s Status) IsErr() bool { return !s.IsOK() }

// IsPartial reports the "more data" status used by fragmented services.
func (s Status) IsPartial() bool { return s.General == codes.StatusPartialTransfer }

// ExtendedCode returns the extended word, if present.
func (s Status) ExtendedCode() (uint16, bool) {
	if s.Extended == nil {
		return 0, false
	}
	return *s.Extended, true
}

// IsRoutingError reports statuses whose reply carries a remaining path size
// trailer instead of service data (Unconnected_Send error replies).
func (s Status) IsRoutingError() bool {
	switch s.General {
	case codes.StatusResourceUnavailable, codes.StatusPathSegmentError:
		return true
	case codes.StatusConnectionFailure:
		ext, ok := s.ExtendedCode()
		if !ok {
			return false
		}
		switch ext {
		case codes.ExtUnconnectedSendTimeout,
			codes.ExtInvalidPortInPath,
			codes.ExtInvalidLinkAddress,
			codes.ExtInvalidSegmentInPath:
			return true
		}
	}
	return false
}

// Equal compares general and extended codes.
func (s Status) Equal(o Status) bool {
	a, aok := s.ExtendedCode()
	b, bok := o.ExtendedCode()
	return s.General == o.General && aok == bok && a == b
}

func (s Status) String() string {
	msg := fmt.Sprintf("0x%02X (%s)", s.General, codes.StatusName(s.General))
	if ext, ok := s.ExtendedCode(); ok {
		if name, known := codes.ExtendedStatusName(ext); known && s.General == codes.StatusConnectionFailure {
			msg += fmt.Sprintf(", extended 0x%04X (%s)", ext, name)
		} else {
			msg += fmt.Sprintf(", extended 0x%04X", ext)
		}
	}
	return msg
}

// Err returns nil for a successful status and a *StatusError otherwise.
// Service is left zero; callers that know the service use StatusError directly.
func (s Status) Err() error {
	if s.IsOK() {
		return nil
	}
	return &StatusError{Status: s}
}

// Encode writes general status, extended word count and the extended word.
func (s Status) Encode(buf *codec.Buffer) error {
	buf.PutUint8(s.General)
	if ext, ok := s.ExtendedCode(); ok {
		buf.PutUint8(1)
		buf.PutUint16(ext)
		return nil
	}
	buf.PutUint8(0)
	return nil
}

func (s Status) BytesCount() int {
	if s.Extended != nil {
		return 4
	}
	return 2
}

// Decode reads a status block. Only zero or one extended word is accepted.
func (s *Status) Decode(d *codec.Decoder) error {
	if err := d.Expect("status", 2); err != nil {
		return err
	}
	general := d.Uint8()
	words := int(d.Uint8())
	if words > 1 {
		return codec.InvalidValue("extended status size", 1, words)
	}
	if err := d.Expect("extended status", words*2); err != nil {
		return err
	}
	if words == 0 {
		*s = Status{General: general}
		return nil
	}
	*s = NewStatus(general).WithExtended(d.Uint16())
	return nil
}
