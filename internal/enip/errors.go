package enip

import (
	"errors"
	"fmt"
)

// ErrCommonPacket matches every CPF framing error.
var ErrCommonPacket = errors.New("common packet format error")

// ItemError reports an unexpected CPF item count, order or type code.
type ItemError struct {
	Index int
	Want  ItemType
	Got   ItemType
	Msg   string
}

func (e *ItemError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("cpf item %d: %s", e.Index, e.Msg)
	}
	return fmt.Sprintf("cpf item %d: expected type %s, got %s", e.Index, e.Want, e.Got)
}

func (e *ItemError) Is(target error) bool { return target == ErrCommonPacket }

// StatusError is a non-success encapsulation status in a reply header.
type StatusError struct {
	Command Command
	Status  Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed: encapsulation status 0x%04X (%s)", e.Command, uint32(e.Status), e.Status)
}
