package connmgr

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
)

// SerialSource supplies connection serial numbers for Forward Open.
type SerialSource interface {
	NextSerial() uint16
}

// RandomSerialSource draws serial numbers from crypto/rand. Zero is skipped
// so a serial is never mistaken for "unset".
type RandomSerialSource struct{}

func (RandomSerialSource) NextSerial() uint16 {
	var b [2]byte
	for {
		if _, err := rand.Read(b[:]); err != nil {
			panic("connmgr: crypto/rand unavailable: " + err.Error())
		}
		if v := binary.LittleEndian.Uint16(b[:]); v != 0 {
			return v
		}
	}
}

// SequenceSerialSource hands out Start, Start+1, ... for deterministic tests.
type SequenceSerialSource struct {
	mu   sync.Mutex
	next uint16
}

// NewSequenceSerialSource returns a source whose first serial is start.
func NewSequenceSerialSource(start uint16) *SequenceSerialSource {
	return &SequenceSerialSource{next: start}
}

func (s *SequenceSerialSource) NextSerial() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.next
	s.next++
	return v
}
