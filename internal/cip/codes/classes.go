package codes

// CIP object class identifiers.
const (
	ClassIdentity          uint16 = 0x01
	ClassMessageRouter     uint16 = 0x02
	ClassAssembly          uint16 = 0x04
	ClassConnectionManager uint16 = 0x06
	ClassSymbol            uint16 = 0x6B
	ClassTemplate          uint16 = 0x6C
	ClassTCPIPInterface    uint16 = 0xF5
	ClassEthernetLink      uint16 = 0xF6
)
