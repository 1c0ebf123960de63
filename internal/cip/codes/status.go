package codes

import "fmt"

// General status codes.
const (
	StatusSuccess                uint8 = 0x00
	StatusConnectionFailure      uint8 = 0x01
	StatusResourceUnavailable    uint8 = 0x02
	StatusInvalidParameterValue  uint8 = 0x03
	StatusPathSegmentError       uint8 = 0x04
	StatusPathDestinationUnknown uint8 = 0x05
	StatusPartialTransfer        uint8 = 0x06
	StatusConnectionLost         uint8 = 0x07
	StatusServiceNotSupported    uint8 = 0x08
	StatusInvalidAttributeValue  uint8 = 0x09
	StatusAttributeListError     uint8 = 0x0A
	StatusAlreadyInRequestedMode uint8 = 0x0B
	StatusObjectStateConflict    uint8 = 0x0C
	StatusObjectAlreadyExists    uint8 = 0x0D
	StatusAttributeNotSettable   uint8 = 0x0E
	StatusPrivilegeViolation     uint8 = 0x0F
	StatusDeviceStateConflict    uint8 = 0x10
	StatusReplyDataTooLarge      uint8 = 0x11
	StatusFragmentationPrimitive uint8 = 0x12
	StatusNotEnoughData          uint8 = 0x13
	StatusAttributeNotSupported  uint8 = 0x14
	StatusTooMuchData            uint8 = 0x15
	StatusObjectDoesNotExist     uint8 = 0x16
	StatusNoStoredAttributeData  uint8 = 0x18
	StatusStoreOperationFailure  uint8 = 0x19
	StatusRoutingFailureTooLarge uint8 = 0x1A
	StatusRoutingFailureResponse uint8 = 0x1B
	StatusMissingAttributeList   uint8 = 0x1C
	StatusInvalidAttributeList   uint8 = 0x1D
	StatusEmbeddedServiceError   uint8 = 0x1E
	StatusVendorSpecific         uint8 = 0x1F
	StatusInvalidParameter       uint8 = 0x20
	StatusWriteOnceFailure       uint8 = 0x21
	StatusInvalidReplyReceived   uint8 = 0x22
	StatusKeyFailureInPath       uint8 = 0x25
	StatusPathSizeInvalid        uint8 = 0x26
	StatusUnexpectedAttribute    uint8 = 0x27
	StatusInvalidMemberID        uint8 = 0x28
	StatusMemberNotSettable      uint8 = 0x29
	StatusGeneralError           uint8 = 0xFF
)

// Extended status codes for Connection Manager failures (general status 0x01).
const (
	ExtConnectionInUse        uint16 = 0x0100
	ExtTransportNotSupported  uint16 = 0x0103
	ExtOwnershipConflict      uint16 = 0x0106
	ExtConnectionNotFound     uint16 = 0x0107
	ExtInvalidConnectionType  uint16 = 0x0108
	ExtInvalidConnectionSize  uint16 = 0x0109
	ExtConnectionTimedOut     uint16 = 0x0203
	ExtUnconnectedSendTimeout uint16 = 0x0204
	ExtParameterError         uint16 = 0x0205
	ExtNoMoreConnections      uint16 = 0x0113
	ExtInvalidPortInPath      uint16 = 0x0311
	ExtInvalidLinkAddress     uint16 = 0x0312
	ExtInvalidSegmentInPath   uint16 = 0x0315
	ExtVendorSpecificError    uint16 = 0x031C
)

var statusNames = map[uint8]string{
	0x00: "Success",
	0x01: "Connection failure",
	0x02: "Resource unavailable",
	0x03: "Invalid parameter value",
	0x04: "Path segment error",
	0x05: "Path destination unknown",
	0x06: "Partial transfer",
	0x07: "Connection lost",
	0x08: "Service not supported",
	0x09: "Invalid attribute value",
	0x0A: "Attribute list error",
	0x0B: "Already in requested mode/state",
	0x0C: "Object state conflict",
	0x0D: "Object already exists",
	0x0E: "Attribute not settable",
	0x0F: "Privilege violation",
	0x10: "Device state conflict",
	0x11: "Reply data too large",
	0x12: "Fragmentation of a primitive value",
	0x13: "Not enough data",
	0x14: "Attribute not supported",
	0x15: "Too much data",
	0x16: "Object does not exist",
	0x18: "No stored attribute data",
	0x19: "Store operation failure",
	0x1A: "Routing failure, request packet too large",
	0x1B: "Routing failure, response packet too large",
	0x1C: "Missing attribute list entry data",
	0x1D: "Invalid attribute value list",
	0x1E: "Embedded service error",
	0x1F: "Vendor specific error",
	0x20: "Invalid parameter",
	0x21: "Write-once value or medium already written",
	0x22: "Invalid reply received",
	0x25: "Key failure in path",
	0x26: "Path size invalid",
	0x27: "Unexpected attribute in list",
	0x28: "Invalid member ID",
	0x29: "Member not settable",
	0xFF: "General error",
}

var extendedNames = map[uint16]string{
	0x0100: "Connection in use or duplicate forward open",
	0x0103: "Transport class and trigger combination not supported",
	0x0106: "Ownership conflict",
	0x0107: "Target connection not found",
	0x0108: "Invalid network connection parameter",
	0x0109: "Invalid connection size",
	0x0113: "Out of connections",
	0x0203: "Connection timed out",
	0x0204: "Unconnected request timed out",
	0x0205: "Parameter error in unconnected request",
	0x0311: "Invalid port ID specified in route path",
	0x0312: "Invalid link address specified in route path",
	0x0315: "Invalid segment type in path",
	0x031C: "Vendor specific error",
}

// StatusName returns a description of a general status code.
func StatusName(general uint8) string {
	if name, ok := statusNames[general]; ok {
		return name
	}
	return fmt.Sprintf("Unknown status (0x%02X)", general)
}

// ExtendedStatusName returns a description of a Connection Manager extended status.
func ExtendedStatusName(ext uint16) (string, bool) {
	name, ok := extendedNames[ext]
	return name, ok
}
