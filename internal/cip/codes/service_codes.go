package codes

import "fmt"

// ServiceCode is a CIP service code. Replies set the high bit.
type ServiceCode uint8

// ReplyMask is ORed into a request service code to form its reply code.
const ReplyMask ServiceCode = 0x80

// Common and object-specific service codes used by the client.
const (
	ServiceGetAttributeAll    ServiceCode = 0x01
	ServiceSetAttributeAll    ServiceCode = 0x02
	ServiceGetAttributeList   ServiceCode = 0x03
	ServiceSetAttributeList   ServiceCode = 0x04
	ServiceReset              ServiceCode = 0x05
	ServiceMultipleService    ServiceCode = 0x0A
	ServiceGetAttributeSingle ServiceCode = 0x0E
	ServiceSetAttributeSingle ServiceCode = 0x10
	ServiceNoOp               ServiceCode = 0x17
	ServiceReadTag            ServiceCode = 0x4C
	ServiceWriteTag           ServiceCode = 0x4D
	ServiceReadModifyWrite    ServiceCode = 0x4E
	ServiceReadTagFragmented  ServiceCode = 0x52
	ServiceWriteTagFragmented ServiceCode = 0x53
	ServiceGetInstanceAttrs   ServiceCode = 0x55
)

// Connection Manager services. Several share values with tag services; the
// object class decides which one a code means.
const (
	ServiceForwardClose       ServiceCode = 0x4E
	ServiceUnconnectedSend    ServiceCode = 0x52
	ServiceForwardOpen        ServiceCode = 0x54
	ServiceGetConnectionData  ServiceCode = 0x56
	ServiceSearchConnection   ServiceCode = 0x57
	ServiceGetConnectionOwner ServiceCode = 0x5A
	ServiceLargeForwardOpen   ServiceCode = 0x5B
)

// Reply returns the reply service code for a request code.
func (s ServiceCode) Reply() ServiceCode { return s | ReplyMask }

// IsReply reports whether the reply bit is set.
func (s ServiceCode) IsReply() bool { return s&ReplyMask != 0 }

// Request strips the reply bit.
func (s ServiceCode) Request() ServiceCode { return s &^ ReplyMask }

func (s ServiceCode) String() string {
	name := ServiceName(s.Request())
	if s.IsReply() {
		return name + "_Reply"
	}
	return name
}

var serviceNames = map[ServiceCode]string{
	0x01: "Get_Attribute_All",
	0x02: "Set_Attribute_All",
	0x03: "Get_Attribute_List",
	0x04: "Set_Attribute_List",
	0x05: "Reset",
	0x06: "Start",
	0x07: "Stop",
	0x08: "Create",
	0x09: "Delete",
	0x0A: "Multiple_Service_Packet",
	0x0D: "Apply_Attributes",
	0x0E: "Get_Attribute_Single",
	0x10: "Set_Attribute_Single",
	0x11: "Find_Next_Object_Instance",
	0x14: "Error_Response",
	0x15: "Restore",
	0x16: "Save",
	0x17: "No_Op",
	0x18: "Get_Member",
	0x19: "Set_Member",
	0x4B: "Execute_PCCC",
	0x4C: "Read_Tag",
	0x4D: "Write_Tag",
	0x4E: "Forward_Close",
	0x52: "Unconnected_Send",
	0x53: "Write_Tag_Fragmented",
	0x54: "Forward_Open",
	0x55: "Get_Instance_Attribute_List",
	0x56: "Get_Connection_Data",
	0x57: "Search_Connection_Data",
	0x5A: "Get_Connection_Owner",
	0x5B: "Large_Forward_Open",
}

// ServiceName returns a display name for a CIP service code.
func ServiceName(code ServiceCode) string {
	if name, ok := serviceNames[code]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(0x%02X)", uint8(code))
}
