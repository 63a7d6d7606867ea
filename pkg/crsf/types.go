package crsf

import "fmt"

// Address identifies a device on the CRSF bus.
type Address byte

// Well-known addresses.
const (
	AddrBroadcast        Address = 0x00
	AddrFlightController Address = 0xC8 // also used as sync byte
	AddrRadio            Address = 0xEA
	AddrReceiver         Address = 0xEC
	AddrModule           Address = 0xEE
	AddrELRSLua          Address = 0xEF

	AddrSync = AddrFlightController
)

// LinkAddresses are the frame start bytes accepted on either link.
var LinkAddresses = []Address{AddrSync, AddrRadio, AddrReceiver, AddrModule}

var addressNames = map[Address]string{
	AddrBroadcast:        "broadcast",
	AddrFlightController: "fc",
	AddrRadio:            "radio",
	AddrReceiver:         "receiver",
	AddrModule:           "module",
	AddrELRSLua:          "elrs-lua",
}

func (a Address) String() string {
	if name, ok := addressNames[a]; ok {
		return name
	}
	return fmt.Sprintf("0x%02x", byte(a))
}

// FrameType is the type byte of a frame.
type FrameType byte

// Frame types.
const (
	TypeGPS            FrameType = 0x02
	TypeBattery        FrameType = 0x08
	TypeHeartbeat      FrameType = 0x0B
	TypeLinkStatistics FrameType = 0x14
	TypeRCChannels     FrameType = 0x16
	TypeAttitude       FrameType = 0x1E
	TypeFlightMode     FrameType = 0x21
	TypePing           FrameType = 0x28
	TypeDeviceInfo     FrameType = 0x29
	TypeParamEntry     FrameType = 0x2B
	TypeParamRead      FrameType = 0x2C
	TypeParamWrite     FrameType = 0x2D
	TypeELRSStatus     FrameType = 0x2E
	TypeCommand        FrameType = 0x32
	TypeRadioID        FrameType = 0x3A
	TypeMSPRequest     FrameType = 0x7A
	TypeMSPResponse    FrameType = 0x7B
	TypeMSPWrite       FrameType = 0x7C
)

var typeNames = map[FrameType]string{
	TypeGPS:            "gps",
	TypeBattery:        "battery",
	TypeHeartbeat:      "heartbeat",
	TypeLinkStatistics: "link-stats",
	TypeRCChannels:     "rc-channels",
	TypeAttitude:       "attitude",
	TypeFlightMode:     "flight-mode",
	TypePing:           "ping",
	TypeDeviceInfo:     "device-info",
	TypeParamEntry:     "param-entry",
	TypeParamRead:      "param-read",
	TypeParamWrite:     "param-write",
	TypeELRSStatus:     "elrs-status",
	TypeCommand:        "command",
	TypeRadioID:        "radio-id",
	TypeMSPRequest:     "msp-req",
	TypeMSPResponse:    "msp-resp",
	TypeMSPWrite:       "msp-write",
}

func (t FrameType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("0x%02x", byte(t))
}

// IsExtended indicates frames carrying destination and origin addresses
// as the first two payload bytes.
func (t FrameType) IsExtended() bool {
	return t >= TypePing
}
